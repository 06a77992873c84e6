// Package years parses batch request lists.
package years

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/jonboulle/clockwork"

	"amy-weather/internal/models"
)

// MinYear is the earliest accepted year.
const MinYear = 1900

// Parse reads a comma-separated list of years and inclusive ranges such as
// "2000, 2003-2005". Spaces are ignored. The result is sorted without
// duplicates and every year must lie in [MinYear, current year].
func Parse(spec string, clock clockwork.Clock) ([]int, error) {
	spec = strings.ReplaceAll(spec, " ", "")
	if spec == "" {
		return nil, fmt.Errorf("%w: empty year list", models.ErrInvalidRange)
	}

	current := clock.Now().Year()
	set := make(map[int]struct{})
	for _, part := range strings.Split(spec, ",") {
		lo, hi, err := parsePart(part)
		if err != nil {
			return nil, err
		}
		if lo < MinYear || hi > current {
			return nil, fmt.Errorf("%w: years must be in the range %d-%d", models.ErrInvalidRange, MinYear, current)
		}
		for y := lo; y <= hi; y++ {
			set[y] = struct{}{}
		}
	}

	out := make([]int, 0, len(set))
	for y := range set {
		out = append(out, y)
	}
	sort.Ints(out)
	return out, nil
}

func parsePart(part string) (int, int, error) {
	if part == "" {
		return 0, 0, fmt.Errorf("%w: empty entry", models.ErrInvalidRange)
	}
	// a leading minus is a negative year, not a range
	if i := strings.Index(part[1:], "-"); i >= 0 {
		lo, err := strconv.Atoi(part[:i+1])
		if err != nil {
			return 0, 0, fmt.Errorf("%w: %q: %v", models.ErrInvalidRange, part, err)
		}
		hi, err := strconv.Atoi(part[i+2:])
		if err != nil {
			return 0, 0, fmt.Errorf("%w: %q: %v", models.ErrInvalidRange, part, err)
		}
		if hi < lo {
			return 0, 0, fmt.Errorf("%w: range %q ends before it starts", models.ErrInvalidRange, part)
		}
		return lo, hi, nil
	}
	y, err := strconv.Atoi(part)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: %q: %v", models.ErrInvalidRange, part, err)
	}
	return y, y, nil
}

// ParseStationIDs reads a comma-separated list of numeric station identifiers.
// Spaces are ignored and the input order is kept without duplicates.
func ParseStationIDs(spec string) ([]string, error) {
	spec = strings.ReplaceAll(spec, " ", "")
	if spec == "" {
		return nil, &models.ValidationError{Field: "stations", Message: "empty station list"}
	}
	seen := make(map[string]bool)
	var out []string
	for _, id := range strings.Split(spec, ",") {
		if _, err := strconv.ParseUint(id, 10, 64); err != nil {
			return nil, &models.ValidationError{
				Field:   "stations",
				Value:   id,
				Message: fmt.Sprintf("station id %q is not a number", id),
			}
		}
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out, nil
}
