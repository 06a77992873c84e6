// Package epwtest builds small EPW templates for tests.
package epwtest

import (
	"fmt"
	"strings"
	"time"

	"amy-weather/internal/epw"
)

// Header is a minimal eight-line EPW header.
var Header = []string{
	"LOCATION,Test Station,IL,USA,TMY3,725300,41.98,-87.92,-6.0,205.0",
	"DESIGN CONDITIONS,0",
	"TYPICAL/EXTREME PERIODS,0",
	"GROUND TEMPERATURES,0",
	"HOLIDAYS/DAYLIGHT SAVINGS,No,0,0,0",
	"COMMENTS 1,synthetic template",
	"COMMENTS 2,",
	"DATA PERIODS,1,1,Data,Sunday, 1/ 1,12/31",
}

const rowTail = "?9?9?9?9E0?9?9?9?9?9?9?9?9?9?9?9?9?9?9?9*9*9?9?9?9,-3.0,-6.1,79,101000,0,0,250,0,0,0,0,0,0,0,220,4.1,10,10,16.1,77777,0,999999999,6,0.0710,0,88,0.000,0.0,0.0"

// Text renders a template with rows hourly rows starting 1 January of a
// non-leap typical year.
func Text(rows int) string {
	var b strings.Builder
	for _, h := range Header {
		b.WriteString(h)
		b.WriteByte('\n')
	}
	start := time.Date(1999, time.January, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < rows; i++ {
		t := start.Add(time.Duration(i) * time.Hour)
		fmt.Fprintf(&b, "1999,%d,%d,%d,60,%s\n", t.Month(), t.Day(), t.Hour()+1, rowTail)
	}
	return b.String()
}

// Template parses Text(rows). It panics on error, which only a broken helper can cause.
func Template(rows int) *epw.File {
	f, err := epw.Read(strings.NewReader(Text(rows)))
	if err != nil {
		panic(err)
	}
	return f
}
