package epw

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
)

// ErrMalformed is returned for files that are not EPW weather files.
var ErrMalformed = errors.New("malformed epw file")

// Record is one hourly data row.
type Record []string

// File is an EPW header plus its hourly rows.
type File struct {
	Header  []string
	Records []Record
}

// Read parses an EPW file.
func Read(r io.Reader) (*File, error) {
	br := bufio.NewReader(r)
	f := &File{Header: make([]string, 0, HeaderLines)}
	for len(f.Header) < HeaderLines {
		line, err := br.ReadString('\n')
		line = strings.TrimRight(line, "\r\n")
		if err != nil && (err != io.EOF || line == "") {
			return nil, fmt.Errorf("%w: header ended after %d lines", ErrMalformed, len(f.Header))
		}
		f.Header = append(f.Header, line)
	}

	cr := csv.NewReader(br)
	cr.FieldsPerRecord = FieldCount
	cr.ReuseRecord = false
	cr.LazyQuotes = true
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		f.Records = append(f.Records, Record(row))
	}
	if len(f.Records) == 0 {
		return nil, fmt.Errorf("%w: no data rows", ErrMalformed)
	}
	return f, nil
}

// ReadFile parses the EPW file at path.
func ReadFile(path string) (*File, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer fh.Close()
	f, err := Read(fh)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return f, nil
}

// Write serialises f with newline-terminated rows.
func (f *File) Write(w io.Writer) error {
	bw := bufio.NewWriter(w)
	for _, line := range f.Header {
		if _, err := bw.WriteString(line + "\n"); err != nil {
			return err
		}
	}
	for _, r := range f.Records {
		if _, err := bw.WriteString(strings.Join(r, ",") + "\n"); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// Clone returns a deep copy.
func (f *File) Clone() *File {
	out := &File{
		Header:  append([]string(nil), f.Header...),
		Records: make([]Record, len(f.Records)),
	}
	for i, r := range f.Records {
		out.Records[i] = append(Record(nil), r...)
	}
	return out
}

// Len returns the number of hourly rows.
func (f *File) Len() int {
	return len(f.Records)
}

// SetYear stamps every row with year.
func (f *File) SetYear(year int) {
	y := strconv.Itoa(year)
	for _, r := range f.Records {
		r[Year] = y
	}
}

// Float parses field as a number.
func (r Record) Float(field Field) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(r[field]), 64)
	if err != nil {
		return 0, fmt.Errorf("field %s: %w", field, err)
	}
	return v, nil
}

// SetFloat formats v with the field's precision. NaN and infinities are written
// as the field's missing code.
func (r Record) SetFloat(field Field, v float64) {
	spec, ok := fieldSpecs[field]
	if !ok {
		spec = fieldSpec{precision: 1, missing: "999"}
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		r[field] = spec.missing
		return
	}
	r[field] = strconv.FormatFloat(v, 'f', spec.precision, 64)
}
