// Package helpers holds the output formatting and flag helpers shared by the
// dwarfdump commands.
package helpers

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"reflect"
	"strings"
	"text/tabwriter"
)

// OutputFormat represents the desired output format.
type OutputFormat string

const (
	FormatTable OutputFormat = "table"
	FormatJSON  OutputFormat = "json"
	FormatCSV   OutputFormat = "csv"
)

// Formatter writes command results.
type Formatter interface {
	Format(data any, writer io.Writer) error
}

// NewFormatter creates a new Formatter for the given format.
func NewFormatter(format OutputFormat) (Formatter, error) {
	switch format {
	case FormatTable:
		return &TableFormatter{}, nil
	case FormatJSON:
		return &JSONFormatter{}, nil
	case FormatCSV:
		return &CSVFormatter{}, nil
	default:
		return nil, fmt.Errorf("unsupported format: %s", format)
	}
}

// JSONFormatter writes data as indented JSON.
type JSONFormatter struct{}

func (f *JSONFormatter) Format(data any, writer io.Writer) error {
	enc := json.NewEncoder(writer)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	return enc.Encode(data)
}

// TableFormatter writes a slice of structs as an aligned table. Columns are
// the fields carrying a `header` tag.
type TableFormatter struct{}

func (f *TableFormatter) Format(data any, writer io.Writer) error {
	rows, err := tabulate(data)
	if err != nil || rows == nil {
		return err
	}
	w := tabwriter.NewWriter(writer, 0, 0, 3, ' ', 0)
	for _, row := range rows {
		if _, err := fmt.Fprintln(w, strings.Join(row, "\t")); err != nil {
			return err
		}
	}
	return w.Flush()
}

// CSVFormatter writes a slice of structs as CSV with a header row.
type CSVFormatter struct{}

func (f *CSVFormatter) Format(data any, writer io.Writer) error {
	rows, err := tabulate(data)
	if err != nil || rows == nil {
		return err
	}
	w := csv.NewWriter(writer)
	if err := w.WriteAll(rows); err != nil {
		return err
	}
	return w.Error()
}

// tabulate returns the header row followed by one row per element of data,
// or nil for an empty slice.
func tabulate(data any) ([][]string, error) {
	val := reflect.ValueOf(data)
	if val.Kind() != reflect.Slice {
		return nil, fmt.Errorf("data must be a slice")
	}
	if val.Len() == 0 {
		return nil, nil
	}

	rows := [][]string{headers(val.Index(0).Type())}
	for i := 0; i < val.Len(); i++ {
		rows = append(rows, rowValues(val.Index(i)))
	}
	return rows, nil
}

func headers(t reflect.Type) []string {
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	var out []string
	for i := 0; i < t.NumField(); i++ {
		if tag := t.Field(i).Tag.Get("header"); tag != "" {
			out = append(out, tag)
		}
	}
	return out
}

func rowValues(v reflect.Value) []string {
	if v.Kind() == reflect.Ptr {
		v = v.Elem()
	}
	t := v.Type()
	var out []string
	for i := 0; i < v.NumField(); i++ {
		if t.Field(i).Tag.Get("header") != "" {
			out = append(out, fmt.Sprintf("%v", v.Field(i).Interface()))
		}
	}
	return out
}
