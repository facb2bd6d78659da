// Package render writes command results as json, yaml or a table.
//
// Format selection:
//   - --format always wins
//   - otherwise a terminal gets a table and anything else gets json
//
// --no-color only affects table headers.
package render

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"reflect"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/urfave/cli/v2"
	"golang.org/x/term"
	"gopkg.in/yaml.v3"
)

// Format is an output format.
type Format string

const (
	FormatJSON  Format = "json"
	FormatTable Format = "table"
	FormatYAML  Format = "yaml"
)

// ParseFormat parses a format name. The empty string is valid and means
// "pick for me".
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(s) {
	case "json":
		return FormatJSON, nil
	case "table":
		return FormatTable, nil
	case "yaml", "yml":
		return FormatYAML, nil
	case "":
		return "", nil
	default:
		return "", fmt.Errorf("invalid format: %q (must be json, table, or yaml)", s)
	}
}

// Renderer writes values in one format.
type Renderer struct {
	format  Format
	noColor bool
	out     io.Writer
}

// NewRenderer creates a renderer from the global --format and --no-color
// flags, writing to the app's writer (stdout by default).
func NewRenderer(c *cli.Context) (*Renderer, error) {
	format, err := ParseFormat(c.String("format"))
	if err != nil {
		return nil, err
	}
	var out io.Writer = os.Stdout
	if c.App != nil && c.App.Writer != nil {
		out = c.App.Writer
	}
	tty := isTTY(out)
	if format == "" {
		if tty {
			format = FormatTable
		} else {
			format = FormatJSON
		}
	}
	return &Renderer{
		format:  format,
		noColor: c.Bool("no-color") || !tty || os.Getenv("NO_COLOR") != "",
		out:     out,
	}, nil
}

func isTTY(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// NewRendererWithWriter creates a renderer writing to out.
func NewRendererWithWriter(format Format, noColor bool, out io.Writer) *Renderer {
	return &Renderer{format: format, noColor: noColor, out: out}
}

// Format returns the selected format.
func (r *Renderer) Format() Format {
	return r.format
}

// Render writes data in the configured format.
func (r *Renderer) Render(data any) error {
	switch r.format {
	case FormatJSON:
		enc := json.NewEncoder(r.out)
		enc.SetIndent("", "  ")
		return enc.Encode(data)
	case FormatYAML:
		enc := yaml.NewEncoder(r.out)
		enc.SetIndent(2)
		if err := enc.Encode(data); err != nil {
			return err
		}
		return enc.Close()
	case FormatTable:
		return r.renderTable(data)
	default:
		return fmt.Errorf("unknown format: %s", r.format)
	}
}

// Line writes a plain line, whatever the format. Used for short status
// output that has no structure.
func (r *Renderer) Line(format string, args ...any) {
	fmt.Fprintf(r.out, format+"\n", args...)
}

func (r *Renderer) renderTable(data any) error {
	v := reflect.ValueOf(data)
	for v.Kind() == reflect.Ptr || v.Kind() == reflect.Interface {
		if v.IsNil() {
			fmt.Fprintln(r.out, "(no results)")
			return nil
		}
		v = v.Elem()
	}
	if v.Kind() == reflect.Slice || v.Kind() == reflect.Array {
		return r.renderSliceTable(v)
	}
	return r.renderSingleTable(v)
}

func (r *Renderer) renderSliceTable(v reflect.Value) error {
	if v.Len() == 0 {
		fmt.Fprintln(r.out, "(no results)")
		return nil
	}

	var buf bytes.Buffer
	w := tabwriter.NewWriter(&buf, 0, 0, 2, ' ', 0)
	headers := headersOf(v)
	if len(headers) == 0 {
		for i := 0; i < v.Len(); i++ {
			fmt.Fprintln(w, formatValue(v.Index(i)))
		}
		if err := w.Flush(); err != nil {
			return err
		}
		_, err := buf.WriteTo(r.out)
		return err
	}

	fmt.Fprintln(w, strings.ToUpper(strings.Join(headers, "\t")))
	for i := 0; i < v.Len(); i++ {
		fmt.Fprintln(w, strings.Join(rowValues(v.Index(i), headers), "\t"))
	}
	if err := w.Flush(); err != nil {
		return err
	}

	// Color is applied after alignment so escape codes do not count
	// towards column widths.
	head, rest, _ := bytes.Cut(buf.Bytes(), []byte("\n"))
	if !r.noColor {
		head = []byte("\x1b[1m" + string(head) + "\x1b[0m")
	}
	if _, err := fmt.Fprintf(r.out, "%s\n", head); err != nil {
		return err
	}
	_, err := r.out.Write(rest)
	return err
}

func (r *Renderer) renderSingleTable(v reflect.Value) error {
	w := tabwriter.NewWriter(r.out, 0, 0, 2, ' ', 0)
	switch v.Kind() {
	case reflect.Struct:
		t := v.Type()
		for i := 0; i < t.NumField(); i++ {
			f := t.Field(i)
			if !f.IsExported() {
				continue
			}
			fmt.Fprintf(w, "%s:\t%s\n", fieldName(f), formatValue(v.Field(i)))
		}
	case reflect.Map:
		for _, k := range sortedKeys(v) {
			fmt.Fprintf(w, "%s:\t%s\n", k, formatValue(v.MapIndex(reflect.ValueOf(k).Convert(v.Type().Key()))))
		}
	default:
		fmt.Fprintln(w, formatValue(v))
	}
	return w.Flush()
}

// headersOf returns struct field names of the element type, or the union
// of map keys across all rows, sorted.
func headersOf(v reflect.Value) []string {
	et := v.Type().Elem()
	for et.Kind() == reflect.Ptr {
		et = et.Elem()
	}
	switch et.Kind() {
	case reflect.Struct:
		var out []string
		for i := 0; i < et.NumField(); i++ {
			if f := et.Field(i); f.IsExported() {
				out = append(out, fieldName(f))
			}
		}
		return out
	case reflect.Map:
		if et.Key().Kind() != reflect.String {
			return nil
		}
		seen := map[string]bool{}
		var out []string
		for i := 0; i < v.Len(); i++ {
			row := indirect(v.Index(i))
			if !row.IsValid() {
				continue
			}
			for _, k := range sortedKeys(row) {
				if !seen[k] {
					seen[k] = true
					out = append(out, k)
				}
			}
		}
		sort.Strings(out)
		return out
	}
	return nil
}

func rowValues(v reflect.Value, headers []string) []string {
	v = indirect(v)
	values := make([]string, 0, len(headers))
	if !v.IsValid() {
		return append(values, make([]string, len(headers))...)
	}
	switch v.Kind() {
	case reflect.Struct:
		t := v.Type()
		for i := 0; i < t.NumField(); i++ {
			if t.Field(i).IsExported() {
				values = append(values, formatValue(v.Field(i)))
			}
		}
	case reflect.Map:
		for _, h := range headers {
			val := v.MapIndex(reflect.ValueOf(h).Convert(v.Type().Key()))
			values = append(values, formatValue(val))
		}
	}
	return values
}

func indirect(v reflect.Value) reflect.Value {
	for v.IsValid() && (v.Kind() == reflect.Ptr || v.Kind() == reflect.Interface) {
		if v.IsNil() {
			return reflect.Value{}
		}
		v = v.Elem()
	}
	return v
}

func sortedKeys(m reflect.Value) []string {
	keys := make([]string, 0, m.Len())
	for _, k := range m.MapKeys() {
		keys = append(keys, fmt.Sprint(k.Interface()))
	}
	sort.Strings(keys)
	return keys
}

func fieldName(f reflect.StructField) string {
	if tag := f.Tag.Get("json"); tag != "" {
		name, _, _ := strings.Cut(tag, ",")
		if name != "" && name != "-" {
			return name
		}
	}
	return strings.ToLower(f.Name)
}

func formatValue(v reflect.Value) string {
	v = indirect(v)
	if !v.IsValid() {
		return ""
	}
	switch v.Kind() {
	case reflect.Slice, reflect.Array:
		if v.Len() == 0 {
			return "[]"
		}
		if v.Type().Elem().Kind() == reflect.String {
			parts := make([]string, v.Len())
			for i := range parts {
				parts[i] = v.Index(i).String()
			}
			return strings.Join(parts, ",")
		}
		return fmt.Sprintf("[%d items]", v.Len())
	case reflect.Map:
		if v.Len() == 0 {
			return "{}"
		}
		return fmt.Sprintf("{%d keys}", v.Len())
	case reflect.Struct:
		if s, ok := v.Interface().(fmt.Stringer); ok {
			return s.String()
		}
		return "{...}"
	default:
		return fmt.Sprintf("%v", v.Interface())
	}
}
