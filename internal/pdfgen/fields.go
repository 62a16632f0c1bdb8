package pdfgen

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// FieldType selects how a record value is turned into display text.
type FieldType int

const (
	FieldText FieldType = iota
	FieldDate
	FieldDateTime
	FieldBool
	FieldList
	FieldActions
	FieldQuestion
)

// Field declares one row of a section. Key is a dotted path into the
// record's JSON form, e.g. "customer_signature.name".
type Field struct {
	Key   string
	Label string
	Type  FieldType
}

type Section struct {
	Title  string
	Fields []Field
}

// Column describes one column of a grid table. Width is a fraction of the
// table width.
type Column struct {
	Header string
	Width  float64
}

// Table is a titled block of rows ready for drawing. Tables without
// columns are label/value tables.
type Table struct {
	Title   string
	Columns []Column
	Rows    [][]string
}

// buildSection formats every non-empty field of sec in declaration order.
// The second result is false when nothing is left to show.
func buildSection(sec Section, values map[string]any) (Table, bool) {
	t := Table{Title: sec.Title}
	for _, f := range sec.Fields {
		text, ok := formatValue(f.Type, lookup(values, f.Key))
		if !ok {
			continue
		}
		t.Rows = append(t.Rows, []string{f.Label, text})
	}
	return t, len(t.Rows) > 0
}

// recordValues converts a record to its generic JSON form. Numbers stay as
// json.Number so they print exactly as stored.
func recordValues(v any) (map[string]any, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var out map[string]any
	if err := dec.Decode(&out); err != nil {
		return nil, err
	}
	if out == nil {
		out = map[string]any{}
	}
	return out, nil
}

func lookup(values map[string]any, key string) any {
	var cur any = values
	for _, part := range strings.Split(key, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil
		}
		cur = m[part]
	}
	return cur
}

// formatValue renders v for display. It reports false for values that must
// not produce a row: nil, blank strings, empty arrays and anything that
// cannot be shown as the declared type.
func formatValue(ft FieldType, v any) (string, bool) {
	if v == nil {
		return "", false
	}
	switch ft {
	case FieldDate:
		s, ok := scalar(v)
		if !ok {
			return "", false
		}
		return formatDate(s), true
	case FieldDateTime:
		s, ok := scalar(v)
		if !ok {
			return "", false
		}
		return formatDateTime(s), true
	case FieldBool:
		b, ok := boolValue(v)
		if !ok {
			return "", false
		}
		return yesNo(b), true
	case FieldList:
		items, ok := v.([]any)
		if !ok {
			return scalar(v)
		}
		parts := make([]string, 0, len(items))
		for _, item := range items {
			if s, ok := scalar(item); ok {
				parts = append(parts, s)
			}
		}
		if len(parts) == 0 {
			return "", false
		}
		return strings.Join(parts, ", "), true
	case FieldActions:
		return formatActions(v)
	case FieldQuestion:
		return formatQuestion(v)
	default:
		if items, ok := v.([]any); ok {
			return formatValue(FieldList, items)
		}
		return scalar(v)
	}
}

func scalar(v any) (string, bool) {
	switch t := v.(type) {
	case string:
		s := strings.TrimSpace(t)
		return s, s != ""
	case json.Number:
		return t.String(), true
	case bool:
		return yesNo(t), true
	case float64:
		return fmt.Sprintf("%g", t), true
	case int:
		return fmt.Sprintf("%d", t), true
	default:
		return "", false
	}
}

func boolValue(v any) (bool, bool) {
	switch t := v.(type) {
	case bool:
		return t, true
	case string:
		switch strings.ToLower(strings.TrimSpace(t)) {
		case "true", "yes", "y", "1":
			return true, true
		case "false", "no", "n", "0":
			return false, true
		}
	case json.Number:
		switch t.String() {
		case "1":
			return true, true
		case "0":
			return false, true
		}
	}
	return false, false
}

func yesNo(b bool) string {
	if b {
		return "Yes"
	}
	return "No"
}

// formatActions numbers each action on its own line. Every action yields a
// line even when its title is blank.
func formatActions(v any) (string, bool) {
	items, ok := v.([]any)
	if !ok {
		return "", false
	}
	lines := make([]string, 0, len(items))
	for _, item := range items {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		title, ok := scalar(m["title"])
		if !ok {
			title = "Untitled action"
		}
		due := "N/A"
		if d, ok := scalar(m["due_date"]); ok {
			due = formatDate(d)
		}
		line := fmt.Sprintf("%d. %s", len(lines)+1, title)
		if owner, ok := scalar(m["owner"]); ok {
			line += " - Owner: " + owner
		}
		lines = append(lines, line+" (Due: "+due+")")
	}
	if len(lines) == 0 {
		return "", false
	}
	return strings.Join(lines, "\n"), true
}

func formatQuestion(v any) (string, bool) {
	m, ok := v.(map[string]any)
	if !ok {
		if b, ok := boolValue(v); ok {
			return yesNo(b), true
		}
		return "", false
	}
	var parts []string
	if b, ok := boolValue(m["answer"]); ok {
		parts = append(parts, yesNo(b))
	}
	if c, ok := scalar(m["comment"]); ok {
		parts = append(parts, "Comment: "+c)
	}
	if len(parts) == 0 {
		return "", false
	}
	return strings.Join(parts, "\n"), true
}

var dateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
}

func formatDate(s string) string {
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t.Format("02/01/2006")
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format("02/01/2006")
		}
	}
	return s
}

func formatDateTime(s string) string {
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t.Format("02/01/2006")
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format("02/01/2006 15:04")
		}
	}
	return s
}
