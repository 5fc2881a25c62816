package cli

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

type testTable struct {
	Items []string `json:"items"`
}

func (t testTable) Header() []string { return []string{"NAME", "LENGTH"} }

func (t testTable) Rows() [][]string {
	rows := make([][]string, len(t.Items))
	for i, item := range t.Items {
		rows[i] = []string{item, strings.Repeat("x", len(item))}
	}
	return rows
}

func TestTextFormatter(t *testing.T) {
	formatter := &TextFormatter{}

	output, err := formatter.Format("test message")
	if err != nil {
		t.Fatalf("Format() error = %v", err)
	}
	if string(output) != "test message\n" {
		t.Errorf("Format() = %q", string(output))
	}
}

func TestTextFormatter_Table(t *testing.T) {
	buf := &bytes.Buffer{}
	err := (&TextFormatter{}).FormatTo(buf, testTable{Items: []string{"a", "long-name"}})
	if err != nil {
		t.Fatalf("FormatTo() error = %v", err)
	}

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	if len(lines) != 3 {
		t.Fatalf("lines = %q", lines)
	}
	// columns are aligned
	if strings.Index(lines[0], "LENGTH") != strings.Index(lines[1], "x") {
		t.Errorf("columns not aligned:\n%s", buf.String())
	}
}

func TestJSONFormatter(t *testing.T) {
	data := testTable{Items: []string{"a", "b"}}

	for _, indent := range []bool{false, true} {
		buf := &bytes.Buffer{}
		if err := (&JSONFormatter{Indent: indent}).FormatTo(buf, data); err != nil {
			t.Fatalf("FormatTo() error = %v", err)
		}
		var got testTable
		if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
			t.Fatalf("output is not JSON: %v", err)
		}
		if len(got.Items) != 2 {
			t.Errorf("items = %v", got.Items)
		}
		if indent != strings.Contains(buf.String(), "\n  ") {
			t.Errorf("indent=%v output = %q", indent, buf.String())
		}
	}
}

func TestCSVFormatter(t *testing.T) {
	t.Run("table", func(t *testing.T) {
		out, err := (&CSVFormatter{}).Format(testTable{Items: []string{"a,b", "c"}})
		if err != nil {
			t.Fatalf("Format() error = %v", err)
		}
		want := "NAME,LENGTH\n\"a,b\",xxx\nc,x\n"
		if string(out) != want {
			t.Errorf("Format() = %q, want %q", out, want)
		}
	})

	t.Run("no header", func(t *testing.T) {
		out, err := (&CSVFormatter{NoHeader: true}).Format(testTable{Items: []string{"c"}})
		if err != nil {
			t.Fatal(err)
		}
		if string(out) != "c,x\n" {
			t.Errorf("Format() = %q", out)
		}
	})

	t.Run("non-table", func(t *testing.T) {
		if _, err := (&CSVFormatter{}).Format(map[string]int{"a": 1}); err == nil {
			t.Error("expected error for non-table data")
		}
	})
}

func TestNewFormatter(t *testing.T) {
	tests := []struct {
		format OutputFormat
		want   string
	}{
		{FormatText, "*cli.TextFormatter"},
		{FormatJSON, "*cli.JSONFormatter"},
		{FormatCSV, "*cli.CSVFormatter"},
		{"unknown", "*cli.TextFormatter"},
	}
	for _, tt := range tests {
		got := typeName(NewFormatter(tt.format))
		if got != tt.want {
			t.Errorf("NewFormatter(%q) = %s, want %s", tt.format, got, tt.want)
		}
	}
}

func TestParseOutputFormat(t *testing.T) {
	for _, in := range []string{"text", "JSON", "csv", ""} {
		if _, err := ParseOutputFormat(in); err != nil {
			t.Errorf("ParseOutputFormat(%q) error = %v", in, err)
		}
	}
	if _, err := ParseOutputFormat("junit"); err == nil {
		t.Error("ParseOutputFormat(junit) should fail")
	}
}

func typeName(v interface{}) string {
	switch v.(type) {
	case *TextFormatter:
		return "*cli.TextFormatter"
	case *JSONFormatter:
		return "*cli.JSONFormatter"
	case *CSVFormatter:
		return "*cli.CSVFormatter"
	default:
		return "unknown"
	}
}
