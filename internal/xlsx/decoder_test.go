package xlsx

import (
	"archive/zip"
	"bytes"
	"errors"
	"fmt"
	"strings"
	"testing"
)

const (
	workbookPart = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<workbook xmlns="http://schemas.openxmlformats.org/spreadsheetml/2006/main" xmlns:r="http://schemas.openxmlformats.org/officeDocument/2006/relationships">
  <sheets><sheet name="Sheet1" sheetId="1" r:id="rId1"/></sheets>
</workbook>`

	relsPart = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">
  <Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/worksheet" Target="worksheets/sheet1.xml"/>
</Relationships>`
)

// writeArchive builds an in-memory zip from part name to content.
func writeArchive(t *testing.T, parts map[string]string) []byte {
	t.Helper()

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, content := range parts {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatalf("create %s: %v", name, err)
		}
		if _, err := w.Write([]byte(content)); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("close archive: %v", err)
	}
	return buf.Bytes()
}

// sheetFromRows renders rows as a worksheet using inline strings.
func sheetFromRows(rows [][]string) string {
	var b strings.Builder
	b.WriteString(`<worksheet xmlns="http://schemas.openxmlformats.org/spreadsheetml/2006/main"><sheetData>`)
	for r, row := range rows {
		fmt.Fprintf(&b, `<row r="%d">`, r+1)
		for c, value := range row {
			fmt.Fprintf(&b, `<c r="%s%d" t="inlineStr"><is><t>%s</t></is></c>`, columnName(c), r+1, value)
		}
		b.WriteString(`</row>`)
	}
	b.WriteString(`</sheetData></worksheet>`)
	return b.String()
}

// columnName converts a 0-based index back to column letters.
func columnName(idx int) string {
	name := ""
	idx++
	for idx > 0 {
		idx--
		name = string(rune('A'+idx%26)) + name
		idx /= 26
	}
	return name
}

func minimalArchive(t *testing.T, rows [][]string) []byte {
	t.Helper()
	return writeArchive(t, map[string]string{
		"xl/workbook.xml":            workbookPart,
		"xl/_rels/workbook.xml.rels": relsPart,
		"xl/worksheets/sheet1.xml":   sheetFromRows(rows),
	})
}

func TestColumnIndex(t *testing.T) {
	tests := []struct {
		column string
		want   int
	}{
		{"A", 0},
		{"B", 1},
		{"Z", 25},
		{"AA", 26},
		{"AZ", 51},
		{"BA", 52},
		{"a", 0},
		{"aa", 26},
		{"", -1},
		{"A1", -1},
	}

	for _, tt := range tests {
		if got := columnIndex(tt.column); got != tt.want {
			t.Errorf("columnIndex(%q) = %d, want %d", tt.column, got, tt.want)
		}
	}
}

func TestDecodeRoundTrip(t *testing.T) {
	rows := [][]string{
		{"Name", "Last Name", "Email", "Groups"},
		{"Ada", "Lovelace", "ada@example.com", "Admins"},
		{"Grace", "Hopper", "grace@example.com", "Users; Admins"},
		{"Alan", "Turing", "alan@example.com", ""},
	}

	table, err := Decode(minimalArchive(t, rows))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}

	wantHeaders := rows[0]
	if len(table.Headers) != len(wantHeaders) {
		t.Fatalf("got %d headers, want %d", len(table.Headers), len(wantHeaders))
	}
	for i, h := range wantHeaders {
		if table.Headers[i] != h {
			t.Errorf("header %d = %q, want %q", i, table.Headers[i], h)
		}
	}

	if len(table.Rows) != 3 {
		t.Fatalf("got %d data rows, want 3", len(table.Rows))
	}
	for r, want := range rows[1:] {
		for c, cell := range want {
			if table.Rows[r][c] != cell {
				t.Errorf("row %d col %d = %q, want %q", r, c, table.Rows[r][c], cell)
			}
		}
	}
}

func TestDecodeSharedStrings(t *testing.T) {
	sheet := `<worksheet xmlns="http://schemas.openxmlformats.org/spreadsheetml/2006/main"><sheetData>
		<row r="1"><c r="A1" t="s"><v>0</v></c><c r="B1" t="s"><v>1</v></c></row>
		<row r="2"><c r="A2" t="s"><v>2</v></c><c r="B2" t="s"><v>99</v></c></row>
	</sheetData></worksheet>`
	sst := `<sst xmlns="http://schemas.openxmlformats.org/spreadsheetml/2006/main">
		<si><t>header</t></si>
		<si><r><t>other </t></r><r><t>header</t></r></si>
		<si><t>value</t></si>
	</sst>`

	table, err := Decode(writeArchive(t, map[string]string{
		"xl/workbook.xml":            workbookPart,
		"xl/_rels/workbook.xml.rels": relsPart,
		"xl/worksheets/sheet1.xml":   sheet,
		"xl/sharedStrings.xml":       sst,
	}))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}

	if table.Headers[0] != "header" {
		t.Errorf("header 0 = %q, want %q", table.Headers[0], "header")
	}
	if table.Headers[1] != "other header" {
		t.Errorf("rich-text header = %q, want %q", table.Headers[1], "other header")
	}
	if table.Rows[0][0] != "value" {
		t.Errorf("shared-string cell = %q, want %q", table.Rows[0][0], "value")
	}
	// An out-of-range shared-string index decodes to empty, not an error.
	if table.Rows[0][1] != "" {
		t.Errorf("missing shared-string index = %q, want empty", table.Rows[0][1])
	}
}

func TestDecodeSparseRow(t *testing.T) {
	sheet := `<worksheet xmlns="http://schemas.openxmlformats.org/spreadsheetml/2006/main"><sheetData>
		<row r="1"><c r="A1"><v>h1</v></c><c r="D1"><v>h4</v></c></row>
		<row r="2"><c r="A2"><v>left</v></c><c r="D2"><v>right</v></c></row>
	</sheetData></worksheet>`

	table, err := Decode(writeArchive(t, map[string]string{
		"xl/workbook.xml":            workbookPart,
		"xl/_rels/workbook.xml.rels": relsPart,
		"xl/worksheets/sheet1.xml":   sheet,
	}))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}

	if len(table.Rows) != 1 {
		t.Fatalf("got %d rows, want 1", len(table.Rows))
	}
	row := table.Rows[0]
	want := []string{"left", "", "", "right"}
	if len(row) != len(want) {
		t.Fatalf("got %d cells, want %d", len(row), len(want))
	}
	for i, cell := range want {
		if row[i] != cell {
			t.Errorf("cell %d = %q, want %q", i, row[i], cell)
		}
	}
}

func TestDecodeSkipsBlankRows(t *testing.T) {
	rows := [][]string{
		{"  ", "", " "},
		{"Name", "Email"},
		{"", "   "},
		{"Ada", "ada@example.com"},
		{"", ""},
	}

	table, err := Decode(minimalArchive(t, rows))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}

	if table.Headers[0] != "Name" {
		t.Errorf("blank leading row must not become the header, got %q", table.Headers[0])
	}
	if len(table.Rows) != 1 {
		t.Fatalf("got %d data rows, want 1", len(table.Rows))
	}
	if table.Rows[0][0] != "Ada" {
		t.Errorf("data row = %q, want %q", table.Rows[0][0], "Ada")
	}
}

func TestDecodeHeaderOnly(t *testing.T) {
	table, err := Decode(minimalArchive(t, [][]string{{"Name", "Email"}}))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(table.Rows) != 0 {
		t.Errorf("got %d rows, want 0", len(table.Rows))
	}
}

func TestDecodeNoHeader(t *testing.T) {
	_, err := Decode(minimalArchive(t, nil))

	var derr *DecodeError
	if !errors.As(err, &derr) {
		t.Fatalf("expected DecodeError, got %v", err)
	}
}

func TestDecodeInvalidArchive(t *testing.T) {
	_, err := Decode([]byte("this is not a zip file"))

	var derr *DecodeError
	if !errors.As(err, &derr) {
		t.Fatalf("expected DecodeError, got %v", err)
	}
}

func TestDecodeMissingWorkbook(t *testing.T) {
	_, err := Decode(writeArchive(t, map[string]string{
		"xl/worksheets/sheet1.xml": sheetFromRows([][]string{{"h"}}),
	}))

	var derr *DecodeError
	if !errors.As(err, &derr) {
		t.Fatalf("expected DecodeError, got %v", err)
	}
}

func TestDecodeRelationshipFallback(t *testing.T) {
	// No rels part at all: the decoder scans the archive for a
	// worksheet-shaped entry instead.
	table, err := Decode(writeArchive(t, map[string]string{
		"xl/workbook.xml":          workbookPart,
		"xl/worksheets/sheet1.xml": sheetFromRows([][]string{{"Name"}, {"Ada"}}),
	}))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(table.Rows) != 1 {
		t.Errorf("got %d rows, want 1", len(table.Rows))
	}
}

func TestNormalizeSheetTarget(t *testing.T) {
	tests := []struct {
		target string
		want   string
	}{
		{"worksheets/sheet1.xml", "xl/worksheets/sheet1.xml"},
		{"/xl/worksheets/sheet1.xml", "xl/worksheets/sheet1.xml"},
		{"../worksheets/sheet1.xml", "xl/worksheets/sheet1.xml"},
		{"../../worksheets/sheet1.xml", "xl/worksheets/sheet1.xml"},
		{"xl/worksheets/sheet1.xml", "xl/worksheets/sheet1.xml"},
	}

	for _, tt := range tests {
		if got := normalizeSheetTarget(tt.target); got != tt.want {
			t.Errorf("normalizeSheetTarget(%q) = %q, want %q", tt.target, got, tt.want)
		}
	}
}

func TestDecodeInlineStringRuns(t *testing.T) {
	sheet := `<worksheet xmlns="http://schemas.openxmlformats.org/spreadsheetml/2006/main"><sheetData>
		<row r="1"><c r="A1" t="inlineStr"><is><r><t>Na</t></r><r><t>me</t></r></is></c></row>
		<row r="2"><c r="A2" t="inlineStr"><is><t>Ada</t></is></c></row>
	</sheetData></worksheet>`

	table, err := Decode(writeArchive(t, map[string]string{
		"xl/workbook.xml":            workbookPart,
		"xl/_rels/workbook.xml.rels": relsPart,
		"xl/worksheets/sheet1.xml":   sheet,
	}))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if table.Headers[0] != "Name" {
		t.Errorf("run concatenation = %q, want %q", table.Headers[0], "Name")
	}
}
