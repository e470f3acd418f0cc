// Package xlsx decodes the first worksheet of an OOXML spreadsheet package
// into a rectangular table of text cells, without an external spreadsheet
// library.
//
// Only the subset of the format needed by the import workflow is supported:
// literal cell values, shared strings and inline strings on the first
// worksheet. Formulas, styles, merged cells and additional sheets are
// ignored.
package xlsx

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"
)

// Table is the decoded worksheet: a header row followed by data rows.
// Every row is dense; positions that were absent in the sparse cell list
// are filled with the empty string.
type Table struct {
	Headers []string
	Rows    [][]string
}

// DecodeError indicates an unreadable or malformed spreadsheet package,
// or one that is missing a required part.
type DecodeError struct {
	Msg string
	Err error
}

func (e *DecodeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *DecodeError) Unwrap() error { return e.Err }

func decodeErr(msg string, err error) *DecodeError {
	return &DecodeError{Msg: msg, Err: err}
}

// Decode parses an OOXML package and returns its first worksheet as a
// table. The first row whose cells are not all blank becomes the header
// row; subsequent all-blank rows are skipped and do not count as data.
// A worksheet with a header but no data rows decodes successfully with
// zero rows.
func Decode(data []byte) (*Table, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, decodeErr("unable to open spreadsheet archive", err)
	}

	shared, err := readSharedStrings(zr)
	if err != nil {
		return nil, err
	}

	sheetPath, err := resolveFirstSheetPath(zr)
	if err != nil {
		return nil, err
	}

	sheetData, err := readArchiveFile(zr, sheetPath)
	if err != nil {
		return nil, decodeErr("unable to read worksheet data", err)
	}

	var sheet worksheetXML
	if err := xml.Unmarshal(sheetData, &sheet); err != nil {
		return nil, decodeErr("malformed worksheet XML", err)
	}

	table := &Table{}
	for _, row := range sheet.SheetData.Rows {
		dense, ok := denseRow(row, shared)
		if !ok || rowIsBlank(dense) {
			continue
		}
		if table.Headers == nil {
			table.Headers = dense
			continue
		}
		table.Rows = append(table.Rows, dense)
	}

	if table.Headers == nil {
		return nil, decodeErr("spreadsheet does not contain header information", nil)
	}

	return table, nil
}

// sharedStringsXML models xl/sharedStrings.xml. A string item holds either
// a single text node or a sequence of rich-text runs.
type sharedStringsXML struct {
	Items []stringItemXML `xml:"si"`
}

type stringItemXML struct {
	T    *string      `xml:"t"`
	Runs []textRunXML `xml:"r"`
}

type textRunXML struct {
	T string `xml:"t"`
}

func (si stringItemXML) text() string {
	if si.T != nil {
		return *si.T
	}
	var b strings.Builder
	for _, run := range si.Runs {
		b.WriteString(run.T)
	}
	return b.String()
}

// readSharedStrings loads the shared-string table. A package without one
// is valid and yields an empty table.
func readSharedStrings(zr *zip.Reader) ([]string, error) {
	data, err := readArchiveFile(zr, "xl/sharedStrings.xml")
	if err != nil {
		return nil, nil
	}

	var sst sharedStringsXML
	if err := xml.Unmarshal(data, &sst); err != nil {
		return nil, decodeErr("malformed shared-string table", err)
	}

	strs := make([]string, len(sst.Items))
	for i, si := range sst.Items {
		strs[i] = si.text()
	}
	return strs, nil
}

type workbookXML struct {
	Sheets struct {
		Sheets []struct {
			Name  string `xml:"name,attr"`
			RelID string `xml:"id,attr"`
		} `xml:"sheet"`
	} `xml:"sheets"`
}

type relationshipsXML struct {
	Relationships []struct {
		ID     string `xml:"Id,attr"`
		Target string `xml:"Target,attr"`
	} `xml:"Relationship"`
}

var worksheetPathPattern = regexp.MustCompile(`(?i)^xl/worksheets/[^/]+\.xml$`)

// resolveFirstSheetPath locates the archive entry holding the first
// worksheet. It follows the workbook's sheet-to-relationship mapping and
// falls back to scanning the archive for a worksheet-shaped entry when the
// relationship cannot be resolved.
func resolveFirstSheetPath(zr *zip.Reader) (string, error) {
	workbookData, err := readArchiveFile(zr, "xl/workbook.xml")
	if err != nil {
		return "", decodeErr("spreadsheet is missing workbook metadata", err)
	}

	var workbook workbookXML
	if err := xml.Unmarshal(workbookData, &workbook); err != nil {
		return "", decodeErr("malformed workbook metadata", err)
	}
	if len(workbook.Sheets.Sheets) == 0 {
		return "", decodeErr("workbook does not contain any sheets", nil)
	}

	relID := workbook.Sheets.Sheets[0].RelID
	if target, ok := lookupRelationship(zr, relID); ok {
		return normalizeSheetTarget(target), nil
	}

	for _, f := range zr.File {
		if worksheetPathPattern.MatchString(f.Name) {
			return f.Name, nil
		}
	}

	return "", decodeErr("unable to locate the first worksheet", nil)
}

func lookupRelationship(zr *zip.Reader, relID string) (string, bool) {
	relsData, err := readArchiveFile(zr, "xl/_rels/workbook.xml.rels")
	if err != nil {
		return "", false
	}

	var rels relationshipsXML
	if err := xml.Unmarshal(relsData, &rels); err != nil {
		return "", false
	}

	for _, rel := range rels.Relationships {
		if rel.ID == relID && rel.Target != "" {
			return rel.Target, true
		}
	}
	return "", false
}

// normalizeSheetTarget maps a relationship target onto an archive entry
// name. Targets vary between producers: absolute ("/xl/worksheets/..."),
// workbook-relative ("worksheets/...") and parent-relative ("../...").
func normalizeSheetTarget(target string) string {
	target = strings.TrimPrefix(target, "/")
	for strings.HasPrefix(target, "../") {
		target = target[3:]
	}
	if strings.HasPrefix(target, "xl/") {
		return target
	}
	return "xl/" + target
}

type worksheetXML struct {
	SheetData struct {
		Rows []rowXML `xml:"row"`
	} `xml:"sheetData"`
}

type rowXML struct {
	Cells []cellXML `xml:"c"`
}

type cellXML struct {
	Ref    string         `xml:"r,attr"`
	Type   string         `xml:"t,attr"`
	Value  *string        `xml:"v"`
	Inline *stringItemXML `xml:"is"`
}

// denseRow reconstructs a sparse cell list into a dense slice spanning
// column 0 through the maximum occupied column. Returns false for a row
// with no cells at all.
func denseRow(row rowXML, shared []string) ([]string, bool) {
	cells := make(map[int]string, len(row.Cells))
	maxIdx := -1

	for _, cell := range row.Cells {
		idx := columnIndex(columnLetters(cell.Ref))
		if idx < 0 {
			continue
		}
		if idx > maxIdx {
			maxIdx = idx
		}
		cells[idx] = cellValue(cell, shared)
	}

	if maxIdx < 0 {
		return nil, false
	}

	dense := make([]string, maxIdx+1)
	for i := range dense {
		dense[i] = cells[i]
	}
	return dense, true
}

// cellValue decodes a cell according to its declared type: shared-string
// reference, inline string, or literal text.
func cellValue(cell cellXML, shared []string) string {
	switch cell.Type {
	case "s":
		if cell.Value == nil {
			return ""
		}
		idx, err := strconv.Atoi(strings.TrimSpace(*cell.Value))
		if err != nil || idx < 0 || idx >= len(shared) {
			return ""
		}
		return shared[idx]
	case "inlineStr":
		if cell.Inline == nil {
			return ""
		}
		return cell.Inline.text()
	default:
		if cell.Value == nil {
			return ""
		}
		return *cell.Value
	}
}

// columnLetters strips the row digits from a cell reference like "AA7".
func columnLetters(ref string) string {
	for i := 0; i < len(ref); i++ {
		if ref[i] >= '0' && ref[i] <= '9' {
			return ref[:i]
		}
	}
	return ref
}

// columnIndex decodes column letters to a 0-based index using base-26
// positional notation: "A"=0, "Z"=25, "AA"=26, "BA"=52.
func columnIndex(column string) int {
	if column == "" {
		return -1
	}
	idx := 0
	for i := 0; i < len(column); i++ {
		c := column[i]
		if c >= 'a' && c <= 'z' {
			c -= 'a' - 'A'
		}
		if c < 'A' || c > 'Z' {
			return -1
		}
		idx = idx*26 + int(c-'A') + 1
	}
	return idx - 1
}

func rowIsBlank(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

func readArchiveFile(zr *zip.Reader, name string) ([]byte, error) {
	f, err := zr.Open(name)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}
