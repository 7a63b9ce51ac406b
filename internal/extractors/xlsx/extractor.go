// Package xlsx extracts text from XLSX workbooks, one segment per
// sheet. Cell values are laid out row-major with tab-separated columns
// so row structure survives into the chunker.
package xlsx

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/custodia-labs/corpus-cli/internal/core/domain"
	"github.com/custodia-labs/corpus-cli/internal/core/ports/driven"
)

// Ensure Extractor implements the interface.
var _ driven.Extractor = (*Extractor)(nil)

// Extractor handles XLSX workbooks.
type Extractor struct{}

// New creates an XLSX extractor.
func New() *Extractor {
	return &Extractor{}
}

// Format returns the format this extractor handles.
func (e *Extractor) Format() domain.Format {
	return domain.FormatXLSX
}

// Extract parses the workbook into one segment per sheet, in workbook
// order. Each segment starts with the sheet name on its own line.
func (e *Extractor) Extract(ctx context.Context, doc *domain.SourceDocument) ([]domain.Segment, error) {
	if doc == nil || len(doc.Content) == 0 {
		return nil, domain.ErrInvalidInput
	}

	reader, err := zip.NewReader(bytes.NewReader(doc.Content), int64(len(doc.Content)))
	if err != nil {
		return nil, fmt.Errorf("open xlsx archive: %w", domain.ErrCorruptInput)
	}

	names, err := sheetNames(reader)
	if err != nil {
		return nil, err
	}

	shared, err := sharedStrings(reader)
	if err != nil {
		return nil, err
	}

	segments := make([]domain.Segment, 0, len(names))
	for i, name := range names {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		// Worksheet parts are numbered in workbook order.
		rows, err := sheetRows(reader, fmt.Sprintf("xl/worksheets/sheet%d.xml", i+1), shared)
		if err != nil {
			return nil, err
		}

		lines := make([]string, 0, len(rows)+1)
		lines = append(lines, name)
		lines = append(lines, rows...)

		seg := domain.Segment{
			Index:  i,
			Kind:   domain.KindSheet,
			Method: domain.MethodNative,
			Text:   strings.TrimSpace(strings.Join(lines, "\n")),
		}
		segments = append(segments, seg)
	}

	return segments, nil
}

// workbookXML represents the sheet listing in xl/workbook.xml.
type workbookXML struct {
	Sheets struct {
		Sheet []struct {
			Name string `xml:"name,attr"`
		} `xml:"sheet"`
	} `xml:"sheets"`
}

// sheetNames reads the sheet names from xl/workbook.xml in order.
func sheetNames(reader *zip.Reader) ([]string, error) {
	content, err := readPart(reader, "xl/workbook.xml")
	if err != nil {
		return nil, err
	}
	if content == nil {
		return nil, fmt.Errorf("missing xl/workbook.xml: %w", domain.ErrCorruptInput)
	}

	var wb workbookXML
	if err := xml.Unmarshal(content, &wb); err != nil {
		return nil, fmt.Errorf("parse workbook.xml: %w", domain.ErrCorruptInput)
	}

	names := make([]string, 0, len(wb.Sheets.Sheet))
	for _, s := range wb.Sheets.Sheet {
		names = append(names, s.Name)
	}
	return names, nil
}

// sharedStringsXML represents xl/sharedStrings.xml. Entries are either
// a plain <t> or a sequence of rich-text runs.
type sharedStringsXML struct {
	Items []struct {
		Text string `xml:"t"`
		Runs []struct {
			Text string `xml:"t"`
		} `xml:"r"`
	} `xml:"si"`
}

// sharedStrings reads the shared string table. The part is optional.
func sharedStrings(reader *zip.Reader) ([]string, error) {
	content, err := readPart(reader, "xl/sharedStrings.xml")
	if err != nil {
		return nil, err
	}
	if content == nil {
		return nil, nil
	}

	var table sharedStringsXML
	if err := xml.Unmarshal(content, &table); err != nil {
		return nil, fmt.Errorf("parse sharedStrings.xml: %w", domain.ErrCorruptInput)
	}

	strs := make([]string, 0, len(table.Items))
	for _, item := range table.Items {
		if len(item.Runs) > 0 {
			var b strings.Builder
			for _, r := range item.Runs {
				b.WriteString(r.Text)
			}
			strs = append(strs, b.String())
			continue
		}
		strs = append(strs, item.Text)
	}
	return strs, nil
}

// worksheetXML represents the cell grid of one worksheet part.
type worksheetXML struct {
	Rows []struct {
		Cells []struct {
			Type   string `xml:"t,attr"`
			Value  string `xml:"v"`
			Inline struct {
				Text string `xml:"t"`
			} `xml:"is"`
		} `xml:"c"`
	} `xml:"sheetData>row"`
}

// sheetRows renders one worksheet as tab-joined cell values per row.
// Rows with no values are dropped.
func sheetRows(reader *zip.Reader, part string, shared []string) ([]string, error) {
	content, err := readPart(reader, part)
	if err != nil {
		return nil, err
	}
	if content == nil {
		// A sheet listed in the workbook but missing its part.
		return nil, fmt.Errorf("missing %s: %w", part, domain.ErrCorruptInput)
	}

	var ws worksheetXML
	if err := xml.Unmarshal(content, &ws); err != nil {
		return nil, fmt.Errorf("parse %s: %w", part, domain.ErrCorruptInput)
	}

	rows := make([]string, 0, len(ws.Rows))
	for _, row := range ws.Rows {
		cells := make([]string, 0, len(row.Cells))
		for _, cell := range row.Cells {
			cells = append(cells, cellValue(cell.Type, cell.Value, cell.Inline.Text, shared))
		}

		line := strings.TrimRight(strings.Join(cells, "\t"), "\t")
		if strings.TrimSpace(line) == "" {
			continue
		}
		rows = append(rows, line)
	}
	return rows, nil
}

// cellValue resolves a cell to its display text: shared-string lookup
// for t="s", inline string for t="inlineStr", raw value otherwise.
func cellValue(typ, value, inline string, shared []string) string {
	switch typ {
	case "s":
		idx, err := strconv.Atoi(value)
		if err != nil || idx < 0 || idx >= len(shared) {
			return ""
		}
		return shared[idx]
	case "inlineStr":
		return inline
	default:
		return value
	}
}

// readPart returns the named archive part, or nil when absent.
func readPart(reader *zip.Reader, name string) ([]byte, error) {
	for _, file := range reader.File {
		if file.Name != name {
			continue
		}

		rc, err := file.Open()
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", name, domain.ErrCorruptInput)
		}

		content, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", name, domain.ErrCorruptInput)
		}
		return content, nil
	}
	return nil, nil
}
