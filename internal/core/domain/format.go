package domain

import (
	"path/filepath"
	"strings"
)

// Format identifies the source document format.
// The set is closed: dispatching on it is exhaustive, and anything
// outside it fails extraction with ErrUnsupportedFormat.
type Format string

// Supported document formats.
const (
	// FormatPDF is a PDF document; pages with no usable text layer
	// fall back to OCR.
	FormatPDF Format = "pdf"

	// FormatDOCX is an Office Open XML word-processing document.
	FormatDOCX Format = "docx"

	// FormatXLSX is an Office Open XML spreadsheet.
	FormatXLSX Format = "xlsx"

	// FormatImage is a scanned page image (PNG, JPEG, TIFF).
	FormatImage Format = "image"

	// FormatHTML is an HTML export, e.g. from a CMS database.
	FormatHTML Format = "html"
)

// IsValid returns true if the format is part of the supported set.
func (f Format) IsValid() bool {
	switch f {
	case FormatPDF, FormatDOCX, FormatXLSX, FormatImage, FormatHTML:
		return true
	default:
		return false
	}
}

// String returns the string representation.
func (f Format) String() string {
	return string(f)
}

// formatByExtension maps lower-case file extensions to formats.
var formatByExtension = map[string]Format{
	".pdf":  FormatPDF,
	".docx": FormatDOCX,
	".xlsx": FormatXLSX,
	".png":  FormatImage,
	".jpg":  FormatImage,
	".jpeg": FormatImage,
	".tif":  FormatImage,
	".tiff": FormatImage,
	".html": FormatHTML,
	".htm":  FormatHTML,
}

// FormatForPath infers the document format from a file path extension.
// The second return value is false when the extension is not recognised.
func FormatForPath(path string) (Format, bool) {
	ext := strings.ToLower(filepath.Ext(path))
	f, ok := formatByExtension[ext]
	return f, ok
}
