package normalizer

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/custodia-labs/corpus-cli/internal/core/domain"
)

func TestClean(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "crlf to lf",
			input:    "first\r\nsecond\rthird",
			expected: "first\nsecond\nthird",
		},
		{
			name:     "strips control characters",
			input:    "a\x00b\x01c\x7fd",
			expected: "abcd",
		},
		{
			name:     "keeps tabs as single space",
			input:    "col1\t\tcol2   col3",
			expected: "col1 col2 col3",
		},
		{
			name:     "collapses newline runs",
			input:    "para one\n\n\n\n\npara two",
			expected: "para one\n\npara two",
		},
		{
			name:     "trims lines and edges",
			input:    "  leading\ntrailing   \n",
			expected: "leading\ntrailing",
		},
		{
			name:     "whitespace only becomes empty",
			input:    " \t \n \r\n ",
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Clean(tt.input))
		})
	}
}

func TestProcessStripsBoilerplate(t *testing.T) {
	segments := []domain.Segment{
		{Index: 0, Text: "ACME Corp Confidential\nPage one content"},
		{Index: 1, Text: "ACME Corp Confidential\nPage two content"},
		{Index: 2, Text: "ACME Corp Confidential\nPage three content"},
	}

	out := New().Process(context.Background(), segments)

	assert.Equal(t, "Page one content", out[0].Text)
	assert.Equal(t, "Page two content", out[1].Text)
	assert.Equal(t, "Page three content", out[2].Text)
}

func TestProcessKeepsLinesBelowThreshold(t *testing.T) {
	segments := []domain.Segment{
		{Index: 0, Text: "shared line\nunique a"},
		{Index: 1, Text: "shared line\nunique b"},
		{Index: 2, Text: "only here"},
	}

	out := New().Process(context.Background(), segments)

	// Two occurrences stay below the default threshold of three.
	assert.Equal(t, "shared line\nunique a", out[0].Text)
	assert.Equal(t, "shared line\nunique b", out[1].Text)
}

func TestProcessFewSegmentsSkipsBoilerplate(t *testing.T) {
	segments := []domain.Segment{
		{Index: 0, Text: "repeated"},
		{Index: 1, Text: "repeated"},
	}

	out := New().Process(context.Background(), segments)
	assert.Equal(t, "repeated", out[0].Text)
	assert.Equal(t, "repeated", out[1].Text)
}

func TestProcessPreservesSegmentMetadata(t *testing.T) {
	segments := []domain.Segment{
		{Index: 0, Kind: domain.KindPage, Method: domain.MethodOCR, Confidence: 87.5, Text: "  text  "},
	}

	out := New().Process(context.Background(), segments)
	assert.Equal(t, domain.KindPage, out[0].Kind)
	assert.Equal(t, domain.MethodOCR, out[0].Method)
	assert.Equal(t, 87.5, out[0].Confidence)
	assert.Equal(t, "text", out[0].Text)
}
