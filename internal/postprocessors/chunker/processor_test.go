package chunker

import (
	"context"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/corpus-cli/internal/core/domain"
)

func TestNew(t *testing.T) {
	p := New()
	assert.Equal(t, DefaultChunkSize, p.chunkSize)
	assert.Equal(t, DefaultChunkOverlap, p.overlap)
}

func TestNewWithOptions(t *testing.T) {
	p := New(WithChunkSize(500), WithOverlap(100))
	assert.Equal(t, 500, p.chunkSize)
	assert.Equal(t, 100, p.overlap)
}

func TestNewClampsExcessiveOverlap(t *testing.T) {
	p := New(WithChunkSize(100), WithOverlap(150))
	assert.Equal(t, 25, p.overlap)
}

func TestProcessEmptySegments(t *testing.T) {
	doc := &domain.Document{ID: "doc1"}

	tests := []struct {
		name     string
		segments []domain.Segment
	}{
		{name: "no segments", segments: nil},
		{name: "all empty", segments: []domain.Segment{{Index: 0}, {Index: 1}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chunks, err := New().Process(context.Background(), doc, tt.segments)
			require.NoError(t, err)
			assert.Empty(t, chunks)
		})
	}
}

func TestProcessShortTextSingleChunk(t *testing.T) {
	doc := &domain.Document{ID: "doc1"}
	segments := []domain.Segment{{Index: 0, Text: "short content"}}

	chunks, err := New().Process(context.Background(), doc, segments)
	require.NoError(t, err)
	require.Len(t, chunks, 1)

	c := chunks[0]
	assert.Equal(t, "doc1-0000", c.ID)
	assert.Equal(t, "doc1", c.DocumentID)
	assert.Equal(t, "short content", c.Text)
	assert.Equal(t, 0, c.SegmentStart)
	assert.Equal(t, 0, c.SegmentEnd)
	assert.NotZero(t, c.Hash)
}

func TestProcessSlidingWindow(t *testing.T) {
	doc := &domain.Document{ID: "doc1"}
	text := strings.Repeat("abcdefghij", 25) // 250 runes
	segments := []domain.Segment{{Index: 0, Text: text}}

	chunks, err := New(WithChunkSize(100), WithOverlap(20)).Process(context.Background(), doc, segments)
	require.NoError(t, err)

	// Windows start at 0, 80 and 160; the last is clamped to the end
	// of the text and no window starts past it.
	require.Len(t, chunks, 3)
	for i, c := range chunks {
		assert.Equal(t, domain.ChunkID("doc1", i), c.ID)
		assert.LessOrEqual(t, utf8.RuneCountInString(c.Text), 100)
	}
	assert.Equal(t, 90, utf8.RuneCountInString(chunks[2].Text))

	// Consecutive chunks share the overlap region.
	first := []rune(chunks[0].Text)
	second := []rune(chunks[1].Text)
	assert.Equal(t, string(first[80:]), string(second[:20]))
}

func TestProcessDeterministicAcrossRuns(t *testing.T) {
	doc := &domain.Document{ID: "doc1"}
	segments := []domain.Segment{
		{Index: 0, Text: strings.Repeat("stable text ", 40)},
		{Index: 1, Text: strings.Repeat("more text ", 40)},
	}

	p := New(WithChunkSize(150), WithOverlap(30))
	a, err := p.Process(context.Background(), doc, segments)
	require.NoError(t, err)
	b, err := p.Process(context.Background(), doc, segments)
	require.NoError(t, err)

	assert.Equal(t, a, b)
}

func TestProcessMultiByteRunes(t *testing.T) {
	doc := &domain.Document{ID: "doc1"}
	// Cyrillic is two bytes per rune; windows must count runes.
	text := strings.TrimSpace(strings.Repeat("пример текста ", 20))
	segments := []domain.Segment{{Index: 0, Text: text}}

	chunks, err := New(WithChunkSize(100), WithOverlap(0)).Process(context.Background(), doc, segments)
	require.NoError(t, err)
	require.Len(t, chunks, 3)
	for _, c := range chunks {
		assert.LessOrEqual(t, utf8.RuneCountInString(c.Text), 100)
	}
}

func TestProcessSegmentRanges(t *testing.T) {
	doc := &domain.Document{ID: "doc1"}
	segments := []domain.Segment{
		{Index: 0, Text: strings.Repeat("a", 60)},
		{Index: 1, Text: ""}, // empty segment contributes nothing
		{Index: 2, Text: strings.Repeat("b", 60)},
	}

	chunks, err := New(WithChunkSize(200), WithOverlap(0)).Process(context.Background(), doc, segments)
	require.NoError(t, err)
	require.Len(t, chunks, 1)

	assert.Equal(t, 0, chunks[0].SegmentStart)
	assert.Equal(t, 2, chunks[0].SegmentEnd)
}

func TestProcessNilDocument(t *testing.T) {
	_, err := New().Process(context.Background(), nil, nil)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestProcessSameTextSameHash(t *testing.T) {
	docA := &domain.Document{ID: "docA"}
	docB := &domain.Document{ID: "docB"}
	segments := []domain.Segment{{Index: 0, Text: "identical content"}}

	a, err := New().Process(context.Background(), docA, segments)
	require.NoError(t, err)
	b, err := New().Process(context.Background(), docB, segments)
	require.NoError(t, err)

	require.Len(t, a, 1)
	require.Len(t, b, 1)
	assert.Equal(t, a[0].Hash, b[0].Hash)
	assert.NotEqual(t, a[0].ID, b[0].ID)
}
