package postprocessors

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/corpus-cli/internal/core/domain"
	"github.com/custodia-labs/corpus-cli/internal/postprocessors/chunker"
	"github.com/custodia-labs/corpus-cli/internal/postprocessors/normalizer"
)

func newPipeline(opts ...chunker.Option) *Pipeline {
	return NewPipeline(normalizer.New(), chunker.New(opts...))
}

func TestProcessNormalizesBeforeChunking(t *testing.T) {
	doc := &domain.Document{ID: "doc1"}
	segments := []domain.Segment{
		{Index: 0, Text: "messy\r\n\r\n\r\n\r\ntext   with    runs"},
	}

	chunks, err := newPipeline().Process(context.Background(), doc, segments)
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, "messy\n\ntext with runs", chunks[0].Text)
}

func TestProcessEmptyDocumentYieldsNoChunks(t *testing.T) {
	doc := &domain.Document{ID: "doc1"}
	segments := []domain.Segment{
		{Index: 0, Text: "   \r\n  "},
		{Index: 1, Text: ""},
	}

	chunks, err := newPipeline().Process(context.Background(), doc, segments)
	require.NoError(t, err)
	assert.Empty(t, chunks)
}

func TestProcessBoilerplateDoesNotReachChunks(t *testing.T) {
	doc := &domain.Document{ID: "doc1"}
	segments := []domain.Segment{
		{Index: 0, Text: "Footer v1.2\n" + strings.Repeat("alpha ", 30)},
		{Index: 1, Text: "Footer v1.2\n" + strings.Repeat("beta ", 30)},
		{Index: 2, Text: "Footer v1.2\n" + strings.Repeat("gamma ", 30)},
	}

	chunks, err := newPipeline().Process(context.Background(), doc, segments)
	require.NoError(t, err)
	require.NotEmpty(t, chunks)
	for _, c := range chunks {
		assert.NotContains(t, c.Text, "Footer v1.2")
	}
}

func TestProcessNilDocument(t *testing.T) {
	_, err := newPipeline().Process(context.Background(), nil, nil)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}
