package services

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/corpus-cli/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/corpus-cli/internal/core/domain"
	"github.com/custodia-labs/corpus-cli/internal/core/ports/driven"
	"github.com/custodia-labs/corpus-cli/internal/extractors"
	"github.com/custodia-labs/corpus-cli/internal/extractors/pdf"
	"github.com/custodia-labs/corpus-cli/internal/postprocessors"
	"github.com/custodia-labs/corpus-cli/internal/postprocessors/chunker"
	"github.com/custodia-labs/corpus-cli/internal/postprocessors/normalizer"
)

// fakeSource serves canned documents keyed by ID.
type fakeSource struct {
	refs    []domain.SourceRef
	content map[string][]byte
}

func (f *fakeSource) List(_ context.Context) ([]domain.SourceRef, error) {
	return f.refs, nil
}

func (f *fakeSource) Read(_ context.Context, ref domain.SourceRef) ([]byte, error) {
	content, ok := f.content[ref.ID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return content, nil
}

func (f *fakeSource) add(id, path string, format domain.Format, content string) {
	f.refs = append(f.refs, domain.SourceRef{ID: id, Path: path, Format: format})
	if f.content == nil {
		f.content = map[string][]byte{}
	}
	f.content[id] = []byte(content)
}

// fakeRegistry delegates extraction to a function.
type fakeRegistry struct {
	extract func(doc *domain.SourceDocument) ([]domain.Segment, error)
}

func (f *fakeRegistry) Extract(_ context.Context, doc *domain.SourceDocument) ([]domain.Segment, error) {
	return f.extract(doc)
}

func (f *fakeRegistry) Register(driven.Extractor) {}

func (f *fakeRegistry) SupportedFormats() []domain.Format { return nil }

// textRegistry treats the document bytes as one native-text segment.
func textRegistry() *fakeRegistry {
	return &fakeRegistry{extract: func(doc *domain.SourceDocument) ([]domain.Segment, error) {
		return []domain.Segment{{
			Index:  0,
			Kind:   domain.KindDocument,
			Text:   string(doc.Content),
			Method: domain.MethodNative,
		}}, nil
	}}
}

// fakeOCR returns a fixed recognition result.
type fakeOCR struct {
	availableErr error
	result       driven.OCRResult
	calls        int
}

func (f *fakeOCR) Available() error { return f.availableErr }

func (f *fakeOCR) Recognize(_ context.Context, _ driven.OCRInput) (*driven.OCRResult, error) {
	f.calls++
	result := f.result
	return &result, nil
}

// fakeEmbedder produces deterministic three-dimensional vectors.
type fakeEmbedder struct {
	pingErr  error
	batchErr error
	batches  int
}

func (f *fakeEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	return []float32{float32(len(text)), 1, 0}, nil
}

func (f *fakeEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	f.batches++
	if f.batchErr != nil {
		return nil, f.batchErr
	}
	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		vectors[i], _ = f.Embed(ctx, text)
	}
	return vectors, nil
}

func (f *fakeEmbedder) Dimensions() int { return 3 }

func (f *fakeEmbedder) ModelName() string { return "fake-model" }

func (f *fakeEmbedder) Ping(_ context.Context) error { return f.pingErr }

func (f *fakeEmbedder) Close() error { return nil }

// fixture bundles the indexer with its collaborators.
type fixture struct {
	source   *fakeSource
	registry *fakeRegistry
	ocr      *fakeOCR
	embedder *fakeEmbedder
	store    *memory.Store
}

func (f *fixture) indexer(opts ...IndexerOption) *IndexerService {
	pipeline := postprocessors.NewPipeline(normalizer.New(), chunker.New())
	return NewIndexerService(
		f.source, f.registry, f.ocr, pipeline, f.embedder,
		f.store, f.store, f.store, opts...,
	)
}

func newFixture() *fixture {
	return &fixture{
		source:   &fakeSource{},
		registry: textRegistry(),
		ocr:      &fakeOCR{},
		embedder: &fakeEmbedder{},
		store:    memory.NewStore(),
	}
}

func TestRunIndexesDocuments(t *testing.T) {
	f := newFixture()
	f.source.add("doc1", "/docs/a.pdf", domain.FormatPDF, "alpha content for the first document")
	f.source.add("doc2", "/docs/b.html", domain.FormatHTML, "beta content for the second document")

	report, err := f.indexer().Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, report.Attempted)
	assert.Equal(t, 2, report.Succeeded)
	assert.Equal(t, 2, report.ChunksProduced)
	assert.Zero(t, report.Failed)
	assert.NotEmpty(t, report.RunID)
	assert.False(t, report.FinishedAt.Before(report.StartedAt))

	count, err := f.store.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	entry, err := f.store.Get(context.Background(), domain.ChunkID("doc1", 0))
	require.NoError(t, err)
	assert.Equal(t, domain.FormatPDF, entry.Format)
	assert.Equal(t, domain.MethodNative, entry.Method)

	doc, err := f.store.GetDocument(context.Background(), "doc1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusIndexed, doc.Status)
}

func TestRunSkipsAlreadyIndexed(t *testing.T) {
	f := newFixture()
	f.source.add("doc1", "/docs/a.pdf", domain.FormatPDF, "stable content that does not change")

	svc := f.indexer()
	_, err := svc.Run(context.Background())
	require.NoError(t, err)

	report, err := svc.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Attempted)
	assert.Equal(t, 1, report.Skipped)
	assert.Zero(t, report.ChunksProduced)
	require.Len(t, report.Documents, 1)
	assert.True(t, report.Documents[0].Skipped)
}

func TestRunIsolatesCorruptDocument(t *testing.T) {
	f := newFixture()
	f.source.add("good", "/docs/good.pdf", domain.FormatPDF, "perfectly fine document text")
	f.source.add("bad", "/docs/bad.pdf", domain.FormatPDF, "CORRUPT")
	f.registry = &fakeRegistry{extract: func(doc *domain.SourceDocument) ([]domain.Segment, error) {
		if string(doc.Content) == "CORRUPT" {
			return nil, fmt.Errorf("parsing pdf: %w", domain.ErrCorruptInput)
		}
		return []domain.Segment{{Text: string(doc.Content), Method: domain.MethodNative}}, nil
	}}

	report, err := f.indexer().Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, report.Succeeded)
	assert.Equal(t, 1, report.Failed)

	var failed *domain.DocumentOutcome
	for i := range report.Documents {
		if report.Documents[i].Status == domain.StatusFailed {
			failed = &report.Documents[i]
		}
	}
	require.NotNil(t, failed)
	assert.Equal(t, "bad", failed.DocumentID)
	assert.Equal(t, "corrupt input", failed.FailureKind)

	doc, err := f.store.GetDocument(context.Background(), "bad")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusFailed, doc.Status)
	assert.NotEmpty(t, doc.Err)
}

func TestRunFatalWhenModelUnavailable(t *testing.T) {
	f := newFixture()
	f.source.add("doc1", "/docs/a.pdf", domain.FormatPDF, "text")
	f.embedder.pingErr = fmt.Errorf("connect refused: %w", domain.ErrModelUnavailable)

	report, err := f.indexer().Run(context.Background())
	require.ErrorIs(t, err, domain.ErrModelUnavailable)
	require.NotNil(t, report)
	assert.NotEmpty(t, report.FatalError)
	assert.Zero(t, report.Attempted)

	count, err := f.store.Count(context.Background())
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestRunEmbedFailureAbandonsRun(t *testing.T) {
	f := newFixture()
	f.source.add("doc1", "/docs/a.pdf", domain.FormatPDF, "some text to embed")
	f.embedder.batchErr = fmt.Errorf("model gone: %w", domain.ErrModelUnavailable)

	report, err := f.indexer(WithWorkers(1)).Run(context.Background())
	require.ErrorIs(t, err, domain.ErrModelUnavailable)
	require.NotNil(t, report)
	assert.NotEmpty(t, report.FatalError)
}

func TestRunOCRUnavailableDegradesToPartial(t *testing.T) {
	f := newFixture()
	f.source.add("doc1", "/docs/scan.pdf", domain.FormatPDF, "native page text that extracts fine")
	f.registry = &fakeRegistry{extract: func(doc *domain.SourceDocument) ([]domain.Segment, error) {
		return []domain.Segment{
			{Index: 0, Kind: domain.KindPage, Text: string(doc.Content), Method: domain.MethodNative},
			{Index: 1, Kind: domain.KindPage, NeedsOCR: true},
		}, nil
	}}
	f.ocr.availableErr = fmt.Errorf("tesseract not found: %w", domain.ErrOCRUnavailable)

	report, err := f.indexer().Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, report.Partial)
	assert.Equal(t, 1, report.ChunksProduced)
	require.Len(t, report.Documents, 1)
	assert.Equal(t, domain.StatusPartial, report.Documents[0].Status)

	doc, err := f.store.GetDocument(context.Background(), "doc1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPartial, doc.Status)
}

func TestRunOCRFillsScannedSegments(t *testing.T) {
	f := newFixture()
	f.source.add("scan1", "/docs/scan.png", domain.FormatImage, "raw image bytes")
	f.registry = &fakeRegistry{extract: func(_ *domain.SourceDocument) ([]domain.Segment, error) {
		return []domain.Segment{{Index: 0, Kind: domain.KindImage, NeedsOCR: true}}, nil
	}}
	f.ocr.result = driven.OCRResult{Text: "recognised words from the scan", Confidence: 91.5}

	report, err := f.indexer().Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, report.Succeeded)
	assert.Equal(t, 1, f.ocr.calls)

	entry, err := f.store.Get(context.Background(), domain.ChunkID("scan1", 0))
	require.NoError(t, err)
	assert.Equal(t, domain.MethodOCR, entry.Method)
	assert.Equal(t, 91.5, entry.Confidence)
	assert.Contains(t, entry.Text, "recognised words")
}

func TestRunSuppressesDuplicateChunks(t *testing.T) {
	f := newFixture()
	f.source.add("doc1", "/docs/a.pdf", domain.FormatPDF, "identical body shared by both files")
	f.source.add("doc2", "/docs/b.pdf", domain.FormatPDF, "identical body shared by both files")

	report, err := f.indexer(WithWorkers(1)).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, report.Succeeded)
	assert.Equal(t, 1, report.ChunksProduced)
	assert.Equal(t, 1, report.DuplicatesSuppressed)

	count, err := f.store.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	// The surviving entry carries the suppressed count.
	entry, err := f.store.Get(context.Background(), domain.ChunkID("doc1", 0))
	require.NoError(t, err)
	assert.Equal(t, 1, entry.Duplicates)
}

func TestRunEmptyDocumentIndexedNoContent(t *testing.T) {
	f := newFixture()
	f.source.add("empty", "/docs/empty.pdf", domain.FormatPDF, "")

	report, err := f.indexer().Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, report.Succeeded)
	assert.Zero(t, report.ChunksProduced)
	require.Len(t, report.Documents, 1)
	assert.True(t, report.Documents[0].NoContent)
	assert.Equal(t, domain.StatusIndexed, report.Documents[0].Status)

	doc, err := f.store.GetDocument(context.Background(), "empty")
	require.NoError(t, err)
	assert.True(t, doc.NoContent)
}

func TestRunEmptyDocumentBypassesExtractors(t *testing.T) {
	// A zero-byte file must not reach the format parser, which would
	// reject it as invalid input.
	f := newFixture()
	f.source.add("empty", "/docs/empty.pdf", domain.FormatPDF, "")

	registry := extractors.NewRegistry()
	registry.Register(pdf.New(32))

	pipeline := postprocessors.NewPipeline(normalizer.New(), chunker.New())
	svc := NewIndexerService(
		f.source, registry, f.ocr, pipeline, f.embedder,
		f.store, f.store, f.store,
	)

	report, err := svc.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, report.Succeeded)
	assert.Zero(t, report.Failed)
	require.Len(t, report.Documents, 1)
	assert.Equal(t, domain.StatusIndexed, report.Documents[0].Status)
	assert.True(t, report.Documents[0].NoContent)
	assert.Empty(t, report.Documents[0].FailureKind)

	doc, err := f.store.GetDocument(context.Background(), "empty")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusIndexed, doc.Status)
	assert.True(t, doc.NoContent)
}

func TestRunRetryAfterFatalRunIndexesContent(t *testing.T) {
	f := newFixture()
	f.source.add("doc1", "/docs/a.pdf", domain.FormatPDF, "content that must survive the outage")
	f.embedder.batchErr = fmt.Errorf("model gone: %w", domain.ErrModelUnavailable)

	svc := f.indexer(WithWorkers(1))
	_, err := svc.Run(context.Background())
	require.ErrorIs(t, err, domain.ErrModelUnavailable)

	// The aborted run wrote nothing, so it persists no hashes either.
	hashes, err := f.store.LoadHashes(context.Background())
	require.NoError(t, err)
	assert.Empty(t, hashes)

	// With the backend restored the document indexes for real instead
	// of being suppressed as a duplicate of entries that never existed.
	f.embedder.batchErr = nil
	report, err := svc.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, report.Succeeded)
	assert.Equal(t, 1, report.ChunksProduced)
	assert.Zero(t, report.DuplicatesSuppressed)
	require.Len(t, report.Documents, 1)
	assert.False(t, report.Documents[0].NoContent)

	count, err := f.store.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestRebuildReprocessesEverything(t *testing.T) {
	f := newFixture()
	f.source.add("doc1", "/docs/a.pdf", domain.FormatPDF, "content that outlives the rebuild")

	svc := f.indexer()
	_, err := svc.Run(context.Background())
	require.NoError(t, err)

	report, err := svc.Rebuild(context.Background())
	require.NoError(t, err)

	// Nothing skipped: the rebuild wiped the checkpoints.
	assert.Equal(t, 1, report.Succeeded)
	assert.Zero(t, report.Skipped)
	assert.Equal(t, 1, report.ChunksProduced)

	count, err := f.store.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestStatusReflectsFinishedRun(t *testing.T) {
	f := newFixture()
	f.source.add("doc1", "/docs/a.pdf", domain.FormatPDF, "text")
	f.source.add("bad", "/docs/bad.pdf", domain.FormatPDF, "CORRUPT")
	f.registry = &fakeRegistry{extract: func(doc *domain.SourceDocument) ([]domain.Segment, error) {
		if string(doc.Content) == "CORRUPT" {
			return nil, domain.ErrCorruptInput
		}
		return []domain.Segment{{Text: string(doc.Content), Method: domain.MethodNative}}, nil
	}}

	svc := f.indexer()
	_, err := svc.Run(context.Background())
	require.NoError(t, err)

	status, err := svc.Status(context.Background())
	require.NoError(t, err)
	assert.False(t, status.Running)
	assert.Equal(t, 2, status.DocumentsProcessed)
	assert.Equal(t, 1, status.ErrorCount)
}
