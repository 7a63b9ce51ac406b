package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/custodia-labs/corpus-cli/internal/core/domain"
	"github.com/custodia-labs/corpus-cli/internal/core/ports/driven"
	"github.com/custodia-labs/corpus-cli/internal/core/ports/driving"
	"github.com/custodia-labs/corpus-cli/internal/dedup"
	"github.com/custodia-labs/corpus-cli/internal/logger"
)

// Ensure IndexerService implements the interface.
var _ driving.Indexer = (*IndexerService)(nil)

// DefaultWorkers is the default document-level concurrency.
const DefaultWorkers = 4

// errAbandoned marks a document dropped because the run was cancelled
// before it reached a terminal status. Abandoned documents produce no
// outcome.
var errAbandoned = errors.New("document abandoned")

// IndexerOption configures the indexer service.
type IndexerOption func(*IndexerService)

// WithWorkers sets the number of documents processed concurrently.
func WithWorkers(n int) IndexerOption {
	return func(s *IndexerService) {
		if n > 0 {
			s.workers = n
		}
	}
}

// WithNearDuplicates enables near-duplicate suppression at the given
// similarity threshold.
func WithNearDuplicates(threshold float64) IndexerOption {
	return func(s *IndexerService) {
		s.nearDuplicates = true
		s.similarity = threshold
	}
}

// IndexerService drives documents from the source to the index store.
// Documents are isolated units of work: one corrupt file fails alone
// while its siblings continue. Only an unreachable embedding backend
// is fatal to the whole run.
type IndexerService struct {
	source      driven.DocumentSource
	registry    driven.ExtractorRegistry
	ocr         driven.OCREngine
	pipeline    driven.TextPipeline
	embedder    driven.EmbeddingService
	index       driven.IndexStore
	checkpoints driven.CheckpointStore
	hashes      driven.HashStore

	workers        int
	nearDuplicates bool
	similarity     float64

	// embedMu serialises batch calls to the embedding backend so
	// concurrent documents do not interleave sub-batches.
	embedMu sync.Mutex

	// statusMu guards the run-progress counters below.
	statusMu  sync.Mutex
	running   bool
	processed int
	errCount  int
}

// NewIndexerService creates the pipeline orchestrator.
func NewIndexerService(
	source driven.DocumentSource,
	registry driven.ExtractorRegistry,
	ocr driven.OCREngine,
	pipeline driven.TextPipeline,
	embedder driven.EmbeddingService,
	index driven.IndexStore,
	checkpoints driven.CheckpointStore,
	hashes driven.HashStore,
	opts ...IndexerOption,
) *IndexerService {
	s := &IndexerService{
		source:      source,
		registry:    registry,
		ocr:         ocr,
		pipeline:    pipeline,
		embedder:    embedder,
		index:       index,
		checkpoints: checkpoints,
		hashes:      hashes,
		workers:     DefaultWorkers,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run processes every discovered document to a terminal status.
// The report is produced even when the run fails.
func (s *IndexerService) Run(ctx context.Context) (*domain.Report, error) {
	report := &domain.Report{
		RunID:     uuid.NewString(),
		StartedAt: time.Now().UTC(),
	}
	defer func() {
		report.FinishedAt = time.Now().UTC()
	}()

	s.beginRun()
	defer s.endRun()

	logger.Section("Indexing Run")
	logger.Debug("Run ID: %s", report.RunID)

	// A missing model fails the run before any extraction work.
	if err := s.embedder.Ping(ctx); err != nil {
		report.FatalError = err.Error()
		return report, fmt.Errorf("embedding backend: %w", err)
	}

	refs, err := s.source.List(ctx)
	if err != nil {
		report.FatalError = err.Error()
		return report, fmt.Errorf("listing documents: %w", err)
	}
	logger.Info("Discovered %d documents", len(refs))

	seen, err := s.hashes.LoadHashes(ctx)
	if err != nil {
		report.FatalError = err.Error()
		return report, fmt.Errorf("loading chunk hashes: %w", err)
	}
	var dedupOpts []dedup.Option
	if s.nearDuplicates {
		dedupOpts = append(dedupOpts, dedup.WithNearDuplicates(s.similarity))
	}
	deduper := dedup.New(seen, dedupOpts...)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	jobs := make(chan domain.SourceRef)
	outcomes := make(chan domain.DocumentOutcome)

	var fatalMu sync.Mutex
	var fatalErr error
	recordFatal := func(err error) {
		fatalMu.Lock()
		if fatalErr == nil {
			fatalErr = err
			cancel()
		}
		fatalMu.Unlock()
	}

	var wg sync.WaitGroup
	for i := 0; i < s.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for ref := range jobs {
				outcome, err := s.processDocument(runCtx, ref, deduper)
				if err != nil {
					if !errors.Is(err, errAbandoned) {
						recordFatal(err)
					}
					continue
				}
				s.recordProgress(outcome.Status)
				outcomes <- outcome
			}
		}()
	}

	go func() {
		defer close(jobs)
		for _, ref := range refs {
			select {
			case jobs <- ref:
			case <-runCtx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(outcomes)
	}()

	for outcome := range outcomes {
		report.Add(outcome)
	}

	// Only hashes of chunks that reached the index are persisted, so an
	// aborted run cannot suppress its own content as duplicates on retry.
	if err := s.hashes.SaveHashes(ctx, deduper.Hashes()); err != nil {
		logger.Warn("persisting chunk hashes: %v", err)
	}

	fatalMu.Lock()
	defer fatalMu.Unlock()
	if fatalErr != nil {
		report.FatalError = fatalErr.Error()
		return report, fatalErr
	}
	if err := ctx.Err(); err != nil {
		report.FatalError = err.Error()
		return report, err
	}

	logger.Info("Run complete: %d indexed, %d partial, %d failed, %d skipped",
		report.Succeeded, report.Partial, report.Failed, report.Skipped)
	return report, nil
}

// Rebuild discards the index and reprocesses everything.
func (s *IndexerService) Rebuild(ctx context.Context) (*domain.Report, error) {
	logger.Section("Index Rebuild")
	if err := s.index.Rebuild(ctx); err != nil {
		return nil, fmt.Errorf("discarding index: %w", err)
	}
	return s.Run(ctx)
}

// Status returns progress for a run in flight.
func (s *IndexerService) Status(_ context.Context) (*driving.RunStatus, error) {
	s.statusMu.Lock()
	defer s.statusMu.Unlock()
	return &driving.RunStatus{
		Running:            s.running,
		DocumentsProcessed: s.processed,
		ErrorCount:         s.errCount,
	}, nil
}

func (s *IndexerService) beginRun() {
	s.statusMu.Lock()
	s.running = true
	s.processed = 0
	s.errCount = 0
	s.statusMu.Unlock()
}

func (s *IndexerService) endRun() {
	s.statusMu.Lock()
	s.running = false
	s.statusMu.Unlock()
}

func (s *IndexerService) recordProgress(status domain.Status) {
	s.statusMu.Lock()
	s.processed++
	if status == domain.StatusFailed {
		s.errCount++
	}
	s.statusMu.Unlock()
}

// processDocument drives one document to a terminal status. A non-nil
// error is returned only for run-fatal conditions or when the run was
// cancelled mid-document; per-document failures become outcomes.
func (s *IndexerService) processDocument(
	ctx context.Context, ref domain.SourceRef, deduper *dedup.Deduper,
) (domain.DocumentOutcome, error) {
	if err := ctx.Err(); err != nil {
		return domain.DocumentOutcome{}, errAbandoned
	}

	outcome := domain.DocumentOutcome{
		DocumentID: ref.ID,
		Path:       ref.Path,
		Format:     ref.Format,
	}

	// Skip documents a previous run already indexed.
	if existing, err := s.checkpoints.GetDocument(ctx, ref.ID); err == nil {
		if existing.Status == domain.StatusIndexed {
			logger.Debug("Skipping already indexed document: %s", ref.Path)
			outcome.Status = existing.Status
			outcome.NoContent = existing.NoContent
			outcome.Skipped = true
			return outcome, nil
		}
	}

	doc := &domain.Document{
		ID:     ref.ID,
		Path:   ref.Path,
		Format: ref.Format,
		Status: domain.StatusPending,
	}
	s.checkpoint(ctx, doc)

	content, err := s.source.Read(ctx, ref)
	if err != nil {
		return s.fail(ctx, doc, outcome, err)
	}

	s.advance(ctx, doc, domain.StatusExtracting)

	// A zero-byte file has nothing to extract; it indexes as an empty
	// document instead of failing in a format parser.
	var segments []domain.Segment
	if len(content) > 0 {
		segments, err = s.registry.Extract(ctx, &domain.SourceDocument{
			ID:      ref.ID,
			Path:    ref.Path,
			Format:  ref.Format,
			Content: content,
		})
		if err != nil {
			return s.fail(ctx, doc, outcome, err)
		}
	} else {
		logger.Debug("Document %s is empty, skipping extraction", doc.Path)
	}

	degraded, degradedErr := s.fillOCR(ctx, doc, content, segments)
	if err := ctx.Err(); err != nil {
		return domain.DocumentOutcome{}, errAbandoned
	}

	s.advance(ctx, doc, domain.StatusChunking)
	chunks, err := s.pipeline.Process(ctx, doc, segments)
	if err != nil {
		return s.fail(ctx, doc, outcome, err)
	}

	kept, docDups := s.dedupe(chunks, deduper)
	outcome.DuplicatesSuppressed = len(chunks) - len(kept)

	if len(kept) == 0 {
		s.bumpDuplicates(ctx, docDups)
		// Nothing to embed. Empty content is a success unless OCR
		// degradation is the reason the text is missing.
		if degraded > 0 {
			doc.Err = degradedErr
			doc.Status = domain.StatusPartial
			outcome.FailureKind = degradedErr
		} else {
			doc.NoContent = outcome.DuplicatesSuppressed == 0
			doc.Status = domain.StatusIndexed
		}
		s.checkpoint(ctx, doc)
		outcome.Status = doc.Status
		outcome.NoContent = doc.NoContent
		return outcome, nil
	}

	s.advance(ctx, doc, domain.StatusEmbedding)
	texts := make([]string, len(kept))
	for i, c := range kept {
		texts[i] = c.Text
	}

	s.embedMu.Lock()
	vectors, err := s.embedder.EmbedBatch(ctx, texts)
	s.embedMu.Unlock()
	if err != nil {
		// Nothing was written for this document; release its hashes so
		// a retry does not mistake its content for already indexed.
		deduper.Discard(chunkIDs(kept)...)
		if errors.Is(err, domain.ErrModelUnavailable) {
			doc.Err = err.Error()
			doc.Status = domain.StatusFailed
			s.checkpoint(ctx, doc)
			return domain.DocumentOutcome{}, err
		}
		return s.fail(ctx, doc, outcome, err)
	}

	written := 0
	var upsertErr error
	for i, chunk := range kept {
		entry := &domain.IndexEntry{
			ChunkID:      chunk.ID,
			DocumentID:   chunk.DocumentID,
			Text:         chunk.Text,
			Vector:       vectors[i],
			Format:       ref.Format,
			SegmentStart: chunk.SegmentStart,
			SegmentEnd:   chunk.SegmentEnd,
			Method:       segmentMethod(segments, chunk),
			Confidence:   segmentConfidence(segments, chunk),
			Hash:         chunk.Hash,
		}
		if err := s.index.Upsert(ctx, entry); err != nil {
			logger.Warn("upsert %s: %v", chunk.ID, err)
			upsertErr = err
			deduper.Discard(chunk.ID)
			continue
		}
		deduper.Commit(chunk.ID)
		written++
	}
	outcome.Chunks = written

	s.bumpDuplicates(ctx, docDups)

	switch {
	case written == 0:
		doc.Err = upsertErr.Error()
		doc.Status = domain.StatusFailed
		outcome.FailureKind = failureKind(upsertErr)
	case upsertErr != nil:
		doc.Err = upsertErr.Error()
		doc.Status = domain.StatusPartial
		outcome.FailureKind = failureKind(upsertErr)
	case degraded > 0:
		doc.Err = degradedErr
		doc.Status = domain.StatusPartial
		outcome.FailureKind = degradedErr
	default:
		doc.Status = domain.StatusIndexed
	}
	s.checkpoint(ctx, doc)

	outcome.Status = doc.Status
	return outcome, nil
}

// fillOCR runs the recognition fallback over segments flagged NeedsOCR.
// Returns the number of segments left empty and a description of why.
func (s *IndexerService) fillOCR(
	ctx context.Context, doc *domain.Document, content []byte, segments []domain.Segment,
) (int, string) {
	pending := 0
	for i := range segments {
		if segments[i].NeedsOCR {
			pending++
		}
	}
	if pending == 0 {
		return 0, ""
	}

	if err := s.ocr.Available(); err != nil {
		logger.Warn("OCR unavailable, %d segments of %s stay empty: %v", pending, doc.Path, err)
		return pending, domain.ErrOCRUnavailable.Error()
	}

	degraded := 0
	reason := ""
	for i := range segments {
		seg := &segments[i]
		if !seg.NeedsOCR {
			continue
		}

		in := driven.OCRInput{}
		switch doc.Format {
		case domain.FormatPDF:
			in.PDF = content
			in.Page = seg.Index + 1
		default:
			in.Image = content
		}

		result, err := s.ocr.Recognize(ctx, in)
		if err != nil {
			if ctx.Err() != nil {
				return degraded, reason
			}
			logger.Warn("OCR failed for %s segment %d: %v", doc.Path, seg.Index, err)
			degraded++
			reason = "OCR recognition failed"
			continue
		}
		if result.Text == "" {
			degraded++
			reason = "OCR produced no text"
			continue
		}

		seg.Text = result.Text
		seg.Method = domain.MethodOCR
		seg.Confidence = result.Confidence
	}
	return degraded, reason
}

// dedupe filters chunks through the deduplicator and collects the
// suppressed-duplicate counts keyed by canonical chunk ID.
func (s *IndexerService) dedupe(
	chunks []domain.Chunk, deduper *dedup.Deduper,
) ([]domain.Chunk, map[string]int) {
	kept := make([]domain.Chunk, 0, len(chunks))
	dups := make(map[string]int)
	for _, chunk := range chunks {
		canonical, duplicate := deduper.Check(&chunk)
		if duplicate {
			logger.Debug("Suppressing duplicate chunk %s of %s", chunk.ID, canonical)
			dups[canonical]++
			continue
		}
		kept = append(kept, chunk)
	}
	return kept, dups
}

// chunkIDs collects the IDs of the given chunks.
func chunkIDs(chunks []domain.Chunk) []string {
	ids := make([]string, len(chunks))
	for i, chunk := range chunks {
		ids[i] = chunk.ID
	}
	return ids
}

// bumpDuplicates increments the duplicate counter on canonical index
// entries. A canonical chunk owned by a document still in flight may
// not be written yet; its counter stays behind by design of the
// append-only store and is corrected on the next full rebuild.
func (s *IndexerService) bumpDuplicates(ctx context.Context, dups map[string]int) {
	for chunkID, n := range dups {
		entry, err := s.index.Get(ctx, chunkID)
		if err != nil {
			logger.Debug("duplicate target %s not in index yet", chunkID)
			continue
		}
		entry.Duplicates += n
		if err := s.index.Upsert(ctx, entry); err != nil {
			logger.Warn("updating duplicate count for %s: %v", chunkID, err)
		}
	}
}

// fail drives the document to the failed status and builds its outcome.
func (s *IndexerService) fail(
	ctx context.Context, doc *domain.Document, outcome domain.DocumentOutcome, err error,
) (domain.DocumentOutcome, error) {
	if ctx.Err() != nil {
		return domain.DocumentOutcome{}, errAbandoned
	}

	logger.Warn("Document %s failed: %v", doc.Path, err)
	doc.Status = domain.StatusFailed
	doc.Err = err.Error()
	s.checkpoint(ctx, doc)

	outcome.Status = domain.StatusFailed
	outcome.FailureKind = failureKind(err)
	return outcome, nil
}

// advance moves the document to the next pipeline state.
func (s *IndexerService) advance(ctx context.Context, doc *domain.Document, status domain.Status) {
	doc.Status = status
	s.checkpoint(ctx, doc)
}

// checkpoint persists the document state; checkpoint loss is not worth
// failing the document over.
func (s *IndexerService) checkpoint(ctx context.Context, doc *domain.Document) {
	doc.UpdatedAt = time.Now().UTC()
	if err := s.checkpoints.SaveDocument(ctx, doc); err != nil {
		logger.Warn("saving checkpoint for %s: %v", doc.ID, err)
	}
}

// failureKind names the failure category for the run report.
func failureKind(err error) string {
	switch {
	case errors.Is(err, domain.ErrUnsupportedFormat):
		return "unsupported format"
	case errors.Is(err, domain.ErrCorruptInput):
		return "corrupt input"
	case errors.Is(err, domain.ErrNotFound):
		return "not found"
	case errors.Is(err, domain.ErrOCRUnavailable):
		return "OCR unavailable"
	case errors.Is(err, domain.ErrDimensionMismatch):
		return "dimension mismatch"
	case errors.Is(err, domain.ErrModelUnavailable):
		return "model unavailable"
	default:
		return "processing error"
	}
}

// segmentMethod reports how the text backing a chunk was extracted.
// A chunk spanning both native and OCR segments counts as OCR so its
// confidence is surfaced.
func segmentMethod(segments []domain.Segment, chunk domain.Chunk) domain.ExtractionMethod {
	method := domain.MethodNative
	for _, seg := range segments {
		if seg.Index < chunk.SegmentStart || seg.Index > chunk.SegmentEnd {
			continue
		}
		if seg.Method == domain.MethodOCR {
			return domain.MethodOCR
		}
		if seg.Method != "" {
			method = seg.Method
		}
	}
	return method
}

// segmentConfidence returns the lowest OCR confidence among the
// chunk's segments, zero for purely native chunks.
func segmentConfidence(segments []domain.Segment, chunk domain.Chunk) float64 {
	confidence := 0.0
	first := true
	for _, seg := range segments {
		if seg.Index < chunk.SegmentStart || seg.Index > chunk.SegmentEnd {
			continue
		}
		if seg.Method != domain.MethodOCR {
			continue
		}
		if first || seg.Confidence < confidence {
			confidence = seg.Confidence
			first = false
		}
	}
	return confidence
}
