// Package normalizer cleans extracted segment text before chunking:
// line endings, control characters, whitespace runs, and boilerplate
// lines repeated across segments (headers, footers, page furniture).
package normalizer

import (
	"context"
	"regexp"
	"strings"

	"github.com/custodia-labs/corpus-cli/internal/core/domain"
)

// DefaultMinRepeat is the number of distinct segments a line must
// appear in before it is treated as boilerplate.
const DefaultMinRepeat = 3

// Processor normalizes segment text in place.
type Processor struct {
	minRepeat int
}

// Option configures the normalizer processor.
type Option func(*Processor)

// WithMinRepeat sets the boilerplate repetition threshold.
func WithMinRepeat(n int) Option {
	return func(p *Processor) {
		if n > 1 {
			p.minRepeat = n
		}
	}
}

// New creates a normalizer processor with the given options.
func New(opts ...Option) *Processor {
	p := &Processor{minRepeat: DefaultMinRepeat}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Name returns the processor name.
func (p *Processor) Name() string {
	return "normalizer"
}

// Process returns the segments with cleaned text. Segment order and
// indices are preserved; text may become empty.
func (p *Processor) Process(_ context.Context, segments []domain.Segment) []domain.Segment {
	cleaned := make([]domain.Segment, len(segments))
	for i, seg := range segments {
		seg.Text = Clean(seg.Text)
		cleaned[i] = seg
	}
	p.stripBoilerplate(cleaned)
	return cleaned
}

var (
	controlChars = regexp.MustCompile("[\x00-\x08\x0b\x0c\x0e-\x1f\x7f]")
	spaceRuns    = regexp.MustCompile(`[ \t]+`)
	newlineRuns  = regexp.MustCompile(`\n{3,}`)
)

// Clean normalizes one text: CRLF to LF, control characters stripped,
// whitespace runs collapsed, lines trimmed.
func Clean(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	text = controlChars.ReplaceAllString(text, "")
	text = spaceRuns.ReplaceAllString(text, " ")

	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(line)
	}
	text = strings.Join(lines, "\n")

	text = newlineRuns.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}

// stripBoilerplate drops lines that repeat across minRepeat or more
// distinct segments. Page headers and footers repeat on every page;
// real content does not.
func (p *Processor) stripBoilerplate(segments []domain.Segment) {
	if len(segments) < p.minRepeat {
		return
	}

	// Count distinct segments each line occurs in.
	occurrences := make(map[string]int)
	for _, seg := range segments {
		seen := make(map[string]bool)
		for _, line := range strings.Split(seg.Text, "\n") {
			if line == "" || seen[line] {
				continue
			}
			seen[line] = true
			occurrences[line]++
		}
	}

	boilerplate := make(map[string]bool)
	for line, n := range occurrences {
		if n >= p.minRepeat {
			boilerplate[line] = true
		}
	}
	if len(boilerplate) == 0 {
		return
	}

	for i, seg := range segments {
		lines := strings.Split(seg.Text, "\n")
		kept := lines[:0]
		for _, line := range lines {
			if boilerplate[line] {
				continue
			}
			kept = append(kept, line)
		}
		segments[i].Text = Clean(strings.Join(kept, "\n"))
	}
}
