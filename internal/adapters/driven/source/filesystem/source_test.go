package filesystem

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/corpus-cli/internal/core/domain"
)

func writeFile(t *testing.T, dir, name string) string {
	t.Helper()

	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte("content of "+name), 0644))
	return path
}

func TestListFindsSupportedFormats(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "report.pdf")
	writeFile(t, dir, "notes.docx")
	writeFile(t, dir, "data.xlsx")
	writeFile(t, dir, "scan.png")
	writeFile(t, dir, "page.html")
	writeFile(t, dir, "readme.txt")  // unsupported
	writeFile(t, dir, ".hidden.pdf") // hidden

	refs, err := New(dir, false).List(context.Background())
	require.NoError(t, err)
	require.Len(t, refs, 5)

	// Ordered by path.
	assert.Equal(t, "data.xlsx", filepath.Base(refs[0].Path))
	assert.Equal(t, domain.FormatXLSX, refs[0].Format)
	assert.Equal(t, "notes.docx", filepath.Base(refs[1].Path))
	assert.Equal(t, "page.html", filepath.Base(refs[2].Path))
	assert.Equal(t, "report.pdf", filepath.Base(refs[3].Path))
	assert.Equal(t, domain.FormatPDF, refs[3].Format)
	assert.Equal(t, "scan.png", filepath.Base(refs[4].Path))
	assert.Equal(t, domain.FormatImage, refs[4].Format)
}

func TestListRecursive(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "top.pdf")
	writeFile(t, dir, "sub/nested.pdf")
	writeFile(t, dir, ".git/ignored.pdf")

	refs, err := New(dir, true).List(context.Background())
	require.NoError(t, err)
	require.Len(t, refs, 2)

	flat, err := New(dir, false).List(context.Background())
	require.NoError(t, err)
	require.Len(t, flat, 1)
	assert.Equal(t, "top.pdf", filepath.Base(flat[0].Path))
}

func TestListMissingDirectory(t *testing.T) {
	_, err := New(filepath.Join(t.TempDir(), "absent"), false).List(context.Background())
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestDocumentIDStable(t *testing.T) {
	a := DocumentID("/docs/report.pdf")
	b := DocumentID("/docs/report.pdf")
	c := DocumentID("/docs/./report.pdf") // cleans to the same path
	d := DocumentID("/docs/other.pdf")

	assert.Equal(t, a, b)
	assert.Equal(t, a, c)
	assert.NotEqual(t, a, d)
	assert.Len(t, a, 16)
}

func TestRead(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "report.pdf")

	src := New(dir, false)
	content, err := src.Read(context.Background(), domain.SourceRef{Path: path})
	require.NoError(t, err)
	assert.Equal(t, []byte("content of report.pdf"), content)

	_, err = src.Read(context.Background(), domain.SourceRef{Path: filepath.Join(dir, "gone.pdf")})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestWatchSignalsOnChange(t *testing.T) {
	dir := t.TempDir()
	src := New(dir, false)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	changes, err := src.Watch(ctx, 50*time.Millisecond)
	require.NoError(t, err)

	writeFile(t, dir, "new.pdf")

	select {
	case _, ok := <-changes:
		assert.True(t, ok)
	case <-time.After(3 * time.Second):
		t.Fatal("no change signal received")
	}

	cancel()
	deadline := time.After(3 * time.Second)
	for {
		select {
		case _, ok := <-changes:
			if !ok {
				return // closed on cancel
			}
		case <-deadline:
			t.Fatal("channel not closed after cancel")
		}
	}
}
