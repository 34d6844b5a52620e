package processor

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/pdfqa-mcp/internal/chunker"
	"github.com/dshills/pdfqa-mcp/internal/pdf"
	"github.com/dshills/pdfqa-mcp/pkg/types"
)

// mockExtractor serves canned pages keyed by file name
type mockExtractor struct {
	mu    sync.Mutex
	pages map[string][]pdf.Page
	err   map[string]error
	calls int
}

func (m *mockExtractor) Extract(_ context.Context, path string) ([]pdf.Page, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	name := filepath.Base(path)
	if err := m.err[name]; err != nil {
		return nil, err
	}
	return m.pages[name], nil
}

func touch(t *testing.T, dir, name string, size int) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(strings.Repeat("x", size)), 0o644))
	return path
}

func TestProcess(t *testing.T) {
	dir := t.TempDir()
	path := touch(t, dir, "report.pdf", 321)

	ext := &mockExtractor{pages: map[string][]pdf.Page{
		"report.pdf": {{Number: 1, Text: "Solar panels convert light."}, {Number: 2}, {Number: 3, Text: "Wind turbines spin."}},
	}}
	p := New(ext, chunker.New(types.StrategyRecursive, chunker.DefaultConfig(), nil))

	chunks, err := p.Process(context.Background(), path)
	require.NoError(t, err)
	require.Len(t, chunks, 1)

	c := chunks[0]
	assert.Equal(t, "--- Page 1 ---\nSolar panels convert light.\n\n--- Page 3 ---\nWind turbines spin.", c.Content)
	assert.Equal(t, "report.pdf", c.Metadata.Filename)
	assert.Equal(t, path, c.Metadata.FilePath)
	assert.Equal(t, int64(321), c.Metadata.FileSize)
	assert.Equal(t, types.SourceTypePDF, c.Metadata.SourceType)
	assert.Equal(t, types.StrategyRecursive, c.Metadata.ChunkingStrategy)
	assert.Equal(t, 0, c.Metadata.ChunkID)
}

func TestProcess_NoText(t *testing.T) {
	path := touch(t, t.TempDir(), "scan.pdf", 10)
	ext := &mockExtractor{pages: map[string][]pdf.Page{"scan.pdf": {{Number: 1, Text: "  "}, {Number: 2}}}}

	_, err := New(ext, chunker.NewRecursive(chunker.DefaultConfig())).Process(context.Background(), path)
	assert.ErrorIs(t, err, ErrNoText)
}

func TestProcess_ExtractError(t *testing.T) {
	path := touch(t, t.TempDir(), "bad.pdf", 10)
	ext := &mockExtractor{err: map[string]error{"bad.pdf": pdf.ErrUnreadable}}

	_, err := New(ext, chunker.NewRecursive(chunker.DefaultConfig())).Process(context.Background(), path)
	assert.ErrorIs(t, err, pdf.ErrUnreadable)
}

func TestProcess_MissingFile(t *testing.T) {
	ext := &mockExtractor{}
	_, err := New(ext, chunker.NewRecursive(chunker.DefaultConfig())).Process(context.Background(), "/nonexistent/file.pdf")
	require.Error(t, err)
	assert.Zero(t, ext.calls)
}

func TestProcessAll(t *testing.T) {
	dir := t.TempDir()
	paths := []string{
		touch(t, dir, "a.pdf", 1),
		touch(t, dir, "broken.pdf", 1),
		touch(t, dir, "b.pdf", 1),
	}
	ext := &mockExtractor{
		pages: map[string][]pdf.Page{
			"a.pdf": {{Number: 1, Text: "alpha"}},
			"b.pdf": {{Number: 1, Text: "beta"}},
		},
		err: map[string]error{"broken.pdf": errors.New("corrupt xref")},
	}
	p := New(ext, chunker.NewRecursive(chunker.DefaultConfig()), WithWorkers(2))

	results := p.ProcessAll(context.Background(), paths)
	require.Len(t, results, 3)
	for i, r := range results {
		assert.Equal(t, paths[i], r.Path)
	}
	require.NoError(t, results[0].Err)
	assert.Error(t, results[1].Err)
	require.NoError(t, results[2].Err)
	assert.Contains(t, results[2].Chunks[0].Content, "beta")

	stats := Summarize(results, time.Second)
	assert.Equal(t, 2, stats.FilesProcessed)
	assert.Equal(t, 1, stats.FilesFailed)
	assert.Equal(t, 2, stats.ChunksCreated)
	require.Len(t, stats.ErrorMessages, 1)
	assert.Contains(t, stats.ErrorMessages[0], "broken.pdf")
}

func TestDiscover(t *testing.T) {
	dir := t.TempDir()
	touch(t, dir, "one.pdf", 1)
	touch(t, dir, "nested/two.PDF", 1)
	touch(t, dir, "notes.txt", 1)
	touch(t, dir, ".hidden/three.pdf", 1)
	single := touch(t, t.TempDir(), "single.pdf", 1)

	files, err := Discover(dir, single)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{
		filepath.Join(dir, "one.pdf"),
		filepath.Join(dir, "nested", "two.PDF"),
		single,
	}, files)

	_, err = Discover(filepath.Join(dir, "missing"))
	assert.Error(t, err)
}
