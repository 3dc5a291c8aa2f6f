// Package ingest loads a directory of text documents into the knowledge base.
package ingest

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/jmerrifield20/CyberSentinel/internal/retrieval"
	"go.uber.org/zap"
)

// DefaultChunkSize is the target passage length in bytes.
const DefaultChunkSize = 1200

// namespace scopes the deterministic chunk ids.
var namespace = uuid.MustParse("6f1c2d4e-8a3b-4c5d-9e7f-0a1b2c3d4e5f")

// Extensions lists the file types that are ingested.
var Extensions = []string{".txt", ".md"}

// Upserter stores documents by id.
type Upserter interface {
	EnsureClass(ctx context.Context) error
	Upsert(ctx context.Context, doc retrieval.Document) error
}

// Stats summarises one ingestion run.
type Stats struct {
	Files   int
	Chunks  int
	Skipped int
}

// Ingester chunks files and writes them to a document store.
type Ingester struct {
	store     Upserter
	chunkSize int
	logger    *zap.Logger
}

// New creates an Ingester. chunkSize <= 0 uses DefaultChunkSize.
func New(store Upserter, chunkSize int, logger *zap.Logger) *Ingester {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	return &Ingester{store: store, chunkSize: chunkSize, logger: logger}
}

// IngestDir walks dir and upserts every chunk of every matching file. The
// source label of a chunk is the file path relative to dir. Re-running over
// the same files overwrites rather than duplicates.
func (in *Ingester) IngestDir(ctx context.Context, dir string) (Stats, error) {
	var stats Stats

	paths, err := Files(dir)
	if err != nil {
		return stats, err
	}
	if err := in.store.EnsureClass(ctx); err != nil {
		return stats, fmt.Errorf("ensure class: %w", err)
	}

	for _, path := range paths {
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			rel = path
		}
		source := filepath.ToSlash(rel)

		data, err := os.ReadFile(path)
		if err != nil {
			return stats, fmt.Errorf("read %s: %w", path, err)
		}
		chunks := Chunk(string(data), in.chunkSize)
		if len(chunks) == 0 {
			in.logger.Info("ingest: skipping empty file", zap.String("source", source))
			stats.Skipped++
			continue
		}

		for i, text := range chunks {
			doc := retrieval.Document{
				ID:      ChunkID(source, i),
				Content: text,
				Source:  source,
			}
			if err := in.store.Upsert(ctx, doc); err != nil {
				return stats, fmt.Errorf("store %s chunk %d: %w", source, i, err)
			}
			stats.Chunks++
		}
		stats.Files++
		in.logger.Info("ingest: file stored", zap.String("source", source), zap.Int("chunks", len(chunks)))
	}
	return stats, nil
}

// Files returns the matching files under dir in lexical order.
func Files(dir string) ([]string, error) {
	var out []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != dir && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		ext := strings.ToLower(filepath.Ext(path))
		for _, want := range Extensions {
			if ext == want {
				out = append(out, path)
				break
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", dir, err)
	}
	sort.Strings(out)
	return out, nil
}

// ChunkID derives a stable id for chunk i of source.
func ChunkID(source string, i int) string {
	return uuid.NewSHA1(namespace, []byte(source+"#"+strconv.Itoa(i))).String()
}

// Chunk splits text into passages of at most size bytes, breaking on blank
// lines where possible and on whitespace otherwise. A single word longer
// than size is kept whole.
func Chunk(text string, size int) []string {
	var (
		chunks []string
		cur    strings.Builder
	)
	flush := func() {
		if s := strings.TrimSpace(cur.String()); s != "" {
			chunks = append(chunks, s)
		}
		cur.Reset()
	}

	for _, para := range splitParagraphs(text) {
		if cur.Len() > 0 && cur.Len()+2+len(para) > size {
			flush()
		}
		if len(para) <= size {
			if cur.Len() > 0 {
				cur.WriteString("\n\n")
			}
			cur.WriteString(para)
			continue
		}

		flush()
		for _, word := range strings.Fields(para) {
			if cur.Len() > 0 && cur.Len()+1+len(word) > size {
				flush()
			}
			if cur.Len() > 0 {
				cur.WriteByte(' ')
			}
			cur.WriteString(word)
		}
		flush()
	}
	flush()
	return chunks
}

func splitParagraphs(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	var out []string
	for _, p := range strings.Split(text, "\n\n") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
