// cmd/seed loads a directory of .txt and .md documents into the Weaviate
// knowledge base used for retrieval grounding.
//
// Running twice is safe: chunk ids are derived from file path and position,
// so existing objects are replaced rather than duplicated.
//
// Usage:
//
//	go run ./cmd/seed ./knowledge
//	RETRIEVAL_URL=http://weaviate:8080 go run ./cmd/seed --chunk-size 800 ./knowledge
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/jmerrifield20/CyberSentinel/internal/config"
	"github.com/jmerrifield20/CyberSentinel/internal/ingest"
	"github.com/jmerrifield20/CyberSentinel/internal/retrieval"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	cfgFile    string
	chunkSize  int
	vectorizer string
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:          "seed [dir]",
	Short:        "Ingest knowledge-base documents into Weaviate",
	Args:         cobra.MaximumNArgs(1),
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		dir := "knowledge"
		if len(args) == 1 {
			dir = args[0]
		}
		return run(dir)
	},
}

func init() {
	rootCmd.Flags().StringVar(&cfgFile, "config", "", "config file (default configs/cybersentinel.yaml)")
	rootCmd.Flags().IntVar(&chunkSize, "chunk-size", ingest.DefaultChunkSize, "Target passage size in bytes")
	rootCmd.Flags().StringVar(&vectorizer, "vectorizer", "text2vec-transformers", "Weaviate vectorizer module used when creating the class")
}

func run(dir string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}

	logger, _ := zap.NewDevelopment()
	defer logger.Sync() //nolint:errcheck

	store := retrieval.NewWeaviateStore(retrieval.WeaviateConfig{
		Endpoint:   cfg.Retrieval.URL,
		APIKey:     cfg.Retrieval.APIKey,
		Class:      cfg.Retrieval.Class,
		Vectorizer: vectorizer,
		Timeout:    30 * time.Second,
	})

	ctx := context.Background()
	if err := store.Ready(ctx); err != nil {
		return fmt.Errorf("weaviate at %s is not ready: %w", cfg.Retrieval.URL, err)
	}
	logger.Info("connected to weaviate", zap.String("url", cfg.Retrieval.URL), zap.String("class", store.Class()))

	start := time.Now()
	stats, err := ingest.New(store, chunkSize, logger).IngestDir(ctx, dir)
	if err != nil {
		return err
	}

	n, err := store.Count(ctx)
	if err != nil {
		logger.Warn("count after ingest failed", zap.Error(err))
	}
	logger.Info("seed complete",
		zap.Int("files", stats.Files),
		zap.Int("chunks", stats.Chunks),
		zap.Int("skipped", stats.Skipped),
		zap.Int("documents_indexed", n),
		zap.Duration("elapsed", time.Since(start)),
	)
	return nil
}
