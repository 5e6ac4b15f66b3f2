// Command ingest loads pre-chunked document passages from a JSONL file,
// embeds them with the passage marker, and upserts them into the Qdrant
// collection the assistant searches.
//
// Each input line is one passage:
//
//	{"text": "...", "metadata": {"source_file": "handbook.pdf", "page": 4, "section": "Admissions"}}
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/uov-ai/assistant/infrastructure/embedding"
	"github.com/uov-ai/assistant/infrastructure/vectorstore"
	"github.com/uov-ai/assistant/internal/config"
)

const batchSize = 64

type passageLine struct {
	Text     string         `json:"text"`
	Metadata map[string]any `json:"metadata"`
}

func main() {
	configPath := flag.String("config", "config.yaml", "path to configuration file")
	inputPath := flag.String("input", "", "JSONL file of passages to ingest")
	flag.Parse()

	_ = godotenv.Load()

	if *inputPath == "" {
		fmt.Fprintln(os.Stderr, "usage: ingest -input passages.jsonl [-config config.yaml]")
		os.Exit(2)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}

	logger, err := zap.NewProduction()
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger error: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if err := run(cfg, *inputPath, logger); err != nil {
		logger.Fatal("ingest failed", zap.Error(err))
	}
}

func run(cfg config.Config, inputPath string, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	embedder, err := embedding.NewClient(embedding.Config{
		BaseURL:       cfg.Embedding.BaseURL,
		APIKey:        cfg.Embedding.APIKey,
		Model:         cfg.Embedding.Model,
		Dimension:     cfg.Embedding.Dimension,
		QueryPrefix:   cfg.Embedding.QueryPrefix,
		PassagePrefix: cfg.Embedding.PassagePrefix,
	}, logger.Named("embedding"))
	if err != nil {
		return fmt.Errorf("embedding client: %w", err)
	}

	store, err := vectorstore.NewStore(vectorstore.Config{
		Host:       cfg.Qdrant.Host,
		Port:       cfg.Qdrant.Port,
		APIKey:     cfg.Qdrant.APIKey,
		UseTLS:     cfg.Qdrant.UseTLS,
		Collection: cfg.Qdrant.Collection,
		Dimension:  cfg.Embedding.Dimension,
	}, logger.Named("qdrant"))
	if err != nil {
		return fmt.Errorf("vector store: %w", err)
	}

	if err := store.EnsureCollection(ctx); err != nil {
		return err
	}

	file, err := os.Open(inputPath)
	if err != nil {
		return fmt.Errorf("open %s: %w", inputPath, err)
	}
	defer file.Close()

	var (
		batch []vectorstore.Passage
		total int
		line  int
	)

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		texts := make([]string, len(batch))
		for i, p := range batch {
			texts[i] = p.Text
		}
		vectors, err := embedder.EmbedPassages(ctx, texts)
		if err != nil {
			return fmt.Errorf("embed batch ending at line %d: %w", line, err)
		}
		if err := store.UpsertPassages(ctx, batch, vectors); err != nil {
			return fmt.Errorf("upsert batch ending at line %d: %w", line, err)
		}
		total += len(batch)
		logger.Info("ingested batch", zap.Int("size", len(batch)), zap.Int("total", total))
		batch = batch[:0]
		return nil
	}

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 1024*1024), 1024*1024)
	for scanner.Scan() {
		line++
		raw := scanner.Bytes()
		if len(raw) == 0 {
			continue
		}

		var p passageLine
		if err := json.Unmarshal(raw, &p); err != nil {
			return fmt.Errorf("line %d: %w", line, err)
		}
		if p.Text == "" {
			logger.Warn("skipping passage with empty text", zap.Int("line", line))
			continue
		}

		batch = append(batch, vectorstore.Passage{Text: p.Text, Metadata: p.Metadata})
		if len(batch) >= batchSize {
			if err := flush(); err != nil {
				return err
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read %s: %w", inputPath, err)
	}
	if err := flush(); err != nil {
		return err
	}

	logger.Info("ingest complete", zap.Int("passages", total))
	return nil
}
