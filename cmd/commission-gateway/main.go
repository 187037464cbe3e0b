package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/bohumlab/commission-gateway/cache"
	"github.com/bohumlab/commission-gateway/common/httpx"
	"github.com/bohumlab/commission-gateway/common/logger"
	"github.com/bohumlab/commission-gateway/config"
	"github.com/bohumlab/commission-gateway/dataset"
	"github.com/bohumlab/commission-gateway/detector"
	"github.com/bohumlab/commission-gateway/embedding"
	"github.com/bohumlab/commission-gateway/gating"
	"github.com/bohumlab/commission-gateway/llm"
	"github.com/bohumlab/commission-gateway/matcher"
	"github.com/bohumlab/commission-gateway/mcptools"
	"github.com/bohumlab/commission-gateway/memory"
	"github.com/bohumlab/commission-gateway/post"
	"github.com/bohumlab/commission-gateway/prompt"
	"github.com/bohumlab/commission-gateway/retriever"
	"github.com/bohumlab/commission-gateway/router"
	"github.com/bohumlab/commission-gateway/server"
	"github.com/bohumlab/commission-gateway/vectordb"
)

func main() {
	configPath := flag.String("config", "config.yaml", "config file path")
	flag.Parse()

	// "normalize" converts raw per-insurer CSV exports into the dataset file.
	if flag.Arg(0) == "normalize" {
		if err := runNormalize(flag.Args()[1:]); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		return
	}

	// Secrets come from the environment; .env is a dev convenience.
	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	logger.SetLevel(logger.ParseLevel(cfg.Log.Level))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	datasets, err := dataset.NewStore(cfg.Dataset.Path)
	if err != nil {
		return fmt.Errorf("load dataset: %w", err)
	}
	ds := datasets.Current()
	logger.Infof("main: dataset loaded, %d companies %d products", len(ds.CompanyNames()), ds.NumProducts())

	completer, err := llm.NewProvider(cfg.LLM)
	if err != nil {
		return fmt.Errorf("init completion provider: %w", err)
	}

	// The general branch is optional: without a vector store the gateway
	// still answers commission questions from the dataset.
	var generalRetriever retriever.Retriever
	if cfg.VectorDB.Host != "" {
		embedder, err := embedding.NewProvider(cfg.Embedding)
		if err != nil {
			return fmt.Errorf("init embedding provider: %w", err)
		}
		store, err := vectordb.NewProvider(ctx, cfg.VectorDB, embedder.Dimensions())
		if err != nil {
			return fmt.Errorf("init vector store: %w", err)
		}
		defer store.Close()
		generalRetriever = &retriever.VectorRetriever{
			Embed: embedder,
			Store: store,
			TopK:  cfg.Retrieval.TopK,
			EmbedCache: cache.NewLRU[[]float32](
				cfg.Cache.EmbeddingCapacity,
				time.Duration(cfg.Cache.EmbeddingTTLS)*time.Second,
			),
		}
	} else {
		logger.Warnf("main: no vector store configured, general branch disabled")
	}

	var reranker post.Reranker
	if cfg.Rerank.Enable {
		reranker = post.NewModelReranker(cfg.Rerank.Endpoint, "", httpx.New(httpx.Options{
			Timeout:       time.Duration(cfg.Rerank.TimeoutMs) * time.Millisecond,
			Retry:         cfg.Rerank.Retry,
			HostAllowlist: cfg.Rerank.HostAllowlist,
		}))
	}

	queries, err := router.New(router.Options{
		Detector:  detector.New(cfg.Detector.Keywords, cfg.Detector.StrongIndicators),
		Matcher:   matcher.New(cfg.Matcher.MinScore, cfg.Matcher.MaxAlternatives),
		Datasets:  datasets,
		Completer: completer,
		Retriever: generalRetriever,
		Gate:      gating.NewProvider(cfg.Retrieval.Threshold),
		Reranker:  reranker,
		Budgeter:  prompt.NewBudgeter(cfg.Retrieval.TokenBudget),
		History:   memory.NewInMemoryStore(cfg.Memory.LastNRounds),
		ContextCache: cache.NewLRU[string](
			cfg.Cache.CommissionCapacity,
			time.Duration(cfg.Cache.CommissionTTLS)*time.Second,
		),
		Router:     cfg.Router,
		Retrieval:  cfg.Retrieval,
		RerankTopN: cfg.Rerank.TopN,
	})
	if err != nil {
		return err
	}

	if cfg.MCP.Enable {
		go func() {
			deps := mcptools.Deps{
				Datasets:      datasets,
				Matcher:       matcher.New(cfg.Matcher.MinScore, cfg.Matcher.MaxAlternatives),
				Retriever:     generalRetriever,
				RetrievalTopK: cfg.Retrieval.TopK,
				AllowReload:   cfg.Server.AdminToken != "",
			}
			if err := mcptools.Run(ctx, cfg.MCP.Addr, deps); err != nil {
				logger.Errorf("main: mcp server stopped: %v", err)
			}
		}()
	}

	return server.New(queries, datasets, cfg.Server, cfg.Callback).Run(ctx)
}

// runNormalize reads one CSV per insurer from a directory (file stem = insurer
// name) and writes the normalized dataset JSON.
func runNormalize(args []string) error {
	fs := flag.NewFlagSet("normalize", flag.ExitOnError)
	inDir := fs.String("in", "sheets", "directory of per-insurer CSV exports")
	outPath := fs.String("out", "commission_data.json", "output dataset path")
	if err := fs.Parse(args); err != nil {
		return err
	}

	entries, err := os.ReadDir(*inDir)
	if err != nil {
		return fmt.Errorf("read sheet dir: %w", err)
	}
	sheets := make(map[string][][]string)
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".csv") {
			continue
		}
		f, err := os.Open(filepath.Join(*inDir, e.Name()))
		if err != nil {
			return err
		}
		cells, err := dataset.ReadSheetCSV(f)
		f.Close()
		if err != nil {
			return fmt.Errorf("parse %s: %w", e.Name(), err)
		}
		company := strings.TrimSuffix(e.Name(), ".csv")
		sheets[company] = cells
	}
	if len(sheets) == 0 {
		return fmt.Errorf("no CSV sheets found in %s", *inDir)
	}

	ds, err := dataset.BuildDataset(sheets, dataset.DefaultLayouts)
	if err != nil {
		return err
	}
	out, err := json.MarshalIndent(ds, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(*outPath, out, 0o644); err != nil {
		return err
	}
	fmt.Printf("wrote %s: %d companies, %d products\n", *outPath, len(ds.CompanyNames()), ds.NumProducts())
	return nil
}
