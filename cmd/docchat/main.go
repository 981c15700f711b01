package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"

	"docchat/internal/chat"
	"docchat/internal/chunker"
	"docchat/internal/config"
	"docchat/internal/docs"
	"docchat/internal/domain"
	"docchat/internal/embedding/openai"
	"docchat/internal/embedding/tfidf"
	"docchat/internal/index"
	"docchat/internal/llm"
	llmopenai "docchat/internal/llm/openai"
	"docchat/internal/retrieve"
	"docchat/internal/store"
	"docchat/internal/title"
	"docchat/internal/tui"
)

func main() {
	_ = godotenv.Load()

	var (
		cfgPath      string
		collection   string
		registerName string
		sourceURL    string
		overwrite    bool
		listFlag     bool
		deleteName   string
		verbose      bool
	)
	flag.StringVar(&cfgPath, "config", "", "Path to YAML config file (optional; uses ~/.config/docchat/config.yaml if not provided)")
	flag.StringVar(&collection, "collection", "", "Collection to chat with (defaults to the most recently registered one)")
	flag.StringVar(&registerName, "register", "", "Register the named directory under the documents root as a collection and exit")
	flag.StringVar(&sourceURL, "source", "", "Source URL to record with -register")
	flag.BoolVar(&overwrite, "overwrite", false, "Allow -register to replace an existing collection")
	flag.BoolVar(&listFlag, "collections", false, "List registered collections and exit")
	flag.StringVar(&deleteName, "delete-collection", "", "Delete the named collection and its documents, then exit")
	flag.BoolVar(&verbose, "verbose", false, "Write debug logs to docchat.log")
	flag.Parse()

	var cfg *config.AppConfig
	var err error
	if cfgPath == "" {
		cfg, _, err = config.LoadDefault()
	} else {
		cfg, err = config.Load(cfgPath)
	}
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, closeLog, err := newLogger(verbose)
	if err != nil {
		log.Fatalf("failed to open log file: %v", err)
	}
	defer closeLog()

	st, err := store.Open(cfg.Storage.DatabasePath, logger)
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	defer st.Close()

	source := docs.NewSource(cfg.Storage.DocumentsRoot, logger)
	ctx := context.Background()

	// Maintenance flags run without a chat model and exit.
	if listFlag {
		listCollections(ctx, st)
		return
	}
	if registerName != "" || deleteName != "" {
		maintain(ctx, st, source, logger, registerName, sourceURL, overwrite, deleteName)
		return
	}

	newEmbedder, err := embedderFactory(cfg)
	if err != nil {
		log.Fatalf("embedder init failed: %v", err)
	}
	ch := chunker.NewSentenceChunker(cfg.Chunker.SentencesPerChunk, cfg.Chunker.OverlapSentences)
	cache := index.NewCache(ch, newEmbedder, logger)
	retriever := retrieve.New(cfg.Retriever.TopK, logger)

	chatModel, err := llmopenai.NewClient(llmopenai.Config{
		BaseURL:     cfg.Chat.BaseURL,
		APIKeyEnv:   cfg.Chat.APIKeyEnv,
		Model:       cfg.Chat.Model,
		Temperature: cfg.Chat.Temperature,
		Timeout:     time.Duration(cfg.Chat.TimeoutSecs) * time.Second,
	})
	if err != nil {
		log.Fatalf("chat model init failed: %v", err)
	}
	var titleModel llm.Client
	titleModel, err = llmopenai.NewClient(llmopenai.Config{
		BaseURL:     cfg.Chat.BaseURL,
		APIKeyEnv:   cfg.Chat.APIKeyEnv,
		Model:       cfg.Chat.TitleModel,
		Temperature: cfg.Chat.TitleTemperature,
		Timeout:     time.Duration(cfg.Chat.TimeoutSecs) * time.Second,
	})
	if err != nil {
		titleModel = chatModel
	}
	titles := title.NewDeriver(titleModel, logger)

	service := chat.NewService(st, source, cache, retriever, chatModel, titles, logger)

	if collection == "" {
		collection = pickCollection(ctx, st)
	}
	if collection == "" {
		fmt.Println("No collections registered yet.")
		// Directories under the documents root are registration candidates.
		if infos, err := source.ListCollections(); err == nil && len(infos) > 0 {
			fmt.Println("Found unregistered document directories:")
			for _, info := range infos {
				fmt.Printf("  %s (%d files) -> docchat -register %s\n", info.Name, info.FileCount, info.Name)
			}
		} else {
			fmt.Println("Put documents under", cfg.Storage.DocumentsRoot, "and run: docchat -register <name>")
		}
		os.Exit(1)
	}

	session, err := service.NewSession(ctx, collection)
	if err != nil {
		log.Fatalf("failed to start session: %v", err)
	}

	p := tea.NewProgram(tui.New(service, session), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		log.Fatalf("TUI error: %v", err)
	}
}

func embedderFactory(cfg *config.AppConfig) (func() domain.Embedder, error) {
	switch cfg.Embedder.Type {
	case "tfidf", "":
		// TF-IDF vocabularies are corpus-specific; each index build gets a
		// fresh embedder.
		return func() domain.Embedder { return tfidf.NewEmbedder() }, nil
	case "openai":
		if cfg.Embedder.OpenAI == nil {
			return nil, fmt.Errorf("openai embedder config missing")
		}
		client, err := openai.NewClient(openai.Config{
			BaseURL:   cfg.Embedder.OpenAI.BaseURL,
			APIKeyEnv: cfg.Embedder.OpenAI.APIKeyEnv,
			Model:     cfg.Embedder.OpenAI.Model,
			Timeout:   time.Duration(cfg.Embedder.OpenAI.TimeoutSecs) * time.Second,
		})
		if err != nil {
			return nil, err
		}
		return func() domain.Embedder { return client }, nil
	default:
		return nil, fmt.Errorf("unknown embedder: %s", cfg.Embedder.Type)
	}
}

func newLogger(verbose bool) (*slog.Logger, func(), error) {
	if !verbose {
		return slog.New(slog.NewTextHandler(io.Discard, nil)), func() {}, nil
	}
	// Stderr belongs to the TUI, so debug logs go to a file.
	f, err := os.OpenFile("docchat.log", os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, err
	}
	logger := slog.New(slog.NewTextHandler(f, &slog.HandlerOptions{Level: slog.LevelDebug}))
	return logger, func() { _ = f.Close() }, nil
}

func listCollections(ctx context.Context, st *store.Store) {
	collections, err := st.ListCollections(ctx)
	if err != nil {
		log.Fatalf("failed to list collections: %v", err)
	}
	if len(collections) == 0 {
		fmt.Println("No collections registered.")
		return
	}
	for _, c := range collections {
		fmt.Printf("%-30s %4d files  %s\n", c.Name, c.FileCount, c.CreatedAt.Format("2006-01-02"))
	}
}

func maintain(ctx context.Context, st *store.Store, source *docs.Source, logger *slog.Logger, registerName, sourceURL string, overwrite bool, deleteName string) {
	service := chat.NewService(st, source, nil, nil, nil, nil, logger)
	if registerName != "" {
		c, err := service.RegisterCollection(ctx, registerName, sourceURL, overwrite)
		if err != nil {
			log.Fatalf("failed to register collection: %v", err)
		}
		fmt.Printf("Registered collection %q with %d files.\n", c.Name, c.FileCount)
	}
	if deleteName != "" {
		if err := service.DeleteCollection(ctx, deleteName); err != nil {
			log.Fatalf("failed to delete collection: %v", err)
		}
		fmt.Printf("Deleted collection %q.\n", deleteName)
	}
}

func pickCollection(ctx context.Context, st *store.Store) string {
	collections, err := st.ListCollections(ctx)
	if err != nil || len(collections) == 0 {
		return ""
	}
	return collections[0].Name
}
