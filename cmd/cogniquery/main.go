package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"cogniquery/internal/config"
	"cogniquery/internal/embedding"
	"cogniquery/internal/helper"
	"cogniquery/internal/indexer"
	"cogniquery/internal/llmservice"
	"cogniquery/internal/models"
	"cogniquery/internal/parser"
	"cogniquery/internal/rag"
	"cogniquery/internal/server"
	"cogniquery/internal/store"
	"cogniquery/internal/vision"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}).With().Caller().Logger()

	configPath := flag.String("config", "./configs/config.yaml", "Path to the config file")
	filePath := flag.String("file", "", "Path to a document to process (.pdf, .csv, .xlsx, .ods, .eml, .docx)")
	url := flag.String("url", "", "Website URL to process")
	question := flag.String("ask", "", "Question to answer against the knowledge base")
	serve := flag.Bool("serve", false, "Run the HTTP chat front end")
	addr := flag.String("addr", "", "Listen address for -serve (overrides config)")
	debug := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	if *debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Error loading config")
	}

	ctx := context.Background()

	if *serve {
		runServer(cfg, *addr)
		return
	}

	if *filePath != "" && *url != "" {
		log.Fatal().Msg("Please provide either -file or -url, but not both")
	}

	if *filePath != "" || *url != "" {
		processSource(ctx, cfg, *filePath, *url)
	}

	if *question != "" {
		askQuestion(ctx, cfg, *question)
		return
	}

	if *filePath == "" && *url == "" {
		flag.Usage()
		os.Exit(2)
	}
}

func processSource(ctx context.Context, cfg *config.Config, filePath, url string) {
	embedder, err := embedding.NewEmbedder(&cfg.EmbedLLM)
	if err != nil {
		log.Fatal().Err(err).Msg("Error initializing embedder")
	}
	describer, err := vision.NewDescriber(&cfg.VisionLLM)
	if err != nil {
		log.Fatal().Err(err).Msg("Error initializing vision model")
	}

	assetDir := filepath.Join(cfg.Server.DataDir, "assets", "cli")
	defer os.RemoveAll(assetDir)

	var pages []models.PageRecord
	if filePath != "" {
		pages, err = parser.ParseFile(filePath, assetDir)
	} else {
		pages, err = parser.ParseWebsite(url, cfg.Fetch)
	}
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to process the provided data")
	}
	if len(pages) == 0 {
		log.Fatal().Msg("Failed to process the provided data: no content found")
	}

	builder := indexer.NewBuilder(embedder, describer, cfg)
	chunks, err := builder.Build(ctx, pages, cfg.RAG.StorePath)
	if err != nil {
		log.Fatal().Err(err).Msg("Error building knowledge base")
	}
	log.Info().Int("chunks", chunks).Str("path", cfg.RAG.StorePath).Msg("Knowledge base ready")
}

func askQuestion(ctx context.Context, cfg *config.Config, question string) {
	embedder, err := embedding.NewEmbedder(&cfg.EmbedLLM)
	if err != nil {
		log.Fatal().Err(err).Msg("Error initializing embedder")
	}
	chatLLM, err := llmservice.NewClient(&cfg.ChatLLM)
	if err != nil {
		log.Fatal().Err(err).Msg("Error initializing chat model")
	}

	engine := rag.NewEngine(embedder, chatLLM, cfg)
	answer, err := engine.Answer(ctx, question, nil, cfg.RAG.StorePath)
	if errors.Is(err, rag.ErrIndexNotFound) {
		log.Fatal().Msg("Please process data first")
	}
	if err != nil {
		log.Fatal().Err(err).Msg("Error answering question")
	}

	fmt.Printf("%s\n\n", answer.Text)
	if len(answer.Sources) == 0 {
		fmt.Println("No specific sources were retrieved.")
		return
	}
	helper.PrettyPrint(answer.Sources)
}

func runServer(cfg *config.Config, addr string) {
	if addr != "" {
		cfg.Server.Addr = addr
	}

	sessions, err := store.Open(cfg.Server.SessionDB, cfg.Server.Debug)
	if err != nil {
		log.Fatal().Err(err).Msg("Error opening session store")
	}
	defer sessions.Close()
	if err := sessions.Init(context.Background()); err != nil {
		log.Fatal().Err(err).Msg("Error initializing session store")
	}

	embedder, err := embedding.NewEmbedder(&cfg.EmbedLLM)
	if err != nil {
		log.Fatal().Err(err).Msg("Error initializing embedder")
	}
	describer, err := vision.NewDescriber(&cfg.VisionLLM)
	if err != nil {
		log.Fatal().Err(err).Msg("Error initializing vision model")
	}
	chatLLM, err := llmservice.NewClient(&cfg.ChatLLM)
	if err != nil {
		log.Fatal().Err(err).Msg("Error initializing chat model")
	}

	builder := indexer.NewBuilder(embedder, describer, cfg)
	engine := rag.NewEngine(embedder, chatLLM, cfg)
	srv := server.NewServer(sessions, builder, engine, cfg)

	log.Info().Str("addr", cfg.Server.Addr).Msg("Starting server")
	if err := http.ListenAndServe(cfg.Server.Addr, srv); err != nil {
		log.Fatal().Err(err).Msg("Server stopped")
	}
}
