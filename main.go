package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/mvalles/asistente/api"
	"github.com/mvalles/asistente/citations"
	"github.com/mvalles/asistente/config"
	"github.com/mvalles/asistente/database"
	"github.com/mvalles/asistente/groundx"
	"github.com/mvalles/asistente/history"
	"github.com/mvalles/asistente/llm"
	"github.com/mvalles/asistente/localize"
	"github.com/mvalles/asistente/prompt"
	"github.com/mvalles/asistente/rag"
	"github.com/mvalles/asistente/tracing"
	"github.com/mvalles/asistente/translate"
)

func main() {
	logger := log.New(os.Stdout, "", log.LstdFlags)

	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		logger.Printf("load .env: %v", err)
	}

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cfg := config.Load()

	switch os.Args[1] {
	case "serve":
		serveCmd(cfg, logger, os.Args[2:])
	case "chat":
		chatCmd(cfg, logger, os.Args[2:])
	case "check":
		checkCmd(cfg, logger, os.Args[2:])
	default:
		logger.Printf("unknown command: %s", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

// bootstrap builds the pipeline shared by every command.
func bootstrap(ctx context.Context, cfg config.Config, logger *log.Logger) (*rag.Service, *rag.Classifier, config.Company, error) {
	if err := cfg.Validate(); err != nil {
		return nil, nil, config.Company{}, err
	}

	company, err := cfg.LoadCompany()
	if err != nil {
		return nil, nil, config.Company{}, err
	}

	bucket, err := company.SelectBucket()
	if err != nil {
		return nil, nil, config.Company{}, err
	}
	logger.Printf("assistant initialized for company=%s, domain=%s, bucket_id=%s", cfg.Company, company.Domain, bucket.ID)

	chatModel := llm.NewOpenAIClient(llm.Options{
		APIKey:      cfg.OpenAIAPIKey,
		BaseURL:     cfg.OpenAIBaseURL,
		Model:       cfg.ChatModel,
		Temperature: 0.5,
	})
	classifierModel := llm.NewOpenAIClient(llm.Options{
		APIKey:  cfg.OpenAIAPIKey,
		BaseURL: cfg.OpenAIBaseURL,
		Model:   cfg.ClassifierModel,
	})
	translateModel := llm.NewOpenAIClient(llm.Options{
		APIKey:    cfg.OpenAIAPIKey,
		BaseURL:   cfg.OpenAIBaseURL,
		Model:     cfg.TranslateModel,
		MaxTokens: 1000,
	})
	summaryModel := llm.NewOpenAIClient(llm.Options{
		APIKey:    cfg.OpenAIAPIKey,
		BaseURL:   cfg.OpenAIBaseURL,
		Model:     cfg.SummaryModel,
		MaxTokens: 256,
	})

	searchClient := groundx.NewClient(groundx.Options{
		BaseURL: cfg.GroundXBaseURL,
		APIKey:  cfg.GroundXAPIKey,
		Timeout: cfg.SearchTimeout,
	})

	classifier := rag.NewClassifier(classifierModel, cfg.Company, company.Domain, company.Keywords, logger)
	retriever := rag.NewRetriever(searchClient, translate.NewLLMTranslator(translateModel), rag.RetrieverOptions{
		BucketID: bucket.ID,
		TopN:     cfg.SearchTopN,
	}, logger)
	summarizer := rag.NewSummarizer(summaryModel, cfg.SummaryThreshold, logger)

	resolver, err := citations.NewResolver(cfg.DocsDir(), cfg.CitationThreshold, cfg.DocsRoute(), logger)
	if err != nil {
		return nil, nil, config.Company{}, err
	}
	logger.Printf("documents loaded: %v", resolver.Corpus())

	formatter, err := localize.NewFormatter("en-US", "es-ES")
	if err != nil {
		return nil, nil, config.Company{}, err
	}

	var store history.Store = history.NewMemoryStore()
	if cfg.PostgresDSN != "" {
		pool, err := database.NewPostgresPool(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, nil, config.Company{}, err
		}
		if err := database.EnsureHistorySchema(ctx, pool); err != nil {
			return nil, nil, config.Company{}, err
		}
		store = history.NewPostgresStore(pool)
		logger.Printf("conversation history backed by postgres")
	}

	svc := rag.NewService(classifier, retriever, chatModel, summarizer, resolver, formatter, store, cfg.ScoreThreshold, logger)
	return svc, classifier, company, nil
}

func serveCmd(cfg config.Config, logger *log.Logger, args []string) {
	flags := flag.NewFlagSet("serve", flag.ExitOnError)
	addr := flags.String("addr", cfg.ListenAddr, "address to listen on")
	instructions := flags.String("instructions", "instructions.json", "path to the instructions file")
	if err := flags.Parse(args); err != nil {
		logger.Fatalf("parse serve flags: %v", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	svc, classifier, company, err := bootstrap(ctx, cfg, logger)
	if err != nil {
		logger.Fatalf("startup failed: %v", err)
	}

	template, err := prompt.LoadInstructions(*instructions)
	if err != nil {
		logger.Fatalf("load instructions: %v", err)
	}

	tracer := tracing.NewClient(tracing.Options{
		Endpoint: cfg.LangSmithURL,
		APIKey:   cfg.LangSmithAPIKey,
		Project:  cfg.LangSmithProject,
	})

	server := api.NewServer(svc, classifier, tracer, api.Options{
		Company:   cfg.Company,
		Domain:    company.Domain,
		StaticDir: cfg.StaticDir,
		Template:  template,
	}, logger)

	httpServer := &http.Server{Addr: *addr, Handler: server.Router()}
	go func() {
		<-ctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Printf("shutdown: %v", err)
		}
	}()

	logger.Printf("listening on %s", *addr)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatalf("serve: %v", err)
	}
}

func chatCmd(cfg config.Config, logger *log.Logger, args []string) {
	flags := flag.NewFlagSet("chat", flag.ExitOnError)
	question := flags.String("question", "", "question to ask the assistant")
	instructions := flags.String("instructions", "instructions.json", "path to the instructions file")
	session := flags.String("session", "cli", "session id for conversation continuity")
	if err := flags.Parse(args); err != nil {
		logger.Fatalf("parse chat flags: %v", err)
	}

	if strings.TrimSpace(*question) == "" {
		fmt.Print("Enter your question: ")
		scanner := bufio.NewScanner(os.Stdin)
		if scanner.Scan() {
			*question = scanner.Text()
		}
		if err := scanner.Err(); err != nil {
			logger.Fatalf("read question: %v", err)
		}
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	svc, _, company, err := bootstrap(ctx, cfg, logger)
	if err != nil {
		logger.Fatalf("startup failed: %v", err)
	}

	template, err := prompt.LoadInstructions(*instructions)
	if err != nil {
		logger.Fatalf("load instructions: %v", err)
	}

	result, err := svc.AnswerStream(ctx, rag.Request{
		Query:          *question,
		SystemTemplate: template,
		Company:        cfg.Company,
		Domain:         company.Domain,
		SessionID:      *session,
	}, func(chunk llm.Chunk) error {
		if chunk.Kind == llm.ChunkText {
			fmt.Print(chunk.Text)
		}
		return nil
	})
	if err != nil {
		logger.Fatalf("chat failed: %v", err)
	}

	fmt.Println()
	fmt.Println("-- Final Post-Processed Answer --")
	fmt.Println(result.Final)
	logger.Printf("run_id=%s total_score=%.0f", result.RunID, result.TotalScore)
}

func checkCmd(cfg config.Config, logger *log.Logger, args []string) {
	flags := flag.NewFlagSet("check", flag.ExitOnError)
	query := flags.String("query", "", "query to classify")
	if err := flags.Parse(args); err != nil {
		logger.Fatalf("parse check flags: %v", err)
	}
	if strings.TrimSpace(*query) == "" {
		logger.Fatalf("--query is required")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	_, classifier, _, err := bootstrap(ctx, cfg, logger)
	if err != nil {
		logger.Fatalf("startup failed: %v", err)
	}

	fmt.Println(classifier.ShouldRetrieve(ctx, *query))
}

func printUsage() {
	fmt.Println("Usage: asistente <command> [options]")
	fmt.Println("Commands:")
	fmt.Println("  serve   Run the HTTP API (use --addr to override the listen address)")
	fmt.Println("  chat    Ask a single question from the command line")
	fmt.Println("  check   Classify whether a query would trigger retrieval")
}
