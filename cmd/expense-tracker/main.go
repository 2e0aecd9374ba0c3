package main

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/peterbourgon/ff/v4"
	"github.com/peterbourgon/ff/v4/ffhelp"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	versioncollector "github.com/prometheus/client_golang/prometheus/collectors/version"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	promversion "github.com/prometheus/common/version"

	"github.com/zombor/expense-tracker/internal/receipt"
	"github.com/zombor/expense-tracker/internal/scanning"
)

const appName = "expense_tracker"

//go:embed VERSION.txt
var versionFile string

var version = strings.TrimSpace(versionFile)

func main() {
	// Check for version flag before parsing other flags
	for _, arg := range os.Args[1:] {
		if arg == "--version" || arg == "-version" || arg == "-v" {
			fmt.Println(version)
			os.Exit(0)
		}
	}

	// a missing .env file is fine
	_ = godotenv.Load()

	fs := ff.NewFlagSet("expense-tracker")
	var (
		port              = fs.IntLong("port", 8080, "HTTP server port")
		dbPath            = fs.StringLong("db", "expense-tracker.db", "Database file path")
		storagePath       = fs.StringLong("storage", "./receipts", "Storage directory path")
		recognizerType    = fs.StringLong("recognizer", "vision", "Text recognizer: 'vision', 'gemini' or 'ollama'")
		visionKey         = fs.StringLong("vision-key", "", "Google Cloud Vision API key")
		visionCredentials = fs.StringLong("vision-credentials", "", "Google Cloud service account JSON file (or set GOOGLE_APPLICATION_CREDENTIALS)")
		geminiKey         = fs.StringLong("gemini-key", "", "Google Gemini API key (or set GEMINI_API_KEY env var)")
		geminiModel       = fs.StringLong("gemini-model", "gemini-2.5-flash", "Google Gemini model name")
		ollamaURL         = fs.StringLong("ollama-url", "http://localhost:11434", "Ollama API base URL")
		ollamaModel       = fs.StringLong("ollama-model", "llava", "Ollama model name (e.g., llava, qwen2-vl)")
		ocrAttempts       = fs.IntLong("ocr-attempts", 3, "Attempts per text recognition request")
		ocrDelay          = fs.DurationLong("ocr-delay", time.Second, "Delay between text recognition attempts")
		users             = fs.StringLong("users", "", "Basic auth users as name:password,name:password (optional)")
		admins            = fs.StringLong("admins", "", "Comma separated usernames allowed to review receipts and reports")
		batchWorkers      = fs.IntLong("batch-workers", 4, "Receipts of a batch processed at once")
		showVersion       = fs.BoolLong("version", "Show version information")
	)

	if err := ff.Parse(fs, os.Args[1:],
		ff.WithEnvVarPrefix("EXPENSE_TRACKER"),
	); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", ffhelp.Flags(fs))
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	// Check version flag after parsing
	if *showVersion {
		fmt.Println(version)
		os.Exit(0)
	}

	cfg := config{
		port:              *port,
		dbPath:            *dbPath,
		storagePath:       *storagePath,
		recognizer:        *recognizerType,
		visionKey:         *visionKey,
		visionCredentials: *visionCredentials,
		geminiKey:         *geminiKey,
		geminiModel:       *geminiModel,
		ollamaURL:         *ollamaURL,
		ollamaModel:       *ollamaModel,
		ocrAttempts:       max(*ocrAttempts, 1),
		ocrDelay:          *ocrDelay,
		users:             *users,
		admins:            *admins,
		batchWorkers:      *batchWorkers,
	}
	if err := run(cfg); err != nil {
		slog.Error("Server failed", "error", err)
		os.Exit(1)
	}
}

type config struct {
	port              int
	dbPath            string
	storagePath       string
	recognizer        string
	visionKey         string
	visionCredentials string
	geminiKey         string
	geminiModel       string
	ollamaURL         string
	ollamaModel       string
	ocrAttempts       int
	ocrDelay          time.Duration
	users             string
	admins            string
	batchWorkers      int
}

// run serves the API until interrupted
func run(cfg config) error {
	userMap, err := receipt.ParseUsers(cfg.users)
	if err != nil {
		return fmt.Errorf("invalid users: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize database
	slog.Info("Initializing database...")
	db, err := receipt.NewBoltDB(cfg.dbPath)
	if err != nil {
		return fmt.Errorf("initializing database: %w", err)
	}
	defer db.Close()

	recognizer, err := newRecognizer(ctx, cfg)
	if err != nil {
		return err
	}
	recognizer = scanning.NewRetrying(recognizer, uint(cfg.ocrAttempts), cfg.ocrDelay)
	defer recognizer.Close()

	// Initialize storage
	slog.Info("Initializing storage...")
	store, err := receipt.NewLocalStorage(cfg.storagePath)
	if err != nil {
		return fmt.Errorf("initializing storage: %w", err)
	}

	// Metrics
	promversion.Version = version
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		versioncollector.NewCollector(appName),
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	// Initialize service
	receiptService := receipt.NewService(db, recognizer, store).
		WithMetrics(receipt.NewMetrics(reg)).
		WithBatchWorkers(cfg.batchWorkers)

	// Initialize server
	auth := receipt.Auth{
		Users:  userMap,
		Admins: receipt.ParseAdmins(cfg.admins),
	}
	server := receipt.NewServer(receiptService, auth)
	server.Mount("GET /metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.port),
		Handler:           server,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Start server in goroutine
	serveErr := make(chan error, 1)
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	slog.Info("Server started", "address", fmt.Sprintf("http://localhost%s", httpServer.Addr), "version", version)
	if len(userMap) > 0 {
		slog.Info("Basic auth enabled", "users", len(userMap), "admins", len(auth.Admins))
	} else {
		slog.Warn("Basic auth disabled, every request acts as the local admin")
	}

	// Wait for interrupt signal
	select {
	case err := <-serveErr:
		return fmt.Errorf("serving: %w", err)
	case <-ctx.Done():
	}

	slog.Info("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("Shutdown error", "error", err)
	}
	return nil
}

// newRecognizer builds the configured text recognizer
func newRecognizer(ctx context.Context, cfg config) (scanning.Recognizer, error) {
	switch cfg.recognizer {
	case "vision":
		opts, err := scanning.VisionOptions(cfg.visionKey, cfg.visionCredentials)
		if err != nil {
			return nil, fmt.Errorf("invalid Vision credentials: %w", err)
		}
		slog.Info("Initializing Cloud Vision recognizer...")
		recognizer, err := scanning.NewVision(ctx, opts...)
		if err != nil {
			return nil, fmt.Errorf("initializing Cloud Vision: %w", err)
		}
		return recognizer, nil
	case "gemini":
		// Get Gemini API key from flag or environment
		apiKey := cfg.geminiKey
		if apiKey == "" {
			apiKey = os.Getenv("GEMINI_API_KEY")
		}
		if apiKey == "" {
			return nil, errors.New("Gemini API key is required. Set --gemini-key flag or GEMINI_API_KEY environment variable")
		}
		slog.Info("Initializing Gemini recognizer...", "model", cfg.geminiModel)
		recognizer, err := scanning.NewGemini(ctx, apiKey, cfg.geminiModel)
		if err != nil {
			return nil, fmt.Errorf("initializing Gemini: %w", err)
		}
		return recognizer, nil
	case "ollama":
		slog.Info("Initializing Ollama recognizer...", "url", cfg.ollamaURL, "model", cfg.ollamaModel)
		recognizer, err := scanning.NewOllama(cfg.ollamaURL, cfg.ollamaModel)
		if err != nil {
			return nil, fmt.Errorf("initializing Ollama: %w", err)
		}
		return recognizer, nil
	default:
		return nil, fmt.Errorf("invalid recognizer type %q, expected vision, gemini or ollama", cfg.recognizer)
	}
}
