package main

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/peterbourgon/ff/v4"
	"github.com/peterbourgon/ff/v4/ffhelp"

	"github.com/zombor/expense-tracker/internal/extraction"
	"github.com/zombor/expense-tracker/internal/scanning"
)

//go:embed VERSION.txt
var versionFile string

var version = strings.TrimSpace(versionFile)

// receipt-extract prints the interpretation of a receipt as JSON. The input is
// OCR text, read from a file argument or stdin, or an image when a recognizer
// is selected.
func main() {
	_ = godotenv.Load()

	fs := ff.NewFlagSet("receipt-extract")
	var (
		recognizerType = fs.StringLong("recognizer", "", "Read an image with 'vision', 'gemini' or 'ollama' instead of text")
		visionKey      = fs.StringLong("vision-key", "", "Google Cloud Vision API key")
		geminiKey      = fs.StringLong("gemini-key", "", "Google Gemini API key (or set GEMINI_API_KEY env var)")
		geminiModel    = fs.StringLong("gemini-model", "gemini-2.5-flash", "Google Gemini model name")
		ollamaURL      = fs.StringLong("ollama-url", "http://localhost:11434", "Ollama API base URL")
		ollamaModel    = fs.StringLong("ollama-model", "llava", "Ollama model name")
		showText       = fs.BoolLong("text", "Include the recognized text in the output")
		showVersion    = fs.BoolLong("version", "Show version information")
	)

	if err := ff.Parse(fs, os.Args[1:],
		ff.WithEnvVarPrefix("EXPENSE_TRACKER"),
	); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", ffhelp.Flags(fs))
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	if *showVersion {
		fmt.Println(version)
		os.Exit(0)
	}

	cfg := config{
		recognizer:  *recognizerType,
		visionKey:   *visionKey,
		geminiKey:   *geminiKey,
		geminiModel: *geminiModel,
		ollamaURL:   *ollamaURL,
		ollamaModel: *ollamaModel,
		showText:    *showText,
	}
	if err := run(cfg, fs.GetArgs()); err != nil {
		slog.Error("Failed to extract receipt", "error", err)
		os.Exit(1)
	}
}

type config struct {
	recognizer  string
	visionKey   string
	geminiKey   string
	geminiModel string
	ollamaURL   string
	ollamaModel string
	showText    bool
}

// run reads the input, recognizes it when a recognizer is set and writes the
// interpretation to stdout
func run(cfg config, args []string) error {
	var (
		input []byte
		name  string
		err   error
	)
	switch len(args) {
	case 0:
		input, err = io.ReadAll(os.Stdin)
	case 1:
		name = args[0]
		input, err = os.ReadFile(name)
	default:
		err = errors.New("expected at most one input file")
	}
	if err != nil {
		return fmt.Errorf("reading input: %w", err)
	}

	text := string(input)
	if cfg.recognizer != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()

		recognizer, err := newRecognizer(ctx, cfg)
		if err != nil {
			return fmt.Errorf("initializing %s recognizer: %w", cfg.recognizer, err)
		}
		defer recognizer.Close()

		text, err = recognizer.RecognizeText(ctx, input, mime.TypeByExtension(filepath.Ext(name)))
		if err != nil && !errors.Is(err, scanning.ErrNoText) {
			return fmt.Errorf("recognizing text: %w", err)
		}
	}

	output := struct {
		Text string `json:"text,omitempty"`
		extraction.Result
	}{Result: extraction.Extract(text)}
	if cfg.showText {
		output.Text = text
	}

	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(output); err != nil {
		return fmt.Errorf("writing output: %w", err)
	}
	return nil
}

func newRecognizer(ctx context.Context, cfg config) (scanning.Recognizer, error) {
	switch cfg.recognizer {
	case "vision":
		opts, err := scanning.VisionOptions(cfg.visionKey, "")
		if err != nil {
			return nil, err
		}
		return scanning.NewVision(ctx, opts...)
	case "gemini":
		key := cfg.geminiKey
		if key == "" {
			key = os.Getenv("GEMINI_API_KEY")
		}
		return scanning.NewGemini(ctx, key, cfg.geminiModel)
	case "ollama":
		return scanning.NewOllama(cfg.ollamaURL, cfg.ollamaModel)
	default:
		return nil, fmt.Errorf("unknown recognizer %q", cfg.recognizer)
	}
}
