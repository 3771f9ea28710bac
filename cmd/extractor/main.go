package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/healthdesk/benefits-assistant/internal/api"
	"github.com/healthdesk/benefits-assistant/internal/config"
	"github.com/healthdesk/benefits-assistant/internal/extraction"
	"github.com/healthdesk/benefits-assistant/internal/extraction/eval"
	"github.com/healthdesk/benefits-assistant/internal/llm"
	"github.com/healthdesk/benefits-assistant/internal/logger"
	"github.com/healthdesk/benefits-assistant/internal/ocr"
)

const (
	completionReportFile  = "completion_report.json"
	correctnessReportFile = "correctness_report.json"
)

func main() {
	generateDir := flag.String("generate", "", "Convert every OCR text .md file in this directory to .json and exit")
	evaluateDir := flag.String("evaluate", "", "Score the extracted .json files in this directory and exit")
	truthDir := flag.String("ground-truth", "", "With -evaluate, compare against the .json files in this directory")
	flag.Parse()

	// Offline scoring needs neither the model nor OCR.
	if *evaluateDir != "" {
		log, err := logger.New(os.Getenv("LOG_LEVEL"), os.Getenv("LOG_FORMAT"))
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
			os.Exit(1)
		}
		defer log.Sync()
		if err := runEvaluate(*evaluateDir, *truthDir, log); err != nil {
			log.Fatal("Evaluation failed", "error", err)
		}
		return
	}

	// Load configuration
	cfg, err := config.LoadExtractor()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	// Setup logging
	log, err := logger.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	// Initialize LLM client
	gemini, err := llm.NewGeminiClient(context.Background(), cfg.GeminiAPIKey, cfg.ChatModel, "", log)
	if err != nil {
		log.Fatal("Failed to initialize Gemini client", "error", err)
	}
	defer gemini.Close()

	converter, err := extraction.NewConverter(gemini, cfg.ExtractionTimeout, log)
	if err != nil {
		log.Fatal("Failed to initialize converter", "error", err)
	}

	if *generateDir != "" {
		if err := runGenerate(context.Background(), *generateDir, converter, log); err != nil {
			log.Fatal("Generation failed", "error", err)
		}
		return
	}

	// Initialize OCR engine
	var engine ocr.Engine
	switch cfg.OCRProvider {
	case config.OCRProviderDocumentAI:
		dai, err := ocr.NewDocumentAI(context.Background(), cfg.DocumentAIProject, cfg.DocumentAILocation, cfg.DocumentAIProc, log)
		if err != nil {
			log.Fatal("Failed to initialize Document AI", "error", err)
		}
		defer dai.Close()
		engine = dai
	default:
		log.Warn("Using the PDF text layer, scanned forms and images will be rejected")
		engine = ocr.PDFText{}
	}

	stats, err := api.NewProcessStats()
	if err != nil {
		log.Warn("Process stats unavailable, /health will report errors", "error", err)
	}

	handler := api.NewExtractorHandler(engine, converter, cfg.MaxUploadBytes, log)
	router := api.NewExtractorRouter(handler, api.RouterOptions{
		Log:            log,
		AllowedOrigins: cfg.CORSAllowedOrigins,
		Stats:          stats,
	})

	serve(fmt.Sprintf(":%s", cfg.ServerPort), router, log)
}

// runGenerate writes name.json next to every name.md in dir.
func runGenerate(ctx context.Context, dir string, converter *extraction.Converter, log *logger.Logger) error {
	paths, err := filepath.Glob(filepath.Join(dir, "*.md"))
	if err != nil {
		return err
	}
	sort.Strings(paths)
	log.Info("Converting OCR text files", "dir", dir, "files", len(paths))

	failed := 0
	for _, p := range paths {
		text, err := os.ReadFile(p)
		if err != nil {
			return err
		}
		doc, err := converter.Convert(ctx, string(text))
		if err != nil {
			log.Error("Conversion failed", "file", p, "error", err)
			failed++
			continue
		}
		out := strings.TrimSuffix(p, filepath.Ext(p)) + ".json"
		if err := writeFile(out, doc.Encode); err != nil {
			return err
		}
		log.Info("Converted", "file", p, "output", out)
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d files failed", failed, len(paths))
	}
	return nil
}

// runEvaluate writes the completion report for dir and, with truthDir, the
// correctness report. Files pair up by sorted name.
func runEvaluate(dir, truthDir string, log *logger.Logger) error {
	files, err := readDocuments(dir)
	if err != nil {
		return err
	}
	docs, skipped := eval.ParseDocuments(files)
	for _, err := range skipped {
		log.Warn("Skipped unreadable document", "error", err)
	}

	report := eval.Evaluate(docs)
	if err := writeFile(filepath.Join(dir, completionReportFile), func(w io.Writer) error {
		return eval.WriteJSON(w, report)
	}); err != nil {
		return err
	}
	eval.PrintReport(os.Stdout, report)
	log.Info("Completion report written", "documents", len(docs), "fill_accuracy", report.AverageFillAccuracy)

	if truthDir == "" {
		return nil
	}
	truthFiles, err := readDocuments(truthDir)
	if err != nil {
		return err
	}
	truth, truthSkipped := eval.ParseDocuments(truthFiles)
	if len(skipped) > 0 || len(truthSkipped) > 0 {
		return fmt.Errorf("cannot pair documents: %d extracted and %d ground-truth files are unreadable", len(skipped), len(truthSkipped))
	}
	correctness, err := eval.EvaluateWithGroundTruth(docs, truth)
	if err != nil {
		return err
	}
	if err := writeFile(filepath.Join(dir, correctnessReportFile), func(w io.Writer) error {
		return eval.WriteJSON(w, correctness)
	}); err != nil {
		return err
	}
	fmt.Println()
	eval.PrintCorrectness(os.Stdout, correctness)
	log.Info("Correctness report written", "documents", len(docs), "document_correctness", correctness.DocumentCorrectness)
	return nil
}

// readDocuments reads dir's JSON files, leaving out earlier reports.
func readDocuments(dir string) ([]eval.File, error) {
	files, err := eval.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	out := files[:0]
	for _, f := range files {
		if f.Name == completionReportFile || f.Name == correctnessReportFile {
			continue
		}
		out = append(out, f)
	}
	return out, nil
}

func writeFile(path string, write func(w io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := write(f); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}

func serve(addr string, handler http.Handler, log *logger.Logger) {
	srv := &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 90 * time.Second, // OCR plus a model call
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.Info("Starting extractor. Press Ctrl+C to quit.", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Could not listen", "addr", addr, "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down extractor...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error("Server forced to shutdown", "error", err)
		return
	}
	log.Info("Extractor exiting gracefully")
}
