package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"

	"chat-eval/pkg/analysis"
	"chat-eval/pkg/llm"
	"chat-eval/pkg/store"
	"chat-eval/pkg/taxonomy"
	"chat-eval/pkg/workspace"
)

func main() {
	defaults := workspace.DefaultServiceConfig()

	datasetPath := flag.String("dataset", defaults.DatasetPath, "Dataset file to review")
	provider := flag.String("provider", defaults.Provider, "LLM provider for re-analysis (empty disables it)")
	model := flag.String("model", defaults.Model, "Model used for re-analysis")
	baseURL := flag.String("base-url", "", "Provider endpoint override")
	taxonomyPath := flag.String("taxonomy", "", "Taxonomy YAML file (defaults to the built-in one)")
	dbPath := flag.String("db", "", "SQLite file for analysis and evaluation history (disabled when empty)")
	staticDir := flag.String("static", "./static", "Directory with the review UI")
	port := flag.Int("port", 8080, "Port to listen on")
	verbose := flag.Bool("verbose", false, "Log prompts and raw model output")
	flag.Parse()

	_ = godotenv.Load()
	if *verbose {
		slog.SetLogLoggerLevel(slog.LevelDebug)
	}

	tx, err := taxonomy.Load(*taxonomyPath)
	if err != nil {
		log.Fatalf("Failed to load taxonomy: %v", err)
	}

	var analyzer *analysis.Analyzer
	if *provider != "" {
		client, err := llm.NewClient(context.Background(), llm.Config{
			Provider: *provider,
			Model:    *model,
			BaseURL:  *baseURL,
			Timeout:  5 * time.Minute,
		})
		if err != nil {
			log.Fatalf("Failed to create client: %v", err)
		}
		analyzer = analysis.New(client, tx, analysis.DefaultConfig())
	}

	var st *store.Store
	if *dbPath != "" {
		st, err = store.Open(*dbPath)
		if err != nil {
			log.Fatalf("Failed to open store: %v", err)
		}
		defer st.Close()
	}

	svc := workspace.NewService(workspace.ServiceConfig{
		DatasetPath: *datasetPath,
		Provider:    *provider,
		Model:       *model,
	}, tx, analyzer, st)

	mux := http.NewServeMux()
	svc.RegisterRoutes(mux)

	// Serve static files, falling back to index.html for SPA routing.
	fs := http.FileServer(http.Dir(*staticDir))
	mux.Handle("/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := filepath.Join(*staticDir, filepath.Clean(r.URL.Path))
		if _, err := os.Stat(path); err == nil && r.URL.Path != "/" {
			fs.ServeHTTP(w, r)
			return
		}
		http.ServeFile(w, r, filepath.Join(*staticDir, "index.html"))
	}))

	addr := fmt.Sprintf("127.0.0.1:%d", *port)
	log.Printf("Serving %s on %s", *datasetPath, addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Fatalf("Failed to bind to %s: %v", addr, err)
	}
}
