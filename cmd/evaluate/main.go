package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"os"

	"github.com/joho/godotenv"

	"chat-eval/pkg/dataset"
	"chat-eval/pkg/evaluate"
	"chat-eval/pkg/store"
	"chat-eval/pkg/taxonomy"
)

func main() {
	input := flag.String("input", "data/evaluated.json", "Analyzed dataset to score")
	top := flag.Int("top", 15, "Number of mismatches to print (-1 prints all)")
	taxonomyPath := flag.String("taxonomy", "", "Taxonomy YAML file (defaults to the built-in one)")
	dbPath := flag.String("db", "", "SQLite file to record the run in (disabled when empty)")
	flag.Parse()

	_ = godotenv.Load()

	tx, err := taxonomy.Load(*taxonomyPath)
	if err != nil {
		log.Fatalf("Failed to load taxonomy: %v", err)
	}
	ds, err := dataset.Load(*input)
	if err != nil {
		log.Fatalf("Failed to load dataset: %v", err)
	}

	report, err := evaluate.NewEngine(tx).Evaluate(ds)
	if errors.Is(err, evaluate.ErrEmptyDataset) {
		log.Fatalf("Nothing to evaluate in %s", *input)
	}
	if err != nil {
		log.Fatalf("Evaluation failed: %v", err)
	}

	if err := report.Print(os.Stdout, *top); err != nil {
		log.Fatalf("Failed to print report: %v", err)
	}

	if *dbPath == "" {
		return
	}
	st, err := store.Open(*dbPath)
	if err != nil {
		log.Fatalf("Failed to open store: %v", err)
	}
	defer st.Close()
	runID, err := st.RecordEvaluation(context.Background(), *input, report)
	if err != nil {
		log.Fatalf("Failed to record evaluation: %v", err)
	}
	log.Printf("Recorded evaluation run %s in %s", runID, *dbPath)
}
