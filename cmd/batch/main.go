package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/drireneleemd/mri-safety/internal/config"
	"github.com/drireneleemd/mri-safety/internal/domain"
	"github.com/drireneleemd/mri-safety/internal/setup"
)

func main() {
	var (
		mrns     = flag.String("mrns", "", "comma or newline separated list of MRNs")
		mrnFile  = flag.String("file", "", "path to a file containing MRNs, one per line")
		mode     = flag.String("mode", "", "assessment mode: fhir or triage (defaults to configured mode)")
		output   = flag.String("output", "", "output path for the spreadsheet (defaults to configured filename)")
		showRows = flag.Bool("print", false, "print each result row to stdout")
	)
	flag.Parse()

	input := *mrns
	if *mrnFile != "" {
		data, err := os.ReadFile(*mrnFile)
		if err != nil {
			log.Fatalf("Failed to read MRN file: %v", err)
		}
		input = string(data)
	}
	if input == "" {
		log.Fatal("No MRNs provided: use -mrns or -file")
	}

	// Load configuration
	configManager, err := config.NewManager()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	cfg := configManager.GetConfig()
	if *mode != "" {
		cfg.Assessment.Mode = domain.AssessmentMode(*mode)
	}

	if err := configManager.Validate(); err != nil {
		log.Fatalf("Configuration validation failed: %v", err)
	}

	logger := setup.NewLogger(cfg.Logging)

	pipeline, err := setup.BuildPipeline(cfg, logger)
	if err != nil {
		log.Fatalf("Failed to build assessment pipeline: %v", err)
	}
	defer pipeline.Close()

	// Cancel the run on interrupt
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		log.Println("Interrupt received, canceling batch run...")
		cancel()
	}()

	progress := func(event domain.ProgressEvent) {
		fmt.Printf("[%d/%d] %s: %s %s\n", event.Index, event.Total, event.MRN, event.Stage, event.Message)
	}

	result, err := pipeline.Processor.Run(ctx, input, cfg.Assessment.Mode, progress)
	if err != nil {
		log.Fatalf("Batch run failed: %v", err)
	}

	if *showRows {
		for _, row := range result.Rows {
			fmt.Printf("%s\t%s\t%s\n", row.MRN, row.SafetyStatus, row.RiskLevel)
		}
	}

	path := *output
	if path == "" {
		path = pipeline.ReportWriter.Filename(result.Mode)
	}
	if err := pipeline.ReportWriter.WriteFile(ctx, result, path); err != nil {
		log.Fatalf("Failed to write report: %v", err)
	}

	fmt.Printf("Assessed %d patients in %s mode, report written to %s\n", result.SubmittedCount, result.Mode, path)
}
