package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/robfig/cron/v3"

	"github.com/kmori/arxiv-digest/internal/cache"
	"github.com/kmori/arxiv-digest/internal/config"
	"github.com/kmori/arxiv-digest/internal/evaluator"
	"github.com/kmori/arxiv-digest/internal/fetcher"
	"github.com/kmori/arxiv-digest/internal/publisher"
	"github.com/kmori/arxiv-digest/internal/runner"
	"github.com/kmori/arxiv-digest/internal/summarizer"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	once := flag.Bool("once", false, "run the pipeline once and exit")
	daysBack := flag.Int("days-back", 0, "override lookback window in days")
	topN := flag.Int("top-n", 0, "override number of papers to summarize")
	batchSize := flag.Int("batch-size", 0, "override summarization batch size")
	includeAll := flag.Bool("include-all", false, "reprocess already-seen papers")
	noEmail := flag.Bool("no-email", false, "skip email delivery, still writes the HTML digest")
	outDir := flag.String("out", "", "override output directory")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// CLI flags win over the config file.
	if *daysBack > 0 {
		cfg.LookbackDays = *daysBack
	}
	if *topN > 0 {
		cfg.TopN = *topN
	}
	if *batchSize > 0 {
		cfg.BatchSize = *batchSize
	}
	if *includeAll {
		cfg.IncludeAll = true
	}
	if *outDir != "" {
		cfg.Output.Dir = *outDir
	}

	f, err := fetcher.New(cfg)
	if err != nil {
		log.Fatalf("Failed to build fetcher: %v", err)
	}

	s, err := summarizer.New(cfg)
	if err != nil {
		log.Fatalf("Failed to build summarizer: %v", err)
	}
	orch := summarizer.NewOrchestrator(s, cfg.BatchSize, cfg.Summarizer.RequestTimeout(), cfg.Summarizer.MaxAttempts)

	var eval *evaluator.Orchestrator
	if cfg.Evaluator.Type != "none" {
		e, err := evaluator.New(cfg)
		if err != nil {
			log.Fatalf("Failed to build evaluator: %v", err)
		}
		eval = evaluator.NewOrchestrator(e, cfg.BatchSize, cfg.Evaluator.RequestTimeout())
	}

	var pubs []publisher.Publisher
	switch cfg.Publisher.Type {
	case "stdout":
		pubs = append(pubs, publisher.NewStdoutPublisher())
	case "email":
		if !*noEmail {
			pubs = append(pubs, publisher.NewEmailPublisher(
				cfg.Publisher.Email.SMTPHost,
				cfg.Publisher.Email.SMTPPort,
				cfg.Publisher.Email.Username,
				cfg.Publisher.Email.Password,
				cfg.Publisher.Email.From,
				cfg.Publisher.Email.To,
			))
		}
	}
	if cfg.Publisher.Webhook.URL != "" {
		pubs = append(pubs, publisher.NewWebhookNotifier(cfg.Publisher.Webhook.URL))
	}

	store := cache.NewStore(cfg.Cache.Path)
	job := runner.New(cfg, f, orch, eval, store, pubs)

	// Single-run mode: run the pipeline once and exit
	if *once {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		log.Println("Running digest (once mode)...")
		if _, err := job.Run(ctx); err != nil {
			log.Fatalf("Pipeline failed: %v", err)
		}
		log.Println("Done")
		return
	}

	// Set up context with cancellation for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Run immediately on startup if configured
	if cfg.RunOnStart {
		log.Println("Running initial digest...")
		if _, err := job.Run(ctx); err != nil {
			log.Printf("Initial run failed: %v", err)
		}
	}

	// Set up cron scheduler
	c := cron.New()
	_, err = c.AddFunc(cfg.Schedule, func() {
		log.Println("Cron triggered, running digest...")
		if _, err := job.Run(ctx); err != nil {
			log.Printf("Scheduled run failed: %v", err)
		}
	})
	if err != nil {
		log.Fatalf("Failed to set up cron schedule %q: %v", cfg.Schedule, err)
	}
	c.Start()
	log.Printf("Scheduled digest with cron expression: %s", cfg.Schedule)

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	log.Printf("Received signal %v, shutting down...", sig)

	cancel()
	c.Stop()

	log.Println("Shutdown complete")
}
