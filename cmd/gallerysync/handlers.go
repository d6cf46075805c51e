package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"go.uber.org/zap"

	"github.com/tomszw/gallerysync/internal/config"
	"github.com/tomszw/gallerysync/internal/ingest"
	"github.com/tomszw/gallerysync/internal/scheduler"
	"github.com/tomszw/gallerysync/internal/store"
	"github.com/tomszw/gallerysync/pkg/media"
	"github.com/tomszw/gallerysync/pkg/source"
)

func loadConfig() (*config.Config, error) {
	path := cfgFile
	if path == "" {
		if _, err := os.Stat("config.yaml"); err == nil {
			path = "config.yaml"
		}
	}
	return config.Load(path)
}

func newLogger() (*zap.SugaredLogger, error) {
	zl, err := zap.NewProduction()
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	return zl.Sugar(), nil
}

func buildCoordinator(cfg *config.Config, db store.Store, log *zap.SugaredLogger) *ingest.Coordinator {
	client := source.NewReddit(cfg.Source.ClientID, cfg.Source.ClientSecret, cfg.Source.UserAgent)
	validator := media.NewValidator(cfg.Source.UserAgent)
	return ingest.New(db, client, validator, log, ingest.Options{
		BatchSize:    cfg.Sync.BatchSize,
		Workers:      cfg.Sync.Workers,
		MaxAttempts:  cfg.Sync.MaxAttempts,
		ListingLimit: cfg.Source.Limit,
	})
}

// readSubsFile reads the {"subs": [...]} community list format.
func readSubsFile(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	var subs struct {
		Subs []string `json:"subs"`
	}
	if err := json.Unmarshal(data, &subs); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return subs.Subs, nil
}

func runSync(names []string, subsFile string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log, err := newLogger()
	if err != nil {
		return err
	}
	defer log.Sync()

	db, err := store.New(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer db.Close()

	if subsFile != "" {
		subs, err := readSubsFile(subsFile)
		if err != nil {
			return err
		}
		names = append(names, subs...)
	}
	names = append(names, cfg.Sync.Communities...)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	coordinator := buildCoordinator(cfg, db, log)

	var summary ingest.Summary
	if len(names) > 0 {
		summary, err = coordinator.SyncList(ctx, names)
	} else {
		summary, err = coordinator.SyncAllActive(ctx)
	}
	if err != nil {
		return fmt.Errorf("sync: %w", err)
	}

	fmt.Printf("synced %d communities: %d posts created, %d skipped, %d ignored, %d assets, %d galleries, %d failed batches\n",
		summary.Communities, summary.Created, summary.Skipped, summary.Ignored,
		summary.Assets, summary.Galleries, summary.FailedBatches)
	return nil
}

func runDaemon() error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log, err := newLogger()
	if err != nil {
		return err
	}
	defer log.Sync()

	db, err := store.New(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer db.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Seed configured communities so the first scheduled sync picks
	// them up.
	for _, ref := range cfg.Sync.Communities {
		if _, _, err := db.GetOrCreateCommunity(ctx, ref); err != nil {
			log.Errorw("seed community failed", "community", ref, "error", err)
		}
	}

	coordinator := buildCoordinator(cfg, db, log)
	sched := scheduler.New(coordinator, log, cfg.Schedule.Cron, cfg.Schedule.SyncOnStart)

	if err := sched.Run(ctx); err != nil && ctx.Err() == nil {
		return fmt.Errorf("scheduler: %w", err)
	}
	return nil
}

func runStats() error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	db, err := store.New(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer db.Close()

	counts, err := db.Counts(context.Background())
	if err != nil {
		return fmt.Errorf("counts: %w", err)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "COMMUNITIES\tPOSTS\tASSETS\tGALLERIES\tIGNORED")
	fmt.Fprintf(w, "%d\t%d\t%d\t%d\t%d\n",
		counts.Communities, counts.Posts, counts.Assets, counts.Galleries, counts.Ignored)
	return w.Flush()
}
