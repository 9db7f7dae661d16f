// Command archiver runs one archive sweep on behalf of a staff account and
// optionally writes xlsx exports. Intended for cron.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"teukbyeolsil/internal/archive"
	"teukbyeolsil/internal/config"
	"teukbyeolsil/internal/database"
	"teukbyeolsil/internal/kst"
	"teukbyeolsil/shared/access"
	"teukbyeolsil/shared/audit"
)

type options struct {
	configPath string
	actorID    string
	since      string
	export     bool
	tables     bool
	dryRun     bool
}

func main() {
	var opts options
	flag.StringVar(&opts.configPath, "config", os.Getenv("CONFIG_PATH"), "path to config.yaml")
	flag.StringVar(&opts.actorID, "actor", os.Getenv("ARCHIVER_ACTOR"), "id of the teacher or admin running the sweep")
	flag.BoolVar(&opts.export, "export", false, "write the archive to an xlsx file after sweeping")
	flag.BoolVar(&opts.tables, "tables", false, "write every table to an xlsx file")
	flag.StringVar(&opts.since, "since", "", "export only rows archived on or after this date (YYYY-MM-DD)")
	flag.BoolVar(&opts.dryRun, "dry-run", false, "skip the sweep")
	flag.Parse()

	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).With().Timestamp().Logger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, opts, &logger); err != nil {
		logger.Error().Err(err).Msg("archiver failed")
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context, opts options, logger *zerolog.Logger) error {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	var since time.Time
	if opts.since != "" {
		if since, err = kst.ParseDate(opts.since); err != nil {
			return fmt.Errorf("invalid -since %q: %w", opts.since, err)
		}
	}

	db, err := database.NewDB(cfg.Database.Path, logger)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer db.Close()

	actor, err := access.NewService(db, *logger).CurrentActor(ctx, opts.actorID)
	if err != nil {
		return fmt.Errorf("actor %q: %w", opts.actorID, err)
	}
	if err := access.RequireStaff(actor); err != nil {
		return fmt.Errorf("actor %q: %w", opts.actorID, err)
	}
	log := logger.With().Str("actor_id", actor.ID).Logger()

	if !opts.dryRun {
		sweeper := archive.NewSweeper(db, archive.Policy{Retention: cfg.ArchiveRetention()}, nil, &log)
		res, err := sweeper.Sweep(ctx)
		if err != nil {
			return fmt.Errorf("sweep: %w", err)
		}
		ev := log.Info()
		if res.Warning != nil {
			ev = log.Warn().Err(res.Warning)
		}
		ev.Int("archived", res.Archived).Int("deleted", res.Deleted).Msg("sweep finished")
	}

	exporter := audit.NewExporter(db, db, nil, log)
	now := time.Now()
	if opts.export {
		path, n, err := exporter.WriteArchiveFile(ctx, cfg.Archive.ExportDir, since, now)
		if err != nil {
			return fmt.Errorf("export archive: %w", err)
		}
		log.Info().Str("path", path).Int("rows", n).Msg("archive exported")
	}
	if opts.tables {
		path, err := exporter.WriteTablesFile(ctx, cfg.Archive.ExportDir, now)
		if err != nil {
			return fmt.Errorf("export tables: %w", err)
		}
		log.Info().Str("path", path).Msg("tables exported")
	}
	return nil
}
