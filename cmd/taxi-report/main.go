// Command taxi-report prints the ledger of one license. With -follow it keeps
// running and reprints the report whenever an entry event for that license
// arrives on the broker.
package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"time"

	"taxiledger/internal/amqp"
	"taxiledger/internal/cli"
	"taxiledger/internal/log"
	"taxiledger/internal/report"
	"taxiledger/internal/storage"
	"taxiledger/internal/worker"
)

func main() {
	cli.LoadEnvFile()

	license := flag.String("license", storage.DemoLicense, "license to report on")
	month := flag.String("month", "", "month to summarize (YYYY-MM), default current")
	year := flag.String("year", "", "year to summarize (YYYY), default current")
	follow := flag.Bool("follow", false, "reprint on every entry event (requires AMQP_URL)")
	flag.Parse()

	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"), log.ComponentReport)
	cfg := cli.LoadAndValidateConfig(logger)

	ctx, stop := cli.SignalContext()
	defer stop()

	be := cli.InitBackend(ctx, logger, cfg)
	defer func() {
		if be.Cleanup != nil {
			_ = be.Cleanup()
		}
	}()

	loc := cfg.Location()
	w := worker.NewReportWorker(be.Repository, os.Stdout,
		report.Options{License: *license, Month: *month, Year: *year},
		func() time.Time { return time.Now().In(loc) })

	if err := w.Print(ctx); err != nil {
		logger.Error("Report failed", log.FieldError, err, log.FieldLicense, *license)
		os.Exit(1)
	}
	if !*follow {
		return
	}

	if be.Events == nil {
		logger.Error("Follow mode needs a reachable AMQP broker", "amqp_url_set", cfg.AMQPURL != "")
		os.Exit(1)
	}

	err := be.Events.ConsumeEntryEvents(ctx, func(ev *amqp.EntryEvent) error {
		return w.HandleEntryEvent(ctx, ev)
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Event consumption failed", log.FieldError, err)
		os.Exit(1)
	}
}
