package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"minote-exporter/cmd/minote-exporter/commands"
	"minote-exporter/lib/telemetry"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	telemetry.InitSlog(false)

	tel, err := telemetry.SetupFromEnv(ctx, "minote-exporter")
	if err != nil {
		slog.Debug("telemetry disabled", "err", err)
	} else {
		telemetry.InstrumentPerfStats(ctx)
		defer tel.Shutdown(context.Background())
	}

	if err := commands.Execute(ctx); err != nil {
		os.Exit(1)
	}
}
