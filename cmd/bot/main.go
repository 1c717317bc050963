package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"streamBot/internal/app/runtime"
)

func main() {
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel(),
	})))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	run, err := runtime.Start(ctx, runtime.Options{})
	if err != nil {
		slog.Error("startup failed", slog.Any("err", err))
		os.Exit(1)
	}

	<-ctx.Done()
	slog.Info("shutting down")
	if err := run.Stop(); err != nil {
		slog.Error("shutdown error", slog.Any("err", err))
		os.Exit(1)
	}
}

func logLevel() slog.Level {
	switch os.Getenv("LOG_LEVEL") {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
