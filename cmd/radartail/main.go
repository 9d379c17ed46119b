// Command radartail follows a radar server's websocket feed and prints a
// summary of each radar as it changes.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/rickgao/odds-history/internal/model"
	"github.com/rickgao/odds-history/internal/publish"
	"github.com/rickgao/odds-history/internal/radarfeed"
)

func main() {
	url := flag.String("url", "ws://localhost:8080/ws", "radar server websocket URL")
	top := flag.Int("top", 10, "number of moves to print per radar")
	debug := flag.Bool("debug", false, "enable debug logging")
	flag.Parse()

	level := slog.LevelInfo
	if *debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	sub := radarfeed.NewSubscriber(radarfeed.DefaultConfig(*url), logger)
	logger.Info("following radar feed", "url", *url)

	sub.Run(ctx, func(r model.Radar) {
		fmt.Println(publish.FormatSummary(r, *top))
		fmt.Println()
	})
	logger.Info("radartail stopped")
}
