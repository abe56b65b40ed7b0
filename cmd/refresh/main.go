package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"votecore/internal/config"
	"votecore/internal/container"
	"votecore/internal/domain"
	"votecore/pkg/logger"
)

func main() {
	pollID := flag.String("poll-id", "", "refresh only this poll")
	force := flag.Bool("force", false, "refresh even when the published total is current")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.LogLevel)
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	c, err := container.New(ctx, cfg, log)
	if err != nil {
		fmt.Printf("Failed to initialize: %v\n", err)
		os.Exit(1)
	}

	code := run(ctx, c, *pollID, *force)
	c.Close(context.Background())
	os.Exit(code)
}

func run(ctx context.Context, c *container.Container, pollID string, force bool) int {
	if pollID != "" {
		return refreshOne(ctx, c, pollID, force)
	}

	report, err := c.Refresher.RefreshAll(ctx, force)
	if err != nil {
		fmt.Printf("Refresh stopped: %v\n", err)
	}
	fmt.Printf("Successfully updated %d polls\n", report.Updated)
	if err != nil || report.Failed > 0 {
		if report.Failed > 0 {
			fmt.Printf("%d polls failed to refresh\n", report.Failed)
		}
		return 1
	}
	return 0
}

func refreshOne(ctx context.Context, c *container.Container, pollID string, force bool) int {
	poll, err := c.Repository.GetPoll(ctx, pollID)
	if errors.Is(err, domain.ErrPollNotFound) {
		fmt.Printf("Poll with ID %s not found\n", pollID)
		return 1
	}
	if err != nil {
		fmt.Printf("Failed to load poll: %v\n", err)
		return 1
	}

	if _, err := c.Refresher.RefreshOne(ctx, pollID, force); err != nil {
		fmt.Printf("Failed to refresh poll %s: %v\n", pollID, err)
		return 1
	}
	fmt.Printf("Successfully updated results for poll: %s\n", poll.Title)
	return 0
}
