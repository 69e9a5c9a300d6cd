package main

import (
	"context"
	"flag"
	"log"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/example/comanda/internal/config"
	"github.com/example/comanda/internal/models"
	"github.com/example/comanda/internal/services"
	"github.com/example/comanda/internal/terminal"
)

// terminal runs a headless staff terminal: it keeps the board current,
// logs a summary on every refresh and can act as an auto-accept station.
func main() {
	_ = godotenv.Load()

	apiURL := flag.String("api", config.GetEnv("TERMINAL_API_URL", "http://localhost:8080"), "order API base URL")
	feedURL := flag.String("feed", config.GetEnv("TERMINAL_FEED_URL", "ws://localhost:8081/ws"), "change feed URL")
	token := flag.String("token", config.GetEnv("TERMINAL_TOKEN", ""), "terminal token")
	autoAccept := flag.Bool("auto-accept", config.GetEnvBool("AUTO_ACCEPT", false), "accept pending orders automatically")
	poll := flag.Duration("poll", terminal.DefaultPollInterval, "refresh interval while the feed is down")
	flag.Parse()

	if *token == "" {
		log.Fatal("a terminal token is required (-token or TERMINAL_TOKEN)")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client := terminal.NewClient(*apiURL, *feedURL, *token)
	session := terminal.NewSession(client, client, terminal.Options{PollInterval: *poll})

	accepter := services.NewAutoAccepter(client, *autoAccept)
	session.OnRefresh(func(ctx context.Context, snap terminal.Snapshot) {
		if report := accepter.Run(ctx, snap.Orders); report.Accepted > 0 {
			session.RequestRefresh()
		}
	})
	session.OnRefresh(func(_ context.Context, snap terminal.Snapshot) {
		counts := snap.Board.Counts()
		mode := "polling"
		if snap.Live {
			mode = "live"
		}
		summary := "[Board] " + mode
		for _, status := range terminal.BoardStatuses {
			summary += " " + string(status) + "=" + strconv.Itoa(counts[status])
		}
		if oldest, ok := snap.Board.Oldest(models.StatusPending); ok {
			summary += " oldest pending #" + strconv.FormatInt(oldest.OrderNumber, 10) + " waiting " + time.Since(oldest.CreatedAt).Round(time.Second).String()
		}
		log.Print(summary)
	})

	log.Printf("[Terminal] connecting to %s (auto-accept %t)", *apiURL, *autoAccept)
	if err := session.Run(ctx); err != nil {
		log.Fatalf("terminal: %v", err)
	}
}
