// bidwatch is a terminal client for one live auction: it follows the bid
// stream, places manual bids typed on stdin, and can counter rivals
// automatically up to a ceiling.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"auction-live/internal/autobid"
	"auction-live/internal/bidclient"
	model "auction-live/internal/models"
	"auction-live/internal/session"
	"auction-live/utils"

	"github.com/olekukonko/tablewriter"
)

func main() {
	apiURL := flag.String("api", "http://localhost:8080", "backend base URL")
	wsURL := flag.String("ws", "ws://localhost:8080/ws", "realtime websocket URL")
	auctionID := flag.String("auction", "a1", "auction to follow")
	userID := flag.String("user", "", "user id to bid as")
	username := flag.String("name", "", "display name (defaults to user id)")
	ceiling := flag.Float64("autobid", 0, "auto-bid ceiling, 0 disables auto-bidding")
	logLevel := flag.String("log-level", "warn", "log level")
	flag.Parse()

	if *userID == "" {
		fmt.Fprintln(os.Stderr, "missing -user")
		os.Exit(1)
	}
	if *username == "" {
		*username = *userID
	}
	utils.ConfigureLogger(*logLevel, "text")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	api := bidclient.NewAPIClient(*apiURL, *userID, *username)
	channel := bidclient.NewWSChannel(*wsURL)
	defer channel.Close()

	ctrl := session.NewController(api, channel, *auctionID, *userID, *username)
	defer ctrl.Close()

	loadCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	err := ctrl.Load(loadCtx)
	cancel()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load auction %s: %v\n", *auctionID, err)
		os.Exit(1)
	}
	if err := ctrl.Subscribe(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to subscribe: %v\n", err)
		os.Exit(1)
	}
	go ctrl.Run(ctx)

	agent := autobid.NewAgent(ctrl, channel, *userID)
	defer agent.Close()
	if *ceiling > 0 {
		agent.Enable(*ceiling)
		fmt.Printf("Auto-bidding up to %.2f\n", *ceiling)
	}

	ctrl.SetOnUpdate(func(a model.Auction) { render(a, *userID) })
	if a, ok := ctrl.Snapshot(); ok {
		render(a, *userID)
	}

	fmt.Println("Commands: <amount> to bid, w to toggle watch, q to quit")
	go readCommands(ctx, ctrl, *ceiling)

	<-ctx.Done()
	fmt.Println("\nbye")
}

// readCommands consumes stdin until EOF or cancellation.
func readCommands(ctx context.Context, ctrl *session.Controller, ceiling float64) {
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return
		}
		line := strings.TrimSpace(scanner.Text())
		switch {
		case line == "":
		case line == "q":
			syscall.Kill(syscall.Getpid(), syscall.SIGTERM)
			return
		case line == "w":
			watching, err := ctrl.ToggleWatch(ctx)
			if err != nil {
				fmt.Printf("watch failed: %v\n", err)
				continue
			}
			fmt.Printf("watching: %v\n", watching)
		default:
			amount, err := strconv.ParseFloat(line, 64)
			if err != nil {
				fmt.Printf("unrecognized command %q\n", line)
				continue
			}
			placeBid(ctx, ctrl, amount, ceiling)
		}
	}
}

func placeBid(ctx context.Context, ctrl *session.Controller, amount, ceiling float64) {
	bidCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	// A manual bid with -autobid set carries the ceiling so the backend
	// records the auto-bid intent from the first bid on.
	opts := session.BidOptions{}
	if ceiling > 0 {
		opts = session.BidOptions{EnableAutoBid: true, MaxBid: ceiling}
	}
	attempt, err := ctrl.PlaceBidWithOptions(bidCtx, amount, opts)
	if err != nil {
		fmt.Printf("bid %.2f rejected: %v\n", amount, err)
		return
	}
	fmt.Printf("bid %.2f confirmed (%s)\n", attempt.Amount, attempt.BidID)
}

// render prints the auction header and the most recent bids.
func render(a model.Auction, userID string) {
	remaining := a.TimeRemaining(time.Now()).Round(time.Second)
	marker := ""
	if winning, ok := a.WinningBid(); ok && winning.UserID == userID {
		marker = "  [you are winning]"
	}
	fmt.Printf("\n%s | %s | current %.2f (min next %.2f) | %s left%s\n",
		a.Title, a.Status, a.CurrentBid, a.MinNextBid(), remaining, marker)

	if len(a.Bids) == 0 {
		return
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.Header("Time", "Bidder", "Amount", "Status")

	bids := a.Bids
	if len(bids) > 10 {
		bids = bids[len(bids)-10:]
	}
	for _, bid := range bids {
		name := bid.Username
		if bid.UserID == userID {
			name += " (you)"
		}
		table.Append(
			bid.CreatedAt.Local().Format("15:04:05"),
			name,
			fmt.Sprintf("%.2f", bid.Amount),
			string(bid.Status),
		)
	}
	table.Render()
}
