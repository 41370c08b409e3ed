package main

import (
	"context"
	"flag"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	"chat-relay/internal/client"
	"chat-relay/internal/logging"
	"chat-relay/internal/tui"
	"chat-relay/internal/utils"
)

func main() {
	_ = utils.LoadEnv()

	server := flag.String("server", utils.GetEnv("CHAT_SERVER", "http://localhost:3001"), "relay base URL")
	name := flag.String("name", "", "display name (skips the login form)")
	phone := flag.String("phone", "", "phone number shown to peers")
	lat := flag.Float64("lat", math.NaN(), "latitude reported by /loc")
	lng := flag.Float64("lng", math.NaN(), "longitude reported by /loc")
	logFile := flag.String("log", filepath.Join(os.TempDir(), "chatclient.log"), "log file")
	flag.Parse()

	logger, err := logging.NewFile(*logFile, utils.GetEnv("LOG_LEVEL", "info"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	wsURL, err := client.WebSocketURL(*server)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	state := client.NewState(nil, logger.Named("state"))
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	conn, err := client.Dial(ctx, wsURL, state, logger.Named("conn"))
	cancel()
	if err != nil {
		fmt.Fprintf(os.Stderr, "connect to relay: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = conn.Close() }()

	var locator client.StaticLocator
	if pos := (client.Coordinates{Lat: *lat, Lng: *lng}); pos.Valid() {
		locator.Position = &pos
	}

	app := tui.NewApp(tui.Options{
		State:    state,
		Session:  conn,
		Composer: client.NewComposer(state, conn, client.NewHTTPUploader(*server), locator, logger.Named("composer")),
		BaseURL:  *server,
		Name:     *name,
		Phone:    *phone,
		Logger:   logger.Named("tui"),
	})
	if err := app.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
