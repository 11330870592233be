package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/flxgame/gamesync/client/network"
	"github.com/flxgame/gamesync/client/session"
	"github.com/flxgame/gamesync/pkg/log"
	"github.com/flxgame/gamesync/pkg/version"
)

// Headless play-session simulator. Drives a burst of local mutations
// through the coalescer and lets the poller reconcile, which is handy
// for watching the sync behavior against a real server.
func main() {
	serverURL := flag.String("server-url", "http://localhost:9090", "Sync server base URL")
	token := flag.String("token", "", "Platform identity token (Telegram init data)")
	moves := flag.Int("moves", 30, "Total moves to play")
	logLevel := flag.String("log-level", "debug", "Log level")
	flag.Parse()

	parsedLogLevel, err := log.ParseLogLevel(*logLevel)
	if err != nil {
		panic(fmt.Sprintf("Failed to parse log level: %v", err))
	}

	logger := log.New(os.Stdout, "", log.DefaultLoggerFlag, parsedLogLevel)
	log.SetDefaultLogger(logger)

	log.Info("Starting client version %s", version.Get())

	if *token == "" {
		panic("token must be set")
	}

	client := network.NewClient(network.NewClientOptions{
		BaseURL: *serverURL,
		Token:   *token,
	})

	s := session.NewSession(session.NewSessionOptions{
		Client: client,
		OnError: func(err error) {
			log.Warn("Sync error: %v", err)
		},
	})
	defer s.Close()

	ctx := context.Background()
	if err := s.Start(ctx); err != nil {
		panic(fmt.Sprintf("Failed to start session: %v", err))
	}

	user := s.User()
	log.Info("Playing as %s (points: %d)", user.ID, user.Points)

	score, _ := s.Snapshot()
	for i := *moves; i > 0; i-- {
		score += 1500
		s.SetScore(score)
		s.SetMoves(int64(i - 1))
		log.Debug("Move %d: score=%d", *moves-i+1, score)
		time.Sleep(200 * time.Millisecond)
	}

	// let the last debounce window elapse and a poll cycle run
	time.Sleep(6 * time.Second)

	finalScore, finalMoves := s.Snapshot()
	log.Info("Session finished: score=%d movesRemaining=%d", finalScore, finalMoves)
}
