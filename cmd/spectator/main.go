// Package main - spectator
// Connects to a running office-server over WebSocket. Each client creates a
// match, plays it with a naive strategy and prints what it sees. With many
// clients it doubles as a load generator.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/overtimegame/server/internal/engine"
	"github.com/overtimegame/server/internal/network"
	"github.com/overtimegame/server/internal/platform/logger"
)

// Config for the spectator.
type Config struct {
	ServerURL    string
	NumClients   int
	Rounds       int
	RulesProfile string
	TestDuration time.Duration
	Quiet        bool
}

// Stats tracks what the clients saw.
type Stats struct {
	CommandsSent   int64
	Events         int64
	Rejections     int64
	RoundsFinished int64
	Errors         int64
}

func main() {
	serverURL := flag.String("url", "http://localhost:8080", "Server base URL")
	numClients := flag.Int("clients", 1, "Number of concurrent matches")
	rounds := flag.Int("rounds", 1, "Rounds to play per match")
	profile := flag.String("rules", "", "Rules profile, empty for the server default")
	duration := flag.Duration("duration", 2*time.Minute, "Give up after this long")
	quiet := flag.Bool("quiet", false, "Do not print events")
	flag.Parse()

	cfg := Config{
		ServerURL:    *serverURL,
		NumClients:   *numClients,
		Rounds:       *rounds,
		RulesProfile: *profile,
		TestDuration: *duration,
		Quiet:        *quiet || *numClients > 1,
	}

	log := logger.NewLogger()
	defer log.Sync()

	ctx, cancel := context.WithTimeout(context.Background(), cfg.TestDuration)
	defer cancel()
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	stats := &Stats{}
	start := time.Now()

	var wg sync.WaitGroup
	for i := 0; i < cfg.NumClients; i++ {
		wg.Add(1)
		go func(clientID int) {
			defer wg.Done()
			if err := runClient(ctx, cfg, stats); err != nil {
				atomic.AddInt64(&stats.Errors, 1)
				log.Warn("Client stopped", "client", clientID, "error", err)
			}
		}(i)
		// Stagger client starts to avoid thundering herd
		time.Sleep(10 * time.Millisecond)
	}
	wg.Wait()

	elapsed := time.Since(start)
	fmt.Printf("clients %d, elapsed %v\n", cfg.NumClients, elapsed.Round(time.Millisecond))
	fmt.Printf("commands %d, events %d, rejections %d, rounds %d, errors %d\n",
		stats.CommandsSent, stats.Events, stats.Rejections, stats.RoundsFinished, stats.Errors)
	if stats.Errors > 0 {
		os.Exit(1)
	}
}

func createMatch(ctx context.Context, cfg Config) (string, error) {
	body, err := json.Marshal(map[string]string{"rules_profile": cfg.RulesProfile})
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, cfg.ServerURL+"/api/matches", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to create match: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		return "", fmt.Errorf("failed to create match: status %d", resp.StatusCode)
	}
	var out struct {
		MatchID string `json:"match_id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", err
	}
	return out.MatchID, nil
}

func runClient(ctx context.Context, cfg Config, stats *Stats) error {
	matchID, err := createMatch(ctx, cfg)
	if err != nil {
		return err
	}

	u, err := url.Parse(cfg.ServerURL)
	if err != nil {
		return err
	}
	if u.Scheme == "https" {
		u.Scheme = "wss"
	} else {
		u.Scheme = "ws"
	}
	u.Path = "/ws"
	u.RawQuery = url.Values{"match_id": {matchID}}.Encode()

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}
	defer conn.Close()
	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	send := func(cmd network.Command) error {
		atomic.AddInt64(&stats.CommandsSent, 1)
		return conn.WriteJSON(cmd)
	}
	if err := send(network.Command{Type: network.CmdSnapshot}); err != nil {
		return err
	}

	finished := 0
	for {
		var msg network.ServerMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}

		switch msg.Kind {
		case network.KindEvent:
			atomic.AddInt64(&stats.Events, 1)
			if !cfg.Quiet && msg.Event != nil {
				fmt.Printf("[%s r%d t%d] %s %s -> %s\n", matchID[:8], msg.Event.Round, msg.Event.Turn,
					msg.Event.Type, msg.Event.ActorID, msg.Event.TargetID)
			}
			continue
		case network.KindError:
			return fmt.Errorf("server error: %s", msg.Error)
		}

		if msg.Result != nil && !msg.Result.Accepted {
			atomic.AddInt64(&stats.Rejections, 1)
		}
		if msg.Snapshot == nil {
			continue
		}
		cmd, done := nextCommand(*msg.Snapshot, &finished, cfg.Rounds)
		if done {
			atomic.AddInt64(&stats.RoundsFinished, int64(finished))
			return nil
		}
		if cmd == nil {
			// Enemy turn still running; ask again shortly.
			time.Sleep(100 * time.Millisecond)
			cmd = &network.Command{Type: network.CmdSnapshot}
		}
		if err := send(*cmd); err != nil {
			return err
		}
	}
}

// nextCommand picks the first playable card, otherwise ends the turn.
func nextCommand(s engine.Snapshot, finished *int, rounds int) (*network.Command, bool) {
	switch s.State {
	case engine.StatePlayerTurn:
		for _, c := range s.Hand {
			if c.Playable {
				return &network.Command{Type: network.CmdPlayCard, InstanceID: c.InstanceID}, false
			}
		}
		return &network.Command{Type: network.CmdEndTurn}, false
	case engine.StateLunchBreak:
		return &network.Command{Type: network.CmdChooseLunch, Option: "TunaSalad"}, false
	case engine.StateRoundOver:
		*finished = len(s.RoundHistory)
		if *finished >= rounds {
			return nil, true
		}
		return &network.Command{Type: network.CmdNextRound}, false
	}
	return nil, false
}
