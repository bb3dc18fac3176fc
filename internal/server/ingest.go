package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/wombastisch/roundrank/internal/auth"
	"github.com/wombastisch/roundrank/internal/match"
)

// feedMessage is the envelope for every event the game-server plugin
// pushes over the feed socket.
type feedMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// feedConn is one connected game-server feed. Outbound notifications
// go through the send channel so the write pump is the only writer.
type feedConn struct {
	conn *websocket.Conn
	send chan feedMessage
}

// handleIngest upgrades the game-server feed connection and consumes
// its event stream. Events on one connection are handled sequentially
// by the read loop; the lifecycle serializes across connections.
func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if err := auth.ValidateToken(token, s.cfg.FeedSecret); err != nil {
		s.logger.Warn("feed rejected", "remote", r.RemoteAddr, "err", err)
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		s.logger.Error("feed accept", "err", err)
		return
	}
	defer conn.CloseNow()

	fc := &feedConn{conn: conn, send: make(chan feedMessage, 64)}
	s.register(fc)
	defer s.unregister(fc)

	s.metrics.IncrFeedConn()
	defer s.metrics.DecrFeedConn()
	s.logger.Info("feed connected", "remote", r.RemoteAddr)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	go s.writePump(ctx, fc)

	for {
		var msg feedMessage
		if err := wsjson.Read(ctx, conn, &msg); err != nil {
			s.logger.Info("feed disconnected", "remote", r.RemoteAddr)
			return
		}
		s.metrics.IncrEvent()
		s.dispatch(msg)
	}
}

func (s *Server) register(fc *feedConn) {
	s.feedsMu.Lock()
	defer s.feedsMu.Unlock()
	s.feeds[fc] = struct{}{}
}

func (s *Server) unregister(fc *feedConn) {
	s.feedsMu.Lock()
	defer s.feedsMu.Unlock()
	delete(s.feeds, fc)
}

func (s *Server) writePump(ctx context.Context, fc *feedConn) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case msg := <-fc.send:
			if err := wsjson.Write(ctx, fc.conn, msg); err != nil {
				return
			}
		case <-ticker.C:
			if err := fc.conn.Ping(ctx); err != nil {
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

// RatingChanged implements rating.Notifier by relaying each adjustment
// to every connected feed, where the plugin prints it to the player.
func (s *Server) RatingChanged(steamID string, delta, before, after float64) {
	payload, _ := json.Marshal(map[string]any{
		"steam_id": steamID,
		"delta":    delta,
		"before":   before,
		"after":    after,
	})
	msg := feedMessage{Type: "rating_change", Payload: payload}

	s.feedsMu.Lock()
	defer s.feedsMu.Unlock()
	for fc := range s.feeds {
		select {
		case fc.send <- msg:
		default:
			s.logger.Warn("feed send buffer full, notification dropped")
		}
	}
}

func (s *Server) dispatch(msg feedMessage) {
	switch msg.Type {
	case "round_start":
		s.lifecycle.RoundStart()

	case "round_end":
		var p struct {
			Winner string `json:"winner"`
		}
		if err := json.Unmarshal(msg.Payload, &p); err != nil {
			s.logger.Warn("bad round_end payload", "err", err)
			return
		}
		if s.lifecycle.RoundEnd(match.ParseSide(p.Winner)) {
			s.metrics.IncrRound()
		}

	case "player_active":
		var p struct {
			SteamID string `json:"steam_id"`
			Name    string `json:"name"`
			Side    string `json:"side"`
			Slot    int64  `json:"slot"`
		}
		if err := json.Unmarshal(msg.Payload, &p); err != nil || p.SteamID == "" {
			s.logger.Warn("bad player_active payload", "err", err)
			return
		}
		s.lifecycle.PlayerActive(p.SteamID, p.Name, match.ParseSide(p.Side), p.Slot)

	case "player_joined":
		var p struct {
			SteamID string `json:"steam_id"`
			Name    string `json:"name"`
		}
		if err := json.Unmarshal(msg.Payload, &p); err != nil || p.SteamID == "" {
			s.logger.Warn("bad player_joined payload", "err", err)
			return
		}
		s.lifecycle.PlayerJoined(p.SteamID, p.Name)

	case "player_left":
		var p struct {
			SteamID string `json:"steam_id"`
		}
		if err := json.Unmarshal(msg.Payload, &p); err != nil {
			s.logger.Warn("bad player_left payload", "err", err)
			return
		}
		s.lifecycle.PlayerLeft(p.SteamID)

	case "match_end":
		s.lifecycle.MatchEnd()

	default:
		s.logger.Debug("unknown feed event", "type", msg.Type)
	}
}
