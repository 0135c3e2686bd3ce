// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/gorilla/websocket"

	"github.com/relabs-tech/gnss_receiver/internal/config"
	"github.com/relabs-tech/gnss_receiver/internal/receiver"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for local development
	},
}

// ReceiverDebugSession holds WebSocket connection state for one debug client
type ReceiverDebugSession struct {
	Conn *websocket.Conn

	mu sync.Mutex // serializes writes; diag broadcasts race command replies
}

// WebSocket command for the receiver debug console
type PollCmd struct {
	Action  string `json:"action"`            // "poll", "list"
	Message string `json:"message,omitempty"` // e.g. "UBX_NAV_SOL"
}

// Response type sent back to the debug client
type DebugResponse struct {
	Type      string   `json:"type"` // "diag", "status", "error", "messages"
	Message   string   `json:"message,omitempty"`
	Messages  []string `json:"messages,omitempty"`
	Timestamp string   `json:"timestamp,omitempty"`
}

// debugSessionHub tracks the connected debug sessions so receiver
// diagnostics arriving over MQTT can be fanned out to all of them.
type debugSessionHub struct {
	mu       sync.Mutex
	sessions map[*ReceiverDebugSession]struct{}
}

var debugHub = &debugSessionHub{sessions: make(map[*ReceiverDebugSession]struct{})}

func (h *debugSessionHub) add(s *ReceiverDebugSession) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.sessions[s] = struct{}{}
}

func (h *debugSessionHub) remove(s *ReceiverDebugSession) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.sessions, s)
}

// broadcastDiag forwards one diagnostic text block to every session.
func (h *debugSessionHub) broadcastDiag(text string) {
	h.mu.Lock()
	sessions := make([]*ReceiverDebugSession, 0, len(h.sessions))
	for s := range h.sessions {
		sessions = append(sessions, s)
	}
	h.mu.Unlock()

	resp := DebugResponse{
		Type:      "diag",
		Message:   text,
		Timestamp: time.Now().Format(time.RFC3339),
	}
	for _, s := range sessions {
		s.send(resp)
	}
}

// NewReceiverDebugHandler returns the websocket handler for the live
// receiver debug console. Poll commands are forwarded to the producer over
// the MQTT poll topic; the producer's diagnostic output comes back to the
// client through the session hub.
func NewReceiverDebugHandler(client mqtt.Client, cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Printf("receiver_debug: websocket upgrade error: %v", err)
			return
		}
		defer conn.Close()

		session := &ReceiverDebugSession{Conn: conn}
		debugHub.add(session)
		defer debugHub.remove(session)

		// Tell the client what it can ask for.
		session.send(DebugResponse{
			Type:     "messages",
			Messages: receiver.PollMessages(),
		})

		// Message loop
		for {
			var cmd PollCmd
			err := conn.ReadJSON(&cmd)
			if err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
					log.Printf("receiver_debug: websocket error: %v", err)
				}
				break
			}

			switch cmd.Action {
			case "poll":
				if cmd.Message == "" {
					session.sendError("missing message field")
					continue
				}
				if cfg.TopicPoll == "" {
					session.sendError("no poll topic configured")
					continue
				}
				client.Publish(cfg.TopicPoll, 0, false, cmd.Message)
				session.send(DebugResponse{
					Type:      "status",
					Message:   fmt.Sprintf("poll %s requested", cmd.Message),
					Timestamp: time.Now().Format(time.RFC3339),
				})
			case "list":
				session.send(DebugResponse{
					Type:     "messages",
					Messages: receiver.PollMessages(),
				})
			default:
				session.sendError(fmt.Sprintf("unknown action: %s", cmd.Action))
			}
		}
	}
}

func (s *ReceiverDebugSession) send(resp DebugResponse) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Conn.WriteJSON(resp)
}

func (s *ReceiverDebugSession) sendError(message string) {
	s.send(DebugResponse{
		Type:    "error",
		Message: message,
	})
}
