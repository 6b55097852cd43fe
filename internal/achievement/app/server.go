// Package app composes the tracking engine with its transport, storage, and
// HTTP surface. It is the application-level composition point: the engine is
// constructed and torn down here, never at import time.
package app

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"

	"github.com/wcarena/tracker/internal/achievement/bus"
	"github.com/wcarena/tracker/internal/achievement/engine"
	"github.com/wcarena/tracker/internal/achievement/storage"
)

// Server exposes the engine's query, event, and lifecycle surfaces over
// HTTP. Rendering is the consumer's problem; the server only reports
// authoritative state and streams typed events.
type Server struct {
	engine  *engine.Engine
	journal storage.AwardJournal
	userID  string
}

// NewServer wires the HTTP surface. The journal is optional; without it the
// awards listing is empty.
func NewServer(eng *engine.Engine, journal storage.AwardJournal, userID string) *Server {
	return &Server{engine: eng, journal: journal, userID: userID}
}

// Handler builds the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/definitions", s.handleDefinitions)
	mux.HandleFunc("GET /v1/definitions/{id}", s.handleDefinition)
	mux.HandleFunc("GET /v1/progress", s.handleProgress)
	mux.HandleFunc("GET /v1/progress/completed/{id}", s.handleCompleted)
	mux.HandleFunc("GET /v1/awards", s.handleAwards)
	mux.HandleFunc("POST /v1/refresh", s.handleRefresh)
	mux.HandleFunc("GET /v1/events", s.handleEvents)
	return mux
}

func (s *Server) handleDefinitions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"definitions": s.engine.Definitions()})
}

func (s *Server) handleDefinition(w http.ResponseWriter, r *http.Request) {
	def, ok := s.engine.Definition(r.PathValue("id"))
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "definition not found"})
		return
	}
	writeJSON(w, http.StatusOK, def)
}

func (s *Server) handleProgress(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.engine.Progress())
}

func (s *Server) handleCompleted(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	writeJSON(w, http.StatusOK, map[string]any{
		"achievementId": id,
		"completed":     s.engine.IsCompleted(id),
	})
}

func (s *Server) handleAwards(w http.ResponseWriter, r *http.Request) {
	if s.journal == nil {
		writeJSON(w, http.StatusOK, map[string]any{"awards": []storage.AwardRecord{}})
		return
	}
	awards, err := s.journal.ListAwards(r.Context(), s.userID, 0)
	if err != nil {
		log.Printf("list awards: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "awards unavailable"})
		return
	}
	if awards == nil {
		awards = []storage.AwardRecord{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"awards": awards})
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if err := s.engine.Refresh(r.Context()); err != nil {
		log.Printf("refresh: %v", err)
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "refreshed"})
}

// handleEvents bridges the bus to external observers over server-sent
// events. Slow consumers drop events rather than block publishers.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	events := make(chan bus.Event, 16)
	forward := func(evt bus.Event) {
		select {
		case events <- evt:
		default:
		}
	}

	eventBus := s.engine.Bus()
	names := []string{
		engine.EventInitialized,
		engine.EventRefreshed,
		engine.EventProgressUpdated,
		engine.EventAchievementsAwarded,
	}
	subs := make([]*bus.Subscription, 0, len(names))
	for _, name := range names {
		subs = append(subs, eventBus.Subscribe(name, forward))
	}
	defer func() {
		for _, sub := range subs {
			eventBus.Unsubscribe(sub)
		}
	}()

	for {
		select {
		case <-r.Context().Done():
			return
		case evt := <-events:
			payload, err := json.Marshal(evt.Payload)
			if err != nil {
				log.Printf("encode %s event: %v", evt.Name, err)
				continue
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", evt.Name, payload)
			flusher.Flush()
		}
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("encode response: %v", err)
	}
}
