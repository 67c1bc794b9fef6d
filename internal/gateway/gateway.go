// Package gateway exposes the session lifecycle and audio streaming surface
// over HTTP and WebSockets.
package gateway

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/vocata-labs/vocata-core/internal/eventstore"
	"github.com/vocata-labs/vocata-core/internal/persona"
	"github.com/vocata-labs/vocata-core/internal/pipeline"
	"github.com/vocata-labs/vocata-core/internal/protocol"
	"github.com/vocata-labs/vocata-core/internal/session"
)

// Gateway serves the client-facing API: session lifecycle, text input,
// configuration, and the audio-in/audio-out WebSockets.
type Gateway struct {
	orchestrator  *pipeline.Orchestrator
	registry      *session.Registry
	guard         *session.Guard
	queues        *pipeline.QueueRegistry
	audio         *pipeline.AudioBus
	transcription *pipeline.TranscriptionStage
	personas      *persona.Store
	events        *eventstore.Store
	log           *slog.Logger

	transcripts transcriptConns
}

func New(
	orchestrator *pipeline.Orchestrator,
	registry *session.Registry,
	guard *session.Guard,
	queues *pipeline.QueueRegistry,
	audio *pipeline.AudioBus,
	personas *persona.Store,
	events *eventstore.Store,
	log *slog.Logger,
) *Gateway {
	return &Gateway{
		orchestrator: orchestrator,
		registry:     registry,
		guard:        guard,
		queues:       queues,
		audio:        audio,
		personas:     personas,
		events:       events,
		log:          log.With(slog.String("component", "gateway")),
	}
}

// SetTranscription wires the recognition stage. It is set after construction
// because the stage's transcript notifier points back at the gateway.
func (g *Gateway) SetTranscription(stage *pipeline.TranscriptionStage) {
	g.transcription = stage
}

// Register installs all gateway routes on the mux.
func (g *Gateway) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /config", g.handleConfig)
	mux.HandleFunc("POST /sessions", g.handleCreateSession)
	mux.HandleFunc("DELETE /sessions/{id}", g.handleDeleteSession)
	mux.HandleFunc("POST /sessions/{id}/settings", g.handleSettings)
	mux.HandleFunc("GET /sessions/{id}/events", g.handleEvents)
	mux.HandleFunc("POST /respond", g.handleRespond)
	mux.HandleFunc("GET /ws/audio-in/{id}", g.handleAudioIn)
	mux.HandleFunc("GET /ws/audio-out/{id}", g.handleAudioOut)
}

// CORS wraps a handler with permissive cross-origin headers, mirroring the
// browser clients this service fronts.
func CORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (g *Gateway) handleConfig(w http.ResponseWriter, _ *http.Request) {
	payload := map[string]any{
		"characters": map[string]persona.Character{},
		"scripts":    map[string]persona.Script{},
	}
	if g.personas != nil {
		payload["characters"] = g.personas.Characters()
		payload["scripts"] = g.personas.Scripts()
	}
	writeJSON(w, http.StatusOK, payload)
}

func (g *Gateway) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	sessionID := strings.ReplaceAll(uuid.NewString(), "-", "")
	// The session outlives this request, so its context must not inherit
	// the request's cancellation.
	g.orchestrator.Start(context.WithoutCancel(r.Context()), sessionID)
	g.recordSession(r.Context(), sessionID)
	g.log.Info("session created", slog.String("session_id", sessionID))
	writeJSON(w, http.StatusOK, map[string]string{"session_id": sessionID})
}

func (g *Gateway) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("id")
	if !g.registry.Exists(sessionID) {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}
	g.orchestrator.Stop(sessionID)
	writeJSON(w, http.StatusOK, map[string]string{"status": "stopped"})
}

func (g *Gateway) handleSettings(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("id")
	if !g.registry.Exists(sessionID) {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}
	var settings map[string]string
	if err := json.NewDecoder(r.Body).Decode(&settings); err != nil {
		writeError(w, http.StatusBadRequest, "invalid settings payload")
		return
	}
	for key, value := range settings {
		if key == "language" {
			g.registry.SetLanguage(sessionID, strings.ToUpper(value))
			continue
		}
		g.registry.SetSetting(sessionID, key, value)
	}
	g.recordSession(r.Context(), sessionID)
	writeJSON(w, http.StatusOK, map[string]string{"status": "updated"})
}

// recordSession upserts the session row on the audit timeline so its events
// have somewhere to hang.
func (g *Gateway) recordSession(ctx context.Context, sessionID string) {
	if g.events == nil {
		return
	}
	language := g.registry.Language(sessionID)
	character := g.registry.Setting(sessionID, "character")
	if err := g.events.AppendSession(ctx, sessionID, language, character); err != nil {
		g.log.Warn("session record failed",
			slog.String("session_id", sessionID),
			slog.String("error", err.Error()))
	}
}

func (g *Gateway) handleEvents(w http.ResponseWriter, r *http.Request) {
	if g.events == nil {
		writeError(w, http.StatusNotFound, "event timeline disabled")
		return
	}
	sessionID := r.PathValue("id")
	limit := 100
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	events, err := g.events.ListSessionEvents(r.Context(), sessionID, limit)
	if err != nil {
		g.log.Error("event listing failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "event listing failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": events})
}

type respondRequest struct {
	SessionID string `json:"session_id"`
	Text      string `json:"text"`
}

// handleRespond accepts typed text as if it were a finalized utterance: it
// flushes client playback, mints a fresh token, and hands the text to reply
// generation.
func (g *Gateway) handleRespond(w http.ResponseWriter, r *http.Request) {
	var req respondRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.Text = strings.TrimSpace(req.Text)
	if req.SessionID == "" {
		writeError(w, http.StatusBadRequest, "missing session_id")
		return
	}
	if req.Text == "" {
		writeError(w, http.StatusBadRequest, "missing text")
		return
	}
	if !g.registry.Exists(req.SessionID) {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}

	g.audio.Queue(req.SessionID).Put(protocol.Stop(req.SessionID))

	token := session.NewToken(req.SessionID)
	g.guard.SetActive(req.SessionID, token)
	g.queues.Get(req.SessionID).Recognitions.Put(pipeline.Recognition{
		Text:      req.Text,
		Token:     token,
		SessionID: req.SessionID,
		Timestamp: time.Now(),
	})
	g.registry.AppendHistory(req.SessionID, req.Text)
	g.log.Info("text input enqueued",
		slog.String("session_id", req.SessionID),
		slog.String("token", string(token)))

	writeJSON(w, http.StatusOK, map[string]string{"status": "enqueued"})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
