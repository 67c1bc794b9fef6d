package gateway

import (
	"context"
	"log/slog"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/vocata-labs/vocata-core/internal/asr"
	"github.com/vocata-labs/vocata-core/internal/protocol"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  16 * 1024,
	WriteBufferSize: 16 * 1024,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// wsConn serializes writes; gorilla permits one concurrent writer only.
type wsConn struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (c *wsConn) writeJSON(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteJSON(v)
}

func (c *wsConn) writeBinary(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteMessage(websocket.BinaryMessage, data)
}

// transcriptConns tracks the audio-in connection per session so interim and
// final transcripts can be pushed back to the speaking client.
type transcriptConns struct {
	mu    sync.Mutex
	conns map[string]*wsConn
}

func (t *transcriptConns) set(sessionID string, conn *wsConn) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.conns == nil {
		t.conns = make(map[string]*wsConn)
	}
	t.conns[sessionID] = conn
}

func (t *transcriptConns) remove(sessionID string, conn *wsConn) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.conns[sessionID] == conn {
		delete(t.conns, sessionID)
	}
}

func (t *transcriptConns) get(sessionID string) *wsConn {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.conns[sessionID]
}

// NotifyTranscript pushes a transcript event to the session's audio-in
// client. It satisfies pipeline.TranscriptNotifier.
func (g *Gateway) NotifyTranscript(sessionID string, event asr.TranscriptEvent) {
	conn := g.transcripts.get(sessionID)
	if conn == nil {
		return
	}
	kind := "voice_interim"
	if event.Final {
		kind = "voice_final"
	}
	if err := conn.writeJSON(map[string]string{"type": kind, "text": event.Text}); err != nil {
		g.log.Debug("transcript push failed",
			slog.String("session_id", sessionID),
			slog.String("error", err.Error()))
	}
}

// handleAudioIn receives binary PCM frames from the client and feeds them to
// the recognition stream. Transcripts flow back on the same socket.
func (g *Gateway) handleAudioIn(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("id")
	if !g.registry.Exists(sessionID) {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}
	if g.transcription == nil {
		writeError(w, http.StatusServiceUnavailable, "recognition unavailable")
		return
	}

	raw, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		g.log.Warn("audio-in upgrade failed", slog.String("error", err.Error()))
		return
	}
	conn := &wsConn{conn: raw}
	g.transcripts.set(sessionID, conn)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	defer raw.Close()
	defer g.transcripts.remove(sessionID, conn)

	streamDone := make(chan struct{})
	go func() {
		defer close(streamDone)
		if err := g.transcription.Run(ctx, sessionID); err != nil && ctx.Err() == nil {
			g.log.Warn("recognition stream ended",
				slog.String("session_id", sessionID),
				slog.String("error", err.Error()))
		}
	}()

	frames := g.queues.Get(sessionID).Frames
	sequence := 0
	for {
		msgType, data, err := raw.ReadMessage()
		if err != nil {
			g.log.Info("audio-in disconnected", slog.String("session_id", sessionID))
			break
		}
		if msgType != websocket.BinaryMessage || len(data) == 0 {
			continue
		}
		sequence++
		frames.Put(protocol.AudioFrame{
			SessionID: sessionID,
			Sequence:  sequence,
			PCM:       data,
		})
	}

	// Closing the socket ends the utterance: signal end of input and let
	// the recognition stream flush its final result.
	frames.Put(protocol.AudioFrame{SessionID: sessionID, Final: true})
	<-streamDone
}

// handleAudioOut streams synthesized packets to the client: a metadata JSON
// message first, then the raw audio bytes. Stop packets are metadata only.
func (g *Gateway) handleAudioOut(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("id")
	if !g.registry.Exists(sessionID) {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}

	raw, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		g.log.Warn("audio-out upgrade failed", slog.String("error", err.Error()))
		return
	}
	conn := &wsConn{conn: raw}
	defer raw.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	// Drain client messages so close frames are processed.
	go func() {
		for {
			if _, _, err := raw.ReadMessage(); err != nil {
				cancel()
				return
			}
		}
	}()

	queue := g.audio.Queue(sessionID)
	for {
		pkt, err := queue.Get(ctx)
		if err != nil {
			return
		}
		metadata := map[string]any{
			"type":       pkt.Type,
			"session_id": pkt.SessionID,
		}
		if pkt.Sentence != "" {
			metadata["sentence"] = pkt.Sentence
		}
		if pkt.SampleRate > 0 {
			metadata["sample_rate"] = pkt.SampleRate
		}
		if pkt.Tag != "" {
			metadata["tag"] = pkt.Tag
		}
		if err := conn.writeJSON(metadata); err != nil {
			return
		}
		if len(pkt.Audio) > 0 {
			if err := conn.writeBinary(pkt.Audio); err != nil {
				return
			}
		}
	}
}
