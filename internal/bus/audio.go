package bus

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"sync"

	"github.com/nats-io/nats.go"

	"github.com/vocata-labs/vocata-core/internal/pipeline"
	"github.com/vocata-labs/vocata-core/internal/protocol"
)

// Edge bridges the audio pipeline onto NATS: inbound frames published on
// audio.in.<session> feed the transcription stage, and outbound packets are
// relayed to audio.out.<session>. It is the bus-side counterpart of the
// gateway's audio WebSockets; a deployment uses one edge or the other per
// session.
type Edge struct {
	client        *Client
	queues        *pipeline.QueueRegistry
	audio         *pipeline.AudioBus
	transcription *pipeline.TranscriptionStage
	log           *slog.Logger

	mu       sync.Mutex
	sessions map[string]context.CancelFunc
	sub      *nats.Subscription
}

func NewEdge(client *Client, queues *pipeline.QueueRegistry, audio *pipeline.AudioBus, transcription *pipeline.TranscriptionStage, log *slog.Logger) *Edge {
	return &Edge{
		client:        client,
		queues:        queues,
		audio:         audio,
		transcription: transcription,
		log:           log.With(slog.String("component", "audio-edge")),
		sessions:      make(map[string]context.CancelFunc),
	}
}

// Start subscribes to the inbound frame subjects.
func (e *Edge) Start(ctx context.Context) error {
	subject := protocol.SubjectAudioIn("*")
	sub, err := e.client.Conn().Subscribe(subject, e.handleFrame)
	if err != nil {
		return err
	}
	e.sub = sub
	e.log.Info("audio edge listening", slog.String("subject", subject))
	return nil
}

func (e *Edge) handleFrame(msg *nats.Msg) {
	sessionID := strings.TrimPrefix(msg.Subject, protocol.SubjectAudioIn(""))
	if sessionID == "" || sessionID == msg.Subject {
		return
	}

	var frame protocol.AudioFrame
	if err := json.Unmarshal(msg.Data, &frame); err != nil {
		e.log.Warn("invalid audio frame", slog.String("session_id", sessionID), slog.String("error", err.Error()))
		return
	}
	frame.SessionID = sessionID
	e.queues.Get(sessionID).Frames.Put(frame)
}

// AttachSession starts a recognition stream and an outbound relay for the
// session. Attaching an already attached session restarts both.
func (e *Edge) AttachSession(ctx context.Context, sessionID string) {
	e.DetachSession(sessionID)

	sctx, cancel := context.WithCancel(ctx)
	e.mu.Lock()
	e.sessions[sessionID] = cancel
	e.mu.Unlock()

	go func() {
		if err := e.transcription.Run(sctx, sessionID); err != nil && sctx.Err() == nil {
			e.log.Warn("recognition stream ended",
				slog.String("session_id", sessionID),
				slog.String("error", err.Error()))
		}
	}()
	go e.relayOutbound(sctx, sessionID)

	e.log.Info("session attached to audio edge", slog.String("session_id", sessionID))
}

// DetachSession stops the session's stream and relay.
func (e *Edge) DetachSession(sessionID string) {
	e.mu.Lock()
	cancel, ok := e.sessions[sessionID]
	delete(e.sessions, sessionID)
	e.mu.Unlock()
	if ok {
		cancel()
	}
}

func (e *Edge) relayOutbound(ctx context.Context, sessionID string) {
	out := e.audio.Queue(sessionID)
	subject := protocol.SubjectAudioOut(sessionID)
	for {
		pkt, err := out.Get(ctx)
		if err != nil {
			return
		}
		data, err := json.Marshal(pkt)
		if err != nil {
			e.log.Warn("packet marshal failed", slog.String("session_id", sessionID), slog.String("error", err.Error()))
			continue
		}
		if err := e.client.Conn().Publish(subject, data); err != nil {
			e.log.Warn("packet publish failed", slog.String("session_id", sessionID), slog.String("error", err.Error()))
		}
	}
}

// Close detaches every session and drops the frame subscription.
func (e *Edge) Close() {
	e.mu.Lock()
	for id, cancel := range e.sessions {
		cancel()
		delete(e.sessions, id)
	}
	e.mu.Unlock()
	if e.sub != nil {
		_ = e.sub.Drain()
	}
}
