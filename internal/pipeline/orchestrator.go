package pipeline

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/vocata-labs/vocata-core/internal/session"
)

// Orchestrator owns session lifecycle: Start installs fresh state and spawns
// the reply and synthesis loops; Stop cancels them and tears all session
// resources down. The transcription stage is not started here, it runs per
// audio connection.
type Orchestrator struct {
	registry *session.Registry
	queues   *QueueRegistry
	audio    *AudioBus
	reply    *ReplyStage
	synth    *SynthesisStage
	log      *slog.Logger

	mu      sync.Mutex
	running map[string]*runningSession
	onStart func(ctx context.Context, sessionID string)
	onStop  func(sessionID string)
}

type runningSession struct {
	cancel context.CancelFunc
	done   chan struct{}
}

func NewOrchestrator(
	registry *session.Registry,
	queues *QueueRegistry,
	audio *AudioBus,
	reply *ReplyStage,
	synth *SynthesisStage,
	log *slog.Logger,
) *Orchestrator {
	return &Orchestrator{
		registry: registry,
		queues:   queues,
		audio:    audio,
		reply:    reply,
		synth:    synth,
		log:      log.With(slog.String("component", "orchestrator")),
		running:  make(map[string]*runningSession),
	}
}

// SetHooks installs transport callbacks invoked when a session starts and
// stops. Must be called before any session is started.
func (o *Orchestrator) SetHooks(onStart func(ctx context.Context, sessionID string), onStop func(sessionID string)) {
	o.onStart = onStart
	o.onStop = onStop
}

// Start brings up a session. Starting an id that is already running restarts
// it with fresh state.
func (o *Orchestrator) Start(ctx context.Context, sessionID string) {
	o.Stop(sessionID)

	o.registry.Create(sessionID)
	o.queues.Get(sessionID)
	o.audio.Queue(sessionID)

	sctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	o.mu.Lock()
	o.running[sessionID] = &runningSession{cancel: cancel, done: done}
	o.mu.Unlock()

	go func() {
		defer close(done)
		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			if err := o.reply.Run(sctx, sessionID); err != nil && sctx.Err() == nil {
				o.log.Warn("reply loop exited", slog.String("session_id", sessionID), slog.String("error", err.Error()))
			}
		}()
		go func() {
			defer wg.Done()
			if err := o.synth.Run(sctx, sessionID); err != nil && sctx.Err() == nil {
				o.log.Warn("synthesis loop exited", slog.String("session_id", sessionID), slog.String("error", err.Error()))
			}
		}()
		wg.Wait()
	}()

	if o.onStart != nil {
		o.onStart(ctx, sessionID)
	}
	o.log.Info("session started", slog.String("session_id", sessionID))
}

// Stop tears a session down, waiting briefly for its stage loops to park
// before the queues are dropped. Stopping an unknown id is a no-op.
func (o *Orchestrator) Stop(sessionID string) {
	o.mu.Lock()
	r, ok := o.running[sessionID]
	delete(o.running, sessionID)
	o.mu.Unlock()

	if ok {
		if o.onStop != nil {
			o.onStop(sessionID)
		}
		r.cancel()
		select {
		case <-r.done:
		case <-time.After(2 * time.Second):
			o.log.Warn("session stages slow to exit", slog.String("session_id", sessionID))
		}
	}

	o.registry.Delete(sessionID)
	o.queues.Delete(sessionID)
	o.audio.Delete(sessionID)

	if ok {
		o.log.Info("session stopped", slog.String("session_id", sessionID))
	}
}

// Active reports whether the session's stage loops are running.
func (o *Orchestrator) Active(sessionID string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	_, ok := o.running[sessionID]
	return ok
}

// Close stops every running session.
func (o *Orchestrator) Close() {
	o.mu.Lock()
	ids := make([]string, 0, len(o.running))
	for id := range o.running {
		ids = append(ids, id)
	}
	o.mu.Unlock()
	for _, id := range ids {
		o.Stop(id)
	}
}
