package pipeline

import (
	"sync"
	"time"

	"github.com/vocata-labs/vocata-core/internal/protocol"
	"github.com/vocata-labs/vocata-core/internal/session"
)

// Recognition is one finalized user utterance handed from the transcription
// stage to the reply stage.
type Recognition struct {
	Text      string
	Token     session.Token
	SessionID string
	Timestamp time.Time
}

// Sentence is one speakable sentence handed from the reply stage to the
// synthesis stage.
type Sentence struct {
	Text      string
	Token     session.Token
	SessionID string
}

// QueueSet bundles the hand-off queues of one session: inbound audio frames,
// finalized recognitions, and speakable sentences.
type QueueSet struct {
	Frames       *Queue[protocol.AudioFrame]
	Recognitions *Queue[Recognition]
	Sentences    *Queue[Sentence]
}

// QueueRegistry hands out per-session queue sets. The queues themselves are
// intentionally dumb; every drop/skip policy lives in the stages.
type QueueRegistry struct {
	mu   sync.Mutex
	sets map[string]*QueueSet
}

func NewQueueRegistry() *QueueRegistry {
	return &QueueRegistry{sets: make(map[string]*QueueSet)}
}

// Get returns the session's queue set, creating it on first use.
func (r *QueueRegistry) Get(sessionID string) *QueueSet {
	r.mu.Lock()
	defer r.mu.Unlock()
	set, ok := r.sets[sessionID]
	if !ok {
		set = &QueueSet{
			Frames:       NewQueue[protocol.AudioFrame](),
			Recognitions: NewQueue[Recognition](),
			Sentences:    NewQueue[Sentence](),
		}
		r.sets[sessionID] = set
	}
	return set
}

// Delete drops the queue set along with anything still buffered in it.
func (r *QueueRegistry) Delete(sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sets, sessionID)
}

// AudioBus hands out the per-session outbound packet queue consumed by the
// audio-out transport.
type AudioBus struct {
	mu     sync.Mutex
	queues map[string]*Queue[protocol.AudioPacket]
}

func NewAudioBus() *AudioBus {
	return &AudioBus{queues: make(map[string]*Queue[protocol.AudioPacket])}
}

// Queue returns the session's outbound queue, creating it on first use.
func (b *AudioBus) Queue(sessionID string) *Queue[protocol.AudioPacket] {
	b.mu.Lock()
	defer b.mu.Unlock()
	q, ok := b.queues[sessionID]
	if !ok {
		q = NewQueue[protocol.AudioPacket]()
		b.queues[sessionID] = q
	}
	return q
}

// Delete drops the session's outbound queue and any unconsumed packets.
func (b *AudioBus) Delete(sessionID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.queues, sessionID)
}
