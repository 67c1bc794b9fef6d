package session

import "time"

// LogEntry is one line of a per-character conversation log.
type LogEntry struct {
	Role      string    `json:"role"` // "user" or "assistant"
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// CharLog holds everything the runtime accumulates for one character within a
// session: the recent exchange log plus the rolling summary and next topic
// produced by background summarization.
type CharLog struct {
	Entries []LogEntry
	Summary string
	Topic   string
}

// State is the authoritative per-session record. All mutation goes through
// Registry so that readers never observe a partially updated state.
type State struct {
	ID          string
	Language    string
	ActiveToken Token
	History     []string
	Settings    map[string]string
	Chars       map[string]*CharLog
}

func newState(id, language string) *State {
	return &State{
		ID:       id,
		Language: language,
		Settings: make(map[string]string),
		Chars:    make(map[string]*CharLog),
	}
}

func (s *State) charLog(characterID string) *CharLog {
	cl := s.Chars[characterID]
	if cl == nil {
		cl = &CharLog{}
		s.Chars[characterID] = cl
	}
	return cl
}

// Snapshot is an immutable copy of the fields the reply stage needs when it
// starts working on an utterance.
type Snapshot struct {
	ID          string
	Language    string
	ActiveToken Token
	History     []string
	Settings    map[string]string
}
