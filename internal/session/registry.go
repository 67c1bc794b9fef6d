package session

import (
	"sync"
	"time"
)

// Registry is the process-wide store of session state. One mutex covers the
// whole map, so every operation observes and leaves a consistent state.
type Registry struct {
	mu              sync.Mutex
	sessions        map[string]*State
	defaultLanguage string
}

func NewRegistry(defaultLanguage string) *Registry {
	if defaultLanguage == "" {
		defaultLanguage = "ENG"
	}
	return &Registry{
		sessions:        make(map[string]*State),
		defaultLanguage: defaultLanguage,
	}
}

// Create installs a fresh state for the id, replacing any prior one.
func (r *Registry) Create(sessionID string) *State {
	r.mu.Lock()
	defer r.mu.Unlock()
	state := newState(sessionID, r.defaultLanguage)
	r.sessions[sessionID] = state
	return state
}

// Delete removes the session. Deleting an unknown id is a no-op.
func (r *Registry) Delete(sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, sessionID)
}

// Exists reports whether the session is currently registered.
func (r *Registry) Exists(sessionID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.sessions[sessionID]
	return ok
}

// Snapshot returns a copy of the session's reply-relevant fields, or false if
// the session is unknown.
func (r *Registry) Snapshot(sessionID string) (Snapshot, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	state, ok := r.sessions[sessionID]
	if !ok {
		return Snapshot{}, false
	}
	snap := Snapshot{
		ID:          state.ID,
		Language:    state.Language,
		ActiveToken: state.ActiveToken,
		History:     append([]string(nil), state.History...),
		Settings:    make(map[string]string, len(state.Settings)),
	}
	for k, v := range state.Settings {
		snap.Settings[k] = v
	}
	return snap, true
}

// SetToken records the active generation token. Unknown sessions are ignored:
// a token for a torn-down session can never become active again.
func (r *Registry) SetToken(sessionID string, token Token) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if state, ok := r.sessions[sessionID]; ok {
		state.ActiveToken = token
	}
}

// ActiveToken returns the session's current token and whether the session
// exists.
func (r *Registry) ActiveToken(sessionID string) (Token, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	state, ok := r.sessions[sessionID]
	if !ok {
		return "", false
	}
	return state.ActiveToken, true
}

// AppendHistory records one raw user utterance.
func (r *Registry) AppendHistory(sessionID, text string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if state, ok := r.sessions[sessionID]; ok {
		state.History = append(state.History, text)
	}
}

// SetLanguage updates the session language, creating the session if a client
// pushes the setting before an explicit create.
func (r *Registry) SetLanguage(sessionID, language string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.getOrCreateLocked(sessionID).Language = language
}

// Language returns the session language, falling back to the registry default
// for unknown sessions.
func (r *Registry) Language(sessionID string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if state, ok := r.sessions[sessionID]; ok && state.Language != "" {
		return state.Language
	}
	return r.defaultLanguage
}

// SetSetting writes an ad hoc key. Writers get-or-create so an out-of-order
// settings push before session create still lands.
func (r *Registry) SetSetting(sessionID, key, value string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.getOrCreateLocked(sessionID).Settings[key] = value
}

// Setting reads an ad hoc key; the empty string means unset or unknown session.
func (r *Registry) Setting(sessionID, key string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if state, ok := r.sessions[sessionID]; ok {
		return state.Settings[key]
	}
	return ""
}

// AppendLog adds an entry to a character's conversation log.
func (r *Registry) AppendLog(sessionID, characterID string, entry LogEntry) {
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now()
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	cl := r.getOrCreateLocked(sessionID).charLog(characterID)
	cl.Entries = append(cl.Entries, entry)
}

// Log returns a snapshot copy of a character's log entries.
func (r *Registry) Log(sessionID, characterID string) []LogEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	state, ok := r.sessions[sessionID]
	if !ok {
		return nil
	}
	cl, ok := state.Chars[characterID]
	if !ok {
		return nil
	}
	return append([]LogEntry(nil), cl.Entries...)
}

// TrimLog keeps only the last keep entries of a character's log.
func (r *Registry) TrimLog(sessionID, characterID string, keep int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	state, ok := r.sessions[sessionID]
	if !ok {
		return
	}
	cl, ok := state.Chars[characterID]
	if !ok || len(cl.Entries) <= keep {
		return
	}
	cl.Entries = append([]LogEntry(nil), cl.Entries[len(cl.Entries)-keep:]...)
}

// SetSummary stores the rolling summary for a character.
func (r *Registry) SetSummary(sessionID, characterID, summary string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.getOrCreateLocked(sessionID).charLog(characterID).Summary = summary
}

// Summary returns the rolling summary for a character.
func (r *Registry) Summary(sessionID, characterID string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if state, ok := r.sessions[sessionID]; ok {
		if cl, ok := state.Chars[characterID]; ok {
			return cl.Summary
		}
	}
	return ""
}

// SetTopic stores the next conversation topic for a character.
func (r *Registry) SetTopic(sessionID, characterID, topic string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.getOrCreateLocked(sessionID).charLog(characterID).Topic = topic
}

// Topic returns the next conversation topic for a character.
func (r *Registry) Topic(sessionID, characterID string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if state, ok := r.sessions[sessionID]; ok {
		if cl, ok := state.Chars[characterID]; ok {
			return cl.Topic
		}
	}
	return ""
}

func (r *Registry) getOrCreateLocked(sessionID string) *State {
	state, ok := r.sessions[sessionID]
	if !ok {
		state = newState(sessionID, r.defaultLanguage)
		r.sessions[sessionID] = state
	}
	return state
}
