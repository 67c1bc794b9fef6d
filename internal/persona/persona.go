package persona

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Character describes one selectable voice persona.
type Character struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Identity string `json:"identity"`
	// RAGCollection names the knowledge collection backing this
	// character, when retrieval is enabled.
	RAGCollection string `json:"rag_collection,omitempty"`
}

// Script describes one conversation scenario.
type Script struct {
	ID            string `json:"id"`
	Description   string `json:"description"`
	AssistantRole string `json:"assistant_role"`
	AssistantGoal string `json:"assistant_goal"`
	UserRole      string `json:"user_role"`
}

// Store holds the static character and script data loaded at startup.
type Store struct {
	characters map[string]Character
	scripts    map[string]Script
}

// Load reads characters.json and scripts.json from dir. Missing files yield
// an empty store rather than an error, matching a fresh deployment.
func Load(dir string) (*Store, error) {
	store := &Store{
		characters: make(map[string]Character),
		scripts:    make(map[string]Script),
	}
	if err := loadJSON(filepath.Join(dir, "characters.json"), &store.characters); err != nil {
		return nil, fmt.Errorf("load characters: %w", err)
	}
	if err := loadJSON(filepath.Join(dir, "scripts.json"), &store.scripts); err != nil {
		return nil, fmt.Errorf("load scripts: %w", err)
	}
	for id, c := range store.characters {
		if c.ID == "" {
			c.ID = id
			store.characters[id] = c
		}
	}
	for id, s := range store.scripts {
		if s.ID == "" {
			s.ID = id
			store.scripts[id] = s
		}
	}
	return store, nil
}

func loadJSON(path string, target any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	return json.Unmarshal(data, target)
}

// Character returns the character for id, or a generic companion when the id
// is unknown so a bad setting never breaks a conversation.
func (s *Store) Character(id string) Character {
	if c, ok := s.characters[id]; ok {
		return c
	}
	return Character{ID: id, Name: "Companion"}
}

// Script returns the script for id, or an empty scenario when unknown.
func (s *Store) Script(id string) Script {
	if sc, ok := s.scripts[id]; ok {
		return sc
	}
	return Script{ID: id}
}

// Characters returns all loaded characters keyed by id.
func (s *Store) Characters() map[string]Character {
	out := make(map[string]Character, len(s.characters))
	for k, v := range s.characters {
		out[k] = v
	}
	return out
}

// Scripts returns all loaded scripts keyed by id.
func (s *Store) Scripts() map[string]Script {
	out := make(map[string]Script, len(s.scripts))
	for k, v := range s.scripts {
		out[k] = v
	}
	return out
}
