package persona

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadAndLookup(t *testing.T) {
	dir := t.TempDir()
	characters := `{"model_5": {"name": "Aya", "identity": "a cheerful guide"}}`
	scripts := `{"script_1": {"description": "a cafe chat", "assistant_role": "barista"}}`
	if err := os.WriteFile(filepath.Join(dir, "characters.json"), []byte(characters), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "scripts.json"), []byte(scripts), 0o644); err != nil {
		t.Fatal(err)
	}

	store, err := Load(dir)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	c := store.Character("model_5")
	if c.Name != "Aya" || c.ID != "model_5" {
		t.Fatalf("unexpected character %+v", c)
	}
	s := store.Script("script_1")
	if s.Description != "a cafe chat" {
		t.Fatalf("unexpected script %+v", s)
	}
}

func TestUnknownIDsFallBack(t *testing.T) {
	store, err := Load(t.TempDir())
	if err != nil {
		t.Fatalf("load empty dir: %v", err)
	}
	if c := store.Character("ghost"); c.Name != "Companion" {
		t.Fatalf("expected generic companion, got %+v", c)
	}
	if s := store.Script("ghost"); s.ID != "ghost" {
		t.Fatalf("expected empty script with id, got %+v", s)
	}
}
