package session

import (
	"testing"
	"time"
)

func TestCreateGetDelete(t *testing.T) {
	r := NewRegistry("ENG")
	r.Create("s1")
	if !r.Exists("s1") {
		t.Fatal("expected session to exist after create")
	}
	snap, ok := r.Snapshot("s1")
	if !ok || snap.ID != "s1" {
		t.Fatalf("unexpected snapshot: %+v ok=%v", snap, ok)
	}
	r.Delete("s1")
	if r.Exists("s1") {
		t.Fatal("expected session gone after delete")
	}
	if _, ok := r.Snapshot("s1"); ok {
		t.Fatal("expected snapshot miss after delete")
	}
}

func TestRecreateIsFresh(t *testing.T) {
	r := NewRegistry("ENG")
	r.Create("s1")
	r.AppendHistory("s1", "hello")
	r.SetToken("s1", NewToken("s1"))
	r.AppendLog("s1", "char", LogEntry{Role: "user", Text: "hello"})
	r.Delete("s1")

	r.Create("s1")
	snap, _ := r.Snapshot("s1")
	if len(snap.History) != 0 {
		t.Fatalf("expected empty history, got %v", snap.History)
	}
	if snap.ActiveToken != "" {
		t.Fatalf("expected no active token, got %q", snap.ActiveToken)
	}
	if got := r.Log("s1", "char"); len(got) != 0 {
		t.Fatalf("expected empty log, got %v", got)
	}
}

func TestDeleteUnknownIsNoop(t *testing.T) {
	r := NewRegistry("ENG")
	r.Delete("never-created")
}

func TestGuardStaleness(t *testing.T) {
	r := NewRegistry("ENG")
	g := NewGuard(r)
	r.Create("s1")

	t1 := NewToken("s1")
	g.SetActive("s1", t1)
	if !g.IsActive("s1", t1) {
		t.Fatal("expected t1 active")
	}

	t2 := NewToken("s1")
	if t1 == t2 {
		t.Fatal("expected distinct tokens")
	}
	g.SetActive("s1", t2)
	if g.IsActive("s1", t1) {
		t.Fatal("expected t1 stale after t2 activation")
	}
	if !g.IsActive("s1", t2) {
		t.Fatal("expected t2 active")
	}
}

func TestGuardUnknownSession(t *testing.T) {
	r := NewRegistry("ENG")
	g := NewGuard(r)
	if g.IsActive("ghost", NewToken("ghost")) {
		t.Fatal("unknown session must never be active")
	}
}

func TestSettingGetOrCreate(t *testing.T) {
	r := NewRegistry("ENG")
	// Setting written before explicit create must still land.
	r.SetSetting("s1", "rag_mode", "true")
	if got := r.Setting("s1", "rag_mode"); got != "true" {
		t.Fatalf("expected setting to survive, got %q", got)
	}
	if !r.Exists("s1") {
		t.Fatal("expected implicit session create")
	}
}

func TestLogSnapshotIsolation(t *testing.T) {
	r := NewRegistry("ENG")
	r.Create("s1")
	r.AppendLog("s1", "char", LogEntry{Role: "user", Text: "one", Timestamp: time.Now()})
	snap := r.Log("s1", "char")
	snap[0].Text = "mutated"
	if got := r.Log("s1", "char"); got[0].Text != "one" {
		t.Fatalf("log snapshot not isolated: %q", got[0].Text)
	}
}

func TestTrimLog(t *testing.T) {
	r := NewRegistry("ENG")
	r.Create("s1")
	for _, text := range []string{"a", "b", "c", "d"} {
		r.AppendLog("s1", "char", LogEntry{Role: "user", Text: text})
	}
	r.TrimLog("s1", "char", 2)
	got := r.Log("s1", "char")
	if len(got) != 2 || got[0].Text != "c" || got[1].Text != "d" {
		t.Fatalf("unexpected trimmed log: %v", got)
	}
}

func TestSummaryAndTopic(t *testing.T) {
	r := NewRegistry("ENG")
	r.Create("s1")
	r.SetSummary("s1", "char", "they talked about rain")
	r.SetTopic("s1", "char", "umbrellas")
	if r.Summary("s1", "char") != "they talked about rain" {
		t.Fatal("summary not stored")
	}
	if r.Topic("s1", "char") != "umbrellas" {
		t.Fatal("topic not stored")
	}
	if r.Summary("s1", "other") != "" {
		t.Fatal("expected empty summary for other character")
	}
}
