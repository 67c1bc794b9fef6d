package pipeline

import (
	"strings"
	"testing"
)

func TestSegmenterBasicSentences(t *testing.T) {
	var seg Segmenter
	got := seg.Push("Hello world. How are you? Fine!")
	want := []string{"Hello world.", "How are you?", "Fine!"}
	if len(got) != len(want) {
		t.Fatalf("expected %d sentences, got %v", len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("sentence %d: expected %q, got %q", i, want[i], got[i])
		}
	}
	if tail := seg.Flush(); tail != "" {
		t.Fatalf("expected empty residual buffer, got %q", tail)
	}
}

func TestSegmenterIncrementalFragments(t *testing.T) {
	var seg Segmenter
	if got := seg.Push("It's "); len(got) != 0 {
		t.Fatalf("expected no sentence yet, got %v", got)
	}
	got := seg.Push("sunny.")
	if len(got) != 1 || got[0] != "It's sunny." {
		t.Fatalf("unexpected sentences: %v", got)
	}
}

func TestSegmenterCJKPunctuation(t *testing.T) {
	var seg Segmenter
	got := seg.Push("こんにちは。元気ですか？")
	if len(got) != 2 {
		t.Fatalf("expected 2 sentences, got %v", got)
	}
	if got[0] != "こんにちは。" || got[1] != "元気ですか？" {
		t.Fatalf("unexpected sentences: %v", got)
	}
}

func TestSegmenterForcedSplit(t *testing.T) {
	input := strings.Repeat("a", 1000)
	var seg Segmenter
	got := seg.Push(input)
	if len(got) != 1 {
		t.Fatalf("expected exactly one forced split, got %d pieces", len(got))
	}
	tail := seg.Flush()
	if tail == "" {
		t.Fatal("expected a residual tail after forced split")
	}
	if joined := got[0] + tail; joined != input {
		t.Fatalf("pieces do not reproduce input: %d+%d bytes", len(got[0]), len(tail))
	}
}

func TestForceSplitPrefersPunctuation(t *testing.T) {
	input := "Chapter one." + strings.Repeat("b", 900)
	sentence, rest := forceSplit(input)
	if sentence != "Chapter one." {
		t.Fatalf("expected split after period, got %q", sentence)
	}
	if !strings.HasPrefix(rest, "bbb") {
		t.Fatalf("unexpected rest prefix %q", rest[:8])
	}
}

func TestSegmenterNormalization(t *testing.T) {
	var seg Segmenter
	got := seg.Push("Well. that  is \t odd! ok")
	if len(got) != 2 {
		t.Fatalf("expected 2 sentences, got %v", got)
	}
	if got[0] != "Well." {
		t.Fatalf("unexpected first sentence %q", got[0])
	}
	if got[1] != "that is odd!" {
		t.Fatalf("whitespace runs not collapsed: %q", got[1])
	}
	if tail := seg.Flush(); tail != "ok" {
		t.Fatalf("unexpected tail %q", tail)
	}
}

func TestNormalizeSentenceCollapsesDots(t *testing.T) {
	if got := normalizeSentence("wait......for it"); got != "wait...for it" {
		t.Fatalf("expected collapsed dot run, got %q", got)
	}
	if got := normalizeSentence("  spaced \n out  "); got != "spaced out" {
		t.Fatalf("expected collapsed whitespace, got %q", got)
	}
}

func TestSegmenterFlushTail(t *testing.T) {
	var seg Segmenter
	seg.Push("And finally")
	if tail := seg.Flush(); tail != "And finally" {
		t.Fatalf("unexpected tail %q", tail)
	}
	if tail := seg.Flush(); tail != "" {
		t.Fatalf("expected empty after flush, got %q", tail)
	}
}
