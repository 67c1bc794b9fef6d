package config

import "testing"

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.RuntimeName != "vocata-runtime" {
		t.Fatalf("unexpected runtime name %q", cfg.RuntimeName)
	}
	if cfg.ASR.Mode != "mock" || cfg.LLM.Mode != "mock" || cfg.TTS.Mode != "mock" {
		t.Fatalf("expected mock collaborators by default")
	}
	if cfg.ASR.SampleRate != 16000 {
		t.Fatalf("expected 16k sample rate, got %d", cfg.ASR.SampleRate)
	}
	if cfg.Session.SummarizeThreshold != 6 {
		t.Fatalf("expected summarize threshold 6, got %d", cfg.Session.SummarizeThreshold)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("VOCATA_BUS_ENABLED", "true")
	t.Setenv("VOCATA_BUS_SERVERS", "nats://one:4222, nats://two:4222")
	t.Setenv("VOCATA_BUS_USERNAME", "alice")
	t.Setenv("VOCATA_BUS_PASSWORD", "secret")
	t.Setenv("VOCATA_ASR_LANGUAGE", "ja-JP")
	t.Setenv("VOCATA_LLM_TEMPERATURE", "0.2")
	t.Setenv("VOCATA_LLM_MAX_TOKENS", "321")
	t.Setenv("VOCATA_TTS_VOICE", "ja-JP-Neural2-B")
	t.Setenv("VOCATA_SESSION_SUMMARIZE_THRESHOLD", "9")
	t.Setenv("VOCATA_EVENT_STORE_PATH", "./tmp.db")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(cfg.Bus.Servers) != 2 {
		t.Fatalf("expected 2 servers, got %v", cfg.Bus.Servers)
	}
	if cfg.Bus.Username != "alice" || cfg.Bus.Password != "secret" {
		t.Fatalf("expected credentials override")
	}
	if cfg.ASR.Language != "ja-JP" {
		t.Fatalf("expected language override, got %q", cfg.ASR.Language)
	}
	if cfg.LLM.Temperature != 0.2 {
		t.Fatalf("expected temperature override, got %v", cfg.LLM.Temperature)
	}
	if cfg.LLM.MaxTokens != 321 {
		t.Fatalf("expected max tokens override, got %d", cfg.LLM.MaxTokens)
	}
	if cfg.TTS.Voice != "ja-JP-Neural2-B" {
		t.Fatalf("expected voice override, got %q", cfg.TTS.Voice)
	}
	if cfg.Session.SummarizeThreshold != 9 {
		t.Fatalf("expected threshold override, got %d", cfg.Session.SummarizeThreshold)
	}
	if cfg.EventStore.Path != "./tmp.db" {
		t.Fatalf("expected event store path override")
	}
}

func TestValidateRejectsBadModes(t *testing.T) {
	t.Setenv("VOCATA_ASR_MODE", "hosted")
	if _, err := Load(""); err == nil {
		t.Fatal("expected error for unknown asr mode")
	}
}

func TestValidateExecNeedsCommand(t *testing.T) {
	t.Setenv("VOCATA_TTS_MODE", "exec")
	if _, err := Load(""); err == nil {
		t.Fatal("expected error for exec tts without command")
	}
}
