// Package runtime assembles the voice pipeline, its transports, and
// telemetry into one process.
package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/vocata-labs/vocata-core/internal/asr"
	"github.com/vocata-labs/vocata-core/internal/bus"
	"github.com/vocata-labs/vocata-core/internal/config"
	"github.com/vocata-labs/vocata-core/internal/eventstore"
	"github.com/vocata-labs/vocata-core/internal/gateway"
	"github.com/vocata-labs/vocata-core/internal/llm"
	"github.com/vocata-labs/vocata-core/internal/natsserver"
	"github.com/vocata-labs/vocata-core/internal/persona"
	"github.com/vocata-labs/vocata-core/internal/pipeline"
	"github.com/vocata-labs/vocata-core/internal/rag"
	"github.com/vocata-labs/vocata-core/internal/session"
	"github.com/vocata-labs/vocata-core/internal/tts"
)

// version is stamped by the build; the default marks local builds.
var version = "0.1.0-dev"

// Version reports the build version baked into the binary.
func Version() string { return version }

type Runtime struct {
	cfg         config.Config
	logger      *slog.Logger
	httpServer  *http.Server
	metricsSrv  *http.Server
	tracerClose func(context.Context) error
	ready       atomic.Bool
	wg          sync.WaitGroup
}

func New(cfg config.Config, logger *slog.Logger) *Runtime {
	return &Runtime{
		cfg:    cfg,
		logger: logger,
	}
}

// Start brings the whole runtime up and blocks until the context is
// cancelled, then shuts everything down in reverse order.
func (r *Runtime) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	shutdownTelemetry, metricsHandler, err := setupTelemetry(r.cfg, r.logger)
	if err != nil {
		return fmt.Errorf("failed to setup telemetry: %w", err)
	}
	r.tracerClose = shutdownTelemetry

	events, err := eventstore.Open(ctx, r.cfg.EventStore, r.logger)
	if err != nil {
		return fmt.Errorf("failed to open event store: %w", err)
	}
	defer events.Close()

	personas, err := persona.Load(r.cfg.Persona.DataDir)
	if err != nil {
		return fmt.Errorf("failed to load persona data: %w", err)
	}

	recognizer, err := r.buildRecognizer()
	if err != nil {
		return fmt.Errorf("failed to build recognizer: %w", err)
	}
	generator, err := r.buildGenerator(ctx)
	if err != nil {
		return fmt.Errorf("failed to build generator: %w", err)
	}
	synthesizer, err := r.buildSynthesizer()
	if err != nil {
		return fmt.Errorf("failed to build synthesizer: %w", err)
	}
	retriever, err := r.buildRetriever()
	if err != nil {
		return fmt.Errorf("failed to build retriever: %w", err)
	}
	if retriever != nil {
		defer retriever.Close()
	}

	metrics, err := pipeline.NewMetrics()
	if err != nil {
		r.logger.Warn("pipeline metrics unavailable", slog.String("error", err.Error()))
	}

	registry := session.NewRegistry(r.cfg.Session.DefaultLanguage)
	guard := session.NewGuard(registry)
	queues := pipeline.NewQueueRegistry()
	audio := pipeline.NewAudioBus()

	summarizer := pipeline.NewSummarizer(generator, registry, r.cfg.LLM, r.cfg.Session.KeepLogEntries, r.logger)
	reply := pipeline.NewReplyStage(
		generator, summarizer, registry, guard, queues, personas, retriever, events,
		r.cfg.LLM, r.cfg.Session, r.cfg.RAG, metrics, r.logger,
	)
	synth := pipeline.NewSynthesisStage(
		synthesizer, registry, guard, queues, audio, r.cfg.TTS, metrics, r.logger,
	)
	orchestrator := pipeline.NewOrchestrator(registry, queues, audio, reply, synth, r.logger)
	defer orchestrator.Close()

	gw := gateway.New(orchestrator, registry, guard, queues, audio, personas, events, r.logger)
	transcription := pipeline.NewTranscriptionStage(
		recognizer, registry, guard, queues, audio,
		r.cfg.ASR, gw.NotifyTranscript, events, metrics, r.logger,
	)
	gw.SetTranscription(transcription)

	var embedded *natsserver.EmbeddedServer
	var busClient *bus.Client
	var audioEdge *bus.Edge
	if r.cfg.Bus.Enabled {
		embedded, err = natsserver.Start(r.cfg.Bus, r.logger)
		if err != nil {
			return fmt.Errorf("failed to start embedded bus: %w", err)
		}
		defer embedded.Shutdown()

		busClient, err = bus.Connect(ctx, r.cfg.Bus, r.logger)
		if err != nil {
			return fmt.Errorf("failed to connect to bus: %w", err)
		}
		defer busClient.Close()

		audioEdge = bus.NewEdge(busClient, queues, audio, transcription, r.logger)
		if err := audioEdge.Start(ctx); err != nil {
			return fmt.Errorf("failed to start audio edge: %w", err)
		}
		defer audioEdge.Close()
		orchestrator.SetHooks(audioEdge.AttachSession, audioEdge.DetachSession)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", r.handleHealth)
	mux.HandleFunc("/readyz", r.handleReady)
	gw.Register(mux)

	addr := fmt.Sprintf("%s:%d", r.cfg.HTTP.Bind, r.cfg.HTTP.Port)
	r.httpServer = &http.Server{
		Addr:              addr,
		Handler:           gateway.CORS(mux),
		ReadHeaderTimeout: 5 * time.Second,
	}

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		if err := r.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			r.logger.Error("http server failed", slog.String("error", err.Error()))
		}
	}()

	if metricsHandler != nil && r.cfg.Telemetry.PrometheusBind != "" {
		metricsMux := http.NewServeMux()
		metricsMux.Handle("/metrics", metricsHandler)
		r.metricsSrv = &http.Server{
			Addr:              r.cfg.Telemetry.PrometheusBind,
			Handler:           metricsMux,
			ReadHeaderTimeout: 5 * time.Second,
		}
		r.wg.Add(1)
		go func() {
			defer r.wg.Done()
			if err := r.metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				r.logger.Error("metrics server failed", slog.String("error", err.Error()))
			}
		}()
	}

	r.ready.Store(true)
	r.logger.Info("runtime started",
		slog.String("addr", addr),
		slog.String("asr_mode", r.cfg.ASR.Mode),
		slog.String("llm_mode", r.cfg.LLM.Mode),
		slog.String("tts_mode", r.cfg.TTS.Mode))

	<-ctx.Done()
	r.logger.Info("runtime stopping")
	r.ready.Store(false)

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()
	if err := r.httpServer.Shutdown(shutdownCtx); err != nil {
		r.logger.Error("http shutdown error", slog.String("error", err.Error()))
	}
	if r.metricsSrv != nil {
		if err := r.metricsSrv.Shutdown(shutdownCtx); err != nil {
			r.logger.Error("metrics shutdown error", slog.String("error", err.Error()))
		}
	}
	r.wg.Wait()

	if r.tracerClose != nil {
		if err := r.tracerClose(shutdownCtx); err != nil {
			r.logger.Error("telemetry shutdown error", slog.String("error", err.Error()))
		}
	}

	return nil
}

func (r *Runtime) buildRecognizer() (asr.StreamingRecognizer, error) {
	switch r.cfg.ASR.Mode {
	case "exec":
		batch, err := asr.NewExecRecognizer(r.cfg.ASR)
		if err != nil {
			return nil, err
		}
		return asr.NewChunkedRecognizer(batch, r.cfg.ASR.PartialEveryMS, r.logger), nil
	default:
		return asr.NewMockRecognizer(), nil
	}
}

func (r *Runtime) buildGenerator(ctx context.Context) (llm.Generator, error) {
	switch r.cfg.LLM.Mode {
	case "ollama":
		return llm.NewOllamaGenerator(r.cfg.LLM.Endpoint, r.cfg.LLM.Model), nil
	case "gemini":
		return llm.NewGeminiGenerator(ctx, r.cfg.LLM.APIKey, r.cfg.LLM.Model)
	default:
		return llm.NewMockGenerator(), nil
	}
}

func (r *Runtime) buildSynthesizer() (tts.Synthesizer, error) {
	switch r.cfg.TTS.Mode {
	case "exec":
		return tts.NewExecSynth(r.cfg.TTS.Command)
	default:
		return tts.NewMockSynth(), nil
	}
}

func (r *Runtime) buildRetriever() (rag.Retriever, error) {
	if !r.cfg.RAG.Enabled {
		return nil, nil
	}
	embedder := rag.NewOllamaEmbedder(r.cfg.RAG.EmbedEndpoint, r.cfg.RAG.EmbedModel)
	return rag.NewQdrantRetriever(r.cfg.RAG, embedder)
}

func (r *Runtime) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (r *Runtime) handleReady(w http.ResponseWriter, _ *http.Request) {
	if r.ready.Load() {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
		return
	}
	w.WriteHeader(http.StatusServiceUnavailable)
	_, _ = w.Write([]byte("not ready"))
}
