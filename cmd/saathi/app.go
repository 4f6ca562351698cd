package main

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/Protocol-Lattice/saathi/internal/config"
	"github.com/Protocol-Lattice/saathi/internal/metrics"
	"github.com/Protocol-Lattice/saathi/pkg/audio"
	"github.com/Protocol-Lattice/saathi/pkg/audit"
	"github.com/Protocol-Lattice/saathi/pkg/conversation"
	"github.com/Protocol-Lattice/saathi/pkg/fulfillment"
	"github.com/Protocol-Lattice/saathi/pkg/gateway"
	"github.com/Protocol-Lattice/saathi/pkg/identity"
	"github.com/Protocol-Lattice/saathi/pkg/models"
	"github.com/Protocol-Lattice/saathi/pkg/resolver"
	"github.com/Protocol-Lattice/saathi/pkg/speech"
	"github.com/Protocol-Lattice/saathi/pkg/tools"
)

// app is one fully wired conversation with its supporting services.
type app struct {
	cfg     *config.Config
	logger  *zap.Logger
	metrics *metrics.Metrics
	prices  *fulfillment.PriceTable
	mic     *audio.SwitchMicrophone
	speaker *speech.Controller
	session *conversation.Session

	closers []func()
}

type appOptions struct {
	sessionID string
	onChange  func(conversation.Snapshot)
	notifier  conversation.Notifier
	metrics   *metrics.Metrics
}

func newApp(ctx context.Context, cfg *config.Config, logger *zap.Logger, opts appOptions) (a *app, err error) {
	a = &app{
		cfg:     cfg,
		logger:  logger,
		metrics: opts.metrics,
		prices:  fulfillment.DefaultPrices(),
	}
	if a.metrics == nil {
		a.metrics = metrics.New("saathi")
	}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	model, err := models.NewLLMProvider(ctx, cfg.LLM.Provider, cfg.LLM.Model, models.Options{
		APIKey:             cfg.LLM.APIKey,
		BaseURL:            cfg.LLM.BaseURL,
		TranscriptionModel: cfg.LLM.TranscriptionModel,
	})
	if err != nil {
		return nil, fmt.Errorf("model: %w", err)
	}
	model = models.TryCreateCachedLLM(model, cfg.LLM.CacheSize, cfg.CacheTTL())

	catalog, err := tools.NewCatalog(
		tools.NewSearchTool(a.searchBackend(), logger),
		tools.NewWastePriceTool(a.prices),
	)
	if err != nil {
		return nil, err
	}

	table := identity.Default()
	gw, err := gateway.New(model, gateway.Options{
		Catalog:   catalog,
		Table:     table,
		Persona:   cfg.Language.Persona,
		SessionID: opts.sessionID,
		Timeout:   cfg.LLMTimeout(),
		Logger:    logger.Named("gateway"),
	})
	if err != nil {
		return nil, err
	}
	resolverOpts := resolver.Options{Table: table, Fallback: cfg.Language.Fallback, Logger: logger.Named("resolver")}

	a.mic = &audio.SwitchMicrophone{}
	if cfg.Audio.Command != "" {
		a.mic.Default = &audio.CommandMicrophone{Command: cfg.Audio.Command, Args: cfg.Audio.Args, MIME: cfg.Audio.MIME}
	}

	auditLog, err := a.openAudit(ctx)
	if err != nil {
		return nil, err
	}
	if auditLog != nil && cfg.Audit.Redact {
		auditLog = audit.Redacted(auditLog, nil)
	}

	var speaker conversation.Speaker
	if cfg.Speech.Enabled {
		a.speaker = speech.NewController(a.synthesizer(table), speech.PrefixSelector{}, speech.Hooks{
			OnStart: func(speech.Utterance) { a.metrics.SpeechStarted(); a.publish() },
			OnEnd:   func(speech.Utterance) { a.metrics.SpeechEnded(); a.publish() },
			OnError: func(err error) {
				a.metrics.SpeechFailed()
				if opts.notifier != nil {
					opts.notifier.Notify(conversation.Notification{Title: "Speech Error", Message: err.Error(), Error: true})
				}
				a.publish()
			},
		}, logger.Named("speech"))
		a.closers = append(a.closers, a.speaker.Close)
		speaker = a.speaker
	}

	a.session, err = conversation.New(conversation.Options{
		ID:         opts.sessionID,
		Text:       resolver.NewText(gw, resolverOpts),
		Voice:      resolver.NewVoice(gw, resolverOpts),
		Microphone: a.mic,
		Speaker:    speaker,
		Audit:      auditLog,
		Notifier:   opts.notifier,
		Observer:   a.metrics,
		OnChange:   opts.onChange,
		SpeakDelay: cfg.SpeakDelay(),
		Logger:     logger.Named("conversation"),
	})
	if err != nil {
		return nil, err
	}
	return a, nil
}

func (a *app) publish() {
	if a.session != nil {
		a.session.Publish()
	}
}

func (a *app) searchBackend() tools.Backend {
	if strings.EqualFold(a.cfg.Search.Backend, "web") {
		b := tools.NewWebBackend(a.cfg.Search.Endpoint, a.cfg.SearchTimeout())
		if a.cfg.Search.MaxResults > 0 {
			b.MaxResults = a.cfg.Search.MaxResults
		}
		return b
	}
	return &tools.StubBackend{Delay: a.cfg.StubDelay()}
}

func (a *app) synthesizer(table *identity.Table) speech.Synthesizer {
	var langs []string
	for _, e := range table.Entries() {
		langs = append(langs, e.Code)
	}
	if strings.EqualFold(a.cfg.Speech.Backend, "openai") {
		player := speech.CommandPlayer{Command: a.cfg.Speech.PlayerCommand, Args: a.cfg.Speech.PlayerArgs}
		return speech.NewOpenAISynthesizer(speech.OpenAIOptions{
			Model:     a.cfg.Speech.Model,
			Voice:     a.cfg.Speech.Voice,
			Languages: langs,
		}, player)
	}
	voices := make([]speech.Voice, 0, len(langs))
	for _, l := range langs {
		voices = append(voices, speech.Voice{ID: "silent-" + l, Name: "Silent " + l, Lang: l})
	}
	return speech.NewSilent(voices...)
}

func (a *app) openAudit(ctx context.Context) (audit.Log, error) {
	switch strings.ToLower(a.cfg.Audit.Backend) {
	case "memory":
		return audit.NewMemory(), nil
	case "postgres":
		pg, err := audit.NewPostgresLog(ctx, a.cfg.Audit.DSN)
		if err != nil {
			return nil, fmt.Errorf("audit: %w", err)
		}
		a.closers = append(a.closers, pg.Close)
		return pg, nil
	case "mongo":
		mg, err := audit.NewMongoLog(ctx, a.cfg.Audit.DSN, a.cfg.Audit.Database, a.cfg.Audit.Collection)
		if err != nil {
			return nil, fmt.Errorf("audit: %w", err)
		}
		a.closers = append(a.closers, func() {
			if err := mg.Close(); err != nil {
				a.logger.Warn("close mongo audit log", zap.Error(err))
			}
		})
		return mg, nil
	default:
		return nil, nil
	}
}

// Close releases speech playback and audit connections in reverse order.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
