// Package pipeline orchestrates one canonicalization run: ingestion,
// optional LLM enrichment, rule engine execution and report projection.
package pipeline

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/zugfix/invoice-canon-service/internal/ai"
	"github.com/zugfix/invoice-canon-service/internal/canon"
	"github.com/zugfix/invoice-canon-service/internal/ingest"
	"github.com/zugfix/invoice-canon-service/internal/models"
	"github.com/zugfix/invoice-canon-service/internal/registry"
	"github.com/zugfix/invoice-canon-service/internal/report"
	"github.com/zugfix/invoice-canon-service/internal/rules"
	"github.com/zugfix/invoice-canon-service/internal/services"
)

// Result is the complete outcome of one run.
type Result struct {
	RunID        string                     `json:"run_id"`
	Invoice      *models.Invoice            `json:"invoice"`
	Corrections  report.Corrections         `json:"corrections"`
	EN16931      report.EN16931Basic        `json:"en16931_basic"`
	Formal       *services.ValidationResult `json:"formal"`
	PatchCount   int                        `json:"patch_count"`
	EnrichedWith string                     `json:"enriched_with,omitempty"`
	Duration     time.Duration              `json:"-"`
}

// Pipeline wires the stages together. It is safe for concurrent use: every
// run builds its own invoice and the shared engine and registry are
// read-only after construction.
type Pipeline struct {
	registry registry.Registry
	engine   *rules.Engine
	enricher *ai.Enricher
	provider ai.Provider
	formal   *services.FormalValidator
	log      *zap.Logger
}

// New creates a pipeline. enricher may be backed by a nil provider, in which
// case the enrichment stage contributes nothing.
func New(reg registry.Registry, engine *rules.Engine, provider ai.Provider, enricher *ai.Enricher, log *zap.Logger) *Pipeline {
	if log == nil {
		log = zap.NewNop()
	}
	return &Pipeline{
		registry: reg,
		engine:   engine,
		enricher: enricher,
		provider: provider,
		formal:   services.NewFormalValidator(),
		log:      log,
	}
}

// Run canonicalizes one OCR analysis document. Enrichment only runs when
// requested and a provider is configured; its failures degrade to a
// rules-only run, the deterministic phases always execute.
func (p *Pipeline) Run(ctx context.Context, analysisJSON []byte, enrich bool) (*Result, error) {
	start := time.Now()
	runID := uuid.New().String()
	log := p.log.With(zap.String("run_id", runID))

	inv := ingest.Load(analysisJSON, p.registry)
	log.Info("ingested invoice",
		zap.Int("lines", len(inv.Lines)),
		zap.Int("text_bytes", len(inv.Text)))

	enrichedWith := ""
	if enrich && p.enricher != nil {
		patches, err := p.enricher.Enrich(ctx, inv)
		if err != nil {
			log.Warn("enrichment failed, continuing with rules only", zap.Error(err))
		} else if len(patches) > 0 {
			applied := 0
			for _, patch := range patches {
				if canon.Apply(inv, patch) {
					applied++
				}
			}
			if p.provider != nil {
				enrichedWith = p.provider.Name()
			}
			log.Info("applied enrichment patches",
				zap.Int("proposed", len(patches)),
				zap.Int("applied", applied))
		}
	}

	patchCount := p.engine.Run(inv)
	formal := p.formal.Validate(inv)
	log.Info("canonicalization finished",
		zap.Int("patches", patchCount),
		zap.Bool("formally_valid", formal.Valid),
		zap.Duration("duration", time.Since(start)))

	return &Result{
		RunID:        runID,
		Invoice:      inv,
		Corrections:  report.BuildCorrections(inv),
		EN16931:      report.BuildEN16931Basic(inv),
		Formal:       formal,
		PatchCount:   len(inv.PatchLog),
		EnrichedWith: enrichedWith,
		Duration:     time.Since(start),
	}, nil
}
