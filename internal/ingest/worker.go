// Package ingest turns end-of-call reports from the voice channel into
// triaged call records. Reports are queued as River jobs so a slow database
// or a burst of call completions never blocks the webhook response; the
// insert itself raises the notification the live feed listens on.
package ingest

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/riverqueue/river"
	"github.com/rs/zerolog/log"

	"github.com/triagedesk/internal/triage"
	"github.com/triagedesk/pkg/models"
)

// CallReportArgs is the payload of one call-report job.
type CallReportArgs struct {
	CallID        string               `json:"call_id"`
	CallerPhone   string               `json:"caller_phone"`
	Transcript    string               `json:"transcript"`
	WeeksPregnant int                  `json:"weeks_pregnant"`
	Symptoms      models.SymptomReport `json:"symptoms"`
	ReceivedAt    time.Time            `json:"received_at"`
}

// Kind returns the job kind for River.
func (CallReportArgs) Kind() string {
	return "call_report"
}

// CallInserter is the storage surface the worker needs.
type CallInserter interface {
	InsertCall(ctx context.Context, rec models.CallRecord) error
}

// CallReportWorker classifies and stores call reports.
type CallReportWorker struct {
	river.WorkerDefaults[CallReportArgs]
	calls CallInserter
}

// Work runs the triage rules over the reported symptoms and inserts the
// resulting record. Inserts are idempotent on call id, so a retried job
// cannot produce duplicates.
func (w *CallReportWorker) Work(ctx context.Context, job *river.Job[CallReportArgs]) error {
	rec := BuildRecord(job.Args)

	if err := w.calls.InsertCall(ctx, rec); err != nil {
		return fmt.Errorf("failed to store call %s: %w", rec.ID, err)
	}

	log.Info().
		Str("call_id", rec.ID).
		Str("risk_tier", string(rec.RiskTier)).
		Str("caller", rec.CallerPhone).
		Msg("Call report triaged and stored")
	return nil
}

// BuildRecord evaluates the report's symptoms and assembles the stored
// record. A report without a call id gets a fresh one; a report without a
// received time is stamped now.
func BuildRecord(args CallReportArgs) models.CallRecord {
	result := triage.Evaluate(args.Symptoms)

	id := args.CallID
	if id == "" {
		id = uuid.NewString()
	}
	createdAt := args.ReceivedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	return models.CallRecord{
		ID:             id,
		CreatedAt:      createdAt,
		RiskTier:       result.Tier,
		Advice:         result.MandatoryAction,
		ClinicalReason: result.ClinicalReason,
		Transcript:     args.Transcript,
		Symptoms:       args.Symptoms,
		CallerPhone:    args.CallerPhone,
		WeeksPregnant:  args.WeeksPregnant,
	}
}
