package ingest

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/triagedesk/pkg/models"
)

func TestBuildRecordClassifiesSymptoms(t *testing.T) {
	receivedAt := time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)
	args := CallReportArgs{
		CallID:        uuid.NewString(),
		CallerPhone:   "+919876543210",
		Transcript:    "caller reports heavy bleeding",
		WeeksPregnant: 32,
		Symptoms:      models.SymptomReport{Bleeding: models.BleedingHeavy},
		ReceivedAt:    receivedAt,
	}

	rec := BuildRecord(args)

	assert.Equal(t, args.CallID, rec.ID)
	assert.Equal(t, receivedAt, rec.CreatedAt)
	assert.Equal(t, models.TierRed, rec.RiskTier)
	assert.NotEmpty(t, rec.Advice)
	assert.NotEmpty(t, rec.ClinicalReason)
	assert.Equal(t, args.Symptoms, rec.Symptoms)
	assert.Equal(t, args.CallerPhone, rec.CallerPhone)
	assert.Equal(t, 32, rec.WeeksPregnant)
}

func TestBuildRecordFillsMissingIdentity(t *testing.T) {
	rec := BuildRecord(CallReportArgs{
		Symptoms: models.SymptomReport{Fever: true},
	})

	require.NoError(t, uuid.Validate(rec.ID))
	assert.False(t, rec.CreatedAt.IsZero())
	assert.Equal(t, models.TierYellow, rec.RiskTier)
}

func TestBuildRecordNoSymptomsIsGreen(t *testing.T) {
	rec := BuildRecord(CallReportArgs{CallID: uuid.NewString()})
	assert.Equal(t, models.TierGreen, rec.RiskTier)
}
