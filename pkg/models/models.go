package models

import (
	"strings"
	"time"
)

// RiskTier is the discrete risk classification assigned to a call by the
// triage rules. It is the primary sort key of the live feed.
type RiskTier string

const (
	TierRed     RiskTier = "RED"
	TierYellow  RiskTier = "YELLOW"
	TierGreen   RiskTier = "GREEN"
	TierUnknown RiskTier = "UNKNOWN"
)

// ParseRiskTier normalizes a stored tier value. Anything unrecognized,
// including the empty string, maps to TierUnknown.
func ParseRiskTier(s string) RiskTier {
	switch RiskTier(strings.ToUpper(strings.TrimSpace(s))) {
	case TierRed:
		return TierRed
	case TierYellow:
		return TierYellow
	case TierGreen:
		return TierGreen
	default:
		return TierUnknown
	}
}

// Priority returns the sort priority of the tier. Lower sorts first:
// RED=0, YELLOW=1, GREEN=2, UNKNOWN (or any absent/unrecognized value)=3.
func (t RiskTier) Priority() int {
	switch t {
	case TierRed:
		return 0
	case TierYellow:
		return 1
	case TierGreen:
		return 2
	default:
		return 3
	}
}

// Symptom value vocabularies used in reports coming off the voice channel.
const (
	BleedingNone  = "none"
	BleedingLight = "light"
	BleedingHeavy = "heavy"

	FetalMovementNormal    = "normal"
	FetalMovementDecreased = "decreased"
	FetalMovementAbsent    = "absent"

	AbdominalPainNone   = "none"
	AbdominalPainMild   = "mild"
	AbdominalPainSevere = "severe"
)

// SymptomReport is the structured symptom data collected during a call.
// Missing fields mean the symptom was not reported and never trigger a rule.
type SymptomReport struct {
	Bleeding       string `json:"bleeding,omitempty"`
	Convulsions    bool   `json:"convulsions,omitempty"`
	SevereHeadache bool   `json:"severe_headache,omitempty"`
	FetalMovement  string `json:"fetal_movement,omitempty"`
	Fever          bool   `json:"fever,omitempty"`
	SwellingFeet   bool   `json:"swelling_feet,omitempty"`
	AbdominalPain  string `json:"abdominal_pain,omitempty"`
}

// CallRecord is a single triaged call as stored in the calls table and
// surfaced on the live feed. Records are immutable snapshots: an update
// replaces the record at that id, it never mutates one in place.
type CallRecord struct {
	ID             string        `json:"id"`
	CreatedAt      time.Time     `json:"created_at"`
	RiskTier       RiskTier      `json:"risk_tier"`
	Advice         string        `json:"advice"`
	ClinicalReason string        `json:"clinical_reason"`
	Transcript     string        `json:"transcript"`
	Symptoms       SymptomReport `json:"symptoms"`
	CallerPhone    string        `json:"caller_phone"`
	WeeksPregnant  int           `json:"weeks_pregnant"`
}
