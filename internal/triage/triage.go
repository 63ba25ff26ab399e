// Package triage implements the obstetric risk classification applied to
// every completed call, based on the Government of India's Pradhan Mantri
// Surakshit Matritva Abhiyan (PMSMA) danger-sign protocol.
//
// Risk levels, evaluated in priority order:
//
//	RED    - emergency, immediate hospital referral
//	YELLOW - high-risk, must see a health provider within 24 h
//	GREEN  - low-risk, routine ANC follow-up
package triage

import (
	"github.com/triagedesk/pkg/models"
)

// Result is the outcome of evaluating a symptom report.
type Result struct {
	Tier            models.RiskTier `json:"risk_level"`
	MandatoryAction string          `json:"mandatory_action"`
	ClinicalReason  string          `json:"clinical_reason"`
}

type rule struct {
	tier    models.RiskTier
	matches func(models.SymptomReport) bool
	action  string
	reason  string
}

func (r rule) result() Result {
	return Result{Tier: r.tier, MandatoryAction: r.action, ClinicalReason: r.reason}
}

// Rules are evaluated in order; RED rules short-circuit, the first matching
// YELLOW rule is kept while scanning for a possible RED.
var rules = []rule{
	// RED flags (PMSMA Section 4: danger signs in pregnancy)
	{
		tier:    models.TierRed,
		matches: func(s models.SymptomReport) bool { return s.Bleeding == models.BleedingHeavy },
		action: "Go to the nearest government hospital or PHC immediately. " +
			"Call 108 (ambulance) if unable to travel. Do NOT wait.",
		reason: "Heavy antepartum or postpartum haemorrhage is a leading direct cause " +
			"of maternal mortality in India. Per PMSMA danger-sign protocol, heavy " +
			"vaginal bleeding warrants immediate obstetric intervention.",
	},
	{
		tier:    models.TierRed,
		matches: func(s models.SymptomReport) bool { return s.Convulsions },
		action: "Call 108 immediately. Lay the patient on her left side. " +
			"Do NOT give anything by mouth. Reach a First Referral Unit (FRU) at once.",
		reason: "Convulsions in pregnancy indicate eclampsia until proven otherwise. " +
			"PMSMA and NHM protocols mandate emergency magnesium sulphate therapy and " +
			"immediate referral to an FRU with CEmOC capability.",
	},
	{
		tier:    models.TierRed,
		matches: func(s models.SymptomReport) bool { return s.SevereHeadache },
		action: "Seek emergency care at a government hospital immediately. " +
			"Monitor blood pressure if possible. Call 108 if BP is 160/110 mmHg or higher.",
		reason: "Severe headache in pregnancy is a cardinal warning sign of " +
			"pre-eclampsia / imminent eclampsia per PMSMA and WHO ANC guidelines; it may " +
			"precede convulsions by minutes to hours.",
	},
	{
		tier:    models.TierRed,
		matches: func(s models.SymptomReport) bool { return s.FetalMovement == models.FetalMovementDecreased || s.FetalMovement == models.FetalMovementAbsent },
		action: "Go to the nearest health facility today for a fetal well-being check " +
			"(Non-Stress Test or kick-count assessment). Do not delay overnight.",
		reason: "Decreased or absent fetal movements are a recognised danger sign of " +
			"foetal distress per PMSMA screening criteria; immediate CTG or Doppler " +
			"assessment is required.",
	},

	// YELLOW flags (PMSMA Section 5: high-risk conditions)
	{
		tier:    models.TierYellow,
		matches: func(s models.SymptomReport) bool { return s.Fever },
		action: "Visit the nearest Primary Health Centre (PHC) or Sub-Centre within 24 hours. " +
			"Stay hydrated. Carry your ANC card.",
		reason: "Fever during pregnancy raises concern for malaria, urinary tract " +
			"infection, or chorioamnionitis, all associated with preterm labour and " +
			"foetal loss per PMSMA high-risk categorisation.",
	},
	{
		tier:    models.TierYellow,
		matches: func(s models.SymptomReport) bool { return s.SwellingFeet },
		action: "Visit your ASHA worker or ANM today for blood pressure measurement. " +
			"If BP is above 140/90 mmHg, proceed to PHC immediately. Rest with feet elevated.",
		reason: "Sudden or severe oedema of the feet is a high-risk indicator for " +
			"gestational hypertension / pre-eclampsia under PMSMA screening; BP must be " +
			"checked and proteinuria ruled out.",
	},
	{
		tier:    models.TierYellow,
		matches: func(s models.SymptomReport) bool { return s.AbdominalPain == models.AbdominalPainMild },
		action: "Contact your ANM or ASHA worker within 24 hours. Note the frequency, " +
			"duration, and location of pain. Go to a PHC if pain worsens or becomes rhythmic.",
		reason: "Mild abdominal pain can signal preterm uterine contractions, urinary " +
			"tract infection, or early placental abruption. Rhythmic or worsening pain " +
			"upgrades the risk immediately.",
	},
}

var greenResult = Result{
	Tier: models.TierGreen,
	MandatoryAction: "Continue routine Antenatal Care (ANC). Attend your next scheduled PMSMA " +
		"check-up at a government facility. Take your prescribed IFA tablets daily and " +
		"ensure TT vaccination is up to date.",
	ClinicalReason: "No danger signs or high-risk indicators detected based on reported " +
		"symptoms. Low-risk status per PMSMA triage criteria; regular ANC visits and " +
		"birth preparedness planning should continue.",
}

// Evaluate classifies a symptom report. RED rules win immediately; a YELLOW
// match is only returned when no RED rule triggers; GREEN is the fallback
// when nothing matches. Unreported symptoms never trigger a rule.
func Evaluate(report models.SymptomReport) Result {
	var yellow *rule
	for i := range rules {
		r := &rules[i]
		if !r.matches(report) {
			continue
		}
		switch r.tier {
		case models.TierRed:
			return r.result()
		case models.TierYellow:
			if yellow == nil {
				yellow = r
			}
		}
	}
	if yellow != nil {
		return yellow.result()
	}
	return greenResult
}
