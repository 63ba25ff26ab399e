package feed

import (
	"sort"

	"github.com/rs/zerolog/log"

	"github.com/triagedesk/pkg/models"
)

// mergeRecords builds the union of current and incoming keyed by id (an
// incoming record replaces the existing entry at its id), sorts by the feed's
// total order, and truncates to limit. The operation is idempotent and
// commutative across input order: the final state depends only on the set of
// records seen, which is what lets push and poll races resolve without
// coordination.
//
// Incoming records missing an id or timestamp are dropped with a warning.
func mergeRecords(current, incoming []models.CallRecord, limit int) []models.CallRecord {
	union := make(map[string]models.CallRecord, len(current)+len(incoming))
	for _, r := range current {
		union[r.ID] = r
	}
	for _, r := range incoming {
		if r.ID == "" || r.CreatedAt.IsZero() {
			log.Warn().
				Str("call_id", r.ID).
				Msg("dropping malformed call record from merge")
			continue
		}
		union[r.ID] = r
	}

	merged := make([]models.CallRecord, 0, len(union))
	for _, r := range union {
		merged = append(merged, r)
	}
	sort.Slice(merged, func(i, j int) bool {
		return recordLess(merged[i], merged[j])
	})

	if len(merged) > limit {
		merged = merged[:limit]
	}
	return merged
}

// recordLess is the feed's total order: risk-tier priority ascending, then
// creation time descending, then id so the order is deterministic.
func recordLess(a, b models.CallRecord) bool {
	pa, pb := a.RiskTier.Priority(), b.RiskTier.Priority()
	if pa != pb {
		return pa < pb
	}
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.After(b.CreatedAt)
	}
	return a.ID < b.ID
}
