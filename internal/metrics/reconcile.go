package metrics

import "github.com/rs/zerolog/log"

// Reconcile merges a fetched batch into the snapshot, keeping for each user
// the record with the greatest creation timestamp. Ties keep the existing
// entry, so re-applying an already-seen batch is a no-op. Batches may
// arrive in any order with duplicates; the merge is associative and
// commutative, and a user's timestamp never goes backwards.
//
// Records without a user id are dropped and logged. The result is freshly
// allocated; neither input is mutated.
func Reconcile(existing Snapshot, incoming []Record) Snapshot {
	merged := make(Snapshot, len(existing)+len(incoming))
	for userID, rec := range existing {
		merged[userID] = rec
	}

	for _, rec := range incoming {
		if rec.UserID == "" {
			log.Warn().
				Str("record_id", rec.ID).
				Str("session_id", rec.SessionID).
				Time("created_at", rec.CreatedAt).
				Msg("dropping metrics record without user id")
			continue
		}
		current, ok := merged[rec.UserID]
		if !ok || rec.CreatedAt.After(current.CreatedAt) {
			merged[rec.UserID] = rec
		}
	}
	return merged
}
