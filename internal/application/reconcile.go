// Package application contains use-case orchestration services.
package application

import "github.com/Evolveum/midpoint-password-agent-ad/internal/domain/model"

// Reconcile resolves competing updates for the same user and returns the
// records that remain pending, in arrival order.
//
// Each record is compared with every earlier record for the same username.
// The newer one wins and the older one becomes stale. When two timestamps are
// equal neither can be trusted, so both become stale. The result holds at most
// one record per username and it is that user's strict maximum.
func Reconcile(records []*model.UpdateRecord) []*model.UpdateRecord {
	accepted := make(map[string][]*model.UpdateRecord, len(records))

	for _, rec := range records {
		for _, prev := range accepted[rec.Username] {
			if prev.Timestamp.After(rec.Timestamp) {
				rec.Status = model.RecordStatusStale
				break
			}
			if prev.Timestamp.Before(rec.Timestamp) {
				prev.Status = model.RecordStatusStale
				continue
			}
			prev.Status = model.RecordStatusStale
			rec.Status = model.RecordStatusStale
		}
		accepted[rec.Username] = append(accepted[rec.Username], rec)
	}

	pending := make([]*model.UpdateRecord, 0, len(accepted))
	for _, rec := range records {
		if rec.IsPending() {
			pending = append(pending, rec)
		}
	}

	return pending
}
