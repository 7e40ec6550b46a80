package audit

import (
	"time"

	"govfed/pkg/types"
)

// Summary is the privacy-preserving view of a set of events: aggregate
// counts and the time range only, never payload contents.
type Summary struct {
	From               time.Time      `json:"from"`
	To                 time.Time      `json:"to"`
	TotalEvents        int            `json:"total_events"`
	EventsByType       map[string]int `json:"events_by_type"`
	InvolvingRequester int            `json:"involving_requester"`
}

// Summarize aggregates a set of events for a requesting organization. The
// requester learns how many events exist, their types, the covered time
// range, and how many involve it, but nothing from payloads of events where
// it is neither source nor target.
func Summarize(events []*types.FederationEvent, requestingOrgID string) *Summary {
	summary := &Summary{
		EventsByType: make(map[string]int),
	}

	for _, event := range events {
		if summary.TotalEvents == 0 || event.Timestamp.Before(summary.From) {
			summary.From = event.Timestamp
		}
		if summary.TotalEvents == 0 || event.Timestamp.After(summary.To) {
			summary.To = event.Timestamp
		}
		summary.TotalEvents++
		summary.EventsByType[event.EventType]++
		if event.Involves(requestingOrgID) {
			summary.InvolvingRequester++
		}
	}

	return summary
}
