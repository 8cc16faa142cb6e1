// Package reconcile merges freshly crawled results against previously
// persisted ones, detecting field-level changes.
package reconcile

import (
	"time"

	"github.com/keithven/seo-checker/internal/seo"
)

// Input is one reconciliation pass. Fresh is the just-crawled batch
// (scored, unannotated), Existing the prior persisted state (may be
// empty). Reviews may be nil.
type Input struct {
	Fresh    []seo.PageResult
	Existing []seo.PageResult
	Reviews  map[string]seo.ReviewRecord
	Mode     seo.ScanMode

	// Now is the shared timestamp for every change event produced by
	// this pass. Zero means time.Now().
	Now time.Time
}

// Output is the merged, review-annotated result set plus the change
// events detected in this pass.
type Output struct {
	Merged []seo.PageResult
	Events []seo.ChangeEvent
}

// Reconcile merges Fresh into Existing and detects deltas. It is pure
// and total: empty or nil inputs are valid empty state, and an empty
// fresh batch returns the existing results annotated, unchanged.
//
// Change detection compares raw strings: case-sensitive and untrimmed,
// so cosmetic edits count as changes. (Duplicate grouping in the
// analyzer normalizes instead; the two serve different purposes.)
//
// The coarse ChangeType field is governed by the meta-description
// branch only: a title-only change emits its ChangeEvent and sets
// HasChanged, but leaves ChangeType as-is. ChangeType is display-only;
// the ledger events are the source of truth.
func Reconcile(in Input) Output {
	now := in.Now
	if now.IsZero() {
		now = time.Now()
	}

	existingByURL := make(map[string]int, len(in.Existing))
	for i := range in.Existing {
		existingByURL[in.Existing[i].URL] = i
	}

	// Start from existing state; replace matched URLs in place, append
	// new URLs at the end (stable, not sorted).
	merged := make([]seo.PageResult, len(in.Existing))
	copy(merged, in.Existing)

	var events []seo.ChangeEvent

	for i := range in.Fresh {
		fresh := in.Fresh[i]
		idx, seen := existingByURL[fresh.URL]

		if !seen {
			fresh.HasChanged = true
			fresh.ChangeType = "new"
			events = append(events, seo.ChangeEvent{
				URL:        fresh.URL,
				ChangeType: seo.ChangeNewURL,
				NewValue:   fresh.MetaDescription,
				Timestamp:  now,
			})
			merged = append(merged, fresh)
			existingByURL[fresh.URL] = len(merged) - 1
			continue
		}

		prev := in.Existing[idx]
		fresh.HasChanged = false
		fresh.ChangeType = ""

		if fresh.MetaDescription != prev.MetaDescription {
			fresh.HasChanged = true
			fresh.ChangeType = "modified"
			events = append(events, seo.ChangeEvent{
				URL:        fresh.URL,
				ChangeType: seo.ChangeMetaDesc,
				OldValue:   prev.MetaDescription,
				NewValue:   fresh.MetaDescription,
				Timestamp:  now,
			})
		}

		if fresh.Title != prev.Title {
			fresh.HasChanged = true
			events = append(events, seo.ChangeEvent{
				URL:        fresh.URL,
				ChangeType: seo.ChangeTitle,
				OldValue:   prev.Title,
				NewValue:   fresh.Title,
				Timestamp:  now,
			})
		}

		merged[idx] = fresh
	}

	Annotate(merged, in.Reviews)

	return Output{Merged: merged, Events: events}
}

// Annotate layers review state onto results in place. Total and
// idempotent: a URL without a review record gets status "new" and empty
// fields, never an error.
func Annotate(results []seo.PageResult, reviews map[string]seo.ReviewRecord) {
	for i := range results {
		record, ok := reviews[results[i].URL]
		if !ok {
			results[i].ReviewStatus = seo.ReviewNew
			results[i].Assignee = ""
			results[i].Notes = ""
			results[i].LastReviewed = nil
			continue
		}
		status := record.Status
		if status == "" {
			status = seo.ReviewNew
		}
		results[i].ReviewStatus = status
		results[i].Assignee = record.Assignee
		results[i].Notes = record.Notes
		results[i].LastReviewed = record.LastReviewed
	}
}
