// Package seo defines the domain model for scan results, reviews and
// change tracking.
package seo

import "time"

// Status classifies a page's meta description health.
type Status string

const (
	StatusGood    Status = "good"
	StatusWarning Status = "warning"
	StatusError   Status = "error"
)

// NormalizeStatus maps legacy or unknown status values onto the closed
// Status set. Older result files used "needs_attention" where current
// code writes "warning"; anything unrecognized is treated as a warning
// rather than rejected.
func NormalizeStatus(raw string) Status {
	switch Status(raw) {
	case StatusGood, StatusWarning, StatusError:
		return Status(raw)
	case "needs_attention":
		return StatusWarning
	default:
		return StatusWarning
	}
}

// ScanMode controls which sitemap URLs are fetched during a scan.
type ScanMode string

const (
	// ScanFull fetches every URL in the sitemap.
	ScanFull ScanMode = "full"

	// ScanIncremental fetches only URLs not present in the stored results.
	ScanIncremental ScanMode = "incremental"

	// ScanSelective fetches an explicit URL subset.
	ScanSelective ScanMode = "selective"
)

// ChangeKind identifies which field a ChangeEvent records.
type ChangeKind string

const (
	ChangeNewURL   ChangeKind = "new_url"
	ChangeTitle    ChangeKind = "title"
	ChangeMetaDesc ChangeKind = "meta_description"
)

// PageResult is the latest known analysis state for one page. Results
// are owned by the result store for their sitemap; the reconciler is
// the only writer.
type PageResult struct {
	URL             string `json:"url"`
	Title           string `json:"title"`
	MetaDescription string `json:"metaDescription"`

	// Derived from MetaDescription.
	CharacterCount     int  `json:"characterCount"`
	HasMetaDescription bool `json:"hasMetaDescription"`

	Status Status   `json:"status"`
	Issues []string `json:"issues"`

	LastCrawled  time.Time `json:"lastCrawled"`
	LastAnalyzed time.Time `json:"lastAnalyzed"`

	// Outcome of the most recent reconciliation pass. Transient; not a
	// source of truth — see the change ledger for that.
	HasChanged bool   `json:"hasChanged"`
	ChangeType string `json:"changeType,omitempty"` // "new", "modified" or empty

	// Review fields layered on by the reconciler; never persisted with
	// the scan result itself.
	ReviewStatus ReviewStatus `json:"reviewStatus"`
	Assignee     string       `json:"assignee,omitempty"`
	Notes        string       `json:"notes,omitempty"`
	LastReviewed *time.Time   `json:"lastReviewed,omitempty"`
}

// ReviewStatus is the human workflow state of a page.
type ReviewStatus string

const (
	ReviewNew        ReviewStatus = "new"
	ReviewInProgress ReviewStatus = "in_progress"
	ReviewReviewed   ReviewStatus = "reviewed"
)

// ReviewRecord is workflow state keyed by URL, independent of any
// sitemap. Mutated only by explicit review actions, never by a scan.
type ReviewRecord struct {
	Status       ReviewStatus `json:"status"`
	Assignee     string       `json:"assignee,omitempty"`
	Notes        string       `json:"notes,omitempty"`
	LastReviewed *time.Time   `json:"lastReviewed,omitempty"`
	LastUpdated  time.Time    `json:"lastUpdated"`
}

// ChangeEvent is an immutable record of one detected field delta.
type ChangeEvent struct {
	URL        string     `json:"url"`
	ChangeType ChangeKind `json:"changeType"`
	OldValue   string     `json:"oldValue,omitempty"`
	NewValue   string     `json:"newValue"`
	Timestamp  time.Time  `json:"timestamp"`
}

// Summary aggregates a merged result set for the dashboard.
type Summary struct {
	Total              int `json:"total"`
	Good               int `json:"good"`
	Warning            int `json:"warning"`
	Error              int `json:"error"`
	WithMetaDesc       int `json:"withMetaDescription"`
	PercentageWithMeta int `json:"percentageWithMeta"`
}

// Summarize computes the dashboard summary for a result set.
func Summarize(results []PageResult) Summary {
	s := Summary{Total: len(results)}
	for i := range results {
		switch NormalizeStatus(string(results[i].Status)) {
		case StatusGood:
			s.Good++
		case StatusError:
			s.Error++
		default:
			s.Warning++
		}
		if results[i].HasMetaDescription {
			s.WithMetaDesc++
		}
	}
	if s.Total > 0 {
		s.PercentageWithMeta = int(float64(s.WithMetaDesc)/float64(s.Total)*100 + 0.5)
	}
	return s
}
