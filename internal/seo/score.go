package seo

import "fmt"

// Meta description length thresholds (characters). Descriptions inside
// the range render fully in search results without looking thin.
const (
	MetaDescMinLength = 120
	MetaDescMaxLength = 160
)

const missingMetaIssue = "Missing meta description"

// Score classifies a meta description and returns the resulting status
// with the length-based issues, in detection order. Heuristic issues
// from the page analyzer are appended separately by the caller.
func Score(metaDescription string) (Status, []string) {
	length := len(metaDescription)

	switch {
	case length == 0:
		return StatusError, []string{missingMetaIssue}
	case length < MetaDescMinLength:
		return StatusWarning, []string{fmt.Sprintf(
			"Meta description is too short (%d characters, recommended min: %d)",
			length, MetaDescMinLength)}
	case length > MetaDescMaxLength:
		return StatusWarning, []string{fmt.Sprintf(
			"Meta description is too long (%d characters, recommended max: %d)",
			length, MetaDescMaxLength)}
	default:
		return StatusGood, []string{}
	}
}
