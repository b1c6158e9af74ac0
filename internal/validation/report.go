// Package validation holds input validation rules shared across handlers
// and services.
package validation

import (
	"fmt"
	"sort"
	"strings"
)

const maxReportDescriptionLen = 1000

// reportReasons is the allowlist for reader reports. Free-text detail goes
// in the description field instead.
var reportReasons = map[string]struct{}{
	"spam":           {},
	"harassment":     {},
	"hate_speech":    {},
	"misinformation": {},
	"off_topic":      {},
	"other":          {},
}

// ValidateReportReason checks a report reason against the allowlist.
func ValidateReportReason(reason string) error {
	normalized := strings.ToLower(strings.TrimSpace(reason))
	if normalized == "" {
		return fmt.Errorf("report reason is required")
	}
	if _, ok := reportReasons[normalized]; !ok {
		return fmt.Errorf("report reason must be one of: %s", strings.Join(ReportReasons(), ", "))
	}
	return nil
}

// ValidateReportDescription bounds the free-text detail field.
func ValidateReportDescription(description string) error {
	if len(description) > maxReportDescriptionLen {
		return fmt.Errorf("report description must be at most %d characters", maxReportDescriptionLen)
	}
	return nil
}

// NormalizeReportReason returns the canonical form of a valid reason.
func NormalizeReportReason(reason string) string {
	return strings.ToLower(strings.TrimSpace(reason))
}

// ReportReasons lists the accepted reasons in stable order.
func ReportReasons() []string {
	out := make([]string, 0, len(reportReasons))
	for r := range reportReasons {
		out = append(out, r)
	}
	sort.Strings(out)
	return out
}
