package validation

import (
	"strings"
	"testing"
)

func TestValidateReportReason(t *testing.T) {
	valid := []string{"spam", "Harassment", " off_topic ", "OTHER"}
	for _, reason := range valid {
		if err := ValidateReportReason(reason); err != nil {
			t.Errorf("ValidateReportReason(%q) = %v, want nil", reason, err)
		}
	}

	invalid := []string{"", "  ", "rude", "spam again", "spam,harassment"}
	for _, reason := range invalid {
		if err := ValidateReportReason(reason); err == nil {
			t.Errorf("ValidateReportReason(%q) = nil, want error", reason)
		}
	}
}

func TestValidateReportDescription(t *testing.T) {
	if err := ValidateReportDescription(strings.Repeat("x", maxReportDescriptionLen)); err != nil {
		t.Errorf("description at limit should pass: %v", err)
	}
	if err := ValidateReportDescription(strings.Repeat("x", maxReportDescriptionLen+1)); err == nil {
		t.Error("description over limit should fail")
	}
}

func TestNormalizeReportReason(t *testing.T) {
	if got := NormalizeReportReason("  Spam "); got != "spam" {
		t.Errorf("NormalizeReportReason = %q, want %q", got, "spam")
	}
}
