package domain_test

import (
	"testing"

	"github.com/neomorfeo/workflowiq/internal/domain"
)

func TestStatusMirror_RoundTrip(t *testing.T) {
	states := []string{"draft", "ordered", "production", "completed", "cancelled"}

	for _, state := range states {
		status, ok := domain.ToLegacyStatus(state)
		if !ok {
			t.Fatalf("ToLegacyStatus(%q): no mapping", state)
		}
		if got := domain.ToStateCode(status); got != state {
			t.Errorf("ToStateCode(ToLegacyStatus(%q)) = %q", state, got)
		}
	}
}

func TestToLegacyStatus_Unmapped(t *testing.T) {
	if _, ok := domain.ToLegacyStatus("quality_check"); ok {
		t.Error("unmapped state should report ok=false")
	}
}

func TestToStateCode_UnknownFallsBackToDraft(t *testing.T) {
	if got := domain.ToStateCode(99); got != "draft" {
		t.Errorf("ToStateCode(99) = %q, want %q", got, "draft")
	}
}
