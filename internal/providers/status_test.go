package providers

import (
	"testing"

	"github.com/ggonzalez94/swap-router/internal/model"
)

func TestStatusTableDefaultsToPending(t *testing.T) {
	table := StatusTable{
		"SUCCESS":    model.SwapStatusSuccess,
		"PROCESSING": model.SwapStatusProcessing,
	}
	if got := table.Map(" success "); got != model.SwapStatusSuccess {
		t.Fatalf("unexpected mapping %s", got)
	}
	if got := table.Map("SOMETHING_NEW"); got != model.SwapStatusPending {
		t.Fatalf("unmapped status should be pending, got %s", got)
	}
}

func TestCapabilitiesApply(t *testing.T) {
	route := model.SwapRoute{}
	Capabilities{RequiresFirmRoute: true, HasPostSubmitHook: true}.Apply(&route)
	if !route.RequiresFirmRoute || !route.HasPostSubmitHook || route.RequiresTokenAllowance {
		t.Fatalf("unexpected flags %+v", route)
	}
}
