package cache

import (
	"context"
	"testing"

	"github.com/ggonzalez94/swap-router/internal/model"
)

func TestStatusLedgerKeepsTerminalOutcome(t *testing.T) {
	ctx := context.Background()
	l := NewStatusLedger(openTestStore(t), 0)
	key := "near_intents:9RdSjLtfFJLvj6CAR4w7H7tUbv2kvwkkrYZuoojKDBkE"

	pending := model.SwapStatusResponse{Status: model.SwapStatusPending, Provider: model.ProviderNearIntents}
	got, err := l.Reconcile(ctx, key, pending)
	if err != nil || got.Status != model.SwapStatusPending {
		t.Fatalf("pending before terminal = %+v, %v", got, err)
	}

	success := model.SwapStatusResponse{Status: model.SwapStatusSuccess, InternalStatus: "SUCCESS", Provider: model.ProviderNearIntents}
	if got, err := l.Reconcile(ctx, key, success); err != nil || got.Status != model.SwapStatusSuccess {
		t.Fatalf("terminal = %+v, %v", got, err)
	}

	processing := model.SwapStatusResponse{Status: model.SwapStatusProcessing, Provider: model.ProviderNearIntents}
	got, err = l.Reconcile(ctx, key, processing)
	if err != nil || got.Status != model.SwapStatusSuccess || got.InternalStatus != "SUCCESS" {
		t.Fatalf("status regressed after terminal: %+v, %v", got, err)
	}

	refunded := model.SwapStatusResponse{Status: model.SwapStatusRefunded, Provider: model.ProviderNearIntents}
	if got, _ := l.Reconcile(ctx, key, refunded); got.Status != model.SwapStatusSuccess {
		t.Fatalf("first terminal outcome must win, got %s", got.Status)
	}
}

func TestNilLedgerPassesThrough(t *testing.T) {
	var l *StatusLedger
	resp := model.SwapStatusResponse{Status: model.SwapStatusPending}
	if got, err := l.Reconcile(context.Background(), "k", resp); err != nil || got.Status != model.SwapStatusPending {
		t.Fatalf("unexpected %+v %v", got, err)
	}
}
