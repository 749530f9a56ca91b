package gas

import (
	"context"
	"encoding/json"
	"errors"
	"math/big"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/core/types"

	"github.com/ggonzalez94/swap-router/internal/id"
)

// newRPCServer answers eth_gasPrice and rejects the London fee methods, as
// pre-1559 chains do.
func newRPCServer(t *testing.T, result string, calls *int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			ID     json.RawMessage `json:"id"`
			Method string          `json:"method"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode rpc request: %v", err)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		switch req.Method {
		case "eth_gasPrice":
			atomic.AddInt32(calls, 1)
			_ = json.NewEncoder(w).Encode(map[string]any{"jsonrpc": "2.0", "id": req.ID, "result": result})
		case "eth_maxPriorityFeePerGas":
			_ = json.NewEncoder(w).Encode(map[string]any{"jsonrpc": "2.0", "id": req.ID, "error": map[string]any{"code": -32601, "message": "method not found"}})
		default:
			t.Errorf("unexpected method %s", req.Method)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

type fakeSource struct {
	tip, baseFee, legacy *big.Int
	tipErr               error
	legacyCalls          int
}

func (f *fakeSource) SuggestGasTipCap(context.Context) (*big.Int, error) {
	if f.tipErr != nil {
		return nil, f.tipErr
	}
	return f.tip, nil
}

func (f *fakeSource) HeaderByNumber(context.Context, *big.Int) (*types.Header, error) {
	return &types.Header{BaseFee: f.baseFee}, nil
}

func (f *fakeSource) SuggestGasPrice(context.Context) (*big.Int, error) {
	f.legacyCalls++
	return f.legacy, nil
}

func (f *fakeSource) Close() {}

func oracleWithSource(src *fakeSource) *Oracle {
	o := NewOracle(Endpoints{Overrides: map[string]string{"base": "http://rpc.invalid"}}, time.Minute, nil)
	o.dial = func(context.Context, string) (priceSource, error) { return src, nil }
	return o
}

func TestEVMGasPriceIsCachedPerChain(t *testing.T) {
	var calls int32
	srv := newRPCServer(t, "0x3b9aca00", &calls)
	base, _ := id.ParseChain("base")

	o := NewOracle(Endpoints{Overrides: map[string]string{"base": srv.URL}}, time.Minute, nil)
	now := time.Date(2025, 12, 11, 12, 0, 0, 0, time.UTC)
	o.now = func() time.Time { return now }

	for i := 0; i < 2; i++ {
		price, err := o.EVMGasPrice(context.Background(), base)
		if err != nil {
			t.Fatalf("EVMGasPrice failed: %v", err)
		}
		if price == nil || price.String() != "1000000000" {
			t.Fatalf("unexpected price %v", price)
		}
	}
	if atomic.LoadInt32(&calls) != 1 {
		t.Fatalf("expected one rpc call, got %d", calls)
	}

	now = now.Add(2 * time.Minute)
	if _, err := o.EVMGasPrice(context.Background(), base); err != nil {
		t.Fatalf("EVMGasPrice after expiry failed: %v", err)
	}
	if atomic.LoadInt32(&calls) != 2 {
		t.Fatalf("expected refresh after ttl, got %d calls", calls)
	}
}

func TestEVMGasPriceSkipsNonEVM(t *testing.T) {
	sol, _ := id.ParseChain("solana")
	price, err := NewOracle(Endpoints{}, 0, nil).EVMGasPrice(context.Background(), sol)
	if err != nil || price != nil {
		t.Fatalf("expected nil price without error, got %v %v", price, err)
	}
}

func TestEVMGasPriceRPCFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()
	eth, _ := id.ParseChain("ethereum")

	price, err := NewOracle(Endpoints{Overrides: map[string]string{"ethereum": srv.URL}}, 0, nil).EVMGasPrice(context.Background(), eth)
	if err == nil {
		t.Fatal("expected rpc error")
	}
	if price != nil {
		t.Fatalf("expected nil price, got %v", price)
	}
}

func TestEVMGasPriceUsesBaseFeePlusTip(t *testing.T) {
	base, _ := id.ParseChain("base")
	src := &fakeSource{tip: big.NewInt(1_500_000_000), baseFee: big.NewInt(20_000_000_000), legacy: big.NewInt(7)}
	price, err := oracleWithSource(src).EVMGasPrice(context.Background(), base)
	if err != nil {
		t.Fatalf("EVMGasPrice failed: %v", err)
	}
	if price.String() != "21500000000" {
		t.Fatalf("expected base fee plus tip, got %v", price)
	}
	if src.legacyCalls != 0 {
		t.Fatalf("legacy gas price should not be queried, got %d calls", src.legacyCalls)
	}
}

func TestEVMGasPriceFallsBackToLegacy(t *testing.T) {
	base, _ := id.ParseChain("base")
	cases := map[string]*fakeSource{
		"tip unsupported":   {tipErr: errors.New("method not found"), legacy: big.NewInt(42)},
		"header pre-london": {tip: big.NewInt(1), legacy: big.NewInt(42)},
	}
	for name, src := range cases {
		price, err := oracleWithSource(src).EVMGasPrice(context.Background(), base)
		if err != nil {
			t.Fatalf("%s: EVMGasPrice failed: %v", name, err)
		}
		if price.String() != "42" || src.legacyCalls != 1 {
			t.Fatalf("%s: expected legacy price, got %v after %d calls", name, price, src.legacyCalls)
		}
	}
}

func TestResolveRPCURL(t *testing.T) {
	arb, _ := id.ParseChain("arbitrum")
	if got, ok := (Endpoints{}).Resolve(arb); !ok || got != "https://arb1.arbitrum.io/rpc" {
		t.Fatalf("unexpected default rpc %q", got)
	}
	if got, _ := (Endpoints{Overrides: map[string]string{"arbitrum": " https://rpc.example "}}).Resolve(arb); got != "https://rpc.example" {
		t.Fatalf("unexpected override %q", got)
	}
	fil, _ := id.ParseChain("filecoin")
	if _, ok := (Endpoints{}).Resolve(fil); ok {
		t.Fatal("expected no rpc for filecoin")
	}
}

func TestResolveRPCURLWithAlchemyKey(t *testing.T) {
	arb, _ := id.ParseChain("arbitrum")
	e := Endpoints{AlchemyAPIKey: "k3y"}
	if got, ok := e.Resolve(arb); !ok || got != "https://arb-mainnet.g.alchemy.com/v2/k3y" {
		t.Fatalf("unexpected alchemy rpc %q", got)
	}
	e.Overrides = map[string]string{"arbitrum": "https://rpc.example"}
	if got, _ := e.Resolve(arb); got != "https://rpc.example" {
		t.Fatalf("override should win over alchemy, got %q", got)
	}
}
