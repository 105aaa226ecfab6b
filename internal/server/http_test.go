package server_test

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"ArcVault/internal/core"
	"ArcVault/internal/event"
	"ArcVault/internal/fixedpoint"
	"ArcVault/internal/market"
	"ArcVault/internal/score"
	"ArcVault/internal/server"

	"github.com/google/uuid"
)

var (
	testAdmin    = uuid.MustParse("00000000-0000-0000-0000-00000000a001")
	testFeeSink  = uuid.MustParse("00000000-0000-0000-0000-00000000f001")
	testMarketID = "arc-usd"
	testBase     = time.Unix(1_700_000_000, 0)
)

func newTestServer(t *testing.T) (*server.Server, *core.Guarded, chan core.CoreOutput) {
	t.Helper()

	cfg := market.Config{
		MarketID:                testMarketID,
		Admin:                   testAdmin,
		CollateralAssetID:       "WETH",
		CollateralNativeDecimal: 18,
		SyntheticAssetID:        "arcUSD",
		FeeSinkAccount:          testFeeSink,
		InterestRatePerSecond:   big.NewInt(0),
		LowCollateralRatio:      fixedpoint.MustParse("1.5"),
		HighCollateralRatio:     fixedpoint.MustParse("1.5"),
		MaxScore:                fixedpoint.MustParse("100"),
		VaultBorrowMinimum:      big.NewInt(0),
		VaultBorrowMaximum:      big.NewInt(0),

		LiquidationSafetyMarginRatio: big.NewInt(0),
		LiquidationUserFeeRatio:      fixedpoint.MustParse("0.05"),
		LiquidationArcFeeRatio:       fixedpoint.MustParse("0.02"),
	}

	mkt, err := market.New(cfg, testBase.Unix())
	if err != nil {
		t.Fatalf("market.New: %v", err)
	}
	scores := score.NewMerkleStore(testAdmin, cfg.MaxScore, 0)

	persistChan := make(chan core.CoreOutput, 64)
	projChan := make(chan core.CoreOutput, 64)

	engine, err := core.NewActionEngine(0, mkt, scores, persistChan, projChan, nil, nil)
	if err != nil {
		t.Fatalf("NewActionEngine: %v", err)
	}
	guarded := core.NewGuarded(engine)

	srv := server.New(":0", &server.Deps{
		Engine: guarded,
		Ready: func(context.Context) error {
			return nil
		},
	})
	return srv, guarded, persistChan
}

func doRequest(t *testing.T, h http.Handler, method, path string) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var body map[string]interface{}
	if rec.Body.Len() > 0 && rec.Header().Get("Content-Type") == "application/json" {
		if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
			t.Fatalf("decode response: %v (%s)", err, rec.Body.String())
		}
	}
	return rec, body
}

func TestHealthAndReadiness(t *testing.T) {
	srv, _, _ := newTestServer(t)

	rec, _ := doRequest(t, srv.Handler(), http.MethodGet, "/healthz")
	if rec.Code != http.StatusOK {
		t.Errorf("healthz = %d", rec.Code)
	}

	rec, _ = doRequest(t, srv.Handler(), http.MethodGet, "/readyz")
	if rec.Code != http.StatusOK {
		t.Errorf("readyz = %d", rec.Code)
	}
}

func TestReadyzReportsUnavailable(t *testing.T) {
	_, guarded, _ := newTestServer(t)
	failing := server.New(":0", &server.Deps{
		Engine: guarded,
		Ready: func(context.Context) error {
			return fmt.Errorf("postgres down")
		},
	})

	rec, body := doRequest(t, failing.Handler(), http.MethodGet, "/readyz")
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("readyz = %d, want 503", rec.Code)
	}
	if body["error"] != "postgres down" {
		t.Errorf("error = %v", body["error"])
	}
}

func TestGetMarket(t *testing.T) {
	srv, guarded, _ := newTestServer(t)

	// Feed one price so the response includes it.
	guarded.Do(func(e *core.ActionEngine) {
		err := e.ProcessEvent(&event.PriceUpdated{
			Market:        testMarketID,
			Price:         fixedpoint.MustParse("2000"),
			PriceSequence: 1,
			Timestamp:     testBase,
		}, nil)
		if err != nil {
			t.Fatalf("price update: %v", err)
		}
	})

	rec, body := doRequest(t, srv.Handler(), http.MethodGet, "/v1/markets/"+testMarketID)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d (%s)", rec.Code, rec.Body.String())
	}
	if body["market_id"] != testMarketID {
		t.Errorf("market_id = %v", body["market_id"])
	}
	if body["borrow_index"] != "1" {
		t.Errorf("borrow_index = %v, want 1", body["borrow_index"])
	}
	if body["price"] != "2000" {
		t.Errorf("price = %v", body["price"])
	}
	if body["paused"] != false {
		t.Errorf("paused = %v", body["paused"])
	}
}

func TestGetMarketUnknown(t *testing.T) {
	srv, _, _ := newTestServer(t)
	rec, _ := doRequest(t, srv.Handler(), http.MethodGet, "/v1/markets/no-such-market")
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestGetVault(t *testing.T) {
	srv, guarded, _ := newTestServer(t)
	account := uuid.New()

	guarded.Do(func(e *core.ActionEngine) {
		if err := e.ProcessEvent(&event.PriceUpdated{
			Market:        testMarketID,
			Price:         fixedpoint.MustParse("2000"),
			PriceSequence: 1,
			Timestamp:     testBase,
		}, nil); err != nil {
			t.Fatalf("price update: %v", err)
		}
		if err := e.ProcessEvent(&event.DepositRequested{
			ActionID:  uuid.New(),
			Account:   account,
			Market:    testMarketID,
			Amount:    fixedpoint.MustParse("3"),
			Sequence:  0,
			Timestamp: testBase,
		}, nil); err != nil {
			t.Fatalf("deposit: %v", err)
		}
	})

	rec, body := doRequest(t, srv.Handler(), http.MethodGet, "/v1/vaults/"+account.String())
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d (%s)", rec.Code, rec.Body.String())
	}
	if body["collateral"] != "3" {
		t.Errorf("collateral = %v", body["collateral"])
	}
	if body["real_debt"] != "0" {
		t.Errorf("real_debt = %v", body["real_debt"])
	}
	if body["collateral_value"] != "6000" {
		t.Errorf("collateral_value = %v", body["collateral_value"])
	}
	if _, ok := body["collateral_ratio"]; ok {
		t.Error("ratio should be omitted with zero debt")
	}
}

func TestGetVaultBadInput(t *testing.T) {
	srv, _, _ := newTestServer(t)

	rec, _ := doRequest(t, srv.Handler(), http.MethodGet, "/v1/vaults/not-a-uuid")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad uuid status = %d, want 400", rec.Code)
	}

	rec, _ = doRequest(t, srv.Handler(), http.MethodGet, "/v1/vaults/"+uuid.New().String())
	if rec.Code != http.StatusNotFound {
		t.Errorf("missing vault status = %d, want 404", rec.Code)
	}
}
