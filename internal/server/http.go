package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"ArcVault/internal/core"
	"ArcVault/internal/event"
	"ArcVault/internal/fixedpoint"
	"ArcVault/internal/ingestion"
	"ArcVault/internal/observability"
	"ArcVault/internal/query"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// Deps wires the HTTP layer to the rest of the service.
type Deps struct {
	Engine  *core.Guarded
	Query   *query.Service
	JS      jetstream.JetStream
	Metrics *observability.Metrics

	// Ready reports whether downstream dependencies (Postgres, NATS) are
	// reachable; wired by the orchestrator.
	Ready func(ctx context.Context) error
}

// Server is the HTTP/JSON API. Reads come from the guarded engine and the
// projection tables; writes are validated and published to NATS, entering
// the system through the same ingestion path as any other producer.
type Server struct {
	httpServer *http.Server
	deps       *Deps
	log        zerolog.Logger
}

func New(addr string, deps *Deps) *Server {
	s := &Server{
		deps: deps,
		log:  observability.NewLogger("http"),
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(10 * time.Second))

	r.Get("/healthz", s.handleHealthz)
	r.Get("/readyz", s.handleReadyz)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Get("/markets/{market}", s.instrument("get_market", s.handleGetMarket))
		r.Get("/markets/{market}/liquidations", s.instrument("market_liquidations", s.handleMarketLiquidations))
		r.Get("/markets/{market}/params/history", s.instrument("param_history", s.handleParamHistory))
		r.Get("/vaults/{account}", s.instrument("get_vault", s.handleGetVault))
		r.Get("/vaults/{account}/history", s.instrument("vault_history", s.handleVaultHistory))
		r.Post("/actions", s.instrument("submit_action", s.handleSubmitAction))
		r.Get("/integrity", s.instrument("integrity", s.handleIntegrity))
	})

	s.httpServer = &http.Server{
		Addr:    addr,
		Handler: r,
	}
	return s
}

// Handler exposes the router for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.log.Info().Str("addr", s.httpServer.Addr).Msg("http server listening")
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.httpServer.Shutdown(shutdownCtx)
	}
}

func (s *Server) instrument(endpoint string, h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		if s.deps.Metrics != nil {
			s.deps.Metrics.QueryRequests.WithLabelValues(endpoint).Inc()
			defer func() {
				s.deps.Metrics.QueryDuration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
			}()
		}
		h(w, r)
	}
}

// --- response shapes ---

type marketResponse struct {
	MarketID                string  `json:"market_id"`
	BorrowIndex             string  `json:"borrow_index"`
	InterestRatePerSecond   string  `json:"interest_rate_per_second"`
	TotalCollateral         string  `json:"total_collateral"`
	TotalNormalizedBorrowed string  `json:"total_normalized_borrowed"`
	TotalDebt               string  `json:"total_debt"`
	Paused                  bool    `json:"paused"`
	Price                   *string `json:"price,omitempty"`
	PriceSequence           *int64  `json:"price_sequence,omitempty"`
	LowCollateralRatio      string  `json:"low_collateral_ratio"`
	HighCollateralRatio     string  `json:"high_collateral_ratio"`
	MaxScore                string  `json:"max_score"`
	VaultBorrowMinimum      string  `json:"vault_borrow_minimum"`
	VaultBorrowMaximum      string  `json:"vault_borrow_maximum"`
	LiquidationUserFee      string  `json:"liquidation_user_fee"`
	LiquidationArcFee       string  `json:"liquidation_arc_fee"`
	SafetyMargin            string  `json:"liquidation_safety_margin"`
	VaultCount              int     `json:"vault_count"`
	AsOfSequence            int64   `json:"as_of_sequence"`
}

type vaultResponse struct {
	Account         string  `json:"account"`
	MarketID        string  `json:"market_id"`
	Collateral      string  `json:"collateral"`
	Principal       string  `json:"principal"`
	NormalizedDebt  string  `json:"normalized_debt"`
	RealDebt        string  `json:"real_debt"`
	CollateralValue *string `json:"collateral_value,omitempty"`
	CollateralRatio *string `json:"collateral_ratio,omitempty"`
	AsOfSequence    int64   `json:"as_of_sequence"`
}

type submitActionRequest struct {
	EventType string          `json:"event_type"`
	Payload   json.RawMessage `json:"payload"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// --- handlers ---

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

func (s *Server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	if s.deps.Ready != nil {
		if err := s.deps.Ready(r.Context()); err != nil {
			writeError(w, http.StatusServiceUnavailable, err.Error())
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ready"))
}

func (s *Server) handleGetMarket(w http.ResponseWriter, r *http.Request) {
	marketID := chi.URLParam(r, "market")

	var resp *marketResponse
	s.deps.Engine.Do(func(e *core.ActionEngine) {
		m := e.Market()
		if m.Config.MarketID != marketID {
			return
		}
		resp = &marketResponse{
			MarketID:                m.Config.MarketID,
			BorrowIndex:             fixedpoint.FormatDecimal(m.Index.BorrowIndex()),
			InterestRatePerSecond:   m.Config.InterestRatePerSecond.String(),
			TotalCollateral:         fixedpoint.FormatDecimal(m.TotalCollateralValue()),
			TotalNormalizedBorrowed: fixedpoint.FormatDecimal(m.TotalNormalizedBorrowedValue()),
			TotalDebt:               fixedpoint.FormatDecimal(m.Index.Denormalize(m.TotalNormalizedBorrowedValue())),
			Paused:                  m.Paused,
			LowCollateralRatio:      fixedpoint.FormatDecimal(m.Config.LowCollateralRatio),
			HighCollateralRatio:     fixedpoint.FormatDecimal(m.Config.HighCollateralRatio),
			MaxScore:                fixedpoint.FormatDecimal(m.Config.MaxScore),
			VaultBorrowMinimum:      fixedpoint.FormatDecimal(m.Config.VaultBorrowMinimum),
			VaultBorrowMaximum:      fixedpoint.FormatDecimal(m.Config.VaultBorrowMaximum),
			LiquidationUserFee:      fixedpoint.FormatDecimal(m.Config.LiquidationUserFeeRatio),
			LiquidationArcFee:       fixedpoint.FormatDecimal(m.Config.LiquidationArcFeeRatio),
			SafetyMargin:            fixedpoint.FormatDecimal(m.Config.LiquidationSafetyMarginRatio),
			VaultCount:              e.Vaults().Len(),
			AsOfSequence:            e.Sequence() - 1,
		}
		if price, ok := e.Prices().Latest(marketID); ok {
			p := fixedpoint.FormatDecimal(price.Price)
			resp.Price = &p
			resp.PriceSequence = &price.PriceSequence
		}
	})

	if resp == nil {
		writeError(w, http.StatusNotFound, fmt.Sprintf("unknown market %q", marketID))
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGetVault(w http.ResponseWriter, r *http.Request) {
	account, err := uuid.Parse(chi.URLParam(r, "account"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid account id")
		return
	}

	var resp *vaultResponse
	s.deps.Engine.Do(func(e *core.ActionEngine) {
		v, ok := e.Vaults().Get(account)
		if !ok {
			return
		}
		m := e.Market()
		realDebt := m.Index.Denormalize(v.NormalizedBorrowedAmount)
		resp = &vaultResponse{
			Account:        account.String(),
			MarketID:       m.Config.MarketID,
			Collateral:     fixedpoint.FormatDecimal(v.CollateralAmount),
			Principal:      fixedpoint.FormatDecimal(v.Principal),
			NormalizedDebt: fixedpoint.FormatDecimal(v.NormalizedBorrowedAmount),
			RealDebt:       fixedpoint.FormatDecimal(realDebt),
			AsOfSequence:   e.Sequence() - 1,
		}
		if price, ok := e.Prices().Latest(m.Config.MarketID); ok {
			value := fixedpoint.MulDown(v.CollateralAmount, price.Price)
			formatted := fixedpoint.FormatDecimal(value)
			resp.CollateralValue = &formatted
			if realDebt.Sign() > 0 {
				ratio := fixedpoint.FormatDecimal(fixedpoint.DivDown(value, realDebt))
				resp.CollateralRatio = &ratio
			}
		}
	})

	if resp == nil {
		writeError(w, http.StatusNotFound, "vault not found")
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleVaultHistory(w http.ResponseWriter, r *http.Request) {
	account, err := uuid.Parse(chi.URLParam(r, "account"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid account id")
		return
	}

	limit := parseLimit(r, 50)
	afterSeq := parseAfterSequence(r)

	journals, err := s.deps.Query.GetJournalHistory(r.Context(), account, limit, afterSeq)
	if err != nil {
		s.log.Error().Err(err).Msg("journal history query failed")
		writeError(w, http.StatusInternalServerError, "query failed")
		return
	}

	liquidations, err := s.deps.Query.GetLiquidationHistory(r.Context(), nil, &account, limit, afterSeq)
	if err != nil {
		s.log.Error().Err(err).Msg("liquidation history query failed")
		writeError(w, http.StatusInternalServerError, "query failed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"account":      account.String(),
		"journals":     journals,
		"liquidations": liquidations,
	})
}

func (s *Server) handleMarketLiquidations(w http.ResponseWriter, r *http.Request) {
	marketID := chi.URLParam(r, "market")
	limit := parseLimit(r, 50)
	afterSeq := parseAfterSequence(r)

	results, err := s.deps.Query.GetLiquidationHistory(r.Context(), &marketID, nil, limit, afterSeq)
	if err != nil {
		s.log.Error().Err(err).Msg("liquidation history query failed")
		writeError(w, http.StatusInternalServerError, "query failed")
		return
	}
	writeJSON(w, http.StatusOK, results)
}

func (s *Server) handleParamHistory(w http.ResponseWriter, r *http.Request) {
	marketID := chi.URLParam(r, "market")
	results, err := s.deps.Query.GetParamHistory(r.Context(), marketID, parseLimit(r, 50))
	if err != nil {
		s.log.Error().Err(err).Msg("param history query failed")
		writeError(w, http.StatusInternalServerError, "query failed")
		return
	}
	writeJSON(w, http.StatusOK, results)
}

func (s *Server) handleIntegrity(w http.ResponseWriter, r *http.Request) {
	report, err := s.deps.Query.VerifyIntegrity(r.Context())
	if err != nil {
		s.log.Error().Err(err).Msg("integrity check failed")
		writeError(w, http.StatusInternalServerError, "integrity check failed")
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// handleSubmitAction validates the payload with the same parser the NATS
// path uses, then publishes it so the action flows through the ordinary
// ingestion pipeline. Accepting here means accepted for processing, not
// applied.
func (s *Server) handleSubmitAction(w http.ResponseWriter, r *http.Request) {
	var req submitActionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	evt, err := ingestion.ParseRawEvent(ingestion.RawEvent{Data: req.Payload}, req.EventType)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	subject, err := subjectFor(evt)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if _, err := s.deps.JS.Publish(r.Context(), subject, req.Payload); err != nil {
		s.log.Error().Str("subject", subject).Err(err).Msg("action publish failed")
		writeError(w, http.StatusServiceUnavailable, "publish failed")
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]string{
		"status":          "accepted",
		"idempotency_key": evt.IdempotencyKey(),
		"subject":         subject,
	})
}

// subjectFor routes a validated event to its ingestion subject.
func subjectFor(evt event.Event) (string, error) {
	switch e := evt.(type) {
	case *event.DepositRequested:
		return "arc.actions.deposit." + e.Market, nil
	case *event.BorrowRequested:
		return "arc.actions.borrow." + e.Market, nil
	case *event.RepayRequested:
		return "arc.actions.repay." + e.Market, nil
	case *event.WithdrawRequested:
		return "arc.actions.withdraw." + e.Market, nil
	case *event.LiquidateRequested:
		return "arc.actions.liquidate." + e.Market, nil
	case *event.PriceUpdated:
		return "arc.prices." + e.Market, nil
	case *event.MarketParamUpdated:
		return "arc.admin.params." + e.Market, nil
	case *event.PauseToggled:
		return "arc.admin.pause." + e.Market, nil
	case *event.ScoreRootUpdated:
		return "arc.admin.scores." + e.Protocol, nil
	default:
		return "", fmt.Errorf("unroutable event type %T", evt)
	}
}

// --- helpers ---

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

func parseLimit(r *http.Request, fallback int) int {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return fallback
	}
	var limit int
	if _, err := fmt.Sscanf(raw, "%d", &limit); err != nil || limit <= 0 || limit > 1000 {
		return fallback
	}
	return limit
}

func parseAfterSequence(r *http.Request) *int64 {
	raw := r.URL.Query().Get("after_sequence")
	if raw == "" {
		return nil
	}
	var seq int64
	if _, err := fmt.Sscanf(raw, "%d", &seq); err != nil {
		return nil
	}
	return &seq
}
