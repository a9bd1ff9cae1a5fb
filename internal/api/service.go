// Package api exposes the launchpad over HTTP: token creation, curve
// trades, trade history, graduation state, and a websocket feed.
package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"curve-launchpad/internal/domain"
	"curve-launchpad/internal/graduation"
	"curve-launchpad/internal/ledger"
	"curve-launchpad/internal/observability"
	"curve-launchpad/internal/storage"
)

// Service wires the ledger, graduation machinery, and stores into HTTP
// handlers.
type Service struct {
	tokens      storage.TokenStore
	trades      storage.TradeRecordStore
	points      storage.CurvePointStore // nil disables the curve endpoint
	ledger      *ledger.Ledger
	readModel   *graduation.ReadModel
	coordinator *graduation.Coordinator
	cache       *DisplayCache // nil disables caching
	hub         *WSHub        // nil disables broadcasts
	logger      *log.Logger
	nowMs       func() int64
}

// ServiceConfig configures a Service.
type ServiceConfig struct {
	Tokens      storage.TokenStore
	Trades      storage.TradeRecordStore
	Points      storage.CurvePointStore
	Ledger      *ledger.Ledger
	ReadModel   *graduation.ReadModel
	Coordinator *graduation.Coordinator
	Cache       *DisplayCache
	Hub         *WSHub
	Logger      *log.Logger
}

// NewService creates a Service.
func NewService(cfg ServiceConfig) *Service {
	logger := cfg.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &Service{
		tokens:      cfg.Tokens,
		trades:      cfg.Trades,
		points:      cfg.Points,
		ledger:      cfg.Ledger,
		readModel:   cfg.ReadModel,
		coordinator: cfg.Coordinator,
		cache:       cfg.Cache,
		hub:         cfg.Hub,
		logger:      logger,
		nowMs:       func() int64 { return time.Now().UnixMilli() },
	}
}

// Router builds the HTTP router with all routes and middleware.
func (s *Service) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(metricsMiddleware)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok","service":"curve-launchpad"}`))
	})
	r.Method(http.MethodGet, "/metrics", observability.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/tokens", s.CreateToken)
		r.Get("/tokens", s.ListTokens)
		r.Get("/tokens/{mintID}", s.GetToken)
		r.Get("/tokens/{mintID}/trades", s.GetTrades)
		r.Get("/tokens/{mintID}/curve", s.GetCurvePoints)
		r.Get("/tokens/{mintID}/graduation", s.GetGraduation)
		r.Post("/trade", s.ExecuteTrade)
		r.Post("/migrations/check", s.CheckMigrations)
		if s.hub != nil {
			r.Get("/ws", s.hub.HandleWS)
		}
	})

	return r
}

// --- Request/Response types ---

// CreateTokenRequest is the JSON body for token creation.
type CreateTokenRequest struct {
	Name   string `json:"name"`
	Symbol string `json:"symbol"`
}

// TradeHTTPRequest is the JSON body for POST /api/v1/trade.
type TradeHTTPRequest struct {
	MintID            string `json:"mint_id"`
	TraderID          string `json:"trader_id"`
	Kind              string `json:"kind"` // buy | sell
	AmountIn          int64  `json:"amount_in"`
	ExternalSignature string `json:"external_signature"`
}

// TradeHTTPResponse is the JSON body returned from POST /api/v1/trade.
type TradeHTTPResponse struct {
	TradeID        string  `json:"trade_id"`
	MintID         string  `json:"mint_id"`
	Kind           string  `json:"kind"`
	TokenAmount    int64   `json:"token_amount"`
	SolAmount      int64   `json:"sol_amount"`
	Fee            int64   `json:"fee"`
	SolReserves    int64   `json:"sol_reserves"`
	TokenReserves  int64   `json:"token_reserves"`
	PriceImpactPct float64 `json:"price_impact_pct"`
	CreatedAt      int64   `json:"created_at"`
}

// MigrationCheckResult is one token's entry in the migration check
// response: the decided outcome and the valuation it was based on.
type MigrationCheckResult struct {
	MintID             string          `json:"mint_id"`
	Outcome            string          `json:"outcome"`
	MarketCapUSD       decimal.Decimal `json:"market_cap_usd"`
	ProgressPct        decimal.Decimal `json:"progress_pct"`
	ReadyToGraduate    bool            `json:"ready_to_graduate"`
	PoolReference      string          `json:"pool_reference,omitempty"`
	MigrationTimestamp int64           `json:"migration_timestamp,omitempty"`
}

// CheckMigrationsResponse reports a migration check: one result per
// checked token.
type CheckMigrationsResponse struct {
	Checked   int                    `json:"checked"`
	Graduated int                    `json:"graduated"`
	Results   []MigrationCheckResult `json:"results"`
}

// --- HTTP Handlers ---

// CreateToken handles POST /api/v1/tokens.
func (s *Service) CreateToken(w http.ResponseWriter, r *http.Request) {
	var req CreateTokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Name == "" || req.Symbol == "" {
		writeError(w, "name and symbol are required", http.StatusBadRequest)
		return
	}

	token := domain.NewToken(uuid.New().String(), req.Name, req.Symbol, s.nowMs())
	if err := s.tokens.Insert(r.Context(), token); err != nil {
		if errors.Is(err, storage.ErrDuplicateKey) {
			writeError(w, "token already exists", http.StatusConflict)
			return
		}
		s.logger.Printf("create token failed: %v", err)
		writeError(w, "internal error", http.StatusInternalServerError)
		return
	}

	s.logger.Printf("token %s (%s) launched", token.MintID, token.Symbol)
	writeJSON(w, http.StatusCreated, token)
}

// ListTokens handles GET /api/v1/tokens.
func (s *Service) ListTokens(w http.ResponseWriter, r *http.Request) {
	tokens, err := s.tokens.List(r.Context())
	if err != nil {
		s.logger.Printf("list tokens failed: %v", err)
		writeError(w, "internal error", http.StatusInternalServerError)
		return
	}
	if tokens == nil {
		tokens = []*domain.Token{}
	}
	writeJSON(w, http.StatusOK, tokens)
}

// GetToken handles GET /api/v1/tokens/{mintID}.
func (s *Service) GetToken(w http.ResponseWriter, r *http.Request) {
	mintID := chi.URLParam(r, "mintID")

	token, err := s.tokens.GetByMint(r.Context(), mintID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, "token not found", http.StatusNotFound)
			return
		}
		s.logger.Printf("get token failed: %v", err)
		writeError(w, "internal error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, token)
}

// ExecuteTrade handles POST /api/v1/trade.
func (s *Service) ExecuteTrade(w http.ResponseWriter, r *http.Request) {
	var req TradeHTTPRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	res, err := s.ledger.Execute(r.Context(), ledger.TradeRequest{
		MintID:            req.MintID,
		TraderID:          req.TraderID,
		Kind:              domain.TradeKind(req.Kind),
		AmountIn:          req.AmountIn,
		ExternalSignature: req.ExternalSignature,
	})
	if err != nil {
		s.writeTradeError(w, err)
		return
	}

	s.cache.Invalidate(r.Context(), req.MintID)
	if s.hub != nil {
		s.hub.Broadcast(WSMessage{
			Type:          "trade",
			MintID:        res.Record.MintID,
			Kind:          string(res.Record.Kind),
			TokenAmount:   res.Record.TokenAmount,
			SolAmount:     res.Record.SolAmount,
			SolReserves:   res.Token.SolReserves,
			TokenReserves: res.Token.TokenReserves,
		})
	}

	writeJSON(w, http.StatusOK, TradeHTTPResponse{
		TradeID:        res.Record.TradeID,
		MintID:         res.Record.MintID,
		Kind:           string(res.Record.Kind),
		TokenAmount:    res.Record.TokenAmount,
		SolAmount:      res.Record.SolAmount,
		Fee:            res.Quote.Fee,
		SolReserves:    res.Token.SolReserves,
		TokenReserves:  res.Token.TokenReserves,
		PriceImpactPct: res.Quote.PriceImpactPct,
		CreatedAt:      res.Record.CreatedAt,
	})
}

func (s *Service) writeTradeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ledger.ErrInvalidRequest):
		writeError(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, ledger.ErrTokenNotFound):
		writeError(w, "token not found", http.StatusNotFound)
	case errors.Is(err, ledger.ErrTradingDisabled):
		writeError(w, "trading disabled: token is migrating or graduated", http.StatusConflict)
	case errors.Is(err, ledger.ErrDuplicateSignature):
		writeError(w, "external signature already recorded", http.StatusConflict)
	case errors.Is(err, ledger.ErrTooMuchContention):
		writeError(w, "token is busy, retry", http.StatusServiceUnavailable)
	default:
		s.logger.Printf("trade failed: %v", err)
		writeError(w, "internal error", http.StatusInternalServerError)
	}
}

// GetTrades handles GET /api/v1/tokens/{mintID}/trades.
func (s *Service) GetTrades(w http.ResponseWriter, r *http.Request) {
	mintID := chi.URLParam(r, "mintID")

	if _, err := s.tokens.GetByMint(r.Context(), mintID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, "token not found", http.StatusNotFound)
			return
		}
		s.logger.Printf("get token failed: %v", err)
		writeError(w, "internal error", http.StatusInternalServerError)
		return
	}

	trades, err := s.trades.GetByMint(r.Context(), mintID)
	if err != nil {
		s.logger.Printf("get trades failed: %v", err)
		writeError(w, "internal error", http.StatusInternalServerError)
		return
	}
	if trades == nil {
		trades = []*domain.TradeRecord{}
	}
	writeJSON(w, http.StatusOK, trades)
}

// GetCurvePoints handles GET /api/v1/tokens/{mintID}/curve.
// Optional from/to query params bound the time range in epoch millis.
func (s *Service) GetCurvePoints(w http.ResponseWriter, r *http.Request) {
	if s.points == nil {
		writeError(w, "curve analytics not configured", http.StatusNotFound)
		return
	}

	mintID := chi.URLParam(r, "mintID")
	from, to, err := parseTimeRange(r)
	if err != nil {
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}

	var points []*domain.CurvePoint
	if from > 0 || to > 0 {
		if to == 0 {
			to = s.nowMs()
		}
		points, err = s.points.GetByTimeRange(r.Context(), mintID, from, to)
	} else {
		points, err = s.points.GetByMint(r.Context(), mintID)
	}
	if err != nil {
		s.logger.Printf("get curve points failed: %v", err)
		writeError(w, "internal error", http.StatusInternalServerError)
		return
	}
	if points == nil {
		points = []*domain.CurvePoint{}
	}
	writeJSON(w, http.StatusOK, points)
}

// GetGraduation handles GET /api/v1/tokens/{mintID}/graduation.
func (s *Service) GetGraduation(w http.ResponseWriter, r *http.Request) {
	mintID := chi.URLParam(r, "mintID")

	if state := s.cache.Get(r.Context(), mintID); state != nil {
		writeJSON(w, http.StatusOK, state)
		return
	}

	state, err := s.readModel.State(r.Context(), mintID)
	if err != nil {
		if errors.Is(err, graduation.ErrUnknownToken) {
			writeError(w, "token not found", http.StatusNotFound)
			return
		}
		s.logger.Printf("graduation state failed: %v", err)
		writeError(w, "internal error", http.StatusInternalServerError)
		return
	}

	s.cache.Set(r.Context(), state)
	writeJSON(w, http.StatusOK, state)
}

// CheckMigrations handles POST /api/v1/migrations/check. With a mint_id
// query param it checks one token, otherwise it sweeps all ungraduated
// tokens.
func (s *Service) CheckMigrations(w http.ResponseWriter, r *http.Request) {
	var results []*graduation.CheckResult

	if mintID := r.URL.Query().Get("mint_id"); mintID != "" {
		res, err := s.coordinator.EvaluateAndMigrate(r.Context(), mintID)
		if err != nil {
			if errors.Is(err, graduation.ErrUnknownMint) {
				writeError(w, "token not found", http.StatusNotFound)
				return
			}
			s.logger.Printf("migration check failed: %v", err)
			writeError(w, "internal error", http.StatusInternalServerError)
			return
		}
		results = []*graduation.CheckResult{res}
	} else {
		var err error
		results, err = s.coordinator.CheckAll(r.Context())
		if err != nil {
			s.logger.Printf("migration sweep failed: %v", err)
			writeError(w, "internal error", http.StatusInternalServerError)
			return
		}
	}

	resp := CheckMigrationsResponse{
		Checked: len(results),
		Results: make([]MigrationCheckResult, 0, len(results)),
	}
	for _, res := range results {
		if res.Outcome == graduation.OutcomeGraduated {
			resp.Graduated++
			s.afterGraduation(r, res)
		}
		resp.Results = append(resp.Results, MigrationCheckResult{
			MintID:             res.MintID,
			Outcome:            string(res.Outcome),
			MarketCapUSD:       res.MarketCapUSD,
			ProgressPct:        res.ProgressPct,
			ReadyToGraduate:    res.Ready,
			PoolReference:      res.PoolReference,
			MigrationTimestamp: res.MigrationTimestamp,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

// afterGraduation invalidates the cached display state and announces the
// graduation to websocket subscribers.
func (s *Service) afterGraduation(r *http.Request, res *graduation.CheckResult) {
	s.cache.Invalidate(r.Context(), res.MintID)

	if s.hub == nil {
		return
	}
	s.hub.Broadcast(WSMessage{
		Type:          "graduation",
		MintID:        res.MintID,
		PoolReference: res.PoolReference,
	})
}

// --- helpers ---

func parseTimeRange(r *http.Request) (int64, int64, error) {
	var from, to int64
	var err error

	if v := r.URL.Query().Get("from"); v != "" {
		from, err = strconv.ParseInt(v, 10, 64)
		if err != nil {
			return 0, 0, errors.New("invalid from timestamp")
		}
	}
	if v := r.URL.Query().Get("to"); v != "" {
		to, err = strconv.ParseInt(v, 10, 64)
		if err != nil {
			return 0, 0, errors.New("invalid to timestamp")
		}
	}
	return from, to, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, msg string, status int) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// metricsMiddleware records request duration per chi route pattern.
func metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		route := chi.RouteContext(r.Context()).RoutePattern()
		if route == "" {
			route = "unmatched"
		}
		observability.RecordHTTPRequest(route, strconv.Itoa(ww.Status()), time.Since(start).Seconds())
	})
}
