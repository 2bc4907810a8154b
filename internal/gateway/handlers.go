// Package gateway is the HTTP and websocket surface: REST handlers over the
// engine and a hub streaming cycle events to connected clients.
package gateway

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/BibekSapkota1/Share-Project/internal/engine"
	"github.com/BibekSapkota1/Share-Project/internal/logger"
	"github.com/BibekSapkota1/Share-Project/internal/markethours"
	"github.com/BibekSapkota1/Share-Project/internal/model"
	"github.com/BibekSapkota1/Share-Project/internal/portfolio"
	"github.com/BibekSapkota1/Share-Project/internal/settings"
)

// UserHeader carries the authenticated user id, set by the fronting proxy.
const UserHeader = "X-User-ID"

// Engine is the core the handlers drive. *engine.Service implements it.
type Engine interface {
	Symbols(ctx context.Context) ([]string, error)
	Settings(ctx context.Context, userID int64) (model.Settings, error)
	AnalyzeSymbol(ctx context.Context, userID int64, symbol string, st model.Settings) (*model.Analysis, error)
	ScanSymbol(ctx context.Context, userID int64, symbol string, st model.Settings) (*model.ScanResult, error)
	ScanUniverse(ctx context.Context, userID int64) (*model.UniverseScan, error)
	Cycles(ctx context.Context, userID int64, symbol string) ([]model.TradeCycle, error)
	Tracking(ctx context.Context, userID, cycleID int64) ([]model.PriceTrackingRecord, error)
	OpenPosition(ctx context.Context, req engine.TradeRequest) (*model.TradeCycle, error)
	ClosePosition(ctx context.Context, req engine.TradeRequest) (*model.TradeCycle, error)
	ManualSell(ctx context.Context, req engine.TradeRequest) (*model.TradeCycle, error)
	Performance(ctx context.Context, userID int64) (*portfolio.Summary, error)
}

// Invalidator drops cached settings after a write.
type Invalidator interface {
	Invalidate(ctx context.Context, userID int64) error
}

// API holds the handler dependencies. Settings and Cache are optional: a nil
// Settings makes the settings endpoints read-only.
type API struct {
	Engine   Engine
	Hub      *Hub
	Settings settings.Writer
	Cache    Invalidator
	Calendar *markethours.Calendar
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// SetCORS sets CORS headers for REST endpoints.
func SetCORS(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type, "+UserHeader)
}

// Handler returns the routed API with CORS and per-request trace ids.
func (a *API) Handler() http.Handler {
	mux := http.NewServeMux()
	a.RegisterRoutes(mux)
	return a.middleware(mux)
}

// RegisterRoutes registers all HTTP routes on mux.
func (a *API) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /ws", a.authed(a.handleWS))

	mux.HandleFunc("GET /api/health", a.handleHealth)
	mux.HandleFunc("GET /api/symbols", a.handleSymbols)
	mux.HandleFunc("POST /api/analyze", a.authed(a.handleAnalyze))

	// Scans are not read-only: a HOLD on an open cycle records tracking rows
	// and may raise its trailing stop.
	mux.HandleFunc("GET /api/scanner", a.authed(a.handleScanUniverse))
	mux.HandleFunc("GET /api/scanner/{symbol}", a.authed(a.handleScanSymbol))

	mux.HandleFunc("GET /api/cycles", a.authed(a.handleCycles))
	mux.HandleFunc("GET /api/cycles/{id}/tracking", a.authed(a.handleTracking))
	mux.HandleFunc("GET /api/performance", a.authed(a.handlePerformance))

	mux.HandleFunc("POST /api/trade", a.authed(a.handleTrade))
	mux.HandleFunc("POST /api/trade/manual-sell", a.authed(a.handleManualSell))

	mux.HandleFunc("GET /api/settings", a.authed(a.handleGetSettings))
	mux.HandleFunc("PUT /api/settings", a.authed(a.handlePutSettings))
	mux.HandleFunc("DELETE /api/settings/{key}", a.authed(a.handleResetSetting))
}

func (a *API) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		SetCORS(w)
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		ctx := logger.EnsureTraceID(r.Context(), "http")
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// userHandler is a handler for an identified user.
type userHandler func(w http.ResponseWriter, r *http.Request, userID int64)

func (a *API) authed(h userHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := parseUserID(r.Header.Get(UserHeader))
		if !ok {
			writeJSON(w, http.StatusUnauthorized, errorBody{Error: "missing or invalid " + UserHeader, Code: "UNAUTHENTICATED"})
			return
		}
		h(w, r, userID)
	}
}

func parseUserID(s string) (int64, bool) {
	id, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	return id, err == nil && id > 0
}

func decode(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return model.NewError(model.CodeInvalidRequest, "", "invalid JSON: %v", err)
	}
	return validate(v)
}

// handleWS upgrades to a websocket for the user named by the same header
// the REST routes use; the fronting proxy sets it on the upgrade request.
func (a *API) handleWS(w http.ResponseWriter, r *http.Request, userID int64) {
	var lastSeq int64
	if s := r.URL.Query().Get("last_seq"); s != "" {
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil || n < 0 {
			writeError(w, r, model.NewError(model.CodeInvalidRequest, "", "last_seq %q", s))
			return
		}
		lastSeq = n
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("ws upgrade failed", "err", err)
		return
	}
	a.Hub.HandleWS(conn, userID, lastSeq)
}

func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	now := time.Now()
	cal := a.Calendar
	if cal == nil {
		cal = markethours.NewCalendar()
	}
	resp := HealthResponse{
		Status:       "ok",
		Time:         now.UTC(),
		MarketOpen:   cal.IsMarketOpen(now),
		MarketStatus: cal.StatusString(now),
	}
	if a.Hub != nil {
		resp.WSClients = a.Hub.ClientCount()
	}
	writeJSON(w, http.StatusOK, resp)
}

func (a *API) handleSymbols(w http.ResponseWriter, r *http.Request) {
	symbols, err := a.Engine.Symbols(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"symbols": symbols, "count": len(symbols)})
}

func (a *API) handleAnalyze(w http.ResponseWriter, r *http.Request, userID int64) {
	var req AnalyzeRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	base, err := a.Engine.Settings(r.Context(), userID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	st, err := req.overrides().With(base)
	if err != nil {
		writeError(w, r, err)
		return
	}
	out, err := a.Engine.AnalyzeSymbol(r.Context(), userID, req.Symbol, st)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (a *API) handleScanUniverse(w http.ResponseWriter, r *http.Request, userID int64) {
	out, err := a.Engine.ScanUniverse(r.Context(), userID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (a *API) handleScanSymbol(w http.ResponseWriter, r *http.Request, userID int64) {
	st, err := a.Engine.Settings(r.Context(), userID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	out, err := a.Engine.ScanSymbol(r.Context(), userID, strings.ToUpper(r.PathValue("symbol")), st)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (a *API) handleCycles(w http.ResponseWriter, r *http.Request, userID int64) {
	symbol := strings.ToUpper(strings.TrimSpace(r.URL.Query().Get("symbol")))
	cycles, err := a.Engine.Cycles(r.Context(), userID, symbol)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if cycles == nil {
		cycles = []model.TradeCycle{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"cycles": cycles, "count": len(cycles)})
}

func (a *API) handlePerformance(w http.ResponseWriter, r *http.Request, userID int64) {
	p, err := a.Engine.Performance(r.Context(), userID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (a *API) handleTracking(w http.ResponseWriter, r *http.Request, userID int64) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, r, model.NewError(model.CodeInvalidRequest, "", "cycle id %q", r.PathValue("id")))
		return
	}
	records, err := a.Engine.Tracking(r.Context(), userID, id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if records == nil {
		records = []model.PriceTrackingRecord{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"cycle_id": id, "tracking": records})
}

func (a *API) handleTrade(w http.ResponseWriter, r *http.Request, userID int64) {
	var body TradeRequestBody
	if err := decode(r, &body); err != nil {
		writeError(w, r, err)
		return
	}
	req, err := tradeRequest(userID, body.Symbol, body.Date, body.Price, body.RSI, body.Reason)
	if err != nil {
		writeError(w, r, err)
		return
	}

	var c *model.TradeCycle
	status := http.StatusOK
	if body.Action == "BUY" {
		c, err = a.Engine.OpenPosition(r.Context(), req)
		status = http.StatusCreated
	} else {
		c, err = a.Engine.ClosePosition(r.Context(), req)
	}
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, status, c)
}

func (a *API) handleManualSell(w http.ResponseWriter, r *http.Request, userID int64) {
	var body ManualSellBody
	if err := decode(r, &body); err != nil {
		writeError(w, r, err)
		return
	}
	req, err := tradeRequest(userID, body.Symbol, body.Date, body.Price, body.RSI, body.Reason)
	if err != nil {
		writeError(w, r, err)
		return
	}
	c, err := a.Engine.ManualSell(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (a *API) handleGetSettings(w http.ResponseWriter, r *http.Request, userID int64) {
	st, err := a.Engine.Settings(r.Context(), userID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, settingsResponse(st))
}

func (a *API) handlePutSettings(w http.ResponseWriter, r *http.Request, userID int64) {
	if a.Settings == nil {
		writeJSON(w, http.StatusMethodNotAllowed, errorBody{Error: "settings are read-only", Code: "READ_ONLY"})
		return
	}
	var patch settings.Patch
	if err := decode(r, &patch); err != nil {
		writeError(w, r, err)
		return
	}
	current, err := a.Engine.Settings(r.Context(), userID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	next, err := settings.Update(r.Context(), a.Settings, userID, current, patch)
	if err != nil {
		writeError(w, r, err)
		return
	}
	a.invalidate(r.Context(), userID)
	writeJSON(w, http.StatusOK, settingsResponse(next))
}

func (a *API) handleResetSetting(w http.ResponseWriter, r *http.Request, userID int64) {
	if a.Settings == nil {
		writeJSON(w, http.StatusMethodNotAllowed, errorBody{Error: "settings are read-only", Code: "READ_ONLY"})
		return
	}
	if err := settings.Reset(r.Context(), a.Settings, userID, r.PathValue("key")); err != nil {
		writeError(w, r, err)
		return
	}
	a.invalidate(r.Context(), userID)
	a.handleGetSettings(w, r, userID)
}

// invalidate drops the cached settings. A failure leaves the stale entry
// to expire on its TTL.
func (a *API) invalidate(ctx context.Context, userID int64) {
	if a.Cache == nil {
		return
	}
	if err := a.Cache.Invalidate(ctx, userID); err != nil {
		slog.Warn("settings cache invalidate failed", logger.Attrs(ctx, "user_id", userID, "err", err)...)
	}
}
