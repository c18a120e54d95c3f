package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	"github.com/RyanJHamby/stock-screener-cagr-based/internal/contracts"
	"github.com/RyanJHamby/stock-screener-cagr-based/internal/report"
	"github.com/RyanJHamby/stock-screener-cagr-based/internal/scoring"
	"github.com/RyanJHamby/stock-screener-cagr-based/internal/screener"
	"github.com/RyanJHamby/stock-screener-cagr-based/internal/strategyconfig"
	"github.com/RyanJHamby/stock-screener-cagr-based/internal/universe"
	"github.com/RyanJHamby/stock-screener-cagr-based/pkg/logger"
)

// Screener is the screening service the handlers drive
type Screener interface {
	Screen(ctx context.Context, req screener.Request) (*screener.Run, error)
	Latest(strategy string) (*screener.Run, bool)
	Running(strategy string) (string, bool)
	Metrics(ctx context.Context, symbol string) (contracts.DerivedMetrics, error)
}

// ReportWriter persists finished runs
type ReportWriter interface {
	Write(s *screener.Summary, prov *strategyconfig.Provenance) (*report.Files, error)
}

// ScreenHandler handles screening API endpoints
// ⭐ SSOT: screening API handlers live in this struct
type ScreenHandler struct {
	screen  Screener
	writer  ReportWriter
	newID   func() string
	baseCtx context.Context
	logger  *logger.Logger
}

// NewScreenHandler creates a screening handler. writer may be nil to skip
// report files. Background runs are cancelled when baseCtx ends.
func NewScreenHandler(baseCtx context.Context, screen Screener, writer ReportWriter, newID func() string, log *logger.Logger) *ScreenHandler {
	return &ScreenHandler{
		screen:  screen,
		writer:  writer,
		newID:   newID,
		baseCtx: baseCtx,
		logger:  log.WithField("module", "api"),
	}
}

// RunResponse describes a started run
type RunResponse struct {
	RunID    string `json:"run_id"`
	Strategy string `json:"strategy"`
	Symbols  int    `json:"symbols"` // 0 means the configured universe
}

// ListStrategies returns the available strategy names
// GET /api/strategies
func (h *ScreenHandler) ListStrategies(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"strategies": scoring.Names,
	})
}

// StartRun starts a screening run in the background
// POST /api/screen/{strategy}?symbols=AAPL,MSFT
func (h *ScreenHandler) StartRun(w http.ResponseWriter, r *http.Request) {
	strategy := mux.Vars(r)["strategy"]
	if !knownStrategy(strategy) {
		respondError(w, http.StatusNotFound, "unknown strategy: "+strategy)
		return
	}
	if id, busy := h.screen.Running(strategy); busy {
		respondJSON(w, http.StatusConflict, map[string]string{
			"error":  "run already in progress",
			"run_id": id,
		})
		return
	}

	symbols := symbolsParam(r)
	runID := h.newID()

	go func() {
		run, err := h.screen.Screen(h.baseCtx, screener.Request{
			RunID:    runID,
			Strategy: strategy,
			Symbols:  symbols,
		})
		if err != nil {
			h.logger.WithError(err).WithField("run_id", runID).Error("Background run failed")
			return
		}
		h.persist(run)
	}()

	respondJSON(w, http.StatusAccepted, RunResponse{
		RunID:    runID,
		Strategy: strategy,
		Symbols:  len(symbols),
	})
}

// GetLatest returns the most recent finished run for a strategy
// GET /api/screen/{strategy}?top=N
func (h *ScreenHandler) GetLatest(w http.ResponseWriter, r *http.Request) {
	strategy := mux.Vars(r)["strategy"]
	if !knownStrategy(strategy) {
		respondError(w, http.StatusNotFound, "unknown strategy: "+strategy)
		return
	}

	run, ok := h.screen.Latest(strategy)
	if !ok {
		if id, busy := h.screen.Running(strategy); busy {
			respondJSON(w, http.StatusAccepted, map[string]string{"status": "running", "run_id": id})
			return
		}
		respondError(w, http.StatusNotFound, "no completed run for "+strategy)
		return
	}

	doc := report.NewDocument(run.Summary, run.Provenance)
	if top := intParam(r, "top", 0); top > 0 {
		doc.Candidates = run.Summary.Ranking.Top(top)
	}
	respondJSON(w, http.StatusOK, doc)
}

// GetDisqualifications returns the exclusions of the latest run
// GET /api/screen/{strategy}/disqualified
func (h *ScreenHandler) GetDisqualifications(w http.ResponseWriter, r *http.Request) {
	strategy := mux.Vars(r)["strategy"]
	run, ok := h.screen.Latest(strategy)
	if !ok {
		respondError(w, http.StatusNotFound, "no completed run for "+strategy)
		return
	}
	respondJSON(w, http.StatusOK, run.Summary.Ranking.Disqualifications)
}

// GetMetrics computes derived metrics for one symbol
// GET /api/metrics/{symbol}
func (h *ScreenHandler) GetMetrics(w http.ResponseWriter, r *http.Request) {
	symbol := strings.ToUpper(strings.TrimSpace(mux.Vars(r)["symbol"]))

	m, err := h.screen.Metrics(r.Context(), symbol)
	if err != nil {
		if errors.Is(err, screener.ErrNoData) {
			respondError(w, http.StatusNotFound, err.Error())
			return
		}
		h.logger.WithError(err).WithField("symbol", symbol).Error("Failed to compute metrics")
		respondError(w, http.StatusInternalServerError, "Failed to compute metrics")
		return
	}

	respondJSON(w, http.StatusOK, m)
}

func (h *ScreenHandler) persist(run *screener.Run) {
	if h.writer == nil {
		return
	}
	if _, err := h.writer.Write(run.Summary, run.Provenance); err != nil {
		h.logger.WithError(err).WithField("run_id", run.Summary.RunID).Error("Failed to write report")
	}
}

func knownStrategy(name string) bool {
	for _, n := range scoring.Names {
		if n == name {
			return true
		}
	}
	return false
}

// symbolsParam reads ?symbols=A,B,C
func symbolsParam(r *http.Request) []string {
	raw := r.URL.Query().Get("symbols")
	if raw == "" {
		return nil
	}
	return universe.Normalize(strings.Split(raw, ","))
}

// intParam reads a non-negative integer query parameter
func intParam(r *http.Request, key string, def int) int {
	v, err := strconv.Atoi(r.URL.Query().Get(key))
	if err != nil || v < 0 {
		return def
	}
	return v
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{
		"error": message,
	})
}
