package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/RyanJHamby/stock-screener-cagr-based/internal/contracts"
	"github.com/RyanJHamby/stock-screener-cagr-based/internal/screener"
)

// Stream message types
const (
	MessageStarted = "started"
	MessageResult  = "result"
	MessageSummary = "summary"
	MessageError   = "error"
)

const streamWriteTimeout = 10 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// StreamMessage is one websocket frame of a streamed run
type StreamMessage struct {
	Type     string `json:"type"`
	RunID    string `json:"run_id"`
	Strategy string `json:"strategy,omitempty"`

	// result
	Symbol           string                      `json:"symbol,omitempty"`
	Candidate        *contracts.ScoredCandidate  `json:"candidate,omitempty"`
	Disqualification *contracts.Disqualification `json:"disqualification,omitempty"`
	ElapsedMs        int64                       `json:"elapsed_ms,omitempty"`

	// summary
	Screened   int                         `json:"screened,omitempty"`
	Qualified  int                         `json:"qualified,omitempty"`
	Candidates []contracts.ScoredCandidate `json:"candidates,omitempty"`

	Error string `json:"error,omitempty"`
}

// Stream runs a screen and pushes every symbol's result as it finishes.
// Closing the socket cancels the run.
// GET /api/stream/{strategy}?symbols=AAPL,MSFT&top=N (websocket)
func (h *ScreenHandler) Stream(w http.ResponseWriter, r *http.Request) {
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

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.WithError(err).Warn("Failed to upgrade websocket")
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(h.baseCtx)
	defer cancel()

	// The client sends nothing; a read error means it went away
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	runID := h.newID()
	log := h.logger.WithFields(map[string]interface{}{
		"run_id":   runID,
		"strategy": strategy,
		"remote":   r.RemoteAddr,
	})
	log.Info("Stream opened")

	// Every write happens on this goroutine: OnResult runs inside Screen
	send := func(msg StreamMessage) {
		if ctx.Err() != nil {
			return
		}
		conn.SetWriteDeadline(time.Now().Add(streamWriteTimeout))
		if err := conn.WriteJSON(msg); err != nil {
			log.WithError(err).Warn("Stream write failed, cancelling run")
			cancel()
		}
	}

	symbols := symbolsParam(r)
	send(StreamMessage{Type: MessageStarted, RunID: runID, Strategy: strategy})

	run, err := h.screen.Screen(ctx, screener.Request{
		RunID:    runID,
		Strategy: strategy,
		Symbols:  symbols,
		OnResult: func(res screener.Result) {
			send(StreamMessage{
				Type:             MessageResult,
				RunID:            runID,
				Symbol:           res.Symbol,
				Candidate:        res.Outcome.Candidate,
				Disqualification: res.Outcome.Disqualification,
				ElapsedMs:        res.Elapsed.Milliseconds(),
			})
		},
	})
	if err != nil {
		if errors.Is(err, context.Canceled) {
			log.Info("Stream closed before run finished")
			return
		}
		send(StreamMessage{Type: MessageError, RunID: runID, Error: err.Error()})
		return
	}

	h.persist(run)
	send(StreamMessage{
		Type:       MessageSummary,
		RunID:      runID,
		Strategy:   strategy,
		Screened:   run.Summary.Screened,
		Qualified:  len(run.Summary.Ranking.Candidates),
		Candidates: run.Summary.Ranking.Top(intParam(r, "top", 0)),
	})

	conn.SetWriteDeadline(time.Now().Add(streamWriteTimeout))
	conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "run complete"))
	log.Info("Stream finished")
}
