package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/vadiminshakov/balancewatch/internal/cache"
	"github.com/vadiminshakov/balancewatch/internal/domain"
)

const defaultHeartbeatInterval = 30 * time.Second

type balanceReader interface {
	Get(asset string) (domain.AssetBalance, error)
	SnapshotView() []cache.Entry
	Initialized() bool
	Version() uint64
}

type batchFeed interface {
	Subscribe() chan domain.AppliedBatch
	Unsubscribe(ch chan domain.AppliedBatch)
}

type journalReader interface {
	BatchesAfter(index uint64) ([]domain.AppliedBatchRecord, error)
}

// Server exposes the cached balances over HTTP and an SSE stream.
type Server struct {
	Addr      string
	Balances  balanceReader
	Feed      batchFeed
	Journal   journalReader
	logger    *zap.Logger
	heartbeat time.Duration
}

// NewServer creates a new web server instance. feed and journal may be nil.
func NewServer(addr string, balances balanceReader, feed batchFeed, journal journalReader, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		Addr:      addr,
		Balances:  balances,
		Feed:      feed,
		Journal:   journal,
		logger:    logger,
		heartbeat: defaultHeartbeatInterval,
	}
}

// Handler returns the routes of the server.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /balances", s.handleBalances)
	mux.HandleFunc("GET /balances/{asset}", s.handleBalance)
	mux.HandleFunc("GET /balance/stream", s.handleBalanceStream)
	mux.HandleFunc("GET /balance/history", s.handleHistory)
	return mux
}

// Start runs the HTTP server (blocking) and shuts it down when ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	server := &http.Server{
		Addr:              s.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	s.logger.Info("web server listening", zap.String("addr", s.Addr))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

type snapshotResponse struct {
	Version  uint64        `json:"version"`
	Balances []cache.Entry `json:"balances"`
}

type historyEntry struct {
	Index uint64              `json:"index"`
	Batch domain.AppliedBatch `json:"batch"`
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprint(w, indexHTML)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if !s.Balances.Initialized() {
		http.Error(w, "balance cache not initialized", http.StatusServiceUnavailable)
		return
	}
	fmt.Fprint(w, "ok")
}

func (s *Server) handleBalances(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.snapshot())
}

func (s *Server) handleBalance(w http.ResponseWriter, r *http.Request) {
	asset := r.PathValue("asset")
	balance, err := s.Balances.Get(asset)
	if errors.Is(err, domain.ErrNotFound) {
		http.Error(w, fmt.Sprintf("asset %s not found", asset), http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	s.writeJSON(w, http.StatusOK, balance)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if s.Journal == nil {
		http.Error(w, "balance journal not available", http.StatusServiceUnavailable)
		return
	}

	var after uint64
	if raw := r.URL.Query().Get("after"); raw != "" {
		v, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			http.Error(w, "invalid 'after' parameter", http.StatusBadRequest)
			return
		}
		after = v
	}

	records, err := s.Journal.BatchesAfter(after)
	if err != nil {
		s.logger.Error("failed to read balance journal", zap.Error(err))
		http.Error(w, "failed to read balance journal", http.StatusInternalServerError)
		return
	}

	entries := make([]historyEntry, 0, len(records))
	for _, rec := range records {
		entries = append(entries, historyEntry{Index: rec.Index, Batch: rec.Batch})
	}
	s.writeJSON(w, http.StatusOK, entries)
}

func (s *Server) handleBalanceStream(w http.ResponseWriter, r *http.Request) {
	if s.Feed == nil {
		http.Error(w, "balance feed not available", http.StatusServiceUnavailable)
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	// subscribe before taking the snapshot so no batch falls in between
	updates := s.Feed.Subscribe()
	defer s.Feed.Unsubscribe(updates)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	// send a comment heartbeat so proxies keep connection
	heartbeat := time.NewTicker(s.heartbeat)
	defer heartbeat.Stop()

	if err := writeEvent(w, "snapshot", s.snapshot()); err != nil {
		s.logger.Warn("balance stream initial snapshot", zap.Error(err))
		return
	}
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-heartbeat.C:
			fmt.Fprintf(w, ": ping\n\n")
			flusher.Flush()
		case batch, ok := <-updates:
			if !ok {
				// cut off by the feed; ending the response makes the client reconnect for a fresh snapshot
				s.logger.Info("balance stream reader fell behind, closing stream")
				return
			}
			if err := writeEvent(w, "balance", batch); err != nil {
				s.logger.Warn("balance stream write", zap.Error(err))
				return
			}
			flusher.Flush()
		}
	}
}

func (s *Server) snapshot() snapshotResponse {
	return snapshotResponse{
		Version:  s.Balances.Version(),
		Balances: s.Balances.SnapshotView(),
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warn("failed to encode response", zap.Error(err))
	}
}

func writeEvent(w http.ResponseWriter, event string, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, payload)
	return err
}
