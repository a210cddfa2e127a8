// internal/api/server.go
// Package api - HTTP-поверхность сервиса: создание токена, история торгов и WebSocket.
package api

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/rovshanmuradov/fairlaunch/internal/launch"
	"github.com/rovshanmuradov/fairlaunch/internal/storage"
	"github.com/rovshanmuradov/fairlaunch/internal/storage/models"
)

const (
	maxBodyBytes = 64 << 10

	// launchTimeout ограничивает запуск токена, отвязанный от запроса.
	launchTimeout = 3 * time.Minute
)

// Launcher создает токены.
type Launcher interface {
	Launch(ctx context.Context, req launch.Request) (*models.Token, error)
}

// Store - чтение токенов и их истории.
type Store interface {
	storage.TokenStore
	storage.LedgerStore
}

// Server собирает маршруты сервиса.
type Server struct {
	launcher Launcher
	store    Store
	ws       http.Handler
	logger   *zap.Logger
}

// NewServer создает HTTP-сервер. ws обслуживает /ws.
func NewServer(launcher Launcher, store Store, ws http.Handler, logger *zap.Logger) *Server {
	return &Server{
		launcher: launcher,
		store:    store,
		ws:       ws,
		logger:   logger.Named("api"),
	}
}

// Handler возвращает мультиплексор со всеми маршрутами.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/coins", s.handleCreateCoin)
	mux.HandleFunc("GET /api/coins/{mint}", s.handleGetCoin)
	mux.HandleFunc("GET /api/coins/{mint}/trades", s.handleTrades)
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	if s.ws != nil {
		mux.Handle("GET /ws", s.ws)
	}
	return s.logRequests(mux)
}

type coinResponse struct {
	Mint        string    `json:"token"`
	Creator     string    `json:"creator"`
	Name        string    `json:"name"`
	Ticker      string    `json:"ticker"`
	Description string    `json:"description,omitempty"`
	URI         string    `json:"uri"`
	ReserveOne  uint64    `json:"reserveOne"`
	ReserveTwo  uint64    `json:"reserveTwo"`
	Marketcap   float64   `json:"marketcap"`
	CreatedAt   time.Time `json:"date"`
}

func newCoinResponse(t *models.Token) coinResponse {
	return coinResponse{
		Mint:        t.Mint,
		Creator:     t.Creator,
		Name:        t.Name,
		Ticker:      t.Symbol,
		Description: t.Description,
		URI:         t.URI,
		ReserveOne:  t.BaseReserve,
		ReserveTwo:  t.QuoteReserve,
		Marketcap:   t.EffectiveThreshold(),
		CreatedAt:   t.CreatedAt,
	}
}

type tradeResponse struct {
	Holder    string    `json:"holder"`
	Kind      string    `json:"holdingStatus"`
	Amount    uint64    `json:"amount"`
	Signature string    `json:"tx"`
	Price     float64   `json:"price"`
	Time      time.Time `json:"time"`
}

func (s *Server) handleCreateCoin(w http.ResponseWriter, r *http.Request) {
	var req launch.Request
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	// Запуск не прерывается при обрыве клиента: принятый relay пакет
	// должен дойти до сохранения токена.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), launchTimeout)
	defer cancel()

	token, err := s.launcher.Launch(ctx, req)
	switch {
	case errors.Is(err, launch.ErrInvalidRequest):
		writeError(w, http.StatusBadRequest, err.Error())
		return
	case err != nil:
		// детали ошибки остаются в логах
		writeJSON(w, http.StatusBadRequest, "failed")
		return
	}
	writeJSON(w, http.StatusOK, newCoinResponse(token))
}

func (s *Server) handleGetCoin(w http.ResponseWriter, r *http.Request) {
	token, err := s.store.FindTokenByMint(r.Context(), r.PathValue("mint"))
	if err != nil {
		s.storeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newCoinResponse(token))
}

func (s *Server) handleTrades(w http.ResponseWriter, r *http.Request) {
	mint := r.PathValue("mint")
	if _, err := s.store.FindTokenByMint(r.Context(), mint); err != nil {
		s.storeError(w, err)
		return
	}

	records, err := s.store.FindLedgerByMint(r.Context(), mint)
	if err != nil {
		s.storeError(w, err)
		return
	}

	out := make([]tradeResponse, 0, len(records))
	for _, rec := range records {
		out = append(out, tradeResponse{
			Holder:    rec.Holder,
			Kind:      rec.Kind.String(),
			Amount:    rec.Amount,
			Signature: rec.Signature,
			Price:     rec.Price,
			Time:      rec.CreatedAt,
		})
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"mint": mint, "record": out})
}

func (s *Server) storeError(w http.ResponseWriter, err error) {
	if errors.Is(err, storage.ErrNotFound) {
		writeError(w, http.StatusNotFound, "token not found")
		return
	}
	s.logger.Error("Storage error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, "internal error")
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

// Hijack нужен апгрейду WebSocket.
func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	return h.Hijack()
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.logger.Debug("HTTP request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rec.status),
			zap.Duration("took", time.Since(start)))
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
