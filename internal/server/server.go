// Package server exposes the HTTP surface: the quiz-completion endpoint
// that issues capability tokens and the protected mint endpoint.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"quizmint/internal/chain"
	"quizmint/internal/config"
	"quizmint/internal/idempotency"
	"quizmint/internal/minting"
	"quizmint/internal/quizgate"
)

// Minter is the orchestration dependency of the HTTP layer.
type Minter interface {
	Mint(ctx context.Context, req minting.Request) (*minting.Outcome, error)
}

type Server struct {
	cfg        *config.Config
	gate       *quizgate.Gate
	minter     Minter
	store      idempotency.Store
	metrics    *metricsRegistry
	httpServer *http.Server
	log        zerolog.Logger

	rpcHealthFn   func(context.Context) error
	storeHealthFn func(context.Context) error
}

// NewServer wires routes, middleware and health probes. store may be nil
// when response replay is disabled.
func NewServer(cfg *config.Config, gate *quizgate.Gate, minter Minter, store idempotency.Store, chainCli chain.Client, log zerolog.Logger) *Server {
	metrics := newMetricsRegistry()

	s := &Server{
		cfg:     cfg,
		gate:    gate,
		minter:  minter,
		store:   store,
		metrics: metrics,
		log:     log,
	}

	if checker, ok := chainCli.(chain.HealthChecker); ok {
		s.rpcHealthFn = checker.Ping
	}
	if checker, ok := store.(interface{ Ping(context.Context) error }); ok {
		s.storeHealthFn = checker.Ping
	}

	limiter := newRateLimiter(cfg.HTTP.RateLimitRPS, cfg.HTTP.RateLimitBurst)

	mux := http.NewServeMux()
	mux.Handle("/complete-quiz", limiter.handler(http.HandlerFunc(s.handleCompleteQuiz)))
	mux.Handle("/mint-nft", limiter.handler(gate.Middleware(http.HandlerFunc(s.handleMintNFT))))
	mux.Handle("/api/v1/metrics", metrics.handler())
	mux.HandleFunc("/api/v1/health", s.handleHealth)

	s.httpServer = &http.Server{
		Addr:              ":" + strconv.Itoa(cfg.HTTP.Port),
		Handler:           s.requestIDMiddleware(corsMiddleware(mux)),
		ReadHeaderTimeout: 15 * time.Second,
	}
	return s
}

func (s *Server) Start() error {
	s.log.Info().Str("addr", s.httpServer.Addr).Msg("api listening")
	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

type completeQuizRequest struct {
	Score int `json:"score"`
}

type completeQuizResponse struct {
	Token string `json:"token"`
}

type mintRequest struct {
	Rarity        string `json:"rarity"`
	WalletAddress string `json:"walletAddress"`
}

type mintResponse struct {
	Success         bool   `json:"success"`
	TransactionHash string `json:"transactionHash,omitempty"`
	Message         string `json:"message,omitempty"`
	Error           string `json:"error,omitempty"`
}

func (s *Server) handleCompleteQuiz(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var payload completeQuizRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	token, err := s.gate.IssueToken(payload.Score)
	if err != nil {
		s.metrics.incToken("rejected")
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	s.metrics.incToken("issued")
	writeJSON(w, http.StatusOK, completeQuizResponse{Token: token})
}

func (s *Server) handleMintNFT(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()

	var payload mintRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		s.metrics.incMint("bad_request")
		writeJSON(w, http.StatusBadRequest, mintResponse{Success: false, Message: "invalid json payload"})
		return
	}
	if payload.Rarity == "" || payload.WalletAddress == "" {
		s.metrics.incMint("bad_request")
		writeJSON(w, http.StatusBadRequest, mintResponse{Success: false, Message: "rarity and walletAddress are required"})
		return
	}

	replayKey := idempotency.MintKey(payload.WalletAddress, payload.Rarity)
	if s.store != nil {
		if existing, _ := s.store.Get(ctx, replayKey); existing != nil {
			s.metrics.incMint("replayed")
			writeJSON(w, http.StatusOK, mintResponse{Success: true, TransactionHash: existing.TxHash})
			return
		}
	}

	start := time.Now()
	outcome, err := s.minter.Mint(ctx, minting.Request{
		WalletAddress: payload.WalletAddress,
		Rarity:        payload.Rarity,
	})
	s.metrics.observeMintDuration(time.Since(start))

	if err != nil {
		if minting.IsClientError(err) {
			status := "rejected"
			if errors.Is(err, minting.ErrAlreadyAwarded) {
				status = "already_awarded"
			}
			s.metrics.incMint(status)
			writeJSON(w, http.StatusBadRequest, mintResponse{Success: false, Message: err.Error()})
			return
		}
		s.metrics.incMint("failed")
		s.log.Error().Err(err).Str("wallet", payload.WalletAddress).Str("rarity", payload.Rarity).Msg("mint failed")
		writeJSON(w, http.StatusInternalServerError, mintResponse{Success: false, Error: err.Error()})
		return
	}

	switch {
	case outcome.RewardErr != nil:
		s.metrics.incReward("failed")
	case outcome.RewardTxHash != "":
		s.metrics.incReward("sent")
	default:
		s.metrics.incReward("skipped")
	}

	if s.store != nil {
		record := idempotency.Record{
			TxHash:       outcome.TxHash,
			RewardTxHash: outcome.RewardTxHash,
			CreatedAt:    time.Now(),
			ExpiresAt:    time.Now().Add(s.cfg.Replay.Window),
		}
		if err := s.store.Save(ctx, replayKey, record); err != nil {
			s.log.Warn().Err(err).Str("key", replayKey).Msg("replay store save failed")
		}
	}

	s.metrics.incMint("minted")
	writeJSON(w, http.StatusOK, mintResponse{Success: true, TransactionHash: outcome.TxHash})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	overallHealthy := true

	rpcInfo := struct {
		Connected bool    `json:"connected"`
		LatencyMs float64 `json:"latency_ms"`
		Error     string  `json:"error,omitempty"`
	}{}

	if s.rpcHealthFn != nil {
		start := time.Now()
		rpcCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		if err := s.rpcHealthFn(rpcCtx); err != nil {
			rpcInfo.Connected = false
			rpcInfo.Error = err.Error()
			overallHealthy = false
		} else {
			rpcInfo.Connected = true
			rpcInfo.LatencyMs = float64(time.Since(start).Microseconds()) / 1000.0
		}
	} else {
		rpcInfo.Connected = true
	}

	storeInfo := struct {
		Connected bool   `json:"connected"`
		Error     string `json:"error,omitempty"`
	}{Connected: true}

	if s.storeHealthFn != nil {
		storeCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		if err := s.storeHealthFn(storeCtx); err != nil {
			storeInfo.Connected = false
			storeInfo.Error = err.Error()
			overallHealthy = false
		}
	}

	status := "healthy"
	code := http.StatusOK
	if !overallHealthy {
		status = "degraded"
		code = http.StatusServiceUnavailable
	}

	writeJSON(w, code, struct {
		Status string      `json:"status"`
		RPC    interface{} `json:"rpc"`
		Store  interface{} `json:"store"`
	}{
		Status: status,
		RPC:    rpcInfo,
		Store:  storeInfo,
	})
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func (s *Server) requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-Id")
		if id == "" {
			id = uuid.NewString()
			r.Header.Set("X-Request-Id", id)
		}
		w.Header().Set("X-Request-Id", id)

		start := time.Now()
		next.ServeHTTP(w, r)
		s.log.Debug().
			Str("request_id", id).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Dur("elapsed", time.Since(start)).
			Msg("request handled")
	})
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
