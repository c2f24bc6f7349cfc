package rpc

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"vaultcore/core/events"
	"vaultcore/core/state"
	"vaultcore/native/common"
	"vaultcore/native/vault"
	"vaultcore/observability/logging"
	"vaultcore/observability/metrics"
)

const (
	jsonRPCVersion  = "2.0"
	maxRequestBytes = 1 << 20 // 1 MiB
)

const (
	codeParseError     = -32700
	codeInvalidRequest = -32600
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
	codeUnauthorized   = -32001
	codeServerError    = -32000
	codeNotFound       = -32004
	codeRejected       = -32030
	codePaused         = -32031
)

// Server is the execution host for the vault engine: it serialises operations
// per pool and applies each one atomically against the ledger.
type Server struct {
	ledger  *state.Ledger
	pauses  common.PauseView
	emitter events.Emitter
	nowFn   func() int64
	logger  *slog.Logger

	mu        sync.Mutex
	poolLocks map[string]*sync.Mutex
	authToken string
}

// NewServer wires the host around a ledger. The emitter may be nil.
func NewServer(ledger *state.Ledger, pauses common.PauseView, emitter events.Emitter, logger *slog.Logger) *Server {
	if emitter == nil {
		emitter = events.NoopEmitter{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		ledger:    ledger,
		pauses:    pauses,
		emitter:   emitter,
		nowFn:     func() int64 { return time.Now().Unix() },
		logger:    logger,
		poolLocks: make(map[string]*sync.Mutex),
		authToken: strings.TrimSpace(os.Getenv("VAULT_RPC_TOKEN")),
	}
}

// SetNowFunc overrides the host clock supplied to the engine. Primarily
// intended for tests.
func (s *Server) SetNowFunc(now func() int64) {
	if now == nil {
		now = func() int64 { return time.Now().Unix() }
	}
	s.nowFn = now
}

// Router assembles the HTTP surface: the JSON-RPC endpoint plus health and
// metrics.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Post("/", s.handle)
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())
	return r
}

// Start serves the router on addr and blocks.
func (s *Server) Start(addr string) error {
	s.logger.Info("starting JSON-RPC server", "addr", addr)
	return http.ListenAndServe(addr, s.Router())
}

type RPCRequest struct {
	JSONRPC string            `json:"jsonrpc"`
	Method  string            `json:"method"`
	Params  []json.RawMessage `json:"params"`
	ID      int               `json:"id"`
}

type RPCResponse struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      interface{} `json:"id"`
	Result  interface{} `json:"result,omitempty"`
	Error   *RPCError   `json:"error,omitempty"`
}

type RPCError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func writeError(w http.ResponseWriter, status int, id interface{}, code int, message string, data interface{}) {
	if status <= 0 {
		status = http.StatusBadRequest
	}
	if status != http.StatusOK {
		w.WriteHeader(status)
	}
	errObj := &RPCError{Code: code, Message: message}
	if data != nil {
		errObj.Data = data
	}
	resp := RPCResponse{JSONRPC: jsonRPCVersion, ID: id, Error: errObj}
	_ = json.NewEncoder(w).Encode(resp)
}

func writeResult(w http.ResponseWriter, id interface{}, result interface{}) {
	resp := RPCResponse{JSONRPC: jsonRPCVersion, ID: id, Result: result}
	_ = json.NewEncoder(w).Encode(resp)
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, nil, codeParseError, "unable to read request body", err.Error())
		return
	}
	var req RPCRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeError(w, http.StatusBadRequest, nil, codeParseError, "invalid JSON-RPC request", err.Error())
		return
	}
	if req.JSONRPC != "" && req.JSONRPC != jsonRPCVersion {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidRequest, "unsupported JSON-RPC version", nil)
		return
	}

	switch req.Method {
	case "vault_initializePool":
		s.handleInitializePool(w, r, &req)
	case "vault_deposit":
		s.handleDeposit(w, r, &req)
	case "vault_withdraw":
		s.handleWithdraw(w, r, &req)
	case "vault_claimRewards":
		s.handleClaimRewards(w, r, &req)
	case "vault_fundRewards":
		s.handleFundRewards(w, r, &req)
	case "vault_getPool":
		s.handleGetPool(w, &req)
	case "vault_getPosition":
		s.handleGetPosition(w, &req)
	case "vault_balanceOf":
		s.handleBalanceOf(w, &req)
	default:
		writeError(w, http.StatusNotFound, req.ID, codeMethodNotFound, "unknown method", req.Method)
	}
}

// requireAuth gates mutating methods behind a bearer token when one is
// configured. Comparison is constant time.
func (s *Server) requireAuth(r *http.Request) *RPCError {
	if s.authToken == "" {
		return nil
	}
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok {
		s.logger.Warn("rejected rpc request", "reason", "missing bearer token",
			logging.MaskField("authorization", header))
		return &RPCError{Code: codeUnauthorized, Message: "missing bearer token"}
	}
	if subtle.ConstantTimeCompare([]byte(strings.TrimSpace(token)), []byte(s.authToken)) != 1 {
		s.logger.Warn("rejected rpc request", "reason", "invalid bearer token",
			logging.MaskField("authorization", header))
		return &RPCError{Code: codeUnauthorized, Message: "invalid bearer token"}
	}
	return nil
}

// poolLock returns the mutex serialising operations against one pool.
// Operations on different pools share no state and proceed in parallel.
func (s *Server) poolLock(poolID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	mu, ok := s.poolLocks[poolID]
	if !ok {
		mu = &sync.Mutex{}
		s.poolLocks[poolID] = mu
	}
	return mu
}

// withPool runs fn under the pool's lock inside an atomic ledger transaction,
// wiring a fresh engine to the transaction's overlay. Either every state
// change fn makes is flushed, or none are.
func (s *Server) withPool(poolID, op string, fn func(eng *vault.Engine) error) error {
	mu := s.poolLock(poolID)
	mu.Lock()
	defer mu.Unlock()
	err := s.ledger.Atomically(func(tx *state.Ledger) error {
		return fn(s.engineFor(tx))
	})
	metrics.Vault().ObserveOp(op, poolID, err)
	if err != nil {
		s.logger.Debug("vault operation rejected", "op", op, "pool", poolID, "err", err)
	}
	return err
}

// engineFor builds an engine bound to the given ledger view. Engines are
// cheap structs; one is constructed per operation so concurrent pools never
// share mutable engine state.
func (s *Server) engineFor(view *state.Ledger) *vault.Engine {
	eng := vault.NewEngine()
	eng.SetState(view)
	eng.SetCustody(view)
	eng.SetPauses(s.pauses)
	eng.SetEmitter(s.emitter)
	eng.SetNowFunc(s.nowFn)
	return eng
}

// rpcStatus maps engine errors onto JSON-RPC codes with stable messages so
// calling layers can branch on the error kind.
func rpcStatus(err error) (int, int) {
	switch {
	case errors.Is(err, vault.ErrPoolNotFound), errors.Is(err, vault.ErrPositionNotFound):
		return http.StatusNotFound, codeNotFound
	case errors.Is(err, common.ErrModulePaused):
		return http.StatusServiceUnavailable, codePaused
	case errors.Is(err, vault.ErrInvalidAmount),
		errors.Is(err, vault.ErrInsufficientShares),
		errors.Is(err, vault.ErrClockRewind),
		errors.Is(err, vault.ErrOverflow),
		errors.Is(err, vault.ErrPoolExists),
		errors.Is(err, vault.ErrInsufficientRewardBalance),
		errors.Is(err, state.ErrInsufficientBalance):
		return http.StatusUnprocessableEntity, codeRejected
	default:
		return http.StatusInternalServerError, codeServerError
	}
}

func writeEngineError(w http.ResponseWriter, id interface{}, err error) {
	status, code := rpcStatus(err)
	writeError(w, status, id, code, err.Error(), nil)
}
