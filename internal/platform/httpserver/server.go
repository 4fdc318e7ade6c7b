package httpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	claimengine "merkledrop/contexts/token-distribution/claim-engine"
	claimerrors "merkledrop/contexts/token-distribution/claim-engine/domain/errors"
	claimhttp "merkledrop/contexts/token-distribution/claim-engine/transport/http"
	"merkledrop/internal/platform/metrics"

	"github.com/ethereum/go-ethereum/common"
	httpSwagger "github.com/swaggo/http-swagger"
	"golang.org/x/sync/errgroup"

	_ "merkledrop/internal/platform/httpserver/docs"
)

const maxBodyBytes = 64 << 10

type Options struct {
	Addr          string
	Authenticator Authenticator
	// ClaimRatePerSecond and ClaimBurst bound claim attempts per caller.
	ClaimRatePerSecond float64
	ClaimBurst         int
	Metrics            *metrics.Metrics
	Logger             *slog.Logger
}

type Server struct {
	mux     *http.ServeMux
	logger  *slog.Logger
	addr    string
	drop    claimengine.Module
	auth    Authenticator
	claims  *callerLimiter
	metrics *metrics.Metrics
}

func New(drop claimengine.Module, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	addr := opts.Addr
	if addr == "" {
		addr = ":8080"
	}
	auth := opts.Authenticator
	if auth == nil {
		auth = SignatureAuthenticator{}
	}
	m := opts.Metrics
	if m == nil {
		m = metrics.New()
	}

	s := &Server{
		mux:     http.NewServeMux(),
		logger:  logger,
		addr:    addr,
		drop:    drop,
		auth:    auth,
		claims:  newCallerLimiter(opts.ClaimRatePerSecond, opts.ClaimBurst),
		metrics: m,
	}
	s.registerRoutes()
	return s
}

func (s *Server) Handler() http.Handler {
	return s.mux
}

// Run serves until ctx is cancelled, then drains in-flight requests.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.logger.Info("http server starting",
			"event", "http_server_starting",
			"module", "internal/platform/httpserver",
			"layer", "platform",
			"addr", s.addr,
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		s.logger.Info("http server stopping",
			"event", "http_server_stopping",
			"module", "internal/platform/httpserver",
			"layer", "platform",
		)
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func (s *Server) registerRoutes() {
	s.mux.Handle("/swagger/", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))
	s.mux.Handle("GET /metrics", s.metrics.Handler())
	s.mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	s.route("GET /drop", s.handleGetDrop)
	s.route("GET /drop/recipients/{address}", s.handleGetRecipient)
	s.route("GET /drop/recipients/{address}/balance", s.handleGetBalance)
	s.route("POST /drop/admin/root", s.authenticated(s.ownerOnly(s.handleSetRoot)))
	s.route("POST /drop/admin/token", s.authenticated(s.ownerOnly(s.handleSetToken)))
	s.route("POST /drop/admin/entitlements", s.authenticated(s.ownerOnly(s.handleSetEntitlement)))
	s.route("POST /drop/claim", s.authenticated(s.handleClaim))
}

// route requires X-Request-Id and records request metrics under pattern.
func (s *Server) route(pattern string, next http.HandlerFunc) {
	s.mux.HandleFunc(pattern, func(w http.ResponseWriter, r *http.Request) {
		started := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		defer func() {
			s.metrics.ObserveRequest(pattern, r.Method, rec.status, time.Since(started))
		}()

		if strings.TrimSpace(r.Header.Get(headerRequestID)) == "" {
			writeDropError(rec, http.StatusBadRequest, "request_id_required", "X-Request-Id header is required")
			return
		}
		next(rec, r)
	})
}

type callerHandler func(w http.ResponseWriter, r *http.Request, caller common.Address, body []byte)

// authenticated reads the body once so the authenticator and the decoder see
// the same bytes.
func (s *Server) authenticated(next callerHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
		if err != nil {
			writeDropError(w, http.StatusRequestEntityTooLarge, "body_too_large", "request body is too large")
			return
		}
		caller, err := s.auth.Authenticate(r, body)
		if err != nil {
			s.logger.Warn("request authentication failed",
				"event", "http_authentication_failed",
				"module", "internal/platform/httpserver",
				"layer", "platform",
				"path", r.URL.Path,
				"request_id", r.Header.Get(headerRequestID),
				"error", err.Error(),
			)
			writeDropError(w, http.StatusUnauthorized, "unauthenticated", err.Error())
			return
		}
		next(w, r, caller, body)
	}
}

// ownerOnly rejects non-owners before the body is decoded, so malformed
// authority requests from other callers still get 403.
func (s *Server) ownerOnly(next callerHandler) callerHandler {
	return func(w http.ResponseWriter, r *http.Request, caller common.Address, body []byte) {
		if err := s.drop.Handler.AuthorizeOwner(r.Context(), caller); err != nil {
			writeDropDomainError(w, err)
			return
		}
		next(w, r, caller, body)
	}
}

func (s *Server) handleGetDrop(w http.ResponseWriter, r *http.Request) {
	resp, err := s.drop.Handler.GetDropHandler(r.Context())
	if err != nil {
		writeDropDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGetRecipient(w http.ResponseWriter, r *http.Request) {
	resp, err := s.drop.Handler.GetRecipientHandler(r.Context(), r.PathValue("address"))
	if err != nil {
		writeDropDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGetBalance(w http.ResponseWriter, r *http.Request) {
	resp, err := s.drop.Handler.GetBalanceHandler(r.Context(), r.PathValue("address"))
	if err != nil {
		writeDropDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleSetRoot(w http.ResponseWriter, r *http.Request, caller common.Address, body []byte) {
	var req claimhttp.SetRootRequest
	if err := decodeJSON(body, &req); err != nil {
		writeDropError(w, http.StatusBadRequest, "invalid_json", err.Error())
		return
	}
	resp, err := s.drop.Handler.SetRootHandler(r.Context(), caller, req)
	if err != nil {
		writeDropDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleSetToken(w http.ResponseWriter, r *http.Request, caller common.Address, body []byte) {
	var req claimhttp.SetTokenRequest
	if err := decodeJSON(body, &req); err != nil {
		writeDropError(w, http.StatusBadRequest, "invalid_json", err.Error())
		return
	}
	resp, err := s.drop.Handler.SetTokenHandler(r.Context(), caller, req)
	if err != nil {
		writeDropDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleSetEntitlement(w http.ResponseWriter, r *http.Request, caller common.Address, body []byte) {
	var req claimhttp.SetEntitlementRequest
	if err := decodeJSON(body, &req); err != nil {
		writeDropError(w, http.StatusBadRequest, "invalid_json", err.Error())
		return
	}
	resp, err := s.drop.Handler.SetEntitlementHandler(r.Context(), caller, req)
	if err != nil {
		writeDropDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleClaim(w http.ResponseWriter, r *http.Request, caller common.Address, body []byte) {
	if !s.claims.Allow(caller) {
		s.metrics.ObserveClaim("rate_limited")
		writeDropError(w, http.StatusTooManyRequests, "rate_limited", "too many claim attempts")
		return
	}
	var req claimhttp.ClaimRequest
	if err := decodeJSON(body, &req); err != nil {
		writeDropError(w, http.StatusBadRequest, "invalid_json", err.Error())
		return
	}
	resp, err := s.drop.Handler.ClaimHandler(r.Context(), caller, req)
	s.metrics.ObserveClaim(claimOutcome(err))
	if err != nil {
		writeDropDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func claimOutcome(err error) string {
	switch {
	case err == nil:
		return "paid"
	case errors.Is(err, claimerrors.ErrNotParticipant):
		return "not_participant"
	case errors.Is(err, claimerrors.ErrClaimed):
		return "claimed"
	case errors.Is(err, claimerrors.ErrInvalidProof):
		return "invalid_proof"
	case errors.Is(err, claimerrors.ErrTransferFailed):
		return "transfer_failed"
	default:
		return "rejected"
	}
}

// writeDropDomainError checks ErrTransferFailed first because a missing token
// surfaces as a transfer failure wrapping ErrTokenNotSet.
func writeDropDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, claimerrors.ErrTransferFailed):
		writeDropError(w, http.StatusBadGateway, "transfer_failed", err.Error())
	case errors.Is(err, claimerrors.ErrUnauthorized):
		writeDropError(w, http.StatusForbidden, "unauthorized", err.Error())
	case errors.Is(err, claimerrors.ErrNotParticipant):
		writeDropError(w, http.StatusNotFound, "not_participant", err.Error())
	case errors.Is(err, claimerrors.ErrClaimed):
		writeDropError(w, http.StatusConflict, "already_claimed", err.Error())
	case errors.Is(err, claimerrors.ErrInvalidProof):
		writeDropError(w, http.StatusUnprocessableEntity, "invalid_proof", err.Error())
	case errors.Is(err, claimerrors.ErrInvalidInput):
		writeDropError(w, http.StatusBadRequest, "invalid_request", err.Error())
	case errors.Is(err, claimerrors.ErrTokenNotSet):
		writeDropError(w, http.StatusConflict, "token_not_set", err.Error())
	case errors.Is(err, claimerrors.ErrBalanceUnavailable):
		writeDropError(w, http.StatusNotImplemented, "balance_unavailable", err.Error())
	case errors.Is(err, claimerrors.ErrDropNotInitialized):
		writeDropError(w, http.StatusServiceUnavailable, "drop_not_initialized", err.Error())
	default:
		writeDropError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}

func decodeJSON(body []byte, out any) error {
	decoder := json.NewDecoder(bytes.NewReader(body))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(out); err != nil {
		return fmt.Errorf("request body must be valid JSON: %w", err)
	}
	return nil
}

func writeDropError(w http.ResponseWriter, status int, code string, message string) {
	writeJSON(w, status, claimhttp.ErrorResponse{
		Code:    code,
		Message: message,
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}
