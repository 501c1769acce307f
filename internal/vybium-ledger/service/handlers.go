package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"

	"github.com/vybium/vybium-ledger/internal/vybium-ledger/account"
	"github.com/vybium/vybium-ledger/internal/vybium-ledger/authorize"
	"github.com/vybium/vybium-ledger/internal/vybium-ledger/codec"
	"github.com/vybium/vybium-ledger/internal/vybium-ledger/errs"
	"github.com/vybium/vybium-ledger/internal/vybium-ledger/executor"
	"github.com/vybium/vybium-ledger/internal/vybium-ledger/program"
)

const contentTypeBinary = "application/octet-stream"

func (s *Server) handleKeygen(w http.ResponseWriter, r *http.Request) {
	seed := chi.URLParam(r, "seed")
	if r.URL.RawPath != "" {
		unescaped, err := url.PathUnescape(seed)
		if err != nil {
			s.fail(w, r, errs.Wrap(errs.ParseError, "keygen seed", err))
			return
		}
		seed = unescaped
	}
	key, err := account.PrivateKeyFromSeed(seed)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	raw := key.Seed()
	note(r, nil, "address", key.Address().String())
	writeBinary(w, raw[:])
}

func (s *Server) handleAuthorize(w http.ResponseWriter, r *http.Request) {
	body, err := s.readBody(w, r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	req, err := codec.Unmarshal(body, authorize.DecodeAuthorizeRequest)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	resp, err := s.authorizer.TransferPublic(req, s.rng)
	s.countAuthorization(program.FunctionTransferPublic, err)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	out, err := codec.Marshal(resp)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	note(r, nil,
		"authorization", out,
		"signer", req.PrivateKey.Address().String(),
		"execution_id", resp.FunctionAuthorization.ExecutionID().String(),
	)
	writeBinary(w, out)
}

func (s *Server) handleExecute(w http.ResponseWriter, r *http.Request) {
	body, err := s.readBody(w, r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	req, err := executor.UnmarshalExecuteRequest(body)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	note(r, nil,
		"authorization", body,
		"execution_id", req.FunctionAuthorization.ExecutionID().String(),
	)
	tx, err := s.pool.Execute(r.Context(), req)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	out, err := codec.Marshal(tx)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	note(r, nil, "transaction_id", tx.ID.String())
	writeBinary(w, out)
}

func (s *Server) readBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	if r.ContentLength > s.maxBody {
		return nil, &http.MaxBytesError{Limit: s.maxBody}
	}
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.maxBody))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	return body, nil
}

func (s *Server) countAuthorization(function program.Identifier, err error) {
	if s.metrics == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = errorCode(err)
	}
	s.metrics.Authorizations.WithLabelValues(string(function), outcome).Inc()
}

// fail records err for the request log and answers with an opaque status.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	note(r, err)
	reject(w, statusFor(err))
}

// statusFor maps an error to the status the caller sees.
func statusFor(err error) int {
	var tooLarge *http.MaxBytesError
	switch {
	case errors.As(err, &tooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, executor.ErrPoolClosed),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	}
	switch errs.CodeOf(err) {
	case errs.UnresolvedState, errs.ProofFailure:
		return http.StatusUnprocessableEntity
	case errs.Unknown:
		return http.StatusInternalServerError
	default:
		return http.StatusBadRequest
	}
}

func errorCode(err error) string {
	switch {
	case errors.Is(err, executor.ErrPoolClosed):
		return "pool_closed"
	case errors.Is(err, context.Canceled):
		return "canceled"
	case errors.Is(err, context.DeadlineExceeded):
		return "deadline_exceeded"
	}
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return "body_too_large"
	}
	return errs.CodeOf(err).String()
}

func reject(w http.ResponseWriter, status int) {
	http.Error(w, http.StatusText(status), status)
}

func writeBinary(w http.ResponseWriter, body []byte) {
	w.Header().Set("Content-Type", contentTypeBinary)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}
