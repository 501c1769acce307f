// Package client drives a transfer through the services:
//
//	keygen (optional) -> authorize -> state root -> execute -> broadcast
//
// Each stage is one round trip. The first failure ends the transfer and is
// returned wrapped in a StageError; nothing is retried.
package client

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/vybium/vybium-ledger/internal/vybium-ledger/account"
	"github.com/vybium/vybium-ledger/internal/vybium-ledger/authorize"
	"github.com/vybium/vybium-ledger/internal/vybium-ledger/codec"
	"github.com/vybium/vybium-ledger/internal/vybium-ledger/core"
	"github.com/vybium/vybium-ledger/internal/vybium-ledger/errs"
	"github.com/vybium/vybium-ledger/internal/vybium-ledger/executor"
	"github.com/vybium/vybium-ledger/internal/vybium-ledger/ledger"
	"github.com/vybium/vybium-ledger/internal/vybium-ledger/query"
	"github.com/vybium/vybium-ledger/internal/vybium-ledger/utils"
)

const (
	maxResponseBytes  = 4 << 20
	contentTypeBinary = "application/octet-stream"
)

// Stage names one step of a transfer.
type Stage int

const (
	StageKeygen Stage = iota
	StageAuthorize
	StageStateRoot
	StageExecute
	StageBroadcast
)

func (s Stage) String() string {
	switch s {
	case StageKeygen:
		return "keygen"
	case StageAuthorize:
		return "authorize"
	case StageStateRoot:
		return "state root"
	case StageExecute:
		return "execute"
	case StageBroadcast:
		return "broadcast"
	default:
		return fmt.Sprintf("stage(%d)", int(s))
	}
}

// StageError reports the stage a transfer stopped at.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return e.Stage.String() + ": " + e.Err.Error()
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// Orchestrator talks to the authorize service, the execute service and a
// node.
type Orchestrator struct {
	authorizeURL string
	executeURL   string
	nodeURL      string
	network      string
	http         *http.Client
	node         *query.RESTQuery
	logger       *slog.Logger
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithHTTPClient sets the client used for every round trip.
func WithHTTPClient(c *http.Client) Option {
	return func(o *Orchestrator) {
		if c != nil {
			o.http = c
		}
	}
}

// WithLogger logs each completed stage to l.
func WithLogger(l *slog.Logger) Option {
	return func(o *Orchestrator) {
		if l != nil {
			o.logger = l
		}
	}
}

// New returns an orchestrator for the endpoints in cfg.
func New(cfg *utils.Config, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		authorizeURL: trimBase(cfg.AuthorizeURL),
		executeURL:   trimBase(cfg.ExecuteURL),
		nodeURL:      trimBase(cfg.NodeURL),
		network:      cfg.Network,
		http:         &http.Client{Timeout: 2 * time.Minute},
		logger:       slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(o)
	}
	o.node = query.NewRESTQuery(o.nodeURL, o.network, o.http)
	return o
}

// Transfer describes one public transfer. When Key is nil the key is fetched
// from the keygen endpoint for Seed.
type Transfer struct {
	Key         *account.PrivateKey
	Seed        string
	Recipient   account.Address
	Amount      uint64
	PriorityFee uint64
}

// Result is what a completed transfer produced.
type Result struct {
	Signer      account.Address
	StateRoot   core.Digest
	Transaction *ledger.Transaction
	// Body is the node's reply to the broadcast.
	Body string
}

// Transfer runs every stage in order.
func (o *Orchestrator) Transfer(ctx context.Context, t Transfer) (*Result, error) {
	key := t.Key
	if key == nil {
		var err error
		if key, err = o.Keygen(ctx, t.Seed); err != nil {
			return nil, &StageError{Stage: StageKeygen, Err: err}
		}
	}

	auth, err := o.Authorize(ctx, &authorize.AuthorizeRequest{
		PrivateKey:  key,
		Recipient:   t.Recipient,
		Amount:      t.Amount,
		PriorityFee: t.PriorityFee,
	})
	if err != nil {
		return nil, &StageError{Stage: StageAuthorize, Err: err}
	}
	o.logger.Info("authorized", "execution_id", auth.FunctionAuthorization.ExecutionID().String())

	root, err := o.StateRoot(ctx)
	if err != nil {
		return nil, &StageError{Stage: StageStateRoot, Err: err}
	}
	o.logger.Info("state root", "root", root.String())

	tx, err := o.Execute(ctx, &executor.ExecuteRequest{
		FunctionAuthorization: auth.FunctionAuthorization,
		FeeAuthorization:      auth.FeeAuthorization,
		StateRoot:             &root,
	})
	if err != nil {
		return nil, &StageError{Stage: StageExecute, Err: err}
	}
	o.logger.Info("executed", "transaction_id", tx.ID.String())

	body, err := o.Broadcast(ctx, tx)
	if err != nil {
		return nil, &StageError{Stage: StageBroadcast, Err: err}
	}
	return &Result{
		Signer:      key.Address(),
		StateRoot:   root,
		Transaction: tx,
		Body:        body,
	}, nil
}

// Keygen asks the authorize service for the key derived from seed.
func (o *Orchestrator) Keygen(ctx context.Context, seed string) (*account.PrivateKey, error) {
	if strings.TrimSpace(seed) == "" {
		return nil, errs.New(errs.ParseError, "keygen needs a seed")
	}
	raw, err := o.roundTrip(ctx, http.MethodGet, o.authorizeURL+"/keygen/"+url.PathEscape(seed), nil, "")
	if err != nil {
		return nil, err
	}
	if len(raw) != account.SeedSize {
		return nil, errs.Newf(errs.SerializationError, "keygen returned %d bytes", len(raw))
	}
	var s [account.SeedSize]byte
	copy(s[:], raw)
	return account.PrivateKeyFromSeedBytes(s)
}

// Authorize sends req to the authorize service.
func (o *Orchestrator) Authorize(ctx context.Context, req *authorize.AuthorizeRequest) (*authorize.AuthorizeResponse, error) {
	body, err := codec.Marshal(req)
	if err != nil {
		return nil, err
	}
	raw, err := o.roundTrip(ctx, http.MethodPost, o.authorizeURL+"/authorize", body, contentTypeBinary)
	if err != nil {
		return nil, err
	}
	resp, err := codec.Unmarshal(raw, authorize.DecodeAuthorizeResponse)
	if err != nil {
		return nil, err
	}
	if !resp.Bound() {
		return nil, errs.New(errs.MissingBinding, "authorize service returned an unbound fee")
	}
	return resp, nil
}

// StateRoot fetches the node's latest state root.
func (o *Orchestrator) StateRoot(ctx context.Context) (core.Digest, error) {
	return o.node.CurrentStateRootContext(ctx)
}

// Execute sends req to the execute service.
func (o *Orchestrator) Execute(ctx context.Context, req *executor.ExecuteRequest) (*ledger.Transaction, error) {
	body, err := codec.Marshal(req)
	if err != nil {
		return nil, err
	}
	raw, err := o.roundTrip(ctx, http.MethodPost, o.executeURL+"/execute", body, contentTypeBinary)
	if err != nil {
		return nil, err
	}
	return ledger.UnmarshalTransaction(raw)
}

// Broadcast posts tx as JSON to the node and returns the node's reply.
func (o *Orchestrator) Broadcast(ctx context.Context, tx *ledger.Transaction) (string, error) {
	body, err := tx.MarshalJSON()
	if err != nil {
		return "", err
	}
	target := o.nodeURL + "/" + o.network + "/transaction/broadcast"
	raw, err := o.roundTrip(ctx, http.MethodPost, target, body, "application/json")
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

func (o *Orchestrator) roundTrip(ctx context.Context, method, target string, body []byte, contentType string) (_ []byte, retErr error) {
	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, rd)
	if err != nil {
		return nil, errs.Wrap(errs.TransportError, "build request", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	resp, err := o.http.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, errs.Wrap(errs.TransportError, method+" "+target, err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil && retErr == nil {
			retErr = errs.Wrap(errs.TransportError, "close response", closeErr)
		}
	}()
	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, errs.Wrap(errs.TransportError, "read "+target, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{Method: method, URL: target, Code: resp.StatusCode}
	}
	return raw, nil
}

// StatusError is a non-2xx reply from a service.
type StatusError struct {
	Method string
	URL    string
	Code   int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: status %d", e.Method, e.URL, e.Code)
}

// Is makes a StatusError match errs.ErrTransport.
func (e *StatusError) Is(target error) bool {
	return errors.Is(errs.ErrTransport, target)
}

func trimBase(s string) string {
	return strings.TrimRight(strings.TrimSpace(s), "/")
}
