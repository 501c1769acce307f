package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vybium/vybium-crypto/pkg/vybium-crypto/field"

	"github.com/vybium/vybium-ledger/internal/vybium-ledger/account"
	"github.com/vybium/vybium-ledger/internal/vybium-ledger/core"
	"github.com/vybium/vybium-ledger/internal/vybium-ledger/errs"
	"github.com/vybium/vybium-ledger/internal/vybium-ledger/executor"
	"github.com/vybium/vybium-ledger/internal/vybium-ledger/process"
	"github.com/vybium/vybium-ledger/internal/vybium-ledger/service"
	"github.com/vybium/vybium-ledger/internal/vybium-ledger/utils"
)

// fakeNode serves a fixed state root and records broadcasts.
type fakeNode struct {
	root core.Digest

	mu        sync.Mutex
	broadcast [][]byte
}

func (n *fakeNode) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /testnet/stateRoot/latest", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(n.root.String()))
	})
	mux.HandleFunc("POST /testnet/transaction/broadcast", func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		if !json.Valid(body) {
			http.Error(w, "bad json", http.StatusBadRequest)
			return
		}
		n.mu.Lock()
		n.broadcast = append(n.broadcast, body)
		n.mu.Unlock()
		_, _ = io.WriteString(w, `"accepted"`)
	})
	return mux
}

type stack struct {
	cfg  *utils.Config
	node *fakeNode
}

func newStack(t *testing.T) *stack {
	t.Helper()
	cfg := utils.DefaultConfig().WithRateLimit(0, 0)

	authSrv, err := service.NewAuthorizeServer(cfg)
	require.NoError(t, err)
	authHTTP := httptest.NewServer(authSrv.Handler())
	t.Cleanup(authHTTP.Close)

	pool, err := executor.NewPool(1, 4)
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	execSrv, err := service.NewExecuteServer(cfg, pool)
	require.NoError(t, err)
	execHTTP := httptest.NewServer(execSrv.Handler())
	t.Cleanup(execHTTP.Close)

	node := &fakeNode{root: core.HashElements("root", field.New(42))}
	nodeHTTP := httptest.NewServer(node.handler(t))
	t.Cleanup(nodeHTTP.Close)

	cfg.AuthorizeURL = authHTTP.URL
	cfg.ExecuteURL = execHTTP.URL + "/"
	cfg.NodeURL = nodeHTTP.URL
	return &stack{cfg: cfg, node: node}
}

func recipient(t *testing.T) account.Address {
	t.Helper()
	k, err := account.NewPrivateKey(bytes.NewReader(bytes.Repeat([]byte{9}, account.SeedSize)))
	require.NoError(t, err)
	return k.Address()
}

func TestTransferWithKeygen(t *testing.T) {
	st := newStack(t)
	o := New(st.cfg)

	res, err := o.Transfer(context.Background(), Transfer{
		Seed:        "orchestrator test seed",
		Recipient:   recipient(t),
		Amount:      100,
		PriorityFee: 10,
	})
	require.NoError(t, err)

	want, err := account.PrivateKeyFromSeed("orchestrator test seed")
	require.NoError(t, err)
	assert.Equal(t, want.Address(), res.Signer)
	assert.True(t, res.StateRoot.Equal(st.node.root))
	assert.Equal(t, `"accepted"`, res.Body)

	proc, err := process.LoadProcess()
	require.NoError(t, err)
	require.NoError(t, proc.VerifyTransaction(res.Transaction))
	fee, err := res.Transaction.Fee.Amount()
	require.NoError(t, err)
	assert.Equal(t, uint64(51070), fee)

	require.Len(t, st.node.broadcast, 1)
	var decoded map[string]any
	require.NoError(t, json.Unmarshal(st.node.broadcast[0], &decoded))
	assert.Equal(t, res.Transaction.ID.String(), decoded["id"])
}

func TestKeygenEscapesSeed(t *testing.T) {
	st := newStack(t)
	o := New(st.cfg)

	for _, seed := range []string{"plain", "with space", "slash/and%percent"} {
		got, err := o.Keygen(context.Background(), seed)
		require.NoError(t, err, seed)
		want, err := account.PrivateKeyFromSeed(seed)
		require.NoError(t, err)
		assert.True(t, got.Equal(want), seed)
	}

	_, err := o.Keygen(context.Background(), "  ")
	assert.True(t, errors.Is(err, errs.ErrParse))
}

func TestTransferStopsAtFailingStage(t *testing.T) {
	st := newStack(t)
	key, err := account.PrivateKeyFromSeed("stage test")
	require.NoError(t, err)

	t.Run("state root", func(t *testing.T) {
		cfg := st.cfg.Clone().WithNetwork("mainnet")
		_, err := New(cfg).Transfer(context.Background(), Transfer{Key: key, Recipient: recipient(t), Amount: 1})
		var se *StageError
		require.ErrorAs(t, err, &se)
		assert.Equal(t, StageStateRoot, se.Stage)
		assert.Empty(t, st.node.broadcast)
	})

	t.Run("authorize", func(t *testing.T) {
		cfg := st.cfg.Clone()
		cfg.AuthorizeURL = cfg.ExecuteURL
		_, err := New(cfg).Transfer(context.Background(), Transfer{Key: key, Recipient: recipient(t), Amount: 1})
		var se *StageError
		require.ErrorAs(t, err, &se)
		assert.Equal(t, StageAuthorize, se.Stage)
		assert.True(t, errors.Is(err, errs.ErrTransport))
		var status *StatusError
		require.ErrorAs(t, err, &status)
		assert.Equal(t, http.StatusNotFound, status.Code)
	})

	t.Run("cancelled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := New(st.cfg).Transfer(ctx, Transfer{Key: key, Recipient: recipient(t), Amount: 1})
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestStageString(t *testing.T) {
	assert.Equal(t, "execute", StageExecute.String())
	assert.Equal(t, "stage(9)", Stage(9).String())
	err := &StageError{Stage: StageBroadcast, Err: errs.New(errs.TransportError, "down")}
	assert.Contains(t, err.Error(), "broadcast: ")
	assert.True(t, errors.Is(err, errs.ErrTransport))
}
