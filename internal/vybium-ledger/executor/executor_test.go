package executor

import (
	"bytes"
	"context"
	"crypto/rand"
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/vybium/vybium-crypto/pkg/vybium-crypto/field"

	"github.com/vybium/vybium-ledger/internal/vybium-ledger/account"
	"github.com/vybium/vybium-ledger/internal/vybium-ledger/authorize"
	"github.com/vybium/vybium-ledger/internal/vybium-ledger/codec"
	"github.com/vybium/vybium-ledger/internal/vybium-ledger/core"
	"github.com/vybium/vybium-ledger/internal/vybium-ledger/errs"
	"github.com/vybium/vybium-ledger/internal/vybium-ledger/ledger"
	"github.com/vybium/vybium-ledger/internal/vybium-ledger/metrics"
	"github.com/vybium/vybium-ledger/internal/vybium-ledger/process"
	"github.com/vybium/vybium-ledger/internal/vybium-ledger/utils"
)

func testRequest(t *testing.T) *ExecuteRequest {
	t.Helper()
	sender, err := account.NewPrivateKey(bytes.NewReader(bytes.Repeat([]byte{1}, account.SeedSize)))
	if err != nil {
		t.Fatalf("NewPrivateKey: %v", err)
	}
	recipient, err := account.NewPrivateKey(bytes.NewReader(bytes.Repeat([]byte{2}, account.SeedSize)))
	if err != nil {
		t.Fatalf("NewPrivateKey: %v", err)
	}
	resp, err := authorize.NewAuthorizer(nil).TransferPublic(&authorize.AuthorizeRequest{
		PrivateKey:  sender,
		Recipient:   recipient.Address(),
		Amount:      100,
		PriorityFee: 10,
	}, rand.Reader)
	if err != nil {
		t.Fatalf("TransferPublic: %v", err)
	}
	root := core.HashElements("root", field.New(1))
	return &ExecuteRequest{
		FunctionAuthorization: resp.FunctionAuthorization,
		FeeAuthorization:      resp.FeeAuthorization,
		StateRoot:             &root,
	}
}

func TestExecuteRequestWire(t *testing.T) {
	req := testRequest(t)
	tree, err := ledger.NewStateTree([]core.Digest{core.HashElements("a"), core.HashElements("b")})
	if err != nil {
		t.Fatalf("NewStateTree: %v", err)
	}
	path, _ := tree.Path(core.HashElements("b"))

	for _, withPath := range []bool{false, true} {
		if withPath {
			req.StatePath = path
		}
		data, err := codec.Marshal(req)
		if err != nil {
			t.Fatalf("Marshal: %v", err)
		}
		got, err := UnmarshalExecuteRequest(data)
		if err != nil {
			t.Fatalf("UnmarshalExecuteRequest: %v", err)
		}
		if !got.FunctionAuthorization.Equal(req.FunctionAuthorization) || !got.FeeAuthorization.Equal(req.FeeAuthorization) {
			t.Fatalf("authorizations changed in transit")
		}
		if got.StateRoot == nil || !got.StateRoot.Equal(*req.StateRoot) {
			t.Fatalf("state root changed in transit")
		}
		if (got.StatePath != nil) != withPath {
			t.Fatalf("state path presence = %v, want %v", got.StatePath != nil, withPath)
		}
		if withPath && !got.StatePath.Verify() {
			t.Fatalf("decoded state path does not verify")
		}

		if _, err := UnmarshalExecuteRequest(data[:len(data)-1]); !errors.Is(err, errs.ErrSerialization) {
			t.Fatalf("expected SerializationError for truncated buffer, got %v", err)
		}
		if _, err := UnmarshalExecuteRequest(append(data, 0)); !errors.Is(err, errs.ErrSerialization) {
			t.Fatalf("expected SerializationError for trailing byte, got %v", err)
		}
	}

	if _, err := codec.Marshal(&ExecuteRequest{}); !errors.Is(err, errs.ErrSerialization) {
		t.Fatalf("expected SerializationError for empty request, got %v", err)
	}
}

func TestPoolExecutes(t *testing.T) {
	m := metrics.New()
	pool, err := NewPool(1, 4, WithMetrics(m), WithProcessOptions(process.WithHashFunction(utils.HashSHA3)))
	if err != nil {
		t.Fatalf("NewPool: %v", err)
	}
	defer pool.Close()

	for i := 0; i < 2; i++ {
		tx, err := pool.Execute(context.Background(), testRequest(t))
		if err != nil {
			t.Fatalf("Execute: %v", err)
		}
		if tx.Fee == nil || len(tx.Execution.Transitions) != 1 {
			t.Fatalf("unexpected transaction shape")
		}
	}
	if got := pool.ProcessesBuilt(); got != 1 {
		t.Fatalf("one worker built %d processes", got)
	}

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	if !strings.Contains(string(body), `vybium_ledger_proofs_total{outcome="ok"} 2`) {
		t.Fatalf("proof outcomes were not recorded")
	}
}

func TestPoolReportsProverErrors(t *testing.T) {
	pool, err := NewPool(2, 0)
	if err != nil {
		t.Fatalf("NewPool: %v", err)
	}
	defer pool.Close()

	req := testRequest(t)
	req.StateRoot = nil
	if _, err := pool.Execute(context.Background(), req); !errors.Is(err, errs.ErrUnresolvedState) {
		t.Fatalf("expected UnresolvedState, got %v", err)
	}
}

func TestPoolConcurrentCallers(t *testing.T) {
	pool, err := NewPool(2, 8)
	if err != nil {
		t.Fatalf("NewPool: %v", err)
	}
	defer pool.Close()

	reqs := make([]*ExecuteRequest, 4)
	for i := range reqs {
		reqs[i] = testRequest(t)
	}
	var wg sync.WaitGroup
	errCh := make(chan error, len(reqs))
	for _, req := range reqs {
		wg.Add(1)
		go func(req *ExecuteRequest) {
			defer wg.Done()
			_, err := pool.Execute(context.Background(), req)
			errCh <- err
		}(req)
	}
	wg.Wait()
	close(errCh)
	for err := range errCh {
		if err != nil {
			t.Fatalf("Execute: %v", err)
		}
	}
	if got := pool.ProcessesBuilt(); got < 1 || got > 2 {
		t.Fatalf("built %d processes for 2 workers", got)
	}
}

func TestPoolAbandonAndClose(t *testing.T) {
	pool, err := NewPool(1, 1)
	if err != nil {
		t.Fatalf("NewPool: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := pool.Execute(ctx, testRequest(t)); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}

	pool.Close()
	pool.Close()
	if _, err := pool.Execute(context.Background(), testRequest(t)); !errors.Is(err, ErrPoolClosed) {
		t.Fatalf("expected ErrPoolClosed, got %v", err)
	}
}

func TestNewPoolValidates(t *testing.T) {
	if _, err := NewPool(0, 1); err == nil {
		t.Fatal("expected error for zero workers")
	}
	if _, err := NewPool(1, -1); err == nil {
		t.Fatal("expected error for negative queue depth")
	}
}
