package query

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/vybium/vybium-crypto/pkg/vybium-crypto/field"

	"github.com/vybium/vybium-ledger/internal/vybium-ledger/core"
	"github.com/vybium/vybium-ledger/internal/vybium-ledger/errs"
	"github.com/vybium/vybium-ledger/internal/vybium-ledger/ledger"
)

func testTree(t *testing.T) (*ledger.StateTree, []core.Digest) {
	t.Helper()
	leaves := make([]core.Digest, 5)
	for i := range leaves {
		leaves[i] = core.HashElements("leaf", field.New(uint64(i)))
	}
	tree, err := ledger.NewStateTree(leaves)
	if err != nil {
		t.Fatalf("NewStateTree: %v", err)
	}
	return tree, leaves
}

func TestStaticQueryUnset(t *testing.T) {
	q := NewStaticQuery(nil, nil)
	if _, err := q.CurrentStateRoot(); !errors.Is(err, ErrStateRootUnset) {
		t.Fatalf("expected ErrStateRootUnset, got %v", err)
	}
	if _, err := q.CurrentStateRootContext(context.Background()); !errors.Is(err, errs.ErrUnresolvedState) {
		t.Fatalf("expected UnresolvedState, got %v", err)
	}
	if _, err := q.StatePathForCommitment(core.Digest{}); !errors.Is(err, ErrStatePathUnset) {
		t.Fatalf("expected ErrStatePathUnset, got %v", err)
	}
}

func TestStaticQueryReturnsSuppliedFacts(t *testing.T) {
	tree, leaves := testTree(t)
	path, err := tree.Path(leaves[3])
	if err != nil {
		t.Fatalf("Path: %v", err)
	}
	root := tree.Root()
	q := NewStaticQuery(&root, path)

	// Mutating the caller's copies must not reach the query.
	root = core.Digest{}
	path.Siblings[0].IsRight = !path.Siblings[0].IsRight

	got, err := q.CurrentStateRoot()
	if err != nil || !got.Equal(tree.Root()) {
		t.Fatalf("CurrentStateRoot = %s, %v", got, err)
	}
	p, err := q.StatePathForCommitmentContext(context.Background(), leaves[0])
	if err != nil {
		t.Fatalf("StatePathForCommitment: %v", err)
	}
	if !p.Commitment.Equal(leaves[3]) {
		t.Fatalf("static query did not return the supplied path verbatim")
	}
	if !p.Verify() {
		t.Fatalf("supplied path no longer verifies")
	}
}

func TestRESTQuery(t *testing.T) {
	tree, leaves := testTree(t)
	path, err := tree.Path(leaves[1])
	if err != nil {
		t.Fatalf("Path: %v", err)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/testnet/stateRoot/latest", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(tree.Root().String())
	})
	mux.HandleFunc("/testnet/statePath/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/testnet/statePath/"+leaves[1].String() {
			http.NotFound(w, r)
			return
		}
		_ = json.NewEncoder(w).Encode(NewStatePathJSON(path))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	q := NewRESTQuery(srv.URL+"/", "testnet", srv.Client())

	root, err := q.CurrentStateRoot()
	if err != nil {
		t.Fatalf("CurrentStateRoot: %v", err)
	}
	if !root.Equal(tree.Root()) {
		t.Fatalf("root = %s, want %s", root, tree.Root())
	}

	got, err := q.StatePathForCommitment(leaves[1])
	if err != nil {
		t.Fatalf("StatePathForCommitment: %v", err)
	}
	if !got.Verify() || !got.Commitment.Equal(leaves[1]) {
		t.Fatalf("fetched path does not verify")
	}

	if _, err := q.StatePathForCommitment(leaves[2]); !errors.Is(err, errs.ErrUnresolvedState) {
		t.Fatalf("expected UnresolvedState for unknown commitment, got %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := q.CurrentStateRootContext(ctx); !errors.Is(err, errs.ErrTransport) {
		t.Fatalf("expected TransportError for cancelled context, got %v", err)
	}
}
