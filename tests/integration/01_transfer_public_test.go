package integration_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/vybium/vybium-ledger/internal/vybium-ledger/account"
	"github.com/vybium/vybium-ledger/internal/vybium-ledger/authorize"
	"github.com/vybium/vybium-ledger/internal/vybium-ledger/client"
	"github.com/vybium/vybium-ledger/internal/vybium-ledger/codec"
	"github.com/vybium/vybium-ledger/internal/vybium-ledger/core"
	"github.com/vybium/vybium-ledger/internal/vybium-ledger/executor"
	"github.com/vybium/vybium-ledger/internal/vybium-ledger/ledger"
	"github.com/vybium/vybium-ledger/internal/vybium-ledger/process"
	"github.com/vybium/vybium-ledger/internal/vybium-ledger/service"
	"github.com/vybium/vybium-ledger/internal/vybium-ledger/utils"
)

// Test01_TransferPublicEndToEnd runs the whole public transfer flow over
// HTTP:
// 1. Authorize 100 microcredits with a priority fee of 10 from K1 to A2
// 2. Fetch the state root from the node
// 3. Execute against that root
// 4. Resubmit the same authorization pair, which must succeed again
// 5. Broadcast
func Test01_TransferPublicEndToEnd(t *testing.T) {
	t.Log("=== Test 01: transfer_public, authorize -> execute -> broadcast ===")

	cfg := utils.DefaultConfig().WithNetwork("devnet")

	authSrv, err := service.NewAuthorizeServer(cfg)
	if err != nil {
		t.Fatalf("NewAuthorizeServer: %v", err)
	}
	authHTTP := httptest.NewServer(authSrv.Handler())
	defer authHTTP.Close()

	pool, err := executor.NewPool(2, 4, executor.WithProcessOptions(process.WithHashFunction(cfg.HashFunction)))
	if err != nil {
		t.Fatalf("NewPool: %v", err)
	}
	defer pool.Close()
	execSrv, err := service.NewExecuteServer(cfg, pool)
	if err != nil {
		t.Fatalf("NewExecuteServer: %v", err)
	}
	execHTTP := httptest.NewServer(execSrv.Handler())
	defer execHTTP.Close()

	tree, err := ledger.NewStateTree([]core.Digest{core.HashElements("genesis")})
	if err != nil {
		t.Fatalf("NewStateTree: %v", err)
	}
	root := tree.Root()
	var broadcasts [][]byte
	mux := http.NewServeMux()
	mux.HandleFunc("GET /devnet/stateRoot/latest", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(root.String())
	})
	mux.HandleFunc("POST /devnet/transaction/broadcast", func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		broadcasts = append(broadcasts, body)
		_, _ = io.WriteString(w, `{"status":"accepted"}`)
	})
	node := httptest.NewServer(mux)
	defer node.Close()

	cfg.AuthorizeURL = authHTTP.URL
	cfg.ExecuteURL = execHTTP.URL
	cfg.NodeURL = node.URL
	orch := client.New(cfg)
	ctx := context.Background()

	// Step 1: authorize
	t.Log("Step 1: Authorizing transfer...")
	k1, err := orch.Keygen(ctx, "integration k1")
	if err != nil {
		t.Fatalf("Keygen: %v", err)
	}
	k2, err := account.NewPrivateKey(bytes.NewReader(bytes.Repeat([]byte{2}, account.SeedSize)))
	if err != nil {
		t.Fatalf("NewPrivateKey: %v", err)
	}
	auth, err := orch.Authorize(ctx, &authorize.AuthorizeRequest{
		PrivateKey:  k1,
		Recipient:   k2.Address(),
		Amount:      100,
		PriorityFee: 10,
	})
	if err != nil {
		t.Fatalf("Authorize: %v", err)
	}
	if auth.FunctionAuthorization.Len() != 1 || auth.FeeAuthorization.Len() != 1 {
		t.Fatalf("expected one transition each, got %d and %d",
			auth.FunctionAuthorization.Len(), auth.FeeAuthorization.Len())
	}
	t.Logf("✓ execution id %s", auth.FunctionAuthorization.ExecutionID())

	// Step 2: state root
	t.Log("Step 2: Fetching state root...")
	got, err := orch.StateRoot(ctx)
	if err != nil {
		t.Fatalf("StateRoot: %v", err)
	}
	if !got.Equal(root) {
		t.Fatalf("state root = %s, want %s", got, root)
	}

	// Step 3: execute
	t.Log("Step 3: Executing...")
	req := &executor.ExecuteRequest{
		FunctionAuthorization: auth.FunctionAuthorization,
		FeeAuthorization:      auth.FeeAuthorization,
		StateRoot:             &got,
	}
	tx, err := orch.Execute(ctx, req)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if len(tx.Execution.Transitions) != 1 {
		t.Fatalf("execution has %d transitions, want 1", len(tx.Execution.Transitions))
	}
	if tx.Fee == nil {
		t.Fatal("transaction has no fee")
	}
	fee, err := tx.Fee.Amount()
	if err != nil {
		t.Fatalf("Fee.Amount: %v", err)
	}
	if fee != 51070 {
		t.Fatalf("fee = %d, want 51070", fee)
	}
	verifier, err := process.LoadProcess()
	if err != nil {
		t.Fatalf("LoadProcess: %v", err)
	}
	if err := verifier.VerifyTransaction(tx); err != nil {
		t.Fatalf("VerifyTransaction: %v", err)
	}
	t.Logf("✓ transaction %s verified", tx.ID)

	// Step 4: resubmit
	t.Log("Step 4: Resubmitting the same pair...")
	body, err := codec.Marshal(req)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	resp, err := http.Post(execHTTP.URL+"/execute", "application/octet-stream", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("POST /execute: %v", err)
	}
	raw, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("resubmission status %d", resp.StatusCode)
	}
	again, err := ledger.UnmarshalTransaction(raw)
	if err != nil {
		t.Fatalf("UnmarshalTransaction: %v", err)
	}
	if err := verifier.VerifyTransaction(again); err != nil {
		t.Fatalf("VerifyTransaction (resubmitted): %v", err)
	}

	// Step 5: broadcast
	t.Log("Step 5: Broadcasting...")
	reply, err := orch.Broadcast(ctx, tx)
	if err != nil {
		t.Fatalf("Broadcast: %v", err)
	}
	if len(broadcasts) != 1 || !json.Valid(broadcasts[0]) {
		t.Fatalf("node received %d broadcasts", len(broadcasts))
	}
	t.Logf("✓ node replied %s", reply)
}
