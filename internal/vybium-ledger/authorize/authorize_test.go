package authorize

import (
	"bytes"
	"crypto/rand"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/vybium/vybium-crypto/pkg/vybium-crypto/field"

	"github.com/vybium/vybium-ledger/internal/vybium-ledger/account"
	"github.com/vybium/vybium-ledger/internal/vybium-ledger/codec"
	"github.com/vybium/vybium-ledger/internal/vybium-ledger/core"
	"github.com/vybium/vybium-ledger/internal/vybium-ledger/errs"
	"github.com/vybium/vybium-ledger/internal/vybium-ledger/program"
)

type countingReader struct {
	n int
}

func (c *countingReader) Read(p []byte) (int, error) {
	c.n += len(p)
	for i := range p {
		p[i] = byte(c.n * (i + 1))
	}
	return len(p), nil
}

func testKey(t testing.TB, b byte) *account.PrivateKey {
	t.Helper()
	k, err := account.NewPrivateKey(bytes.NewReader(bytes.Repeat([]byte{b}, account.SeedSize)))
	if err != nil {
		t.Fatalf("NewPrivateKey: %v", err)
	}
	return k
}

func TestTransferPublicBindsFee(t *testing.T) {
	sender := testKey(t, 1)
	recipient := testKey(t, 2).Address()

	resp, err := NewAuthorizer(nil).TransferPublic(&AuthorizeRequest{
		PrivateKey:  sender,
		Recipient:   recipient,
		Amount:      100,
		PriorityFee: 10,
	}, rand.Reader)
	if err != nil {
		t.Fatalf("TransferPublic: %v", err)
	}
	if !resp.Bound() {
		t.Fatalf("fee authorization is not bound to the function authorization")
	}
	if resp.FunctionAuthorization.Len() != 1 || resp.FeeAuthorization.Len() != 1 {
		t.Fatalf("unexpected transition counts %d/%d", resp.FunctionAuthorization.Len(), resp.FeeAuthorization.Len())
	}
	total, err := resp.FeeAmount()
	if err != nil {
		t.Fatalf("FeeAmount: %v", err)
	}
	if total != 51060+10 {
		t.Fatalf("fee = %d, want %d", total, 51060+10)
	}

	tr, err := resp.FunctionAuthorization.Peek()
	if err != nil {
		t.Fatalf("Peek: %v", err)
	}
	if err := tr.Request().Verify(); err != nil {
		t.Fatalf("Verify: %v", err)
	}
	future, err := tr.Response().Outputs[0].Future()
	if err != nil {
		t.Fatalf("output is not a future: %v", err)
	}
	caller, _ := future.Arguments[0].Plaintext.Address()
	if caller != sender.Address() {
		t.Fatalf("future caller = %s, want %s", caller, sender.Address())
	}
}

func TestTransferPrivateToPublicReturnsChange(t *testing.T) {
	owner := testKey(t, 3)
	recipient := testKey(t, 4).Address()
	record := program.NewCreditsRecord(owner.Address(), 1000)
	record.Nonce = core.Digest{field.New(9)}

	resp, err := NewAuthorizer(nil).TransferPrivateToPublic(owner, record, recipient, 400, 0, rand.Reader)
	if err != nil {
		t.Fatalf("TransferPrivateToPublic: %v", err)
	}
	tr, _ := resp.FunctionAuthorization.Peek()
	change, err := tr.Response().Outputs[0].Record()
	if err != nil {
		t.Fatalf("first output is not a record: %v", err)
	}
	balance, err := change.Microcredits()
	if err != nil || balance != 600 {
		t.Fatalf("change = %d (%v), want 600", balance, err)
	}
	if change.Nonce.IsZero() {
		t.Fatalf("change record nonce was not derived")
	}
	if regs := tr.OutputRegisters(); regs[0] != 4 || regs[1] != 5 {
		t.Fatalf("output registers = %v", regs)
	}
	total, err := resp.FeeAmount()
	if err != nil || total != 300000 {
		t.Fatalf("fee = %d (%v), want 300000", total, err)
	}
}

func TestTransferPrivateToPublicRejectsOverspend(t *testing.T) {
	owner := testKey(t, 3)
	record := program.NewCreditsRecord(owner.Address(), 10)
	rng := &countingReader{}
	_, err := NewAuthorizer(nil).TransferPrivateToPublic(owner, record, owner.Address(), 11, 0, rng)
	if !errors.Is(err, errs.ErrParse) {
		t.Fatalf("expected ParseError, got %v", err)
	}
	if rng.n != 0 {
		t.Fatalf("rng read %d bytes for a rejected transfer", rng.n)
	}
}

func TestAuthorizeChecksBeforeRandomness(t *testing.T) {
	key := testKey(t, 5)
	fn, _ := program.Credits().Function(program.FunctionTransferPublic)

	t.Run("input arity", func(t *testing.T) {
		rng := &countingReader{}
		_, _, err := Authorize(key, Call{
			Program:    program.CreditsID,
			Function:   program.FunctionTransferPublic,
			Inputs:     []program.Value{program.PlaintextValue(program.U64Literal(1))},
			InputTypes: fn.Inputs,
		}, rng)
		if !errors.Is(err, errs.ErrArityMismatch) {
			t.Fatalf("expected ArityMismatch, got %v", err)
		}
		if rng.n != 0 {
			t.Fatalf("rng read %d bytes", rng.n)
		}
	})

	t.Run("output type", func(t *testing.T) {
		rng := &countingReader{}
		_, _, err := Authorize(key, Call{
			Program:  program.CreditsID,
			Function: program.FunctionTransferPublic,
			Inputs: []program.Value{
				program.PlaintextValue(program.AddressLiteral(key.Address())),
				program.PlaintextValue(program.U64Literal(1)),
			},
			InputTypes:      fn.Inputs,
			Outputs:         []program.Value{program.PlaintextValue(program.U64Literal(1))},
			OutputTypes:     fn.Outputs,
			OutputRegisters: fn.OutputRegisters,
		}, rng)
		if !errors.Is(err, errs.ErrTypeMismatch) {
			t.Fatalf("expected TypeMismatch, got %v", err)
		}
		if rng.n != 0 {
			t.Fatalf("rng read %d bytes", rng.n)
		}
	})
}

func TestAuthorizeFee(t *testing.T) {
	key := testKey(t, 6)

	t.Run("missing execution id", func(t *testing.T) {
		_, err := AuthorizeFee(key, 1, 1, nil, rand.Reader)
		if !errors.Is(err, errs.ErrMissingBinding) {
			t.Fatalf("expected MissingBinding, got %v", err)
		}
	})

	t.Run("overflow", func(t *testing.T) {
		id := core.HashElements("test")
		_, err := AuthorizeFee(key, ^uint64(0), 1, &id, rand.Reader)
		if !errors.Is(err, errs.ErrParse) {
			t.Fatalf("expected ParseError, got %v", err)
		}
	})

	t.Run("names execution id", func(t *testing.T) {
		id := core.HashElements("test")
		auth, err := AuthorizeFee(key, 7, 3, &id, rand.Reader)
		if err != nil {
			t.Fatalf("AuthorizeFee: %v", err)
		}
		tr, _ := auth.Peek()
		got, err := tr.Request().Inputs[2].Plaintext()
		if err != nil {
			t.Fatalf("Plaintext: %v", err)
		}
		d, _ := got.Digest()
		if !d.Equal(id) {
			t.Fatalf("fee names %s, want %s", d, id)
		}
		future, _ := tr.Response().Outputs[0].Future()
		total, _ := future.Arguments[1].Plaintext.U64()
		if total != 10 {
			t.Fatalf("future total = %d, want 10", total)
		}
	})
}

func TestAuthorizeWireRoundTrip(t *testing.T) {
	req := &AuthorizeRequest{
		PrivateKey:  testKey(t, 7),
		Recipient:   testKey(t, 8).Address(),
		Amount:      100,
		PriorityFee: 10,
	}
	raw, err := codec.Marshal(req)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	back, err := codec.Unmarshal(raw, DecodeAuthorizeRequest)
	if err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if !back.PrivateKey.Equal(req.PrivateKey) || back.Recipient != req.Recipient || back.Amount != 100 || back.PriorityFee != 10 {
		t.Fatalf("request did not round trip: %+v", back)
	}

	resp, err := NewAuthorizer(nil).TransferPublic(req, rand.Reader)
	if err != nil {
		t.Fatalf("TransferPublic: %v", err)
	}
	raw, err = codec.Marshal(resp)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	decoded, err := codec.Unmarshal(raw, DecodeAuthorizeResponse)
	if err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if !decoded.FunctionAuthorization.Equal(resp.FunctionAuthorization) || !decoded.FeeAuthorization.Equal(resp.FeeAuthorization) {
		t.Fatalf("response did not round trip")
	}
	if !decoded.Bound() {
		t.Fatalf("decoded fee lost its binding")
	}
	if _, err := codec.Unmarshal(raw[:len(raw)-1], DecodeAuthorizeResponse); !errors.Is(err, errs.ErrSerialization) {
		t.Fatalf("expected SerializationError for truncated response, got %v", err)
	}
}

func TestFeeSchedule(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "fees.yaml")
	data := []byte("base_fees:\n  credits.vy/transfer_public: 42\n")
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	fees, err := LoadFeeSchedule(path)
	if err != nil {
		t.Fatalf("LoadFeeSchedule: %v", err)
	}
	loc := program.Locator{Program: program.CreditsID, Function: program.FunctionTransferPublic}
	if fee, err := fees.BaseFee(loc); err != nil || fee != 42 {
		t.Fatalf("BaseFee = %d (%v), want 42", fee, err)
	}
	loc.Function = program.FunctionTransferPrivateToPublic
	if _, err := fees.BaseFee(loc); !errors.Is(err, errs.ErrParse) {
		t.Fatalf("expected ParseError for unpublished fee, got %v", err)
	}
	if _, err := ParseFeeSchedule([]byte("base_fees:\n  not a locator: 1\n")); err == nil {
		t.Fatalf("expected error for malformed locator")
	}
}

func BenchmarkTransferPublic(b *testing.B) {
	a := NewAuthorizer(nil)
	req := &AuthorizeRequest{
		PrivateKey:  testKey(b, 1),
		Recipient:   testKey(b, 2).Address(),
		Amount:      100,
		PriorityFee: 10,
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := a.TransferPublic(req, rand.Reader); err != nil {
			b.Fatal(err)
		}
	}
}
