package vm

import (
	"errors"
	"strings"
	"testing"

	"github.com/vybium/vybium-crypto/pkg/vybium-crypto/field"
	"golang.org/x/crypto/sha3"

	"github.com/vybium/vybium-ledger/internal/vybium-ledger/core"
	"github.com/vybium/vybium-ledger/internal/vybium-ledger/stark"
	"github.com/vybium/vybium-ledger/internal/vybium-ledger/utils"
)

func checkConstraints(t *testing.T, p *Program) {
	t.Helper()
	cols, pre := p.Trace(), p.Preprocessed()
	cur := make([]field.Element, p.Width())
	next := make([]field.Element, p.Width())
	preRow := make([]field.Element, len(pre))
	out := make([]field.Element, p.NumConstraints())
	for r := 0; r+1 < p.Height(); r++ {
		for c := range cols {
			cur[c], next[c] = cols[c][r], cols[c][r+1]
		}
		for c := range pre {
			preRow[c] = pre[c][r]
		}
		p.Evaluate(cur, next, preRow, out)
		for i, v := range out {
			if !v.IsZero() {
				t.Fatalf("constraint %d fails at row %d (%s)", i, r, p.ops[r].inst)
			}
		}
	}
	for _, b := range p.Boundary() {
		if !cols[b.Column][0].Equal(b.Value) {
			t.Fatalf("boundary on column %d fails", b.Column)
		}
	}
}

func TestArithmetic(t *testing.T) {
	p := New()
	p.Push(field.New(3))
	p.Push(field.New(4))
	p.Add()
	p.Push(field.New(5))
	p.Mul()
	p.Dup(0)
	p.Pop()
	if got := p.Peek(0); !got.Equal(field.New(35)) {
		t.Fatalf("stack top = %v, want 35", got)
	}
	if p.Depth() != 1 {
		t.Fatalf("depth = %d, want 1", p.Depth())
	}
	if err := p.Finish(); err != nil {
		t.Fatalf("Finish: %v", err)
	}
	if p.Height() != MinHeight || p.Len() != MinHeight-1 {
		t.Fatalf("height %d with %d ops", p.Height(), p.Len())
	}
	checkConstraints(t, p)
}

func TestPermuteMatchesPoseidon(t *testing.T) {
	var block [core.PoseidonRate]field.Element
	for i := range block {
		block[i] = field.New(uint64(100 + i))
	}

	p := New()
	for i := len(block) - 1; i >= 0; i-- {
		p.Divine(block[i])
	}
	p.SpongeInit()
	p.SpongeAbsorb()
	p.Permute()
	p.SpongeSqueeze()

	sp := core.NewSponge()
	sp.AbsorbBlock(block)
	want := sp.Squeeze()
	for i, e := range want {
		if !p.Peek(i).Equal(e) {
			t.Fatalf("lane %d differs from the native sponge", i)
		}
	}
	p.AssertDigest(want, "digest")
	if err := p.Unsatisfied(); err != nil {
		t.Fatalf("Unsatisfied: %v", err)
	}
	if err := p.Finish(); err != nil {
		t.Fatalf("Finish: %v", err)
	}
	checkConstraints(t, p)
}

func TestSpongeLoadResumes(t *testing.T) {
	sp := core.NewSponge()
	sp.Absorb([]field.Element{field.New(1), field.New(2)})
	mid := sp.State()
	block := [core.PoseidonRate]field.Element{field.New(9)}
	sp.AbsorbBlock(block)

	p := New()
	for i := len(block) - 1; i >= 0; i-- {
		p.Push(block[i])
	}
	p.SpongeLoad(mid)
	p.SpongeAbsorb()
	p.Permute()
	p.SpongeSqueeze()
	p.AssertDigest(sp.Squeeze(), "resumed")
	if err := p.Unsatisfied(); err != nil {
		t.Fatalf("Unsatisfied: %v", err)
	}
	if len(p.Public()) != core.PoseidonWidth+digestLen {
		t.Fatalf("public inputs = %d, want loaded state plus digest", len(p.Public()))
	}
}

func TestAssertionFailureIsUnsatisfied(t *testing.T) {
	p := New()
	p.Push(field.New(1))
	p.Divine(field.New(2))
	p.AssertEq("one_is_two")
	if p.Err() != nil {
		t.Fatalf("assertion failure must not be a shape error: %v", p.Err())
	}
	if err := p.Unsatisfied(); err == nil || !strings.Contains(err.Error(), "one_is_two") {
		t.Fatalf("Unsatisfied = %v, want the assertion label", err)
	}
}

func TestRangeCheck32(t *testing.T) {
	tests := []struct {
		value uint64
		ok    bool
	}{
		{0, true},
		{1<<32 - 1, true},
		{1 << 32, false},
		{field.P - 1, false},
	}
	for _, tt := range tests {
		p := New()
		p.Divine(field.New(tt.value))
		p.RangeCheck32(0, "value")
		if (p.Unsatisfied() == nil) != tt.ok {
			t.Fatalf("RangeCheck32(%d): Unsatisfied = %v", tt.value, p.Unsatisfied())
		}
		if p.Depth() != 1 {
			t.Fatalf("range check changed the depth to %d", p.Depth())
		}
		if tt.ok {
			if err := p.Finish(); err != nil {
				t.Fatalf("Finish: %v", err)
			}
			checkConstraints(t, p)
		}
	}
}

func TestShapeErrors(t *testing.T) {
	tests := []struct {
		name  string
		build func(p *Program)
	}{
		{"underflow", func(p *Program) { p.Add() }},
		{"overflow", func(p *Program) {
			for i := 0; i <= StackSize; i++ {
				p.Push(field.Zero)
			}
		}},
		{"dup out of reach", func(p *Program) {
			for i := 0; i < StackSize; i++ {
				p.Push(field.Zero)
			}
			p.Pop()
			p.Dup(DupReach)
		}},
		{"absorb needs a block", func(p *Program) {
			p.Push(field.Zero)
			p.SpongeAbsorb()
		}},
		{"after finish", func(p *Program) {
			_ = p.Finish()
			p.Push(field.One)
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := New()
			tt.build(p)
			if p.Err() == nil {
				t.Fatalf("expected a shape error")
			}
		})
	}
}

func TestDigestIgnoresInputValues(t *testing.T) {
	build := func(secret, public, constant uint64) *Program {
		p := New()
		p.Divine(field.New(secret))
		p.ReadIo(field.New(public))
		p.Push(field.New(constant))
		p.Add()
		p.Add()
		if err := p.Finish(); err != nil {
			t.Fatalf("Finish: %v", err)
		}
		return p
	}
	a, b := build(1, 2, 3), build(7, 8, 3)
	if !a.Digest().Equal(b.Digest()) {
		t.Fatalf("secret and public values changed the program digest")
	}
	if a.Digest().Equal(build(1, 2, 4).Digest()) {
		t.Fatalf("program constants must change the digest")
	}
}

func testParameters() stark.Parameters {
	return stark.Parameters{
		FRIExpansionFactor:    4,
		NumCollinearityChecks: 6,
		NumTraceRandomizers:   14,
		FinalDegree:           8,
		HashFunction:          utils.HashSHA3,
	}
}

func TestProveProgram(t *testing.T) {
	build := func(secret uint64) *Program {
		p := New()
		p.Divine(field.New(secret))
		p.Dup(0)
		p.Mul()
		p.ReadIo(field.New(49))
		p.AssertEq("square")
		if err := p.Finish(); err != nil {
			t.Fatalf("Finish: %v", err)
		}
		return p
	}
	prover := build(7)
	claim := &stark.Claim{Program: prover.Digest(), Input: prover.Public()}
	proof, err := stark.Prove(testParameters(), prover, prover.Trace(), claim, sha3.NewShake256())
	if err != nil {
		t.Fatalf("Prove: %v", err)
	}

	verifier := build(0)
	if verifier.Unsatisfied() == nil {
		t.Fatalf("zero secret should not satisfy the program")
	}
	if err := stark.Verify(testParameters(), verifier, claim, proof); err != nil {
		t.Fatalf("Verify: %v", err)
	}

	liar := build(6)
	_, err = stark.Prove(testParameters(), liar, liar.Trace(), claim, sha3.NewShake256())
	if !errors.Is(err, stark.ErrUnsatisfied) {
		t.Fatalf("Prove with a wrong secret = %v, want ErrUnsatisfied", err)
	}
}
