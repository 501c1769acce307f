package stark

import (
	"errors"
	"io"
	"testing"

	"github.com/vybium/vybium-crypto/pkg/vybium-crypto/field"
	"golang.org/x/crypto/sha3"

	"github.com/vybium/vybium-ledger/internal/vybium-ledger/codec"
	"github.com/vybium/vybium-ledger/internal/vybium-ledger/core"
	"github.com/vybium/vybium-ledger/internal/vybium-ledger/utils"
)

// fibAIR is a + b -> (b, a*s + b) with a public step column s.
type fibAIR struct {
	height int
	steps  []field.Element
}

func newFibAIR(height int) *fibAIR {
	steps := make([]field.Element, height)
	for i := range steps {
		steps[i] = field.New(uint64(i%3 + 1))
	}
	return &fibAIR{height: height, steps: steps}
}

func (a *fibAIR) Width() int                      { return 2 }
func (a *fibAIR) Height() int                     { return a.height }
func (a *fibAIR) Preprocessed() [][]field.Element { return [][]field.Element{a.steps} }
func (a *fibAIR) NumConstraints() int             { return 2 }
func (a *fibAIR) Degree() int                     { return 2 }

func (a *fibAIR) Evaluate(cur, next, pre, out []field.Element) {
	out[0] = next[0].Sub(cur[1])
	out[1] = next[1].Sub(cur[0].Mul(pre[0]).Add(cur[1]))
}

func (a *fibAIR) Boundary() []Boundary {
	return []Boundary{{Column: 0, Value: field.One}, {Column: 1, Value: field.One}}
}

func (a *fibAIR) trace() [][]field.Element {
	cols := [][]field.Element{make([]field.Element, a.height), make([]field.Element, a.height)}
	cols[0][0], cols[1][0] = field.One, field.One
	for r := 0; r+1 < a.height; r++ {
		cols[0][r+1] = cols[1][r]
		cols[1][r+1] = cols[0][r].Mul(a.steps[r]).Add(cols[1][r])
	}
	return cols
}

func testParameters() Parameters {
	return Parameters{
		FRIExpansionFactor:    4,
		NumCollinearityChecks: 8,
		NumTraceRandomizers:   18,
		FinalDegree:           4,
		HashFunction:          utils.HashSHA3,
	}
}

func testRandomness(seed string) io.Reader {
	h := sha3.NewShake256()
	h.Write([]byte(seed))
	return h
}

func testClaim() *Claim {
	return &Claim{
		Program:  core.HashElements("test.program"),
		Input:    []field.Element{field.New(3)},
		Bindings: []core.Digest{core.HashElements("test.binding")},
	}
}

func proveFib(t *testing.T) (*fibAIR, *Proof) {
	t.Helper()
	air := newFibAIR(16)
	proof, err := Prove(testParameters(), air, air.trace(), testClaim(), testRandomness("fib"))
	if err != nil {
		t.Fatalf("Prove: %v", err)
	}
	return air, proof
}

func TestProveVerify(t *testing.T) {
	air, proof := proveFib(t)
	if err := Verify(testParameters(), air, testClaim(), proof); err != nil {
		t.Fatalf("Verify: %v", err)
	}

	w := codec.NewWriter()
	if err := proof.Encode(w); err != nil {
		t.Fatalf("Encode: %v", err)
	}
	r := codec.NewReader(w.Bytes())
	decoded, err := DecodeProof(r)
	if err != nil {
		t.Fatalf("DecodeProof: %v", err)
	}
	if err := r.Finish(); err != nil {
		t.Fatalf("trailing bytes: %v", err)
	}
	if err := Verify(testParameters(), air, testClaim(), decoded); err != nil {
		t.Fatalf("Verify decoded: %v", err)
	}
}

func TestProofsAreRandomized(t *testing.T) {
	air := newFibAIR(16)
	a, err := Prove(testParameters(), air, air.trace(), testClaim(), testRandomness("a"))
	if err != nil {
		t.Fatalf("Prove: %v", err)
	}
	b, err := Prove(testParameters(), air, air.trace(), testClaim(), testRandomness("b"))
	if err != nil {
		t.Fatalf("Prove: %v", err)
	}
	if a.TraceRoot.Equal(b.TraceRoot) {
		t.Fatalf("different randomness produced the same trace commitment")
	}
}

func TestVerifyRejectsTampering(t *testing.T) {
	one := field.One
	tests := []struct {
		name   string
		mutate func(p *Proof, c *Claim)
	}{
		{"trace root", func(p *Proof, c *Claim) { p.TraceRoot[0] = p.TraceRoot[0].Add(one) }},
		{"quotient root", func(p *Proof, c *Claim) { p.QuotientRoot[1] = p.QuotientRoot[1].Add(one) }},
		{"ood current", func(p *Proof, c *Claim) { p.OOD.Current[1] = p.OOD.Current[1].Add(one) }},
		{"ood next", func(p *Proof, c *Claim) { p.OOD.Next[0] = p.OOD.Next[0].Add(one) }},
		{"ood quotient", func(p *Proof, c *Claim) { p.OOD.Quotient = p.OOD.Quotient.Add(one) }},
		{"layer root", func(p *Proof, c *Claim) { p.LayerRoots[0][2] = p.LayerRoots[0][2].Add(one) }},
		{"final polynomial", func(p *Proof, c *Claim) { p.FinalPoly[0] = p.FinalPoly[0].Add(one) }},
		{"trace value", func(p *Proof, c *Claim) { p.Queries[3].Trace[1][0] = p.Queries[3].Trace[1][0].Add(one) }},
		{"quotient value", func(p *Proof, c *Claim) { p.Queries[0].Quotient[0] = p.Queries[0].Quotient[0].Add(one) }},
		{"layer value", func(p *Proof, c *Claim) {
			v := &p.Queries[5].Layers[0].Values[1]
			*v = v.Add(one)
		}},
		{"path node", func(p *Proof, c *Claim) { p.Queries[2].TracePath[0][4] = p.Queries[2].TracePath[0][4].Add(one) }},
		{"short path", func(p *Proof, c *Claim) { p.Queries[1].QuotientPath = p.Queries[1].QuotientPath[1:] }},
		{"missing query", func(p *Proof, c *Claim) { p.Queries = p.Queries[1:] }},
		{"missing layer", func(p *Proof, c *Claim) { p.Queries[0].Layers = p.Queries[0].Layers[1:] }},
		{"short ood", func(p *Proof, c *Claim) { p.OOD.Current = p.OOD.Current[:1] }},
		{"claim input", func(p *Proof, c *Claim) { c.Input[0] = c.Input[0].Add(one) }},
		{"claim binding", func(p *Proof, c *Claim) { c.Bindings[0] = core.HashElements("test.other") }},
		{"claim program", func(p *Proof, c *Claim) { c.Program = core.HashElements("test.other") }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			air, proof := proveFib(t)
			claim := testClaim()
			tt.mutate(proof, claim)
			if err := Verify(testParameters(), air, claim, proof); !errors.Is(err, ErrInvalidProof) {
				t.Fatalf("Verify = %v, want ErrInvalidProof", err)
			}
		})
	}
}

func TestVerifyRejectsOtherPublicColumns(t *testing.T) {
	air, proof := proveFib(t)
	other := newFibAIR(16)
	other.steps[5] = field.New(9)
	if err := Verify(testParameters(), other, testClaim(), proof); !errors.Is(err, ErrInvalidProof) {
		t.Fatalf("Verify = %v, want ErrInvalidProof", err)
	}
	if err := Verify(testParameters(), air, testClaim(), proof); err != nil {
		t.Fatalf("Verify: %v", err)
	}
}

func TestProveRejectsUnsatisfiedTrace(t *testing.T) {
	air := newFibAIR(16)
	trace := air.trace()
	trace[1][7] = trace[1][7].Add(field.One)
	_, err := Prove(testParameters(), air, trace, testClaim(), testRandomness("bad"))
	if !errors.Is(err, ErrUnsatisfied) {
		t.Fatalf("Prove = %v, want ErrUnsatisfied", err)
	}

	trace = air.trace()
	trace[0][0] = field.New(2)
	_, err = Prove(testParameters(), air, trace, testClaim(), testRandomness("bad"))
	if !errors.Is(err, ErrUnsatisfied) {
		t.Fatalf("Prove with bad boundary = %v, want ErrUnsatisfied", err)
	}
}

func TestProveRejectsShortRandomness(t *testing.T) {
	air := newFibAIR(16)
	_, err := Prove(testParameters(), air, air.trace(), testClaim(), io.LimitReader(testRandomness("x"), 8))
	if err == nil {
		t.Fatalf("expected exhausted randomness to fail")
	}
}

func TestParametersValidate(t *testing.T) {
	if err := DefaultParameters().Validate(); err != nil {
		t.Fatalf("default parameters: %v", err)
	}
	p := testParameters()
	p.NumTraceRandomizers = 2 * p.NumCollinearityChecks
	if err := p.Validate(); err == nil {
		t.Fatalf("expected too few randomizers to be rejected")
	}
	p = testParameters()
	p.FRIExpansionFactor = 3
	if err := p.Validate(); err == nil {
		t.Fatalf("expected non power of two expansion to be rejected")
	}
}

func TestDomainInterpolateEvaluate(t *testing.T) {
	d, err := NewArithmeticDomain(32)
	if err != nil {
		t.Fatalf("NewArithmeticDomain: %v", err)
	}
	if !d.Generator.ModPow(32).IsOne() || d.Generator.ModPow(16).IsOne() {
		t.Fatalf("generator is not a primitive 32nd root of unity")
	}
	coset := d.WithOffset(field.Generator())
	coeffs := []field.Element{field.New(5), field.New(0), field.New(11), field.New(3)}
	values := coset.Evaluate(coeffs)
	for i, x := range coset.Elements() {
		want := coeffs[0].Add(coeffs[2].Mul(x.Square())).Add(coeffs[3].Mul(x.Square().Mul(x)))
		if !values[i].Equal(want) {
			t.Fatalf("evaluation %d disagrees with Horner", i)
		}
	}
	back := coset.Interpolate(values)
	for i, c := range back {
		want := field.Zero
		if i < len(coeffs) {
			want = coeffs[i]
		}
		if !c.Equal(want) {
			t.Fatalf("coefficient %d = %v, want %v", i, c, want)
		}
	}
	if _, err := NewArithmeticDomain(12); err == nil {
		t.Fatalf("expected non power of two length to be rejected")
	}
}

func TestFoldHalvesDegree(t *testing.T) {
	d, err := NewArithmeticDomain(16)
	if err != nil {
		t.Fatalf("NewArithmeticDomain: %v", err)
	}
	d = d.WithOffset(field.Generator())
	coeffs := []field.Element{field.New(1), field.New(2), field.New(3), field.New(4)}
	alpha := field.New(10)
	folded, err := foldLayer(d.Evaluate(coeffs), d, alpha)
	if err != nil {
		t.Fatalf("foldLayer: %v", err)
	}
	// even part 1 + 3y, odd part 2 + 4y
	want := []field.Element{field.New(1).Add(alpha.Mul(field.New(2))), field.New(3).Add(alpha.Mul(field.New(4)))}
	got := d.Halve().Interpolate(folded)
	for i, c := range got {
		w := field.Zero
		if i < len(want) {
			w = want[i]
		}
		if !c.Equal(w) {
			t.Fatalf("folded coefficient %d = %v, want %v", i, c, w)
		}
	}
}
