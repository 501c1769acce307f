package stark

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/vybium/vybium-crypto/pkg/vybium-crypto/field"
	"github.com/vybium/vybium-crypto/pkg/vybium-crypto/polynomial"

	"github.com/vybium/vybium-ledger/internal/vybium-ledger/utils"
)

var (
	// ErrUnsatisfied is returned by Prove when the trace violates the AIR.
	ErrUnsatisfied = errors.New("stark: trace does not satisfy the constraints")

	// ErrInvalidProof is returned by Verify for every rejected proof.
	ErrInvalidProof = errors.New("stark: invalid proof")
)

// Prove proves that trace satisfies air. trace is column major: Width
// columns of Height values. rng supplies the trace randomizers.
func Prove(p Parameters, air AIR, trace [][]field.Element, claim *Claim, rng io.Reader) (*Proof, error) {
	l, err := newLayout(p, air.Height(), air.Degree())
	if err != nil {
		return nil, err
	}
	if err := checkShape(air); err != nil {
		return nil, err
	}
	if len(trace) != air.Width() {
		return nil, fmt.Errorf("trace has %d columns, want %d", len(trace), air.Width())
	}
	for c, col := range trace {
		if len(col) != l.height {
			return nil, fmt.Errorf("trace column %d has %d rows, want %d", c, len(col), l.height)
		}
	}
	pre := air.Preprocessed()
	if err := checkTrace(air, trace, pre); err != nil {
		return nil, err
	}

	ch := utils.NewChannel(p.HashFunction)
	claim.absorb(ch, p, air)

	// Randomized trace columns: t = I + (X^n - 1) * R.
	h, err := NewArithmeticDomain(l.height)
	if err != nil {
		return nil, err
	}
	n := l.height
	traceCoeffs := make([][]field.Element, len(trace))
	traceEvals := make([][]field.Element, len(trace))
	buf := make([]byte, 8)
	for c, col := range trace {
		coeffs := make([]field.Element, l.traceDegree)
		copy(coeffs, h.Interpolate(col))
		for i := 0; i < p.NumTraceRandomizers; i++ {
			if _, err := io.ReadFull(rng, buf); err != nil {
				return nil, fmt.Errorf("read trace randomness: %w", err)
			}
			r := field.New(binary.LittleEndian.Uint64(buf))
			coeffs[n+i] = coeffs[n+i].Add(r)
			coeffs[i] = coeffs[i].Sub(r)
		}
		traceCoeffs[c] = coeffs
		traceEvals[c] = l.fri.Evaluate(coeffs)
	}
	traceTree, err := newPairedTree(traceEvals...)
	if err != nil {
		return nil, err
	}
	proof := &Proof{TraceRoot: traceTree.root()}
	ch.SendDigest("trace", proof.TraceRoot)

	weights := draw(ch, air.NumConstraints()+len(air.Boundary()))

	preEvals := make([][]field.Element, len(pre))
	for c, col := range pre {
		preEvals[c] = l.fri.Evaluate(h.Interpolate(col))
	}
	quotient, err := quotientValues(l, air, traceEvals, preEvals, weights, h.Generator)
	if err != nil {
		return nil, err
	}
	qCoeffs := l.fri.Interpolate(quotient)
	for i := l.degree; i < len(qCoeffs); i++ {
		if !qCoeffs[i].IsZero() {
			return nil, fmt.Errorf("%w: quotient exceeds degree %d", ErrUnsatisfied, l.degree)
		}
	}
	qCoeffs = qCoeffs[:l.degree]
	quotientTree, err := newPairedTree(quotient)
	if err != nil {
		return nil, err
	}
	proof.QuotientRoot = quotientTree.root()
	ch.SendDigest("quotient", proof.QuotientRoot)

	z := sampleOOD(ch, l)
	wz := z.Mul(h.Generator)
	proof.OOD.Current = make([]field.Element, len(trace))
	proof.OOD.Next = make([]field.Element, len(trace))
	for c, coeffs := range traceCoeffs {
		poly := polynomial.New(coeffs)
		proof.OOD.Current[c] = poly.Evaluate(z)
		proof.OOD.Next[c] = poly.Evaluate(wz)
	}
	proof.OOD.Quotient = polynomial.New(qCoeffs).Evaluate(z)
	ch.SendElements("ood", proof.OOD.elements())

	beta := draw(ch, len(trace))
	gamma := draw(ch, len(trace))
	delta := ch.ReceiveElement()

	xs := l.fri.Elements()
	dz := make([]field.Element, len(xs))
	dwz := make([]field.Element, len(xs))
	for i, x := range xs {
		dz[i] = x.Sub(z)
		dwz[i] = x.Sub(wz)
	}
	invZ, err := batchInverse(dz)
	if err != nil {
		return nil, err
	}
	invWZ, err := batchInverse(dwz)
	if err != nil {
		return nil, err
	}
	row := make([]field.Element, len(trace))
	layer := make([]field.Element, len(xs))
	for i := range layer {
		for c := range row {
			row[c] = traceEvals[c][i]
		}
		layer[i] = deepValue(beta, gamma, delta, &proof.OOD, row, quotient[i], invZ[i], invWZ[i])
	}

	// FRI: fold down to the final layer, committing every layer in between.
	domain := l.fri
	var trees []*pairedTree
	for i := 0; i < l.rounds; i++ {
		alpha := ch.ReceiveElement()
		if layer, err = foldLayer(layer, domain, alpha); err != nil {
			return nil, err
		}
		domain = domain.Halve()
		if i+1 < l.rounds {
			t, err := newPairedTree(layer)
			if err != nil {
				return nil, err
			}
			trees = append(trees, t)
			proof.LayerRoots = append(proof.LayerRoots, t.root())
			ch.SendDigest("fri", t.root())
		}
	}
	final := domain.Interpolate(layer)
	for i := l.finalDegree; i < len(final); i++ {
		if !final[i].IsZero() {
			return nil, fmt.Errorf("%w: last FRI layer exceeds degree %d", ErrUnsatisfied, l.finalDegree)
		}
	}
	proof.FinalPoly = final[:l.finalDegree]
	ch.SendElements("final", proof.FinalPoly)

	half := l.fri.Length / 2
	for k := 0; k < p.NumCollinearityChecks; k++ {
		idx := ch.ReceiveIndex(half)
		var q Query
		if q.Trace, q.TracePath, err = traceTree.open(idx); err != nil {
			return nil, err
		}
		vals, path, err := quotientTree.open(idx)
		if err != nil {
			return nil, err
		}
		q.Quotient = [2]field.Element{vals[0][0], vals[1][0]}
		q.QuotientPath = path
		size := half
		for _, t := range trees {
			size /= 2
			idx %= size
			vals, path, err := t.open(idx)
			if err != nil {
				return nil, err
			}
			q.Layers = append(q.Layers, LayerOpening{
				Values: [2]field.Element{vals[0][0], vals[1][0]},
				Path:   path,
			})
		}
		proof.Queries = append(proof.Queries, q)
	}
	return proof, nil
}

// checkTrace evaluates every constraint on the trace itself so that a bad
// witness fails with the offending row instead of a degree error.
func checkTrace(air AIR, trace, pre [][]field.Element) error {
	cur := make([]field.Element, len(trace))
	next := make([]field.Element, len(trace))
	preRow := make([]field.Element, len(pre))
	out := make([]field.Element, air.NumConstraints())
	for _, b := range air.Boundary() {
		if !trace[b.Column][0].Equal(b.Value) {
			return fmt.Errorf("%w: boundary on column %d", ErrUnsatisfied, b.Column)
		}
	}
	for r := 0; r+1 < air.Height(); r++ {
		for c := range trace {
			cur[c] = trace[c][r]
			next[c] = trace[c][r+1]
		}
		for c := range pre {
			preRow[c] = pre[c][r]
		}
		air.Evaluate(cur, next, preRow, out)
		for i, v := range out {
			if !v.IsZero() {
				return fmt.Errorf("%w: constraint %d at row %d", ErrUnsatisfied, i, r)
			}
		}
	}
	return nil
}

// quotientValues evaluates the combined constraint quotient on the FRI domain.
func quotientValues(l *layout, air AIR, traceEvals, preEvals [][]field.Element, weights []field.Element, omega field.Element) ([]field.Element, error) {
	xs := l.fri.Elements()
	zh := make([]field.Element, len(xs))
	first := make([]field.Element, len(xs))
	for i, x := range xs {
		zh[i] = x.ModPow(uint64(l.height)).Sub(field.One)
		first[i] = x.Sub(field.One)
	}
	invZH, err := batchInverse(zh)
	if err != nil {
		return nil, err
	}
	invFirst, err := batchInverse(first)
	if err != nil {
		return nil, err
	}
	lastRow := omega.ModPow(uint64(l.height - 1))
	shift := l.fri.Length / l.height
	cur := make([]field.Element, len(traceEvals))
	next := make([]field.Element, len(traceEvals))
	pre := make([]field.Element, len(preEvals))
	out := make([]field.Element, air.NumConstraints())
	values := make([]field.Element, len(xs))
	for i, x := range xs {
		j := (i + shift) % len(xs)
		for c, col := range traceEvals {
			cur[c] = col[i]
			next[c] = col[j]
		}
		for c, col := range preEvals {
			pre[c] = col[i]
		}
		air.Evaluate(cur, next, pre, out)
		values[i] = composeQuotient(weights, out, cur, air.Boundary(), x, lastRow, invZH[i], invFirst[i])
	}
	return values, nil
}

// composeQuotient combines constraint values at x into the quotient value.
// Transition constraints vanish on every row but the last; boundaries on the
// first.
func composeQuotient(weights, constraints, cur []field.Element, bounds []Boundary, x, lastRow, invZerofier, invFirst field.Element) field.Element {
	acc := field.Zero
	for i, c := range constraints {
		acc = acc.Add(weights[i].Mul(c))
	}
	q := acc.Mul(x.Sub(lastRow)).Mul(invZerofier)
	b := field.Zero
	for k, bd := range bounds {
		b = b.Add(weights[len(constraints)+k].Mul(cur[bd.Column].Sub(bd.Value)))
	}
	return q.Add(b.Mul(invFirst))
}

// deepValue evaluates the DEEP composition at a point from the trace row and
// quotient value there.
func deepValue(beta, gamma []field.Element, delta field.Element, ood *OutOfDomain, row []field.Element, q, invZ, invWZ field.Element) field.Element {
	atZ := delta.Mul(q.Sub(ood.Quotient))
	atWZ := field.Zero
	for c, v := range row {
		atZ = atZ.Add(beta[c].Mul(v.Sub(ood.Current[c])))
		atWZ = atWZ.Add(gamma[c].Mul(v.Sub(ood.Next[c])))
	}
	return atZ.Mul(invZ).Add(atWZ.Mul(invWZ))
}

// sampleOOD draws z outside both the trace domain and the FRI domain.
func sampleOOD(ch *utils.Channel, l *layout) field.Element {
	offsetInv := l.fri.Offset.Inverse()
	for {
		z := ch.ReceiveElement()
		if z.ModPow(uint64(l.height)).IsOne() {
			continue
		}
		if z.Mul(offsetInv).ModPow(uint64(l.fri.Length)).IsOne() {
			continue
		}
		return z
	}
}

func draw(ch *utils.Channel, n int) []field.Element {
	out := make([]field.Element, n)
	for i := range out {
		out[i] = ch.ReceiveElement()
	}
	return out
}

func (o *OutOfDomain) elements() []field.Element {
	out := make([]field.Element, 0, len(o.Current)+len(o.Next)+1)
	out = append(out, o.Current...)
	out = append(out, o.Next...)
	return append(out, o.Quotient)
}

// checkShape rejects AIRs whose declared sizes disagree with their columns.
func checkShape(air AIR) error {
	for c, col := range air.Preprocessed() {
		if len(col) != air.Height() {
			return fmt.Errorf("preprocessed column %d has %d rows, want %d", c, len(col), air.Height())
		}
	}
	for _, b := range air.Boundary() {
		if b.Column < 0 || b.Column >= air.Width() {
			return fmt.Errorf("boundary column %d out of range", b.Column)
		}
	}
	return nil
}
