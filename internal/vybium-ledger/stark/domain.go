package stark

import (
	"fmt"
	"sync"

	"github.com/vybium/vybium-crypto/pkg/vybium-crypto/field"
)

// ArithmeticDomain is the coset {Offset * Generator^i : i < Length}. Lengths
// are powers of two.
type ArithmeticDomain struct {
	Offset    field.Element
	Generator field.Element
	Length    int
}

// NewArithmeticDomain returns the subgroup of the given length.
func NewArithmeticDomain(length int) (*ArithmeticDomain, error) {
	if !isPowerOfTwo(length) {
		return nil, fmt.Errorf("domain length must be a power of 2, got %d", length)
	}
	if length > 1<<32 {
		return nil, fmt.Errorf("domain length %d exceeds the two-adicity of the field", length)
	}
	return &ArithmeticDomain{
		Offset:    field.One,
		Generator: rootOfUnity(length),
		Length:    length,
	}, nil
}

// WithOffset returns the coset of d shifted by offset.
func (d *ArithmeticDomain) WithOffset(offset field.Element) *ArithmeticDomain {
	return &ArithmeticDomain{Offset: offset, Generator: d.Generator, Length: d.Length}
}

// Halve returns the domain of squares of d.
func (d *ArithmeticDomain) Halve() *ArithmeticDomain {
	return &ArithmeticDomain{
		Offset:    d.Offset.Square(),
		Generator: d.Generator.Square(),
		Length:    d.Length / 2,
	}
}

// Element returns the i-th point of the domain.
func (d *ArithmeticDomain) Element(i int) field.Element {
	return d.Offset.Mul(d.Generator.ModPow(uint64(i)))
}

// Elements lists the domain in order.
func (d *ArithmeticDomain) Elements() []field.Element {
	out := make([]field.Element, d.Length)
	x := d.Offset
	for i := range out {
		out[i] = x
		x = x.Mul(d.Generator)
	}
	return out
}

// Evaluate evaluates the polynomial with the given coefficients on the
// domain. len(coeffs) must not exceed the domain length.
func (d *ArithmeticDomain) Evaluate(coeffs []field.Element) []field.Element {
	out := make([]field.Element, d.Length)
	scale := field.One
	for i, c := range coeffs {
		out[i] = c.Mul(scale)
		scale = scale.Mul(d.Offset)
	}
	ntt(out, false)
	return out
}

// Interpolate returns the coefficients of the polynomial of degree below
// the domain length that takes values on the domain.
func (d *ArithmeticDomain) Interpolate(values []field.Element) []field.Element {
	out := append([]field.Element(nil), values...)
	ntt(out, true)
	inv := d.Offset.Inverse()
	scale := field.One
	for i := range out {
		out[i] = out[i].Mul(scale)
		scale = scale.Mul(inv)
	}
	return out
}

var roots sync.Map

// rootOfUnity returns a primitive n-th root of unity as a power of the
// multiplicative generator.
func rootOfUnity(n int) field.Element {
	if v, ok := roots.Load(n); ok {
		return v.(field.Element)
	}
	w := field.Generator().ModPow((field.P - 1) / uint64(n))
	roots.Store(n, w)
	return w
}

// ntt transforms a in place: a[k] becomes sum_j a[j] * w^(jk) for a primitive
// len(a)-th root w, or its inverse with 1/n scaling.
func ntt(a []field.Element, inverse bool) {
	n := len(a)
	if n <= 1 {
		return
	}
	for i, j := 1, 0; i < n; i++ {
		bit := n >> 1
		for ; j&bit != 0; bit >>= 1 {
			j ^= bit
		}
		j ^= bit
		if i < j {
			a[i], a[j] = a[j], a[i]
		}
	}
	twiddles := make([]field.Element, n/2)
	for size := 2; size <= n; size <<= 1 {
		w := rootOfUnity(size)
		if inverse {
			w = w.Inverse()
		}
		half := size / 2
		twiddles[0] = field.One
		for k := 1; k < half; k++ {
			twiddles[k] = twiddles[k-1].Mul(w)
		}
		for start := 0; start < n; start += size {
			for k := 0; k < half; k++ {
				u := a[start+k]
				v := a[start+k+half].Mul(twiddles[k])
				a[start+k] = u.Add(v)
				a[start+k+half] = u.Sub(v)
			}
		}
	}
	if inverse {
		inv := field.New(uint64(n)).Inverse()
		for i := range a {
			a[i] = a[i].Mul(inv)
		}
	}
}

// batchInverse inverts every element of xs. Zero entries are an error.
func batchInverse(xs []field.Element) ([]field.Element, error) {
	out := make([]field.Element, len(xs))
	acc := field.One
	for i, x := range xs {
		if x.IsZero() {
			return nil, fmt.Errorf("cannot invert zero at position %d", i)
		}
		out[i] = acc
		acc = acc.Mul(x)
	}
	inv := acc.Inverse()
	for i := len(xs) - 1; i >= 0; i-- {
		out[i] = out[i].Mul(inv)
		inv = inv.Mul(xs[i])
	}
	return out, nil
}
