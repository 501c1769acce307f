package stark

import (
	"github.com/vybium/vybium-crypto/pkg/vybium-crypto/field"

	"github.com/vybium/vybium-ledger/internal/vybium-ledger/codec"
	"github.com/vybium/vybium-ledger/internal/vybium-ledger/core"
)

// OutOfDomain holds the trace and quotient evaluations at the out-of-domain
// point z. Next is the trace at the successor of z.
type OutOfDomain struct {
	Current  []field.Element
	Next     []field.Element
	Quotient field.Element
}

// LayerOpening opens the pair of sibling values of one FRI layer leaf.
type LayerOpening struct {
	Values [2]field.Element
	Path   []core.Digest
}

// Query opens the trace, the quotient and every committed FRI layer along
// one collinearity check. Trace[0] is the row at the queried point x and
// Trace[1] the row at -x.
type Query struct {
	Trace        [2][]field.Element
	TracePath    []core.Digest
	Quotient     [2]field.Element
	QuotientPath []core.Digest
	Layers       []LayerOpening
}

// Proof is a non-interactive STARK.
type Proof struct {
	TraceRoot    core.Digest
	QuotientRoot core.Digest
	OOD          OutOfDomain
	LayerRoots   []core.Digest
	FinalPoly    []field.Element
	Queries      []Query
}

func writeElements(w *codec.Writer, elems []field.Element) error {
	return codec.WriteSlice(w, elems, func(w *codec.Writer, e field.Element) error {
		w.Element(e)
		return nil
	})
}

func readElements(r *codec.Reader) ([]field.Element, error) {
	return codec.ReadSlice(r, func(r *codec.Reader) (field.Element, error) {
		return r.Element()
	})
}

func writeDigests(w *codec.Writer, ds []core.Digest) error {
	return codec.WriteSlice(w, ds, func(w *codec.Writer, d core.Digest) error {
		w.Digest(d)
		return nil
	})
}

func readDigests(r *codec.Reader) ([]core.Digest, error) {
	return codec.ReadSlice(r, func(r *codec.Reader) (core.Digest, error) {
		return r.Digest()
	})
}

// Encode writes the proof.
func (p *Proof) Encode(w *codec.Writer) error {
	w.Digest(p.TraceRoot)
	w.Digest(p.QuotientRoot)
	if err := writeElements(w, p.OOD.Current); err != nil {
		return err
	}
	if err := writeElements(w, p.OOD.Next); err != nil {
		return err
	}
	w.Element(p.OOD.Quotient)
	if err := writeDigests(w, p.LayerRoots); err != nil {
		return err
	}
	if err := writeElements(w, p.FinalPoly); err != nil {
		return err
	}
	return codec.WriteSlice(w, p.Queries, func(w *codec.Writer, q Query) error {
		for _, row := range q.Trace {
			if err := writeElements(w, row); err != nil {
				return err
			}
		}
		if err := writeDigests(w, q.TracePath); err != nil {
			return err
		}
		w.Element(q.Quotient[0])
		w.Element(q.Quotient[1])
		if err := writeDigests(w, q.QuotientPath); err != nil {
			return err
		}
		return codec.WriteSlice(w, q.Layers, func(w *codec.Writer, l LayerOpening) error {
			w.Element(l.Values[0])
			w.Element(l.Values[1])
			return writeDigests(w, l.Path)
		})
	})
}

// DecodeProof reads a proof. Shapes are checked by Verify, not here.
func DecodeProof(r *codec.Reader) (*Proof, error) {
	p := &Proof{}
	var err error
	if p.TraceRoot, err = r.Digest(); err != nil {
		return nil, err
	}
	if p.QuotientRoot, err = r.Digest(); err != nil {
		return nil, err
	}
	if p.OOD.Current, err = readElements(r); err != nil {
		return nil, err
	}
	if p.OOD.Next, err = readElements(r); err != nil {
		return nil, err
	}
	if p.OOD.Quotient, err = r.Element(); err != nil {
		return nil, err
	}
	if p.LayerRoots, err = readDigests(r); err != nil {
		return nil, err
	}
	if p.FinalPoly, err = readElements(r); err != nil {
		return nil, err
	}
	p.Queries, err = codec.ReadSlice(r, func(r *codec.Reader) (Query, error) {
		var q Query
		var err error
		for i := range q.Trace {
			if q.Trace[i], err = readElements(r); err != nil {
				return q, err
			}
		}
		if q.TracePath, err = readDigests(r); err != nil {
			return q, err
		}
		if q.Quotient[0], err = r.Element(); err != nil {
			return q, err
		}
		if q.Quotient[1], err = r.Element(); err != nil {
			return q, err
		}
		if q.QuotientPath, err = readDigests(r); err != nil {
			return q, err
		}
		q.Layers, err = codec.ReadSlice(r, func(r *codec.Reader) (LayerOpening, error) {
			var l LayerOpening
			var err error
			if l.Values[0], err = r.Element(); err != nil {
				return l, err
			}
			if l.Values[1], err = r.Element(); err != nil {
				return l, err
			}
			l.Path, err = readDigests(r)
			return l, err
		})
		return q, err
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}
