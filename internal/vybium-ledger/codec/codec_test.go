package codec

import (
	"errors"
	"testing"

	"github.com/vybium/vybium-crypto/pkg/vybium-crypto/field"

	"github.com/vybium/vybium-ledger/internal/vybium-ledger/core"
	"github.com/vybium/vybium-ledger/internal/vybium-ledger/errs"
)

type pair struct {
	A uint64
	B *core.Digest
}

func (p *pair) Encode(w *Writer) error {
	w.U64(p.A)
	return WriteOption(w, p.B, func(w *Writer, d *core.Digest) error {
		w.Digest(*d)
		return nil
	})
}

func decodePair(r *Reader) (*pair, error) {
	a, err := r.U64()
	if err != nil {
		return nil, err
	}
	b, err := ReadOption(r, func(r *Reader) (*core.Digest, error) {
		d, err := r.Digest()
		if err != nil {
			return nil, err
		}
		return &d, nil
	})
	if err != nil {
		return nil, err
	}
	return &pair{A: a, B: b}, nil
}

func TestOptionRoundTrip(t *testing.T) {
	d := core.HashElements("codec.test", field.New(3))

	tests := []struct {
		name string
		in   *pair
	}{
		{name: "absent", in: &pair{A: 9}},
		{name: "present", in: &pair{A: 1 << 40, B: &d}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw, err := Marshal(tt.in)
			if err != nil {
				t.Fatalf("Marshal: %v", err)
			}
			out, err := Unmarshal(raw, decodePair)
			if err != nil {
				t.Fatalf("Unmarshal: %v", err)
			}
			if out.A != tt.in.A {
				t.Fatalf("A = %d, want %d", out.A, tt.in.A)
			}
			if (out.B == nil) != (tt.in.B == nil) {
				t.Fatalf("option presence changed")
			}
			if out.B != nil && !out.B.Equal(*tt.in.B) {
				t.Fatalf("option value changed")
			}
		})
	}
}

func TestDecodeFailures(t *testing.T) {
	d := core.HashElements("codec.test", field.New(5))
	raw, err := Marshal(&pair{A: 7, B: &d})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	badFlag := append([]byte(nil), raw...)
	badFlag[8] = 2

	tests := []struct {
		name string
		data []byte
	}{
		{name: "empty", data: nil},
		{name: "truncated", data: raw[:len(raw)-1]},
		{name: "trailing", data: append(append([]byte(nil), raw...), 0)},
		{name: "bad flag", data: badFlag},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Unmarshal(tt.data, decodePair)
			if !errors.Is(err, errs.ErrSerialization) {
				t.Fatalf("expected serialization error, got %v", err)
			}
		})
	}
}

func TestLenLimits(t *testing.T) {
	w := NewWriter()
	w.U32(MaxSequenceLen + 1)
	if _, err := NewReader(w.Bytes()).Len(); !errors.Is(err, errs.ErrSerialization) {
		t.Fatalf("expected oversized count to fail, got %v", err)
	}

	w = NewWriter()
	w.U32(10)
	w.Raw([]byte{1, 2, 3})
	if _, err := NewReader(w.Bytes()).VarBytes(); !errors.Is(err, errs.ErrSerialization) {
		t.Fatalf("expected count beyond input to fail, got %v", err)
	}

	if err := NewWriter().Len(MaxSequenceLen + 1); !errors.Is(err, errs.ErrSerialization) {
		t.Fatalf("expected writer to refuse oversized sequence, got %v", err)
	}
}

func TestStrictScalars(t *testing.T) {
	if _, err := NewReader([]byte{2}).Bool(); !errors.Is(err, errs.ErrSerialization) {
		t.Fatalf("expected boolean byte 2 to fail, got %v", err)
	}

	w := NewWriter()
	w.U64(field.P)
	if _, err := NewReader(w.Bytes()).Element(); !errors.Is(err, errs.ErrSerialization) {
		t.Fatalf("expected non-canonical element to fail, got %v", err)
	}
}

func TestSliceRoundTrip(t *testing.T) {
	in := []string{"a", "", "credits.vy"}
	w := NewWriter()
	if err := WriteSlice(w, in, func(w *Writer, s string) error { return w.String(s) }); err != nil {
		t.Fatalf("WriteSlice: %v", err)
	}
	out, err := Unmarshal(w.Bytes(), func(r *Reader) ([]string, error) {
		return ReadSlice(r, func(r *Reader) (string, error) { return r.String() })
	})
	if err != nil {
		t.Fatalf("ReadSlice: %v", err)
	}
	if len(out) != len(in) {
		t.Fatalf("len = %d, want %d", len(out), len(in))
	}
	for i := range in {
		if out[i] != in[i] {
			t.Fatalf("item %d = %q, want %q", i, out[i], in[i])
		}
	}
}
