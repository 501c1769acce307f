package program

import (
	"github.com/vybium/vybium-ledger/internal/vybium-ledger/account"
	"github.com/vybium/vybium-ledger/internal/vybium-ledger/codec"
	"github.com/vybium/vybium-ledger/internal/vybium-ledger/errs"
)

// maxFutureDepth bounds nested futures on decode.
const maxFutureDepth = 8

// Encode writes the identifier.
func (id Identifier) Encode(w *codec.Writer) error {
	return w.String(string(id))
}

// DecodeIdentifier reads and validates an identifier.
func DecodeIdentifier(r *codec.Reader) (Identifier, error) {
	s, err := r.String()
	if err != nil {
		return "", err
	}
	id, err := ParseIdentifier(s)
	if err != nil {
		return "", errs.Wrap(errs.SerializationError, "identifier", err)
	}
	return id, nil
}

// Encode writes the program id.
func (p ProgramID) Encode(w *codec.Writer) error {
	if err := p.Name.Encode(w); err != nil {
		return err
	}
	return p.Network.Encode(w)
}

// DecodeProgramID reads a program id.
func DecodeProgramID(r *codec.Reader) (ProgramID, error) {
	name, err := DecodeIdentifier(r)
	if err != nil {
		return ProgramID{}, err
	}
	network, err := DecodeIdentifier(r)
	if err != nil {
		return ProgramID{}, err
	}
	return ProgramID{Name: name, Network: network}, nil
}

// Encode writes the literal as a type tag and payload.
func (l Literal) Encode(w *codec.Writer) error {
	if !l.typ.Valid() {
		return errs.Newf(errs.SerializationError, "cannot encode literal of type %d", l.typ)
	}
	w.U8(uint8(l.typ))
	switch l.typ {
	case LiteralAddress:
		w.Raw(l.address[:])
	case LiteralBoolean:
		w.Bool(l.boolean)
	case LiteralField:
		w.Element(l.field)
	case LiteralU64:
		w.U64(l.u64)
	case LiteralDigest:
		w.Digest(l.digest)
	}
	return nil
}

// DecodeLiteral reads a literal.
func DecodeLiteral(r *codec.Reader) (Literal, error) {
	tag, err := r.U8()
	if err != nil {
		return Literal{}, err
	}
	switch LiteralType(tag) {
	case LiteralAddress:
		raw, err := r.Raw(account.AddressSize)
		if err != nil {
			return Literal{}, err
		}
		var a account.Address
		copy(a[:], raw)
		return AddressLiteral(a), nil
	case LiteralBoolean:
		b, err := r.Bool()
		if err != nil {
			return Literal{}, err
		}
		return BoolLiteral(b), nil
	case LiteralField:
		e, err := r.Element()
		if err != nil {
			return Literal{}, err
		}
		return FieldLiteral(e), nil
	case LiteralU64:
		v, err := r.U64()
		if err != nil {
			return Literal{}, err
		}
		return U64Literal(v), nil
	case LiteralDigest:
		d, err := r.Digest()
		if err != nil {
			return Literal{}, err
		}
		return DigestLiteral(d), nil
	}
	return Literal{}, errs.Newf(errs.SerializationError, "unknown literal tag %d", tag)
}

func decodeVisibility(r *codec.Reader) (Visibility, error) {
	v, err := r.U8()
	if err != nil {
		return 0, err
	}
	if Visibility(v) > Private {
		return 0, errs.Newf(errs.SerializationError, "unknown visibility tag %d", v)
	}
	return Visibility(v), nil
}

// Encode writes the record.
func (r *Record) Encode(w *codec.Writer) error {
	w.Raw(r.Owner[:])
	w.U8(uint8(r.OwnerVisibility))
	err := codec.WriteSlice(w, r.Entries, func(w *codec.Writer, e Entry) error {
		if err := e.Name.Encode(w); err != nil {
			return err
		}
		w.U8(uint8(e.Visibility))
		return e.Value.Encode(w)
	})
	if err != nil {
		return err
	}
	w.Digest(r.Nonce)
	return nil
}

// DecodeRecord reads a record.
func DecodeRecord(r *codec.Reader) (*Record, error) {
	raw, err := r.Raw(account.AddressSize)
	if err != nil {
		return nil, err
	}
	rec := &Record{}
	copy(rec.Owner[:], raw)
	if rec.OwnerVisibility, err = decodeVisibility(r); err != nil {
		return nil, err
	}
	rec.Entries, err = codec.ReadSlice(r, func(r *codec.Reader) (Entry, error) {
		name, err := DecodeIdentifier(r)
		if err != nil {
			return Entry{}, err
		}
		vis, err := decodeVisibility(r)
		if err != nil {
			return Entry{}, err
		}
		value, err := DecodeLiteral(r)
		if err != nil {
			return Entry{}, err
		}
		return Entry{Name: name, Visibility: vis, Value: value}, nil
	})
	if err != nil {
		return nil, err
	}
	if rec.Nonce, err = r.Digest(); err != nil {
		return nil, err
	}
	return rec, nil
}

// Encode writes the future.
func (f *Future) Encode(w *codec.Writer) error {
	if err := f.Program.Encode(w); err != nil {
		return err
	}
	if err := f.Function.Encode(w); err != nil {
		return err
	}
	return codec.WriteSlice(w, f.Arguments, func(w *codec.Writer, a Argument) error {
		switch {
		case a.Future != nil:
			w.U8(1)
			return a.Future.Encode(w)
		case a.Plaintext != nil:
			w.U8(0)
			return a.Plaintext.Encode(w)
		}
		return errs.New(errs.SerializationError, "empty future argument")
	})
}

// DecodeFuture reads a future.
func DecodeFuture(r *codec.Reader) (*Future, error) {
	return decodeFuture(r, 0)
}

func decodeFuture(r *codec.Reader, depth int) (*Future, error) {
	if depth > maxFutureDepth {
		return nil, errs.New(errs.SerializationError, "future nesting too deep")
	}
	pid, err := DecodeProgramID(r)
	if err != nil {
		return nil, err
	}
	fn, err := DecodeIdentifier(r)
	if err != nil {
		return nil, err
	}
	args, err := codec.ReadSlice(r, func(r *codec.Reader) (Argument, error) {
		tag, err := r.U8()
		if err != nil {
			return Argument{}, err
		}
		switch tag {
		case 0:
			l, err := DecodeLiteral(r)
			if err != nil {
				return Argument{}, err
			}
			return PlaintextArgument(l), nil
		case 1:
			nested, err := decodeFuture(r, depth+1)
			if err != nil {
				return Argument{}, err
			}
			return FutureArgument(nested), nil
		}
		return Argument{}, errs.Newf(errs.SerializationError, "unknown argument tag %d", tag)
	})
	if err != nil {
		return nil, err
	}
	return &Future{Program: pid, Function: fn, Arguments: args}, nil
}

// Encode writes the value as a kind tag and payload.
func (v Value) Encode(w *codec.Writer) error {
	switch v.kind {
	case ValuePlaintext:
		w.U8(uint8(ValuePlaintext))
		return v.plaintext.Encode(w)
	case ValueRecord:
		w.U8(uint8(ValueRecord))
		return v.record.Encode(w)
	case ValueFuture:
		w.U8(uint8(ValueFuture))
		return v.future.Encode(w)
	}
	return errs.Newf(errs.SerializationError, "cannot encode value of kind %d", v.kind)
}

// DecodeValue reads a value.
func DecodeValue(r *codec.Reader) (Value, error) {
	tag, err := r.U8()
	if err != nil {
		return Value{}, err
	}
	switch ValueKind(tag) {
	case ValuePlaintext:
		l, err := DecodeLiteral(r)
		if err != nil {
			return Value{}, err
		}
		return PlaintextValue(l), nil
	case ValueRecord:
		rec, err := DecodeRecord(r)
		if err != nil {
			return Value{}, err
		}
		return RecordValue(rec), nil
	case ValueFuture:
		f, err := DecodeFuture(r)
		if err != nil {
			return Value{}, err
		}
		return FutureValue(f), nil
	}
	return Value{}, errs.Newf(errs.SerializationError, "unknown value tag %d", tag)
}

// Encode writes the value type.
func (t ValueType) Encode(w *codec.Writer) error {
	w.U8(uint8(t.Kind))
	switch t.Kind {
	case TypeConstant, TypePublic, TypePrivate:
		w.U8(uint8(t.Literal))
		return nil
	case TypeRecord:
		return t.Record.Encode(w)
	case TypeExternalRecord:
		if err := t.Program.Encode(w); err != nil {
			return err
		}
		return t.Record.Encode(w)
	case TypeFuture:
		if err := t.Program.Encode(w); err != nil {
			return err
		}
		return t.Function.Encode(w)
	}
	return errs.Newf(errs.SerializationError, "cannot encode type of kind %d", t.Kind)
}

// DecodeValueType reads a value type.
func DecodeValueType(r *codec.Reader) (ValueType, error) {
	tag, err := r.U8()
	if err != nil {
		return ValueType{}, err
	}
	kind := TypeKind(tag)
	switch kind {
	case TypeConstant, TypePublic, TypePrivate:
		lt, err := r.U8()
		if err != nil {
			return ValueType{}, err
		}
		if !LiteralType(lt).Valid() {
			return ValueType{}, errs.Newf(errs.SerializationError, "unknown literal tag %d", lt)
		}
		return ValueType{Kind: kind, Literal: LiteralType(lt)}, nil
	case TypeRecord:
		name, err := DecodeIdentifier(r)
		if err != nil {
			return ValueType{}, err
		}
		return RecordType(name), nil
	case TypeExternalRecord:
		pid, err := DecodeProgramID(r)
		if err != nil {
			return ValueType{}, err
		}
		name, err := DecodeIdentifier(r)
		if err != nil {
			return ValueType{}, err
		}
		return ExternalRecordType(pid, name), nil
	case TypeFuture:
		pid, err := DecodeProgramID(r)
		if err != nil {
			return ValueType{}, err
		}
		fn, err := DecodeIdentifier(r)
		if err != nil {
			return ValueType{}, err
		}
		return FutureType(pid, fn), nil
	}
	return ValueType{}, errs.Newf(errs.SerializationError, "unknown type tag %d", tag)
}

// Encode writes the register locator.
func (reg Register) Encode(w *codec.Writer) error {
	w.U16(uint16(reg))
	return nil
}

// DecodeRegister reads a register.
func DecodeRegister(r *codec.Reader) (Register, error) {
	v, err := r.U16()
	return Register(v), err
}
