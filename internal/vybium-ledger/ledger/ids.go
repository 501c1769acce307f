// Package ledger defines the signed and proven artifacts that move between
// the signer, the prover and the ledger: requests, responses, transitions,
// authorizations, state paths, executions, fees and transactions.
package ledger

import (
	"github.com/vybium/vybium-crypto/pkg/vybium-crypto/field"

	"github.com/vybium/vybium-ledger/internal/vybium-ledger/core"
	"github.com/vybium/vybium-ledger/internal/vybium-ledger/errs"
	"github.com/vybium/vybium-ledger/internal/vybium-ledger/program"
)

// Domains of the Poseidon derivations that proofs recompute.
const (
	DomainTCM       = "vybium.request.tcm"
	DomainRecordTag = "vybium.record.tag"
)

const (
	domainTVK       = "vybium.request.tvk"
	domainSKTag     = "vybium.account.sk_tag"
	domainInput     = "vybium.request.input"
	domainOutput    = "vybium.response.output"
	domainSignature = "vybium.request.signature.v1"
	domainTransID   = "vybium.transition.id"
)

// InputKind classifies an input id.
type InputKind uint8

const (
	InputConstant InputKind = iota + 1
	InputPublic
	InputPrivate
	InputRecord
	InputExternalRecord
)

func (k InputKind) String() string {
	switch k {
	case InputConstant:
		return "constant"
	case InputPublic:
		return "public"
	case InputPrivate:
		return "private"
	case InputRecord:
		return "record"
	case InputExternalRecord:
		return "external_record"
	}
	return "unknown"
}

// InputID commits to one request input. Record inputs carry the record
// commitment as ID and its serial number as Tag.
type InputID struct {
	Kind InputKind
	ID   core.Digest
	Tag  core.Digest
}

// Equal reports whether two input ids are identical.
func (i InputID) Equal(other InputID) bool {
	return i.Kind == other.Kind && i.ID.Equal(other.ID) && i.Tag.Equal(other.Tag)
}

// OutputKind classifies an output id.
type OutputKind uint8

const (
	OutputConstant OutputKind = iota + 1
	OutputPublic
	OutputPrivate
	OutputRecord
	OutputExternalRecord
	OutputFuture
)

func (k OutputKind) String() string {
	switch k {
	case OutputConstant:
		return "constant"
	case OutputPublic:
		return "public"
	case OutputPrivate:
		return "private"
	case OutputRecord:
		return "record"
	case OutputExternalRecord:
		return "external_record"
	case OutputFuture:
		return "future"
	}
	return "unknown"
}

// OutputID commits to one response output.
type OutputID struct {
	Kind OutputKind
	ID   core.Digest
}

// Equal reports whether two output ids are identical.
func (o OutputID) Equal(other OutputID) bool {
	return o.Kind == other.Kind && o.ID.Equal(other.ID)
}

func inputKind(t program.ValueType) InputKind {
	switch t.Kind {
	case program.TypeConstant:
		return InputConstant
	case program.TypePublic:
		return InputPublic
	case program.TypePrivate:
		return InputPrivate
	case program.TypeRecord:
		return InputRecord
	}
	return InputExternalRecord
}

func outputKind(t program.ValueType) OutputKind {
	switch t.Kind {
	case program.TypeConstant:
		return OutputConstant
	case program.TypePublic:
		return OutputPublic
	case program.TypePrivate:
		return OutputPrivate
	case program.TypeRecord:
		return OutputRecord
	case program.TypeExternalRecord:
		return OutputExternalRecord
	}
	return OutputFuture
}

// PublicInputID is the id of a constant or public input. It depends only on
// public data, so verifiers can recompute it.
func PublicInputID(kind InputKind, loc program.Locator, tcm core.Digest, index int, value program.Value) core.Digest {
	elems := []field.Element{field.New(uint64(kind))}
	elems = append(elems, loc.Elements()...)
	elems = append(elems, tcm[:]...)
	elems = append(elems, field.New(uint64(index)))
	elems = append(elems, value.Elements()...)
	return core.HashElements(domainInput, elems...)
}

func hiddenInputID(kind InputKind, tvk core.Digest, index int, value program.Value) core.Digest {
	elems := []field.Element{field.New(uint64(kind))}
	elems = append(elems, tvk[:]...)
	elems = append(elems, field.New(uint64(index)))
	elems = append(elems, value.Elements()...)
	return core.HashElements(domainInput, elems...)
}

// PublicOutputID is the id of a constant, public or future output.
func PublicOutputID(kind OutputKind, loc program.Locator, tcm core.Digest, reg program.Register, value program.Value) core.Digest {
	elems := []field.Element{field.New(uint64(kind))}
	elems = append(elems, loc.Elements()...)
	elems = append(elems, tcm[:]...)
	elems = append(elems, reg.Element())
	elems = append(elems, value.Elements()...)
	return core.HashElements(domainOutput, elems...)
}

func hiddenOutputID(tvk core.Digest, reg program.Register, value program.Value) core.Digest {
	elems := []field.Element{field.New(uint64(OutputPrivate))}
	elems = append(elems, tvk[:]...)
	elems = append(elems, reg.Element())
	elems = append(elems, value.Elements()...)
	return core.HashElements(domainOutput, elems...)
}

// TranscriptCommitment commits to a transcript view key.
func TranscriptCommitment(tvk core.Digest) core.Digest {
	return core.PoseidonHash(DomainTCM, tvk[:]...)
}

// RecordTag is the serial number of a consumed record.
func RecordTag(skTag, commitment core.Digest) core.Digest {
	elems := append(skTag.Elements(), commitment[:]...)
	return core.PoseidonHash(DomainRecordTag, elems...)
}

// RecordNonce derives the nonce of the record output at register reg. It is a
// pure function of the transcript view key and the register locator: the
// sponge that produced the transcript commitment absorbs one more block
// holding the register.
func RecordNonce(tvk core.Digest, reg program.Register) core.Digest {
	sp := core.NewSponge()
	sp.Absorb(core.PoseidonFrame(DomainTCM, tvk[:]...))
	sp.AbsorbBlock([core.PoseidonRate]field.Element{reg.Element()})
	return sp.Squeeze()
}

func computeInputIDs(loc program.Locator, tvk, tcm, skTag core.Digest, inputs []program.Value, types []program.ValueType) ([]InputID, error) {
	ids := make([]InputID, len(inputs))
	for i, v := range inputs {
		t := types[i]
		kind := inputKind(t)
		switch t.Kind {
		case program.TypeConstant, program.TypePublic:
			ids[i] = InputID{Kind: kind, ID: PublicInputID(kind, loc, tcm, i, v)}
		case program.TypePrivate, program.TypeExternalRecord:
			ids[i] = InputID{Kind: kind, ID: hiddenInputID(kind, tvk, i, v)}
		case program.TypeRecord:
			rec, err := v.Record()
			if err != nil {
				return nil, err
			}
			commitment := rec.Commitment(loc.Program, t.Record)
			ids[i] = InputID{Kind: kind, ID: commitment, Tag: RecordTag(skTag, commitment)}
		default:
			return nil, errs.Newf(errs.TypeMismatch, "input %d has unsupported type %s", i, t)
		}
	}
	return ids, nil
}
