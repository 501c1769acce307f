package process

import (
	"fmt"
	"math/bits"

	"github.com/vybium/vybium-crypto/pkg/vybium-crypto/field"
	"github.com/vybium/vybium-crypto/pkg/vybium-crypto/hash"

	"github.com/vybium/vybium-ledger/internal/vybium-ledger/account"
	"github.com/vybium/vybium-ledger/internal/vybium-ledger/core"
	"github.com/vybium/vybium-ledger/internal/vybium-ledger/errs"
	"github.com/vybium/vybium-ledger/internal/vybium-ledger/ledger"
	"github.com/vybium/vybium-ledger/internal/vybium-ledger/program"
	"github.com/vybium/vybium-ledger/internal/vybium-ledger/vm"
)

// function is the native implementation of one credits function.
//
// load reads a call's values and expected recomputes its outputs; together
// they replay a transition on the prover. instance reads the public values
// a proof is about from a public transition and checks the relations between
// them that need no secret. build runs the function as a VM program over an
// instance and a witness. The verifier builds it with a zero witness: the
// instruction sequence, and so the verifying key, never depends on it.
type function interface {
	load(signer account.Address, inputs, outputs []program.Value) error
	expected() []program.Value
	secrets(w *witness)
	instance(pt *ledger.PublicTransition) (*instance, error)
	build(in *instance, w *witness) *vm.Program
}

// instance holds the public values a credits program reads.
type instance struct {
	signer   account.Address
	tcm      core.Digest
	amount   uint64 // transferred amount, or the base fee
	priority uint64
	total    uint64
	record   core.Digest // consumed record commitment
	tag      core.Digest
	change   core.Digest // change record commitment
}

// witness holds the secrets of one call.
type witness struct {
	tvk     core.Digest
	skTag   core.Digest
	balance uint64
	nonce   core.Digest // nonce of the consumed record
	change  uint64
}

func newFunction(fn *program.Function) (function, error) {
	switch fn.Name {
	case program.FunctionTransferPublic:
		return &transferPublic{}, nil
	case program.FunctionTransferPrivateToPublic:
		return &transferPrivateToPublic{changeRegister: fn.OutputRegisters[0]}, nil
	case program.FunctionFeePublic:
		return &feePublic{}, nil
	}
	return nil, errs.Newf(errs.MalformedAuthorization, "no native implementation of %s", fn.Name)
}

// transfer_public(recipient, amount) -> future(caller, recipient, amount)
type transferPublic struct {
	signer    account.Address
	recipient account.Address
	amount    uint64
}

func (f *transferPublic) load(signer account.Address, inputs, outputs []program.Value) error {
	f.signer = signer
	var err error
	if f.recipient, err = literalAt(inputs, 0, program.Literal.Address); err != nil {
		return err
	}
	f.amount, err = literalAt(inputs, 1, program.Literal.U64)
	return err
}

func (f *transferPublic) expected() []program.Value {
	return []program.Value{program.FutureValue(&program.Future{
		Program:  program.CreditsID,
		Function: program.FunctionTransferPublic,
		Arguments: []program.Argument{
			program.PlaintextArgument(program.AddressLiteral(f.signer)),
			program.PlaintextArgument(program.AddressLiteral(f.recipient)),
			program.PlaintextArgument(program.U64Literal(f.amount)),
		},
	})}
}

func (f *transferPublic) secrets(*witness) {}

func (f *transferPublic) instance(pt *ledger.PublicTransition) (*instance, error) {
	recipient, err := publicLiteral(pt, 0, program.Literal.Address)
	if err != nil {
		return nil, err
	}
	amount, err := publicLiteral(pt, 1, program.Literal.U64)
	if err != nil {
		return nil, err
	}
	args, err := publicFuture(pt, 0, 3)
	if err != nil {
		return nil, err
	}
	if err := sameArgs(args,
		program.AddressLiteral(pt.Signer),
		program.AddressLiteral(recipient),
		program.U64Literal(amount),
	); err != nil {
		return nil, err
	}
	return &instance{signer: pt.Signer, tcm: pt.TCM, amount: amount}, nil
}

func (f *transferPublic) build(in *instance, w *witness) *vm.Program {
	p := vm.New()
	openTranscript(p, in.tcm, w.tvk)
	return p
}

// transfer_private_to_public(record, recipient, amount)
//
//	-> change record, future(recipient, amount)
type transferPrivateToPublic struct {
	changeRegister program.Register

	signer    account.Address
	record    *program.Record
	balance   uint64
	recipient account.Address
	amount    uint64
	change    uint64
}

func (f *transferPrivateToPublic) load(signer account.Address, inputs, outputs []program.Value) error {
	f.signer = signer
	rec, err := recordAt(inputs, 0)
	if err != nil {
		return err
	}
	if err := checkCreditsRecord(rec, signer); err != nil {
		return errs.Wrap(errs.MalformedAuthorization, "record input", err)
	}
	f.record = rec
	if f.balance, err = rec.Microcredits(); err != nil {
		return errs.Wrap(errs.MalformedAuthorization, "record input", err)
	}
	if f.recipient, err = literalAt(inputs, 1, program.Literal.Address); err != nil {
		return err
	}
	if f.amount, err = literalAt(inputs, 2, program.Literal.U64); err != nil {
		return err
	}
	// An overdraft wraps here and fails the balance constraint of the program.
	f.change = f.balance - f.amount
	return nil
}

func (f *transferPrivateToPublic) expected() []program.Value {
	return []program.Value{
		program.RecordValue(program.NewCreditsRecord(f.signer, f.change)),
		program.FutureValue(&program.Future{
			Program:  program.CreditsID,
			Function: program.FunctionTransferPrivateToPublic,
			Arguments: []program.Argument{
				program.PlaintextArgument(program.AddressLiteral(f.recipient)),
				program.PlaintextArgument(program.U64Literal(f.amount)),
			},
		}),
	}
}

func (f *transferPrivateToPublic) secrets(w *witness) {
	w.balance = f.balance
	w.nonce = f.record.Nonce
	w.change = f.change
}

func (f *transferPrivateToPublic) instance(pt *ledger.PublicTransition) (*instance, error) {
	if len(pt.InputIDs) == 0 || pt.InputIDs[0].Kind != ledger.InputRecord {
		return nil, errs.Newf(errs.ProofFailure, "%s: input 0 is not a record", pt.Locator())
	}
	if len(pt.OutputIDs) == 0 || pt.OutputIDs[0].Kind != ledger.OutputRecord {
		return nil, errs.Newf(errs.ProofFailure, "%s: output 0 is not a record", pt.Locator())
	}
	recipient, err := publicLiteral(pt, 1, program.Literal.Address)
	if err != nil {
		return nil, err
	}
	amount, err := publicLiteral(pt, 2, program.Literal.U64)
	if err != nil {
		return nil, err
	}
	args, err := publicFuture(pt, 1, 2)
	if err != nil {
		return nil, err
	}
	if err := sameArgs(args, program.AddressLiteral(recipient), program.U64Literal(amount)); err != nil {
		return nil, err
	}
	return &instance{
		signer: pt.Signer,
		tcm:    pt.TCM,
		amount: amount,
		record: pt.InputIDs[0].ID,
		tag:    pt.InputIDs[0].Tag,
		change: pt.OutputIDs[0].ID,
	}, nil
}

// build proves that the consumed record is a credits record of the signer
// holding balance, that tag is its serial number under the signer's tag key,
// and that the change record holds balance - amount under the nonce derived
// from the view key.
func (f *transferPrivateToPublic) build(in *instance, w *witness) *vm.Program {
	p := vm.New()
	bLo, bHi := limbs(w.balance)
	p.Divine(bHi)
	p.Divine(bLo)
	p.RangeCheck32(0, "balance.lo")
	p.RangeCheck32(1, "balance.hi")

	// [balance.lo, balance.hi, nonce, 0 x4] on top of the balance
	pushZeros(p, 4)
	divineDigest(p, w.nonce)
	p.Dup(10)
	p.Dup(10)
	commitRecord(p, in.signer, in.record, "record")

	pushZeros(p, 4)
	readDigest(p, in.record)
	divineDigest(p, w.skTag)
	p.Push(field.New(2 * hash.DigestLen))
	p.Push(core.DomainElement(ledger.DomainRecordTag))
	p.SpongeInit()
	p.SpongeAbsorb()
	p.Permute()
	p.SpongeAbsorb()
	p.Permute()
	p.SpongeSqueeze()
	p.AssertDigest(in.tag, "tag")

	pushZeros(p, 4)
	openTranscript(p, in.tcm, w.tvk)
	deriveNonce(p, f.changeRegister)

	cLo, cHi := limbs(w.change)
	p.Divine(cHi)
	p.Divine(cLo)
	p.RangeCheck32(0, "change.lo")
	p.RangeCheck32(1, "change.hi")

	// amount + change == balance, carrying k out of the low limb.
	// Stack: [k, change.lo, change.hi, nonce, 0 x4, balance.lo, balance.hi]
	aLo, aHi := limbs(in.amount)
	p.Push(field.Zero)
	p.Bit((aLo.Value()+cLo.Value())>>32 == 1)
	p.Dup(1)
	p.ReadIo(aLo)
	p.Add()
	p.Dup(1)
	p.Push(two32)
	p.Mul()
	p.Dup(14)
	p.Add()
	p.AssertEq("balance.lo")
	p.Dup(2)
	p.Dup(1)
	p.Add()
	p.ReadIo(aHi)
	p.Add()
	p.Dup(14)
	p.AssertEq("balance.hi")
	p.Pop()

	commitRecord(p, in.signer, in.change, "change")
	return p
}

// fee_public(base, priority, execution_id) -> future(caller, base + priority)
type feePublic struct {
	signer   account.Address
	base     uint64
	priority uint64
}

func (f *feePublic) load(signer account.Address, inputs, outputs []program.Value) error {
	f.signer = signer
	var err error
	if f.base, err = literalAt(inputs, 0, program.Literal.U64); err != nil {
		return err
	}
	if f.priority, err = literalAt(inputs, 1, program.Literal.U64); err != nil {
		return err
	}
	if _, carry := bits.Add64(f.base, f.priority, 0); carry != 0 {
		return errs.New(errs.MalformedAuthorization, "fee total overflows u64")
	}
	_, err = literalAt(inputs, 2, program.Literal.Digest)
	return err
}

func (f *feePublic) expected() []program.Value {
	return []program.Value{program.FutureValue(&program.Future{
		Program:  program.CreditsID,
		Function: program.FunctionFeePublic,
		Arguments: []program.Argument{
			program.PlaintextArgument(program.AddressLiteral(f.signer)),
			program.PlaintextArgument(program.U64Literal(f.base + f.priority)),
		},
	})}
}

func (f *feePublic) secrets(*witness) {}

func (f *feePublic) instance(pt *ledger.PublicTransition) (*instance, error) {
	base, err := publicLiteral(pt, ledger.FeeInputBase, program.Literal.U64)
	if err != nil {
		return nil, err
	}
	priority, err := publicLiteral(pt, ledger.FeeInputPriority, program.Literal.U64)
	if err != nil {
		return nil, err
	}
	if _, err := publicLiteral(pt, ledger.FeeInputExecutionID, program.Literal.Digest); err != nil {
		return nil, err
	}
	total, carry := bits.Add64(base, priority, 0)
	if carry != 0 {
		return nil, errs.Newf(errs.ProofFailure, "%s: fee total overflows u64", pt.Locator())
	}
	args, err := publicFuture(pt, 0, 2)
	if err != nil {
		return nil, err
	}
	if err := sameArgs(args, program.AddressLiteral(pt.Signer), program.U64Literal(total)); err != nil {
		return nil, err
	}
	return &instance{signer: pt.Signer, tcm: pt.TCM, amount: base, priority: priority, total: total}, nil
}

func (f *feePublic) build(in *instance, w *witness) *vm.Program {
	p := vm.New()
	openTranscript(p, in.tcm, w.tvk)

	// base + priority == total with no carry out of the high limb
	bLo, bHi := limbs(in.amount)
	pLo, pHi := limbs(in.priority)
	tLo, tHi := limbs(in.total)
	p.Push(field.Zero)
	p.Bit((bLo.Value()+pLo.Value())>>32 == 1)
	p.ReadIo(bLo)
	p.ReadIo(pLo)
	p.Add()
	p.ReadIo(tLo)
	p.Dup(2)
	p.Push(two32)
	p.Mul()
	p.Add()
	p.AssertEq("total.lo")
	p.ReadIo(bHi)
	p.ReadIo(pHi)
	p.Add()
	p.Dup(1)
	p.Add()
	p.ReadIo(tHi)
	p.AssertEq("total.hi")
	p.Pop()
	return p
}

var two32 = field.New(1 << 32)

// Credits record commitments hash a 28 element frame: domain and length,
// program id and record name, then the record. The first two blocks and the
// entry header hold only public values.
const (
	recordFrameLen   = 2 + 4 + 2 + 20
	recordPublicLen  = 2 * core.PoseidonRate
	recordEntryLanes = 5
)

// recordState returns the sponge of a credits record commitment owned by
// owner after its public blocks, with the entry header of the third block
// already added to the rate lanes.
func recordState(owner account.Address) core.PoseidonState {
	elems := program.CreditsID.Elements()
	elems = append(elems, program.CreditsRecord.Elements()...)
	elems = append(elems, program.NewCreditsRecord(owner, 0).Elements()...)
	frame := core.PoseidonFrame(program.RecordCommitmentDomain, elems...)
	if len(frame) != recordFrameLen {
		panic(fmt.Sprintf("process: credits record frame has %d elements", len(frame)))
	}
	sp := core.NewSponge()
	sp.Absorb(frame[:recordPublicLen])
	s := sp.State()
	for i := 0; i < recordEntryLanes; i++ {
		s[i] = s[i].Add(frame[recordPublicLen+i])
	}
	return s
}

// checkCreditsRecord rejects records whose public layout differs from the
// one recordState assumes.
func checkCreditsRecord(rec *program.Record, owner account.Address) error {
	if rec.Owner != owner {
		return fmt.Errorf("record is not owned by the signer")
	}
	want := program.NewCreditsRecord(owner, 0)
	if rec.OwnerVisibility != want.OwnerVisibility || len(rec.Entries) != len(want.Entries) {
		return fmt.Errorf("record layout differs from a credits record")
	}
	for i, e := range want.Entries {
		got := rec.Entries[i]
		if got.Name != e.Name || got.Visibility != e.Visibility {
			return fmt.Errorf("record entry %d differs from a credits record", i)
		}
	}
	return nil
}

// commitRecord consumes [lo, hi, nonce, 0 x4] from the top of the stack and
// checks that the credits record of owner they complete commits to want.
func commitRecord(p *vm.Program, owner account.Address, want core.Digest, label string) {
	pushZeros(p, recordEntryLanes)
	p.SpongeLoad(recordState(owner))
	p.SpongeAbsorb()
	p.Permute()
	p.SpongeAbsorb()
	p.Permute()
	p.SpongeSqueeze()
	p.AssertDigest(want, label)
}

// openTranscript proves knowledge of the view key behind tcm. The sponge
// keeps the state deriveNonce continues from.
func openTranscript(p *vm.Program, tcm, tvk core.Digest) {
	p.Push(field.Zero)
	divineDigest(p, tvk)
	p.Push(field.New(hash.DigestLen))
	p.Push(core.DomainElement(ledger.DomainTCM))
	p.SpongeInit()
	p.SpongeAbsorb()
	p.Permute()
	p.SpongeSqueeze()
	p.AssertDigest(tcm, "tcm")
}

// deriveNonce pushes the nonce of the record output at reg.
func deriveNonce(p *vm.Program, reg program.Register) {
	pushZeros(p, core.PoseidonRate-1)
	p.Push(reg.Element())
	p.SpongeAbsorb()
	p.Permute()
	p.SpongeSqueeze()
}

func pushZeros(p *vm.Program, n int) {
	for i := 0; i < n; i++ {
		p.Push(field.Zero)
	}
}

// divineDigest and readDigest leave lane 0 on top.
func divineDigest(p *vm.Program, d core.Digest) {
	for i := len(d) - 1; i >= 0; i-- {
		p.Divine(d[i])
	}
}

func readDigest(p *vm.Program, d core.Digest) {
	for i := len(d) - 1; i >= 0; i-- {
		p.ReadIo(d[i])
	}
}

func limbs(v uint64) (lo, hi field.Element) {
	e := core.U64ToElements(v)
	return e[0], e[1]
}

func literalAt[T any](values []program.Value, i int, get func(program.Literal) (T, error)) (T, error) {
	var zero T
	if i >= len(values) {
		return zero, errs.Newf(errs.MalformedAuthorization, "missing value %d", i)
	}
	l, err := values[i].Plaintext()
	if err != nil {
		return zero, errs.Wrap(errs.MalformedAuthorization, fmt.Sprintf("value %d", i), err)
	}
	v, err := get(l)
	if err != nil {
		return zero, errs.Wrap(errs.MalformedAuthorization, fmt.Sprintf("value %d", i), err)
	}
	return v, nil
}

func recordAt(values []program.Value, i int) (*program.Record, error) {
	if i >= len(values) {
		return nil, errs.Newf(errs.MalformedAuthorization, "missing value %d", i)
	}
	rec, err := values[i].Record()
	if err != nil {
		return nil, errs.Wrap(errs.MalformedAuthorization, fmt.Sprintf("value %d", i), err)
	}
	return rec, nil
}

func futureArgs(values []program.Value, i, n int) ([]program.Literal, error) {
	if i >= len(values) {
		return nil, errs.Newf(errs.MalformedAuthorization, "missing value %d", i)
	}
	f, err := values[i].Future()
	if err != nil {
		return nil, errs.Wrap(errs.MalformedAuthorization, fmt.Sprintf("value %d", i), err)
	}
	if len(f.Arguments) != n {
		return nil, errs.Newf(errs.MalformedAuthorization, "future %s has %d arguments, want %d", f.Locator(), len(f.Arguments), n)
	}
	out := make([]program.Literal, n)
	for j, a := range f.Arguments {
		if a.Plaintext == nil {
			return nil, errs.Newf(errs.MalformedAuthorization, "future %s argument %d is not a plaintext", f.Locator(), j)
		}
		out[j] = *a.Plaintext
	}
	return out, nil
}

// publicLiteral reads the revealed input at index.
func publicLiteral[T any](pt *ledger.PublicTransition, index int, get func(program.Literal) (T, error)) (T, error) {
	var zero T
	v, ok := pt.PublicInput(index)
	if !ok {
		return zero, errs.Newf(errs.ProofFailure, "%s: input %d is not revealed", pt.Locator(), index)
	}
	out, err := literalAt([]program.Value{v}, 0, get)
	if err != nil {
		return zero, errs.Wrap(errs.ProofFailure, fmt.Sprintf("%s: input %d", pt.Locator(), index), err)
	}
	return out, nil
}

// publicFuture reads the arguments of the future revealed as output index.
// The future must finalize the transition's own function.
func publicFuture(pt *ledger.PublicTransition, index, n int) ([]program.Literal, error) {
	for _, pv := range pt.PublicOutputs {
		if int(pv.Index) != index {
			continue
		}
		if f, err := pv.Value.Future(); err == nil && f.Locator() != pt.Locator() {
			return nil, errs.Newf(errs.ProofFailure, "%s: output %d finalizes %s", pt.Locator(), index, f.Locator())
		}
		args, err := futureArgs([]program.Value{pv.Value}, 0, n)
		if err != nil {
			return nil, errs.Wrap(errs.ProofFailure, fmt.Sprintf("%s: output %d", pt.Locator(), index), err)
		}
		return args, nil
	}
	return nil, errs.Newf(errs.ProofFailure, "%s: output %d is not revealed", pt.Locator(), index)
}

// sameArgs checks future arguments against the values the function computes
// from its public inputs.
func sameArgs(args []program.Literal, want ...program.Literal) error {
	for i, l := range want {
		if !args[i].Equal(l) {
			return errs.Newf(errs.ProofFailure, "future argument %d is %s, want %s", i, args[i], l)
		}
	}
	return nil
}
