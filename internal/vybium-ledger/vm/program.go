package vm

import (
	"fmt"

	"github.com/vybium/vybium-crypto/pkg/vybium-crypto/field"
	"github.com/vybium/vybium-crypto/pkg/vybium-crypto/hash"

	"github.com/vybium/vybium-ledger/internal/vybium-ledger/core"
	"github.com/vybium/vybium-ledger/internal/vybium-ledger/stark"
)

// Trace layout.
const (
	// StackSize is the number of stack registers in a row.
	StackSize = 20
	// DupReach bounds the depth Dup can copy from.
	DupReach = 16
	// MinHeight is the smallest trace height.
	MinHeight = 16

	spongeCol  = StackSize
	hintCol    = spongeCol + core.PoseidonWidth
	traceWidth = hintCol + 1

	spongeRate = core.PoseidonRate
	digestLen  = hash.DigestLen
)

// Preprocessed column layout: one selector per instruction effect plus the
// round constants, which SpongeLoad reuses for the loaded state.
const (
	colA    = 0
	colDiv  = 1
	colDup  = 2
	colGrow = colDup + DupReach
)

const (
	colAdd = colGrow + 1 + iota
	colMul
	colPop
	colAssert
	colAbsorb
	colSqueeze
	colKeep
	colBit
	colInit
	colLoad
	colFull
	colPartial
	colRC
)

const numPreprocessed = colRC + core.PoseidonWidth

const programDomain = "vybium.vm.program"

type op struct {
	inst  Instruction
	arg   int
	value field.Element
	state core.PoseidonState
}

// selectors returns the preprocessed row of o.
func (o *op) selectors() []field.Element {
	row := make([]field.Element, numPreprocessed)
	one := field.One
	switch o.inst {
	case Push, ReadIo:
		row[colA], row[colGrow] = o.value, one
	case Divine:
		row[colDiv], row[colGrow] = one, one
	case Dup:
		row[colDup+o.arg], row[colGrow] = one, one
	case Pop:
		row[colPop] = one
	case Add:
		row[colAdd] = one
	case Mul:
		row[colMul] = one
	case AssertEq:
		row[colAssert] = one
	case Bit:
		row[colKeep], row[colBit] = one, one
	case SpongeInit:
		row[colInit], row[colKeep] = one, one
	case SpongeLoad:
		row[colLoad], row[colKeep] = one, one
		copy(row[colRC:], o.state[:])
	case SpongeAbsorb:
		row[colAbsorb] = one
	case SpongeSqueeze:
		row[colSqueeze] = one
	case FullRound, PartialRound:
		if o.inst == FullRound {
			row[colFull] = one
		} else {
			row[colPartial] = one
		}
		rc := core.PoseidonRoundConstants(o.arg)
		copy(row[colRC:], rc[:])
		row[colKeep] = one
	case Nop:
		row[colKeep] = one
	}
	return row
}

// Program is a straight-line VM program together with its execution. Build
// it with the instruction methods, then call Finish before using it as an
// AIR.
//
// Shape errors (stack overflow or underflow, bad Dup depth) are reported by
// Err and make the program unusable. Failed assertions are reported by
// Unsatisfied: the program still has a well-defined shape, which is what a
// verifier rebuilding it without secrets relies on.
type Program struct {
	ops    []op
	pre    [][]field.Element // per op
	rows   [][]field.Element // state before each op
	state  []field.Element
	depth  int
	public []field.Element

	err      error
	unsat    error
	finished bool
	height   int
	columns  [][]field.Element
	preCols  [][]field.Element
}

// New returns an empty program with a zero state.
func New() *Program {
	return &Program{state: make([]field.Element, traceWidth)}
}

func (p *Program) exec(o op, hint field.Element) {
	if p.err != nil {
		return
	}
	if p.finished {
		p.err = fmt.Errorf("vm: %s after Finish", o.inst)
		return
	}
	if o.inst == Dup && (o.arg < 0 || o.arg >= DupReach) {
		p.err = fmt.Errorf("vm: dup %d out of reach", o.arg)
		return
	}
	need, delta := o.inst.stack(o.arg)
	if p.depth < need {
		p.err = fmt.Errorf("vm: %s at op %d needs %d stack elements, have %d", o.inst, len(p.ops), need, p.depth)
		return
	}
	if p.depth+delta > StackSize {
		p.err = fmt.Errorf("vm: %s at op %d overflows the stack", o.inst, len(p.ops))
		return
	}

	row := append([]field.Element(nil), p.state...)
	row[hintCol] = hint
	sel := o.selectors()
	if p.unsat == nil {
		switch o.inst {
		case AssertEq:
			if !row[0].Equal(row[1]) {
				p.unsat = fmt.Errorf("vm: assertion failed at op %d", len(p.ops))
			}
		case Bit:
			if !hint.IsZero() && !hint.IsOne() {
				p.unsat = fmt.Errorf("vm: hint at op %d is not a bit", len(p.ops))
			}
		}
	}
	next := make([]field.Element, traceWidth)
	transition(row, sel, next)

	p.ops = append(p.ops, o)
	p.pre = append(p.pre, sel)
	p.rows = append(p.rows, row)
	p.state = next
	p.depth += delta
	if o.inst == ReadIo {
		p.public = append(p.public, o.value)
	}
	if o.inst == SpongeLoad {
		p.public = append(p.public, o.state[:]...)
	}
}

// Push pushes the program constant v.
func (p *Program) Push(v field.Element) { p.exec(op{inst: Push, value: v}, field.Zero) }

// ReadIo pushes the public input v.
func (p *Program) ReadIo(v field.Element) { p.exec(op{inst: ReadIo, value: v}, field.Zero) }

// Divine pushes the secret v.
func (p *Program) Divine(v field.Element) { p.exec(op{inst: Divine}, v) }

// Dup pushes a copy of stack[i].
func (p *Program) Dup(i int) { p.exec(op{inst: Dup, arg: i}, field.Zero) }

// Pop drops the top of the stack.
func (p *Program) Pop() { p.exec(op{inst: Pop}, field.Zero) }

// Add replaces the top two elements with their sum.
func (p *Program) Add() { p.exec(op{inst: Add}, field.Zero) }

// Mul replaces the top two elements with their product.
func (p *Program) Mul() { p.exec(op{inst: Mul}, field.Zero) }

// AssertEq pops two elements that must be equal. label names the failure.
func (p *Program) AssertEq(label string) {
	before := p.unsat
	p.exec(op{inst: AssertEq}, field.Zero)
	if before == nil && p.unsat != nil {
		p.unsat = fmt.Errorf("%w: %s", p.unsat, label)
	}
}

// Bit shifts bit into the top of the stack.
func (p *Program) Bit(bit bool) { p.exec(op{inst: Bit}, core.BoolToElement(bit)) }

// SpongeInit zeroes the sponge.
func (p *Program) SpongeInit() { p.exec(op{inst: SpongeInit}, field.Zero) }

// SpongeLoad sets the sponge to the public state s.
func (p *Program) SpongeLoad(s core.PoseidonState) { p.exec(op{inst: SpongeLoad, state: s}, field.Zero) }

// SpongeAbsorb pops eight elements into the rate lanes, stack top first.
func (p *Program) SpongeAbsorb() { p.exec(op{inst: SpongeAbsorb}, field.Zero) }

// SpongeSqueeze pushes the digest lanes, lane 0 on top.
func (p *Program) SpongeSqueeze() { p.exec(op{inst: SpongeSqueeze}, field.Zero) }

// Permute applies the Poseidon permutation to the sponge, one row per round.
func (p *Program) Permute() {
	for r := 0; r < core.PoseidonRounds; r++ {
		inst := PartialRound
		if core.PoseidonFullRound(r) {
			inst = FullRound
		}
		p.exec(op{inst: inst, arg: r}, field.Zero)
	}
}

// AssertDigest pops a digest, lane 0 on top, and checks it against the
// public digest d.
func (p *Program) AssertDigest(d core.Digest, label string) {
	for i, e := range d {
		p.ReadIo(e)
		p.AssertEq(fmt.Sprintf("%s[%d]", label, i))
	}
}

// RangeCheck32 proves that stack[i] is below 2^32 by rebuilding it from 32
// secret bits. The stack is unchanged.
func (p *Program) RangeCheck32(i int, label string) {
	v := uint64(0)
	if i >= 0 && i < StackSize {
		v = p.state[i].Value()
	}
	p.Dup(i)
	p.Push(field.Zero)
	for k := 31; k >= 0; k-- {
		p.Bit((v>>k)&1 == 1)
	}
	p.AssertEq(label)
}

// Peek returns stack[i] of the current state.
func (p *Program) Peek(i int) field.Element {
	return p.state[i]
}

// Depth returns the number of live stack elements.
func (p *Program) Depth() int { return p.depth }

// Len returns the number of instructions, padding included once finished.
func (p *Program) Len() int { return len(p.ops) }

// Err returns the first shape error.
func (p *Program) Err() error { return p.err }

// Unsatisfied returns the first failed assertion.
func (p *Program) Unsatisfied() error { return p.unsat }

// Public returns the public inputs in the order the program reads them.
func (p *Program) Public() []field.Element {
	return append([]field.Element(nil), p.public...)
}

// Finish pads the program with Nop to a power-of-two trace height and lays
// out the trace. Further instructions are shape errors.
func (p *Program) Finish() error {
	if p.err != nil {
		return p.err
	}
	if p.finished {
		return nil
	}
	height := MinHeight
	for height < len(p.ops)+1 {
		height *= 2
	}
	for len(p.ops)+1 < height {
		p.exec(op{inst: Nop}, field.Zero)
	}
	p.finished = true
	p.height = height

	last := append([]field.Element(nil), p.state...)
	rows := append(p.rows, last)
	p.columns = make([][]field.Element, traceWidth)
	for c := range p.columns {
		col := make([]field.Element, height)
		for r, row := range rows {
			col[r] = row[c]
		}
		p.columns[c] = col
	}
	p.preCols = make([][]field.Element, numPreprocessed)
	for c := range p.preCols {
		col := make([]field.Element, height)
		for r, row := range p.pre {
			col[r] = row[c]
		}
		p.preCols[c] = col
	}
	return nil
}

// Digest identifies the program's shape: its instructions, their arguments
// and constants, and the trace height. Secret and public input values do not
// enter it, so it serves as the verifying key of every call of a function.
func (p *Program) Digest() core.Digest {
	elems := []field.Element{
		field.New(StackSize),
		field.New(uint64(p.height)),
		field.New(uint64(len(p.ops))),
	}
	for _, o := range p.ops {
		elems = append(elems, field.New(uint64(o.inst)), field.New(uint64(o.arg)))
		if o.inst == Push {
			elems = append(elems, o.value)
		}
	}
	return core.HashElements(programDomain, elems...)
}

// Trace returns the execution trace, column major.
func (p *Program) Trace() [][]field.Element { return p.columns }

// Width implements stark.AIR.
func (p *Program) Width() int { return traceWidth }

// Height implements stark.AIR.
func (p *Program) Height() int { return p.height }

// Preprocessed implements stark.AIR.
func (p *Program) Preprocessed() [][]field.Element { return p.preCols }

// NumConstraints implements stark.AIR.
func (p *Program) NumConstraints() int { return hintCol + 2 }

// Degree implements stark.AIR. Full rounds multiply a selector into x^7.
func (p *Program) Degree() int { return core.PoseidonSboxDegree + 1 }

// Evaluate implements stark.AIR.
func (p *Program) Evaluate(cur, next, pre, out []field.Element) {
	want := make([]field.Element, hintCol)
	transition(cur, pre, want)
	for i, w := range want {
		out[i] = next[i].Sub(w)
	}
	h := cur[hintCol]
	out[hintCol] = pre[colAssert].Mul(cur[0].Sub(cur[1]))
	out[hintCol+1] = pre[colBit].Mul(h).Mul(h.Sub(field.One))
}

// Boundary implements stark.AIR: the stack and the sponge start at zero.
func (p *Program) Boundary() []stark.Boundary {
	out := make([]stark.Boundary, hintCol)
	for c := range out {
		out[c] = stark.Boundary{Column: c, Value: field.Zero}
	}
	return out
}

var _ stark.AIR = (*Program)(nil)

// transition computes the stack and sponge of the next row from the current
// row and its selectors. out needs room for hintCol elements.
func transition(cur, pre, out []field.Element) {
	st := cur[:StackSize]
	sp := cur[spongeCol:hintCol]
	h := cur[hintCol]
	at := func(i int) field.Element {
		if i < StackSize {
			return st[i]
		}
		return field.Zero
	}

	top := pre[colA].Add(pre[colDiv].Mul(h))
	for j := 0; j < DupReach; j++ {
		top = top.Add(pre[colDup+j].Mul(st[j]))
	}
	top = top.Add(pre[colAdd].Mul(st[0].Add(st[1])))
	top = top.Add(pre[colMul].Mul(st[0].Mul(st[1])))
	top = top.Add(pre[colPop].Mul(st[1]))
	top = top.Add(pre[colAssert].Mul(st[2]))
	top = top.Add(pre[colAbsorb].Mul(st[spongeRate]))
	top = top.Add(pre[colSqueeze].Mul(sp[0]))
	top = top.Add(pre[colKeep].Mul(st[0]))
	top = top.Add(pre[colBit].Mul(st[0].Add(h)))
	out[0] = top

	shift := pre[colAdd].Add(pre[colMul]).Add(pre[colPop])
	for i := 1; i < StackSize; i++ {
		v := pre[colGrow].Mul(st[i-1])
		v = v.Add(shift.Mul(at(i + 1)))
		v = v.Add(pre[colAssert].Mul(at(i + 2)))
		v = v.Add(pre[colAbsorb].Mul(at(i + spongeRate)))
		if i < digestLen {
			v = v.Add(pre[colSqueeze].Mul(sp[i]))
		} else {
			v = v.Add(pre[colSqueeze].Mul(st[i-digestLen]))
		}
		v = v.Add(pre[colKeep].Mul(st[i]))
		out[i] = v
	}

	rc := pre[colRC : colRC+core.PoseidonWidth]
	passive := field.One.Sub(pre[colInit]).Sub(pre[colLoad]).Sub(pre[colAbsorb]).Sub(pre[colFull]).Sub(pre[colPartial])
	var t, s core.PoseidonState
	for j := range t {
		t[j] = sp[j].Add(rc[j])
		s[j] = core.PoseidonSbox(t[j])
	}
	for i := 0; i < core.PoseidonWidth; i++ {
		full := field.Zero
		partial := core.PoseidonMDS(i, 0).Mul(s[0])
		for j := 0; j < core.PoseidonWidth; j++ {
			m := core.PoseidonMDS(i, j)
			full = full.Add(m.Mul(s[j]))
			if j > 0 {
				partial = partial.Add(m.Mul(t[j]))
			}
		}
		absorbed := sp[i]
		if i < spongeRate {
			absorbed = absorbed.Add(st[i])
		}
		v := passive.Mul(sp[i])
		v = v.Add(pre[colLoad].Mul(rc[i]))
		v = v.Add(pre[colAbsorb].Mul(absorbed))
		v = v.Add(pre[colFull].Mul(full))
		v = v.Add(pre[colPartial].Mul(partial))
		out[spongeCol+i] = v
	}
}
