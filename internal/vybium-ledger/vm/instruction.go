// Package vm is the stack machine the credits functions run on.
//
// A Program is built instruction by instruction and executed as it is
// built, so the builder always knows the current stack. Every instruction
// becomes one row of the execution trace. The row holds the operand stack,
// the Poseidon sponge state and one hint register that carries
// non-deterministic input. Which instruction runs on a row is public: the
// verifier rebuilds the program from the public values of a call and reads
// the instruction selectors from it as preprocessed columns.
//
// The same transition function drives execution and the AIR constraints, so
// an honest trace satisfies the constraints by construction.
package vm

import "fmt"

// Instruction is a VM opcode.
type Instruction uint8

const (
	// Nop leaves the state unchanged. Programs are padded with it.
	Nop Instruction = iota

	// Push pushes a program constant.
	Push

	// ReadIo pushes the next public input.
	ReadIo

	// Divine pushes a secret value supplied by the prover.
	Divine

	// Dup pushes a copy of stack[i].
	Dup

	// Pop removes the top of the stack.
	Pop

	// Add replaces the top two elements with their sum.
	Add

	// Mul replaces the top two elements with their product.
	Mul

	// AssertEq pops the top two elements, which must be equal.
	AssertEq

	// Bit shifts a secret bit into the top of the stack: st0 = 2*st0 + b.
	Bit

	// SpongeInit zeroes the sponge.
	SpongeInit

	// SpongeLoad sets the sponge to a public state.
	SpongeLoad

	// SpongeAbsorb pops eight elements and adds them to the rate lanes.
	SpongeAbsorb

	// SpongeSqueeze pushes the first five lanes of the sponge.
	SpongeSqueeze

	// FullRound applies a full Poseidon round to the sponge.
	FullRound

	// PartialRound applies a partial Poseidon round to the sponge.
	PartialRound
)

var instructionNames = map[Instruction]string{
	Nop:           "nop",
	Push:          "push",
	ReadIo:        "read_io",
	Divine:        "divine",
	Dup:           "dup",
	Pop:           "pop",
	Add:           "add",
	Mul:           "mul",
	AssertEq:      "assert_eq",
	Bit:           "bit",
	SpongeInit:    "sponge_init",
	SpongeLoad:    "sponge_load",
	SpongeAbsorb:  "sponge_absorb",
	SpongeSqueeze: "sponge_squeeze",
	FullRound:     "full_round",
	PartialRound:  "partial_round",
}

func (i Instruction) String() string {
	if name, ok := instructionNames[i]; ok {
		return name
	}
	return fmt.Sprintf("instruction(%d)", uint8(i))
}

// stack returns how many elements the instruction reads and how the stack
// depth changes. arg is the Dup depth.
func (i Instruction) stack(arg int) (need, delta int) {
	switch i {
	case Push, ReadIo, Divine:
		return 0, 1
	case Dup:
		return arg + 1, 1
	case Pop:
		return 1, -1
	case Add, Mul:
		return 2, -1
	case AssertEq:
		return 2, -2
	case Bit:
		return 1, 0
	case SpongeAbsorb:
		return spongeRate, -spongeRate
	case SpongeSqueeze:
		return 0, digestLen
	}
	return 0, 0
}
