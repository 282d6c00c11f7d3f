// Copyright (c) 2019 Open2b Software Snc. All rights reserved.
// https://www.open2b.com

// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package bytecode

import "strconv"

// Opcode is the operation of an instruction.
type Opcode uint8

const (
	OpMov Opcode = iota

	OpNewObject
	OpNewArray
	OpNewRegExp
	OpNewFunction
	OpCreateRestParams

	OpResolveThisBinding
	OpResolveSuperBase

	OpUnaryMinus
	OpUnaryPlus
	OpNot
	OpBitwiseNot
	OpTypeof
	OpTypeofBinding
	OpIncrement
	OpDecrement

	OpAdd
	OpSub
	OpMul
	OpDiv
	OpMod
	OpBitwiseAnd
	OpBitwiseOr
	OpBitwiseXor
	OpLeftShift
	OpRightShift
	OpUnsignedRightShift

	OpLessThan
	OpLessThanEquals
	OpGreaterThan
	OpGreaterThanEquals
	OpLooselyEquals
	OpLooselyInequals
	OpStrictlyEquals
	OpStrictlyInequals

	OpCreateLexicalEnvironment
	OpLeaveLexicalEnvironment
	OpCreateVariable
	OpCreateMutableBinding
	OpCreateImmutableBinding
	OpInitializeLexicalBinding
	OpSetLexicalBinding
	OpInitializeVariableBinding
	OpSetVariableBinding
	OpGetBinding
	OpDeleteVariable

	OpGetByID
	OpGetByIDWithThis
	OpGetByValue
	OpGetByValueWithThis
	OpPutByID
	OpPutByIDWithThis
	OpPutByValue
	OpPutByValueWithThis
	OpGetPrivateByID
	OpPutPrivateByID
	OpDeleteByID
	OpDeleteByValue

	OpCall

	OpCatch
	OpThrow
	OpEnterUnwindContext
	OpLeaveUnwindContext
	OpScheduleJump
	OpContinuePendingUnwind

	OpJump
	OpJumpIf
	OpJumpTrue
	OpJumpFalse
	OpJumpUndefined
	OpJumpNullish
	OpJumpLessThan
	OpJumpLessThanEquals
	OpJumpGreaterThan
	OpJumpGreaterThanEquals
	OpJumpLooselyEquals
	OpJumpLooselyInequals
	OpJumpStrictlyEquals
	OpJumpStrictlyInequals

	OpReturn
	OpEnd

	opcodeCount
)

var opcodeNames = [...]string{
	OpMov:                       "Mov",
	OpNewObject:                 "NewObject",
	OpNewArray:                  "NewArray",
	OpNewRegExp:                 "NewRegExp",
	OpNewFunction:               "NewFunction",
	OpCreateRestParams:          "CreateRestParams",
	OpResolveThisBinding:        "ResolveThisBinding",
	OpResolveSuperBase:          "ResolveSuperBase",
	OpUnaryMinus:                "UnaryMinus",
	OpUnaryPlus:                 "UnaryPlus",
	OpNot:                       "Not",
	OpBitwiseNot:                "BitwiseNot",
	OpTypeof:                    "Typeof",
	OpTypeofBinding:             "TypeofBinding",
	OpIncrement:                 "Increment",
	OpDecrement:                 "Decrement",
	OpAdd:                       "Add",
	OpSub:                       "Sub",
	OpMul:                       "Mul",
	OpDiv:                       "Div",
	OpMod:                       "Mod",
	OpBitwiseAnd:                "BitwiseAnd",
	OpBitwiseOr:                 "BitwiseOr",
	OpBitwiseXor:                "BitwiseXor",
	OpLeftShift:                 "LeftShift",
	OpRightShift:                "RightShift",
	OpUnsignedRightShift:        "UnsignedRightShift",
	OpLessThan:                  "LessThan",
	OpLessThanEquals:            "LessThanEquals",
	OpGreaterThan:               "GreaterThan",
	OpGreaterThanEquals:         "GreaterThanEquals",
	OpLooselyEquals:             "LooselyEquals",
	OpLooselyInequals:           "LooselyInequals",
	OpStrictlyEquals:            "StrictlyEquals",
	OpStrictlyInequals:          "StrictlyInequals",
	OpCreateLexicalEnvironment:  "CreateLexicalEnvironment",
	OpLeaveLexicalEnvironment:   "LeaveLexicalEnvironment",
	OpCreateVariable:            "CreateVariable",
	OpCreateMutableBinding:      "CreateMutableBinding",
	OpCreateImmutableBinding:    "CreateImmutableBinding",
	OpInitializeLexicalBinding:  "InitializeLexicalBinding",
	OpSetLexicalBinding:         "SetLexicalBinding",
	OpInitializeVariableBinding: "InitializeVariableBinding",
	OpSetVariableBinding:        "SetVariableBinding",
	OpGetBinding:                "GetBinding",
	OpDeleteVariable:            "DeleteVariable",
	OpGetByID:                   "GetById",
	OpGetByIDWithThis:           "GetByIdWithThis",
	OpGetByValue:                "GetByValue",
	OpGetByValueWithThis:        "GetByValueWithThis",
	OpPutByID:                   "PutById",
	OpPutByIDWithThis:           "PutByIdWithThis",
	OpPutByValue:                "PutByValue",
	OpPutByValueWithThis:        "PutByValueWithThis",
	OpGetPrivateByID:            "GetPrivateById",
	OpPutPrivateByID:            "PutPrivateById",
	OpDeleteByID:                "DeleteById",
	OpDeleteByValue:             "DeleteByValue",
	OpCall:                      "Call",
	OpCatch:                     "Catch",
	OpThrow:                     "Throw",
	OpEnterUnwindContext:        "EnterUnwindContext",
	OpLeaveUnwindContext:        "LeaveUnwindContext",
	OpScheduleJump:              "ScheduleJump",
	OpContinuePendingUnwind:     "ContinuePendingUnwind",
	OpJump:                      "Jump",
	OpJumpIf:                    "JumpIf",
	OpJumpTrue:                  "JumpTrue",
	OpJumpFalse:                 "JumpFalse",
	OpJumpUndefined:             "JumpUndefined",
	OpJumpNullish:               "JumpNullish",
	OpJumpLessThan:              "JumpLessThan",
	OpJumpLessThanEquals:        "JumpLessThanEquals",
	OpJumpGreaterThan:           "JumpGreaterThan",
	OpJumpGreaterThanEquals:     "JumpGreaterThanEquals",
	OpJumpLooselyEquals:         "JumpLooselyEquals",
	OpJumpLooselyInequals:       "JumpLooselyInequals",
	OpJumpStrictlyEquals:        "JumpStrictlyEquals",
	OpJumpStrictlyInequals:      "JumpStrictlyInequals",
	OpReturn:                    "Return",
	OpEnd:                       "End",
}

// String returns the name of the opcode.
func (op Opcode) String() string {
	if int(op) < len(opcodeNames) {
		return opcodeNames[op]
	}
	return "Opcode(" + strconv.Itoa(int(op)) + ")"
}

// IsTerminator reports whether the instruction ends a basic block.
func (op Opcode) IsTerminator() bool {
	switch op {
	case OpThrow, OpEnterUnwindContext, OpScheduleJump, OpContinuePendingUnwind,
		OpReturn, OpEnd:
		return true
	}
	return op >= OpJump && op <= OpJumpStrictlyInequals
}

// NumTargets returns how many jump targets the opcode carries: TargetA
// alone, or TargetA and TargetB.
func (op Opcode) NumTargets() int {
	switch op {
	case OpJump, OpJumpTrue, OpJumpFalse, OpEnterUnwindContext,
		OpScheduleJump, OpContinuePendingUnwind:
		return 1
	case OpJumpIf, OpJumpUndefined, OpJumpNullish,
		OpJumpLessThan, OpJumpLessThanEquals, OpJumpGreaterThan,
		OpJumpGreaterThanEquals, OpJumpLooselyEquals, OpJumpLooselyInequals,
		OpJumpStrictlyEquals, OpJumpStrictlyInequals:
		return 2
	}
	return 0
}

// FusedJump returns the fused compare-and-branch opcode of a comparison
// opcode, or false if op is not a fusable comparison.
func FusedJump(op Opcode) (Opcode, bool) {
	switch op {
	case OpLessThan:
		return OpJumpLessThan, true
	case OpLessThanEquals:
		return OpJumpLessThanEquals, true
	case OpGreaterThan:
		return OpJumpGreaterThan, true
	case OpGreaterThanEquals:
		return OpJumpGreaterThanEquals, true
	case OpLooselyEquals:
		return OpJumpLooselyEquals, true
	case OpLooselyInequals:
		return OpJumpLooselyInequals, true
	case OpStrictlyEquals:
		return OpJumpStrictlyEquals, true
	case OpStrictlyInequals:
		return OpJumpStrictlyInequals, true
	}
	return op, false
}

// A Label refers to a jump target. During generation Block is the index
// of the target basic block in the generator's arena; the linker resolves
// it and stores the absolute instruction offset of the block in Addr.
type Label struct {
	Block int
	Addr  int
}

// NewLabel returns a label for the basic block with the given index.
func NewLabel(block int) Label {
	return Label{Block: block, Addr: -1}
}

// An Instruction is one bytecode instruction in structured form. Which
// fields are meaningful depends on Op; unused operand slots have the
// invalid kind.
//
// Operand conventions, per group:
//
//	Mov                                 A dst, B src
//	NewObject, ResolveThisBinding,
//	ResolveSuperBase, Catch             A dst
//	NewArray                            A dst, List elements
//	NewRegExp                           A dst, Index regex table entry
//	NewFunction                         A dst, Index function table entry
//	CreateRestParams                    A dst, Index first rest argument
//	unary ops, Typeof                   A dst, B src
//	Increment, Decrement                A value, updated in place
//	binary and comparison ops           A dst, B lhs, C rhs
//	CreateLexicalEnvironment            A dst environment
//	CreateVariable                      Name
//	Create{Mutable,Immutable}Binding    A environment (invalid: current), Name
//	binding writes (Initialize/Set ...) A value, Name
//	GetBinding, TypeofBinding,
//	DeleteVariable                      A dst, Name
//	GetById                             A dst, B base, Name
//	GetByIdWithThis                     A dst, B base, C this, Name
//	GetByValue                          A dst, B base, C property
//	GetByValueWithThis                  A dst, B base, C property, D this
//	PutById                             A base, B src, Name
//	PutByIdWithThis                     A base, B this, C src, Name
//	PutByValue                          A base, B property, C src
//	PutByValueWithThis                  A base, B property, C this, D src
//	GetPrivateById                      A dst, B base, Name
//	PutPrivateById                      A base, B src, Name
//	DeleteById                          A dst, B base, Name
//	DeleteByValue                       A dst, B base, C property
//	Call                                A dst, B callee, C this, List args
//	Throw, Return, End                  A value
//	Jump family                         A tested value (B rhs for the
//	                                    fused compare jumps), TargetA
//	                                    taken, TargetB not taken
//	EnterUnwindContext, ScheduleJump,
//	ContinuePendingUnwind               TargetA
type Instruction struct {
	Op      Opcode
	A       Operand
	B       Operand
	C       Operand
	D       Operand
	List    []Operand
	Name    NameIndex
	Index   uint32
	TargetA Label
	TargetB Label
}

// VisitOperands calls f once for every valid operand of the instruction,
// fixed slots first, then the operand list in order.
func (in *Instruction) VisitOperands(f func(*Operand)) {
	if in.A.IsValid() {
		f(&in.A)
	}
	if in.B.IsValid() {
		f(&in.B)
	}
	if in.C.IsValid() {
		f(&in.C)
	}
	if in.D.IsValid() {
		f(&in.D)
	}
	for i := range in.List {
		f(&in.List[i])
	}
}
