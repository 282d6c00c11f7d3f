// Copyright (c) 2019 Open2b Software Snc. All rights reserved.
// https://www.open2b.com

// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package bytecode

import "strconv"

// OperandKind is the index space an Operand addresses. During generation
// the spaces are independent; the linker rebases them onto one flat
// address space laid out as registers, constants, locals, arguments.
type OperandKind uint8

const (
	OperandInvalid OperandKind = iota
	OperandRegister
	OperandLocal
	OperandArgument
	OperandConstant
	OperandAccumulator
	OperandThis
)

// String returns the name of the kind.
func (k OperandKind) String() string {
	switch k {
	case OperandInvalid:
		return "invalid"
	case OperandRegister:
		return "register"
	case OperandLocal:
		return "local"
	case OperandArgument:
		return "argument"
	case OperandConstant:
		return "constant"
	case OperandAccumulator:
		return "accumulator"
	case OperandThis:
		return "this"
	}
	return "operand(" + strconv.Itoa(int(k)) + ")"
}

// Reserved register indices. The accumulator and the this value occupy
// the first two registers of every executable; register allocation starts
// after them.
const (
	AccumulatorIndex = 0
	ThisIndex        = 1

	ReservedRegisters = 2
)

// MaxOperandIndex is the largest index an operand can address in any
// space, before or after rebasing.
const MaxOperandIndex = 1<<29 - 1

// An Operand identifies the storage location of a value: a temporary
// register, a function local slot, an argument slot, a constant pool
// entry or one of the two singleton locations. The kind is fixed at
// construction; the linker shifts the index exactly once when it flattens
// the address spaces.
type Operand struct {
	kind  OperandKind
	index uint32
}

// NewRegisterOperand returns a register operand.
func NewRegisterOperand(index uint32) Operand {
	return Operand{kind: OperandRegister, index: index}
}

// NewLocalOperand returns a local operand.
func NewLocalOperand(index uint32) Operand {
	return Operand{kind: OperandLocal, index: index}
}

// NewArgumentOperand returns an argument operand.
func NewArgumentOperand(index uint32) Operand {
	return Operand{kind: OperandArgument, index: index}
}

// NewConstantOperand returns a constant pool operand.
func NewConstantOperand(index uint32) Operand {
	return Operand{kind: OperandConstant, index: index}
}

// AccumulatorOperand returns the accumulator singleton. It addresses the
// first reserved register.
func AccumulatorOperand() Operand {
	return Operand{kind: OperandAccumulator, index: AccumulatorIndex}
}

// ThisOperand returns the this-value singleton. It addresses the second
// reserved register.
func ThisOperand() Operand {
	return Operand{kind: OperandThis, index: ThisIndex}
}

// Kind returns the kind of the operand.
func (o Operand) Kind() OperandKind { return o.kind }

// Index returns the index of the operand within its space.
func (o Operand) Index() uint32 { return o.index }

// IsValid reports whether the operand addresses a location.
func (o Operand) IsValid() bool { return o.kind != OperandInvalid }

// IsRegister reports whether the operand is a register, including the two
// reserved singletons.
func (o Operand) IsRegister() bool {
	return o.kind == OperandRegister || o.kind == OperandAccumulator || o.kind == OperandThis
}

// IsLocal reports whether the operand is a function local slot.
func (o Operand) IsLocal() bool { return o.kind == OperandLocal }

// IsConstant reports whether the operand is a constant pool entry.
func (o Operand) IsConstant() bool { return o.kind == OperandConstant }

// OffsetIndexBy returns a copy of the operand with its index shifted by
// offset. The linker calls it once per operand when rebasing. It panics
// if the shifted index cannot be addressed.
func (o Operand) OffsetIndexBy(offset uint32) Operand {
	index := o.index + offset
	if index > MaxOperandIndex {
		panic("bytecode: operand index limit reached")
	}
	return Operand{kind: o.kind, index: index}
}

// Pack encodes the operand in a single uint32, kind in the high three
// bits. Used by the wire format.
func (o Operand) Pack() uint32 {
	return uint32(o.kind)<<29 | o.index
}

// UnpackOperand decodes an operand packed with Pack.
func UnpackOperand(packed uint32) Operand {
	return Operand{kind: OperandKind(packed >> 29), index: packed & MaxOperandIndex}
}

// String returns a compact notation of the operand, as used by the
// disassembler: "r3", "l0", "a1", "c2", "acc", "this".
func (o Operand) String() string {
	switch o.kind {
	case OperandRegister:
		return "r" + strconv.FormatUint(uint64(o.index), 10)
	case OperandLocal:
		return "l" + strconv.FormatUint(uint64(o.index), 10)
	case OperandArgument:
		return "a" + strconv.FormatUint(uint64(o.index), 10)
	case OperandConstant:
		return "c" + strconv.FormatUint(uint64(o.index), 10)
	case OperandAccumulator:
		return "acc"
	case OperandThis:
		return "this"
	}
	return "?"
}
