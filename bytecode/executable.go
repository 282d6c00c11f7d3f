// Copyright (c) 2019 Open2b Software Snc. All rights reserved.
// https://www.open2b.com

// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package bytecode defines the compiled artifact of a Vela unit: the
// structured instruction stream together with its constant pool, interned
// tables, exception handler table and source map. The package also
// contains a disassembler and a wire codec; producing executables is the
// concern of the compiler package.
package bytecode

// An ExceptionHandlerEntry covers a half-open instruction range
// [Start, End) and names where control goes when an exception unwinds out
// of it. HandlerOffset and FinalizerOffset are absolute instruction
// offsets, -1 when absent. Entries are sorted by Start; ranges of nested
// protected regions preserve their relative order.
type ExceptionHandlerEntry struct {
	Start           int
	End             int
	HandlerOffset   int
	FinalizerOffset int
}

// A SourceMapEntry associates the instruction at Offset with the source
// position of the node it was generated from.
type SourceMapEntry struct {
	Offset int
	Line   int
	Column int
}

// An Executable is the immutable artifact of compiling one Vela unit: a
// program or a single function body. Nested function definitions are
// compiled as independent units and referenced by NewFunction through
// Functions.
//
// Operands address one flat space laid out as registers, constants,
// locals, arguments; the index bases record where each section starts.
// The first two registers are reserved for the accumulator and the this
// value.
type Executable struct {
	Name         string
	Instructions []Instruction

	Constants   []Value
	Identifiers []string
	Strings     []string
	Regexes     []RegexTableEntry
	Functions   []*Executable

	ExceptionHandlers []ExceptionHandlerEntry
	BlockOffsets      []int
	SourceMap         []SourceMapEntry

	NumRegisters uint32
	NumConstants uint32
	NumLocals    uint32
	NumArguments uint32

	LocalNames []string
	Strict     bool
}

// ConstantBase returns the flat index of the first constant.
func (e *Executable) ConstantBase() uint32 { return e.NumRegisters }

// LocalBase returns the flat index of the first local.
func (e *Executable) LocalBase() uint32 { return e.NumRegisters + e.NumConstants }

// ArgumentBase returns the flat index of the first argument.
func (e *Executable) ArgumentBase() uint32 {
	return e.NumRegisters + e.NumConstants + e.NumLocals
}

// FrameSize returns the total number of slots of the flat address space.
func (e *Executable) FrameSize() uint32 {
	return e.NumRegisters + e.NumConstants + e.NumLocals + e.NumArguments
}

// Identifier returns the identifier with the given index.
func (e *Executable) Identifier(i NameIndex) string { return e.Identifiers[i] }

// ConstantAt returns the constant addressed by a flat index. It panics if
// the index does not fall in the constant section.
func (e *Executable) ConstantAt(flat uint32) Value {
	if flat < e.ConstantBase() || flat >= e.LocalBase() {
		panic("bytecode: flat index outside the constant section")
	}
	return e.Constants[flat-e.ConstantBase()]
}
