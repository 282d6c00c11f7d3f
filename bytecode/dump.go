// Copyright (c) 2019 Open2b Software Snc. All rights reserved.
// https://www.open2b.com

// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package bytecode

import (
	"fmt"
	"io"
	"strings"
)

// Disassemble writes a textual representation of e to w. Nested function
// executables are disassembled after the unit that references them.
func Disassemble(w io.Writer, e *Executable) error {
	_, err := fmt.Fprintf(w, "unit %s(registers: %d, constants: %d, locals: %d, arguments: %d)\n",
		e.Name, e.NumRegisters, e.NumConstants, e.NumLocals, e.NumArguments)
	if err != nil {
		return err
	}
	for i, c := range e.Constants {
		_, err = fmt.Fprintf(w, "\t; c%d = %s\n", int(e.ConstantBase())+i, c.Format())
		if err != nil {
			return err
		}
	}
	block := 0
	for offset, in := range e.Instructions {
		for block < len(e.BlockOffsets) && e.BlockOffsets[block] == offset {
			_, err = fmt.Fprintf(w, "%d:\n", block)
			if err != nil {
				return err
			}
			block++
		}
		_, err = fmt.Fprintf(w, "\t%4d\t%s\n", offset, FormatInstruction(e, in))
		if err != nil {
			return err
		}
	}
	for _, h := range e.ExceptionHandlers {
		_, err = fmt.Fprintf(w, "\t; handler [%d,%d) catch=%d finally=%d\n",
			h.Start, h.End, h.HandlerOffset, h.FinalizerOffset)
		if err != nil {
			return err
		}
	}
	for _, f := range e.Functions {
		_, err = io.WriteString(w, "\n")
		if err != nil {
			return err
		}
		err = Disassemble(w, f)
		if err != nil {
			return err
		}
	}
	return nil
}

// FormatInstruction returns the one-line representation of an
// instruction, resolving identifier indices through e.
func FormatInstruction(e *Executable, in Instruction) string {
	var b strings.Builder
	b.WriteString(in.Op.String())
	sep := " "
	arg := func(s string) {
		b.WriteString(sep)
		b.WriteString(s)
		sep = ", "
	}
	for _, o := range []Operand{in.A, in.B, in.C, in.D} {
		if o.IsValid() {
			arg(o.String())
		}
	}
	if len(in.List) > 0 {
		elems := make([]string, len(in.List))
		for i, o := range in.List {
			elems[i] = o.String()
		}
		arg("[" + strings.Join(elems, " ") + "]")
	}
	if opHasName(in.Op) {
		arg("$" + e.Identifiers[in.Name])
	}
	if opHasIndex(in.Op) {
		arg(fmt.Sprintf("#%d", in.Index))
	}
	for i := 0; i < in.Op.NumTargets(); i++ {
		target := in.TargetA
		if i == 1 {
			target = in.TargetB
		}
		arg(fmt.Sprintf("->%d", target.Addr))
	}
	return b.String()
}

// opHasName reports whether the opcode addresses an identifier table
// entry through the Name field.
func opHasName(op Opcode) bool {
	switch op {
	case OpTypeofBinding,
		OpCreateVariable, OpCreateMutableBinding, OpCreateImmutableBinding,
		OpInitializeLexicalBinding, OpSetLexicalBinding,
		OpInitializeVariableBinding, OpSetVariableBinding,
		OpGetBinding, OpDeleteVariable,
		OpGetByID, OpGetByIDWithThis, OpPutByID, OpPutByIDWithThis,
		OpGetPrivateByID, OpPutPrivateByID, OpDeleteByID:
		return true
	}
	return false
}

// opHasIndex reports whether the opcode uses the Index field.
func opHasIndex(op Opcode) bool {
	switch op {
	case OpNewRegExp, OpNewFunction, OpCreateRestParams:
		return true
	}
	return false
}
