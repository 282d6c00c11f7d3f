// Copyright (c) 2019 Open2b Software Snc. All rights reserved.
// https://www.open2b.com

// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package compiler

import (
	"sort"

	"github.com/open2b/vela/bytecode"
)

// labelRef records a jump target to patch once every block's final offset
// is known: the instruction at instruction index, target slot A or B.
type labelRef struct {
	instruction int
	slot        int
}

// link flattens the generator's blocks into an Executable.
//
// Operands are first rebased onto the flat address space, laid out as
// registers, constants, locals, arguments. The blocks are then emitted in
// arena order with the peephole rules applied: a jump to the immediately
// next block is dropped, a jump to a block consisting of a lone Return or
// End is folded to a copy of it, a two-target JumpIf with one target on
// the next block becomes a one-target JumpTrue or JumpFalse, and an
// unterminated block is closed with End of undefined. Labels are patched
// through a side table at the end, when every block offset is known.
func (g *Generator) link(name string) *bytecode.Executable {
	// if any block will need the implicit End, its undefined constant
	// must exist before the constants are counted
	var undef bytecode.Operand
	for _, b := range g.blocks {
		if !b.terminated {
			c := g.AddConstant(bytecode.Undefined())
			undef = c.Operand()
			c.Release()
			break
		}
	}

	numRegisters := g.nextRegister
	numConstants := uint32(len(g.constants))
	numLocals := uint32(len(g.locals))
	constantBase := numRegisters
	localBase := numRegisters + numConstants
	argumentBase := localBase + numLocals

	// the declared parameter count does not bound the argument operands;
	// arguments sit last in the flat layout, so sizing the section from
	// the highest index seen moves no base
	numArguments := uint32(g.numArguments)
	rebase := func(op *bytecode.Operand) {
		switch op.Kind() {
		case bytecode.OperandConstant:
			*op = op.OffsetIndexBy(constantBase)
		case bytecode.OperandLocal:
			*op = op.OffsetIndexBy(localBase)
		case bytecode.OperandArgument:
			if op.Index() >= numArguments {
				numArguments = op.Index() + 1
			}
			*op = op.OffsetIndexBy(argumentBase)
		}
	}
	for _, b := range g.blocks {
		for i := range b.instructions {
			b.instructions[i].VisitOperands(rebase)
		}
	}
	if undef.IsValid() {
		rebase(&undef)
	}

	var out []bytecode.Instruction
	var sourceMap []bytecode.SourceMapEntry
	var blockStarts []int
	var refs []labelRef
	var handlers []bytecode.ExceptionHandlerEntry
	blockOffsets := make([]int, len(g.blocks))

	appendInstruction := func(in bytecode.Instruction, line, column int) {
		out = append(out, in)
		if line != 0 || column != 0 {
			n := len(sourceMap)
			if n == 0 || sourceMap[n-1].Line != line || sourceMap[n-1].Column != column {
				sourceMap = append(sourceMap, bytecode.SourceMapEntry{Offset: len(out) - 1, Line: line, Column: column})
			}
		}
		for slot := 0; slot < in.Op.NumTargets(); slot++ {
			refs = append(refs, labelRef{instruction: len(out) - 1, slot: slot})
		}
	}

	for bi, b := range g.blocks {
		start := len(out)
		blockOffsets[bi] = start
		blockStarts = append(blockStarts, start)
		for ii, in := range b.instructions {
			line, column := b.positions[ii].Line, b.positions[ii].Column
			if in.Op == bytecode.OpJump {
				// a jump to the next block falls through
				if in.TargetA.Block == bi+1 {
					if len(blockStarts) > 0 && blockStarts[len(blockStarts)-1] == len(out) {
						blockStarts = blockStarts[:len(blockStarts)-1]
					}
					continue
				}
				// a jump to a lone Return or End becomes a copy of it
				target := g.blocks[in.TargetA.Block]
				if target.terminated && len(target.instructions) == 1 {
					if op := target.instructions[0].Op; op == bytecode.OpReturn || op == bytecode.OpEnd {
						appendInstruction(target.instructions[0], line, column)
						continue
					}
				}
			}
			if in.Op == bytecode.OpJumpIf {
				if in.TargetA.Block == bi+1 {
					appendInstruction(bytecode.Instruction{
						Op: bytecode.OpJumpFalse, A: in.A, TargetA: in.TargetB,
					}, line, column)
					continue
				}
				if in.TargetB.Block == bi+1 {
					appendInstruction(bytecode.Instruction{
						Op: bytecode.OpJumpTrue, A: in.A, TargetA: in.TargetA,
					}, line, column)
					continue
				}
			}
			appendInstruction(in, line, column)
		}
		if !b.terminated {
			out = append(out, bytecode.Instruction{Op: bytecode.OpEnd, A: undef})
		}
		if (b.handler >= 0 || b.finalizer >= 0) && len(out) > start {
			handlers = append(handlers, bytecode.ExceptionHandlerEntry{
				Start:           start,
				End:             len(out),
				HandlerOffset:   b.handler,
				FinalizerOffset: b.finalizer,
			})
		}
	}

	for _, ref := range refs {
		in := &out[ref.instruction]
		target := &in.TargetA
		if ref.slot == 1 {
			target = &in.TargetB
		}
		target.Addr = blockOffsets[target.Block]
	}

	// handler entries still hold block indices; resolve them and order
	// the table by start offset, keeping the creation order of entries
	// that start together
	for i := range handlers {
		if handlers[i].HandlerOffset >= 0 {
			handlers[i].HandlerOffset = blockOffsets[handlers[i].HandlerOffset]
		}
		if handlers[i].FinalizerOffset >= 0 {
			handlers[i].FinalizerOffset = blockOffsets[handlers[i].FinalizerOffset]
		}
	}
	sort.SliceStable(handlers, func(i, j int) bool {
		return handlers[i].Start < handlers[j].Start
	})

	localNames := make([]string, len(g.locals))
	for i, l := range g.locals {
		localNames[i] = l.Name
	}

	return &bytecode.Executable{
		Name:              name,
		Instructions:      out,
		Constants:         g.constants,
		Identifiers:       g.identifiers.Names(),
		Strings:           g.strings.Strings(),
		Regexes:           g.regexes,
		Functions:         g.functions,
		ExceptionHandlers: handlers,
		BlockOffsets:      blockStarts,
		SourceMap:         sourceMap,
		NumRegisters:      numRegisters,
		NumConstants:      numConstants,
		NumLocals:         numLocals,
		NumArguments:      numArguments,
		LocalNames:        localNames,
		Strict:            g.strict,
	}
}
