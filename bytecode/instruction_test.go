// Copyright (c) 2019 Open2b Software Snc. All rights reserved.
// https://www.open2b.com

// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package bytecode

import (
	"reflect"
	"testing"
)

func TestIsTerminator(t *testing.T) {
	terminators := []Opcode{
		OpThrow, OpEnterUnwindContext, OpScheduleJump, OpContinuePendingUnwind,
		OpJump, OpJumpIf, OpJumpTrue, OpJumpFalse, OpJumpUndefined, OpJumpNullish,
		OpJumpLessThan, OpJumpStrictlyInequals, OpReturn, OpEnd,
	}
	for _, op := range terminators {
		if !op.IsTerminator() {
			t.Errorf("%s is not a terminator", op)
		}
	}
	others := []Opcode{
		OpMov, OpAdd, OpLessThan, OpCall, OpCatch, OpLeaveUnwindContext,
		OpCreateLexicalEnvironment, OpGetBinding,
	}
	for _, op := range others {
		if op.IsTerminator() {
			t.Errorf("%s is a terminator", op)
		}
	}
}

func TestNumTargets(t *testing.T) {
	cases := []struct {
		op   Opcode
		want int
	}{
		{OpMov, 0},
		{OpReturn, 0},
		{OpJump, 1},
		{OpJumpTrue, 1},
		{OpJumpFalse, 1},
		{OpEnterUnwindContext, 1},
		{OpScheduleJump, 1},
		{OpContinuePendingUnwind, 1},
		{OpJumpIf, 2},
		{OpJumpUndefined, 2},
		{OpJumpNullish, 2},
		{OpJumpLessThan, 2},
		{OpJumpStrictlyEquals, 2},
	}
	for _, cas := range cases {
		if got := cas.op.NumTargets(); got != cas.want {
			t.Errorf("%s: got %d targets, want %d", cas.op, got, cas.want)
		}
	}
}

func TestFusedJump(t *testing.T) {
	cases := []struct {
		op    Opcode
		fused Opcode
	}{
		{OpLessThan, OpJumpLessThan},
		{OpLessThanEquals, OpJumpLessThanEquals},
		{OpGreaterThan, OpJumpGreaterThan},
		{OpGreaterThanEquals, OpJumpGreaterThanEquals},
		{OpLooselyEquals, OpJumpLooselyEquals},
		{OpLooselyInequals, OpJumpLooselyInequals},
		{OpStrictlyEquals, OpJumpStrictlyEquals},
		{OpStrictlyInequals, OpJumpStrictlyInequals},
	}
	for _, cas := range cases {
		fused, ok := FusedJump(cas.op)
		if !ok {
			t.Errorf("%s has no fused form", cas.op)
			continue
		}
		if fused != cas.fused {
			t.Errorf("%s: got %s, want %s", cas.op, fused, cas.fused)
		}
	}
	for _, op := range []Opcode{OpMov, OpAdd, OpNot, OpJumpLessThan} {
		if _, ok := FusedJump(op); ok {
			t.Errorf("%s has a fused form", op)
		}
	}
}

func TestVisitOperands(t *testing.T) {
	in := Instruction{
		Op:   OpCall,
		A:    NewRegisterOperand(2),
		B:    NewRegisterOperand(3),
		C:    NewConstantOperand(0),
		List: []Operand{NewLocalOperand(0), NewArgumentOperand(1)},
	}
	var visited []Operand
	in.VisitOperands(func(o *Operand) {
		visited = append(visited, *o)
	})
	want := []Operand{
		NewRegisterOperand(2), NewRegisterOperand(3), NewConstantOperand(0),
		NewLocalOperand(0), NewArgumentOperand(1),
	}
	if !reflect.DeepEqual(visited, want) {
		t.Fatalf("got %v, want %v", visited, want)
	}
	// visiting through the pointer rewrites the instruction
	in.VisitOperands(func(o *Operand) {
		*o = o.OffsetIndexBy(1)
	})
	if in.A.Index() != 3 || in.List[1].Index() != 2 {
		t.Fatalf("rewrite through VisitOperands did not stick: %v", in)
	}
}

func TestVisitOperandsSkipsInvalid(t *testing.T) {
	in := Instruction{Op: OpJump}
	n := 0
	in.VisitOperands(func(o *Operand) { n++ })
	if n != 0 {
		t.Fatalf("visited %d operands of a jump, want 0", n)
	}
}
