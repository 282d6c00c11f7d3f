// Copyright (c) 2019 Open2b Software Snc. All rights reserved.
// https://www.open2b.com

// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package compiler

import (
	"math"
	"testing"

	"github.com/open2b/vela/bytecode"
)

func TestAllocateRegisterReusesLastFreed(t *testing.T) {
	g := newGenerator(false, nil, 0, nil)
	a := g.AllocateRegister()
	b := g.AllocateRegister()
	if a.Operand().Index() != 2 || b.Operand().Index() != 3 {
		t.Fatalf("got r%d and r%d, want r2 and r3", a.Operand().Index(), b.Operand().Index())
	}
	b.Release()
	c := g.AllocateRegister()
	if got := c.Operand().Index(); got != 3 {
		t.Fatalf("after releasing r3: got r%d, want r3", got)
	}
	a.Release()
	c.Release()
	d := g.AllocateRegister()
	e := g.AllocateRegister()
	f := g.AllocateRegister()
	if d.Operand().Index() != 3 || e.Operand().Index() != 2 {
		t.Fatalf("free registers are not reused most recent first: r%d, r%d",
			d.Operand().Index(), e.Operand().Index())
	}
	if got := f.Operand().Index(); got != 4 {
		t.Fatalf("with the free list empty: got r%d, want r4", got)
	}
}

func TestScopedOperandRefCounting(t *testing.T) {
	g := newGenerator(false, nil, 0, nil)
	a := g.AllocateRegister()
	shared := a.Ref()
	a.Release()
	// still referenced, the register must not be reused
	b := g.AllocateRegister()
	if b.Operand().Index() == a.Operand().Index() {
		t.Fatal("register reused while still referenced")
	}
	shared.Release()
	c := g.AllocateRegister()
	if c.Operand().Index() != a.Operand().Index() {
		t.Fatalf("got r%d, want r%d", c.Operand().Index(), a.Operand().Index())
	}
}

func TestReleasingConstantDoesNotFreeRegisters(t *testing.T) {
	g := newGenerator(false, nil, 0, nil)
	c := g.AddConstant(bytecode.Int32(1))
	c.Release()
	if len(g.freeRegisters) != 0 {
		t.Fatalf("free list is %v after releasing a constant", g.freeRegisters)
	}
}

func TestAddConstantInterning(t *testing.T) {
	g := newGenerator(false, nil, 0, nil)
	u1 := g.AddConstant(bytecode.Undefined())
	u2 := g.AddConstant(bytecode.Undefined())
	if u1.Operand() != u2.Operand() {
		t.Error("undefined is not interned")
	}
	tr := g.AddConstant(bytecode.Boolean(true))
	fa := g.AddConstant(bytecode.Boolean(false))
	if tr.Operand() == fa.Operand() {
		t.Error("true and false share a pool entry")
	}
	if got := g.AddConstant(bytecode.Boolean(true)); got.Operand() != tr.Operand() {
		t.Error("true is not interned")
	}
	i1 := g.AddConstant(bytecode.Int32(7))
	i2 := g.AddConstant(bytecode.Int32(7))
	i3 := g.AddConstant(bytecode.Int32(8))
	if i1.Operand() != i2.Operand() {
		t.Error("equal int32 constants are not interned")
	}
	if i1.Operand() == i3.Operand() {
		t.Error("distinct int32 constants share a pool entry")
	}
	s1 := g.AddConstant(bytecode.String("a"))
	s2 := g.AddConstant(bytecode.String("a"))
	if s1.Operand() != s2.Operand() {
		t.Error("equal string constants are not interned")
	}
	n1 := g.AddConstant(bytecode.Number(1.5))
	n2 := g.AddConstant(bytecode.Number(1.5))
	if n1.Operand() == n2.Operand() {
		t.Error("number constants are interned")
	}
	// undefined, true, false, 7, 8, "a", 1.5, 1.5
	if got := len(g.constants); got != 8 {
		t.Fatalf("pool has %d entries, want 8", got)
	}
}

func TestEmitJumpIfFoldsConstantConditions(t *testing.T) {
	cases := []struct {
		name      string
		condition bytecode.Value
		wantTrue  bool
	}{
		{"true", bytecode.Boolean(true), true},
		{"false", bytecode.Boolean(false), false},
		{"undefined", bytecode.Undefined(), false},
		{"null", bytecode.Null(), false},
		{"nonzero int", bytecode.Int32(7), true},
		{"zero int", bytecode.Int32(0), false},
		{"number", bytecode.Number(1.5), true},
		{"negative zero", bytecode.Number(math.Copysign(0, -1)), false},
		{"nan", bytecode.Number(math.NaN()), false},
		{"string", bytecode.String("a"), true},
		{"empty string", bytecode.String(""), false},
	}
	for _, cas := range cases {
		t.Run(cas.name, func(t *testing.T) {
			g := newGenerator(false, nil, 0, nil)
			trueBlock := g.makeBlock()
			falseBlock := g.makeBlock()
			c := g.AddConstant(cas.condition)
			g.EmitJumpIf(c, g.label(trueBlock), g.label(falseBlock))
			c.Release()
			ins := g.blocks[0].instructions
			if len(ins) != 1 || ins[0].Op != bytecode.OpJump {
				t.Fatalf("got %v, want a single jump", ins)
			}
			want := falseBlock.index
			if cas.wantTrue {
				want = trueBlock.index
			}
			if got := ins[0].TargetA.Block; got != want {
				t.Fatalf("jump targets block %d, want %d", got, want)
			}
		})
	}
}

func TestFuseCompareAndJump(t *testing.T) {
	t.Run("fused", func(t *testing.T) {
		g := newGenerator(false, nil, 0, nil)
		trueBlock := g.makeBlock()
		falseBlock := g.makeBlock()
		x := g.AllocateRegister()
		y := g.AllocateRegister()
		dst := g.AllocateRegister()
		g.emit(bytecode.Instruction{Op: bytecode.OpLessThan, A: dst.Operand(), B: x.Operand(), C: y.Operand()})
		g.EmitJumpIf(dst, g.label(trueBlock), g.label(falseBlock))
		ins := g.blocks[0].instructions
		if len(ins) != 1 {
			t.Fatalf("got %d instructions, want the comparison rewound", len(ins))
		}
		in := ins[0]
		if in.Op != bytecode.OpJumpLessThan {
			t.Fatalf("got %s, want JumpLessThan", in.Op)
		}
		if in.A != x.Operand() || in.B != y.Operand() {
			t.Fatalf("fused operands are %v and %v, want %v and %v", in.A, in.B, x.Operand(), y.Operand())
		}
		if in.TargetA.Block != trueBlock.index || in.TargetB.Block != falseBlock.index {
			t.Fatal("fused jump lost its targets")
		}
	})
	t.Run("condition still referenced", func(t *testing.T) {
		g := newGenerator(false, nil, 0, nil)
		trueBlock := g.makeBlock()
		falseBlock := g.makeBlock()
		x := g.AllocateRegister()
		dst := g.AllocateRegister()
		g.emit(bytecode.Instruction{Op: bytecode.OpLessThan, A: dst.Operand(), B: x.Operand(), C: x.Operand()})
		kept := dst.Ref()
		g.EmitJumpIf(dst, g.label(trueBlock), g.label(falseBlock))
		kept.Release()
		ins := g.blocks[0].instructions
		if got := ins[len(ins)-1].Op; got != bytecode.OpJumpIf {
			t.Fatalf("got %s, want JumpIf", got)
		}
	})
	t.Run("instruction in between", func(t *testing.T) {
		g := newGenerator(false, nil, 0, nil)
		trueBlock := g.makeBlock()
		falseBlock := g.makeBlock()
		x := g.AllocateRegister()
		dst := g.AllocateRegister()
		g.emit(bytecode.Instruction{Op: bytecode.OpLessThan, A: dst.Operand(), B: x.Operand(), C: x.Operand()})
		g.emit(bytecode.Instruction{Op: bytecode.OpMov, A: x.Operand(), B: dst.Operand()})
		g.EmitJumpIf(dst, g.label(trueBlock), g.label(falseBlock))
		ins := g.blocks[0].instructions
		if got := ins[len(ins)-1].Op; got != bytecode.OpJumpIf {
			t.Fatalf("got %s, want JumpIf", got)
		}
	})
	t.Run("condition is a local", func(t *testing.T) {
		g := newGenerator(false, nil, 0, nil)
		trueBlock := g.makeBlock()
		falseBlock := g.makeBlock()
		cond := g.scoped(bytecode.NewLocalOperand(0))
		g.EmitJumpIf(cond, g.label(trueBlock), g.label(falseBlock))
		ins := g.blocks[0].instructions
		if got := ins[len(ins)-1].Op; got != bytecode.OpJumpIf {
			t.Fatalf("got %s, want JumpIf", got)
		}
	})
}

func TestGetThisResolvesOncePerBlock(t *testing.T) {
	g := newGenerator(false, nil, 0, nil)
	first := g.GetThis()
	second := g.GetThis()
	if first.Operand() != second.Operand() {
		t.Fatal("this operands differ")
	}
	if got := len(g.blocks[0].instructions); got != 1 {
		t.Fatalf("got %d instructions, want a single ResolveThisBinding", got)
	}
	next := g.makeBlock()
	g.switchTo(next)
	g.GetThis()
	if got := len(next.instructions); got != 1 {
		t.Fatalf("got %d instructions in the new block, want 1", got)
	}
	if next.instructions[0].Op != bytecode.OpResolveThisBinding {
		t.Fatalf("got %s, want ResolveThisBinding", next.instructions[0].Op)
	}
}

func TestEndVariableScopeSkipsLeaveWhenTerminated(t *testing.T) {
	g := newGenerator(false, nil, 0, nil)
	g.beginVariableScope()
	c := g.AddConstant(bytecode.Undefined())
	g.emit(bytecode.Instruction{Op: bytecode.OpReturn, A: c.Operand()})
	c.Release()
	g.endVariableScope()
	ins := g.blocks[0].instructions
	if got := ins[len(ins)-1].Op; got != bytecode.OpReturn {
		t.Fatalf("last instruction is %s, want Return", got)
	}
	for _, in := range ins {
		if in.Op == bytecode.OpLeaveLexicalEnvironment {
			t.Fatal("leave emitted after a terminator")
		}
	}
}

func TestEmitMovSkipsSameLocation(t *testing.T) {
	g := newGenerator(false, nil, 0, nil)
	r := g.AllocateRegister()
	g.emitMov(r.Operand(), r.Operand())
	if got := len(g.blocks[0].instructions); got != 0 {
		t.Fatalf("got %d instructions, want 0", got)
	}
	s := g.AllocateRegister()
	g.emitMov(r.Operand(), s.Operand())
	if got := len(g.blocks[0].instructions); got != 1 {
		t.Fatalf("got %d instructions, want 1", got)
	}
}
