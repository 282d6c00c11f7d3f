// Copyright (c) 2019 Open2b Software Snc. All rights reserved.
// https://www.open2b.com

// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package bytecode

import "testing"

var operandPackCases = []Operand{
	{},
	NewRegisterOperand(0),
	NewRegisterOperand(2),
	NewLocalOperand(7),
	NewArgumentOperand(1),
	NewConstantOperand(12),
	AccumulatorOperand(),
	ThisOperand(),
	NewRegisterOperand(MaxOperandIndex),
	NewConstantOperand(MaxOperandIndex),
}

func TestOperandPackRoundTrip(t *testing.T) {
	for _, op := range operandPackCases {
		if got := UnpackOperand(op.Pack()); got != op {
			t.Errorf("unpacking %v: got %v", op, got)
		}
	}
}

var operandStringCases = []struct {
	op   Operand
	want string
}{
	{NewRegisterOperand(3), "r3"},
	{NewLocalOperand(0), "l0"},
	{NewArgumentOperand(1), "a1"},
	{NewConstantOperand(2), "c2"},
	{AccumulatorOperand(), "acc"},
	{ThisOperand(), "this"},
	{Operand{}, "?"},
}

func TestOperandString(t *testing.T) {
	for _, cas := range operandStringCases {
		if got := cas.op.String(); got != cas.want {
			t.Errorf("got %q, want %q", got, cas.want)
		}
	}
}

func TestOperandOffsetIndexBy(t *testing.T) {
	op := NewLocalOperand(3).OffsetIndexBy(10)
	if op.Kind() != OperandLocal {
		t.Fatalf("got kind %s, want local", op.Kind())
	}
	if op.Index() != 13 {
		t.Fatalf("got index %d, want 13", op.Index())
	}
}

func TestOperandPredicates(t *testing.T) {
	if !NewRegisterOperand(2).IsRegister() {
		t.Error("register operand is not a register")
	}
	if !AccumulatorOperand().IsRegister() || !ThisOperand().IsRegister() {
		t.Error("reserved operands are not registers")
	}
	if !NewLocalOperand(0).IsLocal() {
		t.Error("local operand is not a local")
	}
	if !NewConstantOperand(0).IsConstant() {
		t.Error("constant operand is not a constant")
	}
	if (Operand{}).IsValid() {
		t.Error("zero operand is valid")
	}
	if !NewRegisterOperand(0).IsValid() {
		t.Error("register operand is not valid")
	}
}
