// Copyright (c) 2019 Open2b Software Snc. All rights reserved.
// https://www.open2b.com

// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package bytecode

import (
	"os"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"gopkg.in/yaml.v3"
)

func TestDisassemble(t *testing.T) {
	inner := &Executable{
		Name:         "f",
		NumRegisters: 2,
		NumConstants: 1,
		Constants:    []Value{Undefined()},
		BlockOffsets: []int{0},
		Instructions: []Instruction{{Op: OpReturn, A: NewConstantOperand(2)}},
	}
	e := &Executable{
		Name:              "main",
		NumRegisters:      3,
		NumConstants:      2,
		NumLocals:         1,
		NumArguments:      1,
		Constants:         []Value{Int32(1), String("hi")},
		Identifiers:       []string{"print"},
		LocalNames:        []string{"x"},
		Functions:         []*Executable{inner},
		BlockOffsets:      []int{0, 3},
		ExceptionHandlers: []ExceptionHandlerEntry{{Start: 0, End: 3, HandlerOffset: 3, FinalizerOffset: -1}},
		Instructions: []Instruction{
			{Op: OpMov, A: NewRegisterOperand(2), B: NewConstantOperand(3)},
			{Op: OpGetBinding, A: NewRegisterOperand(2), Name: 0},
			{Op: OpJump, TargetA: Label{Block: 1, Addr: 3}},
			{Op: OpCall, A: NewRegisterOperand(2), B: NewRegisterOperand(2), C: ThisOperand(), List: []Operand{NewConstantOperand(4), NewArgumentOperand(6)}},
			{Op: OpEnd, A: NewConstantOperand(3)},
		},
	}
	var b strings.Builder
	if err := Disassemble(&b, e); err != nil {
		t.Fatalf("disassemble: %v", err)
	}
	want, err := os.ReadFile("testdata/dump.golden")
	if err != nil {
		t.Fatalf("reading golden file: %v", err)
	}
	if diff := cmp.Diff(string(want), b.String()); diff != "" {
		t.Fatalf("disassembly differs from golden file (-want +got):\n%s", diff)
	}
}

func TestFormatInstruction(t *testing.T) {
	instructions := map[string]Instruction{
		"mov":              {Op: OpMov, A: NewRegisterOperand(2), B: NewConstantOperand(3)},
		"mov-accumulator":  {Op: OpMov, A: AccumulatorOperand(), B: NewRegisterOperand(2)},
		"put-by-id":        {Op: OpPutByID, A: NewRegisterOperand(2), B: NewRegisterOperand(3), Name: 0},
		"new-function":     {Op: OpNewFunction, A: NewRegisterOperand(2), Index: 1},
		"rest-params":      {Op: OpCreateRestParams, A: NewRegisterOperand(2), Index: 2},
		"call":             {Op: OpCall, A: NewRegisterOperand(2), B: NewRegisterOperand(3), C: ThisOperand(), List: []Operand{NewConstantOperand(4), NewArgumentOperand(6)}},
		"jump":             {Op: OpJump, TargetA: Label{Addr: 7}},
		"jump-if":          {Op: OpJumpIf, A: NewRegisterOperand(2), TargetA: Label{Addr: 4}, TargetB: Label{Addr: 9}},
		"jump-less-than":   {Op: OpJumpLessThan, A: NewRegisterOperand(2), B: NewConstantOperand(3), TargetA: Label{Addr: 1}, TargetB: Label{Addr: 2}},
		"leave-unwind":     {Op: OpLeaveUnwindContext},
		"typeof-binding":   {Op: OpTypeofBinding, A: NewRegisterOperand(2), Name: 0},
		"delete-by-value":  {Op: OpDeleteByValue, A: NewRegisterOperand(2), B: NewRegisterOperand(3), C: NewRegisterOperand(4)},
		"resolve-this":     {Op: OpResolveThisBinding, A: ThisOperand()},
		"create-immutable": {Op: OpCreateImmutableBinding, A: NewRegisterOperand(2), Name: 0},
	}
	data, err := os.ReadFile("testdata/format_instruction.yaml")
	if err != nil {
		t.Fatalf("reading fixture: %v", err)
	}
	var cases []struct {
		Name string `yaml:"name"`
		Want string `yaml:"want"`
	}
	if err := yaml.Unmarshal(data, &cases); err != nil {
		t.Fatalf("unmarshaling fixture: %v", err)
	}
	e := &Executable{Identifiers: []string{"print"}}
	seen := map[string]bool{}
	for _, cas := range cases {
		in, ok := instructions[cas.Name]
		if !ok {
			t.Fatalf("fixture case %q has no instruction", cas.Name)
		}
		seen[cas.Name] = true
		if got := FormatInstruction(e, in); got != cas.Want {
			t.Errorf("%s: got %q, want %q", cas.Name, got, cas.Want)
		}
	}
	for name := range instructions {
		if !seen[name] {
			t.Errorf("instruction %q has no fixture case", name)
		}
	}
}
