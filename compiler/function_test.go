// Copyright (c) 2019 Open2b Software Snc. All rights reserved.
// https://www.open2b.com

// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package compiler

import (
	"testing"

	"github.com/open2b/vela/ast"
	"github.com/open2b/vela/bytecode"
)

func TestFunctionEntryProtocol(t *testing.T) {
	// f(a, b = 5, ...r) where a stays in its argument slot, b spills to a
	// local and r binds in the function environment
	def := &ast.FunctionDefinition{
		Name: "f",
		Parameters: []ast.Parameter{
			{Target: argIdent("a", 0)},
			{Target: localIdent("b", 0), Default: number(5)},
			{Target: ident("r"), Rest: true},
		},
		Locals: []ast.LocalName{{Name: "b"}},
	}
	ex := compileFunc(t, def)
	assertOpcodes(t, ex,
		bytecode.OpCreateLexicalEnvironment,
		bytecode.OpCreateMutableBinding,
		bytecode.OpJumpUndefined,
		bytecode.OpMov,
		bytecode.OpMov,
		bytecode.OpCreateRestParams,
		bytecode.OpInitializeLexicalBinding,
		bytecode.OpReturn)
	if ex.NumArguments != 3 {
		t.Fatalf("got %d arguments, want 3", ex.NumArguments)
	}
	// a is already in place, so only the rest parameter name is interned
	if len(ex.Identifiers) != 1 || ex.Identifiers[0] != "r" {
		t.Fatalf("got identifiers %v, want [r]", ex.Identifiers)
	}
	jump := ex.Instructions[2]
	if jump.TargetA.Addr != 3 || jump.TargetB.Addr != 4 {
		t.Fatalf("default test targets %d and %d, want 3 and 4", jump.TargetA.Addr, jump.TargetB.Addr)
	}
	if jump.A.Kind() != bytecode.OperandArgument {
		t.Fatalf("default test reads %v, want the argument slot", jump.A)
	}
	rest := ex.Instructions[5]
	if rest.Index != 2 {
		t.Fatalf("rest params start at argument %d, want 2", rest.Index)
	}
}

func TestDuplicateParametersSetInsteadOfInitialize(t *testing.T) {
	def := &ast.FunctionDefinition{
		Name:                   "f",
		HasDuplicateParameters: true,
		Parameters: []ast.Parameter{
			{Target: ident("x")},
			{Target: ident("x")},
		},
	}
	ex := compileFunc(t, def)
	if got := countOpcode(ex, bytecode.OpSetLexicalBinding); got != 2 {
		t.Fatalf("got %d SetLexicalBinding, want 2", got)
	}
	if got := countOpcode(ex, bytecode.OpInitializeLexicalBinding); got != 0 {
		t.Fatalf("got %d InitializeLexicalBinding, want 0", got)
	}
	// the duplicate name creates a single binding
	if got := countOpcode(ex, bytecode.OpCreateMutableBinding); got != 1 {
		t.Fatalf("got %d CreateMutableBinding, want 1", got)
	}
	if len(ex.Identifiers) != 1 {
		t.Fatalf("got identifiers %v, want the duplicate name interned once", ex.Identifiers)
	}
}

func TestShallowPatternParameters(t *testing.T) {
	def := &ast.FunctionDefinition{
		Name: "f",
		Parameters: []ast.Parameter{
			{Pattern: &ast.BindingPattern{
				Kind: ast.ObjectPattern,
				Elements: []ast.BindingElement{
					{Key: "x", Target: localIdent("x", 0)},
				},
			}},
			{Pattern: &ast.BindingPattern{
				Kind: ast.ArrayPattern,
				Elements: []ast.BindingElement{
					{Target: localIdent("y", 1)},
					{Target: localIdent("z", 2)},
				},
			}},
		},
		Locals: []ast.LocalName{{Name: "x"}, {Name: "y"}, {Name: "z"}},
	}
	ex := compileFunc(t, def)
	if got := countOpcode(ex, bytecode.OpGetByID); got != 1 {
		t.Fatalf("got %d GetById, want 1 for the object pattern", got)
	}
	if got := countOpcode(ex, bytecode.OpGetByValue); got != 2 {
		t.Fatalf("got %d GetByValue, want 2 for the array pattern", got)
	}
	// array elements are read by position
	if ex.Constants[0] != bytecode.Int32(0) || ex.Constants[1] != bytecode.Int32(1) {
		t.Fatalf("got constants %v, want the element indices", ex.Constants)
	}
	if got := countOpcode(ex, bytecode.OpCreateLexicalEnvironment); got != 0 {
		t.Fatalf("got %d CreateLexicalEnvironment, want 0 for resolved slots", got)
	}
}

func TestHoistedDeclarationsInitializeAtEntry(t *testing.T) {
	inner := &ast.FunctionDefinition{Name: "g"}
	def := &ast.FunctionDefinition{
		Name:   "f",
		Locals: []ast.LocalName{{Name: "v"}},
		VariablesToInitialize: []ast.VariableToInitialize{
			{Name: "v", Local: &ast.Local{Kind: ast.LocalVariable, Index: 0}},
			{Name: "w"},
		},
		LexicalBindings: []ast.LexicalBinding{{Name: "k", Constant: true}},
		FunctionsToInitialize: []ast.FunctionToInitialize{
			{Name: "g", Function: inner},
		},
	}
	ex := compileFunc(t, def)
	assertOpcodes(t, ex,
		bytecode.OpMov,                       // v = undefined
		bytecode.OpCreateVariable,            // w
		bytecode.OpInitializeVariableBinding, // w = undefined
		bytecode.OpCreateImmutableBinding,    // k
		bytecode.OpCreateVariable,            // g
		bytecode.OpNewFunction,
		bytecode.OpSetVariableBinding,
		bytecode.OpReturn)
	if len(ex.Functions) != 1 || ex.Functions[0].Name != "g" {
		t.Fatalf("got function table %v", ex.Functions)
	}
}

func TestNestedFunctionsCompileIndependently(t *testing.T) {
	inner := &ast.FunctionDefinition{
		Name: "inner",
		Body: []ast.Statement{ret(number(1))},
	}
	ex := compileProgram(t, &ast.Program{
		Body: []ast.Statement{
			exprStmt(&ast.FunctionExpression{Function: inner}),
		},
	})
	if countOpcode(ex, bytecode.OpNewFunction) != 1 {
		t.Fatalf("got %v, want a NewFunction", opcodes(ex))
	}
	if len(ex.Functions) != 1 {
		t.Fatalf("got %d nested executables, want 1", len(ex.Functions))
	}
	fn := ex.Functions[0]
	if fn.Name != "inner" {
		t.Fatalf("got nested name %q", fn.Name)
	}
	assertOpcodes(t, fn, bytecode.OpReturn)
	if got := fn.ConstantAt(fn.Instructions[0].A.Index()); got != bytecode.Int32(1) {
		t.Fatalf("nested return value is %v, want 1", got)
	}
}

func TestAnonymousFunctionName(t *testing.T) {
	ex := compileFunc(t, &ast.FunctionDefinition{})
	if ex.Name != "anonymous" {
		t.Fatalf("got name %q, want %q", ex.Name, "anonymous")
	}
	assertOpcodes(t, ex, bytecode.OpReturn)
}
