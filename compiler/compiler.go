// Copyright (c) 2019 Open2b Software Snc. All rights reserved.
// https://www.open2b.com

// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package compiler lowers analyzed Vela trees into bytecode executables.
//
// The compiler is a pure backend: it consumes trees already produced and
// analyzed by a front end and emits bytecode.Executable values. It reads
// no files and has no global state; concurrent calls with distinct trees
// are safe.
package compiler

import (
	"fmt"

	"github.com/tliron/commonlog"

	"github.com/open2b/vela/ast"
	"github.com/open2b/vela/bytecode"
)

// Options are the compilation options.
type Options struct {

	// Logger receives a debug summary per compiled unit. If nil, the
	// "vela.compiler" logger of commonlog is used, which is silent
	// unless a backend is configured.
	Logger commonlog.Logger
}

// CodeGenerationError is an error in the shape of the tree that only
// code generation detects, such as an assignment whose target is not a
// reference.
type CodeGenerationError struct {
	pos ast.Position
	msg string
}

// Error returns the error message with its position.
func (e *CodeGenerationError) Error() string {
	return fmt.Sprintf("%d:%d: %s", e.pos.Line, e.pos.Column, e.msg)
}

// Position returns the position of the node the error refers to.
func (e *CodeGenerationError) Position() ast.Position {
	return e.pos
}

// codeGenerationErrorf returns a CodeGenerationError at the position of
// node.
func codeGenerationErrorf(node ast.Node, format string, args ...any) error {
	return &CodeGenerationError{pos: node.Pos(), msg: fmt.Sprintf(format, args...)}
}

// CompileProgram compiles a program into an executable named "main".
// The completion value of the program, the value of its last evaluated
// expression statement, becomes the operand of the final End.
func CompileProgram(program *ast.Program, opts *Options) (*bytecode.Executable, error) {
	g := newGenerator(program.Strict, program.Locals, 0, opts)
	g.setSourceNode(program)
	created := false
	if program.Scope != nil {
		var err error
		created, err = g.emitBlockDeclarationInstantiation(program.Scope)
		if err != nil {
			return nil, err
		}
	}
	completion, err := g.generateStatements(program.Body)
	if err != nil {
		return nil, err
	}
	if created {
		g.endVariableScope()
	}
	if !g.currentTerminated() {
		if !completion.IsValid() {
			completion = g.AddConstant(bytecode.Undefined())
		}
		g.emit(bytecode.Instruction{Op: bytecode.OpEnd, A: completion.Operand()})
	}
	if completion.IsValid() {
		completion.Release()
	}
	ex := g.link("main")
	logCompiled(opts, g, ex)
	return ex, nil
}

// CompileFunction compiles a function definition into an executable.
// Nested function definitions become independent executables in the
// function table.
func CompileFunction(def *ast.FunctionDefinition, opts *Options) (*bytecode.Executable, error) {
	return compileFunction(def, opts)
}

func compileFunction(def *ast.FunctionDefinition, opts *Options) (*bytecode.Executable, error) {
	g := newGenerator(def.Strict, def.Locals, len(def.Parameters), opts)
	g.setSourceNode(def)
	if err := g.emitFunctionDeclarationInstantiation(def); err != nil {
		return nil, err
	}
	if _, err := g.generateStatements(def.Body); err != nil {
		return nil, err
	}
	if !g.currentTerminated() {
		value := g.AddConstant(bytecode.Undefined())
		g.EmitReturn(value)
		value.Release()
	}
	name := def.Name
	if name == "" {
		name = "anonymous"
	}
	ex := g.link(name)
	logCompiled(opts, g, ex)
	return ex, nil
}

func logCompiled(opts *Options, g *Generator, ex *bytecode.Executable) {
	var logger commonlog.Logger
	if opts != nil && opts.Logger != nil {
		logger = opts.Logger
	} else {
		logger = commonlog.GetLogger("vela.compiler")
	}
	logger.Debugf("compiled %s: %d blocks, %d registers, %d constants, %d instructions",
		ex.Name, len(g.blocks), ex.NumRegisters, ex.NumConstants, len(ex.Instructions))
}
