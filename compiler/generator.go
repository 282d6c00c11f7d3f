// Copyright (c) 2019 Open2b Software Snc. All rights reserved.
// https://www.open2b.com

// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package compiler

import (
	"github.com/open2b/vela/ast"
	"github.com/open2b/vela/bytecode"
)

// A basicBlock is a straight-line run of instructions under construction.
// Blocks live in the generator's arena and reference each other by index.
// handler and finalizer are the indices of the blocks control unwinds to
// when an exception leaves this block, -1 when none; they are fixed at
// creation from the innermost active unwind context.
type basicBlock struct {
	index        int
	instructions []bytecode.Instruction
	positions    []ast.Position
	terminated   bool
	handler      int
	finalizer    int
	resolvedThis bool
}

// boundaryKind is a marker on the boundary stack recording what a jump
// leaving the current position has to cross.
type boundaryKind int

const (
	boundaryBreak boundaryKind = iota
	boundaryContinue
	boundaryUnwind
	boundaryLeaveLexicalEnvironment
	boundaryReturnToFinally
	boundaryLeaveFinally
)

// A labelableScope is an active target for break or continue, with the
// language label set attached to the statement that opened it.
type labelableScope struct {
	target bytecode.Label
	labels []string
}

// An unwindContext is an active try region: the blocks control unwinds to
// on an exception (handler) and on any exit (finalizer), -1 when absent.
type unwindContext struct {
	handler   int
	finalizer int
}

// scopedOperandState is the shared state of a ScopedOperand.
type scopedOperandState struct {
	operand  bytecode.Operand
	refCount int
}

// A ScopedOperand is a reference-counted handle to an operand. Releasing
// the last reference to a register operand returns the register to the
// generator's free list. The count also tells the generator whether a
// register holds a single-use value, which licenses compare-and-branch
// fusion.
type ScopedOperand struct {
	state *scopedOperandState
	gen   *Generator
}

// IsValid reports whether the handle refers to an operand.
func (s ScopedOperand) IsValid() bool { return s.state != nil }

// Operand returns the underlying operand.
func (s ScopedOperand) Operand() bytecode.Operand { return s.state.operand }

// Ref returns the handle with its reference count incremented.
func (s ScopedOperand) Ref() ScopedOperand {
	s.state.refCount++
	return s
}

// Release drops one reference. When the last reference to an allocated
// register is dropped the register becomes reusable.
func (s ScopedOperand) Release() {
	if s.state == nil {
		return
	}
	if s.state.refCount <= 0 {
		panic("bug: operand released more times than referenced")
	}
	s.state.refCount--
	if s.state.refCount > 0 {
		return
	}
	op := s.state.operand
	if op.Kind() == bytecode.OperandRegister && op.Index() >= bytecode.ReservedRegisters {
		s.gen.freeRegister(op.Index())
	}
}

// A Generator builds the basic blocks of one unit. It owns the block
// arena, the register allocator, the constant pool and interning tables,
// and the scope stacks that break, continue, return and throw consult.
// Generators are single use; a nested function definition gets its own.
type Generator struct {
	opts *Options

	blocks  []*basicBlock
	current *basicBlock

	position ast.Position
	strict   bool

	nextRegister  uint32
	freeRegisters []uint32

	constants       []bytecode.Value
	trueConstant    bytecode.Operand
	falseConstant   bytecode.Operand
	nullConstant    bytecode.Operand
	undefConstant   bytecode.Operand
	emptyConstant   bytecode.Operand
	hasTrue         bool
	hasFalse        bool
	hasNull         bool
	hasUndef        bool
	hasEmpty        bool
	int32Constants  map[int32]bytecode.Operand
	stringConstants map[string]bytecode.Operand

	identifiers *bytecode.IdentifierTable
	strings     *bytecode.StringTable
	regexes     []bytecode.RegexTableEntry
	functions   []*bytecode.Executable

	locals       []ast.LocalName
	numArguments int

	breakableScopes   []labelableScope
	continuableScopes []labelableScope
	boundaries        []boundaryKind
	unwindContexts    []unwindContext
	environments      []ScopedOperand
}

// newGenerator returns a generator with one open basic block.
func newGenerator(strict bool, locals []ast.LocalName, numArguments int, opts *Options) *Generator {
	g := &Generator{
		opts:            opts,
		strict:          strict,
		nextRegister:    bytecode.ReservedRegisters,
		int32Constants:  map[int32]bytecode.Operand{},
		stringConstants: map[string]bytecode.Operand{},
		identifiers:     bytecode.NewIdentifierTable(),
		strings:         bytecode.NewStringTable(),
		locals:          locals,
		numArguments:    numArguments,
	}
	g.current = g.makeBlock()
	return g
}

// setSourceNode records the node the following instructions are generated
// from; the linker turns it into source map entries.
func (g *Generator) setSourceNode(node ast.Node) {
	g.position = node.Pos()
}

// makeBlock appends a new block to the arena. The block inherits the
// handler and finalizer of the innermost active unwind context.
func (g *Generator) makeBlock() *basicBlock {
	handler, finalizer := -1, -1
	if n := len(g.unwindContexts); n > 0 {
		handler = g.unwindContexts[n-1].handler
		finalizer = g.unwindContexts[n-1].finalizer
	}
	b := &basicBlock{index: len(g.blocks), handler: handler, finalizer: finalizer}
	g.blocks = append(g.blocks, b)
	return b
}

// switchTo makes b the block the generator emits into.
func (g *Generator) switchTo(b *basicBlock) {
	g.current = b
}

// currentTerminated reports whether the current block already ends with a
// terminator.
func (g *Generator) currentTerminated() bool {
	return g.current.terminated
}

// label returns a label referring to b.
func (g *Generator) label(b *basicBlock) bytecode.Label {
	return bytecode.NewLabel(b.index)
}

// emit appends an instruction to the current block. It panics if the
// block is already terminated; codegen has to switch to a fresh block
// after emitting a terminator.
func (g *Generator) emit(in bytecode.Instruction) {
	b := g.current
	if b.terminated {
		panic("bug: emit into a terminated basic block")
	}
	b.instructions = append(b.instructions, in)
	b.positions = append(b.positions, g.position)
	if in.Op.IsTerminator() {
		b.terminated = true
	}
}

// emitJump appends an unconditional jump to target.
func (g *Generator) emitJump(target bytecode.Label) {
	g.emit(bytecode.Instruction{Op: bytecode.OpJump, TargetA: target})
}

// emitMov copies src into dst, unless they are the same location.
func (g *Generator) emitMov(dst, src bytecode.Operand) {
	if dst == src {
		return
	}
	g.emit(bytecode.Instruction{Op: bytecode.OpMov, A: dst, B: src})
}

// scoped wraps an operand in a fresh handle with one reference.
func (g *Generator) scoped(op bytecode.Operand) ScopedOperand {
	return ScopedOperand{state: &scopedOperandState{operand: op, refCount: 1}, gen: g}
}

// AllocateRegister returns a handle to a free register, reusing the most
// recently freed one when available.
func (g *Generator) AllocateRegister() ScopedOperand {
	if n := len(g.freeRegisters); n > 0 {
		index := g.freeRegisters[n-1]
		g.freeRegisters = g.freeRegisters[:n-1]
		return g.scoped(bytecode.NewRegisterOperand(index))
	}
	if g.nextRegister > bytecode.MaxOperandIndex {
		panic("compiler: registers limit reached")
	}
	op := bytecode.NewRegisterOperand(g.nextRegister)
	g.nextRegister++
	return g.scoped(op)
}

// freeRegister pushes a register index on the free list.
func (g *Generator) freeRegister(index uint32) {
	g.freeRegisters = append(g.freeRegisters, index)
}

// Accumulator returns a handle to the accumulator register.
func (g *Generator) Accumulator() ScopedOperand {
	return g.scoped(bytecode.AccumulatorOperand())
}

// localOperand returns the operand of a resolved local slot.
func (g *Generator) localOperand(l ast.Local) bytecode.Operand {
	if l.Kind == ast.LocalArgument {
		return bytecode.NewArgumentOperand(l.Index)
	}
	return bytecode.NewLocalOperand(l.Index)
}

// GetThis returns the this value, emitting ResolveThisBinding the first
// time it is requested in the current block.
func (g *Generator) GetThis() ScopedOperand {
	if !g.current.resolvedThis {
		g.emit(bytecode.Instruction{Op: bytecode.OpResolveThisBinding, A: bytecode.ThisOperand()})
		g.current.resolvedThis = true
	}
	return g.scoped(bytecode.ThisOperand())
}

// AddConstant returns an operand addressing v in the constant pool.
// The singletons and the int32 and string values are interned; other
// values are appended unconditionally.
func (g *Generator) AddConstant(v bytecode.Value) ScopedOperand {
	switch v.Kind {
	case bytecode.ValueUndefined:
		return g.scoped(g.singletonConstant(&g.undefConstant, &g.hasUndef, v))
	case bytecode.ValueNull:
		return g.scoped(g.singletonConstant(&g.nullConstant, &g.hasNull, v))
	case bytecode.ValueEmpty:
		return g.scoped(g.singletonConstant(&g.emptyConstant, &g.hasEmpty, v))
	case bytecode.ValueBoolean:
		if v.AsBoolean() {
			return g.scoped(g.singletonConstant(&g.trueConstant, &g.hasTrue, v))
		}
		return g.scoped(g.singletonConstant(&g.falseConstant, &g.hasFalse, v))
	case bytecode.ValueInt32:
		if op, ok := g.int32Constants[v.Int]; ok {
			return g.scoped(op)
		}
		op := g.appendConstant(v)
		g.int32Constants[v.Int] = op
		return g.scoped(op)
	case bytecode.ValueString:
		if op, ok := g.stringConstants[v.Str]; ok {
			return g.scoped(op)
		}
		op := g.appendConstant(v)
		g.stringConstants[v.Str] = op
		return g.scoped(op)
	}
	return g.scoped(g.appendConstant(v))
}

func (g *Generator) singletonConstant(cache *bytecode.Operand, present *bool, v bytecode.Value) bytecode.Operand {
	if !*present {
		*cache = g.appendConstant(v)
		*present = true
	}
	return *cache
}

func (g *Generator) appendConstant(v bytecode.Value) bytecode.Operand {
	if len(g.constants) > bytecode.MaxOperandIndex {
		panic("compiler: constants limit reached")
	}
	op := bytecode.NewConstantOperand(uint32(len(g.constants)))
	g.constants = append(g.constants, v)
	return op
}

// internIdentifier interns name in the identifier table.
func (g *Generator) internIdentifier(name string) bytecode.NameIndex {
	return g.identifiers.Insert(name)
}

// addRegex adds a regular expression literal to the regex table. Entries
// are not deduplicated.
func (g *Generator) addRegex(pattern, flags string) uint32 {
	index := uint32(len(g.regexes))
	g.regexes = append(g.regexes, bytecode.RegexTableEntry{
		Source: g.strings.Insert(pattern),
		Flags:  flags,
	})
	return index
}

// registerFunction compiles a nested function definition as an
// independent unit and returns its index in the function table.
func (g *Generator) registerFunction(def *ast.FunctionDefinition) (uint32, error) {
	ex, err := compileFunction(def, g.opts)
	if err != nil {
		return 0, err
	}
	g.functions = append(g.functions, ex)
	return uint32(len(g.functions) - 1), nil
}

// CopyIfNeededToPreserveEvaluationOrder returns an operand that keeps the
// current value of op even if a later evaluation writes to it. Locals and
// arguments are mutable by name, so they are copied to a register; other
// operands are returned unchanged.
func (g *Generator) CopyIfNeededToPreserveEvaluationOrder(op ScopedOperand) ScopedOperand {
	kind := op.Operand().Kind()
	if kind != bytecode.OperandLocal && kind != bytecode.OperandArgument {
		return op
	}
	saved := g.AllocateRegister()
	g.emitMov(saved.Operand(), op.Operand())
	op.Release()
	return saved
}

// startBoundary pushes a boundary marker.
func (g *Generator) startBoundary(kind boundaryKind) {
	g.boundaries = append(g.boundaries, kind)
}

// endBoundary pops a boundary marker, which must be of the given kind.
func (g *Generator) endBoundary(kind boundaryKind) {
	n := len(g.boundaries)
	if n == 0 || g.boundaries[n-1] != kind {
		panic("bug: unbalanced block boundary")
	}
	g.boundaries = g.boundaries[:n-1]
}

// pushUnwindContext makes (handler, finalizer) the innermost try region.
// Blocks created while it is active unwind to it.
func (g *Generator) pushUnwindContext(handler, finalizer int) {
	g.unwindContexts = append(g.unwindContexts, unwindContext{handler: handler, finalizer: finalizer})
}

// popUnwindContext removes the innermost try region.
func (g *Generator) popUnwindContext() {
	n := len(g.unwindContexts)
	if n == 0 {
		panic("bug: unwind context stack underflow")
	}
	g.unwindContexts = g.unwindContexts[:n-1]
}

// beginBreakableScope opens a target for break with the given label set.
func (g *Generator) beginBreakableScope(target bytecode.Label, labels []string) {
	g.startBoundary(boundaryBreak)
	g.breakableScopes = append(g.breakableScopes, labelableScope{target: target, labels: labels})
}

// endBreakableScope closes the innermost breakable scope.
func (g *Generator) endBreakableScope() {
	g.endBoundary(boundaryBreak)
	g.breakableScopes = g.breakableScopes[:len(g.breakableScopes)-1]
}

// beginContinuableScope opens a target for continue with the given label
// set.
func (g *Generator) beginContinuableScope(target bytecode.Label, labels []string) {
	g.startBoundary(boundaryContinue)
	g.continuableScopes = append(g.continuableScopes, labelableScope{target: target, labels: labels})
}

// endContinuableScope closes the innermost continuable scope.
func (g *Generator) endContinuableScope() {
	g.endBoundary(boundaryContinue)
	g.continuableScopes = g.continuableScopes[:len(g.continuableScopes)-1]
}

// beginVariableScope enters a new lexical environment held in a fresh
// register and marks it on the boundary stack. The returned handle is
// owned by the generator until endVariableScope.
func (g *Generator) beginVariableScope() ScopedOperand {
	env := g.AllocateRegister()
	g.emit(bytecode.Instruction{Op: bytecode.OpCreateLexicalEnvironment, A: env.Operand()})
	g.startBoundary(boundaryLeaveLexicalEnvironment)
	g.environments = append(g.environments, env)
	return env
}

// endVariableScope leaves the innermost lexical environment. The leave
// instruction is skipped if the block is already terminated; whatever
// terminated it has crossed the boundary itself.
func (g *Generator) endVariableScope() {
	g.endBoundary(boundaryLeaveLexicalEnvironment)
	n := len(g.environments)
	env := g.environments[n-1]
	g.environments = g.environments[:n-1]
	if !g.currentTerminated() {
		g.emit(bytecode.Instruction{Op: bytecode.OpLeaveLexicalEnvironment})
	}
	env.Release()
}

// emitBlockDeclarationInstantiation creates the lexical bindings of a
// block scope. A new environment is needed only if the scope declares a
// function or binds any name that did not resolve to a local slot; in
// that case it reports true and the caller must close the scope with
// endVariableScope. Function declarations are initialized immediately.
func (g *Generator) emitBlockDeclarationInstantiation(scope *ast.ScopeMetadata) (bool, error) {
	needed := false
	for _, d := range scope.Declarations {
		if d.Function != nil || d.Local == nil {
			needed = true
			break
		}
	}
	if !needed {
		return false, nil
	}
	env := g.beginVariableScope()
	for _, d := range scope.Declarations {
		if d.Local != nil {
			continue
		}
		op := bytecode.OpCreateMutableBinding
		if d.Constant {
			op = bytecode.OpCreateImmutableBinding
		}
		g.emit(bytecode.Instruction{Op: op, A: env.Operand(), Name: g.internIdentifier(d.Name)})
	}
	for _, d := range scope.Declarations {
		if d.Function == nil {
			continue
		}
		index, err := g.registerFunction(d.Function)
		if err != nil {
			return true, err
		}
		if d.Local != nil {
			g.emit(bytecode.Instruction{Op: bytecode.OpNewFunction, A: g.localOperand(*d.Local), Index: index})
		} else {
			fn := g.AllocateRegister()
			g.emit(bytecode.Instruction{Op: bytecode.OpNewFunction, A: fn.Operand(), Index: index})
			g.emit(bytecode.Instruction{Op: bytecode.OpInitializeLexicalBinding, A: fn.Operand(), Name: g.internIdentifier(d.Name)})
			fn.Release()
		}
	}
	return true, nil
}

// EmitJumpIf branches on condition. Constant conditions fold to an
// unconditional jump. When the condition is a single-use register whose
// value was produced by the comparison emitted immediately before, the
// comparison and the branch fuse into one instruction.
func (g *Generator) EmitJumpIf(condition ScopedOperand, trueTarget, falseTarget bytecode.Label) {
	op := condition.Operand()
	if op.IsConstant() {
		if g.constants[op.Index()].Truthy() {
			g.emitJump(trueTarget)
		} else {
			g.emitJump(falseTarget)
		}
		return
	}
	if g.fuseCompareAndJump(condition, trueTarget, falseTarget) {
		return
	}
	g.emit(bytecode.Instruction{Op: bytecode.OpJumpIf, A: op, TargetA: trueTarget, TargetB: falseTarget})
}

// fuseCompareAndJump rewinds a comparison whose single-use result is the
// condition of the branch being emitted and replaces both with the fused
// compare-and-branch form. Nothing can have been emitted in between.
func (g *Generator) fuseCompareAndJump(condition ScopedOperand, trueTarget, falseTarget bytecode.Label) bool {
	op := condition.Operand()
	if op.Kind() != bytecode.OperandRegister || op.Index() < bytecode.ReservedRegisters {
		return false
	}
	if condition.state.refCount != 1 {
		return false
	}
	b := g.current
	if b.terminated || len(b.instructions) == 0 {
		return false
	}
	last := b.instructions[len(b.instructions)-1]
	fused, ok := bytecode.FusedJump(last.Op)
	if !ok || last.A != op {
		return false
	}
	b.instructions = b.instructions[:len(b.instructions)-1]
	b.positions = b.positions[:len(b.positions)-1]
	g.emit(bytecode.Instruction{Op: fused, A: last.B, B: last.C, TargetA: trueTarget, TargetB: falseTarget})
	return true
}

// generateBreak emits the code leaving every construct between the
// current position and the innermost breakable scope, then jumps to its
// target. Finalizers on the way are entered through ScheduleJump and the
// walk resumes in the continuation block.
func (g *Generator) generateBreak() {
	g.generateScopedJump(boundaryBreak)
}

// generateContinue is generateBreak for the innermost continuable scope.
func (g *Generator) generateContinue() {
	g.generateScopedJump(boundaryContinue)
}

func (g *Generator) generateScopedJump(kind boundaryKind) {
	scopes := g.breakableScopes
	if kind == boundaryContinue {
		scopes = g.continuableScopes
	}
	lastWasFinally := false
	for i := len(g.boundaries) - 1; i >= 0; i-- {
		switch boundary := g.boundaries[i]; boundary {
		case kind:
			g.emitJump(scopes[len(scopes)-1].target)
			return
		case boundaryUnwind:
			if !lastWasFinally {
				g.emit(bytecode.Instruction{Op: bytecode.OpLeaveUnwindContext})
			}
			lastWasFinally = false
		case boundaryLeaveLexicalEnvironment:
			g.emit(bytecode.Instruction{Op: bytecode.OpLeaveLexicalEnvironment})
		case boundaryReturnToFinally:
			block := g.makeBlock()
			g.emit(bytecode.Instruction{Op: bytecode.OpScheduleJump, TargetA: g.label(block)})
			g.switchTo(block)
			lastWasFinally = true
		}
	}
	panic("bug: scoped jump with no matching scope")
}

// generateLabeledBreak is generateBreak for the innermost breakable scope
// whose label set contains label.
func (g *Generator) generateLabeledBreak(label string) {
	g.generateLabeledScopedJump(boundaryBreak, label)
}

// generateLabeledContinue is generateContinue for the innermost
// continuable scope whose label set contains label.
func (g *Generator) generateLabeledContinue(label string) {
	g.generateLabeledScopedJump(boundaryContinue, label)
}

func (g *Generator) generateLabeledScopedJump(kind boundaryKind, label string) {
	scopes := g.breakableScopes
	if kind == boundaryContinue {
		scopes = g.continuableScopes
	}
	boundary := len(g.boundaries)
	lastWasFinally := false
	for s := len(scopes) - 1; s >= 0; s-- {
		// unwind down to the boundary that opened this scope
		for boundary > 0 {
			b := g.boundaries[boundary-1]
			boundary--
			if b == kind {
				break
			}
			switch b {
			case boundaryUnwind:
				if !lastWasFinally {
					g.emit(bytecode.Instruction{Op: bytecode.OpLeaveUnwindContext})
				}
				lastWasFinally = false
			case boundaryLeaveLexicalEnvironment:
				g.emit(bytecode.Instruction{Op: bytecode.OpLeaveLexicalEnvironment})
			case boundaryReturnToFinally:
				block := g.makeBlock()
				g.emit(bytecode.Instruction{Op: bytecode.OpScheduleJump, TargetA: g.label(block)})
				g.switchTo(block)
				lastWasFinally = true
			}
		}
		for _, l := range scopes[s].labels {
			if l == label {
				g.emitJump(scopes[s].target)
				return
			}
		}
	}
	panic("bug: no scope with label " + label)
}

// EmitReturn emits the code leaving every active construct, entering each
// finalizer on the way through ScheduleJump, and returns value from the
// continuation.
func (g *Generator) EmitReturn(value ScopedOperand) {
	lastWasFinally := false
	for i := len(g.boundaries) - 1; i >= 0; i-- {
		switch g.boundaries[i] {
		case boundaryUnwind:
			if !lastWasFinally {
				g.emit(bytecode.Instruction{Op: bytecode.OpLeaveUnwindContext})
			}
			lastWasFinally = false
		case boundaryLeaveLexicalEnvironment:
			g.emit(bytecode.Instruction{Op: bytecode.OpLeaveLexicalEnvironment})
		case boundaryReturnToFinally:
			block := g.makeBlock()
			g.emit(bytecode.Instruction{Op: bytecode.OpScheduleJump, TargetA: g.label(block)})
			g.switchTo(block)
			lastWasFinally = true
		}
	}
	g.emit(bytecode.Instruction{Op: bytecode.OpReturn, A: value.Operand()})
}

// performNeededUnwindsForThrow leaves the lexical environments entered
// since the innermost try region. The region's own cleanup is the
// interpreter's job once the exception dispatches through the handler
// table.
func (g *Generator) performNeededUnwindsForThrow() {
	for i := len(g.boundaries) - 1; i >= 0; i-- {
		switch g.boundaries[i] {
		case boundaryUnwind, boundaryReturnToFinally:
			return
		case boundaryLeaveLexicalEnvironment:
			g.emit(bytecode.Instruction{Op: bytecode.OpLeaveLexicalEnvironment})
		}
	}
}
