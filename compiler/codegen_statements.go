// Copyright (c) 2019 Open2b Software Snc. All rights reserved.
// https://www.open2b.com

// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package compiler

import (
	"github.com/open2b/vela/ast"
	"github.com/open2b/vela/bytecode"
)

// generateStatement lowers a statement. Expression statements return the
// operand of their value, the completion value of the unit; all other
// statements return an invalid operand.
func (g *Generator) generateStatement(node ast.Statement) (ScopedOperand, error) {
	g.setSourceNode(node)
	switch n := node.(type) {
	case *ast.ExpressionStatement:
		return g.generateExpression(n.Expression)
	case *ast.EmptyStatement:
		return ScopedOperand{}, nil
	case *ast.VariableDeclaration:
		return ScopedOperand{}, g.generateVariableDeclaration(n)
	case *ast.FunctionDeclaration:
		// hoisted; initialized by the enclosing declaration instantiation
		return ScopedOperand{}, nil
	case *ast.BlockStatement:
		return g.generateBlock(n)
	case *ast.IfStatement:
		return ScopedOperand{}, g.generateIf(n)
	case *ast.WhileStatement:
		return ScopedOperand{}, g.generateWhile(n, nil)
	case *ast.DoWhileStatement:
		return ScopedOperand{}, g.generateDoWhile(n, nil)
	case *ast.ForStatement:
		return ScopedOperand{}, g.generateFor(n, nil)
	case *ast.LabeledStatement:
		return ScopedOperand{}, g.generateLabeled(n)
	case *ast.BreakStatement:
		if n.Label == "" {
			g.generateBreak()
		} else {
			g.generateLabeledBreak(n.Label)
		}
		return ScopedOperand{}, nil
	case *ast.ContinueStatement:
		if n.Label == "" {
			g.generateContinue()
		} else {
			g.generateLabeledContinue(n.Label)
		}
		return ScopedOperand{}, nil
	case *ast.ReturnStatement:
		var value ScopedOperand
		if n.Value != nil {
			var err error
			value, err = g.generateExpression(n.Value)
			if err != nil {
				return ScopedOperand{}, err
			}
		} else {
			value = g.AddConstant(bytecode.Undefined())
		}
		g.EmitReturn(value)
		value.Release()
		return ScopedOperand{}, nil
	case *ast.ThrowStatement:
		value, err := g.generateExpression(n.Value)
		if err != nil {
			return ScopedOperand{}, err
		}
		g.performNeededUnwindsForThrow()
		g.emit(bytecode.Instruction{Op: bytecode.OpThrow, A: value.Operand()})
		value.Release()
		return ScopedOperand{}, nil
	case *ast.TryStatement:
		return ScopedOperand{}, g.generateTry(n)
	case *ast.SwitchStatement:
		return ScopedOperand{}, g.generateSwitch(n)
	}
	return ScopedOperand{}, codeGenerationErrorf(node, "cannot generate bytecode for this statement")
}

// generateStatements lowers a statement list, stopping at the first
// statement that terminates the current block. It returns the value of
// the last value-producing statement.
func (g *Generator) generateStatements(stmts []ast.Statement) (ScopedOperand, error) {
	var last ScopedOperand
	for _, s := range stmts {
		v, err := g.generateStatement(s)
		if err != nil {
			return ScopedOperand{}, err
		}
		if v.IsValid() {
			if last.IsValid() {
				last.Release()
			}
			last = v
		}
		if g.currentTerminated() {
			break
		}
	}
	return last, nil
}

func (g *Generator) generateBlock(n *ast.BlockStatement) (ScopedOperand, error) {
	created := false
	if n.Scope != nil {
		var err error
		created, err = g.emitBlockDeclarationInstantiation(n.Scope)
		if err != nil {
			return ScopedOperand{}, err
		}
	}
	last, err := g.generateStatements(n.Body)
	if created {
		g.endVariableScope()
	}
	return last, err
}

func (g *Generator) generateVariableDeclaration(n *ast.VariableDeclaration) error {
	for _, d := range n.Declarations {
		init := d.Init
		if init == nil {
			if n.Kind != ast.DeclarationLet {
				// var bindings are initialized at entry; const without an
				// initializer is rejected upstream
				continue
			}
		}
		var value ScopedOperand
		if init != nil {
			var err error
			value, err = g.generateExpression(init)
			if err != nil {
				return err
			}
		} else {
			value = g.AddConstant(bytecode.Undefined())
		}
		if d.Target.Local != nil {
			g.emitMov(g.localOperand(*d.Target.Local), value.Operand())
		} else {
			name := g.internIdentifier(d.Target.Name)
			if n.Kind == ast.DeclarationVar {
				g.emit(bytecode.Instruction{Op: bytecode.OpSetVariableBinding, A: value.Operand(), Name: name})
			} else {
				g.emit(bytecode.Instruction{Op: bytecode.OpInitializeLexicalBinding, A: value.Operand(), Name: name})
			}
		}
		value.Release()
	}
	return nil
}

func (g *Generator) generateIf(n *ast.IfStatement) error {
	condition, err := g.generateExpression(n.Test)
	if err != nil {
		return err
	}
	trueBlock := g.makeBlock()
	var falseBlock *basicBlock
	if n.Alternate != nil {
		falseBlock = g.makeBlock()
	}
	endBlock := g.makeBlock()
	falseTarget := g.label(endBlock)
	if falseBlock != nil {
		falseTarget = g.label(falseBlock)
	}
	g.EmitJumpIf(condition, g.label(trueBlock), falseTarget)
	condition.Release()
	g.switchTo(trueBlock)
	if _, err := g.generateStatement(n.Consequent); err != nil {
		return err
	}
	if !g.currentTerminated() {
		g.emitJump(g.label(endBlock))
	}
	if falseBlock != nil {
		g.switchTo(falseBlock)
		if _, err := g.generateStatement(n.Alternate); err != nil {
			return err
		}
		if !g.currentTerminated() {
			g.emitJump(g.label(endBlock))
		}
	}
	g.switchTo(endBlock)
	return nil
}

func (g *Generator) generateWhile(n *ast.WhileStatement, labels []string) error {
	testBlock := g.makeBlock()
	bodyBlock := g.makeBlock()
	endBlock := g.makeBlock()
	g.emitJump(g.label(testBlock))
	g.switchTo(testBlock)
	condition, err := g.generateExpression(n.Test)
	if err != nil {
		return err
	}
	g.EmitJumpIf(condition, g.label(bodyBlock), g.label(endBlock))
	condition.Release()
	g.switchTo(bodyBlock)
	g.beginBreakableScope(g.label(endBlock), labels)
	g.beginContinuableScope(g.label(testBlock), labels)
	_, err = g.generateStatement(n.Body)
	if err == nil && !g.currentTerminated() {
		g.emitJump(g.label(testBlock))
	}
	g.endContinuableScope()
	g.endBreakableScope()
	if err != nil {
		return err
	}
	g.switchTo(endBlock)
	return nil
}

func (g *Generator) generateDoWhile(n *ast.DoWhileStatement, labels []string) error {
	bodyBlock := g.makeBlock()
	testBlock := g.makeBlock()
	endBlock := g.makeBlock()
	g.emitJump(g.label(bodyBlock))
	g.switchTo(bodyBlock)
	g.beginBreakableScope(g.label(endBlock), labels)
	g.beginContinuableScope(g.label(testBlock), labels)
	_, err := g.generateStatement(n.Body)
	if err == nil && !g.currentTerminated() {
		g.emitJump(g.label(testBlock))
	}
	g.endContinuableScope()
	g.endBreakableScope()
	if err != nil {
		return err
	}
	g.switchTo(testBlock)
	condition, err := g.generateExpression(n.Test)
	if err != nil {
		return err
	}
	g.EmitJumpIf(condition, g.label(bodyBlock), g.label(endBlock))
	condition.Release()
	g.switchTo(endBlock)
	return nil
}

func (g *Generator) generateFor(n *ast.ForStatement, labels []string) error {
	// a lexical init declaration scopes its bindings to the loop
	created := false
	if d, ok := n.Init.(*ast.VariableDeclaration); ok && d.Kind != ast.DeclarationVar {
		needsEnvironment := false
		for _, dec := range d.Declarations {
			if dec.Target.Local == nil {
				needsEnvironment = true
				break
			}
		}
		if needsEnvironment {
			env := g.beginVariableScope()
			for _, dec := range d.Declarations {
				if dec.Target.Local != nil {
					continue
				}
				op := bytecode.OpCreateMutableBinding
				if d.Kind == ast.DeclarationConst {
					op = bytecode.OpCreateImmutableBinding
				}
				g.emit(bytecode.Instruction{Op: op, A: env.Operand(), Name: g.internIdentifier(dec.Target.Name)})
			}
			created = true
		}
	}
	if n.Init != nil {
		if _, err := g.generateStatement(n.Init); err != nil {
			return err
		}
	}
	var testBlock *basicBlock
	if n.Test != nil {
		testBlock = g.makeBlock()
	}
	bodyBlock := g.makeBlock()
	var updateBlock *basicBlock
	if n.Update != nil {
		updateBlock = g.makeBlock()
	}
	endBlock := g.makeBlock()

	loopStart := bodyBlock
	if testBlock != nil {
		loopStart = testBlock
	}
	continueTarget := loopStart
	if updateBlock != nil {
		continueTarget = updateBlock
	}

	g.emitJump(g.label(loopStart))
	if testBlock != nil {
		g.switchTo(testBlock)
		condition, err := g.generateExpression(n.Test)
		if err != nil {
			return err
		}
		g.EmitJumpIf(condition, g.label(bodyBlock), g.label(endBlock))
		condition.Release()
	}
	g.switchTo(bodyBlock)
	g.beginBreakableScope(g.label(endBlock), labels)
	g.beginContinuableScope(g.label(continueTarget), labels)
	_, err := g.generateStatement(n.Body)
	if err == nil && !g.currentTerminated() {
		g.emitJump(g.label(continueTarget))
	}
	g.endContinuableScope()
	g.endBreakableScope()
	if err != nil {
		return err
	}
	if updateBlock != nil {
		g.switchTo(updateBlock)
		update, err := g.generateExpression(n.Update)
		if err != nil {
			return err
		}
		update.Release()
		g.emitJump(g.label(loopStart))
	}
	g.switchTo(endBlock)
	if created {
		g.endVariableScope()
	}
	return nil
}

func (g *Generator) generateLabeled(n *ast.LabeledStatement) error {
	labels := []string{n.Label}
	body := n.Body
	for {
		l, ok := body.(*ast.LabeledStatement)
		if !ok {
			break
		}
		labels = append(labels, l.Label)
		body = l.Body
	}
	switch b := body.(type) {
	case *ast.WhileStatement:
		return g.generateWhile(b, labels)
	case *ast.DoWhileStatement:
		return g.generateDoWhile(b, labels)
	case *ast.ForStatement:
		return g.generateFor(b, labels)
	}
	// a labeled non-loop statement is a breakable region
	endBlock := g.makeBlock()
	g.beginBreakableScope(g.label(endBlock), labels)
	_, err := g.generateStatement(body)
	if err == nil && !g.currentTerminated() {
		g.emitJump(g.label(endBlock))
	}
	g.endBreakableScope()
	if err != nil {
		return err
	}
	g.switchTo(endBlock)
	return nil
}

func (g *Generator) generateTry(n *ast.TryStatement) error {
	savedBlock := g.current
	handlerIndex, finalizerIndex := -1, -1
	var finalizerBlock *basicBlock
	var nextBlock *basicBlock

	if n.Finalizer != nil {
		// the finalizer body runs outside the try context; it is entered
		// by falling out of the try or catch body, by an unwinding
		// exception, or by a scheduled jump crossing it
		finalizerBlock = g.makeBlock()
		g.switchTo(finalizerBlock)
		g.emit(bytecode.Instruction{Op: bytecode.OpLeaveUnwindContext})
		g.startBoundary(boundaryLeaveFinally)
		_, err := g.generateBlock(n.Finalizer)
		g.endBoundary(boundaryLeaveFinally)
		if err != nil {
			return err
		}
		if !g.currentTerminated() {
			nextBlock = g.makeBlock()
			g.emit(bytecode.Instruction{Op: bytecode.OpContinuePendingUnwind, TargetA: g.label(nextBlock)})
		}
		finalizerIndex = finalizerBlock.index
	}

	if n.Handler != nil {
		// the catch body runs under the finalizer's protection only; the
		// finalizer entry leaves that context, so a scoped jump crossing
		// it schedules through the finalizer and skips the leave
		if finalizerBlock != nil {
			g.pushUnwindContext(-1, finalizerIndex)
			g.startBoundary(boundaryUnwind)
			g.startBoundary(boundaryReturnToFinally)
		}
		handlerBlock := g.makeBlock()
		g.switchTo(handlerBlock)
		exception := g.AllocateRegister()
		g.emit(bytecode.Instruction{Op: bytecode.OpCatch, A: exception.Operand()})
		catchScope := false
		if p := n.Handler.Parameter; p != nil {
			if p.Local != nil {
				g.emitMov(g.localOperand(*p.Local), exception.Operand())
			} else {
				env := g.beginVariableScope()
				g.emit(bytecode.Instruction{Op: bytecode.OpCreateMutableBinding, A: env.Operand(), Name: g.internIdentifier(p.Name)})
				g.emit(bytecode.Instruction{Op: bytecode.OpInitializeLexicalBinding, A: exception.Operand(), Name: g.internIdentifier(p.Name)})
				catchScope = true
			}
		}
		exception.Release()
		_, err := g.generateBlock(n.Handler.Body)
		if err != nil {
			return err
		}
		if catchScope {
			g.endVariableScope()
		}
		if !g.currentTerminated() {
			if finalizerBlock != nil {
				g.emitJump(g.label(finalizerBlock))
			} else {
				if nextBlock == nil {
					nextBlock = g.makeBlock()
				}
				g.emitJump(g.label(nextBlock))
			}
		}
		if finalizerBlock != nil {
			g.endBoundary(boundaryReturnToFinally)
			g.endBoundary(boundaryUnwind)
			g.popUnwindContext()
		}
		handlerIndex = handlerBlock.index
	}

	g.pushUnwindContext(handlerIndex, finalizerIndex)
	entryBlock := g.makeBlock()
	g.switchTo(savedBlock)
	g.emit(bytecode.Instruction{Op: bytecode.OpEnterUnwindContext, TargetA: g.label(entryBlock)})
	g.startBoundary(boundaryUnwind)
	if finalizerBlock != nil {
		g.startBoundary(boundaryReturnToFinally)
	}
	g.switchTo(entryBlock)
	_, err := g.generateBlock(n.Block)
	if err != nil {
		return err
	}
	if !g.currentTerminated() {
		if finalizerBlock != nil {
			// the finalizer entry leaves the unwind context
			g.emitJump(g.label(finalizerBlock))
		} else {
			g.emit(bytecode.Instruction{Op: bytecode.OpLeaveUnwindContext})
			if nextBlock == nil {
				nextBlock = g.makeBlock()
			}
			g.emitJump(g.label(nextBlock))
		}
	}
	if finalizerBlock != nil {
		g.endBoundary(boundaryReturnToFinally)
	}
	g.endBoundary(boundaryUnwind)
	g.popUnwindContext()

	if nextBlock == nil {
		nextBlock = g.makeBlock()
	}
	g.switchTo(nextBlock)
	return nil
}

func (g *Generator) generateSwitch(n *ast.SwitchStatement) error {
	discriminant, err := g.generateExpression(n.Discriminant)
	if err != nil {
		return err
	}
	discriminant = g.CopyIfNeededToPreserveEvaluationOrder(discriminant)
	caseBlocks := make([]*basicBlock, len(n.Cases))
	for i := range n.Cases {
		caseBlocks[i] = g.makeBlock()
	}
	endBlock := g.makeBlock()

	defaultIndex := -1
	for i, c := range n.Cases {
		if c.Test == nil {
			defaultIndex = i
			continue
		}
		nextTest := g.makeBlock()
		test, err := g.generateExpression(c.Test)
		if err != nil {
			return err
		}
		match := g.AllocateRegister()
		g.emit(bytecode.Instruction{Op: bytecode.OpStrictlyEquals, A: match.Operand(), B: discriminant.Operand(), C: test.Operand()})
		g.EmitJumpIf(match, g.label(caseBlocks[i]), g.label(nextTest))
		match.Release()
		test.Release()
		g.switchTo(nextTest)
	}
	if defaultIndex >= 0 {
		g.emitJump(g.label(caseBlocks[defaultIndex]))
	} else {
		g.emitJump(g.label(endBlock))
	}
	discriminant.Release()

	g.beginBreakableScope(g.label(endBlock), nil)
	for i, c := range n.Cases {
		g.switchTo(caseBlocks[i])
		if _, err := g.generateStatements(c.Body); err != nil {
			g.endBreakableScope()
			return err
		}
		if !g.currentTerminated() {
			if i+1 < len(caseBlocks) {
				g.emitJump(g.label(caseBlocks[i+1]))
			} else {
				g.emitJump(g.label(endBlock))
			}
		}
	}
	g.endBreakableScope()
	g.switchTo(endBlock)
	return nil
}

// emitFunctionDeclarationInstantiation emits the entry protocol of a
// function: parameter binding (defaults, rest, shallow patterns),
// hoisted var initialization, function level lexical bindings and
// hoisted function declarations.
func (g *Generator) emitFunctionDeclarationInstantiation(def *ast.FunctionDefinition) error {
	var env ScopedOperand
	for _, p := range def.Parameters {
		if parameterNeedsBinding(p) {
			env = g.AllocateRegister()
			g.emit(bytecode.Instruction{Op: bytecode.OpCreateLexicalEnvironment, A: env.Operand()})
			break
		}
	}
	if env.IsValid() {
		// duplicate parameter names share one binding
		bound := map[string]bool{}
		for _, p := range def.Parameters {
			for _, id := range parameterIdentifiers(p) {
				if id.Local == nil && !bound[id.Name] {
					bound[id.Name] = true
					g.emit(bytecode.Instruction{Op: bytecode.OpCreateMutableBinding, A: env.Operand(), Name: g.internIdentifier(id.Name)})
				}
			}
		}
	}

	for i, p := range def.Parameters {
		var src ScopedOperand
		if p.Rest {
			src = g.AllocateRegister()
			g.emit(bytecode.Instruction{Op: bytecode.OpCreateRestParams, A: src.Operand(), Index: uint32(i)})
		} else {
			src = g.scoped(bytecode.NewArgumentOperand(uint32(i)))
		}
		if p.Default != nil {
			defaultBlock := g.makeBlock()
			continueBlock := g.makeBlock()
			g.emit(bytecode.Instruction{Op: bytecode.OpJumpUndefined, A: src.Operand(), TargetA: g.label(defaultBlock), TargetB: g.label(continueBlock)})
			g.switchTo(defaultBlock)
			value, err := g.generateExpression(p.Default)
			if err != nil {
				return err
			}
			g.emitMov(src.Operand(), value.Operand())
			value.Release()
			if !g.currentTerminated() {
				g.emitJump(g.label(continueBlock))
			}
			g.switchTo(continueBlock)
		}
		if p.Target != nil {
			g.bindParameter(p.Target, src, def.HasDuplicateParameters)
		} else {
			for j, el := range p.Pattern.Elements {
				value := g.AllocateRegister()
				if p.Pattern.Kind == ast.ObjectPattern {
					g.emit(bytecode.Instruction{Op: bytecode.OpGetByID, A: value.Operand(), B: src.Operand(), Name: g.internIdentifier(el.Key)})
				} else {
					index := g.AddConstant(bytecode.Int32(int32(j)))
					g.emit(bytecode.Instruction{Op: bytecode.OpGetByValue, A: value.Operand(), B: src.Operand(), C: index.Operand()})
					index.Release()
				}
				g.bindParameter(el.Target, value, def.HasDuplicateParameters)
				value.Release()
			}
		}
		src.Release()
	}

	if len(def.VariablesToInitialize) > 0 {
		undef := g.AddConstant(bytecode.Undefined())
		for _, v := range def.VariablesToInitialize {
			if v.Local != nil {
				g.emitMov(g.localOperand(*v.Local), undef.Operand())
			} else {
				name := g.internIdentifier(v.Name)
				g.emit(bytecode.Instruction{Op: bytecode.OpCreateVariable, Name: name})
				g.emit(bytecode.Instruction{Op: bytecode.OpInitializeVariableBinding, A: undef.Operand(), Name: name})
			}
		}
		undef.Release()
	}

	for _, l := range def.LexicalBindings {
		op := bytecode.OpCreateMutableBinding
		if l.Constant {
			op = bytecode.OpCreateImmutableBinding
		}
		g.emit(bytecode.Instruction{Op: op, Name: g.internIdentifier(l.Name)})
	}

	for _, f := range def.FunctionsToInitialize {
		index, err := g.registerFunction(f.Function)
		if err != nil {
			return err
		}
		if f.Local != nil {
			g.emit(bytecode.Instruction{Op: bytecode.OpNewFunction, A: g.localOperand(*f.Local), Index: index})
		} else {
			name := g.internIdentifier(f.Name)
			fn := g.AllocateRegister()
			g.emit(bytecode.Instruction{Op: bytecode.OpCreateVariable, Name: name})
			g.emit(bytecode.Instruction{Op: bytecode.OpNewFunction, A: fn.Operand(), Index: index})
			g.emit(bytecode.Instruction{Op: bytecode.OpSetVariableBinding, A: fn.Operand(), Name: name})
			fn.Release()
		}
	}
	return nil
}

// bindParameter stores a parameter value into its binding. Bindings with
// duplicate parameter names are set instead of initialized; only the last
// duplicate wins.
func (g *Generator) bindParameter(target *ast.Identifier, value ScopedOperand, duplicates bool) {
	if target.Local != nil {
		g.emitMov(g.localOperand(*target.Local), value.Operand())
		return
	}
	op := bytecode.OpInitializeLexicalBinding
	if duplicates {
		op = bytecode.OpSetLexicalBinding
	}
	g.emit(bytecode.Instruction{Op: op, A: value.Operand(), Name: g.internIdentifier(target.Name)})
}

// parameterNeedsBinding reports whether any name of the parameter binds
// in an environment instead of a local slot.
func parameterNeedsBinding(p ast.Parameter) bool {
	for _, id := range parameterIdentifiers(p) {
		if id.Local == nil {
			return true
		}
	}
	return false
}

// parameterIdentifiers returns the identifiers a parameter binds.
func parameterIdentifiers(p ast.Parameter) []*ast.Identifier {
	if p.Target != nil {
		return []*ast.Identifier{p.Target}
	}
	ids := make([]*ast.Identifier, 0, len(p.Pattern.Elements))
	for _, el := range p.Pattern.Elements {
		ids = append(ids, el.Target)
	}
	return ids
}
