// Copyright (c) 2019 Open2b Software Snc. All rights reserved.
// https://www.open2b.com

// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package compiler

import (
	"math"

	"github.com/open2b/vela/ast"
	"github.com/open2b/vela/bytecode"
)

// generateExpression lowers an expression and returns the operand holding
// its value. The operand may be a constant, a local slot or a register;
// the caller releases it.
func (g *Generator) generateExpression(node ast.Expression) (ScopedOperand, error) {
	g.setSourceNode(node)
	switch n := node.(type) {
	case *ast.Identifier:
		return g.generateIdentifier(n)
	case *ast.NumberLiteral:
		return g.AddConstant(numberValue(n.Value)), nil
	case *ast.StringLiteral:
		return g.AddConstant(bytecode.String(n.Value)), nil
	case *ast.BooleanLiteral:
		return g.AddConstant(bytecode.Boolean(n.Value)), nil
	case *ast.NullLiteral:
		return g.AddConstant(bytecode.Null()), nil
	case *ast.RegExpLiteral:
		dst := g.AllocateRegister()
		g.emit(bytecode.Instruction{Op: bytecode.OpNewRegExp, A: dst.Operand(), Index: g.addRegex(n.Pattern, n.Flags)})
		return dst, nil
	case *ast.ThisExpression:
		return g.GetThis(), nil
	case *ast.MemberExpression:
		r, err := g.evaluateReference(n)
		if err != nil {
			return ScopedOperand{}, err
		}
		value, err := g.loadReference(r)
		r.release()
		return value, err
	case *ast.CallExpression:
		return g.generateCall(n)
	case *ast.UnaryExpression:
		return g.generateUnary(n)
	case *ast.BinaryExpression:
		return g.generateBinary(n)
	case *ast.LogicalExpression:
		return g.generateLogical(n)
	case *ast.ConditionalExpression:
		return g.generateConditional(n)
	case *ast.AssignmentExpression:
		return g.generateAssignment(n)
	case *ast.UpdateExpression:
		return g.generateUpdate(n)
	case *ast.SequenceExpression:
		var last ScopedOperand
		for _, e := range n.Expressions {
			v, err := g.generateExpression(e)
			if err != nil {
				return ScopedOperand{}, err
			}
			if last.IsValid() {
				last.Release()
			}
			last = v
		}
		return last, nil
	case *ast.ArrayLiteral:
		return g.generateArrayLiteral(n)
	case *ast.ObjectLiteral:
		return g.generateObjectLiteral(n)
	case *ast.FunctionExpression:
		index, err := g.registerFunction(n.Function)
		if err != nil {
			return ScopedOperand{}, err
		}
		dst := g.AllocateRegister()
		g.emit(bytecode.Instruction{Op: bytecode.OpNewFunction, A: dst.Operand(), Index: index})
		return dst, nil
	case *ast.SuperExpression:
		return ScopedOperand{}, codeGenerationErrorf(node, "super is only valid in a member expression")
	case *ast.PrivateIdentifier:
		return ScopedOperand{}, codeGenerationErrorf(node, "private identifier is only valid as a member property")
	}
	return ScopedOperand{}, codeGenerationErrorf(node, "cannot generate bytecode for this expression")
}

// numberValue returns the most compact constant for a number literal:
// integral values that fit in 32 bits intern as int32.
func numberValue(f float64) bytecode.Value {
	if f == math.Trunc(f) && f >= math.MinInt32 && f <= math.MaxInt32 {
		// negative zero is not an int32
		if f != 0 || !math.Signbit(f) {
			return bytecode.Int32(int32(f))
		}
	}
	return bytecode.Number(f)
}

// generateIdentifier loads an identifier: a resolved local slot directly,
// the builtin undefined as a constant, anything else through its binding.
func (g *Generator) generateIdentifier(n *ast.Identifier) (ScopedOperand, error) {
	if n.Local != nil {
		return g.scoped(g.localOperand(*n.Local)), nil
	}
	if n.Name == "undefined" {
		return g.AddConstant(bytecode.Undefined()), nil
	}
	dst := g.AllocateRegister()
	g.emit(bytecode.Instruction{Op: bytecode.OpGetBinding, A: dst.Operand(), Name: g.internIdentifier(n.Name)})
	return dst, nil
}

func (g *Generator) generateCall(n *ast.CallExpression) (ScopedOperand, error) {
	var callee, thisValue ScopedOperand
	if member, ok := n.Callee.(*ast.MemberExpression); ok {
		// a member callee passes its base as the this value
		r, err := g.evaluateReference(member)
		if err != nil {
			return ScopedOperand{}, err
		}
		callee, err = g.loadReference(r)
		if err != nil {
			r.release()
			return ScopedOperand{}, err
		}
		if r.isSuper {
			thisValue = r.thisValue.Ref()
		} else {
			thisValue = r.base.Ref()
		}
		r.release()
	} else {
		var err error
		callee, err = g.generateExpression(n.Callee)
		if err != nil {
			return ScopedOperand{}, err
		}
		thisValue = g.AddConstant(bytecode.Undefined())
	}
	args := make([]ScopedOperand, len(n.Arguments))
	operands := make([]bytecode.Operand, len(n.Arguments))
	for i, arg := range n.Arguments {
		v, err := g.generateExpression(arg)
		if err != nil {
			return ScopedOperand{}, err
		}
		v = g.CopyIfNeededToPreserveEvaluationOrder(v)
		args[i] = v
		operands[i] = v.Operand()
	}
	dst := g.AllocateRegister()
	g.emit(bytecode.Instruction{
		Op:   bytecode.OpCall,
		A:    dst.Operand(),
		B:    callee.Operand(),
		C:    thisValue.Operand(),
		List: operands,
	})
	for _, a := range args {
		a.Release()
	}
	thisValue.Release()
	callee.Release()
	return dst, nil
}

func (g *Generator) generateUnary(n *ast.UnaryExpression) (ScopedOperand, error) {
	switch n.Op {
	case ast.UnaryDelete:
		return g.emitDeleteReference(n.Operand)
	case ast.UnaryVoid:
		value, err := g.generateExpression(n.Operand)
		if err != nil {
			return ScopedOperand{}, err
		}
		value.Release()
		return g.AddConstant(bytecode.Undefined()), nil
	case ast.UnaryTypeof:
		// typeof on an unresolvable binding yields "undefined" instead
		// of throwing, so identifiers go through TypeofBinding
		if id, ok := n.Operand.(*ast.Identifier); ok && id.Local == nil {
			dst := g.AllocateRegister()
			g.emit(bytecode.Instruction{Op: bytecode.OpTypeofBinding, A: dst.Operand(), Name: g.internIdentifier(id.Name)})
			return dst, nil
		}
	}
	value, err := g.generateExpression(n.Operand)
	if err != nil {
		return ScopedOperand{}, err
	}
	var op bytecode.Opcode
	switch n.Op {
	case ast.UnaryMinus:
		op = bytecode.OpUnaryMinus
	case ast.UnaryPlus:
		op = bytecode.OpUnaryPlus
	case ast.UnaryNot:
		op = bytecode.OpNot
	case ast.UnaryBitwiseNot:
		op = bytecode.OpBitwiseNot
	case ast.UnaryTypeof:
		op = bytecode.OpTypeof
	}
	dst := g.AllocateRegister()
	g.emit(bytecode.Instruction{Op: op, A: dst.Operand(), B: value.Operand()})
	value.Release()
	return dst, nil
}

// binaryOpcode maps a binary operator to its opcode.
func binaryOpcode(op ast.BinaryOperator) bytecode.Opcode {
	switch op {
	case ast.BinaryAdd:
		return bytecode.OpAdd
	case ast.BinarySub:
		return bytecode.OpSub
	case ast.BinaryMul:
		return bytecode.OpMul
	case ast.BinaryDiv:
		return bytecode.OpDiv
	case ast.BinaryMod:
		return bytecode.OpMod
	case ast.BinaryBitwiseAnd:
		return bytecode.OpBitwiseAnd
	case ast.BinaryBitwiseOr:
		return bytecode.OpBitwiseOr
	case ast.BinaryBitwiseXor:
		return bytecode.OpBitwiseXor
	case ast.BinaryLeftShift:
		return bytecode.OpLeftShift
	case ast.BinaryRightShift:
		return bytecode.OpRightShift
	case ast.BinaryUnsignedRightShift:
		return bytecode.OpUnsignedRightShift
	case ast.BinaryLessThan:
		return bytecode.OpLessThan
	case ast.BinaryLessThanEquals:
		return bytecode.OpLessThanEquals
	case ast.BinaryGreaterThan:
		return bytecode.OpGreaterThan
	case ast.BinaryGreaterThanEquals:
		return bytecode.OpGreaterThanEquals
	case ast.BinaryLooselyEquals:
		return bytecode.OpLooselyEquals
	case ast.BinaryLooselyInequals:
		return bytecode.OpLooselyInequals
	case ast.BinaryStrictlyEquals:
		return bytecode.OpStrictlyEquals
	case ast.BinaryStrictlyInequals:
		return bytecode.OpStrictlyInequals
	}
	panic("bug: unknown binary operator")
}

func (g *Generator) generateBinary(n *ast.BinaryExpression) (ScopedOperand, error) {
	lhs, err := g.generateExpression(n.Left)
	if err != nil {
		return ScopedOperand{}, err
	}
	lhs = g.CopyIfNeededToPreserveEvaluationOrder(lhs)
	rhs, err := g.generateExpression(n.Right)
	if err != nil {
		lhs.Release()
		return ScopedOperand{}, err
	}
	dst := g.AllocateRegister()
	g.emit(bytecode.Instruction{Op: binaryOpcode(n.Op), A: dst.Operand(), B: lhs.Operand(), C: rhs.Operand()})
	lhs.Release()
	rhs.Release()
	return dst, nil
}

func (g *Generator) generateLogical(n *ast.LogicalExpression) (ScopedOperand, error) {
	dst := g.AllocateRegister()
	lhs, err := g.generateExpression(n.Left)
	if err != nil {
		dst.Release()
		return ScopedOperand{}, err
	}
	g.emitMov(dst.Operand(), lhs.Operand())
	lhs.Release()
	rhsBlock := g.makeBlock()
	endBlock := g.makeBlock()
	switch n.Op {
	case ast.LogicalAnd:
		g.EmitJumpIf(dst, g.label(rhsBlock), g.label(endBlock))
	case ast.LogicalOr:
		g.EmitJumpIf(dst, g.label(endBlock), g.label(rhsBlock))
	case ast.LogicalNullish:
		g.emit(bytecode.Instruction{Op: bytecode.OpJumpNullish, A: dst.Operand(), TargetA: g.label(rhsBlock), TargetB: g.label(endBlock)})
	}
	g.switchTo(rhsBlock)
	rhs, err := g.generateExpression(n.Right)
	if err != nil {
		dst.Release()
		return ScopedOperand{}, err
	}
	g.emitMov(dst.Operand(), rhs.Operand())
	rhs.Release()
	if !g.currentTerminated() {
		g.emitJump(g.label(endBlock))
	}
	g.switchTo(endBlock)
	return dst, nil
}

func (g *Generator) generateConditional(n *ast.ConditionalExpression) (ScopedOperand, error) {
	condition, err := g.generateExpression(n.Test)
	if err != nil {
		return ScopedOperand{}, err
	}
	trueBlock := g.makeBlock()
	falseBlock := g.makeBlock()
	endBlock := g.makeBlock()
	g.EmitJumpIf(condition, g.label(trueBlock), g.label(falseBlock))
	condition.Release()
	dst := g.AllocateRegister()
	g.switchTo(trueBlock)
	value, err := g.generateExpression(n.Consequent)
	if err != nil {
		dst.Release()
		return ScopedOperand{}, err
	}
	g.emitMov(dst.Operand(), value.Operand())
	value.Release()
	if !g.currentTerminated() {
		g.emitJump(g.label(endBlock))
	}
	g.switchTo(falseBlock)
	value, err = g.generateExpression(n.Alternate)
	if err != nil {
		dst.Release()
		return ScopedOperand{}, err
	}
	g.emitMov(dst.Operand(), value.Operand())
	value.Release()
	if !g.currentTerminated() {
		g.emitJump(g.label(endBlock))
	}
	g.switchTo(endBlock)
	return dst, nil
}

func (g *Generator) generateAssignment(n *ast.AssignmentExpression) (ScopedOperand, error) {
	r, err := g.evaluateReference(n.Target)
	if err != nil {
		return ScopedOperand{}, err
	}
	if n.Op == ast.AssignmentSimple {
		value, err := g.generateExpression(n.Value)
		if err != nil {
			r.release()
			return ScopedOperand{}, err
		}
		g.storeReference(r, value)
		r.release()
		return value, nil
	}
	current, err := g.loadReference(r)
	if err != nil {
		r.release()
		return ScopedOperand{}, err
	}
	current = g.CopyIfNeededToPreserveEvaluationOrder(current)
	rhs, err := g.generateExpression(n.Value)
	if err != nil {
		current.Release()
		r.release()
		return ScopedOperand{}, err
	}
	dst := g.AllocateRegister()
	g.emit(bytecode.Instruction{Op: binaryOpcode(n.Op.Binary()), A: dst.Operand(), B: current.Operand(), C: rhs.Operand()})
	current.Release()
	rhs.Release()
	g.storeReference(r, dst)
	r.release()
	return dst, nil
}

func (g *Generator) generateUpdate(n *ast.UpdateExpression) (ScopedOperand, error) {
	r, err := g.evaluateReference(n.Operand)
	if err != nil {
		return ScopedOperand{}, err
	}
	current, err := g.loadReference(r)
	if err != nil {
		r.release()
		return ScopedOperand{}, err
	}
	// the update mutates a register in place; the current value is moved
	// out of constant and local slots first
	value := current
	if value.Operand().Kind() != bytecode.OperandRegister {
		value = g.AllocateRegister()
		g.emitMov(value.Operand(), current.Operand())
		current.Release()
	}
	op := bytecode.OpIncrement
	if n.Decrement {
		op = bytecode.OpDecrement
	}
	var result ScopedOperand
	if !n.Prefix {
		result = g.AllocateRegister()
		g.emitMov(result.Operand(), value.Operand())
	}
	g.emit(bytecode.Instruction{Op: op, A: value.Operand()})
	g.storeReference(r, value)
	r.release()
	if n.Prefix {
		return value, nil
	}
	value.Release()
	return result, nil
}

func (g *Generator) generateArrayLiteral(n *ast.ArrayLiteral) (ScopedOperand, error) {
	elements := make([]ScopedOperand, len(n.Elements))
	operands := make([]bytecode.Operand, len(n.Elements))
	for i, e := range n.Elements {
		v, err := g.generateExpression(e)
		if err != nil {
			return ScopedOperand{}, err
		}
		v = g.CopyIfNeededToPreserveEvaluationOrder(v)
		elements[i] = v
		operands[i] = v.Operand()
	}
	dst := g.AllocateRegister()
	g.emit(bytecode.Instruction{Op: bytecode.OpNewArray, A: dst.Operand(), List: operands})
	for _, e := range elements {
		e.Release()
	}
	return dst, nil
}

func (g *Generator) generateObjectLiteral(n *ast.ObjectLiteral) (ScopedOperand, error) {
	dst := g.AllocateRegister()
	g.emit(bytecode.Instruction{Op: bytecode.OpNewObject, A: dst.Operand()})
	for _, p := range n.Properties {
		if p.Computed {
			key, err := g.generateExpression(p.Key)
			if err != nil {
				dst.Release()
				return ScopedOperand{}, err
			}
			key = g.CopyIfNeededToPreserveEvaluationOrder(key)
			value, err := g.generateExpression(p.Value)
			if err != nil {
				key.Release()
				dst.Release()
				return ScopedOperand{}, err
			}
			g.emit(bytecode.Instruction{Op: bytecode.OpPutByValue, A: dst.Operand(), B: key.Operand(), C: value.Operand()})
			value.Release()
			key.Release()
			continue
		}
		var name string
		switch k := p.Key.(type) {
		case *ast.Identifier:
			name = k.Name
		case *ast.StringLiteral:
			name = k.Value
		default:
			dst.Release()
			return ScopedOperand{}, codeGenerationErrorf(p.Key, "invalid object literal key")
		}
		value, err := g.generateExpression(p.Value)
		if err != nil {
			dst.Release()
			return ScopedOperand{}, err
		}
		g.emit(bytecode.Instruction{Op: bytecode.OpPutByID, A: dst.Operand(), B: value.Operand(), Name: g.internIdentifier(name)})
		value.Release()
	}
	return dst, nil
}
