// Copyright (c) 2019 Open2b Software Snc. All rights reserved.
// https://www.open2b.com

// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package compiler

import (
	"github.com/open2b/vela/ast"
	"github.com/open2b/vela/bytecode"
)

// A reference is an evaluated assignment target: either a direct binding
// (identifier is set, nothing else) or a member access whose base, and
// computed property if any, have been evaluated exactly once and saved so
// that load and store address the same object.
type reference struct {
	identifier *ast.Identifier

	base      ScopedOperand
	thisValue ScopedOperand // super references carry an explicit this
	property  ScopedOperand // computed member access
	name      bytecode.NameIndex
	computed  bool
	isSuper   bool
	isPrivate bool
}

// release drops the operands the reference holds.
func (r *reference) release() {
	if r.base.IsValid() {
		r.base.Release()
	}
	if r.thisValue.IsValid() {
		r.thisValue.Release()
	}
	if r.property.IsValid() {
		r.property.Release()
	}
}

// evaluateReference evaluates node as an assignment target. Identifiers
// and member expressions are the only valid shapes; anything else is a
// code generation error. The base of a member expression is copied out of
// mutable slots so later evaluations cannot move it, and a computed
// property naming a constant string collapses to by-id access.
func (g *Generator) evaluateReference(node ast.Expression) (*reference, error) {
	switch n := node.(type) {
	case *ast.Identifier:
		return &reference{identifier: n}, nil
	case *ast.MemberExpression:
		r := &reference{}
		if _, ok := n.Object.(*ast.SuperExpression); ok {
			r.isSuper = true
			r.thisValue = g.GetThis()
			base := g.AllocateRegister()
			g.emit(bytecode.Instruction{Op: bytecode.OpResolveSuperBase, A: base.Operand()})
			r.base = base
		} else {
			base, err := g.generateExpression(n.Object)
			if err != nil {
				return nil, err
			}
			r.base = g.CopyIfNeededToPreserveEvaluationOrder(base)
		}
		if n.Computed {
			if s, ok := n.Property.(*ast.StringLiteral); ok {
				r.name = g.internIdentifier(s.Value)
				return r, nil
			}
			property, err := g.generateExpression(n.Property)
			if err != nil {
				r.release()
				return nil, err
			}
			r.property = g.CopyIfNeededToPreserveEvaluationOrder(property)
			r.computed = true
			return r, nil
		}
		switch p := n.Property.(type) {
		case *ast.Identifier:
			r.name = g.internIdentifier(p.Name)
		case *ast.PrivateIdentifier:
			if r.isSuper {
				r.release()
				return nil, codeGenerationErrorf(node, "private field access through super is not allowed")
			}
			r.isPrivate = true
			r.name = g.internIdentifier(p.Name)
		default:
			r.release()
			return nil, codeGenerationErrorf(node, "invalid member property")
		}
		return r, nil
	}
	return nil, codeGenerationErrorf(node, "expression is not a valid reference")
}

// loadReference loads the current value of the reference.
func (g *Generator) loadReference(r *reference) (ScopedOperand, error) {
	if r.identifier != nil {
		return g.generateIdentifier(r.identifier)
	}
	dst := g.AllocateRegister()
	switch {
	case r.isPrivate:
		g.emit(bytecode.Instruction{Op: bytecode.OpGetPrivateByID, A: dst.Operand(), B: r.base.Operand(), Name: r.name})
	case r.isSuper && r.computed:
		g.emit(bytecode.Instruction{Op: bytecode.OpGetByValueWithThis, A: dst.Operand(), B: r.base.Operand(), C: r.property.Operand(), D: r.thisValue.Operand()})
	case r.isSuper:
		g.emit(bytecode.Instruction{Op: bytecode.OpGetByIDWithThis, A: dst.Operand(), B: r.base.Operand(), C: r.thisValue.Operand(), Name: r.name})
	case r.computed:
		g.emit(bytecode.Instruction{Op: bytecode.OpGetByValue, A: dst.Operand(), B: r.base.Operand(), C: r.property.Operand()})
	default:
		g.emit(bytecode.Instruction{Op: bytecode.OpGetByID, A: dst.Operand(), B: r.base.Operand(), Name: r.name})
	}
	return dst, nil
}

// storeReference stores value into the reference.
func (g *Generator) storeReference(r *reference, value ScopedOperand) {
	if r.identifier != nil {
		if r.identifier.Local != nil {
			g.emitMov(g.localOperand(*r.identifier.Local), value.Operand())
			return
		}
		g.emit(bytecode.Instruction{Op: bytecode.OpSetLexicalBinding, A: value.Operand(), Name: g.internIdentifier(r.identifier.Name)})
		return
	}
	switch {
	case r.isPrivate:
		g.emit(bytecode.Instruction{Op: bytecode.OpPutPrivateByID, A: r.base.Operand(), B: value.Operand(), Name: r.name})
	case r.isSuper && r.computed:
		g.emit(bytecode.Instruction{Op: bytecode.OpPutByValueWithThis, A: r.base.Operand(), B: r.property.Operand(), C: r.thisValue.Operand(), D: value.Operand()})
	case r.isSuper:
		g.emit(bytecode.Instruction{Op: bytecode.OpPutByIDWithThis, A: r.base.Operand(), B: r.thisValue.Operand(), C: value.Operand(), Name: r.name})
	case r.computed:
		g.emit(bytecode.Instruction{Op: bytecode.OpPutByValue, A: r.base.Operand(), B: r.property.Operand(), C: value.Operand()})
	default:
		g.emit(bytecode.Instruction{Op: bytecode.OpPutByID, A: r.base.Operand(), B: value.Operand(), Name: r.name})
	}
}

// emitDeleteReference lowers a delete expression. Deleting a local is a
// no-op yielding false, deleting a binding goes through DeleteVariable,
// deleting a member access deletes the property, and deleting anything
// that is not a reference evaluates it for its side effects and yields
// true.
func (g *Generator) emitDeleteReference(node ast.Expression) (ScopedOperand, error) {
	switch n := node.(type) {
	case *ast.Identifier:
		if n.Local != nil {
			return g.AddConstant(bytecode.Boolean(false)), nil
		}
		dst := g.AllocateRegister()
		g.emit(bytecode.Instruction{Op: bytecode.OpDeleteVariable, A: dst.Operand(), Name: g.internIdentifier(n.Name)})
		return dst, nil
	case *ast.MemberExpression:
		if _, ok := n.Object.(*ast.SuperExpression); ok {
			return ScopedOperand{}, codeGenerationErrorf(node, "cannot delete a super property")
		}
		if _, ok := n.Property.(*ast.PrivateIdentifier); ok {
			return ScopedOperand{}, codeGenerationErrorf(node, "cannot delete a private field")
		}
		base, err := g.generateExpression(n.Object)
		if err != nil {
			return ScopedOperand{}, err
		}
		dst := g.AllocateRegister()
		if n.Computed {
			if s, ok := n.Property.(*ast.StringLiteral); ok {
				g.emit(bytecode.Instruction{Op: bytecode.OpDeleteByID, A: dst.Operand(), B: base.Operand(), Name: g.internIdentifier(s.Value)})
			} else {
				property, err := g.generateExpression(n.Property)
				if err != nil {
					dst.Release()
					base.Release()
					return ScopedOperand{}, err
				}
				g.emit(bytecode.Instruction{Op: bytecode.OpDeleteByValue, A: dst.Operand(), B: base.Operand(), C: property.Operand()})
				property.Release()
			}
		} else {
			name := n.Property.(*ast.Identifier).Name
			g.emit(bytecode.Instruction{Op: bytecode.OpDeleteByID, A: dst.Operand(), B: base.Operand(), Name: g.internIdentifier(name)})
		}
		base.Release()
		return dst, nil
	}
	// not a reference at all
	value, err := g.generateExpression(node)
	if err != nil {
		return ScopedOperand{}, err
	}
	value.Release()
	return g.AddConstant(bytecode.Boolean(true)), nil
}
