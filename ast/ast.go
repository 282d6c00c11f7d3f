// Copyright (c) 2019 Open2b Software Snc. All rights reserved.
// https://www.open2b.com

// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package ast declares the types used to define Vela program trees.
//
// The trees consumed by the compiler are already analyzed: identifiers
// carry their resolved local slot, if any, and function definitions carry
// the binding plans computed by the analysis passes (hoisted declarations,
// parameter plans, local variable tables). The package contains no parser;
// producing trees is the concern of the front end.
package ast

// Position is a position in the source.
type Position struct {
	Line   int // line starting from 1
	Column int // column in characters starting from 1
}

// Node is a node of the tree.
type Node interface {
	Pos() Position
}

// Expression is an expression node.
type Expression interface {
	Node
	expression()
}

// Statement is a statement node.
type Statement interface {
	Node
	statement()
}

type exprBase struct {
	Position Position
}

func (e exprBase) Pos() Position { return e.Position }
func (e exprBase) expression()   {}

type stmtBase struct {
	Position Position
}

func (s stmtBase) Pos() Position { return s.Position }
func (s stmtBase) statement()    {}

// LocalKind distinguishes the two statically allocated slot spaces a local
// can live in.
type LocalKind int

const (
	LocalVariable LocalKind = iota
	LocalArgument
)

// Local is the resolved slot of an identifier that the analysis passes
// assigned to a function-local variable or argument slot instead of a
// runtime environment binding.
type Local struct {
	Kind  LocalKind
	Index uint32
}

// LocalName is an entry of a function's local variable table.
type LocalName struct {
	Name string
}

// Identifier node.
type Identifier struct {
	exprBase
	Name string
	// Local is the resolved slot, nil if the identifier goes through a
	// runtime environment binding.
	Local *Local
}

// PrivateIdentifier node. It can only appear as the property of a member
// expression.
type PrivateIdentifier struct {
	exprBase
	Name string
}

// NumberLiteral node.
type NumberLiteral struct {
	exprBase
	Value float64
}

// StringLiteral node.
type StringLiteral struct {
	exprBase
	Value string
}

// BooleanLiteral node.
type BooleanLiteral struct {
	exprBase
	Value bool
}

// NullLiteral node.
type NullLiteral struct {
	exprBase
}

// RegExpLiteral node.
type RegExpLiteral struct {
	exprBase
	Pattern string
	Flags   string
}

// ThisExpression node.
type ThisExpression struct {
	exprBase
}

// SuperExpression node. It can only appear as the object of a member
// expression.
type SuperExpression struct {
	exprBase
}

// MemberExpression node. Property is an *Identifier or a
// *PrivateIdentifier when Computed is false, any expression otherwise.
type MemberExpression struct {
	exprBase
	Object   Expression
	Property Expression
	Computed bool
}

// CallExpression node.
type CallExpression struct {
	exprBase
	Callee    Expression
	Arguments []Expression
}

// UnaryOperator is a unary operator.
type UnaryOperator int

const (
	UnaryMinus UnaryOperator = iota
	UnaryPlus
	UnaryNot
	UnaryBitwiseNot
	UnaryTypeof
	UnaryVoid
	UnaryDelete
)

// UnaryExpression node.
type UnaryExpression struct {
	exprBase
	Op      UnaryOperator
	Operand Expression
}

// BinaryOperator is a binary operator.
type BinaryOperator int

const (
	BinaryAdd BinaryOperator = iota
	BinarySub
	BinaryMul
	BinaryDiv
	BinaryMod
	BinaryBitwiseAnd
	BinaryBitwiseOr
	BinaryBitwiseXor
	BinaryLeftShift
	BinaryRightShift
	BinaryUnsignedRightShift
	BinaryLessThan
	BinaryLessThanEquals
	BinaryGreaterThan
	BinaryGreaterThanEquals
	BinaryLooselyEquals
	BinaryLooselyInequals
	BinaryStrictlyEquals
	BinaryStrictlyInequals
)

// BinaryExpression node.
type BinaryExpression struct {
	exprBase
	Op    BinaryOperator
	Left  Expression
	Right Expression
}

// LogicalOperator is a short-circuiting binary operator.
type LogicalOperator int

const (
	LogicalAnd LogicalOperator = iota
	LogicalOr
	LogicalNullish
)

// LogicalExpression node.
type LogicalExpression struct {
	exprBase
	Op    LogicalOperator
	Left  Expression
	Right Expression
}

// ConditionalExpression node.
type ConditionalExpression struct {
	exprBase
	Test       Expression
	Consequent Expression
	Alternate  Expression
}

// AssignmentOperator is an assignment operator. For the compound
// operators, Binary reports the binary operator applied between the
// current value of the target and the right-hand side.
type AssignmentOperator int

const (
	AssignmentSimple AssignmentOperator = iota
	AssignmentAdd
	AssignmentSub
	AssignmentMul
	AssignmentDiv
	AssignmentMod
)

// Binary returns the binary operator a compound assignment applies.
// It panics if the operator is AssignmentSimple.
func (op AssignmentOperator) Binary() BinaryOperator {
	switch op {
	case AssignmentAdd:
		return BinaryAdd
	case AssignmentSub:
		return BinarySub
	case AssignmentMul:
		return BinaryMul
	case AssignmentDiv:
		return BinaryDiv
	case AssignmentMod:
		return BinaryMod
	}
	panic("ast: simple assignment has no binary operator")
}

// AssignmentExpression node. Target is an *Identifier or a
// *MemberExpression; any other expression shape is rejected by the
// compiler.
type AssignmentExpression struct {
	exprBase
	Op     AssignmentOperator
	Target Expression
	Value  Expression
}

// UpdateExpression node (++ and --).
type UpdateExpression struct {
	exprBase
	Decrement bool
	Prefix    bool
	Operand   Expression
}

// SequenceExpression node.
type SequenceExpression struct {
	exprBase
	Expressions []Expression
}

// ArrayLiteral node.
type ArrayLiteral struct {
	exprBase
	Elements []Expression
}

// ObjectProperty is a property of an object literal. Key is an
// *Identifier or a *StringLiteral when Computed is false.
type ObjectProperty struct {
	Key      Expression
	Value    Expression
	Computed bool
}

// ObjectLiteral node.
type ObjectLiteral struct {
	exprBase
	Properties []ObjectProperty
}

// FunctionExpression node. The function body is compiled as an
// independent unit.
type FunctionExpression struct {
	exprBase
	Function *FunctionDefinition
}

// DeclarationKind is the kind of a variable declaration.
type DeclarationKind int

const (
	DeclarationVar DeclarationKind = iota
	DeclarationLet
	DeclarationConst
)

// Declarator is a single declaration of a variable declaration.
type Declarator struct {
	Target *Identifier
	Init   Expression // nil if the declaration has no initializer
}

// VariableDeclaration node.
type VariableDeclaration struct {
	stmtBase
	Kind         DeclarationKind
	Declarations []Declarator
}

// ScopedDeclaration is one lexically scoped declaration of a block,
// precomputed by the analysis passes and consumed by block declaration
// instantiation. Function is non-nil for function declarations.
type ScopedDeclaration struct {
	Name     string
	Local    *Local // nil if the binding lives in a runtime environment
	Constant bool
	Function *FunctionDefinition
}

// ScopeMetadata carries the lexically scoped declarations of a block.
type ScopeMetadata struct {
	Declarations []ScopedDeclaration
}

// BlockStatement node.
type BlockStatement struct {
	stmtBase
	Body  []Statement
	Scope *ScopeMetadata // nil if the block declares nothing
}

// IfStatement node.
type IfStatement struct {
	stmtBase
	Test       Expression
	Consequent Statement
	Alternate  Statement // nil if there is no else branch
}

// WhileStatement node.
type WhileStatement struct {
	stmtBase
	Test Expression
	Body Statement
}

// DoWhileStatement node.
type DoWhileStatement struct {
	stmtBase
	Body Statement
	Test Expression
}

// ForStatement node. Init, Test and Update may be nil.
type ForStatement struct {
	stmtBase
	Init   Statement
	Test   Expression
	Update Expression
	Body   Statement
}

// LabeledStatement node.
type LabeledStatement struct {
	stmtBase
	Label string
	Body  Statement
}

// BreakStatement node. Label is empty for an unlabeled break.
type BreakStatement struct {
	stmtBase
	Label string
}

// ContinueStatement node. Label is empty for an unlabeled continue.
type ContinueStatement struct {
	stmtBase
	Label string
}

// ReturnStatement node.
type ReturnStatement struct {
	stmtBase
	Value Expression // nil returns undefined
}

// ThrowStatement node.
type ThrowStatement struct {
	stmtBase
	Value Expression
}

// CatchClause is the catch clause of a try statement. Parameter is nil
// for a parameterless catch.
type CatchClause struct {
	Parameter *Identifier
	Body      *BlockStatement
}

// TryStatement node. At least one of Handler and Finalizer is non-nil.
type TryStatement struct {
	stmtBase
	Block     *BlockStatement
	Handler   *CatchClause
	Finalizer *BlockStatement
}

// SwitchCase is a case of a switch statement. Test is nil for the
// default case.
type SwitchCase struct {
	Test Expression
	Body []Statement
}

// SwitchStatement node.
type SwitchStatement struct {
	stmtBase
	Discriminant Expression
	Cases        []SwitchCase
}

// ExpressionStatement node.
type ExpressionStatement struct {
	stmtBase
	Expression Expression
}

// EmptyStatement node.
type EmptyStatement struct {
	stmtBase
}

// FunctionDeclaration node. The declaration itself generates no code at
// its site; the binding is initialized by the hoisting plan of the
// enclosing function or program.
type FunctionDeclaration struct {
	stmtBase
	Function *FunctionDefinition
}

// Parameter is a formal parameter of a function. Exactly one of Target
// and Pattern is non-nil.
type Parameter struct {
	Target  *Identifier
	Pattern *BindingPattern
	Default Expression // nil if the parameter has no default value
	Rest    bool
}

// BindingPatternKind is the kind of a binding pattern.
type BindingPatternKind int

const (
	ObjectPattern BindingPatternKind = iota
	ArrayPattern
)

// BindingElement is an element of a shallow binding pattern. Key is
// meaningful for object patterns only; array patterns bind by position.
type BindingElement struct {
	Key    string
	Target *Identifier
}

// BindingPattern is a shallow destructuring pattern.
type BindingPattern struct {
	Kind     BindingPatternKind
	Elements []BindingElement
}

// VariableToInitialize is a hoisted var binding to initialize at function
// entry. Local is nil if the binding lives in the variable environment.
type VariableToInitialize struct {
	Name  string
	Local *Local
}

// LexicalBinding is a function-level lexical binding to create at
// function entry.
type LexicalBinding struct {
	Name     string
	Constant bool
}

// FunctionToInitialize is a hoisted function declaration to initialize at
// function entry. Local is nil if the binding lives in the variable
// environment.
type FunctionToInitialize struct {
	Name     string
	Local    *Local
	Function *FunctionDefinition
}

// FunctionDefinition is the analyzed definition of a function: its body
// together with the static metadata the compiler's binding protocol
// consumes. Locals indexes the variable slot space; arguments are indexed
// by parameter position.
type FunctionDefinition struct {
	Position                Position
	Name                    string
	Parameters              []Parameter
	HasDuplicateParameters  bool
	Locals                  []LocalName
	VariablesToInitialize   []VariableToInitialize
	FunctionsToInitialize   []FunctionToInitialize
	LexicalBindings         []LexicalBinding
	Body                    []Statement
	Strict                  bool
}

// Pos returns the position of the definition.
func (f *FunctionDefinition) Pos() Position { return f.Position }

// Program is an analyzed top-level program.
type Program struct {
	Position Position
	Body     []Statement
	Locals   []LocalName
	Scope    *ScopeMetadata // top-level lexically scoped declarations, may be nil
	Strict   bool
}

// Pos returns the position of the program.
func (p *Program) Pos() Position { return p.Position }
