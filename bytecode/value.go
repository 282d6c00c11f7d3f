// Copyright (c) 2019 Open2b Software Snc. All rights reserved.
// https://www.open2b.com

// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package bytecode

import (
	"math"
	"strconv"
)

// ValueKind is the kind of a constant pool value.
type ValueKind uint8

const (
	ValueUndefined ValueKind = iota
	ValueNull
	ValueBoolean
	ValueInt32
	ValueNumber
	ValueString
	// ValueEmpty is the sentinel the interpreter uses for elided values.
	// It never results from evaluating an expression.
	ValueEmpty
)

// A Value is a constant pool entry. Values are comparable; two values are
// the same constant if and only if they are equal.
type Value struct {
	Kind ValueKind
	Int  int32   `cbor:",omitempty"`
	Num  float64 `cbor:",omitempty"`
	Str  string  `cbor:",omitempty"`
}

// Undefined returns the undefined value.
func Undefined() Value { return Value{Kind: ValueUndefined} }

// Null returns the null value.
func Null() Value { return Value{Kind: ValueNull} }

// Boolean returns a boolean value.
func Boolean(b bool) Value {
	v := Value{Kind: ValueBoolean}
	if b {
		v.Int = 1
	}
	return v
}

// Int32 returns an integer value.
func Int32(n int32) Value { return Value{Kind: ValueInt32, Int: n} }

// Number returns a floating point value.
func Number(f float64) Value { return Value{Kind: ValueNumber, Num: f} }

// String returns a string value.
func String(s string) Value { return Value{Kind: ValueString, Str: s} }

// Empty returns the empty sentinel value.
func Empty() Value { return Value{Kind: ValueEmpty} }

// AsBoolean returns the boolean of a ValueBoolean value.
func (v Value) AsBoolean() bool { return v.Int != 0 }

// Truthy returns the boolean coercion of the value. Zero, NaN, the empty
// string, undefined and null coerce to false.
func (v Value) Truthy() bool {
	switch v.Kind {
	case ValueBoolean, ValueInt32:
		return v.Int != 0
	case ValueNumber:
		return v.Num != 0 && !math.IsNaN(v.Num)
	case ValueString:
		return v.Str != ""
	}
	return false
}

// Format returns the source-like notation of the value, as used by the
// disassembler.
func (v Value) Format() string {
	switch v.Kind {
	case ValueUndefined:
		return "undefined"
	case ValueNull:
		return "null"
	case ValueBoolean:
		if v.Int != 0 {
			return "true"
		}
		return "false"
	case ValueInt32:
		return strconv.FormatInt(int64(v.Int), 10)
	case ValueNumber:
		return strconv.FormatFloat(v.Num, 'g', -1, 64)
	case ValueString:
		return strconv.Quote(v.Str)
	case ValueEmpty:
		return "<empty>"
	}
	return "<invalid>"
}
