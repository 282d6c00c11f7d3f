// Copyright (c) 2019 Open2b Software Snc. All rights reserved.
// https://www.open2b.com

// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package bytecode

import (
	"reflect"
	"testing"
)

func TestIdentifierTable(t *testing.T) {
	table := NewIdentifierTable()
	a := table.Insert("a")
	b := table.Insert("b")
	if a == b {
		t.Fatal("distinct identifiers have the same index")
	}
	if got := table.Insert("a"); got != a {
		t.Fatalf("reinserting a: got %d, want %d", got, a)
	}
	if got := table.Len(); got != 2 {
		t.Fatalf("got %d identifiers, want 2", got)
	}
	if got := table.Get(b); got != "b" {
		t.Fatalf("Get(%d): got %q, want %q", b, got, "b")
	}
	if got := table.Names(); !reflect.DeepEqual(got, []string{"a", "b"}) {
		t.Fatalf("got names %v", got)
	}
}

func TestStringTable(t *testing.T) {
	table := NewStringTable()
	x := table.Insert("x+")
	if got := table.Insert("x+"); got != x {
		t.Fatalf("reinserting: got %d, want %d", got, x)
	}
	y := table.Insert("")
	if x == y {
		t.Fatal("distinct strings have the same index")
	}
	if got := table.Len(); got != 2 {
		t.Fatalf("got %d strings, want 2", got)
	}
	if got := table.Strings(); !reflect.DeepEqual(got, []string{"x+", ""}) {
		t.Fatalf("got strings %v", got)
	}
}
