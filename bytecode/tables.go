// Copyright (c) 2019 Open2b Software Snc. All rights reserved.
// https://www.open2b.com

// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package bytecode

// NameIndex is an index into an executable's identifier table.
type NameIndex uint32

// StringIndex is an index into an executable's string table.
type StringIndex uint32

// An IdentifierTable interns the identifiers referenced by name-addressed
// instructions. Insert returns the same index for the same identifier.
type IdentifierTable struct {
	names []string
	index map[string]NameIndex
}

// NewIdentifierTable returns an empty identifier table.
func NewIdentifierTable() *IdentifierTable {
	return &IdentifierTable{index: map[string]NameIndex{}}
}

// Insert interns name and returns its index.
func (t *IdentifierTable) Insert(name string) NameIndex {
	if i, ok := t.index[name]; ok {
		return i
	}
	i := NameIndex(len(t.names))
	t.names = append(t.names, name)
	t.index[name] = i
	return i
}

// Get returns the identifier with the given index.
func (t *IdentifierTable) Get(i NameIndex) string { return t.names[i] }

// Len returns the number of interned identifiers.
func (t *IdentifierTable) Len() int { return len(t.names) }

// Names returns the interned identifiers in insertion order. The returned
// slice is owned by the table.
func (t *IdentifierTable) Names() []string { return t.names }

// A StringTable interns the strings referenced by table entries, such as
// regular expression sources.
type StringTable struct {
	strings []string
	index   map[string]StringIndex
}

// NewStringTable returns an empty string table.
func NewStringTable() *StringTable {
	return &StringTable{index: map[string]StringIndex{}}
}

// Insert interns s and returns its index.
func (t *StringTable) Insert(s string) StringIndex {
	if i, ok := t.index[s]; ok {
		return i
	}
	i := StringIndex(len(t.strings))
	t.strings = append(t.strings, s)
	t.index[s] = i
	return i
}

// Get returns the string with the given index.
func (t *StringTable) Get(i StringIndex) string { return t.strings[i] }

// Len returns the number of interned strings.
func (t *StringTable) Len() int { return len(t.strings) }

// Strings returns the interned strings in insertion order. The returned
// slice is owned by the table.
func (t *StringTable) Strings() []string { return t.strings }

// A RegexTableEntry is a regular expression literal: its source pattern,
// interned in the string table, and its flags. Entries are not
// deduplicated; every literal gets its own entry.
type RegexTableEntry struct {
	Source StringIndex
	Flags  string
}
