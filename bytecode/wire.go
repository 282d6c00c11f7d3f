// Copyright (c) 2019 Open2b Software Snc. All rights reserved.
// https://www.open2b.com

// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package bytecode

import (
	"fmt"
	"io"

	"github.com/fxamacker/cbor/v2"
	"github.com/pierrec/lz4/v4"
)

// cborEncMode uses canonical mode so that equal executables have equal
// encodings.
var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("bytecode: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em
}

// MarshalCBOR encodes the operand as its packed form.
func (o Operand) MarshalCBOR() ([]byte, error) {
	return cborEncMode.Marshal(o.Pack())
}

// UnmarshalCBOR decodes an operand from its packed form.
func (o *Operand) UnmarshalCBOR(data []byte) error {
	var packed uint32
	if err := cbor.Unmarshal(data, &packed); err != nil {
		return err
	}
	*o = UnpackOperand(packed)
	return nil
}

// MarshalExecutable serializes an Executable to CBOR bytes.
func MarshalExecutable(e *Executable) ([]byte, error) {
	return cborEncMode.Marshal(e)
}

// UnmarshalExecutable deserializes an Executable from CBOR bytes.
func UnmarshalExecutable(data []byte) (*Executable, error) {
	var e Executable
	if err := cbor.Unmarshal(data, &e); err != nil {
		return nil, fmt.Errorf("bytecode: unmarshal executable: %w", err)
	}
	return &e, nil
}

// EncodeExecutable writes an lz4-framed CBOR encoding of e to w.
func EncodeExecutable(w io.Writer, e *Executable) error {
	data, err := MarshalExecutable(e)
	if err != nil {
		return err
	}
	zw := lz4.NewWriter(w)
	if _, err := zw.Write(data); err != nil {
		return fmt.Errorf("bytecode: encode executable: %w", err)
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("bytecode: encode executable: %w", err)
	}
	return nil
}

// DecodeExecutable reads an executable encoded with EncodeExecutable
// from r.
func DecodeExecutable(r io.Reader) (*Executable, error) {
	data, err := io.ReadAll(lz4.NewReader(r))
	if err != nil {
		return nil, fmt.Errorf("bytecode: decode executable: %w", err)
	}
	return UnmarshalExecutable(data)
}
