// Copyright 2026 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package couchdata

import (
	"bytes"
	"fmt"
	"reflect"

	"github.com/mitchellh/mapstructure"
	"github.com/ugorji/go/codec"
)

var mapStringType = reflect.TypeOf(map[string]interface{}(nil))

// jsonHandle returns the codec handle used for every CouchDB body.
// Generic objects decode as map[string]interface{} so they can be
// re-encoded and walked without key conversions, and whole numbers
// decode as int64.
func jsonHandle() *codec.JsonHandle {
	h := &codec.JsonHandle{}
	h.MapType = mapStringType
	h.SignedInteger = true
	return h
}

// EncodeJSON serializes v as a JSON byte string.
func EncodeJSON(v interface{}) ([]byte, error) {
	var out []byte
	encoder := codec.NewEncoderBytes(&out, jsonHandle())
	err := encoder.Encode(v)
	return out, err
}

// EncodeJSONIndent serializes v as JSON indented by two spaces per
// level, for human readers.
func EncodeJSONIndent(v interface{}) ([]byte, error) {
	h := jsonHandle()
	h.Indent = 2
	var out []byte
	err := codec.NewEncoderBytes(&out, h).Encode(v)
	return out, err
}

// DecodeJSON decodes a complete JSON document into a generic value:
// an object, an array, or a scalar.  Trailing whitespace is allowed;
// an empty (or all-whitespace) input decodes to nil.
func DecodeJSON(in []byte) (interface{}, error) {
	if len(bytes.TrimSpace(in)) == 0 {
		return nil, nil
	}
	var out interface{}
	if err := DecodeInto(in, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// DecodeInto decodes a JSON document directly into out, which must be
// of pointer type.  Anything but whitespace after the first value is
// an error.
func DecodeInto(in []byte, out interface{}) error {
	decoder := codec.NewDecoderBytes(in, jsonHandle())
	if err := decoder.Decode(out); err != nil {
		return err
	}
	n := decoder.NumBytesRead()
	if n > len(in) {
		n = len(in)
	}
	if rest := bytes.TrimSpace(in[n:]); len(rest) > 0 {
		return fmt.Errorf("unexpected data after JSON value at offset %d", n)
	}
	return nil
}

// FromValue fills out, which must be of pointer type, from a generic
// decoded value such as the body of a response.  Numbers and strings
// are converted loosely, since CouchDB is not consistent about
// sequence and count types.  Maps and slices already in out are
// replaced, not merged into.
func FromValue(value interface{}, out interface{}) error {
	config := mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		ZeroFields:       true,
		Result:           out,
	}
	decoder, err := mapstructure.NewDecoder(&config)
	if err == nil {
		err = decoder.Decode(value)
	}
	return err
}

// ToValue converts a structure into its generic JSON form by encoding
// and decoding it.
func ToValue(in interface{}) (interface{}, error) {
	b, err := EncodeJSON(in)
	if err != nil {
		return nil, err
	}
	return DecodeJSON(b)
}
