package models

import (
	"encoding/base64"
	"strconv"
)

// ValueKind is the closed set of value types flowing through workflow
// variables and step outputs.
type ValueKind string

const (
	ValueString ValueKind = "string"
	ValueNumber ValueKind = "number"
	ValueBool   ValueKind = "boolean"
	ValueBytes  ValueKind = "bytes"
)

// Value is a typed variable or step-output value. Exactly one payload field
// is meaningful, selected by Kind.
type Value struct {
	Kind  ValueKind `json:"kind"`
	Str   string    `json:"str,omitempty"`
	Num   float64   `json:"num,omitempty"`
	Bool  bool      `json:"bool,omitempty"`
	Bytes []byte    `json:"bytes,omitempty"`
}

func StringValue(s string) Value { return Value{Kind: ValueString, Str: s} }

func NumberValue(n float64) Value { return Value{Kind: ValueNumber, Num: n} }

func BoolValue(b bool) Value { return Value{Kind: ValueBool, Bool: b} }

func BytesValue(b []byte) Value { return Value{Kind: ValueBytes, Bytes: b} }

// AsString renders the value for substitution into step input text. Bytes are
// base64-encoded since raw blobs cannot appear in typed text.
func (v Value) AsString() string {
	switch v.Kind {
	case ValueString:
		return v.Str
	case ValueNumber:
		return strconv.FormatFloat(v.Num, 'f', -1, 64)
	case ValueBool:
		return strconv.FormatBool(v.Bool)
	case ValueBytes:
		return base64.StdEncoding.EncodeToString(v.Bytes)
	}

	return ""
}

// Variables is the workflow-level substitution map supplied by the caller,
// keyed by names like "content.text" or "credentials.username".
type Variables map[string]Value

// Lookup returns the value bound to name.
func (vs Variables) Lookup(name string) (Value, bool) {
	v, ok := vs[name]

	return v, ok
}

// Merge returns a copy of vs with overrides applied on top.
func (vs Variables) Merge(overrides Variables) Variables {
	merged := make(Variables, len(vs)+len(overrides))
	for k, v := range vs {
		merged[k] = v
	}

	for k, v := range overrides {
		merged[k] = v
	}

	return merged
}
