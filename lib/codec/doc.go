// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec provides the bridge's standard CBOR encoding
// configuration.
//
// JSON is reserved for the Matrix Client-Server API and configuration
// files. Everything the bridge persists itself (room store payloads) is
// CBOR, encoded with Core Deterministic Encoding (RFC 8949 §4.2) so the
// same logical entry always produces identical bytes.
//
//	data, err := codec.Marshal(value)
//	err = codec.Unmarshal(data, &value)
//
// Types that implement encoding.TextMarshaler (the lib/ref identifiers)
// are written as CBOR text strings, and any-typed targets decode maps
// as map[string]any.
//
// # Struct Tag Rules
//
// A `cbor` tag marks a type that is only ever serialized as CBOR. A
// `json` tag marks a type serialized as both: fxamacker/cbor reads
// `json` tags when `cbor` tags are absent. Never put both on one field.
package codec
