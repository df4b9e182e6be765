// Copyright 2026 The Tides Agent Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package payload provides typed field access over the opaque request maps the
// agent accepts. Callers send arbitrary JSON objects; this package normalizes
// them and exposes the handful of field shapes the resolver cares about.
package payload

import (
	"sort"
	"strings"

	json "github.com/goccy/go-json"
)

// TextFields are the keys checked, in order, for the request's free-text content.
var TextFields = []string{"question", "message", "query", "ask"}

// Payload is a normalized request body. A nil or non-object input normalizes
// to an empty Payload; accessors on an empty Payload report absence, never panic.
type Payload map[string]any

// Normalize converts an arbitrary decoded value into a Payload.
// Anything that is not a JSON object becomes an empty Payload.
func Normalize(v any) Payload {
	switch m := v.(type) {
	case Payload:
		if m == nil {
			return Payload{}
		}
		return m
	case map[string]any:
		if m == nil {
			return Payload{}
		}
		return Payload(m)
	default:
		return Payload{}
	}
}

// FromJSON decodes a raw JSON body into a Payload. Malformed or non-object
// bodies normalize to an empty Payload; decoding never returns an error to
// the caller because the resolver treats bad input as an empty request.
func FromJSON(data []byte) Payload {
	if len(data) == 0 {
		return Payload{}
	}
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return Payload{}
	}
	return Normalize(v)
}

// Has reports whether the key is present, regardless of its value type.
func (p Payload) Has(key string) bool {
	_, ok := p[key]
	return ok
}

// HasAny reports whether any of the keys is present.
func (p Payload) HasAny(keys ...string) bool {
	for _, k := range keys {
		if p.Has(k) {
			return true
		}
	}
	return false
}

// String returns the value under key when it is a non-empty string.
func (p Payload) String(key string) (string, bool) {
	v, ok := p[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	if !ok || strings.TrimSpace(s) == "" {
		return "", false
	}
	return s, true
}

// Object returns the value under key when it is a nested JSON object.
func (p Payload) Object(key string) (map[string]any, bool) {
	v, ok := p[key]
	if !ok {
		return nil, false
	}
	m, ok := v.(map[string]any)
	return m, ok
}

// Text returns the request's free-text content: the first non-empty string
// found under one of TextFields.
func (p Payload) Text() (string, bool) {
	for _, key := range TextFields {
		if s, ok := p.String(key); ok {
			return s, true
		}
	}
	return "", false
}

// Service returns the explicit service override, when present as a
// non-empty string. The value is not validated here; an unrecognized
// name is the downstream dispatcher's problem.
func (p Payload) Service() (string, bool) {
	return p.String("service")
}

// Keys returns the payload's keys in sorted order.
func (p Payload) Keys() []string {
	keys := make([]string, 0, len(p))
	for k := range p {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
