// Package payload decodes Duux state frames into flat attribute snapshots.
//
// Devices publish state wrapped in a fixed envelope:
//
//	{"sub":{"Tune":[{"power":1,"speed":10}]}}
//
// Some firmware relays an inner module's frame and nests a second envelope
// inside the first Tune element, next to its own metadata:
//
//	{"sub":{"Tune":[{"uid":"123456","rssi":-46,"sub":{"Tune":[{"power":1}]}}]}}
//
// Decode returns the innermost attribute map in both cases.
package payload

import (
	"encoding/json"
	"fmt"
)

// MaxSize is the largest body Decode accepts.
const MaxSize = 1 << 20

const (
	envelopeKey = "sub"
	tuneKey     = "Tune"
)

// Decode extracts the attribute snapshot from a raw state message.
//
// The first element of sub.Tune is taken. If that element itself carries a
// sub.Tune envelope, the first element of the inner array is used instead.
// The result must be a non-empty object.
func Decode(raw []byte) (Snapshot, error) {
	if len(raw) > MaxSize {
		return nil, fmt.Errorf("%w: %d bytes exceeds %d", ErrMalformed, len(raw), MaxSize)
	}

	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformed, err)
	}

	first, ok := firstTune(doc)
	if !ok {
		return nil, ErrMissingEnvelope
	}

	if hasEnvelope(first) {
		inner, ok := firstTune(first)
		if !ok {
			return nil, fmt.Errorf("%w: inner envelope", ErrMissingEnvelope)
		}
		first = inner
	}

	attrs, ok := first.(map[string]any)
	if !ok || len(attrs) == 0 {
		return nil, ErrEmptyAttributes
	}

	return Snapshot(attrs), nil
}

// firstTune returns v["sub"]["Tune"][0] when every step has the expected type.
func firstTune(v any) (any, bool) {
	obj, ok := v.(map[string]any)
	if !ok {
		return nil, false
	}
	sub, ok := obj[envelopeKey].(map[string]any)
	if !ok {
		return nil, false
	}
	tune, ok := sub[tuneKey].([]any)
	if !ok || len(tune) == 0 {
		return nil, false
	}
	return tune[0], true
}

// hasEnvelope reports whether v is an object carrying a sub.Tune key.
func hasEnvelope(v any) bool {
	obj, ok := v.(map[string]any)
	if !ok {
		return false
	}
	sub, ok := obj[envelopeKey].(map[string]any)
	if !ok {
		return false
	}
	_, ok = sub[tuneKey]
	return ok
}
