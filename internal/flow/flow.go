// Package flow declares the conversation flows: their steps, the QR payload
// kinds with their ordered fields, and the payload builders.
package flow

import (
	"errors"
	"strings"
)

// Flow kinds stored in state.Session.Flow.
const (
	QRGen     = "qrgen"
	QRScan    = "qrscan"
	Shorten   = "shorten"
	Broadcast = "broadcast"
)

// QR generation starts at StepType; afterwards Step is the name of the field being collected.
const StepType = "type"

// QR scan steps.
const (
	StepAwaitImage   = "await_image"
	StepDecoding     = "decoding"
	StepAwaitConsent = "await_consent"
	StepFallback     = "fallback"
)

// Shorten steps.
const (
	StepAwaitURL         = "await_url"
	StepAwaitAliasChoice = "await_alias_choice"
	StepAwaitAlias       = "await_alias"
	StepShortening       = "shortening"
)

// Broadcast steps.
const (
	StepAwaitContent = "await_content"
	StepAwaitConfirm = "await_confirm"
	StepSending      = "sending"
)

// Skip is the sentinel an optional field accepts to mean "leave empty".
const Skip = "-"

// ErrEmptyAnswer is returned when a required field receives an empty answer.
var ErrEmptyAnswer = errors.New("flow: empty answer")

// Answer normalizes a reply for field f. Optional fields map empty and Skip to "".
func Answer(f Field, raw string) (string, error) {
	v := strings.TrimSpace(raw)
	if f.Optional {
		if v == Skip {
			return "", nil
		}
		return v, nil
	}
	if v == "" {
		return "", ErrEmptyAnswer
	}
	return v, nil
}

// ValidURL reports whether s is an absolute http or https URL.
func ValidURL(s string) bool {
	l := strings.ToLower(strings.TrimSpace(s))
	return strings.HasPrefix(l, "http://") || strings.HasPrefix(l, "https://")
}
