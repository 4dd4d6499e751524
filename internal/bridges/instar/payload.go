package instar

import (
	"bytes"
	"encoding/json"
	"strconv"
	"unicode/utf8"
)

// PayloadDecoder turns an alarm payload into a motion value.
type PayloadDecoder interface {
	Decode(payload []byte) (bool, error)
}

// Decoder decodes {"val":"<int>"} payloads. val may also be sent as a
// bare JSON integer. Unknown fields are ignored.
//
// The zero value is ready to use and safe for concurrent use.
type Decoder struct{}

// NewDecoder returns a payload decoder.
func NewDecoder() *Decoder {
	return &Decoder{}
}

// valKey is matched exactly; encoding/json struct tags would also accept "VAL" or "Val".
const valKey = "val"

// Decode reports whether the payload signals motion (val > 0).
// Failures are returned as *DecodeError.
func (Decoder) Decode(payload []byte) (bool, error) {
	if len(bytes.TrimSpace(payload)) == 0 {
		return false, &DecodeError{Reason: ReasonEmptyPayload}
	}
	if !utf8.Valid(payload) {
		return false, &DecodeError{Reason: ReasonInvalidUTF8}
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(payload, &fields); err != nil {
		return false, &DecodeError{Reason: ReasonInvalidJSON, Err: err}
	}

	raw := bytes.TrimSpace(fields[valKey])
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return false, &DecodeError{Reason: ReasonMissingVal}
	}

	text := string(raw)
	if raw[0] == '"' {
		if err := json.Unmarshal(raw, &text); err != nil {
			return false, &DecodeError{Reason: ReasonValNotInt, Err: err}
		}
	}

	// Cameras send a 32-bit int; anything wider is rejected.
	n, err := strconv.ParseInt(text, 10, 32)
	if err != nil {
		return false, &DecodeError{Reason: ReasonValNotInt, Err: err}
	}
	return n > 0, nil
}
