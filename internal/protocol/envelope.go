package protocol

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

var (
	// ErrMissingEvent is returned by Decode for envelopes without an event name.
	ErrMissingEvent = errors.New("envelope has no event")

	// ErrPayloadType is returned when a payload does not have the expected JSON type.
	ErrPayloadType = errors.New("unexpected payload type")
)

// Envelope is one protocol message.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Encode marshals data and wraps it in an envelope for event. HTML
// characters are not escaped.
func Encode(event string, data any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(data); err != nil {
		return nil, fmt.Errorf("encode %s payload: %w", event, err)
	}
	return EncodeRaw(event, bytes.TrimRight(buf.Bytes(), "\n"))
}

// EncodeRaw wraps an already encoded payload. The payload bytes are copied
// as they are unless they contain line breaks, which would split a batched
// frame; those payloads are compacted.
func EncodeRaw(event string, raw json.RawMessage) ([]byte, error) {
	name, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("encode %s envelope: %w", event, err)
	}

	raw = bytes.TrimSpace(raw)
	if len(raw) > 0 {
		if !json.Valid(raw) {
			return nil, fmt.Errorf("encode %s envelope: %w", event, ErrPayloadType)
		}
		if bytes.ContainsAny(raw, "\r\n") {
			var compacted bytes.Buffer
			if err := json.Compact(&compacted, raw); err != nil {
				return nil, fmt.Errorf("encode %s envelope: %w", event, err)
			}
			raw = compacted.Bytes()
		}
	}

	out := make([]byte, 0, len(name)+len(raw)+20)
	out = append(out, `{"event":`...)
	out = append(out, name...)
	if len(raw) > 0 {
		out = append(out, `,"data":`...)
		out = append(out, raw...)
	}
	out = append(out, '}')
	return out, nil
}

// Decode parses a single envelope.
func Decode(raw []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return Envelope{}, fmt.Errorf("decode envelope: %w", err)
	}
	if env.Event == "" {
		return Envelope{}, ErrMissingEvent
	}
	return env, nil
}

// Text decodes the payload as a JSON string.
func (e Envelope) Text() (string, error) {
	if e.isNull() {
		return "", fmt.Errorf("%s payload: %w", e.Event, ErrPayloadType)
	}
	var s string
	if err := json.Unmarshal(e.Data, &s); err != nil {
		return "", fmt.Errorf("%s payload: %w", e.Event, ErrPayloadType)
	}
	return s, nil
}

// Tag decodes a payload that may be a JSON string or a JSON number and
// returns its text. Appearance tags arrive in both forms.
func (e Envelope) Tag() (string, error) {
	if s, err := e.Text(); err == nil {
		return s, nil
	}
	if e.isNull() {
		return "", fmt.Errorf("%s payload: %w", e.Event, ErrPayloadType)
	}
	var n json.Number
	if err := json.Unmarshal(e.Data, &n); err != nil {
		return "", fmt.Errorf("%s payload: %w", e.Event, ErrPayloadType)
	}
	return n.String(), nil
}

// Bind decodes the payload into v.
func (e Envelope) Bind(v any) error {
	if err := json.Unmarshal(e.Data, v); err != nil {
		return fmt.Errorf("%s payload: %w: %v", e.Event, ErrPayloadType, err)
	}
	return nil
}

func (e Envelope) isNull() bool {
	trimmed := bytes.TrimSpace(e.Data)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}

// SplitFrame returns the non-empty newline separated parts of a frame.
func SplitFrame(frame []byte) [][]byte {
	parts := bytes.Split(frame, []byte{'\n'})
	out := parts[:0]
	for _, part := range parts {
		if len(bytes.TrimSpace(part)) > 0 {
			out = append(out, part)
		}
	}
	return out
}

// DecodeFrame decodes every envelope in a possibly batched frame. Parts that
// fail to decode are skipped and reported through the returned error.
func DecodeFrame(frame []byte) ([]Envelope, error) {
	var (
		envs []Envelope
		errs []error
	)
	for _, part := range SplitFrame(frame) {
		env, err := Decode(part)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		envs = append(envs, env)
	}
	return envs, errors.Join(errs...)
}
