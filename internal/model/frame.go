package model

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Frame types the relay reacts to. Any other value (or no type at all)
// marks a normal chat message.
const (
	TypeAuth = "auth"
	TypePing = "ping"
)

type RecipientKind int

const (
	RecipientNone RecipientKind = iota
	RecipientSingle
	RecipientGroup
)

// Recipient is the receptor field decided once at decode time: absent,
// a single identity, or a group of identities.
type Recipient struct {
	Kind RecipientKind
	ID   string
	IDs  []string
}

// Without returns the group identities minus the given one. Single and
// none recipients are returned unchanged.
func (r Recipient) Without(id string) []string {
	if r.Kind != RecipientGroup {
		return nil
	}

	out := make([]string, 0, len(r.IDs))
	for _, candidate := range r.IDs {
		if candidate != id {
			out = append(out, candidate)
		}
	}
	return out
}

type (
	// Frame is one decoded inbound message. The original bytes are kept
	// so forwarded payloads stay byte-identical, and the field view is
	// kept so the persistence body can be rebuilt.
	Frame struct {
		Type           string
		Token          string
		Emisor         string
		Recipient      Recipient
		ConversationID string

		raw    []byte
		fields map[string]json.RawMessage
	}
)

var errNotObject = errors.New("frame is not a JSON object")

// ParseFrame decodes an inbound frame. The sender-declared identity and
// the receptor elements tolerate JSON numbers; they normalize to strings.
func ParseFrame(data []byte) (*Frame, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, fmt.Errorf("decode frame: %w", err)
	}
	if fields == nil {
		return nil, errNotObject
	}

	return &Frame{
		Type:           flexString(fields["type"]),
		Token:          flexString(fields["token"]),
		Emisor:         flexString(fields["emisor"]),
		Recipient:      parseRecipient(fields["receptor"]),
		ConversationID: flexString(fields["conversacion_id"]),
		raw:            append([]byte(nil), data...),
		fields:         fields,
	}, nil
}

func (f *Frame) IsAuth() bool { return f.Type == TypeAuth }
func (f *Frame) IsPing() bool { return f.Type == TypePing }

// Raw returns the original inbound bytes.
func (f *Frame) Raw() []byte { return f.raw }

// PersistBody re-encodes the frame's fields for the persistence call,
// making sure conversacion_id is present when the frame carries one.
func (f *Frame) PersistBody() ([]byte, error) {
	body := make(map[string]json.RawMessage, len(f.fields)+1)
	for key, value := range f.fields {
		body[key] = value
	}

	if f.ConversationID != "" {
		if _, ok := body["conversacion_id"]; !ok {
			encoded, err := json.Marshal(f.ConversationID)
			if err != nil {
				return nil, err
			}
			body["conversacion_id"] = encoded
		}
	}

	return json.Marshal(body)
}

// parseRecipient applies the receptor decoding rules: a JSON array, or a
// string holding a serialized JSON array, is a group; anything else that
// yields a non-empty identity is a single recipient.
func parseRecipient(raw json.RawMessage) Recipient {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return Recipient{Kind: RecipientNone}
	}

	if trimmed[0] == '[' {
		if group, ok := parseGroup(trimmed); ok {
			return group
		}
	}

	id := flexString(trimmed)
	if id == "" {
		return Recipient{Kind: RecipientNone}
	}

	if nested := strings.TrimSpace(id); strings.HasPrefix(nested, "[") {
		if group, ok := parseGroup([]byte(nested)); ok {
			return group
		}
	}

	return Recipient{Kind: RecipientSingle, ID: id}
}

func parseGroup(data []byte) (Recipient, bool) {
	var items []json.RawMessage
	if err := json.Unmarshal(data, &items); err != nil {
		return Recipient{}, false
	}

	ids := make([]string, 0, len(items))
	for _, item := range items {
		if id := flexString(item); id != "" {
			ids = append(ids, id)
		}
	}
	return Recipient{Kind: RecipientGroup, IDs: ids}, true
}

// flexString reads a JSON value as a string, accepting bare numbers as
// well. The upstream clients are loosely typed about identities.
func flexString(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}

	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String()
	}

	return ""
}
