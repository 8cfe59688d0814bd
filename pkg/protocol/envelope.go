// Package protocol defines the JSON messages exchanged between the realtime
// server, its clients and the server-side emitters.
package protocol

import (
	"encoding/json"
	"time"

	"github.com/bytedance/sonic"
	"github.com/pkg/errors"
)

// MessageType discriminates the payload carried in Envelope.Data.
type MessageType string

const (
	TypeNotification MessageType = "notification"
	TypeMarkRead     MessageType = "mark_read"
	TypeMarkAllRead  MessageType = "mark_all_read"
	TypeDelete       MessageType = "delete"
	TypeUnreadCount  MessageType = "unread_count"
	TypeConnected    MessageType = "connected"
)

// IsKnown reports whether t is one of the envelope types of the protocol.
func (t MessageType) IsKnown() bool {
	switch t {
	case TypeNotification, TypeMarkRead, TypeMarkAllRead, TypeDelete, TypeUnreadCount, TypeConnected:
		return true
	default:
		return false
	}
}

// IsClientCommand reports whether clients are allowed to send t.
func (t MessageType) IsClientCommand() bool {
	switch t {
	case TypeMarkRead, TypeMarkAllRead, TypeDelete:
		return true
	default:
		return false
	}
}

var (
	ErrMalformedEnvelope = errors.New("malformed envelope")
	ErrMissingType       = errors.New("envelope type is required")
)

var emptyObject = json.RawMessage(`{}`)

// Envelope is the only frame format on the wire.
type Envelope struct {
	Type MessageType     `json:"type"`
	Data json.RawMessage `json:"data"`
}

// NotificationRef is the payload of mark_read and delete.
type NotificationRef struct {
	NotificationID string `json:"notificationId"`
}

// UnreadCount is the payload of unread_count.
type UnreadCount struct {
	Count int64 `json:"count"`
}

// Notification mirrors the persisted notification record as it travels on the wire.
type Notification struct {
	ID        string         `json:"id"`
	Type      string         `json:"type"`
	Title     string         `json:"title"`
	Message   string         `json:"message"`
	Timestamp time.Time      `json:"timestamp"`
	IsRead    bool           `json:"isRead"`
	Category  string         `json:"category"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// NewEnvelope marshals data into an envelope of type t. A nil data yields {}.
func NewEnvelope(t MessageType, data any) (Envelope, error) {
	if data == nil {
		return Envelope{Type: t, Data: emptyObject}, nil
	}

	raw, err := sonic.Marshal(data)
	if err != nil {
		return Envelope{}, errors.Wrapf(err, "marshal %s payload", t)
	}

	return Envelope{Type: t, Data: raw}, nil
}

// MustEnvelope is NewEnvelope for payloads that cannot fail to marshal.
func MustEnvelope(t MessageType, data any) Envelope {
	env, err := NewEnvelope(t, data)
	if err != nil {
		panic(err)
	}

	return env
}

func MarkRead(notificationID string) Envelope {
	return MustEnvelope(TypeMarkRead, NotificationRef{NotificationID: notificationID})
}

func MarkAllRead() Envelope {
	return MustEnvelope(TypeMarkAllRead, nil)
}

func Delete(notificationID string) Envelope {
	return MustEnvelope(TypeDelete, NotificationRef{NotificationID: notificationID})
}

func Unread(count int64) Envelope {
	return MustEnvelope(TypeUnreadCount, UnreadCount{Count: count})
}

func Connected() Envelope {
	return MustEnvelope(TypeConnected, nil)
}

// Encode serializes the envelope once so it can be written to many connections.
func Encode(env Envelope) ([]byte, error) {
	if env.Type == "" {
		return nil, ErrMissingType
	}
	if len(env.Data) == 0 {
		env.Data = emptyObject
	}

	b, err := sonic.Marshal(env)
	if err != nil {
		return nil, errors.Wrap(err, "encode envelope")
	}

	return b, nil
}

// Decode parses a frame. Unknown types are returned as-is; callers decide to ignore them.
func Decode(frame []byte) (Envelope, error) {
	var env Envelope
	if err := sonic.Unmarshal(frame, &env); err != nil {
		return Envelope{}, errors.Wrap(ErrMalformedEnvelope, err.Error())
	}
	if env.Type == "" {
		return Envelope{}, ErrMissingType
	}
	if len(env.Data) == 0 || string(env.Data) == "null" {
		env.Data = emptyObject
	}

	return env, nil
}

// DecodeData unmarshals the payload into v.
func (e Envelope) DecodeData(v any) error {
	if err := sonic.Unmarshal(e.Data, v); err != nil {
		return errors.Wrapf(err, "decode %s payload", e.Type)
	}

	return nil
}
