package protocol

import "encoding/json"

// EmitNotificationRequest is the body of POST /emit-notification.
type EmitNotificationRequest struct {
	UserID       string          `json:"userId" validate:"required,uuid"`
	Notification json.RawMessage `json:"notification" validate:"required"`
}

// EmitRequest is the body of POST /emit and the message of the queue based bridges.
type EmitRequest struct {
	UserID string          `json:"userId" validate:"required,uuid"`
	Type   MessageType     `json:"type" validate:"required"`
	Data   json.RawMessage `json:"data,omitempty"`
}

// Envelope returns the envelope carried by the request.
func (r EmitRequest) Envelope() Envelope {
	data := r.Data
	if len(data) == 0 {
		data = emptyObject
	}

	return Envelope{Type: r.Type, Data: data}
}

// EmitResponse acknowledges a bridge call. Success does not imply the user was online.
type EmitResponse struct {
	Success   bool `json:"success"`
	Delivered *int `json:"delivered,omitempty"`
}
