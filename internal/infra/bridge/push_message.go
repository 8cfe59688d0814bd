package bridge

import (
	"encoding/base64"

	"beacon/pkg/protocol"

	"github.com/bytedance/sonic"
	"github.com/pkg/errors"
)

// PubSubPushMessage is the body Google Pub/Sub POSTs to a push endpoint
type PubSubPushMessage struct {
	Message struct {
		Data        string            `json:"data"`
		Attributes  map[string]string `json:"attributes,omitempty"`
		MessageID   string            `json:"messageId"`
		PublishTime string            `json:"publishTime"`
	} `json:"message"`
	Subscription string `json:"subscription"`
}

// DecodeEmitRequest extracts the EmitRequest carried in the base64 data field
func (m *PubSubPushMessage) DecodeEmitRequest() (*protocol.EmitRequest, error) {
	raw, err := base64.StdEncoding.DecodeString(m.Message.Data)
	if err != nil {
		return nil, errors.Wrap(err, "decode push message data")
	}

	var req protocol.EmitRequest
	if err := sonic.Unmarshal(raw, &req); err != nil {
		return nil, errors.Wrap(err, "parse emit request")
	}

	return &req, nil
}

// RequestID returns the tracing id propagated in the message attributes
func (m *PubSubPushMessage) RequestID() string {
	return m.Message.Attributes["request_id"]
}
