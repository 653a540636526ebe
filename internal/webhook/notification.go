package webhook

import (
	"encoding/json"
	"net/http"
	"net/url"
)

// Notification is a gateway notification as received.
type Notification struct {
	Type      string
	Action    string
	DataID    string
	Signature string
	RequestID string
}

// IsPayment reports whether n announces a payment change.
func (n Notification) IsPayment() bool {
	return (n.Type == "payment" || n.Type == "") && n.DataID != ""
}

type notificationBody struct {
	Type   string `json:"type"`
	Action string `json:"action"`
	Data   struct {
		ID json.RawMessage `json:"id"`
	} `json:"data"`
}

// ParseNotification reads a notification from its headers, query and body.
// The gateway sends the payment id both as the data.id query parameter and
// in the body; the query wins since it is what the signature covers.
// Unreadable bodies leave the body-derived fields empty.
func ParseNotification(header http.Header, query url.Values, body []byte) Notification {
	n := Notification{
		Signature: header.Get("x-signature"),
		RequestID: header.Get("x-request-id"),
		Type:      query.Get("type"),
		DataID:    query.Get("data.id"),
	}
	if n.Type == "" {
		n.Type = query.Get("topic")
	}
	if n.DataID == "" {
		n.DataID = query.Get("id")
	}

	var b notificationBody
	if len(body) > 0 && json.Unmarshal(body, &b) == nil {
		if n.Type == "" {
			n.Type = b.Type
		}
		n.Action = b.Action
		if n.DataID == "" {
			n.DataID = rawID(b.Data.ID)
		}
	}
	return n
}

// rawID accepts both string and numeric ids.
func rawID(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if json.Unmarshal(raw, &s) == nil {
		return s
	}
	var n json.Number
	if json.Unmarshal(raw, &n) == nil {
		return n.String()
	}
	return ""
}
