// Package codec serializes payloads to and from the broker's message body,
// negotiating the content type from the value's shape.
package codec

import (
	"encoding/json"
	"fmt"

	"github.com/habemus/amqp-worker/pkg/faults"
	"github.com/habemus/amqp-worker/pkg/models"
)

// Encode turns a payload into body bytes plus the content type describing
// them. Strings travel as UTF-8 text; everything else is JSON-encoded.
func Encode(value interface{}) ([]byte, string, error) {
	switch v := value.(type) {
	case string:
		return []byte(v), models.ContentTypeText, nil
	case []byte:
		return v, models.ContentTypeText, nil
	case error:
		return []byte(v.Error()), models.ContentTypeText, nil
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return nil, "", fmt.Errorf("encode payload: %w", err)
		}
		return b, models.ContentTypeJSON, nil
	}
}

// Decode parses body bytes per the declared content type. JSON bodies that
// fail to parse yield a MalformedMessage fault; any non-JSON content type is
// handed back as text.
func Decode(body []byte, contentType string) (interface{}, error) {
	if contentType == models.ContentTypeJSON {
		var v interface{}
		if err := json.Unmarshal(body, &v); err != nil {
			return nil, faults.MalformedMessage(err)
		}
		return v, nil
	}
	return string(body), nil
}
