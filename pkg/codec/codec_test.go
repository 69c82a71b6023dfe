package codec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/habemus/amqp-worker/pkg/faults"
	"github.com/habemus/amqp-worker/pkg/models"
)

func TestEncode_String(t *testing.T) {
	body, contentType, err := Encode("hello worker")

	require.NoError(t, err)
	assert.Equal(t, models.ContentTypeText, contentType)
	assert.Equal(t, []byte("hello worker"), body)
}

func TestEncode_StructuredValue(t *testing.T) {
	body, contentType, err := Encode(map[string]interface{}{"someKey": "someValue"})

	require.NoError(t, err)
	assert.Equal(t, models.ContentTypeJSON, contentType)
	assert.JSONEq(t, `{"someKey":"someValue"}`, string(body))
}

func TestEncode_ErrorValue(t *testing.T) {
	body, contentType, err := Encode(assert.AnError)

	require.NoError(t, err)
	assert.Equal(t, models.ContentTypeText, contentType)
	assert.Equal(t, assert.AnError.Error(), string(body))
}

func TestEncode_UnsupportedValue(t *testing.T) {
	_, _, err := Encode(func() {})

	assert.Error(t, err)
}

func TestDecode_JSON(t *testing.T) {
	value, err := Decode([]byte(`{"someKey":"someValue","n":3}`), models.ContentTypeJSON)

	require.NoError(t, err)
	assert.Equal(t, map[string]interface{}{"someKey": "someValue", "n": float64(3)}, value)
}

func TestDecode_MalformedJSON(t *testing.T) {
	_, err := Decode([]byte(`{not json`), models.ContentTypeJSON)

	require.Error(t, err)
	assert.True(t, faults.IsKind(err, faults.KindMalformedMessage))
}

func TestDecode_Text(t *testing.T) {
	value, err := Decode([]byte("plain text body"), models.ContentTypeText)

	require.NoError(t, err)
	assert.Equal(t, "plain text body", value)
}

func TestRoundTrip_JSON(t *testing.T) {
	original := map[string]interface{}{
		"someKey": "someValue",
		"nested":  map[string]interface{}{"list": []interface{}{"a", "b"}},
	}

	body, contentType, err := Encode(original)
	require.NoError(t, err)

	decoded, err := Decode(body, contentType)
	require.NoError(t, err)
	assert.Equal(t, original, decoded)
}

func TestRoundTrip_String(t *testing.T) {
	body, contentType, err := Encode("round trip me")
	require.NoError(t, err)
	assert.Equal(t, models.ContentTypeText, contentType)

	decoded, err := Decode(body, contentType)
	require.NoError(t, err)
	assert.Equal(t, "round trip me", decoded)
}
