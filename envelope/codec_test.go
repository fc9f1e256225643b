package envelope_test

import (
	"testing"

	"github.com/qollective/qollective-go/envelope"
	qerrors "github.com/qollective/qollective-go/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type payload struct {
	OK bool `json:"ok"`
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	e := envelope.New(envelope.Meta{
		RequestID: "req-1",
		Tenant:    envelope.StringField("acme"),
	}, payload{OK: true})

	data, err := envelope.Encode(e)
	require.NoError(t, err)

	decoded, err := envelope.Decode[payload](data)
	require.NoError(t, err)

	assert.Equal(t, e.Meta.RequestID, decoded.Meta.RequestID)
	assert.Equal(t, e.Meta.TenantOrEmpty(), decoded.Meta.TenantOrEmpty())
	assert.Equal(t, e.Payload, decoded.Payload)
	assert.Nil(t, decoded.Error)
}

func TestDecodeEmptyBytesFails(t *testing.T) {
	_, err := envelope.Decode[payload](nil)
	require.Error(t, err)
	assert.True(t, qerrors.Is(err, qerrors.KindDeserialization))
	assert.Contains(t, err.Error(), "cannot decode empty data")
}

func TestValidateRejectsWhitespaceTenant(t *testing.T) {
	e := envelope.New(envelope.Meta{
		RequestID: "req-1",
		Tenant:    envelope.StringField("   "),
	}, payload{})

	err := envelope.Validate(e)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cannot be empty or whitespace-only")
}

func TestValidateRejectsNegativeDuration(t *testing.T) {
	e := envelope.New(envelope.Meta{
		RequestID: "req-1",
		Duration:  envelope.DurationField(-1),
	}, payload{})

	err := envelope.Validate(e)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Duration cannot be negative")
}

func TestValidateRejectsEmptyErrorFields(t *testing.T) {
	e := envelope.NewError[payload](envelope.Meta{RequestID: "req-1"}, "", "")
	err := envelope.Validate(e)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Error code cannot be empty")

	e2 := envelope.NewError[payload](envelope.Meta{RequestID: "req-1"}, "E_BAD", "")
	err2 := envelope.Validate(e2)
	require.Error(t, err2)
	assert.Contains(t, err2.Error(), "Error message cannot be empty")
}

func TestEncodeRejectsInvalidEnvelope(t *testing.T) {
	e := envelope.Envelope[payload]{Meta: envelope.Meta{RequestID: ""}}
	_, err := envelope.Encode(e)
	require.Error(t, err)
}

func TestEstimateSizeMonotonic(t *testing.T) {
	base := envelope.New(envelope.Meta{RequestID: "req-1"}, payload{OK: true})
	baseSize, err := envelope.EstimateSize(base)
	require.NoError(t, err)

	withError := base
	withError.Error = &envelope.EnvelopeError{Code: "E", Message: "boom"}
	withErrorSize, err := envelope.EstimateSize(withError)
	require.NoError(t, err)

	assert.Greater(t, withErrorSize, baseSize)
}
