package mqtt

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"parking-backend/internal/models"
)

func TestClassifyQR(t *testing.T) {
	tests := []struct {
		name       string
		identifier string
		want       models.RequestKind
	}{
		{"six digit numeric is a generation request", "482913", models.KindQRGenerate},
		{"all zeros still six digits", "000000", models.KindQRGenerate},
		{"five digits is a scan", "48291", models.KindQRScan},
		{"seven digits is a scan", "4829137", models.KindQRScan},
		{"alphanumeric is a scan", "ABC123", models.KindQRScan},
		{"six chars with letter is a scan", "48291A", models.KindQRScan},
		{"prefixed code is a scan", "QR-482913", models.KindQRScan},
		{"six digits with space is a scan", "4829 3", models.KindQRScan},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ClassifyQR(tt.identifier))
		})
	}
}

func TestParsePayloadTrimsWhitespace(t *testing.T) {
	id, err := parsePayload([]byte("  482913\n"))
	require.NoError(t, err)
	assert.Equal(t, "482913", id)
}

func TestParsePayloadRejectsEmpty(t *testing.T) {
	_, err := parsePayload([]byte(""))
	require.Error(t, err)

	_, err = parsePayload([]byte("   \t\n"))
	require.Error(t, err)
}

// fakeMessage satisfies paho's Message interface for handler tests.
type fakeMessage struct {
	topic   string
	payload []byte
}

func (m *fakeMessage) Duplicate() bool   { return false }
func (m *fakeMessage) Qos() byte         { return 1 }
func (m *fakeMessage) Retained() bool    { return false }
func (m *fakeMessage) Topic() string     { return m.topic }
func (m *fakeMessage) MessageID() uint16 { return 0 }
func (m *fakeMessage) Payload() []byte   { return m.payload }
func (m *fakeMessage) Ack()              {}

func newTestSubscriber() *Subscriber {
	return &Subscriber{
		RequestChan:  make(chan *models.AccessRequest, 10),
		ResponseChan: make(chan *models.AccessResponse, 10),
		rfidTopic:    "parking/rfid_card",
		qrTopic:      "parking/access_code",
	}
}

func TestHandleRFIDEnqueuesTaggedRequest(t *testing.T) {
	s := newTestSubscriber()

	s.handleRFID(nil, &fakeMessage{topic: s.rfidTopic, payload: []byte(" 04A1B2C3 ")})

	require.Len(t, s.RequestChan, 1)
	req := <-s.RequestChan
	assert.Equal(t, models.KindRFID, req.Kind)
	assert.Equal(t, "04A1B2C3", req.Identifier)
	assert.Len(t, s.ResponseChan, 0)
}

func TestHandleQREnqueuesClassifiedRequest(t *testing.T) {
	s := newTestSubscriber()

	s.handleQR(nil, &fakeMessage{topic: s.qrTopic, payload: []byte("482913")})
	s.handleQR(nil, &fakeMessage{topic: s.qrTopic, payload: []byte("QR-482913")})

	require.Len(t, s.RequestChan, 2)
	assert.Equal(t, models.KindQRGenerate, (<-s.RequestChan).Kind)
	assert.Equal(t, models.KindQRScan, (<-s.RequestChan).Kind)
}

// Malformed payloads are answered, not silently dropped: nothing reaches
// the admission service, and the sender hears a parse rejection.
func TestHandleRFIDEmptyPayloadRejected(t *testing.T) {
	s := newTestSubscriber()

	s.handleRFID(nil, &fakeMessage{topic: s.rfidTopic, payload: []byte("")})

	assert.Len(t, s.RequestChan, 0)
	require.Len(t, s.ResponseChan, 1)
	resp := <-s.ResponseChan
	assert.Equal(t, models.KindRFID, resp.Kind)
	assert.Equal(t, "rejected", resp.Status)
	assert.Equal(t, models.ReasonParseError, resp.Reason)
}

func TestHandleQRWhitespacePayloadRejected(t *testing.T) {
	s := newTestSubscriber()

	s.handleQR(nil, &fakeMessage{topic: s.qrTopic, payload: []byte("  \n")})

	assert.Len(t, s.RequestChan, 0)
	require.Len(t, s.ResponseChan, 1)
	resp := <-s.ResponseChan
	assert.Equal(t, models.KindQRScan, resp.Kind)
	assert.Equal(t, "rejected", resp.Status)
	assert.Equal(t, models.ReasonParseError, resp.Reason)
}

func TestIsDigits(t *testing.T) {
	assert.True(t, isDigits("0123456789"))
	assert.False(t, isDigits(""))
	assert.False(t, isDigits("12a4"))
	assert.False(t, isDigits("1 2"))
}
