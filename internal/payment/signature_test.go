package payment

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"paylink/internal/apperr"
)

const testSecret = "whsec_test"

func TestVerifySignature(t *testing.T) {
	now := time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)
	payload := []byte(`{"id":"evt_1","type":"payment_intent.succeeded"}`)
	valid := SignHeader(payload, testSecret, now)

	tests := []struct {
		name    string
		payload []byte
		header  string
		secret  string
		wantErr bool
	}{
		{name: "valid", payload: payload, header: valid, secret: testSecret},
		{name: "tampered body", payload: []byte(`{"id":"evt_1","type":"payment_intent.payment_failed"}`), header: valid, secret: testSecret, wantErr: true},
		{name: "wrong secret", payload: payload, header: valid, secret: "whsec_other", wantErr: true},
		{name: "empty header", payload: payload, header: "", secret: testSecret, wantErr: true},
		{name: "empty secret", payload: payload, header: valid, secret: "", wantErr: true},
		{name: "no v1", payload: payload, header: "t=123", secret: testSecret, wantErr: true},
		{name: "garbage", payload: payload, header: "not-a-signature", secret: testSecret, wantErr: true},
		{name: "stale", payload: payload, header: SignHeader(payload, testSecret, now.Add(-10*time.Minute)), secret: testSecret, wantErr: true},
		{
			name:    "one of several signatures matches",
			payload: payload,
			header:  valid + ",v1=deadbeef",
			secret:  testSecret,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := VerifySignature(tt.payload, tt.header, tt.secret, 5*time.Minute, now)
			if tt.wantErr {
				assert.ErrorIs(t, err, apperr.ErrSignatureInvalid)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestVerifySignatureWithoutTolerance(t *testing.T) {
	payload := []byte(`{}`)
	old := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	err := VerifySignature(payload, SignHeader(payload, testSecret, old), testSecret, 0, time.Now())
	assert.NoError(t, err)
}
