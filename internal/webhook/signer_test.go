package webhook

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSignatureRoundTrip(t *testing.T) {
	secret := "whsec_0123456789abcdef"
	payload := []byte(`{"event":"wallet.funded","amount":1000}`)

	sig := Sign(secret, payload)
	assert.Len(t, sig, 64)
	assert.True(t, VerifySignature(secret, payload, sig))
}

func TestSignatureRejectsTampering(t *testing.T) {
	secret := "whsec_0123456789abcdef"
	payload := []byte(`{"event":"wallet.funded","amount":1000}`)
	sig := Sign(secret, payload)

	tampered := []byte(`{"event":"wallet.funded","amount":9000}`)
	assert.False(t, VerifySignature(secret, tampered, sig))
	assert.False(t, VerifySignature("whsec_wrong", payload, sig))
	assert.False(t, VerifySignature(secret, payload, "not-hex"))
	assert.False(t, VerifySignature(secret, payload, ""))
}
