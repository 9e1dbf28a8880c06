package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
)

func sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func TestVerifyAcceptsMatchingSignature(t *testing.T) {
	v := New("shh", nil)
	body := []byte(`{"type":"sync"}`)
	assert.NoError(t, v.Verify(body, sign("shh", body)))
}

func TestVerifyRejectsWrongSecret(t *testing.T) {
	v := New("shh", nil)
	body := []byte(`{"type":"sync"}`)
	assert.Error(t, v.Verify(body, sign("wrong-secret", body)))
}

func TestVerifyRejectsTamperedBody(t *testing.T) {
	v := New("shh", nil)
	sig := sign("shh", []byte(`{"type":"sync"}`))
	assert.Error(t, v.Verify([]byte(`{"type":"auth"}`), sig))
}

func TestVerifyRejectsMalformedHex(t *testing.T) {
	v := New("shh", nil)
	assert.Error(t, v.Verify([]byte("body"), "not-hex!!"))
}

func TestHandleIgnoresUnknownEventType(t *testing.T) {
	v := New("shh", nil)
	err := v.Handle(nil, []byte(`{"type":"ping"}`))
	assert.NoError(t, err)
}

func TestHandleRejectsMalformedBody(t *testing.T) {
	v := New("shh", nil)
	err := v.Handle(nil, []byte(`not json`))
	assert.Error(t, err)
}
