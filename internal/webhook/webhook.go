// Package webhook verifies and routes inbound events from the external
// OAuth gateway (spec §6): HMAC-SHA256 over the raw body, constant-time
// compared against the configured shared secret, with unknown event types
// acknowledged rather than rejected.
//
// HMAC verification is one of the few places this module reaches for the
// standard library over a pack dependency: crypto/hmac and crypto/sha256
// are the correct tool for a fixed cryptographic primitive, and no example
// in the corpus wraps a third-party HMAC library (see DESIGN.md).
package webhook

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/fenwick-labs/graphrag/internal/apierr"
	"github.com/fenwick-labs/graphrag/internal/domain"
	"github.com/fenwick-labs/graphrag/internal/logging"
	"github.com/fenwick-labs/graphrag/internal/rs"
)

// Event is the gateway's envelope shape.
type Event struct {
	Type           string `json:"type"`
	WorkspaceID    string `json:"workspace_id"`
	ConnectionID   string `json:"connection_id"`
	SourceType     string `json:"source_type"`
	ExternalAuthID string `json:"external_auth_id"`
}

// Verifier checks the X-Signature-HMAC-SHA256 header against the configured
// secret and routes known event types.
type Verifier struct {
	secret []byte
	rs     *rs.Store
}

func New(secret string, store *rs.Store) *Verifier {
	return &Verifier{secret: []byte(secret), rs: store}
}

// Verify computes HMAC-SHA256 over body and compares it in constant time
// against sig (hex-encoded). A mismatch returns apierr.Unauthorized, which
// the httpapi layer renders as 401 with no body (§7).
func (v *Verifier) Verify(body []byte, sig string) error {
	mac := hmac.New(sha256.New, v.secret)
	mac.Write(body)
	expected := mac.Sum(nil)

	got, err := hex.DecodeString(sig)
	if err != nil || !hmac.Equal(expected, got) {
		return apierr.Unauthorized("signature mismatch")
	}
	return nil
}

// Handle routes a verified event. "auth" binds a new connection; "sync"
// marks it active (ready for ingestion). Any other type is acknowledged and
// ignored, per §6's "unknown types ack-ignored" contract.
func (v *Verifier) Handle(ctx context.Context, body []byte) error {
	var evt Event
	if err := json.Unmarshal(body, &evt); err != nil {
		return apierr.Invalid(fmt.Sprintf("malformed webhook body: %v", err))
	}

	switch evt.Type {
	case "auth":
		_, err := v.rs.CreateConnection(ctx, evt.WorkspaceID, evt.SourceType, evt.ExternalAuthID)
		return err
	case "sync":
		return v.rs.SetConnectionStatus(ctx, evt.ConnectionID, domain.ConnectionActive)
	default:
		logging.FromContext(ctx).Info().Str("type", evt.Type).Msg("ignoring unknown webhook event type")
		return nil
	}
}
