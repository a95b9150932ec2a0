package domain

import "time"

// DefaultReplayWindow is how far a webhook timestamp may drift from now.
const DefaultReplayWindow = 5 * time.Minute

// Header names carried by signed webhooks.
const (
	HeaderSignature = "X-Webhook-Signature"
	HeaderTimestamp = "X-Webhook-Timestamp"
	HeaderNonce     = "X-Webhook-Nonce"
)

// Request is one inbound webhook call to verify.
//
// Timestamp is the sender's clock in unix milliseconds as a decimal string. Signature
// is the lowercase hex HMAC-SHA256 of "{timestamp}.{nonce}.{payload}" under Secret.
type Request struct {
	Payload   []byte
	Signature string
	Timestamp string
	Nonce     string
	Secret    []byte
}

// SigningInput returns the exact bytes the sender signs.
func (r Request) SigningInput() []byte {
	buf := make([]byte, 0, len(r.Timestamp)+len(r.Nonce)+len(r.Payload)+2)
	buf = append(buf, r.Timestamp...)
	buf = append(buf, '.')
	buf = append(buf, r.Nonce...)
	buf = append(buf, '.')
	buf = append(buf, r.Payload...)
	return buf
}
