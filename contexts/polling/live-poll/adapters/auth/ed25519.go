package authadapter

import (
	"context"
	"crypto/ed25519"
	"encoding/hex"
	"strings"

	domainerrors "livepoll/contexts/polling/live-poll/domain/errors"
	"livepoll/contexts/polling/live-poll/ports"
)

// Ed25519Authenticator treats the identity as a hex encoded ed25519 public
// key and requires a hex signature over the credential payload. A ballot must
// name the poll id it was signed for.
type Ed25519Authenticator struct{}

func (Ed25519Authenticator) Authenticate(_ context.Context, credential ports.Credential) (string, error) {
	if strings.TrimSpace(credential.PollID) == "" {
		return "", domainerrors.ErrUnauthenticated
	}
	identity := strings.ToLower(strings.TrimSpace(credential.Identity))
	publicKey, err := hex.DecodeString(identity)
	if err != nil || len(publicKey) != ed25519.PublicKeySize {
		return "", domainerrors.ErrUnauthenticated
	}
	signature, err := hex.DecodeString(strings.TrimSpace(credential.Signature))
	if err != nil || len(signature) != ed25519.SignatureSize {
		return "", domainerrors.ErrUnauthenticated
	}
	if credential.Payload == "" {
		return "", domainerrors.ErrUnauthenticated
	}
	if !ed25519.Verify(ed25519.PublicKey(publicKey), []byte(credential.Payload), signature) {
		return "", domainerrors.ErrUnauthenticated
	}
	return identity, nil
}

// Sign produces the hex signature Ed25519Authenticator accepts. Clients and
// tests use it to build ballots.
func Sign(privateKey ed25519.PrivateKey, payload string) string {
	return hex.EncodeToString(ed25519.Sign(privateKey, []byte(payload)))
}

// IdentityOf returns the identity string for a public key.
func IdentityOf(publicKey ed25519.PublicKey) string {
	return hex.EncodeToString(publicKey)
}

var _ ports.Authenticator = Ed25519Authenticator{}
