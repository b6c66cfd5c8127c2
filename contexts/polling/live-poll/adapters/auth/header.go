package authadapter

import (
	"context"
	"strings"

	domainerrors "livepoll/contexts/polling/live-poll/domain/errors"
	"livepoll/contexts/polling/live-poll/ports"
)

// HeaderAuthenticator accepts the identity an upstream gateway already
// authenticated and forwarded in X-User-Id.
type HeaderAuthenticator struct{}

func (HeaderAuthenticator) Authenticate(_ context.Context, credential ports.Credential) (string, error) {
	identity := strings.TrimSpace(credential.Identity)
	if identity == "" {
		return "", domainerrors.ErrUnauthenticated
	}
	return identity, nil
}

var _ ports.Authenticator = HeaderAuthenticator{}
