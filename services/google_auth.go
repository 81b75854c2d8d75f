package services

import (
	"errors"

	googleAuthIDTokenVerifier "github.com/futurenda/google-auth-id-token-verifier"
)

var ErrInvalidGoogleToken = errors.New("invalid Google ID token")

type GoogleIdentity struct {
	Subject string
	Email   string
	Name    string
}

// IDTokenVerifier checks a Google sign-in ID token.
type IDTokenVerifier interface {
	Verify(idToken string) (*GoogleIdentity, error)
}

type GoogleVerifier struct {
	ClientID string
}

func (g GoogleVerifier) Verify(idToken string) (*GoogleIdentity, error) {
	if g.ClientID == "" {
		return nil, errors.New("GOOGLE_CLIENT_ID is not configured")
	}
	v := googleAuthIDTokenVerifier.Verifier{}
	if err := v.VerifyIDToken(idToken, []string{g.ClientID}); err != nil {
		return nil, ErrInvalidGoogleToken
	}
	claimSet, err := googleAuthIDTokenVerifier.Decode(idToken)
	if err != nil {
		return nil, ErrInvalidGoogleToken
	}
	if claimSet.Email == "" || claimSet.Sub == "" {
		return nil, ErrInvalidGoogleToken
	}
	return &GoogleIdentity{
		Subject: claimSet.Sub,
		Email:   claimSet.Email,
		Name:    claimSet.Name,
	}, nil
}
