package netatmo

import (
	"encoding/json"
	"errors"
	"time"

	"golang.org/x/oauth2"
)

const (
	fieldAccessToken  = "access_token"
	fieldRefreshToken = "refresh_token"
)

// Token is the Netatmo credential pair. Fields other than the two tokens are
// kept verbatim so the file round-trips whatever the provider returned.
type Token struct {
	AccessToken  string
	RefreshToken string

	extra map[string]json.RawMessage
}

// NewToken builds a token with no extra fields
func NewToken(accessToken, refreshToken string) *Token {
	return &Token{AccessToken: accessToken, RefreshToken: refreshToken}
}

// Validate checks that both tokens are present
func (t *Token) Validate() error {
	if t == nil {
		return &TokenError{Kind: TokenInvalid, Err: errors.New("token is nil")}
	}
	if t.AccessToken == "" {
		return &TokenError{Kind: TokenInvalid, Err: errors.New("missing access_token")}
	}
	if t.RefreshToken == "" {
		return &TokenError{Kind: TokenInvalid, Err: errors.New("missing refresh_token")}
	}
	return nil
}

// Extra returns a raw extra field, nil when absent
func (t *Token) Extra(key string) json.RawMessage {
	return t.extra[key]
}

// ExpiresIn returns the lifetime reported by the provider, zero when unknown
func (t *Token) ExpiresIn() time.Duration {
	for _, key := range []string{"expires_in", "expire_in"} {
		var seconds int64
		if raw, ok := t.extra[key]; ok && json.Unmarshal(raw, &seconds) == nil {
			return time.Duration(seconds) * time.Second
		}
	}
	return 0
}

// MarshalJSON writes the tokens alongside every preserved extra field
func (t Token) MarshalJSON() ([]byte, error) {
	doc := make(map[string]json.RawMessage, len(t.extra)+2)
	for k, v := range t.extra {
		doc[k] = v
	}

	access, err := json.Marshal(t.AccessToken)
	if err != nil {
		return nil, err
	}
	refresh, err := json.Marshal(t.RefreshToken)
	if err != nil {
		return nil, err
	}
	doc[fieldAccessToken] = access
	doc[fieldRefreshToken] = refresh

	return json.Marshal(doc)
}

// UnmarshalJSON reads a token document, keeping unknown fields
func (t *Token) UnmarshalJSON(data []byte) error {
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(data, &doc); err != nil {
		return err
	}

	var access, refresh string
	if raw, ok := doc[fieldAccessToken]; ok {
		if err := json.Unmarshal(raw, &access); err != nil {
			return err
		}
	}
	if raw, ok := doc[fieldRefreshToken]; ok {
		if err := json.Unmarshal(raw, &refresh); err != nil {
			return err
		}
	}

	delete(doc, fieldAccessToken)
	delete(doc, fieldRefreshToken)

	t.AccessToken = access
	t.RefreshToken = refresh
	t.extra = doc
	return nil
}

// ParseToken decodes and validates a token document
func ParseToken(data []byte) (*Token, error) {
	var token Token
	if err := json.Unmarshal(data, &token); err != nil {
		return nil, &TokenError{Kind: TokenInvalid, Body: string(data), Err: err}
	}
	if err := token.Validate(); err != nil {
		var tokenErr *TokenError
		if errors.As(err, &tokenErr) {
			tokenErr.Body = string(data)
		}
		return nil, err
	}
	return &token, nil
}

// tokenFromResponse builds a Token from the raw token endpoint body. The
// body must be a JSON document carrying both tokens on its own; what x/oauth2
// parsed or backfilled into result only contributes the computed expiry.
func tokenFromResponse(body []byte, result *oauth2.Token) (*Token, error) {
	token, err := ParseToken(body)
	if err != nil {
		return nil, err
	}

	if _, ok := token.extra["expiry"]; !ok && result != nil && !result.Expiry.IsZero() {
		if raw, err := json.Marshal(result.Expiry.UTC()); err == nil {
			token.extra["expiry"] = raw
		}
	}

	return token, nil
}
