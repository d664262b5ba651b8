package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Auth schemes with a typed credentials payload.
const (
	SchemeOAuth1 = "oAuth 1.0"
	SchemeOAuth2 = "oAuth 2.0"
	SchemeOpenID = "openid"
)

// schemeAliases maps the short spellings strategies use to the canonical
// scheme names.
var schemeAliases = map[string]string{
	"oauth":  SchemeOAuth1,
	"oauth1": SchemeOAuth1,
	"oauth2": SchemeOAuth2,
}

// CanonicalScheme resolves short scheme spellings such as "oauth2".
func CanonicalScheme(scheme string) string {
	if c, ok := schemeAliases[strings.ToLower(scheme)]; ok {
		return c
	}
	return scheme
}

var ErrInvalidCredentials = errors.New("invalid credentials payload")

// Credentials is the secret material a provider handshake produced. The
// concrete type depends on the auth scheme.
type Credentials interface {
	Scheme() string
}

// OAuth2Credentials are bearer tokens from an OAuth 2.0 exchange.
type OAuth2Credentials struct {
	AccessToken  string    `json:"accessToken"`
	RefreshToken string    `json:"refreshToken,omitempty"`
	TokenType    string    `json:"tokenType,omitempty"`
	Expiry       time.Time `json:"expiry,omitzero"`
}

func (OAuth2Credentials) Scheme() string { return SchemeOAuth2 }

// OAuth1Credentials are the token pair from an OAuth 1.0a exchange.
type OAuth1Credentials struct {
	Token       string `json:"token"`
	TokenSecret string `json:"tokenSecret"`
}

func (OAuth1Credentials) Scheme() string { return SchemeOAuth1 }

// OpenIDCredentials carry the claimed identifier and any returned claims.
type OpenIDCredentials struct {
	Identifier string         `json:"identifier"`
	Claims     map[string]any `json:"claims,omitempty"`
}

func (OpenIDCredentials) Scheme() string { return SchemeOpenID }

// RawCredentials holds payloads for schemes without a typed variant.
type RawCredentials struct {
	AuthScheme string
	Data       map[string]any
}

func (r RawCredentials) Scheme() string { return r.AuthScheme }

func (r RawCredentials) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.Data)
}

// DecodeCredentials validates raw against the payload shape of scheme.
// Unknown schemes decode into RawCredentials.
func DecodeCredentials(scheme string, raw []byte) (Credentials, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	switch CanonicalScheme(scheme) {
	case SchemeOAuth2:
		var c OAuth2Credentials
		if err := json.Unmarshal(raw, &c); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidCredentials, err)
		}
		if c.AccessToken == "" {
			return nil, fmt.Errorf("%w: missing access token", ErrInvalidCredentials)
		}
		return c, nil
	case SchemeOAuth1:
		var c OAuth1Credentials
		if err := json.Unmarshal(raw, &c); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidCredentials, err)
		}
		if c.Token == "" {
			return nil, fmt.Errorf("%w: missing token", ErrInvalidCredentials)
		}
		return c, nil
	case SchemeOpenID:
		var c OpenIDCredentials
		if err := json.Unmarshal(raw, &c); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidCredentials, err)
		}
		return c, nil
	default:
		data := map[string]any{}
		if err := json.Unmarshal(raw, &data); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidCredentials, err)
		}
		return RawCredentials{AuthScheme: scheme, Data: data}, nil
	}
}

// EncodeCredentials serialises c for storage. A nil payload encodes as null.
func EncodeCredentials(c Credentials) ([]byte, error) {
	if c == nil {
		return []byte("null"), nil
	}
	return json.Marshal(c)
}
