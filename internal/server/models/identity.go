package models

import "time"

// ExternalIdentity links one provider account to a local Account.
// (Provider, ExternalID) is unique. Credentials never leave the server.
type ExternalIdentity struct {
	ID          string      `json:"id"`
	Provider    string      `json:"provider"`
	AuthScheme  string      `json:"authScheme"`
	ExternalID  string      `json:"externalId"`
	Profile     Profile     `json:"profile"`
	Credentials Credentials `json:"-"`
	AccountID   string      `json:"accountId"`
	Created     time.Time   `json:"created"`
	Modified    time.Time   `json:"modified"`
}

// Clone returns a deep copy of the identity, payloads included.
func (i *ExternalIdentity) Clone() *ExternalIdentity {
	if i == nil {
		return nil
	}
	c := *i
	c.Profile = i.Profile.Clone()
	c.Credentials = CloneCredentials(i.Credentials)
	return &c
}

// CloneCredentials deep-copies the map payloads of the built-in credential
// types. Other implementations are returned as they are.
func CloneCredentials(c Credentials) Credentials {
	switch v := c.(type) {
	case OpenIDCredentials:
		v.Claims = cloneMap(v.Claims)
		return v
	case RawCredentials:
		v.Data = cloneMap(v.Data)
		return v
	default:
		return c
	}
}

// cloneMap deep-copies a decoded JSON object.
func cloneMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = cloneJSON(v)
	}
	return out
}

func cloneJSON(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return cloneMap(t)
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = cloneJSON(e)
		}
		return out
	default:
		return v
	}
}
