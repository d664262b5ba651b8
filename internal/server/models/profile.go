package models

import (
	"slices"
	"strings"
)

// Profile is the normalised user profile a provider strategy hands over
// after a successful handshake.
type Profile struct {
	Provider    string      `json:"provider,omitempty"`
	ID          string      `json:"id,omitempty"`
	OpenID      string      `json:"openid,omitempty"`
	Username    string      `json:"username,omitempty"`
	DisplayName string      `json:"displayName,omitempty"`
	Name        ProfileName `json:"name,omitempty"`
	Emails      []Email     `json:"emails,omitempty"`
	Photos      []Photo     `json:"photos,omitempty"`
	// Raw is the provider's own JSON body, kept for provider-specific
	// enrichment.
	Raw map[string]any `json:"_json,omitempty"`
}

type ProfileName struct {
	GivenName  string `json:"givenName,omitempty"`
	FamilyName string `json:"familyName,omitempty"`
	MiddleName string `json:"middleName,omitempty"`
}

type Email struct {
	Value string `json:"value"`
	Type  string `json:"type,omitempty"`
}

type Photo struct {
	Value string `json:"value"`
}

// Clone returns a deep copy of the profile.
func (p *Profile) Clone() Profile {
	c := *p
	c.Emails = slices.Clone(p.Emails)
	c.Photos = slices.Clone(p.Photos)
	c.Raw = cloneMap(p.Raw)
	return c
}

// ExternalID returns the provider-scoped identifier, falling back to the
// OpenID identifier when the provider does not set an id.
func (p *Profile) ExternalID() string {
	if id := strings.TrimSpace(p.ID); id != "" {
		return id
	}
	return strings.TrimSpace(p.OpenID)
}

// Handle returns the username, or the id when the provider has no usernames.
// An OpenID-only profile falls back to its identifier reduced to letters,
// digits and single dashes, so the handle stays a valid email local part.
func (p *Profile) Handle() string {
	if p.Username != "" {
		return p.Username
	}
	if p.ID != "" {
		return p.ID
	}
	return openIDHandle(p.OpenID)
}

func openIDHandle(openID string) string {
	s := strings.TrimSpace(openID)
	if i := strings.Index(s, "://"); i >= 0 {
		s = s[i+3:]
	}
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(s) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
			dash = false
			continue
		}
		if !dash && b.Len() > 0 {
			b.WriteByte('-')
			dash = true
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}

// FirstEmail returns the first provider email, or "".
func (p *Profile) FirstEmail() string {
	if len(p.Emails) == 0 {
		return ""
	}
	return strings.TrimSpace(p.Emails[0].Value)
}

// RawString returns the string value of key in the provider body.
func (p *Profile) RawString(key string) string {
	if p.Raw == nil {
		return ""
	}
	s, _ := p.Raw[key].(string)
	return strings.TrimSpace(s)
}
