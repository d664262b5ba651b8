// Package models defines server-side data models persisted in the database.
package models

import "time"

// Account is the local user record a federated login resolves to.
type Account struct {
	ID       string `json:"id"`
	Username string `json:"username,omitempty"`
	Email    string `json:"email,omitempty"`
	// Password holds a bcrypt hash. It is never serialised and never
	// rewritten once the account exists.
	Password string `json:"-"`

	Name              string `json:"name,omitempty"`
	Gender            string `json:"gender,omitempty"`
	PreferredLanguage string `json:"preferedLanguage,omitempty"`
	// ProviderUserID is the numeric/user-facing id some providers expose
	// alongside the app-scoped external id.
	ProviderUserID string `json:"providerUserId,omitempty"`
	PictureURL     string `json:"pictureUrl,omitempty"`

	Created  time.Time `json:"created"`
	Modified time.Time `json:"modified"`
}

// Clone returns a copy of the account.
func (a *Account) Clone() *Account {
	if a == nil {
		return nil
	}
	c := *a
	return &c
}

// AccountChanges lists the enrichable account fields an update may set.
// Empty strings mean "leave as is". ID and Password are deliberately absent.
type AccountChanges struct {
	Username          string
	Email             string
	Name              string
	Gender            string
	PreferredLanguage string
	ProviderUserID    string
	PictureURL        string
}

// IsEmpty reports whether the changes would not modify anything.
func (c AccountChanges) IsEmpty() bool {
	return c == AccountChanges{}
}

// Apply copies the non-empty fields of c onto a.
func (c AccountChanges) Apply(a *Account) {
	set := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	set(&a.Username, c.Username)
	set(&a.Email, c.Email)
	set(&a.Name, c.Name)
	set(&a.Gender, c.Gender)
	set(&a.PreferredLanguage, c.PreferredLanguage)
	set(&a.ProviderUserID, c.ProviderUserID)
	set(&a.PictureURL, c.PictureURL)
}

// AccountSettings describes the active account type.
type AccountSettings struct {
	// MaxTTL caps the lifetime of access tokens minted for accounts of this
	// type. Zero means no cap.
	MaxTTL time.Duration
}
