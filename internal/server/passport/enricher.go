package passport

import (
	"fmt"
	"strings"

	"github.com/dmitrijs2005/idlink/internal/server/models"
)

// ProfileEnricher copies provider specific social fields from a profile onto
// a candidate account.
type ProfileEnricher interface {
	// EnrichesProfile reports whether the enricher understands profiles
	// from provider.
	EnrichesProfile(provider string) bool
	Enrich(profile *models.Profile, account *models.Account)
}

// FacebookEnricher reads the Graph API fields of the facebook strategies.
type FacebookEnricher struct {
	// Languages is the allow-list of two-letter codes. Locales outside it
	// map to FallbackLanguage.
	Languages        []string
	FallbackLanguage string
}

var facebookProviders = map[string]struct{}{
	"facebook":       {},
	"facebook-login": {},
	"facebook-token": {},
}

// NewFacebookEnricher returns an enricher with the default language set.
func NewFacebookEnricher() *FacebookEnricher {
	return &FacebookEnricher{
		Languages:        []string{"en", "fr", "de", "es", "it", "pt", "nl", "ru"},
		FallbackLanguage: "en",
	}
}

func (f *FacebookEnricher) EnrichesProfile(provider string) bool {
	_, ok := facebookProviders[provider]
	return ok
}

func (f *FacebookEnricher) Enrich(profile *models.Profile, account *models.Account) {
	account.Name = facebookName(profile)
	account.Gender = profile.RawString("gender")
	account.PreferredLanguage = f.language(profile.RawString("locale"))
	account.ProviderUserID = rawID(profile)
	if profile.ID != "" {
		account.PictureURL = fmt.Sprintf("https://graph.facebook.com/%s/picture?type=large", profile.ID)
	}
}

// facebookName prefers the full name, then first and last name joined, then
// whichever single part is present.
func facebookName(profile *models.Profile) string {
	if full := profile.RawString("name"); full != "" {
		return full
	}
	first := profile.RawString("first_name")
	if first == "" {
		first = strings.TrimSpace(profile.Name.GivenName)
	}
	last := profile.RawString("last_name")
	if last == "" {
		last = strings.TrimSpace(profile.Name.FamilyName)
	}
	return strings.TrimSpace(first + " " + last)
}

func (f *FacebookEnricher) language(locale string) string {
	if len(locale) >= 2 {
		code := strings.ToLower(locale[:2])
		for _, l := range f.Languages {
			if l == code {
				return code
			}
		}
	}
	return f.FallbackLanguage
}

// rawID returns the numeric id from the Graph payload, which decodes either
// as a string or a JSON number.
func rawID(profile *models.Profile) string {
	switch v := profile.Raw["id"].(type) {
	case string:
		return v
	case float64:
		return fmt.Sprintf("%.0f", v)
	}
	return ""
}
