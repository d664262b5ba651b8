package passport

import (
	"fmt"
	"strings"

	"github.com/dmitrijs2005/idlink/internal/server/models"
)

// ProfileMapperFunc derives a candidate account from a provider profile.
// The returned Password is plain text; the service hashes it.
type ProfileMapperFunc func(provider string, profile *models.Profile, opts Options) (*models.Account, error)

// MapperConfig tunes the default profile mapper.
type MapperConfig struct {
	// EmailProviders lists providers whose first profile email is trusted.
	EmailProviders []string
	// EmailDomain is the internal part of placeholder emails.
	EmailDomain string
	// ProviderAliases maps token-variant providers to the provider whose
	// name appears in usernames.
	ProviderAliases map[string]string
}

// DefaultMapperConfig returns the stock mapper settings.
func DefaultMapperConfig() MapperConfig {
	return MapperConfig{
		EmailProviders:  []string{"ldap", "facebook", "facebook-login", "facebook-token", "google"},
		EmailDomain:     "idlink",
		ProviderAliases: map[string]string{"facebook-token": "facebook-login"},
	}
}

// Mapper is the default ProfileMapperFunc implementation.
type Mapper struct {
	emailProviders map[string]struct{}
	emailDomain    string
	aliases        map[string]string
	secrets        SecretGenerator
	enrichers      []ProfileEnricher
}

func NewMapper(cfg MapperConfig, secrets SecretGenerator, enrichers ...ProfileEnricher) *Mapper {
	m := &Mapper{
		emailProviders: make(map[string]struct{}, len(cfg.EmailProviders)),
		emailDomain:    cfg.EmailDomain,
		aliases:        cfg.ProviderAliases,
		secrets:        secrets,
		enrichers:      enrichers,
	}
	for _, p := range cfg.EmailProviders {
		m.emailProviders[p] = struct{}{}
	}
	if m.emailDomain == "" {
		m.emailDomain = "idlink"
	}
	if m.secrets == nil {
		m.secrets = RandomSecrets{}
	}
	return m
}

// UsernameProvider returns the provider name used in usernames: the alias
// table entry, or the base provider "X" for a token variant "X-token".
func (m *Mapper) UsernameProvider(provider string) string {
	if alias, ok := m.aliases[provider]; ok {
		return alias
	}
	if base, ok := strings.CutSuffix(provider, "-token"); ok && base != "" {
		return base
	}
	return provider
}

// Email returns the trusted provider email, or a deterministic placeholder
// unless opts.EmailOptional is set. It returns "" when neither applies.
func (m *Mapper) Email(provider string, profile *models.Profile, opts Options) string {
	if _, ok := m.emailProviders[provider]; ok {
		if email := profile.FirstEmail(); email != "" {
			return email
		}
	}
	if opts.EmailOptional {
		return ""
	}
	handle := profile.Handle()
	if handle == "" {
		return ""
	}
	source := profile.Provider
	if source == "" {
		source = provider
	}
	return fmt.Sprintf("%s@%s.%s.com", handle, m.emailDomain, source)
}

// Map implements ProfileMapperFunc.
func (m *Mapper) Map(provider string, profile *models.Profile, opts Options) (*models.Account, error) {
	password, err := m.secrets.GenerateSecret("password")
	if err != nil {
		return nil, fmt.Errorf("generate password: %w", err)
	}

	account := &models.Account{
		Email:    m.Email(provider, profile, opts),
		Password: password,
	}
	if handle := profile.Handle(); handle != "" {
		account.Username = m.UsernameProvider(provider) + "." + handle
	}

	for _, e := range m.enrichers {
		if e.EnrichesProfile(provider) {
			e.Enrich(profile, account)
		}
	}
	return account, nil
}
