package passport

import "github.com/dmitrijs2005/idlink/internal/server/models"

// MergeIfAbsent returns the candidate fields that current lacks. Fields
// already set on current are never overwritten. ID and Password are not
// part of the result.
func MergeIfAbsent(current, candidate *models.Account) models.AccountChanges {
	pick := func(have, want string) string {
		if have == "" {
			return want
		}
		return ""
	}
	return models.AccountChanges{
		Username:          pick(current.Username, candidate.Username),
		Email:             pick(current.Email, candidate.Email),
		Name:              pick(current.Name, candidate.Name),
		Gender:            pick(current.Gender, candidate.Gender),
		PreferredLanguage: pick(current.PreferredLanguage, candidate.PreferredLanguage),
		ProviderUserID:    pick(current.ProviderUserID, candidate.ProviderUserID),
		PictureURL:        pick(current.PictureURL, candidate.PictureURL),
	}
}
