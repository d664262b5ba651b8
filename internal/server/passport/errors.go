package passport

import (
	"errors"
	"fmt"
)

var (
	// ErrLookupFailure reports a persistence error while querying identities
	// or accounts. Nothing has been written when it is returned.
	ErrLookupFailure = errors.New("identity lookup failed")
	// ErrMissingEmail reports a candidate account without email when the
	// caller did not allow it.
	ErrMissingEmail = errors.New("email is missing from the user profile")
	// ErrCreateFailure reports a failed find-or-create or identity update.
	ErrCreateFailure = errors.New("account or identity persistence failed")
	// ErrMergeFailure matches *MergeError warnings.
	ErrMergeFailure = errors.New("account enrichment failed")
	// ErrTokenIssuance reports that auto-login was requested but no token
	// could be minted.
	ErrTokenIssuance = errors.New("access token issuance failed")

	ErrIdentityLinked    = errors.New("identity is linked to another account")
	ErrAccountNotFound   = errors.New("account not found")
	ErrMissingExternalID = errors.New("profile has neither id nor openid")
)

// MergeError is the non-fatal outcome of a failed enrichment update. The
// login still succeeds and carries it in LoginResult.Warning.
type MergeError struct {
	AccountID string
	Err       error
}

func (e *MergeError) Error() string {
	return fmt.Sprintf("merge profile into account %s: %v", e.AccountID, e.Err)
}

func (e *MergeError) Unwrap() []error {
	return []error{ErrMergeFailure, e.Err}
}

func fail(sentinel, cause error) error {
	return fmt.Errorf("%w: %w", sentinel, cause)
}
