// Package auth abstracts the identity provider. The sync layer only ever
// needs the signed-in user's id.
package auth

// Provider reports the currently signed-in user.
type Provider interface {
	// CurrentUserID returns the signed-in user id, or false when no user
	// is signed in.
	CurrentUserID() (string, bool)
}

// Static is a fixed-identity provider, used by the daemon (identity comes
// from the profile config) and by tests.
type Static struct {
	UserID string
}

// CurrentUserID implements Provider.
func (s Static) CurrentUserID() (string, bool) {
	return s.UserID, s.UserID != ""
}
