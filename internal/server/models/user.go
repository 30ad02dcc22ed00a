// Package models defines the server-side records persisted by the credential
// stores and the projections handed to clients.
package models

import "time"

// MaxLoginHistory bounds User.LoginHistory.
const MaxLoginHistory = 10

// ResetTokenTTL is how long a password reset token stays usable.
const ResetTokenTTL = time.Hour

// LoginStatus is the outcome of a sign-in attempt.
type LoginStatus string

const (
	LoginSuccess LoginStatus = "SUCCESS"
	LoginFailed  LoginStatus = "FAILED"
)

// LoginHistoryEntry records one sign-in attempt. Entries are never modified
// after being appended.
type LoginHistoryEntry struct {
	Timestamp time.Time   `json:"timestamp" bson:"timestamp"`
	IP        string      `json:"ip" bson:"ip"`
	UserAgent string      `json:"userAgent" bson:"userAgent"`
	Status    LoginStatus `json:"status" bson:"status"`
}

// User is a registered account.
//
// Salt and Hash are both hex strings and are always set together by
// password.SetPassword. The reset fields are either both nil or both set.
type User struct {
	ID                   string
	Name                 string
	Email                string
	Salt                 string
	Hash                 string
	LoginHistory         []LoginHistoryEntry
	ResetPasswordToken   *string
	ResetPasswordExpires *time.Time
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// AppendLoginHistory records an attempt and drops the oldest entries so that
// at most MaxLoginHistory remain.
func (u *User) AppendLoginHistory(e LoginHistoryEntry) {
	u.LoginHistory = append(u.LoginHistory, e)
	if n := len(u.LoginHistory); n > MaxLoginHistory {
		trimmed := make([]LoginHistoryEntry, MaxLoginHistory)
		copy(trimmed, u.LoginHistory[n-MaxLoginHistory:])
		u.LoginHistory = trimmed
	}
}

// SetResetToken replaces any previous reset token. The token expires
// ResetTokenTTL after now.
func (u *User) SetResetToken(token string, now time.Time) {
	expires := now.UTC().Add(ResetTokenTTL)
	u.ResetPasswordToken = &token
	u.ResetPasswordExpires = &expires
}

// ClearResetToken invalidates the current reset token.
func (u *User) ClearResetToken() {
	u.ResetPasswordToken = nil
	u.ResetPasswordExpires = nil
}

// ResetTokenValid reports whether the stored reset token is still usable at now.
// Instants are compared, so the time zones of the stored and current values
// do not matter.
func (u *User) ResetTokenValid(now time.Time) bool {
	if u.ResetPasswordToken == nil || u.ResetPasswordExpires == nil {
		return false
	}
	return u.ResetPasswordExpires.UTC().After(now.UTC())
}

// Clone returns a deep copy of u.
func (u *User) Clone() *User {
	c := *u
	if u.LoginHistory != nil {
		c.LoginHistory = append([]LoginHistoryEntry(nil), u.LoginHistory...)
	}
	if u.ResetPasswordToken != nil {
		t := *u.ResetPasswordToken
		c.ResetPasswordToken = &t
	}
	if u.ResetPasswordExpires != nil {
		e := *u.ResetPasswordExpires
		c.ResetPasswordExpires = &e
	}
	return &c
}

// Profile is the client-visible view of a User. It never carries the password
// material or the reset token.
type Profile struct {
	ID           string              `json:"id"`
	Name         string              `json:"name"`
	Email        string              `json:"email"`
	LoginHistory []LoginHistoryEntry `json:"loginHistory"`
	CreatedAt    time.Time           `json:"createdAt"`
	UpdatedAt    time.Time           `json:"updatedAt"`
}

// Profile projects u for clients.
func (u *User) Profile() *Profile {
	history := make([]LoginHistoryEntry, len(u.LoginHistory))
	copy(history, u.LoginHistory)

	return &Profile{
		ID:           u.ID,
		Name:         u.Name,
		Email:        u.Email,
		LoginHistory: history,
		CreatedAt:    u.CreatedAt,
		UpdatedAt:    u.UpdatedAt,
	}
}
