// Package password derives and verifies salted PBKDF2 password hashes.
package password

import (
	"crypto/sha512"
	"crypto/subtle"
	"encoding/hex"
	"unicode"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/server/models"
	"golang.org/x/crypto/pbkdf2"
)

const (
	// SaltSize is the number of random bytes behind a salt; the stored salt
	// is their hex form.
	SaltSize = 16
	// Iterations is the PBKDF2 round count.
	Iterations = 10000
	// KeyLength is the derived key length in bytes.
	KeyLength = 512
	// MinLength is the shortest password IsStrong accepts.
	MinLength = 8
)

// SetPassword gives u a fresh salt and the hash of plain under it, replacing
// any previous credentials.
func SetPassword(u *models.User, plain string) error {
	salt, err := common.MakeRandHexString(SaltSize)
	if err != nil {
		return err
	}
	u.Salt = salt
	u.Hash = hex.EncodeToString(derive(plain, salt))
	return nil
}

// ValidPassword reports whether plain matches the credentials stored on u.
// The comparison takes the same time wherever the first mismatch is.
func ValidPassword(u *models.User, plain string) bool {
	if u.Salt == "" || u.Hash == "" {
		return false
	}
	stored, err := hex.DecodeString(u.Hash)
	if err != nil {
		return false
	}
	return subtle.ConstantTimeCompare(derive(plain, u.Salt), stored) == 1
}

// Burn spends the same work as one ValidPassword call. It keeps responses for
// unknown accounts as slow as those for known ones.
func Burn(plain string) {
	_ = derive(plain, "0000000000000000000000000000000000000000")
}

// The hex salt string itself, not its decoded bytes, is the PBKDF2 salt.
// Existing stored hashes depend on this.
func derive(plain, salt string) []byte {
	return pbkdf2.Key([]byte(plain), []byte(salt), Iterations, KeyLength, sha512.New)
}

// IsStrong reports whether s has at least MinLength characters including a
// lowercase letter, an uppercase letter, a digit and a symbol.
func IsStrong(s string) bool {
	var n int
	var lower, upper, digit, symbol bool
	for _, r := range s {
		n++
		switch {
		case unicode.IsLower(r):
			lower = true
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsDigit(r):
			digit = true
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			symbol = true
		}
	}
	return n >= MinLength && lower && upper && digit && symbol
}
