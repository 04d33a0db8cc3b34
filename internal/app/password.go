package app

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

// passwordAlphabet is the mixed alphabet one-time passwords are drawn from.
const passwordAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789!@#$%^&*()"

// passwordLength is the fixed length of generated one-time passwords.
const passwordLength = 16

// GeneratePassword returns an unpredictable one-time credential of the given
// length.
func GeneratePassword(length int) (string, error) {
	alphabetSize := big.NewInt(int64(len(passwordAlphabet)))
	password := make([]byte, length)
	for i := range password {
		index, err := rand.Int(rand.Reader, alphabetSize)
		if err != nil {
			return "", fmt.Errorf("generating password: %w", err)
		}
		password[i] = passwordAlphabet[index.Int64()]
	}
	return string(password), nil
}
