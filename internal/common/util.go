package common

import (
	"crypto/rand"
	"encoding/hex"
	"path"
	"strings"
)

// MakeRandHexString generates a random hexadecimal string of the given size.
// The size parameter specifies the number of random bytes, so the result is
// twice as long. It returns an error if the random number generator fails.
func MakeRandHexString(size int) (string, error) {

	b := make([]byte, size)
	_, err := rand.Read(b)
	if err != nil {
		return "", err
	}

	return hex.EncodeToString(b), nil
}

// FileExtension returns the lower-cased extension of name including the dot,
// or an empty string. Only the final path element is considered.
func FileExtension(name string) string {
	base := path.Base(strings.ReplaceAll(name, "\\", "/"))
	ext := path.Ext(base)
	if ext == base || len(ext) > 16 {
		return ""
	}
	return strings.ToLower(ext)
}
