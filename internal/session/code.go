package session

import (
	"crypto/rand"
	"math/big"
)

const (
	codeLength   = 6
	codeAlphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"
)

var alphabetSize = big.NewInt(int64(len(codeAlphabet)))

// NewCode returns a uniformly random alphanumeric one-time code.
func NewCode() (string, error) {
	buf := make([]byte, codeLength)
	for i := range buf {
		n, err := rand.Int(rand.Reader, alphabetSize)
		if err != nil {
			return "", err
		}
		buf[i] = codeAlphabet[n.Int64()]
	}
	return string(buf), nil
}

// SMSBody formats the text delivered to the phone.
func SMSBody(code string) string {
	return "Your spliteth code: " + code
}
