// Package codec implements the AES-256-CBC session transport cipher.
// Keys and IVs are derived by hashing the caller-supplied secret and IV
// strings, so shared secrets of any length produce fixed-size cipher
// parameters. Ciphertext travels as lowercase hex.
package codec

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/sha256"
	"encoding/hex"
	"errors"
)

// ErrDecode is returned for any malformed ciphertext: bad hex, wrong
// block length, or invalid padding. Callers treat it as "payload
// invalid", never as a server fault.
var ErrDecode = errors.New("codec: payload invalid")

// DeriveKey derives a 256-bit AES key from a shared secret string
func DeriveKey(secret string) []byte {
	sum := sha256.Sum256([]byte(secret))
	return sum[:]
}

// DeriveIV derives a 16-byte IV from an IV seed string
func DeriveIV(seed string) []byte {
	sum := sha256.Sum256([]byte(seed))
	return sum[:aes.BlockSize]
}

// Encrypt encrypts plaintext with a key derived from secret and an IV
// derived from ivSeed, returning hex ciphertext.
func Encrypt(plaintext, secret, ivSeed string) (string, error) {
	block, err := aes.NewCipher(DeriveKey(secret))
	if err != nil {
		return "", err
	}

	padded := pad([]byte(plaintext))
	out := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, DeriveIV(ivSeed)).CryptBlocks(out, padded)

	return hex.EncodeToString(out), nil
}

// Decrypt reverses Encrypt. Any malformed input fails with ErrDecode.
func Decrypt(hexCipher, secret, ivSeed string) (string, error) {
	raw, err := hex.DecodeString(hexCipher)
	if err != nil {
		return "", ErrDecode
	}
	if len(raw) == 0 || len(raw)%aes.BlockSize != 0 {
		return "", ErrDecode
	}

	block, err := aes.NewCipher(DeriveKey(secret))
	if err != nil {
		return "", ErrDecode
	}

	out := make([]byte, len(raw))
	cipher.NewCBCDecrypter(block, DeriveIV(ivSeed)).CryptBlocks(out, raw)

	plain, ok := unpad(out)
	if !ok {
		return "", ErrDecode
	}

	return string(plain), nil
}

// pad applies PKCS#7 padding to a full block boundary
func pad(data []byte) []byte {
	n := aes.BlockSize - len(data)%aes.BlockSize
	padded := make([]byte, len(data)+n)
	copy(padded, data)
	for i := len(data); i < len(padded); i++ {
		padded[i] = byte(n)
	}
	return padded
}

// unpad strips PKCS#7 padding, verifying every pad byte
func unpad(data []byte) ([]byte, bool) {
	if len(data) == 0 {
		return nil, false
	}
	n := int(data[len(data)-1])
	if n == 0 || n > aes.BlockSize || n > len(data) {
		return nil, false
	}
	for _, b := range data[len(data)-n:] {
		if int(b) != n {
			return nil, false
		}
	}
	return data[:len(data)-n], true
}
