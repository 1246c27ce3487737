package credential

import (
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/scrypt"
)

const (
	separator = "."
)

type (
	// Params controls the cost of scrypt and the size of the salt/key
	Params struct {
		SaltLen int
		KeyLen  int
		N       int
		R       int
		P       int
	}

	Hasher struct {
		params Params
		rand   io.Reader
	}
)

var (
	DefaultParams = Params{
		SaltLen: 8,
		KeyLen:  32,
		N:       16384,
		R:       8,
		P:       1,
	}
)

// New returns a Hasher that reads salts from rnd (usually crypto/rand.Reader).
// Zero fields in params are replaced by DefaultParams.
func New(params Params, rnd io.Reader) *Hasher {
	if params.SaltLen <= 0 {
		params.SaltLen = DefaultParams.SaltLen
	}
	if params.KeyLen <= 0 {
		params.KeyLen = DefaultParams.KeyLen
	}
	if params.N <= 0 {
		params.N = DefaultParams.N
	}
	if params.R <= 0 {
		params.R = DefaultParams.R
	}
	if params.P <= 0 {
		params.P = DefaultParams.P
	}
	return &Hasher{params: params, rand: rnd}
}

// Hash derives a new stored value from password using a fresh salt.
func (h *Hasher) Hash(password string) (string, error) {
	salt := make([]byte, h.params.SaltLen)
	if _, err := io.ReadFull(h.rand, salt); err != nil {
		return "", fmt.Errorf("unable to generate salt, cause %w", err)
	}
	saltHex := hex.EncodeToString(salt)
	key, err := h.derive(password, saltHex, h.params.KeyLen)
	if err != nil {
		return "", err
	}
	return saltHex + separator + hex.EncodeToString(key), nil
}

// Verify reports whether password matches the stored value.
//
// A malformed stored value results in a MalformedStoredValue error, never in
// a plain false.
func (h *Hasher) Verify(password, stored string) (bool, error) {
	saltHex, keyHex, err := split(stored)
	if err != nil {
		return false, err
	}
	key, err := h.derive(password, saltHex, len(keyHex)/2)
	if err != nil {
		return false, err
	}
	candidate := []byte(hex.EncodeToString(key))
	return subtle.ConstantTimeCompare(candidate, []byte(keyHex)) == 1, nil
}

func (h *Hasher) derive(password, saltHex string, keyLen int) ([]byte, error) {
	key, err := scrypt.Key([]byte(password), []byte(saltHex), h.params.N, h.params.R, h.params.P, keyLen)
	if err != nil {
		return nil, fmt.Errorf("unable to derive key, cause %w", err)
	}
	return key, nil
}

func split(stored string) (string, string, error) {
	if strings.Count(stored, separator) != 1 {
		return "", "", MalformedStoredValue{Reason: "expecting exactly one separator"}
	}
	idx := strings.Index(stored, separator)
	saltHex, keyHex := stored[:idx], stored[idx+1:]
	switch {
	case len(saltHex) == 0:
		return "", "", MalformedStoredValue{Reason: "empty salt"}
	case len(keyHex) == 0:
		return "", "", MalformedStoredValue{Reason: "empty key"}
	}
	if _, err := hex.DecodeString(saltHex); err != nil {
		return "", "", MalformedStoredValue{Reason: "salt is not hex encoded"}
	}
	if _, err := hex.DecodeString(keyHex); err != nil {
		return "", "", MalformedStoredValue{Reason: "key is not hex encoded"}
	}
	return saltHex, keyHex, nil
}
