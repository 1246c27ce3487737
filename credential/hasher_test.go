package credential

import (
	"bytes"
	"crypto/rand"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

var fastParams = Params{N: 1024, R: 8, P: 1}

func TestHashAndVerify(t *testing.T) {
	h := New(fastParams, rand.Reader)
	for _, passwd := range []string{"secret", "", "with.dot", "ünïcødé", strings.Repeat("a", 1024)} {
		stored, err := h.Hash(passwd)
		if err != nil {
			t.Fatal(err)
		}
		ok, err := h.Verify(passwd, stored)
		if err != nil {
			t.Fatal(err)
		} else if !ok {
			t.Fatalf("password %q should match its own hash %v", passwd, stored)
		}
		ok, err = h.Verify(passwd+"x", stored)
		if err != nil {
			t.Fatal(err)
		} else if ok {
			t.Fatalf("password %q should not match hash of %q", passwd+"x", passwd)
		}
	}
}

func TestStoredValueLayout(t *testing.T) {
	h := New(fastParams, rand.Reader)
	stored, err := h.Hash("secret")
	require.NoError(t, err)
	require.Equal(t, 1, strings.Count(stored, "."))
	require.NotContains(t, stored, "secret")

	parts := strings.Split(stored, ".")
	require.Len(t, parts[0], DefaultParams.SaltLen*2)
	require.Len(t, parts[1], DefaultParams.KeyLen*2)
	require.Regexp(t, `^[0-9a-f]+$`, parts[0])
	require.Regexp(t, `^[0-9a-f]+$`, parts[1])
}

func TestSaltIsRandom(t *testing.T) {
	h := New(fastParams, rand.Reader)
	first, err := h.Hash("secret")
	require.NoError(t, err)
	second, err := h.Hash("secret")
	require.NoError(t, err)
	require.NotEqual(t, first, second)

	for _, stored := range []string{first, second} {
		ok, err := h.Verify("secret", stored)
		require.NoError(t, err)
		require.True(t, ok)
	}
}

func TestSaltFromReader(t *testing.T) {
	salt := bytes.Repeat([]byte{0xab}, DefaultParams.SaltLen)
	h := New(fastParams, bytes.NewReader(salt))
	stored, err := h.Hash("secret")
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(stored, strings.Repeat("ab", DefaultParams.SaltLen)+"."))

	_, err = h.Hash("secret")
	require.Error(t, err, "an exhausted random source should fail the hash")
}

func TestVerifyWithDifferentKeyLen(t *testing.T) {
	short := New(Params{N: 1024, R: 8, P: 1, KeyLen: 16}, rand.Reader)
	stored, err := short.Hash("secret")
	require.NoError(t, err)

	ok, err := New(fastParams, rand.Reader).Verify("secret", stored)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestMalformedStoredValue(t *testing.T) {
	h := New(fastParams, rand.Reader)
	for _, stored := range []string{
		"",
		"plaintext",
		"abcd.ef01.2345",
		".abcd",
		"abcd.",
		"zz.abcd",
		"abcd.zz",
	} {
		_, err := h.Verify("secret", stored)
		var malformed MalformedStoredValue
		if !errors.As(err, &malformed) {
			t.Errorf("Verify(%q) should fail with MalformedStoredValue, got %v", stored, err)
		}
	}
}
