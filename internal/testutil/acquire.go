package testutil

import (
	"context"
	"crypto/rand"
	"io/ioutil"
	"os"
	"path/filepath"

	"github.com/andrebq/gatekeeper/credential"
	"github.com/andrebq/gatekeeper/userstore"
)

type (
	TestLog interface {
		Fatal(...interface{})
		Log(...interface{})
	}
)

// FastParams keeps scrypt cheap enough for tests, never use it elsewhere
var FastParams = credential.Params{N: 1024, R: 8, P: 1}

func FastHasher() *credential.Hasher {
	return credential.New(FastParams, rand.Reader)
}

// AcquireUserStore returns a writeable user store backed by a temporary
// file, cleanup closes it and removes the file.
func AcquireUserStore(ctx context.Context, t TestLog, name string) (*userstore.Store, func()) {
	dir, err := ioutil.TempDir("", "gatekeeper-tests")
	if err != nil {
		t.Fatal(err)
	}
	s, err := userstore.Open(ctx, filepath.Join(dir, name+".db"), true)
	if err != nil {
		t.Fatal(err)
	}
	return s, func() {
		err := s.Close()
		if err != nil {
			t.Log("unable to close user store", err)
		}
		err = os.RemoveAll(dir)
		if err != nil {
			t.Log("unable to cleanup temp dir", dir)
		}
	}
}

// AcquirePopulatedUserStore is like AcquireUserStore but registers each
// email/password pair (hashed with FastHasher) before returning.
func AcquirePopulatedUserStore(ctx context.Context, t TestLog, users map[string]string) (*userstore.Store, func()) {
	s, cleanup := AcquireUserStore(ctx, t, "populated")
	h := FastHasher()
	for email, passwd := range users {
		stored, err := h.Hash(passwd)
		if err != nil {
			cleanup()
			t.Fatal(err)
		}
		_, err = s.Create(ctx, email, stored)
		if err != nil {
			cleanup()
			t.Fatal(err)
		}
	}
	return s, cleanup
}
