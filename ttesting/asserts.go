package ttesting

import (
	"bytes"
	"testing"

	"github.com/pkg/errors"
)

func AssertEqualInt(t *testing.T, name string, got, want int) {
	t.Run(name, func(t *testing.T) {
		if got != want {
			t.Errorf("got %d; want %d", got, want)
		}
	})
}

func AssertEqualUint32(t *testing.T, name string, got, want uint32) {
	t.Run(name, func(t *testing.T) {
		if got != want {
			t.Errorf("got %d; want %d", got, want)
		}
	})
}

func AssertEqualString(t *testing.T, name string, got, want string) {
	t.Run(name, func(t *testing.T) {
		if got != want {
			t.Errorf("got %q; want %q", got, want)
		}
	})
}

// AssertEqualBytes compares byte slices and prints both in hex on mismatch.
func AssertEqualBytes(t *testing.T, name string, got, want []byte) {
	t.Run(name, func(t *testing.T) {
		if !bytes.Equal(got, want) {
			t.Errorf("got % x; want % x", got, want)
		}
	})
}

// AssertErrorIs checks that err wraps want.
func AssertErrorIs(t *testing.T, name string, err, want error) {
	t.Run(name, func(t *testing.T) {
		if !errors.Is(err, want) {
			t.Errorf("got error %v; want %v", err, want)
		}
	})
}
