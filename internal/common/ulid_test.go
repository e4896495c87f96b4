package common

import (
	"fmt"
	"testing"
)

func TestNewULID_Monotonic(t *testing.T) {
	prev := ""
	for i := 0; i < 1000; i++ {
		id, err := NewULID()
		if err != nil {
			t.Fatalf("new ulid: %v", err)
		}
		if len(id) != 26 {
			t.Fatalf("unexpected ulid length %d", len(id))
		}
		if id <= prev {
			t.Fatalf("expected increasing ids, got %q after %q", id, prev)
		}
		prev = id
	}
}

func TestKind(t *testing.T) {
	cases := []struct {
		err  error
		want error
	}{
		{NotFoundf("prompt %s", "x"), ErrNotFound},
		{Conflictf("duplicate email"), ErrConflict},
		{Validationf("role %q", "bot"), ErrValidation},
		{fmt.Errorf("wrapped: %w", NotFoundf("session")), ErrNotFound},
		{fmt.Errorf("boom"), nil},
	}
	for _, tc := range cases {
		if got := Kind(tc.err); got != tc.want {
			t.Fatalf("Kind(%v) = %v, want %v", tc.err, got, tc.want)
		}
	}
}
