package instruct

import (
	"testing"

	"botfoundry/internal/types"
)

func TestStore(t *testing.T) {
	s := New()
	owner := types.UserID(1)

	if _, ok := s.Get(owner); ok {
		t.Error("empty store returned instructions")
	}

	s.Set(owner, "be terse")
	if got, ok := s.Get(owner); !ok || got != "be terse" {
		t.Errorf("Get = %q, %v", got, ok)
	}

	s.Set(owner, "be verbose")
	if got, _ := s.Get(owner); got != "be verbose" {
		t.Errorf("Set did not replace, got %q", got)
	}

	if !s.Clear(owner) {
		t.Error("Clear reported nothing was set")
	}
	if s.Clear(owner) {
		t.Error("second Clear reported instructions were set")
	}
	if _, ok := s.Get(owner); ok {
		t.Error("instructions survived Clear")
	}
}
