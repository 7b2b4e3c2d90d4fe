package referral

import (
	"errors"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"

	"botfoundry/internal/types"
)

const (
	owner    = types.UserID(100)
	ownerTwo = types.UserID(200)
)

func TestCredit_OneTimePerReferredIdentity(t *testing.T) {
	l := New(5)
	codeA := l.GenerateCode(owner)
	codeB := l.GenerateCode(ownerTwo)

	joiner := types.UserID(1)
	if _, err := l.Credit(codeA, joiner); err != nil {
		t.Fatalf("first credit failed: %v", err)
	}

	// Same identity against the same code, and against a different
	// referrer's code: neither may count.
	if _, err := l.Credit(codeA, joiner); !errors.Is(err, ErrAlreadyReferred) {
		t.Errorf("repeat credit err = %v, want ErrAlreadyReferred", err)
	}
	if _, err := l.Credit(codeB, joiner); !errors.Is(err, ErrAlreadyReferred) {
		t.Errorf("cross-referrer credit err = %v, want ErrAlreadyReferred", err)
	}

	if diff := cmp.Diff(Progress{Count: 1, Remaining: 4}, l.Progress(owner)); diff != "" {
		t.Errorf("owner progress mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(Progress{Count: 0, Remaining: 5}, l.Progress(ownerTwo)); diff != "" {
		t.Errorf("ownerTwo progress mismatch (-want +got):\n%s", diff)
	}
}

func TestCredit_UnknownCode(t *testing.T) {
	l := New(5)
	if _, err := l.Credit("ref_nope", types.UserID(1)); !errors.Is(err, ErrUnknownCode) {
		t.Fatalf("err = %v, want ErrUnknownCode", err)
	}
}

func TestVerified_FlipsExactlyOnceAtThreshold(t *testing.T) {
	l := New(5)
	code := l.GenerateCode(owner)

	for i := 1; i <= 4; i++ {
		credit, err := l.Credit(code, types.UserID(i))
		if err != nil {
			t.Fatalf("credit %d failed: %v", i, err)
		}
		if credit.Unlocked {
			t.Errorf("credit %d reported unlocked before threshold", i)
		}
		if credit.Remaining != 5-i {
			t.Errorf("credit %d remaining = %d, want %d", i, credit.Remaining, 5-i)
		}
	}

	credit, err := l.Credit(code, types.UserID(5))
	if err != nil {
		t.Fatalf("threshold credit failed: %v", err)
	}
	if !credit.Unlocked {
		t.Error("threshold credit did not report unlocked")
	}
	if !l.Progress(owner).Verified {
		t.Error("owner not verified after threshold")
	}

	// Further credits keep verified true and never re-signal unlock.
	credit, err = l.Credit(code, types.UserID(6))
	if err != nil {
		t.Fatalf("post-threshold credit failed: %v", err)
	}
	if credit.Unlocked {
		t.Error("unlock signalled twice")
	}
	p := l.Progress(owner)
	if !p.Verified || p.Count != 6 || p.Remaining != 0 {
		t.Errorf("post-threshold progress = %+v", p)
	}
}

func TestGenerateCode_RegenerableAndDistinct(t *testing.T) {
	l := New(5)
	first := l.GenerateCode(owner)
	second := l.GenerateCode(owner)
	if first == second {
		t.Fatal("codes must be unguessable and unique")
	}
	if !IsCode(first) || !IsCode(second) {
		t.Errorf("generated codes not recognizable: %q %q", first, second)
	}

	// Both codes stay valid and credit the same owner.
	if _, err := l.Credit(first, types.UserID(1)); err != nil {
		t.Fatalf("old code rejected: %v", err)
	}
	if _, err := l.Credit(second, types.UserID(2)); err != nil {
		t.Fatalf("new code rejected: %v", err)
	}
	if got := l.Progress(owner).Count; got != 2 {
		t.Errorf("count = %d, want 2", got)
	}
}

func TestProgress_UntrackedOwner(t *testing.T) {
	l := New(5)
	if l.Tracked(owner) {
		t.Error("owner tracked before Init")
	}
	if diff := cmp.Diff(Progress{Remaining: 5}, l.Progress(owner)); diff != "" {
		t.Errorf("untracked progress mismatch (-want +got):\n%s", diff)
	}
	l.Init(owner)
	if !l.Tracked(owner) {
		t.Error("owner not tracked after Init")
	}
}

func TestCredit_ConcurrentSameReferred(t *testing.T) {
	l := New(5)
	codes := make([]string, 8)
	for i := range codes {
		codes[i] = l.GenerateCode(types.UserID(1000 + i))
	}

	joiner := types.UserID(7)
	var wg sync.WaitGroup
	credited := make(chan Credit, len(codes))
	for _, code := range codes {
		code := code
		wg.Add(1)
		go func() {
			defer wg.Done()
			if credit, err := l.Credit(code, joiner); err == nil {
				credited <- credit
			}
		}()
	}
	wg.Wait()
	close(credited)

	if got := len(credited); got != 1 {
		t.Fatalf("referred identity credited %d times, want exactly 1", got)
	}
}

func TestCredit_ConcurrentDistinctReferred(t *testing.T) {
	l := New(50)
	code := l.GenerateCode(owner)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := l.Credit(code, types.UserID(i+1)); err != nil {
				t.Errorf("credit %d failed: %v", i, err)
			}
		}()
	}
	wg.Wait()

	if got := l.Progress(owner).Count; got != 20 {
		t.Errorf("count = %d, want 20", got)
	}
}

func TestIsCode(t *testing.T) {
	for s, want := range map[string]bool{
		"ref_abc": true,
		"ref_":    false,
		"":        false,
		"other":   false,
		"REF_abc": false,
		"7":       false,
	} {
		if got := IsCode(s); got != want {
			t.Errorf("IsCode(%q) = %v, want %v", s, got, want)
		}
	}
}
