// Package referral tracks referral progress per tenant owner and
// enforces one-time crediting: a referred identity counts toward at most
// one referrer, ever.
package referral

import (
	"errors"
	"sync"

	"github.com/google/uuid"

	"botfoundry/internal/types"
)

var (
	// ErrUnknownCode means the presented code was never minted.
	ErrUnknownCode = errors.New("referral: unknown code")

	// ErrAlreadyReferred means the identity has already been credited
	// to some referrer. The ledger is unchanged.
	ErrAlreadyReferred = errors.New("referral: identity already credited")
)

// codePrefix makes referral tokens recognizable in /start arguments.
const codePrefix = "ref_"

// Progress is a read-only view of one owner's referral state.
type Progress struct {
	Count     int
	Verified  bool
	Remaining int
}

// Credit describes a successful crediting, with enough data for the
// caller to notify the referrer.
type Credit struct {
	Referrer  types.UserID
	Remaining int
	// Unlocked is true exactly when this credit crossed the threshold.
	Unlocked bool
}

type record struct {
	count    int
	verified bool
}

// Ledger is the in-memory referral state. All three maps mutate inside
// one lock so a credit is indivisible.
type Ledger struct {
	mu         sync.Mutex
	threshold  int
	progress   map[types.UserID]*record
	codes      map[string]types.UserID
	referredBy map[types.UserID]types.UserID
}

// New builds a ledger with the given unlock threshold.
func New(threshold int) *Ledger {
	return &Ledger{
		threshold:  threshold,
		progress:   make(map[types.UserID]*record),
		codes:      make(map[string]types.UserID),
		referredBy: make(map[types.UserID]types.UserID),
	}
}

// Threshold returns the configured unlock threshold.
func (l *Ledger) Threshold() int {
	return l.threshold
}

// Init ensures owner has a progress record, starting at {0, false}.
// Crediting an owner who already crossed the threshold never reverts.
func (l *Ledger) Init(owner types.UserID) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.ensureLocked(owner)
}

// Tracked reports whether owner has a progress record.
func (l *Ledger) Tracked(owner types.UserID) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.progress[owner]
	return ok
}

// GenerateCode mints a fresh unguessable code bound to owner and
// initializes progress if absent. Old codes stay valid.
func (l *Ledger) GenerateCode(owner types.UserID) string {
	code := codePrefix + uuid.NewString()
	l.mu.Lock()
	defer l.mu.Unlock()
	l.codes[code] = owner
	l.ensureLocked(owner)
	return code
}

// IsCode reports whether s looks like a referral token.
func IsCode(s string) bool {
	return len(s) > len(codePrefix) && s[:len(codePrefix)] == codePrefix
}

// Credit records that referred joined through code. The duplicate check,
// edge write, counter increment, and threshold flip form one critical
// section. Returns ErrUnknownCode or ErrAlreadyReferred when nothing was
// recorded.
func (l *Ledger) Credit(code string, referred types.UserID) (Credit, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	referrer, ok := l.codes[code]
	if !ok {
		return Credit{}, ErrUnknownCode
	}
	if _, dup := l.referredBy[referred]; dup {
		return Credit{}, ErrAlreadyReferred
	}

	l.referredBy[referred] = referrer
	rec := l.ensureLocked(referrer)
	rec.count++

	out := Credit{Referrer: referrer, Remaining: l.remainingLocked(rec)}
	if !rec.verified && rec.count >= l.threshold {
		rec.verified = true
		out.Unlocked = true
	}
	return out, nil
}

// Progress returns the current view for owner. Absent owners read as
// zero progress.
func (l *Ledger) Progress(owner types.UserID) Progress {
	l.mu.Lock()
	defer l.mu.Unlock()
	rec, ok := l.progress[owner]
	if !ok {
		return Progress{Remaining: l.threshold}
	}
	return Progress{
		Count:     rec.count,
		Verified:  rec.verified,
		Remaining: l.remainingLocked(rec),
	}
}

func (l *Ledger) ensureLocked(owner types.UserID) *record {
	rec, ok := l.progress[owner]
	if !ok {
		rec = &record{}
		l.progress[owner] = rec
	}
	return rec
}

func (l *Ledger) remainingLocked(rec *record) int {
	if rec.count >= l.threshold {
		return 0
	}
	return l.threshold - rec.count
}
