// Package pairing implements the Pairing Registry (C7): pair-code issuance,
// channel creation, membership, and TTL expiry that binds a mobile session
// to the desktop session that generated the code.
package pairing

import (
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"
)

var (
	ErrCodeInvalid     = errors.New("pairing: code invalid")
	ErrCodeExpired     = errors.New("pairing: code expired")
	ErrCodeAlreadyUsed = errors.New("pairing: code already used")
	ErrNoDesktop       = errors.New("pairing: channel has no live desktop")
	// ErrCodeElsewhere is returned by Claim when the code is absent from
	// this process's table but the Redis mirror reports it still live —
	// it was issued by another instance. The mirror only replicates
	// liveness, not the full PairCode/Channel record, so this instance
	// cannot complete the claim; the caller must retry against whichever
	// instance issued the code.
	ErrCodeElsewhere = errors.New("pairing: code is active on another instance")
)

const (
	codeDigits = 6
	codeMax    = 1_000_000 // 10^codeDigits
	defaultTTL = 10 * time.Minute
)

// PairCode is the data model entity: a short-lived code binding one desktop
// session to the channel a mobile device can join.
type PairCode struct {
	Code          string
	DesktopSessID string
	ChannelID     string
	AdminID       string
	IssuedAt      time.Time
	ExpiresAt     time.Time
	UsedAt        time.Time
}

func (c PairCode) consumed() bool { return !c.UsedAt.IsZero() }
func (c PairCode) expired(now time.Time) bool { return now.After(c.ExpiresAt) }

// Channel is the member set a desktop and at most one mobile session join
// after a successful pairing.
type Channel struct {
	ID        string
	Desktop   string
	Mobile    string
	AdminID   string
	CreatedAt time.Time
}

// PairResult is returned from a successful Claim.
type PairResult struct {
	ChannelID     string
	DesktopSessID string
}

// Registry is the C7 component: a single mutex guards both the code table
// and the channel table, matching the teacher's in-memory device registry
// locking granularity (one lock per registry, not per entry).
type Registry struct {
	ttl time.Duration

	mu       sync.RWMutex
	codes    map[string]*PairCode
	channels map[string]*Channel

	mirror *RedisMirror
}

func New(ttl time.Duration) *Registry {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &Registry{
		ttl:      ttl,
		codes:    make(map[string]*PairCode),
		channels: make(map[string]*Channel),
	}
}

// SetMirror attaches the Redis mirror Issue/Claim/GC replicate pair-code
// liveness through. Optional — a Registry with no mirror works entirely
// in-memory, scoped to this process. Not safe to call concurrently with
// Issue/Claim/GC.
func (r *Registry) SetMirror(m *RedisMirror) { r.mirror = m }

// Issue generates a code not currently active, creates its channel, and
// seats the desktop session in it. adminID is the clinic account that owns
// the resulting channel, recorded so a mobile-inherited token can later be
// scoped to the right principal without a second, hub-side lookup table.
func (r *Registry) Issue(desktopSessionID, adminID string) (PairCode, error) {
	r.mu.Lock()

	code, err := r.nextUnusedCodeLocked()
	if err != nil {
		r.mu.Unlock()
		return PairCode{}, err
	}

	now := time.Now()
	channelID := fmt.Sprintf("pair-%s", code)
	pc := &PairCode{
		Code:          code,
		DesktopSessID: desktopSessionID,
		ChannelID:     channelID,
		AdminID:       adminID,
		IssuedAt:      now,
		ExpiresAt:     now.Add(r.ttl),
	}
	r.codes[code] = pc
	r.channels[channelID] = &Channel{
		ID:        channelID,
		Desktop:   desktopSessionID,
		AdminID:   adminID,
		CreatedAt: now,
	}
	mirror := r.mirror
	r.mu.Unlock()

	// Mirrored outside the lock: it's a network round trip, and a failure
	// here shouldn't block issuing the code to this process's own caller.
	if mirror != nil {
		if err := mirror.Mirror(code, channelID, r.ttl); err != nil {
			return *pc, fmt.Errorf("pairing: issued locally but mirror failed: %w", err)
		}
	}
	return *pc, nil
}

// Claim validates code and, if it is active and unconsumed, seats
// mobileSessionID in its channel and marks the code consumed. If code is
// unknown locally, a configured mirror is consulted as a fallback: a code
// another instance issued and mirrored reads back as ErrCodeElsewhere
// rather than the flatly wrong ErrCodeInvalid.
func (r *Registry) Claim(code, mobileSessionID string) (PairResult, error) {
	r.mu.Lock()

	pc, ok := r.codes[code]
	if !ok {
		mirror := r.mirror
		r.mu.Unlock()
		if mirror != nil {
			if active, err := mirror.Active(code); err == nil && active {
				return PairResult{}, ErrCodeElsewhere
			}
		}
		return PairResult{}, ErrCodeInvalid
	}

	now := time.Now()
	if pc.expired(now) {
		r.mu.Unlock()
		return PairResult{}, ErrCodeExpired
	}
	if pc.consumed() {
		r.mu.Unlock()
		return PairResult{}, ErrCodeAlreadyUsed
	}

	ch, ok := r.channels[pc.ChannelID]
	if !ok || ch.Desktop == "" {
		r.mu.Unlock()
		return PairResult{}, ErrNoDesktop
	}

	pc.UsedAt = now
	ch.Mobile = mobileSessionID
	mirror := r.mirror
	result := PairResult{ChannelID: ch.ID, DesktopSessID: ch.Desktop}
	r.mu.Unlock()

	if mirror != nil {
		// Best effort: the local claim already succeeded, and the mirror's
		// own TTL expires the entry regardless if this fails.
		_ = mirror.Forget(code)
	}
	return result, nil
}

// LeaveSession removes sessionID from channelID's membership, destroying
// the channel once it is empty.
func (r *Registry) LeaveSession(channelID, sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	ch, ok := r.channels[channelID]
	if !ok {
		return
	}
	if ch.Desktop == sessionID {
		ch.Desktop = ""
	}
	if ch.Mobile == sessionID {
		ch.Mobile = ""
	}
	if ch.Desktop == "" && ch.Mobile == "" {
		delete(r.channels, channelID)
	}
}

// Channel returns a snapshot of a channel's membership.
func (r *Registry) Channel(channelID string) (Channel, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ch, ok := r.channels[channelID]
	if !ok {
		return Channel{}, false
	}
	return *ch, true
}

// GC sweeps expired, unconsumed codes and empties channels whose code
// expired before a mobile ever claimed it. Intended to run as a periodic
// background task (see the internal/app wiring), not inline on the hot path.
func (r *Registry) GC() {
	r.mu.Lock()

	now := time.Now()
	var forgotten []string
	for code, pc := range r.codes {
		if !pc.expired(now) {
			continue
		}
		delete(r.codes, code)
		forgotten = append(forgotten, code)
		if pc.consumed() {
			continue
		}
		if ch, ok := r.channels[pc.ChannelID]; ok && ch.Mobile == "" {
			delete(r.channels, pc.ChannelID)
		}
	}
	mirror := r.mirror
	r.mu.Unlock()

	if mirror != nil {
		for _, code := range forgotten {
			_ = mirror.Forget(code)
		}
	}
}

// nextUnusedCodeLocked draws a uniformly-random 6-digit code, retrying on
// the rare collision with a currently-active code. Caller must hold mu.
func (r *Registry) nextUnusedCodeLocked() (string, error) {
	const maxAttempts = 20
	for i := 0; i < maxAttempts; i++ {
		n, err := rand.Int(rand.Reader, big.NewInt(codeMax))
		if err != nil {
			return "", fmt.Errorf("pairing: generate code: %w", err)
		}
		code := fmt.Sprintf("%0*d", codeDigits, n.Int64())
		if _, taken := r.codes[code]; !taken {
			return code, nil
		}
	}
	return "", errors.New("pairing: exhausted attempts to draw an unused code")
}
