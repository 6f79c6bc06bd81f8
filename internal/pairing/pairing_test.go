package pairing

import (
	"testing"
	"time"
)

func TestIssueThenClaimSucceeds(t *testing.T) {
	r := New(time.Minute)
	pc, err := r.Issue("desktop-1", "admin-1")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if len(pc.Code) != codeDigits {
		t.Errorf("expected a %d-digit code, got %q", codeDigits, pc.Code)
	}

	result, err := r.Claim(pc.Code, "mobile-1")
	if err != nil {
		t.Fatalf("Claim: %v", err)
	}
	if result.DesktopSessID != "desktop-1" {
		t.Errorf("expected desktop-1, got %q", result.DesktopSessID)
	}

	ch, ok := r.Channel(result.ChannelID)
	if !ok {
		t.Fatal("expected channel to exist")
	}
	if ch.Mobile != "mobile-1" {
		t.Errorf("expected mobile-1 seated, got %q", ch.Mobile)
	}
}

func TestClaimRejectsUnknownCode(t *testing.T) {
	r := New(time.Minute)
	if _, err := r.Claim("000000", "mobile-1"); err != ErrCodeInvalid {
		t.Errorf("expected ErrCodeInvalid, got %v", err)
	}
}

func TestClaimRejectsAlreadyUsedCode(t *testing.T) {
	r := New(time.Minute)
	pc, _ := r.Issue("desktop-1", "admin-1")
	if _, err := r.Claim(pc.Code, "mobile-1"); err != nil {
		t.Fatalf("first Claim: %v", err)
	}
	if _, err := r.Claim(pc.Code, "mobile-2"); err != ErrCodeAlreadyUsed {
		t.Errorf("expected ErrCodeAlreadyUsed, got %v", err)
	}
}

func TestClaimRejectsExpiredCode(t *testing.T) {
	r := New(10 * time.Millisecond)
	pc, _ := r.Issue("desktop-1", "admin-1")
	time.Sleep(20 * time.Millisecond)
	if _, err := r.Claim(pc.Code, "mobile-1"); err != ErrCodeExpired {
		t.Errorf("expected ErrCodeExpired, got %v", err)
	}
}

func TestGCRemovesExpiredUnclaimedCodeAndChannel(t *testing.T) {
	r := New(10 * time.Millisecond)
	pc, _ := r.Issue("desktop-1", "admin-1")
	time.Sleep(20 * time.Millisecond)
	r.GC()

	if _, ok := r.Channel(pc.ChannelID); ok {
		t.Error("expected channel to be garbage collected")
	}
	if _, err := r.Claim(pc.Code, "mobile-1"); err != ErrCodeInvalid {
		t.Errorf("expected ErrCodeInvalid after GC, got %v", err)
	}
}

func TestGCLeavesClaimedChannelIntact(t *testing.T) {
	r := New(10 * time.Millisecond)
	pc, _ := r.Issue("desktop-1", "admin-1")
	if _, err := r.Claim(pc.Code, "mobile-1"); err != nil {
		t.Fatalf("Claim: %v", err)
	}
	time.Sleep(20 * time.Millisecond)
	r.GC()

	if _, ok := r.Channel(pc.ChannelID); !ok {
		t.Error("expected a claimed channel to survive GC even after code expiry")
	}
}

func TestLeaveSessionDestroysEmptyChannel(t *testing.T) {
	r := New(time.Minute)
	pc, _ := r.Issue("desktop-1", "admin-1")
	result, _ := r.Claim(pc.Code, "mobile-1")

	r.LeaveSession(result.ChannelID, "desktop-1")
	if _, ok := r.Channel(result.ChannelID); !ok {
		t.Fatal("expected channel to survive while mobile is still present")
	}

	r.LeaveSession(result.ChannelID, "mobile-1")
	if _, ok := r.Channel(result.ChannelID); ok {
		t.Error("expected channel to be destroyed once empty")
	}
}
