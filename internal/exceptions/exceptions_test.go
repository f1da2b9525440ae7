package exceptions

import (
	"testing"
	"time"
)

var (
	windowStart = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	windowEnd   = time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)
)

func TestException_ActiveAt(t *testing.T) {
	e := Exception{DateCreated: windowStart, DateExpires: windowEnd}

	if e.ActiveAt(windowStart.Add(-time.Second)) {
		t.Error("not active before the window opens")
	}
	if !e.ActiveAt(windowStart) {
		t.Error("active at the window start (inclusive)")
	}
	if !e.ActiveAt(windowStart.AddDate(0, 3, 0)) {
		t.Error("active inside the window")
	}
	if e.ActiveAt(windowEnd) {
		t.Error("not active at expiry (exclusive)")
	}
}

func TestMemoryStore_HasActiveSuppression(t *testing.T) {
	store := NewMemoryStore()
	store.AddException(Exception{
		CriterionName:        "aws_iam_access_key_rotation",
		ResourcePersistentID: "AWS::IAM::AccessKey::::123456789012::deploy-key",
		AccountID:            "123456789012",
		DateCreated:          windowStart,
		DateExpires:          windowEnd,
	})
	now := windowStart.AddDate(0, 1, 0)

	if !store.HasActiveSuppression("aws_iam_access_key_rotation",
		"AWS::IAM::AccessKey::::123456789012::deploy-key", "123456789012", now) {
		t.Error("matching active exception must suppress")
	}
	if store.HasActiveSuppression("aws_iam_user_mfa",
		"AWS::IAM::AccessKey::::123456789012::deploy-key", "123456789012", now) {
		t.Error("exceptions are scoped to one criterion")
	}
	if store.HasActiveSuppression("aws_iam_access_key_rotation",
		"AWS::IAM::AccessKey::::123456789012::deploy-key", "999999999999", now) {
		t.Error("exceptions are scoped to one account")
	}
	if store.HasActiveSuppression("aws_iam_access_key_rotation",
		"AWS::IAM::AccessKey::::123456789012::deploy-key", "123456789012", windowEnd.AddDate(0, 1, 0)) {
		t.Error("expired exceptions must not suppress")
	}
}

func TestMemoryStore_ActiveAllowlist(t *testing.T) {
	store := NewMemoryStore()
	store.AddAllowlistEntry(AllowlistEntry{
		AccountID: "123456789012", CIDR: "198.51.100.0/24",
		DateCreated: windowStart, DateExpires: windowEnd,
	})
	store.AddAllowlistEntry(AllowlistEntry{
		AccountID: "123456789012", CIDR: "192.0.2.0/24",
		DateCreated: windowEnd, DateExpires: windowEnd.AddDate(1, 0, 0),
	})
	store.AddAllowlistEntry(AllowlistEntry{
		AccountID: "999999999999", CIDR: "203.0.113.0/24",
		DateCreated: windowStart, DateExpires: windowEnd,
	})

	got := store.ActiveAllowlist("123456789012", windowStart.AddDate(0, 1, 0))
	if len(got) != 1 || got[0] != "198.51.100.0/24" {
		t.Errorf("active allowlist = %v, want only the in-window entry for the account", got)
	}
}
