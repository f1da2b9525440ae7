package models

import "testing"

func TestPersistentResourceID_UsesName(t *testing.T) {
	got := PersistentResourceID("AWS::EC2::SecurityGroup", "eu-west-1", "123456789012", "bastion", "sg-0a1b")
	want := "AWS::EC2::SecurityGroup::eu-west-1::123456789012::bastion"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestPersistentResourceID_FallsBackToID(t *testing.T) {
	got := PersistentResourceID("AWS::EC2::SecurityGroup", "eu-west-1", "123456789012", "", "sg-0a1b")
	want := "AWS::EC2::SecurityGroup::eu-west-1::123456789012::sg-0a1b"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestPersistentResourceID_StableAcrossRuns(t *testing.T) {
	// The identity must not depend on anything run-scoped: two derivations
	// with the same inputs are byte-identical.
	a := PersistentResourceID("AWS::S3::Bucket", "", "123456789012", "logs", "logs")
	b := PersistentResourceID("AWS::S3::Bucket", "", "123456789012", "logs", "logs")
	if a != b {
		t.Errorf("identity is not stable: %q vs %q", a, b)
	}
}

func TestPersistentResourceID_GlobalResourceKeepsEmptyRegion(t *testing.T) {
	got := PersistentResourceID("AWS::IAM::User", "", "123456789012", "alice", "AIDA123")
	want := "AWS::IAM::User::::123456789012::alice"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}
