package buildinfo

import "testing"

func TestStringWithStampedValues(t *testing.T) {
	oldV, oldC, oldD := Version, Commit, Date
	defer func() { Version, Commit, Date = oldV, oldC, oldD }()

	Version, Commit, Date = "v1.0.0", "abc1234", "2026-01-02T03:04:05Z"
	if got := String(); got != "v1.0.0 (abc1234, 2026-01-02T03:04:05Z)" {
		t.Fatalf("String() = %q", got)
	}
	Date = ""
	if got := String(); got != "v1.0.0 (abc1234)" {
		t.Fatalf("String() = %q", got)
	}
}

func TestStringFallsBackToVCS(t *testing.T) {
	oldC := Commit
	defer func() { Commit = oldC }()

	Commit = ""
	if got := String(); got == "" || got == Version+" ()" {
		t.Fatalf("String() = %q, want a revision or local", got)
	}
}
