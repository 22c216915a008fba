package version

import "testing"

func TestString(t *testing.T) {
	oldVersion, oldSHA, oldTime := Version, GitSHA, BuildTime
	defer func() { Version, GitSHA, BuildTime = oldVersion, oldSHA, oldTime }()

	Version, GitSHA, BuildTime = "0.4.0", "abc1234", "2026-03-01T08:00:00Z"
	if got, want := String("envgen"), "envgen 0.4.0 (abc1234, built 2026-03-01T08:00:00Z)"; got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}
