package version

import "testing"

func TestFormatVersion(t *testing.T) {
	if got := FormatVersion("dev", "none", "unknown"); got != "dev (development build)" {
		t.Errorf("unexpected dev format: %q", got)
	}

	got := FormatVersion("v1.2.3", "abc1234", "2026-01-01")
	want := "v1.2.3 (commit: abc1234, built: 2026-01-01)"
	if got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
}
