package sysinfo

import "testing"

func TestCollectReturnsNonEmptyArch(t *testing.T) {
	info := Collect()
	if info.Arch == "" {
		t.Fatal("expected non-empty arch")
	}
	if info.OS == "" {
		t.Fatal("expected non-empty OS")
	}
}

func TestNormalizeOSMapsDarwinToMacos(t *testing.T) {
	if got := normalizeOS("darwin"); got != "macos" {
		t.Fatalf("expected macos, got %q", got)
	}
	if got := normalizeOS("linux"); got != "linux" {
		t.Fatalf("expected linux passthrough, got %q", got)
	}
}
