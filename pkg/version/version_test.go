// pkg/version/version_test.go
package version

import (
	"strings"
	"testing"
	"time"
)

func TestInfo_ReturnsFormattedString(t *testing.T) {
	// vars set at build-time, here using default "dev"
	info := Info()

	if !strings.Contains(info, "VPrint") {
		t.Errorf("Expected info to contain 'VPrint', got: %s", info)
	}
	if !strings.Contains(info, Version) {
		t.Errorf("Expected info to contain version '%s'", Version)
	}
	if !strings.Contains(info, Commit) {
		t.Errorf("Expected info to contain commit '%s'", Commit)
	}
	if !strings.Contains(info, BuildDate) {
		t.Errorf("Expected info to contain build date '%s'", BuildDate)
	}
}

func TestGet_ReturnsCorrectStruct(t *testing.T) {
	v := Get()

	if v.Version != Version {
		t.Errorf("Expected version %s, got %s", Version, v.Version)
	}
	if v.Commit != Commit {
		t.Errorf("Expected commit %s, got %s", Commit, v.Commit)
	}
	if v.BuildDate != BuildDate {
		t.Errorf("Expected build date %s, got %s", BuildDate, v.BuildDate)
	}
}

func TestStartDate_IsInitialized(t *testing.T) {
	if time.Since(StartDate) > time.Minute {
		t.Errorf("StartDate is too old: %s", StartDate)
	}
}

func TestFirmware_DevBuild(t *testing.T) {
	if got := Firmware(); got != "0.0.0-dev" {
		t.Errorf("expected dev firmware, got %s", got)
	}
}

func TestNewer(t *testing.T) {
	old := Version
	defer func() { Version = old }()

	Version = "1.2.0"
	tests := []struct {
		candidate string
		want      bool
	}{
		{"1.3.0", true},
		{"v1.2.1", true},
		{"1.2.0", false},
		{"1.1.9", false},
		{"1.4.0-rc.1", false},
	}
	for _, tt := range tests {
		got, err := Newer(tt.candidate)
		if err != nil {
			t.Fatalf("Newer(%q) error: %v", tt.candidate, err)
		}
		if got != tt.want {
			t.Errorf("Newer(%q) = %v, want %v", tt.candidate, got, tt.want)
		}
	}

	if !IsRelease() {
		t.Error("1.2.0 should be a release")
	}
	if _, err := Newer("not-a-version"); err == nil {
		t.Error("expected parse error")
	}
}

func TestUptime(t *testing.T) {
	if Uptime() < 0 {
		t.Error("uptime must not be negative")
	}
}
