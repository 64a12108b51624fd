package startup

import (
	"slices"
	"testing"
	"time"
)

func TestGetEnv(t *testing.T) {
	t.Setenv("KIOSK_TEST_PORT", "")
	if got := getEnv("KIOSK_TEST_PORT", "8080"); got != "8080" {
		t.Errorf("unset: got %q, want default", got)
	}
	t.Setenv("KIOSK_TEST_PORT", "9000")
	if got := getEnv("KIOSK_TEST_PORT", "8080"); got != "9000" {
		t.Errorf("set: got %q, want 9000", got)
	}
}

func TestGetEnvBool(t *testing.T) {
	tests := []struct {
		value string
		def   bool
		want  bool
	}{
		{"", true, true},
		{"", false, false},
		{"true", false, true},
		{"TRUE", false, true},
		{"t", false, true},
		{"1", false, true},
		{"false", true, false},
		{"F", true, false},
		{"0", true, false},
		// ParseBool does not know yes/no, so the default stands.
		{"yes", false, false},
		{"no", true, true},
		{"   ", true, true},
		{"not-a-bool", true, true},
	}

	for _, tt := range tests {
		t.Setenv("KIOSK_TEST_BOOL", tt.value)
		if got := getEnvBool("KIOSK_TEST_BOOL", tt.def); got != tt.want {
			t.Errorf("getEnvBool(%q, default %v) = %v, want %v", tt.value, tt.def, got, tt.want)
		}
	}
}

func TestGetEnvInt(t *testing.T) {
	tests := []struct {
		name  string
		value string
		want  int
	}{
		{"unset uses default", "", 42},
		{"valid value", "7", 7},
		{"negative value", "-3", -3},
		{"invalid value uses default", "seven", 42},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("KIOSK_TEST_INT", tt.value)
			if got := getEnvInt("KIOSK_TEST_INT", 42); got != tt.want {
				t.Errorf("getEnvInt() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestGetEnvList(t *testing.T) {
	tests := []struct {
		name  string
		value string
		want  []string
	}{
		{"unset", "", nil},
		{"single", "Family", []string{"Family"}},
		{"trims and drops blanks", " Family , ,Trips,", []string{"Family", "Trips"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("KIOSK_TEST_LIST", tt.value)
			if got := getEnvList("KIOSK_TEST_LIST"); !slices.Equal(got, tt.want) {
				t.Errorf("getEnvList() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestGetEnvDuration(t *testing.T) {
	tests := []struct {
		name  string
		value string
		want  time.Duration
	}{
		{"unset uses default", "", time.Hour},
		{"valid value", "15m", 15 * time.Minute},
		{"invalid value uses default", "soon", time.Hour},
		{"zero uses default", "0s", time.Hour},
		{"negative uses default", "-5m", time.Hour},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("KIOSK_TEST_DURATION", tt.value)
			if got := getEnvDuration("KIOSK_TEST_DURATION", time.Hour); got != tt.want {
				t.Errorf("getEnvDuration() = %v, want %v", got, tt.want)
			}
		})
	}
}
