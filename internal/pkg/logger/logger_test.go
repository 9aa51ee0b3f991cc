package logger

import "testing"

func TestRedactToken(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"long token keeps prefix", "APP_USR-12345678-abcdef", "APP_USR-1***"},
		{"short token fully masked", "abc123", "***"},
		{"empty", "", "***"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := RedactToken(tt.in); got != tt.want {
				t.Errorf("RedactToken(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestRedactSecretValue(t *testing.T) {
	if got := redactSecretValue("access_token", "APP_USR-12345678-abcdef"); got != "APP_USR-1***" {
		t.Errorf("token field not redacted: %q", got)
	}
	if got := redactSecretValue("workspace_id", "ws-1"); got != "ws-1" {
		t.Errorf("non-secret field modified: %q", got)
	}
}
