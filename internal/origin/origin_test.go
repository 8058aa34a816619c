package origin

import "testing"

func TestNormalize(t *testing.T) {
	tests := []struct {
		name   string
		in     string
		want   string
		wantOK bool
	}{
		{name: "plain http", in: "http://example.com", want: "http://example.com", wantOK: true},
		{name: "https with port", in: "https://example.com:8443", want: "https://example.com:8443", wantOK: true},
		{name: "default http port dropped", in: "http://example.com:80", want: "http://example.com", wantOK: true},
		{name: "default https port dropped", in: "https://example.com:443", want: "https://example.com", wantOK: true},
		{name: "upper-cased host", in: "https://EXAMPLE.com", want: "https://example.com", wantOK: true},
		{name: "null origin", in: "null", want: "null", wantOK: true},
		{name: "surrounding whitespace", in: "  http://example.com  ", want: "http://example.com", wantOK: true},
		{name: "ipv6 literal", in: "http://[::1]:3000", want: "http://[::1]:3000", wantOK: true},
		{name: "empty", in: "", wantOK: false},
		{name: "no scheme", in: "example.com", wantOK: false},
		{name: "ws scheme", in: "ws://example.com", wantOK: false},
		{name: "path not allowed", in: "http://example.com/app", wantOK: false},
		{name: "userinfo not allowed", in: "http://user@example.com", wantOK: false},
		{name: "query not allowed", in: "http://example.com?x=1", wantOK: false},
		{name: "port zero", in: "http://example.com:0", wantOK: false},
		{name: "port out of range", in: "http://example.com:70000", wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, _, ok := Normalize(tt.in)
			if ok != tt.wantOK {
				t.Fatalf("Normalize(%q) ok = %v, want %v", tt.in, ok, tt.wantOK)
			}
			if ok && got != tt.want {
				t.Fatalf("Normalize(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestAllowedWithAllowlist(t *testing.T) {
	allowlist := []string{"https://app.example.com", "http://localhost:3000"}

	if !Allowed("https://app.example.com", "app.example.com", "relay.internal", allowlist) {
		t.Error("allowlisted origin rejected")
	}
	if !Allowed("http://localhost:3000", "localhost:3000", "relay.internal", allowlist) {
		t.Error("allowlisted localhost origin rejected")
	}
	if Allowed("https://evil.example.com", "evil.example.com", "relay.internal", allowlist) {
		t.Error("non-allowlisted origin accepted")
	}
	if !Allowed("https://anything.example", "anything.example", "relay.internal", []string{"*"}) {
		t.Error("wildcard allowlist rejected an origin")
	}
}

func TestAllowedSameHostDefault(t *testing.T) {
	if !Allowed("http://example.com", "example.com", "example.com", nil) {
		t.Error("same-host origin rejected")
	}
	if !Allowed("http://example.com", "example.com", "example.com:80", nil) {
		t.Error("default-port request host rejected")
	}
	if Allowed("http://other.com", "other.com", "example.com", nil) {
		t.Error("cross-host origin accepted")
	}
	if Allowed("null", "", "example.com", nil) {
		t.Error("null origin accepted under same-host policy")
	}
}
