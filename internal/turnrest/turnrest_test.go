package turnrest

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"strings"
	"testing"
	"time"
)

func fixedNow() time.Time {
	return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
}

func TestNewGeneratorValidation(t *testing.T) {
	tests := []struct {
		name string
		cfg  GeneratorConfig
	}{
		{name: "missing secret", cfg: GeneratorConfig{TTLSeconds: 60, UsernamePrefix: "beacon"}},
		{name: "zero ttl", cfg: GeneratorConfig{SharedSecret: "s", UsernamePrefix: "beacon"}},
		{name: "missing prefix", cfg: GeneratorConfig{SharedSecret: "s", TTLSeconds: 60}},
		{name: "colon in prefix", cfg: GeneratorConfig{SharedSecret: "s", TTLSeconds: 60, UsernamePrefix: "a:b"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewGenerator(tt.cfg); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestGenerateCoturnCompatible(t *testing.T) {
	g, err := NewGenerator(GeneratorConfig{
		SharedSecret:   "north-remembers",
		TTLSeconds:     3600,
		UsernamePrefix: "beacon",
		Now:            fixedNow,
	})
	if err != nil {
		t.Fatal(err)
	}

	creds, err := g.Generate("conn-1")
	if err != nil {
		t.Fatal(err)
	}

	wantExpiry := fixedNow().Unix() + 3600
	if creds.ExpiryUnix != wantExpiry {
		t.Fatalf("expiry = %d, want %d", creds.ExpiryUnix, wantExpiry)
	}
	wantUsername := "1748782800:beacon:conn-1"
	if creds.Username != wantUsername {
		t.Fatalf("username = %q, want %q", creds.Username, wantUsername)
	}

	mac := hmac.New(sha1.New, []byte("north-remembers"))
	mac.Write([]byte(wantUsername))
	wantCred := base64.StdEncoding.EncodeToString(mac.Sum(nil))
	if creds.Credential != wantCred {
		t.Fatalf("credential = %q, want %q", creds.Credential, wantCred)
	}
}

func TestGenerateRejectsColonID(t *testing.T) {
	g, err := NewGenerator(GeneratorConfig{SharedSecret: "s", TTLSeconds: 60, UsernamePrefix: "beacon"})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := g.Generate("a:b"); err == nil {
		t.Fatal("expected error for id containing ':'")
	}
	if _, err := g.Generate(""); err == nil {
		t.Fatal("expected error for empty id")
	}
}

func TestGenerateRandom(t *testing.T) {
	g, err := NewGenerator(GeneratorConfig{SharedSecret: "s", TTLSeconds: 60, UsernamePrefix: "beacon", Now: fixedNow})
	if err != nil {
		t.Fatal(err)
	}
	a, err := g.GenerateRandom()
	if err != nil {
		t.Fatal(err)
	}
	b, err := g.GenerateRandom()
	if err != nil {
		t.Fatal(err)
	}
	if a.Username == b.Username {
		t.Fatal("random credentials reused an id")
	}
	if !strings.HasPrefix(a.Username, "1748779260:beacon:") {
		t.Fatalf("username %q missing expiry/prefix", a.Username)
	}
}
