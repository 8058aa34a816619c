package config

import (
	"log/slog"
	"strings"
	"testing"
	"time"
)

func lookupMap(m map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		v, ok := m[key]
		return v, ok
	}
}

func noEnv(string) (string, bool) { return "", false }

func TestDefaultsDev(t *testing.T) {
	cfg, err := load(noEnv, nil)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.ListenAddr != DefaultListenAddr {
		t.Fatalf("listenAddr=%q, want %q", cfg.ListenAddr, DefaultListenAddr)
	}
	if cfg.Mode != ModeDev {
		t.Fatalf("mode=%q, want %q", cfg.Mode, ModeDev)
	}
	if cfg.LogFormat != LogFormatText {
		t.Fatalf("logFormat=%q, want %q", cfg.LogFormat, LogFormatText)
	}
	if cfg.LogLevel != slog.LevelDebug {
		t.Fatalf("logLevel=%v, want %v", cfg.LogLevel, slog.LevelDebug)
	}
	if cfg.ShutdownTimeout != DefaultShutdown {
		t.Fatalf("shutdownTimeout=%v, want %v", cfg.ShutdownTimeout, DefaultShutdown)
	}
	if cfg.WSIdleTimeout != DefaultWSIdleTimeout {
		t.Fatalf("WSIdleTimeout=%v, want %v", cfg.WSIdleTimeout, DefaultWSIdleTimeout)
	}
	if cfg.WSPingInterval != DefaultWSPingInterval {
		t.Fatalf("WSPingInterval=%v, want %v", cfg.WSPingInterval, DefaultWSPingInterval)
	}
	if cfg.MaxMessageBytes != DefaultMaxMessageBytes {
		t.Fatalf("MaxMessageBytes=%d, want %d", cfg.MaxMessageBytes, DefaultMaxMessageBytes)
	}
	if cfg.MaxMessagesPerSecond != DefaultMaxMessagesPerSecond {
		t.Fatalf("MaxMessagesPerSecond=%d, want %d", cfg.MaxMessagesPerSecond, DefaultMaxMessagesPerSecond)
	}
	if cfg.MaxRoomMembers != 0 {
		t.Fatalf("MaxRoomMembers=%d, want 0", cfg.MaxRoomMembers)
	}
	if len(cfg.ICEServers) != 0 {
		t.Fatalf("expected no ICE servers, got %v", cfg.ICEServers)
	}
	if cfg.ICEConfigError() != nil {
		t.Fatalf("unexpected ICE config error: %v", cfg.ICEConfigError())
	}
	if cfg.TURNREST.Enabled() {
		t.Fatalf("expected TURN REST disabled by default")
	}
}

func TestDefaultsProdWhenModeFlagSet(t *testing.T) {
	cfg, err := load(noEnv, []string{"--mode", "prod"})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Mode != ModeProd {
		t.Fatalf("mode=%q, want %q", cfg.Mode, ModeProd)
	}
	if cfg.LogFormat != LogFormatJSON {
		t.Fatalf("logFormat=%q, want %q", cfg.LogFormat, LogFormatJSON)
	}
	if cfg.LogLevel != slog.LevelInfo {
		t.Fatalf("logLevel=%v, want %v", cfg.LogLevel, slog.LevelInfo)
	}
}

func TestLogFormatExplicitOverride(t *testing.T) {
	cfg, err := load(noEnv, []string{"--mode", "prod", "--log-format", "text"})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.LogFormat != LogFormatText {
		t.Fatalf("logFormat=%q, want %q", cfg.LogFormat, LogFormatText)
	}
}

func TestEnvOverridesAndFlagWins(t *testing.T) {
	cfg, err := load(lookupMap(map[string]string{
		envVarListenAddr:      "0.0.0.0:9000",
		envVarMaxRoomMembers:  "4",
		envVarWSIdleTimeout:   "90s",
		envVarWSPingInterval:  "30s",
		envVarMaxMessageBytes: "1024",
	}), []string{"--max-room-members", "8"})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.ListenAddr != "0.0.0.0:9000" {
		t.Fatalf("listenAddr=%q", cfg.ListenAddr)
	}
	if cfg.MaxRoomMembers != 8 {
		t.Fatalf("MaxRoomMembers=%d, want 8 (flag should win over env)", cfg.MaxRoomMembers)
	}
	if cfg.WSIdleTimeout != 90*time.Second {
		t.Fatalf("WSIdleTimeout=%v", cfg.WSIdleTimeout)
	}
	if cfg.WSPingInterval != 30*time.Second {
		t.Fatalf("WSPingInterval=%v", cfg.WSPingInterval)
	}
	if cfg.MaxMessageBytes != 1024 {
		t.Fatalf("MaxMessageBytes=%d", cfg.MaxMessageBytes)
	}
}

func TestPingIntervalMustBeLessThanIdleTimeout(t *testing.T) {
	_, err := load(lookupMap(map[string]string{
		envVarWSIdleTimeout:  "10s",
		envVarWSPingInterval: "10s",
	}), nil)
	if err == nil {
		t.Fatalf("expected error, got nil")
	}
	if !strings.Contains(err.Error(), envVarWSPingInterval) {
		t.Fatalf("err=%v, expected mention of %s", err, envVarWSPingInterval)
	}
}

func TestNegativeMaxRoomMembersRejected(t *testing.T) {
	_, err := load(lookupMap(map[string]string{
		envVarMaxRoomMembers: "-1",
	}), nil)
	if err == nil {
		t.Fatalf("expected error, got nil")
	}
}

func TestInvalidDurationRejected(t *testing.T) {
	_, err := load(lookupMap(map[string]string{
		envVarWSIdleTimeout: "soon",
	}), nil)
	if err == nil {
		t.Fatalf("expected error, got nil")
	}
	if !strings.Contains(err.Error(), envVarWSIdleTimeout) {
		t.Fatalf("err=%v, expected mention of %s", err, envVarWSIdleTimeout)
	}
}

func TestTURNRESTRequiresTTLAndPrefix(t *testing.T) {
	_, err := load(lookupMap(map[string]string{
		envVarTURNRESTSharedSecret: "s3cret",
		envVarTURNRESTTTLSeconds:   "0",
	}), nil)
	if err == nil {
		t.Fatalf("expected error, got nil")
	}

	_, err = load(lookupMap(map[string]string{
		envVarTURNRESTSharedSecret:   "s3cret",
		envVarTURNRESTUsernamePrefix: "  ",
	}), nil)
	if err == nil {
		t.Fatalf("expected error, got nil")
	}
}

func TestTURNRESTEnabled(t *testing.T) {
	cfg, err := load(lookupMap(map[string]string{
		envVarTURNRESTSharedSecret: "s3cret",
	}), nil)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !cfg.TURNREST.Enabled() {
		t.Fatalf("expected TURN REST enabled")
	}
	if cfg.TURNREST.TTLSeconds != DefaultTURNRESTTTLSeconds {
		t.Fatalf("TTLSeconds=%d, want %d", cfg.TURNREST.TTLSeconds, DefaultTURNRESTTTLSeconds)
	}
	if cfg.TURNREST.UsernamePrefix != DefaultTURNRESTUsernamePrefix {
		t.Fatalf("UsernamePrefix=%q, want %q", cfg.TURNREST.UsernamePrefix, DefaultTURNRESTUsernamePrefix)
	}
}

func TestICEConfigErrorIsDeferred(t *testing.T) {
	cfg, err := load(lookupMap(map[string]string{
		envICEServersJSON: "not json",
	}), nil)
	if err != nil {
		t.Fatalf("load: %v (ICE config errors must not fail startup)", err)
	}
	if cfg.ICEConfigError() == nil {
		t.Fatalf("expected deferred ICE config error")
	}
	if len(cfg.ICEServers) != 0 {
		t.Fatalf("expected no ICE servers, got %v", cfg.ICEServers)
	}
}

func TestParseAllowedOrigins_NormalizesAndValidates(t *testing.T) {
	got, err := parseAllowedOrigins("HTTPS://Example.COM:443, http://localhost:5173")
	if err != nil {
		t.Fatalf("parseAllowedOrigins: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("len=%d, want 2 (%v)", len(got), got)
	}
	if got[0] != "https://example.com" {
		t.Fatalf("got[0]=%q, want %q", got[0], "https://example.com")
	}
	if got[1] != "http://localhost:5173" {
		t.Fatalf("got[1]=%q, want %q", got[1], "http://localhost:5173")
	}
}

func TestParseAllowedOrigins_AllowsStarAndNull(t *testing.T) {
	got, err := parseAllowedOrigins("*,null")
	if err != nil {
		t.Fatalf("parseAllowedOrigins: %v", err)
	}
	if len(got) != 2 || got[0] != "*" || got[1] != "null" {
		t.Fatalf("got=%v, want [* null]", got)
	}
}

func TestParseAllowedOrigins_RejectsPathQueryAndCredentials(t *testing.T) {
	cases := []string{
		"ftp://example.com",
		"https://example.com/path",
		"https://example.com/?q=1",
		"https://user@example.com",
		"https://example.com/#frag",
	}
	for _, raw := range cases {
		if _, err := parseAllowedOrigins(raw); err == nil {
			t.Fatalf("expected error for %q, got nil", raw)
		}
	}
}
