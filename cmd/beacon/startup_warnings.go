package main

import (
	"log/slog"
	"strings"

	"github.com/tessellate-io/beacon/internal/config"
)

func logStartupSecurityWarnings(logger *slog.Logger, cfg config.Config) {
	if logger == nil {
		logger = slog.Default()
	}

	if containsString(cfg.AllowedOrigins, "*") {
		logger.Warn("startup security warning: ALLOWED_ORIGINS contains '*' (allows any origin)",
			"warning_code", "allowed_origins_wildcard",
			"allowed_origins", cfg.AllowedOrigins,
			"mode", cfg.Mode,
		)
	}

	if cfg.Mode == config.ModeProd && cfg.MaxRoomMembers <= 0 {
		logger.Warn("startup security warning: MAX_ROOM_MEMBERS is unset/0 (unlimited) while --mode=prod",
			"warning_code", "max_room_members_unlimited_in_prod",
			"max_room_members", cfg.MaxRoomMembers,
			"mode", cfg.Mode,
		)
	}

	// Warn if the inbound message cap is unusually large, since this weakens
	// the oversized message DoS hardening.
	if cfg.MaxMessageBytes > 1<<20 { // 1MiB
		logger.Warn("startup security warning: MAX_SIGNALING_MESSAGE_BYTES is very large (weakens oversized-message DoS hardening; increases per-message allocation risk)",
			"warning_code", "max_message_bytes_large",
			"max_message_bytes", cfg.MaxMessageBytes,
			"mode", cfg.Mode,
		)
	}

	// Static TURN credentials baked into config are long-lived; TURN REST
	// issues per-request expiring credentials instead.
	if !cfg.TURNREST.Enabled() && iceConfigHasStaticTURNCredentials(cfg) {
		logger.Warn("startup security warning: static TURN credentials configured (long-lived; consider TURN_REST_SHARED_SECRET for ephemeral credentials)",
			"warning_code", "static_turn_credentials",
			"mode", cfg.Mode,
		)
	}
}

func iceConfigHasStaticTURNCredentials(cfg config.Config) bool {
	for _, server := range cfg.ICEServers {
		for _, raw := range server.URLs {
			url := strings.ToLower(strings.TrimSpace(raw))
			if !strings.HasPrefix(url, "turn:") && !strings.HasPrefix(url, "turns:") {
				continue
			}
			if cred, ok := server.Credential.(string); ok && strings.TrimSpace(cred) != "" {
				return true
			}
		}
	}
	return false
}

func containsString(xs []string, v string) bool {
	for _, s := range xs {
		if s == v {
			return true
		}
	}
	return false
}
