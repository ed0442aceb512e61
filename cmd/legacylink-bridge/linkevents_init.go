package main

import (
	"log/slog"

	"github.com/legacylink/legacylink-bridge/internal/linkevents"
)

func initLinkEvents(cfg *appConfig, l *slog.Logger) *linkevents.Bus {
	b := linkevents.New()
	switch cfg.linkEventPolicy {
	case "drop":
		b.Policy = linkevents.PolicyDrop
	case "kick":
		b.Policy = linkevents.PolicyKick
	default:
		l.Warn("unknown_link_event_policy", "policy", cfg.linkEventPolicy, "used", "drop")
		b.Policy = linkevents.PolicyDrop
	}
	policyStr := map[linkevents.BackpressurePolicy]string{linkevents.PolicyDrop: "drop", linkevents.PolicyKick: "kick"}[b.Policy]
	l.Info("build_info", "version", version, "commit", commit, "date", date)
	l.Info("link_event_config", "policy", policyStr, "buffer", cfg.linkEventBuffer)
	return b
}
