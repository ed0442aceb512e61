package main

import (
	"encoding/binary"
	"log/slog"

	"github.com/legacylink/legacylink-bridge/internal/endpoint0"
	"github.com/legacylink/legacylink-bridge/internal/linkevents"
	"github.com/legacylink/legacylink-bridge/internal/mux"
	"github.com/legacylink/legacylink-bridge/internal/transport"
)

// runBootstrap issues the endpoint-0 version query as soon as m is started,
// the same handshake the legacy protocol performs before trusting any other
// endpoint on a freshly (re)connected link. Its
// result is published on bus rather than returned, since the caller does not
// block startup on it: on a real device the handshake may never complete if
// the firmware is unresponsive, and link-event subscribers (metrics, mDNS
// TXT refresh, tests) are the intended audience either way.
func runBootstrap(m *mux.Mux, bus *linkevents.Bus, l *slog.Logger) {
	req := make([]byte, 4)
	binary.LittleEndian.PutUint32(req, 0xFFFFFFFF)
	rxBuf := make([]byte, 4)

	_, err := m.StartOperation(0, req, rxBuf, func(status transport.Status, n int) {
		if status != transport.StatusOK {
			l.Warn("bootstrap_failed", "status", status)
			bus.Publish(linkevents.Event{Kind: linkevents.LinkDown})
			return
		}
		if n < 4 {
			l.Warn("bootstrap_short_reply", "n", n)
			bus.Publish(linkevents.Event{Kind: linkevents.LinkDown})
			return
		}
		gotVersionID := binary.LittleEndian.Uint32(rxBuf)
		if gotVersionID != endpoint0.JSONVersionID {
			l.Warn("descriptor_version_mismatch", "peer_version_id", gotVersionID, "local_version_id", endpoint0.JSONVersionID)
		} else {
			l.Info("descriptor_version_matched", "version_id", gotVersionID)
		}
		bus.Publish(linkevents.Event{Kind: linkevents.LinkUp})
		bus.Publish(linkevents.Event{Kind: linkevents.DescriptorReady, JSONVersionID: gotVersionID})
	})
	if err != nil {
		l.Warn("bootstrap_start_failed", "error", err)
		bus.Publish(linkevents.Event{Kind: linkevents.LinkDown, Err: err})
	}
}
