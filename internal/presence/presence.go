// Package presence computes the online/offline roster projection and pushes
// it to every live connection whenever the session registry changes.
package presence

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/SkyMonder/SkyCallPro/internal/hub"
	"github.com/SkyMonder/SkyCallPro/internal/metrics"
	"github.com/SkyMonder/SkyCallPro/internal/protocol"
	"github.com/SkyMonder/SkyCallPro/internal/registry"
	"github.com/SkyMonder/SkyCallPro/internal/store"
)

// Lister enumerates registered identities.
type Lister interface {
	List(ctx context.Context) ([]store.User, error)
}

// Broadcaster derives roster snapshots from the directory and the registry.
type Broadcaster struct {
	reg    *registry.Registry
	dir    Lister
	hub    *hub.Hub
	limit  int
	logger zerolog.Logger
}

// New creates a broadcaster. limit caps the number of entries per snapshot;
// non-positive means unlimited.
func New(reg *registry.Registry, dir Lister, h *hub.Hub, limit int, logger zerolog.Logger) *Broadcaster {
	return &Broadcaster{reg: reg, dir: dir, hub: h, limit: limit, logger: logger}
}

// Roster computes the projection, optionally filtered by a case-insensitive
// substring match against username or display name. Entries are ordered by
// username ascending and capped at the configured limit.
func (b *Broadcaster) Roster(ctx context.Context, filter string) ([]protocol.RosterEntry, error) {
	users, err := b.dir.List(ctx)
	if err != nil {
		return nil, err
	}
	online := b.reg.Online()

	needle := strings.ToLower(filter)
	entries := make([]protocol.RosterEntry, 0, len(users))
	for _, u := range users {
		if needle != "" &&
			!strings.Contains(strings.ToLower(u.Username), needle) &&
			!strings.Contains(strings.ToLower(u.DisplayName), needle) {
			continue
		}
		entries = append(entries, protocol.RosterEntry{
			Username:    u.Username,
			DisplayName: u.DisplayName,
			Online:      online[u.Username],
		})
		if b.limit > 0 && len(entries) == b.limit {
			break
		}
	}
	// ListUsers already orders by username ascending.
	return entries, nil
}

// Broadcast pushes the unfiltered roster to every live connection. Wired as
// the registry's change callback; snapshots land on per-connection outbound
// queues, so a slow client never blocks a registry mutation.
func (b *Broadcaster) Broadcast() {
	entries, err := b.Roster(context.Background(), "")
	if err != nil {
		b.logger.Error().Err(err).Msg("failed to compute roster")
		return
	}
	msg := protocol.RosterMessage{
		BaseMessage: protocol.BaseMessage{Type: protocol.TypeRosterChanged, Ts: time.Now().UnixMilli()},
		Entries:     entries,
	}
	if err := b.hub.BroadcastJSON(msg); err != nil {
		b.logger.Error().Err(err).Msg("failed to broadcast roster")
		return
	}
	metrics.RosterBroadcastsTotal.Inc()
}
