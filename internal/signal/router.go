// Package signal relays call-negotiation events between two identities.
// Payloads are opaque: the router never parses SDP, codec, or candidate
// structure, so any negotiation format clients agree on works unmodified.
package signal

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/SkyMonder/SkyCallPro/internal/hub"
	"github.com/SkyMonder/SkyCallPro/internal/metrics"
	"github.com/SkyMonder/SkyCallPro/internal/protocol"
	"github.com/SkyMonder/SkyCallPro/internal/registry"
	"github.com/SkyMonder/SkyCallPro/internal/store"
)

// Errors surfaced to the dispatch layer. Only call_invite reports them back
// to the client; the other kinds drop silently (see AcksFailure).
var (
	ErrNotAuthenticated  = errors.New("sender not authenticated")
	ErrTargetUnreachable = errors.New("target unknown or offline")
)

// IsKind reports whether t is one of the relayed signal kinds.
func IsKind(t string) bool {
	switch t {
	case protocol.TypeCallInvite, protocol.TypeCallOffer, protocol.TypeCallAnswer,
		protocol.TypeIceCandidate, protocol.TypeCallEnd:
		return true
	}
	return false
}

// AcksFailure is the per-kind NACK table: which kinds report a failed relay
// back to the sender. Mid-call signals are fire-and-forget; only the invite
// has a synchronous acknowledgment path.
func AcksFailure(kind string) bool {
	return kind == protocol.TypeCallInvite
}

// ProfileLookup resolves display names for forwarded invites.
type ProfileLookup interface {
	Profile(ctx context.Context, username string) (*store.User, error)
}

// Router performs stateless per-hop forwarding. It holds no call state: no
// server-side notion of ringing or in-call exists, and an answer is relayed
// whether or not an offer preceded it.
type Router struct {
	reg    *registry.Registry
	dir    ProfileLookup
	logger zerolog.Logger
}

// New creates a router.
func New(reg *registry.Registry, dir ProfileLookup, logger zerolog.Logger) *Router {
	return &Router{reg: reg, dir: dir, logger: logger}
}

// Relay forwards one signal from the sender's connection to the target
// identity's current connection. The caller maps returned errors per the
// AcksFailure table.
func (r *Router) Relay(sender *hub.Connection, kind, target string, payload json.RawMessage) error {
	from, ok := r.reg.IdentityOf(sender)
	if !ok {
		metrics.SignalsDroppedTotal.WithLabelValues(kind, "not_logged_in").Inc()
		return ErrNotAuthenticated
	}

	targetConn, ok := r.reg.Lookup(target)
	if !ok {
		metrics.SignalsDroppedTotal.WithLabelValues(kind, "user_offline").Inc()
		return ErrTargetUnreachable
	}

	msg := protocol.SignalMessage{
		BaseMessage: protocol.BaseMessage{Type: kind, Ts: time.Now().UnixMilli()},
		From:        from,
		Payload:     payload,
	}
	if kind == protocol.TypeCallInvite {
		msg.DisplayName = r.displayName(from)
	}

	if err := targetConn.EnqueueJSON(msg); err != nil {
		// The target queue is full or the connection raced shutdown.
		// Treated the same as an offline target.
		r.logger.Warn().Str("kind", kind).Str("target", target).Err(err).Msg("signal enqueue failed")
		metrics.SignalsDroppedTotal.WithLabelValues(kind, "user_offline").Inc()
		return ErrTargetUnreachable
	}

	metrics.SignalsRelayedTotal.WithLabelValues(kind).Inc()
	r.logger.Debug().Str("kind", kind).Str("from", from).Str("target", target).Msg("signal relayed")
	return nil
}

func (r *Router) displayName(username string) string {
	user, err := r.dir.Profile(context.Background(), username)
	if err != nil || user == nil {
		return username
	}
	return user.DisplayName
}
