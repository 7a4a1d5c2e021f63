// Package chat persists and relays text messages between identities.
// Durability, not delivery, is the guarantee: a message is acknowledged once
// it is in the archive, whether or not the recipient was online.
package chat

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/SkyMonder/SkyCallPro/internal/hub"
	"github.com/SkyMonder/SkyCallPro/internal/metrics"
	"github.com/SkyMonder/SkyCallPro/internal/protocol"
	"github.com/SkyMonder/SkyCallPro/internal/registry"
	"github.com/SkyMonder/SkyCallPro/internal/store"
)

// Errors surfaced to the dispatch layer.
var (
	ErrNotAuthenticated = errors.New("sender not authenticated")
	ErrEmptyMessage     = errors.New("empty message body")
)

// Archive is the durable message store the relay appends to.
type Archive interface {
	AppendMessage(ctx context.Context, msg *store.Message) error
	Conversation(ctx context.Context, userA, userB string, limit int) ([]store.Message, error)
}

// Relay implements the persist-then-forward chat pipeline.
type Relay struct {
	reg     *registry.Registry
	archive Archive
	logger  zerolog.Logger
}

// New creates a relay over the given archive.
func New(reg *registry.Registry, archive Archive, logger zerolog.Logger) *Relay {
	return &Relay{reg: reg, archive: archive, logger: logger}
}

// Send persists a message from the sender's connection to target, forwards
// it live if the target is online, and enqueues a durability ack on the
// sender's own connection. On a storage failure nothing is forwarded: the
// ack must never claim durability the archive cannot back.
func (r *Relay) Send(ctx context.Context, sender *hub.Connection, target, body string) (*store.Message, error) {
	from, ok := r.reg.IdentityOf(sender)
	if !ok {
		return nil, ErrNotAuthenticated
	}
	if body == "" {
		return nil, ErrEmptyMessage
	}

	msg := &store.Message{
		MessageID: uuid.New().String(),
		Sender:    from,
		Recipient: target,
		Body:      body,
		CreatedAt: time.Now().UTC(),
	}

	start := time.Now()
	if err := r.archive.AppendMessage(ctx, msg); err != nil {
		r.logger.Error().Err(err).Str("from", from).Str("target", target).Msg("archive append failed")
		return nil, fmt.Errorf("append message: %w", err)
	}
	metrics.ArchiveWriteDuration.Observe(time.Since(start).Seconds())
	metrics.MessagesPersistedTotal.Inc()

	ts := msg.CreatedAt.UnixMilli()
	if targetConn, online := r.reg.Lookup(target); online {
		deliver := protocol.ChatDeliverMessage{
			BaseMessage: protocol.BaseMessage{Type: protocol.TypeChatDeliver, Ts: ts},
			From:        from,
			Text:        body,
		}
		if err := targetConn.EnqueueJSON(deliver); err == nil {
			metrics.MessagesDeliveredTotal.Inc()
		}
	}

	ack := protocol.ChatAckMessage{
		BaseMessage: protocol.BaseMessage{Type: protocol.TypeChatAck, Ts: ts},
		Target:      target,
		Text:        body,
	}
	_ = sender.EnqueueJSON(ack)

	return msg, nil
}

// History returns the conversation between two users, oldest first. The
// filtering and pagination strategy belongs to the archive.
func (r *Relay) History(ctx context.Context, userA, userB string, limit int) ([]store.Message, error) {
	return r.archive.Conversation(ctx, userA, userB, limit)
}
