// Package notify signals capsule unlocks to downstream consumers.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

const (
	// StreamKey is the Redis stream for unlock events.
	StreamKey = "stream:capsule_unlocked"

	// MaxStreamLen is the approximate max length of the stream.
	MaxStreamLen = 100000
)

// UnlockEvent is the stream payload for one capsule reaching its open date.
type UnlockEvent struct {
	CapsuleID string `json:"cid"`
	OwnerID   string `json:"oid"`
	Title     string `json:"title"`
	OpenedAt  int64  `json:"t"` // Unix milliseconds of the open date
}

// StreamAppender appends entries to a stream.
type StreamAppender interface {
	AppendStream(ctx context.Context, stream string, maxLen int64, values map[string]any) (string, error)
}

// Publisher writes unlock events to the stream.
type Publisher struct {
	stream StreamAppender
}

// NewPublisher creates a new unlock event publisher.
func NewPublisher(stream StreamAppender) *Publisher {
	return &Publisher{stream: stream}
}

// Publish adds an unlock event to the stream and returns its stream ID.
func (p *Publisher) Publish(ctx context.Context, event UnlockEvent) (string, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return "", fmt.Errorf("marshal event: %w", err)
	}

	id, err := p.stream.AppendStream(ctx, StreamKey, MaxStreamLen, map[string]any{
		"payload": string(data),
	})
	if err != nil {
		return "", fmt.Errorf("publish unlock event: %w", err)
	}
	return id, nil
}

// newUnlockEvent builds the payload for a capsule.
func newUnlockEvent(id, ownerID, title string, openDate time.Time) UnlockEvent {
	return UnlockEvent{
		CapsuleID: id,
		OwnerID:   ownerID,
		Title:     title,
		OpenedAt:  openDate.UTC().UnixMilli(),
	}
}
