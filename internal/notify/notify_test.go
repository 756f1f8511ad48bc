package notify

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/timecapsule/timecapsule/internal/metrics"
	"github.com/timecapsule/timecapsule/internal/model"
)

type fakeStream struct {
	mu      sync.Mutex
	entries []map[string]any
	err     error
}

func (f *fakeStream) AppendStream(_ context.Context, stream string, maxLen int64, values map[string]any) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	if stream != StreamKey || maxLen != MaxStreamLen {
		return "", errors.New("unexpected stream arguments")
	}
	f.entries = append(f.entries, values)
	return "1-0", nil
}

type fakeLister struct {
	capsules []*model.Capsule
	err      error
	windows  [][2]time.Time
}

func (f *fakeLister) ListCapsulesOpenedBetween(_ context.Context, from, to time.Time) ([]*model.Capsule, error) {
	f.windows = append(f.windows, [2]time.Time{from, to})
	if f.err != nil {
		return nil, f.err
	}
	var out []*model.Capsule
	for _, c := range f.capsules {
		if c.OpenDate.After(from) && !c.OpenDate.After(to) {
			out = append(out, c)
		}
	}
	return out, nil
}

type fakePublisher struct {
	events []UnlockEvent
	failID string
}

func (f *fakePublisher) Publish(_ context.Context, event UnlockEvent) (string, error) {
	if event.CapsuleID == f.failID {
		return "", errors.New("redis unavailable")
	}
	f.events = append(f.events, event)
	return "1-0", nil
}

func newTestSweeper(lister CapsuleLister, publisher EventPublisher, start time.Time) (*Sweeper, *time.Time, *metrics.InMemoryRecorder) {
	clock := start
	recorder := metrics.NewInMemory()
	s := NewSweeper(lister, publisher, time.Minute, slog.New(slog.NewTextHandler(io.Discard, nil)), recorder)
	s.now = func() time.Time { return clock }
	s.watermark = start
	return s, &clock, recorder
}

func TestPublisher_Publish(t *testing.T) {
	stream := &fakeStream{}
	p := NewPublisher(stream)

	openDate := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)
	id, err := p.Publish(context.Background(), newUnlockEvent("c1", "u1", "Hello", openDate))
	require.NoError(t, err)
	assert.Equal(t, "1-0", id)

	require.Len(t, stream.entries, 1)
	raw, ok := stream.entries[0]["payload"].(string)
	require.True(t, ok)

	var got UnlockEvent
	require.NoError(t, json.Unmarshal([]byte(raw), &got))
	assert.Equal(t, "c1", got.CapsuleID)
	assert.Equal(t, "u1", got.OwnerID)
	assert.Equal(t, openDate.UnixMilli(), got.OpenedAt)
}

func TestPublisher_PublishError(t *testing.T) {
	p := NewPublisher(&fakeStream{err: errors.New("down")})

	_, err := p.Publish(context.Background(), UnlockEvent{CapsuleID: "c1"})
	assert.Error(t, err)
}

func TestSweeper_RunOnce_PublishesWindow(t *testing.T) {
	start := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)
	lister := &fakeLister{capsules: []*model.Capsule{
		{ID: "at-start", OpenDate: start},
		{ID: "inside", OpenDate: start.Add(30 * time.Second)},
		{ID: "at-end", OpenDate: start.Add(time.Minute)},
		{ID: "future", OpenDate: start.Add(2 * time.Minute)},
	}}
	publisher := &fakePublisher{}
	s, clock, recorder := newTestSweeper(lister, publisher, start)

	*clock = start.Add(time.Minute)
	n, err := s.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	ids := []string{publisher.events[0].CapsuleID, publisher.events[1].CapsuleID}
	assert.ElementsMatch(t, []string{"inside", "at-end"}, ids)

	// Next window picks up where the last one ended.
	*clock = start.Add(3 * time.Minute)
	n, err = s.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, "future", publisher.events[2].CapsuleID)

	require.Len(t, lister.windows, 2)
	assert.Equal(t, start.Add(time.Minute), lister.windows[1][0])

	snap := recorder.Snapshot()
	assert.Equal(t, uint64(3), snap.UnlockEventsPublished)
	assert.Equal(t, uint64(2), snap.UnlockSweepCount)
}

func TestSweeper_RunOnce_ListErrorKeepsWatermark(t *testing.T) {
	start := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)
	lister := &fakeLister{err: errors.New("db down")}
	s, clock, _ := newTestSweeper(lister, &fakePublisher{}, start)

	*clock = start.Add(time.Minute)
	_, err := s.RunOnce(context.Background())
	require.Error(t, err)

	lister.err = nil
	*clock = start.Add(2 * time.Minute)
	_, err = s.RunOnce(context.Background())
	require.NoError(t, err)

	require.Len(t, lister.windows, 2)
	assert.Equal(t, start, lister.windows[1][0])
}

func TestSweeper_RunOnce_PublishFailureIsCounted(t *testing.T) {
	start := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)
	lister := &fakeLister{capsules: []*model.Capsule{
		{ID: "ok", OpenDate: start.Add(time.Second)},
		{ID: "bad", OpenDate: start.Add(2 * time.Second)},
	}}
	s, clock, recorder := newTestSweeper(lister, &fakePublisher{failID: "bad"}, start)

	*clock = start.Add(time.Minute)
	n, err := s.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	snap := recorder.Snapshot()
	assert.Equal(t, uint64(1), snap.UnlockEventsPublished)
	assert.Equal(t, uint64(1), snap.UnlockEventsFailed)
}

func TestSweeper_RunOnce_NoTimeElapsed(t *testing.T) {
	start := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)
	lister := &fakeLister{}
	s, _, _ := newTestSweeper(lister, &fakePublisher{}, start)

	n, err := s.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Empty(t, lister.windows)
}

func TestSweeper_StartShutdown(t *testing.T) {
	s := NewSweeper(&fakeLister{}, &fakePublisher{}, time.Hour, nil, nil)

	require.NoError(t, s.Start())
	assert.Error(t, s.Start())

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, s.Shutdown(ctx))

	// Shutdown without a running schedule is a no-op.
	require.NoError(t, s.Shutdown(ctx))
}
