package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/timecapsule/timecapsule/internal/auth"
	"github.com/timecapsule/timecapsule/internal/metrics"
	"github.com/timecapsule/timecapsule/internal/model"
	"github.com/timecapsule/timecapsule/internal/repository"
	"github.com/timecapsule/timecapsule/internal/storage"
)

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestCapsuleService(t *testing.T) (*CapsuleService, *mockCapsuleStore, *mockMediaStore, *metrics.InMemoryRecorder) {
	t.Helper()

	store := &mockCapsuleStore{}
	media := &mockMediaStore{}
	recorder := metrics.NewInMemory()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	svc := NewCapsuleService(store, media, logger, recorder)
	svc.now = func() time.Time { return testNow }

	t.Cleanup(func() {
		store.AssertExpectations(t)
		media.AssertExpectations(t)
	})
	return svc, store, media, recorder
}

func ctxFor(userID string) context.Context {
	return auth.ContextWithIdentity(context.Background(), auth.Identity{UserID: userID})
}

func ptr(s string) *string { return &s }

func storedCapsule(id, owner string, openDate time.Time) *model.Capsule {
	return &model.Capsule{
		ID:        id,
		OwnerID:   owner,
		Title:     "Carta para o futuro",
		Content:   "Oi, eu do futuro",
		OpenDate:  openDate,
		Category:  model.CategoryPersonal,
		Image:     ptr("1700000000000-1.png"),
		CreatedAt: testNow.Add(-time.Hour),
		UpdatedAt: testNow.Add(-time.Hour),
	}
}

func TestCapsuleService_Create(t *testing.T) {
	svc, store, _, recorder := newTestCapsuleService(t)

	store.On("CreateCapsule", mock.Anything, mock.MatchedBy(func(c *model.Capsule) bool {
		return c.OwnerID == "user-a" && c.Title == "Title" && c.Category == model.CategoryTravel
	})).Return(nil)

	audio := "1700000000000-2.mp3"
	got, err := svc.Create(ctxFor("user-a"), CreateCapsuleInput{
		Title:    "  Title ",
		Content:  "Body",
		OpenDate: "2030-01-01T00:00:00.000Z",
		Category: "viagem",
		Media:    storage.MediaRefs{Audio: &audio},
	})
	require.NoError(t, err)

	assert.Len(t, got.ID, 26)
	assert.Equal(t, "Title", got.Title)
	assert.Equal(t, "Body", got.Content)
	assert.True(t, got.OpenDate.Equal(time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)))
	assert.Nil(t, got.Image)
	require.NotNil(t, got.Audio)
	assert.Equal(t, audio, *got.Audio)
	assert.Equal(t, testNow, got.CreatedAt)
	assert.Equal(t, uint64(1), recorder.Snapshot().CapsulesCreated)
}

func TestCapsuleService_Create_DefaultsCategory(t *testing.T) {
	svc, store, _, _ := newTestCapsuleService(t)
	store.On("CreateCapsule", mock.Anything, mock.Anything).Return(nil)

	got, err := svc.Create(ctxFor("user-a"), CreateCapsuleInput{
		Title:    "Title",
		Content:  "Body",
		OpenDate: "2030-01-01",
	})
	require.NoError(t, err)
	assert.Equal(t, model.CategoryPersonal, got.Category)
}

func TestCapsuleService_Create_Validation(t *testing.T) {
	valid := CreateCapsuleInput{Title: "T", Content: "C", OpenDate: "2030-01-01"}

	tests := []struct {
		name  string
		edit  func(in *CreateCapsuleInput)
		field string
	}{
		{"empty title", func(in *CreateCapsuleInput) { in.Title = "   " }, "titulo"},
		{"long title", func(in *CreateCapsuleInput) { in.Title = strings.Repeat("a", maxTitleLength+1) }, "titulo"},
		{"empty content", func(in *CreateCapsuleInput) { in.Content = "" }, "conteudo"},
		{"missing date", func(in *CreateCapsuleInput) { in.OpenDate = "" }, "dataAbertura"},
		{"unparsable date", func(in *CreateCapsuleInput) { in.OpenDate = "next tuesday" }, "dataAbertura"},
		{"unknown category", func(in *CreateCapsuleInput) { in.Category = "hobby" }, "categoria"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, _, _, _ := newTestCapsuleService(t)

			in := valid
			tt.edit(&in)

			_, err := svc.Create(ctxFor("user-a"), in)
			require.ErrorIs(t, err, ErrValidation)

			var ve *ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, tt.field, ve.Field)
		})
	}
}

func TestCapsuleService_Create_UnknownOwner(t *testing.T) {
	svc, store, _, _ := newTestCapsuleService(t)
	store.On("CreateCapsule", mock.Anything, mock.Anything).Return(repository.ErrUserNotFound)

	_, err := svc.Create(ctxFor("ghost"), CreateCapsuleInput{Title: "T", Content: "C", OpenDate: "2030-01-01"})
	assert.ErrorIs(t, err, ErrNotAuthenticated)
}

func TestCapsuleService_NotAuthenticated(t *testing.T) {
	// No expectations are set: any store call fails the test.
	svc, _, _, _ := newTestCapsuleService(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, CreateCapsuleInput{Title: "T", Content: "C", OpenDate: "2030-01-01"})
	assert.ErrorIs(t, err, ErrNotAuthenticated)

	_, err = svc.ListForOwner(ctx)
	assert.ErrorIs(t, err, ErrNotAuthenticated)

	_, err = svc.FetchOne(ctx, "c1")
	assert.ErrorIs(t, err, ErrNotAuthenticated)

	_, err = svc.Update(ctx, UpdateCapsuleInput{ID: "c1", Title: ptr("x")})
	assert.ErrorIs(t, err, ErrNotAuthenticated)

	err = svc.Remove(ctx, "c1")
	assert.ErrorIs(t, err, ErrNotAuthenticated)

	_, err = svc.OpenMedia(ctx, "1700000000000-1.png")
	assert.ErrorIs(t, err, ErrNotAuthenticated)
}

func TestCapsuleService_ListForOwner_SuppressesLocked(t *testing.T) {
	svc, store, _, _ := newTestCapsuleService(t)

	past := storedCapsule("past", "user-a", testNow.AddDate(0, 0, -1))
	future := storedCapsule("future", "user-a", testNow.AddDate(1, 0, 0))
	store.On("ListCapsulesByOwner", mock.Anything, "user-a").
		Return([]*model.Capsule{past, future}, nil)

	views, err := svc.ListForOwner(ctxFor("user-a"))
	require.NoError(t, err)
	require.Len(t, views, 2)

	// Latest open date first.
	assert.Equal(t, "future", views[0].ID)
	assert.True(t, views[0].Locked())
	assert.Empty(t, views[0].Content)
	assert.Nil(t, views[0].Image)
	assert.Equal(t, future.Title, views[0].Title)

	assert.Equal(t, "past", views[1].ID)
	assert.False(t, views[1].Locked())
	assert.Equal(t, past.Content, views[1].Content)
	require.NotNil(t, views[1].Image)
}

func TestCapsuleService_ListForOwner_Empty(t *testing.T) {
	svc, store, _, _ := newTestCapsuleService(t)
	store.On("ListCapsulesByOwner", mock.Anything, "user-a").Return([]*model.Capsule{}, nil)

	views, err := svc.ListForOwner(ctxFor("user-a"))
	require.NoError(t, err)
	assert.NotNil(t, views)
	assert.Empty(t, views)
}

func TestCapsuleService_FetchOne_LockBoundary(t *testing.T) {
	svc, store, _, recorder := newTestCapsuleService(t)

	openDate := testNow.Add(time.Minute)
	capsule := storedCapsule("c1", "user-a", openDate)
	store.On("GetCapsuleForOwner", mock.Anything, "user-a", "c1").Return(capsule, nil)

	locked, err := svc.FetchOne(ctxFor("user-a"), "c1")
	require.NoError(t, err)
	assert.True(t, locked.Locked())
	assert.Equal(t, "c1", locked.ID)
	assert.Empty(t, locked.Title)
	assert.Empty(t, locked.Content)

	// Unlocks exactly at the open date.
	svc.now = func() time.Time { return openDate }

	open, err := svc.FetchOne(ctxFor("user-a"), "c1")
	require.NoError(t, err)
	assert.False(t, open.Locked())
	assert.Equal(t, capsule.Content, open.Content)
	assert.Equal(t, capsule.Title, open.Title)

	snap := recorder.Snapshot()
	assert.Equal(t, uint64(1), snap.CapsuleFetchesLocked)
	assert.Equal(t, uint64(1), snap.CapsuleFetchesUnlocked)
}

func TestCapsuleService_FetchOne_ForeignCapsule(t *testing.T) {
	svc, store, _, _ := newTestCapsuleService(t)
	store.On("GetCapsuleForOwner", mock.Anything, "user-b", "c1").Return(nil, repository.ErrCapsuleNotFound)

	_, err := svc.FetchOne(ctxFor("user-b"), "c1")
	assert.ErrorIs(t, err, ErrCapsuleNotFound)
}

func TestCapsuleService_FetchOne_StoreError(t *testing.T) {
	svc, store, _, _ := newTestCapsuleService(t)
	boom := errors.New("connection reset")
	store.On("GetCapsuleForOwner", mock.Anything, "user-a", "c1").Return(nil, boom)

	_, err := svc.FetchOne(ctxFor("user-a"), "c1")
	require.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, ErrCapsuleNotFound)
}

func TestCapsuleService_Update(t *testing.T) {
	svc, store, media, recorder := newTestCapsuleService(t)

	capsule := storedCapsule("c1", "user-a", testNow.AddDate(0, 0, -1))
	oldImage := *capsule.Image
	newImage := "1700000000999-7.jpg"

	store.On("GetCapsuleForOwner", mock.Anything, "user-a", "c1").Return(capsule, nil)
	store.On("UpdateCapsule", mock.Anything, mock.MatchedBy(func(c *model.Capsule) bool {
		return c.Title == "New title" && c.Image != nil && *c.Image == newImage
	})).Return(nil)
	media.On("Delete", mock.Anything, oldImage).Return(nil)

	view, err := svc.Update(ctxFor("user-a"), UpdateCapsuleInput{
		ID:    "c1",
		Title: ptr("New title"),
		Media: storage.MediaRefs{Image: &newImage},
	})
	require.NoError(t, err)
	assert.Equal(t, "New title", view.Title)
	assert.Equal(t, capsule.Content, view.Content)
	assert.Equal(t, uint64(1), recorder.Snapshot().CapsulesUpdated)
}

func TestCapsuleService_Update_ClearAudioKeepsImage(t *testing.T) {
	svc, store, media, _ := newTestCapsuleService(t)

	capsule := storedCapsule("c1", "user-a", testNow.AddDate(0, 0, -1))
	capsule.Audio = ptr("1700000000000-3.mp3")
	image := *capsule.Image

	store.On("GetCapsuleForOwner", mock.Anything, "user-a", "c1").Return(capsule, nil)
	store.On("UpdateCapsule", mock.Anything, mock.MatchedBy(func(c *model.Capsule) bool {
		return c.Audio == nil && c.Image != nil && *c.Image == image
	})).Return(nil)
	media.On("Delete", mock.Anything, "1700000000000-3.mp3").Return(nil)

	_, err := svc.Update(ctxFor("user-a"), UpdateCapsuleInput{ID: "c1", ClearAudio: true})
	require.NoError(t, err)
}

func TestCapsuleService_Update_RejectsOpenDate(t *testing.T) {
	svc, _, _, _ := newTestCapsuleService(t)

	_, err := svc.Update(ctxFor("user-a"), UpdateCapsuleInput{ID: "c1", OpenDate: ptr("2020-01-01")})

	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "dataAbertura", ve.Field)
}

func TestCapsuleService_Update_InvalidTitle(t *testing.T) {
	svc, store, _, _ := newTestCapsuleService(t)
	store.On("GetCapsuleForOwner", mock.Anything, "user-a", "c1").
		Return(storedCapsule("c1", "user-a", testNow), nil)

	_, err := svc.Update(ctxFor("user-a"), UpdateCapsuleInput{ID: "c1", Title: ptr("")})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestCapsuleService_Update_Locked(t *testing.T) {
	svc, store, _, _ := newTestCapsuleService(t)

	capsule := storedCapsule("c1", "user-a", testNow.AddDate(1, 0, 0))
	store.On("GetCapsuleForOwner", mock.Anything, "user-a", "c1").Return(capsule, nil)
	store.On("UpdateCapsule", mock.Anything, mock.Anything).Return(nil)

	view, err := svc.Update(ctxFor("user-a"), UpdateCapsuleInput{ID: "c1", Content: ptr("changed")})
	require.NoError(t, err)
	assert.True(t, view.Locked())
	assert.Empty(t, view.Content)
}

func TestCapsuleService_Remove(t *testing.T) {
	svc, store, media, recorder := newTestCapsuleService(t)

	capsule := storedCapsule("c1", "user-a", testNow.AddDate(1, 0, 0))
	capsule.Audio = ptr("1700000000000-3.mp3")
	store.On("DeleteCapsuleForOwner", mock.Anything, "user-a", "c1").Return(capsule, nil)
	media.On("Delete", mock.Anything, "1700000000000-1.png").Return(nil)
	media.On("Delete", mock.Anything, "1700000000000-3.mp3").Return(errors.New("disk gone"))

	// Media cleanup failures are logged, not returned.
	require.NoError(t, svc.Remove(ctxFor("user-a"), "c1"))
	assert.Equal(t, uint64(1), recorder.Snapshot().CapsulesDeleted)
}

// liveContext matches contexts that have not been cancelled.
var liveContext = mock.MatchedBy(func(ctx context.Context) bool { return ctx.Err() == nil })

func TestCapsuleService_Remove_MediaCleanupOutlivesRequest(t *testing.T) {
	svc, store, media, _ := newTestCapsuleService(t)

	capsule := storedCapsule("c1", "user-a", testNow.AddDate(0, 0, -1))
	store.On("DeleteCapsuleForOwner", mock.Anything, "user-a", "c1").Return(capsule, nil)
	media.On("Delete", liveContext, "1700000000000-1.png").Return(nil).Once()

	ctx, cancel := context.WithCancel(ctxFor("user-a"))
	cancel()

	require.NoError(t, svc.Remove(ctx, "c1"))
}

func TestCapsuleService_Update_MediaCleanupOutlivesRequest(t *testing.T) {
	svc, store, media, _ := newTestCapsuleService(t)

	capsule := storedCapsule("c1", "user-a", testNow.AddDate(0, 0, -1))
	newImage := "1700000000999-7.jpg"
	store.On("GetCapsuleForOwner", mock.Anything, "user-a", "c1").Return(capsule, nil)
	store.On("UpdateCapsule", mock.Anything, mock.Anything).Return(nil)
	media.On("Delete", liveContext, "1700000000000-1.png").Return(nil).Once()

	ctx, cancel := context.WithCancel(ctxFor("user-a"))
	cancel()

	_, err := svc.Update(ctx, UpdateCapsuleInput{ID: "c1", Media: storage.MediaRefs{Image: &newImage}})
	require.NoError(t, err)
}

func TestCapsuleService_Remove_ForeignCapsule(t *testing.T) {
	svc, store, _, _ := newTestCapsuleService(t)
	store.On("DeleteCapsuleForOwner", mock.Anything, "user-b", "c1").Return(nil, repository.ErrCapsuleNotFound)

	assert.ErrorIs(t, svc.Remove(ctxFor("user-b"), "c1"), ErrCapsuleNotFound)
}

func TestCapsuleService_OpenMedia(t *testing.T) {
	ref := "1700000000000-1.png"

	t.Run("unlocked", func(t *testing.T) {
		svc, store, media, _ := newTestCapsuleService(t)
		store.On("GetCapsuleByMedia", mock.Anything, "user-a", ref).
			Return(storedCapsule("c1", "user-a", testNow.AddDate(0, 0, -1)), nil)
		obj := &storage.Object{Body: io.NopCloser(strings.NewReader("png")), ContentType: "image/png", Size: 3}
		media.On("Open", mock.Anything, ref).Return(obj, nil)

		got, err := svc.OpenMedia(ctxFor("user-a"), ref)
		require.NoError(t, err)
		assert.Equal(t, "image/png", got.ContentType)
	})

	t.Run("locked", func(t *testing.T) {
		svc, store, _, _ := newTestCapsuleService(t)
		store.On("GetCapsuleByMedia", mock.Anything, "user-a", ref).
			Return(storedCapsule("c1", "user-a", testNow.AddDate(0, 0, 1)), nil)

		_, err := svc.OpenMedia(ctxFor("user-a"), ref)
		assert.ErrorIs(t, err, ErrCapsuleNotFound)
	})

	t.Run("invalid name", func(t *testing.T) {
		svc, _, _, _ := newTestCapsuleService(t)

		_, err := svc.OpenMedia(ctxFor("user-a"), "../../etc/passwd")
		assert.ErrorIs(t, err, ErrCapsuleNotFound)
	})

	t.Run("ref not on returned capsule", func(t *testing.T) {
		svc, store, _, _ := newTestCapsuleService(t)
		other := storedCapsule("c1", "user-a", testNow.AddDate(0, 0, -1))
		other.Image = ptr("1700000000000-9.png")
		store.On("GetCapsuleByMedia", mock.Anything, "user-a", ref).Return(other, nil)

		_, err := svc.OpenMedia(ctxFor("user-a"), ref)
		assert.ErrorIs(t, err, ErrCapsuleNotFound)
	})

	t.Run("missing object", func(t *testing.T) {
		svc, store, media, _ := newTestCapsuleService(t)
		store.On("GetCapsuleByMedia", mock.Anything, "user-a", ref).
			Return(storedCapsule("c1", "user-a", testNow.AddDate(0, 0, -1)), nil)
		media.On("Open", mock.Anything, ref).Return(nil, storage.ErrObjectNotFound)

		_, err := svc.OpenMedia(ctxFor("user-a"), ref)
		assert.ErrorIs(t, err, ErrCapsuleNotFound)
	})
}

func TestParseOpenDate(t *testing.T) {
	tests := []struct {
		raw     string
		want    time.Time
		wantErr bool
	}{
		{"2030-01-01", time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC), false},
		{"2030-01-01T10:30:00Z", time.Date(2030, 1, 1, 10, 30, 0, 0, time.UTC), false},
		{"2030-01-01T10:30:00.250Z", time.Date(2030, 1, 1, 10, 30, 0, 250_000_000, time.UTC), false},
		{"2030-01-01T07:30:00-03:00", time.Date(2030, 1, 1, 10, 30, 0, 0, time.UTC), false},
		{"", time.Time{}, true},
		{"01/01/2030", time.Time{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, err := ParseOpenDate(tt.raw)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrValidation)
				return
			}
			require.NoError(t, err)
			assert.True(t, got.Equal(tt.want), "got %s want %s", got, tt.want)
			assert.Equal(t, time.UTC, got.Location())
		})
	}
}
