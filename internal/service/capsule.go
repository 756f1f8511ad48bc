package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/timecapsule/timecapsule/internal/auth"
	"github.com/timecapsule/timecapsule/internal/metrics"
	"github.com/timecapsule/timecapsule/internal/model"
	"github.com/timecapsule/timecapsule/internal/repository"
	"github.com/timecapsule/timecapsule/internal/storage"
)

const (
	maxTitleLength   = 200
	maxContentLength = 10000

	// LockedMessage is returned in place of a locked capsule's content.
	LockedMessage = "Cápsula ainda não pode ser aberta"
)

// CapsuleStore is the persistence the capsule service needs.
type CapsuleStore interface {
	CreateCapsule(ctx context.Context, c *model.Capsule) error
	ListCapsulesByOwner(ctx context.Context, ownerID string) ([]*model.Capsule, error)
	GetCapsuleForOwner(ctx context.Context, ownerID, id string) (*model.Capsule, error)
	GetCapsuleByMedia(ctx context.Context, ownerID, ref string) (*model.Capsule, error)
	UpdateCapsule(ctx context.Context, c *model.Capsule) error
	DeleteCapsuleForOwner(ctx context.Context, ownerID, id string) (*model.Capsule, error)
}

// MediaStore reads and removes stored media objects.
type MediaStore interface {
	Open(ctx context.Context, name string) (*storage.Object, error)
	Delete(ctx context.Context, name string) error
}

// CapsuleView is a capsule annotated with its lock state.
// When locked, Content, Image and Audio are always empty.
type CapsuleView struct {
	ID        string
	Title     string
	Content   string
	OpenDate  time.Time
	Category  model.Category
	Image     *string
	Audio     *string
	CreatedAt time.Time
	UpdatedAt time.Time
	State     model.LockState
}

// Locked reports whether the view hides the capsule body.
func (v *CapsuleView) Locked() bool {
	return v.State.IsLocked()
}

// viewOf resolves the lock state and strips the body of a locked capsule.
func viewOf(c *model.Capsule, now time.Time) CapsuleView {
	v := CapsuleView{
		ID:        c.ID,
		Title:     c.Title,
		OpenDate:  c.OpenDate,
		Category:  c.Category,
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
		State:     c.LockState(now),
	}
	if !v.State.IsLocked() {
		v.Content = c.Content
		v.Image = c.Image
		v.Audio = c.Audio
	}
	return v
}

// CapsuleService orchestrates capsule operations for the authenticated caller.
type CapsuleService struct {
	store   CapsuleStore
	media   MediaStore
	logger  *slog.Logger
	metrics metrics.Recorder
	now     func() time.Time
}

// NewCapsuleService creates a new CapsuleService.
func NewCapsuleService(store CapsuleStore, media MediaStore, logger *slog.Logger, recorder metrics.Recorder) *CapsuleService {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &CapsuleService{
		store:   store,
		media:   media,
		logger:  logger.With("component", "capsule.service"),
		metrics: recorder,
		now:     time.Now,
	}
}

// CreateCapsuleInput defines input for creating a capsule.
type CreateCapsuleInput struct {
	Title    string
	Content  string
	OpenDate string
	Category string
	Media    storage.MediaRefs
}

// Create validates the input and stores a capsule owned by the caller.
// Media references must come from the Uploader and already point at stored objects.
func (s *CapsuleService) Create(ctx context.Context, input CreateCapsuleInput) (*model.Capsule, error) {
	ownerID, err := auth.Authorize(ctx)
	if err != nil {
		return nil, err
	}

	title, err := validateText("titulo", input.Title, maxTitleLength)
	if err != nil {
		return nil, err
	}
	content, err := validateText("conteudo", input.Content, maxContentLength)
	if err != nil {
		return nil, err
	}
	openDate, err := ParseOpenDate(input.OpenDate)
	if err != nil {
		return nil, err
	}
	category, ok := model.ParseCategory(input.Category)
	if !ok {
		return nil, validationError("categoria", "must be one of pessoal, familia, trabalho, meta, viagem")
	}

	now := s.now().UTC()
	capsule := &model.Capsule{
		ID:        ulid.Make().String(),
		OwnerID:   ownerID,
		Title:     title,
		Content:   content,
		OpenDate:  openDate,
		Category:  category,
		Image:     input.Media.Image,
		Audio:     input.Media.Audio,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.store.CreateCapsule(ctx, capsule); err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			// Token outlived its account.
			return nil, ErrNotAuthenticated
		}
		return nil, fmt.Errorf("failed to create capsule: %w", err)
	}

	s.metrics.IncCapsuleCreated()
	s.logger.Info("capsule_created",
		"capsule_id", capsule.ID,
		"owner_id", ownerID,
		"open_date", openDate,
		"category", category,
	)

	return capsule, nil
}

// ListForOwner returns the caller's capsules, latest open date first.
func (s *CapsuleService) ListForOwner(ctx context.Context) ([]CapsuleView, error) {
	ownerID, err := auth.Authorize(ctx)
	if err != nil {
		return nil, err
	}

	capsules, err := s.store.ListCapsulesByOwner(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list capsules: %w", err)
	}

	// The store already orders rows; sorting here keeps the guarantee independent of it.
	sort.SliceStable(capsules, func(i, j int) bool {
		return capsules[i].OpenDate.After(capsules[j].OpenDate)
	})

	now := s.now()
	views := make([]CapsuleView, 0, len(capsules))
	for _, c := range capsules {
		views = append(views, viewOf(c, now))
	}

	return views, nil
}

// FetchOne returns one of the caller's capsules. A locked capsule comes back
// with only its ID and lock state.
func (s *CapsuleService) FetchOne(ctx context.Context, id string) (*CapsuleView, error) {
	ownerID, err := auth.Authorize(ctx)
	if err != nil {
		return nil, err
	}

	capsule, err := s.getOwned(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}

	now := s.now()
	state := capsule.LockState(now)
	s.metrics.IncCapsuleFetched(string(state))

	if state.IsLocked() {
		return &CapsuleView{ID: capsule.ID, State: state}, nil
	}

	view := viewOf(capsule, now)
	return &view, nil
}

// UpdateCapsuleInput defines a partial update. Nil fields are left unchanged.
// OpenDate exists only to be rejected: the open date is immutable.
// Media holds objects uploaded with this request; they replace the current ones.
type UpdateCapsuleInput struct {
	ID         string
	Title      *string
	Content    *string
	Category   *string
	OpenDate   *string
	Media      storage.MediaRefs
	ClearImage bool
	ClearAudio bool
}

// Update applies a partial update to one of the caller's capsules.
func (s *CapsuleService) Update(ctx context.Context, input UpdateCapsuleInput) (*CapsuleView, error) {
	ownerID, err := auth.Authorize(ctx)
	if err != nil {
		return nil, err
	}

	if input.OpenDate != nil {
		return nil, validationError("dataAbertura", "open date cannot be changed")
	}

	capsule, err := s.getOwned(ctx, ownerID, input.ID)
	if err != nil {
		return nil, err
	}

	if input.Title != nil {
		if capsule.Title, err = validateText("titulo", *input.Title, maxTitleLength); err != nil {
			return nil, err
		}
	}
	if input.Content != nil {
		if capsule.Content, err = validateText("conteudo", *input.Content, maxContentLength); err != nil {
			return nil, err
		}
	}
	if input.Category != nil {
		category, ok := model.ParseCategory(*input.Category)
		if !ok {
			return nil, validationError("categoria", "must be one of pessoal, familia, trabalho, meta, viagem")
		}
		capsule.Category = category
	}

	var replaced []string
	capsule.Image, replaced = swapRef(capsule.Image, input.Media.Image, input.ClearImage, replaced)
	capsule.Audio, replaced = swapRef(capsule.Audio, input.Media.Audio, input.ClearAudio, replaced)

	if err := s.store.UpdateCapsule(ctx, capsule); err != nil {
		if errors.Is(err, repository.ErrCapsuleNotFound) {
			return nil, ErrCapsuleNotFound
		}
		return nil, fmt.Errorf("failed to update capsule: %w", err)
	}

	s.metrics.IncCapsuleUpdated()
	s.logger.Info("capsule_updated", "capsule_id", capsule.ID, "owner_id", ownerID)

	s.deleteMedia(ctx, capsule.ID, replaced)

	view := viewOf(capsule, s.now())
	return &view, nil
}

// Remove deletes one of the caller's capsules and then its media.
func (s *CapsuleService) Remove(ctx context.Context, id string) error {
	ownerID, err := auth.Authorize(ctx)
	if err != nil {
		return err
	}

	deleted, err := s.store.DeleteCapsuleForOwner(ctx, ownerID, id)
	if err != nil {
		if errors.Is(err, repository.ErrCapsuleNotFound) {
			return ErrCapsuleNotFound
		}
		return fmt.Errorf("failed to delete capsule: %w", err)
	}

	s.metrics.IncCapsuleDeleted()
	s.logger.Info("capsule_deleted", "capsule_id", deleted.ID, "owner_id", ownerID)

	s.deleteMedia(ctx, deleted.ID, deleted.MediaRefs())
	return nil
}

// OpenMedia opens a media object of one of the caller's unlocked capsules.
// Media of locked or foreign capsules is reported as ErrCapsuleNotFound.
func (s *CapsuleService) OpenMedia(ctx context.Context, ref string) (*storage.Object, error) {
	ownerID, err := auth.Authorize(ctx)
	if err != nil {
		return nil, err
	}
	if !storage.ValidName(ref) {
		return nil, ErrCapsuleNotFound
	}

	capsule, err := s.store.GetCapsuleByMedia(ctx, ownerID, ref)
	if err != nil {
		if errors.Is(err, repository.ErrCapsuleNotFound) {
			return nil, ErrCapsuleNotFound
		}
		return nil, fmt.Errorf("failed to find media owner: %w", err)
	}
	if !capsule.HasMedia(ref) || capsule.LockState(s.now()).IsLocked() {
		return nil, ErrCapsuleNotFound
	}

	obj, err := s.media.Open(ctx, ref)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			return nil, ErrCapsuleNotFound
		}
		return nil, fmt.Errorf("failed to open media: %w", err)
	}
	return obj, nil
}

func (s *CapsuleService) getOwned(ctx context.Context, ownerID, id string) (*model.Capsule, error) {
	capsule, err := s.store.GetCapsuleForOwner(ctx, ownerID, id)
	if err != nil {
		if errors.Is(err, repository.ErrCapsuleNotFound) {
			return nil, ErrCapsuleNotFound
		}
		return nil, fmt.Errorf("failed to get capsule: %w", err)
	}
	return capsule, nil
}

// deleteMedia removes objects best effort; the capsule row is already gone or updated.
// It outlives the request so a client disconnect cannot orphan objects.
func (s *CapsuleService) deleteMedia(ctx context.Context, capsuleID string, refs []string) {
	if s.media == nil || len(refs) == 0 {
		return
	}
	ctx = context.WithoutCancel(ctx)
	for _, ref := range refs {
		if err := s.media.Delete(ctx, ref); err != nil {
			s.logger.Warn("failed to delete capsule media",
				"capsule_id", capsuleID,
				"media", ref,
				"error", err,
			)
		}
	}
}

// ParseOpenDate accepts RFC 3339 (fractional seconds allowed) or YYYY-MM-DD
// (midnight UTC) and returns the instant in UTC.
func ParseOpenDate(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, validationError("dataAbertura", "is required")
	}

	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t.UTC(), nil
	}
	if t, err := time.Parse(time.DateOnly, raw); err == nil {
		return t.UTC(), nil
	}

	return time.Time{}, validationError("dataAbertura", "must be an RFC 3339 timestamp or YYYY-MM-DD date")
}

func validateText(field, raw string, maxLen int) (string, error) {
	value := strings.TrimSpace(raw)
	if value == "" {
		return "", validationError(field, "is required")
	}
	if len([]rune(value)) > maxLen {
		return "", validationError(field, fmt.Sprintf("must be at most %d characters", maxLen))
	}
	return value, nil
}

// swapRef returns the new media reference and records the old one for deletion
// when it is replaced or cleared.
func swapRef(current, uploaded *string, clear bool, replaced []string) (*string, []string) {
	next := current
	switch {
	case uploaded != nil:
		next = uploaded
	case clear:
		next = nil
	}
	if current != nil && (next == nil || *next != *current) {
		replaced = append(replaced, *current)
	}
	return next, replaced
}
