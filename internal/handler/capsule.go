package handler

import (
	"context"
	"errors"
	"log/slog"
	"mime"
	"mime/multipart"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/timecapsule/timecapsule/internal/handler/dto"
	"github.com/timecapsule/timecapsule/internal/model"
	"github.com/timecapsule/timecapsule/internal/service"
	"github.com/timecapsule/timecapsule/internal/storage"
)

// multipartMemory is how much of a multipart body is kept in memory before
// spilling file parts to disk.
const multipartMemory = 8 << 20

// CapsuleService is the capsule lifecycle used by the handlers.
type CapsuleService interface {
	Create(ctx context.Context, input service.CreateCapsuleInput) (*model.Capsule, error)
	ListForOwner(ctx context.Context) ([]service.CapsuleView, error)
	FetchOne(ctx context.Context, id string) (*service.CapsuleView, error)
	Update(ctx context.Context, input service.UpdateCapsuleInput) (*service.CapsuleView, error)
	Remove(ctx context.Context, id string) error
	OpenMedia(ctx context.Context, ref string) (*storage.Object, error)
}

// MediaUploader stores uploaded files and removes them again on failure.
type MediaUploader interface {
	Accept(ctx context.Context, files []*multipart.FileHeader) (storage.MediaRefs, error)
	Discard(ctx context.Context, refs storage.MediaRefs) error
}

// CapsuleHandler handles HTTP requests for capsule operations.
type CapsuleHandler struct {
	svc      CapsuleService
	uploader MediaUploader
	logger   *slog.Logger
	now      func() time.Time
}

// NewCapsuleHandler creates a new CapsuleHandler.
func NewCapsuleHandler(svc CapsuleService, uploader MediaUploader, logger *slog.Logger) *CapsuleHandler {
	return &CapsuleHandler{
		svc:      svc,
		uploader: uploader,
		logger:   logger,
		now:      time.Now,
	}
}

// Create handles POST /capsule.
// Accepts multipart/form-data with up to two media files under "files", or a JSON body.
func (h *CapsuleHandler) Create(w http.ResponseWriter, r *http.Request) {
	var (
		input service.CreateCapsuleInput
		files []*multipart.FileHeader
	)

	if isMultipart(r) {
		if err := r.ParseMultipartForm(multipartMemory); err != nil {
			h.writeMultipartError(w, err)
			return
		}
		defer func() { _ = r.MultipartForm.RemoveAll() }()

		form := r.MultipartForm
		input.Title, _ = formValue(form, "titulo")
		input.Content, _ = formValue(form, "conteudo")
		input.OpenDate, _ = formValue(form, "dataAbertura")
		input.Category, _ = formValue(form, "categoria")
		files = form.File["files"]
	} else {
		var req dto.CreateCapsuleRequest
		if err := decodeJSON(r, &req); err != nil {
			writeDecodeError(w, err)
			return
		}
		input = service.CreateCapsuleInput{
			Title:    req.Titulo,
			Content:  req.Conteudo,
			OpenDate: req.DataAbertura,
			Category: req.Categoria,
		}
	}

	refs, err := h.uploader.Accept(r.Context(), files)
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}
	input.Media = refs

	capsule, err := h.svc.Create(r.Context(), input)
	if err != nil {
		h.discard(r.Context(), refs)
		handleServiceError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusCreated, dto.ToCapsuleResponse(capsule, capsule.LockState(h.now())))
}

// List handles GET /capsule.
func (h *CapsuleHandler) List(w http.ResponseWriter, r *http.Request) {
	views, err := h.svc.ListForOwner(r.Context())
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.ToCapsuleListResponse(views))
}

// Get handles GET /capsule/{id}.
// A locked capsule is answered with a message and status only.
func (h *CapsuleHandler) Get(w http.ResponseWriter, r *http.Request) {
	view, err := h.svc.FetchOne(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}

	if view.Locked() {
		writeJSON(w, http.StatusOK, dto.ToLockedResponse())
		return
	}
	writeJSON(w, http.StatusOK, dto.FromView(view))
}

// Update handles PATCH /capsule/{id}.
// Accepts a JSON body, or multipart/form-data when replacing media.
func (h *CapsuleHandler) Update(w http.ResponseWriter, r *http.Request) {
	input := service.UpdateCapsuleInput{ID: chi.URLParam(r, "id")}
	var files []*multipart.FileHeader

	if isMultipart(r) {
		if err := r.ParseMultipartForm(multipartMemory); err != nil {
			h.writeMultipartError(w, err)
			return
		}
		defer func() { _ = r.MultipartForm.RemoveAll() }()

		form := r.MultipartForm
		input.Title = optionalFormValue(form, "titulo")
		input.Content = optionalFormValue(form, "conteudo")
		input.Category = optionalFormValue(form, "categoria")
		input.OpenDate = optionalFormValue(form, "dataAbertura")
		input.ClearImage = formBool(form, "removerImagem")
		input.ClearAudio = formBool(form, "removerAudio")
		files = form.File["files"]
	} else {
		var req dto.UpdateCapsuleRequest
		if err := decodeJSON(r, &req); err != nil {
			writeDecodeError(w, err)
			return
		}
		input.Title = req.Titulo
		input.Content = req.Conteudo
		input.Category = req.Categoria
		input.OpenDate = req.DataAbertura
		input.ClearImage = req.RemoverImagem
		input.ClearAudio = req.RemoverAudio
	}

	refs, err := h.uploader.Accept(r.Context(), files)
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}
	input.Media = refs

	view, err := h.svc.Update(r.Context(), input)
	if err != nil {
		h.discard(r.Context(), refs)
		handleServiceError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.FromView(view))
}

// Delete handles DELETE /capsule/{id}.
func (h *CapsuleHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Remove(r.Context(), chi.URLParam(r, "id")); err != nil {
		handleServiceError(w, h.logger, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// discard removes objects stored for a request that did not complete.
func (h *CapsuleHandler) discard(ctx context.Context, refs storage.MediaRefs) {
	if len(refs.Names()) == 0 {
		return
	}
	if err := h.uploader.Discard(context.WithoutCancel(ctx), refs); err != nil {
		h.logger.Warn("failed to discard uploaded media", "media", refs.Names(), "error", err)
	}
}

func (h *CapsuleHandler) writeMultipartError(w http.ResponseWriter, err error) {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		writeError(w, http.StatusRequestEntityTooLarge, "PAYLOAD_TOO_LARGE", "Request body too large")
		return
	}
	writeError(w, http.StatusBadRequest, "INVALID_MULTIPART", "Invalid multipart body")
}

func isMultipart(r *http.Request) bool {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return err == nil && mediaType == "multipart/form-data"
}

func formValue(form *multipart.Form, key string) (string, bool) {
	values, ok := form.Value[key]
	if !ok || len(values) == 0 {
		return "", false
	}
	return values[0], true
}

func optionalFormValue(form *multipart.Form, key string) *string {
	v, ok := formValue(form, key)
	if !ok {
		return nil
	}
	return &v
}

func formBool(form *multipart.Form, key string) bool {
	v, _ := formValue(form, key)
	b, _ := strconv.ParseBool(v)
	return b
}
