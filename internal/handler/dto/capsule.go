// Package dto provides Data Transfer Objects for API requests and responses.
// Field names follow the mobile client's Portuguese wire format.
package dto

import (
	"time"

	"github.com/timecapsule/timecapsule/internal/model"
	"github.com/timecapsule/timecapsule/internal/service"
)

// CreateCapsuleRequest is the JSON body for creating a capsule without media.
type CreateCapsuleRequest struct {
	Titulo       string `json:"titulo"`
	Conteudo     string `json:"conteudo"`
	DataAbertura string `json:"dataAbertura"`
	Categoria    string `json:"categoria,omitempty"`
}

// UpdateCapsuleRequest is the partial update body. Absent fields are unchanged.
type UpdateCapsuleRequest struct {
	Titulo        *string `json:"titulo,omitempty"`
	Conteudo      *string `json:"conteudo,omitempty"`
	Categoria     *string `json:"categoria,omitempty"`
	DataAbertura  *string `json:"dataAbertura,omitempty"`
	RemoverImagem bool    `json:"removerImagem,omitempty"`
	RemoverAudio  bool    `json:"removerAudio,omitempty"`
}

// CapsuleResponse is a capsule with its resolved status.
// Conteudo, Imagem and Audio are omitted while the capsule is locked.
type CapsuleResponse struct {
	ID           string    `json:"id"`
	Titulo       string    `json:"titulo"`
	Conteudo     string    `json:"conteudo,omitempty"`
	DataAbertura time.Time `json:"dataAbertura"`
	Categoria    string    `json:"categoria"`
	Imagem       *string   `json:"imagem,omitempty"`
	Audio        *string   `json:"audio,omitempty"`
	Status       string    `json:"status"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// CapsuleListResponse wraps the capsule list.
type CapsuleListResponse struct {
	Data []CapsuleResponse `json:"data"`
}

// LockedCapsuleResponse replaces a capsule that cannot be opened yet.
type LockedCapsuleResponse struct {
	Mensagem string `json:"mensagem"`
	Status   string `json:"status"`
}

// ToCapsuleResponse converts a stored capsule. The caller resolves the state.
func ToCapsuleResponse(c *model.Capsule, state model.LockState) CapsuleResponse {
	return CapsuleResponse{
		ID:           c.ID,
		Titulo:       c.Title,
		Conteudo:     c.Content,
		DataAbertura: c.OpenDate,
		Categoria:    string(c.Category),
		Imagem:       c.Image,
		Audio:        c.Audio,
		Status:       state.Status(),
		CreatedAt:    c.CreatedAt,
		UpdatedAt:    c.UpdatedAt,
	}
}

// FromView converts a resolved capsule view.
func FromView(v *service.CapsuleView) CapsuleResponse {
	return CapsuleResponse{
		ID:           v.ID,
		Titulo:       v.Title,
		Conteudo:     v.Content,
		DataAbertura: v.OpenDate,
		Categoria:    string(v.Category),
		Imagem:       v.Image,
		Audio:        v.Audio,
		Status:       v.State.Status(),
		CreatedAt:    v.CreatedAt,
		UpdatedAt:    v.UpdatedAt,
	}
}

// ToCapsuleListResponse converts list views. An empty list encodes as [].
func ToCapsuleListResponse(views []service.CapsuleView) CapsuleListResponse {
	data := make([]CapsuleResponse, 0, len(views))
	for i := range views {
		data = append(data, FromView(&views[i]))
	}
	return CapsuleListResponse{Data: data}
}

// ToLockedResponse builds the body for a locked capsule.
func ToLockedResponse() LockedCapsuleResponse {
	return LockedCapsuleResponse{
		Mensagem: service.LockedMessage,
		Status:   model.StatusClosed,
	}
}
