package types

import (
	"strings"
)

// Request bodies accepted by the HTTP API. Tags are enforced by
// go-playground/validator at the boundary; notblank is registered by the API
// validator and rejects whitespace-only strings.

type RegisterRequest struct {
	Name     string `json:"name" validate:"required,notblank,max=100"`
	Email    string `json:"email" validate:"required,email,max=200"`
	Password string `json:"password" validate:"required,min=6,max=72"`
	LevelTag string `json:"level_tag" validate:"required,max=20"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type UpdateProfileRequest struct {
	Name     string `json:"name" validate:"required,notblank,max=100"`
	LevelTag string `json:"level_tag" validate:"required,max=20"`
}

// MatchRequest asks the room matcher for a room. Mode must name a known
// capacity.
type MatchRequest struct {
	LevelTag string `json:"level_tag" validate:"required,max=20"`
	Subject  string `json:"subject" validate:"required,max=100"`
	Mode     string `json:"mode" validate:"required,oneof=one_on_one group"`
}

type NoteRequest struct {
	Content string `json:"content" validate:"required,notblank,max=10000"`
}

// Normalize trims user supplied text fields in place.
func (r *RegisterRequest) Normalize() {
	r.Name = strings.TrimSpace(r.Name)
	r.Email = strings.ToLower(strings.TrimSpace(r.Email))
	r.LevelTag = strings.TrimSpace(r.LevelTag)
}

func (r *LoginRequest) Normalize() {
	r.Email = strings.ToLower(strings.TrimSpace(r.Email))
}

func (r *UpdateProfileRequest) Normalize() {
	r.Name = strings.TrimSpace(r.Name)
	r.LevelTag = strings.TrimSpace(r.LevelTag)
}

func (r *MatchRequest) Normalize() {
	r.LevelTag = strings.TrimSpace(r.LevelTag)
	r.Subject = strings.TrimSpace(r.Subject)
	r.Mode = strings.TrimSpace(r.Mode)
}

func (r *NoteRequest) Normalize() {
	r.Content = strings.TrimSpace(r.Content)
}
