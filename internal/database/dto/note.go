package dto

import (
	"simplenotes/internal/database/models"
)

// CreateNote is the body of POST /api/notes. Every field is optional.
type CreateNote struct {
	Title    string   `json:"title"`
	Content  string   `json:"content"`
	Color    string   `json:"color" validate:"omitempty,notecolor"`
	Labels   []string `json:"labels" validate:"max=50,dive,max=100"`
	IsPinned bool     `json:"isPinned"`
}

// UpdateNote is the body of PUT /api/notes/:id; it replaces every mutable
// column.
type UpdateNote struct {
	Title    string   `json:"title"`
	Content  string   `json:"content"`
	Color    string   `json:"color" validate:"omitempty,notecolor"`
	Labels   []string `json:"labels" validate:"max=50,dive,max=100"`
	IsPinned bool     `json:"isPinned"`
	Archived bool     `json:"archived"`
}

type ArchiveNote struct {
	Archived *bool `json:"archived" validate:"required"`
}

type PinNote struct {
	IsPinned *bool `json:"isPinned" validate:"required"`
}

// noteDefaults holds the values a new or replaced note takes for fields the
// client left empty.
var noteDefaults = models.Note{
	Color:  models.DefaultColor,
	Labels: []string{},
}

func (r CreateNote) Note() models.Note {
	return withDefaults(models.Note{
		Title:    r.Title,
		Content:  r.Content,
		Color:    r.Color,
		Labels:   r.Labels,
		IsPinned: r.IsPinned,
	})
}

func (r UpdateNote) Note(id int64) models.Note {
	return withDefaults(models.Note{
		ID:       id,
		Title:    r.Title,
		Content:  r.Content,
		Color:    r.Color,
		Labels:   r.Labels,
		IsPinned: r.IsPinned,
		Archived: r.Archived,
	})
}

func withDefaults(n models.Note) models.Note {
	if n.Color == "" {
		n.Color = noteDefaults.Color
	}
	if n.Labels == nil {
		n.Labels = append([]string{}, noteDefaults.Labels...)
	}
	return n
}
