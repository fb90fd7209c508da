package models

import (
	"time"
)

const DefaultColor = "#ffffff"

type Note struct {
	ID        int64     `json:"id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	Color     string    `json:"color"`
	Labels    []string  `json:"labels"`
	IsPinned  bool      `json:"is_pinned"`
	Archived  bool      `json:"archived"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
