package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"simplenotes/internal/database"
	"simplenotes/internal/database/models"
)

var ErrNoteNotFound = errors.New("note not found")

type NoteRepository interface {
	GetActive(ctx context.Context) ([]models.Note, error)
	GetArchived(ctx context.Context) ([]models.Note, error)
	Create(ctx context.Context, note *models.Note) error
	Update(ctx context.Context, note *models.Note) error
	Delete(ctx context.Context, id int64) error
	SetArchived(ctx context.Context, id int64, archived bool) (*models.Note, error)
	SetPinned(ctx context.Context, id int64, pinned bool) (*models.Note, error)
}

// Executor runs one database operation; database.Service satisfies it.
type Executor interface {
	Execute(ctx context.Context, op database.Operation) error
}

const noteColumns = `id, COALESCE(title, ''), COALESCE(content, ''), COALESCE(color, '` + models.DefaultColor + `'),
	COALESCE(labels, '{}'), is_pinned, archived, created_at, updated_at`

type noteRepository struct {
	db Executor
}

func NewNoteRepository(db Executor) NoteRepository {
	return &noteRepository{db: db}
}

func scanNote(row pgx.Row, note *models.Note) error {
	return row.Scan(
		&note.ID,
		&note.Title,
		&note.Content,
		&note.Color,
		&note.Labels,
		&note.IsPinned,
		&note.Archived,
		&note.CreatedAt,
		&note.UpdatedAt,
	)
}

func (r *noteRepository) GetActive(ctx context.Context) ([]models.Note, error) {
	query := `SELECT ` + noteColumns + ` FROM notes WHERE archived = false ORDER BY is_pinned DESC, created_at DESC`
	notes, err := r.list(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("error querying notes: %w", err)
	}
	return notes, nil
}

func (r *noteRepository) GetArchived(ctx context.Context) ([]models.Note, error) {
	query := `SELECT ` + noteColumns + ` FROM notes WHERE archived = true ORDER BY updated_at DESC`
	notes, err := r.list(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("error querying archived notes: %w", err)
	}
	return notes, nil
}

func (r *noteRepository) list(ctx context.Context, query string) ([]models.Note, error) {
	var notes []models.Note
	err := r.db.Execute(ctx, func(ctx context.Context, db database.Pool) error {
		// A retried attempt starts from scratch.
		notes = []models.Note{}
		rows, err := db.Query(ctx, query)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var note models.Note
			if err := scanNote(rows, &note); err != nil {
				return fmt.Errorf("error scanning note: %w", err)
			}
			notes = append(notes, note)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return notes, nil
}

func (r *noteRepository) Create(ctx context.Context, note *models.Note) error {
	query := `
		INSERT INTO notes (title, content, color, labels, is_pinned, archived)
		VALUES ($1, $2, $3, $4, $5, false)
		RETURNING ` + noteColumns
	err := r.db.Execute(ctx, func(ctx context.Context, db database.Pool) error {
		return scanNote(db.QueryRow(ctx, query, note.Title, note.Content, note.Color, note.Labels, note.IsPinned), note)
	})
	if err != nil {
		return fmt.Errorf("error creating note: %w", err)
	}
	return nil
}

func (r *noteRepository) Update(ctx context.Context, note *models.Note) error {
	query := `
		UPDATE notes
		SET title = $1, content = $2, color = $3, labels = $4, is_pinned = $5, archived = $6, updated_at = NOW()
		WHERE id = $7
		RETURNING ` + noteColumns
	err := r.db.Execute(ctx, func(ctx context.Context, db database.Pool) error {
		return notFound(scanNote(db.QueryRow(ctx, query,
			note.Title, note.Content, note.Color, note.Labels, note.IsPinned, note.Archived, note.ID), note))
	})
	if err != nil {
		return fmt.Errorf("error updating note %d: %w", note.ID, err)
	}
	return nil
}

func (r *noteRepository) Delete(ctx context.Context, id int64) error {
	query := `DELETE FROM notes WHERE id = $1 RETURNING id`
	err := r.db.Execute(ctx, func(ctx context.Context, db database.Pool) error {
		var deleted int64
		return notFound(db.QueryRow(ctx, query, id).Scan(&deleted))
	})
	if err != nil {
		return fmt.Errorf("error deleting note %d: %w", id, err)
	}
	return nil
}

func (r *noteRepository) SetArchived(ctx context.Context, id int64, archived bool) (*models.Note, error) {
	query := `UPDATE notes SET archived = $1, updated_at = NOW() WHERE id = $2 RETURNING ` + noteColumns
	note, err := r.patch(ctx, query, archived, id)
	if err != nil {
		return nil, fmt.Errorf("error archiving note %d: %w", id, err)
	}
	return note, nil
}

func (r *noteRepository) SetPinned(ctx context.Context, id int64, pinned bool) (*models.Note, error) {
	query := `UPDATE notes SET is_pinned = $1, updated_at = NOW() WHERE id = $2 RETURNING ` + noteColumns
	note, err := r.patch(ctx, query, pinned, id)
	if err != nil {
		return nil, fmt.Errorf("error pinning note %d: %w", id, err)
	}
	return note, nil
}

func (r *noteRepository) patch(ctx context.Context, query string, flag bool, id int64) (*models.Note, error) {
	note := models.Note{}
	err := r.db.Execute(ctx, func(ctx context.Context, db database.Pool) error {
		return notFound(scanNote(db.QueryRow(ctx, query, flag, id), &note))
	})
	if err != nil {
		return nil, err
	}
	return &note, nil
}

func notFound(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNoteNotFound
	}
	return err
}
