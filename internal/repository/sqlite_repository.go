package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"openchat/assistant/internal/model"
)

// dbtx is the subset of *sql.Tx the repository needs.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type sqliteRepository struct {
	db dbtx
}

// NewSQLiteRepository binds the table operations to tx.
func NewSQLiteRepository(tx dbtx) Repository {
	return &sqliteRepository{db: tx}
}

// --- Groups ---

func (r *sqliteRepository) InsertGroup(ctx context.Context, group *model.Group) error {
	query := "INSERT INTO groups (id, timestamp, name, origin) VALUES (?, ?, ?, ?)"
	_, err := r.db.ExecContext(ctx, query, group.ID, group.Timestamp, group.Name, group.Origin)
	if err != nil {
		return fmt.Errorf("could not insert group: %w", err)
	}
	return nil
}

func (r *sqliteRepository) GetGroup(ctx context.Context, groupID string) (*model.Group, error) {
	query := "SELECT id, timestamp, name, origin FROM groups WHERE id = ?"
	var g model.Group
	err := r.db.QueryRowContext(ctx, query, groupID).Scan(&g.ID, &g.Timestamp, &g.Name, &g.Origin)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &g, nil
}

func (r *sqliteRepository) ListGroups(ctx context.Context) ([]model.GroupSummary, error) {
	query := `
		SELECT g.id, g.timestamp, g.name, g.origin, COUNT(m.id)
		FROM groups g
		LEFT JOIN messages m ON m.group_id = g.id
		GROUP BY g.id
		ORDER BY g.timestamp DESC
	`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	groups := []model.GroupSummary{}
	for rows.Next() {
		var g model.GroupSummary
		if err := rows.Scan(&g.ID, &g.Timestamp, &g.Name, &g.Origin, &g.MessageCount); err != nil {
			return nil, err
		}
		groups = append(groups, g)
	}
	return groups, rows.Err()
}

func (r *sqliteRepository) UpdateGroupName(ctx context.Context, groupID, name string) error {
	res, err := r.db.ExecContext(ctx, "UPDATE groups SET name = ? WHERE id = ?", name, groupID)
	if err != nil {
		return fmt.Errorf("could not rename group: %w", err)
	}
	return requireAffected(res)
}

func (r *sqliteRepository) DeleteGroup(ctx context.Context, groupID string) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM groups WHERE id = ?", groupID)
	if err != nil {
		return fmt.Errorf("could not delete group: %w", err)
	}
	return requireAffected(res)
}

func (r *sqliteRepository) CountGroups(ctx context.Context) (int, error) {
	return r.count(ctx, "SELECT COUNT(*) FROM groups")
}

func (r *sqliteRepository) EmptyGroupIDs(ctx context.Context) ([]string, error) {
	query := `
		SELECT g.id FROM groups g
		WHERE NOT EXISTS (SELECT 1 FROM messages m WHERE m.group_id = g.id)
	`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// --- Messages ---

func (r *sqliteRepository) InsertMessage(ctx context.Context, message *model.Message) error {
	query := `
		INSERT INTO messages (id, timestamp, group_id, request, content, image_ref, file_ref)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	_, err := r.db.ExecContext(ctx, query,
		message.ID,
		message.Timestamp,
		message.GroupID,
		message.Request,
		message.Content,
		nullString(message.ImageRef),
		nullString(message.FileRef),
	)
	if err != nil {
		return fmt.Errorf("could not insert message: %w", err)
	}
	return nil
}

func (r *sqliteRepository) ListMessages(ctx context.Context, groupID string) ([]model.Message, error) {
	query := `
		SELECT id, timestamp, group_id, request, content, image_ref, file_ref
		FROM messages
		WHERE group_id = ?
		ORDER BY timestamp ASC, rowid ASC
	`
	return r.queryMessages(ctx, query, groupID)
}

// RecentMessages returns at most limit messages of the group, newest first.
func (r *sqliteRepository) RecentMessages(ctx context.Context, groupID string, limit int) ([]model.Message, error) {
	if limit <= 0 {
		return []model.Message{}, nil
	}
	query := `
		SELECT id, timestamp, group_id, request, content, image_ref, file_ref
		FROM messages
		WHERE group_id = ?
		ORDER BY timestamp DESC, rowid DESC
		LIMIT ?
	`
	return r.queryMessages(ctx, query, groupID, limit)
}

func (r *sqliteRepository) CountMessages(ctx context.Context, groupID string) (int, error) {
	return r.count(ctx, "SELECT COUNT(*) FROM messages WHERE group_id = ?", groupID)
}

func (r *sqliteRepository) DeleteMessagesByGroup(ctx context.Context, groupID string) (int64, error) {
	res, err := r.db.ExecContext(ctx, "DELETE FROM messages WHERE group_id = ?", groupID)
	if err != nil {
		return 0, fmt.Errorf("could not delete messages: %w", err)
	}
	return res.RowsAffected()
}

func (r *sqliteRepository) queryMessages(ctx context.Context, query string, args ...any) ([]model.Message, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	messages := []model.Message{}
	for rows.Next() {
		var msg model.Message
		var imageRef, fileRef sql.NullString
		if err := rows.Scan(&msg.ID, &msg.Timestamp, &msg.GroupID, &msg.Request, &msg.Content, &imageRef, &fileRef); err != nil {
			return nil, err
		}
		if imageRef.Valid {
			msg.ImageRef = &imageRef.String
		}
		if fileRef.Valid {
			msg.FileRef = &fileRef.String
		}
		messages = append(messages, msg)
	}
	return messages, rows.Err()
}

// --- Prompts ---

func (r *sqliteRepository) InsertPrompt(ctx context.Context, prompt *model.Prompt) error {
	query := "INSERT INTO prompts (id, timestamp, title, body, is_builtin) VALUES (?, ?, ?, ?, ?)"
	_, err := r.db.ExecContext(ctx, query, prompt.ID, prompt.Timestamp, prompt.Title, prompt.Body, prompt.BuiltIn)
	if err != nil {
		return fmt.Errorf("could not insert prompt: %w", err)
	}
	return nil
}

// SeedPrompt inserts the prompt unless a row with the same id already exists.
func (r *sqliteRepository) SeedPrompt(ctx context.Context, prompt *model.Prompt) error {
	query := "INSERT OR IGNORE INTO prompts (id, timestamp, title, body, is_builtin) VALUES (?, ?, ?, ?, ?)"
	_, err := r.db.ExecContext(ctx, query, prompt.ID, prompt.Timestamp, prompt.Title, prompt.Body, prompt.BuiltIn)
	if err != nil {
		return fmt.Errorf("could not seed prompt: %w", err)
	}
	return nil
}

func (r *sqliteRepository) GetPrompt(ctx context.Context, promptID string) (*model.Prompt, error) {
	query := "SELECT id, timestamp, title, body, is_builtin FROM prompts WHERE id = ?"
	var p model.Prompt
	err := r.db.QueryRowContext(ctx, query, promptID).Scan(&p.ID, &p.Timestamp, &p.Title, &p.Body, &p.BuiltIn)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

func (r *sqliteRepository) ListPrompts(ctx context.Context) ([]model.Prompt, error) {
	query := "SELECT id, timestamp, title, body, is_builtin FROM prompts ORDER BY is_builtin DESC, timestamp ASC"
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	prompts := []model.Prompt{}
	for rows.Next() {
		var p model.Prompt
		if err := rows.Scan(&p.ID, &p.Timestamp, &p.Title, &p.Body, &p.BuiltIn); err != nil {
			return nil, err
		}
		prompts = append(prompts, p)
	}
	return prompts, rows.Err()
}

func (r *sqliteRepository) DeletePrompt(ctx context.Context, promptID string) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM prompts WHERE id = ?", promptID)
	if err != nil {
		return fmt.Errorf("could not delete prompt: %w", err)
	}
	return requireAffected(res)
}

func (r *sqliteRepository) CountPrompts(ctx context.Context) (int, error) {
	return r.count(ctx, "SELECT COUNT(*) FROM prompts")
}

// DeleteAllHistory removes every message and group. Prompts are kept.
func (r *sqliteRepository) DeleteAllHistory(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, "DELETE FROM messages"); err != nil {
		return fmt.Errorf("could not delete messages: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, "DELETE FROM groups"); err != nil {
		return fmt.Errorf("could not delete groups: %w", err)
	}
	return nil
}

// --- Helpers ---

func (r *sqliteRepository) count(ctx context.Context, query string, args ...any) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

func requireAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}
