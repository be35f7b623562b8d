package contact

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrMessageNotFound = errors.New("contact message not found")

type Repo struct {
	db *pgxpool.Pool
}

func NewRepo(db *pgxpool.Pool) *Repo {
	return &Repo{
		db: db,
	}
}

func (r *Repo) Add(ctx context.Context, msg *Message) (*Message, error) {
	if msg.Message == "" || msg.CreatedAt.IsZero() {
		return nil, errors.New("message content or timestamp empty")
	}

	var id int
	if err := r.db.QueryRow(
		ctx,
		`INSERT INTO contact_message (name, email, subject, message, client_key, read, created_at)
			VALUES ($1, $2, $3, $4, $5, false, $6) RETURNING id;`,
		msg.Name, msg.Email, msg.Subject, msg.Message, msg.ClientKey, msg.CreatedAt,
	).Scan(&id); err != nil {
		return nil, fmt.Errorf("insert contact message: %w", err)
	}

	msg.ID = id
	return msg, nil
}

func (r *Repo) List(ctx context.Context, onlyUnread bool) ([]Message, error) {
	rows, err := r.db.Query(
		ctx,
		`
			SELECT
				id, name, email, subject, message, client_key, read, created_at
			FROM contact_message
			WHERE NOT $1 OR read = false
			ORDER BY created_at DESC;`,
		onlyUnread,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []Message
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.Name, &m.Email, &m.Subject, &m.Message, &m.ClientKey, &m.Read, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("rows scan: %w", err)
		}
		messages = append(messages, m)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return messages, nil
}

func (r *Repo) Get(ctx context.Context, id int) (*Message, error) {
	var m Message
	err := r.db.QueryRow(
		ctx,
		`SELECT id, name, email, subject, message, client_key, read, created_at FROM contact_message WHERE id = $1;`,
		id,
	).Scan(&m.ID, &m.Name, &m.Email, &m.Subject, &m.Message, &m.ClientKey, &m.Read, &m.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrMessageNotFound
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *Repo) MarkRead(ctx context.Context, id int) error {
	tag, err := r.db.Exec(
		ctx,
		`UPDATE contact_message SET read = true WHERE id = $1;`,
		id,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrMessageNotFound
	}
	return nil
}

func (r *Repo) Delete(ctx context.Context, id int) error {
	tag, err := r.db.Exec(
		ctx,
		`DELETE FROM contact_message WHERE id = $1`,
		id,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrMessageNotFound
	}
	return nil
}
