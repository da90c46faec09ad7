// Package repositories provides data access for the service's own postgres
// store. Target databases are never touched here.
package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/sqlagent-dev/sqlagent-engine/pkg/apperrors"
	"github.com/sqlagent-dev/sqlagent-engine/pkg/database"
	"github.com/sqlagent-dev/sqlagent-engine/pkg/models"
)

// ConnectionRepository provides data access for registered connections.
// All reads and writes are scoped to the owning user.
type ConnectionRepository interface {
	Create(ctx context.Context, conn *models.Connection) error
	GetByID(ctx context.Context, userID string, id uuid.UUID) (*models.Connection, error)
	List(ctx context.Context, userID string) ([]*models.Connection, error)
	Update(ctx context.Context, conn *models.Connection) error
	Delete(ctx context.Context, userID string, id uuid.UUID) error
	TouchLastUsed(ctx context.Context, id uuid.UUID) error
}

type connectionRepository struct {
	db *database.DB
}

func NewConnectionRepository(db *database.DB) ConnectionRepository {
	return &connectionRepository{db: db}
}

var _ ConnectionRepository = (*connectionRepository)(nil)

const connectionColumns = `
	id, user_id, name, engine, host, port, database_name, username,
	password_encrypted, ssl_enabled, is_readonly, created_at, last_used_at`

func (r *connectionRepository) Create(ctx context.Context, conn *models.Connection) error {
	if conn.ID == uuid.Nil {
		conn.ID = uuid.New()
	}

	query := `
		INSERT INTO connections (
			id, user_id, name, engine, host, port, database_name, username,
			password_encrypted, ssl_enabled, is_readonly
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING created_at`

	err := r.db.QueryRow(ctx, query,
		conn.ID,
		conn.UserID,
		conn.Name,
		conn.Engine,
		conn.Host,
		conn.Port,
		conn.DatabaseName,
		conn.Username,
		conn.PasswordEncrypted,
		conn.SSLEnabled,
		conn.IsReadOnly,
	).Scan(&conn.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create connection: %w", err)
	}

	return nil
}

func (r *connectionRepository) GetByID(ctx context.Context, userID string, id uuid.UUID) (*models.Connection, error) {
	query := `SELECT ` + connectionColumns + `
		FROM connections
		WHERE id = $1 AND user_id = $2`

	conn, err := scanConnection(r.db.QueryRow(ctx, query, id, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get connection: %w", err)
	}

	return conn, nil
}

func (r *connectionRepository) List(ctx context.Context, userID string) ([]*models.Connection, error) {
	query := `SELECT ` + connectionColumns + `
		FROM connections
		WHERE user_id = $1
		ORDER BY created_at DESC`

	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list connections: %w", err)
	}
	defer rows.Close()

	var conns []*models.Connection
	for rows.Next() {
		conn, err := scanConnection(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan connection: %w", err)
		}
		conns = append(conns, conn)
	}
	return conns, rows.Err()
}

func (r *connectionRepository) Update(ctx context.Context, conn *models.Connection) error {
	query := `
		UPDATE connections
		SET name = $1, engine = $2, host = $3, port = $4, database_name = $5,
		    username = $6, password_encrypted = $7, ssl_enabled = $8, is_readonly = $9
		WHERE id = $10 AND user_id = $11`

	tag, err := r.db.Exec(ctx, query,
		conn.Name,
		conn.Engine,
		conn.Host,
		conn.Port,
		conn.DatabaseName,
		conn.Username,
		conn.PasswordEncrypted,
		conn.SSLEnabled,
		conn.IsReadOnly,
		conn.ID,
		conn.UserID,
	)
	if err != nil {
		return fmt.Errorf("failed to update connection: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

func (r *connectionRepository) Delete(ctx context.Context, userID string, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM connections WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return fmt.Errorf("failed to delete connection: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

func (r *connectionRepository) TouchLastUsed(ctx context.Context, id uuid.UUID) error {
	_, err := r.db.Exec(ctx, `UPDATE connections SET last_used_at = NOW() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to touch connection: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanConnection(row rowScanner) (*models.Connection, error) {
	var conn models.Connection
	err := row.Scan(
		&conn.ID,
		&conn.UserID,
		&conn.Name,
		&conn.Engine,
		&conn.Host,
		&conn.Port,
		&conn.DatabaseName,
		&conn.Username,
		&conn.PasswordEncrypted,
		&conn.SSLEnabled,
		&conn.IsReadOnly,
		&conn.CreatedAt,
		&conn.LastUsedAt,
	)
	if err != nil {
		return nil, err
	}
	return &conn, nil
}
