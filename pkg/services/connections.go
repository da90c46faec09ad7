// Package services holds the business logic between HTTP handlers and the
// repositories, drivers, and LLM client.
package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sqlagent-dev/sqlagent-engine/pkg/apperrors"
	"github.com/sqlagent-dev/sqlagent-engine/pkg/crypto"
	"github.com/sqlagent-dev/sqlagent-engine/pkg/models"
	"github.com/sqlagent-dev/sqlagent-engine/pkg/repositories"
)

// ConnectionInput carries the writable fields of a connection. Password is
// write-only: nil means "leave unchanged" on update.
type ConnectionInput struct {
	Name         string            `json:"name"`
	Engine       models.EngineKind `json:"db_type"`
	Host         *string           `json:"host"`
	Port         *int              `json:"port"`
	DatabaseName string            `json:"database_name"`
	Username     *string           `json:"username"`
	Password     *string           `json:"password"`
	SSLEnabled   bool              `json:"ssl_enabled"`
	IsReadOnly   *bool             `json:"is_readonly"`
}

// ConnectionService manages the connection registry. All operations are
// scoped to the calling user.
type ConnectionService interface {
	Register(ctx context.Context, userID string, input ConnectionInput) (*models.Connection, error)
	Update(ctx context.Context, userID string, id uuid.UUID, input ConnectionInput) (*models.Connection, error)
	Delete(ctx context.Context, userID string, id uuid.UUID) error
	Get(ctx context.Context, userID string, id uuid.UUID) (*models.Connection, error)
	List(ctx context.Context, userID string) ([]*models.Connection, error)
	Test(ctx context.Context, userID string, id uuid.UUID) error

	// Credentials resolves a connection together with its decrypted password
	// for the execution layer. The plaintext never leaves the service layer.
	Credentials(ctx context.Context, userID string, id uuid.UUID) (*models.Connection, string, error)

	// TouchLastUsed updates the connection's last-used marker.
	TouchLastUsed(ctx context.Context, id uuid.UUID) error
}

type connectionService struct {
	repo      repositories.ConnectionRepository
	schemas   repositories.SchemaCacheRepository
	encryptor *crypto.Encryptor
	executor  Executor
	manager   PoolEvictor
	logger    *zap.Logger
}

func NewConnectionService(
	repo repositories.ConnectionRepository,
	schemas repositories.SchemaCacheRepository,
	encryptor *crypto.Encryptor,
	executor Executor,
	manager PoolEvictor,
	logger *zap.Logger,
) ConnectionService {
	return &connectionService{
		repo:      repo,
		schemas:   schemas,
		encryptor: encryptor,
		executor:  executor,
		manager:   manager,
		logger:    logger.Named("connections"),
	}
}

var _ ConnectionService = (*connectionService)(nil)

func (s *connectionService) Register(ctx context.Context, userID string, input ConnectionInput) (*models.Connection, error) {
	if err := validateInput(&input); err != nil {
		return nil, err
	}

	conn := &models.Connection{
		ID:           uuid.New(),
		UserID:       userID,
		Name:         input.Name,
		Engine:       input.Engine,
		Host:         input.Host,
		Port:         input.Port,
		DatabaseName: input.DatabaseName,
		Username:     input.Username,
		SSLEnabled:   input.SSLEnabled,
		IsReadOnly:   true,
	}
	if input.IsReadOnly != nil {
		conn.IsReadOnly = *input.IsReadOnly
	}

	if input.Password != nil && *input.Password != "" {
		encrypted, err := s.encryptor.Encrypt(*input.Password)
		if err != nil {
			return nil, fmt.Errorf("encrypt password: %w", err)
		}
		conn.PasswordEncrypted = &encrypted
	}

	if err := s.repo.Create(ctx, conn); err != nil {
		return nil, err
	}

	s.logger.Info("registered connection",
		zap.String("connectionID", conn.ID.String()),
		zap.String("engine", string(conn.Engine)),
	)
	return conn, nil
}

func (s *connectionService) Update(ctx context.Context, userID string, id uuid.UUID, input ConnectionInput) (*models.Connection, error) {
	if err := validateInput(&input); err != nil {
		return nil, err
	}

	conn, err := s.repo.GetByID(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	conn.Name = input.Name
	conn.Engine = input.Engine
	conn.Host = input.Host
	conn.Port = input.Port
	conn.DatabaseName = input.DatabaseName
	conn.Username = input.Username
	conn.SSLEnabled = input.SSLEnabled
	if input.IsReadOnly != nil {
		conn.IsReadOnly = *input.IsReadOnly
	}

	// Absent password keeps the stored secret; the API never echoes it back.
	if input.Password != nil && *input.Password != "" {
		encrypted, err := s.encryptor.Encrypt(*input.Password)
		if err != nil {
			return nil, fmt.Errorf("encrypt password: %w", err)
		}
		conn.PasswordEncrypted = &encrypted
	}

	if err := s.repo.Update(ctx, conn); err != nil {
		return nil, err
	}

	// Any live pool may hold stale credentials or point at the wrong target.
	s.manager.Evict(conn.ID)

	return conn, nil
}

func (s *connectionService) Delete(ctx context.Context, userID string, id uuid.UUID) error {
	if err := s.repo.Delete(ctx, userID, id); err != nil {
		return err
	}
	s.manager.Evict(id)
	return nil
}

func (s *connectionService) Get(ctx context.Context, userID string, id uuid.UUID) (*models.Connection, error) {
	return s.repo.GetByID(ctx, userID, id)
}

func (s *connectionService) List(ctx context.Context, userID string) ([]*models.Connection, error) {
	return s.repo.List(ctx, userID)
}

func (s *connectionService) Test(ctx context.Context, userID string, id uuid.UUID) error {
	conn, password, err := s.Credentials(ctx, userID, id)
	if err != nil {
		return err
	}
	return s.executor.TestConnection(ctx, conn, password)
}

func (s *connectionService) Credentials(ctx context.Context, userID string, id uuid.UUID) (*models.Connection, string, error) {
	conn, err := s.repo.GetByID(ctx, userID, id)
	if err != nil {
		return nil, "", err
	}

	password := ""
	if conn.PasswordEncrypted != nil {
		password, err = s.encryptor.Decrypt(*conn.PasswordEncrypted)
		if err != nil {
			return nil, "", fmt.Errorf("decrypt password: %w", err)
		}
	}
	return conn, password, nil
}

func (s *connectionService) TouchLastUsed(ctx context.Context, id uuid.UUID) error {
	return s.repo.TouchLastUsed(ctx, id)
}

func validateInput(input *ConnectionInput) error {
	if input.Name == "" {
		return apperrors.Validationf("connection name is required")
	}
	if !input.Engine.Valid() {
		return apperrors.Validationf("unsupported database engine %q", input.Engine)
	}
	if input.DatabaseName == "" {
		if input.Engine == models.EngineSQLite {
			return apperrors.Validationf("database file path is required")
		}
		return apperrors.Validationf("database name is required")
	}
	if input.Port != nil && (*input.Port < 1 || *input.Port > 65535) {
		return apperrors.Validationf("port must be between 1 and 65535")
	}
	if input.Engine.Networked() {
		if input.Host == nil || *input.Host == "" {
			return apperrors.Validationf("host is required for %s connections", input.Engine)
		}
		if input.Username == nil || *input.Username == "" {
			return apperrors.Validationf("username is required for %s connections", input.Engine)
		}
	} else {
		input.Host = nil
		input.Port = nil
		input.Username = nil
		input.Password = nil
	}
	return nil
}
