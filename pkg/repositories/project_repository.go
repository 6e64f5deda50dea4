// Package repositories contains PostgreSQL data access for roadcast.
package repositories

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/roadcast-labs/roadcast/pkg/apperrors"
	"github.com/roadcast-labs/roadcast/pkg/database"
	"github.com/roadcast-labs/roadcast/pkg/models"
)

// ProjectRepository defines the interface for project data access.
type ProjectRepository interface {
	// Create inserts a new project and its owner admin row atomically.
	// Returns apperrors.ErrHandleTaken when the handle is already in use.
	Create(ctx context.Context, project *models.Project) error

	// GetByHandle retrieves a project by its lowercase handle. The input is
	// normalized, so any casing resolves to the same project.
	GetByHandle(ctx context.Context, handle string) (*models.Project, error)

	// ListHandles returns every known project handle.
	ListHandles(ctx context.Context) ([]string, error)

	// AddAdmin grants an account an admin role on a project.
	AddAdmin(ctx context.Context, projectID uuid.UUID, fid int64, role string) error

	// ListAdmins returns the admins of a project.
	ListAdmins(ctx context.Context, projectID uuid.UUID) ([]*models.ProjectAdmin, error)
}

// projectRepository implements ProjectRepository using PostgreSQL.
type projectRepository struct {
	db *database.DB
}

// NewProjectRepository creates a new project repository.
func NewProjectRepository(db *database.DB) ProjectRepository {
	return &projectRepository{db: db}
}

// NormalizeHandle lowercases a handle and strips a leading @ so @Base,
// @base and base all address the same project.
func NormalizeHandle(handle string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(handle), "@"))
}

// Create inserts a new project and the owner's admin row in one transaction.
func (r *projectRepository) Create(ctx context.Context, project *models.Project) error {
	project.Handle = NormalizeHandle(project.Handle)
	if project.Handle == "" {
		return fmt.Errorf("project handle is required")
	}
	if project.VotingType == "" {
		project.VotingType = models.VotingTypeScore
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback on defer is best-effort

	query := `
		INSERT INTO projects (name, handle, voting_type, token_address, owner_fid, description)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at, updated_at`

	err = tx.QueryRow(ctx, query,
		project.Name,
		project.Handle,
		project.VotingType,
		project.TokenAddress,
		project.OwnerFID,
		project.Description,
	).Scan(&project.ID, &project.CreatedAt, &project.UpdatedAt)
	if err != nil {
		// Check for unique constraint violation (PostgreSQL error code 23505)
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return apperrors.ErrHandleTaken
		}
		return fmt.Errorf("failed to create project: %w", err)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO project_admins (project_id, fid, role)
		VALUES ($1, $2, 'owner')`,
		project.ID, project.OwnerFID)
	if err != nil {
		return fmt.Errorf("failed to create owner admin: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// GetByHandle retrieves a project by handle.
func (r *projectRepository) GetByHandle(ctx context.Context, handle string) (*models.Project, error) {
	query := `
		SELECT id, name, handle, voting_type, token_address, owner_fid, description, created_at, updated_at
		FROM projects
		WHERE handle = $1`

	var project models.Project
	err := r.db.QueryRow(ctx, query, NormalizeHandle(handle)).Scan(
		&project.ID,
		&project.Name,
		&project.Handle,
		&project.VotingType,
		&project.TokenAddress,
		&project.OwnerFID,
		&project.Description,
		&project.CreatedAt,
		&project.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get project: %w", err)
	}

	return &project, nil
}

// ListHandles returns every known project handle.
func (r *projectRepository) ListHandles(ctx context.Context) ([]string, error) {
	rows, err := r.db.Query(ctx, `SELECT handle FROM projects ORDER BY handle`)
	if err != nil {
		return nil, fmt.Errorf("failed to list handles: %w", err)
	}
	defer rows.Close()

	var handles []string
	for rows.Next() {
		var handle string
		if err := rows.Scan(&handle); err != nil {
			return nil, fmt.Errorf("failed to scan handle: %w", err)
		}
		handles = append(handles, handle)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read handles: %w", err)
	}

	return handles, nil
}

// AddAdmin grants an account an admin role on a project.
func (r *projectRepository) AddAdmin(ctx context.Context, projectID uuid.UUID, fid int64, role string) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO project_admins (project_id, fid, role)
		VALUES ($1, $2, $3)
		ON CONFLICT (project_id, fid) DO NOTHING`,
		projectID, fid, role)
	if err != nil {
		return fmt.Errorf("failed to add admin: %w", err)
	}
	return nil
}

// ListAdmins returns the admins of a project.
func (r *projectRepository) ListAdmins(ctx context.Context, projectID uuid.UUID) ([]*models.ProjectAdmin, error) {
	query := `
		SELECT id, project_id, fid, role, created_at
		FROM project_admins
		WHERE project_id = $1
		ORDER BY created_at`

	rows, err := r.db.Query(ctx, query, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to list admins: %w", err)
	}
	defer rows.Close()

	var admins []*models.ProjectAdmin
	for rows.Next() {
		var admin models.ProjectAdmin
		if err := rows.Scan(&admin.ID, &admin.ProjectID, &admin.FID, &admin.Role, &admin.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan admin: %w", err)
		}
		admins = append(admins, &admin)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read admins: %w", err)
	}

	return admins, nil
}

// Ensure projectRepository implements ProjectRepository at compile time.
var _ ProjectRepository = (*projectRepository)(nil)
