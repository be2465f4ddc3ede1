package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/bigkaa/tellbill/internal/domain/model"
)

// ProjectRepository — доступ к таблице projects.
type ProjectRepository interface {
	// Create создаёт проект.
	Create(ctx context.Context, p *model.Project) error
	// GetByID возвращает проект по UUID.
	GetByID(ctx context.Context, id string) (*model.Project, error)
}

type projectRepo struct {
	db DBTX
}

// NewProjectRepository создаёт репозиторий проектов.
func NewProjectRepository(db DBTX) ProjectRepository {
	return &projectRepo{db: db}
}

const projectColumns = `id, owner_id, name, client_name, client_email, currency, created_at, updated_at`

func scanProject(row pgx.Row) (*model.Project, error) {
	p := &model.Project{}
	err := row.Scan(
		&p.ID, &p.OwnerID, &p.Name, &p.ClientName, &p.ClientEmail,
		&p.Currency, &p.CreatedAt, &p.UpdatedAt,
	)
	return p, err
}

func (r *projectRepo) Create(ctx context.Context, p *model.Project) error {
	query := `
		INSERT INTO projects (id, owner_id, name, client_name, client_email, currency)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at, updated_at`

	err := conn(ctx, r.db).QueryRow(ctx, query,
		p.ID, p.OwnerID, p.Name, p.ClientName, p.ClientEmail, p.Currency,
	).Scan(&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: проект %s уже существует", ErrConflict, p.ID)
		}
		return fmt.Errorf("ошибка создания проекта: %w", err)
	}
	return nil
}

func (r *projectRepo) GetByID(ctx context.Context, id string) (*model.Project, error) {
	query := fmt.Sprintf(`SELECT %s FROM projects WHERE id = $1`, projectColumns)
	p, err := scanProject(conn(ctx, r.db).QueryRow(ctx, query, id))
	if err != nil {
		return nil, notFound(err, "ошибка получения проекта")
	}
	return p, nil
}
