package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/bigkaa/tellbill/internal/domain/model"
)

// ActivityRepository — доступ к таблице activity_events.
type ActivityRepository interface {
	// Create добавляет событие в ленту проекта.
	Create(ctx context.Context, e *model.ActivityEvent) error
	// GetByID возвращает событие по UUID.
	GetByID(ctx context.Context, id string) (*model.ActivityEvent, error)
	// LockByID — GetByID с блокировкой строки до конца транзакции.
	LockByID(ctx context.Context, id string) (*model.ActivityEvent, error)
	// ListByProject возвращает ленту проекта, новые события первыми.
	// visibleOnly — только события, видимые клиенту.
	ListByProject(ctx context.Context, projectID string, visibleOnly bool) ([]*model.ActivityEvent, error)
	// SetVisibility меняет видимость события и возвращает обновлённую запись.
	SetVisibility(ctx context.Context, id string, visible bool) (*model.ActivityEvent, error)
	// SetApproval записывает решение клиента по событию.
	SetApproval(ctx context.Context, id string, status model.ApprovalStatus, at time.Time, notes *string) (*model.ActivityEvent, error)
}

type activityRepo struct {
	db DBTX
}

// NewActivityRepository создаёт репозиторий ленты активности.
func NewActivityRepository(db DBTX) ActivityRepository {
	return &activityRepo{db: db}
}

const activityColumns = `id, project_id, type, title, amount_cents, occurred_at,
	visible_to_client, approval_status, approved_at, approval_notes, created_at, updated_at`

func scanActivity(row pgx.Row) (*model.ActivityEvent, error) {
	e := &model.ActivityEvent{}
	err := row.Scan(
		&e.ID, &e.ProjectID, &e.Type, &e.Title, &e.AmountCents, &e.OccurredAt,
		&e.VisibleToClient, &e.ApprovalStatus, &e.ApprovedAt, &e.ApprovalNotes,
		&e.CreatedAt, &e.UpdatedAt,
	)
	return e, err
}

func (r *activityRepo) Create(ctx context.Context, e *model.ActivityEvent) error {
	query := `
		INSERT INTO activity_events (id, project_id, type, title, amount_cents, occurred_at,
			visible_to_client, approval_status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at, updated_at`

	err := conn(ctx, r.db).QueryRow(ctx, query,
		e.ID, e.ProjectID, e.Type, e.Title, e.AmountCents, e.OccurredAt,
		e.VisibleToClient, e.ApprovalStatus,
	).Scan(&e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return fmt.Errorf("ошибка создания события: %w", err)
	}
	return nil
}

func (r *activityRepo) GetByID(ctx context.Context, id string) (*model.ActivityEvent, error) {
	query := fmt.Sprintf(`SELECT %s FROM activity_events WHERE id = $1`, activityColumns)
	e, err := scanActivity(conn(ctx, r.db).QueryRow(ctx, query, id))
	if err != nil {
		return nil, notFound(err, "ошибка получения события")
	}
	return e, nil
}

func (r *activityRepo) LockByID(ctx context.Context, id string) (*model.ActivityEvent, error) {
	query := fmt.Sprintf(`SELECT %s FROM activity_events WHERE id = $1 FOR UPDATE`, activityColumns)
	e, err := scanActivity(conn(ctx, r.db).QueryRow(ctx, query, id))
	if err != nil {
		return nil, notFound(err, "ошибка блокировки события")
	}
	return e, nil
}

func (r *activityRepo) ListByProject(ctx context.Context, projectID string, visibleOnly bool) ([]*model.ActivityEvent, error) {
	where := "project_id = $1"
	if visibleOnly {
		where += " AND visible_to_client"
	}
	query := fmt.Sprintf(`
		SELECT %s
		FROM activity_events
		WHERE %s
		ORDER BY occurred_at DESC, created_at DESC`, activityColumns, where)

	rows, err := conn(ctx, r.db).Query(ctx, query, projectID)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения ленты проекта: %w", err)
	}
	defer rows.Close()

	var result []*model.ActivityEvent
	for rows.Next() {
		e, err := scanActivity(rows)
		if err != nil {
			return nil, fmt.Errorf("ошибка сканирования события: %w", err)
		}
		result = append(result, e)
	}
	return result, rows.Err()
}

func (r *activityRepo) SetVisibility(ctx context.Context, id string, visible bool) (*model.ActivityEvent, error) {
	query := fmt.Sprintf(`
		UPDATE activity_events
		SET visible_to_client = $2, updated_at = now()
		WHERE id = $1
		RETURNING %s`, activityColumns)

	e, err := scanActivity(conn(ctx, r.db).QueryRow(ctx, query, id, visible))
	if err != nil {
		return nil, notFound(err, "ошибка изменения видимости события")
	}
	return e, nil
}

func (r *activityRepo) SetApproval(ctx context.Context, id string, status model.ApprovalStatus, at time.Time, notes *string) (*model.ActivityEvent, error) {
	query := fmt.Sprintf(`
		UPDATE activity_events
		SET approval_status = $2, approved_at = $3,
			approval_notes = COALESCE($4, approval_notes), updated_at = now()
		WHERE id = $1
		RETURNING %s`, activityColumns)

	e, err := scanActivity(conn(ctx, r.db).QueryRow(ctx, query, id, status, at, notes))
	if err != nil {
		return nil, notFound(err, "ошибка записи решения по событию")
	}
	return e, nil
}
