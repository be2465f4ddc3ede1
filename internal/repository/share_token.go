package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/bigkaa/tellbill/internal/domain/model"
)

// ShareTokenRepository — доступ к таблице share_tokens.
type ShareTokenRepository interface {
	// Create сохраняет новую ссылку. Совпадение token → ErrConflict.
	Create(ctx context.Context, t *model.ShareToken) error
	// GetByToken возвращает ссылку по строке токена.
	GetByToken(ctx context.Context, token string) (*model.ShareToken, error)
	// Touch атомарно увеличивает access_count действующей ссылки и
	// возвращает обновлённую запись. Для отозванной, истёкшей или
	// неизвестной ссылки возвращает ErrNotFound.
	Touch(ctx context.Context, token string, now time.Time) (*model.ShareToken, error)
	// Revoke отзывает ссылку. Повторный отзыв сохраняет исходный revoked_at.
	Revoke(ctx context.Context, id string, now time.Time) (*model.ShareToken, error)
	// ListByProject возвращает ссылки проекта, новые первыми.
	ListByProject(ctx context.Context, projectID string) ([]*model.ShareToken, error)
}

type shareTokenRepo struct {
	db DBTX
}

// NewShareTokenRepository создаёт репозиторий ссылок клиентского портала.
func NewShareTokenRepository(db DBTX) ShareTokenRepository {
	return &shareTokenRepo{db: db}
}

const shareTokenColumns = `id, token, owner_id, project_id, issued_at, expires_at,
	revoked_at, access_count, last_accessed_at`

func scanShareToken(row pgx.Row) (*model.ShareToken, error) {
	t := &model.ShareToken{}
	err := row.Scan(
		&t.ID, &t.Token, &t.OwnerID, &t.ProjectID, &t.IssuedAt, &t.ExpiresAt,
		&t.RevokedAt, &t.AccessCount, &t.LastAccessedAt,
	)
	return t, err
}

func (r *shareTokenRepo) Create(ctx context.Context, t *model.ShareToken) error {
	query := `
		INSERT INTO share_tokens (id, token, owner_id, project_id, issued_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := conn(ctx, r.db).Exec(ctx, query,
		t.ID, t.Token, t.OwnerID, t.ProjectID, t.IssuedAt, t.ExpiresAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: токен уже существует", ErrConflict)
		}
		return fmt.Errorf("ошибка создания ссылки: %w", err)
	}
	return nil
}

func (r *shareTokenRepo) GetByToken(ctx context.Context, token string) (*model.ShareToken, error) {
	query := fmt.Sprintf(`SELECT %s FROM share_tokens WHERE token = $1`, shareTokenColumns)
	t, err := scanShareToken(conn(ctx, r.db).QueryRow(ctx, query, token))
	if err != nil {
		return nil, notFound(err, "ошибка получения ссылки")
	}
	return t, nil
}

// Touch — один UPDATE с условием действительности: проверка срока,
// отзыва и инкремент счётчика выполняются под одной блокировкой строки.
func (r *shareTokenRepo) Touch(ctx context.Context, token string, now time.Time) (*model.ShareToken, error) {
	query := fmt.Sprintf(`
		UPDATE share_tokens
		SET access_count = access_count + 1, last_accessed_at = $2
		WHERE token = $1 AND revoked_at IS NULL AND expires_at > $2
		RETURNING %s`, shareTokenColumns)

	t, err := scanShareToken(conn(ctx, r.db).QueryRow(ctx, query, token, now))
	if err != nil {
		return nil, notFound(err, "ошибка учёта обращения к ссылке")
	}
	return t, nil
}

func (r *shareTokenRepo) Revoke(ctx context.Context, id string, now time.Time) (*model.ShareToken, error) {
	query := fmt.Sprintf(`
		UPDATE share_tokens
		SET revoked_at = COALESCE(revoked_at, $2)
		WHERE id = $1
		RETURNING %s`, shareTokenColumns)

	t, err := scanShareToken(conn(ctx, r.db).QueryRow(ctx, query, id, now))
	if err != nil {
		return nil, notFound(err, "ошибка отзыва ссылки")
	}
	return t, nil
}

func (r *shareTokenRepo) ListByProject(ctx context.Context, projectID string) ([]*model.ShareToken, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM share_tokens
		WHERE project_id = $1
		ORDER BY issued_at DESC`, shareTokenColumns)

	rows, err := conn(ctx, r.db).Query(ctx, query, projectID)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения ссылок проекта: %w", err)
	}
	defer rows.Close()

	var result []*model.ShareToken
	for rows.Next() {
		t, err := scanShareToken(rows)
		if err != nil {
			return nil, fmt.Errorf("ошибка сканирования ссылки: %w", err)
		}
		result = append(result, t)
	}
	return result, rows.Err()
}
