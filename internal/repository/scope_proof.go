package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/bigkaa/tellbill/internal/domain/model"
)

// ScopeProofRepository — доступ к таблице scope_proofs.
type ScopeProofRepository interface {
	// Create сохраняет новый scope proof. Совпадение approval_token → ErrConflict.
	Create(ctx context.Context, p *model.ScopeProof) error
	// GetByID возвращает scope proof по UUID.
	GetByID(ctx context.Context, id string) (*model.ScopeProof, error)
	// GetByToken возвращает scope proof по токену согласования.
	GetByToken(ctx context.Context, token string) (*model.ScopeProof, error)
	// LockByID — GetByID с блокировкой строки до конца транзакции.
	LockByID(ctx context.Context, id string) (*model.ScopeProof, error)
	// LockByToken — GetByToken с блокировкой строки до конца транзакции.
	LockByToken(ctx context.Context, token string) (*model.ScopeProof, error)
	// Update сохраняет изменяемые поля (статус, клиент, решение, комментарий).
	Update(ctx context.Context, p *model.ScopeProof) error
	// List возвращает scope proof подрядчика; фильтр по статусу учитывает срок токена на момент now.
	List(ctx context.Context, filter model.ScopeProofFilter, now time.Time) ([]*model.ScopeProof, error)
	// ExpireStale помечает открытые scope proof с истёкшим токеном как expired.
	ExpireStale(ctx context.Context, now time.Time) ([]*model.ScopeProof, error)
	// ReminderCandidates возвращает открытые scope proof, которым первичное письмо
	// отправлено не позже sentBefore и напоминание ещё не отправлялось.
	ReminderCandidates(ctx context.Context, now, sentBefore time.Time, limit int) ([]model.ReminderCandidate, error)
}

type scopeProofRepo struct {
	db DBTX
}

// NewScopeProofRepository создаёт репозиторий scope proof.
func NewScopeProofRepository(db DBTX) ScopeProofRepository {
	return &scopeProofRepo{db: db}
}

const scopeProofColumns = `id, owner_id, owner_email, project_id, description, estimated_cost_cents,
	photos, approval_token, token_expires_at, status, client_email,
	approved_at, approved_by, rejected_at, rejected_by, rejection_reason,
	feedback, feedback_by, feedback_at, cancelled_at, created_at, updated_at`

// scopeProofDest возвращает адреса полей в порядке scopeProofColumns.
func scopeProofDest(p *model.ScopeProof) []any {
	return []any{
		&p.ID, &p.OwnerID, &p.OwnerEmail, &p.ProjectID, &p.Description, &p.EstimatedCostCents,
		&p.Photos, &p.ApprovalToken, &p.TokenExpiresAt, &p.Status, &p.ClientEmail,
		&p.ApprovedAt, &p.ApprovedBy, &p.RejectedAt, &p.RejectedBy, &p.RejectionReason,
		&p.Feedback, &p.FeedbackBy, &p.FeedbackAt, &p.CancelledAt, &p.CreatedAt, &p.UpdatedAt,
	}
}

func scanScopeProof(row pgx.Row) (*model.ScopeProof, error) {
	p := &model.ScopeProof{}
	err := row.Scan(scopeProofDest(p)...)
	return p, err
}

func collectScopeProofs(rows pgx.Rows) ([]*model.ScopeProof, error) {
	defer rows.Close()
	var result []*model.ScopeProof
	for rows.Next() {
		p, err := scanScopeProof(rows)
		if err != nil {
			return nil, fmt.Errorf("ошибка сканирования scope proof: %w", err)
		}
		result = append(result, p)
	}
	return result, rows.Err()
}

func (r *scopeProofRepo) Create(ctx context.Context, p *model.ScopeProof) error {
	if p.Photos == nil {
		p.Photos = []string{}
	}
	query := `
		INSERT INTO scope_proofs (id, owner_id, owner_email, project_id, description,
			estimated_cost_cents, photos, approval_token, token_expires_at, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING updated_at`

	err := conn(ctx, r.db).QueryRow(ctx, query,
		p.ID, p.OwnerID, p.OwnerEmail, p.ProjectID, p.Description,
		p.EstimatedCostCents, p.Photos, p.ApprovalToken, p.TokenExpiresAt, p.Status, p.CreatedAt,
	).Scan(&p.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: токен согласования уже существует", ErrConflict)
		}
		return fmt.Errorf("ошибка создания scope proof: %w", err)
	}
	return nil
}

func (r *scopeProofRepo) getBy(ctx context.Context, column, value string, lock bool) (*model.ScopeProof, error) {
	query := fmt.Sprintf(`SELECT %s FROM scope_proofs WHERE %s = $1`, scopeProofColumns, column)
	if lock {
		query += " FOR UPDATE"
	}
	p, err := scanScopeProof(conn(ctx, r.db).QueryRow(ctx, query, value))
	if err != nil {
		return nil, notFound(err, "ошибка получения scope proof")
	}
	return p, nil
}

func (r *scopeProofRepo) GetByID(ctx context.Context, id string) (*model.ScopeProof, error) {
	return r.getBy(ctx, "id", id, false)
}

func (r *scopeProofRepo) GetByToken(ctx context.Context, token string) (*model.ScopeProof, error) {
	return r.getBy(ctx, "approval_token", token, false)
}

func (r *scopeProofRepo) LockByID(ctx context.Context, id string) (*model.ScopeProof, error) {
	return r.getBy(ctx, "id", id, true)
}

func (r *scopeProofRepo) LockByToken(ctx context.Context, token string) (*model.ScopeProof, error) {
	return r.getBy(ctx, "approval_token", token, true)
}

func (r *scopeProofRepo) Update(ctx context.Context, p *model.ScopeProof) error {
	query := `
		UPDATE scope_proofs
		SET status = $2, client_email = $3,
			approved_at = $4, approved_by = $5,
			rejected_at = $6, rejected_by = $7, rejection_reason = $8,
			feedback = $9, feedback_by = $10, feedback_at = $11,
			cancelled_at = $12, updated_at = now()
		WHERE id = $1
		RETURNING updated_at`

	err := conn(ctx, r.db).QueryRow(ctx, query,
		p.ID, p.Status, p.ClientEmail,
		p.ApprovedAt, p.ApprovedBy,
		p.RejectedAt, p.RejectedBy, p.RejectionReason,
		p.Feedback, p.FeedbackBy, p.FeedbackAt,
		p.CancelledAt,
	).Scan(&p.UpdatedAt)
	if err != nil {
		return notFound(err, "ошибка обновления scope proof")
	}
	return nil
}

func (r *scopeProofRepo) List(ctx context.Context, filter model.ScopeProofFilter, now time.Time) ([]*model.ScopeProof, error) {
	conditions := []string{"owner_id = $1"}
	args := []any{filter.OwnerID}
	argNum := 2

	if filter.ProjectID != nil {
		conditions = append(conditions, fmt.Sprintf("project_id = $%d", argNum))
		args = append(args, *filter.ProjectID)
		argNum++
	}

	if filter.Status != nil {
		status := *filter.Status
		switch status {
		case model.ScopeProofPending, model.ScopeProofFeedback:
			conditions = append(conditions,
				fmt.Sprintf("status = $%d AND token_expires_at > $%d", argNum, argNum+1))
			args = append(args, status, now)
			argNum += 2
		case model.ScopeProofExpired:
			conditions = append(conditions,
				fmt.Sprintf("(status = 'expired' OR (status IN ('pending', 'feedback') AND token_expires_at <= $%d))", argNum))
			args = append(args, now)
			argNum++
		default:
			conditions = append(conditions, fmt.Sprintf("status = $%d", argNum))
			args = append(args, status)
			argNum++
		}
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = model.DefaultListLimit
	}

	query := fmt.Sprintf(`
		SELECT %s
		FROM scope_proofs
		WHERE %s
		ORDER BY created_at DESC
		LIMIT $%d OFFSET $%d`,
		scopeProofColumns, strings.Join(conditions, " AND "), argNum, argNum+1)
	args = append(args, limit, filter.Offset)

	rows, err := conn(ctx, r.db).Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения списка scope proof: %w", err)
	}
	return collectScopeProofs(rows)
}

func (r *scopeProofRepo) ExpireStale(ctx context.Context, now time.Time) ([]*model.ScopeProof, error) {
	query := fmt.Sprintf(`
		UPDATE scope_proofs
		SET status = 'expired', updated_at = now()
		WHERE status IN ('pending', 'feedback') AND token_expires_at <= $1
		RETURNING %s`, scopeProofColumns)

	rows, err := conn(ctx, r.db).Query(ctx, query, now)
	if err != nil {
		return nil, fmt.Errorf("ошибка пометки истёкших scope proof: %w", err)
	}
	return collectScopeProofs(rows)
}

func (r *scopeProofRepo) ReminderCandidates(ctx context.Context, now, sentBefore time.Time, limit int) ([]model.ReminderCandidate, error) {
	query := fmt.Sprintf(`
		SELECT %s, initial.sent_at
		FROM scope_proofs sp
		JOIN LATERAL (
			SELECT min(n.sent_at) AS sent_at
			FROM scope_proof_notifications n
			WHERE n.scope_proof_id = sp.id AND n.type = 'initial'
		) initial ON initial.sent_at IS NOT NULL
		WHERE sp.status IN ('pending', 'feedback')
			AND sp.token_expires_at > $1
			AND sp.client_email IS NOT NULL
			AND initial.sent_at <= $2
			AND NOT EXISTS (
				SELECT 1 FROM scope_proof_notifications r
				WHERE r.scope_proof_id = sp.id AND r.type = 'reminder'
			)
		ORDER BY sp.token_expires_at
		LIMIT $3`, prefixColumns("sp", scopeProofColumns))

	rows, err := conn(ctx, r.db).Query(ctx, query, now, sentBefore, limit)
	if err != nil {
		return nil, fmt.Errorf("ошибка поиска scope proof для напоминания: %w", err)
	}
	defer rows.Close()

	var result []model.ReminderCandidate
	for rows.Next() {
		p := &model.ScopeProof{}
		var sentAt time.Time
		if err := rows.Scan(append(scopeProofDest(p), &sentAt)...); err != nil {
			return nil, fmt.Errorf("ошибка сканирования scope proof: %w", err)
		}
		result = append(result, model.ReminderCandidate{Proof: p, InitialSentAt: sentAt})
	}
	return result, rows.Err()
}

// prefixColumns добавляет псевдоним таблицы к списку колонок.
func prefixColumns(alias, columns string) string {
	parts := strings.Split(columns, ",")
	for i, c := range parts {
		parts[i] = alias + "." + strings.TrimSpace(c)
	}
	return strings.Join(parts, ", ")
}
