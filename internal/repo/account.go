package repo

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/GideonLangenhoven/CKACashups/internal/domain"
)

// AccountRepo defines the persistence operations for login accounts.
type AccountRepo interface {
	// FindByEmail matches case-insensitively. Returns domain.ErrNotFound if absent.
	FindByEmail(ctx context.Context, email string) (domain.Account, error)

	// FindByGuideID returns the account linked to guideID, preferring an active one.
	// Returns domain.ErrNotFound when no account references the guide.
	FindByGuideID(ctx context.Context, guideID uuid.UUID) (domain.Account, error)

	Create(ctx context.Context, a domain.Account) (domain.Account, error)

	// Update overwrites email, name, role, active and the guide link.
	Update(ctx context.Context, a domain.Account) (domain.Account, error)

	Delete(ctx context.Context, id uuid.UUID) error

	// History counts the trips, invites and audit entries that reference the account.
	History(ctx context.Context, id uuid.UUID) (domain.AccountHistory, error)
}

type pgAccountRepo struct {
	db db
}

// NewAccountRepo constructs an AccountRepo backed by the provided db connection.
func NewAccountRepo(db db) AccountRepo {
	return &pgAccountRepo{db: db}
}

const accountColumns = `id, email, name, role, active, guide_id, created_at, updated_at`

func (r *pgAccountRepo) FindByEmail(ctx context.Context, email string) (domain.Account, error) {
	q := `SELECT ` + accountColumns + ` FROM accounts WHERE lower(email) = lower(@email)`

	a, err := scanAccount(r.db.QueryRow(ctx, q, pgx.NamedArgs{"email": email}))
	if err != nil {
		return domain.Account{}, fmt.Errorf("repo.AccountRepo.FindByEmail: %w", err)
	}
	return a, nil
}

func (r *pgAccountRepo) FindByGuideID(ctx context.Context, guideID uuid.UUID) (domain.Account, error) {
	q := `
		SELECT ` + accountColumns + `
		FROM accounts
		WHERE guide_id = @guide_id
		ORDER BY active DESC, created_at
		LIMIT 1`

	a, err := scanAccount(r.db.QueryRow(ctx, q, pgx.NamedArgs{"guide_id": guideID}))
	if err != nil {
		return domain.Account{}, fmt.Errorf("repo.AccountRepo.FindByGuideID: %w", err)
	}
	return a, nil
}

func (r *pgAccountRepo) Create(ctx context.Context, a domain.Account) (domain.Account, error) {
	q := `
		INSERT INTO accounts (email, name, role, active, guide_id)
		VALUES (@email, @name, @role, @active, @guide_id)
		RETURNING ` + accountColumns

	row := r.db.QueryRow(ctx, q, pgx.NamedArgs{
		"email":    a.Email,
		"name":     a.Name,
		"role":     string(a.Role),
		"active":   a.Active,
		"guide_id": a.GuideID,
	})
	result, err := scanAccount(row)
	if err != nil {
		if uniqueViolation(err) {
			return domain.Account{}, fmt.Errorf("repo.AccountRepo.Create: %w", domain.Conflictf("an account with email %s already exists", a.Email))
		}
		return domain.Account{}, fmt.Errorf("repo.AccountRepo.Create: %w", err)
	}
	return result, nil
}

func (r *pgAccountRepo) Update(ctx context.Context, a domain.Account) (domain.Account, error) {
	q := `
		UPDATE accounts
		SET email      = @email,
		    name       = @name,
		    role       = @role,
		    active     = @active,
		    guide_id   = @guide_id,
		    updated_at = now()
		WHERE id = @id
		RETURNING ` + accountColumns

	row := r.db.QueryRow(ctx, q, pgx.NamedArgs{
		"id":       a.ID,
		"email":    a.Email,
		"name":     a.Name,
		"role":     string(a.Role),
		"active":   a.Active,
		"guide_id": a.GuideID,
	})
	result, err := scanAccount(row)
	if err != nil {
		if uniqueViolation(err) {
			return domain.Account{}, fmt.Errorf("repo.AccountRepo.Update: %w", domain.Conflictf("email %s or guide link already taken", a.Email))
		}
		return domain.Account{}, fmt.Errorf("repo.AccountRepo.Update: %w", err)
	}
	return result, nil
}

func (r *pgAccountRepo) Delete(ctx context.Context, id uuid.UUID) error {
	const q = `DELETE FROM accounts WHERE id = @id`

	tag, err := r.db.Exec(ctx, q, pgx.NamedArgs{"id": id})
	if err != nil {
		return fmt.Errorf("repo.AccountRepo.Delete: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("repo.AccountRepo.Delete: %w", domain.ErrNotFound)
	}
	return nil
}

func (r *pgAccountRepo) History(ctx context.Context, id uuid.UUID) (domain.AccountHistory, error) {
	const q = `
		SELECT
			(SELECT count(*) FROM trips WHERE created_by_id = @id),
			(SELECT count(*) FROM invites WHERE invited_by_id = @id),
			(SELECT count(*) FROM audit_logs WHERE actor_id = @id)`

	var h domain.AccountHistory
	if err := r.db.QueryRow(ctx, q, pgx.NamedArgs{"id": id}).Scan(&h.Trips, &h.Invites, &h.AuditLogs); err != nil {
		return domain.AccountHistory{}, fmt.Errorf("repo.AccountRepo.History: %w", err)
	}
	return h, nil
}

func scanAccount(s scanner) (domain.Account, error) {
	var (
		a       domain.Account
		id      pgtype.UUID
		role    string
		guideID pgtype.UUID
	)
	if err := s.Scan(&id, &a.Email, &a.Name, &role, &a.Active, &guideID, &a.CreatedAt, &a.UpdatedAt); err != nil {
		return domain.Account{}, notFound(err)
	}
	a.ID = uuid.UUID(id.Bytes)
	a.Role = domain.Role(role)
	a.GuideID = uuidPtr(guideID)
	return a, nil
}
