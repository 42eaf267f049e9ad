package repo

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/GideonLangenhoven/CKACashups/internal/domain"
)

// GuideUsage counts the trip rows that reference a guide.
type GuideUsage struct {
	TripGuides int
	LedTrips   int
}

// InUse reports whether any trip references the guide.
func (u GuideUsage) InUse() bool { return u.TripGuides > 0 || u.LedTrips > 0 }

// GuideRepo defines the persistence operations for Guides.
type GuideRepo interface {
	// Create inserts a guide and returns it with id and timestamps populated.
	// A duplicate active email surfaces as domain.ErrConflict.
	Create(ctx context.Context, g domain.Guide) (domain.Guide, error)

	// Get returns domain.ErrNotFound if no guide has the id.
	Get(ctx context.Context, id uuid.UUID) (domain.Guide, error)

	// GetMany returns the guides with the given ids, in no particular order.
	// Missing ids are simply absent from the result.
	GetMany(ctx context.Context, ids []uuid.UUID) ([]domain.Guide, error)

	// List returns guides ordered by name. activeOnly hides deactivated guides.
	List(ctx context.Context, activeOnly bool) ([]domain.Guide, error)

	// FindGuideByEmail returns the active guide holding email.
	// Returns domain.ErrNotFound when no active guide holds it.
	FindGuideByEmail(ctx context.Context, email string) (domain.Guide, error)

	// ListByEmail returns every guide, active or not, holding email.
	ListByEmail(ctx context.Context, email string) ([]domain.Guide, error)

	// Update overwrites name, rank, active and email.
	Update(ctx context.Context, g domain.Guide) (domain.Guide, error)

	// Delete removes a guide. Returns domain.ErrNotFound if it does not exist.
	Delete(ctx context.Context, id uuid.UUID) error

	// Usage counts trip_guides rows and led trips for the guide.
	Usage(ctx context.Context, id uuid.UUID) (GuideUsage, error)
}

type pgGuideRepo struct {
	db db
}

// NewGuideRepo constructs a GuideRepo backed by the provided db connection.
func NewGuideRepo(db db) GuideRepo {
	return &pgGuideRepo{db: db}
}

const guideColumns = `id, name, rank, active, email, created_at, updated_at`

func (r *pgGuideRepo) Create(ctx context.Context, g domain.Guide) (domain.Guide, error) {
	q := `
		INSERT INTO guides (name, rank, active, email)
		VALUES (@name, @rank, @active, @email)
		RETURNING ` + guideColumns

	row := r.db.QueryRow(ctx, q, pgx.NamedArgs{
		"name":   g.Name,
		"rank":   string(g.Rank),
		"active": g.Active,
		"email":  g.Email,
	})
	result, err := scanGuide(row)
	if err != nil {
		if uniqueViolation(err) {
			return domain.Guide{}, fmt.Errorf("repo.GuideRepo.Create: %w", domain.Conflictf("email already held by an active guide"))
		}
		return domain.Guide{}, fmt.Errorf("repo.GuideRepo.Create: %w", err)
	}
	return result, nil
}

func (r *pgGuideRepo) Get(ctx context.Context, id uuid.UUID) (domain.Guide, error) {
	q := `SELECT ` + guideColumns + ` FROM guides WHERE id = @id`

	result, err := scanGuide(r.db.QueryRow(ctx, q, pgx.NamedArgs{"id": id}))
	if err != nil {
		return domain.Guide{}, fmt.Errorf("repo.GuideRepo.Get: %w", err)
	}
	return result, nil
}

func (r *pgGuideRepo) GetMany(ctx context.Context, ids []uuid.UUID) ([]domain.Guide, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	q := `SELECT ` + guideColumns + ` FROM guides WHERE id = ANY(@ids::uuid[])`
	guides, err := r.queryGuides(ctx, q, pgx.NamedArgs{"ids": idStrings(ids)})
	if err != nil {
		return nil, fmt.Errorf("repo.GuideRepo.GetMany: %w", err)
	}
	return guides, nil
}

func (r *pgGuideRepo) List(ctx context.Context, activeOnly bool) ([]domain.Guide, error) {
	q := `
		SELECT ` + guideColumns + `
		FROM guides
		WHERE (NOT @active_only OR active)
		ORDER BY name, id`
	guides, err := r.queryGuides(ctx, q, pgx.NamedArgs{"active_only": activeOnly})
	if err != nil {
		return nil, fmt.Errorf("repo.GuideRepo.List: %w", err)
	}
	return guides, nil
}

func (r *pgGuideRepo) FindGuideByEmail(ctx context.Context, email string) (domain.Guide, error) {
	q := `SELECT ` + guideColumns + ` FROM guides WHERE lower(email) = lower(@email) AND active`

	result, err := scanGuide(r.db.QueryRow(ctx, q, pgx.NamedArgs{"email": email}))
	if err != nil {
		return domain.Guide{}, fmt.Errorf("repo.GuideRepo.FindGuideByEmail: %w", err)
	}
	return result, nil
}

func (r *pgGuideRepo) ListByEmail(ctx context.Context, email string) ([]domain.Guide, error) {
	q := `SELECT ` + guideColumns + ` FROM guides WHERE lower(email) = lower(@email) ORDER BY created_at, id`
	guides, err := r.queryGuides(ctx, q, pgx.NamedArgs{"email": email})
	if err != nil {
		return nil, fmt.Errorf("repo.GuideRepo.ListByEmail: %w", err)
	}
	return guides, nil
}

func (r *pgGuideRepo) Update(ctx context.Context, g domain.Guide) (domain.Guide, error) {
	q := `
		UPDATE guides
		SET name       = @name,
		    rank       = @rank,
		    active     = @active,
		    email      = @email,
		    updated_at = now()
		WHERE id = @id
		RETURNING ` + guideColumns

	row := r.db.QueryRow(ctx, q, pgx.NamedArgs{
		"id":     g.ID,
		"name":   g.Name,
		"rank":   string(g.Rank),
		"active": g.Active,
		"email":  g.Email,
	})
	result, err := scanGuide(row)
	if err != nil {
		if uniqueViolation(err) {
			return domain.Guide{}, fmt.Errorf("repo.GuideRepo.Update: %w", domain.Conflictf("email already held by an active guide"))
		}
		return domain.Guide{}, fmt.Errorf("repo.GuideRepo.Update: %w", err)
	}
	return result, nil
}

func (r *pgGuideRepo) Delete(ctx context.Context, id uuid.UUID) error {
	const q = `DELETE FROM guides WHERE id = @id`

	tag, err := r.db.Exec(ctx, q, pgx.NamedArgs{"id": id})
	if err != nil {
		return fmt.Errorf("repo.GuideRepo.Delete: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("repo.GuideRepo.Delete: %w", domain.ErrNotFound)
	}
	return nil
}

func (r *pgGuideRepo) Usage(ctx context.Context, id uuid.UUID) (GuideUsage, error) {
	const q = `
		SELECT
			(SELECT count(*) FROM trip_guides WHERE guide_id = @id),
			(SELECT count(*) FROM trips WHERE trip_leader_id = @id)`

	var u GuideUsage
	if err := r.db.QueryRow(ctx, q, pgx.NamedArgs{"id": id}).Scan(&u.TripGuides, &u.LedTrips); err != nil {
		return GuideUsage{}, fmt.Errorf("repo.GuideRepo.Usage: %w", err)
	}
	return u, nil
}

func (r *pgGuideRepo) queryGuides(ctx context.Context, q string, args pgx.NamedArgs) ([]domain.Guide, error) {
	rows, err := r.db.Query(ctx, q, args)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var guides []domain.Guide
	for rows.Next() {
		g, err := scanGuide(rows)
		if err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		guides = append(guides, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return guides, nil
}

func scanGuide(s scanner) (domain.Guide, error) {
	var (
		g     domain.Guide
		id    pgtype.UUID
		rank  string
		email pgtype.Text
	)
	if err := s.Scan(&id, &g.Name, &rank, &g.Active, &email, &g.CreatedAt, &g.UpdatedAt); err != nil {
		return domain.Guide{}, notFound(err)
	}
	g.ID = uuid.UUID(id.Bytes)
	g.Rank = domain.Rank(rank)
	g.Email = textPtr(email)
	return g, nil
}
