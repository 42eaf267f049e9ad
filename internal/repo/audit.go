package repo

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// AuditEntry describes one write performed by an account.
type AuditEntry struct {
	ActorID  *uuid.UUID
	Action   string
	Entity   string
	EntityID *uuid.UUID
}

// AuditRepo appends to the audit log.
type AuditRepo interface {
	Record(ctx context.Context, e AuditEntry) error
}

type pgAuditRepo struct {
	db db
}

// NewAuditRepo constructs an AuditRepo backed by the provided db connection.
func NewAuditRepo(db db) AuditRepo {
	return &pgAuditRepo{db: db}
}

func (r *pgAuditRepo) Record(ctx context.Context, e AuditEntry) error {
	const q = `
		INSERT INTO audit_logs (actor_id, action, entity, entity_id)
		VALUES (@actor_id, @action, @entity, @entity_id)`

	_, err := r.db.Exec(ctx, q, pgx.NamedArgs{
		"actor_id":  e.ActorID,
		"action":    e.Action,
		"entity":    e.Entity,
		"entity_id": e.EntityID,
	})
	if err != nil {
		return fmt.Errorf("repo.AuditRepo.Record: %w", err)
	}
	return nil
}
