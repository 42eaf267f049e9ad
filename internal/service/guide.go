package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/GideonLangenhoven/CKACashups/internal/domain"
	"github.com/GideonLangenhoven/CKACashups/internal/repo"
)

const maxGuideNameLen = 120

// GuideService keeps guide profiles and login accounts consistent.
//
// Every write runs in one transaction that first takes an advisory lock on the
// normalized email it touches, so two requests attaching the same address are
// serialized and the second one sees the first one's rows.
type GuideService struct {
	tx     repo.TxRunner
	guides repo.GuideRepo
	logger *slog.Logger
}

// NewGuideService constructs a GuideService. guides serves reads outside a transaction.
func NewGuideService(tx repo.TxRunner, guides repo.GuideRepo, logger *slog.Logger) *GuideService {
	return &GuideService{tx: tx, guides: guides, logger: logger}
}

// EmailClearance reports what ClearEmail changed.
type EmailClearance struct {
	Email              string `json:"email"`
	GuidesCleared      int    `json:"guides_cleared"`
	AccountsDeleted    int    `json:"accounts_deleted"`
	AccountsAnonymized int    `json:"accounts_anonymized"`
}

// List returns guides ordered by name. Always returns a non-nil slice.
func (s *GuideService) List(ctx context.Context, activeOnly bool) ([]domain.Guide, error) {
	guides, err := s.guides.List(ctx, activeOnly)
	if err != nil {
		return nil, fmt.Errorf("service.GuideService.List: %w", err)
	}
	if guides == nil {
		return []domain.Guide{}, nil
	}
	return guides, nil
}

// Create adds a guide and, when it has an email, links or creates its login account.
func (s *GuideService) Create(ctx context.Context, actor domain.Actor, in domain.GuideInput) (domain.Guide, error) {
	in, err := normalizeGuideInput(in)
	if err != nil {
		return domain.Guide{}, err
	}

	var out domain.Guide
	err = s.tx.InTx(ctx, func(st repo.Store) error {
		if err := lockEmail(ctx, st, in.Email); err != nil {
			return err
		}
		if err := claimEmail(ctx, st, uuid.Nil, in.Email); err != nil {
			return err
		}
		g, err := st.Guides.Create(ctx, domain.Guide{
			Name:   in.Name,
			Rank:   in.Rank,
			Active: true,
			Email:  emailPtr(in.Email),
		})
		if err != nil {
			return err
		}
		if err := syncAccount(ctx, st, g); err != nil {
			return err
		}
		out = g
		return record(ctx, st, actor, "guide.create", "guide", g.ID)
	})
	if err != nil {
		return domain.Guide{}, fmt.Errorf("service.GuideService.Create: %w", err)
	}
	s.logger.InfoContext(ctx, "guide_reconciled", "op", "create", "guide_id", out.ID)
	return out, nil
}

// Update overwrites a guide's name, rank, email and active flag.
// Setting Active to false goes through the same path as Deactivate.
func (s *GuideService) Update(ctx context.Context, actor domain.Actor, id uuid.UUID, in domain.GuideInput) (domain.Guide, error) {
	in, err := normalizeGuideInput(in)
	if err != nil {
		return domain.Guide{}, err
	}

	var out domain.Guide
	err = s.tx.InTx(ctx, func(st repo.Store) error {
		current, err := st.Guides.Get(ctx, id)
		if err != nil {
			return err
		}
		current.Name = in.Name
		current.Rank = in.Rank

		if !in.Active {
			out, err = deactivate(ctx, st, current)
			if err != nil {
				return err
			}
			return record(ctx, st, actor, "guide.deactivate", "guide", id)
		}

		if err := lockEmail(ctx, st, in.Email); err != nil {
			return err
		}
		if err := claimEmail(ctx, st, id, in.Email); err != nil {
			return err
		}
		current.Active = true
		current.Email = emailPtr(in.Email)
		g, err := st.Guides.Update(ctx, current)
		if err != nil {
			return err
		}
		if err := syncAccount(ctx, st, g); err != nil {
			return err
		}
		out = g
		return record(ctx, st, actor, "guide.update", "guide", id)
	})
	if err != nil {
		return domain.Guide{}, fmt.Errorf("service.GuideService.Update: %w", err)
	}
	s.logger.InfoContext(ctx, "guide_reconciled", "op", "update", "guide_id", id, "active", out.Active)
	return out, nil
}

// Deactivate marks a guide inactive, frees its email and anonymizes its linked account.
// Deactivating an inactive guide is a no-op apart from the audit entry.
func (s *GuideService) Deactivate(ctx context.Context, actor domain.Actor, id uuid.UUID) (domain.Guide, error) {
	var out domain.Guide
	err := s.tx.InTx(ctx, func(st repo.Store) error {
		current, err := st.Guides.Get(ctx, id)
		if err != nil {
			return err
		}
		out, err = deactivate(ctx, st, current)
		if err != nil {
			return err
		}
		return record(ctx, st, actor, "guide.deactivate", "guide", id)
	})
	if err != nil {
		return domain.Guide{}, fmt.Errorf("service.GuideService.Deactivate: %w", err)
	}
	s.logger.InfoContext(ctx, "guide_reconciled", "op", "deactivate", "guide_id", id)
	return out, nil
}

// Delete removes a guide that no trip references, together with its linked
// account when that account has no history. Otherwise it returns a
// *domain.DependencyError carrying the blocking counts.
func (s *GuideService) Delete(ctx context.Context, actor domain.Actor, id uuid.UUID) error {
	err := s.tx.InTx(ctx, func(st repo.Store) error {
		g, err := st.Guides.Get(ctx, id)
		if err != nil {
			return err
		}
		if g.HasEmail() {
			if err := lockEmail(ctx, st, *g.Email); err != nil {
				return err
			}
		}

		usage, err := st.Guides.Usage(ctx, id)
		if err != nil {
			return err
		}
		if usage.InUse() {
			return &domain.DependencyError{
				Entity: "guide",
				Counts: map[string]int{"trip_assignments": usage.TripGuides, "led_trips": usage.LedTrips},
				Hint:   "deactivate the guide instead",
			}
		}

		linked, err := st.Accounts.FindByGuideID(ctx, id)
		switch {
		case errors.Is(err, domain.ErrNotFound):
		case err != nil:
			return err
		default:
			h, err := st.Accounts.History(ctx, linked.ID)
			if err != nil {
				return err
			}
			if !h.Empty() {
				return &domain.DependencyError{
					Entity: "account",
					Counts: map[string]int{"trips": h.Trips, "invites": h.Invites, "audit_logs": h.AuditLogs},
					Hint:   "deactivate the guide instead",
				}
			}
			if err := st.Accounts.Delete(ctx, linked.ID); err != nil {
				return err
			}
		}

		if err := st.Guides.Delete(ctx, id); err != nil {
			return err
		}
		return record(ctx, st, actor, "guide.delete", "guide", id)
	})
	if err != nil {
		return fmt.Errorf("service.GuideService.Delete: %w", err)
	}
	s.logger.InfoContext(ctx, "guide_reconciled", "op", "delete", "guide_id", id)
	return nil
}

// ClearEmail frees email from every guide and account. Accounts without
// history are deleted; the rest keep their rows under a placeholder address.
func (s *GuideService) ClearEmail(ctx context.Context, actor domain.Actor, email string) (EmailClearance, error) {
	email = domain.NormalizeEmail(email)
	if email == "" {
		return EmailClearance{}, domain.Validationf("email is required")
	}

	res := EmailClearance{Email: email}
	err := s.tx.InTx(ctx, func(st repo.Store) error {
		if err := lockEmail(ctx, st, email); err != nil {
			return err
		}
		holders, err := st.Guides.ListByEmail(ctx, email)
		if err != nil {
			return err
		}
		for _, g := range holders {
			g.Email = nil
			if _, err := st.Guides.Update(ctx, g); err != nil {
				return err
			}
			res.GuidesCleared++
		}

		acct, err := st.Accounts.FindByEmail(ctx, email)
		switch {
		case errors.Is(err, domain.ErrNotFound):
		case err != nil:
			return err
		default:
			deleted, err := releaseAccount(ctx, st, acct)
			if err != nil {
				return err
			}
			if deleted {
				res.AccountsDeleted++
			} else {
				res.AccountsAnonymized++
			}
		}
		return record(ctx, st, actor, "email.clear", "account", uuid.Nil)
	})
	if err != nil {
		return EmailClearance{}, fmt.Errorf("service.GuideService.ClearEmail: %w", err)
	}
	s.logger.InfoContext(ctx, "email_cleared",
		"guides", res.GuidesCleared, "deleted", res.AccountsDeleted, "anonymized", res.AccountsAnonymized)
	return res, nil
}

func normalizeGuideInput(in domain.GuideInput) (domain.GuideInput, error) {
	in.Name = strings.TrimSpace(in.Name)
	if in.Name == "" {
		return in, domain.Validationf("name is required")
	}
	if len(in.Name) > maxGuideNameLen {
		return in, domain.Validationf("name must be at most %d characters", maxGuideNameLen)
	}
	rank, err := domain.ParseRank(string(in.Rank))
	if err != nil {
		return in, err
	}
	in.Rank = rank
	in.Email = domain.NormalizeEmail(in.Email)
	if in.Email != "" && !strings.Contains(in.Email, "@") {
		return in, domain.Validationf("email %q is not a valid address", in.Email)
	}
	return in, nil
}

func emailPtr(email string) *string {
	if email == "" {
		return nil
	}
	return &email
}

func lockEmail(ctx context.Context, st repo.Store, email string) error {
	if email == "" {
		return nil
	}
	return st.Locks.LockKey(ctx, "guide-email:"+email)
}

// claimEmail makes email available to guide self: an active holder is a
// conflict, inactive holders lose the address.
func claimEmail(ctx context.Context, st repo.Store, self uuid.UUID, email string) error {
	if email == "" {
		return nil
	}
	holders, err := st.Guides.ListByEmail(ctx, email)
	if err != nil {
		return err
	}
	for _, g := range holders {
		if g.ID == self {
			continue
		}
		if g.Active {
			return domain.Conflictf("email %s is already used by active guide %s", email, g.Name)
		}
	}
	for _, g := range holders {
		if g.ID == self {
			continue
		}
		g.Email = nil
		if _, err := st.Guides.Update(ctx, g); err != nil {
			return err
		}
	}
	return nil
}

// syncAccount brings the login account of an active guide in line with it.
//
// With no email the linked account, if any, only has its name synced. With an
// email E:
//   - no account holds E: the linked account takes E, or a USER account is created;
//   - the linked account holds E: name synced and reactivated;
//   - an active account linked to a different active guide holds E: conflict;
//   - any other holder of E is reused when the guide has no account yet, and
//     released (deleted or anonymized) when it does.
func syncAccount(ctx context.Context, st repo.Store, g domain.Guide) error {
	linked, hasLinked, err := linkedAccount(ctx, st, g.ID)
	if err != nil {
		return err
	}

	if !g.HasEmail() {
		if hasLinked && linked.Name != g.Name {
			linked.Name = g.Name
			_, err = st.Accounts.Update(ctx, linked)
		}
		return err
	}
	email := *g.Email

	holder, err := st.Accounts.FindByEmail(ctx, email)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		if hasLinked {
			return relink(ctx, st, linked, g)
		}
		_, err = st.Accounts.Create(ctx, domain.Account{
			Email:   email,
			Name:    g.Name,
			Role:    domain.RoleUser,
			Active:  true,
			GuideID: &g.ID,
		})
		return err
	case err != nil:
		return err
	}

	if holder.LinkedTo(g.ID) {
		return relink(ctx, st, holder, g)
	}

	if holder.Active && holder.GuideID != nil {
		other, err := st.Guides.Get(ctx, *holder.GuideID)
		if err != nil && !errors.Is(err, domain.ErrNotFound) {
			return err
		}
		if err == nil && other.Active {
			return domain.Conflictf("email %s is linked to the account of active guide %s", email, other.Name)
		}
	}

	if !hasLinked {
		return relink(ctx, st, holder, g)
	}
	if _, err := releaseAccount(ctx, st, holder); err != nil {
		return err
	}
	return relink(ctx, st, linked, g)
}

func linkedAccount(ctx context.Context, st repo.Store, guideID uuid.UUID) (domain.Account, bool, error) {
	a, err := st.Accounts.FindByGuideID(ctx, guideID)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.Account{}, false, nil
	}
	if err != nil {
		return domain.Account{}, false, err
	}
	return a, true, nil
}

// relink points a at g and takes g's name and email.
func relink(ctx context.Context, st repo.Store, a domain.Account, g domain.Guide) error {
	if a.LinkedTo(g.ID) && a.Active && a.Name == g.Name && a.Email == *g.Email {
		return nil
	}
	a.GuideID = &g.ID
	a.Name = g.Name
	a.Email = *g.Email
	a.Active = true
	_, err := st.Accounts.Update(ctx, a)
	return err
}

// releaseAccount frees the email held by a: deleted when nothing references it,
// otherwise anonymized and unlinked. Reports whether the row was deleted.
func releaseAccount(ctx context.Context, st repo.Store, a domain.Account) (bool, error) {
	h, err := st.Accounts.History(ctx, a.ID)
	if err != nil {
		return false, err
	}
	if h.Empty() {
		return true, st.Accounts.Delete(ctx, a.ID)
	}
	a.Email = domain.PlaceholderEmail(a.ID)
	a.GuideID = nil
	_, err = st.Accounts.Update(ctx, a)
	return false, err
}

// deactivate clears g's email and anonymizes its linked account. An account
// with history keeps its row and guide link so a later reactivation can reuse it.
func deactivate(ctx context.Context, st repo.Store, g domain.Guide) (domain.Guide, error) {
	if g.HasEmail() {
		if err := lockEmail(ctx, st, *g.Email); err != nil {
			return domain.Guide{}, err
		}
	}
	g.Active = false
	g.Email = nil
	out, err := st.Guides.Update(ctx, g)
	if err != nil {
		return domain.Guide{}, err
	}

	linked, ok, err := linkedAccount(ctx, st, g.ID)
	if err != nil || !ok {
		return out, err
	}
	h, err := st.Accounts.History(ctx, linked.ID)
	if err != nil {
		return domain.Guide{}, err
	}
	if h.Empty() {
		return out, st.Accounts.Delete(ctx, linked.ID)
	}
	linked.Email = domain.PlaceholderEmail(linked.ID)
	linked.Name = g.Name
	linked.Active = false
	if _, err := st.Accounts.Update(ctx, linked); err != nil {
		return domain.Guide{}, err
	}
	return out, nil
}

func record(ctx context.Context, st repo.Store, actor domain.Actor, action, entity string, id uuid.UUID) error {
	e := repo.AuditEntry{Action: action, Entity: entity}
	if actor.AccountID != uuid.Nil {
		e.ActorID = &actor.AccountID
	}
	if id != uuid.Nil {
		e.EntityID = &id
	}
	return st.Audit.Record(ctx, e)
}
