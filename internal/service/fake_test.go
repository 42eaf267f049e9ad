package service_test

import (
	"context"
	"io"
	"log/slog"
	"maps"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/GideonLangenhoven/CKACashups/internal/domain"
	"github.com/GideonLangenhoven/CKACashups/internal/notify"
	"github.com/GideonLangenhoven/CKACashups/internal/repo"
)

// memDB is an in-memory stand-in for Postgres. It enforces the same
// uniqueness rules as the schema so reconciliation bugs surface as conflicts.
type memDB struct {
	guides   map[uuid.UUID]domain.Guide
	accounts map[uuid.UUID]domain.Account
	trips    map[uuid.UUID]domain.Trip
	invites  map[uuid.UUID]int
	audit    []repo.AuditEntry
	locks    []string

	lastScope repo.TripScope
	lastPage  domain.PaginationParams
}

func newMemDB() *memDB {
	return &memDB{
		guides:   map[uuid.UUID]domain.Guide{},
		accounts: map[uuid.UUID]domain.Account{},
		trips:    map[uuid.UUID]domain.Trip{},
		invites:  map[uuid.UUID]int{},
	}
}

func (m *memDB) store() repo.Store {
	return repo.Store{
		Guides:   &fakeGuideRepo{m},
		Accounts: &fakeAccountRepo{m},
		Trips:    &fakeTripRepo{m},
		Audit:    &fakeAuditRepo{m},
		Locks:    &fakeLocker{m},
	}
}

// InTx implements repo.TxRunner. A failing fn restores the previous state.
func (m *memDB) InTx(_ context.Context, fn func(repo.Store) error) error {
	guides, accounts, trips := maps.Clone(m.guides), maps.Clone(m.accounts), maps.Clone(m.trips)
	audit := append([]repo.AuditEntry(nil), m.audit...)
	if err := fn(m.store()); err != nil {
		m.guides, m.accounts, m.trips, m.audit = guides, accounts, trips, audit
		return err
	}
	return nil
}

var _ repo.TxRunner = (*memDB)(nil)

// ---- seeding helpers -------------------------------------------------------

func (m *memDB) addGuide(name string, rank domain.Rank, active bool, email string) domain.Guide {
	g := domain.Guide{ID: uuid.New(), Name: name, Rank: rank, Active: active}
	if email != "" {
		g.Email = &email
	}
	m.guides[g.ID] = g
	return g
}

func (m *memDB) addAccount(email string, active bool, guideID *uuid.UUID) domain.Account {
	a := domain.Account{ID: uuid.New(), Email: email, Name: email, Role: domain.RoleUser, Active: active, GuideID: guideID}
	m.accounts[a.ID] = a
	return a
}

// giveHistory makes the account the creator of a trip.
func (m *memDB) giveHistory(accountID uuid.UUID) {
	t := domain.Trip{ID: uuid.New(), LeadName: "history", CreatedByID: accountID, Status: domain.TripLocked}
	m.trips[t.ID] = t
}

func (m *memDB) accountsByEmail(email string) []domain.Account {
	var out []domain.Account
	for _, a := range m.accounts {
		if strings.EqualFold(a.Email, email) {
			out = append(out, a)
		}
	}
	return out
}

func (m *memDB) guidesByEmail(email string) []domain.Guide {
	var out []domain.Guide
	for _, g := range m.guides {
		if g.Email != nil && strings.EqualFold(*g.Email, email) {
			out = append(out, g)
		}
	}
	return out
}

// ---- guides ----------------------------------------------------------------

type fakeGuideRepo struct{ m *memDB }

func (r *fakeGuideRepo) checkEmail(g domain.Guide) error {
	if !g.Active || g.Email == nil {
		return nil
	}
	for _, o := range r.m.guides {
		if o.ID != g.ID && o.Active && o.Email != nil && strings.EqualFold(*o.Email, *g.Email) {
			return domain.Conflictf("email already held by an active guide")
		}
	}
	return nil
}

func (r *fakeGuideRepo) Create(_ context.Context, g domain.Guide) (domain.Guide, error) {
	g.ID = uuid.New()
	if err := r.checkEmail(g); err != nil {
		return domain.Guide{}, err
	}
	g.CreatedAt, g.UpdatedAt = time.Now(), time.Now()
	r.m.guides[g.ID] = g
	return g, nil
}

func (r *fakeGuideRepo) Get(_ context.Context, id uuid.UUID) (domain.Guide, error) {
	g, ok := r.m.guides[id]
	if !ok {
		return domain.Guide{}, domain.ErrNotFound
	}
	return g, nil
}

func (r *fakeGuideRepo) GetMany(_ context.Context, ids []uuid.UUID) ([]domain.Guide, error) {
	var out []domain.Guide
	for _, id := range ids {
		if g, ok := r.m.guides[id]; ok {
			out = append(out, g)
		}
	}
	return out, nil
}

func (r *fakeGuideRepo) List(_ context.Context, activeOnly bool) ([]domain.Guide, error) {
	var out []domain.Guide
	for _, g := range r.m.guides {
		if !activeOnly || g.Active {
			out = append(out, g)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r *fakeGuideRepo) FindGuideByEmail(_ context.Context, email string) (domain.Guide, error) {
	for _, g := range r.m.guidesByEmail(email) {
		if g.Active {
			return g, nil
		}
	}
	return domain.Guide{}, domain.ErrNotFound
}

func (r *fakeGuideRepo) ListByEmail(_ context.Context, email string) ([]domain.Guide, error) {
	return r.m.guidesByEmail(email), nil
}

func (r *fakeGuideRepo) Update(_ context.Context, g domain.Guide) (domain.Guide, error) {
	if _, ok := r.m.guides[g.ID]; !ok {
		return domain.Guide{}, domain.ErrNotFound
	}
	if err := r.checkEmail(g); err != nil {
		return domain.Guide{}, err
	}
	g.UpdatedAt = time.Now()
	r.m.guides[g.ID] = g
	return g, nil
}

func (r *fakeGuideRepo) Delete(_ context.Context, id uuid.UUID) error {
	if _, ok := r.m.guides[id]; !ok {
		return domain.ErrNotFound
	}
	delete(r.m.guides, id)
	return nil
}

func (r *fakeGuideRepo) Usage(_ context.Context, id uuid.UUID) (repo.GuideUsage, error) {
	var u repo.GuideUsage
	for _, t := range r.m.trips {
		if _, ok := t.GuideAssignment(id); ok {
			u.TripGuides++
		}
		if t.TripLeaderID != nil && *t.TripLeaderID == id {
			u.LedTrips++
		}
	}
	return u, nil
}

// ---- accounts --------------------------------------------------------------

type fakeAccountRepo struct{ m *memDB }

func (r *fakeAccountRepo) check(a domain.Account) error {
	for _, o := range r.m.accounts {
		if o.ID == a.ID {
			continue
		}
		if strings.EqualFold(o.Email, a.Email) {
			return domain.Conflictf("an account with email %s already exists", a.Email)
		}
		if a.Active && o.Active && a.GuideID != nil && o.GuideID != nil && *a.GuideID == *o.GuideID {
			return domain.Conflictf("guide already has an active account")
		}
	}
	return nil
}

func (r *fakeAccountRepo) FindByEmail(_ context.Context, email string) (domain.Account, error) {
	if found := r.m.accountsByEmail(email); len(found) > 0 {
		return found[0], nil
	}
	return domain.Account{}, domain.ErrNotFound
}

func (r *fakeAccountRepo) FindByGuideID(_ context.Context, guideID uuid.UUID) (domain.Account, error) {
	var best *domain.Account
	for _, a := range r.m.accounts {
		if !a.LinkedTo(guideID) {
			continue
		}
		if best == nil || (a.Active && !best.Active) {
			a := a
			best = &a
		}
	}
	if best == nil {
		return domain.Account{}, domain.ErrNotFound
	}
	return *best, nil
}

func (r *fakeAccountRepo) Create(_ context.Context, a domain.Account) (domain.Account, error) {
	a.ID = uuid.New()
	if err := r.check(a); err != nil {
		return domain.Account{}, err
	}
	r.m.accounts[a.ID] = a
	return a, nil
}

func (r *fakeAccountRepo) Update(_ context.Context, a domain.Account) (domain.Account, error) {
	if _, ok := r.m.accounts[a.ID]; !ok {
		return domain.Account{}, domain.ErrNotFound
	}
	if err := r.check(a); err != nil {
		return domain.Account{}, err
	}
	r.m.accounts[a.ID] = a
	return a, nil
}

func (r *fakeAccountRepo) Delete(_ context.Context, id uuid.UUID) error {
	if _, ok := r.m.accounts[id]; !ok {
		return domain.ErrNotFound
	}
	delete(r.m.accounts, id)
	return nil
}

func (r *fakeAccountRepo) History(_ context.Context, id uuid.UUID) (domain.AccountHistory, error) {
	h := domain.AccountHistory{Invites: r.m.invites[id]}
	for _, t := range r.m.trips {
		if t.CreatedByID == id {
			h.Trips++
		}
	}
	for _, e := range r.m.audit {
		if e.ActorID != nil && *e.ActorID == id {
			h.AuditLogs++
		}
	}
	return h, nil
}

// ---- trips -----------------------------------------------------------------

type fakeTripRepo struct{ m *memDB }

func (r *fakeTripRepo) Create(_ context.Context, t domain.Trip) (domain.Trip, error) {
	t.ID = uuid.New()
	for i := range t.Guides {
		t.Guides[i].ID = uuid.New()
		t.Guides[i].TripID = t.ID
	}
	for i := range t.Discounts {
		t.Discounts[i].ID = uuid.New()
	}
	r.m.trips[t.ID] = t
	return t, nil
}

func (r *fakeTripRepo) Get(_ context.Context, id uuid.UUID) (domain.Trip, error) {
	t, ok := r.m.trips[id]
	if !ok {
		return domain.Trip{}, domain.ErrNotFound
	}
	return t, nil
}

func (r *fakeTripRepo) List(_ context.Context, f domain.TripFilter, scope repo.TripScope, page domain.PaginationParams) ([]domain.Trip, int64, error) {
	r.m.lastScope, r.m.lastPage = scope, page
	var out []domain.Trip
	for _, t := range r.m.trips {
		visible := scope.All || t.CreatedByID == scope.AccountID
		if !visible && scope.GuideID != nil {
			_, visible = t.GuideAssignment(*scope.GuideID)
		}
		if !visible {
			continue
		}
		if f.Lead != "" && !strings.Contains(strings.ToLower(t.LeadName), strings.ToLower(f.Lead)) {
			continue
		}
		if f.Status != "" && t.Status != f.Status {
			continue
		}
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TripDate.After(out[j].TripDate) })
	return out, int64(len(out)), nil
}

func (r *fakeTripRepo) UpdateStatus(_ context.Context, id uuid.UUID, status domain.TripStatus) error {
	t, ok := r.m.trips[id]
	if !ok {
		return domain.ErrNotFound
	}
	t.Status = status
	r.m.trips[id] = t
	return nil
}

func (r *fakeTripRepo) Delete(_ context.Context, id uuid.UUID) error {
	if _, ok := r.m.trips[id]; !ok {
		return domain.ErrNotFound
	}
	delete(r.m.trips, id)
	return nil
}

func (r *fakeTripRepo) FindTripsInRange(_ context.Context, start, end time.Time) ([]domain.Trip, error) {
	var out []domain.Trip
	for _, t := range r.m.trips {
		if !t.TripDate.Before(start) && !t.TripDate.After(end) {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TripDate.Before(out[j].TripDate) })
	return out, nil
}

func (r *fakeTripRepo) FindTripsForGuideInRange(ctx context.Context, guideID uuid.UUID, start, end time.Time) ([]domain.Trip, error) {
	all, _ := r.FindTripsInRange(ctx, start, end)
	var out []domain.Trip
	for _, t := range all {
		if _, ok := t.GuideAssignment(guideID); ok {
			out = append(out, t)
		}
	}
	return out, nil
}

// ---- audit and locks -------------------------------------------------------

type fakeAuditRepo struct{ m *memDB }

func (r *fakeAuditRepo) Record(_ context.Context, e repo.AuditEntry) error {
	r.m.audit = append(r.m.audit, e)
	return nil
}

type fakeLocker struct{ m *memDB }

func (l *fakeLocker) LockKey(_ context.Context, key string) error {
	l.m.locks = append(l.m.locks, key)
	return nil
}

// ---- mail ------------------------------------------------------------------

// captureMailer records sent messages. err, when set, is returned from Send.
type captureMailer struct {
	mu   sync.Mutex
	sent []notify.Message
	err  error
}

func (c *captureMailer) Send(_ context.Context, msg notify.Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, msg)
	return c.err
}

func (c *captureMailer) messages() []notify.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]notify.Message(nil), c.sent...)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
