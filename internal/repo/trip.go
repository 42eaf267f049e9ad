package repo

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/GideonLangenhoven/CKACashups/internal/domain"
)

// TripScope limits a listing to what an actor may see.
// When All is false only trips created by AccountID or assigned to GuideID match.
type TripScope struct {
	All       bool
	AccountID uuid.UUID
	GuideID   *uuid.UUID
}

// TripRepo defines the persistence operations for Trips and the rows they own
// (payment breakdown, discount lines and guide assignments).
// Every read returns trips with their children loaded.
type TripRepo interface {
	// Create inserts the trip and all its children. Run it inside TxRunner.InTx
	// so a failure part way leaves nothing behind.
	Create(ctx context.Context, trip domain.Trip) (domain.Trip, error)

	// Get returns domain.ErrNotFound if no trip has the id.
	Get(ctx context.Context, id uuid.UUID) (domain.Trip, error)

	// List returns one page of trips matching filter and scope, newest first,
	// together with the total number of matches.
	List(ctx context.Context, filter domain.TripFilter, scope TripScope, page domain.PaginationParams) ([]domain.Trip, int64, error)

	// UpdateStatus sets a trip's status. Returns domain.ErrNotFound if it does not exist.
	UpdateStatus(ctx context.Context, id uuid.UUID, status domain.TripStatus) error

	// Delete removes a trip and, by cascade, its children.
	Delete(ctx context.Context, id uuid.UUID) error

	// FindTripsInRange returns trips dated within [start, end], ascending by date.
	FindTripsInRange(ctx context.Context, start, end time.Time) ([]domain.Trip, error)

	// FindTripsForGuideInRange returns trips within [start, end] that guideID
	// was assigned to, ascending by date.
	FindTripsForGuideInRange(ctx context.Context, guideID uuid.UUID, start, end time.Time) ([]domain.Trip, error)
}

type pgTripRepo struct {
	db db
}

// NewTripRepo constructs a TripRepo backed by the provided db connection.
// In production pass *pgxpool.Pool; in tests pass a pgx.Tx for rollback isolation.
func NewTripRepo(db db) TripRepo {
	return &pgTripRepo{db: db}
}

func (r *pgTripRepo) Create(ctx context.Context, trip domain.Trip) (domain.Trip, error) {
	const q = `
		INSERT INTO trips (trip_date, lead_name, pax_guide_note, total_pax, status, trip_leader_id,
		                   payments_made, pics_uploaded, trip_email_sent, trip_report, suggestions, created_by_id)
		VALUES (@trip_date, @lead_name, @pax_guide_note, @total_pax, @status, @trip_leader_id,
		        @payments_made, @pics_uploaded, @trip_email_sent, @trip_report, @suggestions, @created_by_id)
		RETURNING id, created_at, updated_at`

	var id pgtype.UUID
	err := r.db.QueryRow(ctx, q, pgx.NamedArgs{
		"trip_date":       trip.TripDate,
		"lead_name":       trip.LeadName,
		"pax_guide_note":  trip.PaxGuideNote,
		"total_pax":       trip.TotalPax,
		"status":          string(trip.Status),
		"trip_leader_id":  trip.TripLeaderID,
		"payments_made":   trip.PaymentsMade,
		"pics_uploaded":   trip.PicsUploaded,
		"trip_email_sent": trip.TripEmailSent,
		"trip_report":     trip.TripReport,
		"suggestions":     trip.Suggestions,
		"created_by_id":   trip.CreatedByID,
	}).Scan(&id, &trip.CreatedAt, &trip.UpdatedAt)
	if err != nil {
		return domain.Trip{}, fmt.Errorf("repo.TripRepo.Create: %w", err)
	}
	trip.ID = uuid.UUID(id.Bytes)

	if err := r.insertPayments(ctx, trip.ID, trip.Payments); err != nil {
		return domain.Trip{}, fmt.Errorf("repo.TripRepo.Create: payments: %w", err)
	}

	for i := range trip.Discounts {
		const dq = `INSERT INTO discount_lines (trip_id, amount, reason) VALUES (@trip_id, @amount, @reason) RETURNING id`
		var did pgtype.UUID
		dl := trip.Discounts[i]
		if err := r.db.QueryRow(ctx, dq, pgx.NamedArgs{"trip_id": trip.ID, "amount": dl.Amount, "reason": dl.Reason}).Scan(&did); err != nil {
			return domain.Trip{}, fmt.Errorf("repo.TripRepo.Create: discount: %w", err)
		}
		trip.Discounts[i].ID = uuid.UUID(did.Bytes)
	}

	for i := range trip.Guides {
		const gq = `
			INSERT INTO trip_guides (trip_id, guide_id, guide_rank, pax_count, fee_amount)
			VALUES (@trip_id, @guide_id, @guide_rank, @pax_count, @fee_amount)
			RETURNING id`
		var gid pgtype.UUID
		tg := trip.Guides[i]
		err := r.db.QueryRow(ctx, gq, pgx.NamedArgs{
			"trip_id":    trip.ID,
			"guide_id":   tg.GuideID,
			"guide_rank": string(tg.GuideRank),
			"pax_count":  tg.PaxCount,
			"fee_amount": tg.FeeAmount,
		}).Scan(&gid)
		if err != nil {
			return domain.Trip{}, fmt.Errorf("repo.TripRepo.Create: trip guide: %w", err)
		}
		trip.Guides[i].ID = uuid.UUID(gid.Bytes)
		trip.Guides[i].TripID = trip.ID
	}

	return trip, nil
}

func (r *pgTripRepo) insertPayments(ctx context.Context, tripID uuid.UUID, p domain.PaymentBreakdown) error {
	const q = `
		INSERT INTO payment_breakdowns (trip_id, cash_received, credit_cards, online_efts, vouchers,
		                                members, agents_to_invoice, water_phone_sunblock, discounts_total)
		VALUES (@trip_id, @cash_received, @credit_cards, @online_efts, @vouchers,
		        @members, @agents_to_invoice, @water_phone_sunblock, @discounts_total)`

	_, err := r.db.Exec(ctx, q, pgx.NamedArgs{
		"trip_id":              tripID,
		"cash_received":        p.CashReceived,
		"credit_cards":         p.CreditCards,
		"online_efts":          p.OnlineEFTs,
		"vouchers":             p.Vouchers,
		"members":              p.Members,
		"agents_to_invoice":    p.AgentsToInvoice,
		"water_phone_sunblock": p.WaterPhoneSunblock,
		"discounts_total":      p.DiscountsTotal,
	})
	return err
}

// tripSelect joins the one-to-one payment row and the creator's email.
const tripSelect = `
	SELECT t.id, t.trip_date, t.lead_name, t.pax_guide_note, t.total_pax, t.status, t.trip_leader_id,
	       t.payments_made, t.pics_uploaded, t.trip_email_sent, t.trip_report, t.suggestions,
	       t.created_by_id, COALESCE(a.email, ''), t.created_at, t.updated_at,
	       COALESCE(pb.cash_received, 0), COALESCE(pb.credit_cards, 0), COALESCE(pb.online_efts, 0),
	       COALESCE(pb.vouchers, 0), COALESCE(pb.members, 0), COALESCE(pb.agents_to_invoice, 0),
	       COALESCE(pb.water_phone_sunblock, 0), COALESCE(pb.discounts_total, 0)
	FROM trips t
	LEFT JOIN payment_breakdowns pb ON pb.trip_id = t.id
	LEFT JOIN accounts a ON a.id = t.created_by_id`

func (r *pgTripRepo) Get(ctx context.Context, id uuid.UUID) (domain.Trip, error) {
	q := tripSelect + ` WHERE t.id = @id`

	trip, err := scanTrip(r.db.QueryRow(ctx, q, pgx.NamedArgs{"id": id}))
	if err != nil {
		return domain.Trip{}, fmt.Errorf("repo.TripRepo.Get: %w", err)
	}
	trips := []domain.Trip{trip}
	if err := r.loadChildren(ctx, trips); err != nil {
		return domain.Trip{}, fmt.Errorf("repo.TripRepo.Get: %w", err)
	}
	return trips[0], nil
}

const tripFilterWhere = `
	WHERE (@all
	       OR t.created_by_id = @account_id
	       OR EXISTS (SELECT 1 FROM trip_guides x WHERE x.trip_id = t.id AND x.guide_id = @guide_id::uuid))
	  AND (@lead = '' OR t.lead_name ILIKE '%' || @lead || '%')
	  AND (@status = '' OR t.status = @status)
	  AND (@note = '' OR t.pax_guide_note ILIKE '%' || @note || '%')
	  AND (@start::timestamptz IS NULL OR t.trip_date >= @start::timestamptz)
	  AND (@end::timestamptz IS NULL OR t.trip_date <= @end::timestamptz)`

func (r *pgTripRepo) List(ctx context.Context, filter domain.TripFilter, scope TripScope, page domain.PaginationParams) ([]domain.Trip, int64, error) {
	args := pgx.NamedArgs{
		"all":        scope.All,
		"account_id": scope.AccountID,
		"guide_id":   scope.GuideID,
		"lead":       filter.Lead,
		"status":     string(filter.Status),
		"note":       filter.Note,
		"start":      filter.Start,
		"end":        filter.End,
	}

	var total int64
	countQ := `SELECT count(*) FROM trips t` + tripFilterWhere
	if err := r.db.QueryRow(ctx, countQ, args).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("repo.TripRepo.List: count: %w", err)
	}

	args["limit"] = page.Limit
	args["offset"] = page.Offset()
	q := tripSelect + tripFilterWhere + `
		ORDER BY t.trip_date DESC, t.id
		LIMIT @limit OFFSET @offset`

	trips, err := r.queryTrips(ctx, q, args)
	if err != nil {
		return nil, 0, fmt.Errorf("repo.TripRepo.List: %w", err)
	}
	return trips, total, nil
}

func (r *pgTripRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.TripStatus) error {
	const q = `UPDATE trips SET status = @status, updated_at = now() WHERE id = @id`

	tag, err := r.db.Exec(ctx, q, pgx.NamedArgs{"id": id, "status": string(status)})
	if err != nil {
		return fmt.Errorf("repo.TripRepo.UpdateStatus: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("repo.TripRepo.UpdateStatus: %w", domain.ErrNotFound)
	}
	return nil
}

func (r *pgTripRepo) Delete(ctx context.Context, id uuid.UUID) error {
	const q = `DELETE FROM trips WHERE id = @id`

	tag, err := r.db.Exec(ctx, q, pgx.NamedArgs{"id": id})
	if err != nil {
		return fmt.Errorf("repo.TripRepo.Delete: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("repo.TripRepo.Delete: %w", domain.ErrNotFound)
	}
	return nil
}

func (r *pgTripRepo) FindTripsInRange(ctx context.Context, start, end time.Time) ([]domain.Trip, error) {
	q := tripSelect + `
		WHERE t.trip_date >= @start AND t.trip_date <= @end
		ORDER BY t.trip_date ASC, t.id`

	trips, err := r.queryTrips(ctx, q, pgx.NamedArgs{"start": start, "end": end})
	if err != nil {
		return nil, fmt.Errorf("repo.TripRepo.FindTripsInRange: %w", err)
	}
	return trips, nil
}

func (r *pgTripRepo) FindTripsForGuideInRange(ctx context.Context, guideID uuid.UUID, start, end time.Time) ([]domain.Trip, error) {
	q := tripSelect + `
		WHERE t.trip_date >= @start AND t.trip_date <= @end
		  AND EXISTS (SELECT 1 FROM trip_guides x WHERE x.trip_id = t.id AND x.guide_id = @guide_id)
		ORDER BY t.trip_date ASC, t.id`

	trips, err := r.queryTrips(ctx, q, pgx.NamedArgs{"guide_id": guideID, "start": start, "end": end})
	if err != nil {
		return nil, fmt.Errorf("repo.TripRepo.FindTripsForGuideInRange: %w", err)
	}
	return trips, nil
}

// queryTrips reads all matching trips, closes the cursor, then loads children.
// The cursor must be closed first: a pgx.Tx cannot run a second query while rows are open.
func (r *pgTripRepo) queryTrips(ctx context.Context, q string, args pgx.NamedArgs) ([]domain.Trip, error) {
	rows, err := r.db.Query(ctx, q, args)
	if err != nil {
		return nil, err
	}
	var trips []domain.Trip
	for rows.Next() {
		t, err := scanTrip(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan: %w", err)
		}
		trips = append(trips, t)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}

	if err := r.loadChildren(ctx, trips); err != nil {
		return nil, err
	}
	return trips, nil
}

// loadChildren fills Guides and Discounts for every trip in place.
func (r *pgTripRepo) loadChildren(ctx context.Context, trips []domain.Trip) error {
	if len(trips) == 0 {
		return nil
	}
	index := make(map[uuid.UUID]int, len(trips))
	ids := make([]uuid.UUID, len(trips))
	for i, t := range trips {
		index[t.ID] = i
		ids[i] = t.ID
		trips[i].Guides = []domain.TripGuide{}
		trips[i].Discounts = []domain.DiscountLine{}
	}
	args := pgx.NamedArgs{"ids": idStrings(ids)}

	const gq = `
		SELECT tg.id, tg.trip_id, tg.guide_id, g.name, tg.guide_rank, tg.pax_count, tg.fee_amount
		FROM trip_guides tg
		JOIN guides g ON g.id = tg.guide_id
		WHERE tg.trip_id = ANY(@ids::uuid[])
		ORDER BY g.name, tg.id`
	rows, err := r.db.Query(ctx, gq, args)
	if err != nil {
		return fmt.Errorf("trip guides: %w", err)
	}
	for rows.Next() {
		var (
			tg           domain.TripGuide
			id, tid, gid pgtype.UUID
			rank         string
		)
		if err := rows.Scan(&id, &tid, &gid, &tg.GuideName, &rank, &tg.PaxCount, &tg.FeeAmount); err != nil {
			rows.Close()
			return fmt.Errorf("trip guides: scan: %w", err)
		}
		tg.ID, tg.TripID, tg.GuideID = uuid.UUID(id.Bytes), uuid.UUID(tid.Bytes), uuid.UUID(gid.Bytes)
		tg.GuideRank = domain.Rank(rank)
		i := index[tg.TripID]
		trips[i].Guides = append(trips[i].Guides, tg)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("trip guides: rows: %w", err)
	}

	const dq = `
		SELECT id, trip_id, amount, reason
		FROM discount_lines
		WHERE trip_id = ANY(@ids::uuid[])
		ORDER BY id`
	rows, err = r.db.Query(ctx, dq, args)
	if err != nil {
		return fmt.Errorf("discounts: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			dl      domain.DiscountLine
			id, tid pgtype.UUID
		)
		if err := rows.Scan(&id, &tid, &dl.Amount, &dl.Reason); err != nil {
			return fmt.Errorf("discounts: scan: %w", err)
		}
		dl.ID = uuid.UUID(id.Bytes)
		i := index[uuid.UUID(tid.Bytes)]
		trips[i].Discounts = append(trips[i].Discounts, dl)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("discounts: rows: %w", err)
	}
	return nil
}

// scanTrip maps a tripSelect row into a domain.Trip without children.
func scanTrip(s scanner) (domain.Trip, error) {
	var (
		t         domain.Trip
		id        pgtype.UUID
		leaderID  pgtype.UUID
		creatorID pgtype.UUID
		status    string
		p         = &t.Payments
	)

	err := s.Scan(
		&id, &t.TripDate, &t.LeadName, &t.PaxGuideNote, &t.TotalPax, &status, &leaderID,
		&t.PaymentsMade, &t.PicsUploaded, &t.TripEmailSent, &t.TripReport, &t.Suggestions,
		&creatorID, &t.CreatedBy, &t.CreatedAt, &t.UpdatedAt,
		&p.CashReceived, &p.CreditCards, &p.OnlineEFTs,
		&p.Vouchers, &p.Members, &p.AgentsToInvoice,
		&p.WaterPhoneSunblock, &p.DiscountsTotal,
	)
	if err != nil {
		return domain.Trip{}, notFound(err)
	}

	t.ID = uuid.UUID(id.Bytes)
	t.Status = domain.TripStatus(status)
	t.TripLeaderID = uuidPtr(leaderID)
	t.CreatedByID = uuid.UUID(creatorID.Bytes)
	return t, nil
}
