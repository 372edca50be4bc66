package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"farmart-bargain/services/bargain-service/internal/domain"

	_ "github.com/lib/pq"
)

func OpenPostgres(ctx context.Context, connStr string) (*sql.DB, error) {
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

type PostgresSessionRepo struct {
	db *sql.DB
}

func NewPostgresSessionRepo(db *sql.DB) *PostgresSessionRepo {
	return &PostgresSessionRepo{db: db}
}

const sessionColumns = `id, animal_id, buyer_id, farmer_id, original_price, current_offer, final_price,
	last_offer_by, rounds, status, order_id, version, created_at, updated_at`

func (r *PostgresSessionRepo) Create(ctx context.Context, s *domain.NegotiationSession) error {
	if s.Version == 0 {
		s.Version = 1
	}
	query := `INSERT INTO bargain_sessions (` + sessionColumns + `)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`
	_, err := r.db.ExecContext(ctx, query,
		s.ID,
		s.AnimalID,
		s.BuyerID,
		s.FarmerID,
		s.OriginalPrice,
		s.CurrentOffer,
		s.FinalPrice,
		s.LastOfferBy,
		s.Rounds,
		s.Status,
		s.OrderID,
		s.Version,
		s.CreatedAt,
		s.UpdatedAt,
	)
	return err
}

func (r *PostgresSessionRepo) Update(ctx context.Context, s *domain.NegotiationSession) error {
	query := `UPDATE bargain_sessions
	          SET current_offer = $1, final_price = $2, last_offer_by = $3, rounds = $4,
	              status = $5, order_id = $6, updated_at = $7, version = version + 1
	          WHERE id = $8 AND version = $9`
	result, err := r.db.ExecContext(ctx, query,
		s.CurrentOffer,
		s.FinalPrice,
		s.LastOfferBy,
		s.Rounds,
		s.Status,
		s.OrderID,
		s.UpdatedAt,
		s.ID,
		s.Version,
	)
	if err != nil {
		return err
	}
	if rowsAffected, _ := result.RowsAffected(); rowsAffected == 0 {
		return domain.ErrConcurrentModification
	}
	s.Version++
	return nil
}

func (r *PostgresSessionRepo) Get(ctx context.Context, id string) (*domain.NegotiationSession, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+sessionColumns+` FROM bargain_sessions WHERE id = $1`, id)
	s, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrSessionNotFound
	}
	return s, err
}

func (r *PostgresSessionRepo) ListByParty(ctx context.Context, userID string) ([]*domain.NegotiationSession, error) {
	query := `SELECT ` + sessionColumns + ` FROM bargain_sessions
	          WHERE buyer_id = $1 OR farmer_id = $1
	          ORDER BY updated_at DESC, id
	          LIMIT 200`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []*domain.NegotiationSession
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, s)
	}
	return sessions, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (*domain.NegotiationSession, error) {
	var s domain.NegotiationSession
	var orderID sql.NullString
	err := row.Scan(
		&s.ID,
		&s.AnimalID,
		&s.BuyerID,
		&s.FarmerID,
		&s.OriginalPrice,
		&s.CurrentOffer,
		&s.FinalPrice,
		&s.LastOfferBy,
		&s.Rounds,
		&s.Status,
		&orderID,
		&s.Version,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if orderID.Valid {
		s.OrderID = &orderID.String
	}
	return &s, nil
}

type PostgresMessageRepo struct {
	db *sql.DB
}

func NewPostgresMessageRepo(db *sql.DB) *PostgresMessageRepo {
	return &PostgresMessageRepo{db: db}
}

// Append inserts m and assigns its Seq. Chat messages are only inserted while
// the session is open, checked in the same statement as the insert.
func (r *PostgresMessageRepo) Append(ctx context.Context, m *domain.Message) error {
	query := `INSERT INTO bargain_messages (id, session_id, sender_id, sender_role, kind, amount, content, created_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	          RETURNING seq`
	if m.Kind == domain.KindChat {
		query = `INSERT INTO bargain_messages (id, session_id, sender_id, sender_role, kind, amount, content, created_at)
		         SELECT $1::text, $2::text, $3::text, $4::text, $5::text, $6::numeric, $7::text, $8::timestamptz
		         WHERE EXISTS (
		             SELECT 1 FROM bargain_sessions
		             WHERE id = $2::text AND status NOT IN ('rejected', 'completed')
		         )
		         RETURNING seq`
	}
	err := r.db.QueryRowContext(ctx, query,
		m.ID,
		m.SessionID,
		m.SenderID,
		m.SenderRole,
		m.Kind,
		m.Amount,
		m.Content,
		m.CreatedAt,
	).Scan(&m.Seq)
	if errors.Is(err, sql.ErrNoRows) {
		return r.closedOrMissing(ctx, m.SessionID)
	}
	if err != nil {
		return fmt.Errorf("append message: %w", err)
	}
	return nil
}

func (r *PostgresMessageRepo) closedOrMissing(ctx context.Context, sessionID string) error {
	var status string
	err := r.db.QueryRowContext(ctx, `SELECT status FROM bargain_sessions WHERE id = $1`, sessionID).Scan(&status)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return domain.ErrSessionNotFound
	case err != nil:
		return fmt.Errorf("append message: %w", err)
	}
	return fmt.Errorf("%w: session is %s", domain.ErrSessionTerminal, status)
}

func (r *PostgresMessageRepo) ListSince(ctx context.Context, sessionID string, afterSeq int64) ([]*domain.Message, error) {
	query := `SELECT seq, id, session_id, sender_id, sender_role, kind, amount, content, created_at
	          FROM bargain_messages
	          WHERE session_id = $1 AND seq > $2
	          ORDER BY seq`
	rows, err := r.db.QueryContext(ctx, query, sessionID, afterSeq)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	msgs := []*domain.Message{}
	for rows.Next() {
		var m domain.Message
		if err := rows.Scan(&m.Seq, &m.ID, &m.SessionID, &m.SenderID, &m.SenderRole, &m.Kind, &m.Amount, &m.Content, &m.CreatedAt); err != nil {
			return nil, err
		}
		msgs = append(msgs, &m)
	}
	return msgs, rows.Err()
}

type PostgresOrderRepo struct {
	db *sql.DB
}

func NewPostgresOrderRepo(db *sql.DB) *PostgresOrderRepo {
	return &PostgresOrderRepo{db: db}
}

const orderColumns = `id, session_id, animal_id, buyer_id, farmer_id, amount, state, version, created_at, updated_at`

func (r *PostgresOrderRepo) Create(ctx context.Context, o *domain.Order) error {
	if o.Version == 0 {
		o.Version = 1
	}
	query := `INSERT INTO bargain_orders (` + orderColumns + `)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	          ON CONFLICT (session_id) DO NOTHING`
	result, err := r.db.ExecContext(ctx, query,
		o.ID,
		o.SessionID,
		o.AnimalID,
		o.BuyerID,
		o.FarmerID,
		o.Amount,
		o.State,
		o.Version,
		o.CreatedAt,
		o.UpdatedAt,
	)
	if err != nil {
		return err
	}
	if rowsAffected, _ := result.RowsAffected(); rowsAffected == 0 {
		return domain.ErrConcurrentModification
	}
	return nil
}

func (r *PostgresOrderRepo) Update(ctx context.Context, o *domain.Order) error {
	query := `UPDATE bargain_orders
	          SET state = $1, updated_at = $2, version = version + 1
	          WHERE id = $3 AND version = $4`
	result, err := r.db.ExecContext(ctx, query, o.State, o.UpdatedAt, o.ID, o.Version)
	if err != nil {
		return err
	}
	if rowsAffected, _ := result.RowsAffected(); rowsAffected == 0 {
		return domain.ErrConcurrentModification
	}
	o.Version++
	return nil
}

func (r *PostgresOrderRepo) Get(ctx context.Context, id string) (*domain.Order, error) {
	return r.getOne(ctx, `SELECT `+orderColumns+` FROM bargain_orders WHERE id = $1`, id)
}

func (r *PostgresOrderRepo) GetBySession(ctx context.Context, sessionID string) (*domain.Order, error) {
	return r.getOne(ctx, `SELECT `+orderColumns+` FROM bargain_orders WHERE session_id = $1`, sessionID)
}

func (r *PostgresOrderRepo) getOne(ctx context.Context, query string, arg string) (*domain.Order, error) {
	o, err := scanOrder(r.db.QueryRowContext(ctx, query, arg))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrOrderNotFound
	}
	return o, err
}

func (r *PostgresOrderRepo) FindPaidUnsettled(ctx context.Context, limit int) ([]*domain.Order, error) {
	query := `SELECT o.id, o.session_id, o.animal_id, o.buyer_id, o.farmer_id, o.amount, o.state, o.version, o.created_at, o.updated_at
	          FROM bargain_orders o
	          JOIN bargain_sessions s ON s.id = o.session_id
	          WHERE o.state = $1 AND s.status = $2
	          LIMIT $3`
	rows, err := r.db.QueryContext(ctx, query, domain.OrderPaid, domain.StatusAccepted, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var orders []*domain.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}
	return orders, rows.Err()
}

func scanOrder(row rowScanner) (*domain.Order, error) {
	var o domain.Order
	err := row.Scan(&o.ID, &o.SessionID, &o.AnimalID, &o.BuyerID, &o.FarmerID, &o.Amount, &o.State, &o.Version, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &o, nil
}

type PostgresListingRepo struct {
	db *sql.DB
}

func NewPostgresListingRepo(db *sql.DB) *PostgresListingRepo {
	return &PostgresListingRepo{db: db}
}

func (r *PostgresListingRepo) PutListing(ctx context.Context, l *domain.Listing) error {
	query := `INSERT INTO listings (animal_id, farmer_id, price, status)
	          VALUES ($1, $2, $3, 'available')
	          ON CONFLICT (animal_id) DO UPDATE
	          SET price = EXCLUDED.price, updated_at = NOW()
	          WHERE listings.status = 'available' AND listings.farmer_id = EXCLUDED.farmer_id`
	result, err := r.db.ExecContext(ctx, query, l.AnimalID, l.FarmerID, l.Price)
	if err != nil {
		return err
	}
	if rowsAffected, _ := result.RowsAffected(); rowsAffected == 0 {
		return domain.ErrListingUnavailable
	}
	return nil
}

func (r *PostgresListingRepo) GetListing(ctx context.Context, animalID string) (*domain.Listing, error) {
	query := `SELECT animal_id, farmer_id, price, status, sold_session_id FROM listings WHERE animal_id = $1`
	var l domain.Listing
	var sold sql.NullString
	err := r.db.QueryRowContext(ctx, query, animalID).Scan(&l.AnimalID, &l.FarmerID, &l.Price, &l.Status, &sold)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrListingNotFound
	}
	if err != nil {
		return nil, err
	}
	if sold.Valid {
		l.SoldSessionID = &sold.String
	}
	return &l, nil
}

func (r *PostgresListingRepo) MarkSold(ctx context.Context, animalID, sessionID string) error {
	query := `UPDATE listings
	          SET status = 'sold', sold_session_id = $2, updated_at = NOW()
	          WHERE animal_id = $1 AND (status = 'available' OR sold_session_id = $2)`
	result, err := r.db.ExecContext(ctx, query, animalID, sessionID)
	if err != nil {
		return err
	}
	if rowsAffected, _ := result.RowsAffected(); rowsAffected == 0 {
		if _, err := r.GetListing(ctx, animalID); err != nil {
			return err
		}
		return domain.ErrListingUnavailable
	}
	return nil
}
