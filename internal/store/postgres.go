package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/punchamoorthee/wastebank/internal/domain"
)

const (
	uniqueViolation      = "23505"
	serializationFailure = "40001"
)

type Postgres struct {
	Db *pgxpool.Pool
}

func NewPostgres(ctx context.Context, connString string) (*Postgres, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("unable to parse database config: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}

	return &Postgres{Db: pool}, nil
}

func (s *Postgres) Close() {
	s.Db.Close()
}

const memberCols = `id, code, name, address, balance, created_at, updated_at`

func scanMember(row pgx.Row) (*domain.Member, error) {
	var m domain.Member
	if err := row.Scan(&m.ID, &m.Code, &m.Name, &m.Address, &m.Balance, &m.CreatedAt, &m.UpdatedAt); err != nil {
		return nil, err
	}
	return &m, nil
}

// ListMembers returns every member ordered by name.
func (s *Postgres) ListMembers(ctx context.Context) ([]domain.Member, error) {
	rows, err := s.Db.Query(ctx, `SELECT `+memberCols+` FROM members ORDER BY name ASC, code ASC`)
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	defer rows.Close()

	var members []domain.Member
	for rows.Next() {
		m, err := scanMember(rows)
		if err != nil {
			return nil, fmt.Errorf("scan member: %w", err)
		}
		members = append(members, *m)
	}
	return members, rows.Err()
}

func (s *Postgres) GetMember(ctx context.Context, id string) (*domain.Member, error) {
	if !isUUID(id) {
		return nil, nil
	}
	m, err := scanMember(s.Db.QueryRow(ctx, `SELECT `+memberCols+` FROM members WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get member: %w", err)
	}
	return m, nil
}

func (s *Postgres) FindMemberByCode(ctx context.Context, code string) (*domain.Member, error) {
	m, err := scanMember(s.Db.QueryRow(ctx, `SELECT `+memberCols+` FROM members WHERE code = $1`, code))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find member by code: %w", err)
	}
	return m, nil
}

func (s *Postgres) CreateMember(ctx context.Context, f MemberFields) (*domain.Member, error) {
	m, err := scanMember(s.Db.QueryRow(ctx,
		`INSERT INTO members (id, code, name, address, balance) VALUES ($1, $2, $3, $4, 0) RETURNING `+memberCols,
		uuid.NewString(), f.Code, f.Name, f.Address,
	))
	if err != nil {
		return nil, mapWriteErr("insert member", err)
	}
	return m, nil
}

// UpdateMember rewrites the member and, when the code changes, moves its
// ledger entries to the new code in the same transaction.
func (s *Postgres) UpdateMember(ctx context.Context, id string, f MemberFields) error {
	if !isUUID(id) {
		return ErrNotFound
	}
	tx, err := s.Db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("tx begin failed: %w", err)
	}
	defer tx.Rollback(ctx)

	var oldCode string
	err = tx.QueryRow(ctx, `SELECT code FROM members WHERE id = $1 FOR UPDATE`, id).Scan(&oldCode)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("lock member: %w", err)
	}

	if _, err := tx.Exec(ctx,
		`UPDATE members SET code = $1, name = $2, address = $3, updated_at = now() WHERE id = $4`,
		f.Code, f.Name, f.Address, id,
	); err != nil {
		return mapWriteErr("update member", err)
	}
	if oldCode != f.Code {
		if _, err := tx.Exec(ctx,
			`UPDATE ledger_entries SET member_code = $1 WHERE member_code = $2`, f.Code, oldCode,
		); err != nil {
			return fmt.Errorf("move entries: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("tx commit failed: %w", err)
	}
	return nil
}

// DeleteMember removes the member and its ledger entries in one transaction.
func (s *Postgres) DeleteMember(ctx context.Context, id string) error {
	if !isUUID(id) {
		return ErrNotFound
	}
	tx, err := s.Db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("tx begin failed: %w", err)
	}
	defer tx.Rollback(ctx)

	var code string
	err = tx.QueryRow(ctx, `SELECT code FROM members WHERE id = $1 FOR UPDATE`, id).Scan(&code)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("lock member: %w", err)
	}

	if _, err := tx.Exec(ctx, `DELETE FROM ledger_entries WHERE member_code = $1`, code); err != nil {
		return fmt.Errorf("delete entries: %w", err)
	}
	if _, err := tx.Exec(ctx, `DELETE FROM members WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete member: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("tx commit failed: %w", err)
	}
	return nil
}

const wasteTypeCols = `id, name, price_per_kg, photo_url, active, created_at, updated_at`

func scanWasteType(row pgx.Row) (*domain.WasteType, error) {
	var w domain.WasteType
	if err := row.Scan(&w.ID, &w.Name, &w.PricePerKg, &w.PhotoURL, &w.Active, &w.CreatedAt, &w.UpdatedAt); err != nil {
		return nil, err
	}
	return &w, nil
}

// ListWasteTypes returns active catalog entries, newest first.
func (s *Postgres) ListWasteTypes(ctx context.Context) ([]domain.WasteType, error) {
	rows, err := s.Db.Query(ctx,
		`SELECT `+wasteTypeCols+` FROM waste_types WHERE active = TRUE ORDER BY created_at DESC, name ASC`)
	if err != nil {
		return nil, fmt.Errorf("list waste types: %w", err)
	}
	defer rows.Close()

	var types []domain.WasteType
	for rows.Next() {
		w, err := scanWasteType(rows)
		if err != nil {
			return nil, fmt.Errorf("scan waste type: %w", err)
		}
		types = append(types, *w)
	}
	return types, rows.Err()
}

func (s *Postgres) GetWasteType(ctx context.Context, id string) (*domain.WasteType, error) {
	if !isUUID(id) {
		return nil, nil
	}
	w, err := scanWasteType(s.Db.QueryRow(ctx, `SELECT `+wasteTypeCols+` FROM waste_types WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get waste type: %w", err)
	}
	return w, nil
}

func (s *Postgres) CreateWasteType(ctx context.Context, f WasteTypeFields) (*domain.WasteType, error) {
	w, err := scanWasteType(s.Db.QueryRow(ctx,
		`INSERT INTO waste_types (id, name, price_per_kg, photo_url, active) VALUES ($1, $2, $3, $4, TRUE) RETURNING `+wasteTypeCols,
		uuid.NewString(), f.Name, f.PricePerKg, f.PhotoURL,
	))
	if err != nil {
		return nil, mapWriteErr("insert waste type", err)
	}
	return w, nil
}

// UpdateWasteType changes catalog attributes. Ledger entries keep the price
// they were posted with.
func (s *Postgres) UpdateWasteType(ctx context.Context, id string, f WasteTypeFields) error {
	if !isUUID(id) {
		return ErrNotFound
	}
	tag, err := s.Db.Exec(ctx,
		`UPDATE waste_types SET name = $1, price_per_kg = $2, photo_url = $3, updated_at = now() WHERE id = $4`,
		f.Name, f.PricePerKg, f.PhotoURL, id,
	)
	if err != nil {
		return fmt.Errorf("update waste type: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Postgres) DeactivateWasteType(ctx context.Context, id string) error {
	if !isUUID(id) {
		return ErrNotFound
	}
	tag, err := s.Db.Exec(ctx, `UPDATE waste_types SET active = FALSE, updated_at = now() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deactivate waste type: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ListEntries retrieves ledger entries ordered by timestamp.
func (s *Postgres) ListEntries(ctx context.Context, f EntryFilter) ([]domain.LedgerEntry, error) {
	query := `SELECT id, member_code, member_name, occurred_at, kind, total_amount, total_weight_kg::text, items, operator, created_at
		FROM ledger_entries
		WHERE ($1::text = '' OR member_code = $1)
		  AND ($2::timestamptz IS NULL OR occurred_at >= $2)
		  AND ($3::timestamptz IS NULL OR occurred_at <= $3)
		ORDER BY occurred_at ASC`

	rows, err := s.Db.Query(ctx, query, f.MemberCode, nullTime(f.From), nullTime(f.To))
	if err != nil {
		return nil, fmt.Errorf("list entries: %w", err)
	}
	defer rows.Close()

	var entries []domain.LedgerEntry
	for rows.Next() {
		var (
			e      domain.LedgerEntry
			kind   string
			weight string
			items  []byte
		)
		if err := rows.Scan(&e.ID, &e.MemberCode, &e.MemberName, &e.Timestamp, &kind,
			&e.TotalAmount, &weight, &items, &e.Operator, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		e.Kind = domain.EntryKind(kind)
		if e.TotalWeightKg, err = decimal.NewFromString(weight); err != nil {
			return nil, fmt.Errorf("entry %s weight: %w", e.ID, err)
		}
		if err := json.Unmarshal(items, &e.Items); err != nil {
			return nil, fmt.Errorf("entry %s items: %w", e.ID, err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Commit inserts the ledger entry and moves the balance in a single transaction.
// The member row is locked first; a balance that no longer matches the
// caller's read aborts the transaction with ErrConflict.
func (s *Postgres) Commit(ctx context.Context, b Batch) (string, error) {
	tx, err := s.Db.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead})
	if err != nil {
		return "", fmt.Errorf("tx begin failed: %w", err)
	}
	defer tx.Rollback(ctx)

	var current int64
	err = tx.QueryRow(ctx, `SELECT balance FROM members WHERE id = $1 FOR UPDATE`, b.Balance.MemberID).Scan(&current)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", txErr("lock acquisition failed", err)
	}
	if current != b.Balance.Expected {
		return "", ErrConflict
	}

	items := b.Entry.Items
	if items == nil {
		items = []domain.LineItem{}
	}
	itemsJSON, err := json.Marshal(items)
	if err != nil {
		return "", fmt.Errorf("encode items: %w", err)
	}

	id := uuid.NewString()
	_, err = tx.Exec(ctx,
		`INSERT INTO ledger_entries (id, member_code, member_name, occurred_at, kind, total_amount, total_weight_kg, items, operator)
		 VALUES ($1, $2, $3, $4, $5, $6, $7::numeric, $8, $9)`,
		id, b.Entry.MemberCode, b.Entry.MemberName, b.Entry.Timestamp, string(b.Entry.Kind),
		b.Entry.TotalAmount, b.Entry.TotalWeightKg.String(), itemsJSON, b.Entry.Operator,
	)
	if err != nil {
		return "", txErr("ledger entry failed", err)
	}

	_, err = tx.Exec(ctx, `UPDATE members SET balance = $1, updated_at = now() WHERE id = $2`, b.Balance.New, b.Balance.MemberID)
	if err != nil {
		return "", txErr("balance update failed", err)
	}

	if err = tx.Commit(ctx); err != nil {
		return "", txErr("tx commit failed", err)
	}
	return id, nil
}

func (s *Postgres) FindOperatorByEmail(ctx context.Context, email string) (*domain.Operator, error) {
	var op domain.Operator
	err := s.Db.QueryRow(ctx,
		`SELECT id, email, password_hash, created_at, updated_at FROM operators WHERE email = $1`, email,
	).Scan(&op.ID, &op.Email, &op.PasswordHash, &op.CreatedAt, &op.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find operator: %w", err)
	}
	return &op, nil
}

func (s *Postgres) CreateOperator(ctx context.Context, email, passwordHash string) (*domain.Operator, error) {
	var op domain.Operator
	err := s.Db.QueryRow(ctx,
		`INSERT INTO operators (id, email, password_hash) VALUES ($1, $2, $3)
		 RETURNING id, email, password_hash, created_at, updated_at`,
		uuid.NewString(), email, passwordHash,
	).Scan(&op.ID, &op.Email, &op.PasswordHash, &op.CreatedAt, &op.UpdatedAt)
	if err != nil {
		return nil, mapWriteErr("insert operator", err)
	}
	return &op, nil
}

func mapWriteErr(op string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return ErrDuplicate
	}
	return fmt.Errorf("%s: %w", op, err)
}

// txErr reports a RepeatableRead serialization failure as ErrConflict.
func txErr(op string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == serializationFailure {
		return ErrConflict
	}
	return fmt.Errorf("%s: %w", op, err)
}

// isUUID keeps malformed ids from reaching UUID columns, where they would fail
// as a type error instead of a miss.
func isUUID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

func nullTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
