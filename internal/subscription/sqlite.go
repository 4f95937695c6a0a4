package subscription

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/example/dining-watcher/internal/db"
)

// SQLiteStore is the single-file persistence backend. Writes are serialized
// through a single connection, so the poller and the dispatcher never race
// on the sqlite write lock.
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS subscriptions (
	id TEXT PRIMARY KEY,
	owner TEXT NOT NULL,
	location_id TEXT NOT NULL,
	location_name TEXT NOT NULL DEFAULT '',
	restaurant_id TEXT NOT NULL,
	restaurant_name TEXT NOT NULL DEFAULT '',
	party_size INTEGER NOT NULL,
	target_date TEXT NOT NULL,
	meal_period TEXT NOT NULL,
	status TEXT NOT NULL DEFAULT 'active',
	created_at TEXT NOT NULL,
	resolved_at TEXT,
	last_checked_at TEXT
);

CREATE INDEX IF NOT EXISTS idx_subscriptions_active
	ON subscriptions(status, created_at);
`

// OpenSQLite opens (creating if needed) the sqlite database at path and
// applies the schema.
func OpenSQLite(path string) (*SQLiteStore, error) {
	d, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}
	d.SetMaxOpenConns(1)

	if _, err := d.Exec(sqliteSchema); err != nil {
		d.Close()
		return nil, fmt.Errorf("applying sqlite schema: %w", err)
	}
	return &SQLiteStore{db: d, now: time.Now}, nil
}

func (s *SQLiteStore) Close() error { return s.db.Close() }

func (s *SQLiteStore) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

const dateLayout = "2006-01-02"

func (s *SQLiteStore) Add(ctx context.Context, sub Subscription) (string, error) {
	now := s.now().UTC()
	if err := sub.Validate(now); err != nil {
		return "", err
	}

	sub.ID = uuid.NewString()
	sub.Status = StatusActive
	sub.CreatedAt = now

	_, err := s.db.ExecContext(ctx, `
INSERT INTO subscriptions (id, owner, location_id, location_name, restaurant_id, restaurant_name,
	party_size, target_date, meal_period, status, created_at)
VALUES (?,?,?,?,?,?,?,?,?,?,?)`,
		sub.ID, sub.Owner, sub.Resource.LocationID, sub.Resource.LocationName,
		sub.Resource.RestaurantID, sub.Resource.RestaurantName,
		sub.Criteria.PartySize, sub.Criteria.Date.Format(dateLayout),
		string(sub.Criteria.MealPeriod), string(sub.Status),
		sub.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return "", err
	}
	return sub.ID, nil
}

func (s *SQLiteStore) Get(ctx context.Context, id string) (Subscription, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT `+subscriptionColumns+`
FROM subscriptions WHERE id=?`, id)
	sub, err := scanSQLiteSubscription(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return Subscription{}, db.ErrNotFound
	}
	return sub, err
}

func (s *SQLiteStore) Active(ctx context.Context) ([]Subscription, error) {
	return s.list(ctx, `
SELECT `+subscriptionColumns+`
FROM subscriptions
WHERE status=?
ORDER BY created_at ASC`, string(StatusActive))
}

func (s *SQLiteStore) ListByOwner(ctx context.Context, owner string) ([]Subscription, error) {
	return s.list(ctx, `
SELECT `+subscriptionColumns+`
FROM subscriptions
WHERE owner=? AND status=?
ORDER BY created_at ASC`, owner, string(StatusActive))
}

func (s *SQLiteStore) list(ctx context.Context, query string, args ...any) ([]Subscription, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Subscription
	for rows.Next() {
		sub, err := scanSQLiteSubscription(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, sub)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) MarkResolved(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `
UPDATE subscriptions SET status=?, resolved_at=?
WHERE id=? AND status=?`,
		string(StatusResolved), s.now().UTC().Format(time.RFC3339Nano),
		id, string(StatusActive))
	return err
}

func (s *SQLiteStore) TouchChecked(ctx context.Context, id string, at time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE subscriptions SET last_checked_at=? WHERE id=?`,
		at.UTC().Format(time.RFC3339Nano), id)
	return err
}

func scanSQLiteSubscription(scan func(dest ...any) error) (Subscription, error) {
	var (
		sub           Subscription
		targetDate    string
		mealPeriod    string
		status        string
		createdAt     string
		resolvedAt    sql.NullString
		lastCheckedAt sql.NullString
	)
	err := scan(
		&sub.ID, &sub.Owner,
		&sub.Resource.LocationID, &sub.Resource.LocationName,
		&sub.Resource.RestaurantID, &sub.Resource.RestaurantName,
		&sub.Criteria.PartySize, &targetDate, &mealPeriod,
		&status, &createdAt, &resolvedAt, &lastCheckedAt,
	)
	if err != nil {
		return Subscription{}, err
	}

	sub.Criteria.MealPeriod = MealPeriod(mealPeriod)
	sub.Status = Status(status)

	if sub.Criteria.Date, err = time.Parse(dateLayout, targetDate); err != nil {
		return Subscription{}, fmt.Errorf("parsing target_date: %w", err)
	}
	if sub.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return Subscription{}, fmt.Errorf("parsing created_at: %w", err)
	}
	if resolvedAt.Valid {
		t, err := time.Parse(time.RFC3339Nano, resolvedAt.String)
		if err != nil {
			return Subscription{}, fmt.Errorf("parsing resolved_at: %w", err)
		}
		sub.ResolvedAt = &t
	}
	if lastCheckedAt.Valid {
		t, err := time.Parse(time.RFC3339Nano, lastCheckedAt.String)
		if err != nil {
			return Subscription{}, fmt.Errorf("parsing last_checked_at: %w", err)
		}
		sub.LastCheckedAt = &t
	}
	return sub, nil
}
