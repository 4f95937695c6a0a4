package subscription

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/example/dining-watcher/internal/db"
)

// PostgresStore persists subscriptions in the subscriptions table.
type PostgresStore struct {
	db *db.DB

	// now is swappable for tests.
	now func() time.Time
}

func NewPostgresStore(d *db.DB) *PostgresStore {
	return &PostgresStore{db: d, now: time.Now}
}

const subscriptionColumns = `id, owner, location_id, location_name, restaurant_id, restaurant_name,
party_size, target_date, meal_period, status, created_at, resolved_at, last_checked_at`

func (s *PostgresStore) Add(ctx context.Context, sub Subscription) (string, error) {
	now := s.now().UTC()
	if err := sub.Validate(now); err != nil {
		return "", err
	}

	sub.ID = uuid.NewString()
	sub.Status = StatusActive
	sub.CreatedAt = now

	_, err := s.db.Exec(ctx, `
INSERT INTO subscriptions (id, owner, location_id, location_name, restaurant_id, restaurant_name,
	party_size, target_date, meal_period, status, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
		sub.ID, sub.Owner, sub.Resource.LocationID, sub.Resource.LocationName,
		sub.Resource.RestaurantID, sub.Resource.RestaurantName,
		sub.Criteria.PartySize, sub.Criteria.Date, string(sub.Criteria.MealPeriod),
		string(sub.Status), sub.CreatedAt,
	)
	if err != nil {
		return "", err
	}
	return sub.ID, nil
}

func (s *PostgresStore) Get(ctx context.Context, id string) (Subscription, error) {
	row := s.db.QueryRow(ctx, `
SELECT `+subscriptionColumns+`
FROM subscriptions WHERE id=$1`, id)
	sub, err := scanSubscription(row)
	if err != nil {
		return Subscription{}, db.WrapNotFound(err)
	}
	return sub, nil
}

func (s *PostgresStore) Active(ctx context.Context) ([]Subscription, error) {
	return s.list(ctx, `
SELECT `+subscriptionColumns+`
FROM subscriptions
WHERE status=$1
ORDER BY created_at ASC`, string(StatusActive))
}

func (s *PostgresStore) ListByOwner(ctx context.Context, owner string) ([]Subscription, error) {
	return s.list(ctx, `
SELECT `+subscriptionColumns+`
FROM subscriptions
WHERE owner=$1 AND status=$2
ORDER BY created_at ASC`, owner, string(StatusActive))
}

func (s *PostgresStore) list(ctx context.Context, sql string, args ...any) ([]Subscription, error) {
	rows, err := s.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Subscription
	for rows.Next() {
		sub, err := scanSubscription(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sub)
	}
	return out, rows.Err()
}

// MarkResolved flips an active subscription to resolved. Rows already
// resolved are left untouched, so a crashed-and-retried dispatch is a no-op.
func (s *PostgresStore) MarkResolved(ctx context.Context, id string) error {
	_, err := s.db.Exec(ctx, `
UPDATE subscriptions SET status=$2, resolved_at=$3
WHERE id=$1 AND status=$4`,
		id, string(StatusResolved), s.now().UTC(), string(StatusActive))
	return err
}

func (s *PostgresStore) TouchChecked(ctx context.Context, id string, at time.Time) error {
	_, err := s.db.Exec(ctx, `UPDATE subscriptions SET last_checked_at=$2 WHERE id=$1`, id, at.UTC())
	return err
}

func scanSubscription(row db.Row) (Subscription, error) {
	var (
		sub        Subscription
		mealPeriod string
		status     string
	)
	err := row.Scan(
		&sub.ID, &sub.Owner,
		&sub.Resource.LocationID, &sub.Resource.LocationName,
		&sub.Resource.RestaurantID, &sub.Resource.RestaurantName,
		&sub.Criteria.PartySize, &sub.Criteria.Date, &mealPeriod,
		&status, &sub.CreatedAt, &sub.ResolvedAt, &sub.LastCheckedAt,
	)
	if err != nil {
		return Subscription{}, err
	}
	sub.Criteria.MealPeriod = MealPeriod(mealPeriod)
	sub.Status = Status(status)
	return sub, nil
}
