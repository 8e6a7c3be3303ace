package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"market-dashboard/src/helpers"
	"market-dashboard/src/logger"
	"market-dashboard/src/models"
)

var (
	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("conflict")
)

// -----------------------------------------------------------------------------

// dialect carries what differs between the SQLite and Postgres backends
type dialect struct {
	name string
	// table qualifies a bare table name
	table func(name string) string
	// numbered placeholders ($1, $2...) instead of ?
	numbered bool
	// conflict reports unique and foreign key violations
	conflict func(err error) bool
}

// sqlStore implements the reference CRUD once for both backends
type sqlStore struct {
	DB      *sql.DB
	Logger  *logger.Logger
	dialect dialect
}

// -----------------------------------------------------------------------------

// bind rewrites ? placeholders for dialects that number them
func (s *sqlStore) bind(query string) string {
	query = strings.NewReplacer(
		"{instruments}", s.dialect.table("instruments"),
		"{feeds}", s.dialect.table("feeds"),
		"{subscriptions}", s.dialect.table("subscriptions"),
	).Replace(query)
	if !s.dialect.numbered {
		return query
	}

	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// -----------------------------------------------------------------------------

func (s *sqlStore) wrap(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, sql.ErrNoRows):
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	case s.dialect.conflict(err):
		return fmt.Errorf("%s: %w: %v", op, ErrConflict, err)
	}
	return helpers.NewDatabaseError(fmt.Sprintf("%s %s", s.dialect.name, op), err)
}

// -----------------------------------------------------------------------------

// exec runs a statement that must touch exactly one row
func (s *sqlStore) exec(ctx context.Context, op, query string, args ...interface{}) error {
	res, err := s.DB.ExecContext(ctx, s.bind(query), args...)
	if err != nil {
		return s.wrap(op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return s.wrap(op, err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	}
	return nil
}

// -----------------------------------------------------------------------------

func (s *sqlStore) Close() error {
	if s.DB == nil {
		return nil
	}
	return s.DB.Close()
}

// -----------------------------------------------------------------------------
// Instruments
// -----------------------------------------------------------------------------

const instrumentColumns = `id, symbol, name, type, exchange, active`

func scanInstrument(row interface{ Scan(...interface{}) error }) (models.MInstrument, error) {
	var in models.MInstrument
	err := row.Scan(&in.ID, &in.Symbol, &in.Name, &in.Type, &in.Exchange, &in.Active)
	return in, err
}

func (s *sqlStore) ListInstruments(ctx context.Context) ([]models.MInstrument, error) {
	rows, err := s.DB.QueryContext(ctx, s.bind(`SELECT `+instrumentColumns+` FROM {instruments} ORDER BY id`))
	if err != nil {
		return nil, s.wrap("list instruments", err)
	}
	defer rows.Close()

	out := []models.MInstrument{}
	for rows.Next() {
		in, err := scanInstrument(rows)
		if err != nil {
			return nil, s.wrap("scan instrument", err)
		}
		out = append(out, in)
	}
	return out, s.wrap("list instruments", rows.Err())
}

func (s *sqlStore) GetInstrument(ctx context.Context, id int64) (models.MInstrument, error) {
	row := s.DB.QueryRowContext(ctx, s.bind(`SELECT `+instrumentColumns+` FROM {instruments} WHERE id = ?`), id)
	in, err := scanInstrument(row)
	return in, s.wrap("get instrument", err)
}

func (s *sqlStore) CreateInstrument(ctx context.Context, in models.MInstrument) (models.MInstrument, error) {
	if err := validateInstrument(&in); err != nil {
		return models.MInstrument{}, err
	}
	row := s.DB.QueryRowContext(ctx, s.bind(`
		INSERT INTO {instruments} (symbol, name, type, exchange, active)
		VALUES (?, ?, ?, ?, ?) RETURNING id`),
		in.Symbol, in.Name, in.Type, in.Exchange, in.Active)
	if err := row.Scan(&in.ID); err != nil {
		return models.MInstrument{}, s.wrap("create instrument", err)
	}
	return in, nil
}

func (s *sqlStore) UpdateInstrument(ctx context.Context, id int64, in models.MInstrument) (models.MInstrument, error) {
	if err := validateInstrument(&in); err != nil {
		return models.MInstrument{}, err
	}
	err := s.exec(ctx, "update instrument", `
		UPDATE {instruments} SET symbol = ?, name = ?, type = ?, exchange = ?, active = ?
		WHERE id = ?`,
		in.Symbol, in.Name, in.Type, in.Exchange, in.Active, id)
	if err != nil {
		return models.MInstrument{}, err
	}
	in.ID = id
	return in, nil
}

func (s *sqlStore) DeleteInstrument(ctx context.Context, id int64) error {
	return s.exec(ctx, "delete instrument", `DELETE FROM {instruments} WHERE id = ?`, id)
}

// -----------------------------------------------------------------------------
// Feeds
// -----------------------------------------------------------------------------

const feedColumns = `id, name, provider, protocol, endpoint, enabled`

func scanFeed(row interface{ Scan(...interface{}) error }) (models.MFeed, error) {
	var f models.MFeed
	err := row.Scan(&f.ID, &f.Name, &f.Provider, &f.Protocol, &f.Endpoint, &f.Enabled)
	return f, err
}

func (s *sqlStore) ListFeeds(ctx context.Context) ([]models.MFeed, error) {
	rows, err := s.DB.QueryContext(ctx, s.bind(`SELECT `+feedColumns+` FROM {feeds} ORDER BY id`))
	if err != nil {
		return nil, s.wrap("list feeds", err)
	}
	defer rows.Close()

	out := []models.MFeed{}
	for rows.Next() {
		f, err := scanFeed(rows)
		if err != nil {
			return nil, s.wrap("scan feed", err)
		}
		out = append(out, f)
	}
	return out, s.wrap("list feeds", rows.Err())
}

func (s *sqlStore) GetFeed(ctx context.Context, id int64) (models.MFeed, error) {
	row := s.DB.QueryRowContext(ctx, s.bind(`SELECT `+feedColumns+` FROM {feeds} WHERE id = ?`), id)
	f, err := scanFeed(row)
	return f, s.wrap("get feed", err)
}

func (s *sqlStore) CreateFeed(ctx context.Context, f models.MFeed) (models.MFeed, error) {
	if err := validateFeed(&f); err != nil {
		return models.MFeed{}, err
	}
	row := s.DB.QueryRowContext(ctx, s.bind(`
		INSERT INTO {feeds} (name, provider, protocol, endpoint, enabled)
		VALUES (?, ?, ?, ?, ?) RETURNING id`),
		f.Name, f.Provider, f.Protocol, f.Endpoint, f.Enabled)
	if err := row.Scan(&f.ID); err != nil {
		return models.MFeed{}, s.wrap("create feed", err)
	}
	return f, nil
}

func (s *sqlStore) UpdateFeed(ctx context.Context, id int64, f models.MFeed) (models.MFeed, error) {
	if err := validateFeed(&f); err != nil {
		return models.MFeed{}, err
	}
	err := s.exec(ctx, "update feed", `
		UPDATE {feeds} SET name = ?, provider = ?, protocol = ?, endpoint = ?, enabled = ?
		WHERE id = ?`,
		f.Name, f.Provider, f.Protocol, f.Endpoint, f.Enabled, id)
	if err != nil {
		return models.MFeed{}, err
	}
	f.ID = id
	return f, nil
}

func (s *sqlStore) DeleteFeed(ctx context.Context, id int64) error {
	return s.exec(ctx, "delete feed", `DELETE FROM {feeds} WHERE id = ?`, id)
}

// -----------------------------------------------------------------------------
// Subscriptions
// -----------------------------------------------------------------------------

const subscriptionColumns = `id, instrument_id, feed_id, priority, active`

func scanSubscription(row interface{ Scan(...interface{}) error }) (models.MSubscription, error) {
	var sub models.MSubscription
	err := row.Scan(&sub.ID, &sub.InstrumentID, &sub.FeedID, &sub.Priority, &sub.Active)
	return sub, err
}

func (s *sqlStore) ListSubscriptions(ctx context.Context) ([]models.MSubscription, error) {
	rows, err := s.DB.QueryContext(ctx, s.bind(`SELECT `+subscriptionColumns+` FROM {subscriptions} ORDER BY id`))
	if err != nil {
		return nil, s.wrap("list subscriptions", err)
	}
	defer rows.Close()

	out := []models.MSubscription{}
	for rows.Next() {
		sub, err := scanSubscription(rows)
		if err != nil {
			return nil, s.wrap("scan subscription", err)
		}
		out = append(out, sub)
	}
	return out, s.wrap("list subscriptions", rows.Err())
}

func (s *sqlStore) GetSubscription(ctx context.Context, id int64) (models.MSubscription, error) {
	row := s.DB.QueryRowContext(ctx, s.bind(`SELECT `+subscriptionColumns+` FROM {subscriptions} WHERE id = ?`), id)
	sub, err := scanSubscription(row)
	return sub, s.wrap("get subscription", err)
}

func (s *sqlStore) CreateSubscription(ctx context.Context, sub models.MSubscription) (models.MSubscription, error) {
	if err := validateSubscription(&sub); err != nil {
		return models.MSubscription{}, err
	}
	row := s.DB.QueryRowContext(ctx, s.bind(`
		INSERT INTO {subscriptions} (instrument_id, feed_id, priority, active)
		VALUES (?, ?, ?, ?) RETURNING id`),
		sub.InstrumentID, sub.FeedID, sub.Priority, sub.Active)
	if err := row.Scan(&sub.ID); err != nil {
		return models.MSubscription{}, s.wrap("create subscription", err)
	}
	return sub, nil
}

func (s *sqlStore) UpdateSubscription(ctx context.Context, id int64, sub models.MSubscription) (models.MSubscription, error) {
	if err := validateSubscription(&sub); err != nil {
		return models.MSubscription{}, err
	}
	err := s.exec(ctx, "update subscription", `
		UPDATE {subscriptions} SET instrument_id = ?, feed_id = ?, priority = ?, active = ?
		WHERE id = ?`,
		sub.InstrumentID, sub.FeedID, sub.Priority, sub.Active, id)
	if err != nil {
		return models.MSubscription{}, err
	}
	sub.ID = id
	return sub, nil
}

func (s *sqlStore) DeleteSubscription(ctx context.Context, id int64) error {
	return s.exec(ctx, "delete subscription", `DELETE FROM {subscriptions} WHERE id = ?`, id)
}

// -----------------------------------------------------------------------------
// Validation
// -----------------------------------------------------------------------------

// validateInstrument stores symbols trimmed and upper-cased
func validateInstrument(in *models.MInstrument) error {
	in.Symbol = strings.ToUpper(strings.TrimSpace(in.Symbol))
	if in.Symbol == "" {
		return helpers.NewValidationError("instrument symbol is required")
	}
	return nil
}

func validateFeed(f *models.MFeed) error {
	f.Name = strings.TrimSpace(f.Name)
	if f.Name == "" {
		return helpers.NewValidationError("feed name is required")
	}
	return nil
}

func validateSubscription(sub *models.MSubscription) error {
	if sub.InstrumentID <= 0 || sub.FeedID <= 0 {
		return helpers.NewValidationError("subscription needs an instrument and a feed")
	}
	if sub.Priority < 0 {
		return helpers.NewValidationError("priority %d is negative", sub.Priority)
	}
	return nil
}
