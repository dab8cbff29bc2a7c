package ledger

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sort"
	"time"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/Proton-105/himera-wallet/internal/domain"
)

const uniqueViolation = "23505"

// PostgresStore implements Store on PostgreSQL through lib/pq.
type PostgresStore struct {
	db  *sql.DB
	log *slog.Logger
}

// NewPostgresStore wraps an open database handle.
func NewPostgresStore(db *sql.DB, log *slog.Logger) *PostgresStore {
	if log == nil {
		log = slog.Default()
	}
	return &PostgresStore{db: db, log: log}
}

// Atomic runs fn in a read-committed transaction with row locks taken by the *ForUpdate reads.
func (s *PostgresStore) Atomic(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	return s.run(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted}, fn)
}

// View runs fn in a read-only repeatable-read transaction.
func (s *PostgresStore) View(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	return s.run(ctx, &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true}, fn)
}

func (s *PostgresStore) HealthCheck(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *PostgresStore) run(ctx context.Context, opts *sql.TxOptions, fn func(ctx context.Context, tx Tx) error) error {
	tx, err := s.db.BeginTx(ctx, opts)
	if err != nil {
		return fmt.Errorf("begin ledger transaction: %w", err)
	}

	if err := fn(ctx, &pgTx{tx: tx}); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			s.log.Error("ledger rollback failed", slog.Any("error", rbErr))
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit ledger transaction: %w", mapErr(err))
	}

	return nil
}

func mapErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		return fmt.Errorf("%w: %s", ErrConflict, pqErr.Constraint)
	}
	return err
}

func lockClause(forUpdate bool) string {
	if forUpdate {
		return " FOR UPDATE"
	}
	return ""
}

type rowScanner interface {
	Scan(dest ...any) error
}

type pgTx struct {
	tx *sql.Tx
}

func (t *pgTx) exec(ctx context.Context, what, query string, args ...any) error {
	if _, err := t.tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("%s: %w", what, mapErr(err))
	}
	return nil
}

func (t *pgTx) execAffected(ctx context.Context, what, query string, args ...any) (int, error) {
	res, err := t.tx.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", what, mapErr(err))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%s: rows affected: %w", what, err)
	}
	return int(n), nil
}

// users

func (t *pgTx) GetUser(ctx context.Context, userID string) (*domain.User, error) {
	const query = `
		SELECT user_id, email, name, chat_id, created_at
		FROM users
		WHERE user_id = $1
	`

	var u domain.User
	if err := t.tx.QueryRowContext(ctx, query, userID).Scan(&u.UserID, &u.Email, &u.Name, &u.ChatID, &u.CreatedAt); err != nil {
		return nil, mapErr(err)
	}
	return &u, nil
}

func (t *pgTx) CreateUser(ctx context.Context, u *domain.User) error {
	const query = `
		INSERT INTO users (user_id, email, name, chat_id, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	return t.exec(ctx, "insert user", query, u.UserID, u.Email, u.Name, u.ChatID, u.CreatedAt)
}

// wallets

const walletColumns = `user_id, coins_balance, stars_balance, bonus_balance, withdrawable_balance,
	total_deposited, total_withdrawn, created_at, updated_at`

func scanWallet(row rowScanner) (*domain.Wallet, error) {
	var w domain.Wallet
	if err := row.Scan(
		&w.UserID,
		&w.Coins,
		&w.Stars,
		&w.Bonus,
		&w.Withdrawable,
		&w.TotalDeposited,
		&w.TotalWithdrawn,
		&w.CreatedAt,
		&w.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &w, nil
}

func (t *pgTx) GetWallet(ctx context.Context, userID string) (*domain.Wallet, error) {
	query := `SELECT ` + walletColumns + ` FROM wallets WHERE user_id = $1`

	w, err := scanWallet(t.tx.QueryRowContext(ctx, query, userID))
	if err != nil {
		return nil, mapErr(err)
	}
	return w, nil
}

func (t *pgTx) LockWallets(ctx context.Context, userIDs ...string) (map[string]*domain.Wallet, error) {
	ids := slices.Clone(userIDs)
	sort.Strings(ids)
	ids = slices.Compact(ids)

	query := `SELECT ` + walletColumns + ` FROM wallets WHERE user_id = ANY($1) ORDER BY user_id FOR UPDATE`

	rows, err := t.tx.QueryContext(ctx, query, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("lock wallets: %w", mapErr(err))
	}
	defer rows.Close()

	out := make(map[string]*domain.Wallet, len(ids))
	for rows.Next() {
		w, err := scanWallet(rows)
		if err != nil {
			return nil, fmt.Errorf("scan wallet: %w", err)
		}
		out[w.UserID] = w
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate wallets: %w", err)
	}
	if len(out) != len(ids) {
		return nil, ErrNotFound
	}
	return out, nil
}

func (t *pgTx) CreateWallet(ctx context.Context, w *domain.Wallet) error {
	query := `INSERT INTO wallets (` + walletColumns + `) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	return t.exec(ctx, "insert wallet", query,
		w.UserID, w.Coins, w.Stars, w.Bonus, w.Withdrawable, w.TotalDeposited, w.TotalWithdrawn, w.CreatedAt, w.UpdatedAt)
}

func (t *pgTx) UpdateWallet(ctx context.Context, w *domain.Wallet) error {
	const query = `
		UPDATE wallets
		SET coins_balance = $2, stars_balance = $3, bonus_balance = $4, withdrawable_balance = $5,
			total_deposited = $6, total_withdrawn = $7, updated_at = $8
		WHERE user_id = $1
	`
	n, err := t.execAffected(ctx, "update wallet", query,
		w.UserID, w.Coins, w.Stars, w.Bonus, w.Withdrawable, w.TotalDeposited, w.TotalWithdrawn, w.UpdatedAt)
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (t *pgTx) InsertTransaction(ctx context.Context, txn *domain.Transaction) error {
	const query = `
		INSERT INTO transactions (transaction_id, user_id, type, amount, currency, status, reference_id, description, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	return t.exec(ctx, "insert transaction", query,
		txn.TransactionID, txn.UserID, txn.Type, txn.Amount, txn.Currency, txn.Status, txn.ReferenceID, txn.Description, txn.CreatedAt)
}

func (t *pgTx) UpdateTransactionStatus(ctx context.Context, userID, referenceID string, from, to domain.TransactionStatus) (int, error) {
	const query = `
		UPDATE transactions SET status = $4
		WHERE user_id = $1 AND reference_id = $2 AND status = $3
	`
	return t.execAffected(ctx, "update transaction status", query, userID, referenceID, from, to)
}

func (t *pgTx) ListTransactions(ctx context.Context, f TransactionFilter) ([]domain.Transaction, int, error) {
	const countQuery = `SELECT COUNT(*) FROM transactions WHERE user_id = $1 AND ($2 = '' OR type = $2)`
	const query = `
		SELECT transaction_id, user_id, type, amount, currency, status, reference_id, description, created_at
		FROM transactions
		WHERE user_id = $1 AND ($2 = '' OR type = $2)
		ORDER BY created_at DESC, transaction_id DESC
		LIMIT $3 OFFSET $4
	`

	var total int
	if err := t.tx.QueryRowContext(ctx, countQuery, f.UserID, string(f.Type)).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count transactions: %w", err)
	}

	rows, err := t.tx.QueryContext(ctx, query, f.UserID, string(f.Type), normalizeLimit(f.Limit, 50), max(f.Offset, 0))
	if err != nil {
		return nil, 0, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	out := []domain.Transaction{}
	for rows.Next() {
		var txn domain.Transaction
		if err := rows.Scan(
			&txn.TransactionID,
			&txn.UserID,
			&txn.Type,
			&txn.Amount,
			&txn.Currency,
			&txn.Status,
			&txn.ReferenceID,
			&txn.Description,
			&txn.CreatedAt,
		); err != nil {
			return nil, 0, fmt.Errorf("scan transaction: %w", err)
		}
		out = append(out, txn)
	}
	return out, total, rows.Err()
}

func (t *pgTx) SumTransactions(ctx context.Context, f SumFilter) (decimal.Decimal, int, error) {
	const query = `
		SELECT COALESCE(SUM(amount), 0), COUNT(*)
		FROM transactions
		WHERE (cardinality($1::text[]) = 0 OR user_id = ANY($1))
			AND (cardinality($2::text[]) = 0 OR type = ANY($2))
			AND ($3 = '' OR currency = $3)
			AND created_at >= $4
	`

	types := make([]string, len(f.Types))
	for i, typ := range f.Types {
		types[i] = string(typ)
	}

	var (
		sum   decimal.Decimal
		count int
	)
	userIDs := f.UserIDs
	if userIDs == nil {
		userIDs = []string{}
	}
	if err := t.tx.QueryRowContext(ctx, query, pq.Array(userIDs), pq.Array(types), string(f.Currency), f.Since).Scan(&sum, &count); err != nil {
		return decimal.Zero, 0, fmt.Errorf("sum transactions: %w", err)
	}
	return sum, count, nil
}

// vip

const vipColumns = `user_id, vip_level, subscription_start, subscription_end, total_recharged,
	is_active, auto_renew, created_at, updated_at`

func scanVIP(row rowScanner) (*domain.VIPStatus, error) {
	var v domain.VIPStatus
	if err := row.Scan(
		&v.UserID,
		&v.Level,
		&v.SubscriptionStart,
		&v.SubscriptionEnd,
		&v.TotalRecharged,
		&v.IsActive,
		&v.AutoRenew,
		&v.CreatedAt,
		&v.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &v, nil
}

func (t *pgTx) GetVIPStatus(ctx context.Context, userID string, forUpdate bool) (*domain.VIPStatus, error) {
	query := `SELECT ` + vipColumns + ` FROM vip_status WHERE user_id = $1` + lockClause(forUpdate)

	v, err := scanVIP(t.tx.QueryRowContext(ctx, query, userID))
	if err != nil {
		return nil, mapErr(err)
	}
	return v, nil
}

func (t *pgTx) SaveVIPStatus(ctx context.Context, v *domain.VIPStatus) error {
	const query = `
		INSERT INTO vip_status (user_id, vip_level, subscription_start, subscription_end, total_recharged,
			is_active, auto_renew, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (user_id) DO UPDATE SET
			vip_level = EXCLUDED.vip_level,
			subscription_start = EXCLUDED.subscription_start,
			subscription_end = EXCLUDED.subscription_end,
			total_recharged = EXCLUDED.total_recharged,
			is_active = EXCLUDED.is_active,
			auto_renew = EXCLUDED.auto_renew,
			updated_at = EXCLUDED.updated_at
	`
	return t.exec(ctx, "save vip status", query,
		v.UserID, v.Level, v.SubscriptionStart, v.SubscriptionEnd, v.TotalRecharged, v.IsActive, v.AutoRenew, v.CreatedAt, v.UpdatedAt)
}

func (t *pgTx) ListDueVIP(ctx context.Context, now time.Time, limit int) ([]domain.VIPStatus, error) {
	query := `SELECT ` + vipColumns + ` FROM vip_status
		WHERE is_active AND subscription_end <= $1
		ORDER BY subscription_end
		LIMIT $2`

	rows, err := t.tx.QueryContext(ctx, query, now, normalizeLimit(limit, 100))
	if err != nil {
		return nil, fmt.Errorf("list due vip: %w", err)
	}
	defer rows.Close()

	var out []domain.VIPStatus
	for rows.Next() {
		v, err := scanVIP(rows)
		if err != nil {
			return nil, fmt.Errorf("scan vip status: %w", err)
		}
		out = append(out, *v)
	}
	return out, rows.Err()
}

// rewards

func (t *pgTx) GetActivitySession(ctx context.Context, userID, date string, forUpdate bool) (*domain.ActivitySession, error) {
	query := `SELECT session_id, user_id, date, started_at, last_active_at, total_active_minutes, rewards_claimed
		FROM activity_sessions WHERE user_id = $1 AND date = $2` + lockClause(forUpdate)

	var s domain.ActivitySession
	if err := t.tx.QueryRowContext(ctx, query, userID, date).Scan(
		&s.SessionID, &s.UserID, &s.Date, &s.StartedAt, &s.LastActiveAt, &s.TotalActiveMinutes, &s.RewardsClaimed,
	); err != nil {
		return nil, mapErr(err)
	}
	return &s, nil
}

func (t *pgTx) CreateActivitySession(ctx context.Context, s *domain.ActivitySession) (bool, error) {
	const query = `
		INSERT INTO activity_sessions (session_id, user_id, date, started_at, last_active_at, total_active_minutes, rewards_claimed)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (user_id, date) DO NOTHING
	`
	n, err := t.execAffected(ctx, "create activity session", query,
		s.SessionID, s.UserID, s.Date, s.StartedAt, s.LastActiveAt, s.TotalActiveMinutes, s.RewardsClaimed)
	return n == 1, err
}

func (t *pgTx) SaveActivitySession(ctx context.Context, s *domain.ActivitySession) error {
	const query = `
		INSERT INTO activity_sessions (session_id, user_id, date, started_at, last_active_at, total_active_minutes, rewards_claimed)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (user_id, date) DO UPDATE SET
			last_active_at = EXCLUDED.last_active_at,
			total_active_minutes = EXCLUDED.total_active_minutes,
			rewards_claimed = EXCLUDED.rewards_claimed
	`
	return t.exec(ctx, "save activity session", query,
		s.SessionID, s.UserID, s.Date, s.StartedAt, s.LastActiveAt, s.TotalActiveMinutes, s.RewardsClaimed)
}

func (t *pgTx) ListActivitySessions(ctx context.Context, userID string, limit int) ([]domain.ActivitySession, error) {
	const query = `
		SELECT session_id, user_id, date, started_at, last_active_at, total_active_minutes, rewards_claimed
		FROM activity_sessions
		WHERE user_id = $1
		ORDER BY date DESC
		LIMIT $2
	`

	rows, err := t.tx.QueryContext(ctx, query, userID, normalizeLimit(limit, 7))
	if err != nil {
		return nil, fmt.Errorf("list activity sessions: %w", err)
	}
	defer rows.Close()

	var out []domain.ActivitySession
	for rows.Next() {
		var s domain.ActivitySession
		if err := rows.Scan(&s.SessionID, &s.UserID, &s.Date, &s.StartedAt, &s.LastActiveAt, &s.TotalActiveMinutes, &s.RewardsClaimed); err != nil {
			return nil, fmt.Errorf("scan activity session: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (t *pgTx) CountMessagingRewards(ctx context.Context, userID, date string) (int, decimal.Decimal, error) {
	const query = `SELECT COUNT(*), COALESCE(SUM(amount), 0) FROM messaging_rewards WHERE user_id = $1 AND date = $2`

	var (
		count int
		sum   decimal.Decimal
	)
	if err := t.tx.QueryRowContext(ctx, query, userID, date).Scan(&count, &sum); err != nil {
		return 0, decimal.Zero, fmt.Errorf("count messaging rewards: %w", err)
	}
	return count, sum, nil
}

func (t *pgTx) InsertMessagingReward(ctx context.Context, r *domain.MessagingReward) error {
	const query = `INSERT INTO messaging_rewards (reward_id, user_id, date, amount, created_at) VALUES ($1, $2, $3, $4, $5)`
	return t.exec(ctx, "insert messaging reward", query, r.RewardID, r.UserID, r.Date, r.Amount, r.CreatedAt)
}

func (t *pgTx) GetHostProfile(ctx context.Context, userID string) (*domain.HostProfile, error) {
	const query = `SELECT user_id, registered_at FROM host_profiles WHERE user_id = $1`

	var p domain.HostProfile
	if err := t.tx.QueryRowContext(ctx, query, userID).Scan(&p.UserID, &p.RegisteredAt); err != nil {
		return nil, mapErr(err)
	}
	return &p, nil
}

func (t *pgTx) CreateHostProfile(ctx context.Context, p *domain.HostProfile) error {
	const query = `INSERT INTO host_profiles (user_id, registered_at) VALUES ($1, $2)`
	return t.exec(ctx, "insert host profile", query, p.UserID, p.RegisteredAt)
}

func (t *pgTx) GetActiveHostSession(ctx context.Context, userID string, forUpdate bool) (*domain.HostSession, error) {
	query := `SELECT session_id, user_id, host_type, status, started_at, ended_at, duration_minutes, stars_earned, is_welcome
		FROM host_sessions WHERE user_id = $1 AND status = 'active'` + lockClause(forUpdate)

	var s domain.HostSession
	if err := t.tx.QueryRowContext(ctx, query, userID).Scan(
		&s.SessionID, &s.UserID, &s.HostType, &s.Status, &s.StartedAt, &s.EndedAt, &s.DurationMinutes, &s.StarsEarned, &s.IsWelcome,
	); err != nil {
		return nil, mapErr(err)
	}
	return &s, nil
}

func (t *pgTx) SaveHostSession(ctx context.Context, s *domain.HostSession) error {
	const query = `
		INSERT INTO host_sessions (session_id, user_id, host_type, status, started_at, ended_at, duration_minutes, stars_earned, is_welcome)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (session_id) DO UPDATE SET
			status = EXCLUDED.status,
			ended_at = EXCLUDED.ended_at,
			duration_minutes = EXCLUDED.duration_minutes,
			stars_earned = EXCLUDED.stars_earned,
			is_welcome = EXCLUDED.is_welcome
	`
	return t.exec(ctx, "save host session", query,
		s.SessionID, s.UserID, s.HostType, s.Status, s.StartedAt, s.EndedAt, s.DurationMinutes, s.StarsEarned, s.IsWelcome)
}

// agency

const agencyColumns = `user_id, referral_code, total_referrals, total_commission_earned, commission_tier,
	is_active, last_active_date, created_at, updated_at`

func scanAgency(row rowScanner) (*domain.AgencyStatus, error) {
	var a domain.AgencyStatus
	if err := row.Scan(
		&a.UserID,
		&a.ReferralCode,
		&a.TotalReferrals,
		&a.TotalCommissionEarned,
		&a.CommissionTier,
		&a.IsActive,
		&a.LastActiveDate,
		&a.CreatedAt,
		&a.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &a, nil
}

func (t *pgTx) GetAgency(ctx context.Context, userID string, forUpdate bool) (*domain.AgencyStatus, error) {
	query := `SELECT ` + agencyColumns + ` FROM agency_status WHERE user_id = $1` + lockClause(forUpdate)

	a, err := scanAgency(t.tx.QueryRowContext(ctx, query, userID))
	if err != nil {
		return nil, mapErr(err)
	}
	return a, nil
}

func (t *pgTx) GetAgencyByCode(ctx context.Context, code string) (*domain.AgencyStatus, error) {
	query := `SELECT ` + agencyColumns + ` FROM agency_status WHERE referral_code = $1`

	a, err := scanAgency(t.tx.QueryRowContext(ctx, query, code))
	if err != nil {
		return nil, mapErr(err)
	}
	return a, nil
}

func (t *pgTx) SaveAgency(ctx context.Context, a *domain.AgencyStatus) error {
	query := `INSERT INTO agency_status (` + agencyColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (user_id) DO UPDATE SET
			total_referrals = EXCLUDED.total_referrals,
			total_commission_earned = EXCLUDED.total_commission_earned,
			commission_tier = EXCLUDED.commission_tier,
			is_active = EXCLUDED.is_active,
			last_active_date = EXCLUDED.last_active_date,
			updated_at = EXCLUDED.updated_at`
	return t.exec(ctx, "save agency", query,
		a.UserID, a.ReferralCode, a.TotalReferrals, a.TotalCommissionEarned, a.CommissionTier, a.IsActive, a.LastActiveDate, a.CreatedAt, a.UpdatedAt)
}

func (t *pgTx) TouchAgency(ctx context.Context, userID string, at time.Time) error {
	const query = `UPDATE agency_status SET is_active = TRUE, last_active_date = $2, updated_at = $2 WHERE user_id = $1`
	return t.exec(ctx, "touch agency", query, userID, at)
}

func (t *pgTx) ListStaleAgents(ctx context.Context, before time.Time) ([]domain.AgencyStatus, error) {
	query := `SELECT ` + agencyColumns + ` FROM agency_status WHERE is_active AND last_active_date < $1 ORDER BY user_id`

	rows, err := t.tx.QueryContext(ctx, query, before)
	if err != nil {
		return nil, fmt.Errorf("list stale agents: %w", err)
	}
	defer rows.Close()

	var out []domain.AgencyStatus
	for rows.Next() {
		a, err := scanAgency(rows)
		if err != nil {
			return nil, fmt.Errorf("scan agency: %w", err)
		}
		out = append(out, *a)
	}
	return out, rows.Err()
}

func (t *pgTx) GetReferralByReferred(ctx context.Context, referredID string) (*domain.Referral, error) {
	const query = `SELECT referral_id, referrer_id, referred_id, status, created_at FROM referrals WHERE referred_id = $1`

	var r domain.Referral
	if err := t.tx.QueryRowContext(ctx, query, referredID).Scan(&r.ReferralID, &r.ReferrerID, &r.ReferredID, &r.Status, &r.CreatedAt); err != nil {
		return nil, mapErr(err)
	}
	return &r, nil
}

func (t *pgTx) InsertReferral(ctx context.Context, r *domain.Referral) error {
	const query = `INSERT INTO referrals (referral_id, referrer_id, referred_id, status, created_at) VALUES ($1, $2, $3, $4, $5)`
	return t.exec(ctx, "insert referral", query, r.ReferralID, r.ReferrerID, r.ReferredID, r.Status, r.CreatedAt)
}

func (t *pgTx) ListReferrals(ctx context.Context, referrerID string) ([]domain.Referral, error) {
	const query = `
		SELECT referral_id, referrer_id, referred_id, status, created_at
		FROM referrals
		WHERE referrer_id = $1
		ORDER BY created_at DESC
	`

	rows, err := t.tx.QueryContext(ctx, query, referrerID)
	if err != nil {
		return nil, fmt.Errorf("list referrals: %w", err)
	}
	defer rows.Close()

	var out []domain.Referral
	for rows.Next() {
		var r domain.Referral
		if err := rows.Scan(&r.ReferralID, &r.ReferrerID, &r.ReferredID, &r.Status, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan referral: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// gifts

func (t *pgTx) InsertGiftRecord(ctx context.Context, g *domain.GiftRecord) error {
	const query = `
		INSERT INTO gift_records (gift_record_id, sender_id, receiver_id, gift_id, gift_name, gift_price, quantity,
			total_value, charity_amount, receiver_amount, message, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`
	return t.exec(ctx, "insert gift record", query,
		g.GiftRecordID, g.SenderID, g.ReceiverID, g.GiftID, g.GiftName, g.GiftPrice, g.Quantity,
		g.TotalValue, g.CharityAmount, g.ReceiverAmount, g.Message, g.CreatedAt)
}

func (t *pgTx) ListGiftRecords(ctx context.Context, f GiftFilter) ([]domain.GiftRecord, error) {
	const query = `
		SELECT gift_record_id, sender_id, receiver_id, gift_id, gift_name, gift_price, quantity,
			total_value, charity_amount, receiver_amount, message, created_at
		FROM gift_records
		WHERE ($1 = '' OR sender_id = $1) AND ($2 = '' OR receiver_id = $2)
		ORDER BY created_at DESC
		LIMIT $3
	`

	rows, err := t.tx.QueryContext(ctx, query, f.SenderID, f.ReceiverID, normalizeLimit(f.Limit, 50))
	if err != nil {
		return nil, fmt.Errorf("list gift records: %w", err)
	}
	defer rows.Close()

	out := []domain.GiftRecord{}
	for rows.Next() {
		var g domain.GiftRecord
		if err := rows.Scan(
			&g.GiftRecordID, &g.SenderID, &g.ReceiverID, &g.GiftID, &g.GiftName, &g.GiftPrice, &g.Quantity,
			&g.TotalValue, &g.CharityAmount, &g.ReceiverAmount, &g.Message, &g.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan gift record: %w", err)
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

func (t *pgTx) GiftLeaderboard(ctx context.Context, role GiftRole, limit int) ([]domain.LeaderboardEntry, error) {
	column := "sender_id"
	if role == GiftReceiver {
		column = "receiver_id"
	}

	query := `SELECT g.` + column + `, COALESCE(u.name, ''), SUM(g.total_value), COUNT(*)
		FROM gift_records g
		LEFT JOIN users u ON u.user_id = g.` + column + `
		GROUP BY g.` + column + `, u.name
		ORDER BY 3 DESC, 1
		LIMIT $1`

	return t.leaderboard(ctx, "gift leaderboard", query, normalizeLimit(limit, 10))
}

func (t *pgTx) leaderboard(ctx context.Context, what, query string, args ...any) ([]domain.LeaderboardEntry, error) {
	rows, err := t.tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", what, err)
	}
	defer rows.Close()

	out := []domain.LeaderboardEntry{}
	for rows.Next() {
		e := domain.LeaderboardEntry{Rank: len(out) + 1}
		if err := rows.Scan(&e.UserID, &e.Name, &e.Total, &e.Count); err != nil {
			return nil, fmt.Errorf("scan %s: %w", what, err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// charity

func (t *pgTx) AddCharity(ctx context.Context, amount decimal.Decimal, at time.Time) error {
	const query = `
		INSERT INTO charity_wallet (id, total_balance, total_received, total_distributed, updated_at)
		VALUES (1, $1, $1, 0, $2)
		ON CONFLICT (id) DO UPDATE SET
			total_balance = charity_wallet.total_balance + EXCLUDED.total_balance,
			total_received = charity_wallet.total_received + EXCLUDED.total_received,
			updated_at = EXCLUDED.updated_at
	`
	return t.exec(ctx, "add charity", query, amount, at)
}

func (t *pgTx) GetCharityWallet(ctx context.Context) (*domain.CharityWallet, error) {
	const query = `SELECT total_balance, total_received, total_distributed, updated_at FROM charity_wallet WHERE id = 1`

	var c domain.CharityWallet
	if err := t.tx.QueryRowContext(ctx, query).Scan(&c.TotalBalance, &c.TotalReceived, &c.TotalDistributed, &c.UpdatedAt); err != nil {
		return nil, mapErr(err)
	}
	return &c, nil
}

func (t *pgTx) InsertCharityContribution(ctx context.Context, c *domain.CharityContribution) error {
	const query = `
		INSERT INTO charity_contributions (contribution_id, user_id, amount, source, reference_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	return t.exec(ctx, "insert charity contribution", query, c.ContributionID, c.UserID, c.Amount, c.Source, c.ReferenceID, c.CreatedAt)
}

func (t *pgTx) ListCharityContributions(ctx context.Context, userID string, limit int) ([]domain.CharityContribution, error) {
	const query = `
		SELECT contribution_id, user_id, amount, source, reference_id, created_at
		FROM charity_contributions
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`

	rows, err := t.tx.QueryContext(ctx, query, userID, normalizeLimit(limit, 10))
	if err != nil {
		return nil, fmt.Errorf("list charity contributions: %w", err)
	}
	defer rows.Close()

	out := []domain.CharityContribution{}
	for rows.Next() {
		var c domain.CharityContribution
		if err := rows.Scan(&c.ContributionID, &c.UserID, &c.Amount, &c.Source, &c.ReferenceID, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan charity contribution: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (t *pgTx) UserCharityTotal(ctx context.Context, userID string) (decimal.Decimal, int, error) {
	const query = `SELECT COALESCE(SUM(amount), 0), COUNT(*) FROM charity_contributions WHERE user_id = $1`

	var (
		sum   decimal.Decimal
		count int
	)
	if err := t.tx.QueryRowContext(ctx, query, userID).Scan(&sum, &count); err != nil {
		return decimal.Zero, 0, fmt.Errorf("user charity total: %w", err)
	}
	return sum, count, nil
}

func (t *pgTx) CharityLeaderboard(ctx context.Context, limit int) ([]domain.LeaderboardEntry, error) {
	const query = `
		SELECT c.user_id, COALESCE(u.name, ''), SUM(c.amount), COUNT(*)
		FROM charity_contributions c
		LEFT JOIN users u ON u.user_id = c.user_id
		GROUP BY c.user_id, u.name
		ORDER BY 3 DESC, 1
		LIMIT $1
	`
	return t.leaderboard(ctx, "charity leaderboard", query, normalizeLimit(limit, 20))
}

// games

func (t *pgTx) InsertGame(ctx context.Context, g *domain.LuckyWalletGame) error {
	const query = `
		INSERT INTO lucky_wallet_games (game_id, user_id, bet_amount, draw, threshold, result, won_amount,
			balance_change, charity_amount, platform_amount, balance_after, date, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`
	return t.exec(ctx, "insert game", query,
		g.GameID, g.UserID, g.BetAmount, g.Draw, g.Threshold, g.Result, g.WonAmount,
		g.BalanceChange, g.CharityAmount, g.PlatformAmount, g.BalanceAfter, g.Date, g.CreatedAt)
}

func (t *pgTx) ListGames(ctx context.Context, userID, date string, limit int) ([]domain.LuckyWalletGame, error) {
	const query = `
		SELECT game_id, user_id, bet_amount, draw, threshold, result, won_amount,
			balance_change, charity_amount, platform_amount, balance_after, date, created_at
		FROM lucky_wallet_games
		WHERE user_id = $1 AND ($2 = '' OR date = $2)
		ORDER BY created_at DESC
		LIMIT $3
	`

	rows, err := t.tx.QueryContext(ctx, query, userID, date, normalizeLimit(limit, 20))
	if err != nil {
		return nil, fmt.Errorf("list games: %w", err)
	}
	defer rows.Close()

	out := []domain.LuckyWalletGame{}
	for rows.Next() {
		var g domain.LuckyWalletGame
		if err := rows.Scan(
			&g.GameID, &g.UserID, &g.BetAmount, &g.Draw, &g.Threshold, &g.Result, &g.WonAmount,
			&g.BalanceChange, &g.CharityAmount, &g.PlatformAmount, &g.BalanceAfter, &g.Date, &g.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan game: %w", err)
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

// payouts

type methodDetails struct {
	Bank *domain.BankDetails `json:"bank,omitempty"`
	UPI  *domain.UPIDetails  `json:"upi,omitempty"`
}

func scanMethod(row rowScanner) (*domain.PaymentMethod, error) {
	var (
		m   domain.PaymentMethod
		raw []byte
	)
	if err := row.Scan(&m.MethodID, &m.UserID, &m.MethodType, &raw, &m.IsDefault, &m.IsVerified, &m.CreatedAt); err != nil {
		return nil, err
	}

	var details methodDetails
	if err := json.Unmarshal(raw, &details); err != nil {
		return nil, fmt.Errorf("decode payment method details: %w", err)
	}
	m.Bank = details.Bank
	m.UPI = details.UPI

	return &m, nil
}

func (t *pgTx) InsertPaymentMethod(ctx context.Context, m *domain.PaymentMethod) error {
	const query = `
		INSERT INTO payment_methods (method_id, user_id, method_type, details, is_default, is_verified, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	raw, err := json.Marshal(methodDetails{Bank: m.Bank, UPI: m.UPI})
	if err != nil {
		return fmt.Errorf("encode payment method details: %w", err)
	}
	return t.exec(ctx, "insert payment method", query, m.MethodID, m.UserID, m.MethodType, raw, m.IsDefault, m.IsVerified, m.CreatedAt)
}

func (t *pgTx) GetPaymentMethod(ctx context.Context, userID, methodID string) (*domain.PaymentMethod, error) {
	const query = `
		SELECT method_id, user_id, method_type, details, is_default, is_verified, created_at
		FROM payment_methods
		WHERE user_id = $1 AND method_id = $2
	`

	m, err := scanMethod(t.tx.QueryRowContext(ctx, query, userID, methodID))
	if err != nil {
		return nil, mapErr(err)
	}
	return m, nil
}

func (t *pgTx) ListPaymentMethods(ctx context.Context, userID string) ([]domain.PaymentMethod, error) {
	const query = `
		SELECT method_id, user_id, method_type, details, is_default, is_verified, created_at
		FROM payment_methods
		WHERE user_id = $1
		ORDER BY created_at DESC
	`

	rows, err := t.tx.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("list payment methods: %w", err)
	}
	defer rows.Close()

	out := []domain.PaymentMethod{}
	for rows.Next() {
		m, err := scanMethod(rows)
		if err != nil {
			return nil, fmt.Errorf("scan payment method: %w", err)
		}
		out = append(out, *m)
	}
	return out, rows.Err()
}

func (t *pgTx) ClearDefaultPaymentMethods(ctx context.Context, userID string) error {
	const query = `UPDATE payment_methods SET is_default = FALSE WHERE user_id = $1 AND is_default`
	return t.exec(ctx, "clear default payment methods", query, userID)
}

const withdrawalColumns = `withdrawal_id, user_id, amount, status, payment_method_id, payment_method_type,
	is_vip, face_verified, estimated_completion, created_at, updated_at`

func scanWithdrawal(row rowScanner) (*domain.Withdrawal, error) {
	var w domain.Withdrawal
	if err := row.Scan(
		&w.WithdrawalID,
		&w.UserID,
		&w.Amount,
		&w.Status,
		&w.PaymentMethodID,
		&w.PaymentMethodType,
		&w.IsVIP,
		&w.FaceVerified,
		&w.EstimatedCompletion,
		&w.CreatedAt,
		&w.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &w, nil
}

func (t *pgTx) InsertWithdrawal(ctx context.Context, w *domain.Withdrawal) error {
	query := `INSERT INTO withdrawals (` + withdrawalColumns + `) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`
	return t.exec(ctx, "insert withdrawal", query,
		w.WithdrawalID, w.UserID, w.Amount, w.Status, w.PaymentMethodID, w.PaymentMethodType,
		w.IsVIP, w.FaceVerified, w.EstimatedCompletion, w.CreatedAt, w.UpdatedAt)
}

func (t *pgTx) GetWithdrawal(ctx context.Context, userID, withdrawalID string, forUpdate bool) (*domain.Withdrawal, error) {
	query := `SELECT ` + withdrawalColumns + ` FROM withdrawals WHERE user_id = $1 AND withdrawal_id = $2` + lockClause(forUpdate)

	w, err := scanWithdrawal(t.tx.QueryRowContext(ctx, query, userID, withdrawalID))
	if err != nil {
		return nil, mapErr(err)
	}
	return w, nil
}

func (t *pgTx) UpdateWithdrawal(ctx context.Context, w *domain.Withdrawal) error {
	const query = `
		UPDATE withdrawals
		SET status = $2, face_verified = $3, updated_at = $4
		WHERE withdrawal_id = $1
	`
	n, err := t.execAffected(ctx, "update withdrawal", query, w.WithdrawalID, w.Status, w.FaceVerified, w.UpdatedAt)
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (t *pgTx) ListWithdrawals(ctx context.Context, userID string, limit int) ([]domain.Withdrawal, error) {
	query := `SELECT ` + withdrawalColumns + ` FROM withdrawals WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2`

	rows, err := t.tx.QueryContext(ctx, query, userID, normalizeLimit(limit, 20))
	if err != nil {
		return nil, fmt.Errorf("list withdrawals: %w", err)
	}
	defer rows.Close()

	out := []domain.Withdrawal{}
	for rows.Next() {
		w, err := scanWithdrawal(rows)
		if err != nil {
			return nil, fmt.Errorf("scan withdrawal: %w", err)
		}
		out = append(out, *w)
	}
	return out, rows.Err()
}

// notifications

func (t *pgTx) InsertNotification(ctx context.Context, n *domain.Notification) error {
	const query = `
		INSERT INTO notifications (notification_id, user_id, title, message, notification_type, is_read, action_url, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	return t.exec(ctx, "insert notification", query,
		n.NotificationID, n.UserID, n.Title, n.Message, n.Category, n.IsRead, n.ActionURL, n.CreatedAt)
}

func (t *pgTx) ListNotifications(ctx context.Context, userID string, unreadOnly bool, limit int) ([]domain.Notification, int, error) {
	const countQuery = `SELECT COUNT(*) FROM notifications WHERE user_id = $1 AND NOT is_read`
	const query = `
		SELECT notification_id, user_id, title, message, notification_type, is_read, action_url, created_at
		FROM notifications
		WHERE user_id = $1 AND (NOT $2 OR NOT is_read)
		ORDER BY created_at DESC
		LIMIT $3
	`

	var unread int
	if err := t.tx.QueryRowContext(ctx, countQuery, userID).Scan(&unread); err != nil {
		return nil, 0, fmt.Errorf("count unread notifications: %w", err)
	}

	rows, err := t.tx.QueryContext(ctx, query, userID, unreadOnly, normalizeLimit(limit, 50))
	if err != nil {
		return nil, 0, fmt.Errorf("list notifications: %w", err)
	}
	defer rows.Close()

	out := []domain.Notification{}
	for rows.Next() {
		var n domain.Notification
		if err := rows.Scan(&n.NotificationID, &n.UserID, &n.Title, &n.Message, &n.Category, &n.IsRead, &n.ActionURL, &n.CreatedAt); err != nil {
			return nil, 0, fmt.Errorf("scan notification: %w", err)
		}
		out = append(out, n)
	}
	return out, unread, rows.Err()
}

func (t *pgTx) MarkNotificationRead(ctx context.Context, userID, notificationID string) error {
	const query = `UPDATE notifications SET is_read = TRUE WHERE user_id = $1 AND notification_id = $2`

	n, err := t.execAffected(ctx, "mark notification read", query, userID, notificationID)
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (t *pgTx) MarkAllNotificationsRead(ctx context.Context, userID string) (int, error) {
	const query = `UPDATE notifications SET is_read = TRUE WHERE user_id = $1 AND NOT is_read`
	return t.execAffected(ctx, "mark all notifications read", query, userID)
}
