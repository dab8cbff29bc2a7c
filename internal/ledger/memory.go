package ledger

import (
	"context"
	"maps"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Proton-105/himera-wallet/internal/domain"
)

// MemoryStore keeps the ledger in process memory. Units of work are serialised and
// run against a copy of the state that replaces the live state only on success.
type MemoryStore struct {
	mu    sync.RWMutex
	state *memState
}

type memState struct {
	users         map[string]domain.User
	wallets       map[string]domain.Wallet
	txns          []domain.Transaction
	vip           map[string]domain.VIPStatus
	sessions      map[string]domain.ActivitySession
	messaging     []domain.MessagingReward
	hostProfiles  map[string]domain.HostProfile
	hostSessions  map[string]domain.HostSession
	agencies      map[string]domain.AgencyStatus
	referrals     []domain.Referral
	gifts         []domain.GiftRecord
	charity       *domain.CharityWallet
	contributions []domain.CharityContribution
	games         []domain.LuckyWalletGame
	methods       []domain.PaymentMethod
	withdrawals   []domain.Withdrawal
	notifications []domain.Notification
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{state: &memState{
		users:        make(map[string]domain.User),
		wallets:      make(map[string]domain.Wallet),
		vip:          make(map[string]domain.VIPStatus),
		sessions:     make(map[string]domain.ActivitySession),
		hostProfiles: make(map[string]domain.HostProfile),
		hostSessions: make(map[string]domain.HostSession),
		agencies:     make(map[string]domain.AgencyStatus),
	}}
}

func (s *memState) clone() *memState {
	cp := &memState{
		users:         maps.Clone(s.users),
		wallets:       maps.Clone(s.wallets),
		txns:          slices.Clone(s.txns),
		vip:           maps.Clone(s.vip),
		sessions:      maps.Clone(s.sessions),
		messaging:     slices.Clone(s.messaging),
		hostProfiles:  maps.Clone(s.hostProfiles),
		hostSessions:  maps.Clone(s.hostSessions),
		agencies:      maps.Clone(s.agencies),
		referrals:     slices.Clone(s.referrals),
		gifts:         slices.Clone(s.gifts),
		contributions: slices.Clone(s.contributions),
		games:         slices.Clone(s.games),
		methods:       slices.Clone(s.methods),
		withdrawals:   slices.Clone(s.withdrawals),
		notifications: slices.Clone(s.notifications),
	}
	if s.charity != nil {
		c := *s.charity
		cp.charity = &c
	}
	return cp
}

// Atomic runs fn on a private copy of the state and publishes it if fn succeeds.
func (s *MemoryStore) Atomic(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	draft := s.state.clone()
	if err := fn(ctx, &memTx{st: draft}); err != nil {
		return err
	}
	s.state = draft

	return nil
}

// View runs fn against the live state; writes fail with ErrReadOnly.
func (s *MemoryStore) View(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	return fn(ctx, &memTx{st: s.state, readOnly: true})
}

func (s *MemoryStore) HealthCheck(ctx context.Context) error {
	return ctx.Err()
}

type memTx struct {
	st       *memState
	readOnly bool
}

func (t *memTx) writable() error {
	if t.readOnly {
		return ErrReadOnly
	}
	return nil
}

func (t *memTx) userName(userID string) string {
	if u, ok := t.st.users[userID]; ok {
		return u.Name
	}
	return ""
}

// users

func (t *memTx) GetUser(_ context.Context, userID string) (*domain.User, error) {
	u, ok := t.st.users[userID]
	if !ok {
		return nil, ErrNotFound
	}
	return &u, nil
}

func (t *memTx) CreateUser(_ context.Context, user *domain.User) error {
	if err := t.writable(); err != nil {
		return err
	}
	if _, ok := t.st.users[user.UserID]; ok {
		return ErrConflict
	}
	t.st.users[user.UserID] = *user
	return nil
}

// wallets

func (t *memTx) GetWallet(_ context.Context, userID string) (*domain.Wallet, error) {
	w, ok := t.st.wallets[userID]
	if !ok {
		return nil, ErrNotFound
	}
	return &w, nil
}

func (t *memTx) LockWallets(ctx context.Context, userIDs ...string) (map[string]*domain.Wallet, error) {
	ids := slices.Clone(userIDs)
	sort.Strings(ids)

	out := make(map[string]*domain.Wallet, len(ids))
	for _, id := range slices.Compact(ids) {
		w, err := t.GetWallet(ctx, id)
		if err != nil {
			return nil, err
		}
		out[id] = w
	}
	return out, nil
}

func (t *memTx) CreateWallet(_ context.Context, wallet *domain.Wallet) error {
	if err := t.writable(); err != nil {
		return err
	}
	if _, ok := t.st.wallets[wallet.UserID]; ok {
		return ErrConflict
	}
	t.st.wallets[wallet.UserID] = *wallet
	return nil
}

func (t *memTx) UpdateWallet(_ context.Context, wallet *domain.Wallet) error {
	if err := t.writable(); err != nil {
		return err
	}
	if _, ok := t.st.wallets[wallet.UserID]; !ok {
		return ErrNotFound
	}
	t.st.wallets[wallet.UserID] = *wallet
	return nil
}

func (t *memTx) InsertTransaction(_ context.Context, txn *domain.Transaction) error {
	if err := t.writable(); err != nil {
		return err
	}
	t.st.txns = append(t.st.txns, *txn)
	return nil
}

func (t *memTx) UpdateTransactionStatus(_ context.Context, userID, referenceID string, from, to domain.TransactionStatus) (int, error) {
	if err := t.writable(); err != nil {
		return 0, err
	}
	n := 0
	for i := range t.st.txns {
		txn := &t.st.txns[i]
		if txn.UserID == userID && txn.ReferenceID == referenceID && txn.Status == from {
			txn.Status = to
			n++
		}
	}
	return n, nil
}

func (t *memTx) ListTransactions(_ context.Context, f TransactionFilter) ([]domain.Transaction, int, error) {
	var matched []domain.Transaction
	for i := len(t.st.txns) - 1; i >= 0; i-- {
		txn := t.st.txns[i]
		if txn.UserID != f.UserID || (f.Type != "" && txn.Type != f.Type) {
			continue
		}
		matched = append(matched, txn)
	}

	total := len(matched)
	return page(matched, normalizeLimit(f.Limit, 50), f.Offset), total, nil
}

func (t *memTx) SumTransactions(_ context.Context, f SumFilter) (decimal.Decimal, int, error) {
	sum := decimal.Zero
	count := 0
	for _, txn := range t.st.txns {
		if len(f.UserIDs) > 0 && !slices.Contains(f.UserIDs, txn.UserID) {
			continue
		}
		if len(f.Types) > 0 && !slices.Contains(f.Types, txn.Type) {
			continue
		}
		if f.Currency != "" && txn.Currency != f.Currency {
			continue
		}
		if !f.Since.IsZero() && txn.CreatedAt.Before(f.Since) {
			continue
		}
		sum = sum.Add(txn.Amount)
		count++
	}
	return sum, count, nil
}

// vip

func (t *memTx) GetVIPStatus(_ context.Context, userID string, _ bool) (*domain.VIPStatus, error) {
	v, ok := t.st.vip[userID]
	if !ok {
		return nil, ErrNotFound
	}
	return &v, nil
}

func (t *memTx) SaveVIPStatus(_ context.Context, status *domain.VIPStatus) error {
	if err := t.writable(); err != nil {
		return err
	}
	t.st.vip[status.UserID] = *status
	return nil
}

func (t *memTx) ListDueVIP(_ context.Context, now time.Time, limit int) ([]domain.VIPStatus, error) {
	var due []domain.VIPStatus
	for _, v := range t.st.vip {
		if v.IsActive && v.SubscriptionEnd != nil && !v.SubscriptionEnd.After(now) {
			due = append(due, v)
		}
	}
	sort.Slice(due, func(i, j int) bool { return due[i].SubscriptionEnd.Before(*due[j].SubscriptionEnd) })
	return page(due, normalizeLimit(limit, 100), 0), nil
}

// rewards

func sessionKey(userID, date string) string {
	return userID + "|" + date
}

func (t *memTx) GetActivitySession(_ context.Context, userID, date string, _ bool) (*domain.ActivitySession, error) {
	s, ok := t.st.sessions[sessionKey(userID, date)]
	if !ok {
		return nil, ErrNotFound
	}
	return &s, nil
}

func (t *memTx) CreateActivitySession(_ context.Context, session *domain.ActivitySession) (bool, error) {
	if err := t.writable(); err != nil {
		return false, err
	}
	key := sessionKey(session.UserID, session.Date)
	if _, ok := t.st.sessions[key]; ok {
		return false, nil
	}
	t.st.sessions[key] = *session
	return true, nil
}

func (t *memTx) SaveActivitySession(_ context.Context, session *domain.ActivitySession) error {
	if err := t.writable(); err != nil {
		return err
	}
	t.st.sessions[sessionKey(session.UserID, session.Date)] = *session
	return nil
}

func (t *memTx) ListActivitySessions(_ context.Context, userID string, limit int) ([]domain.ActivitySession, error) {
	var out []domain.ActivitySession
	for _, s := range t.st.sessions {
		if s.UserID == userID {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date > out[j].Date })
	return page(out, normalizeLimit(limit, 7), 0), nil
}

func (t *memTx) CountMessagingRewards(_ context.Context, userID, date string) (int, decimal.Decimal, error) {
	count := 0
	sum := decimal.Zero
	for _, r := range t.st.messaging {
		if r.UserID == userID && r.Date == date {
			count++
			sum = sum.Add(r.Amount)
		}
	}
	return count, sum, nil
}

func (t *memTx) InsertMessagingReward(_ context.Context, reward *domain.MessagingReward) error {
	if err := t.writable(); err != nil {
		return err
	}
	t.st.messaging = append(t.st.messaging, *reward)
	return nil
}

func (t *memTx) GetHostProfile(_ context.Context, userID string) (*domain.HostProfile, error) {
	p, ok := t.st.hostProfiles[userID]
	if !ok {
		return nil, ErrNotFound
	}
	return &p, nil
}

func (t *memTx) CreateHostProfile(_ context.Context, profile *domain.HostProfile) error {
	if err := t.writable(); err != nil {
		return err
	}
	if _, ok := t.st.hostProfiles[profile.UserID]; ok {
		return ErrConflict
	}
	t.st.hostProfiles[profile.UserID] = *profile
	return nil
}

func (t *memTx) GetActiveHostSession(_ context.Context, userID string, _ bool) (*domain.HostSession, error) {
	for _, s := range t.st.hostSessions {
		if s.UserID == userID && s.Status == domain.HostSessionActive {
			return &s, nil
		}
	}
	return nil, ErrNotFound
}

func (t *memTx) SaveHostSession(_ context.Context, session *domain.HostSession) error {
	if err := t.writable(); err != nil {
		return err
	}
	t.st.hostSessions[session.SessionID] = *session
	return nil
}

// agency

func (t *memTx) GetAgency(_ context.Context, userID string, _ bool) (*domain.AgencyStatus, error) {
	a, ok := t.st.agencies[userID]
	if !ok {
		return nil, ErrNotFound
	}
	return &a, nil
}

func (t *memTx) GetAgencyByCode(_ context.Context, code string) (*domain.AgencyStatus, error) {
	for _, a := range t.st.agencies {
		if a.ReferralCode == code {
			return &a, nil
		}
	}
	return nil, ErrNotFound
}

func (t *memTx) SaveAgency(_ context.Context, agency *domain.AgencyStatus) error {
	if err := t.writable(); err != nil {
		return err
	}
	for id, a := range t.st.agencies {
		if id != agency.UserID && a.ReferralCode == agency.ReferralCode {
			return ErrConflict
		}
	}
	t.st.agencies[agency.UserID] = *agency
	return nil
}

func (t *memTx) TouchAgency(_ context.Context, userID string, at time.Time) error {
	if err := t.writable(); err != nil {
		return err
	}
	a, ok := t.st.agencies[userID]
	if !ok {
		return nil
	}
	a.IsActive = true
	a.LastActiveDate = at
	a.UpdatedAt = at
	t.st.agencies[userID] = a
	return nil
}

func (t *memTx) ListStaleAgents(_ context.Context, before time.Time) ([]domain.AgencyStatus, error) {
	var out []domain.AgencyStatus
	for _, a := range t.st.agencies {
		if a.IsActive && a.LastActiveDate.Before(before) {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out, nil
}

func (t *memTx) GetReferralByReferred(_ context.Context, referredID string) (*domain.Referral, error) {
	for _, r := range t.st.referrals {
		if r.ReferredID == referredID {
			return &r, nil
		}
	}
	return nil, ErrNotFound
}

func (t *memTx) InsertReferral(ctx context.Context, referral *domain.Referral) error {
	if err := t.writable(); err != nil {
		return err
	}
	if _, err := t.GetReferralByReferred(ctx, referral.ReferredID); err == nil {
		return ErrConflict
	}
	t.st.referrals = append(t.st.referrals, *referral)
	return nil
}

func (t *memTx) ListReferrals(_ context.Context, referrerID string) ([]domain.Referral, error) {
	var out []domain.Referral
	for i := len(t.st.referrals) - 1; i >= 0; i-- {
		if t.st.referrals[i].ReferrerID == referrerID {
			out = append(out, t.st.referrals[i])
		}
	}
	return out, nil
}

// gifts

func (t *memTx) InsertGiftRecord(_ context.Context, record *domain.GiftRecord) error {
	if err := t.writable(); err != nil {
		return err
	}
	t.st.gifts = append(t.st.gifts, *record)
	return nil
}

func (t *memTx) ListGiftRecords(_ context.Context, f GiftFilter) ([]domain.GiftRecord, error) {
	var out []domain.GiftRecord
	for i := len(t.st.gifts) - 1; i >= 0; i-- {
		g := t.st.gifts[i]
		if f.SenderID != "" && g.SenderID != f.SenderID {
			continue
		}
		if f.ReceiverID != "" && g.ReceiverID != f.ReceiverID {
			continue
		}
		out = append(out, g)
	}
	return page(out, normalizeLimit(f.Limit, 50), 0), nil
}

func (t *memTx) GiftLeaderboard(_ context.Context, role GiftRole, limit int) ([]domain.LeaderboardEntry, error) {
	agg := newAggregator()
	for _, g := range t.st.gifts {
		id := g.SenderID
		if role == GiftReceiver {
			id = g.ReceiverID
		}
		agg.add(id, g.TotalValue)
	}
	return agg.rank(normalizeLimit(limit, 10), t.userName), nil
}

// charity

func (t *memTx) AddCharity(_ context.Context, amount decimal.Decimal, at time.Time) error {
	if err := t.writable(); err != nil {
		return err
	}
	if t.st.charity == nil {
		t.st.charity = &domain.CharityWallet{
			TotalBalance:     decimal.Zero,
			TotalReceived:    decimal.Zero,
			TotalDistributed: decimal.Zero,
		}
	}
	t.st.charity.TotalBalance = t.st.charity.TotalBalance.Add(amount)
	t.st.charity.TotalReceived = t.st.charity.TotalReceived.Add(amount)
	t.st.charity.UpdatedAt = at
	return nil
}

func (t *memTx) GetCharityWallet(_ context.Context) (*domain.CharityWallet, error) {
	if t.st.charity == nil {
		return nil, ErrNotFound
	}
	c := *t.st.charity
	return &c, nil
}

func (t *memTx) InsertCharityContribution(_ context.Context, contribution *domain.CharityContribution) error {
	if err := t.writable(); err != nil {
		return err
	}
	t.st.contributions = append(t.st.contributions, *contribution)
	return nil
}

func (t *memTx) ListCharityContributions(_ context.Context, userID string, limit int) ([]domain.CharityContribution, error) {
	var out []domain.CharityContribution
	for i := len(t.st.contributions) - 1; i >= 0; i-- {
		if t.st.contributions[i].UserID == userID {
			out = append(out, t.st.contributions[i])
		}
	}
	return page(out, normalizeLimit(limit, 10), 0), nil
}

func (t *memTx) UserCharityTotal(_ context.Context, userID string) (decimal.Decimal, int, error) {
	sum := decimal.Zero
	count := 0
	for _, c := range t.st.contributions {
		if c.UserID == userID {
			sum = sum.Add(c.Amount)
			count++
		}
	}
	return sum, count, nil
}

func (t *memTx) CharityLeaderboard(_ context.Context, limit int) ([]domain.LeaderboardEntry, error) {
	agg := newAggregator()
	for _, c := range t.st.contributions {
		agg.add(c.UserID, c.Amount)
	}
	return agg.rank(normalizeLimit(limit, 20), t.userName), nil
}

// games

func (t *memTx) InsertGame(_ context.Context, game *domain.LuckyWalletGame) error {
	if err := t.writable(); err != nil {
		return err
	}
	t.st.games = append(t.st.games, *game)
	return nil
}

func (t *memTx) ListGames(_ context.Context, userID, date string, limit int) ([]domain.LuckyWalletGame, error) {
	var out []domain.LuckyWalletGame
	for i := len(t.st.games) - 1; i >= 0; i-- {
		g := t.st.games[i]
		if g.UserID != userID || (date != "" && g.Date != date) {
			continue
		}
		out = append(out, g)
	}
	return page(out, normalizeLimit(limit, 20), 0), nil
}

// payouts

func (t *memTx) InsertPaymentMethod(_ context.Context, method *domain.PaymentMethod) error {
	if err := t.writable(); err != nil {
		return err
	}
	t.st.methods = append(t.st.methods, *method)
	return nil
}

func (t *memTx) GetPaymentMethod(_ context.Context, userID, methodID string) (*domain.PaymentMethod, error) {
	for _, m := range t.st.methods {
		if m.UserID == userID && m.MethodID == methodID {
			return &m, nil
		}
	}
	return nil, ErrNotFound
}

func (t *memTx) ListPaymentMethods(_ context.Context, userID string) ([]domain.PaymentMethod, error) {
	var out []domain.PaymentMethod
	for i := len(t.st.methods) - 1; i >= 0; i-- {
		if t.st.methods[i].UserID == userID {
			out = append(out, t.st.methods[i])
		}
	}
	return out, nil
}

func (t *memTx) ClearDefaultPaymentMethods(_ context.Context, userID string) error {
	if err := t.writable(); err != nil {
		return err
	}
	for i := range t.st.methods {
		if t.st.methods[i].UserID == userID {
			t.st.methods[i].IsDefault = false
		}
	}
	return nil
}

func (t *memTx) InsertWithdrawal(_ context.Context, withdrawal *domain.Withdrawal) error {
	if err := t.writable(); err != nil {
		return err
	}
	t.st.withdrawals = append(t.st.withdrawals, *withdrawal)
	return nil
}

func (t *memTx) GetWithdrawal(_ context.Context, userID, withdrawalID string, _ bool) (*domain.Withdrawal, error) {
	for _, w := range t.st.withdrawals {
		if w.UserID == userID && w.WithdrawalID == withdrawalID {
			return &w, nil
		}
	}
	return nil, ErrNotFound
}

func (t *memTx) UpdateWithdrawal(_ context.Context, withdrawal *domain.Withdrawal) error {
	if err := t.writable(); err != nil {
		return err
	}
	for i := range t.st.withdrawals {
		if t.st.withdrawals[i].WithdrawalID == withdrawal.WithdrawalID {
			t.st.withdrawals[i] = *withdrawal
			return nil
		}
	}
	return ErrNotFound
}

func (t *memTx) ListWithdrawals(_ context.Context, userID string, limit int) ([]domain.Withdrawal, error) {
	var out []domain.Withdrawal
	for i := len(t.st.withdrawals) - 1; i >= 0; i-- {
		if t.st.withdrawals[i].UserID == userID {
			out = append(out, t.st.withdrawals[i])
		}
	}
	return page(out, normalizeLimit(limit, 20), 0), nil
}

// notifications

func (t *memTx) InsertNotification(_ context.Context, n *domain.Notification) error {
	if err := t.writable(); err != nil {
		return err
	}
	t.st.notifications = append(t.st.notifications, *n)
	return nil
}

func (t *memTx) ListNotifications(_ context.Context, userID string, unreadOnly bool, limit int) ([]domain.Notification, int, error) {
	var out []domain.Notification
	unread := 0
	for i := len(t.st.notifications) - 1; i >= 0; i-- {
		n := t.st.notifications[i]
		if n.UserID != userID {
			continue
		}
		if !n.IsRead {
			unread++
		}
		if unreadOnly && n.IsRead {
			continue
		}
		out = append(out, n)
	}
	return page(out, normalizeLimit(limit, 50), 0), unread, nil
}

func (t *memTx) MarkNotificationRead(_ context.Context, userID, notificationID string) error {
	if err := t.writable(); err != nil {
		return err
	}
	for i := range t.st.notifications {
		n := &t.st.notifications[i]
		if n.UserID == userID && n.NotificationID == notificationID {
			n.IsRead = true
			return nil
		}
	}
	return ErrNotFound
}

func (t *memTx) MarkAllNotificationsRead(_ context.Context, userID string) (int, error) {
	if err := t.writable(); err != nil {
		return 0, err
	}
	marked := 0
	for i := range t.st.notifications {
		n := &t.st.notifications[i]
		if n.UserID == userID && !n.IsRead {
			n.IsRead = true
			marked++
		}
	}
	return marked, nil
}

func page[T any](items []T, limit, offset int) []T {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(items) {
		return []T{}
	}
	items = items[offset:]
	if limit < len(items) {
		items = items[:limit]
	}
	return items
}

type aggregator struct {
	totals map[string]decimal.Decimal
	counts map[string]int
}

func newAggregator() *aggregator {
	return &aggregator{totals: make(map[string]decimal.Decimal), counts: make(map[string]int)}
}

func (a *aggregator) add(userID string, amount decimal.Decimal) {
	a.totals[userID] = a.totals[userID].Add(amount)
	a.counts[userID]++
}

func (a *aggregator) rank(limit int, name func(string) string) []domain.LeaderboardEntry {
	entries := make([]domain.LeaderboardEntry, 0, len(a.totals))
	for id, total := range a.totals {
		entries = append(entries, domain.LeaderboardEntry{UserID: id, Name: name(id), Total: total, Count: a.counts[id]})
	}
	sort.Slice(entries, func(i, j int) bool {
		if c := entries[i].Total.Cmp(entries[j].Total); c != 0 {
			return c > 0
		}
		return strings.Compare(entries[i].UserID, entries[j].UserID) < 0
	})
	entries = page(entries, limit, 0)
	for i := range entries {
		entries[i].Rank = i + 1
	}
	return entries
}
