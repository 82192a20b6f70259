package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"app/internal/model"
	"app/internal/repository"
)

// fakeCreditRepo is an in-memory repository.CreditRepository mirroring the
// conditional-update semantics of the Postgres implementation.
type fakeCreditRepo struct {
	mu       sync.Mutex
	accounts map[string]*model.CreditAccount
	txs      []model.CreditTransaction
	err      error
	auditErr error
}

func newFakeCreditRepo() *fakeCreditRepo {
	return &fakeCreditRepo{accounts: make(map[string]*model.CreditAccount)}
}

func (f *fakeCreditRepo) seed(accountID string, used, limit int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.accounts[accountID] = &model.CreditAccount{AccountID: accountID, Used: used, Limit: limit}
}

func (f *fakeCreditRepo) balance(accountID string) (used, limit int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a := f.accounts[accountID]
	return a.Used, a.Limit
}

func (f *fakeCreditRepo) record(accountID, action string, amount, before, after int, d repository.TransactionDetails) {
	f.txs = append(f.txs, model.CreditTransaction{
		ID:               fmt.Sprintf("tx-%d", len(f.txs)+1),
		AccountID:        accountID,
		Action:           action,
		Amount:           amount,
		BalanceBefore:    before,
		BalanceAfter:     after,
		Reason:           d.Reason,
		SourceIdentifier: d.SourceIdentifier,
		SubjectAddress:   d.SubjectAddress,
		CreatedAt:        time.Now(),
	})
}

func (f *fakeCreditRepo) GetAccount(_ context.Context, accountID string) (*model.CreditAccount, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	a, ok := f.accounts[accountID]
	if !ok {
		return nil, nil
	}
	copied := *a
	return &copied, nil
}

func (f *fakeCreditRepo) UpsertAccount(_ context.Context, accountID string, signupCredits int) (*model.CreditAccount, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	a, ok := f.accounts[accountID]
	if !ok {
		a = &model.CreditAccount{AccountID: accountID, Limit: signupCredits}
		f.accounts[accountID] = a
	}
	copied := *a
	return &copied, nil
}

func (f *fakeCreditRepo) Deduct(_ context.Context, accountID string, amount int, d repository.TransactionDetails) (*model.CreditAccount, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	a, ok := f.accounts[accountID]
	if !ok {
		return nil, repository.ErrAccountNotFound
	}
	if a.Limit-a.Used < amount {
		return nil, repository.ErrInsufficientCredits
	}
	before := a.Limit - a.Used
	a.Used += amount
	f.record(accountID, model.CreditActionDeduct, amount, before, a.Limit-a.Used, d)
	copied := *a
	return &copied, nil
}

func (f *fakeCreditRepo) Refund(_ context.Context, accountID string, amount int, d repository.TransactionDetails) (*model.CreditAccount, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	a, ok := f.accounts[accountID]
	if !ok {
		return nil, repository.ErrAccountNotFound
	}
	restored := amount
	if restored > a.Used {
		restored = a.Used
	}
	before := a.Limit - a.Used
	a.Used -= restored
	f.record(accountID, model.CreditActionRefund, restored, before, a.Limit-a.Used, d)
	copied := *a
	return &copied, nil
}

func (f *fakeCreditRepo) AddCredits(_ context.Context, accountID string, amount int, d repository.TransactionDetails) (*model.CreditAccount, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	a, ok := f.accounts[accountID]
	if !ok {
		return nil, repository.ErrAccountNotFound
	}
	before := a.Limit - a.Used
	a.Limit += amount
	f.record(accountID, model.CreditActionAdd, amount, before, a.Limit-a.Used, d)
	copied := *a
	return &copied, nil
}

func (f *fakeCreditRepo) InsertPreviewTransaction(_ context.Context, d repository.TransactionDetails) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.auditErr != nil {
		return f.auditErr
	}
	f.record("", model.CreditActionFreePreview, 0, 0, 0, d)
	return nil
}

func (f *fakeCreditRepo) ListTransactions(_ context.Context, accountID string, limit int) ([]model.CreditTransaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	var out []model.CreditTransaction
	for i := len(f.txs) - 1; i >= 0 && len(out) < limit; i-- {
		if f.txs[i].AccountID == accountID {
			out = append(out, f.txs[i])
		}
	}
	return out, nil
}

// fakePreviewRepo is an in-memory repository.PreviewRepository with the same
// check-then-insert semantics as the serializable Postgres transaction.
type fakePreviewRepo struct {
	mu      sync.Mutex
	records []model.FreePreviewRecord
	err     error
}

func (f *fakePreviewRepo) CountForNetwork(_ context.Context, networkID string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return 0, f.err
	}
	count := 0
	for _, r := range f.records {
		if r.NetworkID == networkID {
			count++
		}
	}
	return count, nil
}

func (f *fakePreviewRepo) CheckAndRecord(_ context.Context, rec *model.FreePreviewRecord, dayStart, dayEnd time.Time, dailyCap int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	day := 0
	for _, r := range f.records {
		if r.NetworkID == rec.NetworkID {
			return repository.ErrAlreadyUsed
		}
		if !r.UsedAt.Before(dayStart) && r.UsedAt.Before(dayEnd) {
			day++
		}
	}
	if day >= dailyCap {
		return repository.ErrDailyCapReached
	}
	stored := *rec
	if stored.UsedAt.IsZero() {
		stored.UsedAt = dayStart.Add(time.Hour)
	}
	f.records = append(f.records, stored)
	rec.UsedAt = stored.UsedAt
	return nil
}

func (f *fakePreviewRepo) CountInTimeRange(_ context.Context, start, end time.Time) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return 0, f.err
	}
	count := 0
	for _, r := range f.records {
		if !r.UsedAt.Before(start) && r.UsedAt.Before(end) {
			count++
		}
	}
	return count, nil
}

// fakePropertyRepo is an in-memory repository.PropertyCacheRepository. Like
// the Postgres implementation, Get returns rows whether expired or not.
type fakePropertyRepo struct {
	mu      sync.Mutex
	entries map[string]*model.CachedProperty
	getErr  error
	putErr  error
}

func newFakePropertyRepo() *fakePropertyRepo {
	return &fakePropertyRepo{entries: make(map[string]*model.CachedProperty)}
}

func (f *fakePropertyRepo) Get(_ context.Context, addressKey string) (*model.CachedProperty, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	e, ok := f.entries[addressKey]
	if !ok {
		return nil, nil
	}
	copied := *e
	return &copied, nil
}

func (f *fakePropertyRepo) Put(_ context.Context, entry *model.CachedProperty) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.putErr != nil {
		return f.putErr
	}
	copied := *entry
	f.entries[entry.AddressKey] = &copied
	return nil
}

func (f *fakePropertyRepo) DeleteExpired(_ context.Context) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var removed int64
	now := time.Now()
	for key, e := range f.entries {
		if !now.Before(e.ExpiresAt) {
			delete(f.entries, key)
			removed++
		}
	}
	return removed, nil
}
