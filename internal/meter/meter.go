// Package meter burns down a user's prepaid minute balance while a session is
// live and signals when the balance reaches zero.
package meter

import (
	"context"
	"fmt"
	"time"
)

// BalanceStore persists minute balances. Implemented by the pgx store.
// Concurrent sessions for the same user race on writes; last write wins.
type BalanceStore interface {
	GetMinutesBalance(ctx context.Context, userID string) (int, error)
	SetMinutesBalance(ctx context.Context, userID string, minutes int) error
}

// Meter decrements one minute per interval for a single session.
type Meter struct {
	store    BalanceStore
	userID   string
	interval time.Duration
}

// New creates a meter for the given user. Interval defaults to one minute.
func New(store BalanceStore, userID string, interval time.Duration) *Meter {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Meter{store: store, userID: userID, interval: interval}
}

// Run ticks until the balance is exhausted or ctx is cancelled. Each tick
// decrements the persisted balance by one and reports the new value through
// onTick; when the balance hits zero, onExhausted runs once and Run returns.
// Cancellation is re-checked after every timer wake so a closed session never
// loses an extra minute.
func (m *Meter) Run(ctx context.Context, onTick func(balance int), onExhausted func()) error {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		// The tick may have raced with cancellation.
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		balance, err := m.store.GetMinutesBalance(ctx, m.userID)
		if err != nil {
			return fmt.Errorf("get balance: %w", err)
		}

		balance--
		if balance < 0 {
			balance = 0
		}

		if err := m.store.SetMinutesBalance(ctx, m.userID, balance); err != nil {
			return fmt.Errorf("set balance: %w", err)
		}

		if onTick != nil {
			onTick(balance)
		}

		if balance <= 0 {
			if onExhausted != nil {
				onExhausted()
			}
			return nil
		}
	}
}
