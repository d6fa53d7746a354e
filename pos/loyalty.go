/*
loyalty.go - Loyalty points and membership tiers

PURPOSE:
  Points are earned on spend and redeemed as currency. Every change to a
  balance is mirrored by an append-only LoyaltyEntry, so a balance can
  always be explained by its history.

RULES:
  - Accrue: +floor(amount) points, totalSpent += amount, tier recomputed,
    lastVisit = now. The only path that advances a tier.
  - Redeem: fails with InsufficientPoints when balance < points.
  - Grant:  manual points, tier untouched (it depends on spend only).

IDEMPOTENCY:
  Each entry carries an idempotency key. A repeated key fails with
  ErrDuplicateIdempotencyKey, which rolls the unit of work back. Sales use
  EarnKey/RedeemKey so the same sale can never be applied twice.

SEE ALSO:
  - store.go: LoyaltyEntry type
  - engine.go: Ordering of redeem and accrue within a sale
*/
package pos

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// =============================================================================
// TIERS
// =============================================================================

// Thresholds are the minimum lifetime spend for each tier above bronze.
type Thresholds struct {
	Silver   decimal.Decimal
	Gold     decimal.Decimal
	Platinum decimal.Decimal
}

func DefaultThresholds() Thresholds {
	return Thresholds{
		Silver:   decimal.NewFromInt(1000),
		Gold:     decimal.NewFromInt(5000),
		Platinum: decimal.NewFromInt(10000),
	}
}

// TierFor maps lifetime spend to a tier. Pure and idempotent.
func (t Thresholds) TierFor(totalSpent decimal.Decimal) Tier {
	switch {
	case totalSpent.GreaterThanOrEqual(t.Platinum):
		return TierPlatinum
	case totalSpent.GreaterThanOrEqual(t.Gold):
		return TierGold
	case totalSpent.GreaterThanOrEqual(t.Silver):
		return TierSilver
	}
	return TierBronze
}

// Validate requires strictly ascending, positive thresholds.
func (t Thresholds) Validate() error {
	if !t.Silver.IsPositive() {
		return invalid("loyalty.silver", "must be > 0")
	}
	if !t.Gold.GreaterThan(t.Silver) || !t.Platinum.GreaterThan(t.Gold) {
		return invalid("loyalty", "thresholds must be ascending: silver < gold < platinum")
	}
	return nil
}

// =============================================================================
// LOYALTY - Balance mutations
// =============================================================================

// Ref ties a loyalty entry to whatever caused it.
type Ref struct {
	ID             string
	IdempotencyKey string
	Reason         string
}

func saleRef(id TransactionID, key string) Ref {
	return Ref{ID: string(id), IdempotencyKey: key, Reason: "sale"}
}

type Loyalty struct {
	Thresholds Thresholds
	Clock      Clock
}

// Redeem removes points from the customer's balance.
func (l Loyalty) Redeem(ctx context.Context, s Store, id CustomerID, points int64, ref Ref) (*Customer, error) {
	if points <= 0 {
		return nil, invalid("points", "must be > 0")
	}
	c, err := lockActiveCustomer(ctx, s, id)
	if err != nil {
		return nil, err
	}
	if c.LoyaltyPoints < points {
		return nil, &InsufficientPointsError{CustomerID: id, Available: c.LoyaltyPoints, Requested: points}
	}

	c.LoyaltyPoints -= points
	if err := l.commit(ctx, s, c, LoyaltyRedeem, -points, ref); err != nil {
		return nil, err
	}
	return c, nil
}

// Accrue records spend: floor(amount) points, total spent, tier and last visit.
// Returns the points earned.
func (l Loyalty) Accrue(ctx context.Context, s Store, id CustomerID, amount decimal.Decimal, ref Ref) (int64, error) {
	if amount.IsNegative() {
		return 0, invalid("amount", "must be >= 0")
	}
	c, err := lockActiveCustomer(ctx, s, id)
	if err != nil {
		return 0, err
	}

	earned := amount.Floor().IntPart()
	now := l.now()
	c.LoyaltyPoints += earned
	c.TotalSpent = RoundMoney(c.TotalSpent.Add(amount))
	c.LastVisit = &now
	if err := l.commit(ctx, s, c, LoyaltyEarn, earned, ref); err != nil {
		return 0, err
	}
	return earned, nil
}

// Grant adds points outside of a sale.
func (l Loyalty) Grant(ctx context.Context, s Store, id CustomerID, points int64, ref Ref) (*Customer, error) {
	if points <= 0 {
		return nil, invalid("points", "must be > 0")
	}
	c, err := lockActiveCustomer(ctx, s, id)
	if err != nil {
		return nil, err
	}

	c.LoyaltyPoints += points
	if err := l.commit(ctx, s, c, LoyaltyGrant, points, ref); err != nil {
		return nil, err
	}
	return c, nil
}

// commit recomputes the tier, saves the customer and appends the entry.
func (l Loyalty) commit(ctx context.Context, s Store, c *Customer, kind LoyaltyKind, delta int64, ref Ref) error {
	now := l.now()
	c.Tier = l.Thresholds.TierFor(c.TotalSpent)
	c.UpdatedAt = now
	if err := s.SaveLoyalty(ctx, c); err != nil {
		return fmt.Errorf("save loyalty: %w", err)
	}

	key := ref.IdempotencyKey
	if key == "" {
		key = string(kind) + ":" + uuid.NewString()
	}
	return s.AppendLoyaltyEntry(ctx, LoyaltyEntry{
		ID:             uuid.NewString(),
		CustomerID:     c.ID,
		Kind:           kind,
		Points:         delta,
		Balance:        c.LoyaltyPoints,
		ReferenceID:    ref.ID,
		Reason:         ref.Reason,
		IdempotencyKey: key,
		CreatedAt:      now,
	})
}

func (l Loyalty) now() time.Time {
	if l.Clock == nil {
		return SystemClock{}.Now()
	}
	return l.Clock.Now()
}

func lockActiveCustomer(ctx context.Context, s Store, id CustomerID) (*Customer, error) {
	c, err := s.LockCustomer(ctx, id)
	if err != nil {
		return nil, err
	}
	if !c.Active {
		return nil, fmt.Errorf("%w: %s", ErrCustomerInactive, id)
	}
	return c, nil
}
