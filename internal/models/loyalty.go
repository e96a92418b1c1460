package models

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// LoyaltyTxnType is the kind of ledger entry
type LoyaltyTxnType string

const (
	LoyaltyTxnEarn   LoyaltyTxnType = "earn"
	LoyaltyTxnRedeem LoyaltyTxnType = "redeem"
	LoyaltyTxnAdjust LoyaltyTxnType = "adjust"
	LoyaltyTxnExpire LoyaltyTxnType = "expire"
)

// Tier is a loyalty tier name
type Tier string

// TierThreshold promotes an account once lifetime points reach MinimumPoints
type TierThreshold struct {
	Tier          Tier  `json:"tier"`
	MinimumPoints int64 `json:"minimum_points"`
}

// TierSchedule is ordered by MinimumPoints ascending; the first entry is the base tier
type TierSchedule []TierThreshold

// ParseTierSchedule parses "bronze:0,silver:1000,gold:5000"
func ParseTierSchedule(raw string) (TierSchedule, error) {
	var schedule TierSchedule
	seen := make(map[Tier]bool)

	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		pieces := strings.SplitN(part, ":", 2)
		if len(pieces) != 2 {
			return nil, fmt.Errorf("invalid tier entry %q, expected name:points", part)
		}
		name := Tier(strings.ToLower(strings.TrimSpace(pieces[0])))
		points, err := strconv.ParseInt(strings.TrimSpace(pieces[1]), 10, 64)
		if err != nil || points < 0 {
			return nil, fmt.Errorf("invalid tier threshold %q", part)
		}
		if name == "" || seen[name] {
			return nil, fmt.Errorf("duplicate or empty tier name in %q", part)
		}
		seen[name] = true
		schedule = append(schedule, TierThreshold{Tier: name, MinimumPoints: points})
	}

	if len(schedule) == 0 {
		return nil, fmt.Errorf("tier schedule is empty")
	}

	sort.SliceStable(schedule, func(i, j int) bool {
		return schedule[i].MinimumPoints < schedule[j].MinimumPoints
	})
	if schedule[0].MinimumPoints != 0 {
		return nil, fmt.Errorf("base tier %s must start at 0 points", schedule[0].Tier)
	}

	return schedule, nil
}

// Base returns the tier every new account starts in
func (s TierSchedule) Base() Tier {
	if len(s) == 0 {
		return ""
	}
	return s[0].Tier
}

// TierFor returns the highest tier whose threshold the lifetime points reach
func (s TierSchedule) TierFor(lifetime int64) Tier {
	tier := s.Base()
	for _, t := range s {
		if lifetime >= t.MinimumPoints {
			tier = t.Tier
		}
	}
	return tier
}

// Rank returns the position of the tier, -1 when unknown
func (s TierSchedule) Rank(tier Tier) int {
	for i, t := range s {
		if t.Tier == tier {
			return i
		}
	}
	return -1
}

// Promote never moves an account down
func (s TierSchedule) Promote(current Tier, lifetime int64) Tier {
	earned := s.TierFor(lifetime)
	if s.Rank(earned) > s.Rank(current) {
		return earned
	}
	return current
}

// LoyaltyAccount is a customer's points balance, changed only through ledger entries
type LoyaltyAccount struct {
	ID             uuid.UUID `json:"id" db:"id"`
	CustomerID     uuid.UUID `json:"customer_id" db:"customer_id"`
	TotalPoints    int64     `json:"total_points" db:"total_points"`
	LifetimePoints int64     `json:"lifetime_points" db:"lifetime_points"`
	Tier           Tier      `json:"tier" db:"tier"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time `json:"updated_at" db:"updated_at"`
}

// LoyaltyTransaction is an append-only ledger entry; Points is signed
type LoyaltyTransaction struct {
	ID               uuid.UUID      `json:"id" db:"id"`
	AccountID        uuid.UUID      `json:"account_id" db:"account_id"`
	Type             LoyaltyTxnType `json:"type" db:"type"`
	Points           int64          `json:"points" db:"points"`
	Description      string         `json:"description" db:"description"`
	BookingReference *string        `json:"booking_reference,omitempty" db:"booking_reference"`
	CreatedAt        time.Time      `json:"created_at" db:"created_at"`
}

// Apply folds a ledger entry into the account. Earn and redeem/expire have fixed
// signs; adjust may go either way. Total never goes negative, lifetime only grows
// on earn, tier only moves up.
func (a *LoyaltyAccount) Apply(txn LoyaltyTransaction, tiers TierSchedule) error {
	switch txn.Type {
	case LoyaltyTxnEarn:
		if txn.Points <= 0 {
			return fmt.Errorf("earn entry must be positive, got %d", txn.Points)
		}
		a.TotalPoints += txn.Points
		a.LifetimePoints += txn.Points
		a.Tier = tiers.Promote(a.Tier, a.LifetimePoints)
		return nil

	case LoyaltyTxnRedeem, LoyaltyTxnExpire:
		if txn.Points >= 0 {
			return &NonPositivePointsError{Requested: -txn.Points, Available: a.TotalPoints}
		}
	case LoyaltyTxnAdjust:
		if txn.Points == 0 {
			return fmt.Errorf("adjust entry cannot be zero")
		}
	default:
		return fmt.Errorf("unknown loyalty transaction type %q", txn.Type)
	}

	if a.TotalPoints+txn.Points < 0 {
		return &InsufficientPointsError{Requested: -txn.Points, Available: a.TotalPoints}
	}
	a.TotalPoints += txn.Points
	return nil
}

// PointsDebit removes points with a single conditional decrement
type PointsDebit struct {
	TransactionID    uuid.UUID
	CustomerID       uuid.UUID
	Points           int64
	Type             LoyaltyTxnType
	Description      string
	BookingReference *string
}

// PointsCredit adds points; earn entries also raise lifetime points
type PointsCredit struct {
	TransactionID    uuid.UUID
	CustomerID       uuid.UUID
	Points           int64
	Type             LoyaltyTxnType
	Description      string
	BookingReference *string
}

// RedeemPointsRequest is the body of a redemption call
type RedeemPointsRequest struct {
	Points           int64   `json:"points"`
	BookingReference *string `json:"booking_reference,omitempty" validate:"omitempty,max=40"`
}

// AdjustPointsRequest is an operator correction
type AdjustPointsRequest struct {
	Points      int64  `json:"points" validate:"required"`
	Description string `json:"description" validate:"required,max=255"`
}

// RedemptionResult reports the discount granted by a redemption
type RedemptionResult struct {
	TransactionID   uuid.UUID `json:"transaction_id"`
	PointsRedeemed  int64     `json:"points_redeemed"`
	DiscountAmount  float64   `json:"discount_amount"`
	Currency        string    `json:"currency"`
	RemainingPoints int64     `json:"remaining_points"`
	Tier            Tier      `json:"tier"`
}
