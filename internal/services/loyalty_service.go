package services

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/Voyagetechsolutions/kjkhandala-sub001/internal/models"
)

// LoyaltyStore is the storage of loyalty accounts and their ledger. Every
// balance change writes its ledger entry in the same statement or transaction.
type LoyaltyStore interface {
	// GetAccount returns NotFoundError when the customer has no account yet
	GetAccount(ctx context.Context, customerID uuid.UUID) (*models.LoyaltyAccount, error)
	// Debit removes points only if the balance covers them, else InsufficientPointsError
	Debit(ctx context.Context, debit models.PointsDebit) (*models.LoyaltyAccount, error)
	// Credit adds points, creating the account on first earn. The bool is false
	// when an earn for the same booking reference was already recorded.
	Credit(ctx context.Context, credit models.PointsCredit, tiers models.TierSchedule) (*models.LoyaltyAccount, bool, error)
	ListTransactions(ctx context.Context, customerID uuid.UUID, limit, offset int) ([]models.LoyaltyTransaction, error)
}

// LoyaltyConfig holds points economics
type LoyaltyConfig struct {
	RedemptionRate float64 // currency per point redeemed
	EarnRate       float64 // points per currency unit paid
	Currency       string
	Tiers          models.TierSchedule
}

// LoyaltyService handles points earning and all-or-nothing redemption
type LoyaltyService struct {
	store  LoyaltyStore
	config LoyaltyConfig
	logger *logrus.Logger
}

// NewLoyaltyService creates a new loyalty service
func NewLoyaltyService(store LoyaltyStore, config LoyaltyConfig, logger *logrus.Logger) *LoyaltyService {
	return &LoyaltyService{
		store:  store,
		config: config,
		logger: logger,
	}
}

// GetAccount returns the customer's balance; customers who never earned see an empty account
func (s *LoyaltyService) GetAccount(ctx context.Context, customerID uuid.UUID) (*models.LoyaltyAccount, error) {
	account, err := s.store.GetAccount(ctx, customerID)
	if err != nil {
		var nf *models.NotFoundError
		if errors.As(err, &nf) {
			return &models.LoyaltyAccount{CustomerID: customerID, Tier: s.config.Tiers.Base()}, nil
		}
		return nil, err
	}
	return account, nil
}

// balance returns the current points, zero for customers without an account
func (s *LoyaltyService) balance(ctx context.Context, customerID uuid.UUID) (int64, error) {
	account, err := s.GetAccount(ctx, customerID)
	if err != nil {
		return 0, err
	}
	return account.TotalPoints, nil
}

// Redeem converts points into a discount. Either the full amount is deducted
// and recorded or nothing changes.
func (s *LoyaltyService) Redeem(ctx context.Context, customerID uuid.UUID, req *models.RedeemPointsRequest) (*models.RedemptionResult, error) {
	if err := models.ValidateStruct(req); err != nil {
		return nil, err
	}

	if req.Points <= 0 {
		available, err := s.balance(ctx, customerID)
		if err != nil {
			return nil, err
		}
		return nil, &models.NonPositivePointsError{Requested: req.Points, Available: available}
	}

	description := fmt.Sprintf("Redeemed %d points", req.Points)
	if req.BookingReference != nil {
		description = fmt.Sprintf("Redeemed %d points on booking %s", req.Points, *req.BookingReference)
	}

	debit := models.PointsDebit{
		TransactionID:    uuid.New(),
		CustomerID:       customerID,
		Points:           req.Points,
		Type:             models.LoyaltyTxnRedeem,
		Description:      description,
		BookingReference: req.BookingReference,
	}

	account, err := s.store.Debit(ctx, debit)
	if err != nil {
		s.logger.WithFields(logrus.Fields{
			"customer_id": customerID,
			"points":      req.Points,
		}).WithError(err).Info("Points redemption rejected")
		return nil, err
	}

	result := &models.RedemptionResult{
		TransactionID:   debit.TransactionID,
		PointsRedeemed:  req.Points,
		DiscountAmount:  roundToCents(float64(req.Points) * s.config.RedemptionRate),
		Currency:        s.config.Currency,
		RemainingPoints: account.TotalPoints,
		Tier:            account.Tier,
	}

	s.logger.WithFields(logrus.Fields{
		"customer_id":      customerID,
		"points":           req.Points,
		"discount":         result.DiscountAmount,
		"remaining_points": result.RemainingPoints,
	}).Info("Points redeemed")

	return result, nil
}

// PointsFor converts a paid amount into earned points, rounding down
func (s *LoyaltyService) PointsFor(amount float64) int64 {
	if amount <= 0 || s.config.EarnRate <= 0 {
		return 0
	}
	return int64(math.Floor(amount*s.config.EarnRate + 1e-9))
}

// EarnForBooking credits points for a paid itinerary. Repeated calls for the
// same reference credit once.
func (s *LoyaltyService) EarnForBooking(ctx context.Context, customerID uuid.UUID, reference string, amount float64) (*models.LoyaltyAccount, error) {
	points := s.PointsFor(amount)
	if points <= 0 {
		return s.GetAccount(ctx, customerID)
	}

	ref := reference
	account, applied, err := s.store.Credit(ctx, models.PointsCredit{
		TransactionID:    uuid.New(),
		CustomerID:       customerID,
		Points:           points,
		Type:             models.LoyaltyTxnEarn,
		Description:      fmt.Sprintf("Earned on booking %s", reference),
		BookingReference: &ref,
	}, s.config.Tiers)
	if err != nil {
		return nil, fmt.Errorf("failed to credit points: %w", err)
	}

	if applied {
		s.logger.WithFields(logrus.Fields{
			"customer_id":       customerID,
			"booking_reference": reference,
			"points":            points,
			"tier":              account.Tier,
		}).Info("Loyalty points earned")
	}

	return account, nil
}

// Adjust applies an operator correction; negative deltas cannot overdraw the account
func (s *LoyaltyService) Adjust(ctx context.Context, customerID uuid.UUID, req *models.AdjustPointsRequest) (*models.LoyaltyAccount, error) {
	if err := models.ValidateStruct(req); err != nil {
		return nil, err
	}

	if req.Points > 0 {
		account, _, err := s.store.Credit(ctx, models.PointsCredit{
			TransactionID: uuid.New(),
			CustomerID:    customerID,
			Points:        req.Points,
			Type:          models.LoyaltyTxnAdjust,
			Description:   req.Description,
		}, s.config.Tiers)
		return account, err
	}

	return s.store.Debit(ctx, models.PointsDebit{
		TransactionID: uuid.New(),
		CustomerID:    customerID,
		Points:        -req.Points,
		Type:          models.LoyaltyTxnAdjust,
		Description:   req.Description,
	})
}

// ExpirePoints removes points that lapsed
func (s *LoyaltyService) ExpirePoints(ctx context.Context, customerID uuid.UUID, points int64) (*models.LoyaltyAccount, error) {
	if points <= 0 {
		available, err := s.balance(ctx, customerID)
		if err != nil {
			return nil, err
		}
		return nil, &models.NonPositivePointsError{Requested: points, Available: available}
	}

	return s.store.Debit(ctx, models.PointsDebit{
		TransactionID: uuid.New(),
		CustomerID:    customerID,
		Points:        points,
		Type:          models.LoyaltyTxnExpire,
		Description:   fmt.Sprintf("%d points expired", points),
	})
}

// ListTransactions returns the ledger newest first
func (s *LoyaltyService) ListTransactions(ctx context.Context, customerID uuid.UUID, limit, offset int) ([]models.LoyaltyTransaction, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return s.store.ListTransactions(ctx, customerID, limit, offset)
}
