package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/skybox/internal/common"
	"github.com/dmitrijs2005/skybox/internal/dbx"
	"github.com/dmitrijs2005/skybox/internal/logging"
	"github.com/dmitrijs2005/skybox/internal/server/config"
	"github.com/dmitrijs2005/skybox/internal/server/models"
	"github.com/dmitrijs2005/skybox/internal/server/payments"
	"github.com/dmitrijs2005/skybox/internal/server/repositories/repomanager"
)

// PaymentService sells plan upgrades through the payment gateway.
type PaymentService struct {
	tx             dbx.Transactor
	repomanager    repomanager.RepositoryManager
	gateway        payments.Gateway
	logger         logging.Logger
	currency       string
	defaultCredits int64
}

func NewPaymentService(tx dbx.Transactor, m repomanager.RepositoryManager, gateway payments.Gateway, cfg *config.Config, logger logging.Logger) *PaymentService {
	return &PaymentService{
		tx:             tx,
		repomanager:    m,
		gateway:        gateway,
		logger:         logger.With("module", "payments"),
		currency:       cfg.Currency,
		defaultCredits: cfg.DefaultCredits,
	}
}

// CreateOrder opens a gateway order for the tier's price and records it.
func (s *PaymentService) CreateOrder(ctx context.Context, ownerID string, tier models.PlanTier) (*models.Order, error) {
	if ownerID == "" {
		return nil, common.ErrorUnauthorized
	}
	plan, err := models.LookupPlan(tier)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrorInvalidArgument, err)
	}
	if !plan.Purchasable() {
		return nil, fmt.Errorf("%w: %w", common.ErrorInvalidArgument, common.ErrNotPurchasable)
	}
	if err := s.checkUpgrade(ctx, ownerID, plan); err != nil {
		return nil, err
	}

	suffix, err := common.MakeRandHexString(8)
	if err != nil {
		return nil, err
	}
	receipt := "rcpt_" + suffix

	orderID, err := s.gateway.CreateOrder(ctx, plan.PriceMinor, s.currency, receipt)
	if err != nil {
		s.logger.Error(ctx, "gateway order failed", "owner_id", ownerID, "tier", tier, "error", err)
		return nil, err
	}

	order := &models.Order{
		ID:          orderID,
		OwnerID:     ownerID,
		PlanTier:    tier,
		AmountMinor: plan.PriceMinor,
		Currency:    s.currency,
		Receipt:     receipt,
		Status:      models.OrderCreated,
		CreatedAt:   nowFunc(),
	}
	if err := s.repomanager.Orders(s.tx.DB()).Create(ctx, order); err != nil {
		return nil, err
	}

	s.logger.Info(ctx, "order created", "order_id", orderID, "owner_id", ownerID, "tier", tier)
	return order, nil
}

// checkUpgrade rejects plans whose limit does not exceed the owner's current one.
// Owners without a ledger are on the free plan.
func (s *PaymentService) checkUpgrade(ctx context.Context, ownerID string, plan models.Plan) error {
	current, err := models.LookupPlan(models.PlanFree)
	if err != nil {
		return err
	}
	limit := current.StorageLimitBytes

	l, err := s.repomanager.Ledgers(s.tx.DB()).Get(ctx, ownerID)
	switch {
	case err == nil:
		limit = l.StorageLimitBytes
	case !errors.Is(err, common.ErrorNotFound):
		return err
	}

	if plan.StorageLimitBytes <= limit {
		return fmt.Errorf("%w: %w: %s", common.ErrorInvalidArgument, common.ErrNotAnUpgrade, plan.Tier)
	}
	return nil
}

// VerifyPayment checks the checkout signature and, when valid, upgrades the
// plan and grants the plan's credits. The precise failure is only logged.
func (s *PaymentService) VerifyPayment(ctx context.Context, ownerID, orderID, paymentID, signature string) bool {
	ok, err := s.verifyPayment(ctx, ownerID, orderID, paymentID, signature)
	paymentsTotal.WithLabelValues(outcome(err)).Inc()
	if err != nil {
		s.logger.Warn(ctx, "payment verification failed", "owner_id", ownerID, "order_id", orderID, "error", err)
	}
	return ok
}

func (s *PaymentService) verifyPayment(ctx context.Context, ownerID, orderID, paymentID, signature string) (bool, error) {
	proof, err := s.gateway.Verify(orderID, paymentID, signature)
	if err != nil {
		return false, err
	}
	order, err := s.repomanager.Orders(s.tx.DB()).GetByID(ctx, proof.OrderID())
	if err != nil {
		return false, err
	}
	l, err := s.applyPayment(ctx, ownerID, order.PlanTier, proof, true)
	if err != nil {
		return false, err
	}
	s.logger.Info(ctx, "plan upgraded", "owner_id", ownerID, "tier", l.PlanTier, "credits", l.CreditsRemaining)
	return true, nil
}

// ApplyVerifiedPayment sets the plan tier and its storage limit. Used bytes
// and credits are left unchanged. The proof's order is consumed so it cannot
// be applied twice.
func (s *PaymentService) ApplyVerifiedPayment(ctx context.Context, ownerID string, tier models.PlanTier, proof payments.Proof) (*models.CreditLedger, error) {
	return s.applyPayment(ctx, ownerID, tier, proof, false)
}

func (s *PaymentService) applyPayment(ctx context.Context, ownerID string, tier models.PlanTier, proof payments.Proof, grant bool) (*models.CreditLedger, error) {
	if !proof.Valid() {
		return nil, common.ErrInvalidSignature
	}
	plan, err := models.LookupPlan(tier)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrorInvalidArgument, err)
	}

	free, err := models.LookupPlan(models.PlanFree)
	if err != nil {
		return nil, err
	}

	var result *models.CreditLedger
	err = s.tx.WithTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		orders := s.repomanager.Orders(tx)
		order, err := orders.GetByID(ctx, proof.OrderID())
		if err != nil {
			return err
		}
		if order.OwnerID != ownerID {
			return common.ErrorForbidden
		}
		if order.PlanTier != tier {
			return fmt.Errorf("%w: order is for plan %s", common.ErrorInvalidArgument, order.PlanTier)
		}
		if _, err := orders.MarkPaid(ctx, order.ID, proof.PaymentID(), nowFunc()); err != nil {
			return err
		}

		ledgers := s.repomanager.Ledgers(tx)
		l, err := ledgers.GetOrCreate(ctx, ownerID, s.defaultCredits, free.StorageLimitBytes)
		if err != nil {
			return err
		}
		// an older order for a smaller plan never lowers the limit
		if plan.StorageLimitBytes >= l.StorageLimitBytes {
			if l, err = ledgers.SetPlan(ctx, ownerID, plan.Tier, plan.StorageLimitBytes); err != nil {
				return err
			}
		} else {
			s.logger.Warn(ctx, "paid plan is below current plan, keeping current", "owner_id", ownerID, "paid", plan.Tier, "current", l.PlanTier)
		}
		if grant && plan.Credits > 0 {
			if l, err = ledgers.GrantCredits(ctx, ownerID, plan.Credits); err != nil {
				return err
			}
		}
		result = l
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}
