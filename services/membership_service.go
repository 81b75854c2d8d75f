package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/yeremiapane/library-seat-app/hub"
	"github.com/yeremiapane/library-seat-app/models"
	"github.com/yeremiapane/library-seat-app/utils"
)

type PurchaseResult struct {
	Membership models.Membership `json:"membership"`
	Payment    models.Payment    `json:"payment"`
	Checkout   *CheckoutSession  `json:"checkout,omitempty"`
}

type MembershipService struct {
	db      *gorm.DB
	gateway PaymentGateway
	events  Publisher
	hub     *hub.Hub
	Now     func() time.Time
}

func NewMembershipService(db *gorm.DB, gateway PaymentGateway, events Publisher, h *hub.Hub) *MembershipService {
	if events == nil {
		events = NoopPublisher{}
	}
	return &MembershipService{db: db, gateway: gateway, events: events, hub: h, Now: time.Now}
}

// Purchase creates a PENDING payment and a PENDING membership for a plan.
// ONLINE purchases also open a gateway checkout; a gateway failure rolls
// both records back.
func (s *MembershipService) Purchase(ctx context.Context, userID, planID uint, method string) (*PurchaseResult, error) {
	switch method {
	case models.PaymentMethodCash, models.PaymentMethodOnline:
	default:
		return nil, fmt.Errorf("%w: payment_method must be CASH or ONLINE", ErrInvalidInput)
	}
	if method == models.PaymentMethodOnline && s.gateway == nil {
		return nil, ErrGatewayUnavailable
	}

	var plan models.MembershipPlan
	if err := s.db.WithContext(ctx).Preload("Library").First(&plan, planID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPlanNotFound
		}
		return nil, err
	}
	if !plan.IsActive || plan.Library == nil || !plan.Library.IsActive {
		return nil, ErrPlanInactive
	}

	var user models.User
	if err := s.db.WithContext(ctx).First(&user, userID).Error; err != nil {
		return nil, err
	}

	result := &PurchaseResult{}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		payment := models.Payment{
			UserID:    userID,
			LibraryID: plan.LibraryID,
			Amount:    plan.Price,
			Method:    method,
			Status:    models.PaymentPending,
			Reference: "MEM-" + uuid.NewString(),
		}
		if err := tx.Create(&payment).Error; err != nil {
			return err
		}

		membership := models.Membership{
			UserID:    userID,
			LibraryID: plan.LibraryID,
			PlanID:    plan.ID,
			Status:    models.MembershipPending,
			PaymentID: &payment.ID,
		}
		if err := tx.Create(&membership).Error; err != nil {
			return err
		}

		payment.MembershipID = &membership.ID
		updates := map[string]interface{}{"membership_id": membership.ID}

		if method == models.PaymentMethodOnline {
			checkout, err := s.gateway.CreateCheckout(ctx, &payment, &user, &plan)
			if err != nil {
				return fmt.Errorf("create checkout: %w", err)
			}
			payment.GatewayToken = checkout.Token
			payment.RedirectURL = checkout.RedirectURL
			updates["gateway_token"] = checkout.Token
			updates["redirect_url"] = checkout.RedirectURL
			result.Checkout = checkout
		}
		if err := tx.Model(&payment).Updates(updates).Error; err != nil {
			return err
		}

		membership.Plan = &plan
		result.Membership = membership
		result.Payment = payment
		return nil
	})
	if err != nil {
		utils.ErrorLogger.Printf("Membership purchase failed for user %d plan %d: %v", userID, planID, err)
		return nil, err
	}

	utils.InfoLogger.Printf("Membership %d pending for user %d (payment %s, %s)", result.Membership.ID, userID, result.Payment.Reference, method)
	s.hub.BroadcastDashboardUpdate(plan.LibraryID)
	return result, nil
}

// VerifyPayment is the library admin confirmation of a cash payment.
func (s *MembershipService) VerifyPayment(ctx context.Context, libraryID, paymentID, adminID uint) (*models.Payment, error) {
	var payment models.Payment
	if err := s.db.WithContext(ctx).Where("id = ? AND library_id = ?", paymentID, libraryID).First(&payment).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPaymentNotFound
		}
		return nil, err
	}
	return s.ActivatePayment(ctx, payment.ID, &adminID)
}

// ActivatePayment completes a PENDING payment and activates its membership.
// The membership starts today, or the day after the user's latest ACTIVE
// membership at the same library ends.
func (s *MembershipService) ActivatePayment(ctx context.Context, paymentID uint, verifiedBy *uint) (*models.Payment, error) {
	var payment models.Payment
	var membership models.Membership

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		q := tx
		if tx.Dialector.Name() != "sqlite" {
			q = tx.Clauses(clause.Locking{Strength: "UPDATE"})
		}
		if err := q.First(&payment, paymentID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrPaymentNotFound
			}
			return err
		}
		if payment.Status != models.PaymentPending {
			return ErrPaymentFinal
		}
		if payment.MembershipID == nil {
			return ErrMembershipNotFound
		}
		if err := tx.Preload("Plan").First(&membership, *payment.MembershipID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrMembershipNotFound
			}
			return err
		}
		if membership.Plan == nil {
			return ErrPlanNotFound
		}

		now := s.Now()
		start := utils.FormatDate(now)

		var latest models.Membership
		err := tx.Where("user_id = ? AND library_id = ? AND status = ? AND id <> ?",
			membership.UserID, membership.LibraryID, models.MembershipActive, membership.ID).
			Where("end_date >= ?", start).
			Order("end_date DESC").
			First(&latest).Error
		if err == nil {
			next, err := utils.AddDays(latest.EndDate, 1)
			if err != nil {
				return err
			}
			start = next
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		end, err := utils.AddDays(start, membership.Plan.DurationDays-1)
		if err != nil {
			return err
		}

		membership.StartDate = start
		membership.EndDate = end
		membership.Status = models.MembershipActive
		if err := tx.Model(&membership).Updates(map[string]interface{}{
			"start_date": start,
			"end_date":   end,
			"status":     models.MembershipActive,
		}).Error; err != nil {
			return err
		}

		payment.Status = models.PaymentCompleted
		payment.PaidAt = &now
		payment.VerifiedBy = verifiedBy
		return tx.Model(&payment).Updates(map[string]interface{}{
			"status":      models.PaymentCompleted,
			"paid_at":     now,
			"verified_by": verifiedBy,
		}).Error
	})
	if err != nil {
		return nil, err
	}

	payment.Membership = &membership
	utils.InfoLogger.Printf("Payment %s completed, membership %d active %s..%s", payment.Reference, membership.ID, membership.StartDate, membership.EndDate)

	Notify(ctx, s.db, membership.UserID, "Membership activated",
		fmt.Sprintf("Your %s membership is active from %s to %s.", membership.Plan.Name, membership.StartDate, membership.EndDate),
		models.NotifMembership)
	publishEvent(ctx, s.events, EventMembershipActivated, membership)
	s.hub.Broadcast(payment.LibraryID, hub.EventPaymentCompleted, payment)
	s.hub.BroadcastDashboardUpdate(payment.LibraryID)
	return &payment, nil
}

// FailPayment marks a PENDING payment FAILED and cancels its membership.
func (s *MembershipService) FailPayment(ctx context.Context, paymentID uint, reason string) error {
	var payment models.Payment
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&payment, paymentID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrPaymentNotFound
			}
			return err
		}
		if payment.Status != models.PaymentPending {
			return ErrPaymentFinal
		}
		if err := tx.Model(&payment).Update("status", models.PaymentFailed).Error; err != nil {
			return err
		}
		if payment.MembershipID != nil {
			if err := tx.Model(&models.Membership{}).
				Where("id = ? AND status = ?", *payment.MembershipID, models.MembershipPending).
				Update("status", models.MembershipCancelled).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	payment.Status = models.PaymentFailed
	utils.InfoLogger.Printf("Payment %s failed: %s", payment.Reference, reason)
	Notify(ctx, s.db, payment.UserID, "Payment failed",
		fmt.Sprintf("Your membership payment %s was not completed (%s).", payment.Reference, reason),
		models.NotifPayment)
	publishEvent(ctx, s.events, EventPaymentFailed, payment)
	return nil
}

// HandleNotification applies a gateway status update. Notifications for
// payments that are already final are accepted and ignored.
func (s *MembershipService) HandleNotification(ctx context.Context, n GatewayNotification) error {
	if s.gateway == nil {
		return ErrGatewayUnavailable
	}
	if !s.gateway.VerifySignature(n) {
		return ErrInvalidSignature
	}

	var payment models.Payment
	if err := s.db.WithContext(ctx).Where("reference = ?", n.OrderID).First(&payment).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrPaymentNotFound
		}
		return err
	}

	var err error
	switch n.TransactionStatus {
	case "settlement", "capture":
		if n.FraudStatus == "deny" {
			err = s.FailPayment(ctx, payment.ID, "fraud check denied")
			break
		}
		_, err = s.ActivatePayment(ctx, payment.ID, nil)
	case "deny", "cancel", "expire", "failure":
		err = s.FailPayment(ctx, payment.ID, n.TransactionStatus)
	default:
		utils.InfoLogger.Printf("Payment %s notification status %q ignored", payment.Reference, n.TransactionStatus)
		return nil
	}
	if errors.Is(err, ErrPaymentFinal) {
		return nil
	}
	return err
}

// CancelMembership lets a library admin cancel a PENDING or ACTIVE membership.
func (s *MembershipService) CancelMembership(ctx context.Context, libraryID, membershipID uint) (*models.Membership, error) {
	var membership models.Membership
	if err := s.db.WithContext(ctx).Where("id = ? AND library_id = ?", membershipID, libraryID).First(&membership).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrMembershipNotFound
		}
		return nil, err
	}
	if membership.Status != models.MembershipActive && membership.Status != models.MembershipPending {
		return nil, fmt.Errorf("%w: membership is %s", ErrInvalidTransition, membership.Status)
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&membership).Update("status", models.MembershipCancelled).Error; err != nil {
			return err
		}
		if membership.PaymentID != nil {
			return tx.Model(&models.Payment{}).
				Where("id = ? AND status = ?", *membership.PaymentID, models.PaymentPending).
				Update("status", models.PaymentFailed).Error
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	membership.Status = models.MembershipCancelled
	Notify(ctx, s.db, membership.UserID, "Membership cancelled",
		"Your membership was cancelled by the library.", models.NotifMembership)
	publishEvent(ctx, s.events, EventMembershipCancelled, membership)
	s.hub.BroadcastDashboardUpdate(libraryID)
	return &membership, nil
}

// ExpireMemberships flips ACTIVE memberships that ended before today.
func (s *MembershipService) ExpireMemberships(ctx context.Context) (int64, error) {
	today := utils.FormatDate(s.Now())
	res := s.db.WithContext(ctx).Model(&models.Membership{}).
		Where("status = ? AND end_date < ?", models.MembershipActive, today).
		Update("status", models.MembershipExpired)
	return res.RowsAffected, res.Error
}

// FailStalePayments fails PENDING payments created before now-ttl.
func (s *MembershipService) FailStalePayments(ctx context.Context, ttl time.Duration) (int, error) {
	cutoff := s.Now().Add(-ttl)
	var ids []uint
	if err := s.db.WithContext(ctx).Model(&models.Payment{}).
		Where("status = ? AND created_at < ?", models.PaymentPending, cutoff).
		Pluck("id", &ids).Error; err != nil {
		return 0, err
	}

	failed := 0
	for _, id := range ids {
		if err := s.FailPayment(ctx, id, "payment window expired"); err != nil {
			if !errors.Is(err, ErrPaymentFinal) {
				utils.ErrorLogger.Printf("Failed to expire payment %d: %v", id, err)
			}
			continue
		}
		failed++
	}
	return failed, nil
}
