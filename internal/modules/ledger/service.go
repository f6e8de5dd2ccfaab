package ledger

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"propertyhub/internal/domain"
)

// Notifier receives audit events worth pushing to connected staff sessions.
// The notification hub implements it; a nil notifier is valid.
type Notifier interface {
	PushAudit(event *domain.AuditEvent)
}

// Service is the only writer of booking.paid_amount and
// booking.payment_status. Every mutation locks the booking row, appends or
// adjusts ledger rows, then rederives both fields from the ledger inside the
// same transaction.
type Service struct {
	db        *gorm.DB
	tolerance float64
	notifier  Notifier
}

func NewService(db *gorm.DB, tolerance float64, notifier Notifier) *Service {
	return &Service{db: db, tolerance: tolerance, notifier: notifier}
}

// RecordPayment books a manual cash/card payment. It settles immediately.
func (s *Service) RecordPayment(ctx context.Context, req RecordPaymentRequest) (*domain.Payment, error) {
	if req.Amount <= 0 {
		return nil, ErrInvalidAmount
	}
	if req.Method == domain.MethodCash && strings.TrimSpace(req.ReceiptPath) == "" {
		return nil, ErrReceiptRequired
	}
	if req.Method == domain.MethodMobileMoney && strings.TrimSpace(req.MobileMoneyProvider) == "" {
		return nil, ErrProviderRequired
	}

	var payment *domain.Payment
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		booking, err := lockBooking(tx, req.BookingID)
		if err != nil {
			return err
		}
		if booking.BookingStatus == domain.BookingCancelled || booking.IsDeleted {
			return ErrBookingClosed
		}

		outstanding, err := chargedAmount(tx, booking.ID)
		if err != nil {
			return err
		}
		if outstanding+req.Amount > booking.TotalAmount+s.tolerance {
			return ErrOverpayment
		}

		ref, err := nextChargeReference(tx, booking)
		if err != nil {
			return err
		}

		p := &domain.Payment{
			BookingID:            &booking.ID,
			Amount:               req.Amount,
			Method:               req.Method,
			Type:                 classify(req.Type, req.Amount, booking),
			State:                domain.PaymentActive,
			TransactionReference: ref,
			PaymentDate:          time.Now().UTC(),
			Notes:                req.Notes,
			MobileMoneyProvider:  strings.ToUpper(req.MobileMoneyProvider),
			ReceiptPath:          req.ReceiptPath,
			RecordedByID:         req.RecordedByID,
		}
		if err := tx.Create(p).Error; err != nil {
			return err
		}
		if err := RederiveTx(tx, booking.ID, s.tolerance); err != nil {
			return err
		}
		payment = p
		return s.audit(tx, "payment.recorded", p.ID, req.RecordedByID, domain.AuditNormal,
			fmt.Sprintf("%s %s %.2f on %s", p.Method, p.Type, p.Amount, booking.BookingReference))
	})
	if err != nil {
		return nil, err
	}
	return payment, nil
}

// CreatePendingPayment opens a ledger row for a gateway collection attempt.
// Pending rows reserve a reference but do not count toward paid_amount until
// settled.
func (s *Service) CreatePendingPayment(ctx context.Context, bookingID int64, amount float64, method domain.PaymentMethod, provider string, actorID int64) (*domain.Payment, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}

	var payment *domain.Payment
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		booking, err := lockBooking(tx, bookingID)
		if err != nil {
			return err
		}
		if booking.BookingStatus == domain.BookingCancelled || booking.IsDeleted {
			return ErrBookingClosed
		}

		outstanding, err := chargedAmount(tx, booking.ID)
		if err != nil {
			return err
		}
		if outstanding+amount > booking.TotalAmount+s.tolerance {
			return ErrOverpayment
		}

		ref, err := nextChargeReference(tx, booking)
		if err != nil {
			return err
		}
		p := &domain.Payment{
			BookingID:            &booking.ID,
			Amount:               amount,
			Method:               method,
			Type:                 classify("", amount, booking),
			State:                domain.PaymentPending,
			TransactionReference: ref,
			PaymentDate:          time.Now().UTC(),
			MobileMoneyProvider:  strings.ToUpper(provider),
			RecordedByID:         actorID,
		}
		if err := tx.Create(p).Error; err != nil {
			return err
		}
		payment = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return payment, nil
}

// SettlePayment promotes a pending gateway payment to completed and
// rederives the booking. Settling an already-completed payment is a no-op,
// which makes webhook redelivery safe.
func (s *Service) SettlePayment(ctx context.Context, paymentID int64) (*domain.Payment, error) {
	return s.flipState(ctx, paymentID, domain.PaymentCompleted)
}

// FailPayment marks a pending gateway payment failed.
func (s *Service) FailPayment(ctx context.Context, paymentID int64) (*domain.Payment, error) {
	return s.flipState(ctx, paymentID, domain.PaymentFailed)
}

func (s *Service) flipState(ctx context.Context, paymentID int64, target domain.PaymentState) (*domain.Payment, error) {
	var payment *domain.Payment
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var p domain.Payment
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&p, paymentID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}
		if p.State == target {
			payment = &p
			return nil
		}
		if p.State != domain.PaymentPending {
			return ErrNotFound
		}
		if err := tx.Model(&p).Update("status", target).Error; err != nil {
			return err
		}
		p.State = target
		payment = &p
		if p.BookingID != nil {
			if _, err := lockBooking(tx, *p.BookingID); err != nil {
				return err
			}
			return RederiveTx(tx, *p.BookingID, s.tolerance)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return payment, nil
}

// RecordRefund appends a refund row. Earlier payments are never mutated; the
// refund simply subtracts from the derived paid amount.
func (s *Service) RecordRefund(ctx context.Context, req RefundRequest) (*domain.Payment, error) {
	if req.Amount <= 0 {
		return nil, ErrInvalidAmount
	}

	var payment *domain.Payment
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		booking, err := lockBooking(tx, req.BookingID)
		if err != nil {
			return err
		}

		paid, _, err := settledAmounts(tx, booking.ID)
		if err != nil {
			return err
		}
		if req.Amount > paid+s.tolerance {
			return ErrInsufficientPaid
		}

		ref, err := nextRefundReference(tx, booking.ID)
		if err != nil {
			return err
		}
		p := &domain.Payment{
			BookingID:            &booking.ID,
			Amount:               req.Amount,
			Method:               domain.MethodCash,
			Type:                 domain.PaymentRefund,
			State:                domain.PaymentActive,
			TransactionReference: ref,
			PaymentDate:          time.Now().UTC(),
			RefundReason:         req.Reason,
			RecordedByID:         req.RecordedByID,
		}
		if err := tx.Create(p).Error; err != nil {
			return err
		}
		if err := RederiveTx(tx, booking.ID, s.tolerance); err != nil {
			return err
		}
		payment = p
		return s.audit(tx, "payment.refunded", p.ID, req.RecordedByID, domain.AuditNormal,
			fmt.Sprintf("refund %.2f on %s: %s", p.Amount, booking.BookingReference, req.Reason))
	})
	if err != nil {
		return nil, err
	}
	return payment, nil
}

// EditPayment is an admin correction of a settled row. It leaves an urgent
// audit trail and rederives the booking.
func (s *Service) EditPayment(ctx context.Context, paymentID int64, req EditPaymentRequest, role domain.Role) (*domain.Payment, error) {
	if role != domain.RoleAdmin {
		return nil, ErrUnauthorised
	}

	var payment *domain.Payment
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var p domain.Payment
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&p, paymentID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}

		updates := map[string]interface{}{}
		detail := fmt.Sprintf("payment %s edited:", p.TransactionReference)
		if req.Amount != nil {
			if *req.Amount <= 0 {
				return ErrInvalidAmount
			}
			detail += fmt.Sprintf(" amount %.2f->%.2f", p.Amount, *req.Amount)
			updates["amount"] = *req.Amount
		}
		if req.Notes != nil {
			updates["notes"] = *req.Notes
		}
		if req.Method != nil {
			detail += fmt.Sprintf(" method %s->%s", p.Method, *req.Method)
			updates["method"] = *req.Method
		}
		if len(updates) == 0 {
			payment = &p
			return nil
		}
		if err := tx.Model(&p).Updates(updates).Error; err != nil {
			return err
		}

		if p.BookingID != nil {
			booking, err := lockBooking(tx, *p.BookingID)
			if err != nil {
				return err
			}
			if req.Amount != nil {
				outstanding, err := chargedAmount(tx, booking.ID)
				if err != nil {
					return err
				}
				if outstanding > booking.TotalAmount+s.tolerance {
					return ErrOverpayment
				}
			}
			if err := RederiveTx(tx, booking.ID, s.tolerance); err != nil {
				return err
			}
		}

		if err := tx.First(&p, paymentID).Error; err != nil {
			return err
		}
		payment = &p
		return s.audit(tx, "payment.edited", p.ID, req.ActorID, domain.AuditUrgent, detail)
	})
	if err != nil {
		return nil, err
	}
	return payment, nil
}

// DeletePayment removes a ledger row outright. Admin only, urgent audit.
func (s *Service) DeletePayment(ctx context.Context, paymentID, actorID int64, role domain.Role) error {
	if role != domain.RoleAdmin {
		return ErrUnauthorised
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var p domain.Payment
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&p, paymentID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}
		if err := tx.Delete(&p).Error; err != nil {
			return err
		}
		if p.BookingID != nil {
			if _, err := lockBooking(tx, *p.BookingID); err != nil {
				return err
			}
			if err := RederiveTx(tx, *p.BookingID, s.tolerance); err != nil {
				return err
			}
		}
		return s.audit(tx, "payment.deleted", p.ID, actorID, domain.AuditUrgent,
			fmt.Sprintf("payment %s (%.2f %s) deleted", p.TransactionReference, p.Amount, p.Method))
	})
}

// GetSummary returns the ledger view of one booking.
func (s *Service) GetSummary(ctx context.Context, bookingID int64) (*Summary, error) {
	var booking domain.Booking
	err := s.db.WithContext(ctx).Preload("Payments", func(db *gorm.DB) *gorm.DB {
		return db.Order("payment_date asc, id asc")
	}).First(&booking, bookingID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	summary := &Summary{
		BookingID:        booking.ID,
		BookingReference: booking.BookingReference,
		TotalAmount:      booking.TotalAmount,
		PaidAmount:       booking.PaidAmount,
		RemainingAmount:  booking.RemainingAmount(),
		PaymentStatus:    booking.PaymentStatus,
		Payments:         booking.Payments,
	}
	for i := range booking.Payments {
		p := &booking.Payments[i]
		if p.IsRefund() {
			if p.Settled() {
				summary.RefundedAmount += p.Amount
			}
			continue
		}
		if p.Settled() {
			summary.PaymentCount++
			d := p.PaymentDate
			summary.LastPaymentDate = &d
			summary.LastPaymentMethod = p.Method
		}
	}
	return summary, nil
}

// GetPayment loads one ledger row.
func (s *Service) GetPayment(ctx context.Context, paymentID int64) (*domain.Payment, error) {
	var p domain.Payment
	if err := s.db.WithContext(ctx).First(&p, paymentID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

// ListPayments returns the booking's ledger rows in entry order.
func (s *Service) ListPayments(ctx context.Context, bookingID int64) ([]domain.Payment, error) {
	var payments []domain.Payment
	err := s.db.WithContext(ctx).
		Where("booking_id = ?", bookingID).
		Order("payment_date asc, id asc").
		Find(&payments).Error
	return payments, err
}

// ReconcileSweep rederives every non-archived booking from its ledger. Safe
// to run at any time; reports how many bookings changed.
func (s *Service) ReconcileSweep(ctx context.Context) (int, error) {
	var ids []int64
	err := s.db.WithContext(ctx).Model(&domain.Booking{}).
		Where("is_deleted = ?", false).
		Pluck("id", &ids).Error
	if err != nil {
		return 0, err
	}

	changed := 0
	for _, id := range ids {
		err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			b, err := lockBooking(tx, id)
			if err != nil {
				return err
			}
			before := b.PaidAmount
			if err := RederiveTx(tx, id, s.tolerance); err != nil {
				return err
			}
			var after domain.Booking
			if err := tx.First(&after, id).Error; err != nil {
				return err
			}
			if after.PaidAmount != before {
				changed++
				logrus.WithFields(logrus.Fields{
					"booking_reference": b.BookingReference,
					"was":               before,
					"now":               after.PaidAmount,
				}).Warn("ledger reconciliation corrected paid amount")
			}
			return nil
		})
		if err != nil && !errors.Is(err, ErrNotFound) {
			return changed, err
		}
	}
	return changed, nil
}

// RederiveTx recomputes paid_amount and payment_status from the ledger.
// Exported so other writers can rederive inside their own transaction after
// touching payment rows.
func RederiveTx(tx *gorm.DB, bookingID int64, tolerance float64) error {
	var booking domain.Booking
	if err := tx.First(&booking, bookingID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		return err
	}

	paid, _, err := settledAmounts(tx, bookingID)
	if err != nil {
		return err
	}

	status := domain.BookingPaymentPending
	switch {
	case booking.TotalAmount > 0 && paid >= booking.TotalAmount-tolerance:
		status = domain.BookingPaymentPaid
	case paid > 0:
		status = domain.BookingPaymentPartial
	}

	return tx.Model(&domain.Booking{}).
		Where("id = ?", bookingID).
		Updates(map[string]interface{}{
			"paid_amount":    paid,
			"payment_status": status,
		}).Error
}

// settledAmounts returns net paid (settled charges minus settled refunds)
// and the settled charge total.
func settledAmounts(tx *gorm.DB, bookingID int64) (net, charges float64, err error) {
	var payments []domain.Payment
	err = tx.Where("booking_id = ?", bookingID).Find(&payments).Error
	if err != nil {
		return 0, 0, err
	}
	for i := range payments {
		p := &payments[i]
		if !p.Settled() {
			continue
		}
		if p.IsRefund() {
			net -= p.Amount
		} else {
			net += p.Amount
			charges += p.Amount
		}
	}
	if net < 0 {
		net = 0
	}
	return net, charges, nil
}

// chargedAmount is the overpayment base: settled plus still-pending charges,
// minus settled refunds. Pending gateway rows count so two concurrent
// checkouts cannot both fit under the total.
func chargedAmount(tx *gorm.DB, bookingID int64) (float64, error) {
	var payments []domain.Payment
	if err := tx.Where("booking_id = ?", bookingID).Find(&payments).Error; err != nil {
		return 0, err
	}
	var sum float64
	for i := range payments {
		p := &payments[i]
		switch {
		case p.IsRefund() && p.Settled():
			sum -= p.Amount
		case p.IsRefund():
		case p.Settled() || p.State == domain.PaymentPending:
			sum += p.Amount
		}
	}
	return sum, nil
}

// nextChargeReference issues PAY-<booking_ref>-NNN, numbering charges only.
// The suffix is one past the highest surviving one, so an admin delete leaves
// a gap instead of recycling a live reference.
func nextChargeReference(tx *gorm.DB, booking *domain.Booking) (string, error) {
	n, err := maxReferenceSuffix(tx, booking.ID, false)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("PAY-%s-%03d", booking.BookingReference, n+1), nil
}

func nextRefundReference(tx *gorm.DB, bookingID int64) (string, error) {
	n, err := maxReferenceSuffix(tx, bookingID, true)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("REF-%03d", n+1), nil
}

func maxReferenceSuffix(tx *gorm.DB, bookingID int64, refunds bool) (int, error) {
	q := tx.Model(&domain.Payment{}).Where("booking_id = ?", bookingID)
	if refunds {
		q = q.Where("type = ?", domain.PaymentRefund)
	} else {
		q = q.Where("type <> ?", domain.PaymentRefund)
	}
	var refs []string
	if err := q.Pluck("transaction_reference", &refs).Error; err != nil {
		return 0, err
	}
	max := 0
	for _, r := range refs {
		i := strings.LastIndex(r, "-")
		if i < 0 {
			continue
		}
		if n, err := strconv.Atoi(r[i+1:]); err == nil && n > max {
			max = n
		}
	}
	return max, nil
}

// classify picks deposit/partial/full when the caller did not say.
func classify(requested domain.PaymentType, amount float64, booking *domain.Booking) domain.PaymentType {
	if requested != "" && requested != domain.PaymentRefund {
		return requested
	}
	remaining := booking.TotalAmount - booking.PaidAmount
	if amount >= remaining && remaining > 0 {
		return domain.PaymentFull
	}
	if booking.PaidAmount == 0 {
		return domain.PaymentDeposit
	}
	return domain.PaymentPartial
}

func lockBooking(tx *gorm.DB, id int64) (*domain.Booking, error) {
	var b domain.Booking
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&b, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &b, nil
}

func (s *Service) audit(tx *gorm.DB, action string, entityID, actorID int64, priority domain.AuditPriority, detail string) error {
	ev := &domain.AuditEvent{
		Action:   action,
		Entity:   "payment",
		EntityID: entityID,
		ActorID:  actorID,
		Priority: priority,
		Detail:   detail,
	}
	if err := tx.Create(ev).Error; err != nil {
		return err
	}
	if s.notifier != nil && priority == domain.AuditUrgent {
		s.notifier.PushAudit(ev)
	}
	return nil
}
