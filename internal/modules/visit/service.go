package visit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"propertyhub/internal/domain"
	"propertyhub/internal/modules/gateway"
)

// Checkout is the slice of the gateway orchestrator the controller needs.
type Checkout interface {
	InitiateForPayment(ctx context.Context, payment *domain.Payment, phone, provider string, method domain.PaymentMethod) (*gateway.InitiateResult, error)
	Verify(ctx context.Context, reference string) (*domain.GatewayTransaction, error)
}

// ContactInfo is the disclosure a paid visit unlocks.
type ContactInfo struct {
	OwnerName  string   `json:"owner_name"`
	OwnerPhone string   `json:"owner_phone"`
	Address    string   `json:"address"`
	Latitude   *float64 `json:"latitude,omitempty"`
	Longitude  *float64 `json:"longitude,omitempty"`
}

// AccessView answers "can this user see the owner's contact details".
type AccessView struct {
	HasAccess bool         `json:"has_access"`
	Reason    string       `json:"reason"`
	VisitCost float64      `json:"visit_cost,omitempty"`
	ExpiresAt *time.Time   `json:"expires_at,omitempty"`
	Contact   *ContactInfo `json:"contact,omitempty"`
}

// Service gates houses' owner contact details behind a paid, time-limited
// visit payment. One row per (property, user); an expired row is reset to
// pending and reused.
type Service struct {
	db       *gorm.DB
	checkout Checkout
	ttl      time.Duration
	log      *logrus.Entry
}

func NewService(db *gorm.DB, checkout Checkout, ttl time.Duration) *Service {
	return &Service{
		db:       db,
		checkout: checkout,
		ttl:      ttl,
		log:      logrus.WithField("component", "visit"),
	}
}

// Status answers access for (property, user). Owners and staff bypass the
// gate; so does any property without a visit cost.
func (s *Service) Status(ctx context.Context, propertyID, userID int64, role domain.Role) (*AccessView, error) {
	prop, err := s.getProperty(ctx, propertyID)
	if err != nil {
		return nil, err
	}

	if role == domain.RoleAdmin || role == domain.RoleManager || role == domain.RoleStaff {
		return s.granted(ctx, prop, "staff", nil)
	}
	if prop.OwnerID == userID {
		return s.granted(ctx, prop, "owner", nil)
	}
	if !prop.IsHouse() || prop.VisitCost <= 0 {
		return s.granted(ctx, prop, "ungated", nil)
	}

	var vp domain.PropertyVisitPayment
	err = s.db.WithContext(ctx).
		Where("property_id = ? AND user_id = ?", propertyID, userID).
		First(&vp).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return &AccessView{HasAccess: false, Reason: "payment_required", VisitCost: prop.VisitCost}, nil
	case err != nil:
		return nil, err
	}

	now := time.Now().UTC()
	if vp.ActiveAt(now, s.ttl) {
		expires := vp.PaidAt.Add(s.ttl)
		return s.granted(ctx, prop, "paid", &expires)
	}
	reason := "payment_required"
	if vp.Status == domain.VisitPaymentCompleted {
		reason = "expired"
	} else if vp.Status == domain.VisitPaymentPending {
		reason = "payment_pending"
	}
	return &AccessView{HasAccess: false, Reason: reason, VisitCost: prop.VisitCost}, nil
}

// Initiate opens (or reuses) the visit payment row and starts a gateway
// checkout for the visit cost.
func (s *Service) Initiate(ctx context.Context, propertyID, userID int64, phone, provider string, method domain.PaymentMethod) (*gateway.InitiateResult, error) {
	prop, err := s.getProperty(ctx, propertyID)
	if err != nil {
		return nil, err
	}
	if !prop.IsHouse() || prop.VisitCost <= 0 {
		return nil, ErrNotGated
	}

	now := time.Now().UTC()
	var payment *domain.Payment
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var vp domain.PropertyVisitPayment
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("property_id = ? AND user_id = ?", propertyID, userID).
			First(&vp).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			vp = domain.PropertyVisitPayment{
				PropertyID: propertyID,
				UserID:     userID,
				Amount:     prop.VisitCost,
				Status:     domain.VisitPaymentPending,
			}
			if err := tx.Create(&vp).Error; err != nil {
				return err
			}
		case err != nil:
			return err
		default:
			if vp.ActiveAt(now, s.ttl) {
				return ErrAlreadyActive
			}
			// Expired or failed rows are reset and reused.
			err := tx.Model(&vp).Updates(map[string]interface{}{
				"status":     domain.VisitPaymentPending,
				"amount":     prop.VisitCost,
				"paid_at":    nil,
				"payment_id": nil,
			}).Error
			if err != nil {
				return err
			}
		}

		p := &domain.Payment{
			Amount:               prop.VisitCost,
			Method:               method,
			Type:                 domain.PaymentFull,
			State:                domain.PaymentPending,
			TransactionReference: fmt.Sprintf("VST-%d-%d-%d", propertyID, userID, now.Unix()),
			PaymentDate:          now,
			RecordedByID:         userID,
		}
		if err := tx.Create(p).Error; err != nil {
			return err
		}
		err = tx.Model(&vp).Updates(map[string]interface{}{
			"payment_id":        p.ID,
			"transaction_id":    "",
			"gateway_reference": p.TransactionReference,
		}).Error
		if err != nil {
			return err
		}
		payment = p
		return nil
	})
	if err != nil {
		return nil, err
	}

	result, err := s.checkout.InitiateForPayment(ctx, payment, phone, provider, method)
	if err != nil {
		return nil, err
	}

	err = s.db.WithContext(ctx).Model(&domain.PropertyVisitPayment{}).
		Where("payment_id = ?", payment.ID).
		Update("transaction_id", result.ProviderTxnID).Error
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Verify reconciles the user's pending visit payment against the provider.
func (s *Service) Verify(ctx context.Context, propertyID, userID int64, role domain.Role) (*AccessView, error) {
	var vp domain.PropertyVisitPayment
	err := s.db.WithContext(ctx).
		Where("property_id = ? AND user_id = ?", propertyID, userID).
		First(&vp).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if vp.Status == domain.VisitPaymentPending && vp.GatewayReference != "" {
		if _, err := s.checkout.Verify(ctx, vp.GatewayReference); err != nil && !errors.Is(err, gateway.ErrNotFound) {
			s.log.WithError(err).Warn("visit payment verification failed")
		}
	}
	return s.Status(ctx, propertyID, userID, role)
}

// PaymentSettled promotes the visit row when its gateway payment settles.
// Booking payments have no visit row and fall through silently.
func (s *Service) PaymentSettled(ctx context.Context, payment *domain.Payment) {
	now := time.Now().UTC()
	res := s.db.WithContext(ctx).Model(&domain.PropertyVisitPayment{}).
		Where("payment_id = ?", payment.ID).
		Updates(map[string]interface{}{
			"status":  domain.VisitPaymentCompleted,
			"paid_at": now,
		})
	if res.Error != nil {
		s.log.WithError(res.Error).Error("failed to complete visit payment")
		return
	}
	if res.RowsAffected > 0 {
		s.log.WithField("payment_id", payment.ID).Info("visit access unlocked")
	}
}

func (s *Service) granted(ctx context.Context, prop *domain.Property, reason string, expires *time.Time) (*AccessView, error) {
	contact := &ContactInfo{
		Address:   prop.Address,
		Latitude:  prop.Latitude,
		Longitude: prop.Longitude,
	}
	var owner domain.User
	if err := s.db.WithContext(ctx).First(&owner, prop.OwnerID).Error; err == nil {
		contact.OwnerName = owner.FullName
		contact.OwnerPhone = owner.Phone
	}
	return &AccessView{
		HasAccess: true,
		Reason:    reason,
		ExpiresAt: expires,
		Contact:   contact,
	}, nil
}

func (s *Service) getProperty(ctx context.Context, id int64) (*domain.Property, error) {
	var prop domain.Property
	if err := s.db.WithContext(ctx).First(&prop, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &prop, nil
}
