package booking

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"propertyhub/internal/domain"
	"propertyhub/internal/modules/availability"
	"propertyhub/internal/modules/registry"
	"propertyhub/internal/pkg/validator"
)

// Service owns the booking state machine and serializes concurrent create
// attempts: every create runs in a transaction holding an exclusive lock on
// the target room (hotel/lodge) or the property row (house/venue), so the
// first committer wins and losers get ErrNotAvailable. No retries here.
type Service struct {
	db *gorm.DB

	// Auto-cancel window for unpaid pending bookings when the property does
	// not override it. 0 disables.
	defaultExpirationHours int
}

func NewService(db *gorm.DB, defaultExpirationHours int) *Service {
	return &Service{db: db, defaultExpirationHours: defaultExpirationHours}
}

func (s *Service) Create(ctx context.Context, req CreateRequest) (*domain.Booking, error) {
	checkIn, err := parseDate(req.CheckInDate)
	if err != nil {
		return nil, ErrInvalidInterval
	}
	checkOut, err := parseDate(req.CheckOutDate)
	if err != nil {
		return nil, ErrInvalidInterval
	}
	if !checkOut.After(checkIn) {
		return nil, ErrInvalidInterval
	}
	if req.NumberOfGuests <= 0 {
		req.NumberOfGuests = 1
	}

	var booking *domain.Booking
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var prop domain.Property
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&prop, req.PropertyID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}

		var room *domain.Room
		if prop.HasRooms() {
			if req.RoomNumber == nil || strings.TrimSpace(*req.RoomNumber) == "" {
				return ErrRoomRequired
			}
			var r domain.Room
			err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
				Where("property_id = ? AND room_number = ?", prop.ID, *req.RoomNumber).
				First(&r).Error
			if err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return ErrRoomNotFound
				}
				return err
			}
			// Occupied is fine for future dates; the interval check below
			// catches real conflicts. Maintenance and out-of-order are hard
			// stops.
			if !r.IsActive || r.Status == domain.RoomMaintenance || r.Status == domain.RoomOutOfOrder {
				return ErrNotAvailable
			}
			room = &r
		} else if req.RoomNumber != nil {
			return ErrValidation
		}

		// Availability re-check under the lock. The idx_no_overbooking
		// constraint below is the backstop for writers that bypass it.
		cnt, err := availability.CountBlocking(tx, prop.ID, req.RoomNumber, checkIn, checkOut)
		if err != nil {
			return err
		}
		if cnt > 0 {
			return ErrNotAvailable
		}
		if room == nil {
			leases, err := availability.CountActiveLeases(tx, prop.ID, checkIn, checkOut)
			if err != nil {
				return err
			}
			if leases > 0 {
				return ErrNotAvailable
			}
		}

		customer, err := upsertCustomer(tx, req.Customer)
		if err != nil {
			return err
		}

		total, err := deriveTotal(&prop, room, checkIn, checkOut, req.TotalAmount)
		if err != nil {
			return err
		}

		ref, err := nextReference(tx, prop.ReferencePrefix())
		if err != nil {
			return err
		}

		b := &domain.Booking{
			BookingReference: ref,
			PropertyID:       prop.ID,
			CustomerID:       customer.ID,
			RoomNumber:       req.RoomNumber,
			CheckInDate:      checkIn,
			CheckOutDate:     checkOut,
			NumberOfGuests:   req.NumberOfGuests,
			TotalAmount:      total,
			BookingStatus:    domain.BookingPending,
			PaymentStatus:    domain.BookingPaymentPending,
			SpecialRequests:  req.SpecialRequests,
			CreatedByID:      req.CreatedByID,
		}
		if v := validator.Validate(b); v != nil {
			return fmt.Errorf("%w: %v", ErrValidation, v)
		}
		if err := tx.Create(b).Error; err != nil {
			if isOverbookingConflict(err) {
				return ErrNotAvailable
			}
			return err
		}

		if room != nil {
			if b.Covers(today()) {
				err := tx.Model(room).Updates(map[string]interface{}{
					"status":             domain.RoomOccupied,
					"current_booking_id": b.ID,
				}).Error
				if err != nil {
					return err
				}
			} else if err := registry.SyncRoomTx(tx, room, today()); err != nil {
				return err
			}
		}

		if err := registry.RefreshPropertyStatusTx(tx, prop.ID, today()); err != nil {
			return err
		}

		booking = b
		return nil
	})
	if err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"booking_reference": booking.BookingReference,
		"property_id":       booking.PropertyID,
	}).Info("booking created")
	return booking, nil
}

func (s *Service) Confirm(ctx context.Context, id int64) (*domain.Booking, error) {
	return s.transition(ctx, id, func(b *domain.Booking, now time.Time) (map[string]interface{}, error) {
		if b.BookingStatus != domain.BookingPending {
			return nil, ErrIllegalTransition
		}
		return map[string]interface{}{
			"booking_status": domain.BookingConfirmed,
			"confirmed_at":   now,
		}, nil
	})
}

func (s *Service) Cancel(ctx context.Context, id int64) (*domain.Booking, error) {
	return s.transition(ctx, id, func(b *domain.Booking, now time.Time) (map[string]interface{}, error) {
		if b.BookingStatus != domain.BookingPending && b.BookingStatus != domain.BookingConfirmed {
			return nil, ErrIllegalTransition
		}
		return map[string]interface{}{
			"booking_status": domain.BookingCancelled,
		}, nil
	})
}

func (s *Service) CheckIn(ctx context.Context, id int64) (*domain.Booking, error) {
	return s.transition(ctx, id, func(b *domain.Booking, now time.Time) (map[string]interface{}, error) {
		if b.BookingStatus != domain.BookingConfirmed {
			return nil, ErrIllegalTransition
		}
		if today().Before(b.CheckInDate) {
			return nil, ErrIllegalTransition
		}
		return map[string]interface{}{
			"booking_status": domain.BookingCheckedIn,
			"checked_in_at":  now,
		}, nil
	})
}

func (s *Service) CheckOut(ctx context.Context, id int64) (*domain.Booking, error) {
	return s.transition(ctx, id, func(b *domain.Booking, now time.Time) (map[string]interface{}, error) {
		if b.BookingStatus != domain.BookingCheckedIn {
			return nil, ErrIllegalTransition
		}
		return map[string]interface{}{
			"booking_status": domain.BookingCheckedOut,
			"checked_out_at": now,
		}, nil
	})
}

// SoftDelete archives a terminal booking. Admin only.
func (s *Service) SoftDelete(ctx context.Context, id, actorID int64, role domain.Role) (*domain.Booking, error) {
	if role != domain.RoleAdmin {
		return nil, ErrUnauthorised
	}
	return s.transition(ctx, id, func(b *domain.Booking, now time.Time) (map[string]interface{}, error) {
		if !b.IsTerminal() {
			return nil, ErrIllegalTransition
		}
		if b.IsDeleted {
			return nil, ErrIllegalTransition
		}
		return map[string]interface{}{
			"is_deleted": true,
			"deleted_at": now,
			"deleted_by": actorID,
		}, nil
	})
}

func (s *Service) Restore(ctx context.Context, id int64, role domain.Role) (*domain.Booking, error) {
	if role != domain.RoleAdmin {
		return nil, ErrUnauthorised
	}
	return s.transition(ctx, id, func(b *domain.Booking, now time.Time) (map[string]interface{}, error) {
		if !b.IsDeleted {
			return nil, ErrIllegalTransition
		}
		return map[string]interface{}{
			"is_deleted": false,
			"deleted_at": nil,
			"deleted_by": nil,
		}, nil
	})
}

// UpdateTotalAmount is allowed while the booking is not terminal and the new
// total stays at or above what has already been paid. Venue totals are only
// ever set this way; they are never recomputed.
func (s *Service) UpdateTotalAmount(ctx context.Context, id int64, amount float64) (*domain.Booking, error) {
	if amount < 0 {
		return nil, ErrValidation
	}
	return s.transition(ctx, id, func(b *domain.Booking, now time.Time) (map[string]interface{}, error) {
		if b.BookingStatus == domain.BookingCheckedOut || b.BookingStatus == domain.BookingCancelled {
			return nil, ErrIllegalTransition
		}
		if amount < b.PaidAmount {
			return nil, ErrTotalBelowPaid
		}
		return map[string]interface{}{"total_amount": amount}, nil
	})
}

// transition loads the booking under a row lock, applies the guard, persists
// the updates, then re-syncs the assigned room and the property status.
func (s *Service) transition(ctx context.Context, id int64, guard func(*domain.Booking, time.Time) (map[string]interface{}, error)) (*domain.Booking, error) {
	now := time.Now().UTC()
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var b domain.Booking
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&b, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}

		updates, err := guard(&b, now)
		if err != nil {
			return err
		}
		if err := tx.Model(&b).Updates(updates).Error; err != nil {
			return err
		}

		if b.RoomNumber != nil {
			var room domain.Room
			err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
				Where("property_id = ? AND room_number = ?", b.PropertyID, *b.RoomNumber).
				First(&room).Error
			switch {
			case err == nil:
				if err := registry.SyncRoomTx(tx, &room, today()); err != nil {
					return err
				}
			case errors.Is(err, gorm.ErrRecordNotFound):
				// Room deleted since booking; nothing to sync.
			default:
				return err
			}
		}
		return registry.RefreshPropertyStatusTx(tx, b.PropertyID, today())
	})
	if err != nil {
		return nil, err
	}
	return s.GetByID(ctx, id, true)
}

func (s *Service) GetByID(ctx context.Context, id int64, includeDeleted bool) (*domain.Booking, error) {
	q := s.db.WithContext(ctx).
		Preload("Customer").
		Preload("Property").
		Preload("Payments")
	if !includeDeleted {
		q = q.Where("is_deleted = ?", false)
	}
	var b domain.Booking
	if err := q.First(&b, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &b, nil
}

func (s *Service) GetByReference(ctx context.Context, ref string) (*domain.Booking, error) {
	var b domain.Booking
	err := s.db.WithContext(ctx).
		Preload("Customer").
		Preload("Property").
		Preload("Payments").
		Where("booking_reference = ?", ref).
		First(&b).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &b, nil
}

// List is read-only; the checkout sweep runs on the scheduler, never here.
func (s *Service) List(ctx context.Context, f ListFilter) ([]domain.Booking, error) {
	q := s.db.WithContext(ctx).Model(&domain.Booking{}).
		Preload("Customer").
		Preload("Property").
		Order("created_at desc")

	if !f.IncludeDeleted {
		q = q.Where("is_deleted = ?", false)
	}
	if f.PropertyID != 0 {
		q = q.Where("property_id = ?", f.PropertyID)
	}
	if f.Status != "" {
		q = q.Where("booking_status = ?", f.Status)
	}
	if f.CustomerID != 0 {
		q = q.Where("customer_id = ?", f.CustomerID)
	}
	if f.PropertyType != "" {
		q = q.Joins("JOIN properties ON properties.id = bookings.property_id").
			Where("properties.type = ?", f.PropertyType)
	}
	if f.Limit > 0 {
		q = q.Limit(f.Limit).Offset(f.Offset)
	}

	var out []domain.Booking
	if err := q.Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// AutoCheckoutSweep transitions every stay-over booking to checked_out.
// Idempotent; runs from the scheduler.
func (s *Service) AutoCheckoutSweep(ctx context.Context) (int, error) {
	var ids []int64
	err := s.db.WithContext(ctx).Model(&domain.Booking{}).
		Where("check_out_date < ?", today()).
		Where("booking_status IN ?", []domain.BookingStatus{domain.BookingPending, domain.BookingConfirmed, domain.BookingCheckedIn}).
		Where("is_deleted = ?", false).
		Pluck("id", &ids).Error
	if err != nil {
		return 0, err
	}

	swept := 0
	for _, id := range ids {
		_, err := s.transition(ctx, id, func(b *domain.Booking, now time.Time) (map[string]interface{}, error) {
			if !b.Blocks() || !b.CheckOutDate.Before(today()) {
				return nil, ErrIllegalTransition
			}
			return map[string]interface{}{
				"booking_status": domain.BookingCheckedOut,
				"checked_out_at": now,
			}, nil
		})
		switch {
		case err == nil:
			swept++
		case errors.Is(err, ErrIllegalTransition), errors.Is(err, ErrNotFound):
			// Lost a race with a concurrent transition; fine.
		default:
			return swept, err
		}
	}
	return swept, nil
}

// ExpirePendingSweep cancels unpaid pending bookings older than the
// expiration window. A property-level override wins; 0 disables.
func (s *Service) ExpirePendingSweep(ctx context.Context) (int, error) {
	var bookings []domain.Booking
	err := s.db.WithContext(ctx).
		Preload("Property").
		Where("booking_status = ?", domain.BookingPending).
		Where("payment_status = ?", domain.BookingPaymentPending).
		Where("is_deleted = ?", false).
		Find(&bookings).Error
	if err != nil {
		return 0, err
	}

	now := time.Now().UTC()
	swept := 0
	for i := range bookings {
		b := &bookings[i]
		hours := s.defaultExpirationHours
		if b.Property != nil && b.Property.BookingExpirationHours > 0 {
			hours = b.Property.BookingExpirationHours
		}
		if hours <= 0 {
			continue
		}
		if now.Sub(b.CreatedAt) <= time.Duration(hours)*time.Hour {
			continue
		}
		_, err := s.transition(ctx, b.ID, func(b *domain.Booking, _ time.Time) (map[string]interface{}, error) {
			if b.BookingStatus != domain.BookingPending || b.PaymentStatus != domain.BookingPaymentPending {
				return nil, ErrIllegalTransition
			}
			return map[string]interface{}{"booking_status": domain.BookingCancelled}, nil
		})
		switch {
		case err == nil:
			swept++
		case errors.Is(err, ErrIllegalTransition), errors.Is(err, ErrNotFound):
		default:
			return swept, err
		}
	}
	return swept, nil
}

// deriveTotal computes the stored total. Venues take the caller's amount;
// hotels and lodges always price from room.base_rate; houses from
// property.rent_amount. Duration is rounded up in units of the rent period.
func deriveTotal(prop *domain.Property, room *domain.Room, checkIn, checkOut time.Time, provided *float64) (float64, error) {
	if prop.IsVenue() {
		if provided == nil || *provided < 0 {
			return 0, ErrValidation
		}
		return *provided, nil
	}
	if provided != nil {
		return *provided, nil
	}

	var rate float64
	if prop.HasRooms() {
		if room == nil {
			return 0, ErrRoomRequired
		}
		rate = room.BaseRate
	} else {
		rate = prop.RentAmount
	}
	return rate * float64(durationUnits(checkIn, checkOut, prop.RentPeriod)), nil
}

func durationUnits(checkIn, checkOut time.Time, period domain.RentPeriod) int {
	days := int(checkOut.Sub(checkIn).Hours() / 24)
	if days < 1 {
		days = 1
	}
	switch period {
	case domain.RentPerHour:
		hours := int(checkOut.Sub(checkIn).Hours())
		if hours < 1 {
			hours = 1
		}
		return hours
	case domain.RentPerWeek:
		return (days + 6) / 7
	case domain.RentPerMonth:
		return calendarMonths(checkIn, checkOut)
	case domain.RentPerYear:
		months := calendarMonths(checkIn, checkOut)
		return (months + 11) / 12
	default:
		return days
	}
}

// calendarMonths counts whole calendar months between the two dates,
// rounding leftover days up to a full month. Jan 1 to Feb 1 is one month,
// not a 31/30 fraction.
func calendarMonths(from, to time.Time) int {
	months := 0
	cur := from
	for {
		next := cur.AddDate(0, 1, 0)
		if next.After(to) {
			break
		}
		months++
		cur = next
	}
	if cur.Before(to) || months == 0 {
		months++
	}
	return months
}

// nextReference issues <PREFIX>-NNNNNN scoped per prefix. Runs inside the
// create transaction, so concurrent creators of the same prefix are already
// serialized by the property/room lock.
func nextReference(tx *gorm.DB, prefix string) (string, error) {
	var cnt int64
	err := tx.Model(&domain.Booking{}).
		Where("booking_reference LIKE ?", prefix+"-%").
		Count(&cnt).Error
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s-%06d", prefix, cnt+1), nil
}

// ListCustomers pages through the customer registry, optionally filtered by a
// case-insensitive search over name, email and phone.
func (s *Service) ListCustomers(ctx context.Context, search string, limit, offset int) ([]domain.Customer, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	q := s.db.WithContext(ctx).Model(&domain.Customer{})
	if search = strings.TrimSpace(search); search != "" {
		like := "%" + strings.ToLower(search) + "%"
		q = q.Where(
			"lower(first_name) LIKE ? OR lower(last_name) LIKE ? OR lower(email) LIKE ? OR phone LIKE ?",
			like, like, like, like,
		)
	}
	var customers []domain.Customer
	err := q.Order("last_name asc, first_name asc").Limit(limit).Offset(offset).Find(&customers).Error
	return customers, err
}

// GetCustomer returns one customer with their bookings.
func (s *Service) GetCustomer(ctx context.Context, id int64) (*domain.Customer, []domain.Booking, error) {
	var c domain.Customer
	if err := s.db.WithContext(ctx).First(&c, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, ErrNotFound
		}
		return nil, nil, err
	}
	var bookings []domain.Booking
	err := s.db.WithContext(ctx).
		Where("customer_id = ? AND is_deleted = ?", id, false).
		Order("check_in_date desc").
		Find(&bookings).Error
	if err != nil {
		return nil, nil, err
	}
	return &c, bookings, nil
}

func upsertCustomer(tx *gorm.DB, in CustomerInput) (*domain.Customer, error) {
	email := strings.ToLower(strings.TrimSpace(in.Email))
	var c domain.Customer
	err := tx.Where("email = ?", email).First(&c).Error
	switch {
	case err == nil:
		updates := map[string]interface{}{}
		if c.FirstName != in.FirstName || c.LastName != in.LastName {
			updates["first_name"] = in.FirstName
			updates["last_name"] = in.LastName
		}
		if in.Phone != "" && c.Phone != in.Phone {
			updates["phone"] = in.Phone
		}
		if len(updates) > 0 {
			if err := tx.Model(&c).Updates(updates).Error; err != nil {
				return nil, err
			}
		}
		return &c, nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		c = domain.Customer{
			FirstName: in.FirstName,
			LastName:  in.LastName,
			Email:     email,
			Phone:     in.Phone,
			IsActive:  true,
		}
		if v := validator.Validate(&c); v != nil {
			return nil, fmt.Errorf("%w: %v", ErrValidation, v)
		}
		if err := tx.Create(&c).Error; err != nil {
			return nil, err
		}
		return &c, nil
	default:
		return nil, err
	}
}

func isOverbookingConflict(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505" || pgErr.Code == "23P01"
	}
	return false
}

func parseDate(s string) (time.Time, error) {
	return time.Parse("2006-01-02", strings.TrimSpace(s))
}

func today() time.Time {
	return time.Now().UTC().Truncate(24 * time.Hour)
}
