package registry

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
	"propertyhub/internal/pkg/validator"
)

// Service keeps Room.status consistent with actual booking state. Statuses
// maintenance and out_of_order are sticky: only an explicit admin action
// changes them, never a sync.
type Service struct {
	db *gorm.DB
}

func NewService(db *gorm.DB) *Service {
	return &Service{db: db}
}

type AddRoomRequest struct {
	PropertyID  int64   `json:"property_id" binding:"required"`
	RoomNumber  string  `json:"room_number" binding:"required"`
	RoomType    string  `json:"room_type"`
	FloorNumber *int    `json:"floor_number"`
	Capacity    int     `json:"capacity"`
	BedType     string  `json:"bed_type"`
	BaseRate    float64 `json:"base_rate"`
}

func (s *Service) AddRoom(ctx context.Context, req AddRoomRequest) (*domain.Room, error) {
	if req.BaseRate <= 0 {
		return nil, ErrInvalidRate
	}
	if req.Capacity == 0 {
		req.Capacity = 1
	}
	if req.Capacity < 1 {
		return nil, ErrInvalidCapacity
	}

	var prop domain.Property
	if err := s.db.WithContext(ctx).First(&prop, req.PropertyID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if !prop.HasRooms() {
		return nil, ErrPropertyKind
	}

	room := &domain.Room{
		PropertyID:  req.PropertyID,
		RoomNumber:  strings.TrimSpace(req.RoomNumber),
		RoomType:    req.RoomType,
		FloorNumber: req.FloorNumber,
		Capacity:    req.Capacity,
		BedType:     req.BedType,
		BaseRate:    req.BaseRate,
		Status:      domain.RoomAvailable,
		IsActive:    true,
	}
	if v := validator.Validate(room); v != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, v)
	}

	var existing int64
	err := s.db.WithContext(ctx).Model(&domain.Room{}).
		Where("property_id = ? AND room_number = ?", room.PropertyID, room.RoomNumber).
		Count(&existing).Error
	if err != nil {
		return nil, err
	}
	if existing > 0 {
		return nil, ErrDuplicateRoom
	}

	if err := s.db.WithContext(ctx).Create(room).Error; err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicateRoom
		}
		return nil, err
	}
	return room, nil
}

// SyncStatusFromBookings applies the canonical rule: the latest non-cancelled
// booking of this room whose interval contains today makes the room occupied;
// with no such booking an occupied room resets to available. Must run after
// every booking transition that can change occupancy.
func (s *Service) SyncStatusFromBookings(ctx context.Context, roomID int64, today time.Time) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var room domain.Room
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&room, roomID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}
		return syncRoomTx(tx, &room, today)
	})
}

// SyncRoomTx runs the same rule inside a caller-owned transaction; the
// booking manager uses it right after a transition commits its row changes.
func SyncRoomTx(tx *gorm.DB, room *domain.Room, today time.Time) error {
	return syncRoomTx(tx, room, today)
}

func syncRoomTx(tx *gorm.DB, room *domain.Room, today time.Time) error {
	var current domain.Booking
	err := tx.
		Where("property_id = ? AND room_number = ?", room.PropertyID, room.RoomNumber).
		Where("booking_status NOT IN ?", []domain.BookingStatus{domain.BookingCancelled}).
		Where("is_deleted = ?", false).
		Where("check_in_date <= ? AND check_out_date > ?", today, today).
		Order("created_at desc").
		First(&current).Error

	switch {
	case err == nil:
		if room.Status == domain.RoomMaintenance || room.Status == domain.RoomOutOfOrder {
			// Sticky status wins; keep the link for checkout tracking.
			return tx.Model(room).Update("current_booking_id", current.ID).Error
		}
		return tx.Model(room).Updates(map[string]interface{}{
			"status":             domain.RoomOccupied,
			"current_booking_id": current.ID,
		}).Error
	case errors.Is(err, gorm.ErrRecordNotFound):
		if room.Status != domain.RoomOccupied {
			// Sticky or already free, just drop a stale link.
			if room.CurrentBookingID != nil {
				return tx.Model(room).Update("current_booking_id", nil).Error
			}
			return nil
		}
		return tx.Model(room).Updates(map[string]interface{}{
			"status":             domain.RoomAvailable,
			"current_booking_id": nil,
		}).Error
	default:
		return err
	}
}

// SetRoomStatus is the explicit admin action that moves a room in or out of
// the sticky maintenance / out_of_order states.
func (s *Service) SetRoomStatus(ctx context.Context, roomID int64, status domain.RoomStatus, today time.Time) (*domain.Room, error) {
	var room domain.Room
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&room, roomID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}
		if status == domain.RoomMaintenance || status == domain.RoomOutOfOrder {
			return tx.Model(&room).Update("status", status).Error
		}
		// Returning to service: re-derive from bookings.
		if err := tx.Model(&room).Update("status", domain.RoomAvailable).Error; err != nil {
			return err
		}
		room.Status = domain.RoomAvailable
		return syncRoomTx(tx, &room, today)
	})
	if err != nil {
		return nil, err
	}
	if err := s.db.WithContext(ctx).First(&room, roomID).Error; err != nil {
		return nil, err
	}
	return &room, nil
}

// RefreshPropertyStatus derives the property-level status: rented when every
// active room is occupied (hotel/lodge) or a blocking booking/lease covers
// today (house/venue), available otherwise.
func (s *Service) RefreshPropertyStatus(ctx context.Context, propertyID int64, today time.Time) error {
	return RefreshPropertyStatusTx(s.db.WithContext(ctx), propertyID, today)
}

func RefreshPropertyStatusTx(tx *gorm.DB, propertyID int64, today time.Time) error {
	var prop domain.Property
	if err := tx.First(&prop, propertyID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		return err
	}

	status := domain.PropertyAvailable
	if prop.HasRooms() {
		var total, occupied int64
		if err := tx.Model(&domain.Room{}).
			Where("property_id = ? AND is_active = ?", propertyID, true).
			Count(&total).Error; err != nil {
			return err
		}
		if err := tx.Model(&domain.Room{}).
			Where("property_id = ? AND is_active = ? AND status = ?", propertyID, true, domain.RoomOccupied).
			Count(&occupied).Error; err != nil {
			return err
		}
		if total > 0 && occupied == total {
			status = domain.PropertyRented
		}
	} else {
		var blocking int64
		err := tx.Model(&domain.Booking{}).
			Where("property_id = ?", propertyID).
			Where("booking_status IN ?", []domain.BookingStatus{domain.BookingPending, domain.BookingConfirmed, domain.BookingCheckedIn}).
			Where("is_deleted = ?", false).
			Where("check_in_date <= ? AND check_out_date > ?", today, today).
			Count(&blocking).Error
		if err != nil {
			return err
		}
		var leases int64
		err = tx.Model(&domain.Lease{}).
			Where("property_id = ? AND status = ?", propertyID, domain.LeaseActive).
			Where("start_date <= ?", today).
			Where("end_date IS NULL OR end_date > ?", today).
			Count(&leases).Error
		if err != nil {
			return err
		}
		if blocking > 0 || leases > 0 {
			status = domain.PropertyRented
		}
	}

	if prop.Status == status {
		return nil
	}
	return tx.Model(&prop).Update("status", status).Error
}

// ListRooms returns the rooms of a property, current bookings included.
func (s *Service) ListRooms(ctx context.Context, propertyID int64) ([]domain.Room, error) {
	var rooms []domain.Room
	err := s.db.WithContext(ctx).
		Preload("CurrentBooking").
		Where("property_id = ?", propertyID).
		Order("room_number asc").
		Find(&rooms).Error
	if err != nil {
		return nil, err
	}
	return rooms, nil
}

// SyncAll re-derives every room of a property; used by the reconciliation
// sweep.
func (s *Service) SyncAll(ctx context.Context, propertyID int64, today time.Time) error {
	var rooms []domain.Room
	if err := s.db.WithContext(ctx).Where("property_id = ?", propertyID).Find(&rooms).Error; err != nil {
		return err
	}
	for i := range rooms {
		if err := s.SyncStatusFromBookings(ctx, rooms[i].ID, today); err != nil {
			logrus.WithError(err).WithField("room_id", rooms[i].ID).Error("room sync failed")
		}
	}
	return s.RefreshPropertyStatus(ctx, propertyID, today)
}

// SyncAllProperties runs SyncAll across every property. The nightly job
// calls it so manual status edits and missed transitions converge.
func (s *Service) SyncAllProperties(ctx context.Context) error {
	var ids []int64
	if err := s.db.WithContext(ctx).Model(&domain.Property{}).Pluck("id", &ids).Error; err != nil {
		return err
	}
	today := time.Now().UTC().Truncate(24 * time.Hour)
	for _, id := range ids {
		if err := s.SyncAll(ctx, id, today); err != nil {
			logrus.WithError(err).WithField("property_id", id).Error("property sync failed")
		}
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return strings.Contains(strings.ToLower(err.Error()), "unique")
}
