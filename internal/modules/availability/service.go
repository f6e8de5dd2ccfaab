package availability

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"propertyhub/internal/domain"
)

// blockingStatuses are the booking states that count against availability.
var blockingStatuses = []domain.BookingStatus{
	domain.BookingPending,
	domain.BookingConfirmed,
	domain.BookingCheckedIn,
}

// CountBlocking counts non-deleted blocking bookings of a property (or one
// room of it) that overlap [start, end). Two intervals [a,b) and [c,d)
// conflict iff a < d && c < b. Exported so the booking manager can re-check
// inside its own locked transaction.
func CountBlocking(db *gorm.DB, propertyID int64, roomNumber *string, start, end time.Time) (int64, error) {
	q := db.Model(&domain.Booking{}).
		Where("property_id = ?", propertyID).
		Where("booking_status IN ?", blockingStatuses).
		Where("is_deleted = ?", false).
		Where("check_in_date < ? AND check_out_date > ?", end, start)
	if roomNumber != nil {
		q = q.Where("room_number = ?", *roomNumber)
	}
	var cnt int64
	if err := q.Count(&cnt).Error; err != nil {
		return 0, err
	}
	return cnt, nil
}

// CountActiveLeases counts active leases of the property overlapping
// [start, end). Leases are written by the leasing collaborator; an active
// one blocks the whole property.
func CountActiveLeases(db *gorm.DB, propertyID int64, start, end time.Time) (int64, error) {
	var cnt int64
	err := db.Model(&domain.Lease{}).
		Where("property_id = ?", propertyID).
		Where("status = ?", domain.LeaseActive).
		Where("start_date < ?", end).
		Where("end_date IS NULL OR end_date > ?", start).
		Count(&cnt).Error
	if err != nil {
		return 0, err
	}
	return cnt, nil
}

type Service struct {
	db *gorm.DB
}

func NewService(db *gorm.DB) *Service {
	return &Service{db: db}
}

// IsAvailable answers whether property P is free for [start, end). For a
// hotel/lodge the property is available when any bookable room is free.
// Past intervals are allowed (historical queries).
func (s *Service) IsAvailable(ctx context.Context, propertyID int64, start, end time.Time) (bool, error) {
	if !end.After(start) {
		return false, ErrInvalidInterval
	}

	prop, err := s.getProperty(ctx, propertyID)
	if err != nil {
		return false, err
	}

	db := s.db.WithContext(ctx)

	leases, err := CountActiveLeases(db, propertyID, start, end)
	if err != nil {
		return false, err
	}
	if leases > 0 {
		return false, nil
	}

	if !prop.HasRooms() {
		cnt, err := CountBlocking(db, propertyID, nil, start, end)
		if err != nil {
			return false, err
		}
		return cnt == 0, nil
	}

	rooms, err := s.bookableRooms(ctx, propertyID)
	if err != nil {
		return false, err
	}
	for i := range rooms {
		cnt, err := CountBlocking(db, propertyID, &rooms[i].RoomNumber, start, end)
		if err != nil {
			return false, err
		}
		if cnt == 0 {
			return true, nil
		}
	}
	return false, nil
}

// IsRoomAvailable applies the interval test against bookings of one specific
// room.
func (s *Service) IsRoomAvailable(ctx context.Context, propertyID int64, roomNumber string, start, end time.Time) (bool, error) {
	if !end.After(start) {
		return false, ErrInvalidInterval
	}
	if _, err := s.getProperty(ctx, propertyID); err != nil {
		return false, err
	}

	cnt, err := CountBlocking(s.db.WithContext(ctx), propertyID, &roomNumber, start, end)
	if err != nil {
		return false, err
	}
	return cnt == 0, nil
}

// NextAvailableDate finds the smallest date, starting today, not covered by
// any blocking booking or active lease. For hotels/lodges it is the earliest
// date any bookable room frees up.
func (s *Service) NextAvailableDate(ctx context.Context, propertyID int64, today time.Time) (time.Time, error) {
	prop, err := s.getProperty(ctx, propertyID)
	if err != nil {
		return time.Time{}, err
	}

	if !prop.HasRooms() {
		return s.nextFreeDate(ctx, propertyID, nil, today)
	}

	rooms, err := s.bookableRooms(ctx, propertyID)
	if err != nil {
		return time.Time{}, err
	}
	if len(rooms) == 0 {
		return time.Time{}, ErrNotFound
	}

	best := time.Time{}
	for i := range rooms {
		d, err := s.nextFreeDate(ctx, propertyID, &rooms[i].RoomNumber, today)
		if err != nil {
			return time.Time{}, err
		}
		if best.IsZero() || d.Before(best) {
			best = d
		}
	}
	return best, nil
}

// nextFreeDate walks blocking intervals in check-in order, advancing the
// candidate date past every interval that covers it.
func (s *Service) nextFreeDate(ctx context.Context, propertyID int64, roomNumber *string, today time.Time) (time.Time, error) {
	q := s.db.WithContext(ctx).
		Where("property_id = ?", propertyID).
		Where("booking_status IN ?", blockingStatuses).
		Where("is_deleted = ?", false).
		Where("check_out_date > ?", today).
		Order("check_in_date asc")
	if roomNumber != nil {
		q = q.Where("room_number = ?", *roomNumber)
	}

	var bookings []domain.Booking
	if err := q.Find(&bookings).Error; err != nil {
		return time.Time{}, err
	}

	var leases []domain.Lease
	if roomNumber == nil {
		err := s.db.WithContext(ctx).
			Where("property_id = ?", propertyID).
			Where("status = ?", domain.LeaseActive).
			Where("end_date IS NULL OR end_date > ?", today).
			Order("start_date asc").
			Find(&leases).Error
		if err != nil {
			return time.Time{}, err
		}
	}

	d := today
	for changed := true; changed; {
		changed = false
		for i := range bookings {
			if bookings[i].Covers(d) {
				d = bookings[i].CheckOutDate
				changed = true
			}
		}
		for i := range leases {
			l := &leases[i]
			if l.BlocksInterval(d, d.AddDate(0, 0, 1)) {
				if l.EndDate == nil {
					// Open-ended lease: nothing frees up behind it.
					return time.Time{}, ErrNotFound
				}
				d = *l.EndDate
				changed = true
			}
		}
	}
	return d, nil
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

func (s *Service) bookableRooms(ctx context.Context, propertyID int64) ([]domain.Room, error) {
	var rooms []domain.Room
	err := s.db.WithContext(ctx).
		Where("property_id = ?", propertyID).
		Where("is_active = ?", true).
		Where("status NOT IN ?", []domain.RoomStatus{domain.RoomMaintenance, domain.RoomOutOfOrder}).
		Order("room_number asc").
		Find(&rooms).Error
	if err != nil {
		return nil, err
	}
	return rooms, nil
}
