package booking

import (
	"context"
	"sort"
	"time"

	"propertyhub/internal/domain"
)

// ViewSource labels where an occupancy entry came from: a staff-created
// booking, a customer self-service booking, or an external lease.
type ViewSource string

const (
	SourceDirect ViewSource = "direct"
	SourceMobile ViewSource = "mobile"
	SourceLease  ViewSource = "lease"
)

// OccupancyEntry is one interval on a property's timeline. Lease entries
// carry no reference or payment data.
type OccupancyEntry struct {
	Source     ViewSource `json:"source"`
	Reference  string     `json:"reference,omitempty"`
	BookingID  *int64     `json:"booking_id,omitempty"`
	LeaseID    *int64     `json:"lease_id,omitempty"`
	RoomNumber *string    `json:"room_number,omitempty"`
	Start      time.Time  `json:"start"`
	End        *time.Time `json:"end,omitempty"`
	Nights     int        `json:"nights,omitempty"`
	Status     string     `json:"status,omitempty"`
	Tenant     string     `json:"tenant,omitempty"`
}

// Timeline merges the property's blocking bookings and active leases into one
// chronological view. The sweeps never run here; this is a pure read.
func (s *Service) Timeline(ctx context.Context, propertyID int64) ([]OccupancyEntry, error) {
	var bookings []domain.Booking
	err := s.db.WithContext(ctx).
		Preload("Customer").
		Where("property_id = ?", propertyID).
		Where("booking_status IN ?", []domain.BookingStatus{domain.BookingPending, domain.BookingConfirmed, domain.BookingCheckedIn}).
		Where("is_deleted = ?", false).
		Find(&bookings).Error
	if err != nil {
		return nil, err
	}

	creatorRoles, err := s.creatorRoles(ctx, bookings)
	if err != nil {
		return nil, err
	}

	entries := make([]OccupancyEntry, 0, len(bookings))
	for i := range bookings {
		b := &bookings[i]
		source := SourceDirect
		if creatorRoles[b.CreatedByID] == domain.RoleCustomer {
			source = SourceMobile
		}
		end := b.CheckOutDate
		tenant := ""
		if b.Customer != nil {
			tenant = b.Customer.FullName()
		}
		entries = append(entries, OccupancyEntry{
			Source:     source,
			Reference:  b.BookingReference,
			BookingID:  &b.ID,
			RoomNumber: b.RoomNumber,
			Start:      b.CheckInDate,
			End:        &end,
			Nights:     b.DurationDays(),
			Status:     string(b.BookingStatus),
			Tenant:     tenant,
		})
	}

	var leases []domain.Lease
	err = s.db.WithContext(ctx).
		Where("property_id = ? AND status = ?", propertyID, domain.LeaseActive).
		Find(&leases).Error
	if err != nil {
		return nil, err
	}
	for i := range leases {
		l := &leases[i]
		entries = append(entries, OccupancyEntry{
			Source:  SourceLease,
			LeaseID: &l.ID,
			Start:   l.StartDate,
			End:     l.EndDate,
			Status:  string(l.Status),
		})
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Start.Before(entries[j].Start)
	})
	return entries, nil
}

func (s *Service) creatorRoles(ctx context.Context, bookings []domain.Booking) (map[int64]domain.Role, error) {
	ids := make([]int64, 0, len(bookings))
	seen := map[int64]bool{}
	for i := range bookings {
		id := bookings[i].CreatedByID
		if id != 0 && !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	roles := make(map[int64]domain.Role, len(ids))
	if len(ids) == 0 {
		return roles, nil
	}

	var users []domain.User
	if err := s.db.WithContext(ctx).Where("id IN ?", ids).Find(&users).Error; err != nil {
		return nil, err
	}
	for i := range users {
		roles[users[i].ID] = users[i].Role
	}
	return roles, nil
}
