package registry

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"propertyhub/internal/database"
	"propertyhub/internal/domain"
)

func setupTestService(t *testing.T) (*Service, *gorm.DB) {
	t.Helper()
	dsn := fmt.Sprintf("file:registry_test_%s?mode=memory&cache=shared", t.Name())
	db, err := database.Connect(dsn)
	if err != nil {
		t.Fatalf("failed to open sqlite db: %v", err)
	}
	db.Logger = logger.Default.LogMode(logger.Silent)
	err = db.AutoMigrate(&domain.Property{}, &domain.Room{}, &domain.Booking{}, &domain.Lease{})
	if err != nil {
		t.Fatalf("failed to migrate db: %v", err)
	}
	return NewService(db), db
}

func today() time.Time {
	return time.Now().UTC().Truncate(24 * time.Hour)
}

func seedProperty(t *testing.T, db *gorm.DB, kind domain.PropertyType) *domain.Property {
	t.Helper()
	prop := &domain.Property{
		OwnerID:    1,
		Title:      "Registry Test Property",
		Type:       kind,
		RentPeriod: domain.RentPerDay,
		Status:     domain.PropertyAvailable,
	}
	if kind == domain.PropertyHouse {
		prop.RentAmount = 800000
		prop.RentPeriod = domain.RentPerMonth
	}
	if err := db.Create(prop).Error; err != nil {
		t.Fatalf("failed to seed property: %v", err)
	}
	return prop
}

func seedRoom(t *testing.T, db *gorm.DB, propertyID int64, number string) *domain.Room {
	t.Helper()
	room := &domain.Room{
		PropertyID: propertyID,
		RoomNumber: number,
		Capacity:   2,
		BaseRate:   50000,
		Status:     domain.RoomAvailable,
		IsActive:   true,
	}
	if err := db.Create(room).Error; err != nil {
		t.Fatalf("failed to seed room: %v", err)
	}
	return room
}

func seedCurrentBooking(t *testing.T, db *gorm.DB, propertyID int64, roomNumber string) *domain.Booking {
	t.Helper()
	b := &domain.Booking{
		BookingReference: fmt.Sprintf("HTL-%06d", time.Now().UnixNano()%1000000),
		PropertyID:       propertyID,
		CustomerID:       1,
		RoomNumber:       &roomNumber,
		CheckInDate:      today().AddDate(0, 0, -1),
		CheckOutDate:     today().AddDate(0, 0, 2),
		BookingStatus:    domain.BookingCheckedIn,
		PaymentStatus:    domain.BookingPaymentPending,
		TotalAmount:      150000,
	}
	if err := db.Create(b).Error; err != nil {
		t.Fatalf("failed to seed booking: %v", err)
	}
	return b
}

func TestAddRoom(t *testing.T) {
	svc, _ := setupTestService(t)
	prop := seedProperty(t, svc.db, domain.PropertyHotel)

	room, err := svc.AddRoom(context.Background(), AddRoomRequest{
		PropertyID: prop.ID,
		RoomNumber: " 101 ",
		RoomType:   "double",
		BaseRate:   50000,
	})
	if err != nil {
		t.Fatalf("AddRoom returned error: %v", err)
	}
	if room.RoomNumber != "101" {
		t.Fatalf("expected trimmed room number, got %q", room.RoomNumber)
	}
	if room.Capacity != 1 {
		t.Fatalf("expected capacity defaulted to 1, got %d", room.Capacity)
	}
	if room.Status != domain.RoomAvailable || !room.IsActive {
		t.Fatalf("expected new room available and active")
	}
}

func TestAddRoomRejectsDuplicate(t *testing.T) {
	svc, db := setupTestService(t)
	prop := seedProperty(t, db, domain.PropertyHotel)
	seedRoom(t, db, prop.ID, "101")

	_, err := svc.AddRoom(context.Background(), AddRoomRequest{
		PropertyID: prop.ID,
		RoomNumber: "101",
		BaseRate:   50000,
	})
	if !errors.Is(err, ErrDuplicateRoom) {
		t.Fatalf("expected ErrDuplicateRoom, got %v", err)
	}
}

func TestAddRoomRejectsBadRateAndKind(t *testing.T) {
	svc, db := setupTestService(t)
	hotel := seedProperty(t, db, domain.PropertyHotel)
	house := seedProperty(t, db, domain.PropertyHouse)

	_, err := svc.AddRoom(context.Background(), AddRoomRequest{
		PropertyID: hotel.ID,
		RoomNumber: "101",
		BaseRate:   0,
	})
	if !errors.Is(err, ErrInvalidRate) {
		t.Fatalf("expected ErrInvalidRate, got %v", err)
	}

	_, err = svc.AddRoom(context.Background(), AddRoomRequest{
		PropertyID: house.ID,
		RoomNumber: "101",
		BaseRate:   50000,
	})
	if !errors.Is(err, ErrPropertyKind) {
		t.Fatalf("expected ErrPropertyKind, got %v", err)
	}

	_, err = svc.AddRoom(context.Background(), AddRoomRequest{
		PropertyID: hotel.ID,
		RoomNumber: "   ",
		BaseRate:   50000,
	})
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation for blank room number, got %v", err)
	}
}

func TestSyncStatusFromBookings(t *testing.T) {
	svc, db := setupTestService(t)
	prop := seedProperty(t, db, domain.PropertyHotel)
	room := seedRoom(t, db, prop.ID, "101")
	b := seedCurrentBooking(t, db, prop.ID, "101")

	if err := svc.SyncStatusFromBookings(context.Background(), room.ID, today()); err != nil {
		t.Fatalf("sync returned error: %v", err)
	}
	var after domain.Room
	if err := db.First(&after, room.ID).Error; err != nil {
		t.Fatalf("failed to reload room: %v", err)
	}
	if after.Status != domain.RoomOccupied {
		t.Fatalf("expected occupied, got %s", after.Status)
	}
	if after.CurrentBookingID == nil || *after.CurrentBookingID != b.ID {
		t.Fatalf("expected current booking link to %d", b.ID)
	}

	// Booking leaves: room frees up and the link is dropped.
	if err := db.Model(b).Update("booking_status", domain.BookingCheckedOut).Error; err != nil {
		t.Fatalf("failed to check out booking: %v", err)
	}
	if err := svc.SyncStatusFromBookings(context.Background(), room.ID, today()); err != nil {
		t.Fatalf("sync returned error: %v", err)
	}
	if err := db.First(&after, room.ID).Error; err != nil {
		t.Fatalf("failed to reload room: %v", err)
	}
	if after.Status != domain.RoomAvailable {
		t.Fatalf("expected available after checkout, got %s", after.Status)
	}
	if after.CurrentBookingID != nil {
		t.Fatalf("expected current booking link cleared")
	}
}

func TestSyncKeepsStickyStatuses(t *testing.T) {
	svc, db := setupTestService(t)
	prop := seedProperty(t, db, domain.PropertyHotel)
	room := seedRoom(t, db, prop.ID, "101")
	if err := db.Model(room).Update("status", domain.RoomMaintenance).Error; err != nil {
		t.Fatalf("failed to set maintenance: %v", err)
	}
	seedCurrentBooking(t, db, prop.ID, "101")

	if err := svc.SyncStatusFromBookings(context.Background(), room.ID, today()); err != nil {
		t.Fatalf("sync returned error: %v", err)
	}
	var after domain.Room
	if err := db.First(&after, room.ID).Error; err != nil {
		t.Fatalf("failed to reload room: %v", err)
	}
	if after.Status != domain.RoomMaintenance {
		t.Fatalf("expected maintenance to stick, got %s", after.Status)
	}
	if after.CurrentBookingID == nil {
		t.Fatalf("expected booking link kept for checkout tracking")
	}
}

func TestSetRoomStatusReturnToServiceRederives(t *testing.T) {
	svc, db := setupTestService(t)
	prop := seedProperty(t, db, domain.PropertyHotel)
	room := seedRoom(t, db, prop.ID, "101")
	seedCurrentBooking(t, db, prop.ID, "101")

	got, err := svc.SetRoomStatus(context.Background(), room.ID, domain.RoomOutOfOrder, today())
	if err != nil {
		t.Fatalf("SetRoomStatus returned error: %v", err)
	}
	if got.Status != domain.RoomOutOfOrder {
		t.Fatalf("expected out_of_order, got %s", got.Status)
	}

	// Returning to service re-derives occupancy from the current booking.
	got, err = svc.SetRoomStatus(context.Background(), room.ID, domain.RoomAvailable, today())
	if err != nil {
		t.Fatalf("SetRoomStatus returned error: %v", err)
	}
	if got.Status != domain.RoomOccupied {
		t.Fatalf("expected occupied after return to service, got %s", got.Status)
	}
}

func TestRefreshPropertyStatusHotel(t *testing.T) {
	svc, db := setupTestService(t)
	prop := seedProperty(t, db, domain.PropertyHotel)
	r1 := seedRoom(t, db, prop.ID, "101")
	r2 := seedRoom(t, db, prop.ID, "102")

	if err := svc.RefreshPropertyStatus(context.Background(), prop.ID, today()); err != nil {
		t.Fatalf("refresh returned error: %v", err)
	}
	var after domain.Property
	if err := db.First(&after, prop.ID).Error; err != nil {
		t.Fatalf("failed to reload property: %v", err)
	}
	if after.Status != domain.PropertyAvailable {
		t.Fatalf("expected available, got %s", after.Status)
	}

	for _, r := range []*domain.Room{r1, r2} {
		if err := db.Model(r).Update("status", domain.RoomOccupied).Error; err != nil {
			t.Fatalf("failed to occupy room: %v", err)
		}
	}
	if err := svc.RefreshPropertyStatus(context.Background(), prop.ID, today()); err != nil {
		t.Fatalf("refresh returned error: %v", err)
	}
	if err := db.First(&after, prop.ID).Error; err != nil {
		t.Fatalf("failed to reload property: %v", err)
	}
	if after.Status != domain.PropertyRented {
		t.Fatalf("expected rented with every room occupied, got %s", after.Status)
	}
}

func TestRefreshPropertyStatusHouse(t *testing.T) {
	svc, db := setupTestService(t)
	prop := seedProperty(t, db, domain.PropertyHouse)

	b := &domain.Booking{
		BookingReference: "HSE-000001",
		PropertyID:       prop.ID,
		CustomerID:       1,
		CheckInDate:      today().AddDate(0, 0, -5),
		CheckOutDate:     today().AddDate(0, 0, 25),
		BookingStatus:    domain.BookingConfirmed,
		PaymentStatus:    domain.BookingPaymentPending,
		TotalAmount:      800000,
	}
	if err := db.Create(b).Error; err != nil {
		t.Fatalf("failed to seed booking: %v", err)
	}

	if err := svc.RefreshPropertyStatus(context.Background(), prop.ID, today()); err != nil {
		t.Fatalf("refresh returned error: %v", err)
	}
	var after domain.Property
	if err := db.First(&after, prop.ID).Error; err != nil {
		t.Fatalf("failed to reload property: %v", err)
	}
	if after.Status != domain.PropertyRented {
		t.Fatalf("expected rented while booking covers today, got %s", after.Status)
	}

	if err := db.Model(b).Update("booking_status", domain.BookingCancelled).Error; err != nil {
		t.Fatalf("failed to cancel booking: %v", err)
	}
	if err := svc.RefreshPropertyStatus(context.Background(), prop.ID, today()); err != nil {
		t.Fatalf("refresh returned error: %v", err)
	}
	if err := db.First(&after, prop.ID).Error; err != nil {
		t.Fatalf("failed to reload property: %v", err)
	}
	if after.Status != domain.PropertyAvailable {
		t.Fatalf("expected available after cancel, got %s", after.Status)
	}
}

func TestSyncAllProperties(t *testing.T) {
	svc, db := setupTestService(t)
	prop := seedProperty(t, db, domain.PropertyHotel)
	room := seedRoom(t, db, prop.ID, "101")
	seedCurrentBooking(t, db, prop.ID, "101")

	if err := svc.SyncAllProperties(context.Background()); err != nil {
		t.Fatalf("SyncAllProperties returned error: %v", err)
	}
	var after domain.Room
	if err := db.First(&after, room.ID).Error; err != nil {
		t.Fatalf("failed to reload room: %v", err)
	}
	if after.Status != domain.RoomOccupied {
		t.Fatalf("expected occupied after full sync, got %s", after.Status)
	}
}
