package visit

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"propertyhub/internal/database"
	"propertyhub/internal/domain"
	"propertyhub/internal/modules/gateway"
)

type mockCheckout struct {
	mock.Mock
}

func (m *mockCheckout) InitiateForPayment(ctx context.Context, payment *domain.Payment, phone, provider string, method domain.PaymentMethod) (*gateway.InitiateResult, error) {
	args := m.Called(ctx, payment, phone, provider, method)
	var res *gateway.InitiateResult
	if v := args.Get(0); v != nil {
		res = v.(*gateway.InitiateResult)
	}
	return res, args.Error(1)
}

func (m *mockCheckout) Verify(ctx context.Context, reference string) (*domain.GatewayTransaction, error) {
	args := m.Called(ctx, reference)
	var txn *domain.GatewayTransaction
	if v := args.Get(0); v != nil {
		txn = v.(*domain.GatewayTransaction)
	}
	return txn, args.Error(1)
}

func setupVisitTest(t *testing.T) (*Service, *mockCheckout, *gorm.DB) {
	t.Helper()
	dsn := fmt.Sprintf("file:visit_test_%s?mode=memory&cache=shared", t.Name())
	db, err := database.Connect(dsn)
	if err != nil {
		t.Fatalf("failed to open sqlite db: %v", err)
	}
	db.Logger = logger.Default.LogMode(logger.Silent)
	err = db.AutoMigrate(&domain.User{}, &domain.Property{}, &domain.Payment{}, &domain.PropertyVisitPayment{})
	if err != nil {
		t.Fatalf("failed to migrate db: %v", err)
	}

	checkout := &mockCheckout{}
	svc := NewService(db, checkout, 24*time.Hour)
	return svc, checkout, db
}

func seedOwner(t *testing.T, db *gorm.DB) *domain.User {
	t.Helper()
	owner := &domain.User{
		Email:        "owner@example.com",
		PasswordHash: "x",
		FullName:     "Asha Mrema",
		Phone:        "+255713000111",
		Role:         domain.RoleCustomer,
		IsActive:     true,
	}
	if err := db.Create(owner).Error; err != nil {
		t.Fatalf("failed to seed owner: %v", err)
	}
	return owner
}

func seedGatedHouse(t *testing.T, db *gorm.DB, ownerID int64) *domain.Property {
	t.Helper()
	prop := &domain.Property{
		OwnerID:    ownerID,
		Title:      "Mbezi Beach House",
		Type:       domain.PropertyHouse,
		Address:    "Mbezi Beach, Dar es Salaam",
		RentAmount: 800000,
		RentPeriod: domain.RentPerMonth,
		VisitCost:  10000,
	}
	if err := db.Create(prop).Error; err != nil {
		t.Fatalf("failed to seed house: %v", err)
	}
	return prop
}

func TestStatusBypassesForStaffAndOwner(t *testing.T) {
	svc, _, db := setupVisitTest(t)
	owner := seedOwner(t, db)
	prop := seedGatedHouse(t, db, owner.ID)

	view, err := svc.Status(context.Background(), prop.ID, 99, domain.RoleManager)
	assert.NoError(t, err)
	assert.True(t, view.HasAccess)
	assert.Equal(t, "staff", view.Reason)
	assert.Equal(t, "Asha Mrema", view.Contact.OwnerName)
	assert.Equal(t, "+255713000111", view.Contact.OwnerPhone)

	view, err = svc.Status(context.Background(), prop.ID, owner.ID, domain.RoleCustomer)
	assert.NoError(t, err)
	assert.True(t, view.HasAccess)
	assert.Equal(t, "owner", view.Reason)
}

func TestStatusUngatedForNonHouses(t *testing.T) {
	svc, _, db := setupVisitTest(t)
	owner := seedOwner(t, db)
	hotel := &domain.Property{
		OwnerID:    owner.ID,
		Title:      "Kilima View Hotel",
		Type:       domain.PropertyHotel,
		RentPeriod: domain.RentPerDay,
		VisitCost:  10000,
	}
	if err := db.Create(hotel).Error; err != nil {
		t.Fatalf("failed to seed hotel: %v", err)
	}

	view, err := svc.Status(context.Background(), hotel.ID, 42, domain.RoleCustomer)
	assert.NoError(t, err)
	assert.True(t, view.HasAccess)
	assert.Equal(t, "ungated", view.Reason)
}

func TestStatusRequiresPaymentForGatedHouse(t *testing.T) {
	svc, _, db := setupVisitTest(t)
	owner := seedOwner(t, db)
	prop := seedGatedHouse(t, db, owner.ID)

	view, err := svc.Status(context.Background(), prop.ID, 42, domain.RoleCustomer)
	assert.NoError(t, err)
	assert.False(t, view.HasAccess)
	assert.Equal(t, "payment_required", view.Reason)
	assert.Equal(t, 10000.0, view.VisitCost)
	assert.Nil(t, view.Contact)
}

func TestStatusPaidGrantsUntilExpiry(t *testing.T) {
	svc, _, db := setupVisitTest(t)
	owner := seedOwner(t, db)
	prop := seedGatedHouse(t, db, owner.ID)

	paidAt := time.Now().UTC().Add(-1 * time.Hour)
	vp := &domain.PropertyVisitPayment{
		PropertyID: prop.ID,
		UserID:     42,
		Amount:     10000,
		Status:     domain.VisitPaymentCompleted,
		PaidAt:     &paidAt,
	}
	if err := db.Create(vp).Error; err != nil {
		t.Fatalf("failed to seed visit payment: %v", err)
	}

	view, err := svc.Status(context.Background(), prop.ID, 42, domain.RoleCustomer)
	assert.NoError(t, err)
	assert.True(t, view.HasAccess)
	assert.Equal(t, "paid", view.Reason)
	assert.NotNil(t, view.ExpiresAt)
	assert.Equal(t, "Mbezi Beach, Dar es Salaam", view.Contact.Address)

	// Push the payment outside the TTL window.
	stale := time.Now().UTC().Add(-25 * time.Hour)
	if err := db.Model(vp).Update("paid_at", stale).Error; err != nil {
		t.Fatalf("failed to backdate visit payment: %v", err)
	}

	view, err = svc.Status(context.Background(), prop.ID, 42, domain.RoleCustomer)
	assert.NoError(t, err)
	assert.False(t, view.HasAccess)
	assert.Equal(t, "expired", view.Reason)
}

func TestInitiateCreatesRowAndStartsCheckout(t *testing.T) {
	svc, checkout, db := setupVisitTest(t)
	owner := seedOwner(t, db)
	prop := seedGatedHouse(t, db, owner.ID)

	checkout.On("InitiateForPayment", mock.Anything, mock.MatchedBy(func(p *domain.Payment) bool {
		return p.Amount == 10000 && p.State == domain.PaymentPending && p.BookingID == nil
	}), "0712345678", "MPESA", domain.MethodMobileMoney).
		Return(&gateway.InitiateResult{ProviderTxnID: "azam-visit-1"}, nil)

	res, err := svc.Initiate(context.Background(), prop.ID, 42, "0712345678", "MPESA", domain.MethodMobileMoney)
	assert.NoError(t, err)
	assert.Equal(t, "azam-visit-1", res.ProviderTxnID)

	var vp domain.PropertyVisitPayment
	if err := db.Where("property_id = ? AND user_id = ?", prop.ID, 42).First(&vp).Error; err != nil {
		t.Fatalf("visit row not created: %v", err)
	}
	assert.Equal(t, domain.VisitPaymentPending, vp.Status)
	assert.Equal(t, "azam-visit-1", vp.TransactionID)
	assert.NotNil(t, vp.PaymentID)
	assert.NotEmpty(t, vp.GatewayReference)
}

func TestInitiateRejectsUngatedProperty(t *testing.T) {
	svc, _, db := setupVisitTest(t)
	owner := seedOwner(t, db)
	prop := &domain.Property{
		OwnerID:    owner.ID,
		Title:      "Free Viewing House",
		Type:       domain.PropertyHouse,
		RentAmount: 500000,
		RentPeriod: domain.RentPerMonth,
	}
	if err := db.Create(prop).Error; err != nil {
		t.Fatalf("failed to seed house: %v", err)
	}

	_, err := svc.Initiate(context.Background(), prop.ID, 42, "0712345678", "MPESA", domain.MethodMobileMoney)
	assert.ErrorIs(t, err, ErrNotGated)
}

func TestInitiateRejectsWhileAccessActive(t *testing.T) {
	svc, _, db := setupVisitTest(t)
	owner := seedOwner(t, db)
	prop := seedGatedHouse(t, db, owner.ID)

	paidAt := time.Now().UTC().Add(-1 * time.Hour)
	vp := &domain.PropertyVisitPayment{
		PropertyID: prop.ID,
		UserID:     42,
		Amount:     10000,
		Status:     domain.VisitPaymentCompleted,
		PaidAt:     &paidAt,
	}
	if err := db.Create(vp).Error; err != nil {
		t.Fatalf("failed to seed visit payment: %v", err)
	}

	_, err := svc.Initiate(context.Background(), prop.ID, 42, "0712345678", "MPESA", domain.MethodMobileMoney)
	assert.ErrorIs(t, err, ErrAlreadyActive)
}

func TestInitiateReusesExpiredRow(t *testing.T) {
	svc, checkout, db := setupVisitTest(t)
	owner := seedOwner(t, db)
	prop := seedGatedHouse(t, db, owner.ID)

	stale := time.Now().UTC().Add(-48 * time.Hour)
	vp := &domain.PropertyVisitPayment{
		PropertyID: prop.ID,
		UserID:     42,
		Amount:     5000,
		Status:     domain.VisitPaymentCompleted,
		PaidAt:     &stale,
	}
	if err := db.Create(vp).Error; err != nil {
		t.Fatalf("failed to seed visit payment: %v", err)
	}

	checkout.On("InitiateForPayment", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(&gateway.InitiateResult{ProviderTxnID: "azam-visit-2"}, nil)

	_, err := svc.Initiate(context.Background(), prop.ID, 42, "0712345678", "MPESA", domain.MethodMobileMoney)
	assert.NoError(t, err)

	var rows []domain.PropertyVisitPayment
	if err := db.Where("property_id = ? AND user_id = ?", prop.ID, 42).Find(&rows).Error; err != nil {
		t.Fatalf("failed to list visit rows: %v", err)
	}
	assert.Len(t, rows, 1)
	assert.Equal(t, domain.VisitPaymentPending, rows[0].Status)
	assert.Equal(t, 10000.0, rows[0].Amount)
	assert.Nil(t, rows[0].PaidAt)
}

func TestPaymentSettledUnlocksAccess(t *testing.T) {
	svc, checkout, db := setupVisitTest(t)
	owner := seedOwner(t, db)
	prop := seedGatedHouse(t, db, owner.ID)

	checkout.On("InitiateForPayment", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(&gateway.InitiateResult{ProviderTxnID: "azam-visit-3"}, nil)

	if _, err := svc.Initiate(context.Background(), prop.ID, 42, "0712345678", "MPESA", domain.MethodMobileMoney); err != nil {
		t.Fatalf("Initiate returned error: %v", err)
	}

	var vp domain.PropertyVisitPayment
	if err := db.Where("property_id = ? AND user_id = ?", prop.ID, 42).First(&vp).Error; err != nil {
		t.Fatalf("visit row not found: %v", err)
	}

	svc.PaymentSettled(context.Background(), &domain.Payment{ID: *vp.PaymentID})

	view, err := svc.Status(context.Background(), prop.ID, 42, domain.RoleCustomer)
	assert.NoError(t, err)
	assert.True(t, view.HasAccess)
	assert.Equal(t, "paid", view.Reason)
}

func TestPaymentSettledIgnoresBookingPayments(t *testing.T) {
	svc, _, _ := setupVisitTest(t)
	// A payment with no visit row must not panic or create anything.
	svc.PaymentSettled(context.Background(), &domain.Payment{ID: 9999})
}

func TestVerifyQueriesProviderForPendingRow(t *testing.T) {
	svc, checkout, db := setupVisitTest(t)
	owner := seedOwner(t, db)
	prop := seedGatedHouse(t, db, owner.ID)

	vp := &domain.PropertyVisitPayment{
		PropertyID:       prop.ID,
		UserID:           42,
		Amount:           10000,
		Status:           domain.VisitPaymentPending,
		GatewayReference: "VST-1-42-1700000000",
	}
	if err := db.Create(vp).Error; err != nil {
		t.Fatalf("failed to seed visit payment: %v", err)
	}

	checkout.On("Verify", mock.Anything, "VST-1-42-1700000000").
		Return(nil, errors.New("provider timeout"))

	view, err := svc.Verify(context.Background(), prop.ID, 42, domain.RoleCustomer)
	assert.NoError(t, err)
	assert.False(t, view.HasAccess)
	assert.Equal(t, "payment_pending", view.Reason)
	checkout.AssertCalled(t, "Verify", mock.Anything, "VST-1-42-1700000000")
}
