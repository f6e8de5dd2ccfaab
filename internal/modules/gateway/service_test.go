package gateway

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
)

type mockClient struct {
	mock.Mock
}

func (m *mockClient) InitiateMNO(ctx context.Context, req CheckoutRequest) (*CheckoutResult, error) {
	args := m.Called(ctx, req)
	var res *CheckoutResult
	if v := args.Get(0); v != nil {
		res = v.(*CheckoutResult)
	}
	return res, args.Error(1)
}

func (m *mockClient) InitiateBank(ctx context.Context, req CheckoutRequest) (*CheckoutResult, error) {
	args := m.Called(ctx, req)
	var res *CheckoutResult
	if v := args.Get(0); v != nil {
		res = v.(*CheckoutResult)
	}
	return res, args.Error(1)
}

func (m *mockClient) Query(ctx context.Context, referenceID string) (*QueryResult, error) {
	args := m.Called(ctx, referenceID)
	var res *QueryResult
	if v := args.Get(0); v != nil {
		res = v.(*QueryResult)
	}
	return res, args.Error(1)
}

func (m *mockClient) VerifySignature(body []byte, signature string) bool {
	return m.Called(body, signature).Bool(0)
}

type mockLedger struct {
	mock.Mock
}

func (m *mockLedger) CreatePendingPayment(ctx context.Context, bookingID int64, amount float64, method domain.PaymentMethod, provider string, actorID int64) (*domain.Payment, error) {
	args := m.Called(ctx, bookingID, amount, method, provider, actorID)
	var p *domain.Payment
	if v := args.Get(0); v != nil {
		p = v.(*domain.Payment)
	}
	return p, args.Error(1)
}

func (m *mockLedger) SettlePayment(ctx context.Context, paymentID int64) (*domain.Payment, error) {
	args := m.Called(ctx, paymentID)
	var p *domain.Payment
	if v := args.Get(0); v != nil {
		p = v.(*domain.Payment)
	}
	return p, args.Error(1)
}

func (m *mockLedger) FailPayment(ctx context.Context, paymentID int64) (*domain.Payment, error) {
	args := m.Called(ctx, paymentID)
	var p *domain.Payment
	if v := args.Get(0); v != nil {
		p = v.(*domain.Payment)
	}
	return p, args.Error(1)
}

type recordingListener struct {
	settled []*domain.Payment
}

func (l *recordingListener) PaymentSettled(_ context.Context, payment *domain.Payment) {
	l.settled = append(l.settled, payment)
}

func setupGatewayTest(t *testing.T) (*Service, *mockClient, *mockLedger, *gorm.DB) {
	t.Helper()
	dsn := fmt.Sprintf("file:gateway_test_%s?mode=memory&cache=shared", t.Name())
	db, err := database.Connect(dsn)
	if err != nil {
		t.Fatalf("failed to open sqlite db: %v", err)
	}
	db.Logger = logger.Default.LogMode(logger.Silent)
	if err := db.AutoMigrate(&domain.Customer{}, &domain.Booking{}, &domain.GatewayTransaction{}); err != nil {
		t.Fatalf("failed to migrate db: %v", err)
	}

	client := &mockClient{}
	ledger := &mockLedger{}
	svc := NewService(db, client, ledger, "https://example.test/webhooks/azampay", "TZS")
	return svc, client, ledger, db
}

func pendingPayment(id int64) *domain.Payment {
	bookingID := int64(7)
	return &domain.Payment{
		ID:                   id,
		BookingID:            &bookingID,
		Amount:               150000,
		Method:               domain.MethodMobileMoney,
		State:                domain.PaymentPending,
		TransactionReference: "PAY-HTL-000001-001",
	}
}

func TestInitiatePersistsProcessingTransaction(t *testing.T) {
	svc, client, ledger, db := setupGatewayTest(t)
	payment := pendingPayment(1)

	ledger.On("CreatePendingPayment", mock.Anything, int64(7), 150000.0, domain.MethodMobileMoney, "MPESA", int64(4)).
		Return(payment, nil)
	client.On("InitiateMNO", mock.Anything, mock.MatchedBy(func(req CheckoutRequest) bool {
		return req.ReferenceID == "PAY-HTL-000001-001" && req.Currency == "TZS"
	})).Return(&CheckoutResult{
		Success:       true,
		TransactionID: "azam-123",
		PaymentLink:   "https://pay.example/azam-123",
		RawRequest:    []byte(`{"referenceId":"PAY-HTL-000001-001"}`),
		RawResponse:   []byte(`{"success":true,"transactionId":"azam-123"}`),
	}, nil)

	res, err := svc.Initiate(context.Background(), InitiateRequest{
		BookingID: 7,
		Amount:    150000,
		Method:    domain.MethodMobileMoney,
		Phone:     "0712345678",
		Provider:  "MPESA",
		ActorID:   4,
	})
	assert.NoError(t, err)
	assert.Equal(t, "azam-123", res.ProviderTxnID)
	assert.Equal(t, "https://pay.example/azam-123", res.PaymentLink)

	var txn domain.GatewayTransaction
	if err := db.Where("provider_txn_id = ?", "azam-123").First(&txn).Error; err != nil {
		t.Fatalf("transaction row not persisted: %v", err)
	}
	assert.Equal(t, domain.TxnProcessing, txn.Status)
	assert.Equal(t, "azampay", txn.Provider)
	assert.Equal(t, "PAY-HTL-000001-001", txn.ProviderReference)
	ledger.AssertExpectations(t)
	client.AssertExpectations(t)
}

func TestInitiateOnlineRunsMobileMoneyFlow(t *testing.T) {
	svc, client, ledger, _ := setupGatewayTest(t)
	payment := pendingPayment(9)

	ledger.On("CreatePendingPayment", mock.Anything, int64(7), 150000.0, domain.MethodMobileMoney, "TIGO", int64(4)).
		Return(payment, nil)
	client.On("InitiateMNO", mock.Anything, mock.MatchedBy(func(req CheckoutRequest) bool {
		return req.Provider == "TIGO"
	})).Return(&CheckoutResult{
		Success:       true,
		TransactionID: "azam-online-1",
		RawRequest:    []byte(`{}`),
		RawResponse:   []byte(`{}`),
	}, nil)

	_, err := svc.Initiate(context.Background(), InitiateRequest{
		BookingID: 7,
		Amount:    150000,
		Method:    domain.MethodOnline,
		Phone:     "0712345678",
		Provider:  "TIGO",
		ActorID:   4,
	})
	assert.NoError(t, err)
	ledger.AssertExpectations(t)
	client.AssertExpectations(t)
}

func TestInitiateFailureFailsPaymentAndRecordsAttempt(t *testing.T) {
	svc, client, ledger, db := setupGatewayTest(t)
	payment := pendingPayment(2)

	ledger.On("CreatePendingPayment", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(payment, nil)
	ledger.On("FailPayment", mock.Anything, int64(2)).Return(payment, nil)
	client.On("InitiateMNO", mock.Anything, mock.Anything).
		Return(nil, errors.New("connection refused"))

	_, err := svc.Initiate(context.Background(), InitiateRequest{
		BookingID: 7,
		Amount:    150000,
		Method:    domain.MethodMobileMoney,
		Phone:     "0712345678",
		Provider:  "MPESA",
	})
	assert.ErrorIs(t, err, ErrGatewayFailure)

	var txn domain.GatewayTransaction
	if err := db.Where("provider_reference = ?", "PAY-HTL-000001-001").First(&txn).Error; err != nil {
		t.Fatalf("aborted attempt not persisted: %v", err)
	}
	assert.Equal(t, domain.TxnFailed, txn.Status)
	ledger.AssertCalled(t, "FailPayment", mock.Anything, int64(2))
}

func TestInitiateRejectsMissingPhoneAndBadMethod(t *testing.T) {
	svc, _, _, db := setupGatewayTest(t)

	_, err := svc.Initiate(context.Background(), InitiateRequest{
		BookingID: 7, Amount: 1000, Method: domain.MethodCash, Phone: "0712345678",
	})
	assert.ErrorIs(t, err, ErrUnsupportedMethod)

	cust := &domain.Customer{FirstName: "No", LastName: "Phone", Email: "nophone@example.com"}
	if err := db.Create(cust).Error; err != nil {
		t.Fatalf("failed to seed customer: %v", err)
	}
	booking := &domain.Booking{
		BookingReference: "HTL-000009",
		PropertyID:       1,
		CustomerID:       cust.ID,
		TotalAmount:      1000,
	}
	if err := db.Create(booking).Error; err != nil {
		t.Fatalf("failed to seed booking: %v", err)
	}

	_, err = svc.Initiate(context.Background(), InitiateRequest{
		BookingID: booking.ID, Amount: 1000, Method: domain.MethodMobileMoney,
	})
	assert.ErrorIs(t, err, ErrPhoneRequired)
}

func TestInitiateFallsBackToCustomerPhone(t *testing.T) {
	svc, client, ledger, db := setupGatewayTest(t)

	cust := &domain.Customer{FirstName: "Asha", LastName: "Mushi", Email: "asha@example.com", Phone: "+255712000001"}
	if err := db.Create(cust).Error; err != nil {
		t.Fatalf("failed to seed customer: %v", err)
	}
	booking := &domain.Booking{
		BookingReference: "HTL-000001",
		PropertyID:       1,
		CustomerID:       cust.ID,
		TotalAmount:      150000,
	}
	if err := db.Create(booking).Error; err != nil {
		t.Fatalf("failed to seed booking: %v", err)
	}

	payment := pendingPayment(10)
	payment.BookingID = &booking.ID
	ledger.On("CreatePendingPayment", mock.Anything, booking.ID, 150000.0, domain.MethodMobileMoney, "MPESA", int64(0)).
		Return(payment, nil)
	client.On("InitiateMNO", mock.Anything, mock.MatchedBy(func(req CheckoutRequest) bool {
		return req.Phone == "+255712000001"
	})).Return(&CheckoutResult{Success: true, TransactionID: "azam-fallback"}, nil)

	res, err := svc.Initiate(context.Background(), InitiateRequest{
		BookingID: booking.ID,
		Amount:    150000,
		Method:    domain.MethodMobileMoney,
		Provider:  "MPESA",
	})
	assert.NoError(t, err)
	assert.Equal(t, "azam-fallback", res.ProviderTxnID)
	client.AssertExpectations(t)
}

func TestHandleWebhookRejectsBadSignature(t *testing.T) {
	svc, client, _, _ := setupGatewayTest(t)
	client.On("VerifySignature", mock.Anything, "bogus").Return(false)

	err := svc.HandleWebhook(context.Background(), []byte(`{}`), "bogus")
	assert.ErrorIs(t, err, ErrInvalidSignature)
}

func TestHandleWebhookVerifiedSuccessSettles(t *testing.T) {
	svc, client, ledger, db := setupGatewayTest(t)
	listener := &recordingListener{}
	svc.AddListener(listener)

	txn := &domain.GatewayTransaction{
		PaymentID:         3,
		Provider:          "azampay",
		ProviderTxnID:     "azam-456",
		ProviderReference: "PAY-HTL-000001-001",
		Status:            domain.TxnProcessing,
	}
	if err := db.Create(txn).Error; err != nil {
		t.Fatalf("failed to seed transaction: %v", err)
	}

	settled := pendingPayment(3)
	settled.State = domain.PaymentCompleted

	client.On("VerifySignature", mock.Anything, "sig").Return(true)
	client.On("Query", mock.Anything, "PAY-HTL-000001-001").
		Return(&QueryResult{Status: "successful"}, nil)
	ledger.On("SettlePayment", mock.Anything, int64(3)).Return(settled, nil)

	body := []byte(`{"transactionId":"azam-456","referenceId":"PAY-HTL-000001-001","status":"success"}`)
	assert.NoError(t, svc.HandleWebhook(context.Background(), body, "sig"))

	var after domain.GatewayTransaction
	if err := db.First(&after, txn.ID).Error; err != nil {
		t.Fatalf("failed to reload transaction: %v", err)
	}
	assert.Equal(t, domain.TxnSuccessful, after.Status)
	assert.NotEmpty(t, after.WebhookRawBody)
	assert.Len(t, listener.settled, 1)

	// Redelivery of the same webhook is a no-op.
	assert.NoError(t, svc.HandleWebhook(context.Background(), body, "sig"))
	ledger.AssertNumberOfCalls(t, "SettlePayment", 1)
	assert.Len(t, listener.settled, 1)
}

func TestHandleWebhookSuccessClaimNotVerifiedStaysPending(t *testing.T) {
	svc, client, ledger, db := setupGatewayTest(t)

	txn := &domain.GatewayTransaction{
		PaymentID:         4,
		Provider:          "azampay",
		ProviderTxnID:     "azam-789",
		ProviderReference: "PAY-HTL-000002-001",
		Status:            domain.TxnProcessing,
	}
	if err := db.Create(txn).Error; err != nil {
		t.Fatalf("failed to seed transaction: %v", err)
	}

	client.On("VerifySignature", mock.Anything, "sig").Return(true)
	client.On("Query", mock.Anything, "PAY-HTL-000002-001").
		Return(&QueryResult{Status: "pending"}, nil)

	body := []byte(`{"referenceId":"PAY-HTL-000002-001","status":"success"}`)
	assert.NoError(t, svc.HandleWebhook(context.Background(), body, "sig"))

	var after domain.GatewayTransaction
	if err := db.First(&after, txn.ID).Error; err != nil {
		t.Fatalf("failed to reload transaction: %v", err)
	}
	assert.Equal(t, domain.TxnProcessing, after.Status)
	ledger.AssertNotCalled(t, "SettlePayment", mock.Anything, mock.Anything)
}

func TestHandleWebhookFailureMarksFailed(t *testing.T) {
	svc, client, ledger, db := setupGatewayTest(t)

	txn := &domain.GatewayTransaction{
		PaymentID:         5,
		Provider:          "azampay",
		ProviderTxnID:     "azam-900",
		ProviderReference: "PAY-HTL-000003-001",
		Status:            domain.TxnProcessing,
	}
	if err := db.Create(txn).Error; err != nil {
		t.Fatalf("failed to seed transaction: %v", err)
	}

	client.On("VerifySignature", mock.Anything, "sig").Return(true)
	ledger.On("FailPayment", mock.Anything, int64(5)).Return(pendingPayment(5), nil)

	body := []byte(`{"referenceId":"PAY-HTL-000003-001","status":"failed"}`)
	assert.NoError(t, svc.HandleWebhook(context.Background(), body, "sig"))

	var after domain.GatewayTransaction
	if err := db.First(&after, txn.ID).Error; err != nil {
		t.Fatalf("failed to reload transaction: %v", err)
	}
	assert.Equal(t, domain.TxnFailed, after.Status)
}

func TestHandleWebhookUnknownReferenceIsSwallowed(t *testing.T) {
	svc, client, ledger, _ := setupGatewayTest(t)
	client.On("VerifySignature", mock.Anything, "sig").Return(true)

	body := []byte(`{"referenceId":"PAY-NOPE-000001-001","status":"success"}`)
	assert.NoError(t, svc.HandleWebhook(context.Background(), body, "sig"))
	ledger.AssertNotCalled(t, "SettlePayment", mock.Anything, mock.Anything)
}

func TestVerifyReconcilesPendingTransaction(t *testing.T) {
	svc, client, ledger, db := setupGatewayTest(t)

	txn := &domain.GatewayTransaction{
		PaymentID:         6,
		Provider:          "azampay",
		ProviderTxnID:     "azam-321",
		ProviderReference: "PAY-HTL-000004-001",
		Status:            domain.TxnProcessing,
	}
	if err := db.Create(txn).Error; err != nil {
		t.Fatalf("failed to seed transaction: %v", err)
	}

	settled := pendingPayment(6)
	settled.State = domain.PaymentCompleted
	client.On("Query", mock.Anything, "PAY-HTL-000004-001").
		Return(&QueryResult{Status: "successful"}, nil)
	ledger.On("SettlePayment", mock.Anything, int64(6)).Return(settled, nil)

	after, err := svc.Verify(context.Background(), "PAY-HTL-000004-001")
	assert.NoError(t, err)
	assert.Equal(t, domain.TxnSuccessful, after.Status)

	// A settled transaction is returned as-is without another query.
	again, err := svc.Verify(context.Background(), "PAY-HTL-000004-001")
	assert.NoError(t, err)
	assert.Equal(t, domain.TxnSuccessful, again.Status)
	client.AssertNumberOfCalls(t, "Query", 1)
}

func TestPendingSweepResolvesStaleTransactions(t *testing.T) {
	svc, client, ledger, db := setupGatewayTest(t)

	stale := &domain.GatewayTransaction{
		PaymentID:         7,
		Provider:          "azampay",
		ProviderTxnID:     "azam-old-1",
		ProviderReference: "PAY-HTL-000005-001",
		Status:            domain.TxnProcessing,
	}
	dead := &domain.GatewayTransaction{
		PaymentID:         8,
		Provider:          "azampay",
		ProviderTxnID:     "azam-old-2",
		ProviderReference: "PAY-HTL-000006-001",
		Status:            domain.TxnInitiated,
	}
	fresh := &domain.GatewayTransaction{
		PaymentID:         9,
		Provider:          "azampay",
		ProviderTxnID:     "azam-new",
		ProviderReference: "PAY-HTL-000007-001",
		Status:            domain.TxnProcessing,
	}
	for _, txn := range []*domain.GatewayTransaction{stale, dead, fresh} {
		if err := db.Create(txn).Error; err != nil {
			t.Fatalf("failed to seed transaction: %v", err)
		}
	}
	backdated := time.Now().UTC().Add(-2 * time.Hour)
	for _, id := range []int64{stale.ID, dead.ID} {
		if err := db.Model(&domain.GatewayTransaction{}).Where("id = ?", id).
			Update("created_at", backdated).Error; err != nil {
			t.Fatalf("failed to backdate transaction: %v", err)
		}
	}

	settled := pendingPayment(7)
	settled.State = domain.PaymentCompleted
	client.On("Query", mock.Anything, "PAY-HTL-000005-001").
		Return(&QueryResult{Status: "successful"}, nil)
	client.On("Query", mock.Anything, "PAY-HTL-000006-001").
		Return(&QueryResult{Status: "pending"}, nil)
	ledger.On("SettlePayment", mock.Anything, int64(7)).Return(settled, nil)
	ledger.On("FailPayment", mock.Anything, int64(8)).Return(pendingPayment(8), nil)

	swept, err := svc.PendingSweep(context.Background(), time.Hour)
	assert.NoError(t, err)
	assert.Equal(t, 2, swept)

	var after domain.GatewayTransaction
	if err := db.First(&after, fresh.ID).Error; err != nil {
		t.Fatalf("failed to reload transaction: %v", err)
	}
	assert.Equal(t, domain.TxnProcessing, after.Status)
}
