package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"propertyhub/internal/domain"
)

// Client is the slice of the provider API the orchestrator needs.
type Client interface {
	InitiateMNO(ctx context.Context, req CheckoutRequest) (*CheckoutResult, error)
	InitiateBank(ctx context.Context, req CheckoutRequest) (*CheckoutResult, error)
	Query(ctx context.Context, referenceID string) (*QueryResult, error)
	VerifySignature(body []byte, signature string) bool
}

// Ledger is the slice of the payment ledger the orchestrator needs.
type Ledger interface {
	CreatePendingPayment(ctx context.Context, bookingID int64, amount float64, method domain.PaymentMethod, provider string, actorID int64) (*domain.Payment, error)
	SettlePayment(ctx context.Context, paymentID int64) (*domain.Payment, error)
	FailPayment(ctx context.Context, paymentID int64) (*domain.Payment, error)
}

// SettlementListener is notified after a payment settles through the
// gateway. The visit-access controller uses it to unlock contact details.
type SettlementListener interface {
	PaymentSettled(ctx context.Context, payment *domain.Payment)
}

type InitiateRequest struct {
	BookingID int64                `json:"booking_id" binding:"required"`
	Amount    float64              `json:"amount" binding:"required,gt=0"`
	Method    domain.PaymentMethod `json:"payment_method" binding:"required"`
	Phone     string               `json:"phone"`
	Provider  string               `json:"provider"`
	ActorID   int64                `json:"-"`
}

type InitiateResult struct {
	PaymentID            int64  `json:"payment_id"`
	TransactionReference string `json:"transaction_reference"`
	ProviderTxnID        string `json:"provider_transaction_id"`
	PaymentLink          string `json:"payment_link,omitempty"`
}

// Service drives async gateway collection: open a pending ledger row, send
// the checkout, persist every provider exchange, and settle or fail on
// verified webhook or query. All webhook handling is idempotent.
type Service struct {
	db          *gorm.DB
	client      Client
	ledger      Ledger
	callbackURL string
	currency    string
	listeners   []SettlementListener
	log         *logrus.Entry
}

func NewService(db *gorm.DB, client Client, ledger Ledger, callbackURL, currency string) *Service {
	return &Service{
		db:          db,
		client:      client,
		ledger:      ledger,
		callbackURL: callbackURL,
		currency:    currency,
		log:         logrus.WithField("component", "gateway"),
	}
}

// AddListener registers a settlement listener. Not safe after serving
// starts; wire everything up front.
func (s *Service) AddListener(l SettlementListener) {
	s.listeners = append(s.listeners, l)
}

// Initiate opens a pending payment for the booking and asks the provider to
// collect it. The outgoing request body is persisted before we trust any
// response.
func (s *Service) Initiate(ctx context.Context, req InitiateRequest) (*InitiateResult, error) {
	if req.Method == domain.MethodOnline {
		// "online" is the customer-app label for the MNO collection flow.
		req.Method = domain.MethodMobileMoney
	}
	if req.Method != domain.MethodMobileMoney && req.Method != domain.MethodBank {
		return nil, ErrUnsupportedMethod
	}
	phone := strings.TrimSpace(req.Phone)
	if phone == "" {
		// Staff-initiated collections default to the booking customer's phone.
		p, err := s.customerPhone(ctx, req.BookingID)
		if err != nil {
			return nil, err
		}
		phone = p
	}
	if phone == "" {
		return nil, ErrPhoneRequired
	}

	payment, err := s.ledger.CreatePendingPayment(ctx, req.BookingID, req.Amount, req.Method, req.Provider, req.ActorID)
	if err != nil {
		return nil, err
	}
	return s.InitiateForPayment(ctx, payment, phone, req.Provider, req.Method)
}

func (s *Service) customerPhone(ctx context.Context, bookingID int64) (string, error) {
	var booking domain.Booking
	err := s.db.WithContext(ctx).Preload("Customer").First(&booking, bookingID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", ErrNotFound
		}
		return "", err
	}
	if booking.Customer == nil {
		return "", nil
	}
	return booking.Customer.Phone, nil
}

// InitiateForPayment sends an already-opened pending payment to the
// provider. The visit-access controller uses it for bookingless payments.
func (s *Service) InitiateForPayment(ctx context.Context, payment *domain.Payment, phone, provider string, method domain.PaymentMethod) (*InitiateResult, error) {
	if strings.TrimSpace(phone) == "" {
		return nil, ErrPhoneRequired
	}
	if method != domain.MethodMobileMoney && method != domain.MethodBank {
		return nil, ErrUnsupportedMethod
	}

	props := map[string]interface{}{"payment_id": payment.ID}
	if payment.BookingID != nil {
		props["booking_id"] = *payment.BookingID
	}
	checkout := CheckoutRequest{
		ReferenceID: payment.TransactionReference,
		Amount:      payment.Amount,
		Currency:    s.currency,
		Phone:       phone,
		Provider:    provider,
		CallbackURL: s.callbackURL,
		Properties:  props,
	}

	var result *CheckoutResult
	var err error
	if method == domain.MethodBank {
		result, err = s.client.InitiateBank(ctx, checkout)
	} else {
		result, err = s.client.InitiateMNO(ctx, checkout)
	}
	if err != nil {
		s.abortInitiation(ctx, payment, nil, err.Error())
		return nil, fmt.Errorf("%w: %v", ErrGatewayFailure, err)
	}
	if !result.Success {
		s.abortInitiation(ctx, payment, result, result.Message)
		return nil, fmt.Errorf("%w: %s", ErrGatewayFailure, result.Message)
	}

	providerTxnID := result.TransactionID
	if providerTxnID == "" {
		providerTxnID = payment.TransactionReference
	}
	txn := &domain.GatewayTransaction{
		PaymentID:         payment.ID,
		Provider:          "azampay",
		ProviderTxnID:     providerTxnID,
		ProviderReference: payment.TransactionReference,
		RequestPayload:    datatypes.JSON(result.RawRequest),
		ResponsePayload:   datatypes.JSON(result.RawResponse),
		Status:            domain.TxnProcessing,
	}
	if err := s.db.WithContext(ctx).Create(txn).Error; err != nil {
		return nil, err
	}

	s.log.WithFields(logrus.Fields{
		"reference":   payment.TransactionReference,
		"provider_id": providerTxnID,
	}).Info("gateway checkout initiated")

	return &InitiateResult{
		PaymentID:            payment.ID,
		TransactionReference: payment.TransactionReference,
		ProviderTxnID:        providerTxnID,
		PaymentLink:          result.PaymentLink,
	}, nil
}

// abortInitiation records the failed attempt and fails the pending payment.
func (s *Service) abortInitiation(ctx context.Context, payment *domain.Payment, result *CheckoutResult, reason string) {
	txn := &domain.GatewayTransaction{
		PaymentID:         payment.ID,
		Provider:          "azampay",
		ProviderTxnID:     fmt.Sprintf("%s-attempt-%s", payment.TransactionReference, uuid.NewString()),
		ProviderReference: payment.TransactionReference,
		Status:            domain.TxnFailed,
	}
	if result != nil {
		txn.RequestPayload = datatypes.JSON(result.RawRequest)
		txn.ResponsePayload = datatypes.JSON(result.RawResponse)
	}
	if err := s.db.WithContext(ctx).Create(txn).Error; err != nil {
		s.log.WithError(err).Error("failed to persist aborted gateway transaction")
	}
	if _, err := s.ledger.FailPayment(ctx, payment.ID); err != nil {
		s.log.WithError(err).Error("failed to fail pending payment")
	}
	s.log.WithField("reference", payment.TransactionReference).Warnf("gateway initiation failed: %s", reason)
}

type webhookPayload struct {
	TransactionID string          `json:"transactionId"`
	ReferenceID   string          `json:"referenceId"`
	Reference     string          `json:"reference"`
	Status        string          `json:"status"`
	Amount        json.RawMessage `json:"amount"`
	Data          *webhookPayload `json:"data"`
}

func (p *webhookPayload) flatten() *webhookPayload {
	if p.Data != nil {
		return p.Data
	}
	return p
}

// HandleWebhook processes a provider callback. The signature gates entry;
// after that the provider's claimed status is never trusted directly: a
// success claim is re-verified against Transaction/Query before the payment
// settles. Returns ErrInvalidSignature for bad signatures; every other path
// persists what happened and returns nil so the provider stops redelivering.
func (s *Service) HandleWebhook(ctx context.Context, rawBody []byte, signature string) error {
	if !s.client.VerifySignature(rawBody, signature) {
		s.log.Warn("webhook rejected: bad signature")
		return ErrInvalidSignature
	}

	var payload webhookPayload
	if err := json.Unmarshal(rawBody, &payload); err != nil {
		s.log.WithError(err).Warn("webhook rejected: unparseable body")
		return nil
	}
	p := payload.flatten()

	reference := firstNonEmpty(p.ReferenceID, p.Reference, p.TransactionID)
	if reference == "" {
		s.log.Warn("webhook ignored: no reference")
		return nil
	}

	txn, err := s.findTransaction(ctx, p.TransactionID, reference)
	if err != nil {
		s.log.WithField("reference", reference).Warn("webhook ignored: unknown transaction")
		return nil
	}

	// Idempotency: a transaction already in a terminal state stays there.
	if txn.Status == domain.TxnSuccessful || txn.Status == domain.TxnFailed {
		return nil
	}

	if err := s.db.WithContext(ctx).Model(txn).
		Update("webhook_raw_body", string(rawBody)).Error; err != nil {
		return err
	}

	switch NormalizeStatus(p.Status) {
	case "successful":
		verified, err := s.verifyWithProvider(ctx, txn.ProviderReference)
		if err != nil {
			s.log.WithError(err).WithField("reference", reference).
				Warn("webhook claimed success but verification failed; leaving pending")
			return nil
		}
		if !verified {
			s.log.WithField("reference", reference).
				Warn("webhook claimed success; provider query disagrees")
			return nil
		}
		return s.settle(ctx, txn)
	case "failed":
		return s.fail(ctx, txn)
	default:
		return nil
	}
}

func (s *Service) verifyWithProvider(ctx context.Context, reference string) (bool, error) {
	var lastErr error
	for attempt := 0; attempt < 3; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return false, ctx.Err()
			case <-time.After(time.Duration(attempt) * time.Second):
			}
		}
		res, err := s.client.Query(ctx, reference)
		if err != nil {
			lastErr = err
			continue
		}
		return res.Status == "successful", nil
	}
	return false, lastErr
}

func (s *Service) settle(ctx context.Context, txn *domain.GatewayTransaction) error {
	err := s.db.WithContext(ctx).Model(txn).Update("status", domain.TxnSuccessful).Error
	if err != nil {
		return err
	}
	payment, err := s.ledger.SettlePayment(ctx, txn.PaymentID)
	if err != nil {
		return err
	}
	s.log.WithField("reference", txn.ProviderReference).Info("gateway payment settled")
	for _, l := range s.listeners {
		l.PaymentSettled(ctx, payment)
	}
	return nil
}

func (s *Service) fail(ctx context.Context, txn *domain.GatewayTransaction) error {
	err := s.db.WithContext(ctx).Model(txn).Update("status", domain.TxnFailed).Error
	if err != nil {
		return err
	}
	if _, err := s.ledger.FailPayment(ctx, txn.PaymentID); err != nil {
		return err
	}
	s.log.WithField("reference", txn.ProviderReference).Info("gateway payment failed")
	return nil
}

// Verify asks the provider directly and reconciles the transaction. Staff
// use it when a webhook never arrived.
func (s *Service) Verify(ctx context.Context, reference string) (*domain.GatewayTransaction, error) {
	txn, err := s.findTransaction(ctx, reference, reference)
	if err != nil {
		return nil, err
	}
	if txn.Status == domain.TxnSuccessful || txn.Status == domain.TxnFailed {
		return txn, nil
	}

	res, err := s.client.Query(ctx, txn.ProviderReference)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGatewayFailure, err)
	}
	switch res.Status {
	case "successful":
		if err := s.settle(ctx, txn); err != nil {
			return nil, err
		}
	case "failed":
		if err := s.fail(ctx, txn); err != nil {
			return nil, err
		}
	}
	return s.findTransaction(ctx, txn.ProviderTxnID, txn.ProviderReference)
}

// PendingSweep expires processing transactions past the timeout: one last
// provider query, then failed if still unsettled.
func (s *Service) PendingSweep(ctx context.Context, timeout time.Duration) (int, error) {
	cutoff := time.Now().UTC().Add(-timeout)
	var txns []domain.GatewayTransaction
	err := s.db.WithContext(ctx).
		Where("status IN ?", []domain.GatewayTransactionStatus{domain.TxnInitiated, domain.TxnProcessing}).
		Where("created_at < ?", cutoff).
		Find(&txns).Error
	if err != nil {
		return 0, err
	}

	swept := 0
	for i := range txns {
		txn := &txns[i]
		res, err := s.client.Query(ctx, txn.ProviderReference)
		if err == nil && res.Status == "successful" {
			if err := s.settle(ctx, txn); err != nil {
				return swept, err
			}
			swept++
			continue
		}
		if err := s.fail(ctx, txn); err != nil {
			return swept, err
		}
		swept++
	}
	return swept, nil
}

func (s *Service) findTransaction(ctx context.Context, providerTxnID, reference string) (*domain.GatewayTransaction, error) {
	var txn domain.GatewayTransaction
	err := s.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("provider_txn_id = ? OR provider_reference = ?", providerTxnID, reference).
		Order("id desc").
		First(&txn).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &txn, nil
}
