package domain

import (
	"time"

	"gorm.io/datatypes"
)

type GatewayTransactionStatus string

const (
	TxnInitiated  GatewayTransactionStatus = "initiated"
	TxnProcessing GatewayTransactionStatus = "processing"
	TxnSuccessful GatewayTransactionStatus = "successful"
	TxnFailed     GatewayTransactionStatus = "failed"
)

// GatewayTransaction records one attempt to collect a payment through the
// external provider. A payment may accumulate several (retries). The exact
// outgoing request body is persisted for audit.
type GatewayTransaction struct {
	ID        int64 `json:"id" gorm:"primaryKey"`
	PaymentID int64 `json:"payment_id" gorm:"index;not null"`

	Provider          string `json:"provider" gorm:"not null"`
	ProviderTxnID     string `json:"provider_transaction_id" gorm:"uniqueIndex"`
	ProviderReference string `json:"provider_reference" gorm:"index"`

	RequestPayload  datatypes.JSON `json:"request_payload,omitempty"`
	ResponsePayload datatypes.JSON `json:"response_payload,omitempty"`
	WebhookRawBody  string         `json:"-" gorm:"type:text"`

	Status GatewayTransactionStatus `json:"status" gorm:"type:varchar(20);default:'initiated'"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (GatewayTransaction) TableName() string { return "gateway_transactions" }
