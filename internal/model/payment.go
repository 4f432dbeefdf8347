package model

import (
	"time"

	"gorm.io/datatypes"
)

type PaymentStatus string

const (
	PaymentPending    PaymentStatus = "pending"
	PaymentProcessing PaymentStatus = "processing"
	PaymentCompleted  PaymentStatus = "completed"
	PaymentFailed     PaymentStatus = "failed"
	PaymentRefunded   PaymentStatus = "refunded"
)

var paymentTransitions = map[PaymentStatus][]PaymentStatus{
	PaymentPending:    {PaymentProcessing, PaymentCompleted, PaymentFailed},
	PaymentProcessing: {PaymentCompleted, PaymentFailed},
	PaymentCompleted:  {PaymentRefunded},
}

// CanTransitionTo reports whether next is reachable from s in one step.
// Terminal states and self-transitions return false.
func (s PaymentStatus) CanTransitionTo(next PaymentStatus) bool {
	for _, allowed := range paymentTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

type Payment struct {
	ID                    uint           `gorm:"primarykey" json:"id"`
	StudentID             uint           `json:"student_id" gorm:"not null;index"`
	BatchID               uint           `json:"batch_id" gorm:"not null;index"`
	Batch                 Batch          `json:"batch,omitempty" gorm:"foreignKey:BatchID"`
	Amount                float64        `json:"amount" gorm:"not null"`
	Currency              string         `json:"currency" gorm:"size:3;not null;default:'INR'"`
	PaymentMethod         string         `json:"payment_method" gorm:"size:20;not null"`
	Status                PaymentStatus  `json:"status" gorm:"type:varchar(20);not null;default:'pending';index"`
	TransactionID         string         `json:"transaction_id" gorm:"size:100;not null;uniqueIndex"`
	MerchantTransactionID *string        `json:"merchant_transaction_id,omitempty" gorm:"size:100;uniqueIndex"`
	GatewayTransactionID  *string        `json:"gateway_transaction_id,omitempty" gorm:"size:100"`
	GatewayResponse       datatypes.JSON `json:"gateway_response,omitempty" gorm:"type:jsonb"`
	FailedReason          string         `json:"failed_reason,omitempty" gorm:"type:text"`
	PaidAt                *time.Time     `json:"paid_at,omitempty"`
	CreatedAt             time.Time      `json:"created_at"`
	UpdatedAt             time.Time      `json:"updated_at"`
}

const (
	GatewayEventWebhook  = "webhook"
	GatewayEventCallback = "callback"
	GatewayEventPoll     = "poll"

	GatewayEventReceived  = "received"
	GatewayEventProcessed = "processed"
	GatewayEventIgnored   = "ignored"
	GatewayEventRejected  = "rejected"
)

// PaymentGatewayEvent logs every inbound gateway notification, accepted or not.
type PaymentGatewayEvent struct {
	ID                    uint           `gorm:"primarykey" json:"id"`
	Provider              string         `json:"provider" gorm:"size:20;not null;index"`
	Kind                  string         `json:"kind" gorm:"size:20;not null"`
	MerchantTransactionID *string        `json:"merchant_transaction_id,omitempty" gorm:"size:100;index"`
	PaymentID             *uint          `json:"payment_id,omitempty" gorm:"index"`
	Headers               datatypes.JSON `json:"headers,omitempty" gorm:"type:jsonb"`
	Payload               datatypes.JSON `json:"payload,omitempty" gorm:"type:jsonb"`
	Signature             string         `json:"signature,omitempty" gorm:"size:200"`
	Status                string         `json:"status" gorm:"size:20;not null;default:'received'"`
	Error                 string         `json:"error,omitempty" gorm:"type:text"`
	ReceivedAt            time.Time      `json:"received_at" gorm:"autoCreateTime"`
}
