package dto

import (
	"time"

	"github.com/lshigami/padhoplus/internal/gateway"
)

type PaymentInitiateDTO struct {
	Gateway string  `json:"gateway" binding:"omitempty,oneof=phonepe razorpay"`
	Amount  float64 `json:"amount" binding:"required,gt=0"`
	BatchID uint    `json:"batch_id" binding:"required"`
}

type PaymentInitiateResultDTO struct {
	Success       bool   `json:"success"`
	PaymentURL    string `json:"payment_url"`
	TransactionID string `json:"transaction_id"`
}

// PaymentFailureDTO is returned when the gateway could not be reached or
// refused the request.
type PaymentFailureDTO struct {
	Success    bool   `json:"success"`
	Error      string `json:"error"`
	ComingSoon bool   `json:"coming_soon,omitempty"`
}

// GatewayNotificationDTO is the JSON form of a callback or webhook body.
// Gateways may also post these as form fields.
type GatewayNotificationDTO struct {
	Response              string `json:"response" form:"response"`
	TransactionID         string `json:"transactionId" form:"transactionId"`
	MerchantTransactionID string `json:"merchantTransactionId" form:"merchantTransactionId"`
}

type PaymentDTO struct {
	ID                    uint       `json:"id"`
	BatchID               uint       `json:"batch_id"`
	BatchName             string     `json:"batch_name,omitempty"`
	Amount                float64    `json:"amount"`
	Currency              string     `json:"currency"`
	PaymentMethod         string     `json:"payment_method"`
	Status                string     `json:"status"`
	TransactionID         string     `json:"transaction_id"`
	MerchantTransactionID *string    `json:"merchant_transaction_id,omitempty"`
	GatewayTransactionID  *string    `json:"gateway_transaction_id,omitempty"`
	FailedReason          string     `json:"failed_reason,omitempty"`
	PaidAt                *time.Time `json:"paid_at,omitempty"`
	CreatedAt             time.Time  `json:"created_at"`
}

type PaymentStatusDTO struct {
	Success bool       `json:"success"`
	Payment PaymentDTO `json:"payment"`
}

type GatewayAckDTO struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

type GatewayListDTO struct {
	Success  bool           `json:"success"`
	Gateways []gateway.Info `json:"gateways"`
}

type PaymentHistoryDTO struct {
	Success  bool         `json:"success"`
	Payments []PaymentDTO `json:"payments"`
}
