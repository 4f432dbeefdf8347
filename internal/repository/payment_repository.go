package repository

import (
	"context"
	"time"

	"github.com/lshigami/padhoplus/internal/model"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PaymentTransition is applied by ApplyTransition under a row lock.
type PaymentTransition struct {
	To                   model.PaymentStatus
	GatewayTransactionID *string
	GatewayResponse      []byte
	FailedReason         string
	PaidAt               *time.Time
}

type PaymentRepository interface {
	Create(ctx context.Context, payment *model.Payment) error
	FindByTransactionID(ctx context.Context, transactionID string) (*model.Payment, error)
	FindByMerchantTransactionID(ctx context.Context, merchantTxnID string) (*model.Payment, error)
	FindByStudent(ctx context.Context, studentID uint) ([]model.Payment, error)
	// FindStale returns payments still in one of statuses created before olderThan.
	FindStale(ctx context.Context, statuses []model.PaymentStatus, olderThan time.Time, limit int) ([]model.Payment, error)
	// ApplyTransition locks the payment, checks the state machine and writes
	// the transition. It returns the payment and whether it changed. Reaching
	// completed activates the student's enrollment in the same transaction.
	ApplyTransition(ctx context.Context, paymentID uint, t PaymentTransition) (*model.Payment, bool, error)
	RecordEvent(ctx context.Context, event *model.PaymentGatewayEvent) error
}

type paymentRepository struct {
	db *gorm.DB
}

func NewPaymentRepository(db *gorm.DB) PaymentRepository {
	return &paymentRepository{db: db}
}

func (r *paymentRepository) Create(ctx context.Context, payment *model.Payment) error {
	return translate(r.db.WithContext(ctx).Create(payment).Error)
}

func (r *paymentRepository) FindByTransactionID(ctx context.Context, transactionID string) (*model.Payment, error) {
	var payment model.Payment
	err := r.db.WithContext(ctx).Preload("Batch").Where("transaction_id = ?", transactionID).First(&payment).Error
	if err != nil {
		return nil, translate(err)
	}
	return &payment, nil
}

func (r *paymentRepository) FindByMerchantTransactionID(ctx context.Context, merchantTxnID string) (*model.Payment, error) {
	var payment model.Payment
	err := r.db.WithContext(ctx).Where("merchant_transaction_id = ?", merchantTxnID).First(&payment).Error
	if err != nil {
		return nil, translate(err)
	}
	return &payment, nil
}

func (r *paymentRepository) FindByStudent(ctx context.Context, studentID uint) ([]model.Payment, error) {
	var payments []model.Payment
	err := r.db.WithContext(ctx).Preload("Batch").
		Where("student_id = ?", studentID).
		Order("created_at DESC").
		Find(&payments).Error
	return payments, err
}

func (r *paymentRepository) FindStale(ctx context.Context, statuses []model.PaymentStatus, olderThan time.Time, limit int) ([]model.Payment, error) {
	var payments []model.Payment
	query := r.db.WithContext(ctx).
		Where("status IN ? AND created_at < ? AND merchant_transaction_id IS NOT NULL", statuses, olderThan).
		Order("created_at ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	err := query.Find(&payments).Error
	return payments, err
}

func (r *paymentRepository) ApplyTransition(ctx context.Context, paymentID uint, t PaymentTransition) (*model.Payment, bool, error) {
	var payment model.Payment
	changed := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&payment, paymentID).Error; err != nil {
			return translate(err)
		}
		if !payment.Status.CanTransitionTo(t.To) {
			return nil
		}

		updates := map[string]any{"status": t.To}
		payment.Status = t.To
		if t.GatewayTransactionID != nil {
			updates["gateway_transaction_id"] = *t.GatewayTransactionID
			payment.GatewayTransactionID = t.GatewayTransactionID
		}
		if len(t.GatewayResponse) > 0 {
			updates["gateway_response"] = datatypes.JSON(t.GatewayResponse)
			payment.GatewayResponse = datatypes.JSON(t.GatewayResponse)
		}
		if t.FailedReason != "" {
			updates["failed_reason"] = t.FailedReason
			payment.FailedReason = t.FailedReason
		}
		if t.PaidAt != nil {
			updates["paid_at"] = *t.PaidAt
			payment.PaidAt = t.PaidAt
		}
		if err := tx.Model(&model.Payment{}).Where("id = ?", payment.ID).Updates(updates).Error; err != nil {
			return err
		}
		changed = true

		if t.To != model.PaymentCompleted {
			return nil
		}
		method, txnID := payment.PaymentMethod, payment.TransactionID
		enrollment := model.Enrollment{
			StudentID:     payment.StudentID,
			BatchID:       payment.BatchID,
			AmountPaid:    payment.Amount,
			PaymentMethod: &method,
			TransactionID: &txnID,
		}
		return NewEnrollmentRepository(tx).Activate(ctx, &enrollment)
	})
	if err != nil {
		return nil, false, err
	}
	return &payment, changed, nil
}

func (r *paymentRepository) RecordEvent(ctx context.Context, event *model.PaymentGatewayEvent) error {
	return r.db.WithContext(ctx).Create(event).Error
}
