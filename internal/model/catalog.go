package model

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Subject struct {
	ID          uint           `gorm:"primarykey" json:"id"`
	Name        string         `json:"name" gorm:"size:100;not null"`
	Slug        string         `json:"slug" gorm:"size:100;not null;uniqueIndex"`
	Description string         `json:"description,omitempty" gorm:"type:text"`
	Topics      []Topic        `json:"topics,omitempty" gorm:"foreignKey:SubjectID"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`
}

type Topic struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	SubjectID uint      `json:"subject_id" gorm:"not null;uniqueIndex:idx_topic_subject_slug"`
	Name      string    `json:"name" gorm:"size:200;not null"`
	Slug      string    `json:"slug" gorm:"size:200;not null;uniqueIndex:idx_topic_subject_slug"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

const (
	BatchStatusUpcoming  = "upcoming"
	BatchStatusActive    = "active"
	BatchStatusCompleted = "completed"
)

type Batch struct {
	ID              uint           `gorm:"primarykey" json:"id"`
	Name            string         `json:"name" gorm:"size:200;not null"`
	Slug            string         `json:"slug" gorm:"size:200;not null;uniqueIndex"`
	Description     string         `json:"description,omitempty" gorm:"type:text"`
	TargetExam      string         `json:"target_exam" gorm:"size:50"`
	Price           float64        `json:"price" gorm:"not null;default:0"`
	DiscountedPrice *float64       `json:"discounted_price,omitempty"`
	IsFree          bool           `json:"is_free" gorm:"not null;default:false"`
	Features        datatypes.JSON `json:"features,omitempty" gorm:"type:jsonb"`
	FacultyID       *uint          `json:"faculty_id,omitempty" gorm:"index"`
	Status          string         `json:"status" gorm:"size:20;not null;default:'upcoming'"`
	StartDate       *time.Time     `json:"start_date,omitempty"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
	DeletedAt       gorm.DeletedAt `gorm:"index" json:"-"`
}

// EffectivePrice is what a student is charged for the batch.
func (b Batch) EffectivePrice() float64 {
	if b.IsFree {
		return 0
	}
	if b.DiscountedPrice != nil {
		return *b.DiscountedPrice
	}
	return b.Price
}

const (
	EnrollmentPending   = "pending"
	EnrollmentActive    = "active"
	EnrollmentExpired   = "expired"
	EnrollmentCancelled = "cancelled"
)

type Enrollment struct {
	ID            uint      `gorm:"primarykey" json:"id"`
	StudentID     uint      `json:"student_id" gorm:"not null;uniqueIndex:idx_enrollment_student_batch"`
	BatchID       uint      `json:"batch_id" gorm:"not null;uniqueIndex:idx_enrollment_student_batch"`
	Batch         Batch     `json:"batch,omitempty" gorm:"foreignKey:BatchID"`
	Status        string    `json:"status" gorm:"size:20;not null;default:'pending'"`
	AmountPaid    float64   `json:"amount_paid" gorm:"not null;default:0"`
	PaymentMethod *string   `json:"payment_method,omitempty" gorm:"size:50"`
	TransactionID *string   `json:"transaction_id,omitempty" gorm:"size:100"`
	EnrolledAt    time.Time `json:"enrolled_at" gorm:"autoCreateTime"`
	UpdatedAt     time.Time `json:"updated_at"`
}
