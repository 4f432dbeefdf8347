package model

import (
	"time"

	"gorm.io/gorm"
)

const (
	QuestionTypeMCQ       = "mcq"
	QuestionTypeNumerical = "numerical"
)

type Question struct {
	ID            uint           `gorm:"primarykey" json:"id"`
	SubjectID     uint           `json:"subject_id" gorm:"not null;index"`
	Subject       Subject        `json:"subject,omitempty" gorm:"foreignKey:SubjectID"`
	TopicID       *uint          `json:"topic_id,omitempty" gorm:"index"`
	Topic         *Topic         `json:"topic,omitempty" gorm:"foreignKey:TopicID"`
	Text          string         `json:"question_text" gorm:"type:text;not null"`
	Type          string         `json:"question_type" gorm:"size:20;not null;default:'mcq'"`
	ImagePath     *string        `json:"image_path,omitempty"`
	OptionA       *string        `json:"option_a,omitempty" gorm:"size:500"`
	OptionB       *string        `json:"option_b,omitempty" gorm:"size:500"`
	OptionC       *string        `json:"option_c,omitempty" gorm:"size:500"`
	OptionD       *string        `json:"option_d,omitempty" gorm:"size:500"`
	CorrectAnswer string         `json:"correct_answer" gorm:"size:200;not null"`
	Explanation   string         `json:"explanation,omitempty" gorm:"type:text"`
	Difficulty    string         `json:"difficulty" gorm:"size:10;not null;default:'medium'"`
	Marks         float64        `json:"marks" gorm:"not null;default:4"`
	NegativeMarks float64        `json:"negative_marks" gorm:"not null;default:1"`
	IsActive      bool           `json:"is_active" gorm:"not null;default:true"`
	CreatedByID   *uint          `json:"created_by_id,omitempty" gorm:"index"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
	DeletedAt     gorm.DeletedAt `gorm:"index" json:"-"`
}

// TopicName falls back to "General" for questions without a topic.
func (q Question) TopicName() string {
	if q.Topic != nil && q.Topic.Name != "" {
		return q.Topic.Name
	}
	return "General"
}
