package model

import (
	"strings"
	"time"

	"github.com/lshigami/padhoplus/internal/policy"
	"gorm.io/gorm"
)

type User struct {
	ID           uint           `gorm:"primarykey" json:"id"`
	Username     string         `json:"username" gorm:"size:150;not null;uniqueIndex"`
	Email        string         `json:"email" gorm:"size:254;index"`
	PasswordHash string         `json:"-" gorm:"not null"`
	FirstName    string         `json:"first_name" gorm:"size:150"`
	LastName     string         `json:"last_name" gorm:"size:150"`
	Role         policy.Role    `json:"role" gorm:"type:varchar(20);not null;default:'student';index"`
	ParentID     *uint          `json:"parent_id,omitempty" gorm:"index"`
	Phone        *string        `json:"phone,omitempty" gorm:"size:15"`
	TargetExam   *string        `json:"target_exam,omitempty" gorm:"size:50"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
	DeletedAt    gorm.DeletedAt `gorm:"index" json:"-"`
}

func (u User) FullName() string {
	name := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if name == "" {
		return u.Username
	}
	return name
}
