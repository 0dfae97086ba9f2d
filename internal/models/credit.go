package models

import "time"

type CreditReason string

const (
	CreditReasonSignup     CreditReason = "signup"
	CreditReasonPurchase   CreditReason = "purchase"
	CreditReasonGeneration CreditReason = "generation"
	CreditReasonGrading    CreditReason = "grading"
	CreditReasonRefund     CreditReason = "refund"
)

type CreditAccount struct {
	UserID    string    `json:"user_id" gorm:"primaryKey;size:128"`
	Balance   int       `json:"balance" gorm:"not null;default:0;check:balance >= 0"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type CreditTransaction struct {
	ID           uint         `json:"id" gorm:"primaryKey"`
	UserID       string       `json:"user_id" gorm:"not null;size:128;index"`
	Delta        int          `json:"delta" gorm:"not null"`
	Reason       CreditReason `json:"reason" gorm:"not null;size:32"`
	Reference    string       `json:"reference,omitempty" gorm:"size:128"` // question ID
	BalanceAfter int          `json:"balance_after" gorm:"not null"`
	CreatedAt    time.Time    `json:"created_at"`
}
