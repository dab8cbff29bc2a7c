package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// PaymentMethodType is the payout rail.
type PaymentMethodType string

const (
	MethodBank PaymentMethodType = "bank"
	MethodUPI  PaymentMethodType = "upi"
)

// BankDetails identifies a bank account.
type BankDetails struct {
	AccountHolderName string `json:"account_holder_name" validate:"required"`
	AccountNumber     string `json:"account_number" validate:"required"`
	IFSCCode          string `json:"ifsc_code" validate:"required"`
	BankName          string `json:"bank_name" validate:"required"`
}

// UPIDetails identifies a UPI handle.
type UPIDetails struct {
	UPIID string `json:"upi_id" validate:"required"`
}

// PaymentMethod is a saved payout destination.
type PaymentMethod struct {
	MethodID   string            `json:"method_id"`
	UserID     string            `json:"user_id"`
	MethodType PaymentMethodType `json:"method_type"`
	Bank       *BankDetails      `json:"bank_details,omitempty"`
	UPI        *UPIDetails       `json:"upi_details,omitempty"`
	IsDefault  bool              `json:"is_default"`
	IsVerified bool              `json:"is_verified"`
	CreatedAt  time.Time         `json:"created_at"`
}

// WithdrawalStatus is the payout lifecycle.
type WithdrawalStatus string

const (
	WithdrawalPending    WithdrawalStatus = "pending"
	WithdrawalProcessing WithdrawalStatus = "processing"
	WithdrawalCompleted  WithdrawalStatus = "completed"
	WithdrawalRejected   WithdrawalStatus = "rejected"
	WithdrawalCancelled  WithdrawalStatus = "cancelled"
)

// Withdrawal is a stars payout request.
type Withdrawal struct {
	WithdrawalID        string            `json:"withdrawal_id"`
	UserID              string            `json:"user_id"`
	Amount              decimal.Decimal   `json:"amount"`
	Status              WithdrawalStatus  `json:"status"`
	PaymentMethodID     string            `json:"payment_method_id"`
	PaymentMethodType   PaymentMethodType `json:"payment_method_type"`
	IsVIP               bool              `json:"is_vip"`
	FaceVerified        bool              `json:"face_verified"`
	EstimatedCompletion time.Time         `json:"estimated_completion"`
	CreatedAt           time.Time         `json:"created_at"`
	UpdatedAt           time.Time         `json:"updated_at"`
}
