package errors

// Validation failures: the operation was not attempted.
var (
	ErrInvalidAmount        = NewValidationError("invalid_amount", "Amount must be positive")
	ErrAmountTooLarge       = NewValidationError("invalid_amount", "Maximum deposit is 100,000")
	ErrInvalidBalanceType   = NewValidationError("invalid_balance_type", "Invalid balance type")
	ErrInvalidLevel         = NewValidationError("invalid_level", "Invalid VIP level")
	ErrBetTooSmall          = NewValidationError("bet_too_small", "Bet is below the minimum")
	ErrBetTooLarge          = NewValidationError("bet_too_large", "Bet is above the maximum")
	ErrInvalidHostType      = NewValidationError("invalid_host_type", "Host type must be video or audio")
	ErrInvalidQuantity      = NewValidationError("invalid_quantity", "Quantity must be between 1 and 999")
	ErrInvalidPaymentMethod = NewValidationError("invalid_payment_method", "Invalid payment method details")
	ErrInvalidRequest       = NewValidationError("invalid_request", "Invalid request")
	ErrUnauthenticated      = NewValidationError("unauthenticated", "Authentication required")
)

// Funds failures: checked again at mutation time.
var (
	ErrInsufficientFunds   = NewInsufficientFundsError("insufficient_funds", "Insufficient balance")
	ErrInsufficientBalance = NewInsufficientFundsError("insufficient_balance", "Insufficient coins balance")
)

// Missing entities.
var (
	ErrUserNotFound          = NewNotFoundError("user_not_found", "User not found")
	ErrWalletNotFound        = NewNotFoundError("wallet_not_found", "Wallet not found")
	ErrGiftNotFound          = NewNotFoundError("gift_not_found", "Gift not found")
	ErrReceiverNotFound      = NewNotFoundError("receiver_not_found", "Receiver not found")
	ErrReferralCodeNotFound  = NewNotFoundError("referral_code_not_found", "Invalid referral code")
	ErrNoActivityToday       = NewNotFoundError("no_activity", "No activity recorded today")
	ErrNoActiveSession       = NewNotFoundError("no_active_session", "No active host session")
	ErrWithdrawalNotFound    = NewNotFoundError("withdrawal_not_found", "Withdrawal not found")
	ErrPaymentMethodNotFound = NewNotFoundError("payment_method_not_found", "Payment method not found")
	ErrNotificationNotFound  = NewNotFoundError("notification_not_found", "Notification not found")
	ErrVIPStatusNotFound     = NewNotFoundError("vip_status_not_found", "VIP status not found")
)

// Precondition failures: the request is well formed but the current state forbids it.
var (
	ErrInsufficientRecharge   = NewPreconditionError("insufficient_recharge", "Recharge requirement not met")
	ErrNoRewardsAvailable     = NewPreconditionError("no_rewards_available", "No rewards available to claim")
	ErrDailyLimitReached      = NewPreconditionError("daily_limit_reached", "Daily reward limit reached")
	ErrSessionAlreadyActive   = NewPreconditionError("session_already_active", "A host session is already active")
	ErrAlreadyReferred        = NewPreconditionError("already_referred", "You already have a referrer")
	ErrSelfReferral           = NewPreconditionError("self_referral", "Cannot use your own referral code")
	ErrSelfGift               = NewPreconditionError("self_gift", "Cannot send gift to yourself")
	ErrWithdrawalStatus       = NewPreconditionError("withdrawal_status", "Withdrawal cannot move to the requested status")
	ErrBelowWithdrawalMinimum = NewPreconditionError("below_withdrawal_minimum", "Not enough stars to withdraw")
)

// ErrUserLocked is returned while another mutation for the same user is in flight.
var ErrUserLocked = NewStateError("user wallet is locked by a concurrent operation")
