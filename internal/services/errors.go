package services

import "errors"

// Input errors, rejected before anything is sent
var (
	ErrInvalidAmount       = errors.New("invalid amount")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrWalletNotConnected  = errors.New("wallet not connected")
	ErrInvalidSlippage     = errors.New("invalid slippage")
	ErrBelowMinimumStake   = errors.New("amount below minimum stake")
	ErrStakingNotActive    = errors.New("staking is not active")
	ErrNothingToWithdraw   = errors.New("nothing to withdraw")
	ErrInvalidToken        = errors.New("invalid token")
	ErrTokenNotFound       = errors.New("token not found")
	ErrSessionNotFound     = errors.New("trade session not found")
	ErrSessionBusy         = errors.New("trade session is busy")
	ErrQuoteUnavailable    = errors.New("quote unavailable")
)

// Transaction outcome errors
var (
	ErrTransactionReverted = errors.New("transaction reverted")
	ErrConfirmationTimeout = errors.New("transaction confirmation timeout")
)
