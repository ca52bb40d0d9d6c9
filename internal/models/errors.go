package models

import "errors"

var (
	ErrInvalidNumber       = errors.New("invalid ticket number")
	ErrInvalidTransition   = errors.New("invalid ticket state transition")
	ErrAlreadyTaken        = errors.New("ticket already taken")
	ErrNotHeldByCaller     = errors.New("ticket not held by caller")
	ErrRaffleFinalized     = errors.New("raffle is finalized")
	ErrRaffleNotFound      = errors.New("raffle not found")
	ErrRaffleCancelled     = errors.New("raffle is cancelled")
	ErrHolderRequired      = errors.New("holder id is required")
	ErrInvalidAmount       = errors.New("invalid payment amount")
	ErrAmountExceedsTotal  = errors.New("payment amount exceeds expected total")
	ErrWinnerAlreadyExists = errors.New("raffle already has a winner")
	ErrTicketNotEligible   = errors.New("ticket is not eligible to win")
	ErrNumberNotFound      = errors.New("number not found in raffle")
	ErrNotPending          = errors.New("holder has no pending reminder")
	ErrNoWinner            = errors.New("raffle has no winner yet")
	ErrTicketNotPaid       = errors.New("ticket is not paid")
	ErrInvalidReceipt      = errors.New("invalid or stale receipt")
)
