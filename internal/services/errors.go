package services

import "errors"

var (
	ErrInvalidInput        = errors.New("invalid input")
	ErrAccessDenied        = errors.New("access denied")
	ErrNotFound            = errors.New("not found")
	ErrProviderNotFound    = errors.New("provider not found")
	ErrSlotConflict        = errors.New("slot already reserved")
	ErrOutsideAvailability = errors.New("outside provider availability window")
	ErrIllegalTransition   = errors.New("illegal state transition")
	ErrInvalidAction       = errors.New("invalid action")
)
