package service

import (
	"errors"
	"fmt"

	"github.com/Qaiser2raza/fireflow-api/internal/enum"
)

// ErrInvalidTransition wraps every rejected status change so callers can
// distinguish machine violations from infrastructure failures.
var ErrInvalidTransition = errors.New("invalid transition")

// itemTransitions is the per-item state machine. There is no path backward;
// the KDS undo stack is the only recovery mechanism.
var itemTransitions = map[string][]string{
	enum.ItemStatusPending:   {enum.ItemStatusFired},
	enum.ItemStatusFired:     {enum.ItemStatusPreparing, enum.ItemStatusReady},
	enum.ItemStatusPreparing: {enum.ItemStatusReady},
	enum.ItemStatusReady:     {enum.ItemStatusServed},
	enum.ItemStatusServed:    {},
}

// ValidateItemTransition checks a single item status change.
func ValidateItemTransition(current, next string) error {
	allowed, ok := itemTransitions[current]
	if !ok {
		return fmt.Errorf("%w: unknown item status %s", ErrInvalidTransition, current)
	}
	for _, s := range allowed {
		if s == next {
			return nil
		}
	}
	return fmt.Errorf("%w: cannot move item from %s to %s", ErrInvalidTransition, current, next)
}

// IsValidItemStatus reports whether s is a known item status.
func IsValidItemStatus(s string) bool {
	switch s {
	case enum.ItemStatusPending, enum.ItemStatusFired, enum.ItemStatusPreparing,
		enum.ItemStatusReady, enum.ItemStatusServed:
		return true
	}
	return false
}

// AggregateStatus derives the kitchen-phase order status from its items'
// statuses:
//   - READY iff every item is READY or SERVED,
//   - PREPARING if any item is PREPARING (and not all ready),
//   - NEW otherwise (items exist but none cooking yet).
//
// Dispatch, delivery, payment and void statuses are set only by their own
// operations and never by aggregation.
func AggregateStatus(itemStatuses []string) string {
	if len(itemStatuses) == 0 {
		return enum.OrderStatusNew
	}

	allReady := true
	anyPreparing := false
	for _, s := range itemStatuses {
		switch s {
		case enum.ItemStatusReady, enum.ItemStatusServed:
		case enum.ItemStatusPreparing:
			allReady = false
			anyPreparing = true
		default:
			allReady = false
		}
	}

	if allReady {
		return enum.OrderStatusReady
	}
	if anyPreparing {
		return enum.OrderStatusPreparing
	}
	return enum.OrderStatusNew
}

// IsTerminalOrderStatus reports whether no further order or item mutation is
// accepted (settlement bookkeeping that references the order by id excepted).
func IsTerminalOrderStatus(status string) bool {
	switch status {
	case enum.OrderStatusPaid, enum.OrderStatusCancelled:
		return true
	}
	return false
}

// IsKitchenPhase reports whether the order status is still derived from its
// items.
func IsKitchenPhase(status string) bool {
	switch status {
	case enum.OrderStatusNew, enum.OrderStatusPreparing, enum.OrderStatusReady:
		return true
	}
	return false
}

// tableTransitions is the bus cycle. PAYMENT_PENDING is entered only as a
// side effect of the seated order reaching READY, never by this map.
var tableTransitions = map[string][]string{
	enum.TableStatusAvailable:      {enum.TableStatusOccupied},
	enum.TableStatusOccupied:       {enum.TableStatusDirty},
	enum.TableStatusPaymentPending: {enum.TableStatusDirty},
	enum.TableStatusDirty:          {enum.TableStatusAvailable},
}

// ValidateTableTransition checks an operator-declared table status change.
func ValidateTableTransition(current, next string) error {
	allowed, ok := tableTransitions[current]
	if !ok {
		return fmt.Errorf("%w: unknown table status %s", ErrInvalidTransition, current)
	}
	for _, s := range allowed {
		if s == next {
			return nil
		}
	}
	return fmt.Errorf("%w: cannot move table from %s to %s", ErrInvalidTransition, current, next)
}
