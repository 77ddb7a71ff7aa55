package vault

import (
	"errors"

	"github.com/cinderlabs/cindervault/internal/fee"
)

// Vault errors. Every failure leaves state unchanged and emits no event.
var (
	// ErrUnauthorized is returned when a non-administrator invokes an
	// admin-only operation. Shared with the fee policy so callers can
	// match either layer with a single errors.Is check.
	ErrUnauthorized = fee.ErrUnauthorized

	// ErrInsufficientPayment is returned when a redemption payment is
	// below the current fee.
	ErrInsufficientPayment = errors.New("payment below current fee")

	// ErrTokenInvalid is returned when a token is unknown or already
	// burned. The two cases are deliberately indistinguishable.
	ErrTokenInvalid = errors.New("token invalid or already redeemed")

	// ErrCountOutOfBounds is returned when a mint requests a negative
	// count or one above the configured cap.
	ErrCountOutOfBounds = errors.New("mint count out of bounds")

	// ErrTokenCollision is returned when a derived token already keys a
	// vault entry. The mint fails as a whole; nothing is overwritten.
	ErrTokenCollision = errors.New("token collision with existing entry")
)
