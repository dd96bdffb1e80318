package model

import (
	"context"
	"errors"
	"fmt"

	"docchat/types"
)

// providerError tags err with kind, or with ErrTimeout when the call ran out of time.
func providerError(kind error, op string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %s: %w", types.ErrTimeout, op, err)
	}
	return fmt.Errorf("%w: %s: %w", kind, op, err)
}
