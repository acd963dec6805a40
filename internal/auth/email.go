package auth

import "context"

// EmailSender delivers a one-time code to an address. Implementations must
// return nil when no transport is configured rather than fail the flow.
type EmailSender interface {
	SendOTP(ctx context.Context, to, code string) error
}
