package auth

import (
	"context"

	"rollbook.org/internal/obs"
)

// ResetMailer hands a freshly minted password-reset token to the delivery
// channel. The token is a bearer credential for the account: it must only
// ever travel out-of-band to the address on file, never back to the caller
// that requested the reset.
type ResetMailer interface {
	SendResetToken(ctx context.Context, email, token string) error
}

// LogResetMailer is the default sink used until a real mailer is wired. It
// records that a reset was issued, without the token, so the request is
// visible to operators but useless to anyone reading logs.
type LogResetMailer struct{}

func (LogResetMailer) SendResetToken(_ context.Context, email, _ string) error {
	obs.LogRequest(map[string]any{
		"level": "info",
		"msg":   "password reset token issued",
		"email": email,
	})
	return nil
}
