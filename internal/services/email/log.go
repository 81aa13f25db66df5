// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package email

import (
	"context"
	"log/slog"
)

// LogService stands in for Service when no SMTP server is configured. It
// only records that a mail would have been sent.
type LogService struct{}

// NewLogService creates a sender that never delivers.
func NewLogService() *LogService {
	return &LogService{}
}

func (s *LogService) SendVerification(_ context.Context, to, _, _ string) error {
	slog.Warn("email_skipped", "kind", "verification", "to", to, "reason", "smtp_not_configured")
	return nil
}

func (s *LogService) SendPasswordReset(_ context.Context, to, _, _ string) error {
	slog.Warn("email_skipped", "kind", "password_reset", "to", to, "reason", "smtp_not_configured")
	return nil
}
