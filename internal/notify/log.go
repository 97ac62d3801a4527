package notify

import (
	"context"
	"log/slog"

	"onboarding/internal/domain"
)

// LogNotifier writes messages to the log instead of mailing them. Used in
// development when no SMTP server is configured.
type LogNotifier struct {
	AppName string
	Logger  *slog.Logger
}

func (n LogNotifier) Send(ctx context.Context, to string, kind domain.MessageKind, data map[string]any) error {
	msg, err := Render(n.AppName, kind, data)
	if err != nil {
		return err
	}
	logger := n.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.InfoContext(ctx, "notification not mailed",
		"to", to,
		"kind", string(kind),
		"subject", msg.Subject,
		"code", data["Code"],
	)
	return nil
}
