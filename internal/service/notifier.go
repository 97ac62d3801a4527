package service

import (
	"context"

	"onboarding/internal/domain"
)

type Notifier interface {
	Send(ctx context.Context, to string, kind domain.MessageKind, data map[string]any) error
}
