package application

import (
	"context"

	"voice-terminal/internal/domain"
)

type ReplyClient interface {
	Reply(ctx context.Context, text string, history []domain.Message) (string, error)
}
