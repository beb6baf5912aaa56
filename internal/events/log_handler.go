package events

import (
	"context"
	"log/slog"
)

// LogHandler records consumed events. It stands in for downstream consumers such as
// notification mailers.
func LogHandler(log *slog.Logger) Handler {
	return func(ctx context.Context, event OrderEvent) error {
		log.InfoContext(ctx, "order event received",
			"type", event.Type,
			"orderNumber", event.OrderNumber,
			"status", event.Status,
			"total", event.Total.String(),
			"items", len(event.Items),
		)
		return nil
	}
}
