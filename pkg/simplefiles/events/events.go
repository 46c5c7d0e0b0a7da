// Package events connects object-stored notifications to classification.
package events

import (
	"context"
	"errors"
	"log/slog"

	"github.com/tendant/simple-files/pkg/simplefiles"
)

// Handler processes one object-stored event.
type Handler func(ctx context.Context, event simplefiles.ObjectStoredEvent) error

// ServiceHandler returns a Handler that classifies objects with svc.
// Events for unmanaged keys are logged at debug level and treated as handled.
func ServiceHandler(svc simplefiles.Service, logger *slog.Logger) Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return func(ctx context.Context, event simplefiles.ObjectStoredEvent) error {
		_, err := svc.ProcessStoredObject(ctx, event)
		if errors.Is(err, simplefiles.ErrObjectKeyNotManaged) {
			logger.DebugContext(ctx, "Ignoring unmanaged object key", "key", event.Key)
			return nil
		}
		return err
	}
}
