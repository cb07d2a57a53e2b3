// Package worker runs the dashboard's background jobs.
package worker

import (
	"context"

	"github.com/spec-kit/taskboard/internal/service"
)

// Start registers the notification subscribers and, when sweeper is
// non-nil, runs it in the background until ctx is done.
func Start(ctx context.Context, notifications *service.NotificationService, sweeper *OverdueSweeper) {
	if notifications != nil {
		notifications.RegisterHandlers()
	}
	if sweeper != nil {
		go sweeper.Run(ctx)
	}
}
