package server

import (
	"context"

	"go.uber.org/zap"

	"github.com/fentro/cms-console/internal/auth"
)

// SessionSource is the part of the session the lifecycle binding watches.
type SessionSource interface {
	Snapshot() auth.Snapshot
	Subscribe(listener func(auth.Snapshot)) func()
}

// Mountable is anything that runs only while an operator is signed in.
type Mountable interface {
	Mount(ctx context.Context) error
	Unmount()
	Mounted() bool
}

// BindLifecycle mounts target while the session is authenticated and
// unmounts it otherwise. Transitions are reconciled on a dedicated goroutine
// because an unmount may be triggered from inside target itself (a 401 seen
// by a poll). The returned stop unmounts and waits.
func BindLifecycle(parent context.Context, session SessionSource, target Mountable, logger *zap.Logger) (stop func()) {
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(parent)
	wake := make(chan struct{}, 1)
	unsubscribe := session.Subscribe(func(auth.Snapshot) {
		select {
		case wake <- struct{}{}:
		default:
		}
	})

	reconcile := func() {
		authenticated := session.Snapshot().Status == auth.StatusAuthenticated
		switch {
		case authenticated && !target.Mounted():
			if err := target.Mount(ctx); err != nil {
				logger.Warn("mount failed", zap.Error(err))
			}
		case !authenticated && target.Mounted():
			target.Unmount()
		}
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		reconcile()
		for {
			select {
			case <-ctx.Done():
				target.Unmount()
				return
			case <-wake:
				reconcile()
			}
		}
	}()

	return func() {
		unsubscribe()
		cancel()
		<-done
	}
}
