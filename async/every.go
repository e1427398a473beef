// Package async provides scheduling helpers for the periodic background
// work of a town node, such as heartbeat sweeps and idle-world reaping.
package async

import (
	"context"
	"reflect"
	"runtime"
	"time"

	log "github.com/sirupsen/logrus"
)

// RunEvery invokes f once per period on a dedicated goroutine until the
// supplied context is cancelled. Invocations run sequentially; a slow f
// delays the next tick rather than overlapping it.
func RunEvery(ctx context.Context, period time.Duration, f func()) {
	funcName := runtime.FuncForPC(reflect.ValueOf(f).Pointer()).Name()
	ticker := time.NewTicker(period)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				log.WithField("function", funcName).Trace("running")
				f()
			case <-ctx.Done():
				log.WithField("function", funcName).Debug("context is closed, exiting")
				return
			}
		}
	}()
}
