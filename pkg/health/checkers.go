package health

import (
	"context"
	"runtime"

	"github.com/go-faster/errors"
)

// GoroutineCountCheck flags a goroutine leak: unhealthy once the live
// goroutine count exceeds threshold.
func GoroutineCountCheck(threshold int) CheckFunc {
	return func(_ context.Context) error {
		if count := runtime.NumGoroutine(); count > threshold {
			return errors.Errorf("goroutine count %d exceeds threshold %d", count, threshold)
		}
		return nil
	}
}
