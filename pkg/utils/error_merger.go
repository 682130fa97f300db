// Package utils holds small helpers shared by the commands.
package utils //nolint:revive // var-naming: utils is an acceptable package name for shared utilities

import (
	"context"
	"sync"
)

// MergeErrorChans fans every input into one channel. The result is closed
// once all inputs are closed.
func MergeErrorChans(channels ...<-chan error) <-chan error {
	out := make(chan error)
	var wg sync.WaitGroup

	for _, ch := range channels {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for err := range ch {
				out <- err
			}
		}()
	}

	go func() {
		wg.Wait()
		close(out)
	}()

	return out
}

// WaitForError blocks until ctx is done or a non-nil error arrives on errs.
// It returns nil when ctx ends first or errs closes without an error.
func WaitForError(ctx context.Context, errs <-chan error) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case err, ok := <-errs:
			if !ok {
				return nil
			}
			if err != nil {
				return err
			}
		}
	}
}
