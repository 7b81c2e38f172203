package daemon

import (
	"context"
	"fmt"

	"github.com/fsnotify/fsnotify"
)

// untilModified returns a context cancelled with ErrConfigChanged once any of
// paths is written, created, removed, or renamed.
func untilModified(ctx context.Context, paths ...string) (context.Context, func(), error) {
	watched, cancel := context.WithCancelCause(ctx)

	w, err := fsnotify.NewWatcher()
	if err != nil {
		cancel(err)
		return nil, nil, err
	}
	for _, path := range paths {
		if err := w.Add(path); err != nil {
			w.Close()
			cancel(err)
			return nil, nil, err
		}
	}

	go func() {
		defer w.Close()
		for {
			select {
			case <-watched.Done():
				return
			case event, ok := <-w.Events:
				if !ok {
					return
				}
				if event.Op == fsnotify.Chmod {
					continue
				}
				cancel(fmt.Errorf("%w: %s (%s)", ErrConfigChanged, event.Name, event.Op))
				return
			case _, ok := <-w.Errors:
				if !ok {
					return
				}
			}
		}
	}()

	return watched, func() { cancel(nil) }, nil
}
