package rest

import (
	"context"
	"log/slog"
)

// StartupHook runs before the server accepts traffic. It returns an
// optional release function invoked at shutdown, or when a later hook
// fails during startup. A nil release is allowed.
type StartupHook func(ctx context.Context) (release func(ctx context.Context) error, err error)

// lifecycle runs startup hooks in registration order and their releases
// in reverse, so a resource never outlives anything started after it.
type lifecycle struct {
	hooks    []StartupHook
	releases []func(ctx context.Context) error
}

func (l *lifecycle) onStartup(h StartupHook) {
	l.hooks = append(l.hooks, h)
}

// start runs all hooks in order. On failure the already-acquired
// releases are unwound before the error is returned.
func (l *lifecycle) start(ctx context.Context) error {
	for _, h := range l.hooks {
		release, err := h(ctx)
		if err != nil {
			l.release(ctx)
			return err
		}
		if release != nil {
			l.releases = append(l.releases, release)
		}
	}
	return nil
}

// release unwinds acquired resources in reverse order. Release errors
// are logged, not propagated: shutdown continues past a failing release.
func (l *lifecycle) release(ctx context.Context) {
	for i := len(l.releases) - 1; i >= 0; i-- {
		if err := l.releases[i](ctx); err != nil {
			slog.Error("release failed", "error", err)
		}
	}
	l.releases = nil
}
