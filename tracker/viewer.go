package tracker

import (
	"context"
	"log"
	"time"

	"visittrack/api/models"
)

// ViewerResolver looks up who is viewing before a visit starts. It may block
// on I/O; the Manager bounds it with a timeout.
type ViewerResolver interface {
	ResolveViewer(ctx context.Context) (models.ViewerInfo, error)
}

type ViewerResolverFunc func(ctx context.Context) (models.ViewerInfo, error)

func (f ViewerResolverFunc) ResolveViewer(ctx context.Context) (models.ViewerInfo, error) {
	return f(ctx)
}

// StaticViewer always resolves to the same info.
func StaticViewer(info models.ViewerInfo) ViewerResolver {
	return ViewerResolverFunc(func(context.Context) (models.ViewerInfo, error) {
		return info, nil
	})
}

func defaultViewerInfo() models.ViewerInfo {
	return models.ViewerInfo{ClientFingerprint: models.UnknownFingerprint}
}

// resolveViewer runs r with a deadline and returns the default info on
// error or timeout. It never waits longer than timeout.
func resolveViewer(ctx context.Context, r ViewerResolver, timeout time.Duration) models.ViewerInfo {
	if r == nil {
		return defaultViewerInfo()
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type result struct {
		info models.ViewerInfo
		err  error
	}
	ch := make(chan result, 1)
	go func() {
		info, err := r.ResolveViewer(ctx)
		ch <- result{info, err}
	}()

	select {
	case res := <-ch:
		if res.err != nil {
			log.Printf("WARN: viewer lookup failed, using defaults: %v", res.err)
			return defaultViewerInfo()
		}
		if res.info.ClientFingerprint == "" {
			res.info.ClientFingerprint = models.UnknownFingerprint
		}
		return res.info
	case <-ctx.Done():
		log.Printf("WARN: viewer lookup did not finish, using defaults: %v", ctx.Err())
		return defaultViewerInfo()
	}
}
