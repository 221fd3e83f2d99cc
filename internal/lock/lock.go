// Package lock serializes work on a single entity, such as the access
// grants of one company or the gateway resources of one route.
package lock

import (
	"context"
	"errors"
)

// ErrNotAcquired is returned when a lock could not be taken before the
// wait deadline.
var ErrNotAcquired = errors.New("lock not acquired")

// Release gives a held lock back. It is safe to call once.
type Release func()

// Locker hands out exclusive locks by key.
type Locker interface {
	Acquire(ctx context.Context, key string) (Release, error)
}

// CompanyAccessKey is the lock key guarding a company's access grants.
func CompanyAccessKey(companyID string) string {
	return "company-access:" + companyID
}

// RouteKey is the lock key guarding a route's gateway resources.
func RouteKey(routeID string) string {
	return "route:" + routeID
}

// With runs fn while holding key.
func With(ctx context.Context, l Locker, key string, fn func() error) error {
	release, err := l.Acquire(ctx, key)
	if err != nil {
		return err
	}
	defer release()
	return fn()
}
