package port

import "context"

type Locker interface {
	// Lock blocks until the named section is held; the returned func releases it
	Lock(ctx context.Context, key string) (unlock func(), err error)
}
