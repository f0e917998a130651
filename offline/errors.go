package offline

import "errors"

var (
	// ErrInvalidConfig indicates a worker configuration that cannot be used.
	ErrInvalidConfig = errors.New("offline: invalid config")

	// ErrInstallFailed wraps the cause of a failed install. The worker is
	// redundant afterwards.
	ErrInstallFailed = errors.New("offline: install failed")

	// ErrAssetStatus indicates a manifest asset answered with a non-2xx status.
	ErrAssetStatus = errors.New("offline: asset returned non-2xx status")

	// ErrInvalidState indicates a lifecycle step out of order.
	ErrInvalidState = errors.New("offline: invalid worker state")

	// ErrNotInstalled is returned by Activate before a successful Install.
	ErrNotInstalled = errors.New("offline: worker not installed")

	// ErrNotActive is returned by Fetch on a worker that is not activated.
	ErrNotActive = errors.New("offline: worker not active")
)
