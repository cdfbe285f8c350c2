package runtime

import "errors"

var (
	// ErrCreateRuntime means the native backend failed to initialize.
	ErrCreateRuntime = errors.New("failed to create runtime")

	// ErrCreateWindow means a pending window could not be realized.
	ErrCreateWindow = errors.New("failed to create window")

	// ErrDelivery means an operation could not reach its window because the
	// window is gone or the engine channel is severed.
	ErrDelivery = errors.New("failed to send message to window")

	// ErrInvalidIcon means the engine could not decode an icon.
	ErrInvalidIcon = errors.New("invalid icon")

	// ErrUnsupported means the engine has no way to perform an operation.
	ErrUnsupported = errors.New("operation not supported by engine")

	// ErrPendingConsumed means a pending window was handed to an engine twice.
	ErrPendingConsumed = errors.New("pending window already consumed")

	// ErrNotHandled is returned by a ProtocolHandler that declines a request.
	ErrNotHandled = errors.New("protocol request not handled")
)
