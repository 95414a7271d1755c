package session

import "errors"

// Terminal errors. Each aborts the run at the phase that produced it.
var (
	// ErrConnectTimeout is returned when no connection succeeded within the timeout.
	ErrConnectTimeout = errors.New("session: connect timed out")

	// ErrSubscribeTimeout is returned when the SUBACK did not arrive in time.
	ErrSubscribeTimeout = errors.New("session: subscribe timed out")

	// ErrSubscribeRejected is returned when the subscribe failed or the broker refused it.
	ErrSubscribeRejected = errors.New("session: subscribe rejected")

	// ErrUnsubscribeTimeout is returned when the UNSUBACK did not arrive in time.
	ErrUnsubscribeTimeout = errors.New("session: unsubscribe timed out")

	// ErrUnsubscribeRejected is returned when the unsubscribe failed.
	ErrUnsubscribeRejected = errors.New("session: unsubscribe rejected")

	// ErrStopTimeout is returned when the transport did not report stopped in time.
	ErrStopTimeout = errors.New("session: stop timed out")
)

// Non-terminal errors. They are logged or carried in results, never returned by Run.
var (
	// ErrConnectionFailureObserved wraps a transport connection failure.
	ErrConnectionFailureObserved = errors.New("session: connection failure observed")

	// ErrMalformedPayload marks an inbound body that is not a command object.
	ErrMalformedPayload = errors.New("session: malformed payload")

	// ErrEnqueuePanicked wraps a panic raised by Queue.Enqueue.
	ErrEnqueuePanicked = errors.New("session: enqueue panicked")
)

// Contract errors.
var (
	// ErrDuplicateSignal is returned when a one-shot lifecycle signal is resolved twice.
	ErrDuplicateSignal = errors.New("session: lifecycle signal resolved twice")

	// ErrWaitTimeout is returned by bounded waits that elapse.
	ErrWaitTimeout = errors.New("session: wait timed out")

	// ErrAlreadyStarted is returned when Run is called on a used Coordinator.
	ErrAlreadyStarted = errors.New("session: coordinator already started")

	// ErrInvalidConfig is returned by NewCoordinator for unusable settings.
	ErrInvalidConfig = errors.New("session: invalid config")
)
