package apperr

import "errors"

// Invalid is returned when the input fails domain validation.
var Invalid = errors.New("invalid input")

// Conflict indicates a uniqueness or state conflict.
var Conflict = errors.New("conflict")

// NotFound indicates that the requested resource does not exist.
var NotFound = errors.New("not found")

// Declined marks a confirmation dialog answered with no. It is a normal
// outcome, never surfaced as a user-visible failure.
var Declined = errors.New("declined by driver")

// NotDispatched is the gateway's translation of the order service refusing
// a transition because the order was never dispatched to the driver.
var NotDispatched = errors.New("order has not been dispatched")

// ProofRequired marks an activity that may not be applied before proof of
// delivery is captured.
var ProofRequired = errors.New("proof of delivery required")

// Busy is returned when an operation is requested while another one is
// still pending on the same controller.
var Busy = errors.New("operation already pending")

// AlreadyConfirmed guards the accept path against duplicate confirmation.
var AlreadyConfirmed = errors.New("order already confirmed")

// Offline marks an action recorded to the offline queue instead of being
// sent. Not a failure.
var Offline = errors.New("queued while offline")
