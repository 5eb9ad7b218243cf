package coordinator

import "github.com/jcmexdev/order-worker/internal/domain"

// State is a pipeline state. Every run starts in StateStart and ends in
// StateDone or StateFailed.
type State string

const (
	StateStart              State = "START"
	StateLocking            State = "LOCKING"
	StateLocked             State = "LOCKED"
	StateFetchingCustomer   State = "FETCHING_CUSTOMER"
	StateValidatingCustomer State = "VALIDATING_CUSTOMER"
	StateFetchingProducts   State = "FETCHING_PRODUCTS"
	StateValidatingProducts State = "VALIDATING_PRODUCTS"
	StateAssembling         State = "ASSEMBLING"
	StatePersisting         State = "PERSISTING"
	StateDone               State = "DONE"
	StateFailed             State = "FAILED"
)

// Failure reasons. They double as metric label values, so the set is closed.
const (
	ReasonLockNotAcquired     = "lock not acquired"
	ReasonCustomerNotFound    = "customer not found"
	ReasonCustomerFetchFailed = "customer fetch failed"
	ReasonCustomerInactive    = "customer inactive"
	ReasonIncompleteProducts  = "incomplete product set"
	ReasonPersistenceFailed   = "persistence failed"
)

// Outcome is the result of one pipeline run. Err is nil iff State is
// StateDone, in which case Order is set.
type Outcome struct {
	Order  *domain.StoredOrder
	Err    error
	Reason string
	State  State
	// Stage is the last non-terminal state entered before the run ended.
	Stage State
	RunID string
}

func (o Outcome) Succeeded() bool {
	return o.Err == nil && o.State == StateDone
}

// Retryable reports whether the same event may succeed on a later run.
func (o Outcome) Retryable() bool {
	return o.Err != nil && domain.Retryable(o.Err)
}
