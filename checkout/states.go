package checkout

// State is a step of one checkout attempt.
//
//	START -> SIGNATURE_VERIFIED -> AMOUNT_VERIFIED -> ORDER_PERSISTED -> PAYMENT_CAPTURED | CAPTURE_PENDING_MANUAL -> DONE
//	                                               \-> PERSIST_FAILED -> REFUND_ATTEMPTED | REFUND_SKIPPED -> FAILED
//	START -> SIGNATURE_INVALID -> FAILED
//
// A verified signature can also end in AMOUNT_REJECTED -> FAILED when the
// gateway payment is not one we can accept.
type State string

const (
	StateStart                State = "START"
	StateSignatureVerified    State = "SIGNATURE_VERIFIED"
	StateSignatureInvalid     State = "SIGNATURE_INVALID"
	StateAmountVerified       State = "AMOUNT_VERIFIED"
	StateAmountRejected       State = "AMOUNT_REJECTED"
	StateOrderPersisted       State = "ORDER_PERSISTED"
	StatePaymentCaptured      State = "PAYMENT_CAPTURED"
	StateCapturePendingManual State = "CAPTURE_PENDING_MANUAL"
	StatePersistFailed        State = "PERSIST_FAILED"
	StateRefundAttempted      State = "REFUND_ATTEMPTED"
	StateRefundSkipped        State = "REFUND_SKIPPED"
	StateDone                 State = "DONE"
	StateFailed               State = "FAILED"
)

func (s State) Terminal() bool {
	return s == StateDone || s == StateFailed
}

// transitions lists every legal edge. The runner refuses anything else.
var transitions = map[State][]State{
	StateStart:                {StateSignatureVerified, StateSignatureInvalid, StateFailed},
	StateSignatureInvalid:     {StateFailed},
	StateSignatureVerified:    {StateAmountVerified, StateAmountRejected},
	StateAmountRejected:       {StateFailed},
	StateAmountVerified:       {StateOrderPersisted, StatePersistFailed, StateDone, StateFailed},
	StateOrderPersisted:       {StatePaymentCaptured, StateCapturePendingManual},
	StatePaymentCaptured:      {StateDone},
	StateCapturePendingManual: {StateDone},
	StatePersistFailed:        {StateRefundAttempted, StateRefundSkipped},
	StateRefundAttempted:      {StateFailed},
	StateRefundSkipped:        {StateFailed},
}

func canMove(from, to State) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}
