package booking

// Kind discriminates transition events. The transition table is keyed by
// (status, kind); adding a kind without a table row makes the event
// unreachable, which the exhaustiveness test catches.
type Kind string

const (
	KindSettle   Kind = "payment_settled"
	KindFail     Kind = "payment_failed"
	KindCancel   Kind = "cancel"
	KindExpire   Kind = "expire"
	KindConfirm  Kind = "confirm"
	KindComplete Kind = "complete"
)

// Event is a request to move a booking through the state machine.
type Event interface {
	Kind() Kind
}

// PaymentSettled reports that one payment attempt settled for Amount.
// The booking's paid total is re-derived from all settled payments, not
// taken from this event alone.
type PaymentSettled struct {
	Amount int64
}

func (PaymentSettled) Kind() Kind { return KindSettle }

// PaymentFailed reports a failed payment attempt.
type PaymentFailed struct {
	Reason string
}

func (PaymentFailed) Kind() Kind { return KindFail }

// Cancel is a guest or staff cancellation.
type Cancel struct{}

func (Cancel) Kind() Kind { return KindCancel }

// Expire is the sweeper-driven cancellation of a stale unpaid booking.
type Expire struct{}

func (Expire) Kind() Kind { return KindExpire }

// Confirm is an explicit staff confirmation.
type Confirm struct{}

func (Confirm) Kind() Kind { return KindConfirm }

// Complete marks the stay as finished.
type Complete struct{}

func (Complete) Kind() Kind { return KindComplete }
