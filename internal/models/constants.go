package models

const (
	StatusPending   = "pending"
	StatusConfirmed = "confirmed"
	StatusCancelled = "cancelled"
	StatusCompleted = "completed"
)

const (
	PaymentUnpaid        = "unpaid"
	PaymentPartiallyPaid = "partially_paid"
	PaymentPaid          = "paid"
	PaymentRefunded      = "refunded"
	PaymentFailed        = "failed"
	PaymentExpired       = "expired"
)

const (
	ProviderPending = "pending"
	ProviderPaid    = "paid"
	ProviderFailed  = "failed"
)

const (
	ActionCreate   = "CREATE"
	ActionUpdate   = "UPDATE"
	ActionDelete   = "DELETE"
	ActionApprove  = "APPROVE"
	ActionCancel   = "CANCEL"
	ActionExpire   = "EXPIRE"
	ActionComplete = "COMPLETE"
)

const (
	EntityBooking = "booking"
	EntityPayment = "payment"
)

const (
	// DefaultBookingTTLMinutes срок жизни неоплаченной заявки до отмены свипером
	DefaultBookingTTLMinutes = 30

	// DefaultTokenTTLDays срок жизни гостевой ссылки подтверждения
	DefaultTokenTTLDays = 30

	// DefaultPriceTolerancePercent допустимое расхождение пересчитанной цены
	DefaultPriceTolerancePercent = 0.5

	// DefaultCheckoutQuota количество попыток оплаты в окне
	DefaultCheckoutQuota = 5

	// DefaultCheckoutWindow окно ограничения попыток оплаты в секундах
	DefaultCheckoutWindow = 300

	// DefaultReconcileAfterMinutes возраст зависшего платежа до сверки с провайдером
	DefaultReconcileAfterMinutes = 15
)

// IsTerminal reports whether no further transition may leave the status.
func IsTerminal(status string) bool {
	return status == StatusCancelled || status == StatusCompleted
}
