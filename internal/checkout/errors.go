package checkout

import "fmt"

// Step names a stage of the checkout
type Step string

const (
	StepValidate      Step = "validate"
	StepCreateOrder   Step = "create_order"
	StepFreeOrder     Step = "complete_free_order"
	StepCreatePayment Step = "create_payment"
	StepPayment       Step = "payment"
	StepVerify        Step = "verify_payment"
	StepCompleteOrder Step = "complete_order"
)

// Error is a checkout failure. Message is safe to show to the customer.
type Error struct {
	Step    Step
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("checkout %s: %s: %v", e.Step, e.Message, e.Err)
	}
	return fmt.Sprintf("checkout %s: %s", e.Step, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

const (
	msgCreateOrder   = "We couldn't create your order. Please try again or contact support."
	msgCreatePayment = "We couldn't start the payment. Please try again or contact support."
	msgNotPaid       = "Your payment has not been confirmed. Please try again or contact support."
	msgCompleteOrder = "Your payment was received but we couldn't finalize your order. Please contact support."
	msgEmptyCart     = "Your cart is empty."
)
