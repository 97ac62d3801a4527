package flow

import "time"

type Kind int

const (
	Render Kind = iota
	Redirect
)

func (k Kind) String() string {
	if k == Redirect {
		return "redirect"
	}
	return "render"
}

type Step string

const (
	StepLogin            Step = "login"
	StepRegister         Step = "register"
	StepVerifyOTP        Step = "verify-otp"
	StepCompleteProfile  Step = "complete-profile"
	StepDashboard        Step = "dashboard"
	StepResetPassword    Step = "reset-password"
	StepResetVerifyOTP   Step = "reset-verify-otp"
	StepResetNewPassword Step = "reset-new-password"
)

// FormField is the key for errors that do not belong to a single input.
const FormField = "_form"

// Outcome tells the transport to render a step or redirect to one.
type Outcome struct {
	Kind   Kind
	Step   Step
	Errors map[string]string
	Notice string
	Query  map[string]string
	Data   map[string]any
}

func (o Outcome) HasErrors() bool { return len(o.Errors) > 0 }

func render(step Step) Outcome { return Outcome{Kind: Render, Step: step} }

func redirect(step Step) Outcome { return Outcome{Kind: Redirect, Step: step} }

func invalid(step Step, errs map[string]string) Outcome {
	return Outcome{Kind: Render, Step: step, Errors: errs}
}

func formError(step Step, msg string) Outcome {
	return invalid(step, map[string]string{FormField: msg})
}

func (o Outcome) withNotice(msg string) Outcome {
	o.Notice = msg
	return o
}

func (o Outcome) withData(key string, v any) Outcome {
	if o.Data == nil {
		o.Data = make(map[string]any)
	}
	o.Data[key] = v
	return o
}

type ResendStatus int

const (
	ResendSent ResendStatus = iota
	ResendNoPending
	ResendTooSoon
	ResendFailed
)

type ResendOutcome struct {
	Status     ResendStatus
	Message    string
	RetryAfter time.Duration
}
