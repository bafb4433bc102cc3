package wizard

// Step is a registration wizard state. The zero value is not a valid step.
type Step int

const (
	StepPersonalInfo Step = iota + 1
	StepVerification
	StepPassword
	StepSuccess
)

func (s Step) String() string {
	switch s {
	case StepPersonalInfo:
		return "personal_info"
	case StepVerification:
		return "verification"
	case StepPassword:
		return "password"
	case StepSuccess:
		return "success"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further transition is possible.
func (s Step) Terminal() bool { return s == StepSuccess }

// Op names an exclusive asynchronous wizard operation.
type Op string

const (
	OpSendCode Op = "send_code"
	OpVerify   Op = "verify_code"
	OpRegister Op = "register"
)
