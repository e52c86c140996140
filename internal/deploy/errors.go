package deploy

import "fmt"

// Rollback verification step names, reported in VerificationError so
// the operator knows exactly where a failed verification stopped.
const (
	StepReadHistory      = "read_history"
	StepRetarget         = "retarget"
	StepPropagation      = "propagation_timeout"
	StepLiveness         = "liveness_probe"
	StepRollForward      = "roll_forward"
	StepRollForwardProbe = "roll_forward_probe"
)

// VerificationError reports a failed rollback verification. It is
// blocking: production promotion must not proceed past it.
type VerificationError struct {
	Step   string
	Detail string
	Err    error
}

func (e *VerificationError) Error() string {
	msg := fmt.Sprintf("rollback verification failed at step %s", e.Step)
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *VerificationError) Unwrap() error { return e.Err }

// PromotionBlockedError reports a production deployment attempted
// without the rollback verification the topology requires.
type PromotionBlockedError struct {
	Reason string
}

func (e *PromotionBlockedError) Error() string {
	return "production promotion blocked: " + e.Reason
}
