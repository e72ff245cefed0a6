package taskqueue

// OutcomeKind tells the worker what to do with a finished attempt.
type OutcomeKind int

const (
	Success OutcomeKind = iota
	Retryable
	Fatal
)

func (k OutcomeKind) String() string {
	switch k {
	case Success:
		return "success"
	case Retryable:
		return "retryable"
	case Fatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// Outcome is returned by the executor for each attempt.
type Outcome struct {
	Kind   OutcomeKind
	Result string
	Err    error
}

func Succeeded(result string) Outcome {
	return Outcome{Kind: Success, Result: result}
}

func RetryLater(err error) Outcome {
	return Outcome{Kind: Retryable, Err: err}
}

func Failed(err error) Outcome {
	return Outcome{Kind: Fatal, Err: err}
}
