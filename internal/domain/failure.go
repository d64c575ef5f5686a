package domain

type FailureKind string

const (
	FailureUnsupported FailureKind = "unsupported"
	FailurePermission  FailureKind = "permission"
	FailureCapture     FailureKind = "capture"
	FailureReply       FailureKind = "reply"
)

// Failure is what the error phase shows to the user until a retry.
type Failure struct {
	Kind   FailureKind
	Title  string
	Detail string
}

func (f Failure) Error() string {
	if f.Detail == "" {
		return f.Title
	}
	return f.Title + ": " + f.Detail
}
