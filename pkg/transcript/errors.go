package transcript

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/papercomputeco/chatrelay/pkg/relayclient"
	"github.com/papercomputeco/chatrelay/pkg/stream"
)

var (
	// ErrBusy is returned by Submit while a request is in flight.
	ErrBusy = errors.New("a reply is still streaming")

	// ErrEmptyInput is returned by Submit for blank input.
	ErrEmptyInput = errors.New("empty input")
)

// ErrorKind classifies a failed submit.
type ErrorKind int

const (
	// Unauthenticated is a missing or rejected caller credential.
	Unauthenticated ErrorKind = iota + 1

	// RateLimited is an upstream 429.
	RateLimited

	// QuotaExhausted is an upstream 402.
	QuotaExhausted

	// UpstreamError is any other non-success status, a missing body or a
	// stream that ended inside a split frame.
	UpstreamError

	// TransportFailure is a network level failure, including mid-stream.
	TransportFailure
)

// Notices shown to the user per ErrorKind.
const (
	NoticeUnauthenticated  = "Please sign in to chat with the assistant."
	NoticeRateLimited      = "Rate limits exceeded, please try again later."
	NoticeQuotaExhausted   = "Payment required, please add funds to your workspace."
	NoticeUpstreamError    = "The assistant could not answer right now. Please try again."
	NoticeTransportFailure = "Connection lost while receiving the reply. Please try again."
	NoticeCanceled         = "Reply canceled."
)

func (k ErrorKind) String() string {
	switch k {
	case Unauthenticated:
		return "unauthenticated"
	case RateLimited:
		return "rate_limited"
	case QuotaExhausted:
		return "quota_exhausted"
	case UpstreamError:
		return "upstream_error"
	case TransportFailure:
		return "transport_failure"
	default:
		return "unknown"
	}
}

// Notice returns the user facing text for k.
func (k ErrorKind) Notice() string {
	switch k {
	case Unauthenticated:
		return NoticeUnauthenticated
	case RateLimited:
		return NoticeRateLimited
	case QuotaExhausted:
		return NoticeQuotaExhausted
	case UpstreamError:
		return NoticeUpstreamError
	default:
		return NoticeTransportFailure
	}
}

// RollsBack reports whether a partially streamed assistant message is removed
// when a submit fails with k.
func (k ErrorKind) RollsBack() bool {
	return k == UpstreamError || k == TransportFailure
}

// Failure is the classified error returned by Controller.Submit.
type Failure struct {
	Kind ErrorKind
	Err  error
}

func (f *Failure) Error() string {
	return fmt.Sprintf("%s: %v", f.Kind, f.Err)
}

func (f *Failure) Unwrap() error {
	return f.Err
}

// Classify maps an error from the relay client or the assembler to an
// ErrorKind.
func Classify(err error) ErrorKind {
	var statusErr *relayclient.StatusError
	if errors.As(err, &statusErr) {
		switch statusErr.Code {
		case http.StatusUnauthorized, http.StatusForbidden:
			return Unauthenticated
		case http.StatusTooManyRequests:
			return RateLimited
		case http.StatusPaymentRequired:
			return QuotaExhausted
		default:
			return UpstreamError
		}
	}

	switch {
	case errors.Is(err, relayclient.ErrMissingBody),
		errors.Is(err, stream.ErrTruncatedFrame),
		errors.Is(err, stream.ErrFragmentTooLarge):
		return UpstreamError
	default:
		return TransportFailure
	}
}
