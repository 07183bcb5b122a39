package fetch

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"pricetracker-backend/internal/scraper"
)

// MaxAttempts is the number of requests a single Fetch makes before giving up.
const MaxAttempts = 5

// outcome is the class of a single attempt's result, the retry loop only looks at this.
type outcome int

const (
	outcomeSuccess outcome = iota
	outcomeForbidden
	outcomeRateLimited
	outcomeServerError
	outcomeUnexpectedStatus
	outcomeTimeout
	outcomeConnectionFailed
)

func (o outcome) String() string {
	switch o {
	case outcomeSuccess:
		return "success"
	case outcomeForbidden:
		return "forbidden"
	case outcomeRateLimited:
		return "rate_limited"
	case outcomeServerError:
		return "server_error"
	case outcomeUnexpectedStatus:
		return "unexpected_status"
	case outcomeTimeout:
		return "timeout"
	case outcomeConnectionFailed:
		return "connection_failed"
	}
	return "unknown"
}

// classifyStatus maps an http status code into an outcome.
func classifyStatus(status int) outcome {
	switch {
	case status == http.StatusOK:
		return outcomeSuccess
	case status == http.StatusForbidden:
		return outcomeForbidden
	case status == http.StatusTooManyRequests:
		return outcomeRateLimited
	case status >= 500:
		return outcomeServerError
	}
	return outcomeUnexpectedStatus
}

// classifyError maps a transport error into an outcome, anything that is not a timeout is
// treated as a failed connection.
func classifyError(err error) outcome {
	if errors.Is(err, context.DeadlineExceeded) {
		return outcomeTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return outcomeTimeout
	}
	return outcomeConnectionFailed
}

type transition struct {
	// cause is the error cause once the transition cannot retry anymore.
	cause scraper.Cause
	// backoff is nil for outcomes that fail immediately.
	backoff func(rndm *lockedRand, attempt int) time.Duration
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

// attempt is zero indexed, so the first retry waits for (attempt + 1) units.
var transitions = map[outcome]transition{
	outcomeForbidden: {
		cause: scraper.CauseForbidden,
		backoff: func(rndm *lockedRand, attempt int) time.Duration {
			return seconds(rndm.Uniform(5, 10) * float64(attempt+1))
		},
	},
	outcomeRateLimited: {
		cause: scraper.CauseRateLimited,
		backoff: func(_ *lockedRand, attempt int) time.Duration {
			return seconds(5 * float64(attempt+1))
		},
	},
	outcomeServerError: {
		cause: scraper.CauseServerError,
		backoff: func(_ *lockedRand, attempt int) time.Duration {
			return seconds(2 * float64(attempt+1))
		},
	},
	outcomeUnexpectedStatus: {
		cause: scraper.CauseUnsupported,
	},
	outcomeTimeout: {
		cause: scraper.CauseTimeout,
		backoff: func(_ *lockedRand, attempt int) time.Duration {
			return seconds(1.5 * float64(attempt+1))
		},
	},
	outcomeConnectionFailed: {
		cause: scraper.CauseConnectionFailed,
		backoff: func(_ *lockedRand, attempt int) time.Duration {
			return seconds(float64(attempt + 1))
		},
	},
}

type decision struct {
	done  bool
	retry bool
	delay time.Duration
	// cause is set when the fetch has failed for good.
	cause scraper.Cause
}

// decide is the retry state machine: given the outcome of the zero indexed `attempt` it
// returns whether to return the body, to retry after `delay` or to fail with `cause`.
func decide(rndm *lockedRand, o outcome, attempt int) decision {
	if o == outcomeSuccess {
		return decision{done: true}
	}
	t, ok := transitions[o]
	if !ok {
		return decision{cause: scraper.CauseUnsupported}
	}
	if t.backoff == nil || attempt+1 >= MaxAttempts {
		return decision{cause: t.cause}
	}
	return decision{retry: true, delay: t.backoff(rndm, attempt)}
}
