package adapters

import (
	"fmt"
	"net/http"

	"github.com/shopline-platform/reconciliation-service/internal/domain"
)

// classifyStatus maps an HTTP response status to a channel error. Timeouts,
// throttling and server faults are retryable; auth and validation are not.
func classifyStatus(channel domain.ChannelName, op string, status int, body []byte) *domain.ChannelError {
	kind := domain.FailurePermanent
	switch {
	case status == http.StatusRequestTimeout,
		status == http.StatusTooManyRequests,
		status >= http.StatusInternalServerError:
		kind = domain.FailureRetryable
	}
	return domain.NewChannelError(channel, op, kind, fmt.Errorf("status %d: %s", status, string(body)))
}

// classifyTransport wraps a transport-level failure as retryable
func classifyTransport(channel domain.ChannelName, op string, err error) *domain.ChannelError {
	return domain.NewChannelError(channel, op, domain.FailureRetryable, err)
}
