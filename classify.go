package chatstream

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"
)

// ErrorClass is the user-facing category of an upstream failure.
type ErrorClass string

const (
	ClassNetwork ErrorClass = "network"
	ClassTimeout ErrorClass = "timeout"
	ClassAuth    ErrorClass = "auth"
	ClassQuota   ErrorClass = "quota"
	ClassModel   ErrorClass = "model"
	ClassUnknown ErrorClass = "unknown"
)

var explanations = map[ErrorClass]string{
	ClassNetwork: "Could not reach the assistant. Check your network connection and try again.",
	ClassTimeout: "The assistant took too long to respond. Please try again.",
	ClassAuth:    "The assistant rejected the credentials. Check the API key configuration.",
	ClassQuota:   "The usage quota or rate limit has been reached. Please wait and try again.",
	ClassModel:   "The model could not handle this request. Try again or pick another model.",
	ClassUnknown: "Something went wrong while generating a reply. Please try again.",
}

// Explanation returns the fixed user-facing message for the class.
func (c ErrorClass) Explanation() string {
	if s, ok := explanations[c]; ok {
		return s
	}
	return explanations[ClassUnknown]
}

// classRule maps any of its keywords to a class. Keywords are lower case.
type classRule struct {
	class    ErrorClass
	keywords []string
}

// classRules is ordered most specific first: "connection timed out" is a
// timeout, "model rate limit" is quota.
var classRules = []classRule{
	{ClassTimeout, []string{"timeout", "timed out", "deadline exceeded"}},
	{ClassAuth, []string{"unauthorized", "forbidden", "api key", "apikey", "authentication", "invalid token", "permission denied"}},
	{ClassQuota, []string{"quota", "rate limit", "ratelimit", "too many requests", "insufficient", "billing", "exceeded your"}},
	{ClassModel, []string{"model", "context length", "maximum context", "overloaded", "unsupported", "content filter"}},
	{ClassNetwork, []string{"network", "connection", "connect", "dial", "refused", "reset by peer", "no such host", "unreachable", "eof", "broken pipe", "fetch"}},
}

// Classify maps err to an ErrorClass. It prefers typed information (context
// deadlines, net.Error timeouts, *StatusError codes) and falls back to
// matching the error text with ClassifyMessage.
func Classify(err error) ErrorClass {
	if err == nil {
		return ClassUnknown
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ClassTimeout
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return ClassTimeout
	}
	var se *StatusError
	if errors.As(err, &se) {
		if c, ok := classifyStatus(se.StatusCode); ok {
			return c
		}
	}
	return ClassifyMessage(err.Error())
}

// ClassifyMessage matches msg case-insensitively against the keyword table.
// The first matching rule wins; no match yields ClassUnknown.
func ClassifyMessage(msg string) ErrorClass {
	lower := strings.ToLower(msg)
	for _, r := range classRules {
		for _, kw := range r.keywords {
			if strings.Contains(lower, kw) {
				return r.class
			}
		}
	}
	return ClassUnknown
}

func classifyStatus(code int) (ErrorClass, bool) {
	switch code {
	case http.StatusUnauthorized, http.StatusForbidden:
		return ClassAuth, true
	case http.StatusPaymentRequired, http.StatusTooManyRequests:
		return ClassQuota, true
	case http.StatusRequestTimeout, http.StatusGatewayTimeout:
		return ClassTimeout, true
	case http.StatusBadGateway, http.StatusServiceUnavailable:
		return ClassNetwork, true
	case http.StatusNotFound, http.StatusUnprocessableEntity:
		return ClassModel, true
	default:
		return "", false
	}
}
