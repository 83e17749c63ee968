package chatstream_test

import (
	"context"
	"errors"
	"fmt"
	"net"
	"testing"

	"github.com/fwojciec/chatstream"
	"github.com/stretchr/testify/assert"
)

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o wait" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

var _ net.Error = timeoutErr{}

func TestClassify(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want chatstream.ErrorClass
	}{
		{"nil", nil, chatstream.ClassUnknown},
		{"network failure", errors.New("Network request failed"), chatstream.ClassNetwork},
		{"connection refused", errors.New("dial tcp 127.0.0.1:54082: connect: connection refused"), chatstream.ClassNetwork},
		{"fetch failure", errors.New("Failed to fetch"), chatstream.ClassNetwork},
		{"timeout text", errors.New("request timeout after 30s"), chatstream.ClassTimeout},
		{"connection timed out is a timeout", errors.New("connection timed out"), chatstream.ClassTimeout},
		{"context deadline", fmt.Errorf("send: %w", context.DeadlineExceeded), chatstream.ClassTimeout},
		{"net timeout", fmt.Errorf("read: %w", timeoutErr{}), chatstream.ClassTimeout},
		{"unauthorized text", errors.New("401 Unauthorized"), chatstream.ClassAuth},
		{"api key", errors.New("invalid API key provided"), chatstream.ClassAuth},
		{"quota text", errors.New("You exceeded your current quota"), chatstream.ClassQuota},
		{"rate limit beats model", errors.New("model rate limit reached"), chatstream.ClassQuota},
		{"model text", errors.New("model not found: gpt-x"), chatstream.ClassModel},
		{"context length", errors.New("maximum context length is 8192 tokens"), chatstream.ClassModel},
		{"unmatched", errors.New("something odd"), chatstream.ClassUnknown},
		{"status 401", &chatstream.StatusError{StatusCode: 401}, chatstream.ClassAuth},
		{"status 403", &chatstream.StatusError{StatusCode: 403}, chatstream.ClassAuth},
		{"status 429", &chatstream.StatusError{StatusCode: 429}, chatstream.ClassQuota},
		{"status 504", &chatstream.StatusError{StatusCode: 504}, chatstream.ClassTimeout},
		{"status 503", &chatstream.StatusError{StatusCode: 503}, chatstream.ClassNetwork},
		{"status 404", &chatstream.StatusError{StatusCode: 404}, chatstream.ClassModel},
		{"wrapped status", fmt.Errorf("http: %w", &chatstream.StatusError{StatusCode: 429, Message: "slow down"}), chatstream.ClassQuota},
		{"status 500 falls back to text", &chatstream.StatusError{StatusCode: 500, Message: "upstream connection reset"}, chatstream.ClassNetwork},
		{"status 500 without hint", &chatstream.StatusError{StatusCode: 500}, chatstream.ClassUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, chatstream.Classify(tt.err))
		})
	}
}

func TestClassifyMessage_CaseInsensitive(t *testing.T) {
	t.Parallel()
	assert.Equal(t, chatstream.ClassTimeout, chatstream.ClassifyMessage("TIMEOUT"))
	assert.Equal(t, chatstream.ClassQuota, chatstream.ClassifyMessage("Too Many Requests"))
}

func TestErrorClass_Explanation(t *testing.T) {
	t.Parallel()

	classes := []chatstream.ErrorClass{
		chatstream.ClassNetwork,
		chatstream.ClassTimeout,
		chatstream.ClassAuth,
		chatstream.ClassQuota,
		chatstream.ClassModel,
		chatstream.ClassUnknown,
	}
	seen := make(map[string]bool)
	for _, c := range classes {
		msg := c.Explanation()
		assert.NotEmpty(t, msg, c)
		assert.False(t, seen[msg], "explanation for %s is not distinct", c)
		seen[msg] = true
	}
	assert.Equal(t, chatstream.ClassUnknown.Explanation(), chatstream.ErrorClass("bogus").Explanation())
}
