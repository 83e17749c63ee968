package chatstream_test

import (
	"testing"

	"github.com/fwojciec/chatstream"
	"github.com/stretchr/testify/assert"
)

func TestDefaultReplyRules(t *testing.T) {
	t.Parallel()

	rules := chatstream.DefaultReplyRules()

	tests := []struct {
		text string
		rule string
	}{
		{"hello there", "greeting"},
		{"Hi!", "greeting"},
		{"你好", "greeting"},
		{"help", "help"},
		{"How do I export a chat?", "help"},
		{"what can you do?", "features"},
		{"list your features", "features"},
		{"this is a test", "test"},
		{"ping", "test"},
		{"explain goroutines", "generic"},
		{"this thing", "generic"}, // "hi" inside a word does not greet
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.rule, rules.Rule(tt.text))
			assert.NotEmpty(t, rules.Reply(tt.text))
		})
	}
}

func TestReplyRules_FirstMatchWins(t *testing.T) {
	t.Parallel()

	rules := chatstream.ReplyRules{
		{Name: "a", Match: chatstream.Keywords("help"), Reply: func(string) string { return "A" }},
		{Name: "b", Match: chatstream.Keywords("help"), Reply: func(string) string { return "B" }},
	}
	assert.Equal(t, "A", rules.Reply("help me"))
	assert.Equal(t, "a", rules.Rule("help me"))
}

func TestReplyRules_NeverEmpty(t *testing.T) {
	t.Parallel()

	var empty chatstream.ReplyRules
	assert.NotEmpty(t, empty.Reply("anything"))
	assert.Equal(t, "", empty.Rule("anything"))

	blank := chatstream.ReplyRules{
		{Name: "blank", Reply: func(string) string { return "" }},
	}
	assert.NotEmpty(t, blank.Reply("anything"))
}

func TestReplyRules_GenericQuotesInput(t *testing.T) {
	t.Parallel()

	reply := chatstream.DefaultReplyRules().Reply("explain goroutines")
	assert.Contains(t, reply, "explain goroutines")
}

func TestKeywords(t *testing.T) {
	t.Parallel()

	match := chatstream.Keywords("how do i", "帮助")
	assert.True(t, match("So, how do I start?"))
	assert.True(t, match("我需要帮助"))
	assert.False(t, match("however doing it"))
}
