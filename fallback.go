package chatstream

import (
	"strings"
	"unicode"
)

// ReplyRule produces a local reply for user text it matches.
type ReplyRule struct {
	Name  string
	Match func(text string) bool
	Reply func(text string) string
}

// ReplyRules is an ordered table of local reply rules used when both the
// streaming and the one-shot path fail. The first matching rule wins.
type ReplyRules []ReplyRule

// offlineReply is used when no rule matches.
const offlineReply = "I can't reach the assistant right now. Please try again in a moment."

// Reply returns the reply of the first rule matching text. It never returns
// an empty string.
func (rs ReplyRules) Reply(text string) string {
	for _, r := range rs {
		if r.Match == nil || r.Match(text) {
			if s := r.Reply(text); s != "" {
				return s
			}
		}
	}
	return offlineReply
}

// Rule returns the name of the first rule matching text, or "" if none does.
func (rs ReplyRules) Rule(text string) string {
	for _, r := range rs {
		if r.Match == nil || r.Match(text) {
			return r.Name
		}
	}
	return ""
}

// DefaultReplyRules returns the built-in offline table: greeting, help,
// feature list, connectivity test and a generic acknowledgement.
func DefaultReplyRules() ReplyRules {
	return ReplyRules{
		{
			Name:  "greeting",
			Match: Keywords("hello", "hi", "hey", "greetings", "good morning", "good evening", "你好", "您好"),
			Reply: constReply("Hello! I'm offline at the moment, so my answers are limited. Try again shortly for a full reply."),
		},
		{
			Name:  "help",
			Match: Keywords("help", "how do i", "how to", "usage", "帮助"),
			Reply: constReply("I'm offline right now. Type a question and press Enter; replies stream in as they are generated once the connection is back."),
		},
		{
			Name:  "features",
			Match: Keywords("features", "feature", "what can you do", "capabilities", "功能"),
			Reply: constReply("When connected I can answer questions, explain code and format replies as markdown with tables and highlighted code blocks."),
		},
		{
			Name:  "test",
			Match: Keywords("test", "testing", "ping", "测试"),
			Reply: constReply("Test received. The client is working, but the assistant service is unreachable."),
		},
		{
			Name: "generic",
			Reply: func(text string) string {
				return "I received your message but can't reach the assistant right now: \"" + truncate(strings.TrimSpace(text), 80) + "\". Please try again later."
			},
		},
	}
}

// Keywords returns a case-insensitive matcher. ASCII keywords must match
// whole words (or a whole word sequence); other keywords match as
// substrings.
func Keywords(keywords ...string) func(string) bool {
	return func(text string) bool {
		lower := strings.ToLower(text)
		padded := " " + strings.Join(words(lower), " ") + " "
		for _, kw := range keywords {
			kw = strings.ToLower(kw)
			if isASCII(kw) {
				if strings.Contains(padded, " "+kw+" ") {
					return true
				}
				continue
			}
			if strings.Contains(lower, kw) {
				return true
			}
		}
		return false
	}
}

func constReply(s string) func(string) string {
	return func(string) string { return s }
}

func words(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '\''
	})
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= 0x80 {
			return false
		}
	}
	return true
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "…"
}
