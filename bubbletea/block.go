package bubbletea

// MessageBlock is a renderable element in the conversation.
// View takes a width parameter so the root model controls layout and
// blocks are testable in isolation.
type MessageBlock interface {
	View(width int) string
}

// blockSeparator returns the spacing placed between two adjacent blocks.
// A reply sits directly under its prompt; everything else is separated by
// a blank line.
func blockSeparator(prev, curr MessageBlock) string {
	_, prevUser := prev.(*UserMessageBlock)
	_, currReply := curr.(*AssistantBlock)
	if prevUser && currReply {
		return "\n"
	}
	if _, ok := curr.(*ErrorBlock); ok {
		return "\n"
	}
	return "\n\n"
}
