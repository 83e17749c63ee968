package chatstream

// Theme defines semantic color mappings using ANSI color indices (0-15).
// The user's terminal theme determines the actual RGB values, so the app
// automatically matches any color scheme. A negative index means no color.
type Theme struct {
	UserMsg int // User message accent
	Error   int // Failed replies and error status
	Notice  int // Render fallback and offline notices
	Muted   int // Status bar, placeholders, code gutters
	Accent  int // Headings, links, table headers
	CodeBg  int // Code block background
}

// DefaultTheme returns the default ANSI color mapping.
func DefaultTheme() Theme {
	return Theme{
		UserMsg: 4,
		Error:   1,
		Notice:  3,
		Muted:   8,
		Accent:  5,
		CodeBg:  0,
	}
}
