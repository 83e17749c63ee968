package http

import (
	"io"
	"strings"

	"github.com/fwojciec/chatstream"
)

// writeFrame writes one event-stream frame. Multi-line data is written as
// one data line per line.
func writeFrame(w io.Writer, event, data string) error {
	var b strings.Builder
	b.WriteString("event: ")
	b.WriteString(event)
	b.WriteByte('\n')
	for _, line := range strings.Split(data, "\n") {
		b.WriteString("data: ")
		b.WriteString(strings.TrimSuffix(line, "\r"))
		b.WriteByte('\n')
	}
	b.WriteByte('\n')
	_, err := io.WriteString(w, b.String())
	return err
}

// writeSentinel writes the end-of-stream marker.
func writeSentinel(w io.Writer) error {
	_, err := io.WriteString(w, "data: "+chatstream.DoneSentinel+"\n\n")
	return err
}
