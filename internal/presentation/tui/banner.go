package tui

import (
	"fmt"
	"io"

	"github.com/muesli/termenv"
)

// PrintBanner writes the lattice banner to w.
func PrintBanner(w io.Writer) {
	p := termenv.ColorProfile()
	lines := []struct {
		text, color string
	}{
		{"  _       _   _   _          ", "#818cf8"},
		{" | | __ _| |_| |_(_) ___ ___ ", "#a78bfa"},
		{" | |/ _` | __| __| |/ __/ _ \\", "#c084fc"},
		{" | | (_| | |_| |_| | (_|  __/", "#e879f9"},
		{" |_|\\__,_|\\__|\\__|_|\\___\\___|", "#f472b6"},
	}

	fmt.Fprintln(w)
	for _, l := range lines {
		fmt.Fprintln(w, p.String(l.text).Foreground(p.Color(l.color)))
	}
	fmt.Fprintln(w)
}
