package tui

import (
	"fmt"
	"io"

	"github.com/muesli/termenv"
)

// PrintBanner writes the tapestry banner to w.
func PrintBanner(w io.Writer) {
	p := termenv.ColorProfile()
	lines := []struct {
		text  string
		color string
	}{
		{"  _                       _", "#818cf8"},
		{" | |_ __ _ _ __  ___ ___| |_ _ __ _  _", "#a78bfa"},
		{" |  _/ _` | '_ \\/ -_|_-<  _| '_| || |", "#c084fc"},
		{"  \\__\\__,_| .__/\\___/__/\\__|_|  \\_, |", "#e879f9"},
		{"          |_|                  |__/", "#f472b6"},
	}
	fmt.Fprintln(w)
	for _, l := range lines {
		fmt.Fprintln(w, termenv.String(l.text).Foreground(p.Color(l.color)))
	}
	fmt.Fprintln(w)
}
