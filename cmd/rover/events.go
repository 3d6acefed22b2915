package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"

	"github.com/teslashibe/go-rover/pkg/robot"
)

var kindIcons = map[string]string{
	"started": "▶️ ",
	"stopped": "⏹️ ",
	"sample":  "📏",
	"state":   "🔄",
	"summary": "✅",
	"error":   "❌",
}

var kindColors = map[string]*color.Color{
	"summary": color.New(color.FgGreen),
	"error":   color.New(color.FgRed, color.Bold),
	"state":   color.New(color.FgCyan),
}

// formatEvent renders an event as one console line.
func formatEvent(e robot.Event) string {
	var b strings.Builder
	if !e.Time.IsZero() {
		b.WriteString(e.Time.Format("15:04:05.000 "))
	}
	icon, ok := kindIcons[e.Kind]
	if !ok {
		icon = "•"
	}
	kind := e.Kind
	if c, ok := kindColors[e.Kind]; ok {
		kind = c.Sprint(e.Kind)
	}
	fmt.Fprintf(&b, "%s [%s] %s", icon, e.Source, kind)
	if e.Mode != "" {
		fmt.Fprintf(&b, " mode=%s", e.Mode)
	}
	if e.Angle != nil {
		fmt.Fprintf(&b, " angle=%d°", *e.Angle)
	}
	if e.Distance != nil {
		fmt.Fprintf(&b, " distance=%s", e.Distance)
	}
	if e.Message != "" {
		fmt.Fprintf(&b, " %s", e.Message)
	}
	return b.String()
}

// printer writes every event to stdout.
func printer() robot.Observer {
	return robot.ObserverFunc(func(e robot.Event) {
		fmt.Println(formatEvent(e))
	})
}

// banners receives startup lines; scan --json points it at stderr.
var banners io.Writer = os.Stdout

func banner(format string, args ...any) {
	fmt.Fprintf(banners, format+"\n", args...)
}
