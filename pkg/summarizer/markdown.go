package summarizer

import (
	"fmt"
	"strings"
	"time"
)

// MarkdownFormatter renders a Summary as a Markdown report.
type MarkdownFormatter struct{}

// NewMarkdownFormatter creates a new MarkdownFormatter.
func NewMarkdownFormatter() *MarkdownFormatter {
	return &MarkdownFormatter{}
}

// Format implements the Formatter interface.
func (f *MarkdownFormatter) Format(s *Summary) string {
	var b strings.Builder

	b.WriteString("# Capture Summary\n\n")
	fmt.Fprintf(&b, "Generated at %s\n\n", s.GeneratedAt.Format(time.RFC3339))

	b.WriteString("## Device\n\n")
	b.WriteString("| Item | Value |\n|---|---|\n")
	fmt.Fprintf(&b, "| Index | %d |\n", s.Device.Index)
	fmt.Fprintf(&b, "| Name | %s |\n", escape(s.Device.Name))
	if s.Device.Path != "" {
		fmt.Fprintf(&b, "| Path | `%s` |\n", s.Device.Path)
	}
	b.WriteString("\n")

	b.WriteString("## Formats\n\n")
	b.WriteString("| Stage | Format | Size | Frame rate |\n|---|---|---|---|\n")
	fmt.Fprintf(&b, "| Capture | %s | %dx%d | %s |\n",
		s.Capture.Format, s.Capture.Width, s.Capture.Height, formatFPS(s.Capture.FPS))
	fmt.Fprintf(&b, "| Decode | %s | %dx%d (stride %d) | %s |\n",
		s.Transform.OutputFormat, s.Capture.Width, s.Capture.Height, s.Transform.Stride, formatFPS(s.Capture.FPS))
	b.WriteString("\n")

	b.WriteString("## Decode\n\n")
	b.WriteString("| Item | Value |\n|---|---|\n")
	fmt.Fprintf(&b, "| Backend | %s |\n", s.Transform.Backend)
	fmt.Fprintf(&b, "| Read attempts | %d |\n", s.Run.Requested)
	fmt.Fprintf(&b, "| Samples | %d |\n", s.Run.Samples)
	fmt.Fprintf(&b, "| Stream ticks | %d |\n", s.Run.Ticks)
	fmt.Fprintf(&b, "| Frames | %d |\n", s.Run.Frames)
	fmt.Fprintf(&b, "| Need more input | %d |\n", s.Transform.NeedMoreInput)
	fmt.Fprintf(&b, "| Stream changes | %d |\n", s.Transform.StreamChanges)
	if s.Run.Samples > 0 {
		fmt.Fprintf(&b, "| Decode ratio | %.1f%% |\n", float64(s.Run.Frames)*100/float64(s.Run.Samples))
	}
	fmt.Fprintf(&b, "| First frame | %d ms |\n", s.Run.FirstFrameMs)
	fmt.Fprintf(&b, "| Elapsed | %s |\n", formatMs(s.Run.ElapsedMs))
	b.WriteString("\n")

	if len(s.Outputs) > 0 {
		b.WriteString("## Outputs\n\n")
		for _, p := range s.Outputs {
			fmt.Fprintf(&b, "- `%s`\n", p)
		}
		b.WriteString("\n")
	}

	return b.String()
}

func formatFPS(fps float64) string {
	if fps <= 0 {
		return "-"
	}
	return fmt.Sprintf("%.2f fps", fps)
}

func formatMs(ms int64) string {
	if ms < 1000 {
		return fmt.Sprintf("%d ms", ms)
	}
	return fmt.Sprintf("%.2f s", float64(ms)/1000)
}

// escape keeps table cells intact.
func escape(s string) string {
	return strings.ReplaceAll(s, "|", "\\|")
}

var _ Formatter = (*MarkdownFormatter)(nil)
