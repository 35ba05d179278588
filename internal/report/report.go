// Package report prints run results and dry-run plans.
package report

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"
	"gopkg.in/yaml.v3"

	"multishot/internal/capture"
	"multishot/internal/namer"
	"multishot/internal/orchestrator"
)

// Styles used for terminal output.
var (
	errorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#e06c75")).Bold(true)
	mutedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#5c6370"))
)

// Printer writes written paths to out and failures to errOut.
type Printer struct {
	out    io.Writer
	errOut io.Writer
	styled bool
}

// NewPrinter creates a Printer. Failure lines are styled only when errOut is
// a terminal.
func NewPrinter(out, errOut io.Writer) *Printer {
	return &Printer{out: out, errOut: errOut, styled: isTerminal(errOut)}
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

func (p *Printer) style(s lipgloss.Style, text string) string {
	if !p.styled {
		return text
	}
	return s.Render(text)
}

// Result prints the path of every written file in job order, then one line
// per failed job and a closing count.
func (p *Printer) Result(res *orchestrator.Result) {
	for _, o := range res.Outcomes {
		if o.Err == nil {
			fmt.Fprintln(p.out, o.Output.Path)
		}
	}

	failed := res.Failed()
	for _, o := range failed {
		kind := "Error"
		var cerr *capture.Error
		if errors.As(o.Err, &cerr) {
			kind = cerr.Kind.String()
		}
		fmt.Fprintf(p.errOut, "%s %s: %v\n",
			p.style(errorStyle, kind),
			o.Output.Job.Label(),
			o.Err,
		)
	}
	if res.Fatal != nil {
		fmt.Fprintf(p.errOut, "%s %v\n", p.style(errorStyle, "fatal:"), res.Fatal)
	}
	if len(failed) > 0 {
		fmt.Fprintln(p.errOut, p.style(mutedStyle, fmt.Sprintf("%d of %d jobs failed", len(failed), len(res.Outcomes))))
	}
}

// Error prints a run-level error such as a syntax or validation failure.
func (p *Printer) Error(err error) {
	fmt.Fprintf(p.errOut, "%s %v\n", p.style(errorStyle, "error:"), err)
}

type planJob struct {
	Output            string            `yaml:"output"`
	Target            string            `yaml:"target"`
	Size              string            `yaml:"size"`
	Group             int               `yaml:"group,omitempty"`
	Format            string            `yaml:"format"`
	Quality           int               `yaml:"quality,omitempty"`
	DelayMs           int64             `yaml:"delay_ms,omitempty"`
	Selector          string            `yaml:"selector,omitempty"`
	ZoomFactor        float64           `yaml:"zoom_factor"`
	DeviceScaleFactor float64           `yaml:"device_scale_factor"`
	ChromeFlags       map[string]string `yaml:"chrome_flags,omitempty"`
}

// Plan writes the resolved jobs and their output paths as YAML.
func Plan(w io.Writer, outputs []namer.Output) error {
	jobs := make([]planJob, len(outputs))
	for i, o := range outputs {
		j := o.Job
		jobs[i] = planJob{
			Output:            o.Path,
			Target:            j.Target,
			Size:              j.Size.String(),
			Group:             j.GroupIndex,
			Format:            string(j.Format),
			Quality:           j.Quality,
			DelayMs:           j.Delay.Milliseconds(),
			Selector:          j.Selector,
			ZoomFactor:        j.ZoomFactor,
			DeviceScaleFactor: j.DeviceScaleFactor,
			ChromeFlags:       j.ExtraFlags,
		}
	}

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(map[string]any{"jobs": jobs}); err != nil {
		return fmt.Errorf("failed to encode plan: %w", err)
	}
	return enc.Close()
}
