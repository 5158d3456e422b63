// Package console prints a run to the terminal as it happens.
package console

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"

	"cot-calculator/agent"
	"cot-calculator/utils"
)

const (
	Title = "Chain-of-Thought Calculator"

	defaultMaxText = 500
	panelWidth     = 72
)

var (
	colorTitle   = lipgloss.Color("#7D56F4")
	colorInfo    = lipgloss.Color("#2196F3")
	colorSuccess = lipgloss.Color("#8BC34A")
	colorWarning = lipgloss.Color("#FFC107")
	colorDanger  = lipgloss.Color("#E53935")
	colorMuted   = lipgloss.Color("#808080")
)

type styles struct {
	title     lipgloss.Style
	problem   lipgloss.Style
	assistant lipgloss.Style
	tool      lipgloss.Style
	ok        lipgloss.Style
	concern   lipgloss.Style
	fallback  lipgloss.Style
	done      lipgloss.Style
	muted     lipgloss.Style
}

func newStyles(r *lipgloss.Renderer) styles {
	panel := r.NewStyle().
		Border(lipgloss.RoundedBorder()).
		Padding(0, 1).
		Width(panelWidth)

	return styles{
		title:     panel.Bold(true).Foreground(colorTitle).BorderForeground(colorTitle).Align(lipgloss.Center),
		problem:   panel.BorderForeground(colorInfo),
		assistant: r.NewStyle().Bold(true).Foreground(colorInfo),
		tool:      r.NewStyle().Foreground(colorInfo),
		ok:        r.NewStyle().Foreground(colorSuccess),
		concern:   panel.Foreground(colorWarning).BorderForeground(colorWarning),
		fallback:  panel.Foreground(colorDanger).BorderForeground(colorDanger),
		done:      r.NewStyle().Bold(true).Foreground(colorSuccess),
		muted:     r.NewStyle().Foreground(colorMuted),
	}
}

// Options configures a Renderer.
type Options struct {
	// MaxText caps the characters shown for model replies and panel bodies.
	MaxText int
	// Verbose adds the elapsed time to every line.
	Verbose bool
}

// Renderer writes loop events to w. Observe can be passed directly as an
// agent.Observer.
type Renderer struct {
	mu      sync.Mutex
	w       io.Writer
	st      styles
	maxText int
	verbose bool
}

func NewRenderer(w io.Writer, opts Options) *Renderer {
	if opts.MaxText <= 0 {
		opts.MaxText = defaultMaxText
	}
	return &Renderer{
		w:       w,
		st:      newStyles(lipgloss.NewRenderer(w)),
		maxText: opts.MaxText,
		verbose: opts.Verbose,
	}
}

// Start prints the title and problem panels.
func (r *Renderer) Start(problem string) {
	r.print(r.st.title.Render(Title))
	r.print(r.st.problem.Render("Problem: " + problem))
}

// Observe renders one event.
func (r *Renderer) Observe(e agent.Event) {
	var out string

	switch e.Type {
	case agent.EventModelResponse:
		out = r.st.assistant.Render("Assistant:") + " " + r.trunc(e.Content)
	case agent.EventUnrecognized:
		// Already shown as the model response.
		return
	case agent.EventReasoning:
		out = r.st.tool.Render("Reasoning steps:") + "\n" + indent(r.trunc(e.Content))
	case agent.EventCalculation:
		out = r.st.tool.Render("Calculated: " + e.Content)
	case agent.EventSelfCheckPass:
		out = r.st.ok.Render("Self-check passed: " + e.Content)
	case agent.EventSelfCheckConcern:
		out = r.st.concern.Render("Self-check concerns\n" + r.trunc(e.Content))
	case agent.EventVerification:
		if e.OK {
			out = r.st.ok.Render("Verified: " + e.Content)
		} else {
			out = r.st.concern.Render("Verification failed: " + e.Content)
		}
	case agent.EventFallback:
		out = r.st.fallback.Render("Fallback reasoning\n" + r.trunc(e.Content))
	case agent.EventFinalAnswer:
		out = r.st.done.Render("Final answer: " + e.Content)
	case agent.EventFinalVerification:
		if e.OK {
			out = r.st.ok.Render("Final answer verified: " + e.Content)
		} else {
			out = r.st.fallback.Render("Final answer does not check out: " + e.Content)
		}
	case agent.EventStop:
		if e.Content == string(agent.StopFinalAnswer) {
			return
		}
		out = r.st.muted.Render("Stopped: " + strings.ReplaceAll(e.Content, "_", " "))
	case agent.EventCompleted:
		out = r.st.done.Render(e.Content)
	default:
		out = r.trunc(e.Content)
	}

	if r.verbose {
		out = r.st.muted.Render(fmt.Sprintf("[%6dms]", e.ElapsedMs)) + " " + out
	}
	r.print(out)
}

// Summary prints the outcome of a run.
func (r *Renderer) Summary(res *agent.Result) {
	if res == nil {
		return
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "Stop reason: %s\nModel queries: %d\nCalculations: %d",
		res.StopReason, res.ModelQueries, len(res.History))
	for _, c := range res.History {
		fmt.Fprintf(&sb, "\n  %s = %s", c.Expression, strconv.FormatFloat(c.Result, 'f', -1, 64))
	}
	r.print(r.st.muted.Render(sb.String()))
}

func (r *Renderer) print(s string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprintln(r.w, s)
}

func (r *Renderer) trunc(s string) string {
	return utils.TruncateStr(strings.TrimSpace(s), r.maxText)
}

func indent(s string) string {
	lines := strings.Split(s, "\n")
	for i, l := range lines {
		lines[i] = "  " + l
	}
	return strings.Join(lines, "\n")
}
