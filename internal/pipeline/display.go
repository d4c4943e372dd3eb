package pipeline

import (
	"fmt"
	"io"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"github.com/mattn/go-isatty"

	"github.com/futureCreator/autoship/internal/artifact"
)

// Display handles terminal progress output for the pipeline.
type Display struct {
	w    io.Writer
	live bool // redraw lines in place

	ok    lipgloss.Style
	fail  lipgloss.Style
	warn  lipgloss.Style
	muted lipgloss.Style
	title lipgloss.Style

	stop chan struct{}
	done chan struct{}
}

// NewDisplay creates a display writing to w. Lines are redrawn in place only
// when w is a terminal and verbose is off; otherwise every update is a new
// line, which keeps CI logs readable.
func NewDisplay(w io.Writer, verbose bool) *Display {
	r := lipgloss.NewRenderer(w)
	return &Display{
		w:     w,
		live:  isTerminal(w) && !verbose,
		ok:    r.NewStyle().Foreground(lipgloss.Color("10")),
		fail:  r.NewStyle().Foreground(lipgloss.Color("9")).Bold(true),
		warn:  r.NewStyle().Foreground(lipgloss.Color("11")),
		muted: r.NewStyle().Foreground(lipgloss.Color("8")),
		title: r.NewStyle().Bold(true),
	}
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(interface{ Fd() uintptr })
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// detailColumnWidth is the fixed display width reserved for the detail column.
var detailColumnWidth = 40

// ansiEscapeRe matches ANSI terminal escape sequences and C0/DEL control characters.
var ansiEscapeRe = regexp.MustCompile(`\x1b\[[0-9;]*[a-zA-Z]|[\x00-\x1f\x7f]`)

// truncateDetail strips control sequences from s and truncates it to
// detailColumnWidth runes, appending an ellipsis if truncation occurs.
func truncateDetail(s string) string {
	s = ansiEscapeRe.ReplaceAllString(s, "")
	if utf8.RuneCountInString(s) <= detailColumnWidth {
		return s
	}
	runes := []rune(s)
	return string(runes[:detailColumnWidth-1]) + "…"
}

func rule() string { return strings.Repeat("─", 76) }

// Header prints the pipeline header.
func (d *Display) Header(title string) {
	fmt.Fprintf(d.w, "\n🚀 %s\n", d.title.Render("autoship · "+title))
	fmt.Fprintln(d.w, rule())
}

// StageStart prints a stage-in-progress line. With ticking set and a live
// display, the line is updated in place every second with the elapsed time.
func (d *Display) StageStart(name string, ticking bool) {
	if !d.live {
		fmt.Fprintf(d.w, "⏳ %-10s running...\n", name)
		return
	}
	// Print without trailing newline so the ticker can overwrite in place.
	fmt.Fprintf(d.w, "⏳ %-10s running...", name)
	if !ticking {
		return
	}

	stop := make(chan struct{})
	done := make(chan struct{})
	d.stop = stop
	d.done = done
	start := time.Now()

	go func() {
		defer close(done)
		ticker := time.NewTicker(time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				fmt.Fprintf(d.w, "\r⏳ %-10s running... %.0fs", name, time.Since(start).Seconds())
			}
		}
	}()
}

// stopTicker stops the elapsed time goroutine and waits for it to finish.
func (d *Display) stopTicker() {
	if d.stop != nil {
		close(d.stop)
		<-d.done
		d.stop = nil
		d.done = nil
	}
}

func (d *Display) linePrefix() string {
	if d.live {
		return "\r\x1b[K"
	}
	return ""
}

// StageDone prints a completed stage line.
func (d *Display) StageDone(name, detail string, duration time.Duration) {
	d.stopTicker()
	fmt.Fprintf(d.w, "%s%s %-10s %-40s %s\n",
		d.linePrefix(), d.ok.Render("✅"), name, truncateDetail(detail),
		d.muted.Render(fmt.Sprintf("%.1fs", duration.Seconds())))
}

// StageFailed prints a failed stage line.
func (d *Display) StageFailed(name string, err error) {
	d.stopTicker()
	fmt.Fprintf(d.w, "%s%s %-10s %s\n", d.linePrefix(), d.fail.Render("❌"), name, err.Error())
}

// Checklist prints what the operator should verify during the countdown.
func (d *Display) Checklist(seconds int) {
	if d.live {
		fmt.Fprintln(d.w)
	}
	fmt.Fprintf(d.w, "   %s\n", d.warn.Render(fmt.Sprintf("Verify the application within %d seconds:", seconds)))
	for _, item := range []string{
		"the page opened in the browser",
		"all components loaded",
		"no errors in the browser console",
	} {
		fmt.Fprintf(d.w, "   • %s\n", item)
	}
	fmt.Fprintf(d.w, "   %s\n", d.muted.Render("Press Ctrl+C to abort the release."))
}

// Tick renders the seconds left in the verification window.
func (d *Display) Tick(remaining int) {
	if d.live {
		fmt.Fprintf(d.w, "\r⏳ %-10s %02d seconds remaining", StageWait, remaining)
		return
	}
	fmt.Fprintf(d.w, "   %02d seconds remaining\n", remaining)
}

// Serving notes that the dev server keeps running after the pipeline.
func (d *Display) Serving(pid int) {
	fmt.Fprintf(d.w, "%s\n", d.muted.Render(fmt.Sprintf("dev server still running (pid %d), press Ctrl+C to stop it", pid)))
}

// Summary prints the final run summary.
func (d *Display) Summary(artifactName string, totalDuration time.Duration) {
	fmt.Fprintln(d.w, rule())
	fmt.Fprintf(d.w, "%s Released %s  %.0fs\n", d.ok.Render("✅"), artifactName, totalDuration.Seconds())
	fmt.Fprintln(d.w)
}

// Failed prints a failure summary.
func (d *Display) Failed(err error) {
	fmt.Fprintln(d.w, rule())
	fmt.Fprintf(d.w, "%s %s\n\n", d.fail.Render("❌ Failed:"), err.Error())
}

// artifactDetail describes a located artifact for the stage line.
func artifactDetail(a *artifact.Artifact, now time.Time) string {
	return fmt.Sprintf("%s (%s, %s)", a.Name,
		humanize.Bytes(uint64(a.Size)), humanize.RelTime(a.ModTime, now, "ago", "from now"))
}
