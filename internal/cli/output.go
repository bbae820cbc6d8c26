package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/raphaelgruber/syllabus-go/internal/metrics"
	"github.com/raphaelgruber/syllabus-go/internal/outline"
	"github.com/raphaelgruber/syllabus-go/internal/syllabus"
	"github.com/raphaelgruber/syllabus-go/internal/tui"
	"gopkg.in/yaml.v3"
)

// Output formats accepted by --format.
const (
	formatText = "text"
	formatJSON = "json"
	formatYAML = "yaml"
	formatMD   = "markdown"
)

// outputOptions are the flags shared by commands that print a tree.
type outputOptions struct {
	format string
	out    string
	slides bool
}

func (o *outputOptions) validate() error {
	switch o.format {
	case formatText, formatJSON, formatYAML, formatMD:
		return nil
	default:
		return fmt.Errorf("unknown format %q (use text, json, yaml or markdown)", o.format)
	}
}

// writeModules prints modules in the chosen format, to --out when set.
func writeModules(stdout io.Writer, title string, modules []syllabus.Module, opts outputOptions) (err error) {
	w := stdout
	if opts.out != "" {
		var f *os.File
		f, err = os.Create(opts.out)
		if err != nil {
			return fmt.Errorf("create output file: %w", err)
		}
		defer func() {
			if cerr := f.Close(); cerr != nil && err == nil {
				err = fmt.Errorf("close output file: %w", cerr)
			}
		}()
		w = f
	}

	switch opts.format {
	case formatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(modules); err != nil {
			return fmt.Errorf("encode json: %w", err)
		}
	case formatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(modules); err != nil {
			return fmt.Errorf("encode yaml: %w", err)
		}
		if err := enc.Close(); err != nil {
			return fmt.Errorf("encode yaml: %w", err)
		}
	case formatMD:
		if err := outline.Write(w, title, modules); err != nil {
			return err
		}
	default:
		tree := tui.RenderTree(title, modules, tui.TreeOptions{Slides: opts.slides, Theme: tui.DefaultTheme})
		if _, err := fmt.Fprintln(w, tree); err != nil {
			return fmt.Errorf("write tree: %w", err)
		}
	}

	if opts.out != "" && stdout != nil {
		fmt.Fprintf(stdout, "Wrote %d modules to %s\n", len(modules), opts.out)
	}
	return nil
}

// writeStats prints operation timings.
func writeStats(w io.Writer, snap metrics.Snapshot) {
	if len(snap.Operations) == 0 {
		return
	}
	fmt.Fprintf(w, "\nTimings (%s):\n", time.Duration(snap.UptimeSeconds*float64(time.Second)).Round(time.Millisecond))
	for _, op := range snap.Operations {
		line := fmt.Sprintf("  %-16s %3d× avg %6.1fms  max %5dms", op.Op, op.Count, op.AvgTimeMs, op.MaxTimeMs)
		if op.Failures > 0 {
			line += fmt.Sprintf("  (%d failed)", op.Failures)
		}
		fmt.Fprintln(w, strings.TrimRight(line, " "))
	}
}

// summarize describes modules for the closing progress line.
func summarize(modules []syllabus.Module) string {
	classes := 0
	for _, m := range modules {
		classes += len(m.Classes)
	}
	return fmt.Sprintf("Course ready: %d modules, %d classes", len(modules), classes)
}
