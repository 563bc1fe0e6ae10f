package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/bryanchriswhite/focusfollows/internal/classify"
	"github.com/bryanchriswhite/focusfollows/internal/external"
	"github.com/bryanchriswhite/focusfollows/internal/input"
	"github.com/bryanchriswhite/focusfollows/internal/window"
	"github.com/spf13/cobra"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect",
	Short: "Explain the decision for a screen position",
	Long: `Resolve the window at a screen position and show how it would be classified.

Without --x and --y the next pointer movement is used. Caches are not
consulted, so the output shows what a fresh decision would be.`,
	Example: `  # Inspect whatever the pointer moves over next
  focusfollows inspect

  # Inspect a fixed position as JSON
  focusfollows inspect --x 640 --y 400 --format json`,
	RunE: runInspect,
}

var (
	inspectX       int
	inspectY       int
	inspectFormat  string
	inspectTimeout time.Duration
)

func init() {
	rootCmd.AddCommand(inspectCmd)

	inspectCmd.Flags().IntVar(&inspectX, "x", 0, "screen x coordinate")
	inspectCmd.Flags().IntVar(&inspectY, "y", 0, "screen y coordinate")
	inspectCmd.Flags().StringVarP(&inspectFormat, "format", "f", "table", "output format (table or json)")
	inspectCmd.Flags().DurationVar(&inspectTimeout, "timeout", 10*time.Second, "how long to wait for pointer movement")
}

type inspection struct {
	Point           window.Point  `json:"point"`
	Cursor          window.Handle `json:"cursor"`
	CursorClass     string        `json:"cursor_class"`
	Root            window.Handle `json:"root"`
	RootClass       string        `json:"root_class"`
	RootStyle       string        `json:"root_style"`
	Foreground      window.Handle `json:"foreground"`
	ForegroundClass string        `json:"foreground_class"`
	Mode            string        `json:"mode"`
	Outcome         string        `json:"outcome"`
	Reason          string        `json:"reason"`
	Rule            string        `json:"rule,omitempty"`
	Raise           bool          `json:"raise"`
	Error           string        `json:"error,omitempty"`
}

func runInspect(cmd *cobra.Command, args []string) error {
	configMgr, err := loadConfig()
	if err != nil {
		return err
	}
	cfg := configMgr.Get()

	rules, err := configMgr.RuleSet()
	if err != nil {
		return fmt.Errorf("invalid rules: %w", err)
	}

	backend, err := window.Open(cfg.Backend)
	if err != nil {
		return err
	}
	defer backend.Close()

	pt := window.Point{X: inspectX, Y: inspectY}
	if !cmd.Flags().Changed("x") && !cmd.Flags().Changed("y") {
		if pt, err = nextPointer(cfg.Backend, cfg.PollInterval); err != nil {
			return err
		}
	}

	var lister classify.Lister
	mode := "heuristic"
	if path := configMgr.ExternalSource(); path != "" {
		lister = external.New(path)
		mode = "external"
	}

	out, err := inspect(backend, classify.New(rules, lister), pt)
	if err != nil {
		return err
	}
	out.Mode = mode

	switch inspectFormat {
	case "json":
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		return encoder.Encode(out)
	case "table":
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintf(w, "POINT\t%d,%d\n", out.Point.X, out.Point.Y)
		fmt.Fprintf(w, "CURSOR\t%s\t%s\n", out.Cursor, out.CursorClass)
		fmt.Fprintf(w, "ROOT\t%s\t%s\t%s\n", out.Root, out.RootClass, out.RootStyle)
		fmt.Fprintf(w, "FOREGROUND\t%s\t%s\n", out.Foreground, out.ForegroundClass)
		fmt.Fprintf(w, "MODE\t%s\n", out.Mode)
		fmt.Fprintf(w, "OUTCOME\t%s\t%s\n", out.Outcome, out.Reason)
		if out.Rule != "" {
			fmt.Fprintf(w, "RULE\t%s\n", out.Rule)
		}
		if out.Error != "" {
			fmt.Fprintf(w, "ERROR\t%s\n", out.Error)
		}
		fmt.Fprintf(w, "RAISE\t%t\n", out.Raise)
		return w.Flush()
	default:
		return fmt.Errorf("unsupported format: %s (use 'table' or 'json')", inspectFormat)
	}
}

// inspect classifies the window at pt with empty caches
func inspect(q window.Query, c *classify.Classifier, pt window.Point) (*inspection, error) {
	out := &inspection{Point: pt}

	cursor, err := q.WindowAt(pt)
	if err != nil {
		return nil, fmt.Errorf("no window at %d,%d: %w", pt.X, pt.Y, err)
	}
	foreground, err := q.Foreground()
	if err != nil {
		return nil, fmt.Errorf("failed to get foreground window: %w", err)
	}
	root, err := q.Root(cursor)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve root of %s: %w", cursor, err)
	}

	out.Cursor, out.Root, out.Foreground = cursor, root, foreground
	out.RootClass, _ = q.ClassName(root)
	if style, err := q.Style(root); err == nil {
		out.RootStyle = style.String()
	}

	d := c.Evaluate(classify.Request{
		Cursor:     cursor,
		Root:       root,
		Foreground: foreground,
	}, liveFacts{q})

	out.CursorClass, out.ForegroundClass = d.CursorClass, d.ForegroundClass
	if out.CursorClass == "" {
		out.CursorClass, _ = q.ClassName(cursor)
	}
	if out.ForegroundClass == "" {
		out.ForegroundClass, _ = q.ClassName(foreground)
	}
	out.Outcome, out.Reason, out.Rule = d.Outcome.String(), d.Reason, d.Rule
	out.Raise = d.ShouldRaise()
	if d.Err != nil {
		out.Error = d.Err.Error()
	}
	return out, nil
}

// liveFacts answers every classifier lookup from the window system
type liveFacts struct {
	q window.Query
}

func (f liveFacts) Class(h window.Handle) (string, error) { return f.q.ClassName(h) }
func (f liveFacts) Style(h window.Handle) (window.Style, error) { return f.q.Style(h) }
func (f liveFacts) Pair(window.Handle) (window.Handle, bool) { return 0, false }
func (f liveFacts) Memo(window.Handle) (bool, bool) { return false, false }

// nextPointer waits for the pointer to move and returns where it went
func nextPointer(backend string, interval time.Duration) (window.Point, error) {
	source, err := input.Open(backend, input.Options{PollInterval: interval})
	if err != nil {
		return window.Point{}, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), inspectTimeout)
	defer cancel()

	events, err := source.Events(ctx)
	if err != nil {
		return window.Point{}, err
	}

	fmt.Fprintln(os.Stderr, "Move the mouse over the window to inspect...")
	for ev := range events {
		if ev.Kind == input.Move {
			return ev.Point, nil
		}
	}
	return window.Point{}, fmt.Errorf("no pointer movement within %s", inspectTimeout)
}
