package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/caesarsage/mini-pm/internal/logger"
	"github.com/caesarsage/mini-pm/internal/schedule"
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#20B9B4"))
	indexStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#2C4A54"))
	errorStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#E74C3C"))
	mutedStyle   = lipgloss.NewStyle().Faint(true)
	outputFormat = []string{"text", "json"}
)

type scheduleOptions struct {
	ghostPolicy string
	output      string
}

func newScheduleCmd() *cobra.Command {
	var opts scheduleOptions

	cmd := &cobra.Command{
		Use:   "schedule FILE",
		Short: "Print the recommended order for tasks in a JSON, YAML or HCL file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSchedule(cmd.Context(), cmd.OutOrStdout(), args[0], opts)
		},
	}
	cmd.Flags().StringVar(&opts.ghostPolicy, "ghost-policy", "",
		"how to treat dependencies on undeclared tasks: task_count, node_count or reject")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "text", "output format: "+strings.Join(outputFormat, " or "))
	return cmd
}

func runSchedule(ctx context.Context, w io.Writer, path string, opts scheduleOptions) error {
	if opts.output != "text" && opts.output != "json" {
		return fmt.Errorf("unknown output format %q", opts.output)
	}
	policy, err := schedule.ParseGhostPolicy(opts.ghostPolicy)
	if err != nil {
		return err
	}

	specs, err := schedule.LoadFile(path)
	if err != nil {
		return err
	}

	if ctx == nil {
		ctx = context.Background()
	}
	ctx = logger.WithLogger(ctx, logger.New("warn", "text", os.Stderr))
	out := schedule.New(schedule.WithGhostPolicy(policy)).Schedule(ctx, specs)

	if opts.output == "json" {
		if err := writeJSON(w, out); err != nil {
			return err
		}
	} else {
		writeText(w, path, out)
	}
	return out.Err()
}

func writeJSON(w io.Writer, out schedule.Outcome) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if out.OK() {
		return enc.Encode(schedule.Response{RecommendedOrder: out.Order})
	}
	return enc.Encode(struct {
		Error string   `json:"error"`
		Kind  string   `json:"kind"`
		Cycle []string `json:"cycle,omitempty"`
	}{out.Message, string(out.Kind), out.Cycle})
}

func writeText(w io.Writer, path string, out schedule.Outcome) {
	if !out.OK() {
		fmt.Fprintln(w, errorStyle.Render("✗ "+out.Message))
		return
	}

	fmt.Fprintln(w, titleStyle.Render("Recommended order"), mutedStyle.Render("("+path+")"))
	width := len(fmt.Sprint(len(out.Order)))
	for i, title := range out.Order {
		fmt.Fprintf(w, "%s %s\n", indexStyle.Render(fmt.Sprintf("%*d.", width, i+1)), title)
	}
}
