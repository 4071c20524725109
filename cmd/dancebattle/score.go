package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"dancebattle/pkg/similarity"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"
)

type scoreOptions struct {
	referencePath string
	userPath      string
	window        int
	frames        bool
}

func newScoreCmd() *cobra.Command {
	opts := &scoreOptions{}

	cmd := &cobra.Command{
		Use:   "score",
		Short: "Compare two recorded landmark sequences",
		Long: `Reads two JSON files, each an array of frames where a frame is an array of
{"x","y","z"} landmarks (null for undetected points), and prints the per-frame,
sequence and distance scores.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			reference, err := readSequence(opts.referencePath)
			if err != nil {
				return err
			}
			user, err := readSequence(opts.userPath)
			if err != nil {
				return err
			}
			return renderScores(cmd.OutOrStdout(), reference, user, opts)
		},
	}

	fs := cmd.Flags()
	fs.StringVarP(&opts.referencePath, "reference", "r", "", "reference sequence (JSON)")
	fs.StringVarP(&opts.userPath, "user", "u", "", "dancer sequence (JSON)")
	fs.IntVarP(&opts.window, "window", "w", similarity.DefaultWindow, "frames in the running average")
	fs.BoolVar(&opts.frames, "frames", false, "print a row per frame")
	_ = cmd.MarkFlagRequired("reference")
	_ = cmd.MarkFlagRequired("user")

	return cmd
}

func readSequence(path string) ([][]similarity.Landmark, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	var frames [][]*similarity.Landmark
	if err := json.Unmarshal(data, &frames); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return similarity.SequenceFromNullable(frames), nil
}

func renderScores(w io.Writer, reference, user [][]similarity.Landmark, opts *scoreOptions) error {
	n := len(reference)
	if len(user) < n {
		n = len(user)
	}
	if n == 0 {
		return fmt.Errorf("both sequences need at least one frame")
	}

	tracker := similarity.NewTracker(opts.window)
	distance := 0.0

	if opts.frames {
		frames := table.NewWriter()
		frames.SetOutputMirror(w)
		frames.SetStyle(table.StyleLight)
		frames.AppendHeader(table.Row{"Frame", "Score", "Running", "Distance"})
		frames.SetColumnConfigs([]table.ColumnConfig{
			{Number: 2, Align: text.AlignRight},
			{Number: 3, Align: text.AlignRight},
			{Number: 4, Align: text.AlignRight},
		})
		for i := 0; i < n; i++ {
			score := tracker.AddFrame(reference[i], user[i])
			d := similarity.DistanceSimilarity(reference[i], user[i])
			distance += d
			frames.AppendRow(table.Row{i + 1, fmt.Sprintf("%.2f", score), fmt.Sprintf("%.2f", tracker.Running()), fmt.Sprintf("%.3f", d)})
		}
		frames.Render()
		fmt.Fprintln(w)
	} else {
		for i := 0; i < n; i++ {
			tracker.AddFrame(reference[i], user[i])
			distance += similarity.DistanceSimilarity(reference[i], user[i])
		}
	}

	summary := table.NewWriter()
	summary.SetOutputMirror(w)
	summary.SetStyle(table.StyleLight)
	summary.SetTitle("Dance score")
	summary.AppendHeader(table.Row{"Mode", "Value"})
	summary.AppendRows([]table.Row{
		{"Frames compared", n},
		{"Frame score (mean)", fmt.Sprintf("%.2f", tracker.Final())},
		{"Sequence similarity", fmt.Sprintf("%.4f", similarity.SequenceSimilarity(reference, user))},
		{"Sequence score", fmt.Sprintf("%.2f", similarity.SequenceScore(reference, user))},
		{"Distance similarity (mean)", fmt.Sprintf("%.4f", distance/float64(n))},
	})
	summary.Render()
	return nil
}
