package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"loom/internal/memory"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "history <video-id>",
		Short: "Show stored transcripts, analyses, and graph edges for a video",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			store, err := memory.Open(cfg.Paths.DataDir)
			if err != nil {
				return fmt.Errorf("open memory store: %w", err)
			}
			defer store.Close()

			videoID := args[0]
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Store: %s\n\n", store.Path())

			transcript, err := store.TranscriptByVideoID(cmd.Context(), videoID)
			if err != nil {
				return fmt.Errorf("load transcript: %w", err)
			}
			if transcript == nil {
				fmt.Fprintf(out, "No stored data for %s\n", videoID)
				return nil
			}

			fmt.Fprintf(out, "%s (%s, via %s)\n", transcript.Title, transcript.Platform, transcript.Source)
			fmt.Fprintf(out, "Stored %s, %d characters\n\n", transcript.CreatedAt, len(transcript.Transcript))

			analyses, err := store.AnalysesByVideoID(cmd.Context(), videoID)
			if err != nil {
				return fmt.Errorf("load analyses: %w", err)
			}
			if len(analyses) > 0 {
				rows := make([][]string, 0, len(analyses))
				for _, rec := range analyses {
					rows = append(rows, []string{
						strconv.FormatInt(rec.ID, 10),
						rec.Sentiment,
						rec.Summary,
						rec.CreatedAt,
					})
				}
				fmt.Fprintln(out, renderTable(
					[]string{"ID", "Sentiment", "Summary", "Created"},
					rows,
					[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft},
				))
			}

			edges, err := store.EdgesBySubject(cmd.Context(), videoID)
			if err != nil {
				return fmt.Errorf("load graph edges: %w", err)
			}
			if len(edges) > 0 {
				rows := make([][]string, 0, len(edges))
				for _, edge := range edges {
					rows = append(rows, []string{edge.Subject, edge.Predicate, edge.Object})
				}
				fmt.Fprintln(out, renderTable(
					[]string{"Subject", "Predicate", "Object"},
					rows,
					[]columnAlignment{alignLeft, alignLeft, alignLeft},
				))
			}

			count, err := store.ObservationCount(cmd.Context(), videoID)
			if err != nil {
				return fmt.Errorf("count observations: %w", err)
			}
			fmt.Fprintf(out, "Observations: %d\n", count)
			return nil
		},
	}
}
