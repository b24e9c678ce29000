package main

import (
	"DefectScope/internal/backend"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"
)

func newProbeCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "probe <video>...",
		Short: "Show stream geometry and frame rate as the configured backend decodes them",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			codec := backend.NewCodec(*cfg)

			rows := make([][]string, 0, len(args))
			for _, path := range args {
				reader, err := codec.OpenReader(cmd.Context(), path)
				if err != nil {
					return fmt.Errorf("open %s: %w", path, err)
				}
				info := reader.Info()
				_ = reader.Close()

				frames := "unknown"
				if info.FrameCount > 0 {
					frames = strconv.Itoa(info.FrameCount)
				}
				duration := "unknown"
				if info.Duration > 0 {
					duration = time.Duration(info.Duration * float64(time.Second)).Round(10 * time.Millisecond).String()
				}
				rows = append(rows, []string{
					path,
					fmt.Sprintf("%dx%d", info.Width, info.Height),
					strconv.FormatFloat(info.FPS, 'f', 3, 64),
					frames,
					duration,
					info.Codec,
				})
			}

			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"Video", "Size", "FPS", "Frames", "Duration", "Codec"},
				rows,
				[]columnAlignment{alignLeft, alignRight, alignRight, alignRight, alignRight, alignLeft},
			))
			return nil
		},
	}
}
