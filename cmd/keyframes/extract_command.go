package main

import (
	"fmt"
	"strconv"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/MhdAstro/video-to-frame/internal/domain/entity"
	"github.com/MhdAstro/video-to-frame/internal/infra/ffmpeg"
	"github.com/MhdAstro/video-to-frame/internal/infra/httpsource"
	"github.com/MhdAstro/video-to-frame/internal/usecase"
)

func newExtractCommand(ctx *commandContext) *cobra.Command {
	var keep bool

	cmd := &cobra.Command{
		Use:   "extract <video-url>",
		Short: "Download a video and extract its keyframes",
		Long: `Download a video, select its most significant scene changes and write
them as JPEG files into a new staging area.

The staging area is removed when the command exits unless --keep is given.
Kept areas are removed by "keyframes staging clean".`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			manager, log, err := ctx.stagingManager()
			if err != nil {
				return err
			}
			defer log.Sync()

			decoder := ffmpeg.NewDecoder(cfg.FFmpegPath, cfg.FFprobePath, log)
			if err := decoder.Check(); err != nil {
				return err
			}
			stager := httpsource.NewStager(cfg.DownloadTimeout(), cfg.DownloadChunkSize, log)
			extractor := usecase.NewExtractKeyframesUseCase(stager, decoder, manager, log, usecase.NewExtractConfig(cfg))

			ext, err := extractor.Execute(cmd.Context(), uuid.New(), args[0])
			if err != nil {
				return err
			}
			if !keep {
				defer manager.Discard(ext.Area)
			}

			if ctx.JSONMode() {
				return writeJSON(cmd, ext.Manifest)
			}
			return printManifest(cmd, ext.Manifest, keep)
		},
	}

	cmd.Flags().BoolVar(&keep, "keep", false, "Leave the staging area on disk after the command exits")

	return cmd
}

func printManifest(cmd *cobra.Command, m *entity.Manifest, kept bool) error {
	out := cmd.OutOrStdout()
	if m.Empty() {
		fmt.Fprintln(out, "No significant frames found")
		return nil
	}

	rows := make([][]string, 0, len(m.Records))
	for _, r := range m.Records {
		rows = append(rows, []string{
			strconv.Itoa(r.FileID),
			strconv.Itoa(r.FrameIndex),
			strconv.FormatFloat(r.TimestampSeconds, 'f', 2, 64),
			strconv.FormatFloat(r.Score, 'f', 2, 64),
			r.Path,
		})
	}
	fmt.Fprint(out, renderTable(
		[]column{{"ID", true}, {"Frame", true}, {"Time (s)", true}, {"Score", true}, {"Path", false}},
		rows,
		"", "", "", "", fmt.Sprintf("%d keyframes from %d frames at %.2f fps", m.Total, m.FrameCount, m.FPS),
	))
	if kept {
		fmt.Fprintf(out, "Staging area: %s\n", m.StagingDir)
	}
	return nil
}
