package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/vetlink/vetlink/internal/app"
	"github.com/vetlink/vetlink/internal/maintenance"
)

func SweepCmd() *cobra.Command {
	var opts maintenance.SweepOptions

	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Delete stored files no user photo or feed image points to",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(a *app.App) error {
				photoPaths, err := a.UserRepository.PhotoPaths()
				if err != nil {
					return fmt.Errorf("failed to load photo pointers: %w", err)
				}
				imagePaths, err := a.FeedPostRepository.ImagePaths()
				if err != nil {
					return fmt.Errorf("failed to load feed image pointers: %w", err)
				}

				roots := []struct {
					store      maintenance.Store
					referenced []string
				}{
					{a.PhotoStorage, photoPaths},
					{a.FeedStorage, imagePaths},
				}

				var failed int
				for _, root := range roots {
					report, err := maintenance.Sweep(root.store, root.referenced, opts)
					if err != nil {
						return err
					}
					verb := "removed"
					if opts.DryRun {
						verb = "would remove"
					}
					fmt.Fprintf(cmd.OutOrStdout(), "==> %s: %d scanned, %d referenced, %s %d, %d too young\n",
						root.store.Root(), report.Scanned, report.Referenced, verb, len(report.Removed), len(report.TooYoung))
					for _, p := range report.Removed {
						fmt.Fprintf(cmd.OutOrStdout(), "    %s\n", p)
					}
					for _, f := range report.Failed {
						fmt.Fprintf(cmd.ErrOrStderr(), "    failed %s: %v\n", f.Path, f.Err)
					}
					failed += len(report.Failed)
				}
				if failed > 0 {
					return fmt.Errorf("%d files could not be swept", failed)
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&opts.DryRun, "dry-run", false, "only report what would be deleted")
	cmd.Flags().DurationVar(&opts.MinAge, "min-age", time.Hour, "skip files modified more recently than this")
	return cmd
}
