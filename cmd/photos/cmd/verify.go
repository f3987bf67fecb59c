package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vetlink/vetlink/internal/app"
	"github.com/vetlink/vetlink/internal/maintenance"
)

func VerifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "verify",
		Short: "Re-validate every stored image and report corrupt ones",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(a *app.App) error {
				var corrupt int
				for _, store := range []maintenance.Store{a.PhotoStorage, a.FeedStorage} {
					report, err := maintenance.Verify(store, a.Policy)
					if err != nil {
						return err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "==> %s: %d checked, %d corrupt\n", store.Root(), report.Checked, len(report.Corrupt))
					for _, f := range report.Corrupt {
						fmt.Fprintf(cmd.OutOrStdout(), "    %s: %v\n", f.Path, f.Err)
					}
					corrupt += len(report.Corrupt)
				}
				if corrupt > 0 {
					return fmt.Errorf("%d corrupt files", corrupt)
				}
				return nil
			})
		},
	}
}
