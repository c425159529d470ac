package cmd

import (
	"errors"
	"fmt"
	"sort"

	"github.com/spf13/cobra"
)

var dashboardCmd = &cobra.Command{
	Use:   "dashboard",
	Short: "Load the authenticated dashboard",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.OutOrStdout())
		if err != nil {
			return err
		}
		defer a.Close()

		res := a.flow.LoadDashboard(cmd.Context())
		out := cmd.OutOrStdout()
		switch {
		case res.Redirected:
			return errors.New("not logged in")
		case res.Err != nil:
			return errors.New(res.Banner)
		}

		fmt.Fprintf(out, "Welcome, %s!\n", res.Username)
		fmt.Fprintf(out, "Database:    %s\n", res.Info.Database)
		fmt.Fprintf(out, "Total users: %d\n", res.Info.TotalUsers)
		keys := make([]string, 0, len(res.Info.Extra))
		for k := range res.Info.Extra {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(out, "%s: %v\n", k, res.Info.Extra[k])
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(dashboardCmd)
}
