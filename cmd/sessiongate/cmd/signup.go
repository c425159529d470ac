package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jmcleod/sessiongate/flow"
)

var (
	signupUsername      string
	signupPassword      string
	signupConfirm       string
	signupPasswordStdin bool
)

var signupCmd = &cobra.Command{
	Use:   "signup",
	Short: "Create an account and log in to it",
	Long: `Registers the account, waits briefly, then logs in with the same
credentials. If that automatic login fails the account still exists and you
can log in manually.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		password, err := readPassword(cmd.InOrStdin(), signupPassword, signupPasswordStdin)
		if err != nil {
			return err
		}
		confirm := signupConfirm
		if !cmd.Flags().Changed("confirm") {
			confirm = password
		}

		a, err := newApp(cmd.OutOrStdout())
		if err != nil {
			return err
		}
		defer a.Close()

		res := a.flow.Signup(cmd.Context(), signupUsername, password, confirm)
		switch {
		case res.State == flow.StateRegistered:
		case !res.Validation.Valid:
			return validationError(res.Validation)
		default:
			return errors.New(res.Banner)
		}

		out := cmd.OutOrStdout()
		fmt.Fprintln(out, res.Message)
		fmt.Fprintln(out, "Logging you in...")

		select {
		case <-res.Pending.Done():
		case <-cmd.Context().Done():
			return cmd.Context().Err()
		}
		switch res.Pending.State() {
		case flow.StateSuccess:
			fmt.Fprintf(out, "Welcome, %s.\n", signupUsername)
		case flow.StateFallbackFailed:
			fmt.Fprintln(out, "Account created, but automatic login failed. Run 'sessiongate login' to continue.")
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(signupCmd)
	signupCmd.Flags().StringVarP(&signupUsername, "username", "u", "", "Username")
	signupCmd.Flags().StringVarP(&signupPassword, "password", "p", "", "Password")
	signupCmd.Flags().StringVar(&signupConfirm, "confirm", "", "Password confirmation (defaults to the password)")
	signupCmd.Flags().BoolVar(&signupPasswordStdin, "password-stdin", false, "Read the password from stdin")
}
