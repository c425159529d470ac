package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jmcleod/sessiongate/credential"
	"github.com/jmcleod/sessiongate/flow"
	"github.com/jmcleod/sessiongate/nav"
)

var (
	loginUsername      string
	loginPassword      string
	loginPasswordStdin bool
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Log in and store the session in the profile",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		password, err := readPassword(cmd.InOrStdin(), loginPassword, loginPasswordStdin)
		if err != nil {
			return err
		}

		a, err := newApp(cmd.OutOrStdout())
		if err != nil {
			return err
		}
		defer a.Close()

		redirect := a.waitFor(nav.RouteDashboard)
		res := a.flow.Login(cmd.Context(), credential.Credentials{Username: loginUsername, Password: password})
		switch {
		case res.State == flow.StateSuccess:
		case !res.Validation.Valid:
			return validationError(res.Validation)
		default:
			return errors.New(res.Banner)
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Login successful. Welcome, %s.\n", loginUsername)
		select {
		case <-redirect:
		case <-cmd.Context().Done():
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(loginCmd)
	loginCmd.Flags().StringVarP(&loginUsername, "username", "u", "", "Username")
	loginCmd.Flags().StringVarP(&loginPassword, "password", "p", "", "Password")
	loginCmd.Flags().BoolVar(&loginPasswordStdin, "password-stdin", false, "Read the password from stdin")
}
