package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/lachiem1/driverlog/internal/api"
	"github.com/lachiem1/driverlog/internal/auth"
	"github.com/lachiem1/driverlog/internal/ledger"
	"github.com/lachiem1/driverlog/internal/storage"
)

func newAuthCmd(_ *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Manage the stored API token",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "set",
			Short: "Save an API token to the system credential store",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				fmt.Fprint(cmd.OutOrStdout(), "Enter API token: ")
				token, err := readSecret()
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout())
				if strings.TrimSpace(token) == "" {
					return errors.New("empty token")
				}
				if err := auth.SaveToken(token); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "API token saved to your system credential store.")
				return nil
			},
		},
		&cobra.Command{
			Use:   "status",
			Short: "Check whether an API token is available",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				token, err := auth.LoadToken()
				if err != nil {
					return err
				}
				// Do not print the token value.
				fmt.Fprintf(cmd.OutOrStdout(), "API token loaded (%d chars).\n", len(token))
				return nil
			},
		},
	)
	return cmd
}

func newLoginCmd(flags *rootFlags) *cobra.Command {
	var (
		id     string
		name   string
		mobile string
	)
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in as a driver",
		Long: "Sign in as a driver. With the local backend this records the driver identity.\n" +
			"With the remote backend it also exchanges a password for an API token.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			return withApp(ctx, flags, func(a *app) error {
				if id == "" {
					id = mobile
				}
				if strings.TrimSpace(id) == "" {
					return fmt.Errorf("%w: --id or --mobile is required", ledger.ErrValidation)
				}

				if a.remote() {
					if mobile == "" {
						mobile = id
					}
					fmt.Fprint(cmd.OutOrStdout(), "Password: ")
					password, err := readSecret()
					if err != nil {
						return err
					}
					fmt.Fprintln(cmd.OutOrStdout())
					token, err := a.apiClient("").Login(ctx, mobile, password)
					if err != nil {
						return fmt.Errorf("login: %w", err)
					}
					if err := auth.SaveToken(token); err != nil {
						return err
					}
				}

				driver := ledger.Driver{ID: strings.TrimSpace(id), Name: strings.TrimSpace(name), Mobile: strings.TrimSpace(mobile)}
				if err := storage.NewDriversRepo(a.store).Upsert(ctx, driver); err != nil {
					return err
				}
				if err := a.pointer.SetDriver(ctx, driver.ID); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), okStyle.Render("signed in as ")+displayDriver(driver))
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&id, "id", "", "driver id (defaults to --mobile)")
	cmd.Flags().StringVar(&name, "name", "", "driver display name")
	cmd.Flags().StringVar(&mobile, "mobile", "", "driver mobile number")
	return cmd
}

func newLogoutCmd(flags *rootFlags) *cobra.Command {
	var forgetToken bool
	cmd := &cobra.Command{
		Use:   "logout",
		Short: "Sign out and forget the selected day",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd.Context(), flags, func(a *app) error {
				if err := a.pointer.Clear(cmd.Context()); err != nil {
					return err
				}
				if forgetToken {
					if err := auth.DeleteToken(); err != nil {
						return err
					}
				}
				fmt.Fprintln(cmd.OutOrStdout(), "signed out")
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&forgetToken, "forget-token", false, "also delete the stored API token")
	return cmd
}

func newRegisterCmd(flags *rootFlags) *cobra.Command {
	var req api.RegisterRequest
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create a driver account on the remote API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd.Context(), flags, func(a *app) error {
				if strings.TrimSpace(req.FullName) == "" || strings.TrimSpace(req.MobilePhone) == "" {
					return fmt.Errorf("%w: --name and --mobile are required", ledger.ErrValidation)
				}
				fmt.Fprint(cmd.OutOrStdout(), "Choose a password: ")
				password, err := readSecret()
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout())
				if password == "" {
					return fmt.Errorf("%w: password is required", ledger.ErrValidation)
				}
				req.Password = password
				if err := a.apiClient("").Register(cmd.Context(), req); err != nil {
					return fmt.Errorf("register: %w", err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), "registered. run `driverlog login --mobile "+req.MobilePhone+"` to sign in.")
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&req.FullName, "name", "", "full name")
	cmd.Flags().StringVar(&req.MobilePhone, "mobile", "", "mobile number")
	cmd.Flags().StringVar(&req.LicenseNumber, "license", "", "driving license number")
	return cmd
}

func displayDriver(d ledger.Driver) string {
	if d.Name == "" {
		return d.ID
	}
	return d.Name + " (" + d.ID + ")"
}

func readSecret() (string, error) {
	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		value, err := term.ReadPassword(fd)
		if err != nil {
			return "", err
		}
		return string(value), nil
	}

	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		if len(line) == 0 {
			return "", err
		}
	}
	return strings.TrimSpace(line), nil
}
