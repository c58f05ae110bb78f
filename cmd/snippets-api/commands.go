package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/MarcoPoloResearchLab/snippets/backend/internal/auth"
	"github.com/MarcoPoloResearchLab/snippets/backend/internal/client"
	"github.com/MarcoPoloResearchLab/snippets/backend/internal/library"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

const (
	defaultServerURL = "http://localhost:8080"
	passwordEnv      = "SNIPPETS_PASSWORD"
)

var readPassword = term.ReadPassword

func promptPassword(cmd *cobra.Command, prompt string) (string, error) {
	fmt.Fprint(cmd.ErrOrStderr(), prompt)
	password, err := readPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(cmd.ErrOrStderr())
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}
	return string(password), nil
}

func newHashPasswordCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "hash-password",
		Short: "Print the bcrypt hash to configure as auth.password_hash",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			password, err := promptPassword(cmd, "Password: ")
			if err != nil {
				return err
			}
			confirmation, err := promptPassword(cmd, "Confirm password: ")
			if err != nil {
				return err
			}
			if password != confirmation {
				return errors.New("passwords do not match")
			}
			hash, err := auth.HashPassword(password)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), hash)
			return nil
		},
	}
}

type remoteOptions struct {
	server string
	kind   string
	format string
}

func (o *remoteOptions) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&o.server, "server", defaultServerURL, "Base URL of the snippets API")
	cmd.Flags().StringVar(&o.kind, "kind", "components", "Records to transfer (components, templates)")
	cmd.Flags().StringVar(&o.format, "format", string(library.FormatJSON), "Encoding (json, yaml)")
}

// connect logs in with SNIPPETS_PASSWORD or an interactive prompt.
func (o *remoteOptions) connect(cmd *cobra.Command) (*client.Client, library.Format, error) {
	format, err := library.ParseFormat(o.format)
	if err != nil {
		return nil, "", err
	}
	apiClient, err := client.New(o.server, nil)
	if err != nil {
		return nil, "", err
	}
	password := os.Getenv(passwordEnv)
	if password == "" {
		password, err = promptPassword(cmd, "Password: ")
		if err != nil {
			return nil, "", err
		}
	}
	if err := apiClient.Login(cmd.Context(), password); err != nil {
		return nil, "", fmt.Errorf("login: %w", err)
	}
	return apiClient, format, nil
}

func newExportCommand() *cobra.Command {
	options := &remoteOptions{}
	var output string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Download every component or template from a running server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			apiClient, format, err := options.connect(cmd)
			if err != nil {
				return err
			}
			payload, err := apiClient.Export(cmd.Context(), options.kind, format)
			if err != nil {
				return err
			}
			if output == "" || output == "-" {
				_, err = cmd.OutOrStdout().Write(payload)
				return err
			}
			return os.WriteFile(output, payload, 0o600)
		},
	}
	options.register(cmd)
	cmd.Flags().StringVarP(&output, "output", "o", "", "Output file (default stdout)")
	return cmd
}

func newImportCommand() *cobra.Command {
	options := &remoteOptions{}
	cmd := &cobra.Command{
		Use:   "import [file]",
		Short: "Upload an exported component or template array to a running server",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				payload []byte
				err     error
			)
			if len(args) == 0 || args[0] == "-" {
				payload, err = io.ReadAll(cmd.InOrStdin())
			} else {
				payload, err = os.ReadFile(args[0])
				if options.format == string(library.FormatJSON) && isYAMLFile(args[0]) {
					options.format = string(library.FormatYAML)
				}
			}
			if err != nil {
				return err
			}

			apiClient, format, err := options.connect(cmd)
			if err != nil {
				return err
			}
			imported, err := apiClient.Import(cmd.Context(), options.kind, format, payload)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "imported %d %s\n", imported, options.kind)
			return nil
		},
	}
	options.register(cmd)
	return cmd
}

func isYAMLFile(path string) bool {
	lower := strings.ToLower(path)
	return strings.HasSuffix(lower, ".yaml") || strings.HasSuffix(lower, ".yml")
}
