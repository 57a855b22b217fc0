package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/roach88/relaykv/internal/identity"
)

// NewKeygenCommand creates the keygen command.
func NewKeygenCommand(rootOpts *RootOptions) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "keygen",
		Short: "Generate a new identity",
		Long: `Generate a new identity and write it to the key file.

An existing key file is kept unless --force is given. Values stored under
the old identity cannot be read with the new one.

Example:
  relaykv keygen
  relaykv keygen --key ./key.txt --force`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(rootOpts)
			if err != nil {
				return err
			}

			_, err = os.Stat(cfg.KeyFile)
			switch {
			case err == nil && !force:
				return NewExitError(ExitCommandError, fmt.Sprintf("key file already exists: %s (use --force to replace it)", cfg.KeyFile))
			case err != nil && !errors.Is(err, fs.ErrNotExist):
				return WrapExitError(ExitCommandError, "failed to check key file", err)
			}

			keys, err := identity.Generate()
			if err != nil {
				return WrapExitError(ExitFailure, "failed to generate key", err)
			}
			if err := os.MkdirAll(filepath.Dir(cfg.KeyFile), 0o700); err != nil {
				return WrapExitError(ExitCommandError, "failed to create key directory", err)
			}
			if err := identity.Save(cfg.KeyFile, keys); err != nil {
				return WrapExitError(ExitCommandError, "failed to save key", err)
			}

			out := newFormatter(rootOpts, cmd)
			out.VerboseLog("wrote %s", cfg.KeyFile)
			return out.Success(keys.PublicKey())
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "replace an existing key file")
	return cmd
}

// NewWhoamiCommand creates the whoami command.
func NewWhoamiCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Print the public key of the current identity",
		Long: `Print the public key of the current identity, generating one if the key
file does not exist yet.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(rootOpts)
			if err != nil {
				return err
			}
			keys, _, err := identity.LoadOrGenerate(cfg.KeyFile)
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to load key", err)
			}
			return newFormatter(rootOpts, cmd).Success(keys.PublicKey())
		},
	}
}
