package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/vybium/vybium-ledger/internal/vybium-ledger/account"
	"github.com/vybium/vybium-ledger/internal/vybium-ledger/client"
)

// KeygenOptions holds flags for the keygen command.
type KeygenOptions struct {
	*RootOptions
	Seed       string
	Mnemonic   string
	Passphrase string
	Remote     bool
}

// NewKeygenCommand creates the keygen command.
func NewKeygenCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &KeygenOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "keygen",
		Short: "Derive or generate a private key",
		Long: `Derive a private key from a seed string or a BIP-39 mnemonic, or
generate a fresh 24-word mnemonic when neither is given.

Examples:
  vybium-ledger keygen --seed "correct horse"
  vybium-ledger keygen --seed "correct horse" --remote
  vybium-ledger keygen --mnemonic "abandon ... art" --passphrase extra`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runKeygen(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.Seed, "seed", "", "seed string to derive the key from")
	cmd.Flags().StringVar(&opts.Mnemonic, "mnemonic", "", "BIP-39 mnemonic to restore the key from")
	cmd.Flags().StringVar(&opts.Passphrase, "passphrase", "", "optional BIP-39 passphrase")
	cmd.Flags().BoolVar(&opts.Remote, "remote", false, "ask the authorize service's keygen endpoint instead of deriving locally")
	cmd.MarkFlagsMutuallyExclusive("seed", "mnemonic")

	return cmd
}

func runKeygen(cmd *cobra.Command, opts *KeygenOptions) error {
	var (
		key      *account.PrivateKey
		mnemonic string
		err      error
	)
	switch {
	case opts.Remote:
		if opts.Seed == "" {
			return NewExitError(ExitCommandError, "--remote needs --seed")
		}
		cfg, cfgErr := opts.config()
		if cfgErr != nil {
			return cfgErr
		}
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		key, err = client.New(cfg).Keygen(ctx, opts.Seed)
	case opts.Seed != "":
		key, err = account.PrivateKeyFromSeed(opts.Seed)
	case opts.Mnemonic != "":
		key, err = account.PrivateKeyFromMnemonic(opts.Mnemonic, opts.Passphrase)
	default:
		if opts.Passphrase != "" {
			return NewExitError(ExitCommandError, "--passphrase needs --mnemonic")
		}
		mnemonic, key, err = account.NewMnemonic()
	}
	if err != nil {
		return WrapExitError(ExitFailure, "keygen", err)
	}

	fields := []Field{
		{Name: "private_key", Value: key.String()},
		{Name: "address", Value: key.Address().String()},
	}
	if mnemonic != "" {
		fields = append(fields, Field{Name: "mnemonic", Value: mnemonic})
	}
	return opts.output(cmd).Success(fields...)
}
