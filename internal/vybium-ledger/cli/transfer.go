package cli

import (
	"context"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/vybium/vybium-ledger/internal/vybium-ledger/account"
	"github.com/vybium/vybium-ledger/internal/vybium-ledger/client"
)

// TransferOptions holds flags for the transfer command.
type TransferOptions struct {
	*RootOptions
	PrivateKey  string
	Seed        string
	Recipient   string
	Amount      uint64
	PriorityFee uint64
}

// NewTransferCommand creates the transfer command.
func NewTransferCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TransferOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "transfer",
		Short: "Send a public credits transfer through the services",
		Long: `Authorize a credits.vy/transfer_public call, fetch the node's state
root, prove the call on the execute service and broadcast the transaction.

The signer is --private-key, or the key the authorize service derives for
--seed.

Example:
  vybium-ledger transfer --seed "correct horse" --recipient vy1... --amount 100 --priority-fee 10`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTransfer(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.PrivateKey, "private-key", "", "signer private key")
	cmd.Flags().StringVar(&opts.Seed, "seed", "", "seed for the keygen endpoint when no private key is given")
	cmd.Flags().StringVar(&opts.Recipient, "recipient", "", "recipient address")
	cmd.Flags().Uint64Var(&opts.Amount, "amount", 0, "amount in microcredits")
	cmd.Flags().Uint64Var(&opts.PriorityFee, "priority-fee", 0, "priority fee in microcredits")
	cmd.MarkFlagsMutuallyExclusive("private-key", "seed")
	cmd.MarkFlagsOneRequired("private-key", "seed")
	_ = cmd.MarkFlagRequired("recipient")

	return cmd
}

func runTransfer(cmd *cobra.Command, opts *TransferOptions) error {
	t := client.Transfer{
		Seed:        opts.Seed,
		Amount:      opts.Amount,
		PriorityFee: opts.PriorityFee,
	}
	if opts.PrivateKey != "" {
		key, err := account.ParsePrivateKey(opts.PrivateKey)
		if err != nil {
			return WrapExitError(ExitCommandError, "--private-key", err)
		}
		t.Key = key
	}
	recipient, err := account.ParseAddress(opts.Recipient)
	if err != nil {
		return WrapExitError(ExitCommandError, "--recipient", err)
	}
	t.Recipient = recipient

	cfg, err := opts.config()
	if err != nil {
		return err
	}
	logger, err := opts.logger(cmd)
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	res, err := client.New(cfg, client.WithLogger(logger)).Transfer(ctx, t)
	if err != nil {
		return WrapExitError(ExitFailure, "transfer", err)
	}
	fee, err := res.Transaction.Fee.Amount()
	if err != nil {
		return WrapExitError(ExitFailure, "transfer", err)
	}
	return opts.output(cmd).Success(
		Field{Name: "signer", Value: res.Signer.String()},
		Field{Name: "state_root", Value: res.StateRoot.String()},
		Field{Name: "transaction_id", Value: res.Transaction.ID.String()},
		Field{Name: "fee", Value: strconv.FormatUint(fee, 10)},
		Field{Name: "broadcast", Value: res.Body},
	)
}
