// Package vybiumledger is the public API of the Vybium ledger transfer stack.
//
// A transfer moves through three steps:
//
//   - Authorize: the signer builds a function Authorization for a credits
//     call and a fee Authorization bound to its execution id. No proving
//     happens here.
//   - Execute: a Prover replays the authorization, checks it against the
//     native credits semantics, resolves state through a Query, runs the VM
//     program of every transition and proves its trace with a STARK.
//   - Broadcast: the resulting Transaction is sent to a node as JSON.
//
// # Quick Start
//
// Authorizing a public transfer:
//
//	key, err := vybiumledger.PrivateKeyFromSeed("correct horse")
//	if err != nil {
//		log.Fatal(err)
//	}
//	auth, err := vybiumledger.AuthorizeTransferPublic(&vybiumledger.AuthorizeRequest{
//		PrivateKey:  key,
//		Recipient:   recipient,
//		Amount:      100,
//		PriorityFee: 10,
//	}, nil)
//	if err != nil {
//		log.Fatal(err)
//	}
//
// Proving it against a known state root:
//
//	prover, err := vybiumledger.NewProver()
//	if err != nil {
//		log.Fatal(err)
//	}
//	tx, err := prover.Execute(ctx, auth.FunctionAuthorization, auth.FeeAuthorization,
//		vybiumledger.NewStaticQuery(&root, nil))
//	if err != nil {
//		log.Fatal(err)
//	}
//
// Verifying a transaction:
//
//	if err := prover.VerifyTransaction(tx); err != nil {
//		log.Fatal(err)
//	}
//
// # Architecture
//
//   - pkg/vybium-ledger/: public API (this package)
//   - internal/vybium-ledger/: implementation, including the HTTP services,
//     the transfer client and the CLI
//
// # Errors
//
// Every error the stack produces carries an ErrorCode. Use errors.Is with
// the Err* sentinels, or CodeOf, to branch on it.
package vybiumledger
