package vybiumledger

import (
	"github.com/vybium/vybium-ledger/internal/vybium-ledger/account"
	"github.com/vybium/vybium-ledger/internal/vybium-ledger/authorize"
	"github.com/vybium/vybium-ledger/internal/vybium-ledger/core"
	"github.com/vybium/vybium-ledger/internal/vybium-ledger/executor"
	"github.com/vybium/vybium-ledger/internal/vybium-ledger/ledger"
	"github.com/vybium/vybium-ledger/internal/vybium-ledger/process"
	"github.com/vybium/vybium-ledger/internal/vybium-ledger/program"
	"github.com/vybium/vybium-ledger/internal/vybium-ledger/query"
	"github.com/vybium/vybium-ledger/internal/vybium-ledger/utils"
)

// Accounts
type (
	PrivateKey = account.PrivateKey
	Address    = account.Address
)

// Ledger values
type (
	Digest        = core.Digest
	Authorization = ledger.Authorization
	Transition    = ledger.Transition
	Transaction   = ledger.Transaction
	Execution     = ledger.Execution
	Fee           = ledger.Fee
	StatePath     = ledger.StatePath
	Record        = program.Record
)

// Wire requests and responses
type (
	AuthorizeRequest  = authorize.AuthorizeRequest
	AuthorizeResponse = authorize.AuthorizeResponse
	ExecuteRequest    = executor.ExecuteRequest
)

// Query resolves state roots and inclusion paths for a Prover.
type Query = query.Query

// Prover executes and verifies authorizations.
type Prover = process.Process

// ProverOption configures a Prover.
type ProverOption = process.Option

// FeeSchedule prices the base fee of a function.
type FeeSchedule = authorize.FeeSchedule

// Config holds the settings of the services, client and prover.
type Config = utils.Config
