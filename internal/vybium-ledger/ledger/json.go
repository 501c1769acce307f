package ledger

import (
	"encoding/hex"
	"encoding/json"

	"github.com/vybium/vybium-ledger/internal/vybium-ledger/codec"
)

type jsonIO struct {
	Type  string `json:"type"`
	ID    string `json:"id"`
	Tag   string `json:"tag,omitempty"`
	Value string `json:"value,omitempty"`
}

type jsonTransition struct {
	ID           string   `json:"id"`
	Signer       string   `json:"signer"`
	Signature    string   `json:"signature"`
	Program      string   `json:"program"`
	Function     string   `json:"function"`
	Inputs       []jsonIO `json:"inputs"`
	Outputs      []jsonIO `json:"outputs"`
	TCM          string   `json:"tcm"`
	VerifyingKey string   `json:"verifying_key"`
}

type jsonExecution struct {
	Transitions     []jsonTransition `json:"transitions"`
	GlobalStateRoot string           `json:"global_state_root"`
	Proof           string           `json:"proof,omitempty"`
}

type jsonFee struct {
	Transition      jsonTransition `json:"transition"`
	GlobalStateRoot string         `json:"global_state_root"`
	Proof           string         `json:"proof,omitempty"`
}

type jsonTransaction struct {
	Type      string        `json:"type"`
	ID        string        `json:"id"`
	Execution jsonExecution `json:"execution"`
	Fee       *jsonFee      `json:"fee,omitempty"`
}

func toJSONTransition(t *PublicTransition) jsonTransition {
	out := jsonTransition{
		ID:           t.ID.String(),
		Signer:       t.Signer.String(),
		Signature:    hex.EncodeToString(t.Signature),
		Program:      t.Program.String(),
		Function:     t.Function.String(),
		Inputs:       make([]jsonIO, len(t.InputIDs)),
		Outputs:      make([]jsonIO, len(t.OutputIDs)),
		TCM:          t.TCM.String(),
		VerifyingKey: t.VerifyingKey.String(),
	}
	for i, id := range t.InputIDs {
		out.Inputs[i] = jsonIO{Type: id.Kind.String(), ID: id.ID.String()}
		if id.Kind == InputRecord {
			out.Inputs[i].Tag = id.Tag.String()
		}
	}
	for _, pv := range t.PublicInputs {
		if int(pv.Index) < len(out.Inputs) {
			out.Inputs[pv.Index].Value = pv.Value.String()
		}
	}
	for i, id := range t.OutputIDs {
		out.Outputs[i] = jsonIO{Type: id.Kind.String(), ID: id.ID.String()}
	}
	for _, pv := range t.PublicOutputs {
		if int(pv.Index) < len(out.Outputs) {
			out.Outputs[pv.Index].Value = pv.Value.String()
		}
	}
	return out
}

func proofHex(p *Proof) (string, error) {
	if p == nil {
		return "", nil
	}
	raw, err := codec.Marshal(p)
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(raw), nil
}

// MarshalJSON renders the transaction in the node's broadcast format.
// Proofs are embedded as hex of their wire encoding.
func (tx *Transaction) MarshalJSON() ([]byte, error) {
	out := jsonTransaction{
		Type: "execute",
		ID:   tx.ID.String(),
		Execution: jsonExecution{
			GlobalStateRoot: tx.Execution.GlobalStateRoot.String(),
		},
	}
	for _, t := range tx.Execution.Transitions {
		out.Execution.Transitions = append(out.Execution.Transitions, toJSONTransition(t))
	}
	var err error
	if out.Execution.Proof, err = proofHex(tx.Execution.Proof); err != nil {
		return nil, err
	}
	if tx.Fee != nil {
		fee := &jsonFee{
			Transition:      toJSONTransition(tx.Fee.Transition),
			GlobalStateRoot: tx.Fee.GlobalStateRoot.String(),
		}
		if fee.Proof, err = proofHex(tx.Fee.Proof); err != nil {
			return nil, err
		}
		out.Fee = fee
	}
	return json.Marshal(out)
}
