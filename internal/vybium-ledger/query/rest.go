package query

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/vybium/vybium-ledger/internal/vybium-ledger/core"
	"github.com/vybium/vybium-ledger/internal/vybium-ledger/errs"
	"github.com/vybium/vybium-ledger/internal/vybium-ledger/ledger"
)

// DefaultTimeout bounds each REST round trip when the caller's context has no
// deadline.
const DefaultTimeout = 30 * time.Second

const maxResponseBytes = 1 << 20

// RESTQuery resolves state against a node's REST API:
//
//	GET {base}/{network}/stateRoot/latest
//	GET {base}/{network}/statePath/{commitment}
type RESTQuery struct {
	base    string
	network string
	client  *http.Client
}

var _ Query = (*RESTQuery)(nil)

// NewRESTQuery returns a query against base for network. A nil client uses
// http.DefaultClient.
func NewRESTQuery(base, network string, client *http.Client) *RESTQuery {
	if client == nil {
		client = http.DefaultClient
	}
	return &RESTQuery{
		base:    strings.TrimRight(strings.TrimSpace(base), "/"),
		network: network,
		client:  client,
	}
}

// StatePathJSON is the node's JSON form of a state path.
type StatePathJSON struct {
	GlobalStateRoot string          `json:"global_state_root"`
	Commitment      string          `json:"commitment"`
	Siblings        []ProofNodeJSON `json:"siblings"`
}

// ProofNodeJSON is one sibling in a StatePathJSON.
type ProofNodeJSON struct {
	Hash    string `json:"hash"`
	IsRight bool   `json:"is_right"`
}

// NewStatePathJSON converts a state path for the wire.
func NewStatePathJSON(p *ledger.StatePath) StatePathJSON {
	out := StatePathJSON{
		GlobalStateRoot: p.GlobalStateRoot.String(),
		Commitment:      p.Commitment.String(),
		Siblings:        make([]ProofNodeJSON, len(p.Siblings)),
	}
	for i, n := range p.Siblings {
		out.Siblings[i] = ProofNodeJSON{Hash: n.Hash.String(), IsRight: n.IsRight}
	}
	return out
}

// StatePath parses the JSON form back into a state path.
func (j StatePathJSON) StatePath() (*ledger.StatePath, error) {
	if len(j.Siblings) > ledger.MaxStatePathDepth {
		return nil, errs.Newf(errs.ParseError, "state path has %d siblings", len(j.Siblings))
	}
	root, err := core.ParseDigest(j.GlobalStateRoot)
	if err != nil {
		return nil, fmt.Errorf("state path root: %w", err)
	}
	commitment, err := core.ParseDigest(j.Commitment)
	if err != nil {
		return nil, fmt.Errorf("state path commitment: %w", err)
	}
	p := &ledger.StatePath{GlobalStateRoot: root, Commitment: commitment}
	for i, n := range j.Siblings {
		h, err := core.ParseDigest(n.Hash)
		if err != nil {
			return nil, fmt.Errorf("state path sibling %d: %w", i, err)
		}
		p.Siblings = append(p.Siblings, core.ProofNode{Hash: h, IsRight: n.IsRight})
	}
	return p, nil
}

func (q *RESTQuery) get(ctx context.Context, path string, out any) (retErr error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, DefaultTimeout)
		defer cancel()
	}
	url := q.base + "/" + q.network + path
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return errs.Wrap(errs.TransportError, "build request", err)
	}
	req.Header.Set("Accept", "application/json")
	resp, err := q.client.Do(req)
	if err != nil {
		return errs.Wrap(errs.TransportError, "GET "+url, err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil && retErr == nil {
			retErr = errs.Wrap(errs.TransportError, "close response", closeErr)
		}
	}()
	if resp.StatusCode == http.StatusNotFound {
		return errs.Newf(errs.UnresolvedState, "GET %s: not found", url)
	}
	if resp.StatusCode != http.StatusOK {
		return errs.Newf(errs.TransportError, "GET %s: status %d", url, resp.StatusCode)
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(out); err != nil {
		return errs.Wrap(errs.ParseError, "decode "+url, err)
	}
	return nil
}

// CurrentStateRoot fetches the latest state root.
func (q *RESTQuery) CurrentStateRoot() (core.Digest, error) {
	return q.CurrentStateRootContext(context.Background())
}

// CurrentStateRootContext fetches the latest state root.
func (q *RESTQuery) CurrentStateRootContext(ctx context.Context) (core.Digest, error) {
	var s string
	if err := q.get(ctx, "/stateRoot/latest", &s); err != nil {
		return core.Digest{}, err
	}
	return core.ParseDigest(s)
}

// StatePathForCommitment fetches the inclusion path of commitment.
func (q *RESTQuery) StatePathForCommitment(commitment core.Digest) (*ledger.StatePath, error) {
	return q.StatePathForCommitmentContext(context.Background(), commitment)
}

// StatePathForCommitmentContext fetches the inclusion path of commitment.
func (q *RESTQuery) StatePathForCommitmentContext(ctx context.Context, commitment core.Digest) (*ledger.StatePath, error) {
	var j StatePathJSON
	if err := q.get(ctx, "/statePath/"+commitment.String(), &j); err != nil {
		return nil, err
	}
	return j.StatePath()
}
