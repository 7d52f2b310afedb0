package pdp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ipfs/go-cid"
	logging "github.com/ipfs/go-log/v2"
	"golang.org/x/xerrors"

	"github.com/filecoin-project/go-address"
	"github.com/filecoin-project/go-state-types/big"
)

var log = logging.Logger("pdp")

// Client talks to a Curio-style PDP service over HTTP. Request timeouts are
// owned here, not by callers; a timeout surfaces as just another upload error.
type Client struct {
	baseURL string
	token   string
	hc      *http.Client
}

func NewClient(baseURL, token string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		hc:      &http.Client{Timeout: timeout},
	}
}

type uploadResponse struct {
	PieceCID string `json:"pieceCid"`
}

// UploadPiece submits one piece payload. Metadata travels as opaque headers;
// the service returns the piece CID it assigned, which for already-held
// content is reported via an ErrPieceExists error rather than a second CID.
func (c *Client) UploadPiece(ctx context.Context, name string, payload []byte, meta map[string]string) (cid.Cid, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/pdp/pieces", bytes.NewReader(payload))
	if err != nil {
		return cid.Undef, xerrors.Errorf("building upload request: %w", err)
	}
	req.Header.Set("Content-Type", "application/octet-stream")
	req.Header.Set("X-Piece-Name", name)
	for k, v := range meta {
		req.Header.Set("X-Piece-Meta-"+k, v)
	}
	c.auth(req)

	resp, err := c.hc.Do(req)
	if err != nil {
		return cid.Undef, xerrors.Errorf("uploading %s: %w", name, err)
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return cid.Undef, c.asError(resp)
	}

	var out uploadResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return cid.Undef, xerrors.Errorf("decoding upload response for %s: %w", name, err)
	}
	pc, err := cid.Parse(out.PieceCID)
	if err != nil {
		return cid.Undef, xerrors.Errorf("service returned invalid piece cid %q: %w", out.PieceCID, err)
	}

	log.Debugw("uploaded piece", "name", name, "pieceCid", pc, "size", len(payload))
	return pc, nil
}

// AccountInfo describes the service-side payment account for a wallet.
// Amounts are attoFIL-denominated token units.
type AccountInfo struct {
	Address  string  `json:"address"`
	Funds    big.Int `json:"funds"`
	Approved big.Int `json:"approved"`
}

// Account fetches deposit and approval state for addr.
func (c *Client) Account(ctx context.Context, addr address.Address) (*AccountInfo, error) {
	var info AccountInfo
	if err := c.getJSON(ctx, "/pdp/accounts/"+addr.String(), &info); err != nil {
		return nil, err
	}
	return &info, nil
}

type approveRequest struct {
	Address string  `json:"address"`
	Amount  big.Int `json:"amount"`
}

type approveResponse struct {
	TxHash string `json:"txHash"`
}

// Approve authorizes the service to spend up to amount from addr's deposit.
// One shot: the service submits the transaction and returns its hash without
// waiting for it to land.
func (c *Client) Approve(ctx context.Context, addr address.Address, amount big.Int) (string, error) {
	body, err := json.Marshal(approveRequest{Address: addr.String(), Amount: amount})
	if err != nil {
		return "", xerrors.Errorf("marshaling approval: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/pdp/approvals", bytes.NewReader(body))
	if err != nil {
		return "", xerrors.Errorf("building approval request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	c.auth(req)

	resp, err := c.hc.Do(req)
	if err != nil {
		return "", xerrors.Errorf("submitting approval: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return "", c.asError(resp)
	}

	var out approveResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", xerrors.Errorf("decoding approval response: %w", err)
	}
	return out.TxHash, nil
}

// PieceRef is one piece within a data set.
type PieceRef struct {
	PieceCID string `json:"pieceCid"`
	Size     int64  `json:"size"`
}

// DataSet is the service-side view of an on-chain data set.
type DataSet struct {
	ID     uint64     `json:"id"`
	Owner  string     `json:"owner"`
	Pieces []PieceRef `json:"pieces"`
}

// DataSetInfo fetches a data set by id.
func (c *Client) DataSetInfo(ctx context.Context, id uint64) (*DataSet, error) {
	var ds DataSet
	if err := c.getJSON(ctx, fmt.Sprintf("/pdp/data-sets/%d", id), &ds); err != nil {
		return nil, err
	}
	return &ds, nil
}

func (c *Client) getJSON(ctx context.Context, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return xerrors.Errorf("building request for %s: %w", path, err)
	}
	c.auth(req)

	resp, err := c.hc.Do(req)
	if err != nil {
		return xerrors.Errorf("requesting %s: %w", path, err)
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		return c.asError(resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return xerrors.Errorf("decoding response from %s: %w", path, err)
	}
	return nil
}

func (c *Client) auth(req *http.Request) {
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// asError converts a non-2xx response into an *Error. A structured code in
// the body wins over the status-derived one.
func (c *Client) asError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

	perr := &Error{
		Code:    codeForStatus(resp.StatusCode),
		Status:  resp.StatusCode,
		Message: strings.TrimSpace(string(body)),
	}

	var eresp errorResponse
	if err := json.Unmarshal(body, &eresp); err == nil && eresp.Message != "" {
		perr.Message = eresp.Message
		if eresp.Code != "" {
			perr.Code = ErrorCode(eresp.Code)
		}
	}
	if perr.Message == "" {
		perr.Message = resp.Status
	}
	return perr
}
