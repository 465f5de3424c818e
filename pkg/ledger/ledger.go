package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/pump-pill/arenax/pkg/model"
	"github.com/pump-pill/arenax/pkg/utils"
)

// Payout is a single disbursement request to the external reward vault.
type Payout struct {
	Wallet         string         `json:"wallet"`
	EpochIndex     uint64         `json:"epoch"`
	AmountLamports model.Lamports `json:"amountLamports"`
}

// Confirmation is the vault's acknowledgement of a submitted payout.
type Confirmation struct {
	Signature string `json:"signature"`
}

// Submitter is the external ledger collaborator: submit a payout, get back a
// confirmation or a rejection. The on-chain program behind it is opaque to
// this service.
type Submitter interface {
	Submit(ctx context.Context, payout Payout) (Confirmation, error)
}

// HTTPSubmitter posts payouts to the vault's disbursement endpoint with a
// bounded per-request timeout.
type HTTPSubmitter struct {
	url    string
	client *http.Client
	logger *zap.Logger
}

// NewHTTPSubmitter builds a submitter from PAYOUT_LEDGER_URL and
// PAYOUT_TIMEOUT.
func NewHTTPSubmitter(logger *zap.Logger) *HTTPSubmitter {
	return &HTTPSubmitter{
		url: utils.Env("PAYOUT_LEDGER_URL", "http://localhost:8899/disburse"),
		client: &http.Client{
			Timeout: utils.EnvDuration("PAYOUT_TIMEOUT", 10*time.Second),
		},
		logger: logger,
	}
}

func (s *HTTPSubmitter) Submit(ctx context.Context, payout Payout) (Confirmation, error) {
	body, err := json.Marshal(payout)
	if err != nil {
		return Confirmation{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return Confirmation{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return Confirmation{}, fmt.Errorf("submit payout: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return Confirmation{}, fmt.Errorf("payout rejected: ledger returned %d", resp.StatusCode)
	}

	var conf Confirmation
	if err := json.NewDecoder(resp.Body).Decode(&conf); err != nil {
		return Confirmation{}, fmt.Errorf("decode payout confirmation: %w", err)
	}
	if conf.Signature == "" {
		return Confirmation{}, fmt.Errorf("payout confirmation missing signature")
	}

	s.logger.Debug("Payout confirmed",
		zap.String("wallet", payout.Wallet),
		zap.Uint64("epoch", payout.EpochIndex),
		zap.String("signature", conf.Signature))

	return conf, nil
}
