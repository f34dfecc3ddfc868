package verify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/casedesk/intake/common/clients"
	"github.com/casedesk/intake/common/config"
)

// ErrRejected is returned when the attestation token fails verification
var ErrRejected = errors.New("attestation rejected")

// Logger interface for logging
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
	Warn(msg string, keysAndValues ...interface{})
	Debug(msg string, keysAndValues ...interface{})
}

// Verifier gates state-changing unauthenticated operations on a
// client-supplied attestation token scored by an external service.
type Verifier interface {
	Verify(ctx context.Context, token string) error
}

// ScoringVerifier exchanges the token with the configured scoring service.
// With no secret provisioned, enforcement is off and every token is
// accepted; that is a deployment decision, not a runtime fallback.
//
// Transport failures reject the token (fail-closed) unless FailOpen is
// configured.
type ScoringVerifier struct {
	cfg    config.CaptchaConfig
	http   *clients.HTTPClient
	logger Logger
}

// NewScoringVerifier creates a new verifier
func NewScoringVerifier(cfg config.CaptchaConfig, httpClient *clients.HTTPClient, logger Logger) *ScoringVerifier {
	return &ScoringVerifier{
		cfg:    cfg,
		http:   httpClient,
		logger: logger,
	}
}

// scoringResponse is the scoring service's verdict
type scoringResponse struct {
	Success    bool     `json:"success"`
	Score      *float64 `json:"score,omitempty"`
	ErrorCodes []string `json:"error-codes,omitempty"`
}

// Verify checks the attestation token against the scoring service
func (v *ScoringVerifier) Verify(ctx context.Context, token string) error {
	if v.cfg.Secret == "" {
		return nil
	}

	if token == "" {
		v.logger.Warn("attestation token missing")
		return ErrRejected
	}

	body, status, err := v.http.PostForm(ctx, v.cfg.VerifyURL, url.Values{
		"secret":   {v.cfg.Secret},
		"response": {token},
	})
	if err != nil {
		return v.transportFailure(fmt.Errorf("scoring service call: %w", err))
	}
	if status != http.StatusOK {
		return v.transportFailure(fmt.Errorf("scoring service status %d", status))
	}

	var verdict scoringResponse
	if err := json.Unmarshal(body, &verdict); err != nil {
		return v.transportFailure(fmt.Errorf("decode scoring response: %w", err))
	}

	if !verdict.Success {
		v.logger.Warn("attestation failed", "error_codes", verdict.ErrorCodes)
		return ErrRejected
	}

	if verdict.Score != nil && *verdict.Score < v.cfg.MinScore {
		v.logger.Warn("attestation score below floor", "score", *verdict.Score, "floor", v.cfg.MinScore)
		return ErrRejected
	}

	return nil
}

func (v *ScoringVerifier) transportFailure(err error) error {
	if v.cfg.FailOpen {
		v.logger.Warn("scoring service unreachable, failing open", "error", err)
		return nil
	}
	v.logger.Error("scoring service unreachable, failing closed", "error", err)
	return ErrRejected
}
