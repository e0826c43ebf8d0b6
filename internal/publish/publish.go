// Package publish posts signed diagnosis keys plus their certificate to the
// public-health key server and interprets the outcome: success carrying a
// new revision token, an informational no-op, or a failure.
package publish

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/pathcheck/enclient/internal/errors"
	"github.com/pathcheck/enclient/internal/httpx"
	"github.com/pathcheck/enclient/internal/keys"
)

const (
	// defaultPadding is reserved for traffic-analysis resistance. It is
	// kept in the request body for wire compatibility but never populated.
	defaultPadding = ""

	existingKeysSentResponse = "no revision token, but sent existing keys"
	internalErrorResponse    = "internal_error"

	maxAttempts       = 3
	defaultRetryDelay = time.Second
)

// ErrorNature classifies a failed submission.
type ErrorNature string

const (
	Timeout             ErrorNature = "Timeout"
	RequestFailed       ErrorNature = "RequestFailed"
	InternalServerError ErrorNature = "InternalServerError"
	Unknown             ErrorNature = "Unknown"
)

// Error is a failed key submission.
type Error struct {
	Nature  ErrorNature
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("diagnosis key submission failed: %s: %s", e.Nature, e.Message)
}

// ResultKind distinguishes a real submission from a server-side no-op.
type ResultKind string

const (
	Success ResultKind = "success"
	NoOp    ResultKind = "no-op"
)

// NoOpReason names why the server took no new action.
type NoOpReason string

// NoTokenForExistingKeys means the device submitted keys the server already
// had without presenting its revision token. Informational, not alarming.
const NoTokenForExistingKeys NoOpReason = "NoTokenForExistingKeys"

// Result is a settled, non-failed submission. On Success the caller must
// persist RevisionToken before doing anything else, so the next submission
// from this device supersedes rather than duplicates.
type Result struct {
	Kind            ResultKind
	RevisionToken   string
	Reason          NoOpReason
	NewKeysInserted int
	Message         string
}

type requestBody struct {
	TemporaryExposureKeys []keys.ExposureKey `json:"temporaryExposureKeys"`
	Regions               []string           `json:"regions"`
	AppPackageName        string             `json:"appPackageName"`
	VerificationPayload   string             `json:"verificationPayload"`
	HmacKey               string             `json:"hmackey"`
	Padding               string             `json:"padding"`
	RevisionToken         string             `json:"revisionToken"`
}

type responseBody struct {
	Error             string `json:"error"`
	InsertedExposures int    `json:"insertedExposures"`
	Padding           string `json:"padding"`
	RevisionToken     string `json:"revisionToken"`
}

// Client submits diagnosis keys to a configurable publish endpoint.
type Client struct {
	httpClient *httpx.Client
	url        string
	retryDelay time.Duration
	logger     *slog.Logger
}

// NewClient creates a publish client for the given endpoint URL.
func NewClient(url string, timeout time.Duration, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		httpClient: httpx.NewClient(timeout),
		url:        url,
		retryDelay: defaultRetryDelay,
		logger:     logger,
	}
}

func (c *Client) headers() map[string]string {
	return map[string]string{
		"content-type": "application/json",
		"accept":       "application/json",
	}
}

// PostDiagnosisKeys submits the signed key set. HTTP 429/503 and the
// server's internal_error sentinel are retried with a fixed delay, up to
// three attempts total. revisionToken echoes the token persisted from the
// previous successful submission (empty on first submission).
func (c *Client) PostDiagnosisKeys(
	ctx context.Context,
	exposureKeys []keys.ExposureKey,
	regionCodes []string,
	certificate string,
	hmacKey string,
	appPackageName string,
	revisionToken string,
) (*Result, error) {
	body := requestBody{
		TemporaryExposureKeys: exposureKeys,
		Regions:               regionCodes,
		AppPackageName:        appPackageName,
		VerificationPayload:   certificate,
		HmacKey:               hmacKey,
		Padding:               defaultPadding,
		RevisionToken:         revisionToken,
	}

	for attempt := 1; ; attempt++ {
		result, retryable, err := c.postOnce(ctx, body)
		if err == nil {
			return result, nil
		}
		if !retryable || attempt >= maxAttempts {
			return nil, err
		}

		c.logger.Warn("diagnosis key submission retrying",
			"attempt", attempt,
			"error", err.Error())
		select {
		case <-time.After(c.retryDelay):
		case <-ctx.Done():
			return nil, &Error{Nature: RequestFailed, Message: ctx.Err().Error()}
		}
	}
}

func (c *Client) postOnce(ctx context.Context, body requestBody) (result *Result, retryable bool, err error) {
	resp, err := c.httpClient.PostJSON(ctx, c.url, c.headers(), body)
	if err != nil {
		if errors.IsTimeout(err) {
			return nil, false, &Error{Nature: Timeout, Message: err.Error()}
		}
		return nil, false, &Error{Nature: RequestFailed, Message: err.Error()}
	}

	var wire responseBody
	if err := resp.DecodeJSON(&wire); err != nil {
		return nil, false, &Error{Nature: Unknown, Message: err.Error()}
	}

	if resp.OK() {
		return &Result{
			Kind:            Success,
			RevisionToken:   wire.RevisionToken,
			NewKeysInserted: wire.InsertedExposures,
		}, false, nil
	}

	if resp.StatusCode == 429 || resp.StatusCode == 503 || wire.Error == internalErrorResponse {
		nature := Unknown
		if wire.Error == internalErrorResponse {
			nature = InternalServerError
		}
		return nil, true, &Error{Nature: nature, Message: wire.Error}
	}

	switch wire.Error {
	case existingKeysSentResponse:
		return &Result{
			Kind:            NoOp,
			Reason:          NoTokenForExistingKeys,
			NewKeysInserted: wire.InsertedExposures,
			Message:         wire.Error,
		}, false, nil
	default:
		return nil, false, &Error{Nature: Unknown, Message: wire.Error}
	}
}
