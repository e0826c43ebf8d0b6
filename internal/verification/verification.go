// Package verification implements the two-step protocol against the
// verification server: a short-lived code is exchanged for a token, then the
// token plus the HMAC digest of the key set is exchanged for a certificate.
package verification

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/pathcheck/enclient/internal/errors"
	"github.com/pathcheck/enclient/internal/httpx"
)

// ErrorKind classifies a failed verification call. Protocol kinds carry
// specific user guidance; transport kinds map to generic connectivity copy.
type ErrorKind string

const (
	InvalidCode          ErrorKind = "InvalidCode"
	VerificationCodeUsed ErrorKind = "VerificationCodeUsed"
	TokenMetaDataMismatch ErrorKind = "TokenMetaDataMismatch"
	NetworkConnection    ErrorKind = "NetworkConnection"
	Timeout              ErrorKind = "Timeout"
	Unknown              ErrorKind = "Unknown"
)

// Error is a failed verification call. Message preserves the server's error
// string for diagnostics when the kind is Unknown.
type Error struct {
	Kind    ErrorKind
	Message string
}

func (e *Error) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("verification failed: %s: %s", e.Kind, e.Message)
	}
	return fmt.Sprintf("verification failed: %s", e.Kind)
}

// CodeResponse is a successful code verification.
type CodeResponse struct {
	Token    string
	TestDate string
	TestType string
	Err      string
}

// CertificateResponse is a successful token+HMAC verification.
type CertificateResponse struct {
	Certificate string
	Err         string
}

// Client talks to the verification server. Both calls are idempotent from
// the client's perspective; retrying after Timeout or NetworkConnection is
// safe but left to the caller.
type Client struct {
	httpClient     *httpx.Client
	verifyURL      string
	certificateURL string
	apiKey         string
	logger         *slog.Logger
}

// NewClient creates a verification client for the given base URL. A zero
// timeout uses the httpx default of five seconds.
func NewClient(baseURL, apiKey string, timeout time.Duration, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		httpClient:     httpx.NewClient(timeout),
		verifyURL:      baseURL + "/api/verify",
		certificateURL: baseURL + "/api/certificate",
		apiKey:         apiKey,
		logger:         logger,
	}
}

func (c *Client) headers() map[string]string {
	return map[string]string{
		"content-type": "application/json",
		"accept":       "application/json",
		"X-API-Key":    c.apiKey,
	}
}

type codeWireResponse struct {
	Error    string `json:"error"`
	TestDate string `json:"testdate"`
	TestType string `json:"testtype"`
	Token    string `json:"token"`
}

// PostCode exchanges a user-entered verification code for a token.
func (c *Client) PostCode(ctx context.Context, code string) (*CodeResponse, error) {
	resp, err := c.httpClient.PostJSON(ctx, c.verifyURL, c.headers(), map[string]string{
		"code": code,
	})
	if err != nil {
		return nil, c.classifyTransportError("code submission", err)
	}

	var wire codeWireResponse
	if err := resp.DecodeJSON(&wire); err != nil {
		return nil, &Error{Kind: Unknown, Message: err.Error()}
	}

	if resp.OK() {
		return &CodeResponse{
			Token:    wire.Token,
			TestDate: wire.TestDate,
			TestType: wire.TestType,
			Err:      wire.Error,
		}, nil
	}

	switch wire.Error {
	case "verification code invalid":
		return nil, &Error{Kind: InvalidCode}
	case "verification code used":
		return nil, &Error{Kind: VerificationCodeUsed}
	default:
		c.logger.Error("unhandled verification code submission error",
			"error", wire.Error)
		return nil, &Error{Kind: Unknown, Message: wire.Error}
	}
}

type certificateWireResponse struct {
	Certificate string `json:"certificate"`
	Error       string `json:"error"`
}

// PostTokenAndHmac exchanges the verification token and the HMAC digest of
// the key set for a certificate authorizing submission.
func (c *Client) PostTokenAndHmac(ctx context.Context, token, hmacDigest string) (*CertificateResponse, error) {
	resp, err := c.httpClient.PostJSON(ctx, c.certificateURL, c.headers(), map[string]string{
		"token":    token,
		"ekeyhmac": hmacDigest,
	})
	if err != nil {
		return nil, c.classifyTransportError("certificate request", err)
	}

	var wire certificateWireResponse
	if err := resp.DecodeJSON(&wire); err != nil {
		return nil, &Error{Kind: Unknown, Message: err.Error()}
	}

	if resp.OK() {
		return &CertificateResponse{
			Certificate: wire.Certificate,
			Err:         wire.Error,
		}, nil
	}

	switch wire.Error {
	case "token metadata mismatch":
		return nil, &Error{Kind: TokenMetaDataMismatch}
	default:
		return nil, &Error{Kind: Unknown, Message: wire.Error}
	}
}

func (c *Client) classifyTransportError(operation string, err error) error {
	switch {
	case errors.IsTimeout(err):
		return &Error{Kind: Timeout}
	case errors.IsNetworkConnection(err):
		return &Error{Kind: NetworkConnection}
	default:
		c.logger.Error("unhandled verification transport error",
			"operation", operation,
			"error", err.Error())
		return &Error{Kind: Unknown}
	}
}
