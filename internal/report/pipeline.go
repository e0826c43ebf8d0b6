package report

import (
	"context"
	"log/slog"
	"time"

	"github.com/pathcheck/enclient/internal/keys"
	"github.com/pathcheck/enclient/internal/observability"
	"github.com/pathcheck/enclient/internal/publish"
	"github.com/pathcheck/enclient/internal/storage"
	"github.com/pathcheck/enclient/internal/verification"
)

// keySource is the slice of the platform bridge the pipeline needs.
type keySource interface {
	FetchExposureKeys(ctx context.Context) ([]keys.RawExposureKey, error)
}

// verifier matches verification.Client.
type verifier interface {
	PostCode(ctx context.Context, code string) (*verification.CodeResponse, error)
	PostTokenAndHmac(ctx context.Context, token, hmacDigest string) (*verification.CertificateResponse, error)
}

// signer matches signing.Signer.
type signer interface {
	CalculateHmac(exposureKeys []keys.ExposureKey) (signature string, hmacKey string, err error)
}

// publisher matches publish.Client.
type publisher interface {
	PostDiagnosisKeys(ctx context.Context, exposureKeys []keys.ExposureKey, regionCodes []string,
		certificate, hmacKey, appPackageName, revisionToken string) (*publish.Result, error)
}

// Pipeline runs the reporting flow end to end. A pipeline carries one
// Session at a time; Reset starts the flow over.
type Pipeline struct {
	native         keySource
	verifier       verifier
	signer         signer
	publisher      publisher
	kv             storage.Store
	appPackageName string
	regionCodes    []string
	logger         *slog.Logger

	session *Session
}

// NewPipeline wires the reporting flow.
func NewPipeline(
	native keySource,
	verifier verifier,
	signer signer,
	publisher publisher,
	kv storage.Store,
	appPackageName string,
	regionCodes []string,
	logger *slog.Logger,
) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		native:         native,
		verifier:       verifier,
		signer:         signer,
		publisher:      publisher,
		kv:             kv,
		appPackageName: appPackageName,
		regionCodes:    regionCodes,
		logger:         logger,
		session:        NewSession(),
	}
}

// Session exposes the current session, mostly for UI state.
func (p *Pipeline) Session() *Session {
	return p.session
}

// Reset discards the in-flight session so the user can start over.
func (p *Pipeline) Reset() {
	p.session.Reset()
}

// Execute runs the flow for the given verification code. If a previous
// Execute already earned a certificate but failed at the publish step, the
// stored credentials are reused and the verification steps are skipped.
// On success the server's revision token is persisted before returning.
func (p *Pipeline) Execute(ctx context.Context, code string) (*publish.Result, error) {
	metrics := observability.GetMetrics()
	metrics.ReportSessions.Inc()

	if _, _, ok := p.session.Credentials(); !ok {
		if err := p.earnCertificate(ctx, code); err != nil {
			return nil, err
		}
	} else {
		p.logger.Info("reusing session certificate for resubmission")
	}

	return p.submit(ctx)
}

// earnCertificate runs code→token, key fetch, signing, and token+HMAC→
// certificate, leaving the credentials in the session.
func (p *Pipeline) earnCertificate(ctx context.Context, code string) error {
	metrics := observability.GetMetrics()

	codeResp, err := p.verifier.PostCode(ctx, code)
	if err != nil {
		metrics.ReportFailures.WithLabelValues("verify_code").Inc()
		metrics.VerificationRequests.WithLabelValues("code", "failure").Inc()
		return err
	}
	metrics.VerificationRequests.WithLabelValues("code", "success").Inc()
	p.session.SetToken(codeResp.Token)

	rawKeys, err := p.native.FetchExposureKeys(ctx)
	if err != nil {
		metrics.ReportFailures.WithLabelValues("fetch_keys").Inc()
		return err
	}
	exposureKeys, err := keys.ParseRawKeys(rawKeys)
	if err != nil {
		metrics.ReportFailures.WithLabelValues("fetch_keys").Inc()
		return err
	}
	p.session.SetExposureKeys(exposureKeys)

	hmacDigest, hmacKey, err := p.signer.CalculateHmac(exposureKeys)
	if err != nil {
		metrics.ReportFailures.WithLabelValues("sign").Inc()
		return err
	}

	certResp, err := p.verifier.PostTokenAndHmac(ctx, p.session.Token(), hmacDigest)
	if err != nil {
		metrics.ReportFailures.WithLabelValues("certificate").Inc()
		metrics.VerificationRequests.WithLabelValues("certificate", "failure").Inc()
		return err
	}
	metrics.VerificationRequests.WithLabelValues("certificate", "success").Inc()

	return p.session.SetCredentials(certResp.Certificate, hmacKey)
}

// submit publishes the session's keys with its certificate. The revision
// token persisted from the previous successful submission is echoed so the
// server can supersede that key set.
func (p *Pipeline) submit(ctx context.Context) (*publish.Result, error) {
	metrics := observability.GetMetrics()

	certificate, hmacKey, ok := p.session.Credentials()
	if !ok {
		metrics.ReportFailures.WithLabelValues("publish").Inc()
		return nil, errMissingCredentials
	}

	revisionToken, err := storage.GetRevisionToken(ctx, p.kv)
	if err != nil {
		metrics.ReportFailures.WithLabelValues("publish").Inc()
		return nil, err
	}

	start := time.Now()
	result, err := p.publisher.PostDiagnosisKeys(ctx,
		p.session.ExposureKeys(), p.regionCodes, certificate, hmacKey,
		p.appPackageName, revisionToken)
	metrics.PublishDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.PublishOutcomes.WithLabelValues("failure").Inc()
		metrics.ReportFailures.WithLabelValues("publish").Inc()
		return nil, err
	}

	switch result.Kind {
	case publish.Success:
		metrics.PublishOutcomes.WithLabelValues("success").Inc()
		if result.RevisionToken != "" {
			if err := storage.SetRevisionToken(ctx, p.kv, result.RevisionToken); err != nil {
				metrics.ReportFailures.WithLabelValues("persist_token").Inc()
				return nil, err
			}
		}
	case publish.NoOp:
		metrics.PublishOutcomes.WithLabelValues("noop").Inc()
		p.logger.Info("diagnosis key submission was a no-op",
			"reason", string(result.Reason),
			"newKeysInserted", result.NewKeysInserted)
	}

	// The certificate is consumed by the settled submission.
	p.session.Reset()
	return result, nil
}
