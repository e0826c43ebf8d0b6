// Package report drives the affected-user reporting flow: verification code
// to token, token plus key HMAC to certificate, certificate plus keys to the
// publish server. The steps are strictly sequential; each step's output is
// required input to the next.
package report

import (
	"sync"

	"github.com/pathcheck/enclient/internal/errors"
	"github.com/pathcheck/enclient/internal/keys"
)

// Session holds the short-lived values of one reporting flow. Nothing in
// here is ever persisted; restarting the flow discards it all.
type Session struct {
	mu           sync.Mutex
	exposureKeys []keys.ExposureKey
	token        string
	certificate  string
	hmacKey      string
}

// errMissingCredentials guards the submission invariant: no publish without
// a certificate/hmacKey pair in the session.
var errMissingCredentials = errors.NewPermanentf("no certificate in session")

// NewSession creates an empty reporting session.
func NewSession() *Session {
	return &Session{}
}

// SetCredentials stores the certificate/hmacKey pair obtained from the
// verification server. The pair can be set only once per session; a second
// set without a Reset in between is a flow bug.
func (s *Session) SetCredentials(certificate, hmacKey string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.certificate != "" || s.hmacKey != "" {
		return errors.NewPermanentf("session credentials already set")
	}
	s.certificate = certificate
	s.hmacKey = hmacKey
	return nil
}

// Credentials returns the certificate/hmacKey pair, and whether both are set.
func (s *Session) Credentials() (certificate, hmacKey string, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.certificate, s.hmacKey, s.certificate != "" && s.hmacKey != ""
}

// SetToken stores the verification token for this session.
func (s *Session) SetToken(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
}

// Token returns the verification token.
func (s *Session) Token() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token
}

// SetExposureKeys stores the validated diagnosis keys for this session.
func (s *Session) SetExposureKeys(exposureKeys []keys.ExposureKey) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.exposureKeys = exposureKeys
}

// ExposureKeys returns the session's diagnosis keys.
func (s *Session) ExposureKeys() []keys.ExposureKey {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.exposureKeys
}

// Reset discards all session state, allowing a fresh flow.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.exposureKeys = nil
	s.token = ""
	s.certificate = ""
	s.hmacKey = ""
}
