package integration

import (
	"bufio"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/pathcheck/enclient/internal/bridge"
	"github.com/pathcheck/enclient/internal/exposure"
	"github.com/pathcheck/enclient/internal/history"
	"github.com/pathcheck/enclient/internal/keys"
	"github.com/pathcheck/enclient/internal/observability"
	"github.com/pathcheck/enclient/internal/permissions"
	"github.com/pathcheck/enclient/internal/publish"
	"github.com/pathcheck/enclient/internal/report"
	"github.com/pathcheck/enclient/internal/signing"
	"github.com/pathcheck/enclient/internal/storage"
	"github.com/pathcheck/enclient/internal/verification"
)

// platformSim answers bridge calls over a net.Pipe connection the way the
// out-of-process platform layer would, and can push events.
type platformSim struct {
	conn      net.Conn
	exposures []exposure.RawExposure
	keys      []keys.RawExposureKey
	enStatus  [2]string
}

type rpcLine struct {
	ID     string          `json:"id"`
	Method string          `json:"method"`
	Params json.RawMessage `json:"params,omitempty"`
}

func startPlatformSim(t *testing.T, sim *platformSim) net.Conn {
	t.Helper()
	clientSide, platformSide := net.Pipe()
	sim.conn = platformSide
	t.Cleanup(func() { platformSide.Close() })

	go func() {
		scanner := bufio.NewScanner(platformSide)
		encoder := json.NewEncoder(platformSide)
		for scanner.Scan() {
			var req rpcLine
			if err := json.Unmarshal(scanner.Bytes(), &req); err != nil {
				continue
			}
			resp := map[string]interface{}{"id": req.ID}
			switch req.Method {
			case "getCurrentENPermissionsStatus":
				resp["result"] = sim.enStatus
			case "getCurrentExposures":
				resp["result"] = sim.exposures
			case "fetchLastDetectionDate":
				resp["result"] = nil
			case "fetchExposureKeys":
				resp["result"] = sim.keys
			case "isBluetoothEnabled", "isLocationEnabled", "deviceSupportsLocationlessScanning":
				resp["result"] = true
			case "requestAuthorization", "detectExposures", "storeRevisionToken":
				resp["result"] = nil
			case "getRevisionToken":
				resp["result"] = ""
			default:
				resp["error"] = "unknown method: " + req.Method
			}
			if err := encoder.Encode(resp); err != nil {
				return
			}
		}
	}()

	return clientSide
}

func (s *platformSim) pushEvent(t *testing.T, event string, payload interface{}) {
	t.Helper()
	line := map[string]interface{}{"event": event, "payload": payload}
	if err := json.NewEncoder(s.conn).Encode(line); err != nil {
		t.Fatalf("push event: %v", err)
	}
}

// verificationSim plays the verification server: code→token, then
// token+HMAC→certificate, remembering the digest for the publish check.
type verificationSim struct {
	token       string
	certificate string
	seenDigest  string
}

func (v *verificationSim) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/verify", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-API-Key") == "" {
			t.Error("missing X-API-Key header")
		}
		var body struct {
			Code string `json:"code"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Code == "" {
			w.WriteHeader(http.StatusBadRequest)
			json.NewEncoder(w).Encode(map[string]string{"error": "verification code invalid"})
			return
		}
		json.NewEncoder(w).Encode(map[string]string{
			"token":    v.token,
			"testtype": "confirmed",
			"testdate": "2020-12-01",
		})
	})
	mux.HandleFunc("/api/certificate", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Token    string `json:"token"`
			EkeyHmac string `json:"ekeyhmac"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Token != v.token {
			w.WriteHeader(http.StatusBadRequest)
			json.NewEncoder(w).Encode(map[string]string{"error": "token metadata mismatch"})
			return
		}
		v.seenDigest = body.EkeyHmac
		json.NewEncoder(w).Encode(map[string]string{"certificate": v.certificate})
	})
	return mux
}

// publishSim plays the key server, recomputing the HMAC over the submitted
// keys with the submitted secret and comparing it against the digest the
// verification server certified.
type publishSim struct {
	verification  *verificationSim
	revisionToken string

	gotRevisionToken string
	inserted         int
}

func (p *publishSim) handler(t *testing.T) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			TemporaryExposureKeys []keys.ExposureKey `json:"temporaryExposureKeys"`
			Regions               []string           `json:"regions"`
			AppPackageName        string             `json:"appPackageName"`
			VerificationPayload   string             `json:"verificationPayload"`
			HmacKey               string             `json:"hmackey"`
			Padding               *string            `json:"padding"`
			RevisionToken         string             `json:"revisionToken"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("malformed publish body: %v", err)
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		if body.Padding == nil {
			t.Error("expected padding field present")
		}
		p.gotRevisionToken = body.RevisionToken

		secret, err := base64.StdEncoding.DecodeString(body.HmacKey)
		if err != nil {
			t.Errorf("hmackey not base64: %v", err)
		}
		serialized := make([]string, 0, len(body.TemporaryExposureKeys))
		for _, k := range body.TemporaryExposureKeys {
			serialized = append(serialized, fmt.Sprintf("%s.%d.%d.%d",
				k.Key, k.RollingStartNumber, k.RollingPeriod, k.TransmissionRisk))
		}
		sort.Strings(serialized)
		mac := hmac.New(sha256.New, secret)
		mac.Write([]byte(strings.Join(serialized, ",")))
		expected := base64.StdEncoding.EncodeToString(mac.Sum(nil))
		if expected != p.verification.seenDigest {
			t.Errorf("server-side HMAC mismatch: certified %q, recomputed %q",
				p.verification.seenDigest, expected)
		}

		p.inserted = len(body.TemporaryExposureKeys)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"revisionToken":     p.revisionToken,
			"insertedExposures": p.inserted,
		})
	})
}

func TestReportFlowEndToEnd(t *testing.T) {
	sim := &platformSim{
		enStatus: [2]string{"AUTHORIZED", "ENABLED"},
		keys: []keys.RawExposureKey{
			{Key: "a9fYle0ZDXtGwwIWdVdcbg==", RollingPeriod: 144, RollingStartNumber: 2650847, TransmissionRisk: 4},
			{Key: "Zz1K8w0m9XplQ1sVbkxTTw==", RollingPeriod: 144, RollingStartNumber: 2650991, TransmissionRisk: 4},
		},
	}
	conn := startPlatformSim(t, sim)

	logger := observability.NewLogger("error")
	hub := bridge.NewHub()
	native := bridge.NewSocketBridge(conn, hub, logger)
	defer native.Close()

	vsim := &verificationSim{token: "token-abc", certificate: "cert-xyz"}
	verifySrv := httptest.NewServer(vsim.handler(t))
	defer verifySrv.Close()

	psim := &publishSim{verification: vsim, revisionToken: "rev-1"}
	publishSrv := httptest.NewServer(psim.handler(t))
	defer publishSrv.Close()

	kv := storage.NewMemoryStore()
	pipeline := report.NewPipeline(
		native,
		verification.NewClient(verifySrv.URL, "test-api-key", 5*time.Second, logger),
		signing.New(),
		publish.NewClient(publishSrv.URL, 5*time.Second, logger),
		kv,
		"org.pathcheck.test",
		[]string{"US"},
		logger,
	)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	result, err := pipeline.Execute(ctx, "12345678")
	if err != nil {
		t.Fatalf("report flow failed: %v", err)
	}
	if result.Kind != publish.Success {
		t.Fatalf("expected success, got %v", result.Kind)
	}
	if psim.gotRevisionToken != "" {
		t.Errorf("expected empty revision token on first submission, got %q", psim.gotRevisionToken)
	}

	token, err := storage.GetRevisionToken(ctx, kv)
	if err != nil || token != "rev-1" {
		t.Fatalf("expected revision token persisted, got %q err %v", token, err)
	}

	// Second submission echoes the persisted token.
	psim.revisionToken = "rev-2"
	if _, err := pipeline.Execute(ctx, "12345678"); err != nil {
		t.Fatalf("second report flow failed: %v", err)
	}
	if psim.gotRevisionToken != "rev-1" {
		t.Errorf("expected persisted token echoed, got %q", psim.gotRevisionToken)
	}
}

func TestExposureAndPermissionFlowOverSocket(t *testing.T) {
	sim := &platformSim{
		enStatus: [2]string{"AUTHORIZED", "ENABLED"},
	}
	conn := startPlatformSim(t, sim)

	logger := observability.NewLogger("error")
	hub := bridge.NewHub()
	native := bridge.NewSocketBridge(conn, hub, logger)
	defer native.Close()

	kv := storage.NewMemoryStore()
	historyStore := history.NewStore(native, hub, kv, logger)
	reconciler := permissions.NewReconciler(native, hub, permissions.PlatformAndroid, logger)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	historyStore.Start(ctx)
	defer historyStore.Close()
	reconciler.Start(ctx)
	defer reconciler.Close()

	if reconciler.Status() != permissions.ENEnabled {
		t.Fatalf("expected ENABLED from platform, got %v", reconciler.Status())
	}
	if !reconciler.ExposureDetectionActive() {
		t.Fatal("expected detection active")
	}

	// Platform pushes a new exposure set.
	sim.pushEvent(t, "onExposureRecordUpdated", []map[string]interface{}{
		{"id": "e1", "date": 1607925600000, "weightedDurationSum": 1800.0},
	})

	deadline := time.Now().Add(2 * time.Second)
	for len(historyStore.Exposures()) == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}

	exposures := historyStore.Exposures()
	if len(exposures) != 1 {
		t.Fatalf("expected pushed exposure cached, got %d", len(exposures))
	}
	if !historyStore.UserHasNewExposure(ctx) {
		t.Error("expected new-exposure flag set")
	}

	historyStore.ObserveExposures(ctx)
	if historyStore.UserHasNewExposure(ctx) {
		t.Error("expected flag cleared after observing")
	}

	// Platform pushes EN disablement; detection goes inactive.
	sim.pushEvent(t, "onEnabledStatusUpdated", []string{"AUTHORIZED", "DISABLED"})
	deadline = time.Now().Add(2 * time.Second)
	for reconciler.Status() != permissions.ENDisabled && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if reconciler.Status() != permissions.ENDisabled {
		t.Fatalf("expected DISABLED after push, got %v", reconciler.Status())
	}
	if reconciler.ExposureDetectionActive() {
		t.Error("expected detection inactive after disablement")
	}
}
