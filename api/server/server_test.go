package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"medigateway/core/audit"
	"medigateway/core/config"
	"medigateway/core/ledger"
	"medigateway/core/model"
	"medigateway/core/validation"
)

// fakeLedger emulates the diagnosis chaincode behind the connector
// interface, including the error strings the real runtime emits.
type fakeLedger struct {
	mu        sync.Mutex
	forms     map[string]model.DiagnosisForm
	order     []string
	submitErr error
	evalErr   error

	connectErr error
	connects   int
	closes     int
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{forms: make(map[string]model.DiagnosisForm)}
}

func (f *fakeLedger) Connect() (ledger.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.connectErr != nil {
		return nil, f.connectErr
	}
	f.connects++
	return &fakeLedgerSession{ledger: f}, nil
}

type fakeLedgerSession struct {
	ledger *fakeLedger
}

func (s *fakeLedgerSession) Contract() ledger.Contract { return s.ledger }

func (s *fakeLedgerSession) Close() {
	s.ledger.mu.Lock()
	s.ledger.closes++
	s.ledger.mu.Unlock()
}

func chaincodeNotFound(formID string) error {
	return fmt.Errorf("chaincode response: diagnosis form %s does not exist", formID)
}

func (f *fakeLedger) SubmitTransaction(name string, args ...string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.submitErr != nil {
		return nil, f.submitErr
	}

	switch name {
	case "AddDiagnosisForm":
		var form model.DiagnosisForm
		if err := json.Unmarshal([]byte(args[0]), &form); err != nil {
			return nil, err
		}
		if _, ok := f.forms[form.FormID]; ok {
			return nil, fmt.Errorf("chaincode response: diagnosis form %s already exists", form.FormID)
		}
		f.forms[form.FormID] = form
		f.order = append(f.order, form.FormID)
		return []byte("tx-" + form.FormID), nil
	case "UpdateDiagnosisForm":
		if _, ok := f.forms[args[0]]; !ok {
			return nil, chaincodeNotFound(args[0])
		}
		var form model.DiagnosisForm
		if err := json.Unmarshal([]byte(args[1]), &form); err != nil {
			return nil, err
		}
		form.FormID = args[0]
		f.forms[args[0]] = form
		return []byte("tx-" + args[0]), nil
	case "UpdateDiagnosisFormSelective":
		form, ok := f.forms[args[0]]
		if !ok {
			return nil, chaincodeNotFound(args[0])
		}
		// Merge over the stored record the way the chaincode does.
		stored, _ := json.Marshal(form)
		var merged map[string]interface{}
		json.Unmarshal(stored, &merged)
		var fields map[string]interface{}
		if err := json.Unmarshal([]byte(args[1]), &fields); err != nil {
			return nil, err
		}
		for k, v := range fields {
			merged[k] = v
		}
		remarshaled, _ := json.Marshal(merged)
		var updated model.DiagnosisForm
		if err := json.Unmarshal(remarshaled, &updated); err != nil {
			return nil, err
		}
		f.forms[args[0]] = updated
		return []byte("tx-" + args[0]), nil
	}
	return nil, fmt.Errorf("unknown chaincode function %s", name)
}

func (f *fakeLedger) EvaluateTransaction(name string, args ...string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.evalErr != nil {
		return nil, f.evalErr
	}

	switch name {
	case "GetDiagnosisForm":
		form, ok := f.forms[args[0]]
		if !ok {
			return nil, chaincodeNotFound(args[0])
		}
		return json.Marshal(form)
	case "ListDiagnosisForms":
		return f.marshalForms(func(model.DiagnosisForm) bool { return true })
	case "GetFormsByDoctor":
		return f.marshalForms(func(m model.DiagnosisForm) bool { return m.DoctorID == args[0] })
	case "GetFormsByPatient":
		return f.marshalForms(func(m model.DiagnosisForm) bool { return m.PatientID == args[0] })
	case "VerifyFormSignature":
		form, ok := f.forms[args[0]]
		if !ok {
			return nil, chaincodeNotFound(args[0])
		}
		if form.Signature != "" {
			return []byte("true"), nil
		}
		return []byte("false"), nil
	case "GetFormAuditLog":
		if _, ok := f.forms[args[0]]; !ok {
			return nil, chaincodeNotFound(args[0])
		}
		return []byte(`[{"txId":"tx-` + args[0] + `","action":"CREATE"}]`), nil
	}
	return nil, fmt.Errorf("unknown chaincode function %s", name)
}

func (f *fakeLedger) marshalForms(keep func(model.DiagnosisForm) bool) ([]byte, error) {
	out := make([]model.DiagnosisForm, 0)
	for _, id := range f.order {
		if form := f.forms[id]; keep(form) {
			out = append(out, form)
		}
	}
	return json.Marshal(out)
}

func (f *fakeLedger) sessionBalance() (int, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connects, f.closes
}

func testConfig(env string) config.Config {
	return config.Config{
		ListenAddr:    ":0",
		Env:           env,
		LogLevel:      "error",
		Channel:       "medical-channel",
		ContractID:    "medical-diagnosis-chaincode",
		LedgerTimeout: config.Duration(time.Second),
		MaxBodyBytes:  1 << 20,
	}
}

func newTestServer(t *testing.T, cfg config.Config, fake *fakeLedger) http.Handler {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	validator, err := validation.NewFormValidator()
	if err != nil {
		t.Fatalf("NewFormValidator: %v", err)
	}
	srv := NewServer(cfg, log, ledger.NewManager(fake, log), validator, audit.Nop{})
	return srv.Routes()
}

func doRequest(t *testing.T, h http.Handler, method, path string, body []byte) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var decoded map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &decoded); err != nil {
		t.Fatalf("%s %s: response is not JSON: %v\n%s", method, path, err, rec.Body.String())
	}
	return rec, decoded
}

func errorField(t *testing.T, body map[string]interface{}, field string) interface{} {
	t.Helper()
	errObj, ok := body["error"].(map[string]interface{})
	if !ok {
		t.Fatalf("response has no error object: %v", body)
	}
	return errObj[field]
}

func validFormJSON(formID string) []byte {
	form := model.DiagnosisForm{
		FormID:    formID,
		DoctorID:  "DR001",
		PatientID: "PAT001",
		Diagnosis: model.Diagnosis{Primary: "Hypertension", ICDCodes: []string{"I10"}},
		Symptoms:  []string{"Headache"},
		Treatment: model.Treatment{
			Medications:     []model.Medication{{Name: "Lisinopril", Dosage: "10mg", Frequency: "Once daily"}},
			Recommendations: []string{"Exercise"},
		},
		FollowUp: model.FollowUp{Instructions: "Return in 2 weeks"},
	}
	payload, _ := json.Marshal(form)
	return payload
}

func TestIndexRoute(t *testing.T) {
	h := newTestServer(t, testConfig("development"), newFakeLedger())

	rec, body := doRequest(t, h, http.MethodGet, "/", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if body["status"] != "Running" {
		t.Errorf("status = %v", body["status"])
	}
}

func TestUnknownRoute(t *testing.T) {
	h := newTestServer(t, testConfig("development"), newFakeLedger())

	rec, body := doRequest(t, h, http.MethodGet, "/nope", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d", rec.Code)
	}
	if errorField(t, body, "message") != "Route /nope not found" {
		t.Errorf("message = %v", errorField(t, body, "message"))
	}
}

func TestRequestIDEchoed(t *testing.T) {
	h := newTestServer(t, testConfig("development"), newFakeLedger())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-Id", "req-42")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if got := rec.Header().Get("X-Request-Id"); got != "req-42" {
		t.Errorf("X-Request-Id = %q, caller's id must be echoed", got)
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Header().Get("X-Request-Id") == "" {
		t.Error("a request id must be minted when the caller sends none")
	}
}

func TestRateLimitExhaustion(t *testing.T) {
	cfg := testConfig("development")
	cfg.RateLimitRPS = 1
	cfg.RateLimitBurst = 1
	h := newTestServer(t, cfg, newFakeLedger())

	rec, _ := doRequest(t, h, http.MethodGet, "/", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("first request status = %d", rec.Code)
	}
	rec, body := doRequest(t, h, http.MethodGet, "/", nil)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("second request status = %d, want 429", rec.Code)
	}
	if errorField(t, body, "message") != "Too many requests, please try again later" {
		t.Errorf("message = %v", errorField(t, body, "message"))
	}
}

func TestSessionsAlwaysReleased(t *testing.T) {
	fake := newFakeLedger()
	h := newTestServer(t, testConfig("development"), fake)

	doRequest(t, h, http.MethodPost, "/api/diagnosis/forms", validFormJSON("FORM001"))
	doRequest(t, h, http.MethodGet, "/api/diagnosis/forms/FORM001", nil)
	doRequest(t, h, http.MethodGet, "/api/diagnosis/forms/MISSING", nil)
	doRequest(t, h, http.MethodPost, "/api/diagnosis/forms", validFormJSON("FORM001"))

	connects, closes := fake.sessionBalance()
	if connects == 0 {
		t.Fatal("no sessions opened")
	}
	if connects != closes {
		t.Errorf("connects = %d, closes = %d; every session must be released", connects, closes)
	}
}

func TestAuditTrailEmptyWithoutStore(t *testing.T) {
	h := newTestServer(t, testConfig("development"), newFakeLedger())

	rec, body := doRequest(t, h, http.MethodGet, "/api/audit", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if body["count"] != float64(0) {
		t.Errorf("count = %v, want 0", body["count"])
	}
}

func TestMetricsEndpoint(t *testing.T) {
	h := newTestServer(t, testConfig("development"), newFakeLedger())

	doRequest(t, h, http.MethodGet, "/", nil)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !bytes.Contains(rec.Body.Bytes(), []byte("gateway_http_requests_total")) {
		t.Error("request counter missing from exposition")
	}
}

func TestProductionMasksInternalErrors(t *testing.T) {
	fake := newFakeLedger()
	fake.connectErr = errors.New("grpc: certificate parse failure at /etc/fabric/tls")
	h := newTestServer(t, testConfig("production"), fake)

	rec, body := doRequest(t, h, http.MethodGet, "/api/diagnosis/forms", nil)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", rec.Code)
	}
	if errorField(t, body, "message") != "Internal server error" {
		t.Errorf("message = %v, internals must not leak", errorField(t, body, "message"))
	}
	if errorField(t, body, "stack") != nil {
		t.Error("stack must never appear in production")
	}
	if errorField(t, body, "details") != nil {
		t.Error("details must never appear in production for internal errors")
	}
}

func TestDevelopmentIncludesDiagnostics(t *testing.T) {
	fake := newFakeLedger()
	fake.connectErr = errors.New("dial tcp: connection refused")
	h := newTestServer(t, testConfig("development"), fake)

	rec, body := doRequest(t, h, http.MethodGet, "/api/diagnosis/forms", nil)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", rec.Code)
	}
	if errorField(t, body, "stack") == nil {
		t.Error("development responses carry the stack")
	}
}
