package server

import (
	"errors"
	"net/http"
	"testing"

	"medigateway/core/apierror"
)

func TestHealth(t *testing.T) {
	h := newTestServer(t, testConfig("development"), newFakeLedger())

	rec, body := doRequest(t, h, http.MethodGet, "/api/health", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if body["status"] != "healthy" || body["environment"] != "development" {
		t.Errorf("envelope = %v", body)
	}
	if _, ok := body["memory"].(map[string]interface{}); !ok {
		t.Error("memory figures missing")
	}
}

func TestBlockchainHealthUp(t *testing.T) {
	h := newTestServer(t, testConfig("development"), newFakeLedger())

	rec, body := doRequest(t, h, http.MethodGet, "/api/health/blockchain", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	bc, ok := body["blockchain"].(map[string]interface{})
	if !ok || bc["connected"] != true || bc["network"] != "medical-channel" {
		t.Errorf("envelope = %v", body)
	}
}

func TestBlockchainHealthDown(t *testing.T) {
	fake := newFakeLedger()
	fake.connectErr = errors.New("dial tcp: connection refused")
	h := newTestServer(t, testConfig("development"), fake)

	rec, body := doRequest(t, h, http.MethodGet, "/api/health/blockchain", nil)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
	if body["status"] != "unhealthy" || body["error"] != "Blockchain connection failed" {
		t.Errorf("envelope = %v", body)
	}
}

func TestBlockchainHealthMissingIdentity(t *testing.T) {
	fake := newFakeLedger()
	fake.connectErr = apierror.Tag(apierror.SourceIdentity,
		errors.New(`identity "appUser" does not exist in wallet; run the enrollment script first`))
	h := newTestServer(t, testConfig("development"), fake)

	rec, body := doRequest(t, h, http.MethodGet, "/api/health/blockchain", nil)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d", rec.Code)
	}
	if body["error"] != "Blockchain identity not found" {
		t.Errorf("error = %v", body["error"])
	}
}

func TestDetailedHealthDegraded(t *testing.T) {
	fake := newFakeLedger()
	fake.evalErr = errors.New("chaincode invoke: Failed to connect to peer")
	h := newTestServer(t, testConfig("development"), fake)

	rec, body := doRequest(t, h, http.MethodGet, "/api/health/detailed", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, detailed health reports degradation in-band", rec.Code)
	}
	overall := body["overall"].(map[string]interface{})
	if overall["status"] != "degraded" {
		t.Errorf("overall = %v", overall)
	}
	components := body["components"].(map[string]interface{})
	bc := components["blockchain"].(map[string]interface{})
	if bc["status"] != "unhealthy" || bc["connected"] != false {
		t.Errorf("blockchain component = %v", bc)
	}
	system := components["system"].(map[string]interface{})
	if system["status"] != "healthy" {
		t.Errorf("system component = %v", system)
	}
}

func TestDetailedHealthHealthy(t *testing.T) {
	h := newTestServer(t, testConfig("development"), newFakeLedger())

	rec, body := doRequest(t, h, http.MethodGet, "/api/health/detailed", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	overall := body["overall"].(map[string]interface{})
	if overall["status"] != "healthy" {
		t.Errorf("overall = %v", overall)
	}
}
