package verify

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/casedesk/intake/common/clients"
	"github.com/casedesk/intake/common/config"
	"github.com/casedesk/intake/common/logger"
)

func newVerifier(t *testing.T, verifyURL string, failOpen bool) *ScoringVerifier {
	t.Helper()
	log := logger.New("error", "json")
	httpClient := clients.NewHTTPClient(http.DefaultClient, 2*time.Second, log)
	return NewScoringVerifier(config.CaptchaConfig{
		Secret:    "test-secret",
		VerifyURL: verifyURL,
		MinScore:  0.3,
		FailOpen:  failOpen,
	}, httpClient, log)
}

func TestVerify_DisabledWithoutSecret(t *testing.T) {
	log := logger.New("error", "json")
	httpClient := clients.NewHTTPClient(http.DefaultClient, 2*time.Second, log)
	v := NewScoringVerifier(config.CaptchaConfig{Secret: ""}, httpClient, log)

	if err := v.Verify(context.Background(), ""); err != nil {
		t.Errorf("verification should be disabled without a secret, got %v", err)
	}
}

func TestVerify_MissingToken(t *testing.T) {
	v := newVerifier(t, "http://unused.invalid", false)

	if err := v.Verify(context.Background(), ""); err != ErrRejected {
		t.Errorf("expected ErrRejected for missing token, got %v", err)
	}
}

func TestVerify_Accepted(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Errorf("parse form: %v", err)
		}
		if r.PostFormValue("secret") != "test-secret" {
			t.Errorf("unexpected secret %q", r.PostFormValue("secret"))
		}
		if r.PostFormValue("response") != "tok" {
			t.Errorf("unexpected token %q", r.PostFormValue("response"))
		}
		w.Write([]byte(`{"success":true,"score":0.9}`))
	}))
	defer srv.Close()

	v := newVerifier(t, srv.URL, false)
	if err := v.Verify(context.Background(), "tok"); err != nil {
		t.Errorf("expected accepted, got %v", err)
	}
}

func TestVerify_AcceptedWithSlowBody(t *testing.T) {
	// Headers arrive immediately; the verdict body trails them. The
	// decode must still run inside the request's timeout window.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		if f, ok := w.(http.Flusher); ok {
			f.Flush()
		}
		time.Sleep(100 * time.Millisecond)
		w.Write([]byte(`{"success":true,"score":0.9}`))
	}))
	defer srv.Close()

	v := newVerifier(t, srv.URL, false)
	if err := v.Verify(context.Background(), "tok"); err != nil {
		t.Errorf("expected accepted despite late body, got %v", err)
	}
}

func TestVerify_Non200StatusFailsClosed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	v := newVerifier(t, srv.URL, false)
	if err := v.Verify(context.Background(), "tok"); err != ErrRejected {
		t.Errorf("expected fail-closed rejection on 502, got %v", err)
	}
}

func TestVerify_ScoreBelowFloor(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"success":true,"score":0.1}`))
	}))
	defer srv.Close()

	v := newVerifier(t, srv.URL, false)
	if err := v.Verify(context.Background(), "tok"); err != ErrRejected {
		t.Errorf("expected ErrRejected for low score, got %v", err)
	}
}

func TestVerify_NoScoreFieldAccepted(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"success":true}`))
	}))
	defer srv.Close()

	v := newVerifier(t, srv.URL, false)
	if err := v.Verify(context.Background(), "tok"); err != nil {
		t.Errorf("success without score should be accepted, got %v", err)
	}
}

func TestVerify_ServiceFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"success":false,"error-codes":["invalid-input-response"]}`))
	}))
	defer srv.Close()

	v := newVerifier(t, srv.URL, false)
	if err := v.Verify(context.Background(), "tok"); err != ErrRejected {
		t.Errorf("expected ErrRejected, got %v", err)
	}
}

func TestVerify_TransportFailureFailsClosed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // connection refused

	v := newVerifier(t, srv.URL, false)
	if err := v.Verify(context.Background(), "tok"); err != ErrRejected {
		t.Errorf("expected fail-closed rejection, got %v", err)
	}
}

func TestVerify_TransportFailureFailsOpenWhenConfigured(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	v := newVerifier(t, srv.URL, true)
	if err := v.Verify(context.Background(), "tok"); err != nil {
		t.Errorf("expected fail-open acceptance, got %v", err)
	}
}
