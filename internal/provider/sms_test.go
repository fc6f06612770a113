package provider

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

type scriptedSMSRenderer struct {
	body string
	err  error
}

func (r *scriptedSMSRenderer) RenderSMS(string, map[string]any) (string, error) {
	return r.body, r.err
}

func TestNormalizePhoneNumber(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{name: "local with leading zero", input: "0700000000", want: "+256700000000"},
		{name: "local nine digits", input: "700000000", want: "+256700000000"},
		{name: "already international", input: "+256700000000", want: "+256700000000"},
		{name: "with separators", input: "0700-000-000", want: "+256700000000"},
		{name: "with spaces", input: "0700 000 000", want: "+256700000000"},
		{name: "non numeric", input: "abc", wantErr: true},
		{name: "too short", input: "0700", wantErr: true},
		{name: "empty", input: "", wantErr: true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := NormalizePhoneNumber(tt.input, "256")
			if tt.wantErr {
				if err == nil {
					t.Fatalf("NormalizePhoneNumber(%q) = %q, want error", tt.input, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("NormalizePhoneNumber(%q) error = %v", tt.input, err)
			}
			if got != tt.want {
				t.Fatalf("NormalizePhoneNumber(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestSMSChannelUnavailableWithoutCredentials(t *testing.T) {
	t.Parallel()

	ch := NewSMSChannel(SMSConfig{}, &scriptedSMSRenderer{})
	if ch.Available() {
		t.Fatal("Available() = true, want false without credentials")
	}

	err := ch.Send(context.Background(), Message{Recipient: "0700000000", Body: "hi"})
	if err == nil {
		t.Fatal("Send() on unavailable channel should fail")
	}
	if !strings.Contains(err.Error(), "unavailable") {
		t.Fatalf("Send() error = %v, want unavailable", err)
	}
	if ch.Probe(context.Background()) {
		t.Fatal("Probe() = true, want false on unavailable channel")
	}
}

func TestSMSChannelSend(t *testing.T) {
	t.Parallel()

	var gotTo, gotFrom, gotBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		if !strings.HasPrefix(r.URL.Path, "/2010-04-01/Accounts/AC123/Messages.json") {
			t.Errorf("path = %s", r.URL.Path)
		}
		if user, pass, ok := r.BasicAuth(); !ok || user != "AC123" || pass != "secret" {
			t.Errorf("basic auth = %s:%s", user, pass)
		}
		if err := r.ParseForm(); err != nil {
			t.Errorf("ParseForm() error = %v", err)
		}
		gotTo = r.PostFormValue("To")
		gotFrom = r.PostFormValue("From")
		gotBody = r.PostFormValue("Body")
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	ch := NewSMSChannel(SMSConfig{
		AccountSID: "AC123",
		AuthToken:  "secret",
		FromNumber: "+256780000001",
		APIBaseURL: srv.URL,
	}, &scriptedSMSRenderer{})

	err := ch.Send(context.Background(), Message{Recipient: "0700000000", Body: "server rack overheating"})
	if err != nil {
		t.Fatalf("Send() error = %v", err)
	}

	if gotTo != "+256700000000" {
		t.Fatalf("To = %q, want +256700000000", gotTo)
	}
	if gotFrom != "+256780000001" {
		t.Fatalf("From = %q", gotFrom)
	}
	if gotBody != "server rack overheating" {
		t.Fatalf("Body = %q", gotBody)
	}
}

func TestSMSChannelSendInvalidNumberSkipsProvider(t *testing.T) {
	t.Parallel()

	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	ch := NewSMSChannel(SMSConfig{
		AccountSID: "AC123",
		AuthToken:  "secret",
		FromNumber: "+256780000001",
		APIBaseURL: srv.URL,
	}, &scriptedSMSRenderer{})

	err := ch.Send(context.Background(), Message{Recipient: "abc", Body: "hi"})
	if err == nil {
		t.Fatal("Send() with invalid number should fail")
	}
	if !strings.Contains(err.Error(), "invalid phone number") {
		t.Fatalf("Send() error = %v", err)
	}
	if called {
		t.Fatal("provider should not be called for invalid number")
	}
}

func TestSMSChannelSendProviderError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"message":"authentication failed"}`))
	}))
	defer srv.Close()

	ch := NewSMSChannel(SMSConfig{
		AccountSID: "AC123",
		AuthToken:  "wrong",
		FromNumber: "+256780000001",
		APIBaseURL: srv.URL,
	}, &scriptedSMSRenderer{})

	err := ch.Send(context.Background(), Message{Recipient: "0700000000", Body: "hi"})
	if err == nil {
		t.Fatal("Send() should surface provider error")
	}

	var channelErr *ChannelError
	if !errors.As(err, &channelErr) {
		t.Fatalf("Send() error = %T, want *ChannelError", err)
	}
	if channelErr.StatusCode != http.StatusUnauthorized {
		t.Fatalf("StatusCode = %d, want 401", channelErr.StatusCode)
	}
}

func TestSMSChannelSendTemplated(t *testing.T) {
	t.Parallel()

	var gotBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		gotBody = r.PostFormValue("Body")
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	ch := NewSMSChannel(SMSConfig{
		AccountSID: "AC123",
		AuthToken:  "secret",
		FromNumber: "+256780000001",
		APIBaseURL: srv.URL,
	}, &scriptedSMSRenderer{body: "ALERT: fire at Block C"})

	err := ch.SendTemplated(context.Background(), "0700000000", "ignored subject", "alert_notification", nil)
	if err != nil {
		t.Fatalf("SendTemplated() error = %v", err)
	}
	if gotBody != "ALERT: fire at Block C" {
		t.Fatalf("Body = %q", gotBody)
	}
}

func TestSMSChannelProbe(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/2010-04-01/Accounts/AC123.json" {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	ch := NewSMSChannel(SMSConfig{
		AccountSID: "AC123",
		AuthToken:  "secret",
		FromNumber: "+256780000001",
		APIBaseURL: srv.URL,
	}, &scriptedSMSRenderer{})

	if !ch.Probe(context.Background()) {
		t.Fatal("Probe() = false, want true")
	}
}
