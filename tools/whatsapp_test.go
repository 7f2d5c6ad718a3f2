package tools

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestSendTextReturnsWamid(t *testing.T) {
	var gotPath, gotAuth string
	var gotBody map[string]any

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		_ = json.NewDecoder(r.Body).Decode(&gotBody)

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"messages": []map[string]any{{"id": "wamid.ABC"}},
		})
	}))
	defer srv.Close()

	client := WhatsAppClient{
		AccessToken:   "token-123",
		ApiVersion:    "v20.0",
		PhoneNumberID: "550001",
		BaseURL:       srv.URL,
	}

	wamid, err := client.SendText(context.Background(), "18095551234", "olá")
	if err != nil {
		t.Fatalf("SendText() error: %v", err)
	}
	if wamid != "wamid.ABC" {
		t.Errorf("wamid = %q, want wamid.ABC", wamid)
	}

	if gotPath != "/v20.0/550001/messages" {
		t.Errorf("path = %q, want /v20.0/550001/messages", gotPath)
	}
	if gotAuth != "Bearer token-123" {
		t.Errorf("Authorization = %q, want Bearer token-123", gotAuth)
	}
	if gotBody["to"] != "18095551234" || gotBody["messaging_product"] != "whatsapp" {
		t.Errorf("body = %v, want whatsapp text payload", gotBody)
	}
}

func TestSendTextAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"message":"Invalid OAuth access token"}}`))
	}))
	defer srv.Close()

	client := WhatsAppClient{AccessToken: "bad", PhoneNumberID: "550001", BaseURL: srv.URL}

	_, err := client.SendText(context.Background(), "18095551234", "olá")
	if err == nil {
		t.Fatal("SendText() error = nil, want API error")
	}
	var apiErr WhatsAppAPIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("error type = %T, want WhatsAppAPIError", err)
	}
	if apiErr.StatusCode != http.StatusUnauthorized {
		t.Errorf("StatusCode = %d, want 401", apiErr.StatusCode)
	}
}

func TestSendTextMissingWamid(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"messages":[]}`))
	}))
	defer srv.Close()

	client := WhatsAppClient{AccessToken: "token", PhoneNumberID: "550001", BaseURL: srv.URL}

	_, err := client.SendText(context.Background(), "18095551234", "olá")
	if err == nil {
		t.Fatal("SendText() error = nil, want missing wamid error")
	}
}
