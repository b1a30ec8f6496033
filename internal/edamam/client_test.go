package edamam

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

const riceResponse = `{
  "calories": 206,
  "totalWeight": 158,
  "totalNutrients": {
    "CHOCDF": {"label": "Carbs", "quantity": 44.5, "unit": "g"},
    "FIBTG": {"label": "Fiber", "quantity": 0.6, "unit": "g"},
    "PROCNT": {"label": "Protein", "quantity": 4.3, "unit": "g"},
    "FAT": {"label": "Fat", "quantity": 0.4, "unit": "g"}
  }
}`

func TestNewClient(t *testing.T) {
	client := NewClient("https://test.example.com/", "id", "key", 5*time.Second)

	if client.baseURL != "https://test.example.com" {
		t.Errorf("baseURL = %s, should not have trailing slash", client.baseURL)
	}
	if client.httpClient.Timeout != 5*time.Second {
		t.Errorf("Timeout = %v, want 5s", client.httpClient.Timeout)
	}
}

func TestNewClient_DefaultBaseURL(t *testing.T) {
	client := NewClient("", "id", "key", 0)

	if client.baseURL != DefaultBaseURL {
		t.Errorf("baseURL = %s, want %s", client.baseURL, DefaultBaseURL)
	}
}

func TestClient_Lookup(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/nutrition-data" {
			t.Errorf("Unexpected path: %s", r.URL.Path)
		}
		q := r.URL.Query()
		if q.Get("app_id") != "id" || q.Get("app_key") != "key" {
			t.Errorf("credentials = %s/%s, want id/key", q.Get("app_id"), q.Get("app_key"))
		}
		if q.Get("ingr") != "1 cup rice" {
			t.Errorf("ingr = %q, want %q", q.Get("ingr"), "1 cup rice")
		}

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(riceResponse))
	}))
	defer server.Close()

	client := NewClient(server.URL, "id", "key", 5*time.Second)
	facts, err := client.Lookup(context.Background(), "1 cup rice")
	if err != nil {
		t.Fatalf("Lookup() error = %v", err)
	}

	if facts.Calories != 206 {
		t.Errorf("Calories = %v, want 206", facts.Calories)
	}
	if facts.Quantity("CHOCDF") != 44.5 {
		t.Errorf("CHOCDF = %v, want 44.5", facts.Quantity("CHOCDF"))
	}
	if facts.Quantity("FIBTG") != 0.6 {
		t.Errorf("FIBTG = %v, want 0.6", facts.Quantity("FIBTG"))
	}
	if !facts.HasData() {
		t.Error("HasData() = false, want true")
	}
}

func TestClient_Lookup_APIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"status":"error","message":"invalid key"}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, "id", "bad", 5*time.Second)
	_, err := client.Lookup(context.Background(), "1 apple")
	if err == nil {
		t.Fatal("Expected error for 401 response")
	}

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("error = %T, want *APIError", err)
	}
	if apiErr.StatusCode != http.StatusUnauthorized {
		t.Errorf("StatusCode = %d, want 401", apiErr.StatusCode)
	}
	if !strings.Contains(apiErr.Body, "invalid key") {
		t.Errorf("Body = %q, want it to contain the server message", apiErr.Body)
	}
}

func TestClient_Lookup_ZeroCalories(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"calories": 0, "totalWeight": 0, "totalNutrients": {}}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, "id", "key", 5*time.Second)
	facts, err := client.Lookup(context.Background(), "xyzzy")
	if err != nil {
		t.Fatalf("Lookup() error = %v", err)
	}
	if facts.HasData() {
		t.Error("HasData() = true for a zero-calorie response")
	}
}

func TestClient_Lookup_InvalidJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`not json`))
	}))
	defer server.Close()

	client := NewClient(server.URL, "id", "key", 5*time.Second)
	if _, err := client.Lookup(context.Background(), "1 apple"); err == nil {
		t.Error("Expected error for invalid JSON")
	}
}

func TestClient_Lookup_ContextTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
		_, _ = w.Write([]byte(riceResponse))
	}))
	defer server.Close()

	client := NewClient(server.URL, "id", "key", 0)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := client.Lookup(ctx, "1 cup rice")
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Lookup() error = %v, want deadline exceeded", err)
	}
}

func TestClient_TestConnection(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(riceResponse))
	}))
	defer server.Close()

	client := NewClient(server.URL, "id", "key", 5*time.Second)
	if err := client.TestConnection(context.Background()); err != nil {
		t.Errorf("TestConnection() error = %v", err)
	}
}
