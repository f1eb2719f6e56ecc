package catalog

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

var testLogger = slog.New(slog.NewJSONHandler(io.Discard, nil))

const sampleEnvelope = `{"data":[
	{"noradCatId":25544,"name":"ISS (ZARYA)","orbitCode":"{LEO}","objectType":"PAYLOAD","countryCode":"ISS","launchDate":"1998-11-20"},
	{"noradCatId":49863,"name":"FENGYUN 1C DEB","orbitCode":"{LEO3}","objectType":"DEBRIS","countryCode":"PRC","launchDate":"1999-05-10"}
],"statusCode":200,"message":"ok"}`

func newTestSource(t *testing.T, url string) *HTTPSource {
	t.Helper()
	src, err := NewHTTPSource(SourceConfig{BaseURL: url}, testLogger)
	if err != nil {
		t.Fatalf("NewHTTPSource: %v", err)
	}
	return src
}

// TestSourceSuccess verifies the request shape and envelope decoding.
func TestSourceSuccess(t *testing.T) {
	var gotPath, gotAttrs string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAttrs = r.URL.Query().Get("attributes")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(sampleEnvelope))
	}))
	defer server.Close()

	entries, err := newTestSource(t, server.URL).Fetch(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if gotPath != "/v1/satellites" {
		t.Errorf("path = %q, want /v1/satellites", gotPath)
	}
	if gotAttrs != "noradCatId,name,orbitCode,objectType,countryCode,launchDate" {
		t.Errorf("attributes = %q", gotAttrs)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].CatalogID != 25544 || entries[0].OrbitCode != "{LEO}" {
		t.Errorf("entry[0] = %+v", entries[0])
	}
	if entries[1].ObjectType != TypeDebris {
		t.Errorf("entry[1].ObjectType = %q, want DEBRIS", entries[1].ObjectType)
	}
}

// TestSourceExtraParams verifies configured params are sent alongside attributes.
func TestSourceExtraParams(t *testing.T) {
	var got string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.URL.Query().Get("country")
		w.Write([]byte(`{"data":[]}`))
	}))
	defer server.Close()

	src, err := NewHTTPSource(SourceConfig{BaseURL: server.URL, Params: map[string]string{"country": "IND"}}, testLogger)
	if err != nil {
		t.Fatal(err)
	}
	entries, err := src.Fetch(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("expected empty catalog, got %d", len(entries))
	}
	if got != "IND" {
		t.Errorf("country param = %q, want IND", got)
	}
}

// TestSourceBodyLimit verifies that responses exceeding the 50 MB limit
// return an error instead of consuming unbounded memory.
func TestSourceBodyLimit(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		chunk := strings.Repeat("A", 1024*1024)
		for i := 0; i < 52; i++ {
			if _, err := w.Write([]byte(chunk)); err != nil {
				return
			}
		}
	}))
	defer server.Close()

	_, err := newTestSource(t, server.URL).Fetch(context.Background())
	if err == nil {
		t.Fatal("expected error for oversized response, got nil")
	}
	if !strings.Contains(err.Error(), "byte limit") {
		t.Errorf("expected body limit error, got: %v", err)
	}
}

// TestSourceHTTPError verifies error handling for non-200 responses.
func TestSourceHTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	_, err := newTestSource(t, server.URL).Fetch(context.Background())
	if err == nil {
		t.Fatal("expected error for 500 response, got nil")
	}
}

// TestSourceMalformedJSON verifies decode failures surface as errors.
func TestSourceMalformedJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data": [`))
	}))
	defer server.Close()

	_, err := newTestSource(t, server.URL).Fetch(context.Background())
	if err == nil || !strings.Contains(err.Error(), "decoding") {
		t.Fatalf("expected decode error, got %v", err)
	}
}
