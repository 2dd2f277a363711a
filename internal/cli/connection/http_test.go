package connection

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
)

func writeEnvelope(w http.ResponseWriter, status int, code string, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]any{
		"code":       code,
		"message":    "msg " + code,
		"request_id": "req-1",
		"data":       data,
	})
}

func TestNewHTTPClient(t *testing.T) {
	tests := []struct {
		server string
		want   string
	}{
		{"http://localhost:8686", "http://localhost:8686"},
		{"https://panel.example.com/", "https://panel.example.com"},
		{"127.0.0.1:8686", "http://127.0.0.1:8686"},
		{"unix:///tmp/catpanel.sock", "http://catpanel"},
	}

	for _, tt := range tests {
		t.Run(tt.server, func(t *testing.T) {
			if got := NewHTTPClient(tt.server).BaseURL(); got != tt.want {
				t.Errorf("BaseURL() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestHTTPClient_Get(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet || r.URL.Path != "/api/v1/cache" {
			t.Errorf("request = %s %s", r.Method, r.URL.Path)
		}
		if !strings.HasPrefix(r.Header.Get("User-Agent"), "cp/") {
			t.Errorf("User-Agent = %q", r.Header.Get("User-Agent"))
		}
		writeEnvelope(w, http.StatusOK, "OK", map[string]any{"backend": "bolt", "entries": 3})
	}))
	defer srv.Close()

	var got struct {
		Backend string `json:"backend"`
		Entries int    `json:"entries"`
	}
	if err := NewHTTPClient(srv.URL).Get(context.Background(), "/api/v1/cache", &got); err != nil {
		t.Fatal(err)
	}
	if got.Backend != "bolt" || got.Entries != 3 {
		t.Errorf("data = %+v", got)
	}
}

func TestHTTPClient_PostAndDelete(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPost:
			if r.Header.Get("Content-Type") != "application/json" {
				t.Errorf("Content-Type = %q", r.Header.Get("Content-Type"))
			}
			body, _ := io.ReadAll(r.Body)
			writeEnvelope(w, http.StatusOK, "OK", map[string]string{"echo": string(body)})
		case http.MethodDelete:
			writeEnvelope(w, http.StatusOK, "OK", map[string]string{"removed": r.URL.Query().Get("key")})
		}
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL)
	var got map[string]string

	if err := c.Post(context.Background(), "/api/v1/config", map[string]bool{"persist": true}, &got); err != nil {
		t.Fatal(err)
	}
	if got["echo"] != `{"persist":true}` {
		t.Errorf("echo = %q", got["echo"])
	}

	if err := c.Delete(context.Background(), "/api/v1/cache/keys?key=/x.ts", &got); err != nil {
		t.Fatal(err)
	}
	if got["removed"] != "/x.ts" {
		t.Errorf("removed = %q", got["removed"])
	}
}

func TestHTTPClient_Errors(t *testing.T) {
	tests := []struct {
		name     string
		handler  http.HandlerFunc
		wantCode string
		status   int
	}{
		{
			name: "envelope",
			handler: func(w http.ResponseWriter, r *http.Request) {
				writeEnvelope(w, http.StatusNotFound, "CP-LOAD-4040", nil)
			},
			wantCode: "CP-LOAD-4040",
			status:   http.StatusNotFound,
		},
		{
			name: "plain text",
			handler: func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "gateway exploded", http.StatusBadGateway)
			},
			status: http.StatusBadGateway,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			err := NewHTTPClient(srv.URL).Get(context.Background(), "/", nil)
			var apiErr *APIError
			if !errors.As(err, &apiErr) {
				t.Fatalf("error = %v, want *APIError", err)
			}
			if apiErr.StatusCode != tt.status || apiErr.Code != tt.wantCode {
				t.Errorf("APIError = %+v", apiErr)
			}
			if tt.wantCode != "" && !strings.Contains(err.Error(), tt.wantCode) {
				t.Errorf("Error() = %q", err.Error())
			}
		})
	}
}

func TestHTTPClient_BadBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("not json"))
	}))
	defer srv.Close()

	if err := NewHTTPClient(srv.URL).Get(context.Background(), "/", nil); err == nil {
		t.Error("expected parse error")
	}
}

func TestHTTPClient_UnixSocket(t *testing.T) {
	sock := filepath.Join(t.TempDir(), "cp.sock")
	ln, err := net.Listen("unix", sock)
	if err != nil {
		t.Skipf("unix sockets unavailable: %v", err)
	}
	srv := &http.Server{Handler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(w, http.StatusOK, "OK", map[string]string{"status": "healthy"})
	})}
	go srv.Serve(ln)
	defer srv.Close()

	var got map[string]string
	if err := NewHTTPClient("unix://"+sock).Get(context.Background(), "/healthz", &got); err != nil {
		t.Fatal(err)
	}
	if got["status"] != "healthy" {
		t.Errorf("status = %q", got["status"])
	}
}
