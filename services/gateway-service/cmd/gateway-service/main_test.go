package main

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestParseList(t *testing.T) {
	cases := []struct {
		raw  string
		want []string
	}{
		{"", nil},
		{"a,b", []string{"a", "b"}},
		{" a , ,b ", []string{"a", "b"}},
	}
	for _, tc := range cases {
		got := parseList(tc.raw)
		if len(got) != len(tc.want) {
			t.Fatalf("parseList(%q) = %v, want %v", tc.raw, got, tc.want)
		}
		for i := range got {
			if got[i] != tc.want[i] {
				t.Fatalf("parseList(%q) = %v, want %v", tc.raw, got, tc.want)
			}
		}
	}
}

func TestIsTruthy(t *testing.T) {
	for _, s := range []string{"1", "true", "TRUE", " yes ", "on"} {
		if !isTruthy(s) {
			t.Fatalf("isTruthy(%q) = false, want true", s)
		}
	}
	for _, s := range []string{"", "0", "false", "off", "maybe"} {
		if isTruthy(s) {
			t.Fatalf("isTruthy(%q) = true, want false", s)
		}
	}
}

func TestRegisterProxyMatchesPrefixAndSubpaths(t *testing.T) {
	mux := http.NewServeMux()
	registerProxy(mux, "/api/v1/public", http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	for _, path := range []string{"/api/v1/public", "/api/v1/public/slots"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, req)
		if rec.Code != http.StatusTeapot {
			t.Fatalf("path %q: status = %d, want %d", path, rec.Code, http.StatusTeapot)
		}
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/other", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	if rec.Code == http.StatusTeapot {
		t.Fatalf("unexpected match for /api/v1/other")
	}
}
