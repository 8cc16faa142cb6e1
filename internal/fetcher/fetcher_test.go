package fetcher

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestHTTPFetchSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, `<html><head><title>ok</title></head></html>`)
	}))
	defer server.Close()

	f := NewHTTP("seo-checker-test", 5*time.Second)
	defer f.Close()

	result := f.Fetch(context.Background(), server.URL)
	assert.True(t, result.Success)
	assert.Equal(t, http.StatusOK, result.StatusCode)
	assert.Contains(t, string(result.HTML), "<title>ok</title>")
	assert.Empty(t, result.Error)
}

func TestHTTPFetchServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer server.Close()

	f := NewHTTP("seo-checker-test", 5*time.Second)
	defer f.Close()

	result := f.Fetch(context.Background(), server.URL)
	assert.False(t, result.Success)
	assert.Equal(t, http.StatusInternalServerError, result.StatusCode)
	assert.Equal(t, "HTTP 500", result.Error)
}

func TestHTTPFetchConnectionRefused(t *testing.T) {
	f := NewHTTP("seo-checker-test", 2*time.Second)
	defer f.Close()

	result := f.Fetch(context.Background(), "http://127.0.0.1:1/never")
	assert.False(t, result.Success)
	assert.NotEmpty(t, result.Error)
}

func TestHTTPFetchFollowsRedirects(t *testing.T) {
	mux := http.NewServeMux()
	server := httptest.NewServer(mux)
	defer server.Close()

	mux.HandleFunc("/old", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/new", http.StatusMovedPermanently)
	})
	mux.HandleFunc("/new", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><head><title>moved</title></head></html>`)
	})

	f := NewHTTP("seo-checker-test", 5*time.Second)
	defer f.Close()

	result := f.Fetch(context.Background(), server.URL+"/old")
	assert.True(t, result.Success)
	assert.Contains(t, string(result.HTML), "moved")
}
