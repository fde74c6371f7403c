package main

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"slices"
	"testing"

	"github.com/user/product-crawler/internal/config"
	"github.com/user/product-crawler/internal/domain"
	"github.com/user/product-crawler/internal/testutil"
)

func TestNewRootCmd(t *testing.T) {
	t.Parallel()

	cmd := NewRootCmd()
	if cmd.Use != "crawler" {
		t.Errorf("unexpected Use: got %q", cmd.Use)
	}
	for _, name := range []string{"query", "crawl"} {
		sub, _, err := cmd.Find([]string{name})
		if err != nil || sub.Name() != name {
			t.Errorf("expected subcommand %q, got %v (%v)", name, sub, err)
		}
	}
	for _, flag := range []string{"config", "query", "start-urls", "concurrency", "crawl-name", "legacy-trailing-comma", "redis-addr", "postgres-url"} {
		if cmd.PersistentFlags().Lookup(flag) == nil {
			t.Errorf("expected persistent flag %q", flag)
		}
	}
}

func TestInvalidConfigIsRejected(t *testing.T) {
	cmd := NewRootCmd()
	cmd.SetArgs([]string{"crawl", "--concurrency", "0", "--output-dir", t.TempDir()})
	err := cmd.Execute()
	if !errors.Is(err, config.ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig, got %v", err)
	}
}

func TestQueryRunWritesOutput(t *testing.T) {
	pages := map[string]string{
		"/catalog/": testutil.SearchPage{ProductLinks: []string{"/a.html", "/b.html", "/c.html"}}.HTML(),
		"/a.html":   testutil.ProductPage{Title: "Alpha", PriceParts: []string{"Rs.", "10"}}.HTML(),
		"/b.html":   testutil.ProductPage{Title: "Beta", PriceParts: []string{"Rs.", "20"}}.HTML(),
		"/c.html":   testutil.ProductPage{Title: "Alpha", PriceParts: []string{"Rs.", "30"}}.HTML(),
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, ok := pages[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)

	dir := t.TempDir()
	cmd := NewRootCmd()
	cmd.SetArgs([]string{
		"query",
		"--start-urls", srv.URL + "/catalog/?q=laptops",
		"--allowed-domains", "127.0.0.1",
		"--crawl-name", "test",
		"--output-dir", dir,
		"--log-level", "error",
	})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, "products_test.json"))
	if err != nil {
		t.Fatal(err)
	}
	var records []domain.Product
	if err := json.Unmarshal(data, &records); err != nil {
		t.Fatalf("output is not valid json: %v\n%s", err, data)
	}
	var titles []string
	for _, r := range records {
		titles = append(titles, r.Title)
	}
	slices.Sort(titles)
	if want := []string{"Alpha", "Beta"}; !slices.Equal(titles, want) {
		t.Errorf("expected titles %v, got %v", want, titles)
	}
}
