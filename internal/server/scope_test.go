package server

import (
	"testing"

	"github.com/learning-journal/journal-cache/internal/config"
)

func TestNewScopeStripsOriginPath(t *testing.T) {
	scope, err := NewScope(&config.Config{
		Global: config.GlobalConfig{ListenPort: 5000},
		Worker: config.WorkerConfig{Origin: "https://journal.example.com/", CachePrefix: "learning-journal-", CacheVersion: "v3"},
	})
	if err != nil {
		t.Fatalf("NewScope failed: %v", err)
	}
	if scope.Origin.String() != "https://journal.example.com" {
		t.Fatalf("unexpected origin %s", scope.Origin)
	}
	if scope.CacheName != "learning-journal-v3" {
		t.Fatalf("unexpected cache name %s", scope.CacheName)
	}
}

func TestNewScopeRejectsRelativeOrigin(t *testing.T) {
	if _, err := NewScope(nil); err == nil {
		t.Fatalf("nil config should fail")
	}
	if _, err := NewScope(&config.Config{Worker: config.WorkerConfig{Origin: "journal.local"}}); err == nil {
		t.Fatalf("relative origin should fail")
	}
}

func TestScopeResolve(t *testing.T) {
	scope := testScope(t)
	testCases := []struct {
		target  string
		want    string
		wantErr bool
	}{
		{"/reflections?page=2", "http://journal.local:5001/reflections?page=2", false},
		{"", "http://journal.local:5001/", false},
		{"https://cdn.example.com/lib.js", "https://cdn.example.com/lib.js", false},
		{"HTTP://journal.local:5001/api/projects", "http://journal.local:5001/api/projects", false},
		{"*", "", true},
		{"http:///nohost", "", true},
	}
	for _, tc := range testCases {
		got, err := scope.Resolve(tc.target)
		if tc.wantErr {
			if err == nil {
				t.Fatalf("expected error for %q", tc.target)
			}
			continue
		}
		if err != nil {
			t.Fatalf("unexpected error for %q: %v", tc.target, err)
		}
		if got.String() != tc.want {
			t.Fatalf("resolve %q: want %s, got %s", tc.target, tc.want, got)
		}
	}
}
