package musicbrainz

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/sydlexius/daily3albums/internal/broker"
	"github.com/sydlexius/daily3albums/internal/provider"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func testBroker(srvURL string) *broker.Broker {
	host := strings.TrimPrefix(srvURL, "http://")
	return broker.New(nil, map[string]broker.HostPolicy{
		host: {RateLimitRPS: 1000, MaxAttempts: 1, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond},
	}, testLogger())
}

const releaseGroupBody = `{
  "id": "rg-1",
  "title": "Dummy",
  "primary-type": "Album",
  "secondary-types": ["Compilation"],
  "first-release-date": "1994-08-22",
  "artist-credit": [
    {"name": "Portishead", "joinphrase": "", "artist": {"id": "a-1", "name": "Portishead"}}
  ]
}`

func TestReleaseGroupByID(t *testing.T) {
	var gotUA string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		if !strings.HasPrefix(r.URL.Path, "/release-group/rg-1") {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Write([]byte(releaseGroupBody)) //nolint:errcheck
	}))
	defer srv.Close()

	a := NewWithBaseURL(testBroker(srv.URL), "tester/1.0", testLogger(), srv.URL)
	rg, err := a.ReleaseGroupByID(context.Background(), "rg-1")
	if err != nil {
		t.Fatalf("ReleaseGroupByID: %v", err)
	}

	if rg.ID != "rg-1" || rg.Title != "Dummy" || rg.ArtistCredit != "Portishead" {
		t.Errorf("got %+v", rg)
	}
	if rg.PrimaryType != "Album" || !reflect.DeepEqual(rg.SecondaryTypes, []string{"Compilation"}) {
		t.Errorf("types = %q / %v", rg.PrimaryType, rg.SecondaryTypes)
	}
	if !reflect.DeepEqual(rg.ArtistIDs, []string{"a-1"}) {
		t.Errorf("artist ids = %v", rg.ArtistIDs)
	}
	if gotUA != "tester/1.0" {
		t.Errorf("User-Agent = %q", gotUA)
	}
}

func TestReleaseGroupByIDNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	a := NewWithBaseURL(testBroker(srv.URL), "tester/1.0", testLogger(), srv.URL)
	_, err := a.ReleaseGroupByID(context.Background(), "nope")
	if !provider.IsNotFound(err) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
}

func TestReleaseByIDFollowsGroup(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.URL.Path, "/release/rel-1") {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Write([]byte(`{"id": "rel-1", "release-group": {"id": "rg-9"}}`)) //nolint:errcheck
	}))
	defer srv.Close()

	a := NewWithBaseURL(testBroker(srv.URL), "tester/1.0", testLogger(), srv.URL)
	rel, err := a.ReleaseByID(context.Background(), "rel-1")
	if err != nil {
		t.Fatalf("ReleaseByID: %v", err)
	}
	if rel.ReleaseGroupID != "rg-9" {
		t.Errorf("release group = %q", rel.ReleaseGroupID)
	}
}

func TestSearchReleaseGroups(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/release-group" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		if q := r.URL.Query().Get("query"); !strings.Contains(q, "Dummy") {
			w.Write([]byte(`{"release-groups": []}`)) //nolint:errcheck
			return
		}
		w.Write([]byte(`{
  "release-groups": [
    {"id": "rg-1", "title": "Dummy", "primary-type": "Album",
     "artist-credit": [
       {"name": "A", "joinphrase": " & ", "artist": {"id": "a-1", "name": "A"}},
       {"name": "B", "artist": {"id": "a-2", "name": "B"}}
     ]},
    {"id": "", "title": "ghost"}
  ]
}`)) //nolint:errcheck
	}))
	defer srv.Close()

	a := NewWithBaseURL(testBroker(srv.URL), "tester/1.0", testLogger(), srv.URL)
	groups, err := a.SearchReleaseGroups(context.Background(), `releasegroup:"Dummy"`, 10)
	if err != nil {
		t.Fatalf("SearchReleaseGroups: %v", err)
	}
	if len(groups) != 1 {
		t.Fatalf("got %d groups, want 1 (id-less entries dropped)", len(groups))
	}
	if groups[0].ArtistCredit != "A & B" {
		t.Errorf("credit = %q", groups[0].ArtistCredit)
	}
	if !reflect.DeepEqual(groups[0].ArtistIDs, []string{"a-1", "a-2"}) {
		t.Errorf("artist ids = %v", groups[0].ArtistIDs)
	}

	empty, err := a.SearchReleaseGroups(context.Background(), "releasegroup:none", 10)
	if err != nil {
		t.Fatalf("empty search must not error: %v", err)
	}
	if len(empty) != 0 {
		t.Errorf("got %d groups, want 0", len(empty))
	}
}

func TestDefaultUserAgent(t *testing.T) {
	a := NewWithBaseURL(testBroker("http://x"), "", testLogger(), "http://x")
	if a.userAgent == "" || !strings.Contains(a.userAgent, "daily3albums") {
		t.Errorf("default user agent = %q", a.userAgent)
	}
}
