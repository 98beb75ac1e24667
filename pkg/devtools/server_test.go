package devtools

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/vango-dev/eventreduce/pkg/instrument"
)

type fixture struct {
	counter  *counter
	server   *Server
	registry *Registry
	http     *httptest.Server
}

func newFixture(t *testing.T, config Config) *fixture {
	t.Helper()

	c := newCounter()
	c.Doubled.Get()

	loop := startLoop(t)
	registry := NewRegistry()
	srv := NewServer(loop, registry, config)

	ctx := context.Background()
	if _, err := srv.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := loop.Do(ctx, func() error {
		registry.AddModel(c.Model)
		return nil
	}); err != nil {
		t.Fatalf("add model: %v", err)
	}

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		srv.Hub().Close()
		ts.Close()
	})
	return &fixture{counter: c, server: srv, registry: registry, http: ts}
}

func getJSON(t *testing.T, url string, v any) int {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()
	if v != nil {
		if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
			t.Fatalf("decode %s: %v", url, err)
		}
	}
	return resp.StatusCode
}

func TestServerCells(t *testing.T) {
	f := newFixture(t, Config{})

	var cells []CellInfo
	if status := getJSON(t, f.http.URL+"/api/cells", &cells); status != http.StatusOK {
		t.Fatalf("expected 200, got %d", status)
	}
	var labels []string
	for _, c := range cells {
		labels = append(labels, c.Label)
	}
	if diff := cmp.Diff([]string{"Count", "Doubled"}, labels); diff != "" {
		t.Errorf("labels mismatch (-want +got):\n%s", diff)
	}

	var cell CellInfo
	url := fmt.Sprintf("%s/api/cells/%d", f.http.URL, f.counter.Doubled.ID())
	if status := getJSON(t, url, &cell); status != http.StatusOK {
		t.Fatalf("expected 200, got %d", status)
	}
	if cell.Kind != "derivation" || cell.State != "clean" {
		t.Errorf("unexpected cell %+v", cell)
	}

	var tree []struct {
		Label   string `json:"label"`
		Sources []struct {
			Label string `json:"label"`
		} `json:"sources"`
	}
	if status := getJSON(t, url+"/sources", &tree); status != http.StatusOK {
		t.Fatalf("expected 200, got %d", status)
	}
	if len(tree) != 1 || len(tree[0].Sources) != 1 || tree[0].Sources[0].Label != "Count" {
		t.Errorf("unexpected source tree %+v", tree)
	}
}

func TestServerErrors(t *testing.T) {
	f := newFixture(t, Config{})

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		status int
	}{
		{"unknown cell", http.MethodGet, "/api/cells/999999", "", http.StatusNotFound},
		{"bad id", http.MethodGet, "/api/cells/abc", "", http.StatusBadRequest},
		{"unknown event", http.MethodPost, "/api/events/Counter.Nope", "", http.StatusNotFound},
		{"bad payload", http.MethodPost, "/api/events/Counter.Increment", `"x"`, http.StatusBadRequest},
		{"no metrics", http.MethodGet, "/metrics", "", http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := http.NewRequest(tt.method, f.http.URL+tt.path, strings.NewReader(tt.body))
			if err != nil {
				t.Fatal(err)
			}
			resp, err := http.DefaultClient.Do(req)
			if err != nil {
				t.Fatal(err)
			}
			resp.Body.Close()
			if resp.StatusCode != tt.status {
				t.Errorf("expected %d, got %d", tt.status, resp.StatusCode)
			}
		})
	}
}

func TestServerTimeoutWhileLoopBusy(t *testing.T) {
	f := newFixture(t, Config{RequestTimeout: 20 * time.Millisecond})

	release := make(chan struct{})
	t.Cleanup(func() { close(release) })
	if err := f.server.loop.Dispatch(func() { <-release }); err != nil {
		t.Fatalf("dispatch: %v", err)
	}

	for _, path := range []string{"/api/cells", "/api/events"} {
		var body errorResponse
		if status := getJSON(t, f.http.URL+path, &body); status != http.StatusServiceUnavailable {
			t.Errorf("GET %s: expected 503, got %d", path, status)
		}
		if !strings.Contains(body.Error, "deadline exceeded") {
			t.Errorf("GET %s: error = %q, want deadline exceeded", path, body.Error)
		}
	}
}

func TestServerFireEvent(t *testing.T) {
	f := newFixture(t, Config{})

	resp, err := http.Post(f.http.URL+"/api/events/Counter.Increment", "application/json", strings.NewReader("3"))
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", resp.StatusCode)
	}

	var events []EventInfo
	getJSON(t, f.http.URL+"/api/events", &events)
	if len(events) != 2 || events[0].Name != "Counter.Increment" || events[0].Fired != 1 {
		t.Errorf("unexpected events %+v", events)
	}

	var rec Recording
	getJSON(t, f.http.URL+"/api/recording", &rec)
	var kinds []ChangeKind
	for _, ch := range rec.Changes {
		kinds = append(kinds, ch.Kind)
	}
	// Fired, Doubled invalidated by Count, Count changed.
	want := []ChangeKind{ChangeFired, ChangeInvalidated, ChangeValue}
	if diff := cmp.Diff(want, kinds); diff != "" {
		t.Errorf("recorded kinds mismatch (-want +got):\n%s", diff)
	}
}

func TestServerPathPrefixAndMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	instrument.NewMetrics(instrument.WithRegistry(reg))

	f := newFixture(t, Config{PathPrefix: "/_devtools/", Gatherer: reg})

	resp, err := http.Get(f.http.URL + "/_devtools/metrics")
	if err != nil {
		t.Fatal(err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if !strings.Contains(string(body), "eventreduce_invalidations_total") {
		t.Errorf("metrics output missing engine counter:\n%s", body)
	}

	if status := getJSON(t, f.http.URL+"/api/cells", nil); status != http.StatusNotFound {
		t.Errorf("expected unprefixed route to 404, got %d", status)
	}
}

func TestServerWebsocketStream(t *testing.T) {
	f := newFixture(t, Config{})

	url := "ws" + strings.TrimPrefix(f.http.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for f.server.Hub().Clients() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("client never registered")
		}
		time.Sleep(5 * time.Millisecond)
	}

	resp, err := http.Post(f.http.URL+"/api/events/Counter.Increment", "application/json", strings.NewReader("2"))
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var got []Change
	for len(got) < 3 {
		var ch Change
		if err := conn.ReadJSON(&ch); err != nil {
			t.Fatalf("read: %v", err)
		}
		got = append(got, ch)
	}

	if got[0].Kind != ChangeFired || got[0].Label != "Counter.Increment" || got[0].Value != "2" {
		t.Errorf("unexpected first record %+v", got[0])
	}
	if got[2].Label != "Count" || got[2].Value != "2" {
		t.Errorf("unexpected count record %+v", got[2])
	}
	for i := 1; i < len(got); i++ {
		if got[i].Seq <= got[i-1].Seq {
			t.Errorf("sequence not increasing: %d then %d", got[i-1].Seq, got[i].Seq)
		}
	}
}

func TestSameOriginCheck(t *testing.T) {
	tests := []struct {
		origin string
		host   string
		want   bool
	}{
		{"", "localhost:7331", true},
		{"http://localhost:7331", "localhost:7331", true},
		{"http://evil.example", "localhost:7331", false},
		{"http://localhost:7331", "", false},
		{"://bad", "localhost:7331", false},
	}
	for _, tt := range tests {
		r := httptest.NewRequest(http.MethodGet, "/ws", nil)
		r.Host = tt.host
		if tt.origin != "" {
			r.Header.Set("Origin", tt.origin)
		}
		if got := SameOriginCheck(r); got != tt.want {
			t.Errorf("SameOriginCheck(origin=%q, host=%q) = %v, want %v", tt.origin, tt.host, got, tt.want)
		}
	}
}
