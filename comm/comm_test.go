package comm_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.jpl.nasa.gov/bdube/flyopt/comm"
)

func floatServer(t *testing.T, value *float64) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/axis/X/pos", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			json.NewEncoder(w).Encode(map[string]float64{"f64": *value})
		case http.MethodPost:
			f := map[string]float64{}
			if err := json.NewDecoder(r.Body).Decode(&f); err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			*value = f["f64"]
		}
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestGetAndPostFloat(t *testing.T) {
	v := 77.5
	srv := floatServer(t, &v)
	c := comm.NewClient(srv.URL)
	ctx := context.Background()
	got, err := c.GetFloat(ctx, "/axis/X/pos")
	if err != nil {
		t.Fatal(err)
	}
	if got != 77.5 {
		t.Errorf("expected 77.5, got %f", got)
	}
	if err := c.PostFloat(ctx, "/axis/X/pos", 78); err != nil {
		t.Fatal(err)
	}
	if v != 78 {
		t.Errorf("expected the server to hold 78 after the post, got %f", v)
	}
}

func TestDialStopsOnHTTPError(t *testing.T) {
	v := 0.
	srv := floatServer(t, &v)
	c := comm.NewClient(srv.URL)
	start := time.Now()
	err := c.Dial(context.Background(), "/no/such/route")
	var se comm.StatusError
	if !errors.As(err, &se) {
		t.Fatalf("expected a StatusError, got %v", err)
	}
	if se.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", se.Code)
	}
	if time.Since(start) > time.Second {
		t.Error("expected an HTTP error status to end the dial without backing off")
	}
}

func TestDialSucceeds(t *testing.T) {
	v := 1.
	srv := floatServer(t, &v)
	c := comm.NewClient(srv.URL)
	if err := c.Dial(context.Background(), "/axis/X/pos"); err != nil {
		t.Fatal(err)
	}
}

func TestPollRunsUntilDone(t *testing.T) {
	calls := 0
	err := comm.Poll(context.Background(), time.Millisecond, func() (bool, error) {
		calls++
		return calls == 3, nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if calls != 3 {
		t.Errorf("expected 3 calls, got %d", calls)
	}
}

func TestPollHonorsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := comm.Poll(ctx, time.Millisecond, func() (bool, error) { return false, nil })
	if err == nil {
		t.Error("expected a cancelled context to end polling with an error")
	}
}
