package motion_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi"
	"github.jpl.nasa.gov/bdube/flyopt/comm"
	"github.jpl.nasa.gov/bdube/flyopt/fault"
	httpmotion "github.jpl.nasa.gov/bdube/flyopt/generichttp/motion"
	"github.jpl.nasa.gov/bdube/flyopt/motion"
	"github.jpl.nasa.gov/bdube/flyopt/util"
)

func newServer(t *testing.T) (*httptest.Server, *motion.Mock) {
	t.Helper()
	lim := motion.Limits{
		Travel:   util.Limiter{Min: 70, Max: 80},
		Velocity: util.Limiter{Min: 0, Max: 5}}
	m := motion.NewMock("x", lim, 75)
	m.Period = 100 * time.Microsecond
	m.Speedup = 100
	bank := httpmotion.NewBank(m)
	ctl := httpmotion.NewHTTPMotionController(bank)
	lm := &httpmotion.LimitMiddleware{Limits: bank.Limits()}
	lm.Inject(ctl)
	r := chi.NewRouter()
	r.Use(lm.Check)
	ctl.RT().Bind(r)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv, m
}

func TestRoutesAreBound(t *testing.T) {
	srv, _ := newServer(t)
	c := comm.NewClient(srv.URL)
	ctx := context.Background()
	pos, err := c.GetFloat(ctx, "/axis/x/pos")
	if err != nil {
		t.Fatal(err)
	}
	if pos != 75 {
		t.Errorf("expected 75, got %f", pos)
	}
	if err = c.PostFloat(ctx, "/axis/x/velocity", 2); err != nil {
		t.Fatal(err)
	}
	vel, err := c.GetFloat(ctx, "/axis/x/velocity")
	if err != nil {
		t.Fatal(err)
	}
	if vel != 2 {
		t.Errorf("expected velocity 2, got %f", vel)
	}
	inpos, err := c.GetBool(ctx, "/axis/x/inposition")
	if err != nil {
		t.Fatal(err)
	}
	if !inpos {
		t.Error("expected a resting axis to be in position")
	}
}

func TestUnknownAxisIs404(t *testing.T) {
	srv, _ := newServer(t)
	c := comm.NewClient(srv.URL)
	_, err := c.GetFloat(context.Background(), "/axis/q/pos")
	var se comm.StatusError
	if !errors.As(err, &se) || se.Code != http.StatusNotFound {
		t.Errorf("expected a 404, got %v", err)
	}
}

func TestLimitMiddlewareRefusesMove(t *testing.T) {
	srv, m := newServer(t)
	c := comm.NewClient(srv.URL)
	err := c.PostFloat(context.Background(), "/axis/x/pos", 81)
	var se comm.StatusError
	if !errors.As(err, &se) || se.Code != http.StatusBadRequest {
		t.Errorf("expected a 400, got %v", err)
	}
	if pos, _ := m.GetPos(); pos != 75 {
		t.Errorf("expected the axis to stay at 75, got %f", pos)
	}
}

func TestRemoteAxisRoundTrip(t *testing.T) {
	srv, m := newServer(t)
	c := comm.NewClient(srv.URL)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	lim, err := motion.FetchLimits(ctx, c, "x")
	if err != nil {
		t.Fatal(err)
	}
	if lim != m.Limits() {
		t.Errorf("expected limits %v, got %v", m.Limits(), lim)
	}
	ax := motion.NewRemote(c, "x", lim)
	ax.PollInterval = time.Millisecond
	if err = ax.SetVelocity(5); err != nil {
		t.Fatal(err)
	}
	st, err := ax.MoveAbs(78)
	if err != nil {
		t.Fatal(err)
	}
	var (
		mu   sync.Mutex
		last float64
	)
	st.Watch(func(u motion.Update) {
		mu.Lock()
		last = u.Pos
		mu.Unlock()
	})
	if err = st.Wait(ctx); err != nil {
		t.Fatal(err)
	}
	pos, err := ax.GetPos()
	if err != nil {
		t.Fatal(err)
	}
	if pos != 78 {
		t.Errorf("expected the remote axis at 78, got %f", pos)
	}
	mu.Lock()
	defer mu.Unlock()
	if last != 0 && last != 78 {
		t.Errorf("expected the last published position to be final, got %f", last)
	}
}

func TestRemoteAxisRefusedMoveIsMotionFailure(t *testing.T) {
	srv, _ := newServer(t)
	ax := motion.NewRemote(comm.NewClient(srv.URL), "x", motion.Limits{})
	if _, err := ax.MoveAbs(90); !errors.Is(err, fault.ErrMotion) {
		t.Errorf("expected a motion failure, got %v", err)
	}
}
