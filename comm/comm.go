/*Package comm provides communication with lab hardware servers over HTTP.

The servers follow the golab JSON conventions, where scalars travel wrapped
in single-field objects:

	GET  /axis/X/pos        -> {"f64": 77.5}
	POST /axis/X/pos        <- {"f64": 78}
	GET  /axis/X/inposition -> {"bool": true}

A minimal example reading a position is

	c := comm.NewClient("http://localhost:8000/stage")
	if err := c.Dial(ctx, "/axis/X/pos"); err != nil {
		return err
	}
	pos, err := c.GetFloat(ctx, "/axis/X/pos")
*/
package comm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff"
	"golang.org/x/time/rate"
)

// Client is an HTTP client bound to a server's base address
type Client struct {
	// Addr is the base URL, e.g. http://localhost:8000/stage
	Addr string

	// HTTP is the underlying client
	HTTP *http.Client

	// MaxElapsed bounds the time Dial spends waiting for the server
	MaxElapsed time.Duration
}

// NewClient returns a Client with a 5 second request timeout and a 30
// second dial budget
func NewClient(addr string) *Client {
	return &Client{
		Addr:       strings.TrimSuffix(addr, "/"),
		HTTP:       &http.Client{Timeout: 5 * time.Second},
		MaxElapsed: 30 * time.Second,
	}
}

// StatusError is generated when the server responds with a non-2xx code
type StatusError struct {
	Code int
	Msg  string
}

func (e StatusError) Error() string {
	return fmt.Sprintf("server responded %d: %s", e.Code, e.Msg)
}

// Dial waits for the server to answer a GET on path.  Transport errors are
// retried with an exponential backoff, since freshly started servers take a
// moment to listen; an HTTP error status ends the wait immediately.
func (c *Client) Dial(ctx context.Context, path string) error {
	op := func() error {
		_, err := c.do(ctx, http.MethodGet, path, nil)
		if err == nil {
			return nil
		}
		if _, ok := err.(StatusError); ok {
			return backoff.Permanent(err)
		}
		return err
	}
	b := &backoff.ExponentialBackOff{
		InitialInterval:     50 * time.Millisecond,
		RandomizationFactor: backoff.DefaultRandomizationFactor,
		Multiplier:          backoff.DefaultMultiplier,
		MaxInterval:         2 * time.Second,
		MaxElapsedTime:      c.MaxElapsed,
		Clock:               backoff.SystemClock}
	return backoff.Retry(op, backoff.WithContext(b, ctx))
}

func (c *Client) do(ctx context.Context, method, path string, body interface{}) ([]byte, error) {
	var rdr io.Reader
	if body != nil {
		buf := &bytes.Buffer{}
		if err := json.NewEncoder(buf).Encode(body); err != nil {
			return nil, err
		}
		rdr = buf
	}
	req, err := http.NewRequestWithContext(ctx, method, c.Addr+path, rdr)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, StatusError{Code: resp.StatusCode, Msg: strings.TrimSpace(string(b))}
	}
	return b, nil
}

// GetJSON performs a GET on path and decodes the response into v
func (c *Client) GetJSON(ctx context.Context, path string, v interface{}) error {
	b, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, v)
}

// PostJSON performs a POST of v to path, discarding the response body
func (c *Client) PostJSON(ctx context.Context, path string, v interface{}) error {
	_, err := c.do(ctx, http.MethodPost, path, v)
	return err
}

// GetFloat gets {"f64": value} from path
func (c *Client) GetFloat(ctx context.Context, path string) (float64, error) {
	f := struct {
		F64 float64 `json:"f64"`
	}{}
	err := c.GetJSON(ctx, path, &f)
	return f.F64, err
}

// PostFloat posts {"f64": value} to path
func (c *Client) PostFloat(ctx context.Context, path string, value float64) error {
	f := struct {
		F64 float64 `json:"f64"`
	}{F64: value}
	return c.PostJSON(ctx, path, f)
}

// GetBool gets {"bool": value} from path
func (c *Client) GetBool(ctx context.Context, path string) (bool, error) {
	b := struct {
		Bool bool `json:"bool"`
	}{}
	err := c.GetJSON(ctx, path, &b)
	return b.Bool, err
}

// Poll calls fn no more often than once per interval until it reports done,
// returns an error, or ctx ends
func Poll(ctx context.Context, interval time.Duration, fn func() (bool, error)) error {
	lim := rate.NewLimiter(rate.Every(interval), 1)
	for {
		if err := lim.Wait(ctx); err != nil {
			return err
		}
		done, err := fn()
		if err != nil {
			return err
		}
		if done {
			return nil
		}
	}
}
