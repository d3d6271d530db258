package motion

import (
	"context"
	"fmt"
	"time"

	"github.jpl.nasa.gov/bdube/flyopt/comm"
	"github.jpl.nasa.gov/bdube/flyopt/fault"
)

// DefaultPollInterval is the rate at which a Remote axis checks on a move
const DefaultPollInterval = 5 * time.Millisecond

// Remote is an axis served by a golab motion server.  Moves are observed by
// polling the position and in-position routes until the axis settles.
type Remote struct {
	c      *comm.Client
	name   string
	limits Limits

	// PollInterval is the interval between position polls during a move
	PollInterval time.Duration
}

// NewRemote returns an axis named name on the server behind c.
// The limits are used for pacing and are not read from the server.
func NewRemote(c *comm.Client, name string, limits Limits) *Remote {
	return &Remote{c: c, name: name, limits: limits, PollInterval: DefaultPollInterval}
}

// FetchLimits reads the limits of an axis from the server's limits route
func FetchLimits(ctx context.Context, c *comm.Client, name string) (Limits, error) {
	var l Limits
	err := c.GetJSON(ctx, route(name, "limits"), &l)
	return l, err
}

func route(axis, leaf string) string {
	return "/axis/" + axis + "/" + leaf
}

// Name returns the name of the axis
func (r *Remote) Name() string {
	return r.name
}

// Limits returns the limits of the axis
func (r *Remote) Limits() Limits {
	return r.limits
}

// GetPos gets the current position
func (r *Remote) GetPos() (float64, error) {
	return r.c.GetFloat(context.Background(), route(r.name, "pos"))
}

// GetVelocity gets the velocity setpoint
func (r *Remote) GetVelocity() (float64, error) {
	return r.c.GetFloat(context.Background(), route(r.name, "velocity"))
}

// SetVelocity sets the velocity setpoint
func (r *Remote) SetVelocity(v float64) error {
	err := r.c.PostFloat(context.Background(), route(r.name, "velocity"), v)
	if err != nil {
		return fmt.Errorf("%w: %s: set velocity %g: %v", fault.ErrMotion, r.name, v, err)
	}
	return nil
}

// MoveAbs commands a move to pos.  A goroutine polls the server, publishing
// each position it reads, until the axis reports it is in position.
func (r *Remote) MoveAbs(pos float64) (*Status, error) {
	ctx := context.Background()
	if err := r.c.PostFloat(ctx, route(r.name, "pos"), pos); err != nil {
		return nil, fmt.Errorf("%w: %s to %g: %v", fault.ErrMotion, r.name, pos, err)
	}
	st := NewStatus()
	go func() {
		err := comm.Poll(ctx, r.PollInterval, func() (bool, error) {
			// in position first, so the last published position is final
			inpos, err := r.c.GetBool(ctx, route(r.name, "inposition"))
			if err != nil {
				return false, err
			}
			p, err := r.c.GetFloat(ctx, route(r.name, "pos"))
			if err != nil {
				return false, err
			}
			st.Publish(p)
			return inpos, nil
		})
		if err != nil {
			err = fmt.Errorf("%w: %s: %v", fault.ErrMotion, r.name, err)
		}
		st.Finish(err)
	}()
	return st, nil
}
