// Package motion provides an HTTP interface to banks of motion axes.
//
// A controller is addressed by axis name, and the routes follow the golab
// conventions:
//
//	GET  /axis/{axis}/pos         -> {"f64": pos}
//	POST /axis/{axis}/pos         <- {"f64": pos}
//	GET  /axis/{axis}/velocity    -> {"f64": vel}
//	POST /axis/{axis}/velocity    <- {"f64": vel}
//	GET  /axis/{axis}/inposition  -> {"bool": inpos}
//	GET  /axis/{axis}/limits      -> {"Travel": {...}, "Velocity": {...}}
package motion

import (
	"errors"
	"net/http"

	"github.jpl.nasa.gov/bdube/flyopt/generichttp"
)

// ErrUnknownAxis is generated when a request names an axis the controller
// does not have
var ErrUnknownAxis = errors.New("unknown axis")

// Mover describes an interface with position-related methods for axes
type Mover interface {
	// GetPos gets the current position of an axis
	GetPos(string) (float64, error)

	// MoveAbs starts a move of an axis to an absolute position
	MoveAbs(string, float64) error
}

// Controller is used for the HTTP interface, which will check if the concrete
// type satisfies the other interfaces in this package and inject their routes
// automatically
type Controller interface {
	// Mover - all Controllers must be Movers
	Mover
}

// HTTPMotionController wraps a motion controller with HTTP
type HTTPMotionController struct {
	Controller

	RouteTable generichttp.RouteTable
}

// NewHTTPMotionController returns a new HTTP wrapper with the route table pre-configured
func NewHTTPMotionController(c Controller) HTTPMotionController {
	w := HTTPMotionController{Controller: c}
	rt := generichttp.RouteTable{}
	HTTPMove(c, rt)
	if speeder, ok := interface{}(c).(Speeder); ok {
		HTTPSpeed(speeder, rt)
	}
	if inpos, ok := interface{}(c).(InPositionQueryer); ok {
		HTTPInPosition(inpos, rt)
	}
	w.RouteTable = rt
	return w
}

// RT satisfies the HTTPer interface
func (h HTTPMotionController) RT() generichttp.RouteTable {
	return h.RouteTable
}

// fail responds with the error, 404 if the axis is unknown and 500 otherwise
func fail(w http.ResponseWriter, err error) {
	code := http.StatusInternalServerError
	if errors.Is(err, ErrUnknownAxis) {
		code = http.StatusNotFound
	}
	http.Error(w, err.Error(), code)
}
