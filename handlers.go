package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/websocket"
	"github.com/kwv/wayfind/locate"
	"github.com/kwv/wayfind/route"
)

// routeResponse is the JSON form of a NavigationPath
type routeResponse struct {
	ID       string       `json:"id"`
	Steps    []route.Step `json:"steps"`
	Degraded bool         `json:"degraded"`
	Distance float64      `json:"distance"`
}

func newRouteResponse(np *route.NavigationPath) routeResponse {
	return routeResponse{
		ID:       np.ID,
		Steps:    np.Steps,
		Degraded: np.Degraded,
		Distance: np.TotalDistance(),
	}
}

// wsMessage is one frame on the /ws stream
type wsMessage struct {
	Type     string           `json:"type"`
	Position *locate.Position `json:"position,omitempty"`
	Sources  int              `json:"sources,omitempty"`
	Status   locate.Status    `json:"status,omitempty"`
	Error    string           `json:"error,omitempty"`
}

const wsWriteTimeout = 5 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// requestError carries the HTTP status for a failed request
type requestError struct {
	status int
	msg    string
}

func (e *requestError) Error() string { return e.msg }

func badRequest(format string, args ...any) error {
	return &requestError{status: http.StatusBadRequest, msg: fmt.Sprintf(format, args...)}
}

// newHTTPServer creates an HTTP server with all endpoints
func newHTTPServer(engine *locate.Engine, floors *route.FloorStore, router *route.Router) http.Handler {
	mux := http.NewServeMux()

	// Health check endpoint
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		log.Printf("[HTTP] /health request from %s", r.RemoteAddr)
		writeJSON(w, http.StatusOK, struct {
			Status       string        `json:"status"`
			Timestamp    time.Time     `json:"timestamp"`
			Positioning  locate.Status `json:"positioning"`
			Floors       []int         `json:"floors"`
			FloorVersion uint64        `json:"floorVersion"`
		}{
			Status:       "ok",
			Timestamp:    time.Now(),
			Positioning:  engine.Status(),
			Floors:       floors.FloorNumbers(),
			FloorVersion: floors.Version(),
		})
	})

	mux.HandleFunc("/position", func(w http.ResponseWriter, r *http.Request) {
		pos, ok := engine.Position()
		if !ok {
			writeJSONError(w, http.StatusServiceUnavailable, "no position available")
			return
		}
		writeJSON(w, http.StatusOK, locate.PositionMessage{Position: pos, Sources: len(engine.Contributing())})
	})

	mux.HandleFunc("/status", func(w http.ResponseWriter, r *http.Request) {
		resp := struct {
			Status locate.Status `json:"status"`
			Error  string        `json:"error,omitempty"`
		}{Status: engine.Status()}
		if resp.Status == locate.StatusError {
			if err := engine.LastError(); err != nil {
				resp.Error = err.Error()
			}
		}
		writeJSON(w, http.StatusOK, resp)
	})

	mux.HandleFunc("/measurements", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, struct {
			Live         []locate.Measurement `json:"live"`
			Contributing []locate.Measurement `json:"contributing"`
		}{
			Live:         engine.LiveMeasurements(),
			Contributing: engine.Contributing(),
		})
	})

	mux.HandleFunc("/route", func(w http.ResponseWriter, r *http.Request) {
		path, _, err := planFromRequest(r, engine, floors, router)
		if err != nil {
			writeRequestError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, newRouteResponse(path))
	})

	mux.HandleFunc("/route.geojson", func(w http.ResponseWriter, r *http.Request) {
		path, _, err := planFromRequest(r, engine, floors, router)
		if err != nil {
			writeRequestError(w, err)
			return
		}
		w.Header().Set("Content-Type", "application/geo+json")
		if err := json.NewEncoder(w).Encode(route.PathFeatures(path)); err != nil {
			log.Printf("[HTTP] Error encoding route GeoJSON: %v", err)
		}
	})

	mux.HandleFunc("/floor.geojson", func(w http.ResponseWriter, r *http.Request) {
		fp, err := floorFromRequest(r, engine, floors)
		if err != nil {
			writeRequestError(w, err)
			return
		}
		w.Header().Set("Content-Type", "application/geo+json")
		if err := json.NewEncoder(w).Encode(route.FloorFeatures(fp)); err != nil {
			log.Printf("[HTTP] Error encoding floor GeoJSON: %v", err)
		}
	})

	mux.HandleFunc("/floor.svg", func(w http.ResponseWriter, r *http.Request) {
		renderer, err := rendererFromRequest(r, engine, floors, router)
		if err != nil {
			writeRequestError(w, err)
			return
		}
		w.Header().Set("Content-Type", "image/svg+xml")
		w.Header().Set("Cache-Control", "no-cache")
		if err := renderer.RenderToSVG(w); err != nil {
			log.Printf("[HTTP] Error rendering floor SVG: %v", err)
		}
	})

	mux.HandleFunc("/floor.png", func(w http.ResponseWriter, r *http.Request) {
		renderer, err := rendererFromRequest(r, engine, floors, router)
		if err != nil {
			writeRequestError(w, err)
			return
		}
		w.Header().Set("Content-Type", "image/png")
		w.Header().Set("Cache-Control", "no-cache")
		if err := renderer.RenderToPNG(w); err != nil {
			log.Printf("[HTTP] Error rendering floor PNG: %v", err)
		}
	})

	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Printf("[HTTP] websocket upgrade failed: %v", err)
			return
		}
		streamEngine(conn, engine)
	})

	return mux
}

// streamEngine writes position and status updates to conn until the client
// goes away or the engine closes. Updates have latest-value semantics: a
// slow client sees the newest state, not every intermediate one.
func streamEngine(conn *websocket.Conn, engine *locate.Engine) {
	defer func() { _ = conn.Close() }()

	positions, cancelPos := engine.SubscribePosition()
	defer cancelPos()
	statuses, cancelStatus := engine.SubscribeStatus()
	defer cancelStatus()

	// client frames are discarded; a read error means the peer is gone
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	send := func(msg wsMessage) bool {
		_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
		if err := conn.WriteJSON(msg); err != nil {
			log.Printf("[HTTP] websocket write failed: %v", err)
			return false
		}
		return true
	}

	for {
		select {
		case <-gone:
			return
		case pos, ok := <-positions:
			if !ok {
				return
			}
			if !send(wsMessage{Type: "position", Position: &pos, Sources: len(engine.Contributing())}) {
				return
			}
		case st, ok := <-statuses:
			if !ok {
				return
			}
			msg := wsMessage{Type: "status", Status: st}
			if st == locate.StatusError {
				if err := engine.LastError(); err != nil {
					msg.Error = err.Error()
				}
			}
			if !send(msg) {
				return
			}
		}
	}
}

// planFromRequest routes from the "from" parameter, or the current position
// when it is absent, to the "to" parameter.
func planFromRequest(r *http.Request, engine *locate.Engine, floors *route.FloorStore, router *route.Router) (*route.NavigationPath, route.Location, error) {
	q := r.URL.Query()
	toParam := q.Get("to")
	if toParam == "" {
		return nil, route.Location{}, badRequest("missing to=x,y,floor")
	}
	to, err := parseLocation(toParam)
	if err != nil {
		return nil, route.Location{}, badRequest("%v", err)
	}

	var from route.Location
	if fromParam := q.Get("from"); fromParam != "" {
		from, err = parseLocation(fromParam)
		if err != nil {
			return nil, route.Location{}, badRequest("%v", err)
		}
	} else {
		pos, ok := engine.Position()
		if !ok {
			return nil, route.Location{}, &requestError{status: http.StatusServiceUnavailable, msg: "no position available; pass from=x,y,floor"}
		}
		from = route.At(pos.X, pos.Y, pos.Floor)
	}

	snapshot, _ := floors.Snapshot()
	path, err := router.FindPath(from, to, snapshot)
	if err != nil {
		return nil, from, err
	}
	return path, from, nil
}

// floorFromRequest resolves the "floor" parameter, defaulting to the floor of
// the current position and then to the lowest stored floor.
func floorFromRequest(r *http.Request, engine *locate.Engine, floors *route.FloorStore) (*route.FloorPlan, error) {
	var floor int
	if s := r.URL.Query().Get("floor"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil {
			return nil, badRequest("bad floor %q", s)
		}
		floor = n
	} else if pos, ok := engine.Position(); ok {
		floor = pos.Floor
	} else if nums := floors.FloorNumbers(); len(nums) > 0 {
		floor = nums[0]
	}

	fp, ok := floors.FloorPlan(floor)
	if !ok {
		return nil, fmt.Errorf("floor %d: %w", floor, route.ErrFloorPlanNotFound)
	}
	return fp, nil
}

// rendererFromRequest prepares a drawing of the requested floor with the
// current position and, when "to" is given, the planned route.
func rendererFromRequest(r *http.Request, engine *locate.Engine, floors *route.FloorStore, router *route.Router) (*route.Renderer, error) {
	var path *route.NavigationPath
	q := r.URL.Query()
	if q.Get("to") != "" {
		p, from, err := planFromRequest(r, engine, floors, router)
		if err != nil {
			return nil, err
		}
		path = p
		if q.Get("floor") == "" {
			q.Set("floor", strconv.Itoa(from.Floor))
			r.URL.RawQuery = q.Encode()
		}
	}

	fp, err := floorFromRequest(r, engine, floors)
	if err != nil {
		return nil, err
	}

	renderer := route.NewRenderer(fp)
	renderer.Path = path
	if pos, ok := engine.Position(); ok && pos.Floor == fp.Floor {
		loc := route.At(pos.X, pos.Y, pos.Floor)
		renderer.Position = &loc
		renderer.Accuracy = pos.Accuracy
	}
	return renderer, nil
}

// httpStatus maps request and routing errors onto status codes
func httpStatus(err error) int {
	var re *requestError
	switch {
	case errors.As(err, &re):
		return re.status
	case errors.Is(err, route.ErrFloorPlanNotFound):
		return http.StatusNotFound
	case errors.Is(err, route.ErrNoTransition), errors.Is(err, route.ErrNoMatchingTransition):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func writeRequestError(w http.ResponseWriter, err error) {
	status := httpStatus(err)
	if status >= http.StatusInternalServerError && status != http.StatusServiceUnavailable {
		log.Printf("[HTTP] %v", err)
	}
	writeJSONError(w, status, err.Error())
}

// writeJSON writes a JSON response with the given status code and data
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("[HTTP] failed to encode json response: %v", err)
	}
}

// writeJSONError writes {"error": msg} with the given status code
func writeJSONError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
