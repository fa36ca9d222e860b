// Package httpapi exposes a diamond over HTTP.
package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"
	"github.com/nspcc-dev/neo-go/pkg/util"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Perfect-Abstractions/Compose-sub004/internal/access"
	"github.com/Perfect-Abstractions/Compose-sub004/internal/diamond"
	"github.com/Perfect-Abstractions/Compose-sub004/internal/engine/events"
	"github.com/Perfect-Abstractions/Compose-sub004/internal/facets"
	"github.com/Perfect-Abstractions/Compose-sub004/internal/facets/script"
	"github.com/Perfect-Abstractions/Compose-sub004/internal/middleware"
	"github.com/Perfect-Abstractions/Compose-sub004/internal/selector"
	"github.com/Perfect-Abstractions/Compose-sub004/pkg/logger"
)

// MaxBodySize bounds request bodies.
const MaxBodySize = 1 << 20

// Options configures the handler. Nil Events and Metrics disable the
// corresponding routes.
type Options struct {
	Events  events.EventLogger
	Metrics prometheus.Gatherer
	Logger  *logger.Logger
}

type handler struct {
	d      *diamond.Diamond
	events events.EventLogger
	log    *logger.Logger
}

// NewHandler returns a router serving d. Callers are read from the request
// context; see middleware.AuthMiddleware.
func NewHandler(d *diamond.Diamond, opts Options) *mux.Router {
	h := &handler{d: d, events: opts.Events, log: opts.Logger}
	if h.log == nil {
		h.log = logger.NewDefault("httpapi")
	}

	r := mux.NewRouter()
	r.HandleFunc("/healthz", h.health).Methods(http.MethodGet)
	r.HandleFunc("/owner", h.owner).Methods(http.MethodGet)

	r.HandleFunc("/loupe/facets", h.facets).Methods(http.MethodGet)
	r.HandleFunc("/loupe/facets/{facet}/selectors", h.facetSelectors).Methods(http.MethodGet)
	r.HandleFunc("/loupe/addresses", h.facetAddresses).Methods(http.MethodGet)
	r.HandleFunc("/loupe/selectors", h.selectors).Methods(http.MethodGet)
	r.HandleFunc("/loupe/selectors/{selector}", h.facetAddress).Methods(http.MethodGet)

	r.HandleFunc("/call/{selector}", h.call).Methods(http.MethodPost)
	r.HandleFunc("/cut", h.cut).Methods(http.MethodPost)
	r.HandleFunc("/facets", h.deploy).Methods(http.MethodPost)
	r.HandleFunc("/facets/{facet}/code", h.code).Methods(http.MethodGet)

	if opts.Events != nil {
		r.HandleFunc("/events", h.recentEvents).Methods(http.MethodGet)
	}
	if opts.Metrics != nil {
		r.Handle("/metrics", promhttp.HandlerFor(opts.Metrics, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	}
	return r
}

func (h *handler) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"diamond":   diamond.FormatAddress(h.d.Address()),
		"selectors": len(h.d.Selectors()),
	})
}

func (h *handler) owner(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"owner": diamond.FormatAddress(h.d.Owner())})
}

func (h *handler) facets(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.d.Facets())
}

func (h *handler) facetSelectors(w http.ResponseWriter, r *http.Request) {
	facet, err := diamond.ParseAddress(mux.Vars(r)["facet"])
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusOK, h.d.FacetFunctionSelectors(facet))
}

func (h *handler) facetAddresses(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.d.FacetAddresses())
}

func (h *handler) selectors(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.d.Selectors())
}

func (h *handler) facetAddress(w http.ResponseWriter, r *http.Request) {
	sel, err := parseSelector(mux.Vars(r)["selector"])
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"selector": sel,
		"facet":    h.d.FacetAddress(sel),
	})
}

func (h *handler) call(w http.ResponseWriter, r *http.Request) {
	sel, err := parseSelector(mux.Vars(r)["selector"])
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	input, err := io.ReadAll(io.LimitReader(r.Body, MaxBodySize))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	caller, _ := middleware.CallerFrom(r.Context())
	out, err := h.d.Call(r.Context(), caller, sel, input)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/octet-stream")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(out)
}

func (h *handler) cut(w http.ResponseWriter, r *http.Request) {
	var req facets.CutRequest
	if err := decodeJSON(r.Body, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	cuts, init, err := req.Resolve()
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	caller, _ := middleware.CallerFrom(r.Context())
	if err := h.d.Cut(r.Context(), caller, cuts, init); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// DeployRequest deploys a script facet.
type DeployRequest struct {
	Name      string            `json:"name"`
	Namespace string            `json:"namespace,omitempty"`
	Source    string            `json:"source"`
	Functions []script.Function `json:"functions"`
}

// DeployResponse reports a deployed facet.
type DeployResponse struct {
	Facet     util.Uint160        `json:"facet"`
	Selectors []selector.Selector `json:"selectors"`
}

func (h *handler) deploy(w http.ResponseWriter, r *http.Request) {
	var req DeployRequest
	if err := decodeJSON(r.Body, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if _, err := script.New(req.Name, req.Namespace, req.Source, req.Functions); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	caller, _ := middleware.CallerFrom(r.Context())
	rec, f, err := script.Deploy(r.Context(), h.d, caller, req.Name, req.Namespace, req.Source, req.Functions)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.log.WithFields(map[string]interface{}{
		"facet":    diamond.FormatAddress(rec.Address),
		"name":     req.Name,
		"deployer": diamond.FormatAddress(caller),
	}).Info("Script facet deployed")
	writeJSON(w, http.StatusCreated, DeployResponse{Facet: rec.Address, Selectors: diamond.Selectors(f)})
}

func (h *handler) code(w http.ResponseWriter, r *http.Request) {
	facet, err := diamond.ParseAddress(mux.Vars(r)["facet"])
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	code := h.d.Code().Code(facet)
	if len(code) == 0 {
		writeError(w, http.StatusNotFound, fmt.Errorf("no code at %s", diamond.FormatAddress(facet)))
		return
	}
	w.Header().Set("Content-Type", "application/octet-stream")
	_, _ = w.Write(code)
}

func (h *handler) recentEvents(w http.ResponseWriter, r *http.Request) {
	n := 100
	if s := r.URL.Query().Get("limit"); s != "" {
		v, err := strconv.Atoi(s)
		if err != nil || v <= 0 {
			writeError(w, http.StatusBadRequest, fmt.Errorf("invalid limit %q", s))
			return
		}
		n = v
	}
	var out []events.Event
	if typ := r.URL.Query().Get("type"); typ != "" {
		out = h.events.RecentByType(events.EventType(typ), n)
	} else {
		out = h.events.Recent(n)
	}
	if out == nil {
		out = []events.Event{}
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := StatusOf(err)
	if status >= http.StatusInternalServerError {
		h.log.WithError(err).WithField("request_id", middleware.RequestIDFrom(r.Context())).Error("Request failed")
	}

	var rev *diamond.Revert
	if errors.As(err, &rev) {
		writeJSON(w, status, map[string]string{
			"error": err.Error(),
			"data":  fmt.Sprintf("0x%x", rev.Data),
		})
		return
	}
	body := map[string]string{"error": err.Error()}
	if kind := diamond.KindOf(err); kind != diamond.KindUnknown {
		body["kind"] = kind.String()
	}
	writeJSON(w, status, body)
}

// StatusOf maps a diamond error to an HTTP status.
func StatusOf(err error) int {
	var rev *diamond.Revert
	switch diamond.KindOf(err) {
	case diamond.KindFunctionNotFound:
		return http.StatusNotFound
	case diamond.KindUnauthorized:
		return http.StatusForbidden
	case diamond.KindDuplicateRegistration, diamond.KindMustExist, diamond.KindSameFacet,
		diamond.KindImmutableFunction:
		return http.StatusConflict
	case diamond.KindNoSelectors, diamond.KindNonZeroRemoveTarget, diamond.KindUnknownAction,
		diamond.KindInvalidModule:
		return http.StatusBadRequest
	case diamond.KindInitializationFailed, diamond.KindCallDepthExceeded:
		return http.StatusUnprocessableEntity
	}
	switch {
	case errors.Is(err, access.ErrUnauthorizedAccount), errors.Is(err, access.ErrNoPendingOwner):
		return http.StatusForbidden
	case errors.As(err, &rev):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// parseSelector accepts hex selectors and function signatures.
func parseSelector(s string) (selector.Selector, error) {
	if strings.Contains(s, "(") {
		return selector.FromSignature(s), nil
	}
	return selector.Parse(s)
}

func decodeJSON(body io.ReadCloser, dst interface{}) error {
	defer body.Close()
	dec := json.NewDecoder(io.LimitReader(body, MaxBodySize))
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
