package api

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/zberg/go-melco/internal/hub"
)

// NewRouter builds the HTTP handler over h. reg may be nil to disable /metrics.
func NewRouter(h *hub.Hub, reg *prometheus.Registry) http.Handler {
	router := chi.NewRouter()
	router.Use(middleware.StripSlashes)
	router.Use(RequestIDMiddleware)
	router.Use(requestLogger)
	router.Use(RecovererMiddleware)

	router.Method(http.MethodGet, "/healthz", Handler(healthHandler(h)))
	if reg != nil {
		router.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	}

	router.Route("/api", func(r chi.Router) {
		r.Method(http.MethodGet, "/groups", Handler(listGroups(h)))
		r.Method(http.MethodGet, "/groups/{id}", Handler(getGroup(h)))
		r.Method(http.MethodPost, "/groups/{id}/hvac_mode", Handler(setHVACMode(h)))
		r.Method(http.MethodPost, "/groups/{id}/temperature", Handler(setTemperature(h)))
		r.Method(http.MethodPost, "/groups/{id}/turn_on", Handler(turnOn(h)))
		r.Method(http.MethodPost, "/groups/{id}/turn_off", Handler(turnOff(h)))

		r.Method(http.MethodGet, "/controllers", Handler(listControllers(h)))
		r.Method(http.MethodPost, "/controllers", Handler(createController(h)))
		r.Method(http.MethodPost, "/controllers/{id}/rediscover", Handler(rediscoverController(h)))
		r.Method(http.MethodDelete, "/controllers/{id}", Handler(deleteController(h)))

		r.HandleFunc("/ws", websocketHandler(h))
	})

	return router
}

func healthHandler(h *hub.Hub) Handler {
	return func(w http.ResponseWriter, r *http.Request) error {
		status := "ok"
		for _, rt := range h.Runtimes() {
			if !rt.Coordinator.LastUpdateSuccess() {
				status = "degraded"
			}
		}
		return WriteJSON(w, http.StatusOK, map[string]any{
			"status":      status,
			"controllers": len(h.Runtimes()),
		})
	}
}

func listGroups(h *hub.Hub) Handler {
	return func(w http.ResponseWriter, r *http.Request) error {
		states := make([]hub.ClimateState, 0)
		for _, c := range h.Climates() {
			states = append(states, c.State())
		}
		return WriteList(w, states)
	}
}

func getGroup(h *hub.Hub) Handler {
	return func(w http.ResponseWriter, r *http.Request) error {
		c, err := h.Climate(chi.URLParam(r, "id"))
		if err != nil {
			return err
		}
		return WriteJSON(w, http.StatusOK, c.State())
	}
}

type hvacModeRequest struct {
	HVACMode string `json:"hvac_mode"`
}

func setHVACMode(h *hub.Hub) Handler {
	return func(w http.ResponseWriter, r *http.Request) error {
		c, err := h.Climate(chi.URLParam(r, "id"))
		if err != nil {
			return err
		}
		var req hvacModeRequest
		if err := decodeBody(w, r, &req); err != nil {
			return err
		}
		mode, err := hub.ParseHVACMode(req.HVACMode)
		if err != nil {
			return err
		}
		if err := c.SetHVACMode(r.Context(), mode); err != nil {
			return err
		}
		return WriteJSON(w, http.StatusOK, c.State())
	}
}

type temperatureRequest struct {
	Temperature *float64 `json:"temperature"`
}

func setTemperature(h *hub.Hub) Handler {
	return func(w http.ResponseWriter, r *http.Request) error {
		c, err := h.Climate(chi.URLParam(r, "id"))
		if err != nil {
			return err
		}
		var req temperatureRequest
		if err := decodeBody(w, r, &req); err != nil {
			return err
		}
		if req.Temperature == nil {
			return badRequest("temperature is required")
		}
		if err := c.SetTemperature(r.Context(), *req.Temperature); err != nil {
			return err
		}
		return WriteJSON(w, http.StatusOK, c.State())
	}
}

func turnOn(h *hub.Hub) Handler {
	return func(w http.ResponseWriter, r *http.Request) error {
		c, err := h.Climate(chi.URLParam(r, "id"))
		if err != nil {
			return err
		}
		if err := c.TurnOn(r.Context()); err != nil {
			return err
		}
		return WriteJSON(w, http.StatusOK, c.State())
	}
}

func turnOff(h *hub.Hub) Handler {
	return func(w http.ResponseWriter, r *http.Request) error {
		c, err := h.Climate(chi.URLParam(r, "id"))
		if err != nil {
			return err
		}
		if err := c.TurnOff(r.Context()); err != nil {
			return err
		}
		return WriteJSON(w, http.StatusOK, c.State())
	}
}

type controllerResponse struct {
	ID          string            `json:"id"`
	Host        string            `json:"host"`
	Title       string            `json:"title"`
	Groups      map[string]string `json:"groups"`
	CreatedAt   time.Time         `json:"created_at"`
	Available   bool              `json:"available"`
	LastSuccess *time.Time        `json:"last_success,omitempty"`
	LastError   string            `json:"last_error,omitempty"`
}

func toControllerResponse(rt *hub.Runtime) controllerResponse {
	stats := rt.Coordinator.Stats()
	out := controllerResponse{
		ID:        rt.Entry.ID,
		Host:      rt.Entry.Host,
		Title:     rt.Entry.Title,
		Groups:    rt.Entry.Groups,
		CreatedAt: rt.Entry.CreatedAt,
		Available: rt.Coordinator.LastUpdateSuccess(),
	}
	if !stats.LastSuccess.IsZero() {
		out.LastSuccess = &stats.LastSuccess
	}
	if stats.LastError != nil {
		out.LastError = stats.LastError.Error()
	}
	return out
}

func listControllers(h *hub.Hub) Handler {
	return func(w http.ResponseWriter, r *http.Request) error {
		out := make([]controllerResponse, 0)
		for _, rt := range h.Runtimes() {
			out = append(out, toControllerResponse(rt))
		}
		return WriteList(w, out)
	}
}

type createControllerRequest struct {
	Host string `json:"host"`
}

func createController(h *hub.Hub) Handler {
	return func(w http.ResponseWriter, r *http.Request) error {
		var req createControllerRequest
		if err := decodeBody(w, r, &req); err != nil {
			return err
		}
		host := strings.TrimSpace(req.Host)
		if host == "" {
			return badRequest("host is required")
		}
		rt, err := h.Setup(r.Context(), host)
		if err != nil {
			return err
		}
		return WriteJSON(w, http.StatusCreated, toControllerResponse(rt))
	}
}

func rediscoverController(h *hub.Hub) Handler {
	return func(w http.ResponseWriter, r *http.Request) error {
		rt, err := h.Rediscover(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			return err
		}
		return WriteJSON(w, http.StatusOK, toControllerResponse(rt))
	}
}

func deleteController(h *hub.Hub) Handler {
	return func(w http.ResponseWriter, r *http.Request) error {
		if err := h.Remove(r.Context(), chi.URLParam(r, "id")); err != nil {
			return err
		}
		w.WriteHeader(http.StatusNoContent)
		return nil
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return badRequest("invalid request body: " + err.Error())
	}
	return nil
}
