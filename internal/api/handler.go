// Package api serves the HTTP and websocket surface of the signal service.
package api

import (
	"errors"
	"log"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"fx-confluence/internal/confluence"
	"fx-confluence/internal/gateway"
	"fx-confluence/internal/markethours"
	"fx-confluence/internal/model"
)

// MaxEvaluateBody caps the POST /evaluate request size.
const MaxEvaluateBody = "8M"

// ReportSource yields the most recent scheduled evaluation, or nil before
// the first run completes.
type ReportSource interface {
	LastReport() *confluence.Report
}

// Handler implements the /api/v1 routes.
type Handler struct {
	reports ReportSource
	hub     *gateway.Hub
	now     func() time.Time
}

// NewHandler creates a handler. reports and hub may be nil; the routes
// depending on them then answer 404.
func NewHandler(reports ReportSource, hub *gateway.Hub) *Handler {
	return &Handler{reports: reports, hub: hub, now: time.Now}
}

// RegisterRoutes mounts the routes on e.
func (h *Handler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api/v1")
	g.GET("/health", h.Health)
	g.GET("/signals", h.Signals)
	g.GET("/signals/:pair", h.Signal)
	g.GET("/macro", h.Macro)
	g.POST("/evaluate", h.Evaluate, echomw.BodyLimit(MaxEvaluateBody))

	if h.hub != nil {
		e.GET("/ws", echo.WrapHandler(h.hub))
	}
}

func (h *Handler) last() *confluence.Report {
	if h.reports == nil {
		return nil
	}
	return h.reports.LastReport()
}

// Health reports liveness plus market session and push statistics.
func (h *Handler) Health(c echo.Context) error {
	now := h.now()
	res := HealthResponse{
		Status:       "ok",
		MarketOpen:   markethours.IsMarketOpen(now),
		MarketStatus: markethours.StatusString(now),
	}
	if rep := h.last(); rep != nil {
		at := rep.EvaluatedAt
		res.LastEvaluatedAt = &at
	}
	if h.hub != nil {
		res.WSClients = h.hub.ClientCount()
		res.PushLagP50Ms, res.PushLagP95Ms, res.PushLagP99Ms = h.hub.Lag.Percentiles()
	}
	return ok(c, res)
}

// Signals returns the last report. ?pair=EURUSD,GBPUSD narrows the pairs.
func (h *Handler) Signals(c echo.Context) error {
	rep := h.last()
	if rep == nil {
		return notFound(c, "no evaluation has completed yet")
	}
	filter := c.QueryParam("pair")
	if filter == "" {
		return ok(c, rep)
	}

	want := make(map[string]bool)
	for _, p := range strings.Split(filter, ",") {
		want[strings.ToUpper(strings.TrimSpace(p))] = true
	}
	out := *rep
	out.Pairs = nil
	for _, pr := range rep.Pairs {
		if want[pr.Result.Pair] {
			out.Pairs = append(out.Pairs, pr)
		}
	}
	return ok(c, &out)
}

// Signal returns one pair of the last report.
func (h *Handler) Signal(c echo.Context) error {
	rep := h.last()
	if rep == nil {
		return notFound(c, "no evaluation has completed yet")
	}
	pair := strings.ToUpper(c.Param("pair"))
	for _, pr := range rep.Pairs {
		if pr.Result.Pair == pair {
			return ok(c, pr)
		}
	}
	return notFound(c, "pair "+pair+" not in last evaluation")
}

// Macro returns the reference-instrument result of the last report.
// ?indicators=true includes the full EMA/ATR/CVD lines.
func (h *Handler) Macro(c echo.Context) error {
	rep := h.last()
	if rep == nil {
		return notFound(c, "no evaluation has completed yet")
	}
	if c.QueryParam("indicators") == "true" {
		return ok(c, rep.Macro)
	}
	return ok(c, rep.Macro.Result)
}

// Evaluate runs the engine over caller-supplied bars and config.
func (h *Handler) Evaluate(c echo.Context) error {
	req := &EvaluateRequest{}
	if verrs := ReadAndValidateRequest(c, req); verrs != nil {
		return badRequest(c, verrs)
	}

	eng, err := confluence.NewEngine(req.Config)
	if err != nil {
		return badRequest(c, []ValidationError{{Code: "ERR_CONFIG", Field: "config", Message: err.Error()}})
	}

	iv := model.Interval(req.Interval)
	ref := req.Reference.series(req.Config.Reference, iv)
	series := make(map[string]model.Series, len(req.Pairs))
	for k, in := range req.Pairs {
		key := strings.ToUpper(strings.TrimSpace(k))
		series[key] = in.series(key, iv)
	}

	rep, err := eng.Evaluate(c.Request().Context(), ref, series)
	if err != nil {
		if errors.Is(err, confluence.ErrEmptySeries) || errors.Is(err, confluence.ErrUnorderedSeries) {
			return badRequest(c, []ValidationError{{Code: "ERR_REFERENCE", Field: "reference", Message: err.Error()}})
		}
		log.Printf("[api] evaluate: %v", err)
		return internalError(c)
	}
	rep.Interval = iv
	rep.EvaluatedAt = h.now().UTC()
	return ok(c, rep)
}
