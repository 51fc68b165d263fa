package api

import (
	"net/http"
	"os"
	"runtime"
	"strconv"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/shirou/gopsutil/v3/process"

	"github.com/MLAB-project/pysdr/internal/datastore"
	"github.com/MLAB-project/pysdr/internal/detector"
	"github.com/MLAB-project/pysdr/internal/events"
	"github.com/MLAB-project/pysdr/internal/logger"
	"github.com/MLAB-project/pysdr/internal/observability"
)

// EventView is an event as served by the API
type EventView struct {
	Identity    string    `json:"identity"`
	StartRow    int64     `json:"start_row"`
	EndRow      int64     `json:"end_row"`
	Start       time.Time `json:"start"`
	End         time.Time `json:"end"`
	FreqLo      float64   `json:"freq_lo_hz"`
	FreqHi      float64   `json:"freq_hi_hz"`
	Description string    `json:"description"`
	Final       bool      `json:"final"`
	Source      string    `json:"source,omitempty"`
}

// StatusResponse is served by /api/v1/status
type StatusResponse struct {
	Session SessionInfo             `json:"session"`
	Metrics *observability.Snapshot `json:"metrics,omitempty"`
	Uptime  float64                 `json:"uptime_seconds"`
}

// healthProbe samples the process with gopsutil
type healthProbe struct {
	once sync.Once
	proc *process.Process
	err  error
}

func newHealthProbe() *healthProbe { return &healthProbe{} }

func (h *healthProbe) sample() (cpuPercent, rssMB float64, err error) {
	h.once.Do(func() {
		h.proc, h.err = process.NewProcess(int32(os.Getpid()))
	})
	if h.err != nil {
		return 0, 0, h.err
	}
	if cpuPercent, err = h.proc.CPUPercent(); err != nil {
		return 0, 0, err
	}
	mem, err := h.proc.MemoryInfo()
	if err != nil {
		return 0, 0, err
	}
	return cpuPercent, float64(mem.RSS) / 1024 / 1024, nil
}

// healthCheck handles the server health check endpoint.
func (s *Server) healthCheck(c echo.Context) error {
	uptime := time.Since(s.startTime)
	resp := map[string]any{
		"status":         "healthy",
		"uptime":         uptime.String(),
		"uptime_seconds": uptime.Seconds(),
		"goroutines":     runtime.NumGoroutine(),
		"timestamp":      time.Now().Format(time.RFC3339),
	}
	if s.waterfall != nil {
		resp["texture_row"] = s.waterfall.TextureRow()
	}
	if cpu, rss, err := s.health.sample(); err == nil {
		resp["process_cpu_percent"] = cpu
		resp["process_memory_mb"] = rss
	} else {
		s.log.Debug("process sampling failed", logger.Error(err))
	}
	return c.JSON(http.StatusOK, resp)
}

func (s *Server) getStatus(c echo.Context) error {
	resp := StatusResponse{
		Session: s.session,
		Uptime:  time.Since(s.startTime).Seconds(),
	}
	if s.metrics != nil {
		snap := s.metrics.Snapshot()
		resp.Metrics = &snap
	}
	return c.JSON(http.StatusOK, resp)
}

func (s *Server) view(ev events.Event) EventView {
	start, end := s.clock.Span(ev)
	return EventView{
		Identity:    ev.Identity,
		StartRow:    ev.StartRow,
		EndRow:      ev.EndRow,
		Start:       start.UTC(),
		End:         end.UTC(),
		FreqLo:      s.bin2hz(ev.BinLo),
		FreqHi:      s.bin2hz(ev.BinHi),
		Description: ev.Description,
		Final:       ev.Final,
		Source:      ev.Source,
	}
}

// getEvents lists the live events, oldest first
func (s *Server) getEvents(c echo.Context) error {
	if s.events == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "event correlator not available")
	}
	snapshot := s.events.Snapshot()
	out := make([]EventView, 0, len(snapshot))
	for _, ev := range snapshot {
		out = append(out, s.view(ev))
	}
	return c.JSON(http.StatusOK, out)
}

// getEventHistory lists stored events for this session, newest first
func (s *Server) getEventHistory(c echo.Context) error {
	if s.store == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "datastore not enabled")
	}
	f := datastore.Filter{
		Session:   s.session.ID,
		Identity:  c.QueryParam("identity"),
		FinalOnly: c.QueryParam("final") == "true",
		Limit:     100,
	}
	if c.QueryParam("all_sessions") == "true" {
		f.Session = ""
	}
	if v := c.QueryParam("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > 10000 {
			return echo.NewHTTPError(http.StatusBadRequest, "limit must be between 1 and 10000")
		}
		f.Limit = n
	}
	if v := c.QueryParam("since"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "since must be RFC 3339")
		}
		f.Since = t
	}

	records, err := s.store.ListEvents(c.Request().Context(), f)
	if err != nil {
		s.log.Error("event history query failed", logger.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "event history query failed")
	}
	out := make([]EventView, 0, len(records))
	for _, r := range records {
		out = append(out, EventView{
			Identity:    r.Identity,
			StartRow:    r.StartRow,
			EndRow:      r.EndRow,
			Start:       r.BeginTime.UTC(),
			End:         r.EndTime.UTC(),
			FreqLo:      r.FreqLo,
			FreqHi:      r.FreqHi,
			Description: r.Description,
			Final:       r.Final,
			Source:      r.Source,
		})
	}
	return c.JSON(http.StatusOK, out)
}

func (s *Server) getDetectors(c echo.Context) error {
	if s.detectors == nil {
		return c.JSON(http.StatusOK, []detector.Status{})
	}
	return c.JSON(http.StatusOK, s.detectors.Status())
}

func (s *Server) getWaterfall(c echo.Context) error {
	if s.waterfall == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "waterfall not available")
	}
	w, h := s.config.SnapshotWidth, s.config.SnapshotHeight
	var err error
	if v := c.QueryParam("width"); v != "" {
		if w, err = strconv.Atoi(v); err != nil || w <= 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid width")
		}
	}
	if v := c.QueryParam("height"); v != "" {
		if h, err = strconv.Atoi(v); err != nil || h <= 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid height")
		}
	}
	if w*h > s.config.MaxSnapshotPixels {
		return echo.NewHTTPError(http.StatusBadRequest, "snapshot too large")
	}

	c.Response().Header().Set(echo.HeaderContentType, "image/png")
	c.Response().Header().Set("Cache-Control", "no-store")
	c.Response().WriteHeader(http.StatusOK)
	return s.waterfall.WritePNG(c.Response(), w, h)
}
