package http

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/tikusl4ju/myinvoice-sync/internal/application/scheduler"
)

// SchedulerHandler dispara pasadas a mano y muestra su estado.
type SchedulerHandler struct {
	sched *scheduler.Scheduler
	sw    scheduler.Switch
}

// NewSchedulerHandler construye el handler.
func NewSchedulerHandler(sched *scheduler.Scheduler, sw scheduler.Switch) *SchedulerHandler {
	return &SchedulerHandler{sched: sched, sw: sw}
}

type passStatus struct {
	Pass    string     `json:"pass"`
	LastRun *time.Time `json:"last_run,omitempty"`
}

type schedulerStatus struct {
	Enabled    bool         `json:"enabled"`
	IntervalS  float64      `json:"interval_seconds"`
	SyncBatch  int          `json:"sync_batch"`
	RetryBatch int          `json:"retry_batch"`
	QueueBatch int          `json:"queue_batch"`
	RetryCap   int          `json:"retry_cap"`
	Passes     []passStatus `json:"passes"`
}

// Status devuelve la configuración efectiva y la última ejecución de cada pasada.
// GET /api/scheduler
func (h *SchedulerHandler) Status(c *fiber.Ctx) error {
	enabled, err := h.sw.SchedulerEnabled(c.Context())
	if err != nil {
		return writeError(c, err)
	}
	cfg := h.sched.Config()
	last := h.sched.LastRuns()
	out := schedulerStatus{
		Enabled:    enabled,
		IntervalS:  cfg.Interval.Seconds(),
		SyncBatch:  cfg.SyncBatch,
		RetryBatch: cfg.RetryBatch,
		QueueBatch: cfg.QueueBatch,
		RetryCap:   cfg.RetryCap,
	}
	for _, p := range scheduler.Passes {
		ps := passStatus{Pass: p}
		if t, ok := last[p]; ok {
			ps.LastRun = &t
		}
		out.Passes = append(out.Passes, ps)
	}
	return c.JSON(out)
}

// RunPass corre una pasada ahora. Respeta el interruptor y el lock de la pasada.
// POST /api/scheduler/passes/:name/run
func (h *SchedulerHandler) RunPass(c *fiber.Ctx) error {
	res, err := h.sched.RunPass(c.Context(), c.Params("name"))
	if err != nil {
		return writeError(c, err)
	}
	if res.NotRun != "" {
		return c.Status(fiber.StatusAccepted).JSON(res)
	}
	return c.JSON(res)
}
