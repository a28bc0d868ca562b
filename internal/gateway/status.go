package gateway

import (
	"net/http"
	"time"

	"github.com/academyops/academyd/internal/cron"
	"github.com/academyops/academyd/internal/lock"
	"github.com/academyops/academyd/internal/settings"
)

// StatusResponse is the JSON response for GET /status.
type StatusResponse struct {
	Uptime    int64                 `json:"uptime_seconds"`
	Lock      lock.State            `json:"lock"`
	Scheduler []cron.Entry          `json:"scheduler"`
	Settings  settings.CronSettings `json:"settings"`
}

func (g *Gateway) handleStatus() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cfg, err := g.settings.GetFresh(r.Context())
		if err != nil {
			g.logger.Error("gateway: status settings read failed", "error", err)
			writeError(w, http.StatusInternalServerError, "settings unavailable")
			return
		}
		st, err := g.locks.State(r.Context())
		if err != nil {
			g.logger.Error("gateway: status lock read failed", "error", err)
			writeError(w, http.StatusInternalServerError, "lock state unavailable")
			return
		}

		resp := StatusResponse{
			Uptime:    int64(time.Since(g.startedAt).Seconds()),
			Lock:      st,
			Scheduler: []cron.Entry{},
			Settings:  cfg,
		}
		if g.scheduler != nil {
			resp.Scheduler = g.scheduler.Entries()
		}
		writeJSON(w, http.StatusOK, resp)
	}
}
