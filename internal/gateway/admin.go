package gateway

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/academyops/academyd/internal/jobs"
	"github.com/academyops/academyd/internal/settings"
)

// settingsPatch is the admin-editable subset of the record. Run state and
// the lock are owned by the runner and never patched over HTTP.
type settingsPatch struct {
	AutoLeaveEnabled  *bool   `json:"autoLeaveEnabled"`
	AutoLeaveCron     *string `json:"autoLeaveCron"`
	AutoReportEnabled *bool   `json:"autoReportEnabled"`
	AutoReportCron    *string `json:"autoReportCron"`
	DryRun            *bool   `json:"dryRun"`
	Timezone          *string `json:"timezone"`
	RateLimitPerRun   *int    `json:"rateLimitPerRun"`
}

func (p settingsPatch) toPatch() settings.Patch {
	return settings.Patch{
		AutoLeaveEnabled:  p.AutoLeaveEnabled,
		AutoLeaveCron:     p.AutoLeaveCron,
		AutoReportEnabled: p.AutoReportEnabled,
		AutoReportCron:    p.AutoReportCron,
		DryRun:            p.DryRun,
		Timezone:          p.Timezone,
		RateLimitPerRun:   p.RateLimitPerRun,
	}
}

// runRequest is the optional body of POST /api/cron/jobs/{job}/run.
type runRequest struct {
	Now   string `json:"now"`
	Force bool   `json:"force"`
}

const maxBody = 64 << 10

func (g *Gateway) handleGetSettings() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cfg, err := g.settings.GetFresh(r.Context())
		if err != nil {
			g.logger.Error("gateway: settings read failed", "error", err)
			writeError(w, http.StatusInternalServerError, "settings unavailable")
			return
		}
		writeJSON(w, http.StatusOK, cfg)
	}
}

func (g *Gateway) handlePatchSettings() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body settingsPatch
		dec := json.NewDecoder(io.LimitReader(r.Body, maxBody))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
			return
		}

		patch := body.toPatch()
		if patch.Empty() {
			writeError(w, http.StatusBadRequest, "no settings fields provided")
			return
		}

		actor := actorOf(r)
		cfg, err := g.settings.Update(r.Context(), patch, actor)
		if err != nil {
			var verr *settings.ValidationError
			if errors.As(err, &verr) {
				writeJSON(w, http.StatusBadRequest, map[string]string{
					"error": verr.Error(),
					"field": verr.Field,
				})
				return
			}
			g.logger.Error("gateway: settings update failed", "actor", actor, "error", err)
			writeError(w, http.StatusInternalServerError, "settings update failed")
			return
		}

		g.audit.SettingsUpdated(actor, patch.Fields())
		g.logger.Info("gateway: settings updated", "actor", actor, "fields", patch.Fields())

		if g.scheduler != nil {
			if err := g.scheduler.Sync(r.Context()); err != nil {
				g.logger.Warn("gateway: scheduler sync failed", "error", err)
			}
		}
		writeJSON(w, http.StatusOK, cfg)
	}
}

func (g *Gateway) handleRunJob() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		job, err := jobs.ParseType(chi.URLParam(r, "job"))
		if err != nil {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}

		req, err := readRunRequest(r)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		run := jobs.Request{Job: job, Force: req.Force}
		if req.Now != "" {
			cfg, err := g.settings.Get(r.Context())
			if err != nil {
				g.logger.Error("gateway: settings read failed", "error", err)
				writeError(w, http.StatusInternalServerError, "settings unavailable")
				return
			}
			now, err := jobs.ParseNow(req.Now, cfg.Location())
			if err != nil {
				writeJSON(w, http.StatusBadRequest, map[string]string{
					"error": err.Error(),
					"field": "now",
				})
				return
			}
			run.Now = &now
		}

		res := g.runner.Run(r.Context(), run)
		writeJSON(w, http.StatusOK, res)
	}
}

// readRunRequest merges the JSON body with the now and force query
// parameters. Query values win.
func readRunRequest(r *http.Request) (runRequest, error) {
	var req runRequest
	if r.Body != nil && r.ContentLength != 0 {
		err := json.NewDecoder(io.LimitReader(r.Body, maxBody)).Decode(&req)
		if err != nil && !errors.Is(err, io.EOF) {
			return req, errors.New("invalid JSON body: " + err.Error())
		}
	}

	q := r.URL.Query()
	if v := strings.TrimSpace(q.Get("now")); v != "" {
		req.Now = v
	}
	if v := q.Get("force"); v != "" {
		force, err := strconv.ParseBool(v)
		if err != nil {
			return req, errors.New("invalid force value: " + v)
		}
		req.Force = force
	}
	return req, nil
}

type lockReleaseResponse struct {
	Released      bool       `json:"released"`
	PreviousOwner string     `json:"previousOwner,omitempty"`
	PreviousUntil *time.Time `json:"previousUntil,omitempty"`
}

func (g *Gateway) handleReleaseLock() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor := actorOf(r)
		prev, err := g.locks.ForceRelease(r.Context())
		if err != nil {
			g.logger.Error("gateway: lock release failed", "actor", actor, "error", err)
			writeError(w, http.StatusInternalServerError, "lock release failed")
			return
		}

		g.audit.LockReleaseForced(actor, prev.Owner)
		g.logger.Info("gateway: lock force-released", "actor", actor, "previous_owner", prev.Owner)

		writeJSON(w, http.StatusOK, lockReleaseResponse{
			Released:      prev.Held,
			PreviousOwner: prev.Owner,
			PreviousUntil: prev.Until,
		})
	}
}
