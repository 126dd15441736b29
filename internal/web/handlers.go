package web

import (
	"encoding/json"
	"net/http"
	"strconv"

	"matrixconsole/internal/schedule"
	logx "matrixconsole/pkg/logx"
)

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	services, res, err := s.compose.Ps(r.Context())
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": err.Error()})
		return
	}
	if !res.Success() {
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": res.Stderr})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"services": services})
}

func (s *Server) handleUpdateRepo(w http.ResponseWriter, r *http.Request) {
	s.log.Info("pulling latest repository changes")

	fetch, err := s.repo.Fetch(r.Context())
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]any{"success": false, "error": err.Error()})
		return
	}
	if !fetch.Success() {
		writeJSON(w, http.StatusInternalServerError, map[string]any{
			"success": false,
			"error":   "Git fetch failed: " + fetch.Stderr,
		})
		return
	}

	pull, err := s.repo.Pull(r.Context())
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]any{"success": false, "error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": pull.Success(),
		"output":  pull.Combined(),
	})
}

func (s *Server) handleUpdateImages(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Service string `json:"service"`
	}
	_ = json.NewDecoder(r.Body).Decode(&req)

	s.log.Info("pulling images", logx.String("service", orAll(req.Service)))

	res, err := s.compose.Pull(r.Context(), req.Service)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"success": false, "error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": res.Success(),
		"output":  res.Combined(),
	})
}

func (s *Server) handleServiceAction(w http.ResponseWriter, r *http.Request) {
	action := r.PathValue("action")
	var req struct {
		Service string `json:"service"`
	}
	_ = json.NewDecoder(r.Body).Decode(&req)

	switch action {
	case "start", "stop", "restart":
	default:
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "Invalid action"})
		return
	}

	s.log.Info("service action",
		logx.String("action", action), logx.String("service", orAll(req.Service)))

	res, err := s.compose.Action(r.Context(), action, req.Service)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"success": false, "error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": res.Success(),
		"output":  res.Combined(),
	})
}

func (s *Server) handleLogs(w http.ResponseWriter, r *http.Request) {
	service := r.PathValue("service")
	lines, _ := strconv.Atoi(r.URL.Query().Get("lines"))

	res, err := s.compose.Logs(r.Context(), service, lines)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"success": false, "error": err.Error()})
		return
	}
	out := res.Stdout
	if !res.Success() {
		out = res.Stderr
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": res.Success(), "logs": out})
}

func (s *Server) handleBackup(w http.ResponseWriter, r *http.Request) {
	s.log.Info("backup requested")
	name, err := s.backup.Run(r.Context())
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]any{
			"success": false, "error": err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "archive": name})
}

type activeJob struct {
	ID      string  `json:"id"`
	Name    string  `json:"name"`
	NextRun *string `json:"next_run"`
}

func (s *Server) handleListSchedules(w http.ResponseWriter, r *http.Request) {
	records, jobs, err := s.scheduler.List(r.Context())
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": err.Error()})
		return
	}
	active := make([]activeJob, 0, len(jobs))
	for _, j := range jobs {
		aj := activeJob{ID: j.ID, Name: j.Name}
		if !j.Next.IsZero() {
			next := j.Next.Format("2006-01-02T15:04:05-07:00")
			aj.NextRun = &next
		}
		active = append(active, aj)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"schedules":   records,
		"active_jobs": active,
	})
}

func (s *Server) handleAddSchedule(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Type     string `json:"type"`
		Schedule string `json:"schedule"`
		Enabled  *bool  `json:"enabled"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid request body"})
		return
	}
	enabled := req.Enabled == nil || *req.Enabled

	id, err := s.scheduler.Create(r.Context(), req.Type, req.Schedule, enabled)
	switch {
	case schedule.IsValidation(err):
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": err.Error()})
		return
	case schedule.IsPersistence(err):
		// The job is live in memory; the caller only needs to know the
		// record may be gone after a restart.
		writeJSON(w, http.StatusOK, map[string]any{
			"success":     true,
			"schedule_id": id,
			"warning":     "schedule active but may not be durable",
		})
		return
	case err != nil:
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "schedule_id": id})
}

func (s *Server) handleDeleteSchedule(w http.ResponseWriter, r *http.Request) {
	if err := s.scheduler.Delete(r.Context(), r.PathValue("id")); err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (s *Server) handleGetServerSettings(w http.ResponseWriter, r *http.Request) {
	view, err := s.settings.read()
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "settings": view})
}

func (s *Server) handleUpdateServerSettings(w http.ResponseWriter, r *http.Request) {
	var req settingsUpdate
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid request body"})
		return
	}
	if req.EnableRegistration == nil && req.EnableFederation == nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "No settings provided"})
		return
	}

	if err := s.settings.apply(req); err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": err.Error()})
		return
	}

	res, err := s.settings.restartSynapse(r.Context())
	if err != nil || !res.Success() {
		detail := res.Stderr
		if err != nil {
			detail = err.Error()
		}
		writeJSON(w, http.StatusInternalServerError, map[string]any{
			"success": false,
			"warning": "settings updated but synapse restart failed, restart manually",
			"error":   detail,
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Settings updated successfully. Synapse is restarting...",
	})
}

func orAll(service string) string {
	if service == "" {
		return "all"
	}
	return service
}
