// Package web serves the admin HTTP API for the deployment console.
package web

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"matrixconsole/internal/compose"
	"matrixconsole/internal/config"
	"matrixconsole/internal/schedule"
	"matrixconsole/internal/store"
	logx "matrixconsole/pkg/logx"
)

// Scheduler is the schedule surface the API exposes.
type Scheduler interface {
	Create(ctx context.Context, taskType, descriptor string, enabled bool) (string, error)
	Delete(ctx context.Context, id string) error
	List(ctx context.Context) ([]store.Record, []schedule.JobInfo, error)
}

// Compose is the deployment control surface.
type Compose interface {
	Ps(ctx context.Context) ([]compose.ServiceStatus, compose.Result, error)
	Pull(ctx context.Context, service string) (compose.Result, error)
	Action(ctx context.Context, action, service string) (compose.Result, error)
	Logs(ctx context.Context, service string, lines int) (compose.Result, error)
}

// Backup runs one backup cycle and returns the archive name.
type Backup interface {
	Run(ctx context.Context) (string, error)
}

// Repo updates the deployment's git checkout.
type Repo interface {
	Fetch(ctx context.Context) (compose.Result, error)
	Pull(ctx context.Context) (compose.Result, error)
}

type Server struct {
	cfg       config.HTTPConfig
	log       logx.Logger
	scheduler Scheduler
	compose   Compose
	backup    Backup
	repo      Repo
	settings  *settings

	loginLimiter *rate.Limiter

	httpSrv *http.Server
}

func New(cfg config.HTTPConfig, dep config.DeploymentConfig, sched Scheduler, comp Compose, bak Backup, rep Repo, log logx.Logger) *Server {
	if log.IsZero() {
		log = logx.Nop()
	}
	perMin := cfg.LoginRatePerMin
	if perMin <= 0 {
		perMin = 10
	}
	s := &Server{
		cfg:          cfg,
		log:          log,
		scheduler:    sched,
		compose:      comp,
		backup:       bak,
		repo:         rep,
		loginLimiter: rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMin)), perMin),
	}
	s.settings = &settings{
		envPath:        dep.EnvFile,
		homeserverPath: dep.HomeserverYAML,
		compose:        comp,
		log:            log,
	}
	return s
}

// Handler builds the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /login", s.handleLogin)
	mux.HandleFunc("POST /logout", s.handleLogout)

	mux.HandleFunc("GET /api/status", s.requireAuth(s.handleStatus))
	mux.HandleFunc("POST /api/update-repo", s.requireAuth(s.handleUpdateRepo))
	mux.HandleFunc("POST /api/update-images", s.requireAuth(s.handleUpdateImages))
	mux.HandleFunc("POST /api/service/{action}", s.requireAuth(s.handleServiceAction))
	mux.HandleFunc("GET /api/logs/{service}", s.requireAuth(s.handleLogs))
	mux.HandleFunc("POST /api/backup", s.requireAuth(s.handleBackup))
	mux.HandleFunc("GET /api/schedules", s.requireAuth(s.handleListSchedules))
	mux.HandleFunc("POST /api/schedules", s.requireAuth(s.handleAddSchedule))
	mux.HandleFunc("DELETE /api/schedules/{id}", s.requireAuth(s.handleDeleteSchedule))
	mux.HandleFunc("GET /api/config/server-settings", s.requireAuth(s.handleGetServerSettings))
	mux.HandleFunc("POST /api/config/server-settings", s.requireAuth(s.handleUpdateServerSettings))

	return mux
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	s.httpSrv = &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("http server listening", logx.String("addr", s.cfg.Addr))
		errCh <- s.httpSrv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.httpSrv.Shutdown(shutdownCtx)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if !s.loginLimiter.Allow() {
		writeJSON(w, http.StatusTooManyRequests, map[string]any{
			"success": false, "error": "Too many login attempts",
		})
		return
	}

	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid request body"})
		return
	}

	userOK := subtle.ConstantTimeCompare([]byte(req.Username), []byte(s.cfg.Username)) == 1
	passOK := subtle.ConstantTimeCompare([]byte(req.Password), []byte(s.cfg.Password)) == 1
	if !userOK || !passOK {
		s.log.Warn("failed login attempt", logx.String("username", req.Username))
		writeJSON(w, http.StatusUnauthorized, map[string]any{
			"success": false, "error": "Invalid credentials",
		})
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    signToken(req.Username, s.cfg.SecretKey),
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
	})
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
