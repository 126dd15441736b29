package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Config is the console daemon's configuration file.
//
// JSON or YAML; unknown keys are rejected so typos fail loudly at startup
// instead of silently disabling a section.
type Config struct {
	HTTP       HTTPConfig       `json:"http"`
	Logging    LoggingConfig    `json:"logging"`
	Scheduler  SchedulerConfig  `json:"scheduler"`
	Store      StoreConfig      `json:"store"`
	Deployment DeploymentConfig `json:"deployment"`
	Backup     BackupConfig     `json:"backup,omitempty"`
}

// HTTPConfig controls the admin API listener and its session auth.
//
// SecretKey signs session cookies. Username/Password guard the login
// endpoint; LoginRatePerMin bounds brute-force attempts (default 10).
type HTTPConfig struct {
	Addr            string `json:"addr,omitempty"` // default ":5000"
	Username        string `json:"username"`
	Password        string `json:"password"`
	SecretKey       string `json:"secret_key"`
	LoginRatePerMin int    `json:"login_rate_per_min,omitempty"`
}

type LoggingConfig struct {
	Level    string `json:"level,omitempty"` // default "INFO"
	Console  *bool  `json:"console,omitempty"`
	FilePath string `json:"file_path,omitempty"` // empty disables the JSON file sink
}

// SchedulerConfig controls trigger behavior for recurring tasks.
type SchedulerConfig struct {
	Timezone string `json:"timezone,omitempty"` // IANA TZ, e.g. "Europe/Berlin"; default local
}

// StoreConfig controls schedule persistence.
//
// Example:
//
//	"store": { "driver": "file", "path": "/app/data/schedules.json" }
type StoreConfig struct {
	Driver      string `json:"driver,omitempty"` // "file" (default) or "sqlite"
	Path        string `json:"path"`
	BusyTimeout Duration `json:"busy_timeout,omitempty"` // sqlite only
}

// DeploymentConfig points at the docker compose project being managed.
type DeploymentConfig struct {
	ProjectDir     string `json:"project_dir"`
	EnvFile        string `json:"env_file,omitempty"`        // default <project_dir>/.env
	HomeserverYAML string `json:"homeserver_yaml,omitempty"` // default <project_dir>/synapse_data/homeserver.yaml
	CommandTimeout Duration `json:"command_timeout,omitempty"` // default "5m"
}

// BackupConfig controls the backup task. Without a bucket the archive
// stays on local disk.
type BackupConfig struct {
	DataDir           string `json:"data_dir,omitempty"` // default "synapse_data", relative to project_dir
	TmpDir            string `json:"tmp_dir,omitempty"`  // default os.TempDir()
	S3Bucket          string `json:"s3_bucket,omitempty"`
	S3Region          string `json:"s3_region,omitempty"` // default "us-east-1"
	S3AccessKeyID     string `json:"s3_access_key_id,omitempty"`
	S3SecretAccessKey string `json:"s3_secret_access_key,omitempty"`
}

// Normalize validates cross-field constraints and fills defaults.
func (c *Config) Normalize() error {
	if c == nil {
		return errors.New("config is nil")
	}
	if strings.TrimSpace(c.HTTP.Addr) == "" {
		c.HTTP.Addr = ":5000"
	}
	if strings.TrimSpace(c.HTTP.Username) == "" || strings.TrimSpace(c.HTTP.Password) == "" {
		return errors.New("http.username and http.password are required")
	}
	if strings.TrimSpace(c.HTTP.SecretKey) == "" {
		return errors.New("http.secret_key is required")
	}
	if c.HTTP.LoginRatePerMin <= 0 {
		c.HTTP.LoginRatePerMin = 10
	}
	if strings.TrimSpace(c.Logging.Level) == "" {
		c.Logging.Level = "INFO"
	}
	if strings.TrimSpace(c.Store.Path) == "" {
		return errors.New("store.path is required")
	}
	if err := c.Store.BusyTimeout.validate("store.busy_timeout"); err != nil {
		return err
	}
	if strings.TrimSpace(c.Deployment.ProjectDir) == "" {
		return errors.New("deployment.project_dir is required")
	}
	if err := c.Deployment.CommandTimeout.validate("deployment.command_timeout"); err != nil {
		return err
	}
	if strings.TrimSpace(c.Deployment.EnvFile) == "" {
		c.Deployment.EnvFile = filepath.Join(c.Deployment.ProjectDir, ".env")
	}
	if strings.TrimSpace(c.Deployment.HomeserverYAML) == "" {
		c.Deployment.HomeserverYAML = filepath.Join(c.Deployment.ProjectDir, "synapse_data", "homeserver.yaml")
	}
	if strings.TrimSpace(c.Backup.DataDir) == "" {
		c.Backup.DataDir = filepath.Join(c.Deployment.ProjectDir, "synapse_data")
	}
	if strings.TrimSpace(c.Backup.TmpDir) == "" {
		c.Backup.TmpDir = os.TempDir()
	}
	if strings.TrimSpace(c.Backup.S3Region) == "" {
		c.Backup.S3Region = "us-east-1"
	}
	if c.Scheduler.Timezone != "" {
		if _, err := time.LoadLocation(strings.TrimSpace(c.Scheduler.Timezone)); err != nil {
			return errors.New("scheduler.timezone: unknown IANA zone " + c.Scheduler.Timezone)
		}
	}
	return nil
}

// ConsoleEnabled reports the effective console sink flag (default on).
func (l LoggingConfig) ConsoleEnabled() bool {
	if l.Console == nil {
		return true
	}
	return *l.Console
}
