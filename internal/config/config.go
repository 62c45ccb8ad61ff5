package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/kiracore/leadcycle/internal/jira"
	"github.com/kiracore/leadcycle/internal/metrics"
	"github.com/kiracore/leadcycle/internal/report"
)

// CurrentVersion is the config schema version written by init
const CurrentVersion = "1"

// ValidationError represents a configuration validation error
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationResult holds all validation errors
type ValidationResult struct {
	Errors   []ValidationError
	Warnings []ValidationError
}

func (r *ValidationResult) AddError(field, message string) {
	r.Errors = append(r.Errors, ValidationError{Field: field, Message: message})
}

func (r *ValidationResult) AddWarning(field, message string) {
	r.Warnings = append(r.Warnings, ValidationError{Field: field, Message: message})
}

func (r *ValidationResult) IsValid() bool {
	return len(r.Errors) == 0
}

func (r *ValidationResult) HasWarnings() bool {
	return len(r.Warnings) > 0
}

// Err joins all validation errors into one, or returns nil
func (r *ValidationResult) Err() error {
	if r.IsValid() {
		return nil
	}
	msgs := make([]string, len(r.Errors))
	for i, e := range r.Errors {
		msgs[i] = e.Error()
	}
	return fmt.Errorf("invalid configuration: %s", strings.Join(msgs, "; "))
}

// Config is the complete leadcycle configuration
type Config struct {
	Version  string         `mapstructure:"version" yaml:"version" json:"version"`
	Jira     JiraConfig     `mapstructure:"jira" yaml:"jira" json:"jira"`
	Query    QueryConfig    `mapstructure:"query" yaml:"query" json:"query"`
	Workflow WorkflowConfig `mapstructure:"workflow" yaml:"workflow" json:"workflow"`
	Report   ReportConfig   `mapstructure:"report" yaml:"report" json:"report"`
	History  HistoryConfig  `mapstructure:"history" yaml:"history" json:"history"`
	Log      LogConfig      `mapstructure:"log" yaml:"log" json:"log"`
}

// JiraConfig holds connection settings for the Jira instance
type JiraConfig struct {
	URL      string        `mapstructure:"url" yaml:"url" json:"url"`
	Username string        `mapstructure:"username" yaml:"username" json:"username"`
	Token    string        `mapstructure:"token" yaml:"token,omitempty" json:"token,omitempty"`
	Timeout  time.Duration `mapstructure:"timeout" yaml:"timeout" json:"timeout"`
	Retries  int           `mapstructure:"retries" yaml:"retries" json:"retries"`
	PageSize int           `mapstructure:"page_size" yaml:"page_size" json:"page_size"`
}

// QueryConfig selects which tickets a report covers
type QueryConfig struct {
	Project    string   `mapstructure:"project" yaml:"project" json:"project"`
	Statuses   []string `mapstructure:"statuses" yaml:"statuses" json:"statuses"`
	IssueTypes []string `mapstructure:"issue_types" yaml:"issue_types" json:"issue_types"`
	DateField  string   `mapstructure:"date_field" yaml:"date_field" json:"date_field"`
	OrderBy    string   `mapstructure:"order_by" yaml:"order_by" json:"order_by"`
}

// WorkflowConfig names the states that start and finish work
type WorkflowConfig struct {
	StartState         string `mapstructure:"start_state" yaml:"start_state" json:"start_state"`
	DoneState          string `mapstructure:"done_state" yaml:"done_state" json:"done_state"`
	DivideByQualifying bool   `mapstructure:"divide_by_qualifying" yaml:"divide_by_qualifying" json:"divide_by_qualifying"`
}

// ReportConfig controls the CSV report
type ReportConfig struct {
	Output string   `mapstructure:"output" yaml:"output" json:"output"`
	Fields []string `mapstructure:"fields" yaml:"fields" json:"fields"`
}

// HistoryConfig controls the local run history store
type HistoryConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled" json:"enabled"`
	Path    string `mapstructure:"path" yaml:"path,omitempty" json:"path,omitempty"`
}

// LogConfig controls diagnostic logging
type LogConfig struct {
	Level string `mapstructure:"level" yaml:"level" json:"level"`
}

// Default returns a configuration with every optional setting filled in
func Default() *Config {
	q := jira.DefaultQuery("")
	return &Config{
		Version: CurrentVersion,
		Jira: JiraConfig{
			Timeout:  jira.DefaultTimeout,
			PageSize: jira.DefaultPageSize,
		},
		Query: QueryConfig{
			Statuses:   q.Statuses,
			IssueTypes: q.IssueTypes,
			DateField:  q.DateField,
			OrderBy:    q.OrderBy,
		},
		Workflow: WorkflowConfig{
			StartState: metrics.DefaultStartLabel,
			DoneState:  metrics.DefaultDoneLabel,
		},
		Report: ReportConfig{
			Output: report.DefaultFileName,
			Fields: append([]string(nil), report.DefaultFields...),
		},
		History: HistoryConfig{Enabled: true},
		Log:     LogConfig{Level: "info"},
	}
}

// SetDefaults registers every key with v so environment overrides reach Unmarshal
func SetDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault("version", d.Version)
	v.SetDefault("jira.url", "")
	v.SetDefault("jira.username", "")
	v.SetDefault("jira.token", "")
	v.SetDefault("jira.timeout", d.Jira.Timeout)
	v.SetDefault("jira.retries", d.Jira.Retries)
	v.SetDefault("jira.page_size", d.Jira.PageSize)
	v.SetDefault("query.project", "")
	v.SetDefault("query.statuses", d.Query.Statuses)
	v.SetDefault("query.issue_types", d.Query.IssueTypes)
	v.SetDefault("query.date_field", d.Query.DateField)
	v.SetDefault("query.order_by", d.Query.OrderBy)
	v.SetDefault("workflow.start_state", d.Workflow.StartState)
	v.SetDefault("workflow.done_state", d.Workflow.DoneState)
	v.SetDefault("workflow.divide_by_qualifying", d.Workflow.DivideByQualifying)
	v.SetDefault("report.output", d.Report.Output)
	v.SetDefault("report.fields", d.Report.Fields)
	v.SetDefault("history.enabled", d.History.Enabled)
	v.SetDefault("history.path", "")
	v.SetDefault("log.level", d.Log.Level)
}

// Load loads configuration from the global viper instance
func Load() (*Config, error) {
	return LoadFrom(viper.GetViper())
}

// LoadFrom loads configuration from v on top of the defaults
func LoadFrom(v *viper.Viper) (*Config, error) {
	cfg := Default()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}

// LoadFromFile loads configuration from a yaml file on top of the defaults
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return cfg, nil
}

// Marshal renders the configuration as yaml
func (c *Config) Marshal() ([]byte, error) {
	return yaml.Marshal(c)
}

// Redacted returns a copy safe to print
func (c *Config) Redacted() *Config {
	cp := *c
	if cp.Jira.Token != "" {
		cp.Jira.Token = "********"
	}
	return &cp
}

var logLevels = map[string]bool{"debug": true, "info": true, "warn": true, "error": true}

// Validate validates the configuration
func (c *Config) Validate() *ValidationResult {
	result := &ValidationResult{}

	// Version check
	if c.Version == "" {
		result.AddWarning("version", "version not specified, assuming v1")
	} else if c.Version != CurrentVersion {
		result.AddWarning("version", fmt.Sprintf("unknown version %q, expected %q", c.Version, CurrentVersion))
	}

	c.validateJira(result)
	c.validateQuery(result)
	c.validateWorkflow(result)
	c.validateReport(result)

	if !logLevels[strings.ToLower(c.Log.Level)] {
		result.AddError("log.level", fmt.Sprintf("invalid level %q (debug, info, warn, error)", c.Log.Level))
	}

	return result
}

func (c *Config) validateJira(result *ValidationResult) {
	if c.Jira.URL == "" {
		result.AddError("jira.url", "jira URL is required")
	} else if u, err := url.Parse(c.Jira.URL); err != nil || u.Host == "" || (u.Scheme != "https" && u.Scheme != "http") {
		result.AddError("jira.url", fmt.Sprintf("invalid URL %q", c.Jira.URL))
	} else if u.Scheme == "http" {
		result.AddWarning("jira.url", "credentials will be sent over plain http")
	}

	if c.Jira.Username == "" {
		result.AddWarning("jira.username", "username not set, expected from LEADCYCLE_JIRA_USERNAME")
	}
	if c.Jira.Token == "" {
		result.AddWarning("jira.token", "token not set, expected from LEADCYCLE_JIRA_TOKEN")
	}

	if c.Jira.Timeout <= 0 {
		result.AddError("jira.timeout", "timeout must be positive")
	}
	if c.Jira.Retries < 0 {
		result.AddError("jira.retries", "retries must not be negative")
	} else if c.Jira.Retries > 10 {
		result.AddWarning("jira.retries", "more than 10 retries can stall a run for minutes")
	}

	if c.Jira.PageSize < 1 {
		result.AddError("jira.page_size", "page size must be at least 1")
	} else if c.Jira.PageSize > 100 {
		result.AddWarning("jira.page_size", "Jira caps search pages at 100 records")
	}
}

func (c *Config) validateQuery(result *ValidationResult) {
	if c.Query.Project == "" {
		result.AddError("query.project", "project key is required")
	}
	if len(c.Query.Statuses) == 0 {
		result.AddWarning("query.statuses", "no status filter, every resolved ticket is included")
	}
	if len(c.Query.IssueTypes) == 0 {
		result.AddWarning("query.issue_types", "no issue type filter, sub-tasks and epics are included")
	}
	for i, s := range c.Query.Statuses {
		if strings.TrimSpace(s) == "" {
			result.AddError(fmt.Sprintf("query.statuses[%d]", i), "empty status")
		}
	}
	for i, s := range c.Query.IssueTypes {
		if strings.TrimSpace(s) == "" {
			result.AddError(fmt.Sprintf("query.issue_types[%d]", i), "empty issue type")
		}
	}
	if c.Query.DateField == "" {
		result.AddWarning("query.date_field", "date field not specified, will use resolved")
	}
}

func (c *Config) validateWorkflow(result *ValidationResult) {
	if c.Workflow.StartState == "" {
		result.AddError("workflow.start_state", "start state is required")
	}
	if c.Workflow.DoneState == "" {
		result.AddError("workflow.done_state", "done state is required")
	}
	if c.Workflow.StartState != "" && c.Workflow.StartState == c.Workflow.DoneState {
		result.AddError("workflow", "start and done states are the same")
	}
}

func (c *Config) validateReport(result *ValidationResult) {
	if c.Report.Output == "" {
		result.AddError("report.output", "output file is required")
	}
	if len(c.Report.Fields) == 0 {
		result.AddWarning("report.fields", "no fields configured, default columns will be used")
	}

	seen := make(map[string]bool)
	for i, f := range c.Report.Fields {
		field := fmt.Sprintf("report.fields[%d]", i)
		if f == "" || strings.HasPrefix(f, ".") || strings.HasSuffix(f, ".") || strings.Contains(f, "..") {
			result.AddError(field, fmt.Sprintf("invalid field path %q", f))
			continue
		}
		if seen[f] {
			result.AddWarning(field, fmt.Sprintf("duplicate field %q", f))
		}
		seen[f] = true
	}
}
