package storage

import "time"

const (
	ContentTypeJSON     = "application/json"
	ContentTypeMarkdown = "text/markdown; charset=utf-8"
)

// Document is one stored report artifact, addressed by key
// ("<industry>/<section>.json").
type Document struct {
	Key         string    `json:"key" gorm:"primaryKey;column:key"`
	ContentType string    `json:"contentType" gorm:"column:content_type"`
	Body        []byte    `json:"body" gorm:"column:body"`
	UpdatedAt   time.Time `json:"updatedAt" gorm:"column:updated_at"`
}

func (Document) TableName() string { return "documents" }

// Run progress statuses.
const (
	RunPending = "pending"
	RunDone    = "done"
	RunFailed  = "failed"
)

// RunProgress tracks one country of a full tariff regeneration run.
type RunProgress struct {
	RunID     string    `json:"runId" gorm:"primaryKey;column:run_id"`
	Country   string    `json:"country" gorm:"primaryKey;column:country"`
	Industry  string    `json:"industry" gorm:"column:industry"`
	Status    string    `json:"status" gorm:"column:status"`
	Error     string    `json:"error,omitempty" gorm:"column:error"`
	Attempts  int       `json:"attempts" gorm:"column:attempts"`
	UpdatedAt time.Time `json:"updatedAt" gorm:"column:updated_at"`
}

func (RunProgress) TableName() string { return "run_progress" }

type Setting struct {
	Key       string    `gorm:"primaryKey;column:key"`
	Value     string    `gorm:"column:value"`
	UpdatedAt time.Time `gorm:"column:updated_at"`
}

func (Setting) TableName() string { return "settings" }

type ScheduledJob struct {
	Name           string    `json:"name" gorm:"primaryKey;column:name"`
	LastRunAt      time.Time `json:"lastRunAt" gorm:"column:last_run_at"`
	LastDurationMs int64     `json:"lastDurationMs" gorm:"column:last_duration_ms"`
	LastSuccess    int       `json:"lastSuccess" gorm:"column:last_success"`
	LastError      string    `json:"lastError,omitempty" gorm:"column:last_error"`
}

func (ScheduledJob) TableName() string { return "scheduled_jobs" }
