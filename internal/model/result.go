package model

import "time"

type ResultStatus string

const (
	ResultSuccess ResultStatus = "success"
	ResultError   ResultStatus = "error"
)

type ChangeType string

const (
	ChangeCreate ChangeType = "create"
	ChangeUpdate ChangeType = "update"
	ChangeDelete ChangeType = "delete"
)

// FileChange is a single file mutation produced by the provider.
type FileChange struct {
	Path       string     `yaml:"path" json:"path"`
	ChangeType ChangeType `yaml:"change_type" json:"changeType"`
	Content    string     `yaml:"content" json:"content"`
	OldContent string     `yaml:"old_content,omitempty" json:"oldContent,omitempty"`
}

// ConversionResult is the outcome of executing one task.
type ConversionResult struct {
	TaskID string       `yaml:"task_id" json:"taskId"`
	Status ResultStatus `yaml:"status" json:"status"`
	Output string       `yaml:"output" json:"output"`
	Error  string       `yaml:"error,omitempty" json:"error,omitempty"`
	Files  []FileChange `yaml:"files,omitempty" json:"files,omitempty"`
}

// HistoryEntry records one file conversion for audit. History is append-only
// within a job run.
type HistoryEntry struct {
	ID               string    `yaml:"id" json:"id"`
	JobID            string    `yaml:"job_id" json:"jobId"`
	FilePath         string    `yaml:"file_path" json:"filePath"`
	OriginalContent  string    `yaml:"original_content" json:"originalContent"`
	ConvertedContent string    `yaml:"converted_content" json:"convertedContent"`
	ConversionType   TaskType  `yaml:"conversion_type" json:"conversionType"`
	Timestamp        time.Time `yaml:"timestamp" json:"timestamp"`
	Success          bool      `yaml:"success" json:"success"`
	Error            string    `yaml:"error,omitempty" json:"error,omitempty"`
}
