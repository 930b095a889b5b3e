// Package model defines the data structures for restack's conversion plans,
// tasks, results, jobs, and configuration.
package model

import (
	"fmt"
	"time"
)

type TaskType string

const (
	TaskTypeAnalysis         TaskType = "analysis"
	TaskTypeCodeGeneration   TaskType = "code_generation"
	TaskTypeDependencyUpdate TaskType = "dependency_update"
	TaskTypeConfigUpdate     TaskType = "config_update"
	TaskTypeValidation       TaskType = "validation"
	TaskTypeIntegration      TaskType = "integration"
)

var validTaskTypes = map[TaskType]bool{
	TaskTypeAnalysis:         true,
	TaskTypeCodeGeneration:   true,
	TaskTypeDependencyUpdate: true,
	TaskTypeConfigUpdate:     true,
	TaskTypeValidation:       true,
	TaskTypeIntegration:      true,
}

func ValidateTaskType(t TaskType) error {
	if !validTaskTypes[t] {
		return fmt.Errorf("unknown task type %q", t)
	}
	return nil
}

type Complexity string

const (
	ComplexityLow    Complexity = "low"
	ComplexityMedium Complexity = "medium"
	ComplexityHigh   Complexity = "high"
)

// ConversionTask is one atomic unit of conversion work. Tasks are created by
// an external planning step and are read-only inputs to the orchestrator
// except for Status.
type ConversionTask struct {
	ID                string        `yaml:"id" json:"id"`
	Type              TaskType      `yaml:"type" json:"type"`
	Description       string        `yaml:"description" json:"description"`
	InputFiles        []string      `yaml:"input_files" json:"inputFiles"`
	OutputFiles       []string      `yaml:"output_files" json:"outputFiles"`
	Dependencies      []string      `yaml:"dependencies" json:"dependencies"`
	Priority          int           `yaml:"priority" json:"priority"`
	Status            TaskStatus    `yaml:"status" json:"status"`
	EstimatedDuration time.Duration `yaml:"estimated_duration" json:"estimatedDuration"`
}

// ConversionPlan is an ordered set of tasks describing how to transform a
// project from a source to a target technology stack.
type ConversionPlan struct {
	ID                string            `yaml:"id" json:"id"`
	ProjectID         string            `yaml:"project_id" json:"projectId"`
	Tasks             []*ConversionTask `yaml:"tasks" json:"tasks"`
	EstimatedDuration time.Duration     `yaml:"estimated_duration" json:"estimatedDuration"`
	Complexity        Complexity        `yaml:"complexity" json:"complexity"`
	Warnings          []string          `yaml:"warnings" json:"warnings"`
	Feasible          bool              `yaml:"feasible" json:"feasible"`
	CreatedAt         time.Time         `yaml:"created_at" json:"createdAt"`
	UpdatedAt         time.Time         `yaml:"updated_at" json:"updatedAt"`
}

// Task returns the task with the given ID, or nil.
func (p *ConversionPlan) Task(id string) *ConversionTask {
	for _, t := range p.Tasks {
		if t.ID == id {
			return t
		}
	}
	return nil
}

// StackDescriptor identifies a technology stack on either side of a
// conversion.
type StackDescriptor struct {
	Language       string `yaml:"language" json:"language"`
	Framework      string `yaml:"framework,omitempty" json:"framework,omitempty"`
	Version        string `yaml:"version,omitempty" json:"version,omitempty"`
	PackageManager string `yaml:"package_manager,omitempty" json:"packageManager,omitempty"`
}

func (s StackDescriptor) String() string {
	if s.Framework != "" {
		return s.Language + "/" + s.Framework
	}
	return s.Language
}
