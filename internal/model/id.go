package model

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

type IDType string

const (
	IDTypeJob     IDType = "job"
	IDTypePlan    IDType = "plan"
	IDTypeTask    IDType = "task"
	IDTypeHistory IDType = "hist"
)

var validIDTypes = map[IDType]bool{
	IDTypeJob:     true,
	IDTypePlan:    true,
	IDTypeTask:    true,
	IDTypeHistory: true,
}

var idRegex = regexp.MustCompile(`^(job|plan|task|hist)_[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}$`)

// NewID generates a typed identifier, e.g. "job_9f1c...".
func NewID(idType IDType) (string, error) {
	if !validIDTypes[idType] {
		return "", fmt.Errorf("invalid ID type: %s", idType)
	}
	return fmt.Sprintf("%s_%s", idType, uuid.NewString()), nil
}

func ValidateID(id string) bool {
	return idRegex.MatchString(id)
}

func ParseIDType(id string) (IDType, error) {
	if !ValidateID(id) {
		return "", fmt.Errorf("invalid ID format: %s", id)
	}
	prefix, _, _ := strings.Cut(id, "_")
	return IDType(prefix), nil
}
