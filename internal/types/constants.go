package types

import (
	"os"
	"strings"
)

const ContextUserKey = "user"

// MaskedAPIKey replaces stored provider credentials in every response body.
const MaskedAPIKey = "sk-..."

// Workflow statuses
const (
	WorkflowStatusRunning   = "running"
	WorkflowStatusStopped   = "stopped"
	WorkflowStatusScheduled = "scheduled"
	WorkflowStatusError     = "error"
	WorkflowStatusCompleted = "completed"
)

// Workflow triggers
const (
	WorkflowTriggerManual    = "manual"
	WorkflowTriggerScheduled = "scheduled"
	WorkflowTriggerWebhook   = "webhook"
)

var (
	// Default allowed origins for development
	defaultOrigins = []string{
		"http://localhost:3000",
		"http://localhost:5173",
	}

	AllowedOrigins = initAllowedOrigins()
)

func initAllowedOrigins() []string {
	origins := make([]string, len(defaultOrigins))
	copy(origins, defaultOrigins)

	if clientURL := os.Getenv("CLIENT_URL"); clientURL != "" {
		origins = append(origins, clientURL)
	}

	if allowedOrigins := os.Getenv("ALLOWED_ORIGINS"); allowedOrigins != "" {
		envOrigins := strings.Split(allowedOrigins, ",")
		for _, origin := range envOrigins {
			trimmed := strings.TrimSpace(origin)
			if trimmed != "" {
				origins = append(origins, trimmed)
			}
		}
	}

	return origins
}

func ValidWorkflowStatus(status string) bool {
	switch status {
	case WorkflowStatusRunning, WorkflowStatusStopped, WorkflowStatusScheduled,
		WorkflowStatusError, WorkflowStatusCompleted:
		return true
	}
	return false
}

func ValidWorkflowTrigger(trigger string) bool {
	switch trigger {
	case WorkflowTriggerManual, WorkflowTriggerScheduled, WorkflowTriggerWebhook:
		return true
	}
	return false
}
