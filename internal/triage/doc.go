// Package triage provides the business boundary for intake's legal request triage.
// It defines the routing document model, validation, rule ordering and system prompt
// rendering (pure engine), the ConfigStore (single-writer read-modify-write over a
// Store backend), and the Service that translates failures for the API layer.
package triage
