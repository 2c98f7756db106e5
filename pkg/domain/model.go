package domain

import "time"

type ModelStatus string

const (
	ModelHealthy  ModelStatus = "healthy"
	ModelWarning  ModelStatus = "warning"
	ModelCritical ModelStatus = "critical"
)

// ModelMetrics describes the deployed inference model as reported by the
// monitoring side.
type ModelMetrics struct {
	Accuracy    float64     `json:"accuracy"`
	DriftScore  float64     `json:"driftScore"`
	LastUpdated time.Time   `json:"lastUpdated"`
	Version     string      `json:"version"`
	Status      ModelStatus `json:"status"`
}
