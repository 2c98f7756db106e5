package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func stageLabel(status string) string {
	switch status {
	case "UPLOADING":
		return "Uploading image"
	case "PROCESSING":
		return "Running inference"
	case "COMPLETED":
		return "Completed"
	case "FAILED":
		return "Failed"
	default:
		return status
	}
}

func summary(r result) string {
	if r.Status == "FAILED" {
		return "failed: " + r.Error
	}
	if len(r.Predictions) == 0 {
		return strings.ToLower(r.Status)
	}
	top := r.Predictions[0]
	return fmt.Sprintf("%s (%.1f%%)", top.Label, top.Confidence*100)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func barWidth() int {
	w := termWidth(80) / 4
	if w < 10 {
		return 10
	}
	if w > 40 {
		return 40
	}
	return w
}

// confidenceBar renders c in [0,1] as a fixed-width bar; out-of-range
// values are clamped for display only.
func confidenceBar(c float64, width int) string {
	if c < 0 {
		c = 0
	}
	if c > 1 {
		c = 1
	}
	filled := int(c*float64(width) + 0.5)
	return strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
}

func printResult(r result, ui *ui) {
	status := ui.info(r.Status)
	switch r.Status {
	case "COMPLETED":
		status = ui.ok(r.Status)
	case "FAILED":
		status = ui.err(r.Status)
	}
	fmt.Printf("%s %s\n", ui.title(r.FileName), ui.dim(r.ID))
	fmt.Printf("  status:  %s\n", status)
	if r.ImageURL != "" {
		fmt.Printf("  image:   %s\n", r.ImageURL)
	}
	if r.ProcessingTime != nil {
		fmt.Printf("  time:    %dms\n", *r.ProcessingTime)
	}
	if r.Error != "" {
		fmt.Printf("  error:   %s\n", ui.err(r.Error))
	}
	for i, p := range r.Predictions {
		fmt.Printf("  %d. %-28s %s %5.1f%%\n", i+1, p.Label, confidenceBar(p.Confidence, barWidth()), p.Confidence*100)
	}
}

func printModel(m modelMetrics, ui *ui) {
	status := ui.ok(m.Status)
	switch m.Status {
	case "warning":
		status = ui.warn(m.Status)
	case "critical":
		status = ui.err(m.Status)
	}
	fmt.Printf("%s %s\n", ui.title("model"), m.Version)
	fmt.Printf("  status:      %s\n", status)
	fmt.Printf("  accuracy:    %.1f%%\n", m.Accuracy*100)
	fmt.Printf("  drift score: %.3f\n", m.DriftScore)
	if !m.LastUpdated.IsZero() {
		fmt.Printf("  updated:     %s\n", m.LastUpdated.Local().Format("2006-01-02 15:04"))
	}
}
