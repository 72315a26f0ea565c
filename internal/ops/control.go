package ops

import (
	"encoding/json"
	"os"

	"github.com/yanun0323/logs"
)

const defaultMinConfidence = 85

// Controls is the operator-writable state: a stop flag and the minimum
// confidence a signal must reach. Written by the operator UI, read-only
// here.
type Controls struct {
	Stop          bool
	MinConfidence int
}

// ControlFiles polls the two JSON flag files the operator UI writes.
// Missing or unreadable files fall back to permissive defaults; the
// scheduler loads once per cycle, so operator changes take effect on the
// next cycle.
type ControlFiles struct {
	stopPath       string
	confidencePath string
}

// NewControlFiles points the provider at the flag files.
func NewControlFiles(stopPath, confidencePath string) *ControlFiles {
	return &ControlFiles{stopPath: stopPath, confidencePath: confidencePath}
}

type stopFile struct {
	Stop bool `json:"stop"`
}

type confidenceFile struct {
	Confidence int `json:"confidence"`
}

// Load reads both flags.
func (c *ControlFiles) Load() Controls {
	out := Controls{Stop: false, MinConfidence: defaultMinConfidence}

	if data, err := os.ReadFile(c.stopPath); err == nil {
		var parsed stopFile
		if err := json.Unmarshal(data, &parsed); err != nil {
			logs.Errorf("parse stop flag %s, err: %+v", c.stopPath, err)
		} else {
			out.Stop = parsed.Stop
		}
	}

	if data, err := os.ReadFile(c.confidencePath); err == nil {
		var parsed confidenceFile
		if err := json.Unmarshal(data, &parsed); err != nil {
			logs.Errorf("parse confidence %s, err: %+v", c.confidencePath, err)
		} else if parsed.Confidence >= 0 && parsed.Confidence <= 100 {
			out.MinConfidence = parsed.Confidence
		}
	}

	return out
}
