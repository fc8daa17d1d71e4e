package mqtt

import (
	"github.com/scanline/dsnscan/internal/analysis/processor"
)

// FrameResultDTO is the payload published for a frame result.
//
// Field names are part of the payload contract with UI consumers.
type FrameResultDTO struct {
	Instance         string       `json:"instance"`
	SessionID        string       `json:"sessionId"`
	FrameID          uint64       `json:"frameId"`
	Timestamp        string       `json:"timestamp"` // RFC3339 with milliseconds
	State            string       `json:"state"`
	EnvironmentScore float64      `json:"environmentScore"`
	Best             *ReadingDTO  `json:"best,omitempty"`
	Readings         []ReadingDTO `json:"readings"`
}

// ReadingDTO is one ranked reading in a FrameResultDTO
type ReadingDTO struct {
	Text                       string  `json:"text"`
	ComponentType              string  `json:"componentType"`
	Tier                       string  `json:"tier"`
	CompositeConfidence        float64 `json:"compositeConfidence"`
	RequiresManualVerification bool    `json:"requiresManualVerification"`
	Decision                   string  `json:"decision"`
	ThresholdUsed              float64 `json:"thresholdUsed"`
	Frames                     int     `json:"frames"`
}

// NewFrameResultDTO converts a frame result for publishing
func NewFrameResultDTO(instance string, r *processor.FrameResult) *FrameResultDTO {
	dto := &FrameResultDTO{
		Instance:         instance,
		SessionID:        r.SessionID,
		FrameID:          r.FrameID,
		Timestamp:        r.Timestamp.UTC().Format("2006-01-02T15:04:05.000Z07:00"),
		State:            string(r.State),
		EnvironmentScore: r.EnvironmentScore,
		Readings:         make([]ReadingDTO, 0, len(r.Readings)),
	}
	for i := range r.Readings {
		rd := &r.Readings[i]
		dto.Readings = append(dto.Readings, ReadingDTO{
			Text:                       rd.Text,
			ComponentType:              rd.ComponentType.String(),
			Tier:                       rd.Tier.String(),
			CompositeConfidence:        rd.CompositeConfidence,
			RequiresManualVerification: rd.RequiresManualVerification,
			Decision:                   string(rd.Decision),
			ThresholdUsed:              rd.ThresholdUsed,
			Frames:                     rd.Frames,
		})
	}
	if len(dto.Readings) > 0 {
		best := dto.Readings[0]
		dto.Best = &best
	}
	return dto
}
