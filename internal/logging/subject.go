package logging

import "strings"

// FormatSubject builds the lane/segment/stage subject string used in console output.
func FormatSubject(lane, segmentID, stage string) string {
	lane = strings.TrimSpace(lane)
	segmentID = strings.TrimSpace(segmentID)
	stage = strings.TrimSpace(stage)
	parts := make([]string, 0, 3)
	if lane != "" {
		var formattedLane string
		if len(lane) > 1 {
			formattedLane = strings.ToUpper(lane[:1]) + strings.ToLower(lane[1:])
		} else {
			formattedLane = strings.ToUpper(lane)
		}
		parts = append(parts, formattedLane)
	}
	switch {
	case segmentID != "" && stage != "":
		parts = append(parts, "Segment #"+segmentID+" ("+stage+")")
	case segmentID != "":
		parts = append(parts, "Segment #"+segmentID)
	case stage != "":
		parts = append(parts, stage)
	}
	return strings.Join(parts, " | ")
}
