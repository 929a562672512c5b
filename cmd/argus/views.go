package main

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"argus/internal/api"
)

func buildQueueStatusRows(stats map[string]int) [][]string {
	if len(stats) == 0 {
		return nil
	}
	keys := make([]string, 0, len(stats))
	for key := range stats {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	rows := make([][]string, 0, len(keys))
	for _, key := range keys {
		rows = append(rows, []string{formatStatusLabel(key), fmt.Sprintf("%d", stats[key])})
	}
	return rows
}

func buildSegmentRows(segments []api.Segment) [][]string {
	if len(segments) == 0 {
		return nil
	}
	sorted := api.SortSegmentsNewestFirst(segments)

	rows := make([][]string, 0, len(sorted))
	for _, seg := range sorted {
		rows = append(rows, []string{
			fmt.Sprintf("%d", seg.ID),
			seg.CameraID,
			formatStatusLabel(seg.Status),
			formatDuration(seg.DurationSeconds),
			formatDisplayTime(seg.CreatedAt),
			seg.ErrorMessage,
		})
	}
	return rows
}

func buildCameraRows(cameras []api.Camera) [][]string {
	if len(cameras) == 0 {
		return nil
	}
	rows := make([][]string, 0, len(cameras))
	for _, cam := range cameras {
		rows = append(rows, []string{
			shortID(cam.ID),
			cam.Name,
			cam.Location,
			formatStatusLabel(cam.State),
			yesNo(cam.Enabled),
			formatDisplayTime(cam.LastSeenAt),
		})
	}
	return rows
}

func buildEventRows(events []api.Event) [][]string {
	if len(events) == 0 {
		return nil
	}
	rows := make([][]string, 0, len(events))
	for _, event := range events {
		rows = append(rows, []string{
			shortID(event.UID),
			event.CameraID,
			event.Type,
			event.Label,
			fmt.Sprintf("%.2f", event.Score),
			formatDisplayTime(event.OccurredAt),
		})
	}
	return rows
}

func buildAlertRows(alerts []api.Alert) [][]string {
	if len(alerts) == 0 {
		return nil
	}
	rows := make([][]string, 0, len(alerts))
	for _, alert := range alerts {
		rows = append(rows, []string{
			shortID(alert.UID),
			alert.CameraID,
			strings.ToUpper(alert.Severity),
			formatStatusLabel(alert.Status),
			alert.Title,
			formatDisplayTime(alert.CreatedAt),
		})
	}
	return rows
}

func buildRuleRows(rules []api.Rule) [][]string {
	if len(rules) == 0 {
		return nil
	}
	rows := make([][]string, 0, len(rules))
	for _, rule := range rules {
		rows = append(rows, []string{
			fmt.Sprintf("%d", rule.ID),
			rule.Name,
			yesNo(rule.Enabled),
			fmt.Sprintf("%d", rule.Priority),
			rule.EventType,
			strings.ToUpper(rule.Severity),
			rule.CameraID,
		})
	}
	return rows
}

func formatStatusLabel(status string) string {
	status = strings.TrimSpace(status)
	if status == "" {
		return ""
	}
	parts := strings.Split(status, "_")
	for i, part := range parts {
		lower := strings.ToLower(part)
		if lower == "" {
			continue
		}
		parts[i] = strings.ToUpper(lower[:1]) + lower[1:]
	}
	return strings.Join(parts, " ")
}

func formatDisplayTime(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return ""
	}
	if t := api.ParseAPITime(value); !t.IsZero() {
		return t.UTC().Format("2006-01-02 15:04")
	}
	return value
}

func formatDuration(seconds float64) string {
	if seconds <= 0 {
		return "-"
	}
	d := time.Duration(seconds * float64(time.Second))
	return d.Round(time.Second).String()
}

// shortID truncates UUIDs for table display; full values stay available
// via --json.
func shortID(value string) string {
	value = strings.TrimSpace(value)
	if len(value) > 8 {
		return value[:8]
	}
	return value
}
