// Package rules implements the event rules engine. Rules are ordered by
// priority (descending, older rules winning ties) and the first rule
// matching an event raises at most one alert. Conditions are gjson path
// predicates over the event's metadata document; rules can further scope
// by camera, event type, and minimum score, throttle repeat alerts, and
// stay silent during quiet hours.
package rules
