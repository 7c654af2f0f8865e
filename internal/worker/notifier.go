package worker

import "pricewatch/internal/model"

// Notifier delivers one alert, best-effort. Delivery failure is logged by
// the caller and never blocks a cycle.
type Notifier interface {
	Send(subject, body, attachmentPath string) error
}

// NotifierFactory builds the active notifier set for the current settings.
// Credentials live in Settings and may change between cycles, so notifiers
// are constructed per use rather than at startup.
type NotifierFactory func(st *model.Settings) []Notifier
