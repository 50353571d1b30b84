// Package announce builds the notification events a session emits for
// speech and display collaborators.
package announce

import (
	"time"

	"github.com/google/uuid"
	"github.com/okian/stride/internal/domain/activity"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Kind classifies an Event.
type Kind string

const (
	KindStart             Kind = "start"
	KindPause             Kind = "pause"
	KindResume            Kind = "resume"
	KindReset             Kind = "reset"
	KindMilestone         Kind = "milestone"
	KindSensorUnavailable Kind = "sensor_unavailable"
)

// Kinds lists every Kind.
var Kinds = []Kind{KindStart, KindPause, KindResume, KindReset, KindMilestone, KindSensorUnavailable}

func (k Kind) String() string { return string(k) }

// Event is one notification. Text is meant to be spoken, Title and
// Description to be displayed.
type Event struct {
	ID          string            `json:"id"`
	SessionID   string            `json:"session_id"`
	Kind        Kind              `json:"kind"`
	Title       string            `json:"title"`
	Description string            `json:"description"`
	Text        string            `json:"text"`
	Snapshot    activity.Snapshot `json:"snapshot"`
	At          time.Time         `json:"at"`
}

// Composer renders event copy for a locale.
type Composer struct {
	p *message.Printer
}

// NewComposer creates a Composer for tag.
func NewComposer(tag language.Tag) *Composer {
	return &Composer{p: message.NewPrinter(tag)}
}

// NewComposerString parses a BCP 47 locale, falling back to English.
func NewComposerString(locale string) *Composer {
	tag, err := language.Parse(locale)
	if err != nil {
		tag = language.English
	}
	return NewComposer(tag)
}

// Event builds a complete Event for kind from snap.
func (c *Composer) Event(kind Kind, sessionID string, snap activity.Snapshot, at time.Time) Event {
	title, desc, text := c.Copy(kind, snap)
	return Event{
		ID:          uuid.NewString(),
		SessionID:   sessionID,
		Kind:        kind,
		Title:       title,
		Description: desc,
		Text:        text,
		Snapshot:    snap,
		At:          at,
	}
}

// Copy returns the title, description and spoken text for kind. The result
// depends only on kind, snap and the locale.
func (c *Composer) Copy(kind Kind, snap activity.Snapshot) (title, desc, text string) {
	steps := c.p.Sprintf("%d", snap.Steps)
	pct := snap.RoundedPercent()

	switch kind {
	case KindStart:
		return "Tracking Started",
			"Your activity is now being recorded",
			"Fitness tracking started. Your steps, distance, and calories are now being tracked."
	case KindPause:
		return "Tracking Paused",
			c.p.Sprintf("You've completed %s steps so far", steps),
			c.p.Sprintf("Tracking paused. You've completed %s steps so far, %d%% of your daily goal.", steps, pct)
	case KindResume:
		return "Tracking Resumed",
			"Your activity is being recorded again",
			c.p.Sprintf("Tracking resumed. You've completed %s steps so far.", steps)
	case KindReset:
		return "Tracking Reset",
			"All stats have been reset to zero",
			"Tracking has been reset. All stats have been reset to zero."
	case KindMilestone:
		return c.p.Sprintf("%s Steps Reached!", steps),
			c.p.Sprintf("%d%% of your daily goal complete", pct),
			c.p.Sprintf("You've reached %s steps, which is %d%% of your daily goal.", steps, pct)
	case KindSensorUnavailable:
		return "Motion Sensor Unavailable",
			"Steps are being estimated",
			"Motion sensor unavailable. Your steps will be estimated while tracking."
	}
	return string(kind), "", ""
}
