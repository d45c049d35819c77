package models

import "fmt"

// NotificationPreference controls whether a user receives emails addressed to
// them directly. The broadcast notification list is independent of this
// setting; its members opted into everything upstream.
type NotificationPreference int

const (
	PreferenceNone NotificationPreference = iota
	PreferenceTeam
	PreferenceAll
)

// ParseNotificationPreference converts the canonical label carried on the
// wire. Unrecognized labels are an error so that a producer-side typo is
// caught during validation rather than silently mapped to a default.
func ParseNotificationPreference(raw string) (NotificationPreference, error) {
	switch raw {
	case "None":
		return PreferenceNone, nil
	case "Team":
		return PreferenceTeam, nil
	case "All":
		return PreferenceAll, nil
	default:
		return PreferenceNone, fmt.Errorf("unknown notification preference %q", raw)
	}
}

// ShouldNotify reports whether the direct recipient should be emailed.
// Only None opts out; every other value receives the personal variant.
func (p NotificationPreference) ShouldNotify() bool {
	return p != PreferenceNone
}

func (p NotificationPreference) String() string {
	switch p {
	case PreferenceTeam:
		return "Team"
	case PreferenceAll:
		return "All"
	default:
		return "None"
	}
}
