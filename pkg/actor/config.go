package actor

import "fmt"

// Mode controls how the calling principal is resolved.
type Mode string

const (
	// ModeAnonymous attributes every request to Anonymous.
	ModeAnonymous Mode = "anonymous"
	// ModeHeader reads X-Remote-User when present.
	ModeHeader Mode = "header"
	// ModeHeaderRequired rejects requests without X-Remote-User.
	ModeHeaderRequired Mode = "header-required"
)

// ParseMode validates a mode string. Empty selects ModeHeader.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case "":
		return ModeHeader, nil
	case ModeAnonymous, ModeHeader, ModeHeaderRequired:
		return Mode(s), nil
	}
	return "", fmt.Errorf("unknown actor mode %q", s)
}
