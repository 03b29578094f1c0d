package actor

import (
	"fmt"
	"net/http"
	"regexp"
	"strings"
)

const (
	// UserHeader carries the authenticated user name set by a fronting proxy.
	UserHeader = "X-Remote-User"
	// GroupsHeader carries a comma separated group list.
	GroupsHeader = "X-Remote-Groups"

	maxUserLen = 255
)

var userRe = regexp.MustCompile(`^[A-Za-z0-9._@+\-:/ ]+$`)

// Resolver resolves the calling principal from an HTTP request.
type Resolver interface {
	Resolve(r *http.Request) (Principal, error)
}

// AnonymousResolver attributes every request to Anonymous.
type AnonymousResolver struct{}

// Resolve always returns the anonymous principal.
func (AnonymousResolver) Resolve(_ *http.Request) (Principal, error) {
	return Principal{User: Anonymous}, nil
}

// HeaderResolver reads the principal from proxy headers. When Required is
// false a missing user header resolves to Anonymous.
type HeaderResolver struct {
	Required bool
}

// Resolve extracts the user and groups from the request headers.
func (h HeaderResolver) Resolve(r *http.Request) (Principal, error) {
	user := strings.TrimSpace(r.Header.Get(UserHeader))
	if user == "" {
		if h.Required {
			return Principal{}, fmt.Errorf("%s header is required", UserHeader)
		}
		return Principal{User: Anonymous}, nil
	}
	if err := validateUser(user); err != nil {
		return Principal{}, err
	}

	var groups []string
	for _, g := range strings.Split(r.Header.Get(GroupsHeader), ",") {
		if g = strings.TrimSpace(g); g != "" {
			groups = append(groups, g)
		}
	}
	return Principal{User: user, Groups: groups}, nil
}

func validateUser(user string) error {
	if len(user) > maxUserLen {
		return fmt.Errorf("user %q exceeds maximum length of %d characters", user, maxUserLen)
	}
	if !userRe.MatchString(user) {
		return fmt.Errorf("user %q contains unsupported characters", user)
	}
	return nil
}
