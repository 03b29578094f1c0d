package actor

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMiddleware(t *testing.T) {
	tests := []struct {
		name       string
		mode       Mode
		user       string
		groups     string
		wantStatus int
		wantUser   string
		wantGroups []string
	}{
		{
			name:       "anonymous mode ignores header",
			mode:       ModeAnonymous,
			user:       "alice",
			wantStatus: http.StatusOK,
			wantUser:   Anonymous,
		},
		{
			name:       "header mode: user and groups",
			mode:       ModeHeader,
			user:       "alice@example.com",
			groups:     "ops, admins ,",
			wantStatus: http.StatusOK,
			wantUser:   "alice@example.com",
			wantGroups: []string{"ops", "admins"},
		},
		{
			name:       "header mode: missing header -> anonymous",
			mode:       ModeHeader,
			wantStatus: http.StatusOK,
			wantUser:   Anonymous,
		},
		{
			name:       "header-required mode: missing header -> 400",
			mode:       ModeHeaderRequired,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "header mode: invalid characters -> 400",
			mode:       ModeHeader,
			user:       "bob<script>",
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "header mode: too long -> 400",
			mode:       ModeHeader,
			user:       strings.Repeat("a", maxUserLen+1),
			wantStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got Principal
			var reached bool
			handler := NewMiddleware(tt.mode)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				reached = true
				got, _ = PrincipalFromContext(r.Context())
				w.WriteHeader(http.StatusOK)
			}))

			req := httptest.NewRequest(http.MethodPost, "/api/v1/assets", nil)
			if tt.user != "" {
				req.Header.Set(UserHeader, tt.user)
			}
			if tt.groups != "" {
				req.Header.Set(GroupsHeader, tt.groups)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantStatus != http.StatusOK {
				assert.False(t, reached)
				assert.Contains(t, rec.Body.String(), "error")
				return
			}
			assert.Equal(t, tt.wantUser, got.User)
			assert.Equal(t, tt.wantGroups, got.Groups)
		})
	}
}

func TestFromContext(t *testing.T) {
	ctx := httptest.NewRequest(http.MethodGet, "/", nil).Context()
	assert.Equal(t, Anonymous, FromContext(ctx))

	ctx = WithPrincipal(ctx, Principal{User: "carol"})
	assert.Equal(t, "carol", FromContext(ctx))

	ctx = WithPrincipal(ctx, Principal{})
	assert.Equal(t, Anonymous, FromContext(ctx))
}

func TestParseMode(t *testing.T) {
	m, err := ParseMode("")
	assert.NoError(t, err)
	assert.Equal(t, ModeHeader, m)

	m, err = ParseMode("header-required")
	assert.NoError(t, err)
	assert.Equal(t, ModeHeaderRequired, m)

	_, err = ParseMode("namespace")
	assert.Error(t, err)
}
