package authz

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAllowed(t *testing.T) {
	e, err := New(nil)
	require.NoError(t, err)

	cases := []struct {
		role, object, action string
		want                 bool
	}{
		{"admin", "users", "write", true},
		{"admin", "audit", "read", true},
		{"admin", "news", "write", true},
		{"editor", "news", "write", true},
		{"editor", "chatbot", "read", true},
		{"editor", "users", "write", false},
		{"editor", "reports", "read", false},
		{"staff", "news", "write", false},
		{"", "news", "read", false},
		{"unknown", "news", "read", false},
	}
	for _, tc := range cases {
		t.Run(tc.role+"/"+tc.object+"/"+tc.action, func(t *testing.T) {
			assert.Equal(t, tc.want, e.Allowed(tc.role, tc.object, tc.action))
		})
	}
}
