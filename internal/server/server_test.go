package server

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestShouldSkipJWT(t *testing.T) {
	t.Parallel()

	cases := []struct {
		path string
		want bool
	}{
		{path: "/ping", want: true},
		{path: "/health", want: true},
		{path: "/auth/login", want: true},
		{path: "/branches", want: false},
		{path: "/branches/b1/connect", want: false},
		{path: "/branches/b1/status/ws", want: false},
		{path: "/", want: false},
	}

	for _, tc := range cases {
		require.Equal(t, tc.want, shouldSkipJWT(tc.path), "path %q", tc.path)
	}
}
