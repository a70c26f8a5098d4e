package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExpandEnv(t *testing.T) {
	os.Setenv("MEMOCORE_TEST_VAR", "set-value")
	os.Unsetenv("MEMOCORE_TEST_MISSING")
	defer os.Unsetenv("MEMOCORE_TEST_VAR")

	cases := []struct {
		name string
		in   string
		want string
	}{
		{"set var expands", "key: ${MEMOCORE_TEST_VAR}", "key: set-value"},
		{"missing var with default", "key: ${MEMOCORE_TEST_MISSING:-fallback}", "key: fallback"},
		{"missing var no default", "key: ${MEMOCORE_TEST_MISSING}", "key: "},
		{"plain dollar sign untouched", "price: $100", "price: $100"},
		{"unclosed brace untouched", "key: ${UNCLOSED", "key: ${UNCLOSED"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := string(ExpandEnv([]byte(tc.in)))
			assert.Equal(t, tc.want, got)
		})
	}
}
