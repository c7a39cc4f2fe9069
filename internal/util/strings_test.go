package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestJoinOrDefault(t *testing.T) {
	assert.Equal(t, "none attached", JoinOrDefault(nil, "none attached"))
	assert.Equal(t, "R58M123", JoinOrDefault([]string{"R58M123"}, "none attached"))
	assert.Equal(t, "R58M123, emulator-5554", JoinOrDefault([]string{"R58M123", "emulator-5554"}, "none attached"))
}

func TestPluralize(t *testing.T) {
	tests := []struct {
		count int
		want  string
	}{
		{0, "keys"},
		{1, "key"},
		{2, "keys"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, Pluralize(tt.count, "key", "keys"))
	}
}
