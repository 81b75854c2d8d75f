package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestContainsPattern(t *testing.T) {
	tests := map[string]string{
		"Lake":      "%lake%",
		"100%":      "%100!%%",
		"room_1":    "%room!_1%",
		"wow!":      "%wow!!%",
		"50%_off!!": "%50!%!_off!!!!%",
	}
	for in, want := range tests {
		assert.Equal(t, want, ContainsPattern(in), in)
	}
}
