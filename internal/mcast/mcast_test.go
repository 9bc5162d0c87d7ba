package mcast

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestJoinRejectsUnresolvableAddress(t *testing.T) {
	_, err := Join("not a valid target:::", nil, 1)
	assert.Error(t, err)
}

func TestJoinRejectsEmptyTarget(t *testing.T) {
	_, err := Join("", nil, 1)
	assert.Error(t, err)
}
