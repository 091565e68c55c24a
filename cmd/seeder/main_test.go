package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSeedIDs(t *testing.T) {
	assert.Equal(t, "user-0001", userID(1))
	assert.Equal(t, "user-1000", userID(1000))

	assert.Equal(t, "family-001", familyID(1, 4))
	assert.Equal(t, "family-001", familyID(4, 4))
	assert.Equal(t, "family-002", familyID(5, 4))
}
