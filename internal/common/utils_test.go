package common

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestContainsAnyFold(t *testing.T) {
	assert.True(t, ContainsAnyFold("Zwaarbewolkt", "bewolkt"))
	assert.True(t, ContainsAnyFold("buien", "regen", "BUI"))
	assert.False(t, ContainsAnyFold("zonnig", "regen", "sneeuw"))
	assert.False(t, ContainsAnyFold("zonnig", ""))
	assert.False(t, ContainsAnyFold("zonnig"))
}
