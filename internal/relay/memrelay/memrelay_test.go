package memrelay

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/roach88/relaykv/internal/relay"
	"github.com/roach88/relaykv/internal/relay/relaytest"
)

func TestConformance(t *testing.T) {
	relaytest.Run(t, func(t *testing.T) relay.Relay {
		return New(t.Name())
	})
}

func TestShared_ReturnsSameRelay(t *testing.T) {
	a := Shared("shared-test")
	b := Shared("shared-test")
	c := Shared("other-shared-test")

	assert.Same(t, a, b)
	assert.NotSame(t, a, c)
	assert.Equal(t, "mem://shared-test", a.URL())
}
