package testutil

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWaitForChannel(t *testing.T) {
	t.Parallel()

	ch := make(chan struct{})
	close(ch)
	WaitForChannel(t, ch, ShortTestTimeout, "closed channel should not block")
}

func TestWaitForResult(t *testing.T) {
	t.Parallel()

	boom := errors.New("boom")
	ch := make(chan error, 1)
	ch <- boom
	assert.Equal(t, boom, WaitForResult(t, ch, ShortTestTimeout, "value should be ready"))
}
