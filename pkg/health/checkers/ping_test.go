package checkers

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/lewisedginton/conversation_store/internal/docstore/memdb"
)

type failingPinger struct{}

func (failingPinger) Ping(context.Context) error { return errors.New("connection refused") }

func TestPingChecker(t *testing.T) {
	t.Run("healthy store", func(t *testing.T) {
		c := NewPingChecker(memdb.New(), "docstore")
		assert.Equal(t, "docstore", c.Name())
		assert.NoError(t, c.Check(context.Background()))
	})

	t.Run("failing target", func(t *testing.T) {
		err := NewPingChecker(failingPinger{}, "postgres").Check(context.Background())
		assert.ErrorContains(t, err, "postgres ping failed")
		assert.ErrorContains(t, err, "connection refused")
	})
}
