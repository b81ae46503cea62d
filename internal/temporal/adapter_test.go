package temporal

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestZapAdapterPairsKeyvals(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	adapter := NewZapAdapter(zap.New(core))

	adapter.Info("round started", "run_id", "r-1", "round", 2)

	entries := logs.All()
	assert.Len(t, entries, 1)
	assert.Equal(t, "round started", entries[0].Message)
	fields := entries[0].ContextMap()
	assert.Equal(t, "r-1", fields["run_id"])
	assert.EqualValues(t, 2, fields["round"])
}

func TestZapAdapterSurvivesAwkwardValues(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	adapter := NewZapAdapter(zap.New(core))

	adapter.Error("oops",
		"fn", func() {},
		"ch", make(chan int),
		"nil", nil,
		"dangling_key")

	entries := logs.All()
	assert.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "<func>", fields["fn"])
	assert.Equal(t, "<chan>", fields["ch"])
	assert.Equal(t, "<nil>", fields["nil"])
	_, present := fields["dangling_key"]
	assert.False(t, present)
}

func TestZapAdapterWithScopesFields(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	adapter := NewZapAdapter(zap.New(core))

	scoped := adapter.With("workflow_id", "w-9")
	scoped.Info("tick")

	entries := logs.All()
	assert.Len(t, entries, 1)
	assert.Equal(t, "w-9", entries[0].ContextMap()["workflow_id"])
}
