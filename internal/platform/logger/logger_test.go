package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestEventIsStructured(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	l := FromZap(zap.New(core)).With("match", "M1")

	l.Event("CARD_PLAYED", "P1", "Write Report")
	l.Warn("play rejected", "reason", "NO_ENERGY")

	entries := logs.All()
	assert.Len(t, entries, 2)

	fields := entries[0].ContextMap()
	assert.Equal(t, "CARD_PLAYED", fields["event"])
	assert.Equal(t, "P1", fields["actor"])
	assert.Equal(t, "M1", fields["match"])
	assert.Equal(t, "NO_ENERGY", entries[1].ContextMap()["reason"])
}
