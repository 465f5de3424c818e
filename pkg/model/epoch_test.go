package model_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/pump-pill/arenax/pkg/model"
)

func TestEpochWindowContains(t *testing.T) {
	start := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	end := start.Add(7 * 24 * time.Hour)
	w := model.EpochWindow{Index: 1, StartUtc: start, EndUtc: end}

	// Inclusive start, exclusive end: adjacent windows never both claim a
	// boundary timestamp.
	assert.True(t, w.Contains(start))
	assert.True(t, w.Contains(end.Add(-time.Nanosecond)))
	assert.False(t, w.Contains(end))
	assert.False(t, w.Contains(start.Add(-time.Nanosecond)))
}

func TestEpochWindowExpired(t *testing.T) {
	start := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	end := start.Add(time.Hour)
	w := model.EpochWindow{StartUtc: start, EndUtc: end}

	assert.False(t, w.Expired(end.Add(-time.Second)))
	assert.True(t, w.Expired(end))
	assert.True(t, w.Expired(end.Add(time.Hour)))
}

func TestEpochWindowValidate(t *testing.T) {
	now := time.Now().UTC()

	assert.NoError(t, model.EpochWindow{StartUtc: now, EndUtc: now.Add(time.Hour)}.Validate())
	assert.Error(t, model.EpochWindow{StartUtc: now, EndUtc: now}.Validate())
	assert.Error(t, model.EpochWindow{StartUtc: now.Add(time.Hour), EndUtc: now}.Validate())
}
