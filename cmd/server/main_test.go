package main

import (
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"studyspace/pkg/config"
	"studyspace/pkg/database"
	"studyspace/pkg/models"
)

func TestSeedDemoDataIsIdempotent(t *testing.T) {
	db, err := database.OpenMemory()
	require.NoError(t, err)
	log := slog.New(slog.NewJSONHandler(io.Discard, nil))

	require.NoError(t, seedDemoData(db, log))
	require.NoError(t, seedDemoData(db, log))

	var seats, lockers, branches int64
	db.Model(&models.Seat{}).Count(&seats)
	db.Model(&models.Locker{}).Count(&lockers)
	db.Model(&models.Branch{}).Count(&branches)
	assert.Equal(t, int64(10), seats)
	assert.Equal(t, int64(4), lockers)
	assert.Equal(t, int64(1), branches)

	var seat models.Seat
	require.NoError(t, db.Where("number = ?", "S1").Take(&seat).Error)
	assert.True(t, seat.IsActive)
	assert.Equal(t, demoBranchID, seat.BranchID)
}

func TestServiceOptions(t *testing.T) {
	log := slog.New(slog.NewJSONHandler(io.Discard, nil))

	opts, err := serviceOptions(config.Config{ReservationConflictStatuses: "active, pending"}, log)
	require.NoError(t, err)
	assert.Equal(t, []models.SubscriptionStatus{models.StatusActive, models.StatusPending}, opts.ReassignStatuses)
	assert.Same(t, log, opts.Logger)

	_, err = serviceOptions(config.Config{ReservationConflictStatuses: "expired"}, log)
	assert.Error(t, err)
}
