package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSchedulerRegistersJobs(t *testing.T) {
	db := setupTestDB(t)
	s := NewScheduler(NewBookingService(db, DefaultBookingRules, nil, nil), NewMembershipService(db, nil, nil, nil), time.Hour)
	require.NoError(t, s.Start())
	assert.Len(t, s.cron.Entries(), 4)

	select {
	case <-s.Stop().Done():
	case <-time.After(time.Second):
		t.Fatal("scheduler did not stop")
	}
}

func TestRunJobSwallowsErrors(t *testing.T) {
	ran := false
	runJob("noop", func(ctx context.Context) (int64, error) {
		ran = true
		_, ok := ctx.Deadline()
		assert.True(t, ok)
		return 0, assert.AnError
	})
	assert.True(t, ran)
}
