package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCronService_SchedulesMaterialization(t *testing.T) {
	materializer, _ := setupMaterializerTest(t)
	svc := NewCronService(materializer, "0 30 1 * * *", gaborone, testLogger())

	require.NoError(t, svc.Start())
	defer svc.Stop()

	status := svc.GetJobStatus()
	assert.Equal(t, 1, status["job_count"])
	assert.Equal(t, true, status["running"])
}

func TestCronService_RejectsBadSchedule(t *testing.T) {
	materializer, _ := setupMaterializerTest(t)
	svc := NewCronService(materializer, "every night", gaborone, testLogger())

	assert.Error(t, svc.Start())
}
