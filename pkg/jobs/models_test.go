package jobs

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestImportJob_IsTerminal(t *testing.T) {
	tests := []struct {
		state    JobState
		terminal bool
	}{
		{JobStateQueued, false},
		{JobStateRunning, false},
		{JobStateSucceeded, true},
		{JobStateFailed, true},
		{JobStateCanceled, true},
	}
	for _, tt := range tests {
		job := &ImportJob{State: tt.state}
		assert.Equal(t, tt.terminal, job.IsTerminal(), tt.state)
	}
}
