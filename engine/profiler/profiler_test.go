package profiler

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time { return c.t }

func TestProfilerReportsOncePerInterval(t *testing.T) {
	clock := &fakeClock{t: time.Unix(0, 0)}
	var lines []string
	p := NewProfiler(
		WithInterval(2*time.Second),
		WithClock(clock.now),
		WithLogger(func(format string, args ...any) {
			lines = append(lines, fmt.Sprintf(format, args...))
		}),
	)

	clock.t = clock.t.Add(time.Second)
	assert.Nil(t, p.Tick(Sample{Presented: 60}))

	clock.t = clock.t.Add(time.Second)
	sample := Sample{
		Presented:        120,
		Skipped:          3,
		CameraBuilds:     10,
		SubmissionBuilds: 20,
		BatchListBuilds:  40,
		DrawBatchBuilds:  400,
		Instances:        1000,
	}
	report := p.Tick(sample)
	require.NotNil(t, report)
	assert.InDelta(t, 60.0, report.FPS, 1e-9)
	assert.Equal(t, uint64(3), report.Skipped)
	assert.InDelta(t, 5.0, report.CameraRate, 1e-9)
	assert.InDelta(t, 10.0, report.SubmissionRate, 1e-9)
	assert.InDelta(t, 20.0, report.BatchListRate, 1e-9)
	assert.InDelta(t, 200.0, report.DrawBatchRate, 1e-9)
	assert.Equal(t, 1000, report.Instances)
	require.Len(t, lines, 1)
	assert.Contains(t, lines[0], "[Profiler] FPS: 60.00")

	clock.t = clock.t.Add(2 * time.Second)
	sample.Presented = 140
	report = p.Tick(sample)
	require.NotNil(t, report)
	assert.InDelta(t, 10.0, report.FPS, 1e-9)
	assert.Zero(t, report.Skipped)
	assert.Zero(t, report.DrawBatchRate)
	assert.Len(t, lines, 2)
}

func TestWithIntervalIgnoresNonPositive(t *testing.T) {
	p := NewProfiler(WithInterval(0))
	assert.Equal(t, time.Second, p.updateInterval)
}
