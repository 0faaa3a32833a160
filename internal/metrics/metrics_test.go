package metrics

import (
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lumix-remote/internal/lumix"
)

var _ lumix.Observer = (*Recorder)(nil)

func TestRecorder(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := NewRecorder(reg)

	r.ObserveCommand("camcmd", lumix.OutcomeOK, 20*time.Millisecond)
	r.ObserveCommand("camcmd", lumix.OutcomeOK, 30*time.Millisecond)
	r.ObserveCommand("setsetting", lumix.OutcomeFailed, time.Millisecond)
	r.ObserveFocus(lumix.Wide, lumix.Fast, 640)
	r.ObserveFocus(lumix.Tele, lumix.Normal, 630)
	r.FrameReceived()
	r.FrameReceived()
	r.FrameDropped()

	assert.Equal(t, 2.0, testutil.ToFloat64(r.commands.WithLabelValues("camcmd", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.commands.WithLabelValues("setsetting", "failed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.focusSteps.WithLabelValues("wide", "fast")))
	assert.Equal(t, 630.0, testutil.ToFloat64(r.focusPosition))
	assert.Equal(t, 2.0, testutil.ToFloat64(r.frames))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.dropped))

	expected := `
# HELP lumix_liveview_dropped_frames_total Live view frames dropped because a consumer was slow.
# TYPE lumix_liveview_dropped_frames_total counter
lumix_liveview_dropped_frames_total 1
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "lumix_liveview_dropped_frames_total"))
}
