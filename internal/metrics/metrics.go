// Package metrics exposes camera activity as Prometheus metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"lumix-remote/internal/lumix"
)

// Recorder implements lumix.Observer and counts live view frames.
type Recorder struct {
	commands      *prometheus.CounterVec
	duration      *prometheus.HistogramVec
	focusSteps    *prometheus.CounterVec
	focusPosition prometheus.Gauge
	frames        prometheus.Counter
	dropped       prometheus.Counter
}

// NewRecorder creates the collectors and registers them with reg.
func NewRecorder(reg prometheus.Registerer) *Recorder {
	r := &Recorder{
		commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "lumix_commands_total",
			Help: "cam.cgi requests by mode and outcome.",
		}, []string{"mode", "outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "lumix_command_duration_seconds",
			Help:    "Time taken by cam.cgi requests.",
			Buckets: []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		}, []string{"mode"}),
		focusSteps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "lumix_focus_steps_total",
			Help: "Focus motor steps by direction and speed.",
		}, []string{"direction", "speed"}),
		focusPosition: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "lumix_focus_position",
			Help: "Last lens position reported by the camera.",
		}),
		frames: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "lumix_liveview_frames_total",
			Help: "Live view frames received.",
		}),
		dropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "lumix_liveview_dropped_frames_total",
			Help: "Live view frames dropped because a consumer was slow.",
		}),
	}
	reg.MustRegister(r.commands, r.duration, r.focusSteps, r.focusPosition, r.frames, r.dropped)
	return r
}

func (r *Recorder) ObserveCommand(mode string, outcome lumix.Outcome, elapsed time.Duration) {
	r.commands.WithLabelValues(mode, string(outcome)).Inc()
	r.duration.WithLabelValues(mode).Observe(elapsed.Seconds())
}

func (r *Recorder) ObserveFocus(dir lumix.Direction, speed lumix.Speed, position int) {
	r.focusSteps.WithLabelValues(string(dir), string(speed)).Inc()
	r.focusPosition.Set(float64(position))
}

func (r *Recorder) FrameReceived() { r.frames.Inc() }

func (r *Recorder) FrameDropped() { r.dropped.Inc() }
