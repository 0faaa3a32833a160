package lumix

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lumix-remote/internal/camsim"
	"lumix-remote/internal/params"
)

func newSimClient(t *testing.T, cfg camsim.Config) (*Client, *camsim.Camera, *bytes.Buffer) {
	t.Helper()
	cam := camsim.New(cfg, zerolog.Nop())
	srv := httptest.NewServer(cam)
	t.Cleanup(srv.Close)

	var logs bytes.Buffer
	c, err := New(Config{Address: srv.URL}, zerolog.New(&logs))
	require.NoError(t, err)
	return c, cam, &logs
}

type recordingObserver struct {
	mu       sync.Mutex
	commands map[Outcome]int
	steps    []int
}

func (o *recordingObserver) ObserveCommand(mode string, outcome Outcome, elapsed time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.commands == nil {
		o.commands = make(map[Outcome]int)
	}
	o.commands[outcome]++
}

func (o *recordingObserver) ObserveFocus(dir Direction, speed Speed, position int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.steps = append(o.steps, position)
}

func TestNew(t *testing.T) {
	_, err := New(Config{}, zerolog.Nop())
	assert.Error(t, err)

	c, err := New(Config{Address: "192.168.54.1"}, zerolog.Nop())
	require.NoError(t, err)
	assert.Equal(t, "http://192.168.54.1/cam.cgi", c.BaseURL())
	assert.Equal(t, "192.168.54.1", c.Address())
	assert.NotNil(t, c.Tables())
}

func TestDialEntersRecordMode(t *testing.T) {
	cam := camsim.New(camsim.DefaultConfig(), zerolog.Nop())
	srv := httptest.NewServer(cam)
	defer srv.Close()

	_, err := Dial(context.Background(), Config{Address: srv.URL}, zerolog.Nop())
	require.NoError(t, err)
	assert.True(t, cam.RecMode())
	assert.Equal(t, []camsim.Request{{Mode: "camcmd", Value: "recmode"}}, cam.Requests())
}

func TestDialFailsWhenCameraRejects(t *testing.T) {
	cam := camsim.New(camsim.DefaultConfig(), zerolog.Nop())
	cam.Fail("camcmd")
	srv := httptest.NewServer(cam)
	defer srv.Close()

	_, err := Dial(context.Background(), Config{Address: srv.URL}, zerolog.Nop())
	assert.ErrorIs(t, err, ErrCommandFailed)
}

func TestSetSettingRequestShape(t *testing.T) {
	var rawQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/cam.cgi", r.URL.Path)
		rawQuery = r.URL.RawQuery
		w.Write([]byte("<camrply><result>ok</result></camrply>"))
	}))
	defer srv.Close()

	c, err := New(Config{Address: srv.URL}, zerolog.Nop())
	require.NoError(t, err)

	require.NoError(t, c.SetSetting(context.Background(), "iso", "400"))
	assert.Equal(t, "mode=setsetting&type=iso&value=400", rawQuery)

	rawQuery = ""
	assert.Error(t, c.SetSetting(context.Background(), "", "400"))
	assert.Error(t, c.SetSetting(context.Background(), "iso", ""))
	assert.Error(t, c.SetISO(context.Background(), ""))
	assert.Empty(t, rawQuery)
}

func TestSettingWrappers(t *testing.T) {
	c, cam, _ := newSimClient(t, camsim.DefaultConfig())
	ctx := context.Background()

	require.NoError(t, c.SetISO(ctx, "auto"))
	require.NoError(t, c.SetFocal(ctx, "2.8"))
	require.NoError(t, c.SetShutter(ctx, "1/250"))
	require.NoError(t, c.SetVideoQuality(ctx, ""))
	require.NoError(t, c.SetVideoQuality(ctx, "mp4_24p_100mbps_4k"))

	assert.Equal(t, []camsim.Request{
		{Mode: "setsetting", Type: "iso", Value: "50"},
		{Mode: "setsetting", Type: "focal", Value: "768/256"},
		{Mode: "setsetting", Type: "shtrspeed", Value: "2048/256"},
		{Mode: "setsetting", Type: "videoquality", Value: DefaultVideoQuality},
		{Mode: "setsetting", Type: "videoquality", Value: "mp4_24p_100mbps_4k"},
	}, cam.Requests())
}

func TestUnknownLabelSendsNothing(t *testing.T) {
	c, cam, _ := newSimClient(t, camsim.DefaultConfig())
	ctx := context.Background()

	err := c.SetFocal(ctx, "f/2.8")
	assert.ErrorIs(t, err, params.ErrUnknownLabel)
	assert.NotErrorIs(t, err, ErrCommandFailed)

	err = c.SetShutter(ctx, "1/7")
	assert.ErrorIs(t, err, params.ErrUnknownLabel)

	assert.Empty(t, cam.Requests())
}

func TestCustomTables(t *testing.T) {
	tables, err := params.Parse([]byte("fstop:\n  - {label: \"F4\", code: \"9/9\"}\n"))
	require.NoError(t, err)

	cam := camsim.New(camsim.DefaultConfig(), zerolog.Nop())
	srv := httptest.NewServer(cam)
	defer srv.Close()

	c, err := New(Config{Address: srv.URL, Tables: tables}, zerolog.Nop())
	require.NoError(t, err)
	require.NoError(t, c.SetFocal(context.Background(), "F4"))
	v, _ := cam.Setting("focal")
	assert.Equal(t, "9/9", v)
}

func TestActions(t *testing.T) {
	c, cam, _ := newSimClient(t, camsim.DefaultConfig())
	ctx := context.Background()

	require.NoError(t, c.CapturePhoto(ctx))
	require.NoError(t, c.VideoRecordStart(ctx))
	assert.True(t, cam.Recording())
	require.NoError(t, c.VideoRecordStop(ctx))
	assert.False(t, cam.Recording())

	require.NoError(t, c.StartStream(ctx, 49199))
	assert.Equal(t, 49199, cam.StreamPort())
	require.NoError(t, c.StopStream(ctx))
	assert.Equal(t, 0, cam.StreamPort())

	assert.Error(t, c.StartStream(ctx, 0))
	assert.Error(t, c.StartStream(ctx, 70000))
}

func TestCommandFailure(t *testing.T) {
	c, cam, logs := newSimClient(t, camsim.DefaultConfig())
	cam.Fail("camcmd")

	err := c.CapturePhoto(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCommandFailed)

	var cerr *CommandError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, "camcmd", cerr.Mode)
	assert.Equal(t, "capture", cerr.Value)
	assert.Contains(t, cerr.Body, "err_busy")
	assert.Contains(t, err.Error(), "err_busy")

	assert.Contains(t, logs.String(), `"level":"error"`)
	assert.Contains(t, logs.String(), "err_busy")
}

func TestTransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	addr := srv.URL
	srv.Close()

	c, err := New(Config{Address: addr, Timeout: time.Second}, zerolog.Nop())
	require.NoError(t, err)

	err = c.CapturePhoto(context.Background())
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrCommandFailed)

	_, err = c.GetState(context.Background())
	assert.Error(t, err)
}

func TestIsOK(t *testing.T) {
	assert.True(t, IsOK("<camrply><result>ok</result></camrply>"))
	assert.True(t, IsOK("junk<result>ok</result>junk"))
	assert.False(t, IsOK(""))
	assert.False(t, IsOK("ok"))
	assert.False(t, IsOK("<result>OK</result>"))
	assert.False(t, IsOK("<camrply><result>err_param</result></camrply>"))
}

func TestCheckResponseLogsBody(t *testing.T) {
	var logs bytes.Buffer
	c, err := New(Config{Address: "camera"}, zerolog.New(&logs))
	require.NoError(t, err)

	assert.True(t, c.checkResponse("<result>ok</result>"))
	assert.Empty(t, logs.String())

	body := "<camrply><result>err_reject</result><reason>menu open</reason></camrply>"
	assert.False(t, c.checkResponse(body))
	assert.Contains(t, logs.String(), body)
	assert.Contains(t, logs.String(), `"level":"error"`)

	logs.Reset()
	assert.False(t, c.checkResponse(""))
	assert.Contains(t, logs.String(), `"body":""`)
}

func TestQueriesReturnRawBody(t *testing.T) {
	c, cam, _ := newSimClient(t, camsim.DefaultConfig())
	ctx := context.Background()

	lens, err := c.LensInfo(ctx)
	require.NoError(t, err)
	assert.Contains(t, lens, "ok,")

	_, err = c.CurrentMenuInfo(ctx)
	require.NoError(t, err)
	_, err = c.AllMenuInfo(ctx)
	require.NoError(t, err)

	mode, err := c.FocusMode(ctx)
	require.NoError(t, err)
	assert.Contains(t, mode, `focusmode="mf"`)
	_, err = c.FocusMagnification(ctx)
	require.NoError(t, err)
	_, err = c.MFAssistSetting(ctx)
	require.NoError(t, err)

	state, err := c.GetState(ctx)
	require.NoError(t, err)
	assert.Contains(t, state, "<state>")

	// error bodies are passed through untouched
	body, err := c.GetSetting(ctx, "nosuchsetting")
	require.NoError(t, err)
	assert.Contains(t, body, "err_param")

	assert.Equal(t, []camsim.Request{
		{Mode: "getinfo", Type: "lens"},
		{Mode: "getinfo", Type: "curmenu"},
		{Mode: "getinfo", Type: "allmenu"},
		{Mode: "getsetting", Type: "focusmode"},
		{Mode: "getsetting", Type: "mf_asst_mag"},
		{Mode: "getsetting", Type: "mf_asst"},
		{Mode: "getstate"},
		{Mode: "getsetting", Type: "nosuchsetting"},
	}, cam.Requests())
}

func TestFormatClock(t *testing.T) {
	tests := []struct {
		name string
		t    time.Time
		want string
	}{
		{"utc", time.Date(2021, 1, 2, 3, 4, 5, 0, time.UTC), "20210102030405+0000"},
		{"east", time.Date(2024, 3, 5, 14, 7, 9, 0, time.FixedZone("IST", 5*3600+1800)), "20240305140709+0530"},
		{"west", time.Date(1999, 12, 31, 23, 59, 59, 0, time.FixedZone("EST", -5*3600)), "19991231235959-0500"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatClock(tt.t))
		})
	}
}

func TestSetDate(t *testing.T) {
	c, cam, _ := newSimClient(t, camsim.DefaultConfig())
	ctx := context.Background()

	cet := time.FixedZone("CET", 3600)
	require.NoError(t, c.SetDate(ctx, time.Date(2023, 6, 1, 12, 30, 0, 0, cet)))
	v, _ := cam.Setting("clock")
	assert.Equal(t, "20230601123000+0100", v)

	fixed := time.Date(2020, 2, 29, 8, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return fixed }
	require.NoError(t, c.SetDate(ctx, time.Time{}))
	v, _ = cam.Setting("clock")
	assert.Equal(t, FormatClock(fixed.Local()), v)
}

func TestObserver(t *testing.T) {
	cam := camsim.New(camsim.DefaultConfig(), zerolog.Nop())
	cam.Fail("stopstream")
	srv := httptest.NewServer(cam)
	defer srv.Close()

	obs := &recordingObserver{}
	c, err := New(Config{Address: srv.URL, Observer: obs}, zerolog.Nop())
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, c.CapturePhoto(ctx))
	require.Error(t, c.StopStream(ctx))
	_, err = c.GetState(ctx)
	require.NoError(t, err)
	_, err = c.StepFocus(ctx, Wide, Normal)
	require.NoError(t, err)

	assert.Equal(t, 1, obs.commands[OutcomeOK])
	assert.Equal(t, 1, obs.commands[OutcomeFailed])
	assert.Equal(t, 2, obs.commands[OutcomeUnchecked])
	assert.Equal(t, []int{522}, obs.steps)
}
