package lumix

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lumix-remote/internal/camsim"
)

func focusValues(reqs []camsim.Request) []string {
	var out []string
	for _, r := range reqs {
		if r.Mode == "camctrl" {
			out = append(out, r.Value)
		}
	}
	return out
}

func countValue(values []string, v string) int {
	n := 0
	for _, x := range values {
		if x == v {
			n++
		}
	}
	return n
}

func TestParseFocusPosition(t *testing.T) {
	pos, err := ParseFocusPosition("ok,512,1024")
	require.NoError(t, err)
	assert.Equal(t, 512, pos)

	pos, err = ParseFocusPosition("ok, 7 ,1024\r\n")
	require.NoError(t, err)
	assert.Equal(t, 7, pos)

	for _, body := range []string{"", "ok", "<camrply><result>err_busy</result></camrply>", "ok,abc,1"} {
		_, err := ParseFocusPosition(body)
		assert.ErrorIs(t, err, ErrMalformedFocusResponse, body)
	}
}

func TestParseFocusTarget(t *testing.T) {
	target, err := ParseFocusTarget("current")
	require.NoError(t, err)
	assert.True(t, target.IsCurrent())
	assert.Equal(t, "current", target.String())

	target, err = ParseFocusTarget(" 500 ")
	require.NoError(t, err)
	assert.Equal(t, At(500), target)
	assert.Equal(t, "500", target.String())

	target, err = ParseFocusTarget("")
	require.NoError(t, err)
	assert.Equal(t, FocusTarget{}, target)
	assert.True(t, FocusTarget{}.IsCurrent())
	assert.False(t, At(0).IsCurrent())

	_, err = ParseFocusTarget("far")
	assert.Error(t, err)
}

func TestParseDirectionAndSpeed(t *testing.T) {
	d, err := ParseDirection("TELE")
	require.NoError(t, err)
	assert.Equal(t, Tele, d)
	_, err = ParseDirection("near")
	assert.Error(t, err)

	s, err := ParseSpeed("")
	require.NoError(t, err)
	assert.Equal(t, Normal, s)
	s, err = ParseSpeed("fast")
	require.NoError(t, err)
	assert.Equal(t, Fast, s)
	_, err = ParseSpeed("slow")
	assert.Error(t, err)
}

func TestFocusControl(t *testing.T) {
	c, cam, _ := newSimClient(t, camsim.DefaultConfig())
	ctx := context.Background()

	body, err := c.FocusControl(ctx, Tele, Fast)
	require.NoError(t, err)
	assert.Equal(t, "ok,452,1023", body)
	assert.Equal(t, []camsim.Request{{Mode: "camctrl", Type: "focus", Value: "tele-fast"}}, cam.Requests())

	_, err = c.FocusControl(ctx, "up", Fast)
	assert.Error(t, err)
	_, err = c.FocusControl(ctx, Wide, "slow")
	assert.Error(t, err)
	assert.Len(t, cam.Requests(), 1)
}

func TestRackFocusConvergesWide(t *testing.T) {
	cfg := camsim.DefaultConfig()
	cfg.Position = 100
	c, cam, _ := newSimClient(t, cfg)

	pos, err := c.RackFocus(context.Background(), RackOptions{Start: Current, End: At(500), Speed: Normal})
	require.NoError(t, err)
	assert.InDelta(t, 500, pos, fineTolerance)
	assert.Equal(t, cam.Position(), pos)

	values := focusValues(cam.Requests())
	assert.Equal(t, "tele-normal", values[0])
	assert.Equal(t, len(values)-1, countValue(values, "wide-normal"))
}

func TestRackFocusConvergesTele(t *testing.T) {
	cfg := camsim.DefaultConfig()
	cfg.Position = 800
	c, cam, _ := newSimClient(t, cfg)

	pos, err := c.RackFocus(context.Background(), RackOptions{Start: Current, End: At(200)})
	require.NoError(t, err)
	assert.InDelta(t, 200, pos, fineTolerance)
	assert.GreaterOrEqual(t, pos, 200)

	values := focusValues(cam.Requests())
	assert.Equal(t, len(values), countValue(values, "tele-normal"))
}

func TestRackFocusFastRatchetsToNormal(t *testing.T) {
	cfg := camsim.DefaultConfig()
	cfg.Position = 100
	c, cam, _ := newSimClient(t, cfg)

	pos, err := c.RackFocus(context.Background(), RackOptions{Start: Current, End: At(500), Speed: Fast})
	require.NoError(t, err)
	assert.Equal(t, 490, pos)

	// calibration, fast steps 90 -> 450, then fine steps to 490
	values := focusValues(cam.Requests())
	assert.Equal(t, []string{
		"tele-normal",
		"wide-fast", "wide-fast", "wide-fast", "wide-fast", "wide-fast", "wide-fast",
		"wide-normal", "wide-normal", "wide-normal", "wide-normal",
	}, values)
}

func TestRackFocusSeeksStartFirst(t *testing.T) {
	cfg := camsim.DefaultConfig()
	cfg.Position = 600
	c, cam, _ := newSimClient(t, cfg)

	pos, err := c.RackFocus(context.Background(), RackOptions{Start: At(300), End: At(700)})
	require.NoError(t, err)
	assert.Equal(t, 690, pos)

	values := focusValues(cam.Requests())
	assert.Equal(t, "tele-normal", values[0])
	assert.Equal(t, 5, countValue(values, "tele-fast"))
	assert.Equal(t, 40, countValue(values, "wide-normal"))
	assert.Len(t, values, 46)
}

func TestRackFocusSeeksStartUpward(t *testing.T) {
	cfg := camsim.DefaultConfig()
	cfg.Position = 100
	c, cam, _ := newSimClient(t, cfg)

	pos, err := c.RackFocus(context.Background(), RackOptions{Start: At(400), End: At(150), Speed: Fast})
	require.NoError(t, err)
	assert.InDelta(t, 150, pos, fineTolerance)

	values := focusValues(cam.Requests())
	assert.Positive(t, countValue(values, "wide-fast"))
	assert.Positive(t, countValue(values, "tele-fast"))
}

func TestRackFocusCurrentToCurrent(t *testing.T) {
	c, cam, _ := newSimClient(t, camsim.DefaultConfig())

	pos, err := c.RackFocus(context.Background(), RackOptions{Start: Current, End: Current})
	require.NoError(t, err)
	assert.Equal(t, 502, pos)
	assert.Equal(t, []string{"tele-normal"}, focusValues(cam.Requests()))
}

func TestRackFocusUnsetStartIsCurrent(t *testing.T) {
	c, cam, _ := newSimClient(t, camsim.DefaultConfig())

	pos, err := c.RackFocus(context.Background(), RackOptions{End: At(500)})
	require.NoError(t, err)
	assert.Equal(t, 502, pos)
	assert.Equal(t, []string{"tele-normal"}, focusValues(cam.Requests()))
}

func TestRackFocusZeroOptions(t *testing.T) {
	c, cam, _ := newSimClient(t, camsim.DefaultConfig())

	pos, err := c.RackFocus(context.Background(), RackOptions{})
	require.NoError(t, err)
	assert.Equal(t, 502, pos)
	assert.Len(t, cam.Requests(), 1)
}

func TestRackFocusStuckDoesNotConverge(t *testing.T) {
	cfg := camsim.DefaultConfig()
	cfg.Position = 100
	c, cam, _ := newSimClient(t, cfg)
	cam.SetStuck(true)

	pos, err := c.RackFocus(context.Background(), RackOptions{Start: Current, End: At(500), MaxSteps: 25})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotConverged)
	assert.Equal(t, 100, pos)

	var nerr *NotConvergedError
	require.ErrorAs(t, err, &nerr)
	assert.Equal(t, 25, nerr.Steps)
	assert.Equal(t, 500, nerr.Target)
	assert.Equal(t, 100, nerr.Position)
	assert.Len(t, focusValues(cam.Requests()), 25)
}

func TestRackFocusCancelled(t *testing.T) {
	c, cam, _ := newSimClient(t, camsim.DefaultConfig())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.RackFocus(ctx, RackOptions{End: At(900)})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, cam.Requests())
}

func TestRackFocusMalformedResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<camrply><result>err_busy</result></camrply>"))
	}))
	defer srv.Close()

	c, err := New(Config{Address: srv.URL}, zerolog.Nop())
	require.NoError(t, err)

	_, err = c.RackFocus(context.Background(), RackOptions{End: At(10)})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMalformedFocusResponse))
}

func TestRackFocusInvalidSpeed(t *testing.T) {
	c, cam, _ := newSimClient(t, camsim.DefaultConfig())

	_, err := c.RackFocus(context.Background(), RackOptions{Speed: "warp"})
	assert.Error(t, err)
	assert.Empty(t, cam.Requests())
}
