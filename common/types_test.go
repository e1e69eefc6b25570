package common

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestViewportScaled(t *testing.T) {
	v := Viewport{X: 10, Y: 20, Width: 1920, Height: 1081}
	s := v.Scaled(0.25)
	assert.Equal(t, Viewport{X: 10, Y: 20, Width: 480, Height: 270}, s)
	assert.Equal(t, v, v.Scaled(1))
}

func TestViewportUntranslated(t *testing.T) {
	v := Viewport{X: 640, Y: 0, Width: 640, Height: 720}
	assert.Equal(t, Viewport{Width: 640, Height: 720}, v.Untranslated())
}

func TestEyeStartsFrame(t *testing.T) {
	assert.True(t, EyeMonocular.StartsFrame())
	assert.True(t, EyeLeft.StartsFrame())
	assert.False(t, EyeRight.StartsFrame())
	assert.Equal(t, "right", EyeRight.String())
}

func TestCoalesce(t *testing.T) {
	assert.Equal(t, 3, Coalesce(0, 3, 4))
	assert.Equal(t, "", Coalesce("", ""))
	assert.Equal(t, float32(0.5), Coalesce(float32(0), float32(0.5)))
}

func TestSetLogger(t *testing.T) {
	defer SetLogger(nil)

	assert.False(t, Logger().Enabled(t.Context(), slog.LevelError))

	var buf bytes.Buffer
	SetLogger(slog.New(slog.NewTextHandler(&buf, nil)))
	Logger().Info("rebuild", "hdr", true)
	assert.Contains(t, buf.String(), "hdr=true")

	SetLogger(nil)
	assert.False(t, Logger().Enabled(t.Context(), slog.LevelError))
}
