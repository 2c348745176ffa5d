package logger

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestComponentLoggerCarriesFields(t *testing.T) {
	var buf bytes.Buffer
	InitWithWriter(&buf, "friend-connect-test", false)
	buf.Reset()

	l := Component("friends")
	l.Info().Str("user_id", "a").Msg("Friend request sent")
	l.Debug().Msg("hidden below info")

	out := buf.String()
	assert.Contains(t, out, "Friend request sent")
	assert.Contains(t, out, "component:friends")
	assert.Contains(t, out, "service:friend-connect-test")
	assert.Contains(t, out, "user_id:a")
	assert.NotContains(t, out, "hidden below info")
}

func TestDebugLevel(t *testing.T) {
	var buf bytes.Buffer
	InitWithWriter(&buf, "friend-connect-test", true)

	l := Get()
	l.Debug().Msg("visible in debug")
	assert.Contains(t, buf.String(), "visible in debug")
}
