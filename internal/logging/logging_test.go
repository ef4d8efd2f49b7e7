package logging

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
)

func TestInitLevels(t *testing.T) {
	var buf bytes.Buffer
	Init(&buf, false, true)
	t.Cleanup(func() { zerolog.SetGlobalLevel(zerolog.InfoLevel) })

	log.Debug().Msg("hidden")
	log.Info().Msg("shown")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "| INFO  |")
	assert.Contains(t, buf.String(), "shown")

	buf.Reset()
	Init(&buf, true, true)
	log.Debug().Msg("now visible")
	assert.Contains(t, buf.String(), "| DEBUG |")
	assert.Contains(t, buf.String(), "now visible")
}

func TestComponent(t *testing.T) {
	var buf bytes.Buffer
	Init(&buf, false, true)

	l := Component("gpio")
	l.Warn().Int("gpi", 3).Msg("can't read")
	out := buf.String()
	assert.Contains(t, out, "component=gpio")
	assert.Contains(t, out, "gpi=3")
	assert.Contains(t, out, "| WARN  |")
}

func TestDebugFromEnv(t *testing.T) {
	t.Setenv(EnvLogLevel, "")
	assert.False(t, DebugFromEnv())

	t.Setenv(EnvLogLevel, "LOG_INFO")
	assert.False(t, DebugFromEnv())

	t.Setenv(EnvLogLevel, "LOG_DEBUG")
	assert.True(t, DebugFromEnv())
}

func TestMiddlewareRecoversPanic(t *testing.T) {
	var buf bytes.Buffer
	Init(&buf, true, true)
	t.Cleanup(func() { zerolog.SetGlobalLevel(zerolog.InfoLevel) })

	h := Middleware(Component("web"))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/index.json", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, buf.String(), "HTTP endpoint panic")
	assert.Contains(t, buf.String(), "url=/index.json")
}
