package logger

import (
	"bytes"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestWithMessageCarriesFields(t *testing.T) {
	var buf bytes.Buffer
	zlog = zerolog.New(&buf)

	WithMessage("chat-1", "msg-1").Error().Msg("sweep failed")

	out := buf.String()
	assert.Contains(t, out, `"chat_id":"chat-1"`)
	assert.Contains(t, out, `"message_id":"msg-1"`)
	assert.Contains(t, out, `"level":"error"`)
}

func TestWithRequestIDCarriesField(t *testing.T) {
	var buf bytes.Buffer
	zlog = zerolog.New(&buf)

	WithRequestID("req-42").Info().Msg("handled")

	assert.Contains(t, buf.String(), `"request_id":"req-42"`)
}
