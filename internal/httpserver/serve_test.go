package httpserver

import (
	"bytes"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/andrebq/gatekeeper/internal/logutil"
	"github.com/rs/zerolog"
	"github.com/steinfletcher/apitest"
	"github.com/stretchr/testify/require"
)

func TestAccessLog(t *testing.T) {
	var buf bytes.Buffer
	log := zerolog.New(&buf)
	handler := WithAccessLog(log, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		l := logutil.GetOrDefault(r.Context())
		l.Debug().Msg("inside handler")
		w.WriteHeader(http.StatusTeapot)
	}))

	apitest.Handler(handler).Get("/brew").Expect(t).Status(http.StatusTeapot).End()

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	require.Len(t, lines, 2)
	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(lines[1], &entry))
	require.Equal(t, "/brew", entry["http.path"])
	require.Equal(t, float64(http.StatusTeapot), entry["http.status"])
	require.Equal(t, "Request served", entry["message"])
}
