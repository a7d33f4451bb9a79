package log

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	logcomm "github.com/TopiaNetwork/aggregation/log/common"
)

func TestCreateMainLogger(t *testing.T) {
	i := 100
	str := "TestCreate"
	log, err := CreateMainLogger(logcomm.DebugLevel, JSONFormat, StdErrOutput, "")
	assert.Equal(t, err, nil)
	log.Debug("TestCreateMainLogger ok")
	log.Info("TestCreateMainLogger ok")
	log.Infof("TestCreateMainLogger ok i=%d, str=%s", i, str)

	log.UpdateLoggerLevel(logcomm.InfoLevel)

	log.Debug("TestCreateMainLogger ok after update")
	log.Info("TestCreateMainLogger ok after update")
}

func TestModuleLoggerTagsOutput(t *testing.T) {
	var buf bytes.Buffer
	log, err := CreateLoggerWithWriter(logcomm.DebugLevel, JSONFormat, &buf)
	require.NoError(t, err)

	ml := CreateModuleLogger(logcomm.InfoLevel, "Orchestrator", log)
	ml.Debug("dropped below module level")
	ml.Infof("round %d started", 7)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1)

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	assert.Equal(t, "Orchestrator", entry["module"])
	assert.Equal(t, "round 7 started", entry["message"])
}

func TestParseLogFormat(t *testing.T) {
	f, err := ParseLogFormat("JSON")
	require.NoError(t, err)
	assert.Equal(t, JSONFormat, f)

	_, err = ParseLogFormat("xml")
	assert.Error(t, err)
}
