package tools

import (
	"context"
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kadirpekel/maestro/pkg/protocol"
)

func TestCodeInterpreterStreamsAndUploads(t *testing.T) {
	files := fileServer(t)
	csv := base64.StdEncoding.EncodeToString([]byte("a,b\n1,2\n"))
	code := sseServer(t,
		frame{MessageType: "code", Data: "print(1)\n"},
		frame{MessageType: "code", Data: "1\n"},
		frame{MessageType: "code", IsFinal: true, Files: []inlineFile{{FileName: "out.csv", Data: csv}}},
	)

	run, w, p := newRunContext(t, true, protocol.StyleDefault)
	tool := NewCodeInterpreterTool(testEndpoint(code.URL), NewFileClient(testEndpoint(files.URL)))

	result, err := tool.Execute(context.Background(), run, map[string]any{"task": "print a number"})
	require.NoError(t, err)
	require.False(t, result.Failed(), result.Error)

	assert.Equal(t, "print(1)\n1\n", result.Content)
	require.Len(t, result.Files, 1)
	assert.Equal(t, "out.csv", result.Files[0].FileName)
	require.Len(t, run.Files(), 1)

	p.Close(nil)
	events := w.ofType(protocol.TypeCode)
	require.Len(t, events, 3)
	assert.Equal(t, events[0].MessageID, events[2].MessageID)
	assert.False(t, events[0].IsFinal)
	assert.False(t, events[1].IsFinal)

	final := events[2]
	require.True(t, final.IsFinal)
	payload, ok := final.ResultMap.(protocol.ArtifactPayload)
	require.True(t, ok)
	assert.Equal(t, "print(1)\n1\n", payload.Data)
	require.Len(t, payload.FileInfo, 1)
	assert.Equal(t, "out.csv", payload.FileInfo[0].FileName)
}

func TestCodeInterpreterNonStreamEmitsOnlyFinal(t *testing.T) {
	code := sseServer(t,
		frame{MessageType: "code", Data: "output\n"},
		frame{MessageType: "code", IsFinal: true},
	)

	run, w, p := newRunContext(t, false, protocol.StyleDefault)
	tool := NewCodeInterpreterTool(testEndpoint(code.URL), nil)

	result, err := tool.Execute(context.Background(), run, map[string]any{"task": "compute"})
	require.NoError(t, err)
	assert.Equal(t, "output\n", result.Content)

	p.Close(nil)
	events := w.ofType(protocol.TypeCode)
	require.Len(t, events, 1)
	assert.True(t, events[0].IsFinal)
}

func TestCodeInterpreterFinalDataWins(t *testing.T) {
	code := sseServer(t,
		frame{MessageType: "code", Data: "partial"},
		frame{MessageType: "code", IsFinal: true, Data: "the whole output"},
	)

	run, _, p := newRunContext(t, true, protocol.StyleDefault)
	defer p.Close(nil)
	tool := NewCodeInterpreterTool(testEndpoint(code.URL), nil)

	result, err := tool.Execute(context.Background(), run, map[string]any{"task": "compute"})
	require.NoError(t, err)
	assert.Equal(t, "the whole output", result.Content)
}

func TestCodeInterpreterRequiresTask(t *testing.T) {
	run, _, p := newRunContext(t, true, protocol.StyleDefault)
	defer p.Close(nil)
	tool := NewCodeInterpreterTool(testEndpoint("http://unused.local"), nil)

	result, err := tool.Execute(context.Background(), run, map[string]any{})
	require.NoError(t, err)
	assert.True(t, result.Failed())
	assert.Contains(t, result.Error, "task")
}
