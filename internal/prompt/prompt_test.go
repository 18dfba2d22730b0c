package prompt

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writePrompts(t *testing.T, system, prompt string) (string, string) {
	t.Helper()
	dir := t.TempDir()
	systemPath := filepath.Join(dir, "system.txt")
	promptPath := filepath.Join(dir, "prompt.txt")
	require.NoError(t, os.WriteFile(systemPath, []byte(system), 0o644))
	require.NoError(t, os.WriteFile(promptPath, []byte(prompt), 0o644))
	return systemPath, promptPath
}

func TestLibraryLoadAndRender(t *testing.T) {
	systemPath, promptPath := writePrompts(t,
		"you are a scalping analyst",
		"analyze {symbol} at {time}")

	lib, err := NewLibrary(systemPath, promptPath)
	require.NoError(t, err)
	defer lib.Close()

	assert.Equal(t, "you are a scalping analyst", lib.System())
	rendered := lib.Render(map[string]string{"symbol": "XAUUSD", "time": "2026-08-28T10:00:00Z"})
	assert.Equal(t, "analyze XAUUSD at 2026-08-28T10:00:00Z", rendered)
}

func TestLibraryRenderLeavesUnknownPlaceholders(t *testing.T) {
	systemPath, promptPath := writePrompts(t, "sys", "check {symbol} on {timeframe}")
	lib, err := NewLibrary(systemPath, promptPath)
	require.NoError(t, err)
	defer lib.Close()

	rendered := lib.Render(map[string]string{"symbol": "EURUSD"})
	assert.Equal(t, "check EURUSD on {timeframe}", rendered)
}

func TestLibraryRejectsEmptyUserPrompt(t *testing.T) {
	systemPath, promptPath := writePrompts(t, "sys", "   \n")
	_, err := NewLibrary(systemPath, promptPath)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty")
}

func TestLibraryRejectsMissingFile(t *testing.T) {
	dir := t.TempDir()
	promptPath := filepath.Join(dir, "prompt.txt")
	require.NoError(t, os.WriteFile(promptPath, []byte("p"), 0o644))
	_, err := NewLibrary(filepath.Join(dir, "nope.txt"), promptPath)
	assert.Error(t, err)
}

func TestLibraryHotReload(t *testing.T) {
	systemPath, promptPath := writePrompts(t, "sys", "old text {symbol}")
	lib, err := NewLibrary(systemPath, promptPath)
	require.NoError(t, err)
	defer lib.Close()

	require.NoError(t, os.WriteFile(promptPath, []byte("new text {symbol}"), 0o644))
	assert.Eventually(t, func() bool {
		return lib.Render(nil) == "new text {symbol}"
	}, 2*time.Second, 20*time.Millisecond)
}

func TestLibraryKeepsLastGoodOnBadReload(t *testing.T) {
	systemPath, promptPath := writePrompts(t, "sys", "good text")
	lib, err := NewLibrary(systemPath, promptPath)
	require.NoError(t, err)
	defer lib.Close()

	// An emptied prompt must not replace the working one.
	require.NoError(t, os.WriteFile(promptPath, []byte("  "), 0o644))
	time.Sleep(200 * time.Millisecond)
	assert.Equal(t, "good text", lib.Render(nil))
}
