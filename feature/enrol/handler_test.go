package enrol

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"enrol-sync/core/loader"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func setupTestApp(t *testing.T) (*fiber.App, *Runner) {
	runner := NewRunner(creatingConfig(filepath.Join(t.TempDir(), "absent.xml")), newTestStore(t), nil, zap.NewNop())
	app := fiber.New()

	manager := loader.NewManager()
	manager.Register(NewFeature(context.Background(), runner, zap.NewNop()))
	require.NoError(t, manager.LoadAll(app))
	return app, runner
}

func TestHandleGetLastRun_NoneYet(t *testing.T) {
	app, _ := setupTestApp(t)

	resp, err := app.Test(httptest.NewRequest("GET", "/runs/last", nil))
	require.NoError(t, err)
	assert.Equal(t, 404, resp.StatusCode)
}

func TestHandleGetLastRun(t *testing.T) {
	app, runner := setupTestApp(t)
	_, err := runner.Run(context.Background(), RunOptions{})
	require.NoError(t, err)

	resp, err := app.Test(httptest.NewRequest("GET", "/runs/last", nil))
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)

	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, runner.LastReport().RunID, body["run_id"])
	assert.Equal(t, false, body["file_found"])
}

func TestHandleStartRun(t *testing.T) {
	app, runner := setupTestApp(t)

	resp, err := app.Test(httptest.NewRequest("POST", "/runs?force=true", nil))
	require.NoError(t, err)
	assert.Equal(t, 202, resp.StatusCode)

	assert.Eventually(t, func() bool {
		return !runner.Running() && runner.LastReport() != nil
	}, 5*time.Second, 10*time.Millisecond)
}

func TestHandleStartRun_Conflict(t *testing.T) {
	app, runner := setupTestApp(t)
	runner.running.Store(true)

	resp, err := app.Test(httptest.NewRequest("POST", "/runs", nil))
	require.NoError(t, err)
	assert.Equal(t, 409, resp.StatusCode)
}
