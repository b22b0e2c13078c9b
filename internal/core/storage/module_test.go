package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx"
	"go.uber.org/fx/fxtest"

	"github.com/dep2p/go-pushclient/config"
)

func TestModule_InMemory(t *testing.T) {
	cfg := config.NewConfig()
	cfg.Storage.InMemory = true
	cfg.Storage.DataDir = ""

	var eng InternalEngine
	app := fxtest.New(t,
		fx.Supply(cfg),
		Module(),
		fx.Populate(&eng),
	)
	app.RequireStart()

	require.NoError(t, eng.Put([]byte("k"), []byte("v")))
	got, err := eng.Get([]byte("k"))
	require.NoError(t, err)
	assert.Equal(t, "v", string(got))

	app.RequireStop()
	_, err = eng.Get([]byte("k"))
	assert.True(t, IsClosed(err))
}

func TestModule_Persistent(t *testing.T) {
	cfg := config.NewConfig()
	cfg.Storage.DataDir = t.TempDir()

	var eng InternalEngine
	app := fxtest.New(t,
		fx.Supply(cfg),
		Module(),
		fx.Populate(&eng),
	)
	app.RequireStart()
	defer app.RequireStop()

	ids := NewKVStore(eng, []byte("id/"))
	require.NoError(t, ids.PutString([]byte("app"), "demo"))
	v, err := ids.GetString([]byte("app"))
	require.NoError(t, err)
	assert.Equal(t, "demo", v)
}

func TestConfigFromUnified_Defaults(t *testing.T) {
	ec := ConfigFromUnified(nil)
	assert.False(t, ec.InMemory)
	assert.True(t, ec.SyncWrites)
	assert.NotEmpty(t, ec.Path)
}
