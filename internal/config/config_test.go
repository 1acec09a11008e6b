package config

import (
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func resetViper(t *testing.T) {
	t.Helper()
	snapshot := map[string]interface{}{
		KeyListenPort:      viper.Get(KeyListenPort),
		KeyMaxFileMB:       viper.Get(KeyMaxFileMB),
		KeyMinScore:        viper.Get(KeyMinScore),
		KeyPatternFile:     viper.Get(KeyPatternFile),
		KeyDefaultEntities: viper.Get(KeyDefaultEntities),
		KeyWorkers:         viper.Get(KeyWorkers),
	}
	t.Cleanup(func() {
		for k, v := range snapshot {
			viper.Set(k, v)
		}
	})
}

func TestLoadDefaults(t *testing.T) {
	resetViper(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, DefaultListenPort, cfg.ListenPort)
	assert.Equal(t, DefaultMaxFileMB, cfg.MaxFileMB)
	assert.Equal(t, DefaultWorkers, cfg.Workers)
	assert.Equal(t, DefaultEntities, cfg.DefaultEntities)
	assert.Zero(t, cfg.MinScore)
	assert.Empty(t, cfg.PatternFile)
}

func TestLoadOverrides(t *testing.T) {
	resetViper(t)
	viper.Set(KeyListenPort, 9090)
	viper.Set(KeyMinScore, 0.7)
	viper.Set(KeyDefaultEntities, []string{"EMAIL_ADDRESS"})

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.ListenPort)
	assert.Equal(t, 0.7, cfg.MinScore)
	assert.Equal(t, []string{"EMAIL_ADDRESS"}, cfg.DefaultEntities)
}

func TestLoadValidation(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value interface{}
		want  string
	}{
		{"port zero", KeyListenPort, 0, "listen_port"},
		{"port too high", KeyListenPort, 70000, "listen_port"},
		{"negative file size", KeyMaxFileMB, -1, "max_file_mb"},
		{"score above one", KeyMinScore, 1.5, "min_score"},
		{"zero workers", KeyWorkers, 0, "workers"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resetViper(t)
			viper.Set(tt.key, tt.value)

			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
