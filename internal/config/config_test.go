package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"
)

type ConfigSuite struct {
	suite.Suite
	tempDir     string
	origHomeDir string
}

func (s *ConfigSuite) SetupTest() {
	var err error
	s.tempDir, err = os.MkdirTemp("", "config-test-*")
	s.Require().NoError(err)

	s.origHomeDir = os.Getenv("HOME")
	os.Setenv("HOME", s.tempDir)
	Reset()
}

func (s *ConfigSuite) TearDownTest() {
	os.Setenv("HOME", s.origHomeDir)
	os.RemoveAll(s.tempDir)
	Reset()
}

func TestConfigSuite(t *testing.T) {
	suite.Run(t, new(ConfigSuite))
}

func (s *ConfigSuite) TestDefault() {
	cfg := Default()

	s.Equal(DefaultWorkerPort, cfg.WorkerPort)
	s.Equal(DefaultMaxConns, cfg.MaxConns)
	s.Equal(DefaultMaxStringLen, cfg.MaxStringLen)
	s.Equal(DefaultMaxPayloadLen, cfg.MaxPayloadLen)
	s.True(cfg.RedactSecrets)
	s.Equal(3, cfg.MinPhaseEvents)
	s.Equal(6, cfg.MaxPhases)
	s.Equal(8, cfg.MaxPhasesLong)
	s.Equal(4, cfg.HotspotThreshold)
	s.Equal(5, cfg.DetourMinEvents)
}

func (s *ConfigSuite) TestPaths() {
	s.Contains(DataDir(), ".vibe-replay")
	s.Contains(DBPath(), "vibe-replay.db")
	s.Contains(SettingsPath(), "settings.json")
	s.Contains(SessionsDir(), "sessions")
	s.Contains(RulesPath(), "rules.yaml")
}

func (s *ConfigSuite) TestEnsureAll() {
	s.NoError(EnsureAll())

	info, err := os.Stat(DataDir())
	s.NoError(err)
	s.True(info.IsDir())

	info, err = os.Stat(SessionsDir())
	s.NoError(err)
	s.True(info.IsDir())

	info, err = os.Stat(SettingsPath())
	s.NoError(err)
	s.False(info.IsDir())

	// Second run is a no-op.
	s.NoError(EnsureAll())
}

func (s *ConfigSuite) TestLoad_TableDriven() {
	tests := []struct {
		name             string
		settingsJSON     string
		expectedPort     int
		expectedMaxConns int
		expectedHotspot  int
	}{
		{
			name:             "no settings file",
			settingsJSON:     "",
			expectedPort:     DefaultWorkerPort,
			expectedMaxConns: DefaultMaxConns,
			expectedHotspot:  4,
		},
		{
			name:             "custom port",
			settingsJSON:     `{"VIBE_REPLAY_WORKER_PORT": 38888}`,
			expectedPort:     38888,
			expectedMaxConns: DefaultMaxConns,
			expectedHotspot:  4,
		},
		{
			name:             "custom thresholds",
			settingsJSON:     `{"VIBE_REPLAY_MAX_CONNS": 8, "VIBE_REPLAY_HOTSPOT_THRESHOLD": 6}`,
			expectedPort:     DefaultWorkerPort,
			expectedMaxConns: 8,
			expectedHotspot:  6,
		},
		{
			name:             "invalid JSON returns defaults",
			settingsJSON:     `{invalid}`,
			expectedPort:     DefaultWorkerPort,
			expectedMaxConns: DefaultMaxConns,
			expectedHotspot:  4,
		},
		{
			name:             "negative values ignored",
			settingsJSON:     `{"VIBE_REPLAY_WORKER_PORT": -1, "VIBE_REPLAY_MAX_CONNS": 0}`,
			expectedPort:     DefaultWorkerPort,
			expectedMaxConns: DefaultMaxConns,
			expectedHotspot:  4,
		},
	}

	for _, tt := range tests {
		s.Run(tt.name, func() {
			tempDir, err := os.MkdirTemp("", "config-test-*")
			s.Require().NoError(err)
			defer os.RemoveAll(tempDir)

			os.Setenv("HOME", tempDir)
			s.Require().NoError(os.MkdirAll(filepath.Join(tempDir, ".vibe-replay"), 0750))

			if tt.settingsJSON != "" {
				writeErr := os.WriteFile(
					filepath.Join(tempDir, ".vibe-replay", "settings.json"),
					[]byte(tt.settingsJSON),
					0600,
				)
				s.Require().NoError(writeErr)
			}

			cfg, err := Load()
			s.NoError(err)
			s.Require().NotNil(cfg)
			s.Equal(tt.expectedPort, cfg.WorkerPort)
			s.Equal(tt.expectedMaxConns, cfg.MaxConns)
			s.Equal(tt.expectedHotspot, cfg.HotspotThreshold)
		})
	}
}

func (s *ConfigSuite) TestLoad_RedactPatterns() {
	s.Require().NoError(os.MkdirAll(filepath.Join(s.tempDir, ".vibe-replay"), 0750))
	settingsJSON := `{"VIBE_REPLAY_REDACT_PATTERNS": " ghp_ , aws_secret ,"}`
	s.Require().NoError(os.WriteFile(
		filepath.Join(s.tempDir, ".vibe-replay", "settings.json"),
		[]byte(settingsJSON),
		0600,
	))

	cfg, err := Load()
	s.NoError(err)
	s.Equal([]string{"ghp_", "aws_secret"}, cfg.RedactPatterns)
}

func (s *ConfigSuite) TestAnalysisConfig() {
	cfg := Default()
	cfg.MinPhaseSpanSec = 90
	cfg.MaxPhases = 5

	ac := cfg.AnalysisConfig()
	s.Equal(90*time.Second, ac.MinPhaseSpan)
	s.Equal(5, ac.MaxPhases)
	s.Equal(cfg.HotspotThreshold, ac.HotspotThreshold)
	s.Equal(cfg.FamiliarityHigh, ac.FamiliarityHigh)
}

func (s *ConfigSuite) TestGetCachesConfig() {
	cfg := Get()
	s.Require().NotNil(cfg)
	s.Same(cfg, Get())
}

func TestGetWorkerPort_WithEnv(t *testing.T) {
	origEnv := os.Getenv("VIBE_REPLAY_WORKER_PORT")
	defer os.Setenv("VIBE_REPLAY_WORKER_PORT", origEnv)

	os.Setenv("VIBE_REPLAY_WORKER_PORT", "45678")
	assert.Equal(t, 45678, GetWorkerPort())

	os.Setenv("VIBE_REPLAY_WORKER_PORT", "not-a-number")
	assert.Greater(t, GetWorkerPort(), 0)

	os.Setenv("VIBE_REPLAY_WORKER_PORT", "0")
	assert.Greater(t, GetWorkerPort(), 0)

	os.Unsetenv("VIBE_REPLAY_WORKER_PORT")
	assert.Greater(t, GetWorkerPort(), 0)
}

func TestSplitTrim(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected []string
	}{
		{"empty string", "", []string{}},
		{"single value", "ghp_", []string{"ghp_"}},
		{"multiple values", "ghp_,sk-,xoxb-", []string{"ghp_", "sk-", "xoxb-"}},
		{"values with spaces", " ghp_ , sk- ", []string{"ghp_", "sk-"}},
		{"empty values filtered", "ghp_,,sk-,,", []string{"ghp_", "sk-"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, splitTrim(tt.input))
		})
	}
}
