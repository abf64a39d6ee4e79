package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/canlink-io/isotp/internal/pack"
)

const sampleINI = `
[link]
send_id = 0x700
receive_id = 0x701
send_buf_size = 512
receive_buf_size = 512
frame_padding = true
default_block_size = 4
default_st_min = 10
response_timeout_ms = 250
max_wft = 3
mau_width = 1
`

func writeSample(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "link.ini")
	assert.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadParsesArbitrationIDsAndTimings(t *testing.T) {
	cfg, err := Load(writeSample(t, sampleINI))
	assert.NoError(t, err)
	assert.Equal(t, uint32(0x700), cfg.SendID)
	assert.Equal(t, uint32(0x701), cfg.ReceiveID)
	assert.Equal(t, 512, cfg.SendBufSize)
	assert.True(t, cfg.FramePadding)
	assert.Equal(t, uint8(4), cfg.DefaultBlockSize)
	assert.Equal(t, uint8(10), cfg.DefaultSTmin)
	assert.Equal(t, uint32(250), cfg.ResponseTimeoutMs)
	assert.Equal(t, uint8(3), cfg.MaxWFT)
}

func TestLoadRejectsBadMAUWidth(t *testing.T) {
	_, err := Load(writeSample(t, "[link]\nsend_id = 0x700\nmau_width = 3\n"))
	assert.Error(t, err)
}

func TestLoadFillsDefaultsForOmittedFields(t *testing.T) {
	cfg, err := Load(writeSample(t, "[link]\nsend_id = 256\n"))
	assert.NoError(t, err)
	assert.Equal(t, uint32(256), cfg.SendID)
	assert.Equal(t, uint32(0), cfg.ReceiveID)
	assert.Equal(t, 1, cfg.MAUWidth)
	assert.NotZero(t, cfg.ResponseTimeoutMs)
}

func TestNewBufferSelectsPackerByWidth(t *testing.T) {
	cfg := LinkConfig{MAUWidth: 2}
	buf := cfg.NewBuffer(10)
	assert.IsType(t, pack.WordBuffer{}, buf)
	assert.Equal(t, 10, buf.Len())

	cfg.MAUWidth = 1
	buf = cfg.NewBuffer(10)
	assert.IsType(t, pack.OctetBuffer{}, buf)
	assert.Equal(t, 10, buf.Len())
}
