// Package config loads isotp.Link parameters from an INI file, the way
// this module's teacher loads its object dictionary from an EDS file via
// gopkg.in/ini.v1.
package config

import (
	"fmt"

	"gopkg.in/ini.v1"

	"github.com/canlink-io/isotp"
	"github.com/canlink-io/isotp/internal/pack"
)

// LinkConfig is the on-disk shape of one [link] section.
type LinkConfig struct {
	SendID         uint32
	ReceiveID      uint32
	SendBufSize    int
	ReceiveBufSize int

	FramePadding      bool
	DefaultBlockSize  uint8
	DefaultSTmin      uint8
	ResponseTimeoutMs uint32
	MaxWFT            uint8

	// MAUWidth selects the packer: 1 for byte-addressable hosts, 2 for
	// hosts whose minimum addressable unit is a 16-bit word.
	MAUWidth int
}

// Load reads a "[link]"-sectioned INI file into a LinkConfig. Unset timing,
// block-size, wait-frame and padding fields take isotp.DefaultConfig()'s
// values; unset buffer sizes default to 4095 octets and mau_width to 1.
func Load(path string) (LinkConfig, error) {
	file, err := ini.Load(path)
	if err != nil {
		return LinkConfig{}, fmt.Errorf("config: load %s: %w", path, err)
	}
	return fromSection(file.Section("link"))
}

func fromSection(section *ini.Section) (LinkConfig, error) {
	defaults := isotp.DefaultConfig()
	cfg := LinkConfig{
		SendBufSize:       4095,
		ReceiveBufSize:    4095,
		FramePadding:      false,
		DefaultBlockSize:  defaults.DefaultBlockSize,
		DefaultSTmin:      defaults.DefaultSTmin,
		ResponseTimeoutMs: defaults.ResponseTimeout,
		MaxWFT:            defaults.MaxWFT,
		MAUWidth:          1,
	}

	sendID, err := parseArbitrationID(section.Key("send_id").String())
	if err != nil {
		return LinkConfig{}, fmt.Errorf("config: send_id: %w", err)
	}
	cfg.SendID = sendID

	if key := section.Key("receive_id"); key.String() != "" {
		recvID, err := parseArbitrationID(key.String())
		if err != nil {
			return LinkConfig{}, fmt.Errorf("config: receive_id: %w", err)
		}
		cfg.ReceiveID = recvID
	}

	cfg.SendBufSize = section.Key("send_buf_size").MustInt(cfg.SendBufSize)
	cfg.ReceiveBufSize = section.Key("receive_buf_size").MustInt(cfg.ReceiveBufSize)
	cfg.FramePadding = section.Key("frame_padding").MustBool(cfg.FramePadding)
	cfg.DefaultBlockSize = uint8(section.Key("default_block_size").MustInt(int(cfg.DefaultBlockSize)))
	cfg.DefaultSTmin = uint8(section.Key("default_st_min").MustInt(int(cfg.DefaultSTmin)))
	cfg.ResponseTimeoutMs = uint32(section.Key("response_timeout_ms").MustInt(int(cfg.ResponseTimeoutMs)))
	cfg.MaxWFT = uint8(section.Key("max_wft").MustInt(int(cfg.MaxWFT)))
	cfg.MAUWidth = section.Key("mau_width").MustInt(cfg.MAUWidth)

	if cfg.MAUWidth != 1 && cfg.MAUWidth != 2 {
		return LinkConfig{}, fmt.Errorf("config: mau_width must be 1 or 2, got %d", cfg.MAUWidth)
	}

	return cfg, nil
}

func parseArbitrationID(value string) (uint32, error) {
	var id uint32
	_, err := fmt.Sscanf(value, "0x%x", &id)
	if err == nil {
		return id, nil
	}
	_, err = fmt.Sscanf(value, "%d", &id)
	if err != nil {
		return 0, fmt.Errorf("invalid arbitration id %q", value)
	}
	return id, nil
}

// IsotpConfig converts the loader-facing fields into isotp.Config.
func (c LinkConfig) IsotpConfig() isotp.Config {
	return isotp.Config{
		FramePadding:     c.FramePadding,
		DefaultBlockSize: c.DefaultBlockSize,
		DefaultSTmin:     c.DefaultSTmin,
		ResponseTimeout:  c.ResponseTimeoutMs,
		MaxWFT:           c.MaxWFT,
	}
}

// NewBuffer allocates a pack.Buffer of the given octet capacity sized for
// this config's MAU width.
func (c LinkConfig) NewBuffer(octets int) pack.Buffer {
	if c.MAUWidth == 2 {
		return pack.NewWordBuffer(octets)
	}
	return pack.NewOctetBuffer(octets)
}

// NewLink allocates the send/receive buffers described by cfg and
// initializes link with them.
func NewLink(link *isotp.Link, cfg LinkConfig, tx isotp.Transmitter, clock isotp.Clock, cb isotp.Callbacks) {
	link.Init(cfg.SendID, cfg.NewBuffer(cfg.SendBufSize), cfg.NewBuffer(cfg.ReceiveBufSize), cfg.IsotpConfig(), tx, clock, cb)
}
