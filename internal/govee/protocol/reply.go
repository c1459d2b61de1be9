package protocol

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dokzlo13/goveed/internal/color"
)

// ErrUnknownReply is returned for well-formed envelopes carrying a command we do not handle.
var ErrUnknownReply = errors.New("unknown reply command")

// StatusReply is the payload of a devStatus answer. Brightness is reported 0-100.
type StatusReply struct {
	OnOff            int       `json:"onOff"`
	Brightness       int       `json:"brightness"`
	Color            color.RGB `json:"color"`
	ColorTemInKelvin int       `json:"colorTemInKelvin"`
}

// ScanReply is the payload of a scan answer.
type ScanReply struct {
	IP              string `json:"ip"`
	Device          string `json:"device"`
	SKU             string `json:"sku"`
	BleVersionHard  string `json:"bleVersionHard"`
	BleVersionSoft  string `json:"bleVersionSoft"`
	WifiVersionHard string `json:"wifiVersionHard"`
	WifiVersionSoft string `json:"wifiVersionSoft"`
}

// Reply is a decoded datagram from a device. Exactly one of Status and Scan is set.
type Reply struct {
	Cmd    Cmd
	Status *StatusReply
	Scan   *ScanReply
}

type rawEnvelope struct {
	Msg struct {
		Cmd  Cmd             `json:"cmd"`
		Data json.RawMessage `json:"data"`
	} `json:"msg"`
}

// DecodeReply parses a datagram received on the reply port.
func DecodeReply(b []byte) (Reply, error) {
	var raw rawEnvelope
	if err := json.Unmarshal(b, &raw); err != nil {
		return Reply{}, fmt.Errorf("failed to decode reply: %w", err)
	}

	reply := Reply{Cmd: raw.Msg.Cmd}
	switch raw.Msg.Cmd {
	case CmdStatus:
		var s StatusReply
		if err := json.Unmarshal(raw.Msg.Data, &s); err != nil {
			return Reply{}, fmt.Errorf("failed to decode %s data: %w", raw.Msg.Cmd, err)
		}
		reply.Status = &s
	case CmdScan:
		var s ScanReply
		if err := json.Unmarshal(raw.Msg.Data, &s); err != nil {
			return Reply{}, fmt.Errorf("failed to decode %s data: %w", raw.Msg.Cmd, err)
		}
		reply.Scan = &s
	default:
		return Reply{}, fmt.Errorf("%w: %q", ErrUnknownReply, raw.Msg.Cmd)
	}

	return reply, nil
}
