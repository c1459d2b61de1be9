// Package protocol encodes the JSON datagrams understood by Govee devices on the LAN API.
//
// Every datagram is a single envelope:
//
//	{"msg":{"cmd":"<name>","data":{...}}}
//
// Field names and nesting are part of the wire contract and must not change.
package protocol

import (
	"encoding/json"
	"fmt"
	"math"

	"github.com/dokzlo13/goveed/internal/color"
)

// Cmd names a device command.
type Cmd string

const (
	CmdColor      Cmd = "colorwc"
	CmdBrightness Cmd = "brightness"
	CmdStatus     Cmd = "devStatus"
	CmdTurn       Cmd = "turn"
	CmdScan       Cmd = "scan"
)

// Envelope is the outer shape of every datagram.
type Envelope struct {
	Msg Message `json:"msg"`
}

// Message carries the command name and its payload.
type Message struct {
	Cmd  Cmd `json:"cmd"`
	Data any `json:"data"`
}

type colorData struct {
	Color color.RGB `json:"color"`
}

type kelvinData struct {
	ColorTemInKelvin int `json:"colorTemInKelvin"`
}

type valueData[T any] struct {
	Value T `json:"value"`
}

type scanData struct {
	AccountTopic string `json:"account_topic"`
}

// ColorRGB sets an absolute color.
func ColorRGB(c color.RGB) Envelope {
	return Envelope{Msg: Message{Cmd: CmdColor, Data: colorData{Color: c}}}
}

// ColorKelvin sets the color by temperature. The device derives RGB itself.
func ColorKelvin(kelvin float64) Envelope {
	return Envelope{Msg: Message{Cmd: CmdColor, Data: kelvinData{ColorTemInKelvin: int(math.Round(kelvin))}}}
}

// Brightness sets the normalized brightness (0.0-1.0).
func Brightness(value float64) Envelope {
	return Envelope{Msg: Message{Cmd: CmdBrightness, Data: valueData[float64]{Value: value}}}
}

// Status asks the device to report its state.
func Status() Envelope {
	return Envelope{Msg: Message{Cmd: CmdStatus, Data: struct{}{}}}
}

// Turn switches the device on or off.
func Turn(on bool) Envelope {
	v := 0
	if on {
		v = 1
	}
	return Envelope{Msg: Message{Cmd: CmdTurn, Data: valueData[int]{Value: v}}}
}

// Scan asks every device on the network to announce itself.
func Scan() Envelope {
	return Envelope{Msg: Message{Cmd: CmdScan, Data: scanData{AccountTopic: "reserve"}}}
}

// Encode serializes an envelope for a single datagram.
func Encode(e Envelope) ([]byte, error) {
	b, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s command: %w", e.Msg.Cmd, err)
	}
	return b, nil
}
