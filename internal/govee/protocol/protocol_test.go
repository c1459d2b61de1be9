package protocol

import (
	"errors"
	"testing"

	"github.com/dokzlo13/goveed/internal/color"
)

func TestEncode_WireShapes(t *testing.T) {
	tests := []struct {
		name string
		env  Envelope
		want string
	}{
		{
			name: "color_rgb",
			env:  ColorRGB(color.RGB{R: 255, G: 10, B: 0}),
			want: `{"msg":{"cmd":"colorwc","data":{"color":{"r":255,"g":10,"b":0}}}}`,
		},
		{
			name: "color_kelvin_rounds",
			env:  ColorKelvin(2700.6),
			want: `{"msg":{"cmd":"colorwc","data":{"colorTemInKelvin":2701}}}`,
		},
		{
			name: "brightness",
			env:  Brightness(0.55),
			want: `{"msg":{"cmd":"brightness","data":{"value":0.55}}}`,
		},
		{
			name: "status",
			env:  Status(),
			want: `{"msg":{"cmd":"devStatus","data":{}}}`,
		},
		{
			name: "turn_on",
			env:  Turn(true),
			want: `{"msg":{"cmd":"turn","data":{"value":1}}}`,
		},
		{
			name: "scan",
			env:  Scan(),
			want: `{"msg":{"cmd":"scan","data":{"account_topic":"reserve"}}}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Encode(tt.env)
			if err != nil {
				t.Fatal(err)
			}
			if string(got) != tt.want {
				t.Errorf("Encode() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestDecodeReply_Status(t *testing.T) {
	b := []byte(`{"msg":{"cmd":"devStatus","data":{"onOff":1,"brightness":42,"color":{"r":1,"g":2,"b":3},"colorTemInKelvin":0}}}`)
	r, err := DecodeReply(b)
	if err != nil {
		t.Fatal(err)
	}
	if r.Status == nil || r.Scan != nil {
		t.Fatalf("DecodeReply() = %+v, want status only", r)
	}
	if r.Status.OnOff != 1 || r.Status.Brightness != 42 || r.Status.Color != (color.RGB{R: 1, G: 2, B: 3}) {
		t.Errorf("status = %+v", *r.Status)
	}
}

func TestDecodeReply_Scan(t *testing.T) {
	b := []byte(`{"msg":{"cmd":"scan","data":{"ip":"192.168.1.23","device":"1F:80:C5:32:32:36:72:4E","sku":"H618E"}}}`)
	r, err := DecodeReply(b)
	if err != nil {
		t.Fatal(err)
	}
	if r.Scan == nil || r.Scan.IP != "192.168.1.23" || r.Scan.SKU != "H618E" {
		t.Errorf("scan = %+v", r.Scan)
	}
}

func TestDecodeReply_Errors(t *testing.T) {
	if _, err := DecodeReply([]byte(`not json`)); err == nil {
		t.Error("garbage should fail")
	}
	_, err := DecodeReply([]byte(`{"msg":{"cmd":"colorwc","data":{}}}`))
	if !errors.Is(err, ErrUnknownReply) {
		t.Errorf("unhandled cmd error = %v, want ErrUnknownReply", err)
	}
}
