package medsam

import (
	"fmt"
	"strconv"
	"strings"
)

// DeviceKind 计算设备类型
type DeviceKind int

const (
	DeviceCPU DeviceKind = iota
	DeviceCUDA
)

// Device 推理设备
type Device struct {
	Kind  DeviceKind
	Index int // CUDA 设备编号
}

// CPU 默认设备
var CPU = Device{Kind: DeviceCPU}

// ParseDevice 解析设备字符串
//
// # Params:
//
//	s: cpu, cuda, cuda:N, gpu (等同 cuda:0)
func ParseDevice(s string) (Device, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	switch name {
	case "", "cpu":
		return CPU, nil
	case "gpu", "cuda":
		return Device{Kind: DeviceCUDA}, nil
	}
	if idx, ok := strings.CutPrefix(name, "cuda:"); ok {
		n, err := strconv.Atoi(idx)
		if err != nil || n < 0 {
			return CPU, fmt.Errorf("%w: 设备编号不合法 %q", ErrResource, s)
		}
		return Device{Kind: DeviceCUDA, Index: n}, nil
	}
	return CPU, fmt.Errorf("%w: 不支持的设备 %q", ErrResource, s)
}

func (d Device) String() string {
	if d.Kind == DeviceCUDA {
		return fmt.Sprintf("cuda:%d", d.Index)
	}
	return "cpu"
}

// MarshalText 实现 encoding.TextMarshaler
func (d Device) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText 实现 encoding.TextUnmarshaler, 便于在 JSON 配置中书写 "cuda:0"
func (d *Device) UnmarshalText(text []byte) error {
	dev, err := ParseDevice(string(text))
	if err != nil {
		return err
	}
	*d = dev
	return nil
}
