package domain

import (
	"fmt"

	"github.com/berfenger/solarmax2mqtt/pkg/solarmax"
)

// DeviceInfoKeys are the keys needed to identify an inverter.
var DeviceInfoKeys = []solarmax.QueryKey{
	solarmax.KeyType,
	solarmax.KeySoftwareVersion,
	solarmax.KeyNetworkAddress,
	solarmax.KeyInstalledCapacity,
}

type DeviceInfo struct {
	Address           int
	ModelCode         uint64
	Model             string
	MaxPowerWatt      uint32
	SoftwareVersion   string
	InstalledCapacity float64
}

func DeviceInfoFromValues(address int, values map[solarmax.QueryKey]solarmax.Value) (*DeviceInfo, error) {
	typ, ok := values[solarmax.KeyType]
	if !ok {
		return nil, fmt.Errorf("%w: %s", solarmax.ErrKeyNotFound, solarmax.KeyType)
	}
	info := &DeviceInfo{
		Address:      address,
		ModelCode:    typ.Raw,
		Model:        typ.Label,
		MaxPowerWatt: solarmax.ModelMaxPower(typ.Raw),
	}
	if adr, ok := values[solarmax.KeyNetworkAddress]; ok {
		info.Address = int(adr.Int())
	}
	if swv, ok := values[solarmax.KeySoftwareVersion]; ok {
		info.SoftwareVersion = swv.String()
	}
	if pin, ok := values[solarmax.KeyInstalledCapacity]; ok {
		info.InstalledCapacity = pin.Float()
	}
	return info, nil
}
