package find

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOwonFilter(t *testing.T) {
	assert.True(t, OwonFilter(&Usbtty{IDv: OwonVendorID, Prod: "DGE2070"}))
	assert.False(t, OwonFilter(&Usbtty{IDv: "2341", Prod: "Arduino Uno"}))
}

func TestPickFiltersDownToOne(t *testing.T) {
	ttys := Usbttys{
		{Dev: "ttyACM0", IDv: "2341"},
		{Dev: "ttyUSB0", IDv: OwonVendorID},
		{Dev: "ttyUSB1", IDv: "0403"},
	}
	dev, err := pick(ttys, OwonFilter)
	require.NoError(t, err)
	assert.Equal(t, "ttyUSB0", dev)
}

func TestPickSingleDeviceWithoutFilter(t *testing.T) {
	dev, err := pick(Usbttys{{Dev: "ttyUSB0"}}, nil)
	require.NoError(t, err)
	assert.Equal(t, "ttyUSB0", dev)
}

func TestPickAmbiguous(t *testing.T) {
	ttys := Usbttys{{Dev: "ttyUSB0"}, {Dev: "ttyUSB1"}}
	_, err := pick(ttys, SerialFilter("nope"))
	assert.Error(t, err)
}

func TestPickEmpty(t *testing.T) {
	_, err := pick(nil, nil)
	assert.Error(t, err)
}

func TestSerialAndVendorFilters(t *testing.T) {
	ut := &Usbtty{IDv: "1a86", Serial: "A603UX94"}
	assert.True(t, SerialFilter("A603UX94")(ut))
	assert.False(t, SerialFilter("other")(ut))
	assert.True(t, VendorFilter("1a86")(ut))
	assert.False(t, VendorFilter(OwonVendorID)(ut))
}
