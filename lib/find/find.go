// Package find locates USB serial devices by walking /sys, so the
// generator's virtual COM port can be picked up without the operator
// naming it.
package find

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
)

// OwonVendorID is the USB idVendor shared by Owon bench instruments.
const OwonVendorID = "5345"

type FilterFn func(*Usbtty) bool

// OwonFilter matches any Owon USB device, which covers the DGE-series
// generator's virtual COM port.
func OwonFilter(ut *Usbtty) bool {
	return ut.IDv == OwonVendorID
}

// VendorFilter matches on the USB idVendor string.
func VendorFilter(idv string) FilterFn {
	return func(ut *Usbtty) bool { return ut.IDv == idv }
}

// SerialFilter matches on the USB serial number string.
func SerialFilter(s string) FilterFn {
	return func(ut *Usbtty) bool { return ut.Serial == s }
}

// Find searches for a usb serial device. If filter is not nil,
// it is used to narrow choices down. The first device for which
// it returns true (if any) is chosen.
func Find(filter FilterFn) (string, error) {
	ttys, err := AllUsbTtys()
	if err != nil {
		return "", err
	}
	return pick(ttys, filter)
}

func pick(ttys Usbttys, filter FilterFn) (string, error) {
	if filter != nil {
		for i := range ttys {
			if filter(&ttys[i]) {
				ttys = []Usbtty{ttys[i]}
				break
			}
		}
	}

	if len(ttys) == 0 {
		return "", fmt.Errorf("no matching ttys found")
	}
	if len(ttys) == 1 {
		return ttys[0].Dev, nil
	}
	return "", fmt.Errorf("multiple ttys: %v", ttys)
}

type Usbtty struct {
	Dev, Path string
	IDp, IDv  string
	Mfg, Prod string
	Serial    string
}

func (u Usbtty) String() string {
	return fmt.Sprintf("dev %s path %s pid/vid %s/%s mfg/prod %s/%s serial %s", u.Dev, u.Path, u.IDp, u.IDv, u.Mfg, u.Prod, u.Serial)
}

type Usbttys []Usbtty

func (uts Usbttys) String() string {
	s := make([]string, 0, len(uts))
	for _, ut := range uts {
		s = append(s, ut.String())
	}
	return strings.Join(s, "\n")
}

// find ttys on usb devices, by looking at
// /sys/class/tty and other /sys paths
func AllUsbTtys() (Usbttys, error) {
	var devs []Usbtty
	sct := "/sys/class/tty/"
	entries, err := os.ReadDir(sct)
	if err != nil {
		return nil, err
	}
	for _, e := range entries {
		if e.Type()&fs.ModeSymlink == 0 {
			// just in case there's anything in the dir that isn't a symlink
			continue
		}
		// we have a symlink like
		// /sys/class/tty/ttyACM0 ->
		// /sys/devices/pci0000:00/0000:00:01.3/0000:02:00.0/usb1/1-10/1-10:1.0/tty/ttyACM0
		path := filepath.Join(sct, e.Name())
		abs, err := filepath.EvalSymlinks(path)
		if err != nil {
			log.Warn("skipping tty, cannot evaluate symlink", "path", path, "err", err)
			continue
		}
		if !strings.Contains(abs, "usb") {
			continue
		}
		dev, err := filepath.EvalSymlinks(filepath.Join(abs, "device"))
		if err != nil {
			log.Warn("usb tty lacking device subdir", "path", abs, "err", err)
		}
		// the device link lands on the interface dir; the id and
		// string files live one level up on the device itself
		info, err := readUsbInfo(filepath.Dir(dev))
		if err != nil {
			log.Warn("incomplete usb info", "path", abs, "err", err)
		}
		info.Dev = e.Name()
		info.Path = abs
		devs = append(devs, info)
	}
	return devs, nil
}

// readUsbInfo reads the product/vendor ids and the mfg/product/serial
// strings for a usb device directory.
//
// It returns the last error encountered, ignoring os.ErrNotExist.
// Errors do not prevent reading additional files or returning the data
// collected so far.
func readUsbInfo(dev string) (Usbtty, error) {
	var ut Usbtty
	var err error
	read := func(name string) string {
		b, rerr := os.ReadFile(filepath.Join(dev, name))
		if rerr != nil && !errors.Is(rerr, os.ErrNotExist) {
			err = rerr
		}
		return strings.TrimSpace(string(b))
	}
	ut.IDp = read("idProduct")
	ut.IDv = read("idVendor")
	ut.Mfg = read("manufacturer")
	ut.Prod = read("product")
	ut.Serial = read("serial")
	return ut, err
}
