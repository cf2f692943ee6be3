//go:build darwin || freebsd || linux || windows

package dirp

import (
	"github.com/ebitengine/purego"
	"github.com/juju/errors"
)

// Привязка функций libdirp к полям library. sym ищет адрес функции по имени.
func bind(lib *library, sym func(name string) (uintptr, error)) error {
	required := []struct {
		name string
		fptr interface{}
	}{
		{"dirp_create_from_rjpeg", &lib.createFromRjpeg},
		{"dirp_destroy", &lib.destroy},
		{"dirp_get_rjpeg_resolution", &lib.getResolution},
		{"dirp_get_measurement_params", &lib.getMeasurementParams},
		{"dirp_set_measurement_params", &lib.setMeasurementParams},
		{"dirp_measure_ex", &lib.measureEx},
	}
	for _, f := range required {
		addr, err := sym(f.name)
		if err != nil || addr == 0 {
			return errors.Errorf("в %s нет функции %s: %v", lib.path, f.name, err)
		}
		purego.RegisterFunc(f.fptr, addr)
	}
	if addr, err := sym("dirp_get_api_version"); err == nil && addr != 0 {
		purego.RegisterFunc(&lib.getAPIVersion, addr)
	}
	return nil
}
