//go:build !darwin && !freebsd && !linux && !windows

package dirp

import (
	"runtime"

	"github.com/juju/errors"
)

func openLibrary(path string) (*library, error) {
	return nil, errors.NotSupportedf("загрузка %s на %s", path, runtime.GOOS)
}

func (m *library) close() error {
	return nil
}
