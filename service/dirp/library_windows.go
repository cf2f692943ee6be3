//go:build windows

package dirp

import (
	"syscall"

	"github.com/juju/errors"
)

func openLibrary(path string) (*library, error) {
	handle, err := syscall.LoadLibrary(path)
	if err != nil {
		return nil, errors.Annotatef(err, "загрузка %s", path)
	}
	lib := &library{path: path, handle: uintptr(handle)}
	err = bind(lib, func(name string) (uintptr, error) {
		return syscall.GetProcAddress(handle, name)
	})
	if err != nil {
		_ = syscall.FreeLibrary(handle)
		return nil, errors.Trace(err)
	}
	return lib, nil
}

func (m *library) close() error {
	return syscall.FreeLibrary(syscall.Handle(m.handle))
}
