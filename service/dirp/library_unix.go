//go:build darwin || freebsd || linux

package dirp

import (
	"github.com/ebitengine/purego"
	"github.com/juju/errors"
)

func openLibrary(path string) (*library, error) {
	handle, err := purego.Dlopen(path, purego.RTLD_NOW|purego.RTLD_GLOBAL)
	if err != nil {
		return nil, errors.Annotatef(err, "загрузка %s", path)
	}
	lib := &library{path: path, handle: handle}
	err = bind(lib, func(name string) (uintptr, error) {
		return purego.Dlsym(handle, name)
	})
	if err != nil {
		_ = purego.Dlclose(handle)
		return nil, errors.Trace(err)
	}
	return lib, nil
}

func (m *library) close() error {
	return purego.Dlclose(m.handle)
}
