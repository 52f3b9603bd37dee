//go:build darwin || linux || freebsd

package runtime

import (
	"github.com/wippyai/llvm-runtime/native"
)

// New creates a runtime over the default libLLVM install.
func New() (*Runtime, error) {
	lib, err := native.Default()
	if err != nil {
		return nil, err
	}
	return NewWithAPI(lib), nil
}

// NewWithLibrary creates a runtime over the backend library at path.
func NewWithLibrary(path string) (*Runtime, error) {
	lib, err := native.Open(path)
	if err != nil {
		return nil, err
	}
	return NewWithAPI(lib), nil
}
