//go:build !linux

package region

func syncHandle(h Handle) error {
	return h.Sync()
}
