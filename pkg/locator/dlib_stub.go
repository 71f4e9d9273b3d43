//go:build !dlib
// +build !dlib

package locator

func NewDlibLocator(cfg Config) (ILocator, error) {
	return nil, ErrDlibUnavailable
}
