//go:build linux

package sidecar

import (
	"encoding/json"
	"fmt"

	"golang.org/x/sys/unix"
)

// xattrName is the extended attribute key the organizer writes its mark
// under, namespaced per the "user." prefix Linux requires for unprivileged
// xattrs.
const xattrName = "user.organizer.organized"

// XattrSidecar marks files using a Linux extended attribute instead of a
// parallel file; it is constructed with NewXattr, and no config key selects
// it. It survives process
// restart the same way FileSidecar does, since xattrs are stored by the
// filesystem itself.
type XattrSidecar struct{}

func NewXattr() *XattrSidecar { return &XattrSidecar{} }

func (s *XattrSidecar) Mark(path string, meta Metadata) error {
	data, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("sidecar: marshal metadata: %w", err)
	}
	if err := unix.Setxattr(path, xattrName, data, 0); err != nil {
		return fmt.Errorf("sidecar: setxattr: %w", err)
	}
	return nil
}

func (s *XattrSidecar) Read(path string) (*Metadata, error) {
	buf := make([]byte, 4096)
	n, err := unix.Getxattr(path, xattrName, buf)
	if err != nil {
		if err == unix.ENODATA || err == unix.ENOATTR {
			return nil, nil
		}
		return nil, fmt.Errorf("sidecar: getxattr: %w", err)
	}
	var meta Metadata
	if err := json.Unmarshal(buf[:n], &meta); err != nil {
		return nil, fmt.Errorf("sidecar: parse xattr: %w", err)
	}
	return &meta, nil
}

func (s *XattrSidecar) Has(path string) bool {
	buf := make([]byte, 1)
	_, err := unix.Getxattr(path, xattrName, buf)
	return err == nil || err == unix.ERANGE
}

func (s *XattrSidecar) Remove(path string) error {
	err := unix.Removexattr(path, xattrName)
	if err != nil && err != unix.ENODATA && err != unix.ENOATTR {
		return fmt.Errorf("sidecar: removexattr: %w", err)
	}
	return nil
}
