// Package fsutil provides ownership-aware filesystem helpers for report
// artifacts. When the tool runs in a container as root, generated files
// can be handed to the host user via an explicit UID:GID.
package fsutil

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Owner holds a parsed UID/GID pair. A nil *Owner means "leave
// ownership alone", so all methods are nil-safe.
type Owner struct {
	UID int
	GID int
}

// ParseOwner parses a "UID:GID" string. An empty input yields nil.
func ParseOwner(spec string) (*Owner, error) {
	if spec == "" {
		return nil, nil
	}

	uidStr, gidStr, ok := strings.Cut(spec, ":")
	if !ok {
		return nil, fmt.Errorf("invalid owner %q, expected UID:GID", spec)
	}

	uid, err := strconv.Atoi(uidStr)
	if err != nil {
		return nil, fmt.Errorf("invalid UID %q: %w", uidStr, err)
	}

	gid, err := strconv.Atoi(gidStr)
	if err != nil {
		return nil, fmt.Errorf("invalid GID %q: %w", gidStr, err)
	}

	return &Owner{UID: uid, GID: gid}, nil
}

// Apply sets ownership on path. Best-effort; chown failures are
// ignored because the files are already readable by the writer.
func (o *Owner) Apply(path string) {
	if o == nil {
		return
	}

	_ = os.Chown(path, o.UID, o.GID)
}

// MkdirAll creates the directory tree and applies ownership to the
// leaf directory.
func (o *Owner) MkdirAll(path string, perm os.FileMode) error {
	if err := os.MkdirAll(path, perm); err != nil {
		return err
	}

	o.Apply(path)

	return nil
}

// WriteFile writes data and applies ownership.
func (o *Owner) WriteFile(path string, data []byte, perm os.FileMode) error {
	if err := os.WriteFile(path, data, perm); err != nil {
		return err
	}

	o.Apply(path)

	return nil
}
