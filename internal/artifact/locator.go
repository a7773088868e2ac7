// File path: internal/artifact/locator.go
package artifact

import (
	"fmt"
	"strings"
)

const remoteScheme = "s3://"

// Locator is the storage location of an artifact, classified once at the
// data boundary instead of scattering scheme checks through the gateway.
type Locator interface {
	isLocator()
}

// LocalLocator is a path relative to the configured artifact root.
type LocalLocator struct {
	Path string
}

// RemoteLocator addresses an object in remote storage.
type RemoteLocator struct {
	Bucket string
	Key    string
}

func (LocalLocator) isLocator()  {}
func (RemoteLocator) isLocator() {}

// ParseLocator classifies a stored locator string. Anything without the
// remote scheme prefix is a local relative path; containment against the
// artifact root is enforced later, at resolution time.
func ParseLocator(raw string) (Locator, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, fmt.Errorf("empty locator")
	}
	if strings.HasPrefix(trimmed, remoteScheme) {
		rest := strings.TrimPrefix(trimmed, remoteScheme)
		bucket, key, ok := strings.Cut(rest, "/")
		if !ok || bucket == "" || key == "" {
			return nil, fmt.Errorf("malformed remote locator")
		}
		return RemoteLocator{Bucket: bucket, Key: key}, nil
	}
	return LocalLocator{Path: trimmed}, nil
}
