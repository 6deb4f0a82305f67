// Package lifecycle owns index creation, deletion, existence checks and
// timestamped name generation for the blue/green rotation.
package lifecycle

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-go-golems/bluedex/internal/apierrors"
	"github.com/go-go-golems/bluedex/internal/cluster"
)

// Color is one of the two rotating index slots for an alias.
type Color string

const (
	Blue    Color = "blue"
	Green   Color = "green"
	Unknown Color = ""
)

// Opposite returns the other color in the rotation.
func (c Color) Opposite() Color {
	if c == Blue {
		return Green
	}
	return Blue
}

// MappingProvider yields the opaque index mapping/schema for an alias.
// The control plane never inspects the returned bytes; it passes them
// through to the cluster at index-creation time.
type MappingProvider func(aliasName string) (mapping []byte, err error)

// Lifecycle creates, deletes, and names indices for the blue/green
// rotation.
type Lifecycle struct {
	gateway  cluster.Gateway
	mappings MappingProvider
	now      func() time.Time
}

// New builds a Lifecycle over gateway, sourcing mappings from mappings.
func New(gateway cluster.Gateway, mappings MappingProvider) *Lifecycle {
	return &Lifecycle{gateway: gateway, mappings: mappings, now: time.Now}
}

// GenerateName builds "{alias}_{color}_{YYYYMMDDHHMMSS}" when color is
// given, or the base 17-character-timestamp form
// "{alias}_{YYYYMMDDHHMMSSfff}" when color is Unknown. Timestamp string
// comparison sorts indices in creation order in both forms.
func (l *Lifecycle) GenerateName(aliasName string, color Color) string {
	now := l.now()
	if color == Unknown {
		return fmt.Sprintf("%s_%s", aliasName, now.Format("20060102150405")+fmt.Sprintf("%03d", now.Nanosecond()/1e6))
	}
	return fmt.Sprintf("%s_%s_%s", aliasName, color, now.Format("20060102150405"))
}

// ColorFromName extracts the color from an index name by substring
// match on "_blue_" or "_green_"; a name with neither returns Unknown.
func ColorFromName(name string) Color {
	switch {
	case strings.Contains(name, "_blue_"):
		return Blue
	case strings.Contains(name, "_green_"):
		return Green
	default:
		return Unknown
	}
}

// Create creates name with the mapping resolved for aliasName, binding
// boundAlias in the same call when non-empty. It fails with
// PreconditionFailed if the index already exists.
func (l *Lifecycle) Create(ctx context.Context, name, aliasForMapping, boundAlias string) error {
	exists, err := l.gateway.IndexExists(ctx, name)
	if err != nil {
		return err
	}
	if exists {
		return apierrors.PreconditionFailed("index %q already exists", name)
	}

	var mapping []byte
	if l.mappings != nil {
		mapping, err = l.mappings(aliasForMapping)
		if err != nil {
			return fmt.Errorf("resolving mapping for alias %q: %w", aliasForMapping, err)
		}
	}

	acknowledged, err := l.gateway.IndexCreate(ctx, name, mapping, boundAlias)
	if err != nil {
		return err
	}
	if !acknowledged {
		return apierrors.Cluster(nil, "index create for %q was not acknowledged", name)
	}
	return nil
}

// Delete deletes name, ignoring "does not exist".
func (l *Lifecycle) Delete(ctx context.Context, name string) error {
	return l.gateway.IndexDelete(ctx, name)
}

// Exists reports whether name currently exists.
func (l *Lifecycle) Exists(ctx context.Context, name string) (bool, error) {
	return l.gateway.IndexExists(ctx, name)
}

// Pattern returns the wildcard pattern matching every index for alias,
// regardless of color or deployment generation.
func Pattern(aliasName string) string {
	return aliasName + "_*"
}

// ColorPattern returns the wildcard pattern matching every index of one
// color for alias.
func ColorPattern(aliasName string, color Color) string {
	return fmt.Sprintf("%s_%s_*", aliasName, color)
}
