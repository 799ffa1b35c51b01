package authz

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	apperrors "github.com/guiqiqi/itmo-moodle-agent/errors"
)

// ErrNoGroups is returned by NewGuard when no group is required.
var ErrNoGroups = errors.New("authz: guard requires at least one group")

// GroupSource returns the names of the groups an identity currently
// belongs to.
type GroupSource interface {
	GroupNames(ctx context.Context, identityID string) ([]string, error)
}

// GroupSourceFunc adapts a function to GroupSource.
type GroupSourceFunc func(ctx context.Context, identityID string) ([]string, error)

// GroupNames implements GroupSource.
func (f GroupSourceFunc) GroupNames(ctx context.Context, identityID string) ([]string, error) {
	return f(ctx, identityID)
}

// Guard requires membership in any of a fixed set of groups.
type Guard struct {
	source   GroupSource
	required map[string]struct{}
}

// NewGuard builds a Guard. Empty and duplicate names are ignored; no
// remaining name is an error.
func NewGuard(source GroupSource, groups ...string) (*Guard, error) {
	required := make(map[string]struct{}, len(groups))
	for _, g := range groups {
		if g = strings.TrimSpace(g); g != "" {
			required[g] = struct{}{}
		}
	}
	if len(required) == 0 {
		return nil, ErrNoGroups
	}
	if source == nil {
		return nil, errors.New("authz: group source is required")
	}
	return &Guard{source: source, required: required}, nil
}

// MustGuard is NewGuard that panics on error. Use at route setup.
func MustGuard(source GroupSource, groups ...string) *Guard {
	g, err := NewGuard(source, groups...)
	if err != nil {
		panic(err)
	}
	return g
}

// Groups returns the required group names, sorted.
func (g *Guard) Groups() []string {
	out := make([]string, 0, len(g.required))
	for name := range g.required {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Allows reports whether any of groups is required by the guard.
func (g *Guard) Allows(groups []string) bool {
	for _, name := range groups {
		if _, ok := g.required[name]; ok {
			return true
		}
	}
	return false
}

// Check loads the identity's groups and returns FORBIDDEN when none of them
// is required by the guard.
func (g *Guard) Check(ctx context.Context, identityID string) error {
	groups, err := g.source.GroupNames(ctx, identityID)
	if err != nil {
		return fmt.Errorf("authz: load groups: %w", err)
	}
	if !g.Allows(groups) {
		return apperrors.Forbidden("").WithDetail("required_groups", g.Groups())
	}
	return nil
}
