// Package cache holds rendered views keyed by the path that displays them.
// Mutations invalidate paths after they commit.
package cache

import (
	"context"
	"fmt"
	"strings"
)

// ViewCache stores viewer-independent views. A miss is not an error.
type ViewCache interface {
	Get(ctx context.Context, path string, dst any) (bool, error)
	Put(ctx context.Context, path string, v any) error
	Invalidate(ctx context.Context, paths ...string) error
}

// Root is the feed path.
const Root = "/"

func PostPath(id uint) string { return fmt.Sprintf("/post/%d", id) }

func ProfilePath(handle string) string { return "/profile/" + strings.ToLower(handle) }

// Nop caches nothing.
type Nop struct{}

func (Nop) Get(context.Context, string, any) (bool, error) { return false, nil }
func (Nop) Put(context.Context, string, any) error         { return nil }
func (Nop) Invalidate(context.Context, ...string) error    { return nil }
