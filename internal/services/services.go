// Package services implements the social graph operations. Every operation
// takes the acting user explicitly; multi-row mutations run in one
// repositories.Store transaction and touch caches and push only after commit.
package services

import (
	"context"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"

	"github.com/anonto42/nano-midea/socialgraph/internal/apperr"
	"github.com/anonto42/nano-midea/socialgraph/internal/cache"
	"github.com/anonto42/nano-midea/socialgraph/internal/metrics"
	"github.com/anonto42/nano-midea/socialgraph/internal/repositories"
)

const (
	maxPostLength    = 280
	maxCommentLength = 500

	defaultPageSize = 20
	maxPageSize     = 100
)

var validate = validator.New()

// classify converts a store error into an *apperr.Error. Errors that are
// already typed pass through.
func classify(err error, notFound string) error {
	if err == nil {
		return nil
	}
	var ae *apperr.Error
	if errors.As(err, &ae) {
		return err
	}
	switch {
	case errors.Is(err, repositories.ErrNotFound), errors.Is(err, repositories.ErrReferenceMissing):
		return apperr.Wrap(apperr.NotFound, notFound, err)
	case errors.Is(err, repositories.ErrDuplicate):
		return apperr.Wrap(apperr.AlreadyExists, "Already exists", err)
	default:
		return apperr.Wrap(apperr.Transient, "Service temporarily unavailable", err)
	}
}

// isHTTPURL reports whether s is an absolute http or https URL.
func isHTTPURL(s string) bool {
	return validate.Var(s, "required,http_url") == nil
}

// PageBounds normalizes 1-based page and limit query values.
func PageBounds(page, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	return page, limit
}

// viewCache couples a cache with metrics and logging. Cache trouble never
// fails a request.
type viewCache struct {
	cache   cache.ViewCache
	metrics *metrics.Metrics
	log     *logrus.Logger
}

func (v viewCache) get(ctx context.Context, path string, dst any) bool {
	hit, err := v.cache.Get(ctx, path, dst)
	switch {
	case err != nil:
		v.metrics.CacheLookup("error")
		v.log.WithError(err).WithField("path", path).Warn("view cache read failed")
		return false
	case hit:
		v.metrics.CacheLookup("hit")
	default:
		v.metrics.CacheLookup("miss")
	}
	return hit
}

func (v viewCache) put(ctx context.Context, path string, val any) {
	if err := v.cache.Put(ctx, path, val); err != nil {
		v.log.WithError(err).WithField("path", path).Warn("view cache write failed")
	}
}

func (v viewCache) invalidate(ctx context.Context, paths ...string) {
	if err := v.cache.Invalidate(ctx, paths...); err != nil {
		v.log.WithError(err).WithField("paths", strings.Join(paths, ",")).Warn("view cache invalidation failed")
	}
}
