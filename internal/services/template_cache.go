package services

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"github.com/Voyagetechsolutions/kjkhandala-sub001/internal/models"
)

const (
	activeTemplatesKey = "templates:active"
	templateKeyPrefix  = "templates:id:"

	templateFillTimeout = 10 * time.Second
)

// JSONCache is a shared key/value cache holding JSON documents
type JSONCache interface {
	GetJSON(ctx context.Context, key string, dest interface{}) (bool, error)
	SetJSON(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
}

// CachedTemplateSource serves schedule templates from the cache and loads
// misses from the database once per key, however many searches miss at once.
// Cache failures fall through to the database.
type CachedTemplateSource struct {
	source TemplateSource
	cache  JSONCache
	ttl    time.Duration
	group  singleflight.Group
	logger *logrus.Logger
}

// NewCachedTemplateSource wraps source with a cache
func NewCachedTemplateSource(source TemplateSource, cache JSONCache, ttl time.Duration, logger *logrus.Logger) *CachedTemplateSource {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &CachedTemplateSource{
		source: source,
		cache:  cache,
		ttl:    ttl,
		logger: logger,
	}
}

// ListActive returns the active templates
func (c *CachedTemplateSource) ListActive(ctx context.Context) ([]models.ScheduleTemplate, error) {
	var templates []models.ScheduleTemplate
	if c.lookup(ctx, activeTemplatesKey, &templates) {
		return templates, nil
	}

	v, err := c.fill(ctx, activeTemplatesKey, func(fillCtx context.Context) (interface{}, error) {
		loaded, err := c.source.ListActive(fillCtx)
		if err != nil {
			return nil, err
		}
		c.store(fillCtx, activeTemplatesKey, loaded)
		return loaded, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]models.ScheduleTemplate), nil
}

// GetByID returns one template, active or not
func (c *CachedTemplateSource) GetByID(ctx context.Context, id string) (*models.ScheduleTemplate, error) {
	key := templateKeyPrefix + id

	var tmpl models.ScheduleTemplate
	if c.lookup(ctx, key, &tmpl) {
		return &tmpl, nil
	}

	v, err := c.fill(ctx, key, func(fillCtx context.Context) (interface{}, error) {
		loaded, err := c.source.GetByID(fillCtx, id)
		if err != nil {
			return nil, err
		}
		c.store(fillCtx, key, loaded)
		return loaded, nil
	})
	if err != nil {
		return nil, err
	}

	out := *v.(*models.ScheduleTemplate)
	return &out, nil
}

// Invalidate drops the cached list and the given templates
func (c *CachedTemplateSource) Invalidate(ctx context.Context, ids ...string) error {
	keys := []string{activeTemplatesKey}
	for _, id := range ids {
		keys = append(keys, templateKeyPrefix+id)
	}
	return c.cache.Delete(ctx, keys...)
}

// fill loads key once for every concurrent caller. The load runs detached from
// the caller that started it and is bounded by templateFillTimeout; each caller
// still stops waiting when its own ctx is done.
func (c *CachedTemplateSource) fill(ctx context.Context, key string, load func(ctx context.Context) (interface{}, error)) (interface{}, error) {
	ch := c.group.DoChan(key, func() (interface{}, error) {
		fillCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), templateFillTimeout)
		defer cancel()
		return load(fillCtx)
	})

	select {
	case res := <-ch:
		return res.Val, res.Err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (c *CachedTemplateSource) lookup(ctx context.Context, key string, dest interface{}) bool {
	found, err := c.cache.GetJSON(ctx, key, dest)
	if err != nil {
		c.logger.WithField("key", key).WithError(err).Warn("Template cache read failed")
		return false
	}
	return found
}

func (c *CachedTemplateSource) store(ctx context.Context, key string, value interface{}) {
	if err := c.cache.SetJSON(ctx, key, value, c.ttl); err != nil {
		c.logger.WithField("key", key).WithError(err).Warn("Template cache write failed")
	}
}
