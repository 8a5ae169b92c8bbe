package routes

import (
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/debemdeboas/locs-review/internal/blob"
	"github.com/debemdeboas/locs-review/internal/model"
	"github.com/debemdeboas/locs-review/internal/queue"
)

// PublishedCollection renders published items as point features. GeoJSON
// orders positions longitude first.
func PublishedCollection(items []model.PublishedItem, urls queue.URLResolver, layout blob.Layout) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for _, item := range items {
		feature := geojson.NewFeature(orb.Point{item.Lng, item.Lat})
		feature.ID = string(item.ID)
		feature.Properties["id"] = string(item.ID)
		if urls != nil {
			feature.Properties["url"] = urls.PublicURL(layout.PublishedKey(item.ID))
		}
		if !item.PublishedAt.IsZero() {
			feature.Properties["published_at"] = item.PublishedAt.UTC().Format(time.RFC3339)
		}
		fc.Append(feature)
	}
	return fc
}
