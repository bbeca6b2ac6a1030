// Package geo loads the cycle-park point set and answers k-nearest queries
// over it by great-circle distance.
package geo

import (
	"encoding/json"
	"fmt"
)

// Property keys of interest in the source GeoJSON.
const (
	propHangar   = "PRK_HANGAR"
	propPhotoOne = "PHOTO1_URL"
	propPhotoTwo = "PHOTO2_URL"
)

// Park is a single point of interest. Parks are immutable once loaded.
type Park struct {
	ID    string
	Lat   float64
	Lon   float64
	Props map[string]string
}

// PhotoURLs returns the park's photo URLs in display order, if any.
func (p Park) PhotoURLs() []string {
	var urls []string
	for _, key := range []string{propPhotoOne, propPhotoTwo} {
		if url := p.Props[key]; url != "" {
			urls = append(urls, url)
		}
	}
	return urls
}

type featureCollection struct {
	Features []feature `json:"features"`
}

type feature struct {
	ID       any            `json:"id"`
	Geometry geometry       `json:"geometry"`
	Props    map[string]any `json:"properties"`
}

type geometry struct {
	Coordinates []float64 `json:"coordinates"`
}

// parseParks decodes a GeoJSON-like document and filters out hangar entries,
// which are access-controlled and not useful as public parking results.
func parseParks(data []byte) ([]Park, error) {
	var fc featureCollection
	if err := json.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("failed to decode park data: %w", err)
	}

	parks := make([]Park, 0, len(fc.Features))
	for i, f := range fc.Features {
		if len(f.Geometry.Coordinates) < 2 {
			continue
		}
		props := make(map[string]string, len(f.Props))
		for k, v := range f.Props {
			if s, ok := v.(string); ok {
				props[k] = s
			}
		}
		if props[propHangar] == "TRUE" {
			continue
		}
		id := fmt.Sprint(f.ID)
		if f.ID == nil {
			if fid, ok := props["FEATURE_ID"]; ok {
				id = fid
			} else {
				id = fmt.Sprintf("feature-%d", i)
			}
		}
		parks = append(parks, Park{
			ID: id,
			// GeoJSON coordinates are [lon, lat].
			Lon:   f.Geometry.Coordinates[0],
			Lat:   f.Geometry.Coordinates[1],
			Props: props,
		})
	}
	return parks, nil
}
