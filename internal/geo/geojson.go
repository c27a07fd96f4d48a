package geo

// FeatureCollection is a GeoJSON feature collection.
type FeatureCollection struct {
	Type     string    `json:"type"`
	Features []Feature `json:"features"`
}

// Feature is a GeoJSON feature with free-form properties.
type Feature struct {
	Type       string         `json:"type"`
	Geometry   Geometry       `json:"geometry"`
	Properties map[string]any `json:"properties"`
}

// Geometry is a GeoJSON LineString or Polygon. Coordinates are [lon, lat].
type Geometry struct {
	Type        string `json:"type"`
	Coordinates any    `json:"coordinates"`
}

// NewFeatureCollection wraps features in a collection.
func NewFeatureCollection(features ...Feature) FeatureCollection {
	if features == nil {
		features = []Feature{}
	}
	return FeatureCollection{Type: "FeatureCollection", Features: features}
}

func lonLat(ps []Position) [][]float64 {
	out := make([][]float64, len(ps))
	for i, p := range ps {
		out[i] = []float64{p.Lon, p.Lat}
	}
	return out
}

// CurveFeature encodes a boundary curve as a LineString.
func CurveFeature(c BoundaryCurve) Feature {
	return Feature{
		Type: "Feature",
		Geometry: Geometry{
			Type:        "LineString",
			Coordinates: lonLat(c.Positions()),
		},
		Properties: map[string]any{
			"kind":   c.Kind.String(),
			"points": len(c.Points),
		},
	}
}

// PolygonFeature encodes a shadow outline as a single-ring Polygon.
func PolygonFeature(p *ShadowPolygon) Feature {
	shadow := "umbra"
	if p.Penumbral {
		shadow = "penumbra"
	}
	return Feature{
		Type: "Feature",
		Geometry: Geometry{
			Type:        "Polygon",
			Coordinates: [][][]float64{lonLat(p.Ring)},
		},
		Properties: map[string]any{
			"shadow": shadow,
			"jd":     p.JD,
		},
	}
}
