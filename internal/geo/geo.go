// Package geo holds the great-circle and line geometry helpers shared by the
// segmentation policy, the track builder and the boundary detector.
package geo

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

const earthRadiusMeters = 6371000.0

// Coord is a WGS84 coordinate pair.
type Coord struct {
	Lat float64
	Lon float64
}

// HaversineMeters returns the great-circle distance between two coordinates in meters.
func HaversineMeters(lat1, lon1, lat2, lon2 float64) float64 {
	lat1Rad := lat1 * math.Pi / 180
	lat2Rad := lat2 * math.Pi / 180
	deltaLat := (lat2 - lat1) * math.Pi / 180
	deltaLon := (lon2 - lon1) * math.Pi / 180

	a := math.Sin(deltaLat/2)*math.Sin(deltaLat/2) +
		math.Cos(lat1Rad)*math.Cos(lat2Rad)*
			math.Sin(deltaLon/2)*math.Sin(deltaLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return earthRadiusMeters * c
}

// Distance returns the haversine distance between a and b in meters.
func Distance(a, b Coord) float64 {
	return HaversineMeters(a.Lat, a.Lon, b.Lat, b.Lon)
}

// Round5 rounds v to 5 decimal places (~1 m at the equator).
func Round5(v float64) float64 {
	return math.Round(v*1e5) / 1e5
}

// LineString renders coords as a WKT LINESTRING in lon/lat order, rounded to 5 decimals.
func LineString(coords []Coord) string {
	var b strings.Builder
	b.WriteString("LINESTRING(")
	for i, c := range coords {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(strconv.FormatFloat(Round5(c.Lon), 'f', -1, 64))
		b.WriteByte(' ')
		b.WriteString(strconv.FormatFloat(Round5(c.Lat), 'f', -1, 64))
	}
	b.WriteByte(')')
	return b.String()
}

// ParseLineString parses the output of LineString back into coordinates.
func ParseLineString(wkt string) ([]Coord, error) {
	s := strings.TrimSpace(wkt)
	if !strings.HasPrefix(strings.ToUpper(s), "LINESTRING(") || !strings.HasSuffix(s, ")") {
		return nil, fmt.Errorf("not a linestring: %q", wkt)
	}
	body := s[len("LINESTRING(") : len(s)-1]
	if strings.TrimSpace(body) == "" {
		return nil, nil
	}

	parts := strings.Split(body, ",")
	coords := make([]Coord, 0, len(parts))
	for _, part := range parts {
		fields := strings.Fields(part)
		if len(fields) < 2 {
			return nil, fmt.Errorf("invalid linestring vertex %q", part)
		}
		lon, err := strconv.ParseFloat(fields[0], 64)
		if err != nil {
			return nil, fmt.Errorf("invalid longitude %q: %w", fields[0], err)
		}
		lat, err := strconv.ParseFloat(fields[1], 64)
		if err != nil {
			return nil, fmt.Errorf("invalid latitude %q: %w", fields[1], err)
		}
		coords = append(coords, Coord{Lat: lat, Lon: lon})
	}
	return coords, nil
}

// Endpoints returns the first and last vertex of a WKT linestring.
func Endpoints(wkt string) (first, last Coord, err error) {
	coords, err := ParseLineString(wkt)
	if err != nil {
		return Coord{}, Coord{}, err
	}
	if len(coords) == 0 {
		return Coord{}, Coord{}, fmt.Errorf("empty linestring")
	}
	return coords[0], coords[len(coords)-1], nil
}
