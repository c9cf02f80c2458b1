package measure

import (
	"slices"
	"sync"

	"github.com/sells-group/fieldmap-cli/internal/model"
)

// Collection holds completed measurements in two insertion-ordered sets keyed
// by id. Stored points are copied on the way in and out. It is safe for
// concurrent use.
type Collection struct {
	mu sync.RWMutex

	distances     map[string]model.DistanceMeasurement
	distanceOrder []string
	areas         map[string]model.AreaMeasurement
	areaOrder     []string
}

// NewCollection creates an empty collection.
func NewCollection() *Collection {
	return &Collection{
		distances: make(map[string]model.DistanceMeasurement),
		areas:     make(map[string]model.AreaMeasurement),
	}
}

// AddDistance inserts or replaces a distance measurement. Replacing keeps
// the original position.
func (c *Collection) AddDistance(m model.DistanceMeasurement) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.distances[m.ID]; !ok {
		c.distanceOrder = append(c.distanceOrder, m.ID)
	}
	m.Points = slices.Clone(m.Points)
	c.distances[m.ID] = m
}

// AddArea inserts or replaces an area measurement.
func (c *Collection) AddArea(m model.AreaMeasurement) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.areas[m.ID]; !ok {
		c.areaOrder = append(c.areaOrder, m.ID)
	}
	m.Points = slices.Clone(m.Points)
	c.areas[m.ID] = m
}

// Remove deletes the measurement with the given kind and id. A missing id is
// a no-op and reports false.
func (c *Collection) Remove(kind model.Kind, id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch kind {
	case model.KindDistance:
		if _, ok := c.distances[id]; !ok {
			return false
		}
		delete(c.distances, id)
		c.distanceOrder = without(c.distanceOrder, id)
		return true
	case model.KindArea:
		if _, ok := c.areas[id]; !ok {
			return false
		}
		delete(c.areas, id)
		c.areaOrder = without(c.areaOrder, id)
		return true
	}
	return false
}

// Clear drops every measurement.
func (c *Collection) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.distances = make(map[string]model.DistanceMeasurement)
	c.distanceOrder = nil
	c.areas = make(map[string]model.AreaMeasurement)
	c.areaOrder = nil
}

// Distances returns the distance measurements in insertion order.
func (c *Collection) Distances() []model.DistanceMeasurement {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]model.DistanceMeasurement, 0, len(c.distanceOrder))
	for _, id := range c.distanceOrder {
		m := c.distances[id]
		m.Points = slices.Clone(m.Points)
		out = append(out, m)
	}
	return out
}

// Areas returns the area measurements in insertion order.
func (c *Collection) Areas() []model.AreaMeasurement {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]model.AreaMeasurement, 0, len(c.areaOrder))
	for _, id := range c.areaOrder {
		m := c.areas[id]
		m.Points = slices.Clone(m.Points)
		out = append(out, m)
	}
	return out
}

// Distance looks up a distance measurement by id.
func (c *Collection) Distance(id string) (model.DistanceMeasurement, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	m, ok := c.distances[id]
	m.Points = slices.Clone(m.Points)
	return m, ok
}

// Area looks up an area measurement by id.
func (c *Collection) Area(id string) (model.AreaMeasurement, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	m, ok := c.areas[id]
	m.Points = slices.Clone(m.Points)
	return m, ok
}

// Len returns the total number of measurements.
func (c *Collection) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.distances) + len(c.areas)
}

func without(ids []string, id string) []string {
	out := ids[:0:0]
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}
