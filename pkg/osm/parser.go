package osm

import (
	"context"
	"io"
	"log"

	"github.com/paulmach/osm"
	"github.com/paulmach/osm/osmpbf"
	"github.com/pkg/errors"

	"multimodal_router/pkg/surface"
)

// WayAccess is the per-way metadata derived during Pass 1: the ordered node
// sequence, the per-direction bike allowance, walkability and the surface
// category shared by every segment of the way.
type WayAccess struct {
	NodeIDs     []osm.NodeID
	BikeFwd     bool
	BikeBack    bool
	FootAllowed bool // walking is bidirectional
	Surface     surface.Primary
}

// ParseResult holds the output of the two-pass PBF scan.
type ParseResult struct {
	Ways    []WayAccess
	NodeLat map[osm.NodeID]float64
	NodeLon map[osm.NodeID]float64
}

// bikeHighways lists highway tag values ridable by default.
var bikeHighways = map[string]bool{
	"cycleway":     true,
	"path":         true,
	"residential":  true,
	"service":      true,
	"secondary":    true,
	"tertiary":     true,
	"unclassified": true,
	"track":        true,
	"pedestrian":   true,
}

// footHighways lists highway tag values walkable by default.
var footHighways = map[string]bool{
	"footway":       true,
	"path":          true,
	"pedestrian":    true,
	"steps":         true,
	"residential":   true,
	"service":       true,
	"living_street": true,
	"track":         true,
	"unclassified":  true,
}

// bikeRoutes / footRoutes are route=* values that additively grant access.
// They never override an explicit deny.
var bikeRoutes = map[string]bool{
	"bicycle": true,
	"mtb":     true,
	"road":    true,
}

var footRoutes = map[string]bool{
	"hiking":         true,
	"foot":           true,
	"nordic_walking": true,
	"running":        true,
	"fitness_trail":  true,
}

// transportRoutes are route=* values that mark transport infrastructure a
// bike or pedestrian cannot use as a way.
var transportRoutes = map[string]bool{
	"ferry":      true,
	"bus":        true,
	"tram":       true,
	"train":      true,
	"railway":    true,
	"subway":     true,
	"light_rail": true,
	"trolleybus": true,
	"monorail":   true,
	"ski":        true,
}

// activeRailways are railway=* values carrying live rail traffic.
var activeRailways = map[string]bool{
	"rail":         true,
	"tram":         true,
	"subway":       true,
	"light_rail":   true,
	"monorail":     true,
	"funicular":    true,
	"narrow_gauge": true,
	"preserved":    true,
	"construction": true,
}

func isYes(v string) bool {
	return v == "yes" || v == "designated" || v == "permissive"
}

func isNo(v string) bool {
	return v == "no" || v == "private"
}

// classifyWay derives access metadata for one way, or (zero, false) if the
// way carries neither mode. The direction rules are applied in a fixed
// order: base oneway (including roundabouts and oneway=-1) first, then
// oneway:bicycle=no or cycleway=opposite* restores two-way travel.
func classifyWay(tags osm.Tags) (WayAccess, bool) {
	highway := tags.Find("highway")
	access := tags.Find("access")
	bicycle := tags.Find("bicycle")
	foot := tags.Find("foot")
	route := tags.Find("route")

	// Exclude transport infrastructure outright: ferries and the like,
	// aerial ways, waterways, and rail that still carries trains.
	if transportRoutes[route] {
		return WayAccess{}, false
	}
	if tags.Find("aerialway") != "" || tags.Find("waterway") != "" {
		return WayAccess{}, false
	}
	if activeRailways[tags.Find("railway")] {
		return WayAccess{}, false
	}

	candidateBike := bikeHighways[highway] || isYes(bicycle)
	candidateFoot := footHighways[highway] || isYes(foot)

	// Walking and cycling routes are additive, never overriding a deny.
	if bikeRoutes[route] {
		candidateBike = true
	}
	if footRoutes[route] {
		candidateFoot = true
	}

	if isNo(bicycle) {
		candidateBike = false
	}
	if isNo(foot) {
		candidateFoot = false
	}

	// Blocked general access survives only through per-mode overrides.
	if isNo(access) && !isYes(bicycle) && !isYes(foot) {
		return WayAccess{}, false
	}
	if !candidateBike && !candidateFoot {
		return WayAccess{}, false
	}

	bikeAllowed := candidateBike
	footAllowed := !isNo(foot) && (candidateFoot || highway != "motorway")
	if bicycle == "dismount" {
		bikeAllowed = false
	}

	fwd, back := true, true
	oneway := tags.Find("oneway")
	if oneway == "yes" || oneway == "1" || tags.Find("junction") == "roundabout" {
		fwd, back = true, false
	} else if oneway == "-1" {
		fwd, back = false, true
	}

	// Contraflow cycling relaxes the oneway restriction.
	cycleway := tags.Find("cycleway")
	if tags.Find("oneway:bicycle") == "no" ||
		cycleway == "opposite" || cycleway == "opposite_lane" || cycleway == "opposite_track" {
		fwd, back = true, true
	}

	return WayAccess{
		BikeFwd:     bikeAllowed && fwd,
		BikeBack:    bikeAllowed && back,
		FootAllowed: footAllowed,
		Surface:     surface.FromTag(tags.Find("surface")),
	}, true
}

// Parse reads an OSM PBF extract in two passes: ways first (filter +
// metadata), then the coordinates of every node a retained way references.
// The reader is consumed twice, so it must implement io.ReadSeeker.
func Parse(ctx context.Context, rs io.ReadSeeker) (*ParseResult, error) {
	referenced := make(map[osm.NodeID]struct{})
	var ways []WayAccess

	scanner := osmpbf.New(ctx, rs, 1)
	scanner.SkipNodes = true
	scanner.SkipRelations = true

	for scanner.Scan() {
		w, ok := scanner.Object().(*osm.Way)
		if !ok {
			continue
		}
		if len(w.Nodes) < 2 {
			continue
		}

		meta, ok := classifyWay(w.Tags)
		if !ok {
			continue
		}

		meta.NodeIDs = make([]osm.NodeID, len(w.Nodes))
		for i, wn := range w.Nodes {
			meta.NodeIDs[i] = wn.ID
			referenced[wn.ID] = struct{}{}
		}
		ways = append(ways, meta)
	}
	if err := scanner.Err(); err != nil {
		scanner.Close()
		return nil, errors.Wrap(err, "pass 1 (ways)")
	}
	scanner.Close()

	log.Printf("Pass 1 complete: %d ways, %d referenced nodes", len(ways), len(referenced))

	if _, err := rs.Seek(0, io.SeekStart); err != nil {
		return nil, errors.Wrap(err, "seek for pass 2")
	}

	nodeLat := make(map[osm.NodeID]float64, len(referenced))
	nodeLon := make(map[osm.NodeID]float64, len(referenced))

	scanner = osmpbf.New(ctx, rs, 1)
	scanner.SkipWays = true
	scanner.SkipRelations = true

	for scanner.Scan() {
		n, ok := scanner.Object().(*osm.Node)
		if !ok {
			continue
		}
		if _, needed := referenced[n.ID]; !needed {
			continue
		}
		nodeLat[n.ID] = n.Lat
		nodeLon[n.ID] = n.Lon
	}
	if err := scanner.Err(); err != nil {
		scanner.Close()
		return nil, errors.Wrap(err, "pass 2 (nodes)")
	}
	scanner.Close()

	log.Printf("Pass 2 complete: %d node coordinates collected", len(nodeLat))

	return &ParseResult{
		Ways:    ways,
		NodeLat: nodeLat,
		NodeLon: nodeLon,
	}, nil
}
