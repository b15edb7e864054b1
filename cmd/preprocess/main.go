package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"multimodal_router/pkg/graph"
	osmparser "multimodal_router/pkg/osm"
)

func main() {
	input := flag.String("input", "", "Path to .osm.pbf file")
	outDir := flag.String("out", ".", "Output directory for nodes.bin and edges.bin")
	bbox := flag.String("bbox", "", "Bounding box filter: minLat,minLon,maxLat,maxLon")
	largestComponent := flag.Bool("largest-component", false,
		"Keep only the largest weakly connected component")
	flag.Parse()

	if *input == "" {
		fmt.Fprintln(os.Stderr, "Usage: preprocess --input <file.osm.pbf> [--out dir] [--bbox minLat,minLon,maxLat,maxLon] [--largest-component]")
		os.Exit(1)
	}

	var opts graph.BuildOptions
	if *bbox != "" {
		var minLat, minLon, maxLat, maxLon float64
		if _, err := fmt.Sscanf(*bbox, "%f,%f,%f,%f", &minLat, &minLon, &maxLat, &maxLon); err != nil {
			log.Fatalf("Invalid bbox format (expected minLat,minLon,maxLat,maxLon): %v", err)
		}
		opts.BBox = osmparser.BBox{MinLat: minLat, MaxLat: maxLat, MinLon: minLon, MaxLon: maxLon}
		log.Printf("Using bounding box filter: lat [%.4f, %.4f], lon [%.4f, %.4f]", minLat, maxLat, minLon, maxLon)
	}

	start := time.Now()

	log.Println("Opening OSM file...")
	f, err := os.Open(*input)
	if err != nil {
		log.Fatalf("Failed to open input file: %v", err)
	}
	defer f.Close()

	log.Println("Parsing OSM data...")
	parseResult, err := osmparser.Parse(context.Background(), f)
	if err != nil {
		log.Fatalf("Failed to parse OSM data: %v", err)
	}
	log.Printf("Parsed %d ways, %d nodes", len(parseResult.Ways), len(parseResult.NodeLat))

	log.Println("Building graph...")
	g, err := graph.Build(parseResult, opts)
	if err != nil {
		log.Fatalf("Failed to build graph: %v", err)
	}
	log.Printf("Graph: %d nodes, %d directed edges", g.NumNodes, g.NumEdges)

	if *largestComponent {
		log.Println("Extracting largest connected component...")
		componentNodes := graph.LargestComponent(g)
		log.Printf("Largest component: %d nodes (%.1f%%)",
			len(componentNodes), float64(len(componentNodes))/float64(g.NumNodes)*100)
		g = graph.FilterToComponent(g, componentNodes)
		log.Printf("Filtered graph: %d nodes, %d edges", g.NumNodes, g.NumEdges)
	}

	nodesPath := filepath.Join(*outDir, "nodes.bin")
	edgesPath := filepath.Join(*outDir, "edges.bin")

	log.Printf("Writing %s...", nodesPath)
	if err := graph.WriteNodes(nodesPath, g); err != nil {
		log.Fatalf("Failed to write nodes: %v", err)
	}
	log.Printf("Writing %s...", edgesPath)
	if err := graph.WriteEdges(edgesPath, g); err != nil {
		log.Fatalf("Failed to write edges: %v", err)
	}

	ni, _ := os.Stat(nodesPath)
	ei, _ := os.Stat(edgesPath)
	log.Printf("Done in %s. nodes.bin %.1f MB, edges.bin %.1f MB",
		time.Since(start).Round(time.Second),
		float64(ni.Size())/(1024*1024), float64(ei.Size())/(1024*1024))
}
