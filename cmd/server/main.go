package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"multimodal_router/pkg/api"
	"multimodal_router/pkg/config"
	"multimodal_router/pkg/graph"
	"multimodal_router/pkg/metrics"
	"multimodal_router/pkg/routing"
)

func main() {
	nodesPath := flag.String("nodes", "nodes.bin", "Path to node artifact")
	edgesPath := flag.String("edges", "edges.bin", "Path to edge artifact")
	profilePath := flag.String("profile", "", "Optional YAML routing profile")
	port := flag.Int("port", 8080, "HTTP port")
	corsOrigin := flag.String("cors-origin", "", "CORS allowed origin (empty = same-origin)")
	flag.Parse()

	start := time.Now()

	log.Printf("Loading graph from %s, %s...", *nodesPath, *edgesPath)
	views, err := graph.Load(*nodesPath, *edgesPath)
	if err != nil {
		log.Fatalf("Failed to load graph: %v", err)
	}
	log.Printf("Loaded: %d nodes, %d directed edges", views.Edges.NumNodes, views.Edges.NumEdges)

	profile := config.Default()
	if *profilePath != "" {
		profile, err = config.Load(*profilePath)
		if err != nil {
			log.Fatalf("Failed to load profile: %v", err)
		}
		log.Printf("Loaded routing profile from %s", *profilePath)
	}

	log.Println("Building spatial indexes...")
	engine := routing.NewEngine(views)
	defer engine.Close()

	metrics.GraphNodes.Set(float64(engine.NumNodes()))
	metrics.GraphEdges.Set(float64(engine.NumEdges()))
	log.Printf("Ready in %s", time.Since(start).Round(time.Millisecond))

	addr := fmt.Sprintf(":%d", *port)
	cfg := api.DefaultConfig(addr)
	cfg.CORSOrigin = *corsOrigin

	handlers := api.NewHandlers(engine, profile)
	srv := api.NewServer(cfg, handlers)

	if err := api.ListenAndServe(srv); err != nil {
		log.Printf("Server stopped: %v", err)
		os.Exit(1)
	}
}
