package main

import (
	"context"
	"fmt"
	"log"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/graphmirror/linkcache"
	"github.com/graphmirror/linkcache/internal/config"
	"github.com/graphmirror/linkcache/pkg/provider"
)

func main() {
	fmt.Println("Starting linkcache demo")

	conf := config.GetConfig()
	absPath, _ := filepath.Abs(filepath.Join(conf.Path, time.Now().Format("20060102-150405")))

	upstream := buildUpstream()

	logger := logrus.New()
	if conf.Verbose {
		logger.SetLevel(logrus.DebugLevel)
	}

	cache, err := linkcache.New(upstream, linkcache.Config{
		Path:          absPath,
		MinimumFreeGB: conf.MinimumFreeGB,
		MaxChunkSize:  conf.MaxChunkSize,
		Logger:        logger,
	})
	if err != nil {
		log.Fatal(fmt.Sprintf("Failed to initialize cache: %s", err))
	}

	ctx := context.Background()
	if err := cache.Open(ctx); err != nil {
		log.Fatal(fmt.Sprintf("Failed to open cache: %s", err))
	}
	defer cache.Close()

	// First request: everything goes upstream.
	links, err := cache.Links(ctx, []string{"ada", "babbage", "curie", "darwin"}, []string{"ada", "babbage", "euler"})
	if err != nil {
		log.Fatal(fmt.Sprintf("Error querying links: %s", err))
	}
	fmt.Printf("First request: %d links, %d upstream calls\n", len(links), upstream.Calls("links"))

	// Second request is a sub-region of the first and resolves locally.
	links, err = cache.Links(ctx, []string{"ada", "babbage"}, []string{"babbage"})
	if err != nil {
		log.Fatal(fmt.Sprintf("Error querying links: %s", err))
	}
	fmt.Printf("Second request: %d links, %d upstream calls\n", len(links), upstream.Calls("links"))

	// Third request overlaps partially; only the uncovered region is fetched.
	links, err = cache.Links(ctx, []string{"curie", "newton"}, []string{"ada", "fermi"})
	if err != nil {
		log.Fatal(fmt.Sprintf("Error querying links: %s", err))
	}
	fmt.Printf("Third request: %d links, %d upstream calls\n", len(links), upstream.Calls("links"))

	stats, err := cache.ConnectedLinkStats(ctx, "ada", false)
	if err != nil {
		log.Fatal(fmt.Sprintf("Error querying link stats: %s", err))
	}
	for _, count := range stats {
		fmt.Printf("ada %s: %d in, %d out\n", count.TypeID, count.InCount, count.OutCount)
	}

	found, err := cache.Lookup(ctx, provider.LookupParams{Text: "ada"})
	if err != nil {
		log.Fatal(fmt.Sprintf("Error running lookup: %s", err))
	}
	for _, match := range found {
		fmt.Printf("Lookup match: %s\n", match.Element.ID)
	}
}

func buildUpstream() *provider.Memory {
	upstream := provider.NewMemory()

	for _, id := range []string{"ada", "babbage", "curie", "darwin", "euler", "fermi", "newton"} {
		upstream.AddElement(provider.ElementRecord{
			ID:     id,
			Types:  []string{"person"},
			Labels: []provider.LocalizedText{{Value: id, Lang: "en"}},
		})
	}
	upstream.AddLinkType(provider.LinkTypeRecord{ID: "corresponded"})
	upstream.AddLinkType(provider.LinkTypeRecord{ID: "influenced"})

	upstream.AddLink(provider.LinkRecord{SourceID: "ada", TargetID: "babbage", TypeID: "corresponded"})
	upstream.AddLink(provider.LinkRecord{SourceID: "curie", TargetID: "ada", TypeID: "influenced"})
	upstream.AddLink(provider.LinkRecord{SourceID: "newton", TargetID: "ada", TypeID: "influenced"})
	upstream.AddLink(provider.LinkRecord{SourceID: "newton", TargetID: "fermi", TypeID: "influenced"})
	upstream.AddLink(provider.LinkRecord{SourceID: "euler", TargetID: "darwin", TypeID: "corresponded"})

	return upstream
}
