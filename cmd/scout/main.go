// Eventscout - Conversational Event Discovery Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/eventscout

// Package main is the scout CLI: operational tooling for the event
// cache. It shares the server's configuration, so pointing it at the
// same cache path and credentials is just running it in the same
// environment.
//
// Usage:
//
//	scout scrape -source ticketmaster -days 14
//	scout cache-stats
//	scout cache-stats -purge
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/tomtom215/eventscout/internal/cache"
	"github.com/tomtom215/eventscout/internal/config"
	"github.com/tomtom215/eventscout/internal/logging"
	"github.com/tomtom215/eventscout/internal/models"
	"github.com/tomtom215/eventscout/internal/sources"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	logging.Init(logging.Config{Level: cfg.Logging.Level, Format: "console"})

	var runErr error
	switch os.Args[1] {
	case "scrape":
		runErr = runScrape(cfg, os.Args[2:])
	case "cache-stats":
		runErr = runCacheStats(cfg, os.Args[2:])
	default:
		usage()
		os.Exit(2)
	}

	if runErr != nil {
		fmt.Fprintf(os.Stderr, "%v\n", runErr)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `scout - event cache tooling

Commands:
  scrape       fetch events from a live source into the cache
  cache-stats  show per-source cache counts, optionally purge expired`)
}

// runScrape fetches a window of events from one live source and
// upserts them into the cache, where the "local" source serves them.
func runScrape(cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("scrape", flag.ExitOnError)
	sourceName := fs.String("source", "ticketmaster", "source adapter to fetch from")
	days := fs.Int("days", 14, "days ahead to fetch")
	city := fs.String("city", cfg.Search.City, "city to fetch events for")
	if err := fs.Parse(args); err != nil {
		return err
	}

	registry := liveRegistry(cfg)
	src, ok := registry.Get(*sourceName)
	if !ok {
		return fmt.Errorf("unknown source %q", *sourceName)
	}
	if !src.Available() {
		return fmt.Errorf("source %q is not available (missing credential?)", *sourceName)
	}

	store, err := cache.Open(cache.Options{Path: cfg.Cache.Path, TTL: cfg.Cache.TTL})
	if err != nil {
		return fmt.Errorf("open cache: %w", err)
	}
	defer func() { _ = store.Close() }()

	now := time.Now().In(cfg.Location())
	req := models.SearchRequest{
		TimeWindow: &models.TimeWindow{Start: now, End: now.AddDate(0, 0, *days)},
		Location:   *city,
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Search.SourceTimeout)
	defer cancel()

	events, err := src.Fetch(ctx, req)
	if err != nil {
		return fmt.Errorf("fetch from %s: %w", *sourceName, err)
	}

	// Rewritten under the local source's namespace so the cached copy
	// does not collide with live fetches of the same event.
	for i := range events {
		events[i].ExternalID = events[i].Source + ":" + events[i].ExternalID
		events[i].Source = "local"
		events[i].ID = ""
	}

	written, err := store.UpsertEvents(events)
	if err != nil {
		return fmt.Errorf("cache write: %w", err)
	}
	fmt.Printf("scraped %d events from %s into the local cache\n", written, *sourceName)
	return nil
}

// runCacheStats prints per-source counts and optionally purges expired
// rows.
func runCacheStats(cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("cache-stats", flag.ExitOnError)
	purge := fs.Bool("purge", false, "delete expired entries after counting")
	if err := fs.Parse(args); err != nil {
		return err
	}

	store, err := cache.Open(cache.Options{Path: cfg.Cache.Path, TTL: cfg.Cache.TTL})
	if err != nil {
		return fmt.Errorf("open cache: %w", err)
	}
	defer func() { _ = store.Close() }()

	total, err := store.Count("")
	if err != nil {
		return fmt.Errorf("count: %w", err)
	}
	fmt.Printf("total cached events: %d\n", total)

	for _, name := range []string{"ticketmaster", "seatgeek", "dice", "exa", "local"} {
		n, err := store.Count(name)
		if err != nil {
			return fmt.Errorf("count %s: %w", name, err)
		}
		if n > 0 {
			fmt.Printf("  %-14s %d\n", name, n)
		}
	}

	if *purge {
		deleted, err := store.DeleteExpired()
		if err != nil {
			return fmt.Errorf("purge: %w", err)
		}
		fmt.Printf("purged %d expired entries\n", deleted)
	}
	return nil
}

// liveRegistry registers the live adapters without circuit breakers;
// a one-shot CLI fetch has no state worth protecting.
func liveRegistry(cfg *config.Config) *sources.Registry {
	registry := sources.NewRegistry()
	_ = registry.Register(sources.NewTicketmaster(sources.TicketmasterOptions{
		APIKey:    cfg.Sources.Ticketmaster.APIKey,
		BaseURL:   cfg.Sources.Ticketmaster.BaseURL,
		RateLimit: cfg.Sources.Ticketmaster.RateLimit,
	}))
	_ = registry.Register(sources.NewSeatGeek(cfg.Sources.SeatGeek.ClientID, cfg.Sources.SeatGeek.BaseURL))
	_ = registry.Register(sources.NewDice(cfg.Sources.Dice.APIKey, cfg.Sources.Dice.BaseURL))
	_ = registry.Register(sources.NewExa(cfg.Sources.Exa.APIKey, cfg.Sources.Exa.BaseURL))
	return registry
}
