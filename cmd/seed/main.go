// Command seed fills the database with a demo social graph.
package main

import (
	"context"
	"flag"
	"log"

	"snapgrid/internal/bootstrap"
	"snapgrid/internal/config"
	"snapgrid/internal/seed"
)

func main() {
	preset := flag.String("preset", "demo", "Seeder preset to apply")
	presetFile := flag.String("presets", "", "YAML file with extra or overriding presets")
	users := flag.Int("users", 0, "Override the preset's user count")
	posts := flag.Int("posts", 0, "Override the preset's post count")
	clean := flag.Bool("clean", true, "Delete existing rows before seeding")
	fast := flag.Bool("fast", false, "Hash passwords at minimum bcrypt cost")
	randSeed := flag.Int64("rand-seed", 0, "Fixed random seed for reproducible data")
	list := flag.Bool("list", false, "List available presets and exit")
	flag.Parse()

	presets, err := seed.LoadPresets(*presetFile)
	if err != nil {
		log.Fatalf("Failed to load presets: %v", err)
	}
	if *list {
		for _, name := range presets.Names() {
			p := presets[name]
			log.Printf("%-8s users=%d posts=%d conversations=%d", name, p.Users, p.Posts, p.Conversations)
		}
		return
	}

	p, err := presets.Lookup(*preset)
	if err != nil {
		log.Fatal(err)
	}
	if *users > 0 {
		p.Users = *users
	}
	if *posts > 0 {
		p.Posts = *posts
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	rt, err := bootstrap.InitRuntime(cfg, bootstrap.Options{Migrate: true})
	if err != nil {
		log.Fatalf("Failed to initialize runtime: %v", err)
	}
	defer rt.Close()

	ctx := context.Background()
	s, err := seed.NewSeeder(rt.DB, seed.Options{FastHash: *fast, RandSeed: *randSeed})
	if err != nil {
		log.Fatalf("Failed to create seeder: %v", err)
	}

	if *clean {
		if err := s.ClearAll(ctx); err != nil {
			log.Fatalf("Cleanup failed: %v", err)
		}
	}

	log.Printf("Seeding preset %q: %d users, %d posts", *preset, p.Users, p.Posts)
	stats, err := s.Run(ctx, p)
	if err != nil {
		log.Fatalf("Seeding failed: %v", err)
	}
	rt.PurgeCaches(ctx)

	log.Printf("Created %d users, %d follows, %d posts, %d likes, %d comments, %d replies, %d messages, %d notifications",
		stats.Users, stats.Follows, stats.Posts, stats.Likes, stats.Comments, stats.Replies, stats.Messages, stats.Notifications)
	log.Printf("All seeded users share the password: %s", seed.DefaultPassword)
}
