// Command main runs the database seeder for Newsdesk.
package main

import (
	"flag"
	"log"

	"newsdesk/internal/config"
	"newsdesk/internal/database"
	"newsdesk/internal/seed"
)

func main() {
	numUsers := flag.Int("users", 50, "Number of users to create")
	numArticles := flag.Int("articles", 25, "Number of articles to create")
	numComments := flag.Int("comments", 400, "Number of comments to create")
	shouldClean := flag.Bool("clean", true, "Clean database before seeding")
	skipBcrypt := flag.Bool("skip-bcrypt", false, "Store plaintext passwords (dev only, much faster)")
	flag.Parse()

	log.Println("🌱 Database Seeder")
	log.Printf("Target: %d users, %d articles, %d comments, clean=%v\n",
		*numUsers, *numArticles, *numComments, *shouldClean)

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	s := seed.NewSeeder(db, seed.Options{
		NumUsers:    *numUsers,
		NumArticles: *numArticles,
		NumComments: *numComments,
		ShouldClean: *shouldClean,
		SkipBcrypt:  *skipBcrypt,
	})
	if err := s.Run(); err != nil {
		log.Fatalf("❌ Seeding failed: %v", err)
	}

	log.Println("✨ All done! The moderation queue, appeals, and reports now have data.")
	log.Println("📧 All seeded users have the password: password123")
}
