// Command generate_demo creates a demo database with public domain books,
// sample accounts, reviews and a collection.
// Usage: go run cmd/generate_demo/main.go [-db path/to/demo.db]
package main

import (
	"flag"
	"log"
	"os"

	"golang.org/x/crypto/bcrypt"

	"github.com/ama13/bookshelf/internal/auth"
	"github.com/ama13/bookshelf/internal/config"
	"github.com/ama13/bookshelf/internal/database"
	"github.com/ama13/bookshelf/internal/database/books"
	"github.com/ama13/bookshelf/internal/database/collections"
	"github.com/ama13/bookshelf/internal/database/reviews"
	"github.com/ama13/bookshelf/internal/entities"
)

const (
	defaultDemoDatabasePath = "./demo.db"
	// Every demo account logs in with this password.
	demoPassword = "demo-password"
)

func main() {
	dbPath := flag.String("db", defaultDemoDatabasePath, "path to the demo database file")
	flag.Parse()

	log.Printf("Generating demo database at %s...", *dbPath)

	// Start fresh every run.
	if err := os.Remove(*dbPath); err != nil && !os.IsNotExist(err) {
		log.Fatalf("Failed to remove existing demo database: %v", err)
	}

	db, err := database.NewDatabase(*dbPath)
	if err != nil {
		log.Fatalf("Failed to create database: %v", err)
	}
	defer db.Close()

	users := createUsers(db)
	bookIDs := createBooks(db)
	createReviews(db, users, bookIDs)
	createCollection(db, users["reader"], bookIDs)

	log.Println("Demo database generated successfully!")
	log.Printf("Accounts: admin, librarian, reader (password %q)", demoPassword)
}

func createUsers(db *database.Database) map[string]*entities.User {
	service := auth.NewService(db, config.Auth{BcryptCost: bcrypt.DefaultCost})

	accounts := []struct {
		login string
		first string
		last  string
		role  entities.RoleName
	}{
		{"admin", "Anna", "Mayer", entities.RoleAdmin},
		{"librarian", "Boris", "Klein", entities.RoleModerator},
		{"reader", "Clara", "Novak", entities.RoleMember},
	}

	created := make(map[string]*entities.User, len(accounts))
	for _, acc := range accounts {
		user, err := service.CreateUser(acc.login, demoPassword, acc.first, acc.last, "", acc.role)
		if err != nil {
			log.Fatalf("Failed to create user %s: %v", acc.login, err)
		}
		created[acc.login] = user
		log.Printf("Created %s user %q", acc.role, acc.login)
	}
	return created
}

type demoBook struct {
	book   entities.Book
	genres []string
}

func getPublicDomainBooks() []demoBook {
	return []demoBook{
		{
			genres: []string{"Fiction", "History"},
			book: entities.Book{
				Title:     "War and Peace",
				Author:    "Leo Tolstoy",
				Publisher: "The Russian Messenger",
				Year:      1869,
				Pages:     1225,
				Description: "Tolstoy's epic of the Napoleonic era follows five aristocratic " +
					"families through war, peace and everything in between.\n\n" +
					"*We can know only that we know nothing. And that is the highest degree of human wisdom.*",
			},
		},
		{
			genres: []string{"Fiction", "Detective"},
			book: entities.Book{
				Title:     "Crime and Punishment",
				Author:    "Fyodor Dostoevsky",
				Publisher: "The Russian Messenger",
				Year:      1866,
				Pages:     671,
				Description: "A destitute former student murders a pawnbroker and discovers that " +
					"the hardest judge to escape is his own conscience.",
			},
		},
		{
			genres: []string{"Science Fiction"},
			book: entities.Book{
				Title:     "The Time Machine",
				Author:    "H. G. Wells",
				Publisher: "William Heinemann",
				Year:      1895,
				Pages:     84,
				Description: "The Time Traveller journeys to the year 802,701 and finds humanity " +
					"split into the gentle Eloi and the subterranean Morlocks.",
			},
		},
		{
			genres: []string{"Poetry"},
			book: entities.Book{
				Title:       "Leaves of Grass",
				Author:      "Walt Whitman",
				Publisher:   "Self-published",
				Year:        1855,
				Pages:       145,
				Description: "Whitman's lifelong poem cycle celebrating the body, democracy and the open road.",
			},
		},
	}
}

func createBooks(db *database.Database) []uint {
	repo := books.NewRepository(db.DB)

	var ids []uint
	for _, cfg := range getPublicDomainBooks() {
		genreIDs := make([]uint, 0, len(cfg.genres))
		for _, name := range cfg.genres {
			var genre entities.Genre
			if err := db.DB.Where("name = ?", name).First(&genre).Error; err != nil {
				log.Printf("Unknown genre %s: %v", name, err)
				continue
			}
			genreIDs = append(genreIDs, genre.ID)
		}

		book := cfg.book
		if err := repo.CreateWithGenres(&book, genreIDs); err != nil {
			log.Printf("Failed to save book %s: %v", book.Title, err)
			continue
		}
		ids = append(ids, book.ID)
		log.Printf("Saved: %s by %s (%d)", book.Title, book.Author, book.Year)
	}
	return ids
}

func createReviews(db *database.Database, users map[string]*entities.User, bookIDs []uint) {
	repo := reviews.NewRepository(db.DB)

	samples := []struct {
		login  string
		book   int
		rating int
		text   string
	}{
		{"reader", 0, 5, "Took me a whole winter, worth every evening."},
		{"librarian", 0, 4, "The war chapters drag a little, the peace ones never do."},
		{"reader", 1, 4, "Raskolnikov's fever dreams stay with you."},
		{"admin", 2, 5, "Still the blueprint for every time travel story since."},
	}

	for _, s := range samples {
		if s.book >= len(bookIDs) {
			continue
		}
		review := &entities.Review{
			BookID: bookIDs[s.book],
			UserID: users[s.login].ID,
			Rating: s.rating,
			Text:   s.text,
		}
		if err := repo.Create(review); err != nil {
			log.Printf("Failed to save review by %s: %v", s.login, err)
		}
	}
}

func createCollection(db *database.Database, owner *entities.User, bookIDs []uint) {
	repo := collections.NewRepository(db.DB)

	collection, err := repo.Create("Russian classics", owner.ID)
	if err != nil {
		log.Printf("Failed to create demo collection: %v", err)
		return
	}
	for _, id := range bookIDs[:2] {
		if err := repo.AddBook(collection.ID, id); err != nil {
			log.Printf("Failed to fill demo collection: %v", err)
		}
	}
}
