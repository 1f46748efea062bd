package database

import (
	"fmt"
	"log"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/ama13/bookshelf/internal/entities"
)

var defaultRoles = []entities.Role{
	{Name: entities.RoleAdmin},
	{Name: entities.RoleModerator},
	{Name: entities.RoleMember},
}

var defaultGenres = []entities.Genre{
	{Name: "Fiction"},
	{Name: "Non-fiction"},
	{Name: "Science Fiction"},
	{Name: "Fantasy"},
	{Name: "Detective"},
	{Name: "Biography"},
	{Name: "History"},
	{Name: "Poetry"},
}

type Database struct {
	DB *gorm.DB
}

func NewDatabase(dbPath string) (*Database, error) {
	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
		// Unique violations surface as gorm.ErrDuplicatedKey; the review
		// and cover repositories rely on this as their conflict signal.
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	err = db.AutoMigrate(
		&entities.Role{},
		&entities.User{},
		&entities.Genre{},
		&entities.Cover{},
		&entities.Book{},
		&entities.Review{},
		&entities.Collection{},
		&entities.AuditEvent{},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	database := &Database{DB: db}

	if err := database.seedRoles(); err != nil {
		return nil, fmt.Errorf("failed to seed roles: %w", err)
	}
	if err := database.seedGenres(); err != nil {
		return nil, fmt.Errorf("failed to seed genres: %w", err)
	}

	log.Printf("Database initialized successfully at %s", dbPath)

	return database, nil
}

func (d *Database) Close() error {
	sqlDB, err := d.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (d *Database) seedRoles() error {
	for _, role := range defaultRoles {
		var existing entities.Role
		result := d.DB.Where("name = ?", role.Name).First(&existing)
		if result.Error == gorm.ErrRecordNotFound {
			if err := d.DB.Create(&role).Error; err != nil {
				return fmt.Errorf("failed to create role %s: %w", role.Name, err)
			}
		}
	}
	return nil
}

func (d *Database) seedGenres() error {
	for _, genre := range defaultGenres {
		var existing entities.Genre
		result := d.DB.Where("name = ?", genre.Name).First(&existing)
		if result.Error == gorm.ErrRecordNotFound {
			if err := d.DB.Create(&genre).Error; err != nil {
				return fmt.Errorf("failed to create genre %s: %w", genre.Name, err)
			}
		}
	}
	return nil
}

// GetRoleByName looks up one of the seeded roles.
func (d *Database) GetRoleByName(name entities.RoleName) (*entities.Role, error) {
	var role entities.Role
	err := d.DB.Where("name = ?", name).First(&role).Error
	if err != nil {
		return nil, err
	}
	return &role, nil
}
