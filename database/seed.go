package database

import (
	"errors"
	"fmt"

	"github.com/sahilchouksey/edu-materials-api/model"
	"github.com/sahilchouksey/edu-materials-api/utils/auth"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ErrUserNotFound is returned by GrantModerator for an unknown email
var ErrUserNotFound = errors.New("user not found")

// Seeder handles database seeding operations
type Seeder struct {
	db  *gorm.DB
	log *zap.Logger
}

// NewSeeder creates a new seeder instance
func NewSeeder(db *gorm.DB, log *zap.Logger) *Seeder {
	return &Seeder{db: db, log: log}
}

type demoUser struct {
	email     string
	password  string
	firstName string
	superuser bool
	group     string
}

// Demo accounts. Their passwords are shorter than registration allows.
var demoUsers = []demoUser{
	{email: "admin@example.com", password: "admin123", firstName: "Admin", superuser: true},
	{email: "moderator@example.com", password: "moderator123", firstName: "Moderator", group: model.GroupModerators},
	{email: "user@example.com", password: "user123", firstName: "User", group: model.GroupStudents},
}

type demoCourse struct {
	title       string
	description string
	owner       string
	lessons     []model.Lesson
}

var demoCourses = []demoCourse{
	{
		title:       "Introduction to Go",
		description: "Types, functions, packages and the standard toolchain.",
		owner:       "user@example.com",
		lessons: []model.Lesson{
			{Title: "Installing Go", Description: "Set up the toolchain and a workspace.", VideoLink: "https://www.youtube.com/watch?v=YS4e4q9oBaU"},
			{Title: "Hello, modules", Description: "Create a module and run the first program.", VideoLink: "https://youtu.be/XCZWyN9ZbEQ"},
		},
	},
	{
		title:       "Building HTTP APIs",
		description: "Routing, middleware and JSON responses.",
		owner:       "admin@example.com",
		lessons: []model.Lesson{
			{Title: "Routing basics", Description: "Groups, params and handlers.", VideoLink: "https://youtube.com/watch?v=Iq2qT0fRhAA"},
		},
	},
}

// SeedAll runs all seed functions. It is safe to run more than once.
func (s *Seeder) SeedAll() error {
	s.log.Info("starting database seeding")

	if err := s.SeedGroups(); err != nil {
		return fmt.Errorf("failed to seed groups: %w", err)
	}

	users, err := s.SeedUsers()
	if err != nil {
		return fmt.Errorf("failed to seed users: %w", err)
	}

	if err := s.SeedCourses(users); err != nil {
		return fmt.Errorf("failed to seed courses: %w", err)
	}

	s.log.Info("database seeding completed")
	return nil
}

// SeedGroups creates the well-known groups
func (s *Seeder) SeedGroups() error {
	for _, name := range []string{model.GroupModerators, model.GroupStudents} {
		group := model.Group{Name: name}
		if err := s.db.Where(model.Group{Name: name}).FirstOrCreate(&group).Error; err != nil {
			return err
		}
	}
	return nil
}

// SeedUsers creates the demo accounts and returns them keyed by email
func (s *Seeder) SeedUsers() (map[string]*model.User, error) {
	users := make(map[string]*model.User, len(demoUsers))

	for _, du := range demoUsers {
		var user model.User
		err := s.db.Where("email = ?", du.email).First(&user).Error
		if err == nil {
			s.log.Info("demo user already exists, skipping", zap.String("email", du.email))
			users[du.email] = &user
			continue
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}

		hash, err := auth.HashPassword(du.password)
		if err != nil {
			return nil, fmt.Errorf("failed to hash password: %w", err)
		}

		user = model.User{
			Email:        du.email,
			PasswordHash: hash,
			FirstName:    du.firstName,
			IsActive:     true,
			IsStaff:      du.superuser,
			IsSuperuser:  du.superuser,
		}
		if err := s.db.Create(&user).Error; err != nil {
			return nil, err
		}

		if du.group != "" {
			if err := s.addToGroup(&user, du.group); err != nil {
				return nil, err
			}
		}

		s.log.Info("created demo user", zap.String("email", du.email))
		users[du.email] = &user
	}

	return users, nil
}

// SeedCourses creates the demo courses and lessons and subscribes the demo
// student to the first course
func (s *Seeder) SeedCourses(users map[string]*model.User) error {
	var count int64
	if err := s.db.Model(&model.Course{}).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		s.log.Info("courses already exist, skipping")
		return nil
	}

	return s.db.Transaction(func(tx *gorm.DB) error {
		for i, dc := range demoCourses {
			owner, ok := users[dc.owner]
			if !ok {
				return fmt.Errorf("%w: %s", ErrUserNotFound, dc.owner)
			}

			course := model.Course{
				Title:       dc.title,
				Description: dc.description,
				OwnerID:     owner.ID,
			}
			if err := tx.Create(&course).Error; err != nil {
				return err
			}

			for _, l := range dc.lessons {
				lesson := l
				lesson.CourseID = course.ID
				lesson.OwnerID = owner.ID
				if err := tx.Create(&lesson).Error; err != nil {
					return err
				}
			}

			if i == 0 {
				student := users["user@example.com"]
				sub := model.Subscription{UserID: student.ID, CourseID: course.ID}
				if err := tx.Create(&sub).Error; err != nil {
					return err
				}
			}

			s.log.Info("created demo course", zap.String("title", course.Title), zap.Int("lessons", len(dc.lessons)))
		}
		return nil
	})
}

// GrantModerator adds the user with email to the moderators group
func (s *Seeder) GrantModerator(email string) error {
	var user model.User
	if err := s.db.Preload("Groups").Where("email = ?", email).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("%w: %s", ErrUserNotFound, email)
		}
		return err
	}

	if user.InGroup(model.GroupModerators) {
		s.log.Info("user is already a moderator", zap.String("email", email))
		return nil
	}

	if err := s.addToGroup(&user, model.GroupModerators); err != nil {
		return err
	}

	s.log.Info("granted moderator role", zap.String("email", email))
	return nil
}

func (s *Seeder) addToGroup(user *model.User, name string) error {
	group := model.Group{Name: name}
	if err := s.db.Where(model.Group{Name: name}).FirstOrCreate(&group).Error; err != nil {
		return err
	}
	return s.db.Model(user).Association("Groups").Append(&group)
}

// RunSeeds is a convenience function to run all seeds
func RunSeeds(db *gorm.DB, log *zap.Logger) error {
	return NewSeeder(db, log).SeedAll()
}
