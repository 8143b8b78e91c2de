package services

import (
	"testing"

	"github.com/sahilchouksey/edu-materials-api/database"
	"github.com/sahilchouksey/edu-materials-api/model"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, database.Migrate(db))
	return db
}

func createUser(t *testing.T, db *gorm.DB, email string) *model.User {
	user := &model.User{Email: email, PasswordHash: "x", IsActive: true}
	require.NoError(t, db.Create(user).Error)
	return user
}

func createCourse(t *testing.T, db *gorm.DB, owner *model.User, title string) *model.Course {
	course := &model.Course{Title: title, OwnerID: owner.ID}
	require.NoError(t, db.Create(course).Error)
	return course
}

func createLesson(t *testing.T, db *gorm.DB, course *model.Course, title string) *model.Lesson {
	lesson := &model.Lesson{Title: title, CourseID: course.ID, OwnerID: course.OwnerID}
	require.NoError(t, db.Create(lesson).Error)
	return lesson
}
