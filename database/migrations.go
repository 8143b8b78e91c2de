package database

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"github.com/sahilchouksey/edu-materials-api/model"
	"gorm.io/gorm"
)

// Models lists every table owned by the application, in dependency order
func Models() []interface{} {
	return []interface{}{
		&model.Group{},
		&model.User{},
		&model.Course{},
		&model.Lesson{},
		&model.Subscription{},
		&model.Payment{},
		&model.JWTTokenBlacklist{},
		&model.CourseUpdateEvent{},
		&model.CronJobLog{},
	}
}

var migrations = []*gormigrate.Migration{
	{
		ID: "202610150001_initial_schema",
		Migrate: func(tx *gorm.DB) error {
			return tx.AutoMigrate(Models()...)
		},
		Rollback: func(tx *gorm.DB) error {
			models := Models()
			for i := len(models) - 1; i >= 0; i-- {
				if err := tx.Migrator().DropTable(models[i]); err != nil {
					return err
				}
			}
			return tx.Migrator().DropTable("user_groups")
		},
	},
	{
		ID: "202610150002_well_known_groups",
		Migrate: func(tx *gorm.DB) error {
			for _, name := range []string{model.GroupModerators, model.GroupStudents} {
				group := model.Group{Name: name}
				if err := tx.Where(model.Group{Name: name}).FirstOrCreate(&group).Error; err != nil {
					return err
				}
			}
			return nil
		},
		Rollback: func(tx *gorm.DB) error {
			return tx.Where("name IN ?", []string{model.GroupModerators, model.GroupStudents}).
				Delete(&model.Group{}).Error
		},
	},
}

// Migrate brings the schema up to date. A clean database gets the full
// schema in one step; an existing one replays the pending migrations.
func Migrate(db *gorm.DB) error {
	m := gormigrate.New(db, gormigrate.DefaultOptions, migrations)

	m.InitSchema(func(tx *gorm.DB) error {
		if err := tx.AutoMigrate(Models()...); err != nil {
			return err
		}
		return migrations[1].Migrate(tx)
	})

	return m.Migrate()
}
