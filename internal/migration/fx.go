package migration

import (
	"github.com/docuspace/docuspace/internal/config"
	"github.com/docuspace/docuspace/internal/documents"
	invitationdomain "github.com/docuspace/docuspace/internal/invitation/domain"
	userdomain "github.com/docuspace/docuspace/internal/user/domain"
	workspacedomain "github.com/docuspace/docuspace/internal/workspace/domain"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB, cfg config.Config) error {
		if cfg.DBType == "postgres" {
			sqlDB, err := conn.DB()
			if err != nil {
				return err
			}
			return RunMigrations(sqlDB)
		}
		// SQLite and MySQL (local and test setups) use the model schema
		// directly.
		return AutoMigrate(conn)
	}),
)

// AutoMigrate creates the schema from the persistence models.
func AutoMigrate(conn *gorm.DB) error {
	return conn.AutoMigrate(
		&userdomain.User{},
		&workspacedomain.Workspace{},
		&workspacedomain.Member{},
		&workspacedomain.UserWorkspace{},
		&invitationdomain.Invitation{},
		&documents.Document{},
	)
}
