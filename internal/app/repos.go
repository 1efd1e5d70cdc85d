package app

import (
	"gorm.io/gorm"

	"github.com/yungbote/alohomora/internal/data/repos"
	"github.com/yungbote/alohomora/internal/platform/logger"
)

type Repos struct {
	Registry repos.Registry
	Session  repos.SessionRepo
}

func wireRepos(db *gorm.DB, log *logger.Logger) Repos {
	log.Info("Wiring repos...")
	return Repos{
		Registry: repos.NewRegistry(db, log),
		Session:  repos.NewSessionRepo(db, log),
	}
}
