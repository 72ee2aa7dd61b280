package app

import (
	"gorm.io/gorm"

	"github.com/omniquery/omniquery-backend/internal/platform/logger"
	"github.com/omniquery/omniquery-backend/internal/repos"
)

type Repos struct {
	Images    repos.ImageRecordRepo
	Documents repos.DocumentRecordRepo
	Videos    repos.VideoRecordRepo
	Audios    repos.AudioRecordRepo
	Tracking  repos.TrackingRecordRepo
}

func wireRepos(db *gorm.DB, log *logger.Logger) Repos {
	return Repos{
		Images:    repos.NewImageRecordRepo(db, log),
		Documents: repos.NewDocumentRecordRepo(db, log),
		Videos:    repos.NewVideoRecordRepo(db, log),
		Audios:    repos.NewAudioRecordRepo(db, log),
		Tracking:  repos.NewTrackingRecordRepo(db, log),
	}
}
