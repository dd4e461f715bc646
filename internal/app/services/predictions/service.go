// Package predictions serves model prediction results.
package predictions

import (
	"context"
	"errors"
	"time"

	"github.com/stockpredict/server/internal/app/domain/prediction"
	"github.com/stockpredict/server/internal/app/storage"
	"github.com/stockpredict/server/pkg/logger"
)

// Service serves gap predictions.
type Service struct {
	store storage.PredictionStore
	log   *logger.Logger
}

// New constructs a predictions service.
func New(store storage.PredictionStore, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("predictions")
	}
	return &Service{store: store, log: log}
}

// ForDate returns the predictions for a date. A zero date means the most
// recent date with predictions. An empty result is not an error.
func (s *Service) ForDate(ctx context.Context, date time.Time) ([]prediction.GapPrediction, time.Time, error) {
	if date.IsZero() {
		latest, err := s.store.LatestPredictionDate(ctx)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				return nil, time.Time{}, nil
			}
			return nil, time.Time{}, err
		}
		date = latest
	}

	list, err := s.store.ListPredictionsByDate(ctx, date)
	if err != nil {
		return nil, time.Time{}, err
	}
	return list, date, nil
}
