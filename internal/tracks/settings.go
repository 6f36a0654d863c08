package tracks

import (
	"context"

	"trackline-backend/internal/logger"
	"trackline-backend/internal/segmentation"
	"trackline-backend/internal/store"
)

// ResolveThresholds reads the user's thresholds once for a run. Missing or
// zero values, and lookup failures, fall back to defaults.
func ResolveThresholds(ctx context.Context, s store.Store, userID int64, defaults segmentation.Thresholds, log *logger.Logger) segmentation.Thresholds {
	th := defaults
	setting, err := s.UserSetting(ctx, userID)
	if err != nil {
		log.Warn("using default thresholds", "user_id", userID, "error", err)
		return th
	}
	if setting == nil {
		return th
	}
	if setting.TimeThresholdMinutes > 0 {
		th.TimeMinutes = setting.TimeThresholdMinutes
	}
	if setting.DistanceThresholdMeters > 0 {
		th.DistanceMeters = setting.DistanceThresholdMeters
	}
	return th
}
