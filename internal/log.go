package internal

import (
	"go.uber.org/zap"

	"github.com/guilherme-santos/davsync/internal/logger"
)

func LogFields(acc Account, t ServiceType) []zap.Field {
	return []zap.Field{
		logger.String("account", acc.Name),
		logger.String("platform", acc.Platform),
		logger.String("service", t.String()),
	}
}

func CollectionFields(col *Collection) []zap.Field {
	return []zap.Field{
		logger.Int64("collection_id", col.ID),
		logger.String("collection_url", col.URL),
	}
}
