package main

import (
	"net/http"
	"time"

	"github.com/bsm/redislock"
	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/segments_backend/config"
	"github.com/mmdatafocus/segments_backend/models"
	"github.com/mmdatafocus/segments_backend/utils"
	"github.com/sirupsen/logrus"
)

type dataRefreshRequest struct {
	FilePath string `json:"filePath" binding:"required"`
}

// refreshLockTTL covers a large run; the lock is released as soon as the run
// finalizes either way.
const refreshLockTTL = 15 * time.Minute

func dataRefreshHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		logger := config.GetLogger()

		var req dataRefreshRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "filePath is required"})
			return
		}

		// Redis lock is a best-effort optimization: it stops two callers from
		// double-ingesting the same file concurrently. Reliability must not
		// depend on Redis; duplicate business keys are skipped in the store
		// anyway, so we proceed without the lock when Redis isn't ready.
		var lock *redislock.Lock
		if redisLock := config.GetRedisLock(); redisLock != nil {
			var err error
			lock, err = redisLock.Obtain(c.Request.Context(), "refresh:"+req.FilePath, refreshLockTTL, nil)
			if err == redislock.ErrNotObtained {
				c.JSON(http.StatusConflict, gin.H{"error": "a refresh for this file is already running"})
				return
			} else if err != nil {
				logger.WithFields(logrus.Fields{
					"field":    "dataRefreshHandler",
					"filePath": req.FilePath,
				}).Warn("error obtaining redis lock; proceeding without redis lock: " + err.Error())
				lock = nil
			}
		}
		defer func() {
			if lock == nil {
				return
			}
			if releaseErr := lock.Release(c.Request.Context()); releaseErr != nil {
				logger.WithFields(logrus.Fields{
					"field":    "dataRefreshHandler",
					"filePath": req.FilePath,
				}).Warn("failed to release redis lock: " + releaseErr.Error())
			}
		}()

		ctx := utils.SetCorrelationIdInContext(c.Request.Context(), utils.CorrelationIdFromContextOrNew(c.Request.Context()))
		refreshLog, err := models.ProcessFile(ctx, req.FilePath)
		if err != nil {
			config.LogError(logger, "datarefresh.go", "dataRefreshHandler", "ProcessFile", req.FilePath, err)
			if refreshLog == nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to refresh data"})
				return
			}
			// The run failed but was audited: return the failed log with the error.
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": err.Error(),
				"log":   refreshLog,
			})
			return
		}
		c.JSON(http.StatusOK, refreshLog)
	}
}

func refreshLogsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		logger := config.GetLogger()
		page, limit := pageLimitFromQuery(c)

		logs, meta, err := models.ListRefreshLogs(c.Request.Context(), page, limit)
		if err != nil {
			config.LogError(logger, "datarefresh.go", "refreshLogsHandler", "ListRefreshLogs", nil, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list refresh logs"})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"data": logs,
			"meta": meta,
		})
	}
}
