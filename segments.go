package main

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/segments_backend/config"
	"github.com/mmdatafocus/segments_backend/models"
	"github.com/mmdatafocus/segments_backend/utils"
)

func createSegmentHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		logger := config.GetLogger()

		var input models.NewCustomerSegment
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"errors": utils.FormatValidationErrors(err)})
			return
		}

		segment, err := models.CreateSegment(c.Request.Context(), &input)
		if err != nil {
			if utils.IsDuplicateEntryError(err) {
				c.JSON(http.StatusConflict, gin.H{"error": "Segment name already exists"})
				return
			}
			config.LogError(logger, "segments.go", "createSegmentHandler", "CreateSegment", input.Name, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create segment"})
			return
		}
		c.JSON(http.StatusCreated, segment)
	}
}

func listSegmentsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		logger := config.GetLogger()
		page, limit := pageLimitFromQuery(c)

		segments, meta, err := models.ListSegments(c.Request.Context(), page, limit)
		if err != nil {
			config.LogError(logger, "segments.go", "listSegmentsHandler", "ListSegments", nil, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list segments"})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"data": segments,
			"meta": meta,
		})
	}
}

func segmentCustomersHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		logger := config.GetLogger()
		page, limit := pageLimitFromQuery(c)

		// A non-numeric id cannot resolve to a segment either.
		segmentId, err := strconv.Atoi(c.Param("segmentId"))
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "Segment not found"})
			return
		}

		customers, total, err := models.GetSegmentCustomers(c.Request.Context(), segmentId, page, limit)
		if err != nil {
			if errors.Is(err, utils.ErrorRecordNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "Segment not found"})
				return
			}
			config.LogError(logger, "segments.go", "segmentCustomersHandler", "GetSegmentCustomers", segmentId, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get segment customers"})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"customers": customers,
			"total":     total,
		})
	}
}
