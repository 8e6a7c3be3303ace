package controlplane

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"market-dashboard/src/helpers"
	"market-dashboard/src/interfaces"
	"market-dashboard/src/logger"
	"market-dashboard/src/models"
	"market-dashboard/src/storage"

	"github.com/gin-gonic/gin"
)

// StatusFunc maps a backend error to the HTTP status returned to the caller
type StatusFunc func(error) int

// StoreStatus is the mapping used in front of an IReferenceStore
func StoreStatus(err error) int {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, storage.ErrConflict):
		return http.StatusConflict
	}
	var ve *helpers.ValidationError
	if errors.As(err, &ve) {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// -----------------------------------------------------------------------------

// resource is one CRUD collection bound to its backend calls
type resource[T any] struct {
	path   string
	list   func(context.Context) ([]T, error)
	get    func(context.Context, int64) (T, error)
	create func(context.Context, T) (T, error)
	update func(context.Context, int64, T) (T, error)
	remove func(context.Context, int64) error
}

// -----------------------------------------------------------------------------

// RegisterRoutes mounts /instruments, /feeds and /subscriptions on g
func RegisterRoutes(g *gin.RouterGroup, api interfaces.IReferenceClient, status StatusFunc, log *logger.Logger) {
	mount(g, status, log, resource[models.MInstrument]{
		path: "/instruments", list: api.ListInstruments, get: api.GetInstrument,
		create: api.CreateInstrument, update: api.UpdateInstrument, remove: api.DeleteInstrument,
	})
	mount(g, status, log, resource[models.MFeed]{
		path: "/feeds", list: api.ListFeeds, get: api.GetFeed,
		create: api.CreateFeed, update: api.UpdateFeed, remove: api.DeleteFeed,
	})
	mount(g, status, log, resource[models.MSubscription]{
		path: "/subscriptions", list: api.ListSubscriptions, get: api.GetSubscription,
		create: api.CreateSubscription, update: api.UpdateSubscription, remove: api.DeleteSubscription,
	})
}

// -----------------------------------------------------------------------------

func mount[T any](g *gin.RouterGroup, status StatusFunc, log *logger.Logger, r resource[T]) {
	fail := func(c *gin.Context, err error) {
		code := status(err)
		if code >= http.StatusInternalServerError {
			log.Error("%s %s: %v", c.Request.Method, c.Request.URL.Path, err)
		}
		c.JSON(code, gin.H{"error": err.Error()})
	}

	g.GET(r.path, func(c *gin.Context) {
		items, err := r.list(c.Request.Context())
		if err != nil {
			fail(c, err)
			return
		}
		if items == nil {
			items = []T{}
		}
		c.JSON(http.StatusOK, items)
	})

	g.GET(r.path+"/:id", func(c *gin.Context) {
		id, ok := pathID(c)
		if !ok {
			return
		}
		item, err := r.get(c.Request.Context(), id)
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, item)
	})

	g.POST(r.path, func(c *gin.Context) {
		var in T
		if err := c.ShouldBindJSON(&in); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		item, err := r.create(c.Request.Context(), in)
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusCreated, item)
	})

	g.PUT(r.path+"/:id", func(c *gin.Context) {
		id, ok := pathID(c)
		if !ok {
			return
		}
		var in T
		if err := c.ShouldBindJSON(&in); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		item, err := r.update(c.Request.Context(), id, in)
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, item)
	})

	g.DELETE(r.path+"/:id", func(c *gin.Context) {
		id, ok := pathID(c)
		if !ok {
			return
		}
		if err := r.remove(c.Request.Context(), id); err != nil {
			fail(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	})
}

// -----------------------------------------------------------------------------

func pathID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id " + strconv.Quote(c.Param("id"))})
		return 0, false
	}
	return id, true
}
