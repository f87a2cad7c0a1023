// Package api is the HTTP surface of the main server: webhook ingestion and
// the rendered-artifact export endpoints.
package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/promfleet/promfleet/internal/middleware"
	"github.com/promfleet/promfleet/internal/notify"
	"github.com/promfleet/promfleet/internal/registry"
	"github.com/promfleet/promfleet/internal/rules"
	"github.com/promfleet/promfleet/internal/signalbus"
	"github.com/promfleet/promfleet/internal/targets"
	"github.com/promfleet/promfleet/internal/writer"
)

type Api struct {
	store   registry.Store
	service *registry.Service
	bus     *signalbus.Bus
	writer  *writer.Writer
	jobs    map[signalbus.Kind]writer.Job

	alertRouter *notify.Router
	dispatcher  *notify.Dispatcher
	cache       WebhookCache

	siteURL string
	router  *gin.Engine
}

func NewApi(
	store registry.Store,
	service *registry.Service,
	bus *signalbus.Bus,
	w *writer.Writer,
	jobs map[signalbus.Kind]writer.Job,
	alertRouter *notify.Router,
	dispatcher *notify.Dispatcher,
	cache WebhookCache,
	token string,
	siteURL string,
	router *gin.Engine,
) (*Api, error) {
	if cache == nil {
		cache = NoopWebhookCache{}
	}
	api := &Api{
		store:       store,
		service:     service,
		bus:         bus,
		writer:      w,
		jobs:        jobs,
		alertRouter: alertRouter,
		dispatcher:  dispatcher,
		cache:       cache,
		siteURL:     siteURL,
		router:      router,
	}
	api.setupRouters(router, token)
	return api, nil
}

func (api *Api) setupRouters(router *gin.Engine, token string) {
	// Mutations queue deferred rewrites; the sweep at the end of the
	// request collapses them into at most one write per artifact kind.
	router.Use(func(c *gin.Context) {
		c.Next()
		api.bus.Sweep(c.Request.Context())
	})

	// Alertmanager cannot attach our bearer token; the webhook stays open.
	router.POST("/api/v1/alerts", api.PostAlerts)

	v1 := router.Group("/api/v1", middleware.Authentication(token))
	{
		v1.GET("/config", api.exportHandler(signalbus.KindConfig))
		v1.POST("/config", api.writeHandler(signalbus.KindConfig))
		v1.GET("/rules", api.exportHandler(signalbus.KindRules))
		v1.POST("/rules", api.writeHandler(signalbus.KindRules))
		v1.GET("/urls", api.exportHandler(signalbus.KindURLs))
		v1.POST("/urls", api.writeHandler(signalbus.KindURLs))
	}
}

// RenderConfig renders the scrape-target document from the store.
func RenderConfig(store registry.Store) func(ctx context.Context) ([]byte, error) {
	return func(ctx context.Context) ([]byte, error) {
		entries, err := store.ListExporterEntries(ctx)
		if err != nil {
			return nil, err
		}
		return targets.RenderConfig(entries)
	}
}

// RenderRules renders the alerting-rule document from the store.
func RenderRules(store registry.Store, siteURL string) func(ctx context.Context) ([]byte, error) {
	return func(ctx context.Context) ([]byte, error) {
		ruleSet, err := store.ListEnabledRules(ctx)
		if err != nil {
			return nil, err
		}
		return rules.Render(ruleSet, siteURL)
	}
}

// RenderURLs renders the blackbox-probe document from the store.
func RenderURLs(store registry.Store) func(ctx context.Context) ([]byte, error) {
	return func(ctx context.Context) ([]byte, error) {
		entries, err := store.ListURLEntries(ctx)
		if err != nil {
			return nil, err
		}
		return targets.RenderURLs(entries)
	}
}

// exportHandler returns the rendered artifact without touching disk.
func (api *Api) exportHandler(kind signalbus.Kind) gin.HandlerFunc {
	return func(c *gin.Context) {
		job, ok := api.jobs[kind]
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": fmt.Sprintf("unknown artifact %s", kind)})
			return
		}
		body, err := job.Render(c.Request.Context())
		if err != nil {
			log.Error().Err(err).Str("kind", string(kind)).Msg("failed to render artifact")
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		contentType := "application/json"
		if kind == signalbus.KindRules {
			contentType = "application/x-yaml"
			c.Header("Content-Disposition", "attachment; filename=promfleet.rule.yml")
		}
		c.Data(http.StatusOK, contentType, body)
	}
}

// writeHandler forces an immediate write-and-reload for one artifact kind.
func (api *Api) writeHandler(kind signalbus.Kind) gin.HandlerFunc {
	return func(c *gin.Context) {
		job, ok := api.jobs[kind]
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": fmt.Sprintf("unknown artifact %s", kind)})
			return
		}
		if err := api.writer.Write(c.Request.Context(), job, true); err != nil {
			log.Error().Err(err).Str("kind", string(kind)).Msg("failed to write artifact")
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.Status(http.StatusAccepted)
	}
}
