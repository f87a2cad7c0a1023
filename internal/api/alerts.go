package api

import (
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/promfleet/promfleet/internal/model"
)

// PostAlerts ingests an Alertmanager webhook payload. The raw body is
// persisted before routing so a crash between accept and dispatch loses
// nothing; delivery happens on the worker pool after the 202.
func (api *Api) PostAlerts(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "cannot read body"})
		return
	}

	var data model.WebhookMessage
	if err := json.Unmarshal(body, &data); err != nil {
		log.Warn().Err(err).Msg("rejecting malformed webhook payload")
		c.JSON(http.StatusBadRequest, gin.H{"error": "malformed payload"})
		return
	}
	data.Normalize()

	ctx := c.Request.Context()
	key := BuildIdempotencyKey(&data)
	if fresh, err := api.cache.TryMark(ctx, key); err != nil {
		log.Warn().Err(err).Msg("idempotency cache unavailable, processing anyway")
	} else if !fresh {
		log.Debug().Str("key", key).Msg("duplicate webhook delivery suppressed")
		c.Status(http.StatusAccepted)
		return
	}

	alert := &model.Alert{
		ID:      uuid.NewString(),
		Created: time.Now().UTC(),
		Body:    string(body),
	}
	if err := api.store.CreateAlert(ctx, alert); err != nil {
		log.Error().Err(err).Msg("failed to persist alert")
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if err := api.store.InsertAlertLabels(ctx, alert.ID, data.CommonLabels); err != nil {
		log.Error().Err(err).Str("alert", alert.ID).Msg("failed to index alert labels")
	}

	deliveries, err := api.alertRouter.Route(ctx, alert.ID, &data)
	if err != nil {
		log.Error().Err(err).Str("alert", alert.ID).Msg("failed to route alert")
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	for _, d := range deliveries {
		if err := api.dispatcher.Enqueue(d); err != nil {
			log.Error().Err(err).Str("alert", alert.ID).Msg("failed to enqueue delivery")
		}
	}

	log.Info().Str("alert", alert.ID).Int("deliveries", len(deliveries)).
		Str("status", data.Status).Msg("accepted alert")
	c.Status(http.StatusAccepted)
}
