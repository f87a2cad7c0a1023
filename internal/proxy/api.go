package proxy

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/fox-gonic/fox"
	"github.com/rs/zerolog/log"
)

// Api exposes the Prometheus HTTP query surface backed by the fan-out.
type Api struct {
	proxy *Proxy
}

func NewApi(proxy *Proxy, router *fox.Engine) *Api {
	a := &Api{proxy: proxy}
	a.setupRouters(router)
	return a
}

func (a *Api) setupRouters(router *fox.Engine) {
	router.GET("/api/v1/labels", a.Labels)
	router.GET("/api/v1/label/:name/values", a.LabelValues)
	router.GET("/api/v1/series", a.Series)
	router.GET("/api/v1/query", a.Query)
	router.GET("/api/v1/query_range", a.QueryRange)
	router.GET("/-/healthy", func(c *fox.Context) {
		c.Writer.WriteHeader(http.StatusOK)
		c.Writer.Write([]byte("ok"))
	})
}

type merger func([]ShardResult) ([]byte, error)

func (a *Api) fanOut(c *fox.Context, path string, merge merger) {
	results, err := a.proxy.Fetch(c.Request.Context(), path, c.Request.URL.Query())
	if err != nil {
		a.sendError(c, err)
		return
	}
	body, err := merge(results)
	if err != nil {
		log.Error().Err(err).Str("path", path).Msg("failed to merge shard responses")
		c.JSON(http.StatusInternalServerError, map[string]string{
			"status": "error", "error": err.Error(),
		})
		return
	}
	writeJSON(c, http.StatusOK, body)
}

func writeJSON(c *fox.Context, status int, body []byte) {
	c.Writer.Header().Set("Content-Type", "application/json")
	c.Writer.WriteHeader(status)
	c.Writer.Write(body)
}

// sendError surfaces a failing shard's own error body so the caller sees the
// backend failure, annotated with the request that hit it.
func (a *Api) sendError(c *fox.Context, err error) {
	var shardErr *ShardError
	if errors.As(err, &shardErr) {
		body := append([]byte(nil), shardErr.Body...)
		body = append(body, []byte(fmt.Sprintf("\n%s", shardErr.URL))...)
		writeJSON(c, shardErr.Code, body)
		return
	}
	log.Error().Err(err).Msg("proxy fan-out failed")
	c.JSON(http.StatusBadGateway, map[string]string{
		"status": "error", "error": err.Error(),
	})
}

func (a *Api) Labels(c *fox.Context) {
	a.fanOut(c, "/api/v1/labels", MergeValues)
}

func (a *Api) LabelValues(c *fox.Context) {
	a.fanOut(c, fmt.Sprintf("/api/v1/label/%s/values", c.Param("name")), MergeValues)
}

func (a *Api) Series(c *fox.Context) {
	a.fanOut(c, "/api/v1/series", MergeSeries)
}

func (a *Api) Query(c *fox.Context) {
	a.fanOut(c, "/api/v1/query", MergeQuery)
}

func (a *Api) QueryRange(c *fox.Context) {
	a.fanOut(c, "/api/v1/query_range", MergeQuery)
}
