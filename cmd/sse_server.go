package cmd

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/viper"

	"mockly/internal/handler"
	"mockly/internal/metrics"
)

// newSSEServer returns a dedicated server for the event stream, or nil when
// no separate port is configured and the stream shares the API server.
func newSSEServer(stream *handler.Stream, m *metrics.Metrics) *http.Server {
	port := viper.GetString("server.sse_port")
	if port == "" || port == viper.GetString("server.port") {
		return nil
	}

	r := newEngine(m)
	stream.Register(r)
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	return &http.Server{
		Addr:              fmt.Sprintf("%s:%s", viper.GetString("server.host"), port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
}
