package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/yoockh/virtualvisits/internal/api/handlers"
)

type Deps struct {
	Config         *handlers.ConfigHandler
	Token          *handlers.TokenHandler
	Survey         *handlers.SurveyHandler
	CallAutomation *handlers.CallAutomationHandler
	Transcription  *handlers.TranscriptionHandler
	TranscriptWS   *handlers.TranscriptionWSHandler
	Notifications  *handlers.NotificationHandler

	// Gatherer backs /metrics; nil skips the route.
	Gatherer prometheus.Gatherer
}

func RegisterRoutes(r *gin.Engine, d Deps) {
	// Health-ish
	r.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})
	if d.Gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{})))
	}

	api := r.Group("/api")

	api.GET("/config", d.Config.Get)
	api.GET("/token", d.Token.Issue)
	api.POST("/postSurveyResult", d.Survey.Submit)

	// platform callbacks
	api.POST("/callAutomationEvent", d.CallAutomation.Event)

	api.POST("/startTranscription", d.Transcription.Start)
	api.POST("/stopTranscription", d.Transcription.Stop)
	api.POST("/connectRoomsCall", d.Transcription.ConnectRoomsCall)
	api.POST("/fetchTranscript", d.Transcription.FetchTranscript)
	api.POST("/fetchParticipants", d.Transcription.FetchParticipants)
	api.POST("/transcriptionStatus", d.Transcription.Status)
	api.POST("/updateParticipants", d.Transcription.UpdateParticipants)
	api.POST("/updateRemoteParticipants", d.Transcription.UpdateParticipants)

	api.GET("/notificationEvents", d.Notifications.Events)

	// WebSocket
	r.GET("/ws/transcription", d.TranscriptWS.Stream)
}
