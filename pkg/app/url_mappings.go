package app

import (
	"github.com/osvaldoandrade/classifyq/internal/controllers"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func SetupMappings(app *Application) {
	app.Engine.GET("/healthz", controllers.NewHealthController(app.Persistence).Handle)
	app.Engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	results := app.Persistence.ResultStorage()
	v1 := app.Engine.Group("/v1/classify")
	{
		v1.POST("/images", controllers.NewSubmitImageController(app.Submissions, app.Config.MaxUploadBytes).Handle)
		v1.GET("/results/:id", controllers.NewGetResultController(app.Hub, results).Handle)
		v1.GET("/results/:id/events", controllers.NewResultEventsController(app.Hub, results).Handle)
		v1.GET("/history", controllers.NewHistoryController(app.History).Handle)
		v1.GET("/model", controllers.NewModelController(app.Config.ModelMetrics()).Handle)
	}
}
