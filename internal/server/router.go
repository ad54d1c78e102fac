package server

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/mentorium/backend/internal/handlers"
	"github.com/mentorium/backend/internal/platform/envutil"
)

// Deps are the handlers the router mounts. Everything is injected; the
// router owns no state of its own.
type Deps struct {
	Health   *handlers.HealthHandler
	Resource *handlers.ResourceHandler
	Chat     *handlers.ChatHandler
	Catalog  *handlers.CatalogHandler
}

func NewRouter(mode string, deps Deps) *gin.Engine {
	if mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())

	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{envutil.Str("CORS_ALLOW_ORIGIN", "*")},
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}))

	r.GET("/healthcheck", deps.Health.Check)

	r.POST("/ask", deps.Chat.Ask)
	r.GET("/get_history", deps.Chat.GetHistory)
	r.POST("/delete_history", deps.Chat.DeleteHistory)

	r.POST("/add_resource", deps.Resource.Add)
	r.POST("/delete_resource", deps.Resource.Delete)

	r.GET("/search_data_db", deps.Catalog.Search)
	r.POST("/refresh_data", deps.Catalog.Refresh)

	return r
}
