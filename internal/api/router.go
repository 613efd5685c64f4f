package api

import (
	"github.com/gin-gonic/gin"

	"github.com/dwang/embedcomp/internal/api/handler"
	"github.com/dwang/embedcomp/internal/api/middleware"
	"github.com/dwang/embedcomp/internal/logger"
)

// RouterDeps bundles the handlers the router wires up.
type RouterDeps struct {
	Search        *handler.SearchHandler
	Compare       *handler.CompareHandler
	Configuration *handler.ConfigurationHandler
	Movie         *handler.MovieHandler
	Index         *handler.IndexHandler
	CORS          middleware.CORSConfig
	Logger        *logger.Logger
}

// SetupRouter configures the Gin router with all routes
func SetupRouter(deps *RouterDeps, mode string) *gin.Engine {
	switch mode {
	case "release":
		gin.SetMode(gin.ReleaseMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.DebugMode)
	}

	r := gin.New()

	r.Use(gin.Recovery())
	r.Use(middleware.LoggerMiddleware(deps.Logger))
	r.Use(middleware.CORS(deps.CORS))

	healthHandler := handler.NewHealthHandler()
	r.GET("/health", healthHandler.Health)

	v1 := r.Group("/api/v1")
	{
		// Search and comparison
		v1.POST("/search", deps.Search.Search)
		v1.GET("/search", deps.Search.SearchGet)
		v1.POST("/compare", deps.Compare.Compare)

		// Configurations
		v1.GET("/configurations", deps.Configuration.ListConfigurations)

		// Movie catalog
		v1.GET("/movies", deps.Movie.ListMovies)
		v1.GET("/movies/:id", deps.Movie.GetMovie)

		// Admin
		admin := v1.Group("/admin")
		{
			admin.POST("/index", deps.Index.TriggerBuild)
			admin.GET("/index/status", deps.Index.GetBuildStatus)
		}
	}

	return r
}
