package routes

import (
	"tripweave/auth"
	"tripweave/comments"
	"tripweave/middleware"
	"tripweave/ratelim"
	"tripweave/realtime"
	"tripweave/tasks"
	"tripweave/trips"

	"github.com/julienschmidt/httprouter"
)

func AddAuthRoutes(router *httprouter.Router, rl *ratelim.RateLimiter) {
	router.POST("/api/auth/register", rl.Limit(auth.Register))
	router.POST("/api/auth/login", rl.Limit(auth.Login))
}

func AddTripRoutes(router *httprouter.Router) {
	router.GET("/api/trips", middleware.Authenticate(trips.GetTrips))
	router.POST("/api/trips", middleware.Authenticate(trips.CreateTrip))
	router.GET("/api/trips/:tripId", middleware.Authenticate(trips.GetTripData))
	router.DELETE("/api/trips/:tripId", middleware.Authenticate(trips.DeleteTrip))
	router.POST("/api/trips/:tripId/collaborators", middleware.Authenticate(trips.AddCollaborator))
	router.PUT("/api/trips/:tripId/share", middleware.Authenticate(trips.SetShareSettings))
}

func AddTaskRoutes(router *httprouter.Router) {
	router.GET("/api/tasks/node/:nodeId", middleware.Authenticate(tasks.GetTasksForNode))
}

func AddCommentRoutes(router *httprouter.Router) {
	router.GET("/api/comments/node/:nodeId", middleware.Authenticate(comments.GetCommentsForNode))
}

func AddRealtimeRoutes(router *httprouter.Router, rt *realtime.Server) {
	router.GET("/ws", rt.HandleWS)
}
