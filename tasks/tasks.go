package tasks

import (
	"context"
	"net/http"
	"time"

	"tripweave/db"
	"tripweave/models"
	"tripweave/utils"

	"github.com/julienschmidt/httprouter"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// GetTasksForNode lists a node's tasks, oldest first. Task mutation happens
// over the realtime protocol; this is the initial-load read.
func GetTasksForNode(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	nodeID, err := primitive.ObjectIDFromHex(ps.ByName("nodeId"))
	if err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid node ID format")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	cursor, err := db.TasksCollection.Find(ctx, bson.M{"nodeId": nodeID},
		options.Find().SetSort(bson.M{"createdAt": 1}))
	if err != nil {
		utils.RespondWithError(w, http.StatusInternalServerError, "Database error")
		return
	}
	defer cursor.Close(ctx)

	tasks := []models.Task{}
	if err := cursor.All(ctx, &tasks); err != nil {
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to decode tasks")
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, tasks)
}
