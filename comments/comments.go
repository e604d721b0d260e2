package comments

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

// GetCommentsForNode lists a node's comments oldest first, authors
// resolved, matching the shape the realtime broadcast uses.
func GetCommentsForNode(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	nodeID, err := primitive.ObjectIDFromHex(ps.ByName("nodeId"))
	if err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid node ID format")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	cursor, err := db.CommentsCollection.Find(ctx, bson.M{"nodeId": nodeID},
		options.Find().SetSort(bson.M{"createdAt": 1}))
	if err != nil {
		utils.RespondWithError(w, http.StatusInternalServerError, "Database error")
		return
	}
	defer cursor.Close(ctx)

	comments := []models.Comment{}
	if err := cursor.All(ctx, &comments); err != nil {
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to decode comments")
		return
	}

	// Resolve authors in one query.
	ids := make([]primitive.ObjectID, 0, len(comments))
	seen := map[primitive.ObjectID]bool{}
	for _, c := range comments {
		if !seen[c.UserID] {
			seen[c.UserID] = true
			ids = append(ids, c.UserID)
		}
	}

	authors := map[primitive.ObjectID]models.UserRef{}
	if len(ids) > 0 {
		if userCursor, err := db.UserCollection.Find(ctx, bson.M{"_id": bson.M{"$in": ids}}); err == nil {
			var users []models.User
			userCursor.All(ctx, &users)
			userCursor.Close(ctx)
			for _, u := range users {
				authors[u.ID] = models.UserRef{ID: u.ID, Username: u.Username}
			}
		}
	}

	populated := make([]models.CommentPopulated, 0, len(comments))
	for i := range comments {
		populated = append(populated, comments[i].Populate(authors[comments[i].UserID]))
	}

	utils.RespondWithJSON(w, http.StatusOK, populated)
}
