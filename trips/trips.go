package trips

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"tripweave/db"
	"tripweave/middleware"
	"tripweave/models"
	"tripweave/utils"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"github.com/julienschmidt/httprouter"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"golang.org/x/crypto/bcrypt"
)

func requestUser(r *http.Request) (primitive.ObjectID, bool) {
	id, err := primitive.ObjectIDFromHex(middleware.UserIDFromContext(r.Context()))
	return id, err == nil
}

// loadTripForUser fetches a trip and enforces the minimum role. role is
// "viewer" (owner or any collaborator) or "owner".
func loadTripForUser(ctx context.Context, w http.ResponseWriter, tripIDHex string, userID primitive.ObjectID, role string) *models.Trip {
	tripID, err := primitive.ObjectIDFromHex(tripIDHex)
	if err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid trip ID format")
		return nil
	}

	var trip models.Trip
	if err := db.TripsCollection.FindOne(ctx, bson.M{"_id": tripID}).Decode(&trip); err != nil {
		utils.RespondWithError(w, http.StatusNotFound, "Trip not found")
		return nil
	}

	switch role {
	case "owner":
		if trip.Owner != userID {
			utils.RespondWithError(w, http.StatusForbidden, "Forbidden: owner access required")
			return nil
		}
	default:
		if !trip.HasAccess(userID) {
			utils.RespondWithError(w, http.StatusForbidden, "Forbidden: you do not have access to this trip")
			return nil
		}
	}
	return &trip
}

// GetTrips lists every trip the user owns or collaborates on, newest first.
func GetTrips(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	userID, ok := requestUser(r)
	if !ok {
		utils.RespondWithError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	cursor, err := db.TripsCollection.Find(ctx, bson.M{
		"$or": bson.A{
			bson.M{"owner": userID},
			bson.M{"collaborators.userId": userID},
		},
	}, options.Find().SetSort(bson.M{"updatedAt": -1}))
	if err != nil {
		utils.RespondWithError(w, http.StatusInternalServerError, "Database error")
		return
	}
	defer cursor.Close(ctx)

	trips := []models.Trip{}
	if err := cursor.All(ctx, &trips); err != nil {
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to decode trips")
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, trips)
}

func CreateTrip(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	userID, ok := requestUser(r)
	if !ok {
		utils.RespondWithError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var input struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid input")
		return
	}
	if err := validation.Validate(input.Name, validation.Required, validation.Length(1, 120)); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Please provide a trip name")
		return
	}

	now := time.Now()
	trip := models.Trip{
		ID:            primitive.NewObjectID(),
		Name:          input.Name,
		Owner:         userID,
		Collaborators: []models.Collaborator{},
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if _, err := db.TripsCollection.InsertOne(ctx, trip); err != nil {
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to create trip")
		return
	}

	utils.RespondWithJSON(w, http.StatusCreated, trip)
}

// GetTripData returns the trip with its full canvas: nodes, connections and
// the last 50 activity records with usernames resolved.
func GetTripData(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	userID, ok := requestUser(r)
	if !ok {
		utils.RespondWithError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	trip := loadTripForUser(ctx, w, ps.ByName("tripId"), userID, "viewer")
	if trip == nil {
		return
	}

	nodes := []models.Node{}
	if cursor, err := db.NodesCollection.Find(ctx, bson.M{"tripId": trip.ID}); err == nil {
		cursor.All(ctx, &nodes)
		cursor.Close(ctx)
	}

	connections := []models.Connection{}
	if cursor, err := db.ConnectionsCollection.Find(ctx, bson.M{"tripId": trip.ID}); err == nil {
		cursor.All(ctx, &connections)
		cursor.Close(ctx)
	}

	activities := []models.Activity{}
	if cursor, err := db.ActivitiesCollection.Find(ctx, bson.M{"tripId": trip.ID},
		options.Find().SetSort(bson.M{"timestamp": -1}).SetLimit(50)); err == nil {
		cursor.All(ctx, &activities)
		cursor.Close(ctx)
	}

	utils.RespondWithJSON(w, http.StatusOK, utils.M{
		"trip":        trip,
		"nodes":       nodes,
		"connections": connections,
		"activities":  populateActivities(ctx, activities),
	})
}

// populateActivities resolves actor usernames for the activity feed.
func populateActivities(ctx context.Context, activities []models.Activity) []models.ActivityPopulated {
	ids := make([]primitive.ObjectID, 0, len(activities))
	seen := map[primitive.ObjectID]bool{}
	for _, a := range activities {
		if !seen[a.UserID] {
			seen[a.UserID] = true
			ids = append(ids, a.UserID)
		}
	}

	names := map[primitive.ObjectID]string{}
	if len(ids) > 0 {
		if cursor, err := db.UserCollection.Find(ctx, bson.M{"_id": bson.M{"$in": ids}}); err == nil {
			var users []models.User
			cursor.All(ctx, &users)
			cursor.Close(ctx)
			for _, u := range users {
				names[u.ID] = u.Username
			}
		}
	}

	out := make([]models.ActivityPopulated, 0, len(activities))
	for _, a := range activities {
		out = append(out, models.ActivityPopulated{Activity: a, Username: names[a.UserID]})
	}
	return out
}

type collaboratorInput struct {
	Email string `json:"email"`
	Role  string `json:"role"`
}

func (in collaboratorInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.Email, validation.Required, is.Email),
		validation.Field(&in.Role, validation.Required, validation.In("editor", "viewer")),
	)
}

// AddCollaborator attaches a user (looked up by email) to the trip. Owner
// only.
func AddCollaborator(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	userID, ok := requestUser(r)
	if !ok {
		utils.RespondWithError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var input collaboratorInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid input")
		return
	}
	if err := input.Validate(); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	trip := loadTripForUser(ctx, w, ps.ByName("tripId"), userID, "owner")
	if trip == nil {
		return
	}

	var userToAdd models.User
	if err := db.UserCollection.FindOne(ctx, bson.M{"email": input.Email}).Decode(&userToAdd); err != nil {
		utils.RespondWithError(w, http.StatusNotFound, "User not found with that email")
		return
	}

	if trip.Owner == userToAdd.ID {
		utils.RespondWithError(w, http.StatusBadRequest, "User is already the owner of this trip")
		return
	}
	for _, c := range trip.Collaborators {
		if c.UserID == userToAdd.ID {
			utils.RespondWithError(w, http.StatusBadRequest, "User is already a collaborator")
			return
		}
	}

	trip.Collaborators = append(trip.Collaborators, models.Collaborator{UserID: userToAdd.ID, Role: input.Role})
	trip.UpdatedAt = time.Now()

	if _, err := db.TripsCollection.UpdateOne(ctx, bson.M{"_id": trip.ID}, bson.M{
		"$set": bson.M{"collaborators": trip.Collaborators, "updatedAt": trip.UpdatedAt},
	}); err != nil {
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to add collaborator")
		return
	}

	utils.RespondWithJSON(w, http.StatusCreated, trip)
}

// SetShareSettings enables/disables link sharing and stores the share
// password as a bcrypt hash. Owner only.
func SetShareSettings(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	userID, ok := requestUser(r)
	if !ok {
		utils.RespondWithError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var input struct {
		Enabled  bool   `json:"enabled"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid input")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	trip := loadTripForUser(ctx, w, ps.ByName("tripId"), userID, "owner")
	if trip == nil {
		return
	}

	set := bson.M{"shareEnabled": input.Enabled, "updatedAt": time.Now()}
	if input.Enabled && input.Password != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
		if err != nil {
			utils.RespondWithError(w, http.StatusInternalServerError, "Failed to hash password")
			return
		}
		set["sharePassword"] = string(hash)
	}
	if !input.Enabled {
		set["sharePassword"] = ""
	}

	if _, err := db.TripsCollection.UpdateOne(ctx, bson.M{"_id": trip.ID}, bson.M{"$set": set}); err != nil {
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to update share settings")
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, utils.M{"shareEnabled": input.Enabled})
}

// DeleteTrip removes the trip and everything hanging off it. Owner only.
func DeleteTrip(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	userID, ok := requestUser(r)
	if !ok {
		utils.RespondWithError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	trip := loadTripForUser(ctx, w, ps.ByName("tripId"), userID, "owner")
	if trip == nil {
		return
	}

	// Cascade before the trip itself; a failed cascade aborts the delete so
	// nothing is orphaned behind a 200.
	filter := bson.M{"tripId": trip.ID}
	cascade := []*mongo.Collection{
		db.NodesCollection,
		db.ConnectionsCollection,
		db.TasksCollection,
		db.CommentsCollection,
		db.ActivitiesCollection,
	}
	for _, coll := range cascade {
		if _, err := coll.DeleteMany(ctx, filter); err != nil {
			log.Printf("Trip cascade delete failed (%s, %s): %v", trip.ID.Hex(), coll.Name(), err)
			utils.RespondWithError(w, http.StatusInternalServerError, "Failed to delete trip data")
			return
		}
	}

	if _, err := db.TripsCollection.DeleteOne(ctx, bson.M{"_id": trip.ID}); err != nil {
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to delete trip")
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, utils.M{"deleted": trip.ID.Hex()})
}
