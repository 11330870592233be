package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/flxgame/gamesync/pkg/api/middleware"
	"github.com/flxgame/gamesync/pkg/gamestate"
	"github.com/flxgame/gamesync/pkg/log"
	"github.com/flxgame/gamesync/pkg/repositories"
	"github.com/flxgame/gamesync/pkg/sequencer"
)

func userFromContext(w http.ResponseWriter, r *http.Request) (*gamestate.User, bool) {
	user, ok := r.Context().Value(middleware.UserContextKey).(*gamestate.User)
	if !ok {
		log.Error("failed to get user from context")
		http.Error(w, "Failed to get user from context", http.StatusInternalServerError)
		return nil, false
	}
	return user, true
}

// HandleEnsureUser returns the resolved user. The auth middleware has
// already performed the idempotent upsert by the time this runs.
func HandleEnsureUser() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, ok := userFromContext(w, r)
		if !ok {
			return
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(user); err != nil {
			log.Error("failed to encode user: %v", err)
			http.Error(w, "Failed to encode user", http.StatusInternalServerError)
			return
		}
	}
}

// HandleGetLatestState returns the user's authoritative snapshot.
func HandleGetLatestState(seq *sequencer.Sequencer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, ok := userFromContext(w, r)
		if !ok {
			return
		}

		state, err := seq.LatestState(r.Context(), user.ID)
		if err != nil {
			if repositories.IsNotFound(err) {
				http.Error(w, "Game state not found", http.StatusNotFound)
				return
			}
			log.Error("failed to get game state: %v", err)
			http.Error(w, "Failed to get game state", http.StatusServiceUnavailable)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(state); err != nil {
			log.Error("failed to encode game state: %v", err)
			http.Error(w, "Failed to encode game state", http.StatusInternalServerError)
			return
		}
	}
}

// HandleApplyPatch applies a partial update to the user's snapshot.
func HandleApplyPatch(seq *sequencer.Sequencer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, ok := userFromContext(w, r)
		if !ok {
			return
		}

		patch := gamestate.Patch{}
		if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			return
		}
		if patch.Empty() {
			http.Error(w, "Patch must set score or moves_remaining", http.StatusBadRequest)
			return
		}

		state, err := seq.Apply(r.Context(), user.ID, patch)
		if err != nil {
			switch {
			case sequencer.IsInvalidPatch(err):
				http.Error(w, err.Error(), http.StatusBadRequest)
			case repositories.IsNotFound(err):
				http.Error(w, "User not found", http.StatusNotFound)
			case repositories.IsStoreUnavailable(err):
				log.Error("store unavailable: %v", err)
				http.Error(w, "Store unavailable", http.StatusServiceUnavailable)
			default:
				log.Error("failed to apply patch: %v", err)
				http.Error(w, "Failed to apply patch", http.StatusInternalServerError)
			}
			return
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(state); err != nil {
			log.Error("failed to encode game state: %v", err)
			http.Error(w, "Failed to encode game state", http.StatusInternalServerError)
			return
		}
	}
}

type pointsResponse struct {
	Points int64 `json:"points"`
}

// HandleRecomputePoints re-derives points from the authoritative
// snapshot and returns the new value.
func HandleRecomputePoints(seq *sequencer.Sequencer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, ok := userFromContext(w, r)
		if !ok {
			return
		}

		points, err := seq.RecomputePoints(r.Context(), user.ID)
		if err != nil {
			if repositories.IsNotFound(err) {
				http.Error(w, "Game state not found", http.StatusNotFound)
				return
			}
			log.Error("failed to recompute points: %v", err)
			http.Error(w, "Failed to recompute points", http.StatusServiceUnavailable)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(pointsResponse{Points: points}); err != nil {
			log.Error("failed to encode points: %v", err)
			http.Error(w, "Failed to encode points", http.StatusInternalServerError)
			return
		}
	}
}
