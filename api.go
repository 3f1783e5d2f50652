package main

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/julienschmidt/httprouter"

	"github.com/Seednode/sixdegrees/oracle"
	"github.com/Seednode/sixdegrees/store"
)

func publicProfile(p store.Profile) PublicProfile {
	return PublicProfile{
		ID:       p.ID,
		Username: p.Username,
		Rating:   p.Rating,
		Rank:     rankFor(p.Rating).Title,
	}
}

func writeJSON(cfg *Config, w http.ResponseWriter, status int, body any) (int, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return 0, err
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	securityHeaders(cfg, w)
	w.WriteHeader(status)

	return w.Write(data)
}

func writeError(cfg *Config, w http.ResponseWriter, status int, message string) {
	_, _ = writeJSON(cfg, w, status, map[string]string{"error": message})
}

// POST /api/users/login: look up a username, registering it at the default
// rating on first sight.
func serveLogin(cfg *Config, co *Coordinator, errs chan<- error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		startTime := time.Now()

		var req struct {
			Username string `json:"username"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Username == "" {
			writeError(cfg, w, http.StatusBadRequest, "Username is required.")
			return
		}

		ctx, cancel := contextWithStoreTimeout(r)
		defer cancel()

		profile, err := co.profiles.GetOrCreateByUsername(ctx, req.Username)
		if err != nil {
			writeError(cfg, w, http.StatusInternalServerError, "An error occurred on the server.")
			errs <- err

			return
		}

		written, err := writeJSON(cfg, w, http.StatusOK, publicProfile(profile))
		if err != nil {
			errs <- err

			return
		}

		logf(cfg, "SERVE: Login for %q (%s) to %s in %s",
			req.Username,
			humanReadableSize(int64(written)),
			realIP(r),
			time.Since(startTime).Round(time.Microsecond),
		)
	}
}

// GET /api/users/leaderboard: top profiles by rating.
func serveLeaderboard(cfg *Config, co *Coordinator, errs chan<- error) httprouter.Handle {
	const leaderboardSize = 20

	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		startTime := time.Now()

		ctx, cancel := contextWithStoreTimeout(r)
		defer cancel()

		profiles, err := co.profiles.Leaderboard(ctx, leaderboardSize)
		if err != nil {
			writeError(cfg, w, http.StatusInternalServerError, "An error occurred on the server.")
			errs <- err

			return
		}

		board := make([]PublicProfile, 0, len(profiles))
		for _, p := range profiles {
			board = append(board, publicProfile(p))
		}

		written, err := writeJSON(cfg, w, http.StatusOK, board)
		if err != nil {
			errs <- err

			return
		}

		logf(cfg, "SERVE: Leaderboard (%s) to %s in %s",
			humanReadableSize(int64(written)),
			realIP(r),
			time.Since(startTime).Round(time.Microsecond),
		)
	}
}

// POST /api/challenge/create: insert a Waiting challenge. The id may be
// caller-supplied (the original client generated its own) or left blank for
// a server-generated one.
func serveCreateChallenge(cfg *Config, co *Coordinator, errs chan<- error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		startTime := time.Now()

		var req struct {
			ChallengeID string `json:"challenge_id"`
			StartID     string `json:"start_id"`
			TargetID    string `json:"target_id"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.StartID == "" || req.TargetID == "" {
			writeError(cfg, w, http.StatusBadRequest, "start_id and target_id are required.")
			return
		}

		challengeID, err := co.CreateChallenge(req.ChallengeID, req.StartID, req.TargetID)
		if errors.Is(err, errDuplicateChallenge) {
			writeError(cfg, w, http.StatusConflict, "That challenge id already exists.")
			return
		}
		if err != nil {
			writeError(cfg, w, http.StatusInternalServerError, "An error occurred on the server.")
			errs <- err

			return
		}

		written, err := writeJSON(cfg, w, http.StatusCreated, map[string]string{"challenge_id": challengeID})
		if err != nil {
			errs <- err

			return
		}

		logf(cfg, "SERVE: Challenge %s (%s) to %s in %s",
			challengeID,
			humanReadableSize(int64(written)),
			realIP(r),
			time.Since(startTime).Round(time.Microsecond),
		)
	}
}

// GET /api/oracle/pair: a fresh start/target pair.
func serveOraclePair(cfg *Config, orc oracle.Oracle, errs chan<- error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		if orc == nil {
			writeError(cfg, w, http.StatusServiceUnavailable, "The content oracle is not configured.")
			return
		}

		start, target, err := orc.InitialPair(r.Context())
		if err != nil {
			writeError(cfg, w, http.StatusBadGateway, "The content oracle is unavailable.")
			errs <- err

			return
		}

		_, err = writeJSON(cfg, w, http.StatusOK, map[string]oracle.Node{
			"start":  start,
			"target": target,
		})
		if err != nil {
			errs <- err
		}
	}
}

// POST /api/oracle/choices: candidates adjacent to the posted node.
func serveOracleChoices(cfg *Config, orc oracle.Oracle, errs chan<- error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		if orc == nil {
			writeError(cfg, w, http.StatusServiceUnavailable, "The content oracle is not configured.")
			return
		}

		var from oracle.Node
		if err := json.NewDecoder(r.Body).Decode(&from); err != nil || from.Name == "" {
			writeError(cfg, w, http.StatusBadRequest, "A node with kind and name is required.")
			return
		}

		choices, err := orc.NextChoices(r.Context(), from)
		if err != nil {
			writeError(cfg, w, http.StatusBadGateway, "The content oracle is unavailable.")
			errs <- err

			return
		}

		_, err = writeJSON(cfg, w, http.StatusOK, map[string][]oracle.Node{"choices": choices})
		if err != nil {
			errs <- err
		}
	}
}

// POST /api/oracle/path: a shortest connecting chain, for the loss recap.
func serveOraclePath(cfg *Config, orc oracle.Oracle, errs chan<- error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		if orc == nil {
			writeError(cfg, w, http.StatusServiceUnavailable, "The content oracle is not configured.")
			return
		}

		var req struct {
			Start  oracle.Node `json:"start"`
			Target oracle.Node `json:"target"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Start.Name == "" || req.Target.Name == "" {
			writeError(cfg, w, http.StatusBadRequest, "start and target nodes are required.")
			return
		}

		path, err := orc.ShortestPath(r.Context(), req.Start, req.Target)
		if err != nil {
			writeError(cfg, w, http.StatusBadGateway, "The content oracle is unavailable.")
			errs <- err

			return
		}

		_, err = writeJSON(cfg, w, http.StatusOK, map[string][]oracle.Node{"path": path})
		if err != nil {
			errs <- err
		}
	}
}
