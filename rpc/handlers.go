package rpc

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"github.com/pkg/errors"

	"github.com/aitownlabs/aitown/api/server/structs"
	"github.com/aitownlabs/aitown/db"
	"github.com/aitownlabs/aitown/network/httputil"
	"github.com/aitownlabs/aitown/town"
	"github.com/aitownlabs/aitown/types"
)

// resolveWorld maps a path id to a world document. The literal id "default"
// resolves to the world flagged as default.
func (s *Server) resolveWorld(ctx context.Context, raw string) (*types.World, *httputil.DefaultErrorJson) {
	if raw == structs.DefaultWorldAlias {
		world, err := s.cfg.database.DefaultWorld(ctx)
		if err != nil {
			return nil, &httputil.DefaultErrorJson{
				Message: errors.Wrap(err, "Could not query default world").Error(),
				Code:    http.StatusInternalServerError,
			}
		}
		if world == nil {
			return nil, &httputil.DefaultErrorJson{
				Message: "No default world exists",
				Code:    http.StatusNotFound,
			}
		}
		return world, nil
	}
	world, err := s.cfg.database.World(ctx, types.ID(raw))
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil, &httputil.DefaultErrorJson{
				Message: fmt.Sprintf("World %s could not be found", raw),
				Code:    http.StatusNotFound,
			}
		}
		return nil, &httputil.DefaultErrorJson{
			Message: errors.Wrap(err, "Could not query world").Error(),
			Code:    http.StatusInternalServerError,
		}
	}
	return world, nil
}

// SubmitInput appends an input to the world's engine queue and returns the
// id clients poll for its outcome.
func (s *Server) SubmitInput(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	world, errJson := s.resolveWorld(ctx, mux.Vars(r)["world"])
	if errJson != nil {
		httputil.WriteError(w, errJson)
		return
	}
	body, err := io.ReadAll(r.Body)
	if err != nil {
		httputil.HandleError(w, "Could not read request body: "+err.Error(), http.StatusInternalServerError)
		return
	}
	var req structs.SubmitInputRequest
	if err := json.Unmarshal(body, &req); err != nil {
		httputil.HandleError(w, "Could not decode request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if req.Name == "" {
		httputil.HandleError(w, "Input name is required", http.StatusBadRequest)
		return
	}
	if errJson := s.moderateJoin(ctx, &req); errJson != nil {
		httputil.WriteError(w, errJson)
		return
	}
	input, err := s.cfg.inputs.InsertInput(ctx, world.EngineID, req.Name, req.Args)
	if err != nil {
		httputil.HandleError(w, "Could not submit input: "+err.Error(), http.StatusInternalServerError)
		return
	}
	httputil.WriteJson(w, &structs.SubmitInputResponse{InputID: string(input.ID)})
}

// moderateJoin screens the name and self-description of a joining player
// before the input reaches the world.
func (s *Server) moderateJoin(ctx context.Context, req *structs.SubmitInputRequest) *httputil.DefaultErrorJson {
	if s.cfg.moderator == nil || req.Name != town.InputJoin {
		return nil
	}
	var args town.JoinArgs
	if err := json.Unmarshal(req.Args, &args); err != nil {
		return &httputil.DefaultErrorJson{
			Message: "Could not decode join args: " + err.Error(),
			Code:    http.StatusBadRequest,
		}
	}
	text := strings.TrimSpace(args.Name + " " + args.Description)
	if text == "" {
		return nil
	}
	flagged, err := s.cfg.moderator.Moderate(ctx, text)
	if err != nil {
		log.WithError(err).Error("Could not moderate join submission")
		return &httputil.DefaultErrorJson{
			Message: "Could not moderate description",
			Code:    http.StatusServiceUnavailable,
		}
	}
	if flagged {
		return &httputil.DefaultErrorJson{
			Message: "Name or description rejected by moderation",
			Code:    http.StatusBadRequest,
		}
	}
	return nil
}

// GetInputStatus reports whether an input has been processed and its
// recorded return value.
func (s *Server) GetInputStatus(w http.ResponseWriter, r *http.Request) {
	raw := mux.Vars(r)["input"]
	input, err := s.cfg.database.Input(r.Context(), types.ID(raw))
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			httputil.HandleError(w, fmt.Sprintf("Input %s could not be found", raw), http.StatusNotFound)
			return
		}
		httputil.HandleError(w, errors.Wrap(err, "Could not query input").Error(), http.StatusInternalServerError)
		return
	}
	httputil.WriteJson(w, &structs.InputStatusResponse{
		InputID:     string(input.ID),
		ReturnValue: input.ReturnValue,
	})
}

// GetEngine returns the engine document driving a world.
func (s *Server) GetEngine(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	world, errJson := s.resolveWorld(ctx, mux.Vars(r)["world"])
	if errJson != nil {
		httputil.WriteError(w, errJson)
		return
	}
	eng, err := s.cfg.database.Engine(ctx, world.EngineID)
	if err != nil {
		httputil.HandleError(w, errors.Wrap(err, "Could not query engine").Error(), http.StatusInternalServerError)
		return
	}
	httputil.WriteJson(w, &structs.EngineResponse{Engine: eng})
}

// GetWorld returns a snapshot of the world's players and unfinished
// conversations as of the engine's last committed step.
func (s *Server) GetWorld(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	world, errJson := s.resolveWorld(ctx, mux.Vars(r)["world"])
	if errJson != nil {
		httputil.WriteError(w, errJson)
		return
	}
	eng, err := s.cfg.database.Engine(ctx, world.EngineID)
	if err != nil {
		httputil.HandleError(w, errors.Wrap(err, "Could not query engine").Error(), http.StatusInternalServerError)
		return
	}
	players, err := s.cfg.database.PlayersInWorld(ctx, world.ID)
	if err != nil {
		httputil.HandleError(w, errors.Wrap(err, "Could not query players").Error(), http.StatusInternalServerError)
		return
	}
	locations, err := s.cfg.database.LocationsInWorld(ctx, world.ID)
	if err != nil {
		httputil.HandleError(w, errors.Wrap(err, "Could not query locations").Error(), http.StatusInternalServerError)
		return
	}
	conversations, err := s.cfg.database.ConversationsInWorld(ctx, world.ID)
	if err != nil {
		httputil.HandleError(w, errors.Wrap(err, "Could not query conversations").Error(), http.StatusInternalServerError)
		return
	}
	members, err := s.cfg.database.MembersInWorld(ctx, world.ID)
	if err != nil {
		httputil.HandleError(w, errors.Wrap(err, "Could not query members").Error(), http.StatusInternalServerError)
		return
	}

	locationsByID := make(map[types.ID]*types.Location, len(locations))
	for _, l := range locations {
		locationsByID[l.GetID()] = l
	}
	playersJson := make([]*structs.PlayerJson, 0, len(players))
	for _, p := range players {
		if !p.Active {
			continue
		}
		pj := &structs.PlayerJson{
			ID:          string(p.ID),
			Name:        p.Name,
			Character:   p.Character,
			Description: p.Description,
			Human:       p.Human(),
		}
		if loc, ok := locationsByID[p.LocationID]; ok {
			pj.X = loc.X()
			pj.Y = loc.Y()
			pj.DX = loc.DX()
			pj.DY = loc.DY()
			pj.Velocity = loc.Velocity()
			pj.History = loc.History()
		}
		playersJson = append(playersJson, pj)
	}

	membersByConversation := make(map[types.ID][]*structs.MemberJson)
	for _, m := range members {
		membersByConversation[m.ConversationID] = append(membersByConversation[m.ConversationID], &structs.MemberJson{
			PlayerID:  string(m.PlayerID),
			Status:    m.Status,
			InvitedAt: m.InvitedAt,
		})
	}
	conversationsJson := make([]*structs.ConversationJson, 0, len(conversations))
	for _, c := range conversations {
		conversationsJson = append(conversationsJson, &structs.ConversationJson{
			ID:          string(c.ID),
			CreatorID:   string(c.CreatorID),
			Created:     c.Created,
			NumMessages: c.NumMessages,
			LastMessage: c.LastMessage,
			IsTyping:    c.IsTyping,
			Members:     membersByConversation[c.ID],
		})
	}

	httputil.WriteJson(w, &structs.WorldResponse{
		World:         world,
		Engine:        eng,
		Players:       playersJson,
		Conversations: conversationsJson,
	})
}

// WorldHeartbeat marks the world as viewed, restarting it when the idle
// janitor had stopped its engine.
func (s *Server) WorldHeartbeat(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	world, errJson := s.resolveWorld(ctx, mux.Vars(r)["world"])
	if errJson != nil {
		httputil.WriteError(w, errJson)
		return
	}
	if err := s.cfg.towns.Heartbeat(ctx, world.ID); err != nil {
		httputil.HandleError(w, errors.Wrap(err, "Could not heartbeat world").Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// ListMessages returns a conversation's transcript, including transcripts of
// finished conversations.
func (s *Server) ListMessages(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	raw := mux.Vars(r)["conversation"]
	conv, err := s.cfg.database.Conversation(ctx, types.ID(raw))
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			httputil.HandleError(w, fmt.Sprintf("Conversation %s could not be found", raw), http.StatusNotFound)
			return
		}
		httputil.HandleError(w, errors.Wrap(err, "Could not query conversation").Error(), http.StatusInternalServerError)
		return
	}
	messages, err := s.cfg.database.MessagesInConversation(ctx, conv.ID)
	if err != nil {
		httputil.HandleError(w, errors.Wrap(err, "Could not query messages").Error(), http.StatusInternalServerError)
		return
	}
	// Resolve author names best effort; players who left the world keep
	// only their id.
	names := make(map[types.ID]string)
	if players, err := s.cfg.database.PlayersInWorld(ctx, conv.WorldID); err != nil {
		log.WithError(err).Error("Could not resolve message authors")
	} else {
		for _, p := range players {
			names[p.ID] = p.Name
		}
	}
	messagesJson := make([]*structs.MessageJson, 0, len(messages))
	for _, m := range messages {
		messagesJson = append(messagesJson, &structs.MessageJson{
			ID:       string(m.ID),
			AuthorID: string(m.AuthorID),
			Author:   names[m.AuthorID],
			Text:     m.Text,
			Created:  m.Created,
		})
	}
	httputil.WriteJson(w, &structs.MessagesResponse{Messages: messagesJson})
}
