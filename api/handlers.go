package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/bwmarrin/discordgo"
	jsoniter "github.com/json-iterator/go"
	"github.com/rs/zerolog/log"
	actionx "github.com/tanpawarit/chative-guildbot/agent/action"
	"github.com/tanpawarit/chative-guildbot/agent/agents/orchestrator"
	contractx "github.com/tanpawarit/chative-guildbot/agent/contract"
	"github.com/tanpawarit/chative-guildbot/agent/platform/discord"
	"github.com/tanpawarit/chative-guildbot/pkg/qstash"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const maxBodyBytes = 1 << 20

const failureText = "Sorry, something went wrong while handling that request."

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Warn().Err(err).Msg("write json response")
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func readBody(r *http.Request) ([]byte, error) {
	return io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "service": "guildbot"})
}

type conversationRequest struct {
	ChannelID string `json:"channelId"`
	UserID    string `json:"userId"`
	Text      string `json:"text"`
}

type conversationResponse struct {
	ConversationID string                   `json:"conversationId"`
	Reply          *string                  `json:"reply"`
	Fallback       string                   `json:"fallback"`
	Reason         string                   `json:"reason"`
	Turns          int                      `json:"turns"`
	Results        []contractx.ActionResult `json:"results"`
}

func toConversationResponse(reply orchestrator.Reply) conversationResponse {
	resp := conversationResponse{
		ConversationID: reply.ConversationID,
		Fallback:       reply.OrFallback(),
		Reason:         string(reply.Reason),
		Turns:          reply.Turns,
		Results:        reply.Results,
	}
	if reply.OK {
		text := reply.Text
		resp.Reply = &text
	}
	if resp.Results == nil {
		resp.Results = []contractx.ActionResult{}
	}
	return resp
}

func conversationStatus(err error) int {
	switch {
	case errors.Is(err, orchestrator.ErrInvalidMessage),
		errors.Is(err, orchestrator.ErrInvalidChannel),
		errors.Is(err, orchestrator.ErrInvalidUser):
		return http.StatusBadRequest
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, contractx.ErrModelInvoke):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) createConversation(w http.ResponseWriter, r *http.Request) {
	raw, err := readBody(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "could not read body")
		return
	}
	var req conversationRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		writeError(w, http.StatusBadRequest, "body must be a JSON object")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.ConversationTimeout)
	defer cancel()

	reply, err := s.deps.Conversations.RunConversation(ctx, s.deps.Platform, req.ChannelID, req.UserID, req.Text)
	if err != nil {
		status := conversationStatus(err)
		if status >= http.StatusInternalServerError {
			log.Error().Err(err).Str("channel_id", req.ChannelID).Msg("conversation failed")
			writeError(w, status, "conversation failed")
			return
		}
		writeError(w, status, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, toConversationResponse(reply))
}

type actionView struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
	Response    map[string]any `json:"response"`
}

type catalogResponse struct {
	Version uint64       `json:"version"`
	Actions []actionView `json:"actions"`
}

func (s *Server) listActions(w http.ResponseWriter, r *http.Request) {
	decls := s.deps.Actions.Catalog()
	out := catalogResponse{Version: s.deps.Actions.Version(), Actions: make([]actionView, 0, len(decls))}
	for _, d := range decls {
		out.Actions = append(out.Actions, actionView{
			Name:        d.Name,
			Description: d.Description,
			Parameters:  actionx.ObjectSchema(d.Parameters),
			Response:    actionx.ObjectSchema(d.Response),
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) interactions(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := s.deps.InteractionVerifier.Verify(r); err != nil {
		writeError(w, http.StatusUnauthorized, "invalid request signature")
		return
	}
	raw, err := readBody(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "could not read body")
		return
	}

	in, err := discord.DecodeInteraction(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, "malformed interaction")
		return
	}

	switch in.Type {
	case discordgo.InteractionPing:
		writeJSON(w, http.StatusOK, discordgo.InteractionResponse{Type: discordgo.InteractionResponsePong})
	case discordgo.InteractionApplicationCommand:
		s.handleCommand(w, in)
	default:
		writeError(w, http.StatusBadRequest, fmt.Sprintf("unsupported interaction type %d", in.Type))
	}
}

func ephemeral(content string) discordgo.InteractionResponse {
	return discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{Content: content, Flags: discordgo.MessageFlagsEphemeral},
	}
}

func (s *Server) handleCommand(w http.ResponseWriter, in *discord.Interaction) {
	if in.CommandName() != s.cfg.AskCommand {
		writeJSON(w, http.StatusOK, ephemeral("Unknown command."))
		return
	}
	text := in.StringOption("request")
	if text == "" {
		writeJSON(w, http.StatusOK, ephemeral("Tell me what you need, e.g. `/ask create a role called Helpers`."))
		return
	}

	writeJSON(w, http.StatusOK, discordgo.InteractionResponse{Type: discordgo.InteractionResponseDeferredChannelMessageWithSource})

	channelID, userID, token := in.ChannelID, in.UserID(), in.Token
	s.goBackground(func(ctx context.Context) {
		content := failureText
		reply, err := s.deps.Conversations.RunConversation(ctx, s.deps.Platform, channelID, userID, text)
		if err != nil {
			log.Error().
				Err(err).
				Str("interaction_id", in.ID).
				Str("channel_id", channelID).
				Msg("interaction conversation failed")
		} else {
			content = reply.OrFallback()
		}
		if err := s.deps.InteractionResponder.EditOriginalResponse(ctx, token, content); err != nil {
			log.Error().Err(err).Str("interaction_id", in.ID).Msg("edit interaction response")
		}
	})
}

func (s *Server) deliverScheduledMessage(w http.ResponseWriter, r *http.Request) {
	raw, err := readBody(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "could not read body")
		return
	}
	if err := s.deps.CallbackVerifier.Verify(r.Header.Get("Upstash-Signature"), raw, strings.TrimSpace(s.cfg.ScheduledCallbackURL)); err != nil {
		log.Warn().Err(err).Msg("rejected scheduled message callback")
		writeError(w, http.StatusUnauthorized, "invalid signature")
		return
	}

	msg, err := qstash.DecodeScheduledMessage(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	sent, err := s.deps.Platform.SendMessage(r.Context(), msg.ChannelID, msg.Content)
	if err != nil {
		log.Error().Err(err).Str("channel_id", msg.ChannelID).Msg("deliver scheduled message")
		writeError(w, http.StatusBadGateway, "delivery failed")
		return
	}
	log.Info().
		Str("channel_id", msg.ChannelID).
		Str("message_id", sent.ID).
		Str("author_id", msg.AuthorID).
		Msg("scheduled message delivered")
	writeJSON(w, http.StatusOK, map[string]string{"messageId": sent.ID})
}
