// Package discord is the chat-gateway adapter: it owns every discordgo
// detail (sessions, interaction events, embeds, components, modals) and
// translates them to and from the Interaction Router's typed requests and
// responses. Nothing in internal/router imports this package.
package discord

import (
	"context"
	"fmt"
	"sync"

	"github.com/bwmarrin/discordgo"

	"github.com/bobmcallan/palette/internal/common"
	"github.com/bobmcallan/palette/internal/interfaces"
	"github.com/bobmcallan/palette/internal/models"
	"github.com/bobmcallan/palette/internal/router"
)

// entryCommandName is the slash command that opens a fresh draft.
const entryCommandName = "palette"

// Gateway owns the discordgo session and implements interfaces.Notifier so
// the Runner can post results back without knowing anything about Discord.
type Gateway struct {
	session *discordgo.Session
	router  *router.Router
	catalog *models.NodeCatalog
	config  *common.Config
	logger  *common.Logger

	mu              sync.Mutex
	ephemeralTokens map[string]string // jobID -> interaction token, single-use
}

// New constructs a Gateway against the configured bot token. It does not
// open the session; call Start for that. r may be nil at construction time
// to break the Gateway/Runner/Router wiring cycle — set it via SetRouter
// before Start.
func New(cfg *common.Config, r *router.Router, catalog *models.NodeCatalog, logger *common.Logger) (*Gateway, error) {
	session, err := discordgo.New("Bot " + cfg.Discord.Token)
	if err != nil {
		return nil, fmt.Errorf("creating discord session: %w", err)
	}
	session.Identify.Intents = discordgo.IntentsGuilds

	g := &Gateway{
		session:         session,
		router:          r,
		catalog:         catalog,
		config:          cfg,
		logger:          logger,
		ephemeralTokens: make(map[string]string),
	}
	session.AddHandler(g.onInteractionCreate)
	session.AddHandler(g.onReady)
	return g, nil
}

// Start opens the gateway connection and registers the entry slash command.
func (g *Gateway) Start() error {
	if err := g.session.Open(); err != nil {
		return fmt.Errorf("opening discord session: %w", err)
	}

	cmd := &discordgo.ApplicationCommand{
		Name:        entryCommandName,
		Description: "Start a new image generation request",
	}
	if _, err := g.session.ApplicationCommandCreate(g.config.Discord.AppID, g.config.Discord.ScopeID, cmd); err != nil {
		g.logger.Warn().Err(err).Msg("Failed to register entry slash command")
	}
	g.registerAdminCommands()

	g.logger.Info().Str("user", g.session.State.User.Username).Msg("Discord gateway connected")
	return nil
}

// Close disconnects the gateway.
func (g *Gateway) Close() error {
	return g.session.Close()
}

// SetRouter assigns the Router after construction, for the NewApp wiring
// cycle (Router needs the Runner, the Runner needs the Gateway as Notifier).
func (g *Gateway) SetRouter(r *router.Router) {
	g.router = r
}

func (g *Gateway) onReady(s *discordgo.Session, r *discordgo.Ready) {
	g.logger.Debug().Str("session_id", r.SessionID).Msg("Discord session ready")
}

// registerEphemeralToken remembers an interaction token keyed by jobID, for
// the Runner to later take via TakeEphemeralToken when progress updates it.
func (g *Gateway) registerEphemeralToken(jobID, token string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.ephemeralTokens[jobID] = token
}

// TakeEphemeralToken implements interfaces.Notifier: single-use, removed on read.
func (g *Gateway) TakeEphemeralToken(jobID string) (string, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	token, ok := g.ephemeralTokens[jobID]
	if ok {
		delete(g.ephemeralTokens, jobID)
	}
	return token, ok
}

// UpdateEphemeral edits the original ephemeral interaction response. Best
// effort: failures are logged and swallowed, since the token may have expired.
func (g *Gateway) UpdateEphemeral(ctx context.Context, token string, message string) bool {
	if token == "" {
		return false
	}
	_, err := g.session.WebhookMessageEdit(g.config.Discord.AppID, token, "@original", &discordgo.WebhookEdit{
		Content: &message,
	})
	if err != nil {
		g.logger.Warn().Err(err).Msg("Failed to update ephemeral reply")
		return false
	}
	return true
}

var _ interfaces.Notifier = (*Gateway)(nil)
