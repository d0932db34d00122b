package router

import (
	"context"
	"strings"
	"time"

	"github.com/bobmcallan/palette/internal/models"
)

// AddBannedWordCommand registers a new banned word or phrase. Owner-only.
func (r *Router) AddBannedWordCommand(ctx context.Context, userID, phrase string, partial bool) Response {
	if !r.isOwner(userID) {
		return ephemeralError("only the bot owner can manage banned words")
	}
	phrase = strings.TrimSpace(phrase)
	if phrase == "" {
		return ephemeralError("phrase must not be empty")
	}

	mode := models.MatchWhole
	if partial {
		mode = models.MatchPartial
	}

	if _, err := r.store.AddBannedWord(ctx, phrase, mode, userID); err != nil {
		return ephemeralError("failed to add banned word")
	}
	r.guard.Invalidate()

	words, err := r.store.ListBannedWords(ctx)
	if err != nil {
		return ephemeralError("added, but failed to list banned words")
	}
	return Response{Kind: KindBannedWordResult, BannedWords: words, Message: "added " + phrase}
}

// RemoveBannedWordCommand removes a banned word or phrase. Owner-only.
func (r *Router) RemoveBannedWordCommand(ctx context.Context, userID, phrase string) Response {
	if !r.isOwner(userID) {
		return ephemeralError("only the bot owner can manage banned words")
	}
	phrase = strings.TrimSpace(phrase)
	if phrase == "" {
		return ephemeralError("phrase must not be empty")
	}

	if err := r.store.RemoveBannedWord(ctx, phrase); err != nil {
		return ephemeralError("failed to remove banned word")
	}
	r.guard.Invalidate()

	words, err := r.store.ListBannedWords(ctx)
	if err != nil {
		return ephemeralError("removed, but failed to list banned words")
	}
	return Response{Kind: KindBannedWordResult, BannedWords: words, Message: "removed " + phrase}
}

// ListBannedWordsCommand lists every banned word. Owner-only.
func (r *Router) ListBannedWordsCommand(ctx context.Context, userID string) Response {
	if !r.isOwner(userID) {
		return ephemeralError("only the bot owner can manage banned words")
	}
	words, err := r.store.ListBannedWords(ctx)
	if err != nil {
		return ephemeralError("failed to list banned words")
	}
	return Response{Kind: KindBannedWordResult, BannedWords: words}
}

// PurgeCommand runs an immediate retention purge, optionally overriding the
// configured max age. Owner-only.
func (r *Router) PurgeCommand(ctx context.Context, userID string, maxAgeOverride time.Duration) Response {
	if !r.isOwner(userID) {
		return ephemeralError("only the bot owner can run a manual purge")
	}

	jobsDeleted, upscaleDeleted, err := r.purge.RunOnce(ctx, maxAgeOverride)
	if err != nil {
		return ephemeralError("purge failed")
	}
	return Response{Kind: KindPurgeResult, JobsDeleted: jobsDeleted, UpscaleDeleted: upscaleDeleted}
}
