package main

import (
	"context"
	"fmt"

	"github.com/desertthunder/pulse/internal/formatter"
	"github.com/desertthunder/pulse/internal/shared"
	"github.com/urfave/cli/v3"
)

type libraryKind int

const (
	tracksKind libraryKind = iota
	albumsKind
	artistsKind
)

func (k libraryKind) String() string {
	switch k {
	case tracksKind:
		return "tracks"
	case albumsKind:
		return "albums"
	case artistsKind:
		return "artists"
	default:
		return ""
	}
}

// MembershipResult pairs an id with its saved or followed flag.
type MembershipResult struct {
	ID    string `json:"id"`
	Saved bool   `json:"saved"`
}

func libraryIDs(cmd *cli.Command) ([]string, error) {
	ids := cmd.StringArgs("ids")
	if len(ids) == 0 {
		return nil, fmt.Errorf("%w: at least one id is required", shared.ErrMissingArgument)
	}
	return ids, nil
}

// LibraryCheck returns the action for a batched membership check.
func (r *Runner) LibraryCheck(kind libraryKind) cli.ActionFunc {
	return func(ctx context.Context, cmd *cli.Command) error {
		ids, err := libraryIDs(cmd)
		if err != nil {
			return err
		}
		if err := r.ensure(ctx); err != nil {
			return err
		}

		r.logger.Info("checking library", "kind", kind, "ids", len(ids))

		var flags []bool
		switch kind {
		case tracksKind:
			flags, err = r.spotify.CheckSavedTracks(ctx, ids)
		case albumsKind:
			flags, err = r.spotify.CheckSavedAlbums(ctx, ids)
		case artistsKind:
			flags, err = r.spotify.CheckFollowingArtists(ctx, ids)
		}
		if err != nil {
			return loginHint(err)
		}

		if cmd.Bool("json") {
			results := make([]MembershipResult, len(ids))
			for i, id := range ids {
				results[i] = MembershipResult{ID: id, Saved: flags[i]}
			}
			return r.writeJSON(results, cmd.Bool("pretty"))
		}
		return formatter.WriteMembership(r.output, ids, flags)
	}
}

// LibraryWrite returns the action for a batched save, remove, follow or unfollow.
func (r *Runner) LibraryWrite(kind libraryKind, add bool) cli.ActionFunc {
	return func(ctx context.Context, cmd *cli.Command) error {
		ids, err := libraryIDs(cmd)
		if err != nil {
			return err
		}
		if err := r.ensure(ctx); err != nil {
			return err
		}

		r.logger.Info("updating library", "kind", kind, "add", add, "ids", len(ids))

		var verb string
		switch {
		case kind == tracksKind && add:
			verb, err = "Saved", r.spotify.SaveTracks(ctx, ids)
		case kind == tracksKind:
			verb, err = "Removed", r.spotify.RemoveSavedTracks(ctx, ids)
		case kind == albumsKind && add:
			verb, err = "Saved", r.spotify.SaveAlbums(ctx, ids)
		case kind == albumsKind:
			verb, err = "Removed", r.spotify.RemoveSavedAlbums(ctx, ids)
		case kind == artistsKind && add:
			verb, err = "Followed", r.spotify.FollowArtists(ctx, ids)
		default:
			verb, err = "Unfollowed", r.spotify.UnfollowArtists(ctx, ids)
		}
		if err != nil {
			return loginHint(err)
		}

		return r.writePlain("✓ %s %d %s\n", verb, len(ids), kind)
	}
}
