package main

import (
	"context"
	"fmt"

	"github.com/desertthunder/pulse/internal/formatter"
	"github.com/desertthunder/pulse/internal/shared"
	"github.com/urfave/cli/v3"
)

// PlaylistCreate creates a private playlist for the current user.
func (r *Runner) PlaylistCreate(ctx context.Context, cmd *cli.Command) error {
	name := cmd.String("name")
	if name == "" {
		return fmt.Errorf("%w: --name flag is required", shared.ErrMissingArgument)
	}
	if err := r.ensure(ctx); err != nil {
		return err
	}

	r.logger.Info("creating playlist", "name", name)

	playlist, err := r.spotify.CreatePlaylist(ctx, name, cmd.String("description"))
	if err != nil {
		return loginHint(err)
	}

	if cmd.Bool("json") {
		return r.writeJSON(playlist, cmd.Bool("pretty"))
	}
	return r.writePlain("✓ Created playlist %s %s\n", playlist.Name, formatter.Styles.Help.Render(playlist.ID))
}

// PlaylistAdd appends track uris to a playlist.
func (r *Runner) PlaylistAdd(ctx context.Context, cmd *cli.Command) error {
	id, err := requiredID(cmd)
	if err != nil {
		return err
	}
	uris := cmd.StringArgs("uris")
	if len(uris) == 0 {
		return fmt.Errorf("%w: at least one uri is required", shared.ErrMissingArgument)
	}
	if err := r.ensure(ctx); err != nil {
		return err
	}

	r.logger.Info("adding playlist items", "id", id, "uris", len(uris))

	snapshots, err := r.spotify.AddTracksToPlaylist(ctx, id, uris)
	if err != nil {
		return loginHint(err)
	}

	snapshot := ""
	if len(snapshots) > 0 {
		snapshot = snapshots[len(snapshots)-1]
	}
	return r.writePlain("✓ Added %d tracks to %s %s\n", len(uris), id, formatter.Styles.Help.Render(snapshot))
}

// PlaylistRemove removes the occurrence of a uri at a position.
func (r *Runner) PlaylistRemove(ctx context.Context, cmd *cli.Command) error {
	id, err := requiredID(cmd)
	if err != nil {
		return err
	}
	uri := cmd.String("uri")
	if uri == "" {
		return fmt.Errorf("%w: --uri flag is required", shared.ErrMissingArgument)
	}
	position := cmd.Int("position")
	if position < 0 {
		return fmt.Errorf("%w: position must not be negative", shared.ErrInvalidArgument)
	}
	if err := r.ensure(ctx); err != nil {
		return err
	}

	if err := r.spotify.RemoveTrackFromPlaylist(ctx, id, uri, position); err != nil {
		return loginHint(err)
	}
	return r.writePlain("✓ Removed %s at position %d from %s\n", uri, position, id)
}

// LibraryFollowPlaylists returns the action that follows or unfollows each playlist id.
func (r *Runner) LibraryFollowPlaylists(follow bool) cli.ActionFunc {
	return func(ctx context.Context, cmd *cli.Command) error {
		ids, err := libraryIDs(cmd)
		if err != nil {
			return err
		}
		if err := r.ensure(ctx); err != nil {
			return err
		}

		r.logger.Info("updating followed playlists", "follow", follow, "ids", len(ids))

		for _, id := range ids {
			if err := r.spotify.ToggleFollowPlaylist(ctx, id, follow); err != nil {
				return loginHint(err)
			}
		}

		verb := "Unfollowed"
		if follow {
			verb = "Followed"
		}
		return r.writePlain("✓ %s %d playlists\n", verb, len(ids))
	}
}

// LibraryCheckPlaylist reports whether the current user, or each --user, follows a playlist.
func (r *Runner) LibraryCheckPlaylist(ctx context.Context, cmd *cli.Command) error {
	id, err := requiredID(cmd)
	if err != nil {
		return err
	}
	if err := r.ensure(ctx); err != nil {
		return err
	}

	users := cmd.StringSlice("user")
	var flags []bool
	if len(users) == 0 {
		followed, err := r.spotify.IsPlaylistFollowed(ctx, id)
		if err != nil {
			return loginHint(err)
		}
		users, flags = []string{"me"}, []bool{followed}
	} else if flags, err = r.spotify.CheckPlaylistFollowed(ctx, id, users); err != nil {
		return loginHint(err)
	}

	if cmd.Bool("json") {
		results := make([]MembershipResult, len(users))
		for i, u := range users {
			results[i] = MembershipResult{ID: u, Saved: flags[i]}
		}
		return r.writeJSON(results, cmd.Bool("pretty"))
	}
	return formatter.WriteMembership(r.output, users, flags)
}
