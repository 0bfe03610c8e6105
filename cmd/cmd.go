// submodule cmd contains command definitions
package main

import "github.com/urfave/cli/v3"

func jsonFlags() []cli.Flag {
	return []cli.Flag{
		&cli.BoolFlag{
			Name:  "json",
			Usage: "Output raw JSON",
		},
		&cli.BoolFlag{
			Name:  "pretty",
			Usage: "Pretty-print JSON output",
		},
	}
}

// setupCommand handles setup operations for the config file and store.
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Setup and configuration commands",
		Commands: []*cli.Command{
			{
				Name:   "database",
				Usage:  "Write a default config if missing, initialize the store and run migrations",
				Action: r.SetupDatabase,
			},
			{
				Name:  "rollback",
				Usage: "Revert the newest applied migrations on the sqlite store",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "steps",
						Usage: "Number of migrations to revert",
						Value: 1,
					},
				},
				Action: r.SetupRollback,
			},
			{
				Name:   "status",
				Usage:  "List migrations and when each was applied",
				Flags:  jsonFlags(),
				Action: r.SetupStatus,
			},
		},
	}
}

// authCommand handles the Spotify session.
func authCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "auth",
		Usage: "Manage Spotify credentials and tokens",
		Commands: []*cli.Command{
			{
				Name:  "credentials",
				Usage: "Store the Spotify application's client id and secret",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "client-id",
						Usage:    "Spotify application client id",
						Required: true,
					},
					&cli.StringFlag{
						Name:     "client-secret",
						Usage:    "Spotify application client secret",
						Required: true,
					},
				},
				Action: r.AuthCredentials,
			},
			{
				Name:  "login",
				Usage: "Authorize pulse in the browser (OAuth2 authorization code flow)",
				Flags: []cli.Flag{
					&cli.DurationFlag{
						Name:  "timeout",
						Usage: "How long to wait for the browser callback",
						Value: defaultLoginTimeout,
					},
					&cli.BoolFlag{
						Name:  "no-browser",
						Usage: "Print the authorization URL instead of opening it",
					},
				},
				Action: r.AuthLogin,
			},
			{
				Name:   "logout",
				Usage:  "Forget the stored tokens (credentials are kept)",
				Action: r.AuthLogout,
			},
			{
				Name:   "status",
				Usage:  "Show token state and check the connection",
				Flags:  jsonFlags(),
				Action: r.AuthStatus,
			},
			{
				Name:   "refresh",
				Usage:  "Force a token refresh",
				Action: r.AuthRefresh,
			},
		},
	}
}

// spotifyCommand handles read-only Spotify operations.
func spotifyCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "spotify",
		Aliases: []string{"spot"},
		Usage:   "Spotify account and playlist operations",
		Commands: []*cli.Command{
			{
				Name:   "me",
				Usage:  "Show the current user's profile",
				Flags:  jsonFlags(),
				Action: r.SpotifyMe,
			},
			{
				Name:  "playlists",
				Usage: "List the current user's playlists",
				Flags: append(jsonFlags(),
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Maximum number of playlists to return (0 for all)",
						Value: 50,
					},
				),
				Action: r.SpotifyPlaylists,
			},
			{
				Name:  "playlist",
				Usage: "Show or export a playlist",
				Flags: append(jsonFlags(),
					&cli.StringFlag{
						Name:     "id",
						Usage:    "Playlist ID",
						Required: true,
					},
					&cli.StringFlag{
						Name:    "export",
						Aliases: []string{"e"},
						Usage:   "Export format: csv, md, txt or json",
					},
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Usage:   "Output path (base name for csv, directory for md)",
					},
					&cli.BoolFlag{
						Name:  "color",
						Usage: "Extract the accent color from the playlist cover",
					},
				),
				Action: r.SpotifyPlaylist,
			},
			{
				Name:  "saved-tracks",
				Usage: "List saved tracks",
				Flags: append(jsonFlags(),
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Page size",
						Value: 20,
					},
					&cli.IntFlag{
						Name:  "offset",
						Usage: "Page offset",
					},
				),
				Action: r.SpotifySavedTracks,
			},
			{
				Name:   "track",
				Usage:  "Show a track",
				Flags:  append(jsonFlags(), idFlag("Track ID")),
				Action: r.SpotifyTrack,
			},
			{
				Name:  "album",
				Usage: "Show an album and its tracks",
				Flags: append(jsonFlags(),
					idFlag("Album ID"),
					&cli.BoolFlag{
						Name:  "color",
						Usage: "Extract the accent color from the album cover",
					},
				),
				Action: r.SpotifyAlbum,
			},
			{
				Name:  "artist",
				Usage: "Show an artist with optional top tracks and albums",
				Flags: append(jsonFlags(),
					idFlag("Artist ID"),
					&cli.BoolFlag{
						Name:  "top",
						Usage: "Include the artist's top tracks",
					},
					&cli.StringFlag{
						Name:  "market",
						Usage: "Market for top tracks (defaults to the account's)",
					},
					&cli.BoolFlag{
						Name:  "albums",
						Usage: "Include the artist's albums",
					},
					&cli.StringFlag{
						Name:  "include-groups",
						Usage: "Album groups, e.g. album,single",
					},
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Maximum number of albums",
					},
				),
				Action: r.SpotifyArtist,
			},
			{
				Name:      "search",
				Usage:     "Search the catalog",
				ArgsUsage: "<query...>",
				Arguments: []cli.Argument{
					&cli.StringArgs{
						Name: "query",
						Min:  1,
						Max:  -1,
					},
				},
				Flags: append(jsonFlags(),
					&cli.StringSliceFlag{
						Name:  "type",
						Usage: "Result types: track, artist, album, playlist (defaults to track, artist and album)",
					},
				),
				Action: r.SpotifySearch,
			},
			{
				Name:  "saved-albums",
				Usage: "List saved albums",
				Flags: append(jsonFlags(),
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Page size",
						Value: 20,
					},
					&cli.IntFlag{
						Name:  "offset",
						Usage: "Page offset",
					},
				),
				Action: r.SpotifySavedAlbums,
			},
			{
				Name:   "recent",
				Usage:  "List recently played tracks",
				Flags:  jsonFlags(),
				Action: r.SpotifyRecent,
			},
			{
				Name:   "new-releases",
				Usage:  "List featured new albums",
				Flags:  jsonFlags(),
				Action: r.SpotifyNewReleases,
			},
			{
				Name:  "recommend",
				Usage: "Recommend tracks from seed tracks, artists and genres",
				Flags: append(jsonFlags(),
					&cli.StringSliceFlag{
						Name:  "track",
						Usage: "Seed track ID",
					},
					&cli.StringSliceFlag{
						Name:  "artist",
						Usage: "Seed artist ID",
					},
					&cli.StringSliceFlag{
						Name:  "genre",
						Usage: "Seed genre",
					},
				),
				Action: r.SpotifyRecommend,
			},
			{
				Name:  "play",
				Usage: "Start playback of a track, album or playlist uri",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "device",
						Usage:    "Device ID",
						Required: true,
					},
					&cli.StringFlag{
						Name:     "uri",
						Usage:    "Spotify uri to play",
						Required: true,
					},
				},
				Action: r.SpotifyPlay,
			},
		},
	}
}

func idFlag(usage string) cli.Flag {
	return &cli.StringFlag{
		Name:     "id",
		Usage:    usage,
		Required: true,
	}
}

// playlistCommand handles playlist writes.
func playlistCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "playlist",
		Usage: "Create playlists and change their items",
		Commands: []*cli.Command{
			{
				Name:  "create",
				Usage: "Create a private playlist",
				Flags: append(jsonFlags(),
					&cli.StringFlag{
						Name:     "name",
						Usage:    "Playlist name",
						Required: true,
					},
					&cli.StringFlag{
						Name:  "description",
						Usage: "Playlist description",
					},
				),
				Action: r.PlaylistCreate,
			},
			{
				Name:      "add",
				Usage:     "Append track uris to a playlist",
				ArgsUsage: "<uris...>",
				Arguments: []cli.Argument{
					&cli.StringArgs{
						Name: "uris",
						Min:  1,
						Max:  -1,
					},
				},
				Flags:  []cli.Flag{idFlag("Playlist ID")},
				Action: r.PlaylistAdd,
			},
			{
				Name:  "remove",
				Usage: "Remove the occurrence of a uri at a position",
				Flags: []cli.Flag{
					idFlag("Playlist ID"),
					&cli.StringFlag{
						Name:     "uri",
						Usage:    "Track uri",
						Required: true,
					},
					&cli.IntFlag{
						Name:  "position",
						Usage: "Zero-based position of the occurrence",
					},
				},
				Action: r.PlaylistRemove,
			},
		},
	}
}

func idsArgument() []cli.Argument {
	return []cli.Argument{
		&cli.StringArgs{
			Name: "ids",
			Min:  1,
			Max:  -1,
		},
	}
}

// libraryCommand handles batched library membership checks and writes.
func libraryCommand(r *Runner) *cli.Command {
	check := func(name, usage string, kind libraryKind) *cli.Command {
		return &cli.Command{
			Name:      name,
			Usage:     usage,
			ArgsUsage: "<ids...>",
			Arguments: idsArgument(),
			Flags:     jsonFlags(),
			Action:    r.LibraryCheck(kind),
		}
	}
	write := func(name, usage string, kind libraryKind, add bool) *cli.Command {
		return &cli.Command{
			Name:      name,
			Usage:     usage,
			ArgsUsage: "<ids...>",
			Arguments: idsArgument(),
			Action:    r.LibraryWrite(kind, add),
		}
	}

	return &cli.Command{
		Name:    "library",
		Aliases: []string{"lib"},
		Usage:   "Check and change saved tracks, albums, followed artists and playlists",
		Commands: []*cli.Command{
			check("check-tracks", "Check whether tracks are saved", tracksKind),
			write("save-tracks", "Save tracks", tracksKind, true),
			write("remove-tracks", "Remove saved tracks", tracksKind, false),
			check("check-albums", "Check whether albums are saved", albumsKind),
			write("save-albums", "Save albums", albumsKind, true),
			write("remove-albums", "Remove saved albums", albumsKind, false),
			check("check-artists", "Check whether artists are followed", artistsKind),
			write("follow-artists", "Follow artists", artistsKind, true),
			write("unfollow-artists", "Unfollow artists", artistsKind, false),
			{
				Name:      "follow-playlists",
				Usage:     "Follow playlists",
				ArgsUsage: "<ids...>",
				Arguments: idsArgument(),
				Action:    r.LibraryFollowPlaylists(true),
			},
			{
				Name:      "unfollow-playlists",
				Usage:     "Unfollow playlists",
				ArgsUsage: "<ids...>",
				Arguments: idsArgument(),
				Action:    r.LibraryFollowPlaylists(false),
			},
			{
				Name:  "check-playlist",
				Usage: "Check whether you, or up to 5 users, follow a playlist",
				Flags: append(jsonFlags(),
					idFlag("Playlist ID"),
					&cli.StringSliceFlag{
						Name:  "user",
						Usage: "User ID to check instead of the current user",
					},
				),
				Action: r.LibraryCheckPlaylist,
			},
		},
	}
}

// colorCommand handles dominant color extraction and the color cache.
func colorCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "color",
		Usage: "Dominant color extraction",
		Commands: []*cli.Command{
			{
				Name:  "extract",
				Usage: "Extract (or read from cache) the dominant color of an image",
				Flags: append(jsonFlags(),
					&cli.StringFlag{
						Name:     "id",
						Usage:    "Entity ID used as the cache key",
						Required: true,
					},
					&cli.StringFlag{
						Name:  "url",
						Usage: "Image URL",
					},
				),
				Action: r.ColorExtract,
			},
			{
				Name:  "playlist",
				Usage: "Extract colors for every album cover in a playlist",
				Flags: append(jsonFlags(),
					&cli.StringFlag{
						Name:     "id",
						Usage:    "Playlist ID",
						Required: true,
					},
					&cli.IntFlag{
						Name:  "workers",
						Usage: "Concurrent extractions",
						Value: 4,
					},
					&cli.FloatFlag{
						Name:  "rate",
						Usage: "Extractions started per second",
						Value: 10,
					},
					&cli.StringFlag{
						Name:  "report",
						Usage: "Write a JSON report to this path",
					},
				),
				Action: r.ColorPlaylist,
			},
			{
				Name:  "forget",
				Usage: "Drop one cached color",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "id",
						Usage:    "Entity ID",
						Required: true,
					},
				},
				Action: r.ColorForget,
			},
			{
				Name:   "clear",
				Usage:  "Drop every cached color",
				Action: r.ColorClear,
			},
		},
	}
}

// serveCommand runs the local companion API.
func serveCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the local API (OAuth callback, tokens, colors)",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "addr",
				Usage: "Listen address (defaults to server.host:server.port)",
			},
		},
		Action: r.Serve,
	}
}

// browseCommand launches the interactive browser.
func browseCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "browse",
		Usage: "Browse playlists with cover accents and toggle saved tracks, albums and follows",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "log-file",
				Usage: "Where logs go while the browser owns the terminal",
				Value: defaultBrowseLog(),
			},
		},
		Action: r.Browse,
	}
}
