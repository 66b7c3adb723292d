// -- cmd/ops.go --
package cmd

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/xkilldash9x/quill-cli/api/schemas"
)

var (
	flagLimit     int
	flagToken     string
	flagTitle     string
	flagBody      string
	flagMedia     []string
	flagTags      []string
	flagCommentID string
)

// runOp wires signal handling and the runtime around one adapter call.
func runOp(cmd *cobra.Command, fn func(ctx context.Context, p schemas.Platform) error) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rt, err := newRuntime(ctx)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
		defer cancel()
		rt.shutdown(shutdownCtx)
	}()

	return fn(ctx, rt.platform)
}

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Open the login surface and wait for a human to complete it",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runOp(cmd, func(ctx context.Context, p schemas.Platform) error {
			if err := p.Login(ctx); err != nil {
				return err
			}
			return emit(map[string]string{"status": "logged_in"})
		})
	},
}

var checkLoginCmd = &cobra.Command{
	Use:   "check-login",
	Short: "Probe whether the persisted session is still authenticated",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runOp(cmd, func(ctx context.Context, p schemas.Platform) error {
			in, err := p.CheckLogin(ctx)
			if err != nil {
				return err
			}
			return emit(map[string]bool{"logged_in": in})
		})
	},
}

var feedsCmd = &cobra.Command{
	Use:   "feeds",
	Short: "Extract items from the discovery feed",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runOp(cmd, func(ctx context.Context, p schemas.Platform) error {
			items, err := p.GetFeeds(ctx, flagLimit)
			if err != nil {
				return err
			}
			return emit(items)
		})
	},
}

var searchCmd = &cobra.Command{
	Use:   "search <keyword>",
	Short: "Search posts by keyword",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runOp(cmd, func(ctx context.Context, p schemas.Platform) error {
			results, err := p.Search(ctx, args[0], flagLimit)
			if err != nil {
				return err
			}
			return emit(results)
		})
	},
}

var detailCmd = &cobra.Command{
	Use:   "detail <post-id>",
	Short: "Fetch one post with its comment tree",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runOp(cmd, func(ctx context.Context, p schemas.Platform) error {
			detail, err := p.GetPostDetail(ctx, args[0], flagToken)
			if err != nil {
				return err
			}
			return emit(detail)
		})
	},
}

var mentionsCmd = &cobra.Command{
	Use:   "mentions",
	Short: "List notification entries that mention this identity",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runOp(cmd, func(ctx context.Context, p schemas.Platform) error {
			mentions, err := p.GetMentions(ctx, flagLimit)
			if err != nil {
				return err
			}
			return emit(mentions)
		})
	},
}

var profileCmd = &cobra.Command{
	Use:   "profile <user-id>",
	Short: "Fetch a user's public profile with their recent notes",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runOp(cmd, func(ctx context.Context, p schemas.Platform) error {
			profile, err := p.GetUserProfile(ctx, args[0], flagToken)
			if err != nil {
				return err
			}
			return emit(profile)
		})
	},
}

var publishCmd = &cobra.Command{
	Use:   "publish",
	Short: "Publish a note through the creator studio",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runOp(cmd, func(ctx context.Context, p schemas.Platform) error {
			id, err := p.Publish(ctx, schemas.PublishContent{
				Title:      flagTitle,
				Body:       flagBody,
				MediaPaths: flagMedia,
				Tags:       flagTags,
			})
			if err != nil {
				return err
			}
			return emit(map[string]string{"post_id": id})
		})
	},
}

var commentCmd = &cobra.Command{
	Use:   "comment <post-id>",
	Short: "Post a top-level comment on a note",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runOp(cmd, func(ctx context.Context, p schemas.Platform) error {
			if err := p.Comment(ctx, args[0], flagBody, flagToken); err != nil {
				return err
			}
			return emit(map[string]string{"status": "commented"})
		})
	},
}

var replyCmd = &cobra.Command{
	Use:   "reply <post-id>",
	Short: "Reply to a specific comment on a note",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runOp(cmd, func(ctx context.Context, p schemas.Platform) error {
			if err := p.Reply(ctx, args[0], flagCommentID, flagBody, flagToken); err != nil {
				return err
			}
			return emit(map[string]string{"status": "replied"})
		})
	},
}

func init() {
	feedsCmd.Flags().IntVar(&flagLimit, "limit", 20, "maximum number of items")
	searchCmd.Flags().IntVar(&flagLimit, "limit", 20, "maximum number of results")
	detailCmd.Flags().StringVar(&flagToken, "token", "", "xsec access token from a feed or search entry")
	mentionsCmd.Flags().IntVar(&flagLimit, "limit", 20, "maximum number of entries")
	profileCmd.Flags().StringVar(&flagToken, "token", "", "xsec access token from a feed or search entry")

	publishCmd.Flags().StringVar(&flagTitle, "title", "", "note title")
	publishCmd.Flags().StringVar(&flagBody, "body", "", "note body")
	publishCmd.Flags().StringSliceVar(&flagMedia, "media", nil, "local media paths to attach")
	publishCmd.Flags().StringSliceVar(&flagTags, "tag", nil, "hashtags to append")
	publishCmd.MarkFlagRequired("body")

	commentCmd.Flags().StringVar(&flagBody, "body", "", "comment text")
	commentCmd.Flags().StringVar(&flagToken, "token", "", "xsec access token for the note")
	commentCmd.MarkFlagRequired("body")

	replyCmd.Flags().StringVar(&flagBody, "body", "", "reply text")
	replyCmd.Flags().StringVar(&flagToken, "token", "", "xsec access token for the note")
	replyCmd.Flags().StringVar(&flagCommentID, "comment-id", "", "target comment id")
	replyCmd.MarkFlagRequired("body")
	replyCmd.MarkFlagRequired("comment-id")

	rootCmd.AddCommand(loginCmd, checkLoginCmd, feedsCmd, searchCmd, detailCmd, mentionsCmd, profileCmd, publishCmd, commentCmd, replyCmd)
}
