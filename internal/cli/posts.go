package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/me/blogfront/internal/account"
	"github.com/me/blogfront/internal/forms"
	"github.com/me/blogfront/pkg/model"
)

func newPostsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "posts",
		Aliases: []string{"post"},
		Short:   "Read and manage posts",
	}
	cmd.AddCommand(
		newPostsListCmd(a),
		newPostsShowCmd(a),
		newPostsCreateCmd(a),
		newPostsEditCmd(a),
		newPostsDeleteCmd(a),
	)
	return cmd
}

func parsePostID(arg string) (int64, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid post id %q", arg)
	}
	return id, nil
}

func newPostsListCmd(a *app) *cobra.Command {
	var page, perPage int
	var search string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List posts, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if page < 1 {
				return fmt.Errorf("--page must be at least 1, got %d", page)
			}
			opts := model.PageOptions(page, perPage)
			result, err := a.posts.Search(cmd.Context(), search, opts)
			if err != nil {
				return err
			}

			return a.render(result, func(w io.Writer) {
				if len(result.Items) == 0 {
					if search != "" {
						fmt.Fprintf(w, "No posts found matching %q.\n", search)
					} else {
						fmt.Fprintln(w, "No posts found.")
					}
					return
				}
				printPostTable(w, result.Items)

				fmt.Fprintln(w)
				if n := result.PageCount(); n > 0 {
					fmt.Fprintf(w, "Page %d of %d (%d posts)\n", result.PageNumber(), n, result.Total)
				} else {
					fmt.Fprintf(w, "Page %d\n", result.PageNumber())
				}
				if result.HasMore {
					fmt.Fprintf(w, "More posts: --page %d\n", result.PageNumber()+1)
				}
			})
		},
	}

	cmd.Flags().IntVar(&page, "page", 1, "Page number, starting at 1")
	cmd.Flags().IntVar(&perPage, "per-page", model.PostsPerPage, "Posts per page (max 100)")
	cmd.Flags().StringVarP(&search, "search", "s", "", "Only posts whose title or content contains this text")
	return cmd
}

func newPostsShowCmd(a *app) *cobra.Command {
	var saveImage string

	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show a post",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parsePostID(args[0])
			if err != nil {
				return err
			}
			post, err := a.posts.Get(cmd.Context(), id)
			if err != nil {
				return err
			}

			if err := a.render(post, func(w io.Writer) {
				printPost(w, post)
				if account.CanModify(a.session.State(), post) {
					fmt.Fprintf(w, "\nYou wrote this post: blog posts edit %d | blog posts delete %d\n", post.ID, post.ID)
				}
			}); err != nil {
				return err
			}

			if saveImage == "" {
				return nil
			}
			path, n, err := writeImage(post, saveImage)
			if err != nil {
				return err
			}
			a.message("Image saved to %s (%s).", path, humanize.Bytes(uint64(n)))
			return nil
		},
	}

	cmd.Flags().StringVar(&saveImage, "save-image", "", "Write the post's image to this file or directory")
	return cmd
}

// writeImage decodes the post image into dest. When dest is a directory the
// file is named after the post with an extension matching the content.
func writeImage(post *model.Post, dest string) (string, int, error) {
	if !post.HasImage() {
		return "", 0, errors.New("post has no image")
	}
	data, err := post.DecodeImage()
	if err != nil {
		return "", 0, err
	}
	if info, err := os.Stat(dest); err == nil && info.IsDir() {
		dest = filepath.Join(dest, fmt.Sprintf("post-%d%s", post.ID, forms.ImageExtension(data)))
	}
	if err := os.WriteFile(dest, data, 0o644); err != nil {
		return "", 0, fmt.Errorf("save image: %w", err)
	}
	return dest, len(data), nil
}
