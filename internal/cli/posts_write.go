package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/me/blogfront/internal/account"
	"github.com/me/blogfront/internal/forms"
	"github.com/me/blogfront/pkg/model"
)

// requireLogin refuses before dispatch when nobody is logged in.
func (a *app) requireLogin() error {
	if !a.session.State().IsAuthenticated {
		return account.ErrNotLoggedIn
	}
	return nil
}

// postInput turns a validated form into request input. The returned close
// function releases the image file.
func postInput(form forms.PostForm) (model.PostInput, func(), error) {
	in := model.PostInput{Title: form.Title, Content: form.Content}
	if form.ImagePath == "" {
		return in, func() {}, nil
	}
	f, err := os.Open(form.ImagePath)
	if err != nil {
		return model.PostInput{}, nil, fmt.Errorf("open image: %w", err)
	}
	in.Image = f
	in.ImageName = filepath.Base(form.ImagePath)
	return in, func() { f.Close() }, nil
}

func newPostsCreateCmd(a *app) *cobra.Command {
	var form forms.PostForm

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Publish a new post",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.requireLogin(); err != nil {
				return err
			}
			if err := form.Validate(); err != nil {
				return err
			}
			in, closeImage, err := postInput(form)
			if err != nil {
				return err
			}
			defer closeImage()

			post, err := a.posts.Create(cmd.Context(), in)
			if err != nil {
				return err
			}
			a.message("Post created successfully!")
			return a.render(post, func(w io.Writer) {
				fmt.Fprintf(w, "ID: %d\n", post.ID)
			})
		},
	}

	cmd.Flags().StringVarP(&form.Title, "title", "t", "", "Post title")
	cmd.Flags().StringVarP(&form.Content, "content", "c", "", "Post content")
	cmd.Flags().StringVar(&form.ImagePath, "image", "", "Image file to attach")
	return cmd
}

// checkOwner fetches the post and refuses when the current user did not
// write it. With force the backend makes the call instead.
func (a *app) checkOwner(ctx context.Context, id int64, force bool) error {
	if force {
		return nil
	}
	post, err := a.posts.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := a.account.CheckModify(post); err != nil {
		if errors.Is(err, account.ErrNotOwner) {
			return fmt.Errorf("post %d is by %s: %w", id, post.AuthorName(), err)
		}
		return err
	}
	return nil
}

func newPostsEditCmd(a *app) *cobra.Command {
	form := forms.PostForm{Edit: true}
	var force bool

	cmd := &cobra.Command{
		Use:   "edit <id>",
		Short: "Change the title, content or image of your post",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parsePostID(args[0])
			if err != nil {
				return err
			}
			if err := a.requireLogin(); err != nil {
				return err
			}
			if err := form.Validate(); err != nil {
				return err
			}
			if err := a.checkOwner(cmd.Context(), id, force); err != nil {
				return err
			}
			in, closeImage, err := postInput(form)
			if err != nil {
				return err
			}
			defer closeImage()

			post, err := a.posts.Update(cmd.Context(), id, in)
			if err != nil {
				return err
			}
			a.message("Post updated successfully!")
			return a.render(post, func(w io.Writer) {
				printPost(w, post)
			})
		},
	}

	cmd.Flags().StringVarP(&form.Title, "title", "t", "", "New title")
	cmd.Flags().StringVarP(&form.Content, "content", "c", "", "New content")
	cmd.Flags().StringVar(&form.ImagePath, "image", "", "Replacement image file")
	cmd.Flags().BoolVar(&force, "force", false, "Skip the ownership check and let the server decide")
	return cmd
}

func newPostsDeleteCmd(a *app) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete your post",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parsePostID(args[0])
			if err != nil {
				return err
			}
			if err := a.requireLogin(); err != nil {
				return err
			}
			if err := a.checkOwner(cmd.Context(), id, force); err != nil {
				return err
			}
			if err := a.posts.Delete(cmd.Context(), id); err != nil {
				return err
			}
			a.message("Post deleted successfully!")
			return a.render(map[string]any{"deleted": id}, func(io.Writer) {})
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Skip the ownership check and let the server decide")
	return cmd
}
