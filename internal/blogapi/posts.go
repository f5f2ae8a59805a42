package blogapi

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/me/blogfront/internal/apiclient"
	"github.com/me/blogfront/pkg/model"
)

// TotalCountHeader is honored when the backend reports a total.
const TotalCountHeader = "X-Total-Count"

// PostsClient covers /posts.
type PostsClient struct {
	api *apiclient.Client
}

func NewPostsClient(api *apiclient.Client) *PostsClient {
	return &PostsClient{api: api}
}

// List returns one page of posts, newest first.
func (c *PostsClient) List(ctx context.Context, opts model.ListOptions) (*model.Page, error) {
	page, err := c.page(ctx, "/posts", url.Values{}, opts)
	if err != nil {
		return nil, fmt.Errorf("list posts: %w", err)
	}
	return page, nil
}

// Search returns posts whose title or content contains query. A blank query
// is the unfiltered listing.
func (c *PostsClient) Search(ctx context.Context, query string, opts model.ListOptions) (*model.Page, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return c.List(ctx, opts)
	}
	page, err := c.page(ctx, "/posts/search", url.Values{"query": {query}}, opts)
	if err != nil {
		return nil, fmt.Errorf("search posts: %w", err)
	}
	return page, nil
}

// page fetches one window. Without a total from the backend, one extra row
// is requested to learn whether another page exists.
func (c *PostsClient) page(ctx context.Context, path string, q url.Values, opts model.ListOptions) (*model.Page, error) {
	opts.Clamp()
	probe := opts.Limit < model.MaxLimit
	fetch := opts.Limit
	if probe {
		fetch++
	}
	q.Set("skip", strconv.Itoa(opts.Skip))
	q.Set("limit", strconv.Itoa(fetch))

	resp, err := c.api.Get(ctx, path+"?"+q.Encode())
	if err != nil {
		return nil, err
	}
	var items []model.Post
	if err := resp.Decode(&items); err != nil {
		return nil, err
	}

	page := &model.Page{Skip: opts.Skip, Limit: opts.Limit, Total: -1}
	fetched := len(items)
	if fetched > opts.Limit {
		items = items[:opts.Limit]
	}
	if items == nil {
		items = []model.Post{}
	}
	page.Items = items

	if total, err := strconv.Atoi(resp.Header.Get(TotalCountHeader)); err == nil && total >= 0 {
		page.Total = total
		page.HasMore = opts.Skip+len(items) < total
		return page, nil
	}
	if probe {
		page.HasMore = fetched > opts.Limit
	} else {
		page.HasMore = fetched == opts.Limit
	}
	return page, nil
}

// Get fetches a single post.
func (c *PostsClient) Get(ctx context.Context, id int64) (*model.Post, error) {
	resp, err := c.api.Get(ctx, postPath(id))
	if err != nil {
		return nil, remap("get post", err, map[int]error{http.StatusNotFound: ErrNotFound})
	}
	var post model.Post
	if err := resp.Decode(&post); err != nil {
		return nil, fmt.Errorf("get post: %w", err)
	}
	return &post, nil
}

// Create publishes a post as the logged-in user.
func (c *PostsClient) Create(ctx context.Context, in model.PostInput) (*model.Post, error) {
	form := apiclient.NewForm().Field("title", in.Title).Field("content", in.Content)
	addImage(form, in)

	resp, err := c.api.SendForm(ctx, http.MethodPost, "/posts", form)
	if err != nil {
		return nil, remap("create post", err, writeStatuses)
	}
	var post model.Post
	if err := resp.Decode(&post); err != nil {
		return nil, fmt.Errorf("create post: %w", err)
	}
	return &post, nil
}

// Update changes the non-empty fields of in on post id.
func (c *PostsClient) Update(ctx context.Context, id int64, in model.PostInput) (*model.Post, error) {
	form := apiclient.NewForm()
	if in.Title != "" {
		form.Field("title", in.Title)
	}
	if in.Content != "" {
		form.Field("content", in.Content)
	}
	addImage(form, in)
	if form.Len() == 0 {
		return nil, ErrNothingToUpdate
	}

	resp, err := c.api.SendForm(ctx, http.MethodPut, postPath(id), form)
	if err != nil {
		return nil, remap("update post", err, writeStatuses)
	}
	var post model.Post
	if err := resp.Decode(&post); err != nil {
		return nil, fmt.Errorf("update post: %w", err)
	}
	return &post, nil
}

// Delete removes post id.
func (c *PostsClient) Delete(ctx context.Context, id int64) error {
	if _, err := c.api.Delete(ctx, postPath(id)); err != nil {
		return remap("delete post", err, writeStatuses)
	}
	return nil
}

func addImage(form *apiclient.Form, in model.PostInput) {
	if in.Image == nil {
		return
	}
	name := in.ImageName
	if name == "" {
		name = "image"
	}
	form.File("image", name, in.Image)
}

func postPath(id int64) string {
	return "/posts/" + strconv.FormatInt(id, 10)
}
