// Package github wraps go-github for the three GitHub REST calls the
// service needs: download a repository archive, create a repository and
// create a file through the contents API.
package github

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	gogithub "github.com/google/go-github/v62/github"
	"github.com/iantal/miniapp/internal/domain"
	"github.com/iantal/miniapp/internal/metrics"
	"github.com/iantal/miniapp/internal/util"
	"github.com/sirupsen/logrus"
	"golang.org/x/xerrors"
)

const provider = "github"

// Repository is the subset of the GitHub repository resource we read
type Repository struct {
	Name     string
	FullName string
	HTMLURL  string
	CloneURL string
	Private  bool
}

// Client talks to the GitHub REST API
type Client struct {
	l        *util.StandardLogger
	gh       *gogithub.Client
	download *http.Client
	timeout  time.Duration
}

// NewClient creates a client for apiURL; token may be empty for anonymous calls
func NewClient(l *util.StandardLogger, apiURL, token string, timeout time.Duration) *Client {
	gh := gogithub.NewClient(&http.Client{Timeout: timeout})
	if token != "" {
		gh = gh.WithAuthToken(token)
	}
	if base, err := url.Parse(strings.TrimRight(apiURL, "/") + "/"); err == nil {
		gh.BaseURL = base
	}
	gh.UserAgent = "miniapp"

	return &Client{
		l:        l,
		gh:       gh,
		download: &http.Client{Timeout: timeout},
		timeout:  timeout,
	}
}

// DownloadArchive returns the zip archive of the default branch of owner/repo.
// Archives larger than limit bytes fail with *domain.ErrPayloadTooLarge.
func (c *Client) DownloadArchive(ctx context.Context, owner, repo string, limit int64) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	c.l.WithFields(logrus.Fields{"owner": owner, "repo": repo}).Info("Downloading repository archive")

	link, resp, err := c.gh.Repositories.GetArchiveLink(ctx, url.PathEscape(owner), url.PathEscape(repo), gogithub.Zipball, nil, 3)
	if err != nil {
		err = providerError(ctx, resp, err)
		metrics.ProviderCall(provider, "zipball", err)
		return nil, err
	}

	body, err := c.fetch(ctx, link.String(), limit)
	if err != nil {
		if ptl, ok := err.(*domain.ErrPayloadTooLarge); ok {
			ptl.Path = owner + "/" + repo + ".zip"
		}
		metrics.ProviderCall(provider, "zipball", err)
		return nil, err
	}

	metrics.ProviderCall(provider, "zipball", nil)
	return body, nil
}

// fetch reads the archive behind the redirect, at most limit bytes
func (c *Client) fetch(ctx context.Context, link string, limit int64) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, link, nil)
	if err != nil {
		return nil, xerrors.Errorf("Unable to build request: %w", err)
	}

	resp, err := c.download.Do(req)
	if err != nil {
		return nil, providerError(ctx, nil, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &domain.ErrProvider{Provider: provider, Status: resp.StatusCode, Message: "archive download failed: " + resp.Status}
	}

	r := io.Reader(resp.Body)
	if limit > 0 {
		r = io.LimitReader(resp.Body, limit+1)
	}
	body, err := io.ReadAll(r)
	if err != nil {
		return nil, providerError(ctx, nil, err)
	}
	if limit > 0 && int64(len(body)) > limit {
		return nil, &domain.ErrPayloadTooLarge{Size: int64(len(body)), Limit: limit}
	}
	return body, nil
}

// CreateRepo creates a repository owned by the authenticated user
func (c *Client) CreateRepo(ctx context.Context, name, description string, private bool) (*Repository, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	r := &gogithub.Repository{
		Name:     gogithub.String(name),
		Private:  gogithub.Bool(private),
		AutoInit: gogithub.Bool(false),
	}
	if description != "" {
		r.Description = gogithub.String(description)
	}

	created, resp, err := c.gh.Repositories.Create(ctx, "", r)
	if err != nil {
		err = providerError(ctx, resp, err)
		metrics.ProviderCall(provider, "create_repo", err)
		return nil, err
	}

	metrics.ProviderCall(provider, "create_repo", nil)
	return &Repository{
		Name:     created.GetName(),
		FullName: created.GetFullName(),
		HTMLURL:  created.GetHTMLURL(),
		CloneURL: created.GetCloneURL(),
		Private:  created.GetPrivate(),
	}, nil
}

// PutContent creates a single file, producing one commit
func (c *Client) PutContent(ctx context.Context, owner, repo, path string, content []byte, message string) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	segments := strings.Split(path, "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}

	_, resp, err := c.gh.Repositories.CreateFile(ctx, url.PathEscape(owner), url.PathEscape(repo), strings.Join(segments, "/"), &gogithub.RepositoryContentFileOptions{
		Message: gogithub.String(message),
		Content: content,
	})
	if err != nil {
		err = providerError(ctx, resp, err)
	}
	metrics.ProviderCall(provider, "put_content", err)
	return err
}

// providerError turns a go-github or transport failure into *domain.ErrProvider
func providerError(ctx context.Context, resp *gogithub.Response, err error) error {
	if xerrors.Is(ctx.Err(), context.DeadlineExceeded) {
		return &domain.ErrProvider{Provider: provider, Status: http.StatusGatewayTimeout, Message: err.Error()}
	}

	var er *gogithub.ErrorResponse
	if xerrors.As(err, &er) {
		msg := er.Message
		if msg == "" {
			msg = http.StatusText(er.Response.StatusCode)
		}
		for _, e := range er.Errors {
			if e.Message != "" {
				msg += ": " + e.Message
			} else if e.Code != "" {
				msg += ": " + e.Field + " " + e.Code
			}
		}
		return &domain.ErrProvider{Provider: provider, Status: er.Response.StatusCode, Message: msg}
	}

	var rle *gogithub.RateLimitError
	if xerrors.As(err, &rle) {
		return &domain.ErrProvider{Provider: provider, Status: http.StatusTooManyRequests, Message: rle.Message}
	}

	var te interface{ Timeout() bool }
	if xerrors.As(err, &te) && te.Timeout() {
		return &domain.ErrProvider{Provider: provider, Status: http.StatusGatewayTimeout, Message: err.Error()}
	}

	if resp != nil && resp.Response != nil && resp.StatusCode >= 400 {
		return &domain.ErrProvider{Provider: provider, Status: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
	}
	return &domain.ErrProvider{Provider: provider, Status: http.StatusBadGateway, Message: err.Error()}
}
