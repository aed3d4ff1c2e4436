package github

import (
	"context"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	githubclient "github.com/code-payments/phonelist-server/pkg/github"
	"github.com/code-payments/phonelist-server/pkg/netutil"
	"github.com/code-payments/phonelist-server/pkg/phonelist/document"
	"github.com/code-payments/phonelist-server/pkg/pointer"
)

type store struct {
	log  *logrus.Entry
	conf *conf
}

type credentials struct {
	token string
	owner string
	repo  string
}

// New returns a document.Store backed by files in a GitHub repository, accessed
// through the contents API. Credentials are validated on every operation, so a
// store can be created ahead of configuration being made available.
func New(configProvider ConfigProvider) document.Store {
	return &store{
		log:  logrus.StandardLogger().WithField("type", "phonelist/document/github"),
		conf: configProvider(),
	}
}

// Read implements document.Store.Read
func (s *store) Read(ctx context.Context, name string) (*document.Document, error) {
	creds, err := s.getCredentials(ctx)
	if err != nil {
		return nil, err
	}

	res := &document.Document{
		Name:  name,
		Items: []string{},
	}

	contents, err := s.getClient(ctx, creds).GetContents(ctx, creds.owner, creds.repo, document.Path(name))
	if err == githubclient.ErrNotFound {
		return res, nil
	} else if err != nil {
		return nil, document.NewStoreError("read", name, err)
	}

	items, err := document.Decode(contents.Content)
	if err != nil {
		return nil, document.NewStoreError("read", name, err)
	}

	res.Items = items
	res.Version = pointer.String(contents.Sha)
	return res, nil
}

// Write implements document.Store.Write
func (s *store) Write(ctx context.Context, name string, items []string, expectedVersion *string, description string) (string, error) {
	creds, err := s.getCredentials(ctx)
	if err != nil {
		return "", err
	}

	content, err := document.Encode(items)
	if err != nil {
		return "", document.NewStoreError("write", name, err)
	}

	sha, err := s.getClient(ctx, creds).PutContents(ctx, creds.owner, creds.repo, document.Path(name), &githubclient.PutContentsRequest{
		Message: description,
		Content: content,
		Sha:     expectedVersion,
		Committer: &githubclient.Committer{
			Name:  s.conf.committerName.Get(ctx),
			Email: s.conf.committerEmail.Get(ctx),
		},
	})
	switch {
	case err == githubclient.ErrConflict:
		return "", &document.ConflictError{Name: name, ExpectedVersion: expectedVersion}
	case err == githubclient.ErrNotFound && expectedVersion != nil:
		// The file was expected to exist, but is now gone
		return "", &document.ConflictError{Name: name, ExpectedVersion: expectedVersion}
	case err != nil:
		return "", document.NewStoreError("write", name, err)
	}

	if len(sha) == 0 {
		return "", document.NewStoreError("write", name, errors.New("response is missing the content sha"))
	}
	return sha, nil
}

func (s *store) getCredentials(ctx context.Context) (*credentials, error) {
	token, tokenErr := s.conf.token.GetSafe(ctx)
	owner, ownerErr := s.conf.owner.GetSafe(ctx)
	repo, repoErr := s.conf.repo.GetSafe(ctx)

	for _, err := range []error{tokenErr, ownerErr, repoErr} {
		if err != nil {
			s.log.WithError(err).Warn("github configuration missing")
			return nil, document.ErrNotConfigured
		}
	}

	if err := netutil.ValidateHttpUrl(s.conf.apiBaseUrl.Get(ctx), false); err != nil {
		s.log.WithError(err).Warn("github api base url is invalid")
		return nil, document.ErrNotConfigured
	}

	return &credentials{
		token: token,
		owner: owner,
		repo:  repo,
	}, nil
}

func (s *store) getClient(ctx context.Context, creds *credentials) *githubclient.Client {
	return githubclient.NewClient(s.conf.apiBaseUrl.Get(ctx), creds.token, s.conf.httpTimeout.Get(ctx))
}
