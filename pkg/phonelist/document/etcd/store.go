package etcd

import (
	"context"
	"strconv"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"go.etcd.io/etcd/api/v3/mvccpb"
	v3 "go.etcd.io/etcd/client/v3"

	"github.com/code-payments/phonelist-server/pkg/phonelist/document"
	"github.com/code-payments/phonelist-server/pkg/pointer"
)

const DefaultKeyPrefix = "/phonelist/"

type store struct {
	log    *logrus.Entry
	client *v3.Client
	prefix string
}

// New returns a document.Store where each document is a single etcd key. The
// document version is the key's mod revision.
func New(client *v3.Client, prefix string) document.Store {
	if len(prefix) == 0 {
		prefix = DefaultKeyPrefix
	}

	return &store{
		log:    logrus.StandardLogger().WithField("type", "phonelist/document/etcd"),
		client: client,
		prefix: prefix,
	}
}

// Read implements document.Store.Read
func (s *store) Read(ctx context.Context, name string) (*document.Document, error) {
	get, err := s.client.Get(ctx, s.key(name))
	if err != nil {
		return nil, document.NewStoreError("read", name, err)
	}

	if len(get.Kvs) == 0 {
		return &document.Document{
			Name:  name,
			Items: []string{},
		}, nil
	}

	res, err := fromKeyValue(name, get.Kvs[0])
	if err != nil {
		return nil, document.NewStoreError("read", name, err)
	}
	return res, nil
}

// Write implements document.Store.Write
func (s *store) Write(ctx context.Context, name string, items []string, expectedVersion *string, description string) (string, error) {
	key := s.key(name)

	var cmp v3.Cmp
	if expectedVersion == nil {
		cmp = v3.Compare(v3.CreateRevision(key), "=", 0)
	} else {
		modRevision, err := strconv.ParseInt(*expectedVersion, 10, 64)
		if err != nil || modRevision <= 0 {
			// Versions handed out by this store are always positive revisions
			return "", &document.ConflictError{Name: name, ExpectedVersion: expectedVersion}
		}
		cmp = v3.Compare(v3.ModRevision(key), "=", modRevision)
	}

	content, err := document.Encode(items)
	if err != nil {
		return "", document.NewStoreError("write", name, err)
	}

	resp, err := s.client.Txn(ctx).
		If(cmp).
		Then(v3.OpPut(key, string(content))).
		Commit()
	if err != nil {
		return "", document.NewStoreError("write", name, err)
	}

	if !resp.Succeeded {
		return "", &document.ConflictError{Name: name, ExpectedVersion: expectedVersion}
	}

	if len(resp.Responses) == 0 || resp.Responses[0].GetResponsePut() == nil {
		return "", document.NewStoreError("write", name, errors.New("txn response is missing the put result"))
	}

	s.log.WithFields(logrus.Fields{
		"document":    name,
		"revision":    resp.Header.Revision,
		"description": description,
	}).Debug("document written")

	// The put is the only operation in the txn, so its mod revision is the
	// txn's header revision
	return strconv.FormatInt(resp.Header.Revision, 10), nil
}

func (s *store) key(name string) string {
	return s.prefix + document.Path(name)
}

func fromKeyValue(name string, kv *mvccpb.KeyValue) (*document.Document, error) {
	items, err := document.Decode(kv.Value)
	if err != nil {
		return nil, err
	}

	return &document.Document{
		Name:    name,
		Items:   items,
		Version: pointer.String(strconv.FormatInt(kv.ModRevision, 10)),
	}, nil
}
