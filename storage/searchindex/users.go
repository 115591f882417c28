// Package searchindex keeps user profiles in an OpenSearch index for the
// people search used when inviting members.
package searchindex

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/opensearch-project/opensearch-go/v2"

	"github.com/dmitrymomot/taskflow/svc/user"
)

var ErrRequestFailed = errors.New("opensearch request failed")

const usersMapping = `{
  "mappings": {
    "properties": {
      "name":  {"type": "text", "fields": {"keyword": {"type": "keyword"}}},
      "email": {"type": "text", "analyzer": "simple", "fields": {"keyword": {"type": "keyword"}}},
      "img":   {"type": "keyword", "index": false}
    }
  }
}`

// Users implements user.Searcher.
type Users struct {
	client *opensearch.Client
	index  string
}

func NewUsers(client *opensearch.Client, index string) *Users {
	return &Users{client: client, index: index}
}

// EnsureIndex creates the index with its mapping when it does not exist.
func (s *Users) EnsureIndex(ctx context.Context) error {
	res, err := s.client.Indices.Exists([]string{s.index}, s.client.Indices.Exists.WithContext(ctx))
	if err != nil {
		return errors.Join(ErrRequestFailed, err)
	}
	_ = res.Body.Close()
	if res.StatusCode == http.StatusOK {
		return nil
	}

	res, err = s.client.Indices.Create(s.index,
		s.client.Indices.Create.WithContext(ctx),
		s.client.Indices.Create.WithBody(bytes.NewReader([]byte(usersMapping))),
	)
	if err != nil {
		return errors.Join(ErrRequestFailed, err)
	}
	return checkResponse(res.StatusCode, res.Body)
}

// Index upserts a profile keyed by user id.
func (s *Users) Index(ctx context.Context, p user.Profile) error {
	body, err := json.Marshal(map[string]string{"name": p.Name, "email": p.Email, "img": p.Img})
	if err != nil {
		return err
	}
	res, err := s.client.Index(s.index, bytes.NewReader(body),
		s.client.Index.WithContext(ctx),
		s.client.Index.WithDocumentID(p.ID),
	)
	if err != nil {
		return errors.Join(ErrRequestFailed, err)
	}
	return checkResponse(res.StatusCode, res.Body)
}

type searchResponse struct {
	Hits struct {
		Hits []struct {
			ID string `json:"_id"`
		} `json:"hits"`
	} `json:"hits"`
}

// Search returns ids of the best matching users, most relevant first.
func (s *Users) Search(ctx context.Context, query string, limit int) ([]string, error) {
	q := map[string]any{
		"size":    limit,
		"_source": false,
		"query": map[string]any{
			"multi_match": map[string]any{
				"query":  query,
				"type":   "bool_prefix",
				"fields": []string{"name", "email"},
			},
		},
	}
	body, err := json.Marshal(q)
	if err != nil {
		return nil, err
	}
	res, err := s.client.Search(
		s.client.Search.WithContext(ctx),
		s.client.Search.WithIndex(s.index),
		s.client.Search.WithBody(bytes.NewReader(body)),
	)
	if err != nil {
		return nil, errors.Join(ErrRequestFailed, err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return nil, checkResponse(res.StatusCode, res.Body)
	}

	var out searchResponse
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		return nil, errors.Join(ErrRequestFailed, err)
	}
	ids := make([]string, 0, len(out.Hits.Hits))
	for _, h := range out.Hits.Hits {
		ids = append(ids, h.ID)
	}
	return ids, nil
}

func checkResponse(status int, body io.ReadCloser) error {
	defer body.Close()
	if status < 300 {
		return nil
	}
	msg, _ := io.ReadAll(io.LimitReader(body, 1024))
	return errors.Join(ErrRequestFailed, fmt.Errorf("status %d: %s", status, bytes.TrimSpace(msg)))
}
