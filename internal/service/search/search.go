package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/elastic/go-elasticsearch/v9"

	"github.com/anikchand/videotube/internal/models"
)

// Profile is the channel-facing slice of a user indexed for search.
type Profile struct {
	ID        uint   `json:"id"`
	Username  string `json:"username"`
	FullName  string `json:"full_name"`
	AvatarURL string `json:"avatar_url"`
}

// Indexer mirrors user profiles into an Elasticsearch index. A nil Indexer
// (or one without a client) is a no-op, so registration works without a
// search backend.
type Indexer struct {
	ES    *elasticsearch.Client
	Index string
}

func (i *Indexer) IndexUser(ctx context.Context, u *models.User) error {
	if i == nil || i.ES == nil {
		return nil
	}

	doc := Profile{
		ID:        u.ID,
		Username:  u.Username,
		FullName:  u.FullName,
		AvatarURL: u.AvatarURL,
	}

	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(doc); err != nil {
		return fmt.Errorf("index user: %w", err)
	}

	res, err := i.ES.Index(
		i.Index,
		&buf,
		i.ES.Index.WithDocumentID(strconv.FormatUint(uint64(u.ID), 10)),
		i.ES.Index.WithContext(ctx),
	)
	if err != nil {
		return fmt.Errorf("index user: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("index user: %s", res.Status())
	}
	return nil
}

// Search runs a fuzzy multi_match over handle and full name with offset
// pagination and returns the total hit count plus the page of profiles.
func Search(ctx context.Context, es *elasticsearch.Client, index, query string, from, size int) (int64, []Profile, error) {
	body := map[string]interface{}{
		"query": map[string]interface{}{
			"multi_match": map[string]interface{}{
				"query":     query,
				"fields":    []string{"username^2", "full_name"},
				"fuzziness": "AUTO",
			},
		},
		"from": from,
		"size": size,
	}

	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(body); err != nil {
		return 0, nil, fmt.Errorf("search: %w", err)
	}

	res, err := es.Search(
		es.Search.WithContext(ctx),
		es.Search.WithIndex(index),
		es.Search.WithBody(&buf),
	)
	if err != nil {
		return 0, nil, fmt.Errorf("search: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return 0, nil, fmt.Errorf("search: %s", res.Status())
	}

	var r struct {
		Hits struct {
			Total struct{ Value int64 } `json:"total"`
			Hits  []struct {
				Source Profile `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&r); err != nil {
		return 0, nil, err
	}

	profiles := make([]Profile, len(r.Hits.Hits))
	for i, hit := range r.Hits.Hits {
		profiles[i] = hit.Source
	}
	return r.Hits.Total.Value, profiles, nil
}
