package supabase

import (
	"fmt"

	"github.com/supabase-community/supabase-go"
)

// Client wraps the SDK client shared by the PostgREST-backed components.
type Client struct {
	Supabase *supabase.Client
}

func NewClient(url, key string) (*Client, error) {
	client, err := supabase.NewClient(url, key, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create supabase client: %w", err)
	}

	return &Client{Supabase: client}, nil
}

// IndexStore returns the key-value table the asset index persists through.
func (c *Client) IndexStore(table string) *RestKV {
	return NewRestKV(c.Supabase, table)
}
