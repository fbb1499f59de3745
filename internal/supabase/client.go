package supabase

import (
	"fmt"

	"github.com/supabase-community/supabase-go"
)

// Client wraps the Supabase API client. It is authenticated with the service
// key, so row level security does not apply and ownership is enforced by the
// caller.
type Client struct {
	Supabase *supabase.Client
}

func NewClient(supabaseURL, serviceKey string) (*Client, error) {
	client, err := supabase.NewClient(trimSlash(supabaseURL), serviceKey, &supabase.ClientOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to create supabase client: %w", err)
	}
	return &Client{Supabase: client}, nil
}

func trimSlash(u string) string {
	for len(u) > 0 && u[len(u)-1] == '/' {
		u = u[:len(u)-1]
	}
	return u
}
