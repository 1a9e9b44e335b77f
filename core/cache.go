package core

import "context"

// Cache memoizes remote lookups for the duration of an export run. Entries
// are write-once-per-key and read-many; the run is single-threaded, so no
// locking is needed. It replaces ad-hoc per-call memoization with one object
// owned by the orchestrator and passed through the rewriter and path
// resolver.
type Cache struct {
	client ContentClient

	pages  map[int64]*Page
	spaces map[string]*Space
	users  map[string]*User
	issues map[string]*Issue
}

// NewCache creates a Cache backed by the given client.
func NewCache(client ContentClient) *Cache {
	c := &Cache{client: client}
	c.Invalidate()
	return c
}

// Invalidate drops every cached entity. Must be called if the underlying
// client's target endpoint changes mid-run.
func (c *Cache) Invalidate() {
	c.pages = make(map[int64]*Page)
	c.spaces = make(map[string]*Space)
	c.users = make(map[string]*User)
	c.issues = make(map[string]*Issue)
}

// Client exposes the underlying content client for calls that are not
// memoized (descendant listing, attachment download).
func (c *Cache) Client() ContentClient {
	return c.client
}

// PageByID fetches a page once per id per run.
func (c *Cache) PageByID(ctx context.Context, id int64) (*Page, error) {
	if p, ok := c.pages[id]; ok {
		return p, nil
	}
	p, err := c.client.PageByID(ctx, id)
	if err != nil {
		return nil, err
	}
	c.pages[id] = p
	return p, nil
}

// SpaceByKey fetches a space once per key per run.
func (c *Cache) SpaceByKey(ctx context.Context, key string) (*Space, error) {
	if s, ok := c.spaces[key]; ok {
		return s, nil
	}
	s, err := c.client.SpaceByKey(ctx, key)
	if err != nil {
		return nil, err
	}
	c.spaces[key] = s
	return s, nil
}

// UserByAccountID resolves a user once per account id per run.
func (c *Cache) UserByAccountID(ctx context.Context, accountID string) (*User, error) {
	if u, ok := c.users[accountID]; ok {
		return u, nil
	}
	u, err := c.client.UserByAccountID(ctx, accountID)
	if err != nil {
		return nil, err
	}
	c.users[accountID] = u
	return u, nil
}

// IssueByKey resolves a tracker issue once per key per run.
func (c *Cache) IssueByKey(ctx context.Context, key string) (*Issue, error) {
	if i, ok := c.issues[key]; ok {
		return i, nil
	}
	i, err := c.client.IssueByKey(ctx, key)
	if err != nil {
		return nil, err
	}
	c.issues[key] = i
	return i, nil
}
