package sqlstore

import "github.com/goliatone/go-leadgen/core"

var (
	_ core.UserStore = (*UserStore)(nil)
	_ core.PageStore = (*PageStore)(nil)
	_ core.PageStore = (*CachedPageStore)(nil)
	_ core.LeadStore = (*LeadStore)(nil)
)
