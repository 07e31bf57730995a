package query

import (
	gocmd "github.com/goliatone/go-command"

	"github.com/goliatone/go-leadgen/core"
)

var (
	_ gocmd.Querier[ListPagesMessage, []core.DiscoveredPage] = (*ListPagesQuery)(nil)
	_ gocmd.Querier[ListPageFormsMessage, []core.LeadForm]   = (*ListPageFormsQuery)(nil)
	_ gocmd.Querier[ListLeadsMessage, []core.OwnedLead]      = (*ListLeadsQuery)(nil)
)
