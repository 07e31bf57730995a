package leadgen

import (
	"fmt"

	"github.com/goliatone/go-leadgen/adapters/gocommand"
	leadcommand "github.com/goliatone/go-leadgen/command"
	"github.com/goliatone/go-leadgen/core"
	leadquery "github.com/goliatone/go-leadgen/query"
)

// AccountService is what the account commands and queries need from the
// page directory.
type AccountService interface {
	leadcommand.PageConnector
	leadquery.PageLister
	leadquery.FormLister
}

type FacadeDependencies struct {
	Tokens   leadcommand.TokenExchanger
	Users    core.UserStore
	Accounts AccountService
	Leads    leadquery.LeadLister
}

type Commands struct {
	Login       *leadcommand.LoginCommand
	ConnectPage *leadcommand.ConnectPageCommand
}

type Queries struct {
	ListPages     *leadquery.ListPagesQuery
	ListPageForms *leadquery.ListPageFormsQuery
	ListLeads     *leadquery.ListLeadsQuery
}

type Facade struct {
	commands Commands
	queries  Queries
}

func NewFacade(deps FacadeDependencies) (*Facade, error) {
	if deps.Tokens == nil {
		return nil, fmt.Errorf("leadgen: token exchanger is required")
	}
	if deps.Users == nil {
		return nil, fmt.Errorf("leadgen: user store is required")
	}
	if deps.Accounts == nil {
		return nil, fmt.Errorf("leadgen: account service is required")
	}
	if deps.Leads == nil {
		return nil, fmt.Errorf("leadgen: lead lister is required")
	}
	return &Facade{
		commands: Commands{
			Login:       leadcommand.NewLoginCommand(deps.Tokens, deps.Users),
			ConnectPage: leadcommand.NewConnectPageCommand(deps.Accounts),
		},
		queries: Queries{
			ListPages:     leadquery.NewListPagesQuery(deps.Accounts),
			ListPageForms: leadquery.NewListPageFormsQuery(deps.Accounts),
			ListLeads:     leadquery.NewListLeadsQuery(deps.Leads),
		},
	}, nil
}

func (f *Facade) Commands() Commands {
	if f == nil {
		return Commands{}
	}
	return f.commands
}

func (f *Facade) Queries() Queries {
	if f == nil {
		return Queries{}
	}
	return f.queries
}

// Register adds every handler to bus. Handlers added before a failure are
// released.
func (f *Facade) Register(bus *gocommand.Bus) error {
	if f == nil {
		return fmt.Errorf("leadgen: facade is nil")
	}
	if bus == nil {
		return fmt.Errorf("leadgen: command bus is nil")
	}
	steps := []func() error{
		func() error { return gocommand.AddCommand[leadcommand.LoginMessage](bus, f.commands.Login) },
		func() error { return gocommand.AddCommand[leadcommand.ConnectPageMessage](bus, f.commands.ConnectPage) },
		func() error {
			return gocommand.AddQuery[leadquery.ListPagesMessage, []core.DiscoveredPage](bus, f.queries.ListPages)
		},
		func() error {
			return gocommand.AddQuery[leadquery.ListPageFormsMessage, []core.LeadForm](bus, f.queries.ListPageForms)
		},
		func() error {
			return gocommand.AddQuery[leadquery.ListLeadsMessage, []core.OwnedLead](bus, f.queries.ListLeads)
		},
	}
	for _, step := range steps {
		if err := step(); err != nil {
			bus.Close()
			return err
		}
	}
	return nil
}
